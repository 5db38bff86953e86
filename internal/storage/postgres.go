package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MosinFAM/graphql-channels/internal/models"

	"github.com/charmbracelet/log"
)

// PostgresStorage - хранилище в PostgreSQL
type PostgresStorage struct {
	DB     *sql.DB
	logger *log.Logger
}

// NewPostgresStorage создаёт экземпляр PostgreSQL-хранилища. Схема создается миграциями goose.
func NewPostgresStorage(db *sql.DB, logger *log.Logger) *PostgresStorage {
	return &PostgresStorage{DB: db, logger: logger}
}

// GetAllChannels возвращает все каналы с постами
func (s *PostgresStorage) GetAllChannels(ctx context.Context) ([]models.Channel, error) {
	s.logger.Debug("fetching all channels from database")
	rows, err := s.DB.QueryContext(ctx, `
		SELECT c.name, p.message, p.created_at
		FROM channels c
		LEFT JOIN posts p ON p.channel_id = c.id
		ORDER BY c.id, p.id`)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	channels := []models.Channel{}
	for rows.Next() {
		var (
			name    string
			message sql.NullString
			created sql.NullTime
		)
		if err := rows.Scan(&name, &message, &created); err != nil {
			return nil, fmt.Errorf("scan channel row: %w", err)
		}

		last := len(channels) - 1
		if last < 0 || channels[last].Name != name {
			channels = append(channels, models.NewChannel(name))
			last++
		}
		if message.Valid {
			channels[last].Posts = append(channels[last].Posts, models.NewPost(name, message.String, created.Time))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return channels, nil
}

// GetPostsByChannel возвращает посты канала в порядке добавления
func (s *PostgresStorage) GetPostsByChannel(ctx context.Context, channel string) ([]models.Post, error) {
	s.logger.Debug("fetching posts from database", "channel", channel)
	rows, err := s.DB.QueryContext(ctx, `
		SELECT p.message, p.created_at
		FROM posts p
		JOIN channels c ON c.id = p.channel_id
		WHERE c.name = $1
		ORDER BY p.id`, channel)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		var (
			message string
			created time.Time
		)
		if err := rows.Scan(&message, &created); err != nil {
			return nil, fmt.Errorf("scan post row: %w", err)
		}
		posts = append(posts, models.NewPost(channel, message, created))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

// AddChannel добавляет канал вместе с его постами
func (s *PostgresStorage) AddChannel(ctx context.Context, channel models.Channel) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	created, err := insertChannel(ctx, tx, channel)
	if err != nil {
		return err
	}
	if !created {
		return ErrChannelExists
	}
	return tx.Commit()
}

// AddPost добавляет пост в существующий канал
func (s *PostgresStorage) AddPost(ctx context.Context, post models.Post) error {
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO posts (channel_id, message, created_at)
		SELECT id, $2, $3 FROM channels WHERE name = $1`,
		post.Channel, post.Message, post.Date)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	if n == 0 {
		return ErrChannelNotFound
	}
	s.logger.Debug("post added", "channel", post.Channel)
	return nil
}

// Seed добавляет отсутствующие каналы. Повторный запуск сервера не дублирует посты.
func (s *PostgresStorage) Seed(ctx context.Context, channels []models.Channel) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, channel := range channels {
		created, err := insertChannel(ctx, tx, channel)
		if err != nil {
			return err
		}
		if !created {
			s.logger.Debug("seed channel already present", "channel", channel.Name)
		}
	}
	return tx.Commit()
}

// insertChannel возвращает false, если канал уже существует
func insertChannel(ctx context.Context, tx *sql.Tx, channel models.Channel) (bool, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO channels (name) VALUES ($1) ON CONFLICT (name) DO NOTHING RETURNING id`,
		channel.Name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert channel %q: %w", channel.Name, err)
	}

	for _, post := range channel.Posts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO posts (channel_id, message, created_at) VALUES ($1, $2, $3)`,
			id, post.Message, post.Date); err != nil {
			return false, fmt.Errorf("insert post into %q: %w", channel.Name, err)
		}
	}
	return true, nil
}
