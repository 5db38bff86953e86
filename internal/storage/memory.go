package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/MosinFAM/graphql-channels/internal/models"

	"github.com/charmbracelet/log"
)

// MemoryStorage - хранилище в памяти
type MemoryStorage struct {
	channels map[string]*models.Channel
	order    []string
	mu       sync.RWMutex
	logger   *log.Logger
}

// NewMemoryStorage создает новое in-memory хранилище
func NewMemoryStorage(logger *log.Logger) *MemoryStorage {
	return &MemoryStorage{
		channels: make(map[string]*models.Channel),
		logger:   logger,
	}
}

// GetAllChannels возвращает все каналы
func (s *MemoryStorage) GetAllChannels(_ context.Context) ([]models.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.logger.Debug("fetching all channels from memory", "count", len(s.order))
	result := make([]models.Channel, 0, len(s.order))
	for _, name := range s.order {
		result = append(result, copyChannel(s.channels[name]))
	}
	return result, nil
}

// GetPostsByChannel возвращает посты канала
func (s *MemoryStorage) GetPostsByChannel(_ context.Context, channel string) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.logger.Debug("fetching posts", "channel", channel)
	ch, exists := s.channels[channel]
	if !exists {
		return []models.Post{}, nil
	}
	return append([]models.Post{}, ch.Posts...), nil
}

// AddChannel добавляет новый канал
func (s *MemoryStorage) AddChannel(_ context.Context, channel models.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addChannelLocked(channel)
}

func (s *MemoryStorage) addChannelLocked(channel models.Channel) error {
	if _, exists := s.channels[channel.Name]; exists {
		return ErrChannelExists
	}

	stored := copyChannel(&channel)
	s.channels[channel.Name] = &stored
	s.order = append(s.order, channel.Name)
	s.logger.Debug("channel added", "channel", channel.Name, "posts", len(stored.Posts))
	return nil
}

// AddPost добавляет пост в конец канала
func (s *MemoryStorage) AddPost(_ context.Context, post models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, exists := s.channels[post.Channel]
	if !exists {
		return ErrChannelNotFound
	}
	ch.Posts = append(ch.Posts, post)
	s.logger.Debug("post added", "channel", post.Channel)
	return nil
}

// Seed заполняет хранилище начальными каналами
func (s *MemoryStorage) Seed(_ context.Context, channels []models.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, channel := range channels {
		if err := s.addChannelLocked(channel); err != nil && !errors.Is(err, ErrChannelExists) {
			return err
		}
	}
	return nil
}

// copyChannel отдает наружу копию, чтобы вызывающий код не мог изменить хранилище
func copyChannel(ch *models.Channel) models.Channel {
	posts := make([]models.Post, len(ch.Posts))
	copy(posts, ch.Posts)
	for i := range posts {
		posts[i].Channel = ch.Name
	}
	return models.Channel{Name: ch.Name, Posts: posts}
}
