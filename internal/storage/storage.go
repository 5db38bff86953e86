package storage

import (
	"context"
	"errors"

	"github.com/MosinFAM/graphql-channels/internal/models"
)

var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrChannelExists   = errors.New("channel already exists")
)

// Storage - интерфейс для всех типов хранилищ (in-memory и PostgreSQL)
type Storage interface {
	// GetAllChannels возвращает каналы в порядке создания вместе с постами.
	GetAllChannels(ctx context.Context) ([]models.Channel, error)
	// GetPostsByChannel возвращает посты канала. Для неизвестного канала - пустой список без ошибки.
	GetPostsByChannel(ctx context.Context, channel string) ([]models.Post, error)
	// AddChannel возвращает ErrChannelExists, если канал с таким именем уже есть.
	AddChannel(ctx context.Context, channel models.Channel) error
	// AddPost возвращает ErrChannelNotFound, если канала post.Channel нет.
	AddPost(ctx context.Context, post models.Post) error
	// Seed добавляет каналы, которых еще нет в хранилище. Существующие не трогает.
	Seed(ctx context.Context, channels []models.Channel) error
}
