package storage

import (
	"context"

	"github.com/MosinFAM/graphql-channels/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) GetAllChannels(ctx context.Context) ([]models.Channel, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Channel), args.Error(1)
}

func (m *MockStorage) GetPostsByChannel(ctx context.Context, channel string) ([]models.Post, error) {
	args := m.Called(ctx, channel)
	return args.Get(0).([]models.Post), args.Error(1)
}

func (m *MockStorage) AddChannel(ctx context.Context, channel models.Channel) error {
	args := m.Called(ctx, channel)
	return args.Error(0)
}

func (m *MockStorage) AddPost(ctx context.Context, post models.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *MockStorage) Seed(ctx context.Context, channels []models.Channel) error {
	args := m.Called(ctx, channels)
	return args.Error(0)
}
