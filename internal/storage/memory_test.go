package storage

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/MosinFAM/graphql-channels/internal/models"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage() *MemoryStorage {
	return NewMemoryStorage(log.New(io.Discard))
}

func seedChannels(now time.Time) []models.Channel {
	general := models.NewChannel("general")
	general.Posts = append(general.Posts, models.NewPost("general", "hello world", now))
	cats := models.NewChannel("cats")
	cats.Posts = append(cats.Posts,
		models.NewPost("cats", "meow world", now),
		models.NewPost("cats", "hiss", now),
	)
	return []models.Channel{general, cats}
}

func TestGetAllChannels_Empty(t *testing.T) {
	storage := newTestStorage()

	channels, err := storage.GetAllChannels(context.Background())

	assert.NoError(t, err)
	assert.NotNil(t, channels)
	assert.Empty(t, channels)
}

func TestSeed_KeepsOrderAndPosts(t *testing.T) {
	storage := newTestStorage()
	ctx := context.Background()

	require.NoError(t, storage.Seed(ctx, seedChannels(time.Now())))

	channels, err := storage.GetAllChannels(ctx)
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "general", channels[0].Name)
	assert.Equal(t, "cats", channels[1].Name)
	assert.Len(t, channels[0].Posts, 1)
	assert.Equal(t, "hiss", channels[1].Posts[1].Message)
}

func TestSeed_Twice(t *testing.T) {
	storage := newTestStorage()
	ctx := context.Background()

	require.NoError(t, storage.Seed(ctx, seedChannels(time.Now())))
	require.NoError(t, storage.Seed(ctx, seedChannels(time.Now())))

	channels, err := storage.GetAllChannels(ctx)
	require.NoError(t, err)
	assert.Len(t, channels, 2)
	assert.Len(t, channels[1].Posts, 2)
}

func TestAddPost(t *testing.T) {
	storage := newTestStorage()
	ctx := context.Background()
	require.NoError(t, storage.Seed(ctx, seedChannels(time.Now())))

	err := storage.AddPost(ctx, models.NewPost("general", "hi", time.Now()))
	assert.NoError(t, err)

	posts, err := storage.GetPostsByChannel(ctx, "general")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "hi", posts[1].Message)
	assert.Equal(t, "general", posts[1].Channel)
}

func TestAddPost_UnknownChannel(t *testing.T) {
	storage := newTestStorage()
	ctx := context.Background()
	require.NoError(t, storage.Seed(ctx, seedChannels(time.Now())))

	err := storage.AddPost(ctx, models.NewPost("nope", "lost", time.Now()))
	assert.ErrorIs(t, err, ErrChannelNotFound)

	channels, err := storage.GetAllChannels(ctx)
	require.NoError(t, err)
	assert.Len(t, channels[0].Posts, 1)
	assert.Len(t, channels[1].Posts, 2)
}

func TestGetPostsByChannel_Unknown(t *testing.T) {
	storage := newTestStorage()

	posts, err := storage.GetPostsByChannel(context.Background(), "missing")

	assert.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestAddChannel(t *testing.T) {
	storage := newTestStorage()
	ctx := context.Background()
	require.NoError(t, storage.Seed(ctx, seedChannels(time.Now())))

	t.Run("New channel is appended", func(t *testing.T) {
		err := storage.AddChannel(ctx, models.NewChannel("test"))
		require.NoError(t, err)

		channels, err := storage.GetAllChannels(ctx)
		require.NoError(t, err)
		require.Len(t, channels, 3)
		assert.Equal(t, "test", channels[2].Name)
		assert.NotNil(t, channels[2].Posts)
		assert.Empty(t, channels[2].Posts)
	})

	t.Run("Duplicate name is rejected", func(t *testing.T) {
		err := storage.AddChannel(ctx, models.NewChannel("general"))
		assert.ErrorIs(t, err, ErrChannelExists)

		channels, err := storage.GetAllChannels(ctx)
		require.NoError(t, err)
		assert.Len(t, channels, 3)
	})
}

func TestGetAllChannels_ReturnsCopies(t *testing.T) {
	storage := newTestStorage()
	ctx := context.Background()
	require.NoError(t, storage.Seed(ctx, seedChannels(time.Now())))

	channels, err := storage.GetAllChannels(ctx)
	require.NoError(t, err)
	channels[0].Posts[0].Message = "changed"

	posts, err := storage.GetPostsByChannel(ctx, "general")
	require.NoError(t, err)
	assert.Equal(t, "hello world", posts[0].Message)
}

func TestAddPost_Concurrent(t *testing.T) {
	storage := newTestStorage()
	ctx := context.Background()
	require.NoError(t, storage.AddChannel(ctx, models.NewChannel("load")))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, storage.AddPost(ctx, models.NewPost("load", "msg", time.Now())))
		}()
	}
	wg.Wait()

	posts, err := storage.GetPostsByChannel(ctx, "load")
	require.NoError(t, err)
	assert.Len(t, posts, 50)
}
