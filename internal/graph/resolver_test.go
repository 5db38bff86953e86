package graph

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/MosinFAM/graphql-channels/internal/models"
	"github.com/MosinFAM/graphql-channels/internal/pubsub"
	"github.com/MosinFAM/graphql-channels/internal/storage"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.March, 5, 12, 0, 0, 0, time.Local)

func newTestResolver(store storage.Storage) (*Resolver, *pubsub.Memory) {
	logger := log.New(io.Discard)
	bus := pubsub.NewMemory(logger)
	return &Resolver{
		Storage: store,
		Bus:     bus,
		Logger:  logger,
		Now:     func() time.Time { return fixedNow },
	}, bus
}

func TestAddPost(t *testing.T) {
	mockStorage := new(storage.MockStorage)
	resolver, bus := newTestResolver(mockStorage)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := bus.Subscribe(ctx, pubsub.TopicNewPost)
	require.NoError(t, err)

	expected := models.NewPost("general", "hi", fixedNow)
	mockStorage.On("AddPost", mock.Anything, expected).Return(nil)

	post, err := resolver.Mutation().AddPost(ctx, "general", "hi")
	assert.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, "hi", post.Message)
	assert.Equal(t, fixedNow, post.Date)

	select {
	case payload := <-events:
		assert.Contains(t, string(payload), `"channel":"general"`)
	case <-time.After(time.Second):
		t.Fatal("NEW_POST was not published")
	}

	mockStorage.AssertExpectations(t)
}

func TestAddPost_UnknownChannel(t *testing.T) {
	mockStorage := new(storage.MockStorage)
	resolver, _ := newTestResolver(mockStorage)

	mockStorage.On("AddPost", mock.Anything, mock.Anything).Return(storage.ErrChannelNotFound)

	post, err := resolver.Mutation().AddPost(context.Background(), "nope", "lost")
	assert.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, "lost", post.Message)

	mockStorage.AssertExpectations(t)
}

func TestAddPost_Failure(t *testing.T) {
	mockStorage := new(storage.MockStorage)
	resolver, _ := newTestResolver(mockStorage)

	mockStorage.On("AddPost", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	post, err := resolver.Mutation().AddPost(context.Background(), "general", "hi")
	assert.Error(t, err)
	assert.Nil(t, post)

	mockStorage.AssertExpectations(t)
}

func TestAddChannel(t *testing.T) {
	mockStorage := new(storage.MockStorage)
	resolver, _ := newTestResolver(mockStorage)

	mockStorage.On("AddChannel", mock.Anything, models.NewChannel("test")).Return(nil)

	channel, err := resolver.Mutation().AddChannel(context.Background(), "test")
	assert.NoError(t, err)
	require.NotNil(t, channel)
	assert.Equal(t, "test", channel.Name)
	assert.NotNil(t, channel.Posts)
	assert.Empty(t, channel.Posts)

	mockStorage.AssertExpectations(t)
}

func TestAddChannel_Duplicate(t *testing.T) {
	mockStorage := new(storage.MockStorage)
	resolver, bus := newTestResolver(mockStorage)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := bus.Subscribe(ctx, pubsub.TopicNewChannel)
	require.NoError(t, err)

	mockStorage.On("AddChannel", mock.Anything, models.NewChannel("general")).Return(storage.ErrChannelExists)

	channel, err := resolver.Mutation().AddChannel(ctx, "general")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.Nil(t, channel)

	select {
	case <-events:
		t.Fatal("duplicate channel must not be published")
	case <-time.After(50 * time.Millisecond):
	}

	mockStorage.AssertExpectations(t)
}

func TestPosts(t *testing.T) {
	mockStorage := new(storage.MockStorage)
	resolver, _ := newTestResolver(mockStorage)

	expected := []models.Post{
		models.NewPost("cats", "meow world", fixedNow),
		models.NewPost("cats", "hiss", fixedNow),
	}
	mockStorage.On("GetPostsByChannel", mock.Anything, "cats").Return(expected, nil)

	posts, err := resolver.Query().Posts(context.Background(), "cats")
	assert.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "meow world", posts[0].Message)
	assert.Equal(t, "hiss", posts[1].Message)

	mockStorage.AssertExpectations(t)
}

func TestChannels(t *testing.T) {
	mockStorage := new(storage.MockStorage)
	resolver, _ := newTestResolver(mockStorage)

	general := models.NewChannel("general")
	general.Posts = append(general.Posts, models.NewPost("general", "hello world", fixedNow))
	mockStorage.On("GetAllChannels", mock.Anything).Return([]models.Channel{general, models.NewChannel("cats")}, nil)

	channels, err := resolver.Query().Channels(context.Background())
	assert.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "general", channels[0].Name)
	assert.Len(t, channels[0].Posts, 1)
	assert.Equal(t, "cats", channels[1].Name)

	mockStorage.AssertExpectations(t)
}

func TestPostDate(t *testing.T) {
	resolver, _ := newTestResolver(nil)
	post := &models.Post{Channel: "general", Message: "hi", Date: fixedNow}

	t.Run("Default layout", func(t *testing.T) {
		date, err := resolver.Post().Date(context.Background(), post)
		assert.NoError(t, err)
		assert.Equal(t, "3/5/2024", date)
	})

	t.Run("Custom layout", func(t *testing.T) {
		resolver.DateLayout = time.DateOnly
		date, err := resolver.Post().Date(context.Background(), post)
		assert.NoError(t, err)
		assert.Equal(t, "2024-03-05", date)
	})
}

func TestNewPost(t *testing.T) {
	resolver, bus := newTestResolver(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subCh, err := resolver.Subscription().NewPost(ctx, "general")
	require.NoError(t, err)
	require.NotNil(t, subCh)

	require.NoError(t, pubsub.Publish(ctx, bus, pubsub.TopicNewPost, models.NewPost("cats", "meow", fixedNow)))
	require.NoError(t, pubsub.Publish(ctx, bus, pubsub.TopicNewPost, models.NewPost("general", "first", fixedNow)))
	require.NoError(t, pubsub.Publish(ctx, bus, pubsub.TopicNewPost, models.NewPost("general", "second", fixedNow)))

	for _, want := range []string{"first", "second"} {
		select {
		case post := <-subCh:
			assert.Equal(t, want, post.Message)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-subCh
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestNewChannel(t *testing.T) {
	resolver, bus := newTestResolver(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subCh, err := resolver.Subscription().NewChannel(ctx)
	require.NoError(t, err)

	require.NoError(t, pubsub.Publish(ctx, bus, pubsub.TopicNewChannel, models.NewChannel("test")))

	select {
	case channel := <-subCh:
		assert.Equal(t, "test", channel.Name)
		assert.Empty(t, channel.Posts)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for new channel")
	}
}
