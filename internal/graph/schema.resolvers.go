package graph

// This file will be automatically regenerated based on the schema, any resolver implementations
// will be copied through when generating and any unknown code will be moved to the end.
// Code generated by github.com/99designs/gqlgen version v0.17.66

import (
	"context"
	"errors"

	"github.com/MosinFAM/graphql-channels/internal/models"
	"github.com/MosinFAM/graphql-channels/internal/pubsub"
	"github.com/MosinFAM/graphql-channels/internal/storage"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// AddPost is the resolver for the addPost field.
func (r *mutationResolver) AddPost(ctx context.Context, channel string, message string) (*models.Post, error) {
	post := models.NewPost(channel, message, r.now())

	err := r.Storage.AddPost(ctx, post)
	switch {
	case errors.Is(err, storage.ErrChannelNotFound):
		// Пост все равно возвращается и публикуется, но в хранилище не попадает
		r.Logger.Warn("post is not stored: unknown channel", "channel", channel)
	case err != nil:
		r.Logger.Error("failed to add post", "channel", channel, "err", err)
		return nil, err
	}

	if err := pubsub.Publish(ctx, r.Bus, pubsub.TopicNewPost, post); err != nil {
		r.Logger.Error("failed to publish new post", "channel", channel, "err", err)
	}

	return &post, nil
}

// AddChannel is the resolver for the addChannel field.
func (r *mutationResolver) AddChannel(ctx context.Context, name string) (*models.Channel, error) {
	channel := models.NewChannel(name)

	if err := r.Storage.AddChannel(ctx, channel); err != nil {
		if errors.Is(err, storage.ErrChannelExists) {
			return nil, gqlerror.Errorf("channel %q already exists", name)
		}
		r.Logger.Error("failed to add channel", "channel", name, "err", err)
		return nil, err
	}

	if err := pubsub.Publish(ctx, r.Bus, pubsub.TopicNewChannel, channel); err != nil {
		r.Logger.Error("failed to publish new channel", "channel", name, "err", err)
	}

	return &channel, nil
}

// Date is the resolver for the date field.
func (r *postResolver) Date(ctx context.Context, obj *models.Post) (string, error) {
	return obj.Date.Local().Format(r.dateLayout()), nil
}

// Posts is the resolver for the posts field.
func (r *queryResolver) Posts(ctx context.Context, channel string) ([]*models.Post, error) {
	posts, err := r.Storage.GetPostsByChannel(ctx, channel)
	if err != nil {
		r.Logger.Error("failed to fetch posts", "channel", channel, "err", err)
		return nil, err
	}

	result := make([]*models.Post, 0, len(posts))
	for i := range posts {
		result = append(result, &posts[i])
	}
	return result, nil
}

// Channels is the resolver for the channels field.
func (r *queryResolver) Channels(ctx context.Context) ([]*models.Channel, error) {
	channels, err := r.Storage.GetAllChannels(ctx)
	if err != nil {
		r.Logger.Error("failed to fetch channels", "err", err)
		return nil, err
	}

	result := make([]*models.Channel, 0, len(channels))
	for i := range channels {
		result = append(result, &channels[i])
	}
	return result, nil
}

// NewPost is the resolver for the newPost field.
func (r *subscriptionResolver) NewPost(ctx context.Context, channel string) (<-chan *models.Post, error) {
	events, err := pubsub.Subscribe[models.Post](ctx, r.Bus, pubsub.TopicNewPost, r.Logger)
	if err != nil {
		return nil, err
	}

	ch := make(chan *models.Post, 1)

	// Горутина отбирает события только нужного канала
	go func() {
		defer close(ch)
		for post := range events {
			if post.Channel != channel {
				continue
			}
			select {
			case ch <- &post:
			case <-ctx.Done():
				return // Контекст отменён, выходим
			}
		}
	}()

	return ch, nil
}

// NewChannel is the resolver for the newChannel field.
func (r *subscriptionResolver) NewChannel(ctx context.Context) (<-chan *models.Channel, error) {
	events, err := pubsub.Subscribe[models.Channel](ctx, r.Bus, pubsub.TopicNewChannel, r.Logger)
	if err != nil {
		return nil, err
	}

	ch := make(chan *models.Channel, 1)

	go func() {
		defer close(ch)
		for channel := range events {
			select {
			case ch <- &channel:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// Mutation returns MutationResolver implementation.
func (r *Resolver) Mutation() MutationResolver { return &mutationResolver{r} }

// Post returns PostResolver implementation.
func (r *Resolver) Post() PostResolver { return &postResolver{r} }

// Query returns QueryResolver implementation.
func (r *Resolver) Query() QueryResolver { return &queryResolver{r} }

// Subscription returns SubscriptionResolver implementation.
func (r *Resolver) Subscription() SubscriptionResolver { return &subscriptionResolver{r} }

type mutationResolver struct{ *Resolver }
type postResolver struct{ *Resolver }
type queryResolver struct{ *Resolver }
type subscriptionResolver struct{ *Resolver }
