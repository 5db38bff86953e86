package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-redis/redis/v8"
)

var _ Bus = (*Redis)(nil)

// Redis - шина поверх Redis PUBLISH/SUBSCRIBE
type Redis struct {
	client *redis.Client
	pubsub *redis.PubSub
	relay  *relay
	logger *log.Logger
	once   sync.Once
	wg     sync.WaitGroup
}

func NewRedis(client *redis.Client, logger *log.Logger, opts ...MemoryOption) *Redis {
	return &Redis{
		client: client,
		pubsub: client.Subscribe(context.Background()),
		relay:  newRelay(NewMemory(logger, opts...)),
		logger: logger,
	}
}

func (r *Redis) run() {
	defer r.wg.Done()

	for msg := range r.pubsub.Channel() {
		r.relay.receive(msg.Channel, []byte(msg.Payload))
	}
	r.logger.Debug("redis subscription loop stopped")
}

func (r *Redis) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := r.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	r.relay.published(topic)
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	err := r.relay.listen(topic, func() error {
		if err := r.pubsub.Subscribe(ctx, topic); err != nil {
			return err
		}
		r.once.Do(func() {
			r.wg.Add(1)
			go r.run()
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return r.relay.local.Subscribe(ctx, topic)
}

func (r *Redis) Close() error {
	err := r.pubsub.Close()
	r.wg.Wait()
	_ = r.relay.local.Close()
	return err
}
