// Package pubsub содержит шину событий для GraphQL-подписок.
//
// Все реализации доставляют событие только тем подписчикам, которые были
// подключены в момент публикации. Порядок событий для одного подписчика
// совпадает с порядком публикации.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
)

const (
	TopicNewPost    = "NEW_POST"
	TopicNewChannel = "NEW_CHANNEL"
)

// Bus - интерфейс шины (in-memory, PostgreSQL, Redis, NATS)
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe возвращает канал событий. Канал закрывается после отмены ctx.
	Subscribe(ctx context.Context, topic string) (<-chan []byte, error)
	Close() error
}

// Publish кодирует событие в JSON и публикует его в topic
func Publish[T any](ctx context.Context, bus Bus, topic string, event T) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", topic, err)
	}
	return bus.Publish(ctx, topic, payload)
}

// Subscribe подписывается на topic и декодирует события в T.
// Некорректные сообщения пропускаются и логируются.
func Subscribe[T any](ctx context.Context, bus Bus, topic string, logger *log.Logger) (<-chan T, error) {
	raw, err := bus.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}

	out := make(chan T, 1)
	go func() {
		defer close(out)
		for payload := range raw {
			var event T
			if err := json.Unmarshal(payload, &event); err != nil {
				logger.Warn("skipping malformed event", "topic", topic, "err", err)
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
