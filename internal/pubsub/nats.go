package pubsub

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"
)

var _ Bus = (*NATS)(nil)

// NATS - шина поверх core NATS (без JetStream, без повторной доставки)
type NATS struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	relay  *relay
	logger *log.Logger
}

func NewNATS(url string, logger *log.Logger, opts ...MemoryOption) (*NATS, error) {
	nc, err := nats.Connect(url, nats.Name("graphql-channels"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATS{
		conn:   nc,
		relay:  newRelay(NewMemory(logger, opts...)),
		logger: logger,
	}, nil
}

func (n *NATS) Publish(_ context.Context, topic string, payload []byte) error {
	if err := n.conn.Publish(topic, payload); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	n.relay.published(topic)
	return nil
}

func (n *NATS) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	err := n.relay.listen(topic, func() error {
		sub, err := n.conn.Subscribe(topic, func(m *nats.Msg) {
			n.relay.receive(m.Subject, m.Data)
		})
		if err != nil {
			return err
		}
		n.subs = append(n.subs, sub)
		return n.conn.Flush()
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return n.relay.local.Subscribe(ctx, topic)
}

func (n *NATS) Close() error {
	n.relay.mu.Lock()
	subs := n.subs
	n.relay.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			n.logger.Warn("nats unsubscribe failed", "subject", sub.Subject, "err", err)
		}
	}
	n.conn.Close()
	return n.relay.local.Close()
}
