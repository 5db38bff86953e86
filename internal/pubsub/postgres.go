package pubsub

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lib/pq"
)

var _ Bus = (*Postgres)(nil)

// Postgres - шина поверх LISTEN/NOTIFY. Размер события ограничен 8000 байт.
type Postgres struct {
	db       *sql.DB
	listener *pq.Listener
	relay    *relay
	logger   *log.Logger
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewPostgres(db *sql.DB, dsn string, logger *log.Logger, opts ...MemoryOption) *Postgres {
	p := &Postgres{
		db:     db,
		relay:  newRelay(NewMemory(logger, opts...)),
		logger: logger,
		done:   make(chan struct{}),
	}
	p.listener = pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Error("postgres listener error", "event", ev, "err", err)
		}
	})

	p.wg.Add(1)
	go p.run()
	return p
}

func (p *Postgres) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(90 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			// Проверяем соединение
			if err := p.listener.Ping(); err != nil {
				p.logger.Warn("postgres listener ping failed", "err", err)
			}
		case n, ok := <-p.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// nil приходит после переподключения, события за это время потеряны
				p.logger.Warn("postgres listener reconnected")
				continue
			}
			p.relay.receive(n.Channel, []byte(n.Extra))
		}
	}
}

func (p *Postgres) Publish(ctx context.Context, topic string, payload []byte) error {
	if _, err := p.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", topic, string(payload)); err != nil {
		return fmt.Errorf("notify %s: %w", topic, err)
	}
	p.relay.published(topic)
	return nil
}

func (p *Postgres) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	err := p.relay.listen(topic, func() error {
		return p.listener.Listen(topic)
	})
	if err != nil && !errors.Is(err, pq.ErrChannelAlreadyOpen) {
		return nil, fmt.Errorf("listen %s: %w", topic, err)
	}
	return p.relay.local.Subscribe(ctx, topic)
}

func (p *Postgres) Close() error {
	close(p.done)
	err := p.listener.Close()
	p.wg.Wait()
	_ = p.relay.local.Close()
	return err
}
