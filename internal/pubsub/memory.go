package pubsub

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

var _ Bus = (*Memory)(nil)

// Memory - шина в памяти процесса. Публикация не блокируется: у каждого подписчика
// своя очередь, которая по умолчанию не ограничена.
type Memory struct {
	mu         sync.RWMutex
	subs       map[string]map[string]*subscriber // topic -> subscriberID -> подписчик
	maxPending int
	logger     *log.Logger
	observer   Observer
	closed     bool
}

type MemoryOption func(*Memory)

// WithMaxPending ограничивает очередь подписчика n событиями. При переполнении
// новые события для этого подписчика отбрасываются. 0 - без ограничения.
func WithMaxPending(n int) MemoryOption {
	return func(b *Memory) {
		if n >= 0 {
			b.maxPending = n
		}
	}
}

func WithObserver(o Observer) MemoryOption {
	return func(b *Memory) {
		if o != nil {
			b.observer = o
		}
	}
}

func NewMemory(logger *log.Logger, opts ...MemoryOption) *Memory {
	b := &Memory{
		subs:     make(map[string]map[string]*subscriber),
		logger:   logger,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Memory) Publish(_ context.Context, topic string, payload []byte) error {
	b.observer.Published(topic)
	b.deliver(topic, payload)
	return nil
}

// deliver раздает событие подписчикам topic, не учитывая его как опубликованное
func (b *Memory) deliver(topic string, payload []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, sub := range b.subs[topic] {
		if !sub.push(payload) {
			b.observer.Dropped(topic)
			b.logger.Warn("subscriber queue is full, dropping event", "topic", topic, "subscriber", id)
		}
	}
}

func (b *Memory) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	id := uuid.NewString()
	sub := newSubscriber(b.maxPending)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.stop()
		return sub.out, nil
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[string]*subscriber)
	}
	b.subs[topic][id] = sub
	b.mu.Unlock()

	b.observer.Subscribed(topic)
	b.logger.Debug("subscribed", "topic", topic, "subscriber", id)

	// Отписка при завершении контекста
	go func() {
		select {
		case <-ctx.Done():
			b.unsubscribe(topic, id)
		case <-sub.done:
		}
	}()

	return sub.out, nil
}

func (b *Memory) unsubscribe(topic, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[topic][id]
	if !ok {
		return
	}
	delete(b.subs[topic], id)
	if len(b.subs[topic]) == 0 {
		delete(b.subs, topic)
	}
	sub.stop()

	b.observer.Unsubscribed(topic)
	b.logger.Debug("unsubscribed", "topic", topic, "subscriber", id)
}

// Subscribers возвращает число активных подписчиков topic
func (b *Memory) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs[topic])
}

// Close останавливает всех подписчиков. Новые подписки получают закрытый канал.
func (b *Memory) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, subs := range b.subs {
		for _, sub := range subs {
			sub.stop()
			b.observer.Unsubscribed(topic)
		}
	}
	b.subs = make(map[string]map[string]*subscriber)
	b.closed = true
	return nil
}

// subscriber - FIFO-очередь одного подписчика. Горутина run перекладывает
// события из очереди в out, пока подписчик не остановлен.
type subscriber struct {
	out        chan []byte
	notify     chan struct{}
	done       chan struct{}
	maxPending int

	mu      sync.Mutex
	queue   [][]byte
	stopped sync.Once
}

func newSubscriber(maxPending int) *subscriber {
	s := &subscriber{
		out:        make(chan []byte),
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
		maxPending: maxPending,
	}
	go s.run()
	return s
}

// push ставит событие в очередь. false - очередь переполнена, событие отброшено.
func (s *subscriber) push(payload []byte) bool {
	s.mu.Lock()
	if s.maxPending > 0 && len(s.queue) >= s.maxPending {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, payload)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return true
}

func (s *subscriber) pop() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return nil, false
	}
	payload := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return payload, true
}

func (s *subscriber) run() {
	defer close(s.out)

	for {
		payload, ok := s.pop()
		if !ok {
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}

		select {
		case s.out <- payload:
		case <-s.done:
			return
		}
	}
}

// pending - число событий, ожидающих доставки
func (s *subscriber) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.queue)
}

func (s *subscriber) stop() {
	s.stopped.Do(func() { close(s.done) })
}
