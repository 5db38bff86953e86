package pubsub

import "sync"

// relay раздает события удаленной шины локальным подписчикам.
// Удаленная подписка на topic оформляется один раз и живет до Close.
type relay struct {
	local  *Memory
	mu     sync.Mutex
	topics map[string]struct{}
}

func newRelay(local *Memory) *relay {
	return &relay{
		local:  local,
		topics: make(map[string]struct{}),
	}
}

func (r *relay) listen(topic string, subscribe func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.topics[topic]; ok {
		return nil
	}
	if err := subscribe(); err != nil {
		return err
	}
	r.topics[topic] = struct{}{}
	return nil
}

// published учитывает событие, отправленное в удаленную шину этим процессом
func (r *relay) published(topic string) {
	r.local.observer.Published(topic)
}

// receive раздает событие из удаленной шины локальным подписчикам
func (r *relay) receive(topic string, payload []byte) {
	r.local.deliver(topic, payload)
}
