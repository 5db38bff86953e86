package pubsub

// Observer получает уведомления о работе шины (метрики)
type Observer interface {
	Published(topic string)
	Dropped(topic string)
	Subscribed(topic string)
	Unsubscribed(topic string)
}

type nopObserver struct{}

func (nopObserver) Published(string)    {}
func (nopObserver) Dropped(string)      {}
func (nopObserver) Subscribed(string)   {}
func (nopObserver) Unsubscribed(string) {}
