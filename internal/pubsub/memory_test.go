package pubsub

import (
	"context"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
}

type countingObserver struct {
	mu           sync.Mutex
	published    int
	dropped      int
	subscribed   int
	unsubscribed int
}

func (o *countingObserver) Published(string)    { o.mu.Lock(); o.published++; o.mu.Unlock() }
func (o *countingObserver) Dropped(string)      { o.mu.Lock(); o.dropped++; o.mu.Unlock() }
func (o *countingObserver) Subscribed(string)   { o.mu.Lock(); o.subscribed++; o.mu.Unlock() }
func (o *countingObserver) Unsubscribed(string) { o.mu.Lock(); o.unsubscribed++; o.mu.Unlock() }

func newTestBus(opts ...MemoryOption) *Memory {
	return NewMemory(log.New(io.Discard), opts...)
}

func receive(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case payload, ok := <-ch:
		require.True(t, ok, "channel closed")
		return payload
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestMemory_Publish(t *testing.T) {
	t.Run("All subscribers of the topic receive the event", func(t *testing.T) {
		bus := newTestBus()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch1, err := bus.Subscribe(ctx, TopicNewPost)
		require.NoError(t, err)
		ch2, err := bus.Subscribe(ctx, TopicNewPost)
		require.NoError(t, err)

		require.NoError(t, bus.Publish(ctx, TopicNewPost, []byte("hello")))

		assert.Equal(t, "hello", string(receive(t, ch1)))
		assert.Equal(t, "hello", string(receive(t, ch2)))
	})

	t.Run("Other topics are not delivered", func(t *testing.T) {
		bus := newTestBus()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		posts, err := bus.Subscribe(ctx, TopicNewPost)
		require.NoError(t, err)

		require.NoError(t, bus.Publish(ctx, TopicNewChannel, []byte("general")))

		select {
		case <-posts:
			t.Fatal("NEW_POST subscriber should not receive NEW_CHANNEL events")
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("Publishing without subscribers does not fail", func(t *testing.T) {
		bus := newTestBus()
		assert.NoError(t, bus.Publish(context.Background(), TopicNewPost, []byte("nobody")))
	})

	t.Run("Late subscriber does not see earlier events", func(t *testing.T) {
		bus := newTestBus()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		require.NoError(t, bus.Publish(ctx, TopicNewPost, []byte("early")))

		ch, err := bus.Subscribe(ctx, TopicNewPost)
		require.NoError(t, err)
		require.NoError(t, bus.Publish(ctx, TopicNewPost, []byte("late")))

		assert.Equal(t, "late", string(receive(t, ch)))
	})
}

func TestMemory_Order(t *testing.T) {
	bus := newTestBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, TopicNewPost)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(ctx, TopicNewPost, []byte(strconv.Itoa(i))))
	}
	for i := 0; i < 20; i++ {
		assert.Equal(t, strconv.Itoa(i), string(receive(t, ch)))
	}
}

func TestMemory_SlowSubscriberKeepsAllEvents(t *testing.T) {
	observer := &countingObserver{}
	bus := newTestBus(WithObserver(observer))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, TopicNewPost)
	require.NoError(t, err)

	// подписчик ничего не читает, пока идет публикация
	const burst = 500
	for i := 0; i < burst; i++ {
		require.NoError(t, bus.Publish(ctx, TopicNewPost, []byte(strconv.Itoa(i))))
	}

	for i := 0; i < burst; i++ {
		require.Equal(t, strconv.Itoa(i), string(receive(t, ch)))
	}
	observer.mu.Lock()
	assert.Equal(t, burst, observer.published)
	assert.Equal(t, 0, observer.dropped)
	observer.mu.Unlock()
}

func TestMemory_MaxPendingDropsEvents(t *testing.T) {
	observer := &countingObserver{}
	bus := newTestBus(WithMaxPending(1), WithObserver(observer))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, TopicNewPost)
	require.NoError(t, err)

	var s *subscriber
	bus.mu.RLock()
	for _, v := range bus.subs[TopicNewPost] {
		s = v
	}
	bus.mu.RUnlock()
	require.NotNil(t, s)

	require.NoError(t, bus.Publish(ctx, TopicNewPost, []byte("first")))
	// first уже забран из очереди и ждет читателя
	require.Eventually(t, func() bool { return s.pending() == 0 }, time.Second, time.Millisecond)

	require.NoError(t, bus.Publish(ctx, TopicNewPost, []byte("second")))
	require.NoError(t, bus.Publish(ctx, TopicNewPost, []byte("third")))

	assert.Equal(t, "first", string(receive(t, ch)))
	assert.Equal(t, "second", string(receive(t, ch)))
	observer.mu.Lock()
	assert.Equal(t, 3, observer.published)
	assert.Equal(t, 1, observer.dropped)
	observer.mu.Unlock()
}

func TestRelay_CountsOnlyOwnPublications(t *testing.T) {
	observer := &countingObserver{}
	local := newTestBus(WithObserver(observer))
	r := newRelay(local)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := local.Subscribe(ctx, TopicNewPost)
	require.NoError(t, err)

	r.receive(TopicNewPost, []byte("from another replica"))
	assert.Equal(t, "from another replica", string(receive(t, ch)))

	observer.mu.Lock()
	assert.Equal(t, 0, observer.published)
	observer.mu.Unlock()

	r.published(TopicNewPost)
	observer.mu.Lock()
	assert.Equal(t, 1, observer.published)
	observer.mu.Unlock()
}

func TestMemory_Unsubscribe(t *testing.T) {
	observer := &countingObserver{}
	bus := newTestBus(WithObserver(observer))
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.Subscribe(ctx, TopicNewChannel)
	require.NoError(t, err)
	assert.Equal(t, 1, bus.Subscribers(TopicNewChannel))

	cancel()

	require.Eventually(t, func() bool {
		return bus.Subscribers(TopicNewChannel) == 0
	}, time.Second, 10*time.Millisecond)

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after cancel")
	observer.mu.Lock()
	assert.Equal(t, 1, observer.unsubscribed)
	observer.mu.Unlock()
}

func TestMemory_Close(t *testing.T) {
	bus := newTestBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, TopicNewPost)
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	_, ok := <-ch
	assert.False(t, ok)

	after, err := bus.Subscribe(ctx, TopicNewPost)
	require.NoError(t, err)
	_, ok = <-after
	assert.False(t, ok, "subscriptions after Close get a closed channel")
}

func TestMemory_Concurrent(t *testing.T) {
	bus := newTestBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const subscribers = 10
	const publications = 5

	chans := make([]<-chan []byte, subscribers)
	for i := range chans {
		ch, err := bus.Subscribe(ctx, TopicNewPost)
		require.NoError(t, err)
		chans[i] = ch
	}

	var wg sync.WaitGroup
	for i := 0; i < publications; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, bus.Publish(ctx, TopicNewPost, []byte(strconv.Itoa(i))))
		}(i)
	}
	wg.Wait()

	for i, ch := range chans {
		for j := 0; j < publications; j++ {
			receive(t, ch)
		}
		assert.Len(t, ch, 0, "subscriber %d got unexpected extra events", i)
	}
}

func TestTypedPublishSubscribe(t *testing.T) {
	bus := newTestBus()
	logger := log.New(io.Discard)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := Subscribe[event](ctx, bus, TopicNewPost, logger)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, TopicNewPost, []byte("{not json")))
	require.NoError(t, Publish(ctx, bus, TopicNewPost, event{Channel: "general", Message: "hi"}))

	select {
	case ev := <-events:
		assert.Equal(t, event{Channel: "general", Message: "hi"}, ev)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for typed event")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-events
		return !ok
	}, time.Second, 10*time.Millisecond)
}
