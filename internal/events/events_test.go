package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================
// Bus
// ============================================

func TestBus_PublishInSubscriptionOrder(t *testing.T) {
	bus := NewBus()
	var got []string

	bus.Subscribe(func(e Event) { got = append(got, "first:"+e.Key()) })
	bus.Subscribe(func(e Event) { got = append(got, "second:"+e.Key()) })

	bus.Publish(CartChanged{OwnerKey: "guest:a"})

	assert.Equal(t, []string{"first:guest:a", "second:guest:a"}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0
	unsubscribe := bus.Subscribe(func(Event) { calls++ })

	bus.Publish(CartChanged{})
	unsubscribe()
	unsubscribe()
	bus.Publish(CartChanged{})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.Subscribers())
}

func TestBus_PanickingSubscriberDoesNotStopOthers(t *testing.T) {
	bus := NewBus()
	delivered := false

	bus.Subscribe(func(Event) { panic("boom") })
	bus.Subscribe(func(Event) { delivered = true })

	assert.NotPanics(t, func() { bus.Publish(CartChanged{}) })
	assert.True(t, delivered)
}

func TestOrderPlaced_Key(t *testing.T) {
	e := OrderPlaced{OrderID: 9, UserID: 42}
	assert.Equal(t, TypeOrderPlaced, e.Type())
	assert.Equal(t, "user:42", e.Key())
}

// ============================================
// KafkaForwarder
// ============================================

type publishCall struct {
	Key       string
	EventType string
	Event     any
}

type fakeProducer struct {
	mu    sync.Mutex
	calls []publishCall
	fails int
	done  chan struct{}
}

func (p *fakeProducer) Publish(_ context.Context, key, eventType string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fails > 0 {
		p.fails--
		return errors.New("broker unavailable")
	}
	p.calls = append(p.calls, publishCall{Key: key, EventType: eventType, Event: event})
	if p.done != nil {
		close(p.done)
		p.done = nil
	}
	return nil
}

func TestKafkaForwarder_ForwardsEnvelope(t *testing.T) {
	p := &fakeProducer{fails: 1, done: make(chan struct{})}
	done := p.done
	f := NewKafkaForwarder(p, 4)
	f.retry.Backoff = func(int) time.Duration { return 0 }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	f.Handle(CartChanged{OwnerKey: "user:1", ItemCount: 3, Subtotal: 1500})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not forwarded")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Len(t, p.calls, 1)
	assert.Equal(t, "user:1", p.calls[0].Key)
	assert.Equal(t, TypeCartChanged, p.calls[0].EventType)

	env, ok := p.calls[0].Event.(Envelope)
	require.True(t, ok)
	var payload CartChanged
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, 3, payload.ItemCount)
}

func TestKafkaForwarder_DropsWhenFull(t *testing.T) {
	f := NewKafkaForwarder(&fakeProducer{}, 1)

	f.Handle(CartChanged{OwnerKey: "a"})
	f.Handle(CartChanged{OwnerKey: "b"})

	assert.Equal(t, uint64(1), f.Dropped())
}

func TestKafkaForwarder_DrainsOnShutdown(t *testing.T) {
	p := &fakeProducer{}
	f := NewKafkaForwarder(p, 4)
	f.Handle(CartChanged{OwnerKey: "a"})
	f.Handle(CartChanged{OwnerKey: "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.Run(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Len(t, p.calls, 2)
}
