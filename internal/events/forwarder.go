package events

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/example/ec-storefront/pkg/retry"
)

// Producer is satisfied by the Kafka producer.
type Producer interface {
	Publish(ctx context.Context, key, eventType string, event any) error
}

// KafkaForwarder relays bus events to a Producer from its own goroutine so
// Publish on the bus never waits on the broker. When the buffer is full the
// event is dropped and counted.
type KafkaForwarder struct {
	producer Producer
	queue    chan Event
	retry    retry.Config
	now      func() time.Time
	dropped  atomic.Uint64
}

func NewKafkaForwarder(p Producer, buffer int) *KafkaForwarder {
	if buffer <= 0 {
		buffer = 256
	}
	return &KafkaForwarder{
		producer: p,
		queue:    make(chan Event, buffer),
		retry: retry.Config{
			MaxAttempts: 3,
			Backoff:     retry.ExponentialBackoff(200 * time.Millisecond),
		},
		now: time.Now,
	}
}

// Handle is the bus subscription callback.
func (f *KafkaForwarder) Handle(e Event) {
	select {
	case f.queue <- e:
	default:
		f.dropped.Add(1)
		log.Printf("[Events] Forwarder queue full, dropped %s for %s", e.Type(), e.Key())
	}
}

// Run publishes queued events until ctx is done, then flushes what is left
// with a short deadline.
func (f *KafkaForwarder) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			f.drain()
			return
		}
		select {
		case e := <-f.queue:
			f.forward(ctx, e)
		case <-ctx.Done():
		}
	}
}

func (f *KafkaForwarder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case e := <-f.queue:
			f.forward(ctx, e)
		default:
			return
		}
	}
}

func (f *KafkaForwarder) forward(ctx context.Context, e Event) {
	env, err := NewEnvelope(e, f.now())
	if err != nil {
		log.Printf("[Events] Failed to encode %s: %v", e.Type(), err)
		return
	}
	err = retry.Do(ctx, f.retry, func() error {
		return f.producer.Publish(ctx, env.Key, env.Type, env)
	})
	if err != nil {
		log.Printf("[Events] Failed to forward %s for %s: %v", env.Type, env.Key, err)
	}
}

func (f *KafkaForwarder) Dropped() uint64 {
	return f.dropped.Load()
}
