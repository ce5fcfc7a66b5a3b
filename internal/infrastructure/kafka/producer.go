package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// TypeHeader carries the event type so consumers can filter without
// decoding the payload.
const TypeHeader = "event-type"

type Producer struct {
	writer *kafka.Writer
}

// NewProducer writes to topic. Messages with the same key land on the same
// partition, so events for one cart owner stay ordered.
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{writer: writer}
}

func (p *Producer) Publish(ctx context.Context, key, eventType string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   data,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: TypeHeader, Value: []byte(eventType)}},
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
