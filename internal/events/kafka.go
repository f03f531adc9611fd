package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes events to a single topic, keyed by store id so
// each store's events stay ordered within a partition. The event type
// travels as a message header.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			// Creation latency matters more than batching throughput here;
			// the writer treats zero as its 1s default, so set it explicitly.
			BatchTimeout: 10 * time.Millisecond,
			Async:        false,
		},
	}
}

// Publish writes one event. At-least-once: the broker may deliver
// duplicates, consumers dedupe on (order id, type, occurred at).
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	msg := kafka.Message{
		Key:   []byte(e.StoreID),
		Value: encodeEvent(e),
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, "write message")
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func encodeEvent(ev Event) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("type", func(e *jx.Encoder) { e.Str(ev.Type) })
		e.Field("store_id", func(e *jx.Encoder) { e.Str(ev.StoreID) })
		e.Field("order_id", func(e *jx.Encoder) { e.Str(ev.OrderID) })
		e.Field("order_number", func(e *jx.Encoder) { e.Str(ev.OrderNumber) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(ev.Status)) })
		e.Field("total", func(e *jx.Encoder) { e.Str(ev.Total) })
		e.Field("occurred_at", func(e *jx.Encoder) { e.Str(ev.OccurredAt.Format(time.RFC3339Nano)) })
	})
	return e.Bytes()
}
