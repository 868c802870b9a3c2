package events

import (
	"context"
	"strconv"

	"whispr/backend/internal/models"

	"github.com/segmentio/kafka-go"
)

// Producer writes friend events to a Kafka topic, keyed by sender so events
// for one user stay ordered within a partition.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
	return &Producer{writer: w}
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// Send implements Sender.
func (p *Producer) Send(ctx context.Context, ev *models.FriendEvent) error {
	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(ev.SenderID), 10)),
		Value: []byte(ev.Payload),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
