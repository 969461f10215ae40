// Package events publishes checkout events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/xenking/kart-checkout/internal/domain/order"
)

// TypeOrderSubmitted is the type of the event emitted after an order is
// accepted by the backend.
const TypeOrderSubmitted = "order.submitted"

// Publisher emits checkout events.
type Publisher interface {
	OrderSubmitted(ctx context.Context, s order.Submission) error
	Close() error
}

// OrderSubmitted is the payload of an order.submitted event.
type OrderSubmitted struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	order.Submission
}

// NewOrderSubmitted builds the event for a submission.
func NewOrderSubmitted(s order.Submission) OrderSubmitted {
	return OrderSubmitted{
		EventID:    uuid.NewString(),
		Type:       TypeOrderSubmitted,
		Submission: s,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON messages keyed by session ID, so the
// events of one session stay ordered within a partition.
type KafkaPublisher struct {
	w messageWriter
}

// ParseBrokers splits a comma-separated broker list, dropping blanks.
func ParseBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// NewPublisher returns a Kafka publisher for topic, or a no-op publisher
// when no brokers are configured.
func NewPublisher(brokersCSV, topic string) Publisher {
	brokers := ParseBrokers(brokersCSV)
	if len(brokers) == 0 {
		return Nop{}
	}
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}}
}

// OrderSubmitted publishes an order.submitted event.
func (p *KafkaPublisher) OrderSubmitted(ctx context.Context, s order.Submission) error {
	data, err := json.Marshal(NewOrderSubmitted(s))
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	msg := kafka.Message{
		Key:   []byte(s.SessionID),
		Value: data,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(TypeOrderSubmitted)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, "write message")
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// Nop discards events.
type Nop struct{}

func (Nop) OrderSubmitted(context.Context, order.Submission) error { return nil }
func (Nop) Close() error                                          { return nil }
