package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dunamismax/iconforge/internal/domain"
	"github.com/segmentio/kafka-go"
)

const (
	TypeAssetCreated  = "asset.created"
	TypeIconSetQueued = "iconset.queued"
	TypeIconSetDone   = "iconset.completed"
	TypeIconSetFailed = "iconset.failed"
)

// Event is the JSON body published for every asset or job change.
type Event struct {
	Type       string               `json:"type"`
	Token      string               `json:"token,omitempty"`
	JobID      string               `json:"job_id,omitempty"`
	Asset      *domain.DerivedAsset `json:"asset,omitempty"`
	Error      string               `json:"error,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopPublisher drops events. It is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }

func (NoopPublisher) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a topic keyed by token or job id so one
// request's events stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	key := event.Token
	if key == "" {
		key = event.JobID
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: body,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write event %s: %w", event.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Open returns a Kafka publisher when brokers are configured and a no-op
// publisher otherwise.
func Open(brokers []string, topic string) (Publisher, error) {
	if len(brokers) == 0 {
		return NoopPublisher{}, nil
	}
	kp, err := NewKafkaPublisher(brokers, topic)
	if err != nil {
		return nil, err
	}
	return kp, nil
}
