// Package kafka implements the moderation bus producer and consumer on top
// of Redpanda/Kafka using franz-go. Delivery is at-least-once: every publish
// blocks for broker acknowledgement, but no transactional wrapping is used.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/blausher/modsvc/internal/domain"
)

// Producer wraps a kgo.Client and implements domain.Bus.
type Producer struct {
	client   *kgo.Client
	topic    string
	dlqTopic string
}

// NewProducer constructs a Producer against the given brokers.
func NewProducer(brokers []string, clientID, topic, dlqTopic string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=kafka.NewProducer: no seed brokers provided")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1000000),
	)
	if err != nil {
		return nil, fmt.Errorf("op=kafka.NewProducer: %w", err)
	}
	return &Producer{client: client, topic: topic, dlqTopic: dlqTopic}, nil
}

// PublishModerationRequest publishes a ModerationRequest for itemID and
// blocks until the broker acknowledges it.
func (p *Producer) PublishModerationRequest(ctx context.Context, itemID int64) error {
	req := domain.ModerationRequest{ItemID: itemID, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("op=kafka.PublishModerationRequest: marshal: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(fmt.Sprintf("%d", itemID)),
		Value: b,
	}
	if err := p.produceSync(ctx, record); err != nil {
		return fmt.Errorf("op=kafka.PublishModerationRequest: %w", err)
	}
	return nil
}

// PublishDeadLetter publishes a DeadLetter envelope to the DLQ topic and
// blocks until the broker acknowledges it.
func (p *Producer) PublishDeadLetter(ctx context.Context, dl domain.DeadLetter) error {
	b, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("op=kafka.PublishDeadLetter: marshal: %w", err)
	}
	record := &kgo.Record{
		Topic: p.dlqTopic,
		Value: b,
	}
	if err := p.produceSync(ctx, record); err != nil {
		return fmt.Errorf("op=kafka.PublishDeadLetter: %w", err)
	}
	return nil
}

func (p *Producer) produceSync(ctx context.Context, record *kgo.Record) error {
	e := kgo.AbortingFirstErrPromise(p.client)
	p.client.Produce(ctx, record, e.Promise())
	if err := e.Err(); err != nil {
		slog.ErrorContext(ctx, "kafka produce failed", slog.String("topic", record.Topic), slog.Any("error", err))
		return err
	}
	return nil
}

// Ping verifies broker connectivity for readiness checks.
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close closes the underlying client.
func (p *Producer) Close() {
	p.client.Close()
}
