package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Handler processes one raw record value, including its own JSON decoding
// and failure handling (including publishing to the dead-letter topic on any
// failure). The Consumer commits the offset regardless of the returned
// error, since every failure mode is expected to already have been routed to
// the DLQ by the handler before returning.
type Handler func(ctx context.Context, raw []byte) error

// Consumer polls the moderation topic and dispatches each record to a Handler.
type Consumer struct {
	client       *kgo.Client
	fetchTimeout time.Duration
}

// NewConsumer constructs a Consumer subscribed to topic under groupID.
func NewConsumer(brokers []string, clientID, groupID, topic string, fetchTimeout time.Duration) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=kafka.NewConsumer: no seed brokers provided")
	}
	if groupID == "" {
		return nil, fmt.Errorf("op=kafka.NewConsumer: missing required group id")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topic),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
		kgo.RequireStableFetchOffsets(),
		kgo.FetchMaxBytes(1048576),
		kgo.FetchMaxWait(100*time.Millisecond),
		kgo.FetchMinBytes(1),
		kgo.DialTimeout(30*time.Second),
		kgo.RequestTimeoutOverhead(10*time.Second),
		kgo.RetryTimeout(60*time.Second),
		kgo.SessionTimeout(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("op=kafka.NewConsumer: %w", err)
	}
	return &Consumer{client: client, fetchTimeout: fetchTimeout}, nil
}

// Run polls until ctx is cancelled, dispatching every fetched record to
// handle. Each batch is processed by up to concurrency records at a time;
// the next batch isn't fetched until the whole current one has been handled
// and its offsets committed. A single poll's fetch errors are logged and
// backed off; they do not stop the loop, mirroring at-least-once consumption
// under transient broker unavailability.
func (c *Consumer) Run(ctx context.Context, handle Handler, concurrency int) {
	if concurrency < 1 {
		concurrency = 1
	}
	slog.InfoContext(ctx, "moderation consumer starting", slog.Int("concurrency", concurrency))
	sem := make(chan struct{}, concurrency)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "moderation consumer shutting down")
			return
		default:
		}

		fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
		fetches := c.client.PollFetches(fetchCtx)
		cancel()

		if errs := fetches.Errors(); len(errs) > 0 {
			for _, e := range errs {
				slog.ErrorContext(ctx, "moderation fetch error", slog.String("topic", e.Topic), slog.Int("partition", int(e.Partition)), slog.Any("error", e.Err))
			}
			time.Sleep(2 * time.Second)
			continue
		}

		if fetches.NumRecords() == 0 {
			continue
		}

		var wg sync.WaitGroup
		fetches.EachRecord(func(record *kgo.Record) {
			sem <- struct{}{}
			wg.Add(1)
			go func(record *kgo.Record) {
				defer wg.Done()
				defer func() { <-sem }()
				c.processRecord(ctx, record, handle)
			}(record)
		})
		wg.Wait()

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			slog.ErrorContext(ctx, "moderation consumer commit failed", slog.Any("error", err))
		}
	}
}

func (c *Consumer) processRecord(ctx context.Context, record *kgo.Record, handle Handler) {
	if err := handle(ctx, record.Value); err != nil {
		slog.ErrorContext(ctx, "moderation handler failed",
			slog.Int64("offset", record.Offset), slog.Any("error", err))
	}
}

// Close closes the underlying client.
func (c *Consumer) Close() {
	c.client.Close()
}
