package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/jobfindr/matchengine/internal/domain"
	"github.com/jobfindr/matchengine/internal/observability"
)

// Consumer reads analysis tasks from the topic and runs them through the
// handler with a bounded worker pool.
type Consumer struct {
	client  *kgo.Client
	handler AnalysisHandler
	groupID string
	topic   string
	workers int
}

// NewConsumer constructs a Consumer in the given consumer group.
func NewConsumer(brokers []string, groupID string, handler AnalysisHandler, workers int) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	if groupID == "" {
		return nil, fmt.Errorf("missing required group ID")
	}
	if workers < 1 {
		workers = 1
	}

	kotelService := kotel.NewKotel(kotel.WithTracer(kotel.NewTracer(
		kotel.TracerProvider(otel.GetTracerProvider()),
	)))

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(TopicAnalyze),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
		kgo.WithHooks(kotelService.Hooks()...),
		kgo.DialTimeout(10*time.Second),
		kgo.SessionTimeout(30*time.Second),
		kgo.HeartbeatInterval(3*time.Second),
		kgo.AutoCommitMarks(),
		kgo.AutoCommitInterval(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("redpanda consumer client: %w", err)
	}

	slog.Info("redpanda consumer created",
		slog.Any("brokers", brokers),
		slog.String("group_id", groupID),
		slog.String("topic", TopicAnalyze),
		slog.Int("workers", workers))
	return &Consumer{
		client:  client,
		handler: handler,
		groupID: groupID,
		topic:   TopicAnalyze,
		workers: workers,
	}, nil
}

// Start consumes until the context is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	records := make(chan *kgo.Record, c.workers*2)
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for rec := range records {
				if err := c.processRecord(ctx, rec); err != nil {
					slog.Error("analysis task failed",
						slog.Int("worker_id", id),
						slog.Int64("offset", rec.Offset),
						slog.Any("error", err))
					continue
				}
				c.client.MarkCommitRecords(rec)
			}
		}(i)
	}

	for {
		if ctx.Err() != nil {
			break
		}
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			break
		}
		for _, fetchErr := range fetches.Errors() {
			slog.Error("fetch error",
				slog.String("topic", fetchErr.Topic),
				slog.Int("partition", int(fetchErr.Partition)),
				slog.Any("error", fetchErr.Err))
		}
		fetches.EachRecord(func(rec *kgo.Record) {
			records <- rec
		})
	}

	close(records)
	wg.Wait()
	return ctx.Err()
}

// processRecord unmarshals one task and hands it to the handler with a
// request-scoped logger so downstream logs stay correlated.
func (c *Consumer) processRecord(ctx context.Context, rec *kgo.Record) error {
	tracer := otel.Tracer("queue.consumer")
	ctx, span := tracer.Start(ctx, "ProcessAnalyzeTask")
	defer span.End()

	var payload domain.AnalyzeTaskPayload
	if err := json.Unmarshal(rec.Value, &payload); err != nil {
		// Poison message; log and drop rather than block the partition.
		slog.Error("unparseable task payload dropped",
			slog.Int64("offset", rec.Offset),
			slog.Any("error", err))
		return nil
	}

	taskID := ""
	for _, h := range rec.Headers {
		if h.Key == "task_id" {
			taskID = string(h.Value)
			break
		}
	}
	lg := observability.LoggerFromContext(ctx).With(
		slog.String("task_id", taskID),
		slog.String("user_id", payload.UserID),
	)
	ctx = observability.ContextWithLogger(ctx, lg)

	lg.Info("processing analysis task")
	return c.handler.Handle(ctx, payload)
}

// Close closes the consumer client.
func (c *Consumer) Close() error {
	if c.client != nil {
		c.client.Close()
	}
	return nil
}
