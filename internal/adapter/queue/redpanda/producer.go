// Package redpanda provides Redpanda/Kafka queue integration.
//
// It carries resume analysis tasks from the API server to the worker.
// The producer is transactional so a task is enqueued exactly once even
// when the HTTP request is retried at the broker level.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/jobfindr/matchengine/internal/domain"
)

// TopicAnalyze is the Kafka topic for resume analysis tasks.
const TopicAnalyze = "profile-analyze"

// Producer wraps a transactional Kafka producer and implements
// domain.AnalysisQueue.
type Producer struct {
	client *kgo.Client
	topic  string
	// Serializes transactions; franz-go allows one open transaction per
	// client.
	transactionChan chan struct{}
}

// NewProducer constructs a Producer with exactly-once semantics.
func NewProducer(brokers []string) (*Producer, error) {
	return NewProducerWithTransactionalID(brokers, "matchengine-producer")
}

// NewProducerWithTransactionalID constructs a Producer with a custom
// transactional ID so tests can run multiple producers side by side.
func NewProducerWithTransactionalID(brokers []string, transactionalID string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	slog.Info("creating redpanda producer", slog.Any("brokers", brokers), slog.String("transactional_id", transactionalID))

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.TransactionalID(transactionalID),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1000000),
	)
	if err != nil {
		return nil, fmt.Errorf("redpanda client: %w", err)
	}

	if err := createTopicIfNotExists(context.Background(), client, TopicAnalyze, 1, 1); err != nil {
		slog.Warn("failed to create topic, it may already exist",
			slog.String("topic", TopicAnalyze), slog.Any("error", err))
	}

	return &Producer{
		client:          client,
		topic:           TopicAnalyze,
		transactionChan: make(chan struct{}, 1),
	}, nil
}

// EnqueueAnalyze enqueues a resume analysis task and returns its task id.
func (p *Producer) EnqueueAnalyze(ctx domain.Context, payload domain.AnalyzeTaskPayload) (string, error) {
	taskID := uuid.New().String()

	select {
	case p.transactionChan <- struct{}{}:
		defer func() { <-p.transactionChan }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if err := p.client.BeginTransaction(); err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}

	b, err := json.Marshal(payload)
	if err != nil {
		if abortErr := p.client.EndTransaction(ctx, kgo.TryAbort); abortErr != nil {
			slog.Error("failed to abort transaction", slog.Any("error", abortErr))
		}
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		// Key by user so per-candidate tasks stay ordered.
		Key:   []byte(payload.UserID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "task_id", Value: []byte(taskID)},
			{Key: "user_id", Value: []byte(payload.UserID)},
		},
	}

	e := kgo.AbortingFirstErrPromise(p.client)
	p.client.Produce(ctx, record, e.Promise())
	if err := e.Err(); err != nil {
		if abortErr := p.client.EndTransaction(ctx, kgo.TryAbort); abortErr != nil {
			slog.Error("failed to abort transaction", slog.Any("error", abortErr))
		}
		return "", fmt.Errorf("produce: %w", err)
	}

	if err := p.client.EndTransaction(ctx, kgo.TryCommit); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}

	slog.Info("analysis task enqueued",
		slog.String("topic", p.topic),
		slog.String("task_id", taskID),
		slog.String("user_id", payload.UserID))
	return taskID, nil
}

// Ping checks broker connectivity; used by the readiness probe.
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close closes the producer.
func (p *Producer) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}
