package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/churchpay-reconciliation/internal/config"
)

// ReconciliationEventProducer publishes payout reconciliation outcomes so the
// dashboard and downstream consumers refresh without polling. Publishing is
// best-effort from the engine's point of view: a failed publish never fails
// the reconciliation that produced it.
type ReconciliationEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewReconciliationEventProducer creates the producer and ensures the events
// topic exists.
func NewReconciliationEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*ReconciliationEventProducer, error) {
	if cfg.EventsTopic == "" {
		return nil, fmt.Errorf("kafka events topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for reconciliation event producer: %w", err)
	}
	defer conn.Close()

	if err := createKafkaTopicIfNotExists(conn, cfg.EventsTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure events topic %s exists: %w", cfg.EventsTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.EventsTopic,
		Balancer:     &kafka.Hash{}, // Keep one payout's events on one partition
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &ReconciliationEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.EventsTopic,
	}, nil
}

// Publish writes one event keyed by payout reference.
func (p *ReconciliationEventProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal reconciliation event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish reconciliation event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish reconciliation event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published reconciliation event",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *ReconciliationEventProducer) Close() error {
	p.logger.Info("Closing reconciliation event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
