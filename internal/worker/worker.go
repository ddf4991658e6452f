package worker

import (
	"context"
	"sync/atomic"

	"plantcare/internal/caregen"
	"plantcare/internal/config"
	"plantcare/internal/models"
	"plantcare/internal/queue"
	"plantcare/pkg/logger"

	"github.com/segmentio/kafka-go"
)

const consumerGroup = "care-generators"

// PurchaseProcessor is implemented by *caregen.Generator.
type PurchaseProcessor interface {
	ProcessPurchase(ctx context.Context, ev models.PurchaseEvent) caregen.Report
}

// Run starts the Kafka consumer: reads purchase events and generates care tasks.
// One consumer per process; scale by running more replicas (consumer group shares partitions).
func Run(ctx context.Context, p PurchaseProcessor) {
	cfg := config.Get()
	if !cfg.KafkaEnabled() {
		logger.Info(ctx, "Worker disabled (no Kafka brokers)")
		return
	}
	topic := queue.Topic()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  queue.Brokers(),
		Topic:    topic,
		GroupID:  consumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	var processed int64
	logger.Info(ctx, "Kafka consumer started", "topic", topic, "group", consumerGroup)
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info(ctx, "Kafka consumer stopped", "processed", atomic.LoadInt64(&processed))
				return
			}
			logger.Error(ctx, "Worker fetch failed", "error", err)
			continue
		}
		if err := handleMessage(ctx, p, msg.Value); err != nil {
			logger.Error(ctx, "Worker handle failed", "error", err, "offset", msg.Offset, "partition", msg.Partition)
			// Commit anyway to avoid poison pill blocking the partition
			_ = reader.CommitMessages(ctx, msg)
			continue
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			logger.Error(ctx, "Worker commit failed", "error", err)
		}
		atomic.AddInt64(&processed, 1)
	}
}

// handleMessage only fails on undecodable payloads; per-item care failures are logged by the processor.
func handleMessage(ctx context.Context, p PurchaseProcessor, payload []byte) error {
	ev, err := queue.DecodePurchase(payload)
	if err != nil {
		return err
	}
	p.ProcessPurchase(ctx, ev)
	return nil
}
