package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"plantcare/internal/config"
	"plantcare/internal/models"
	"plantcare/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// ErrDisabled is returned by Publish when no brokers are configured.
var ErrDisabled = errors.New("kafka disabled")

// EnsureTopic creates the purchase-events topic with configured partitions (idempotent).
// Call at startup; if it fails (e.g. no broker or topic exists), app still runs.
func EnsureTopic(ctx context.Context) {
	cfg := config.Get()
	if !cfg.KafkaEnabled() {
		return
	}
	conn, err := kafka.Dial("tcp", cfg.KafkaBrokers[0])
	if err != nil {
		logger.Debug(ctx, "Kafka dial for topic creation failed", "error", err)
		return
	}
	defer conn.Close()
	controller, err := conn.Controller()
	if err != nil {
		logger.Debug(ctx, "Kafka controller lookup failed", "error", err)
		return
	}
	ctrlConn, err := kafka.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		logger.Debug(ctx, "Kafka controller dial failed", "error", err)
		return
	}
	defer ctrlConn.Close()
	err = ctrlConn.CreateTopics(kafka.TopicConfig{
		Topic:             cfg.KafkaTopic,
		NumPartitions:     cfg.KafkaPartitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.Debug(ctx, "Kafka create topic failed (topic may already exist)", "error", err)
		return
	}
	logger.Info(ctx, "Kafka topic ensured", "topic", cfg.KafkaTopic, "partitions", cfg.KafkaPartitions)
}

var (
	writer *kafka.Writer
	wOnce  sync.Once
)

// Producer returns the global Kafka writer for purchase events (initialized on first use).
// nil when Kafka is disabled.
func Producer(ctx context.Context) *kafka.Writer {
	wOnce.Do(func() {
		cfg := config.Get()
		if !cfg.KafkaEnabled() {
			logger.Info(ctx, "Kafka producer disabled (no brokers)")
			return
		}
		// Synchronous: a successful publish must mean the event is stored.
		writer = &kafka.Writer{
			Addr:         kafka.TCP(cfg.KafkaBrokers...),
			Topic:        cfg.KafkaTopic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
		}
		logger.Info(ctx, "Kafka producer initialized", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	})
	return writer
}

// PublishPurchase publishes a purchase event keyed by event id, so redeliveries land on the same partition.
func PublishPurchase(ctx context.Context, ev *models.PurchaseEvent) error {
	w := Producer(ctx)
	if w == nil {
		return ErrDisabled
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.ID),
		Value: payload,
	})
}

// DecodePurchase parses a message value produced by PublishPurchase.
func DecodePurchase(payload []byte) (models.PurchaseEvent, error) {
	var ev models.PurchaseEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, fmt.Errorf("decode purchase event: %w", err)
	}
	if ev.ID == "" {
		return ev, errors.New("decode purchase event: missing id")
	}
	return ev, nil
}

// Close flushes and closes the producer if it was started.
func Close() error {
	if writer == nil {
		return nil
	}
	return writer.Close()
}

// Topic returns the purchase events topic name.
func Topic() string {
	return config.Get().KafkaTopic
}

// Brokers returns Kafka broker addresses.
func Brokers() []string {
	return config.Get().KafkaBrokers
}
