package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/field-readiness-service/internal/config"
	"github.com/couchcryptid/field-readiness-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// AuditWriter publishes calibration adjustments to a Kafka topic.
// It implements domain.AuditPublisher.
type AuditWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewAuditWriter creates a Kafka producer for the configured audit topic.
func NewAuditWriter(cfg *config.Config, logger *slog.Logger) *AuditWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAuditTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: 10 * time.Second,
	}
	return &AuditWriter{writer: w, logger: logger}
}

// Publish serializes adj and writes it synchronously, keyed by the reference
// field so one field's adjustments stay ordered on a partition.
func (w *AuditWriter) Publish(ctx context.Context, adj domain.CalibrationAdjustment) error {
	msg, err := serializeToMessage(adj)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish adjustment %s: %w", adj.ID, err)
	}
	w.logger.Debug("adjustment published", "adjustment_id", adj.ID, "topic", w.writer.Topic)
	return nil
}

func (w *AuditWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a CalibrationAdjustment into a Kafka message.
func serializeToMessage(adj domain.CalibrationAdjustment) (kafkago.Message, error) {
	data, err := json.Marshal(adj)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize calibration adjustment: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(adj.RefFieldID),
		Value: data,
		Time:  adj.CreatedAt,
		Headers: []kafkago.Header{
			{Key: "adjustment_id", Value: []byte(adj.ID)},
			{Key: "feel", Value: []byte(adj.Feel)},
			{Key: "storage_mult", Value: []byte(strconv.FormatFloat(adj.StorageMult, 'f', -1, 64))},
			{Key: "created_at", Value: []byte(adj.CreatedAt.Format(time.RFC3339))},
		},
	}, nil
}
