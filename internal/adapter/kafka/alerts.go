package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/firewatch-etl/internal/config"
	"github.com/couchcryptid/firewatch-etl/internal/domain"
)

// AlertWriter publishes fire alerts to the alert topic. It implements
// domain.AlertPublisher.
type AlertWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewAlertWriter creates a Kafka producer for the configured alert topic.
func NewAlertWriter(cfg *config.Config, logger *slog.Logger) *AlertWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlertTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &AlertWriter{writer: w, logger: logger}
}

// Publish serializes and sends one alert.
func (w *AlertWriter) Publish(ctx context.Context, alert domain.Alert) error {
	msg, err := serializeAlert(alert)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *AlertWriter) Close() error {
	return w.writer.Close()
}

// serializeAlert marshals an Alert into a Kafka message. The subject is
// the key so downstream consumers can filter without decoding the body;
// fire_count and countries ride along as headers.
func serializeAlert(alert domain.Alert) (kafkago.Message, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(alert.Subject),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "fire_count", Value: []byte(strconv.Itoa(alert.FireCount))},
			{Key: "countries", Value: []byte(strings.Join(alert.Countries, ","))},
		},
	}, nil
}
