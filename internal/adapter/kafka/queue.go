// Package kafka adapts the work queue and the alert sink to Kafka
// topics.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/firewatch-etl/internal/config"
	"github.com/couchcryptid/firewatch-etl/internal/domain"
)

// batchWait bounds how long the reader tops up a delivery unit after
// the first message arrives.
const batchWait = 500 * time.Millisecond

// ChunkWriter produces one message per detection chunk to the work
// topic. It implements domain.ChunkEnqueuer.
type ChunkWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewChunkWriter creates a Kafka producer for the configured queue topic.
func NewChunkWriter(cfg *config.Config, logger *slog.Logger) *ChunkWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaQueueTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &ChunkWriter{writer: w, logger: logger}
}

// EnqueueChunk serializes and publishes one chunk.
func (w *ChunkWriter) EnqueueChunk(ctx context.Context, chunk domain.DetectionChunk) error {
	msg, err := serializeChunk(chunk)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *ChunkWriter) Close() error {
	return w.writer.Close()
}

// serializeChunk marshals a DetectionChunk into a Kafka message. The
// key combines the fetch-cycle timestamp and ordinal, so one cycle's
// chunks spread across partitions without colliding between cycles.
func serializeChunk(chunk domain.DetectionChunk) (kafkago.Message, error) {
	data, err := json.Marshal(chunk)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize chunk: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(fmt.Sprintf("%d-%d", chunk.FetchedAt.Unix(), chunk.Ordinal)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "ordinal", Value: []byte(strconv.Itoa(chunk.Ordinal))},
			{Key: "batch_size", Value: []byte(strconv.Itoa(len(chunk.Detections)))},
			{Key: "fetched_at", Value: []byte(chunk.FetchedAt.Format(time.RFC3339))},
		},
	}, nil
}

// Reader consumes chunk messages from the work topic as part of a
// consumer group. It implements processor.DeliveryExtractor.
type Reader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewReader creates a consumer-group reader with explicit commits, so
// offsets advance only after the processor finishes a delivery unit.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaGroupID,
		Topic:    cfg.KafkaQueueTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  batchWait,
	})
	return &Reader{reader: r, logger: logger}
}

// ExtractDelivery blocks for the first message, then tops the delivery
// up with whatever else arrives within batchWait, up to max chunks.
func (r *Reader) ExtractDelivery(ctx context.Context, max int) ([]domain.QueuedChunk, error) {
	first, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	chunks := []domain.QueuedChunk{r.mapMessage(first)}

	for len(chunks) < max {
		fetchCtx, cancel := context.WithTimeout(ctx, batchWait)
		msg, err := r.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			break
		}
		chunks = append(chunks, r.mapMessage(msg))
	}
	return chunks, nil
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

// mapMessage converts a Kafka message into a QueuedChunk. A malformed
// payload yields an empty chunk that is logged and committed away
// rather than wedging the partition.
func (r *Reader) mapMessage(msg kafkago.Message) domain.QueuedChunk {
	var chunk domain.DetectionChunk
	if err := json.Unmarshal(msg.Value, &chunk); err != nil {
		r.logger.Error("malformed chunk message, dropping payload",
			"error", err,
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
		)
		chunk = domain.DetectionChunk{}
	}
	return domain.QueuedChunk{
		Chunk:     chunk,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Commit: func(ctx context.Context) error {
			return r.reader.CommitMessages(ctx, msg)
		},
	}
}
