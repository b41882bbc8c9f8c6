package kafka

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/firewatch-etl/internal/domain"
)

func TestSerializeChunk(t *testing.T) {
	fetched := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	chunk := domain.DetectionChunk{
		Ordinal:   2,
		FetchedAt: fetched,
		Detections: []domain.RawDetection{
			{Latitude: 34.05, Longitude: -118.24, AcqDate: "2024-04-26", AcqTime: "1510"},
			{Latitude: 35.0, Longitude: -97.0, AcqDate: "2024-04-26", AcqTime: "1512"},
		},
	}

	msg, err := serializeChunk(chunk)
	require.NoError(t, err)

	assert.Equal(t, []byte("1714144200-2"), msg.Key)
	assert.Contains(t, string(msg.Value), `"acq_date":"2024-04-26"`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "ordinal", msg.Headers[0].Key)
	assert.Equal(t, []byte("2"), msg.Headers[0].Value)
	assert.Equal(t, "batch_size", msg.Headers[1].Key)
	assert.Equal(t, []byte("2"), msg.Headers[1].Value)
	assert.Equal(t, "fetched_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(fetched.Format(time.RFC3339)), msg.Headers[2].Value)

	var decoded domain.DetectionChunk
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, 2, decoded.Ordinal)
	assert.Len(t, decoded.Detections, 2)
}

func TestMapMessage(t *testing.T) {
	fetched := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	chunk := domain.DetectionChunk{
		Ordinal:   0,
		FetchedAt: fetched,
		Detections: []domain.RawDetection{
			{Latitude: 34.05, Longitude: -118.24},
		},
	}
	value, err := json.Marshal(chunk)
	require.NoError(t, err)

	r := &Reader{logger: slog.Default()}
	queued := r.mapMessage(kafkago.Message{
		Value:     value,
		Topic:     "fire-detections",
		Partition: 2,
		Offset:    42,
	})

	assert.Equal(t, "fire-detections", queued.Topic)
	assert.Equal(t, 2, queued.Partition)
	assert.Equal(t, int64(42), queued.Offset)
	assert.NotNil(t, queued.Commit)
	require.Len(t, queued.Chunk.Detections, 1)
	assert.Equal(t, 34.05, queued.Chunk.Detections[0].Latitude)
}

func TestMapMessageMalformedPayload(t *testing.T) {
	r := &Reader{logger: slog.Default()}
	queued := r.mapMessage(kafkago.Message{
		Value:     []byte("not json"),
		Topic:     "fire-detections",
		Partition: 0,
		Offset:    7,
	})

	assert.Empty(t, queued.Chunk.Detections)
	assert.Equal(t, int64(7), queued.Offset)
	assert.NotNil(t, queued.Commit)
}

func TestSerializeAlert(t *testing.T) {
	alert := domain.Alert{
		Subject:   "Firewatch Alert: 3 New Fire(s) Detected",
		Body:      "Firewatch has detected 3 new active fire(s).",
		FireCount: 3,
		Countries: []string{"Brazil", "Mexico"},
	}

	msg, err := serializeAlert(alert)
	require.NoError(t, err)

	assert.Equal(t, []byte(alert.Subject), msg.Key)
	assert.Contains(t, string(msg.Value), `"fire_count":3`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "fire_count", msg.Headers[0].Key)
	assert.Equal(t, []byte("3"), msg.Headers[0].Value)
	assert.Equal(t, "countries", msg.Headers[1].Key)
	assert.Equal(t, []byte("Brazil,Mexico"), msg.Headers[1].Value)
}
