package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"MacroPulse/internal/domain/models"
	domrepo "MacroPulse/internal/domain/repository"
	pkgkafka "MacroPulse/pkg/kafka"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelFileStore(t *testing.T) {
	ctx := context.Background()
	s := NewModelFileStore(t.TempDir())

	_, err := s.Load(ctx, "^GSPC")
	assert.ErrorIs(t, err, domrepo.ErrNotFound)

	require.NoError(t, s.Save(ctx, "^GSPC", []byte(`{"v":1}`)))
	require.NoError(t, s.Save(ctx, "^GSPC", []byte(`{"v":2}`)))
	b, err := s.Load(ctx, "^GSPC")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(b))

	_, err = s.Load(ctx, "../GSPC")
	assert.ErrorIs(t, err, domrepo.ErrNotFound, "keys cannot escape the directory")
}

func TestMemoryDatasetStoreReplaces(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDatasetStore()
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	v := 1.0

	_, err := s.GetMarketData(ctx, "^GSPC")
	assert.ErrorIs(t, err, domrepo.ErrNotFound)

	require.NoError(t, s.SaveMarketData(ctx, "^GSPC", []models.MarketRecord{
		{Date: day.AddDate(0, 0, 1), Close: &v},
		{Date: day, Close: &v},
	}))
	rows, err := s.GetMarketData(ctx, "^GSPC")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Date.Before(rows[1].Date))
	assert.Equal(t, "^GSPC", rows[0].Ticker)

	require.NoError(t, s.SaveMarketData(ctx, "^GSPC", []models.MarketRecord{{Date: day}}))
	rows, err = s.GetMarketData(ctx, "^GSPC")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

type captureWriter struct{ msgs []kafka.Message }

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestKafkaOverlayPublisher(t *testing.T) {
	w := &captureWriter{}
	p := NewKafkaOverlayPublisher(pkgkafka.NewProducerWithWriter(w, "none"), "macropulse.overlay")

	o := models.Overlay{Timestamp: "2024-01-02 00:00:00", RecommendedRiskLevel: 0.6}
	require.NoError(t, p.Publish(context.Background(), "^GSPC", o))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "macropulse.overlay", w.msgs[0].Topic)
	assert.Equal(t, "^GSPC", string(w.msgs[0].Key))

	var ev overlayEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, "^GSPC", ev.Ticker)
	assert.Equal(t, 0.6, ev.Overlay.RecommendedRiskLevel)
}
