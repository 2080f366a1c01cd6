package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"CryptoCast/internal/domain/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type captureInserter struct {
	queries []string
	batches [][][]any
	err     error
}

func (c *captureInserter) InsertBatch(_ context.Context, q string, rows [][]any) error {
	c.queries = append(c.queries, q)
	c.batches = append(c.batches, rows)
	return c.err
}

func TestCandleArchiveChunksAndKeepsNulls(t *testing.T) {
	ins := &captureInserter{}
	a := newCHCandleArchive(ins, "")
	s := &models.RawSeries{Symbol: "BTCUSDT", Interval: "1d"}
	d0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2500; i++ {
		s.Candles = append(s.Candles, models.RawCandle{
			OpenTime: d0.AddDate(0, 0, i),
			Close:    decimal.NewNullDecimal(decimal.NewFromInt(int64(i))),
		})
	}

	require.NoError(t, a.SaveCandles(context.Background(), s))
	require.Len(t, ins.batches, 2)
	require.Len(t, ins.batches[0], 2000)
	require.Len(t, ins.batches[1], 500)
	require.Contains(t, ins.queries[0], DefaultCandleTable)

	row := ins.batches[0][1]
	require.Equal(t, "BTCUSDT", row[0])
	require.Nil(t, row[4].(*decimal.Decimal))
	require.Equal(t, "1", row[7].(*decimal.Decimal).String())
}

func TestCandleArchiveSurfacesInsertErrors(t *testing.T) {
	ins := &captureInserter{err: errors.New("too many parts")}
	err := newCHCandleArchive(ins, "t").SaveCandles(context.Background(), &models.RawSeries{Candles: make([]models.RawCandle, 1)})
	require.ErrorContains(t, err, "too many parts")

	require.NoError(t, newCHCandleArchive(ins, "t").SaveCandles(context.Background(), &models.RawSeries{}))
}

type capturePublisher struct {
	topic string
	key   []byte
	value interface{}
}

func (c *capturePublisher) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	c.topic, c.key, c.value = topic, key, value
	return nil
}
func (c *capturePublisher) Close() error { return nil }

func TestKafkaForecastPublisher(t *testing.T) {
	pub := &capturePublisher{}
	p := NewKafkaForecastPublisher(pub, "forecasts")
	sum := &models.ForecastSummary{ForecastDays: 30}

	require.NoError(t, p.PublishForecast(context.Background(), "BTCUSDT", sum))
	require.Equal(t, "forecasts", pub.topic)
	require.Equal(t, "BTCUSDT", string(pub.key))
	ev := pub.value.(ForecastEvent)
	require.Same(t, sum, ev.Summary)
	require.False(t, ev.GeneratedAt.IsZero())
}

func TestSQLiteRunRecorder(t *testing.T) {
	r, err := NewSQLiteRunRecorder(filepath.Join(t.TempDir(), "hist", "runs.db"))
	require.NoError(t, err)
	defer r.Close()

	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, status := range []string{models.RunStatusSuccess, models.RunStatusError, models.RunStatusSuccess} {
		require.NoError(t, r.RecordRun(ctx, models.PipelineResult{
			RunID:           string(rune('a' + i)),
			Status:          status,
			PipelineName:    models.PipelineDefault,
			Message:         "done",
			DurationSeconds: float64(i),
			StartedAt:       t0.Add(time.Duration(i) * time.Hour),
		}))
	}

	runs, err := r.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "c", runs[0].RunID)
	require.Equal(t, "b", runs[1].RunID)
	require.Equal(t, models.RunStatusError, runs[1].Status)
	require.True(t, runs[0].StartedAt.Equal(t0.Add(2*time.Hour)))
}

func TestMemoryRunRecorderKeepsNewest(t *testing.T) {
	r := NewMemoryRunRecorder(2)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.RecordRun(ctx, models.PipelineResult{RunID: id}))
	}
	runs, err := r.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "b"}, []string{runs[0].RunID, runs[1].RunID})
}
