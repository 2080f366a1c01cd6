package repository

import (
	"context"
	"sync"

	"CryptoCast/internal/domain/models"
)

// NoopArchive is used when ClickHouse is disabled.
type NoopArchive struct{}

func (NoopArchive) SaveCandles(context.Context, *models.RawSeries) error { return nil }
func (NoopArchive) Close() error                                          { return nil }

// NoopPublisher is used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishForecast(context.Context, string, *models.ForecastSummary) error {
	return nil
}
func (NoopPublisher) Close() error { return nil }

// MemoryRunRecorder keeps the most recent runs in memory when no history
// database is configured.
type MemoryRunRecorder struct {
	runs []models.PipelineResult
	max  int
	mu   sync.Mutex
}

func NewMemoryRunRecorder(max int) *MemoryRunRecorder {
	if max <= 0 {
		max = 500
	}
	return &MemoryRunRecorder{max: max}
}

func (r *MemoryRunRecorder) RecordRun(_ context.Context, res models.PipelineResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, res)
	if len(r.runs) > r.max {
		r.runs = r.runs[len(r.runs)-r.max:]
	}
	return nil
}

func (r *MemoryRunRecorder) RecentRuns(_ context.Context, limit int) ([]models.PipelineResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.PipelineResult, 0, limit)
	for i := len(r.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.runs[i])
	}
	return out, nil
}

func (r *MemoryRunRecorder) Close() error { return nil }
