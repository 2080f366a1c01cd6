package repository

import (
	"context"
	"time"

	"CryptoCast/internal/domain/models"
)

// Dataset artifact names.
type DatasetName string

const (
	DatasetFull  DatasetName = "full"
	DatasetTrain DatasetName = "train"
	DatasetTest  DatasetName = "test"
)

// ModelArtifact is a persisted serialized model with its creation time.
type ModelArtifact struct {
	Blob      []byte
	CreatedAt time.Time
}

// ArtifactStore persists pipeline artifacts. Writes are atomic: a reader sees
// either the previous artifact or the complete new one. Loads of absent
// artifacts return an error matching models.ErrArtifactMissing.
type ArtifactStore interface {
	Location() string

	ModelExists(ctx context.Context) (bool, error)
	SaveModel(ctx context.Context, blob []byte) error
	LoadModel(ctx context.Context) (*ModelArtifact, error)

	SaveRawSeries(ctx context.Context, s *models.RawSeries) error
	LoadRawSeries(ctx context.Context) (*models.RawSeries, error)

	DatasetExists(ctx context.Context, name DatasetName) (bool, error)
	SaveDataset(ctx context.Context, name DatasetName, ds *models.Dataset) error
	LoadDataset(ctx context.Context, name DatasetName) (*models.Dataset, error)

	SaveReport(ctx context.Context, r *models.ModelReport) error
	LoadReport(ctx context.Context) (*models.ModelReport, error)

	SaveForecastSummary(ctx context.Context, s *models.ForecastSummary) error
	LoadForecastSummary(ctx context.Context) (*models.ForecastSummary, error)

	SavePredictions(ctx context.Context, rows []models.ForecastRow) error
	LoadPredictions(ctx context.Context) ([]models.ForecastRow, error)
}

// CandleArchive keeps a copy of every fetched raw series.
type CandleArchive interface {
	SaveCandles(ctx context.Context, s *models.RawSeries) error
	Close() error
}

// Publisher emits forecast events to downstream consumers.
type Publisher interface {
	PublishForecast(ctx context.Context, symbol string, s *models.ForecastSummary) error
	Close() error
}

// RunRecorder keeps the history of pipeline runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, r models.PipelineResult) error
	RecentRuns(ctx context.Context, limit int) ([]models.PipelineResult, error)
	Close() error
}

// Locker is a cross-process mutual exclusion primitive.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// ResponseCache caches serialized responses.
type ResponseCache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// JobQueue accepts asynchronous work.
type JobQueue interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
}

type Metrics interface {
	RecordPipelineRun(pipeline, status string, seconds float64)
	RecordNodeDuration(node string, seconds float64)
	RecordError(kind string)
	RecordFetch(pages, rows, retries int)
	RecordLastPrice(symbol string, price float64)
	RecordModelMetrics(m models.EvaluationMetrics)
	RecordLatency(op string, seconds float64)
}
