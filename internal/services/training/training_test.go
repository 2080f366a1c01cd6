package training

import (
	"context"
	"math"
	"testing"
	"time"

	"CryptoCast/internal/domain/models"
	"CryptoCast/internal/domain/service"

	"github.com/stretchr/testify/require"
)

type stubHandle struct{ cfg models.ModelConfig }

func (stubHandle) Kind() string                 { return "stub" }
func (h stubHandle) Config() models.ModelConfig { return h.cfg }
func (stubHandle) FittedAt() time.Time          { return time.Time{} }
func (stubHandle) Regressors() []string         { return nil }

// echoForecaster predicts the value recorded for each date, optionally offset.
type echoForecaster struct {
	actual    map[time.Time]float64
	offset    float64
	fitCalls  int
	extra     []models.Seasonality
	frames    [][]models.PredictionPoint
	fitConfig models.ModelConfig
}

func (f *echoForecaster) Kind() string { return "stub" }

func (f *echoForecaster) Fit(_ context.Context, _ *models.Dataset, cfg models.ModelConfig, extra []models.Seasonality) (service.ModelHandle, error) {
	f.fitCalls++
	f.extra = extra
	f.fitConfig = cfg
	return stubHandle{cfg: cfg}, nil
}

func (f *echoForecaster) Predict(_ service.ModelHandle, frame []models.PredictionPoint) ([]models.ForecastRow, error) {
	f.frames = append(f.frames, frame)
	out := make([]models.ForecastRow, len(frame))
	for i, p := range frame {
		v := f.actual[p.Date] + f.offset
		out[i] = models.ForecastRow{Date: p.Date, Predicted: v, Lower: v, Upper: v, Trend: v}
	}
	return out, nil
}

func (f *echoForecaster) Serialize(service.ModelHandle) ([]byte, error)   { return nil, nil }
func (f *echoForecaster) Deserialize([]byte) (service.ModelHandle, error) { return stubHandle{}, nil }

func testPartition(n int) (*models.Dataset, map[time.Time]float64) {
	ds := &models.Dataset{Regressor: models.RegressorVolume}
	actual := make(map[time.Time]float64)
	d0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		d := d0.AddDate(0, 0, i)
		v := 60000 + 250*float64(i)
		ds.Rows = append(ds.Rows, models.TrainingExample{Date: d, Value: v, Regressor: float64(1000 + i)})
		actual[d] = v
	}
	return ds, actual
}

func TestEvaluatePerfectPrediction(t *testing.T) {
	test, actual := testPartition(10)
	f := &echoForecaster{actual: actual}

	m, err := NewEvaluator(f, nil).Evaluate(stubHandle{}, test, true)
	require.NoError(t, err)
	require.Zero(t, m.MAE)
	require.Zero(t, m.RMSE)
	require.Zero(t, m.MAPE)
	require.Equal(t, 1.0, m.R2)
	require.Equal(t, 10, m.TestSamples)
	require.Equal(t, "2024-05-01", m.TestStartDate)
	require.Equal(t, "2024-05-10", m.TestEndDate)
}

func TestEvaluateFeedsActualRegressor(t *testing.T) {
	test, actual := testPartition(3)
	f := &echoForecaster{actual: actual}

	_, err := NewEvaluator(f, nil).Evaluate(stubHandle{}, test, true)
	require.NoError(t, err)
	require.Equal(t, []float64{1000, 1001, 1002}, []float64{f.frames[0][0].Regressor, f.frames[0][1].Regressor, f.frames[0][2].Regressor})

	_, err = NewEvaluator(f, nil).Evaluate(stubHandle{}, test, false)
	require.NoError(t, err)
	require.Zero(t, f.frames[1][2].Regressor)
}

func TestEvaluateEmptyPartition(t *testing.T) {
	_, err := NewEvaluator(&echoForecaster{}, nil).Evaluate(stubHandle{}, &models.Dataset{}, false)
	require.ErrorIs(t, err, models.ErrInsufficientData)
}

func TestScore(t *testing.T) {
	m := Score([]float64{100, 200, 300}, []float64{110, 190, 300})
	require.InDelta(t, 20.0/3, m.MAE, 1e-9)
	require.InDelta(t, (10.0/100+10.0/200)/3*100, m.MAPE, 1e-6)
	require.InDelta(t, math.Sqrt(200.0/3), m.RMSE, 1e-9)
	require.InDelta(t, 1-200.0/20000, m.R2, 1e-9)

	require.Equal(t, 1.0, Score([]float64{5, 5}, []float64{5, 5}).R2)
	require.Zero(t, Score([]float64{5, 5}, []float64{4, 6}).R2)

	zero := Score([]float64{0}, []float64{1})
	require.False(t, math.IsInf(zero.MAPE, 0))
}

func TestTrainerRegistersHalvingCycle(t *testing.T) {
	train, _ := testPartition(20)
	f := &echoForecaster{}
	cfg := models.DefaultModelConfig()

	h, err := NewTrainer(f, cfg, nil).Train(context.Background(), train)
	require.NoError(t, err)
	require.NotNil(t, h)
	require.Equal(t, 1, f.fitCalls)
	require.Equal(t, []models.Seasonality{models.HalvingCycle}, f.extra)
	require.Equal(t, cfg, f.fitConfig)

	_, err = NewTrainer(f, cfg, nil).Train(context.Background(), &models.Dataset{})
	require.ErrorIs(t, err, models.ErrInsufficientData)
	require.Equal(t, 1, f.fitCalls)
}

func TestBuildReport(t *testing.T) {
	full, _ := testPartition(12)
	split := &models.Split{
		Train: models.Dataset{Rows: full.Rows[:10]},
		Test:  models.Dataset{Rows: full.Rows[10:]},
	}
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r := BuildReport("stub", created, models.DefaultModelConfig(), split, models.EvaluationMetrics{MAE: 10})

	require.Equal(t, "stub", r.ModelType)
	require.Equal(t, 10, r.TrainingInfo.Samples)
	require.Equal(t, 2, r.TestInfo.Samples)
	require.Equal(t, 60000.0, r.TrainingInfo.PriceRange.Min)
	require.Equal(t, "2024-05-11", r.TestInfo.StartDate)
	require.Equal(t, 10.0, r.Metrics.MAE)
}
