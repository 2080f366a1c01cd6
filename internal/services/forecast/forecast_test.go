package forecast

import (
	"context"
	"testing"
	"time"

	"CryptoCast/internal/domain/models"
	"CryptoCast/internal/domain/service"

	"github.com/stretchr/testify/require"
)

var day1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type handle struct{}

func (handle) Kind() string               { return "linear" }
func (handle) Config() models.ModelConfig { return models.ModelConfig{} }
func (handle) FittedAt() time.Time        { return time.Time{} }
func (handle) Regressors() []string       { return nil }

// linearForecaster predicts 100 + day index with a fixed ±5 band.
type linearForecaster struct {
	frame []models.PredictionPoint
}

func (f *linearForecaster) Kind() string { return "linear" }
func (f *linearForecaster) Fit(context.Context, *models.Dataset, models.ModelConfig, []models.Seasonality) (service.ModelHandle, error) {
	return handle{}, nil
}
func (f *linearForecaster) Serialize(service.ModelHandle) ([]byte, error)   { return nil, nil }
func (f *linearForecaster) Deserialize([]byte) (service.ModelHandle, error) { return handle{}, nil }

func (f *linearForecaster) Predict(_ service.ModelHandle, frame []models.PredictionPoint) ([]models.ForecastRow, error) {
	f.frame = frame
	out := make([]models.ForecastRow, len(frame))
	for i, p := range frame {
		v := 100 + p.Date.Sub(day1).Hours()/24
		out[i] = models.ForecastRow{Date: p.Date, Predicted: v, Lower: v - 5, Upper: v + 5, Trend: v}
	}
	return out, nil
}

func thirtyDays(withVolume bool) *models.Dataset {
	ds := &models.Dataset{}
	if withVolume {
		ds.Regressor = models.RegressorVolume
	}
	for i := 0; i < 30; i++ {
		ds.Rows = append(ds.Rows, models.TrainingExample{
			Date:      day1.AddDate(0, 0, i),
			Value:     100 + float64(i),
			Regressor: float64(i + 1),
		})
	}
	return ds
}

func TestForecastReturnsExactlyHorizonFutureRows(t *testing.T) {
	full := thirtyDays(false)
	out, err := NewEngine(&linearForecaster{}, nil).Forecast(handle{}, full, 5, false)
	require.NoError(t, err)
	require.Len(t, out.Rows, 5)
	for i, r := range out.Rows {
		require.Equal(t, day1.AddDate(0, 0, 30+i), r.Date, "row %d", i)
		require.True(t, r.Date.After(full.Last().Date))
	}
	require.Equal(t, "2024-01-31", *out.Summary.ForecastStartDate)
	require.Equal(t, "2024-02-04", *out.Summary.ForecastEndDate)
	require.Equal(t, 129.0, out.LastHistoricalPrice)
}

func TestForecastCompletenessAcrossHorizons(t *testing.T) {
	full := thirtyDays(true)
	for _, h := range []int{0, 1, 7, 30, 90, 365} {
		out, err := NewEngine(&linearForecaster{}, nil).Forecast(handle{}, full, h, true)
		require.NoError(t, err)
		require.Len(t, out.Rows, h)
		require.Equal(t, h, out.Summary.ForecastDays)
	}
}

func TestExtendFrameImputesTrailingMean(t *testing.T) {
	full := thirtyDays(true)
	full.Rows = append(full.Rows, models.TrainingExample{Date: day1.AddDate(0, 0, 30), Value: 1, Regressor: 61})

	frame := ExtendFrame(full, 3, true)
	require.Len(t, frame, 34)
	require.Equal(t, 61.0, frame[30].Regressor)
	// trailing 30 are 2..30 and 61
	want := (464.0 + 61) / 30
	for _, p := range frame[31:] {
		require.InDelta(t, want, p.Regressor, 1e-9)
	}

	noReg := ExtendFrame(full, 2, false)
	require.Zero(t, noReg[0].Regressor)
	require.Zero(t, noReg[32].Regressor)
}

func TestSummary(t *testing.T) {
	f := &linearForecaster{}
	out, err := NewEngine(f, nil).Forecast(handle{}, thirtyDays(false), 30, false)
	require.NoError(t, err)

	s := out.Summary
	require.Equal(t, "2024-01-30", s.LastHistoricalDate)
	require.Equal(t, 130.0, s.Predictions.FirstDay)
	require.Equal(t, 159.0, s.Predictions.LastDay)
	require.Equal(t, 159.0, s.Predictions.MaxPredicted)
	require.Equal(t, 130.0, s.Predictions.MinPredicted)
	require.NotNil(t, s.ExpectedChanges.Change7Day)
	require.InDelta(t, (136.0-129)/129*100, *s.ExpectedChanges.Change7Day, 1e-9)
	require.NotNil(t, s.ExpectedChanges.Change30Day)
	require.InDelta(t, (159.0-129)/129*100, s.ExpectedChanges.ChangeEndOfPeriod, 1e-9)
	require.Equal(t, 10.0, s.Uncertainty.AvgIntervalWidth)
}

func TestSummaryShortHorizonOmitsLongChanges(t *testing.T) {
	out, err := NewEngine(&linearForecaster{}, nil).Forecast(handle{}, thirtyDays(false), 6, false)
	require.NoError(t, err)
	require.Nil(t, out.Summary.ExpectedChanges.Change7Day)
	require.Nil(t, out.Summary.ExpectedChanges.Change30Day)
}

func TestSummaryWithoutFutureRows(t *testing.T) {
	s := Summarize(nil, day1, 42)
	require.Equal(t, 42.0, s.LastHistoricalPrice)
	require.Equal(t, "2024-01-01", s.LastHistoricalDate)
	require.Zero(t, s.ForecastDays)
	require.Nil(t, s.ForecastStartDate)
	require.Nil(t, s.ForecastEndDate)
	require.Nil(t, s.Predictions)
	require.Nil(t, s.ExpectedChanges)
	require.Nil(t, s.Uncertainty)
}

func TestForecastRejectsEmptyDataset(t *testing.T) {
	_, err := NewEngine(&linearForecaster{}, nil).Forecast(handle{}, &models.Dataset{}, 5, false)
	require.ErrorIs(t, err, models.ErrDatasetMissing)
}
