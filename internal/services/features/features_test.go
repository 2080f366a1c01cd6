package features

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"CryptoCast/internal/domain/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func nd(v float64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromFloat(v))
}

func candle(day int, close, volume float64) models.RawCandle {
	return models.RawCandle{
		OpenTime: day0.AddDate(0, 0, day),
		Open:     nd(close), High: nd(close), Low: nd(close),
		Close:  nd(close),
		Volume: nd(volume),
	}
}

func rawSeries(candles ...models.RawCandle) *models.RawSeries {
	return &models.RawSeries{Fields: models.KlineFields, Candles: candles}
}

func dailyDataset(n int) *models.Dataset {
	ds := &models.Dataset{}
	for i := 0; i < n; i++ {
		ds.Rows = append(ds.Rows, models.TrainingExample{Date: day0.AddDate(0, 0, i), Value: float64(100 + i)})
	}
	return ds
}

func TestBuildSortsAndKeepsFirstDuplicate(t *testing.T) {
	s := rawSeries(candle(2, 30, 5), candle(0, 10, 5), candle(1, 20, 5), candle(1, 99, 5))

	ds, err := NewBuilder(BuilderConfig{PriceField: models.FieldClose}, nil).Build(s)
	require.NoError(t, err)
	require.Equal(t, []float64{10, 20, 30}, ds.Values())
	require.False(t, ds.HasRegressor())
}

func TestBuildClampsNonPositiveVolume(t *testing.T) {
	s := rawSeries(candle(0, 10, 0), candle(1, 11, -3), candle(2, 12, 250))
	s.Candles = append(s.Candles, models.RawCandle{OpenTime: day0.AddDate(0, 0, 3), Close: nd(13)})

	ds, err := NewBuilder(BuilderConfig{PriceField: models.FieldClose, AddRegressor: true}, nil).Build(s)
	require.NoError(t, err)
	require.Equal(t, models.RegressorVolume, ds.Regressor)
	require.Equal(t, []float64{1, 1, 250, 1}, ds.Regressors())
}

func TestBuildRegressorNeedsVolumeColumn(t *testing.T) {
	s := rawSeries(candle(0, 10, 7))
	s.Fields = []string{models.FieldOpenTime, models.FieldClose}

	ds, err := NewBuilder(BuilderConfig{PriceField: models.FieldClose, AddRegressor: true}, nil).Build(s)
	require.NoError(t, err)
	require.False(t, ds.HasRegressor())
}

func TestBuildStripsZone(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	c := candle(0, 10, 1)
	c.OpenTime = time.Date(2024, 3, 1, 0, 0, 0, 0, loc)

	ds, err := NewBuilder(BuilderConfig{}, nil).Build(rawSeries(c))
	require.NoError(t, err)
	require.Equal(t, time.UTC, ds.First().Date.Location())
	require.Equal(t, 0, ds.First().Date.Hour())
	require.Equal(t, 1, ds.First().Date.Day())
}

func TestBuildRejectsUnknownPriceColumn(t *testing.T) {
	_, err := NewBuilder(BuilderConfig{PriceField: "vwap"}, nil).Build(rawSeries(candle(0, 1, 1)))
	require.ErrorIs(t, err, models.ErrDataQuality)
}

func TestSplitTwelveRowsTwoDayWindow(t *testing.T) {
	sp, err := Split(dailyDataset(12), 2)
	require.NoError(t, err)
	require.Equal(t, 10, sp.Train.Len())
	require.Equal(t, 2, sp.Test.Len())
	require.True(t, sp.Train.Last().Date.Before(sp.Test.First().Date))
}

func TestSplitEmptyPartitions(t *testing.T) {
	_, err := Split(dailyDataset(5), 10)
	require.ErrorIs(t, err, models.ErrInsufficientData)

	_, err = Split(dailyDataset(5), 0)
	require.ErrorIs(t, err, models.ErrInsufficientData)

	_, err = Split(&models.Dataset{}, 2)
	require.True(t, errors.Is(err, models.ErrInsufficientData))
}

func TestSplitIsChronologicalAndComplete(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		// irregular gaps so the cutoff does not always land on a row
		ds := &models.Dataset{}
		d := day0
		for i := 0; i < 2+rng.Intn(60); i++ {
			ds.Rows = append(ds.Rows, models.TrainingExample{Date: d, Value: rng.Float64()})
			d = d.AddDate(0, 0, 1+rng.Intn(3))
		}
		span := int(ds.Last().Date.Sub(ds.First().Date).Hours() / 24)
		if span < 2 {
			continue
		}
		window := 1 + rng.Intn(span-1)

		sp, err := Split(ds, window)
		require.NoError(t, err, "trial %d", trial)
		require.Equal(t, ds.Len(), sp.Train.Len()+sp.Test.Len())
		require.True(t, sp.Train.Last().Date.Before(sp.Test.First().Date))
	}
}

func TestStats(t *testing.T) {
	ds := dailyDataset(5)
	pr := PriceRangeOf(ds)
	require.Equal(t, models.PriceRange{Min: 100, Max: 104, Mean: 102}, pr)

	info := TrainingInfoOf(ds)
	require.Equal(t, 5, info.Samples)
	require.Equal(t, "2024-01-01", info.StartDate)
	require.Equal(t, "2024-01-05", info.EndDate)
	require.Greater(t, info.Volatility, 0.0)

	require.Equal(t, 3.5, TrailingMean([]float64{1, 2, 3, 4}, 2))
	require.Equal(t, 2.5, TrailingMean([]float64{1, 2, 3, 4}, 30))
	require.Zero(t, TrailingMean(nil, 30))

	r := LogReturns([]float64{1, math.E, 0, 2})
	require.InDelta(t, 1, r[0], 1e-12)
	require.Zero(t, r[1])
	require.Zero(t, r[2])
}
