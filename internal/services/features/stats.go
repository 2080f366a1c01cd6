package features

import (
	"math"

	"CryptoCast/internal/domain/models"
	"CryptoCast/pkg/util"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PriceRangeOf returns min/max/mean of the target column.
func PriceRangeOf(ds *models.Dataset) models.PriceRange {
	if ds == nil || ds.Len() == 0 {
		return models.PriceRange{}
	}
	v := ds.Values()
	return models.PriceRange{Min: floats.Min(v), Max: floats.Max(v), Mean: stat.Mean(v, nil)}
}

// TrainingInfoOf summarizes the training partition for the model report.
func TrainingInfoOf(ds *models.Dataset) models.TrainingInfo {
	if ds == nil || ds.Len() == 0 {
		return models.TrainingInfo{}
	}
	return models.TrainingInfo{
		Samples:    ds.Len(),
		StartDate:  util.FormatDay(ds.First().Date),
		EndDate:    util.FormatDay(ds.Last().Date),
		PriceRange: PriceRangeOf(ds),
		Volatility: AnnualizedVolatility(ds),
	}
}

// TestInfoOf summarizes the held-out partition.
func TestInfoOf(ds *models.Dataset) models.TestInfo {
	if ds == nil || ds.Len() == 0 {
		return models.TestInfo{}
	}
	return models.TestInfo{
		Samples:   ds.Len(),
		StartDate: util.FormatDay(ds.First().Date),
		EndDate:   util.FormatDay(ds.Last().Date),
	}
}

// TrailingMean averages the last n values of xs, or all of them when fewer
// exist. Returns 0 for an empty slice.
func TrailingMean(xs []float64, n int) float64 {
	if len(xs) == 0 || n <= 0 {
		return 0
	}
	if len(xs) > n {
		xs = xs[len(xs)-n:]
	}
	return stat.Mean(xs, nil)
}

// LogReturns computes r_t = ln(v_t / v_{t-1}); non-positive pairs yield 0.
func LogReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev, cur := values[i-1], values[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// AnnualizedVolatility is the sample standard deviation of daily log returns
// scaled to 365 trading days.
func AnnualizedVolatility(ds *models.Dataset) float64 {
	r := LogReturns(ds.Values())
	if len(r) < 2 {
		return 0
	}
	return stat.StdDev(r, nil) * math.Sqrt(365)
}
