package forecast

import (
	"time"

	"CryptoCast/internal/domain/models"
	"CryptoCast/pkg/util"
)

// FutureRows keeps rows dated strictly after lastDate.
func FutureRows(rows []models.ForecastRow, lastDate time.Time) []models.ForecastRow {
	out := make([]models.ForecastRow, 0)
	for _, r := range rows {
		if r.Date.After(lastDate) {
			out = append(out, r)
		}
	}
	return out
}

// Summarize aggregates the future rows against the last historical value.
// Without future rows only the historical anchor is filled.
func Summarize(future []models.ForecastRow, lastDate time.Time, lastPrice float64) models.ForecastSummary {
	s := models.ForecastSummary{
		LastHistoricalPrice: lastPrice,
		LastHistoricalDate:  util.FormatDay(lastDate),
		ForecastDays:        len(future),
	}
	if len(future) == 0 {
		return s
	}

	first, last := future[0], future[len(future)-1]
	startDate, endDate := util.FormatDay(first.Date), util.FormatDay(last.Date)
	s.ForecastStartDate = &startDate
	s.ForecastEndDate = &endDate

	preds := &models.SummaryPredictions{
		FirstDay:     first.Predicted,
		LastDay:      last.Predicted,
		MaxPredicted: first.Predicted,
		MinPredicted: first.Predicted,
	}
	width := 0.0
	for _, r := range future {
		if r.Predicted > preds.MaxPredicted {
			preds.MaxPredicted = r.Predicted
		}
		if r.Predicted < preds.MinPredicted {
			preds.MinPredicted = r.Predicted
		}
		width += r.Upper - r.Lower
	}
	s.Predictions = preds

	changes := &models.SummaryChanges{ChangeEndOfPeriod: pctChange(last.Predicted, lastPrice)}
	if len(future) >= 7 {
		v := pctChange(future[6].Predicted, lastPrice)
		changes.Change7Day = &v
	}
	if len(future) >= 30 {
		v := pctChange(future[29].Predicted, lastPrice)
		changes.Change30Day = &v
	}
	s.ExpectedChanges = changes
	s.Uncertainty = &models.SummaryUncertainty{AvgIntervalWidth: width / float64(len(future))}
	return s
}

// pctChange is 0 against a zero base.
func pctChange(v, base float64) float64 {
	if base == 0 {
		return 0
	}
	return (v - base) / base * 100
}
