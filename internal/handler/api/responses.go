package api

import (
	"time"

	"CryptoCast/internal/domain/models"

	"github.com/shopspring/decimal"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

type PipelinesResponse struct {
	Pipelines []string `json:"pipelines"`
}

type PipelineRunResponse struct {
	RunID           string  `json:"run_id"`
	Status          string  `json:"status"`
	PipelineName    string  `json:"pipeline_name"`
	Message         string  `json:"message"`
	ErrorKind       string  `json:"error_kind,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type RunHistoryResponse struct {
	Runs []models.PipelineResult `json:"runs"`
}

type PredictionItem struct {
	PredictionDate string  `json:"prediction_date"`
	PredictedPrice float64 `json:"predicted_price"`
	Lower          float64 `json:"predicted_price_lower"`
	Upper          float64 `json:"predicted_price_upper"`
	Trend          float64 `json:"trend"`
}

type ForecastResponse struct {
	Status              string                 `json:"status"`
	Symbol              string                 `json:"symbol"`
	LastHistoricalDate  string                 `json:"last_historical_date"`
	LastHistoricalPrice float64                `json:"last_historical_price"`
	ForecastDays        int                    `json:"forecast_days"`
	Retrained           bool                   `json:"retrained"`
	Predictions         []PredictionItem       `json:"predictions"`
	Summary             models.ForecastSummary `json:"summary"`
}

type PriceResponse struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func toRunResponse(r models.PipelineResult) PipelineRunResponse {
	return PipelineRunResponse{
		RunID:           r.RunID,
		Status:          r.Status,
		PipelineName:    r.PipelineName,
		Message:         r.Message,
		ErrorKind:       r.ErrorKind,
		DurationSeconds: round2(r.DurationSeconds),
	}
}

func toForecastResponse(r *models.ForecastResult) ForecastResponse {
	items := make([]PredictionItem, len(r.Predictions))
	for i, p := range r.Predictions {
		items[i] = PredictionItem{
			PredictionDate: p.Date.Format(models.DateLayout),
			PredictedPrice: round2(p.Predicted),
			Lower:          round2(p.Lower),
			Upper:          round2(p.Upper),
			Trend:          round2(p.Trend),
		}
	}
	return ForecastResponse{
		Status:              r.Status,
		Symbol:              r.Symbol,
		LastHistoricalDate:  r.LastHistoricalDate,
		LastHistoricalPrice: round2(r.LastHistoricalPrice),
		ForecastDays:        r.ForecastDays,
		Retrained:           r.Retrained,
		Predictions:         items,
		Summary:             r.Summary,
	}
}
