package models

import "time"

// DateLayout is the calendar-day format used in reports and responses.
const DateLayout = "2006-01-02"

// ForecastRow is one predicted day. Lower <= Predicted <= Upper is guaranteed by the model.
type ForecastRow struct {
	Date      time.Time `json:"date"`
	Predicted float64   `json:"predicted_price"`
	Lower     float64   `json:"predicted_price_lower"`
	Upper     float64   `json:"predicted_price_upper"`
	Trend     float64   `json:"trend"`
}

// SummaryPredictions aggregates predicted values over the horizon.
type SummaryPredictions struct {
	FirstDay     float64 `json:"first_day"`
	LastDay      float64 `json:"last_day"`
	MaxPredicted float64 `json:"max_predicted"`
	MinPredicted float64 `json:"min_predicted"`
}

// SummaryChanges are percentage changes against the last historical value.
type SummaryChanges struct {
	Change7Day        *float64 `json:"7_day_change_pct"`
	Change30Day       *float64 `json:"30_day_change_pct"`
	ChangeEndOfPeriod float64  `json:"end_of_forecast_change_pct"`
}

// SummaryUncertainty describes the prediction interval.
type SummaryUncertainty struct {
	AvgIntervalWidth float64 `json:"avg_interval_width"`
}

// ForecastSummary aggregates the future rows of a forecast.
// Everything except the historical anchor is nil when there are no future rows.
type ForecastSummary struct {
	LastHistoricalPrice float64             `json:"last_historical_price"`
	LastHistoricalDate  string              `json:"last_historical_date"`
	ForecastStartDate   *string             `json:"forecast_start_date"`
	ForecastEndDate     *string             `json:"forecast_end_date"`
	ForecastDays        int                 `json:"forecast_days"`
	Predictions         *SummaryPredictions `json:"predictions"`
	ExpectedChanges     *SummaryChanges     `json:"expected_changes"`
	Uncertainty         *SummaryUncertainty `json:"uncertainty"`
}

// Forecast is the output of one forecast extension.
type Forecast struct {
	LastHistoricalDate  time.Time
	LastHistoricalPrice float64
	Rows                []ForecastRow
	Summary             ForecastSummary
}

// ForecastResult is what the service returns to the boundary layer.
type ForecastResult struct {
	Status              string          `json:"status"`
	Symbol              string          `json:"symbol"`
	LastHistoricalDate  string          `json:"last_historical_date"`
	LastHistoricalPrice float64         `json:"last_historical_price"`
	ForecastDays        int             `json:"forecast_days"`
	Predictions         []ForecastRow   `json:"predictions"`
	Summary             ForecastSummary `json:"summary"`
	Retrained           bool            `json:"retrained"`
}

// ModelInfo reports the state of the persisted model.
type ModelInfo struct {
	Exists       bool               `json:"model_exists"`
	ModelType    string             `json:"model_type,omitempty"`
	CreatedAt    *time.Time         `json:"training_date,omitempty"`
	Metrics      *EvaluationMetrics `json:"metrics,omitempty"`
	TrainingInfo *TrainingInfo      `json:"training_info,omitempty"`
	TestInfo     *TestInfo          `json:"test_info,omitempty"`
}

// PriceQuote is a spot price read from the exchange.
type PriceQuote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}
