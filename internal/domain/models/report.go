package models

import "time"

// Seasonality modes.
const (
	SeasonalityAdditive       = "additive"
	SeasonalityMultiplicative = "multiplicative"
)

// ModelConfig is the hyperparameter record a model is trained with.
type ModelConfig struct {
	SeasonalityMode       string  `json:"seasonality_mode" yaml:"seasonality_mode"`
	YearlySeasonality     bool    `json:"yearly_seasonality" yaml:"yearly_seasonality"`
	WeeklySeasonality     bool    `json:"weekly_seasonality" yaml:"weekly_seasonality"`
	DailySeasonality      bool    `json:"daily_seasonality" yaml:"daily_seasonality"`
	ChangepointPriorScale float64 `json:"changepoint_prior_scale" yaml:"changepoint_prior_scale"`
	SeasonalityPriorScale float64 `json:"seasonality_prior_scale" yaml:"seasonality_prior_scale"`
	ChangepointRange      float64 `json:"changepoint_range" yaml:"changepoint_range"`
	NChangepoints         int     `json:"n_changepoints" yaml:"n_changepoints"`
	IntervalWidth         float64 `json:"interval_width" yaml:"interval_width"`
	AddVolumeRegressor    bool    `json:"add_volume_regressor" yaml:"add_volume_regressor"`
}

// DefaultModelConfig mirrors the defaults the service ships with.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		SeasonalityMode:       SeasonalityMultiplicative,
		YearlySeasonality:     true,
		WeeklySeasonality:     true,
		DailySeasonality:      false,
		ChangepointPriorScale: 0.05,
		SeasonalityPriorScale: 10,
		ChangepointRange:      0.9,
		NChangepoints:         25,
		IntervalWidth:         0.8,
		AddVolumeRegressor:    true,
	}
}

// Seasonality describes one periodic component of the model.
type Seasonality struct {
	Name         string  `json:"name"`
	Period       float64 `json:"period"`
	FourierOrder int     `json:"fourier_order"`
}

// HalvingCycle is the fixed multi-year component registered on every model.
var HalvingCycle = Seasonality{Name: "halving_cycle", Period: 365.25 * 4, FourierOrder: 3}

// EvaluationMetrics are the held-out regression metrics of one training run.
type EvaluationMetrics struct {
	MAE           float64 `json:"mae"`
	MAPE          float64 `json:"mape"`
	RMSE          float64 `json:"rmse"`
	R2            float64 `json:"r2"`
	TestSamples   int     `json:"test_samples"`
	TestStartDate string  `json:"test_start_date"`
	TestEndDate   string  `json:"test_end_date"`
}

// PriceRange summarizes the target values seen in training.
type PriceRange struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// TrainingInfo describes the training partition.
type TrainingInfo struct {
	Samples    int        `json:"samples"`
	StartDate  string     `json:"start_date"`
	EndDate    string     `json:"end_date"`
	PriceRange PriceRange `json:"price_range"`
	Volatility float64    `json:"annualized_volatility"`
}

// TestInfo describes the held-out partition.
type TestInfo struct {
	Samples   int    `json:"samples"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// ModelReport is the persisted training report.
type ModelReport struct {
	ModelType    string            `json:"model_type"`
	CreatedAt    time.Time         `json:"created_at"`
	Metrics      EvaluationMetrics `json:"metrics"`
	TrainingInfo TrainingInfo      `json:"training_info"`
	TestInfo     TestInfo          `json:"test_info"`
	Config       ModelConfig       `json:"config"`
}
