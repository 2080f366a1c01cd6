package seasonal

import (
	"time"

	"CryptoCast/internal/domain/models"
)

// Kind identifies this model family in artifacts and reports.
const Kind = "seasonal_ridge"

// Model is a fitted piecewise-linear trend plus Fourier seasonality model.
// Once fit it is read-only; a second fit on the same value fails.
type Model struct {
	cfg           models.ModelConfig
	seasonalities []models.Seasonality
	regressor     string
	fittedAt      time.Time
	fitted        bool

	start        time.Time
	spanDays     float64
	yScale       float64
	changepoints []float64
	trend        []float64 // intercept, slope, one delta per changepoint
	beta         []float64 // fourier terms, then the regressor
	regMean      float64
	regStd       float64
	sigma        float64 // in-sample residual std, original units
}

func newModel(cfg models.ModelConfig, seasonalities []models.Seasonality, regressor string) *Model {
	return &Model{cfg: cfg, seasonalities: seasonalities, regressor: regressor}
}

func (m *Model) Kind() string               { return Kind }
func (m *Model) Config() models.ModelConfig { return m.cfg }
func (m *Model) FittedAt() time.Time        { return m.fittedAt }

func (m *Model) Regressors() []string {
	if m.regressor == "" {
		return nil
	}
	return []string{m.regressor}
}

// Seasonalities returns the periodic components the model was built with.
func (m *Model) Seasonalities() []models.Seasonality {
	return append([]models.Seasonality(nil), m.seasonalities...)
}

// Changepoints returns the trend changepoints as calendar dates.
func (m *Model) Changepoints() []time.Time {
	out := make([]time.Time, len(m.changepoints))
	for i, cp := range m.changepoints {
		out[i] = m.start.Add(time.Duration(cp * m.spanDays * float64(24*time.Hour)))
	}
	return out
}

func (m *Model) multiplicative() bool {
	return m.cfg.SeasonalityMode == models.SeasonalityMultiplicative
}

// seasonalitiesFor expands the config toggles into concrete components and
// appends extra.
func seasonalitiesFor(cfg models.ModelConfig, extra []models.Seasonality) []models.Seasonality {
	var out []models.Seasonality
	if cfg.YearlySeasonality {
		out = append(out, models.Seasonality{Name: "yearly", Period: 365.25, FourierOrder: 10})
	}
	if cfg.WeeklySeasonality {
		out = append(out, models.Seasonality{Name: "weekly", Period: 7, FourierOrder: 3})
	}
	if cfg.DailySeasonality {
		out = append(out, models.Seasonality{Name: "daily", Period: 1, FourierOrder: 4})
	}
	return append(out, extra...)
}
