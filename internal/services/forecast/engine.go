package forecast

import (
	"fmt"

	"CryptoCast/internal/domain/models"
	"CryptoCast/internal/domain/service"
	"CryptoCast/internal/services/features"
	"CryptoCast/pkg/logger"
	"CryptoCast/pkg/util"
)

// RegressorWindow is how many trailing historical regressor values are
// averaged to fill future dates.
const RegressorWindow = 30

// Engine extends a fitted model past the end of the history.
type Engine struct {
	model service.Forecaster
	log   *logger.Logger
}

func NewEngine(model service.Forecaster, lgr *logger.Logger) *Engine {
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &Engine{model: model, log: lgr}
}

// Forecast predicts over the full history plus horizon further days and
// returns only the future rows with their summary.
func (e *Engine) Forecast(h service.ModelHandle, full *models.Dataset, horizon int, useRegressor bool) (*models.Forecast, error) {
	if full == nil || full.Len() == 0 {
		return nil, fmt.Errorf("%w: empty feature dataset", models.ErrDatasetMissing)
	}
	if horizon < 0 {
		return nil, fmt.Errorf("forecast horizon must not be negative, got %d", horizon)
	}

	frame := ExtendFrame(full, horizon, useRegressor)
	rows, err := e.model.Predict(h, frame)
	if err != nil {
		return nil, fmt.Errorf("predict extended frame: %w", err)
	}

	last := full.Last()
	future := FutureRows(rows, last.Date)
	if len(future) != horizon {
		return nil, fmt.Errorf("forecast produced %d future rows, want %d", len(future), horizon)
	}

	out := &models.Forecast{
		LastHistoricalDate:  last.Date,
		LastHistoricalPrice: last.Value,
		Rows:                future,
		Summary:             Summarize(future, last.Date, last.Value),
	}
	if len(future) > 0 {
		e.log.Info("forecast generated",
			logger.Int("days", len(future)),
			logger.String("from", util.FormatDay(future[0].Date)),
			logger.String("to", util.FormatDay(future[len(future)-1].Date)),
			logger.Float64("last_price", last.Value),
			logger.Float64("end_prediction", future[len(future)-1].Predicted))
	} else {
		e.log.Warn("no future predictions requested")
	}
	return out, nil
}

// ExtendFrame lists every historical date followed by horizon consecutive
// days. Future regressor values are the mean of the trailing
// RegressorWindow historical values.
func ExtendFrame(full *models.Dataset, horizon int, useRegressor bool) []models.PredictionPoint {
	withRegressor := useRegressor && full.HasRegressor()
	frame := make([]models.PredictionPoint, 0, full.Len()+horizon)
	for _, r := range full.Rows {
		p := models.PredictionPoint{Date: r.Date}
		if withRegressor {
			p.Regressor = r.Regressor
		}
		frame = append(frame, p)
	}

	fill := 0.0
	if withRegressor {
		fill = features.TrailingMean(full.Regressors(), RegressorWindow)
	}
	lastDate := full.Last().Date
	for i := 1; i <= horizon; i++ {
		frame = append(frame, models.PredictionPoint{Date: util.AddDays(lastDate, i), Regressor: fill})
	}
	return frame
}
