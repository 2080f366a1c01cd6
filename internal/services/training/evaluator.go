package training

import (
	"fmt"
	"math"

	"CryptoCast/internal/domain/models"
	"CryptoCast/internal/domain/service"
	"CryptoCast/pkg/logger"
	"CryptoCast/pkg/util"
)

// mapeEpsilon keeps MAPE finite on zero actuals.
const mapeEpsilon = 1e-10

type Evaluator struct {
	model service.Forecaster
	log   *logger.Logger
}

func NewEvaluator(model service.Forecaster, lgr *logger.Logger) *Evaluator {
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &Evaluator{model: model, log: lgr}
}

// Evaluate predicts over the test dates and scores the result. With the
// regressor enabled the test partition's own regressor values are used.
func (e *Evaluator) Evaluate(h service.ModelHandle, test *models.Dataset, useRegressor bool) (models.EvaluationMetrics, error) {
	if test == nil || test.Len() == 0 {
		return models.EvaluationMetrics{}, fmt.Errorf("%w: empty test partition", models.ErrInsufficientData)
	}

	withRegressor := useRegressor && test.HasRegressor()
	frame := make([]models.PredictionPoint, test.Len())
	for i, r := range test.Rows {
		frame[i] = models.PredictionPoint{Date: r.Date}
		if withRegressor {
			frame[i].Regressor = r.Regressor
		}
	}

	rows, err := e.model.Predict(h, frame)
	if err != nil {
		return models.EvaluationMetrics{}, fmt.Errorf("predict test partition: %w", err)
	}
	if len(rows) != test.Len() {
		return models.EvaluationMetrics{}, fmt.Errorf("predict test partition: got %d rows for %d dates", len(rows), test.Len())
	}

	pred := make([]float64, len(rows))
	for i, r := range rows {
		pred[i] = r.Predicted
	}
	m := Score(test.Values(), pred)
	m.TestSamples = test.Len()
	m.TestStartDate = util.FormatDay(test.First().Date)
	m.TestEndDate = util.FormatDay(test.Last().Date)

	e.log.Info("model evaluation results",
		logger.Float64("mae", m.MAE),
		logger.Float64("mape_pct", m.MAPE),
		logger.Float64("rmse", m.RMSE),
		logger.Float64("r2", m.R2),
		logger.Int("test_samples", m.TestSamples))
	return m, nil
}

// Score computes MAE, MAPE (percent), RMSE and R² for equally sized slices.
// R² is 1 for a constant series predicted exactly and 0 for a constant
// series predicted with any error.
func Score(actual, predicted []float64) models.EvaluationMetrics {
	n := float64(len(actual))
	if n == 0 {
		return models.EvaluationMetrics{}
	}
	var absSum, pctSum, sqSum, mean float64
	for i, y := range actual {
		d := y - predicted[i]
		absSum += math.Abs(d)
		pctSum += math.Abs(d) / (math.Abs(y) + mapeEpsilon)
		sqSum += d * d
		mean += y
	}
	mean /= n

	ssTot := 0.0
	for _, y := range actual {
		ssTot += (y - mean) * (y - mean)
	}
	r2 := 0.0
	switch {
	case ssTot != 0:
		r2 = 1 - sqSum/ssTot
	case sqSum == 0:
		r2 = 1
	}

	return models.EvaluationMetrics{
		MAE:  absSum / n,
		MAPE: pctSum / n * 100,
		RMSE: math.Sqrt(sqSum / n),
		R2:   r2,
	}
}
