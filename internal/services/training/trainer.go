package training

import (
	"context"
	"fmt"
	"time"

	"CryptoCast/internal/domain/models"
	"CryptoCast/internal/domain/service"
	"CryptoCast/pkg/logger"
)

// Trainer fits a fresh model for every call. Handles are never refit.
type Trainer struct {
	model service.Forecaster
	cfg   models.ModelConfig
	log   *logger.Logger
}

func NewTrainer(model service.Forecaster, cfg models.ModelConfig, lgr *logger.Logger) *Trainer {
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &Trainer{model: model, cfg: cfg, log: lgr}
}

// Config returns the hyperparameters models are trained with.
func (t *Trainer) Config() models.ModelConfig { return t.cfg }

// Train fits the model on the training partition with the halving cycle
// always registered.
func (t *Trainer) Train(ctx context.Context, train *models.Dataset) (service.ModelHandle, error) {
	if train == nil || train.Len() == 0 {
		return nil, fmt.Errorf("%w: empty training partition", models.ErrInsufficientData)
	}
	t.log.Info("training model",
		logger.String("kind", t.model.Kind()),
		logger.String("seasonality_mode", t.cfg.SeasonalityMode),
		logger.Int("samples", train.Len()))

	start := time.Now()
	h, err := t.model.Fit(ctx, train, t.cfg, []models.Seasonality{models.HalvingCycle})
	if err != nil {
		return nil, fmt.Errorf("fit %s model: %w", t.model.Kind(), err)
	}

	t.log.Info("model training completed",
		logger.Strings("regressors", h.Regressors()),
		logger.Duration("took", time.Since(start)))
	return h, nil
}
