package service

import (
	"context"
	"time"

	"CryptoCast/internal/domain/models"
)

// ModelHandle is an immutable fitted model. It exposes no way to fit again.
type ModelHandle interface {
	Kind() string
	Config() models.ModelConfig
	FittedAt() time.Time
	// Regressors lists the external regressor columns the model was fit with.
	Regressors() []string
}

// Forecaster is the capability every forecasting model implementation provides.
// Fit always builds a fresh model; Serialize/Deserialize define the artifact format.
type Forecaster interface {
	Kind() string
	Fit(ctx context.Context, train *models.Dataset, cfg models.ModelConfig, extra []models.Seasonality) (ModelHandle, error)
	Predict(h ModelHandle, frame []models.PredictionPoint) ([]models.ForecastRow, error)
	Serialize(h ModelHandle) ([]byte, error)
	Deserialize(b []byte) (ModelHandle, error)
}
