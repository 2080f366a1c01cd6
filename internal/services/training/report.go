package training

import (
	"time"

	"CryptoCast/internal/domain/models"
	"CryptoCast/internal/services/features"
)

// BuildReport assembles the persisted training report.
func BuildReport(kind string, createdAt time.Time, cfg models.ModelConfig, split *models.Split, m models.EvaluationMetrics) *models.ModelReport {
	return &models.ModelReport{
		ModelType:    kind,
		CreatedAt:    createdAt.UTC(),
		Metrics:      m,
		TrainingInfo: features.TrainingInfoOf(&split.Train),
		TestInfo:     features.TestInfoOf(&split.Test),
		Config:       cfg,
	}
}
