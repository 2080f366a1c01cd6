package features

import (
	"fmt"

	"CryptoCast/internal/domain/models"
	"CryptoCast/pkg/util"
)

// Split partitions ds chronologically: rows dated on or before
// max(date) - testDays go to train, the rest to test. ds must be sorted.
func Split(ds *models.Dataset, testDays int) (*models.Split, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, fmt.Errorf("%w: empty dataset", models.ErrInsufficientData)
	}
	cutoff := util.AddDays(ds.Last().Date, -testDays)

	n := 0
	for n < ds.Len() && !ds.Rows[n].Date.After(cutoff) {
		n++
	}

	out := &models.Split{
		Cutoff: cutoff,
		Train:  models.Dataset{Regressor: ds.Regressor, Rows: append([]models.TrainingExample(nil), ds.Rows[:n]...)},
		Test:   models.Dataset{Regressor: ds.Regressor, Rows: append([]models.TrainingExample(nil), ds.Rows[n:]...)},
	}
	if out.Train.Len() == 0 {
		return nil, fmt.Errorf("%w: no training rows on or before %s", models.ErrInsufficientData, util.FormatDay(cutoff))
	}
	if out.Test.Len() == 0 {
		return nil, fmt.Errorf("%w: no test rows after %s", models.ErrInsufficientData, util.FormatDay(cutoff))
	}
	return out, nil
}
