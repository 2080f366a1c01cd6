package models

import "time"

// RegressorVolume is the name of the volume-derived external regressor.
const RegressorVolume = "volume"

// TrainingExample is one (date, value[, regressor]) row of the model-ready dataset.
type TrainingExample struct {
	Date      time.Time `json:"date"`
	Value     float64   `json:"value"`
	Regressor float64   `json:"regressor,omitempty"`
}

// Dataset is a date-ordered series of training examples.
// Regressor is empty when no external regressor column is attached.
type Dataset struct {
	Regressor string
	Rows      []TrainingExample
}

// HasRegressor reports whether rows carry a regressor value.
func (d *Dataset) HasRegressor() bool { return d.Regressor != "" }

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Rows) }

// First returns the earliest row. Callers must check Len first.
func (d *Dataset) First() TrainingExample { return d.Rows[0] }

// Last returns the latest row. Callers must check Len first.
func (d *Dataset) Last() TrainingExample { return d.Rows[len(d.Rows)-1] }

// Values returns the target column.
func (d *Dataset) Values() []float64 {
	out := make([]float64, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = r.Value
	}
	return out
}

// Regressors returns the regressor column.
func (d *Dataset) Regressors() []float64 {
	out := make([]float64, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = r.Regressor
	}
	return out
}

// Split holds the chronological train/test partitions of one dataset.
type Split struct {
	Cutoff time.Time
	Train  Dataset
	Test   Dataset
}

// PredictionPoint is one row of a prediction frame handed to a model.
type PredictionPoint struct {
	Date      time.Time
	Regressor float64
}
