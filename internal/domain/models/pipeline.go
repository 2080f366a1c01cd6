package models

import "time"

// Pipeline names.
const (
	PipelineDefault        = "__default__"
	PipelineDataIngestion  = "data_ingestion"
	PipelineDataProcessing = "data_processing"
	PipelineModelTraining  = "model_training"
	PipelineInference      = "inference"
)

// Run statuses.
const (
	RunStatusSuccess = "success"
	RunStatusError   = "error"
	RunStatusQueued  = "queued"
	RunStatusRunning = "running"
)

// PipelineResult is the structured outcome of one pipeline run. It is the only
// way pipeline failures reach the boundary layer.
type PipelineResult struct {
	RunID           string    `json:"run_id"`
	Status          string    `json:"status"`
	PipelineName    string    `json:"pipeline_name"`
	Message         string    `json:"message"`
	ErrorKind       string    `json:"error_kind,omitempty"`
	DurationSeconds float64   `json:"duration_seconds"`
	StartedAt       time.Time `json:"started_at"`
}

// OK reports whether the run succeeded.
func (r PipelineResult) OK() bool { return r.Status == RunStatusSuccess }

// PipelineRunPayload is the queue payload for asynchronous runs.
type PipelineRunPayload struct {
	RunID        string `json:"run_id"`
	PipelineName string `json:"pipeline_name"`
	Trigger      string `json:"trigger"`
}
