package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNetwork           = errors.New("network error")
	ErrDataQuality       = errors.New("data quality error")
	ErrInsufficientData  = errors.New("insufficient data")
	ErrModelNotTrained   = errors.New("model not trained")
	ErrDatasetMissing    = errors.New("dataset missing")
	ErrPipelineExecution = errors.New("pipeline execution failed")
	ErrUnknownPipeline   = errors.New("unknown pipeline")
	ErrArtifactMissing   = errors.New("artifact missing")
	ErrModelAlreadyFit   = errors.New("model already fit")
	ErrRetrainInProgress = errors.New("retrain already in progress")
	ErrQueueDisabled     = errors.New("asynchronous runs are not enabled")
)

// DataQualityError is raised by the validation gate.
type DataQualityError struct {
	Reason  string
	Missing []string
	Column  string
}

func (e *DataQualityError) Error() string {
	switch {
	case len(e.Missing) > 0:
		return fmt.Sprintf("%s: missing required columns: %s", ErrDataQuality, strings.Join(e.Missing, ", "))
	case e.Column != "":
		return fmt.Sprintf("%s: %s in column %s", ErrDataQuality, e.Reason, e.Column)
	default:
		return fmt.Sprintf("%s: %s", ErrDataQuality, e.Reason)
	}
}

// Is lets errors.Is(err, ErrDataQuality) match.
func (e *DataQualityError) Is(target error) bool { return target == ErrDataQuality }

// Error kinds used in structured pipeline results and metrics.
const (
	ErrorKindNetwork          = "network"
	ErrorKindDataQuality      = "data_quality"
	ErrorKindInsufficientData = "insufficient_data"
	ErrorKindArtifact         = "artifact"
	ErrorKindLocked           = "locked"
	ErrorKindCancelled        = "cancelled"
	ErrorKindInternal         = "internal"
)

// ErrorKind classifies err so callers can tell transient failures from bad input.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNetwork):
		return ErrorKindNetwork
	case errors.Is(err, ErrDataQuality):
		return ErrorKindDataQuality
	case errors.Is(err, ErrInsufficientData):
		return ErrorKindInsufficientData
	case errors.Is(err, ErrArtifactMissing), errors.Is(err, ErrDatasetMissing), errors.Is(err, ErrModelNotTrained):
		return ErrorKindArtifact
	case errors.Is(err, ErrRetrainInProgress):
		return ErrorKindLocked
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindCancelled
	default:
		return ErrorKindInternal
	}
}

// PipelineError carries a failed run to callers that need an error value.
// It matches ErrPipelineExecution and the sentinel of the run's error kind.
type PipelineError struct {
	Result PipelineResult
}

func (e *PipelineError) Error() string { return e.Result.Message }

func (e *PipelineError) Is(target error) bool {
	if target == ErrPipelineExecution {
		return true
	}
	switch e.Result.ErrorKind {
	case ErrorKindNetwork:
		return target == ErrNetwork
	case ErrorKindDataQuality:
		return target == ErrDataQuality
	case ErrorKindInsufficientData:
		return target == ErrInsufficientData
	case ErrorKindLocked:
		return target == ErrRetrainInProgress
	}
	return false
}
