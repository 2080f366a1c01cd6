package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"CryptoCast/internal/domain/models"
	"CryptoCast/pkg/queue"
)

// PipelineRunJobType is the queue message type of asynchronous pipeline runs.
const PipelineRunJobType = "pipeline.run"

// NewPipelineRunJob returns the queue job that executes queued runs. Only
// network failures are handed back to the queue for a retry; the other
// kinds would fail the same way again.
func NewPipelineRunJob(svc *ForecastService) queue.Job {
	return queue.JobFunc{
		JobName: "pipeline-runner",
		MsgType: PipelineRunJobType,
		Fn: func(ctx context.Context, payload json.RawMessage) error {
			p, err := queue.ParsePayload[models.PipelineRunPayload](payload)
			if err != nil {
				return err
			}
			name := p.PipelineName
			if name == "" {
				name = models.PipelineDefault
			}
			res := svc.runPipeline(ctx, p.RunID, name)
			if !res.OK() && res.ErrorKind == models.ErrorKindNetwork {
				return fmt.Errorf("pipeline %s: %s", name, res.Message)
			}
			return nil
		},
	}
}
