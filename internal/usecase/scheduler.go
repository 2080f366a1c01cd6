package usecase

import (
	"context"
	"fmt"

	"CryptoCast/internal/domain/models"
	"CryptoCast/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Scheduler retrains the model on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
	svc  *ForecastService
	ctx  context.Context
	log  *logger.Logger
}

// NewScheduler builds a scheduler whose runs use ctx. Specs take a leading
// seconds field.
func NewScheduler(ctx context.Context, svc *ForecastService, lgr *logger.Logger) *Scheduler {
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &Scheduler{cron: cron.New(cron.WithSeconds()), svc: svc, ctx: ctx, log: lgr}
}

// RegisterRetrain runs the default pipeline on the cron expression expr.
func (s *Scheduler) RegisterRetrain(expr string) error {
	if _, err := s.cron.AddFunc(expr, s.retrain); err != nil {
		return fmt.Errorf("register retrain task: %w", err)
	}
	return nil
}

func (s *Scheduler) retrain() {
	res := s.svc.RunPipeline(s.ctx, models.PipelineDefault)
	s.log.Info("scheduled retrain done",
		logger.String("run_id", res.RunID),
		logger.String("status", res.Status),
		logger.Float64("duration_seconds", res.DurationSeconds))
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started")
}

// Stop waits for a running retrain to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}
