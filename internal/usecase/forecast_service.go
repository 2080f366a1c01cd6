package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"CryptoCast/internal/domain/models"
	drepo "CryptoCast/internal/domain/repository"
	"CryptoCast/pkg/logger"
	"CryptoCast/pkg/metrics"

	"github.com/google/uuid"
)

const (
	forecastCachePattern = "forecast:*"
	retrainLockPrefix    = "retrain:"
	maxForecastReads     = 3
)

// ForecastServiceConfig holds the service-level knobs.
type ForecastServiceConfig struct {
	Symbol   string
	CacheTTL time.Duration
	LockTTL  time.Duration
	// TrainIfMissing runs the default pipeline when a forecast is requested
	// and no model has been trained yet.
	TrainIfMissing bool
	// RunTimeout bounds a pipeline run. Runs are detached from the callers
	// waiting on them, so this is the only deadline they have.
	RunTimeout time.Duration
}

// ServiceOption configures optional collaborators of ForecastService.
type ServiceOption func(*ForecastService)

// WithResponseCache caches forecast responses.
func WithResponseCache(c drepo.ResponseCache) ServiceOption {
	return func(s *ForecastService) { s.cache = c }
}

// WithRetrainLocker serializes pipeline runs across processes.
func WithRetrainLocker(l drepo.Locker) ServiceOption {
	return func(s *ForecastService) { s.locker = l }
}

// WithJobQueue enables asynchronous pipeline runs.
func WithJobQueue(q drepo.JobQueue) ServiceOption {
	return func(s *ForecastService) { s.queue = q }
}

// ForecastService is the entry point of the boundary layer: it runs pipelines,
// reports on the persisted model and serves forecasts.
type ForecastService struct {
	steps     *Steps
	pipelines map[string]*Pipeline
	prices    drepo.PriceSource
	recorder  drepo.RunRecorder
	metrics   drepo.Metrics
	cache     drepo.ResponseCache
	locker    drepo.Locker
	queue     drepo.JobQueue
	cfg       ForecastServiceConfig
	log       *logger.Logger
	flights   *flightGroup
	now       func() time.Time
}

func NewForecastService(steps *Steps, prices drepo.PriceSource, recorder drepo.RunRecorder, cfg ForecastServiceConfig, lgr *logger.Logger, opts ...ServiceOption) (*ForecastService, error) {
	if lgr == nil {
		lgr = logger.Nop()
	}
	if steps.Metrics == nil {
		steps.Metrics = metrics.Noop{}
	}
	if steps.Log == nil {
		steps.Log = lgr
	}
	ps, err := steps.Pipelines()
	if err != nil {
		return nil, fmt.Errorf("build pipelines: %w", err)
	}
	s := &ForecastService{
		steps:     steps,
		pipelines: ps,
		prices:    prices,
		recorder:  recorder,
		metrics:   steps.Metrics,
		cfg:       cfg,
		log:       lgr,
		flights:   newFlightGroup(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// ListPipelines returns the names RunPipeline accepts.
func (s *ForecastService) ListPipelines() []string {
	return PipelineNames(s.pipelines)
}

// RunPipeline runs the named pipeline and reports the outcome. It never fails:
// errors and panics end up in the returned result.
func (s *ForecastService) RunPipeline(ctx context.Context, name string) models.PipelineResult {
	return s.runPipeline(ctx, uuid.NewString(), name)
}

func (s *ForecastService) runPipeline(ctx context.Context, runID, name string) models.PipelineResult {
	p, ok := s.pipelines[name]
	if !ok {
		res := models.PipelineResult{RunID: runID, PipelineName: name, StartedAt: s.now().UTC()}
		return s.finish(ctx, res, fmt.Errorf("%w: %q", models.ErrUnknownPipeline, name))
	}

	loc := s.steps.Store.Location()
	detached := context.WithoutCancel(ctx)
	res, shared, err := s.flights.Do(ctx, loc, name, runID, func() models.PipelineResult {
		runCtx, cancel := s.runContext(detached)
		defer cancel()
		return s.execute(runCtx, runID, loc, p)
	})
	if err != nil {
		s.log.Warn("stopped waiting for pipeline run",
			logger.String("pipeline", name),
			logger.String("run_id", res.RunID),
			logger.Error(err))
		res.PipelineName = name
		res.Status = models.RunStatusRunning
		res.ErrorKind = models.ErrorKind(err)
		res.Message = fmt.Sprintf("Pipeline '%s' is still running, stopped waiting: %v", name, err)
		return res
	}
	if shared {
		s.log.Info("joined in-flight pipeline run",
			logger.String("pipeline", name),
			logger.String("run_id", res.RunID))
	}
	return res
}

func (s *ForecastService) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RunTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.RunTimeout)
}

func (s *ForecastService) execute(ctx context.Context, runID, loc string, p *Pipeline) models.PipelineResult {
	res := models.PipelineResult{RunID: runID, PipelineName: p.Name, StartedAt: s.now().UTC()}

	if s.locker != nil {
		key := retrainLockPrefix + loc
		acquired, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
		switch {
		case err != nil:
			s.log.Warn("retrain lock unavailable, continuing with local lock only", logger.Error(err))
		case !acquired:
			return s.finish(ctx, res, fmt.Errorf("%w: %s", models.ErrRetrainInProgress, loc))
		default:
			defer func() {
				if err := s.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
					s.log.Warn("release retrain lock", logger.Error(err))
				}
			}()
		}
	}

	s.log.Info("pipeline started", logger.String("pipeline", p.Name), logger.String("run_id", runID))
	return s.finish(ctx, res, s.guardedRun(ctx, p))
}

func (s *ForecastService) guardedRun(ctx context.Context, p *Pipeline) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	_, err = p.Run(ctx, s.metrics, s.log)
	return err
}

func (s *ForecastService) finish(ctx context.Context, res models.PipelineResult, err error) models.PipelineResult {
	res.DurationSeconds = s.now().Sub(res.StartedAt).Seconds()
	if err != nil {
		res.Status = models.RunStatusError
		res.ErrorKind = models.ErrorKind(err)
		res.Message = fmt.Sprintf("Pipeline '%s' failed: %v", res.PipelineName, err)
		s.metrics.RecordError(res.ErrorKind)
		s.log.Error("pipeline failed",
			logger.String("pipeline", res.PipelineName),
			logger.String("run_id", res.RunID),
			logger.String("kind", res.ErrorKind),
			logger.Float64("duration_seconds", res.DurationSeconds),
			logger.Error(err))
	} else {
		res.Status = models.RunStatusSuccess
		res.Message = fmt.Sprintf("Pipeline '%s' completed successfully", res.PipelineName)
		s.log.Info("pipeline finished",
			logger.String("pipeline", res.PipelineName),
			logger.String("run_id", res.RunID),
			logger.Float64("duration_seconds", res.DurationSeconds))
		s.invalidateForecasts(ctx)
	}
	s.metrics.RecordPipelineRun(res.PipelineName, res.Status, res.DurationSeconds)
	s.record(ctx, res)
	return res
}

func (s *ForecastService) record(ctx context.Context, res models.PipelineResult) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordRun(context.WithoutCancel(ctx), res); err != nil {
		s.log.Warn("record pipeline run", logger.String("run_id", res.RunID), logger.Error(err))
	}
}

func (s *ForecastService) invalidateForecasts(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(context.WithoutCancel(ctx), forecastCachePattern); err != nil {
		s.log.Warn("invalidate forecast cache", logger.Error(err))
	}
}

// EnqueuePipeline schedules the named pipeline on the job queue.
func (s *ForecastService) EnqueuePipeline(ctx context.Context, name string) (models.PipelineResult, error) {
	if _, ok := s.pipelines[name]; !ok {
		return models.PipelineResult{}, fmt.Errorf("%w: %q", models.ErrUnknownPipeline, name)
	}
	if s.queue == nil {
		return models.PipelineResult{}, models.ErrQueueDisabled
	}
	res := models.PipelineResult{
		RunID:        uuid.NewString(),
		Status:       models.RunStatusQueued,
		PipelineName: name,
		Message:      fmt.Sprintf("Pipeline '%s' queued", name),
		StartedAt:    s.now().UTC(),
	}
	payload := models.PipelineRunPayload{RunID: res.RunID, PipelineName: name, Trigger: "api"}
	if err := s.queue.Enqueue(ctx, PipelineRunJobType, payload); err != nil {
		return models.PipelineResult{}, fmt.Errorf("enqueue pipeline %s: %w", name, err)
	}
	s.record(ctx, res)
	return res, nil
}

// RecentRuns returns the latest recorded runs, newest first.
func (s *ForecastService) RecentRuns(ctx context.Context, limit int) ([]models.PipelineResult, error) {
	if s.recorder == nil {
		return nil, nil
	}
	return s.recorder.RecentRuns(ctx, limit)
}

// GetModelInfo describes the persisted model. A missing model is reported,
// not returned as an error.
func (s *ForecastService) GetModelInfo(ctx context.Context) (*models.ModelInfo, error) {
	art, err := s.steps.Store.LoadModel(ctx)
	if errors.Is(err, models.ErrArtifactMissing) {
		return &models.ModelInfo{Exists: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	h, err := s.steps.Forecaster.Deserialize(art.Blob)
	if err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}

	created := art.CreatedAt.UTC()
	info := &models.ModelInfo{Exists: true, ModelType: h.Kind(), CreatedAt: &created}

	report, err := s.steps.Store.LoadReport(ctx)
	switch {
	case err == nil:
		info.Metrics = &report.Metrics
		info.TrainingInfo = &report.TrainingInfo
		info.TestInfo = &report.TestInfo
	case errors.Is(err, models.ErrArtifactMissing):
	default:
		s.log.Warn("load model report", logger.Error(err))
	}
	return info, nil
}

// GetForecast forecasts days ahead from the persisted model. With retrain the
// default pipeline runs first and a failed run is returned as *models.PipelineError.
func (s *ForecastService) GetForecast(ctx context.Context, days int, retrain bool) (*models.ForecastResult, error) {
	if days < 1 {
		return nil, fmt.Errorf("days ahead must be positive, got %d", days)
	}
	start := s.now()
	defer func() { s.metrics.RecordLatency("get_forecast", s.now().Sub(start).Seconds()) }()

	key := fmt.Sprintf("forecast:%d", days)
	if !retrain && s.cache != nil {
		var cached models.ForecastResult
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			cached.Retrained = false
			return &cached, nil
		}
	}

	retrained := false
	if retrain {
		if err := s.retrain(ctx); err != nil {
			return nil, err
		}
		retrained = true
	}

	exists, err := s.steps.Store.ModelExists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check model: %w", err)
	}
	if !exists && !retrained && s.cfg.TrainIfMissing {
		s.log.Info("no trained model, running default pipeline")
		if err := s.retrain(ctx); err != nil {
			return nil, err
		}
		retrained = true
		exists, err = s.steps.Store.ModelExists(ctx)
		if err != nil {
			return nil, fmt.Errorf("check model: %w", err)
		}
	}
	if !exists {
		return nil, models.ErrModelNotTrained
	}

	// Model and dataset are separate artifacts; read them only between runs
	// and retry when a run slipped in while reading.
	loc := s.steps.Store.Location()
	for attempt := 1; ; attempt++ {
		gen, err := s.flights.Settled(ctx, loc)
		if err != nil {
			return nil, fmt.Errorf("wait for pipeline run: %w", err)
		}
		out, err := s.forecastFromArtifacts(ctx, days)
		if err != nil {
			return nil, err
		}
		if !s.flights.Unchanged(loc, gen) {
			if attempt < maxForecastReads {
				s.log.Debug("artifacts changed while forecasting, reading again", logger.Int("attempt", attempt))
				continue
			}
			return nil, fmt.Errorf("artifacts in %s kept changing while forecasting", loc)
		}
		s.cacheForecast(ctx, key, *out, gen)
		out.Retrained = retrained
		return out, nil
	}
}

func (s *ForecastService) forecastFromArtifacts(ctx context.Context, days int) (*models.ForecastResult, error) {
	h, err := s.steps.loadModel(ctx)
	if errors.Is(err, models.ErrArtifactMissing) {
		return nil, models.ErrModelNotTrained
	}
	if err != nil {
		return nil, err
	}
	full, err := s.steps.Store.LoadDataset(ctx, drepo.DatasetFull)
	if errors.Is(err, models.ErrArtifactMissing) {
		return nil, fmt.Errorf("%w: %v", models.ErrDatasetMissing, err)
	}
	if err != nil {
		return nil, fmt.Errorf("load full dataset: %w", err)
	}

	fc, err := s.steps.Engine.Forecast(h, full, days, s.steps.Config.UseRegressor)
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	return &models.ForecastResult{
		Status:              models.RunStatusSuccess,
		Symbol:              s.cfg.Symbol,
		LastHistoricalDate:  fc.LastHistoricalDate.Format(models.DateLayout),
		LastHistoricalPrice: fc.LastHistoricalPrice,
		ForecastDays:        len(fc.Rows),
		Predictions:         fc.Rows,
		Summary:             fc.Summary,
	}, nil
}

// cacheForecast stores out unless a run started since gen was observed.
func (s *ForecastService) cacheForecast(ctx context.Context, key string, out models.ForecastResult, gen uint64) {
	if s.cache == nil {
		return
	}
	out.Retrained = false
	if err := s.cache.Set(ctx, key, out, s.cfg.CacheTTL); err != nil {
		s.log.Warn("cache forecast", logger.Error(err))
		return
	}
	if !s.flights.Unchanged(s.steps.Store.Location(), gen) {
		if err := s.cache.DeleteByPattern(context.WithoutCancel(ctx), key); err != nil {
			s.log.Warn("drop stale forecast", logger.Error(err))
		}
	}
}

func (s *ForecastService) retrain(ctx context.Context) error {
	res := s.RunPipeline(ctx, models.PipelineDefault)
	if !res.OK() {
		return &models.PipelineError{Result: res}
	}
	return nil
}

// GetCurrentPrice reads the spot price of symbol, or of the configured symbol
// when empty.
func (s *ForecastService) GetCurrentPrice(ctx context.Context, symbol string) (*models.PriceQuote, error) {
	if symbol == "" {
		symbol = s.cfg.Symbol
	}
	q, err := s.prices.GetPrice(ctx, symbol)
	if err != nil {
		s.metrics.RecordError(models.ErrorKindNetwork)
		if errors.Is(err, models.ErrNetwork) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrNetwork, err)
	}
	s.metrics.RecordLastPrice(q.Symbol, q.Price)
	return &q, nil
}

type flight struct {
	done  chan struct{}
	runID string
	res   models.PipelineResult
}

type place struct {
	mu     sync.Mutex
	active int
	gen    uint64
	idle   chan struct{}
}

// flightGroup runs at most one pipeline per location at a time. Callers asking
// for a pipeline that is already running on the same location share its result.
// Runs execute on their own goroutine, so a caller that gives up waiting does
// not stop the run for the others.
type flightGroup struct {
	mu     sync.Mutex
	calls  map[string]*flight
	places map[string]*place
}

func newFlightGroup() *flightGroup {
	return &flightGroup{calls: make(map[string]*flight), places: make(map[string]*place)}
}

func (g *flightGroup) placeLocked(loc string) *place {
	p, ok := g.places[loc]
	if !ok {
		p = &place{}
		g.places[loc] = p
	}
	return p
}

// Do starts fn unless the same pipeline is already in flight on loc, then waits
// for the result until ctx ends. On ctx expiry the returned result only carries
// the run ID of the flight.
func (g *flightGroup) Do(ctx context.Context, loc, name, runID string, fn func() models.PipelineResult) (models.PipelineResult, bool, error) {
	key := loc + "|" + name
	g.mu.Lock()
	f, shared := g.calls[key]
	if !shared {
		f = &flight{done: make(chan struct{}), runID: runID}
		g.calls[key] = f
		p := g.placeLocked(loc)
		if p.active == 0 {
			p.idle = make(chan struct{})
		}
		p.active++
		go g.run(key, p, f, fn)
	}
	g.mu.Unlock()

	select {
	case <-f.done:
		return f.res, shared, nil
	case <-ctx.Done():
		return models.PipelineResult{RunID: f.runID}, shared, ctx.Err()
	}
}

func (g *flightGroup) run(key string, p *place, f *flight, fn func() models.PipelineResult) {
	p.mu.Lock()
	f.res = fn()
	p.mu.Unlock()

	g.mu.Lock()
	delete(g.calls, key)
	p.active--
	p.gen++
	if p.active == 0 {
		close(p.idle)
	}
	g.mu.Unlock()
	close(f.done)
}

// Settled waits until no run is pending on loc and returns its generation.
func (g *flightGroup) Settled(ctx context.Context, loc string) (uint64, error) {
	for {
		g.mu.Lock()
		p := g.placeLocked(loc)
		if p.active == 0 {
			gen := p.gen
			g.mu.Unlock()
			return gen, nil
		}
		idle := p.idle
		g.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// Unchanged reports whether loc is idle and still at generation gen.
func (g *flightGroup) Unchanged(loc string, gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.placeLocked(loc)
	return p.active == 0 && p.gen == gen
}
