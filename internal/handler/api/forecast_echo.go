package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"CryptoCast/internal/domain/models"
	"CryptoCast/internal/service/metrics"
	xhttp "CryptoCast/pkg/http"
	xlogger "CryptoCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Version is reported by the health endpoints.
var Version = "1.0.0"

// ForecastService is what the HTTP layer needs from the use case.
type ForecastService interface {
	ListPipelines() []string
	RunPipeline(ctx context.Context, name string) models.PipelineResult
	EnqueuePipeline(ctx context.Context, name string) (models.PipelineResult, error)
	RecentRuns(ctx context.Context, limit int) ([]models.PipelineResult, error)
	GetModelInfo(ctx context.Context) (*models.ModelInfo, error)
	GetForecast(ctx context.Context, days int, retrain bool) (*models.ForecastResult, error)
	GetCurrentPrice(ctx context.Context, symbol string) (*models.PriceQuote, error)
}

// ForecastEchoHandler serves the forecasting API.
type ForecastEchoHandler struct {
	logger *xlogger.Logger
	svc    ForecastService
	now    func() time.Time
}

func NewForecastEchoHandler(logger *xlogger.Logger, svc ForecastService) *ForecastEchoHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ForecastEchoHandler{logger: logger, svc: svc, now: time.Now}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Health)
	e.GET("/health", h.Health)

	g := e.Group("/api/v1")
	g.GET("/price/current", h.CurrentPrice)
	g.GET("/model/info", h.ModelInfo)
	g.GET("/pipelines", h.Pipelines)
	g.POST("/pipelines/run", h.RunPipeline)
	g.GET("/pipelines/runs", h.Runs)
	g.POST("/forecast", h.Forecast)
	g.GET("/forecast", h.ForecastNoRetrain)
}

func (h *ForecastEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: h.now().UTC(),
	})
}

func (h *ForecastEchoHandler) CurrentPrice(c echo.Context) error {
	defer h.observe("price_current", time.Now())
	req := &models.CurrentPriceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	q, err := h.svc.GetCurrentPrice(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.fail(c, "price_current", err)
	}
	return xhttp.SuccessResponse(c, PriceResponse{
		Symbol:    q.Symbol,
		Price:     round2(q.Price),
		Timestamp: q.Timestamp,
	})
}

func (h *ForecastEchoHandler) ModelInfo(c echo.Context) error {
	defer h.observe("model_info", time.Now())
	info, err := h.svc.GetModelInfo(c.Request().Context())
	if err != nil {
		return h.fail(c, "model_info", err)
	}
	return xhttp.SuccessResponse(c, info)
}

func (h *ForecastEchoHandler) Pipelines(c echo.Context) error {
	return xhttp.SuccessResponse(c, PipelinesResponse{Pipelines: h.svc.ListPipelines()})
}

func (h *ForecastEchoHandler) RunPipeline(c echo.Context) error {
	defer h.observe("pipelines_run", time.Now())
	req := &models.PipelineRunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	if req.Async {
		res, err := h.svc.EnqueuePipeline(ctx, req.PipelineName)
		if err != nil {
			return h.fail(c, "pipelines_run", err)
		}
		return xhttp.AcceptedResponse(c, toRunResponse(res))
	}

	res := h.svc.RunPipeline(ctx, req.PipelineName)
	if res.OK() {
		return xhttp.SuccessResponse(c, toRunResponse(res))
	}
	status := http.StatusInternalServerError
	if res.ErrorKind == models.ErrorKindLocked {
		status = http.StatusConflict
	}
	metrics.EndpointErrors.WithLabelValues("pipelines_run", strconv.Itoa(status)).Inc()
	return xhttp.DataResponse(c, status, toRunResponse(res))
}

func (h *ForecastEchoHandler) Runs(c echo.Context) error {
	req := &models.RunHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	runs, err := h.svc.RecentRuns(c.Request().Context(), req.Limit)
	if err != nil {
		return h.fail(c, "pipelines_runs", err)
	}
	if runs == nil {
		runs = []models.PipelineResult{}
	}
	return xhttp.SuccessResponse(c, RunHistoryResponse{Runs: runs})
}

func (h *ForecastEchoHandler) Forecast(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.forecast(c, req.DaysAhead, req.Retrain)
}

// ForecastNoRetrain serves GET /forecast, which never trains.
func (h *ForecastEchoHandler) ForecastNoRetrain(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.forecast(c, req.DaysAhead, false)
}

func (h *ForecastEchoHandler) forecast(c echo.Context, days int, retrain bool) error {
	defer h.observe("forecast", time.Now())
	res, err := h.svc.GetForecast(c.Request().Context(), days, retrain)
	if err != nil {
		return h.fail(c, "forecast", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, toForecastResponse(res))
}

func (h *ForecastEchoHandler) observe(endpoint string, start time.Time) {
	metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (h *ForecastEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := mapError(err)
	metrics.EndpointErrors.WithLabelValues(endpoint, strconv.Itoa(appErr.Status)).Inc()
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(endpoint+" failed", xlogger.Error(err))
	} else {
		h.logger.Warn(endpoint+" rejected", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// mapError turns domain errors into HTTP errors. Pipeline failures take
// precedence over the kind of failure that caused them.
func mapError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, models.ErrRetrainInProgress):
		return xhttp.ConflictError("A retrain is already running, try again later").WithError(err)
	case errors.Is(err, models.ErrModelNotTrained):
		return xhttp.NotFoundError("ERR_MODEL_NOT_TRAINED", "Model not trained. Run the training pipeline first.").WithError(err)
	case errors.Is(err, models.ErrDatasetMissing):
		return xhttp.NotFoundError("ERR_DATASET_MISSING", "Feature dataset not found. Run the data pipelines first.").WithError(err)
	case errors.Is(err, models.ErrPipelineExecution):
		return xhttp.InternalError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrNetwork):
		return xhttp.BadGatewayError("Price source unavailable").WithError(err)
	case errors.Is(err, models.ErrUnknownPipeline), errors.Is(err, models.ErrQueueDisabled):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	default:
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
}
