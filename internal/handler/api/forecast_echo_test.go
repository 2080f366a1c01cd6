package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"CryptoCast/internal/domain/models"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	forecast   *models.ForecastResult
	forecastEr error
	run        models.PipelineResult
	enqueueErr error
	info       *models.ModelInfo
	quote      *models.PriceQuote
	priceErr   error

	gotDays    int
	gotRetrain bool
	gotRun     string
	gotSymbol  string
}

func (f *fakeService) ListPipelines() []string {
	return []string{models.PipelineDefault, models.PipelineDataIngestion}
}

func (f *fakeService) RunPipeline(_ context.Context, name string) models.PipelineResult {
	f.gotRun = name
	return f.run
}

func (f *fakeService) EnqueuePipeline(_ context.Context, name string) (models.PipelineResult, error) {
	f.gotRun = name
	if f.enqueueErr != nil {
		return models.PipelineResult{}, f.enqueueErr
	}
	return models.PipelineResult{RunID: "r-1", Status: models.RunStatusQueued, PipelineName: name}, nil
}

func (f *fakeService) RecentRuns(context.Context, int) ([]models.PipelineResult, error) {
	return nil, nil
}

func (f *fakeService) GetModelInfo(context.Context) (*models.ModelInfo, error) { return f.info, nil }

func (f *fakeService) GetForecast(_ context.Context, days int, retrain bool) (*models.ForecastResult, error) {
	f.gotDays, f.gotRetrain = days, retrain
	return f.forecast, f.forecastEr
}

func (f *fakeService) GetCurrentPrice(_ context.Context, symbol string) (*models.PriceQuote, error) {
	f.gotSymbol = symbol
	return f.quote, f.priceErr
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func serve(t *testing.T, svc ForecastService, method, target, body string) (int, envelope) {
	t.Helper()
	e := echo.New()
	NewForecastEchoHandler(nil, svc).RegisterRoutes(e)

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func TestHealth(t *testing.T) {
	for _, path := range []string{"/", "/health"} {
		code, env := serve(t, &fakeService{}, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, code)
		require.Contains(t, string(env.Data), `"status":"healthy"`)
	}
}

func TestForecastRoundsAndDefaults(t *testing.T) {
	svc := &fakeService{forecast: &models.ForecastResult{
		Status:              models.RunStatusSuccess,
		Symbol:              "BTCUSDT",
		LastHistoricalDate:  "2024-04-29",
		LastHistoricalPrice: 64123.456789,
		ForecastDays:        1,
		Predictions: []models.ForecastRow{{
			Date:      time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
			Predicted: 64500.129, Lower: 63000.001, Upper: 66000.999, Trend: 64400.555,
		}},
	}}

	code, env := serve(t, svc, http.MethodPost, "/api/v1/forecast", `{}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 30, svc.gotDays)
	require.False(t, svc.gotRetrain)

	var got ForecastResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Equal(t, 64123.46, got.LastHistoricalPrice)
	require.Equal(t, PredictionItem{
		PredictionDate: "2024-04-30",
		PredictedPrice: 64500.13, Lower: 63000, Upper: 66001, Trend: 64400.56,
	}, got.Predictions[0])
}

func TestForecastRejectsOutOfRangeDays(t *testing.T) {
	svc := &fakeService{}
	code, _ := serve(t, svc, http.MethodPost, "/api/v1/forecast", `{"days_ahead":400}`)
	require.Equal(t, http.StatusBadRequest, code)
	require.Zero(t, svc.gotDays)
}

func TestGetForecastNeverRetrains(t *testing.T) {
	svc := &fakeService{forecastEr: models.ErrModelNotTrained}
	code, env := serve(t, svc, http.MethodGet, "/api/v1/forecast?days_ahead=7&retrain=true", "")
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, 7, svc.gotDays)
	require.False(t, svc.gotRetrain)
	require.Contains(t, string(env.Data), "ERR_MODEL_NOT_TRAINED")
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{models.ErrModelNotTrained, http.StatusNotFound},
		{fmt.Errorf("%w: full", models.ErrDatasetMissing), http.StatusNotFound},
		{&models.PipelineError{Result: models.PipelineResult{Message: "boom", ErrorKind: models.ErrorKindNetwork}}, http.StatusInternalServerError},
		{&models.PipelineError{Result: models.PipelineResult{Message: "busy", ErrorKind: models.ErrorKindLocked}}, http.StatusConflict},
		{fmt.Errorf("%w: timeout", models.ErrNetwork), http.StatusBadGateway},
		{fmt.Errorf("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		code, _ := serve(t, &fakeService{forecastEr: tc.err}, http.MethodPost, "/api/v1/forecast", `{"retrain":true}`)
		require.Equal(t, tc.want, code, tc.err.Error())
	}
}

func TestCurrentPrice(t *testing.T) {
	svc := &fakeService{quote: &models.PriceQuote{Symbol: "ETHUSDT", Price: 3100.456}}
	code, env := serve(t, svc, http.MethodGet, "/api/v1/price/current?symbol=ETHUSDT", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ETHUSDT", svc.gotSymbol)
	require.Contains(t, string(env.Data), `"price":3100.46`)

	svc = &fakeService{priceErr: fmt.Errorf("%w: 503", models.ErrNetwork)}
	code, _ = serve(t, svc, http.MethodGet, "/api/v1/price/current", "")
	require.Equal(t, http.StatusBadGateway, code)
	require.Equal(t, "BTCUSDT", svc.gotSymbol)
}

func TestRunPipeline(t *testing.T) {
	svc := &fakeService{run: models.PipelineResult{Status: models.RunStatusSuccess, PipelineName: models.PipelineDefault, DurationSeconds: 1.23456}}
	code, env := serve(t, svc, http.MethodPost, "/api/v1/pipelines/run", `{}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, models.PipelineDefault, svc.gotRun)
	require.Contains(t, string(env.Data), `"duration_seconds":1.23`)

	svc = &fakeService{run: models.PipelineResult{Status: models.RunStatusError, ErrorKind: models.ErrorKindNetwork}}
	code, _ = serve(t, svc, http.MethodPost, "/api/v1/pipelines/run", `{"pipeline_name":"data_ingestion"}`)
	require.Equal(t, http.StatusInternalServerError, code)

	code, _ = serve(t, &fakeService{}, http.MethodPost, "/api/v1/pipelines/run", `{"pipeline_name":"bogus"}`)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestRunPipelineAsync(t *testing.T) {
	svc := &fakeService{}
	code, env := serve(t, svc, http.MethodPost, "/api/v1/pipelines/run", `{"pipeline_name":"inference","async":true}`)
	require.Equal(t, http.StatusAccepted, code)
	require.Contains(t, string(env.Data), `"status":"queued"`)

	svc = &fakeService{enqueueErr: models.ErrQueueDisabled}
	code, _ = serve(t, svc, http.MethodPost, "/api/v1/pipelines/run", `{"async":true}`)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestModelInfoAbsent(t *testing.T) {
	code, env := serve(t, &fakeService{info: &models.ModelInfo{}}, http.MethodGet, "/api/v1/model/info", "")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"model_exists":false}`, string(env.Data))
}

func TestPipelinesAndRuns(t *testing.T) {
	code, env := serve(t, &fakeService{}, http.MethodGet, "/api/v1/pipelines", "")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"pipelines":["__default__","data_ingestion"]}`, string(env.Data))

	code, env = serve(t, &fakeService{}, http.MethodGet, "/api/v1/pipelines/runs?limit=5", "")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"runs":[]}`, string(env.Data))
}
