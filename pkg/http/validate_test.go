package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	DaysAhead int  `query:"days_ahead" json:"days_ahead" default:"30" validate:"gte=1,lte=365"`
	Retrain   bool `query:"retrain" json:"retrain"`
}

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestReadAndValidateRequestAppliesDefaults(t *testing.T) {
	c, _ := newContext(http.MethodPost, "/", `{"retrain":true}`)
	var req sampleRequest
	require.Nil(t, ReadAndValidateRequest(c, &req))
	require.Equal(t, 30, req.DaysAhead)
	require.True(t, req.Retrain)
}

func TestReadAndValidateRequestKeepsExplicitZero(t *testing.T) {
	c, _ := newContext(http.MethodPost, "/", `{"days_ahead":0}`)
	var req sampleRequest
	errs := ReadAndValidateRequest(c, &req)
	require.Len(t, errs, 1)
	require.Equal(t, "ERR_GTE", errs[0].Code)
	require.Equal(t, "days_ahead", errs[0].Field)
}

func TestReadAndValidateRequestBindsQuery(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/?days_ahead=400", "")
	var req sampleRequest
	errs := ReadAndValidateRequest(c, &req)
	require.Len(t, errs, 1)
	require.Equal(t, "ERR_LTE", errs[0].Code)
	require.Equal(t, "365", errs[0].Params["max"])
}

func TestAppErrorResponseUsesStatus(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/", "")
	require.NoError(t, AppErrorResponse(c, NotFoundError("ERR_MODEL_NOT_TRAINED", "no model")))
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, http.StatusNotFound, body.Status)
	require.Equal(t, "ERR_MODEL_NOT_TRAINED", body.Data[0].Code)
}

func TestAppErrorResponseFallsBackTo500(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/", "")
	require.NoError(t, AppErrorResponse(c, errPlain("boom")))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

type errPlain string

func (e errPlain) Error() string { return string(e) }
