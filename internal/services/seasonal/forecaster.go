package seasonal

import (
	"context"
	"fmt"
	"math"
	"time"

	"CryptoCast/internal/domain/models"
	"CryptoCast/internal/domain/service"
	"CryptoCast/pkg/logger"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// jitter keeps the normal equations positive definite when a fourier column
// is constant on daily data.
const jitter = 1e-9

// Forecaster fits and evaluates seasonal models. It is stateless and safe
// for concurrent use; every Fit builds a new Model.
type Forecaster struct {
	log *logger.Logger
	now func() time.Time
}

var _ service.Forecaster = (*Forecaster)(nil)

func New(lgr *logger.Logger) *Forecaster {
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &Forecaster{log: lgr, now: time.Now}
}

func (f *Forecaster) Kind() string { return Kind }

// Fit trains a fresh model on train. The volume regressor is attached only
// when cfg asks for it and train carries the column.
func (f *Forecaster) Fit(ctx context.Context, train *models.Dataset, cfg models.ModelConfig, extra []models.Seasonality) (service.ModelHandle, error) {
	regressor := ""
	if cfg.AddVolumeRegressor && train != nil && train.HasRegressor() {
		regressor = train.Regressor
	}
	m := newModel(cfg, seasonalitiesFor(cfg, extra), regressor)
	if err := m.fit(ctx, train, f.now().UTC()); err != nil {
		return nil, err
	}
	f.log.Debug("seasonal model fit",
		logger.Int("rows", train.Len()),
		logger.Int("changepoints", len(m.changepoints)),
		logger.Int("features", m.featureCount()),
		logger.Float64("sigma", m.sigma))
	return m, nil
}

func (f *Forecaster) Predict(h service.ModelHandle, frame []models.PredictionPoint) ([]models.ForecastRow, error) {
	m, ok := h.(*Model)
	if !ok {
		return nil, fmt.Errorf("seasonal: unsupported model handle %T", h)
	}
	return m.predict(frame)
}

func (m *Model) fit(ctx context.Context, train *models.Dataset, now time.Time) error {
	if m.fitted {
		return models.ErrModelAlreadyFit
	}
	if train == nil || train.Len() < 2 {
		return fmt.Errorf("%w: need at least 2 training rows", models.ErrInsufficientData)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	n := train.Len()
	y := train.Values()
	m.start = train.First().Date
	m.spanDays = train.Last().Date.Sub(m.start).Hours() / 24
	if m.spanDays <= 0 {
		m.spanDays = 1
	}
	m.yScale = math.Max(math.Abs(floats.Max(y)), math.Abs(floats.Min(y)))
	if m.yScale == 0 {
		m.yScale = 1
	}
	ys := make([]float64, n)
	floats.ScaleTo(ys, 1/m.yScale, y)

	m.regMean, m.regStd = 0, 1
	if m.regressor != "" {
		m.regMean, m.regStd = stat.MeanStdDev(train.Regressors(), nil)
		if m.regStd == 0 || math.IsNaN(m.regStd) {
			m.regStd = 1
		}
	}

	t := make([]float64, n)
	for i, r := range train.Rows {
		t[i] = m.scaleTime(r.Date)
	}
	m.changepoints = changepointsFor(t, m.cfg.NChangepoints, m.cfg.ChangepointRange)

	trendCols := 2 + len(m.changepoints)
	featCols := m.featureCount()
	T := mat.NewDense(n, trendCols, nil)
	var S *mat.Dense
	if featCols > 0 {
		S = mat.NewDense(n, featCols, nil)
	}
	for i, r := range train.Rows {
		T.SetRow(i, m.trendRow(t[i]))
		if S != nil {
			S.SetRow(i, m.featureRow(r.Date, r.Regressor))
		}
	}

	trendPenalty := make([]float64, trendCols)
	for j := 2; j < trendCols; j++ {
		trendPenalty[j] = 1 / (m.cfg.ChangepointPriorScale * m.cfg.ChangepointPriorScale)
	}
	featPenalty := make([]float64, featCols)
	for j := range featPenalty {
		featPenalty[j] = 1 / (m.cfg.SeasonalityPriorScale * m.cfg.SeasonalityPriorScale)
	}

	var err error
	if m.multiplicative() || S == nil {
		// trend first, then seasonality as a fraction of it
		if m.trend, err = ridge(T, ys, trendPenalty); err != nil {
			return fmt.Errorf("seasonal: fit trend: %w", err)
		}
		if S != nil {
			g := make([]float64, n)
			resid := make([]float64, n)
			for i := range g {
				g[i] = dot(T.RawRowView(i), m.trend)
				resid[i] = ys[i] - g[i]
			}
			X := mat.NewDense(n, featCols, nil)
			X.Apply(func(i, _ int, v float64) float64 { return v * g[i] }, S)
			if m.beta, err = ridge(X, resid, featPenalty); err != nil {
				return fmt.Errorf("seasonal: fit seasonality: %w", err)
			}
		}
	} else {
		X := mat.NewDense(n, trendCols+featCols, nil)
		X.Augment(T, S)
		coef, err := ridge(X, ys, append(trendPenalty, featPenalty...))
		if err != nil {
			return fmt.Errorf("seasonal: fit: %w", err)
		}
		m.trend, m.beta = coef[:trendCols], coef[trendCols:]
	}

	sse := 0.0
	for i, r := range train.Rows {
		yhat, _ := m.evaluate(t[i], r.Date, r.Regressor)
		d := ys[i] - yhat
		sse += d * d
	}
	dof := float64(n - 1)
	m.sigma = math.Sqrt(sse/dof) * m.yScale

	if !finite(m.trend) || !finite(m.beta) || !finite([]float64{m.sigma, m.regMean, m.regStd}) {
		return fmt.Errorf("seasonal: fit produced non-finite parameters")
	}
	m.fitted = true
	m.fittedAt = now
	return nil
}

// evaluate returns the scaled prediction and trend at t.
func (m *Model) evaluate(t float64, d time.Time, reg float64) (yhat, trend float64) {
	trend = dot(m.trendRow(t), m.trend)
	if len(m.beta) == 0 {
		return trend, trend
	}
	s := dot(m.featureRow(d, reg), m.beta)
	if m.multiplicative() {
		return trend * (1 + s), trend
	}
	return trend + s, trend
}

// predict returns one row per frame point. The interval is symmetric around
// the prediction and widens linearly once t leaves the training span.
func (m *Model) predict(frame []models.PredictionPoint) ([]models.ForecastRow, error) {
	if !m.fitted {
		return nil, models.ErrModelNotTrained
	}
	z := intervalZ(m.cfg.IntervalWidth)
	out := make([]models.ForecastRow, len(frame))
	for i, p := range frame {
		t := m.scaleTime(p.Date)
		yhat, trend := m.evaluate(t, p.Date, p.Regressor)
		half := z * m.sigma * (1 + math.Max(0, t-1))
		pred := yhat * m.yScale
		out[i] = models.ForecastRow{
			Date:      p.Date,
			Predicted: pred,
			Lower:     pred - half,
			Upper:     pred + half,
			Trend:     trend * m.yScale,
		}
	}
	return out, nil
}

func intervalZ(width float64) float64 {
	if width <= 0 || width >= 1 {
		width = 0.8
	}
	return distuv.UnitNormal.Quantile(0.5 + width/2)
}

// ridge solves (XᵀX + diag(penalty)) b = Xᵀy.
func ridge(X *mat.Dense, y, penalty []float64) ([]float64, error) {
	_, c := X.Dims()
	var a mat.Dense
	a.Mul(X.T(), X)
	for j := 0; j < c; j++ {
		a.Set(j, j, a.At(j, j)+penalty[j]+jitter)
	}
	var rhs mat.VecDense
	rhs.MulVec(X.T(), mat.NewVecDense(len(y), y))

	var b mat.VecDense
	if err := b.SolveVec(&a, &rhs); err != nil {
		return nil, err
	}
	out := make([]float64, c)
	for j := range out {
		out[j] = b.AtVec(j)
	}
	return out, nil
}

func finite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
