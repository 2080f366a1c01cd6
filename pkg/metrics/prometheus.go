package metrics

import (
	"CryptoCast/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	pipelineRuns     *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	nodeDuration     *prometheus.HistogramVec
	errorsTotal      *prometheus.CounterVec
	fetchPages       prometheus.Counter
	fetchRows        prometheus.Gauge
	fetchRetries     prometheus.Counter
	lastPrice        *prometheus.GaugeVec
	modelMetric      *prometheus.GaugeVec
	latency          *prometheus.HistogramVec
}

// New creates a recorder registered with the default Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		pipelineRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptocast_pipeline_runs_total",
				Help: "Total number of pipeline runs by outcome",
			},
			[]string{"pipeline", "status"},
		),
		pipelineDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cryptocast_pipeline_duration_seconds",
				Help:    "Duration of pipeline runs in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"pipeline"},
		),
		nodeDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cryptocast_node_duration_seconds",
				Help:    "Duration of individual pipeline nodes in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"node"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptocast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		fetchPages: f.NewCounter(prometheus.CounterOpts{
			Name: "cryptocast_fetch_pages_total",
			Help: "Kline pages fetched from the exchange",
		}),
		fetchRows: f.NewGauge(prometheus.GaugeOpts{
			Name: "cryptocast_fetch_rows",
			Help: "Rows returned by the last history fetch",
		}),
		fetchRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "cryptocast_fetch_retries_total",
			Help: "Retried exchange requests",
		}),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cryptocast_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		modelMetric: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cryptocast_model_evaluation",
				Help: "Evaluation metrics of the current model",
			},
			[]string{"metric"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cryptocast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordPipelineRun records the outcome and duration of a pipeline run.
func (r *Recorder) RecordPipelineRun(pipeline, status string, seconds float64) {
	r.pipelineRuns.WithLabelValues(pipeline, status).Inc()
	r.pipelineDuration.WithLabelValues(pipeline).Observe(seconds)
}

func (r *Recorder) RecordNodeDuration(node string, seconds float64) {
	r.nodeDuration.WithLabelValues(node).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordFetch(pages, rows, retries int) {
	r.fetchPages.Add(float64(pages))
	r.fetchRows.Set(float64(rows))
	r.fetchRetries.Add(float64(retries))
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

func (r *Recorder) RecordModelMetrics(m models.EvaluationMetrics) {
	r.modelMetric.WithLabelValues("mae").Set(m.MAE)
	r.modelMetric.WithLabelValues("mape").Set(m.MAPE)
	r.modelMetric.WithLabelValues("rmse").Set(m.RMSE)
	r.modelMetric.WithLabelValues("r2").Set(m.R2)
	r.modelMetric.WithLabelValues("test_samples").Set(float64(m.TestSamples))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Noop discards every observation.
type Noop struct{}

func (Noop) RecordPipelineRun(string, string, float64) {}
func (Noop) RecordNodeDuration(string, float64) {}
func (Noop) RecordError(string) {}
func (Noop) RecordFetch(int, int, int) {}
func (Noop) RecordLastPrice(string, float64) {}
func (Noop) RecordModelMetrics(models.EvaluationMetrics) {}
func (Noop) RecordLatency(string, float64) {}
