package metrics

import (
	"testing"

	"CryptoCast/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorderRecordsPipelineAndModel(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordPipelineRun("__default__", "success", 1.5)
	r.RecordPipelineRun("__default__", "success", 2)
	r.RecordModelMetrics(models.EvaluationMetrics{MAE: 12.5, R2: 0.9, TestSamples: 30})
	r.RecordFetch(3, 2100, 1)

	require.Equal(t, 2.0, testutil.ToFloat64(r.pipelineRuns.WithLabelValues("__default__", "success")))
	require.Equal(t, 12.5, testutil.ToFloat64(r.modelMetric.WithLabelValues("mae")))
	require.Equal(t, 30.0, testutil.ToFloat64(r.modelMetric.WithLabelValues("test_samples")))
	require.Equal(t, 2100.0, testutil.ToFloat64(r.fetchRows))
	require.Equal(t, 3.0, testutil.ToFloat64(r.fetchPages))
}
