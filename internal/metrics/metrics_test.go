package metrics

import (
	"testing"
	"time"

	"github.com/NomadCrew/nomad-crew-ocr/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.IsTest = true
}

func histogram(t *testing.T, reg *prometheus.Registry, name string) *dto.Histogram {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			require.NotEmpty(t, mf.GetMetric())
			return mf.GetMetric()[0].GetHistogram()
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return nil
}

func TestRecordDocument(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordDocument("invoice", StatusSuccess, 1500*time.Millisecond, 91.2)
	c.RecordDocument("invoice", StatusCached, 5*time.Millisecond, 91.2)
	c.RecordDocument("receipt", StatusFailed, 200*time.Millisecond, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.documentsProcessed.WithLabelValues(StatusSuccess, "invoice")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.documentsProcessed.WithLabelValues(StatusCached, "invoice")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.documentsProcessed.WithLabelValues(StatusFailed, "receipt")))

	duration := histogram(t, reg, "ocr_processing_duration_seconds")
	assert.Equal(t, uint64(2), duration.GetSampleCount())

	conf := histogram(t, reg, "ocr_confidence_score")
	assert.Equal(t, uint64(2), conf.GetSampleCount())
	assert.InDelta(t, 182.4, conf.GetSampleSum(), 0.001)
}

func TestRecordRecognition(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRecognition("invoice", 2*time.Second)

	h := histogram(t, reg, "ocr_recognition_duration_seconds")
	assert.Equal(t, uint64(1), h.GetSampleCount())
	assert.Equal(t, 2.0, h.GetSampleSum())
}

func TestCacheAndPoolGauges(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordCacheHit()
	c.RecordCacheHit()
	c.RecordCacheMiss()
	c.SetQueueDepth(7)
	c.SetActiveWorkers(3)
	c.RecordWorkerReplacement()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheMisses))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.queueDepth))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.activeWorkers))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.workerReplacements))
}

func TestCollectorNeverPanics(t *testing.T) {
	var nilCollector *Collector
	broken := &Collector{log: logger.GetLogger()}

	for _, c := range []*Collector{nilCollector, broken} {
		assert.NotPanics(t, func() {
			c.RecordDocument("invoice", StatusSuccess, time.Second, 90)
			c.RecordRecognition("invoice", time.Second)
			c.RecordCacheHit()
			c.RecordCacheMiss()
			c.SetQueueDepth(1)
			c.SetActiveWorkers(1)
			c.RecordWorkerReplacement()
		})
	}
}

func TestNewCollectorRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)
	assert.Panics(t, func() { NewCollector(reg) })
}
