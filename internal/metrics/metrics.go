// Package metrics records pipeline counters and latencies in Prometheus.
// Recording never fails or blocks the request path.
package metrics

import (
	"time"

	"github.com/NomadCrew/nomad-crew-ocr/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Outcome labels for ocr_documents_processed_total.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusCached  = "cached"
)

const namespace = "ocr"

// Collector owns the service metrics. A nil *Collector is valid and records
// nothing.
type Collector struct {
	documentsProcessed  *prometheus.CounterVec
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	processingDuration  *prometheus.HistogramVec
	recognitionDuration *prometheus.HistogramVec
	confidence          *prometheus.HistogramVec
	queueDepth          prometheus.Gauge
	activeWorkers       prometheus.Gauge
	workerReplacements  prometheus.Counter
	log                 *zap.SugaredLogger
}

// NewCollector registers the metrics on reg. Use a fresh
// prometheus.NewRegistry() per test to avoid duplicate registration.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		documentsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_processed_total",
			Help:      "Documents processed by outcome and document type",
		}, []string{"status", "document_type"}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Result cache lookups that found an entry",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Result cache lookups that found nothing",
		}),
		processingDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_duration_seconds",
			Help:      "End to end processing time, cache hits included",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"document_type"}),
		recognitionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recognition_duration_seconds",
			Help:      "Time spent in the recognition engine",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"document_type"}),
		confidence: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confidence_score",
			Help:      "Document level recognition confidence (0-100)",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}, []string{"document_type"}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Jobs waiting for a recognition worker",
		}),
		activeWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Workers currently running a job",
		}),
		workerReplacements: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_replacements_total",
			Help:      "Recognition engines recreated after a failure",
		}),
		log: logger.GetLogger().Named("metrics"),
	}
}

func (c *Collector) guard(op string) {
	if r := recover(); r != nil {
		c.log.Warnw("Metric recording failed", "operation", op, "panic", r)
	}
}

// RecordDocument records one finished request.
func (c *Collector) RecordDocument(documentType, status string, elapsed time.Duration, confidence float64) {
	if c == nil {
		return
	}
	defer c.guard("record_document")

	c.documentsProcessed.WithLabelValues(status, documentType).Inc()
	c.processingDuration.WithLabelValues(documentType).Observe(elapsed.Seconds())
	if status != StatusFailed {
		c.confidence.WithLabelValues(documentType).Observe(confidence)
	}
}

// RecordRecognition records time spent in the engine for a cache miss.
func (c *Collector) RecordRecognition(documentType string, elapsed time.Duration) {
	if c == nil {
		return
	}
	defer c.guard("record_recognition")

	c.recognitionDuration.WithLabelValues(documentType).Observe(elapsed.Seconds())
}

func (c *Collector) RecordCacheHit() {
	if c == nil {
		return
	}
	defer c.guard("cache_hit")
	c.cacheHits.Inc()
}

func (c *Collector) RecordCacheMiss() {
	if c == nil {
		return
	}
	defer c.guard("cache_miss")
	c.cacheMisses.Inc()
}

func (c *Collector) SetQueueDepth(n int) {
	if c == nil {
		return
	}
	defer c.guard("queue_depth")
	c.queueDepth.Set(float64(n))
}

func (c *Collector) SetActiveWorkers(n int) {
	if c == nil {
		return
	}
	defer c.guard("active_workers")
	c.activeWorkers.Set(float64(n))
}

func (c *Collector) RecordWorkerReplacement() {
	if c == nil {
		return
	}
	defer c.guard("worker_replacement")
	c.workerReplacements.Inc()
}
