package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

type PrometheusMetrics struct {
	httpHandler func(*fasthttp.RequestCtx)
	logger      *zap.Logger

	auditsTotal             *prometheus.CounterVec
	auditDuration           *prometheus.HistogramVec
	probeRequestsTotal      *prometheus.CounterVec
	probeDuration           *prometheus.HistogramVec
	cacheOperationsTotal    *prometheus.CounterVec
	snapshotOperationsTotal *prometheus.CounterVec
	cacheHitRatio           prometheus.Gauge
	score                   prometheus.Histogram
	quotaExhaustedTotal     prometheus.Counter
	activeAudits            prometheus.Gauge
}

func NewPrometheusMetrics(namespace string, logger *zap.Logger) *PrometheusMetrics {
	if namespace == "" {
		namespace = "sitepulse"
	}

	pm := &PrometheusMetrics{
		logger: logger,
	}

	pm.auditsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "audits_total",
			Help:      "Total number of completed audits",
		},
		[]string{"result", "source"},
	)

	pm.auditDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "audit_duration_seconds",
			Help:      "Wall-clock duration of audits in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 6, 8, 10, 15},
		},
		[]string{"result"},
	)

	pm.probeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "probe_requests_total",
			Help:      "Total number of outbound probe requests",
		},
		[]string{"kind", "outcome"},
	)

	pm.probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "probe_duration_seconds",
			Help:      "Duration of outbound probe requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 6},
		},
		[]string{"kind"},
	)

	pm.cacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "cache_operations_total",
			Help:      "Total number of report cache operations",
		},
		[]string{"op", "result"},
	)

	pm.snapshotOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "snapshot_operations_total",
			Help:      "Total number of snapshot store operations",
		},
		[]string{"op", "result"},
	)

	pm.cacheHitRatio = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "cache_hit_ratio",
			Help:      "Ratio of report cache hits to lookups",
		},
	)

	pm.score = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "score",
			Help:      "Distribution of final audit scores",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		},
	)

	pm.quotaExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "quota_exhausted_total",
			Help:      "Audits that ran out of discretionary sub-requests",
		},
	)

	pm.activeAudits = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "active_audits",
			Help:      "Audits currently in flight",
		},
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(pm.auditsTotal)
	registry.MustRegister(pm.auditDuration)
	registry.MustRegister(pm.probeRequestsTotal)
	registry.MustRegister(pm.probeDuration)
	registry.MustRegister(pm.cacheOperationsTotal)
	registry.MustRegister(pm.snapshotOperationsTotal)
	registry.MustRegister(pm.cacheHitRatio)
	registry.MustRegister(pm.score)
	registry.MustRegister(pm.quotaExhaustedTotal)
	registry.MustRegister(pm.activeAudits)

	gatherer := prometheus.Gatherer(registry)
	handler := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})

	pm.httpHandler = fasthttpadaptor.NewFastHTTPHandler(handler)

	logger.Info("Prometheus metrics initialized for audit server",
		zap.String("namespace", namespace))

	return pm
}

func (pm *PrometheusMetrics) RecordAudit(result, source string) {
	pm.auditsTotal.WithLabelValues(result, source).Inc()
}

func (pm *PrometheusMetrics) RecordAuditDuration(result string, seconds float64) {
	pm.auditDuration.WithLabelValues(result).Observe(seconds)
}

func (pm *PrometheusMetrics) RecordProbeRequest(kind, outcome string) {
	pm.probeRequestsTotal.WithLabelValues(kind, outcome).Inc()
}

func (pm *PrometheusMetrics) RecordProbeDuration(kind string, seconds float64) {
	pm.probeDuration.WithLabelValues(kind).Observe(seconds)
}

func (pm *PrometheusMetrics) RecordCacheOperation(op, result string) {
	pm.cacheOperationsTotal.WithLabelValues(op, result).Inc()
	if op == "get" {
		pm.updateCacheHitRatio()
	}
}

// updateCacheHitRatio recomputes the hit ratio gauge from the lookup
// counters.
func (pm *PrometheusMetrics) updateCacheHitRatio() {
	hits := pm.getCounterValue(pm.cacheOperationsTotal.WithLabelValues("get", "hit"))
	misses := pm.getCounterValue(pm.cacheOperationsTotal.WithLabelValues("get", "miss"))

	total := hits + misses
	if total > 0 {
		pm.cacheHitRatio.Set(hits / total)
	}
}

// getCounterValue reads the current value of a counter through its DTO.
func (pm *PrometheusMetrics) getCounterValue(counter prometheus.Counter) float64 {
	metric := &dto.Metric{}
	if err := counter.Write(metric); err != nil {
		pm.logger.Warn("Failed to read counter value", zap.Error(err))
		return 0
	}
	return metric.GetCounter().GetValue()
}

func (pm *PrometheusMetrics) RecordSnapshotOperation(op, result string) {
	pm.snapshotOperationsTotal.WithLabelValues(op, result).Inc()
}

func (pm *PrometheusMetrics) RecordScore(score int) {
	pm.score.Observe(float64(score))
}

func (pm *PrometheusMetrics) RecordQuotaExhausted() {
	pm.quotaExhaustedTotal.Inc()
}

func (pm *PrometheusMetrics) AuditStarted() {
	pm.activeAudits.Inc()
}

func (pm *PrometheusMetrics) AuditFinished() {
	pm.activeAudits.Dec()
}

func (pm *PrometheusMetrics) ServeHTTP(ctx *fasthttp.RequestCtx) {
	pm.httpHandler(ctx)
}
