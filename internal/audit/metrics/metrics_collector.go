// Package metrics exposes the audit server's Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Audit result label values.
const (
	ResultOK      = "ok"
	ResultBlocked = "blocked"
	ResultTimeout = "timeout"
	ResultError   = "error"
)

// Result source label values.
const (
	SourceLive     = "live"
	SourceCache    = "cache"
	SourceSnapshot = "snapshot"
)

// Probe outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Collector is the recording surface handed to the orchestrator and
// server. It wraps the Prometheus registry so call sites never touch
// metric vectors directly.
type Collector struct {
	prometheus *PrometheusMetrics
	logger     *zap.Logger
}

func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return &Collector{
		prometheus: NewPrometheusMetrics(namespace, logger),
		logger:     logger,
	}
}

func (c *Collector) RecordAudit(result, source string, duration time.Duration) {
	c.prometheus.RecordAudit(result, source)
	c.prometheus.RecordAuditDuration(result, duration.Seconds())

	c.logger.Debug("Recorded audit metric",
		zap.String("result", result),
		zap.String("source", source),
		zap.Duration("duration", duration))
}

func (c *Collector) RecordProbe(kind, outcome string, duration time.Duration) {
	c.prometheus.RecordProbeRequest(kind, outcome)
	c.prometheus.RecordProbeDuration(kind, duration.Seconds())
}

func (c *Collector) RecordCacheOperation(op, result string) {
	c.prometheus.RecordCacheOperation(op, result)
}

func (c *Collector) RecordSnapshotOperation(op, result string) {
	c.prometheus.RecordSnapshotOperation(op, result)
}

func (c *Collector) RecordScore(score int) {
	c.prometheus.RecordScore(score)
}

func (c *Collector) RecordQuotaExhausted() {
	c.prometheus.RecordQuotaExhausted()
}

func (c *Collector) AuditStarted() {
	c.prometheus.AuditStarted()
}

func (c *Collector) AuditFinished() {
	c.prometheus.AuditFinished()
}

func (c *Collector) ServeHTTP(ctx *fasthttp.RequestCtx) {
	c.prometheus.ServeHTTP(ctx)
}
