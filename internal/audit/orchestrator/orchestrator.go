// Package orchestrator sequences one audit: cache lookup, the bounded
// probe run against the target, scoring, and snapshot persistence. It
// owns the degraded blocked and timeout paths; remote misbehavior ends
// in a report, never an error.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/sitepulse/engine/internal/audit/cache"
	"github.com/sitepulse/engine/internal/audit/events"
	"github.com/sitepulse/engine/internal/audit/metrics"
	"github.com/sitepulse/engine/internal/audit/prober"
	"github.com/sitepulse/engine/internal/audit/psi"
	"github.com/sitepulse/engine/internal/audit/snapshot"
	"github.com/sitepulse/engine/internal/common/configtypes"
	"github.com/sitepulse/engine/internal/common/urlutil"
	"github.com/sitepulse/engine/pkg/types"
)

// ErrInvalidTarget marks a target URL that cannot be audited. The HTTP
// surface maps it to a 400; everything else an audit returns is a 500.
var ErrInvalidTarget = errors.New("invalid target")

// Options tune one audit request.
type Options struct {
	// NoCache skips the cache read; the result still fills the cache.
	NoCache bool
	// Snapshot persists the finished report and attaches share fields.
	// Snapshot runs never read or write the cache.
	Snapshot bool
	// RequestID correlates logs, metrics, and the audit event.
	RequestID string
}

// Orchestrator runs audits. Safe for concurrent use; the cache is the
// only shared mutable state between runs.
type Orchestrator struct {
	prober        *prober.Prober
	cache         cache.ReportCache
	snapshots     snapshot.Store
	psiClient     *psi.Client
	collector     *metrics.Collector
	emitter       events.Emitter
	configManager configtypes.EngineConfigManager
	logger        *zap.Logger
}

// New creates an Orchestrator. The snapshot store may be nil when the
// backend is disabled; snapshot requests then skip persistence.
func New(
	p *prober.Prober,
	reportCache cache.ReportCache,
	snapshots snapshot.Store,
	psiClient *psi.Client,
	collector *metrics.Collector,
	emitter events.Emitter,
	configManager configtypes.EngineConfigManager,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		prober:        p,
		cache:         reportCache,
		snapshots:     snapshots,
		psiClient:     psiClient,
		collector:     collector,
		emitter:       emitter,
		configManager: configManager,
		logger:        logger,
	}
}

// Audit runs the complete audit workflow for one target URL.
func (o *Orchestrator) Audit(ctx context.Context, rawURL string, opts Options) (*types.Report, error) {
	normalized, err := urlutil.NormalizeTarget(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}

	cfg := o.configManager.GetConfig()
	cacheKey := cache.Key(normalized)
	logger := o.logger.With(
		zap.String("request_id", opts.RequestID),
		zap.String("url", normalized))

	// 1. CACHE LOOKUP. Snapshot runs are always live so the persisted
	// report reflects the page right now, not up to TTL ago.
	if !opts.NoCache && !opts.Snapshot {
		if cached, age, ok := o.cache.Get(ctx, cacheKey); ok {
			o.collector.RecordCacheOperation("get", "hit")
			cached.Cached = true
			cached.CacheAgeMs = age.Milliseconds()

			logger.Info("Audit served from cache",
				zap.Int64("cache_age_ms", cached.CacheAgeMs),
				zap.Int("score", cached.Score))
			o.collector.RecordAudit(resultOf(cached), metrics.SourceCache, age)
			o.emitter.Emit(events.BuildAuditEvent(opts.RequestID, cached, events.SourceCache, cacheKey, 0, 0))
			return cached, nil
		}
		o.collector.RecordCacheOperation("get", "miss")
	}

	// 2. LIVE RUN under a single deadline spanning the whole audit.
	o.collector.AuditStarted()
	defer o.collector.AuditFinished()

	r := newRun(rawURL, normalized, opts.RequestID, &cfg.Audit, logger)
	auditCtx, cancel := context.WithTimeout(ctx, cfg.Audit.Budget.ToDuration())
	defer cancel()

	report, err := o.runLive(auditCtx, r)
	duration := r.budget.Elapsed()
	if err != nil {
		logger.Error("Audit failed", zap.Error(err), zap.Duration("elapsed", duration))
		o.collector.RecordAudit(metrics.ResultError, metrics.SourceLive, duration)
		o.emitter.Emit(events.BuildAuditEvent(opts.RequestID, nil, events.SourceLive, cacheKey, r.budget.Spent(), duration))
		return nil, err
	}
	o.collector.RecordScore(report.Score)

	// 3. PERSISTENCE: snapshot mode stores and links the report; plain
	// runs fill the cache unless the result is degraded.
	if opts.Snapshot {
		if err := o.persistSnapshot(ctx, report, cfg, logger); err != nil {
			o.collector.RecordAudit(metrics.ResultError, metrics.SourceLive, duration)
			return nil, err
		}
	} else if !report.Blocked && !report.Timeout {
		o.cache.Set(ctx, cacheKey, report)
		o.collector.RecordCacheOperation("set", "ok")
	}

	logger.Info("Audit completed",
		zap.Int("score", report.Score),
		zap.Int("fetched_status", report.FetchedStatus),
		zap.Bool("blocked", report.Blocked),
		zap.Bool("timeout", report.Timeout),
		zap.Int("sub_requests", r.budget.Spent()),
		zap.Duration("elapsed", duration))

	o.collector.RecordAudit(resultOf(report), metrics.SourceLive, duration)
	o.emitter.Emit(events.BuildAuditEvent(opts.RequestID, report, events.SourceLive, cacheKey, r.budget.Spent(), duration))
	return report, nil
}

// LoadSnapshot resolves a previously persisted report by path, absolute
// URL, or legacy bare id. snapshot.ErrNotFound surfaces unchanged so the
// HTTP layer can answer 404 with the attempted locations.
func (o *Orchestrator) LoadSnapshot(ctx context.Context, pathOrURL, id, requestID string) (*types.Report, error) {
	if o.snapshots == nil {
		return nil, fmt.Errorf("%w: no snapshot store configured", snapshot.ErrNotFound)
	}

	var report *types.Report
	var err error
	if pathOrURL != "" {
		report, err = o.snapshots.Load(ctx, pathOrURL)
	} else {
		report, err = o.snapshots.LoadByID(ctx, id)
	}
	if err != nil {
		o.collector.RecordSnapshotOperation("load", "error")
		return nil, err
	}

	o.collector.RecordSnapshotOperation("load", "ok")
	report.FromSnapshot = true

	o.collector.RecordAudit(resultOf(report), metrics.SourceSnapshot, 0)
	o.emitter.Emit(events.BuildAuditEvent(requestID, report, events.SourceSnapshot, "", 0, 0))
	return report, nil
}

// persistSnapshot stores the report and attaches the share fields.
func (o *Orchestrator) persistSnapshot(ctx context.Context, report *types.Report, cfg *configtypes.EngineConfig, logger *zap.Logger) error {
	if o.snapshots == nil {
		logger.Warn("Snapshot requested but no snapshot store configured")
		return nil
	}

	path, absoluteURL, err := o.snapshots.Save(ctx, report)
	if err != nil {
		o.collector.RecordSnapshotOperation("save", "error")
		return fmt.Errorf("persist snapshot: %w", err)
	}
	o.collector.RecordSnapshotOperation("save", "ok")

	report.ShareBlobPath = path
	report.ShareBlobURL = absoluteURL
	if cfg.Share.Base != "" {
		report.ShareURL = cfg.Share.Base + "?blob=" + url.QueryEscape(path)
	}

	logger.Info("Snapshot persisted",
		zap.String("path", path),
		zap.String("url", absoluteURL))
	return nil
}

// resultOf maps a report onto the metrics result label.
func resultOf(report *types.Report) string {
	switch {
	case report.Blocked:
		return metrics.ResultBlocked
	case report.Timeout:
		return metrics.ResultTimeout
	default:
		return metrics.ResultOK
	}
}
