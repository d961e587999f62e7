package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sitepulse/engine/internal/audit/budget"
	"github.com/sitepulse/engine/internal/audit/checks"
	"github.com/sitepulse/engine/internal/audit/htmlinfo"
	"github.com/sitepulse/engine/internal/audit/metrics"
	"github.com/sitepulse/engine/internal/audit/prober"
	"github.com/sitepulse/engine/internal/audit/score"
	"github.com/sitepulse/engine/internal/common/configtypes"
	"github.com/sitepulse/engine/pkg/types"
)

// psiMinRemaining is the least budget that must remain for the PageSpeed
// probe to be worth launching.
const psiMinRemaining = 2 * time.Second

// blockStatuses are the responses treated as WAF/bot blocks.
var blockStatuses = map[int]bool{
	http.StatusUnauthorized:    true,
	http.StatusForbidden:       true,
	http.StatusTooManyRequests: true,
}

// run carries the mutable state of one live audit between probes.
type run struct {
	rawURL        string
	normalizedURL string
	finalURL      string
	requestID     string

	cfg    *configtypes.AuditConfig
	budget *budget.Budget
	logger *zap.Logger
	debug  bool

	page *prober.Response
	doc  *htmlinfo.Page
	imgs []htmlinfo.ImgTag

	// robotsSitemaps holds Sitemap: URLs advertised by robots.txt, in
	// file order, for the sitemap discovery probe.
	robotsSitemaps []string

	checks []types.Check
	speed  *int
	diag   []types.DiagEntry
}

func newRun(rawURL, normalizedURL, requestID string, cfg *configtypes.AuditConfig, logger *zap.Logger) *run {
	return &run{
		rawURL:        rawURL,
		normalizedURL: normalizedURL,
		finalURL:      normalizedURL,
		requestID:     requestID,
		cfg:           cfg,
		budget:        budget.New(cfg.Budget.ToDuration(), cfg.SubRequestQuota),
		logger:        logger,
		debug:         cfg.Debug,
	}
}

// add appends one finding to the report under construction.
func (r *run) add(c types.Check) {
	r.checks = append(r.checks, c)
}

// runLive executes the audit state machine: fetch the page, handle the
// blocked and timeout paths, then walk the probes in order and score.
func (o *Orchestrator) runLive(ctx context.Context, r *run) (*types.Report, error) {
	// PAGE: the one fetch everything else depends on. Retried on
	// transient network errors; each attempt is shaped to the remaining
	// budget.
	page, err := prober.RetryWith(ctx, func(ctx context.Context) (*prober.Response, error) {
		return o.prober.Fetch(ctx, r.normalizedURL, http.MethodGet, prober.FetchOptions{
			Redirect: prober.RedirectFollow,
			Timeout:  r.budget.Within(r.cfg.PageTimeout.ToDuration()),
			Profile:  prober.ProfileDefault,
		})
	}, r.cfg.RetryAttempts, r.cfg.RetryBaseDelay.ToDuration())

	if err != nil {
		if prober.IsAbort(err) {
			r.logger.Warn("Target page did not answer within the budget", zap.Error(err))
			return o.timeoutReport(ctx, r), nil
		}
		return nil, fmt.Errorf("fetch target page: %w", err)
	}

	// BLOCKED_RETRY: origins that reject the bot profile get one more
	// chance with full browser headers and a short deadline.
	if blockStatuses[page.Status] {
		r.logger.Info("Bot profile blocked, retrying with browser headers",
			zap.Int("status", page.Status))

		retry, rerr := o.prober.Fetch(ctx, r.normalizedURL, http.MethodGet, prober.FetchOptions{
			Redirect: prober.RedirectFollow,
			Timeout:  r.budget.Within(r.cfg.SmallTimeout.ToDuration()),
			Profile:  prober.ProfileBrowser,
		})
		if rerr != nil {
			return o.blockedReport(ctx, r, page.Status), nil
		}
		if blockStatuses[retry.Status] {
			return o.blockedReport(ctx, r, retry.Status), nil
		}
		page = retry
	}

	r.page = page
	r.finalURL = page.FinalURL

	// HTML_PARSE: the parser recovers from malformed markup, so an error
	// here is an I/O-level surprise and genuinely fatal.
	doc, err := htmlinfo.Parse(page.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page HTML: %w", err)
	}
	r.doc = doc
	r.imgs = doc.ImgTags()

	r.add(checks.HTTPStatus(page.Status))
	r.add(checks.TTFB(page.TTFB.Milliseconds()))

	// PROBES, in order. Each is isolated: a failure or panic degrades
	// only its own check and the walk continues.
	o.probeOGImage(ctx, r)
	o.probeFavicon(ctx, r)
	o.probeRobots(ctx, r)
	o.probeSitemap(ctx, r, false)
	o.probeWWWVariant(ctx, r)
	o.evaluatePageChecks(r)
	o.probeImageHeads(ctx, r)
	o.probePSI(ctx, r)

	r.checks = append(r.checks, checks.LockedPlaceholders()...)

	report := &types.Report{
		OK:              true,
		URL:             r.rawURL,
		NormalizedURL:   r.normalizedURL,
		FinalURL:        r.finalURL,
		FetchedStatus:   page.Status,
		TimingMs:        page.TTFB.Milliseconds(),
		Title:           doc.Title(),
		MetaDescription: doc.MetaByName("description"),
		Speed:           r.speed,
		Checks:          r.checks,
	}
	report.Score = score.Compute(r.checks)
	r.attachDiag(report)
	return report, nil
}

// blockedReport builds the degraded result for an origin that refused
// both header profiles. The sweep still gathers what public files allow.
func (o *Orchestrator) blockedReport(ctx context.Context, r *run, status int) *types.Report {
	r.logger.Warn("Target blocked the audit", zap.Int("status", status))

	r.add(checks.Blocked(status))
	o.sweepProbes(ctx, r)
	r.checks = append(r.checks, checks.LockedPlaceholders()...)

	report := &types.Report{
		OK:            true,
		URL:           r.rawURL,
		NormalizedURL: r.normalizedURL,
		FinalURL:      r.normalizedURL,
		FetchedStatus: status,
		TimingMs:      r.budget.Elapsed().Milliseconds(),
		Blocked:       true,
		Checks:        r.checks,
	}
	report.Score = score.Compute(r.checks)
	r.attachDiag(report)
	return report
}

// timeoutReport builds the degraded result for a page that never
// answered. Title and description stay empty; fetchedStatus stays 0.
func (o *Orchestrator) timeoutReport(ctx context.Context, r *run) *types.Report {
	r.add(checks.Timeout())
	o.sweepProbes(ctx, r)
	o.probePSI(ctx, r)
	r.checks = append(r.checks, checks.LockedPlaceholders()...)

	report := &types.Report{
		OK:            true,
		URL:           r.rawURL,
		NormalizedURL: r.normalizedURL,
		FinalURL:      r.normalizedURL,
		FetchedStatus: 0,
		TimingMs:      r.budget.Overall().Milliseconds(),
		Timeout:       true,
		Speed:         r.speed,
		Checks:        r.checks,
	}
	report.Score = score.Compute(r.checks)
	r.attachDiag(report)
	return report
}

// sweepProbes is the best-effort probe set shared by the blocked and
// timeout paths: favicon, robots.txt, and sitemap discovery without
// content verification.
func (o *Orchestrator) sweepProbes(ctx context.Context, r *run) {
	o.probeFavicon(ctx, r)
	o.probeRobots(ctx, r)
	o.probeSitemap(ctx, r, true)
}

// probe runs one isolated probe step. Panics degrade the step to
// whatever evidence it had gathered; network steps report an outcome for
// the probe metrics, pure steps return an empty outcome and are only
// timed. The wall-clock cost lands in _diag when debug is enabled.
func (o *Orchestrator) probe(r *run, name string, fn func() string) {
	start := time.Now().UTC()
	outcome := metrics.OutcomeError
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("Probe panicked",
					zap.String("probe", name),
					zap.Any("panic", rec))
			}
		}()
		outcome = fn()
	}()

	elapsed := time.Since(start)
	if outcome != "" {
		o.collector.RecordProbe(name, outcome, elapsed)
	}
	if r.debug {
		r.diag = append(r.diag, types.DiagEntry{Step: name, Ms: elapsed.Milliseconds()})
	}
}

// spend reserves one sub-request slot, recording quota exhaustion.
func (o *Orchestrator) spend(r *run) bool {
	if r.budget.Spend(1) {
		return true
	}
	o.collector.RecordQuotaExhausted()
	r.logger.Debug("Sub-request quota exhausted",
		zap.Int("quota", r.budget.Quota()))
	return false
}

func (r *run) attachDiag(report *types.Report) {
	if r.debug {
		report.Diag = r.diag
	}
}
