// Package prober issues the bounded origin requests an audit is built
// from: the main page fetch, asset and robots/sitemap probes, and the
// www-variant redirect check.
package prober

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sitepulse/engine/internal/common/configtypes"
	"github.com/sitepulse/engine/internal/common/urlutil"
)

// RedirectMode controls whether a fetch follows redirect chains or returns
// the first redirect response untouched.
type RedirectMode int

const (
	// RedirectFollow follows redirects up to the net/http default of 10.
	RedirectFollow RedirectMode = iota
	// RedirectManual returns the first response as-is, preserving the
	// Location header for inspection.
	RedirectManual
)

// FetchOptions tunes one probe request.
type FetchOptions struct {
	Redirect RedirectMode
	// Timeout bounds this call on top of whatever deadline the context
	// already carries. Zero means context-only.
	Timeout time.Duration
	Profile Profile
	// MaxBodyBytes caps the body read. Zero falls back to the prober's
	// configured cap.
	MaxBodyBytes int64
}

// HeadGetOptions tunes a HeadThenGet probe.
type HeadGetOptions struct {
	Timeout time.Duration
	Profile Profile
	// FallbackOnNonOK retries with GET on any non-2xx/3xx HEAD status, not
	// just 405/501.
	FallbackOnNonOK bool
}

// Response is what a probe saw: final status, headers, the (capped) body,
// the URL after redirects, and timing.
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	FinalURL string
	// Elapsed covers the whole exchange including the body read; TTFB
	// stops at the response headers.
	Elapsed time.Duration
	TTFB    time.Duration
}

// Prober is a shared HTTP client pair (redirect-following and manual) over
// one tuned transport. Safe for concurrent use.
type Prober struct {
	follow       *http.Client
	manual       *http.Client
	userAgent    string
	maxBodyBytes int64
	logger       *zap.Logger
}

// New creates a prober from the audit configuration.
func New(cfg *configtypes.AuditConfig, logger *zap.Logger) *Prober {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if cfg.BlockPrivateHosts {
		transport.DialContext = ssrfSafeDialContext
	}

	return &Prober{
		follow: &http.Client{
			Timeout:   30 * time.Second, // guard only, real deadlines come from context
			Transport: transport,
		},
		manual: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
		logger:       logger,
	}
}

// Fetch performs a single request. The body is read up to the configured
// cap; deadline and cancellation errors satisfy IsAbort.
func (p *Prober) Fetch(ctx context.Context, rawURL, method string, opts FetchOptions) (*Response, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", rawURL, err)
	}
	applyProfile(req.Header, opts.Profile, p.userAgent)

	client := p.follow
	if opts.Redirect == RedirectManual {
		client = p.manual
	}

	start := time.Now().UTC()
	resp, err := client.Do(req)
	if err != nil {
		p.logger.Debug("Probe failed",
			zap.String("method", method),
			zap.String("url", rawURL),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()
	ttfb := time.Since(start)

	limit := opts.MaxBodyBytes
	if limit <= 0 {
		limit = p.maxBodyBytes
	}

	var body []byte
	if method != http.MethodHead {
		body, err = io.ReadAll(io.LimitReader(resp.Body, limit))
		if err != nil {
			return nil, fmt.Errorf("read body of %s: %w", rawURL, err)
		}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	r := &Response{
		Status:   resp.StatusCode,
		Header:   resp.Header,
		Body:     body,
		FinalURL: finalURL,
		Elapsed:  time.Since(start),
		TTFB:     ttfb,
	}

	p.logger.Debug("Probe completed",
		zap.String("method", method),
		zap.String("url", rawURL),
		zap.Int("status_code", r.Status),
		zap.Int("body_bytes", len(r.Body)),
		zap.Duration("elapsed", r.Elapsed))

	return r, nil
}

// HeadThenGet probes with HEAD and falls back to GET when the origin
// errors, answers 405/501, or (with FallbackOnNonOK) anything outside
// 2xx/3xx. Many origins mishandle HEAD; the GET body is capped like any
// other fetch.
func (p *Prober) HeadThenGet(ctx context.Context, rawURL string, opts HeadGetOptions) (*Response, error) {
	head, err := p.Fetch(ctx, rawURL, http.MethodHead, FetchOptions{
		Timeout: opts.Timeout,
		Profile: opts.Profile,
	})
	if err == nil && !headNeedsGet(head.Status, opts.FallbackOnNonOK) {
		return head, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return p.Fetch(ctx, rawURL, http.MethodGet, FetchOptions{
		Timeout: opts.Timeout,
		Profile: opts.Profile,
	})
}

func headNeedsGet(status int, fallbackOnNonOK bool) bool {
	if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
		return true
	}
	if fallbackOnNonOK && (status < 200 || status >= 400) {
		return true
	}
	return false
}

// ssrfSafeDialContext resolves the host, validates every IP is public,
// then connects to the first one. Blocks DNS rebinding to internal
// addresses.
func ssrfSafeDialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}

	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, fmt.Errorf("DNS resolution failed for %q: %w", host, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no IP addresses found for %q", host)
	}

	for _, ip := range ips {
		if err := urlutil.ValidateResolvedIP(ip); err != nil {
			return nil, fmt.Errorf("SSRF protection for %q: %w", host, err)
		}
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].String(), port))
}
