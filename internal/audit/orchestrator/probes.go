package orchestrator

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sitepulse/engine/internal/audit/checks"
	"github.com/sitepulse/engine/internal/audit/htmlinfo"
	"github.com/sitepulse/engine/internal/audit/metrics"
	"github.com/sitepulse/engine/internal/audit/prober"
	"github.com/sitepulse/engine/internal/common/urlutil"
)

// wellKnownSitemapPaths are tried after any robots-advertised sitemaps.
var wellKnownSitemapPaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap-index.xml",
	"/wp-sitemap.xml",
}

// probeOGImage verifies that the page's og:image actually loads. The
// probe is discretionary: without quota the tags are judged on their own.
func (o *Orchestrator) probeOGImage(ctx context.Context, r *run) {
	ogTitle := r.doc.MetaByProperty("og:title")
	ogImage := r.doc.MetaByProperty("og:image")

	var imageLoads *bool
	o.probe(r, "og_image", func() string {
		if ogImage == "" || strings.HasPrefix(ogImage, "data:") {
			return metrics.OutcomeSkipped
		}
		if !o.spend(r) {
			return metrics.OutcomeSkipped
		}

		resp, err := o.prober.Fetch(ctx, resolveURL(r.finalURL, ogImage), http.MethodGet, prober.FetchOptions{
			Redirect: prober.RedirectFollow,
			Timeout:  r.budget.Within(r.cfg.AssetTimeout.ToDuration()),
			Profile:  prober.ProfileDefault,
		})
		if err != nil {
			// Out of time means unknown; any other failure means the
			// image demonstrably does not load.
			if !prober.IsAbort(err) {
				loads := false
				imageLoads = &loads
			}
			return metrics.OutcomeError
		}
		loads := resp.Status < 400
		imageLoads = &loads
		return metrics.OutcomeOK
	})
	r.add(checks.OpenGraph(ogTitle, ogImage, imageLoads))
}

// probeFavicon resolves the page icon, falling back to /favicon.ico.
// Exempt from the quota.
func (o *Orchestrator) probeFavicon(ctx context.Context, r *run) {
	target := r.origin() + "/favicon.ico"
	if r.doc != nil {
		if href := r.doc.IconHref(); href != "" && !strings.HasPrefix(href, "data:") {
			target = resolveURL(r.finalURL, href)
		}
	}

	probed := false
	status := 0
	o.probe(r, "favicon", func() string {
		resp, err := o.prober.HeadThenGet(ctx, target, prober.HeadGetOptions{
			Timeout:         r.budget.Within(r.cfg.AssetTimeout.ToDuration()),
			Profile:         prober.ProfileDefault,
			FallbackOnNonOK: true,
		})
		if err != nil {
			return metrics.OutcomeError
		}
		probed = true
		status = resp.Status
		return metrics.OutcomeOK
	})
	r.add(checks.Favicon(probed, status))
}

// probeRobots fetches robots.txt and keeps its Sitemap: lines for the
// discovery probe. Exempt from the quota.
func (o *Orchestrator) probeRobots(ctx context.Context, r *run) {
	found := false
	var info checks.RobotsInfo
	o.probe(r, "robots", func() string {
		resp, err := o.prober.Fetch(ctx, r.origin()+"/robots.txt", http.MethodGet, prober.FetchOptions{
			Redirect: prober.RedirectFollow,
			Timeout:  r.budget.Within(r.cfg.SmallTimeout.ToDuration()),
			Profile:  prober.ProfileDefault,
		})
		if err != nil {
			return metrics.OutcomeError
		}
		if resp.Status >= 400 {
			return metrics.OutcomeOK
		}
		found = true
		info = checks.ParseRobots(resp.Body)
		r.robotsSitemaps = info.Sitemaps
		return metrics.OutcomeOK
	})
	r.add(checks.Robots(found, info))
}

// probeSitemap walks the candidate list until one sitemap answers.
// Discovery is exempt from the quota; sampling listed URLs is not. In
// sweep mode (blocked and timeout paths) discovery alone decides the
// check and the content is never parsed.
func (o *Orchestrator) probeSitemap(ctx context.Context, r *run, sweep bool) {
	var ev checks.SitemapEvidence
	o.probe(r, "sitemap", func() string {
		outcome := metrics.OutcomeOK
		for _, candidate := range sitemapCandidates(r.origin(), r.robotsSitemaps) {
			resp, err := o.prober.HeadThenGet(ctx, candidate, prober.HeadGetOptions{
				Timeout:         r.budget.Within(r.cfg.SmallTimeout.ToDuration()),
				Profile:         prober.ProfileDefault,
				FallbackOnNonOK: true,
			})
			if err != nil {
				outcome = metrics.OutcomeError
				continue
			}
			if resp.Status >= 400 {
				continue
			}

			ev.Discovered = true
			ev.URL = candidate
			if !sweep {
				o.verifySitemap(ctx, r, candidate, resp, &ev)
			}
			return metrics.OutcomeOK
		}
		return outcome
	})
	r.add(checks.Sitemap(ev))
}

// verifySitemap parses the discovered sitemap and samples its first
// listed URLs. Gzipped sitemaps are left unparsed.
func (o *Orchestrator) verifySitemap(ctx context.Context, r *run, sitemapURL string, discovery *prober.Response, ev *checks.SitemapEvidence) {
	if isGzippedSitemap(sitemapURL, discovery.Header.Get("Content-Type")) {
		ev.Gzipped = true
		return
	}

	// HeadThenGet may already have fallen back to GET; reuse its body.
	body := discovery.Body
	if len(body) == 0 {
		resp, err := o.prober.Fetch(ctx, sitemapURL, http.MethodGet, prober.FetchOptions{
			Redirect: prober.RedirectFollow,
			Timeout:  r.budget.Within(r.cfg.PageTimeout.ToDuration()),
			Profile:  prober.ProfileDefault,
		})
		if err != nil || resp.Status >= 400 {
			return
		}
		body = resp.Body
	}

	locs := htmlinfo.Locs(body)
	ev.LocCount = len(locs)

	sampledCount, okCount := 0, 0
	for i := 0; i < r.cfg.SitemapSamples && i < len(locs); i++ {
		if !o.spend(r) {
			break
		}
		sampledCount++
		resp, err := o.prober.HeadThenGet(ctx, locs[i], prober.HeadGetOptions{
			Timeout:         r.budget.Within(r.cfg.AssetTimeout.ToDuration()),
			Profile:         prober.ProfileDefault,
			FallbackOnNonOK: true,
		})
		if err == nil && resp.Status < 400 {
			okCount++
		}
	}
	if sampledCount > 0 {
		allOK := okCount == sampledCount
		ev.SampledOK = &allOK
	}
}

// probeWWWVariant flips the www prefix and expects a permanent redirect
// back to the canonical host.
func (o *Orchestrator) probeWWWVariant(ctx context.Context, r *run) {
	var ev checks.VariantEvidence

	u, err := url.Parse(r.finalURL)
	if err == nil && u.Host != "" {
		ev.TargetHost = u.Host
		if flipped := urlutil.FlipWWWHost(u.Host); flipped != "" {
			ev.Applicable = true
			variantURL := u.Scheme + "://" + flipped + "/"

			o.probe(r, "www_variant", func() string {
				if !o.spend(r) {
					return metrics.OutcomeSkipped
				}
				resp, ferr := o.prober.Fetch(ctx, variantURL, http.MethodGet, prober.FetchOptions{
					Redirect: prober.RedirectManual,
					Timeout:  r.budget.Within(r.cfg.SmallTimeout.ToDuration()),
					Profile:  prober.ProfileDefault,
				})
				if ferr != nil {
					return metrics.OutcomeError
				}
				ev.Probed = true
				ev.Status = resp.Status
				ev.LocationHost = urlutil.ExtractHost(resp.Header.Get("Location"))
				return metrics.OutcomeOK
			})
		}
	}
	r.add(checks.WWWCanonical(ev))
}

// evaluatePageChecks runs the pure classifications over the parsed page:
// canonical, the robots directive pair, and the text-level checks.
func (o *Orchestrator) evaluatePageChecks(r *run) {
	o.probe(r, "page_checks", func() string {
		directives := checks.RobotsDirectives{
			MetaRobots:    r.doc.AllMetaByName("robots"),
			MetaGooglebot: r.doc.AllMetaByName("googlebot"),
			MetaBingbot:   r.doc.AllMetaByName("bingbot"),
			XRobotsTag:    r.page.Header.Get("X-Robots-Tag"),
		}

		r.add(checks.Canonical(r.doc.CanonicalLinks(), r.finalURL))
		r.add(checks.Noindex(directives))
		r.add(checks.MetaRobots(directives))
		r.add(checks.MetaDescription(r.doc.MetaByName("description")))
		r.add(checks.TitleLength(r.doc.Title()))
		r.add(checks.Viewport(r.doc.MetaByName("viewport")))
		return ""
	})
}

// probeImageHeads emits the pure image checks and HEAD-probes a few
// sources for size. Pages without images skip the whole family.
func (o *Orchestrator) probeImageHeads(ctx context.Context, r *run) {
	if len(r.imgs) == 0 {
		return
	}

	r.add(checks.ImgAlt(r.imgs))
	r.add(checks.ImgModern(r.imgs))
	r.add(checks.ImgLazy(r.imgs))

	oversized, probed, attempted := 0, 0, 0
	o.probe(r, "image_heads", func() string {
		for _, img := range r.imgs {
			if attempted >= r.cfg.ImageHeads {
				break
			}
			if img.Src == "" || strings.HasPrefix(img.Src, "data:") {
				continue
			}
			if !o.spend(r) {
				break
			}
			attempted++

			resp, err := o.prober.Fetch(ctx, resolveURL(r.finalURL, img.Src), http.MethodHead, prober.FetchOptions{
				Timeout: r.budget.Within(r.cfg.AssetTimeout.ToDuration()),
				Profile: prober.ProfileDefault,
			})
			if err != nil {
				continue
			}
			probed++
			if contentLength(resp.Header) > checks.OversizedImageBytes {
				oversized++
			}
		}
		switch {
		case probed > 0:
			return metrics.OutcomeOK
		case attempted > 0:
			return metrics.OutcomeError
		default:
			return metrics.OutcomeSkipped
		}
	})

	if probed > 0 {
		r.add(checks.ImgSize(oversized, probed))
	}
}

// probePSI asks PageSpeed Insights for the performance score. Runs only
// with an API key, spare quota, and enough budget for the round trip.
func (o *Orchestrator) probePSI(ctx context.Context, r *run) {
	if o.psiClient == nil || !o.psiClient.Enabled() {
		return
	}

	o.probe(r, "psi", func() string {
		if r.budget.TimeLeft() < psiMinRemaining {
			return metrics.OutcomeSkipped
		}
		if !o.spend(r) {
			return metrics.OutcomeSkipped
		}

		psiCtx, cancel := r.budget.Context(ctx, r.cfg.PSITimeout.ToDuration())
		defer cancel()

		value, err := o.psiClient.Score(psiCtx, r.finalURL)
		if err != nil {
			r.logger.Debug("PageSpeed probe failed", zap.Error(err))
			return metrics.OutcomeError
		}
		r.speed = &value
		r.add(checks.PSI(value))
		return metrics.OutcomeOK
	})
}

// origin returns scheme://host of the URL the audit is anchored on.
func (r *run) origin() string {
	u, err := url.Parse(r.finalURL)
	if err != nil || u.Host == "" {
		return strings.TrimRight(r.finalURL, "/")
	}
	return u.Scheme + "://" + u.Host
}

// sitemapCandidates orders and dedupes the URLs discovery will try:
// robots-advertised sitemaps first, then the well-known locations.
func sitemapCandidates(origin string, robotsListed []string) []string {
	seen := make(map[string]bool, len(robotsListed)+len(wellKnownSitemapPaths))
	candidates := make([]string, 0, len(robotsListed)+len(wellKnownSitemapPaths))
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			candidates = append(candidates, u)
		}
	}

	for _, listed := range robotsListed {
		add(strings.TrimSpace(listed))
	}
	for _, path := range wellKnownSitemapPaths {
		add(origin + path)
	}
	return candidates
}

// isGzippedSitemap detects compressed sitemaps by path suffix or content
// type. Those stay unparsed.
func isGzippedSitemap(rawURL, contentType string) bool {
	if u, err := url.Parse(rawURL); err == nil && strings.HasSuffix(strings.ToLower(u.Path), ".gz") {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "application/gzip") || strings.Contains(ct, "application/x-gzip")
}

// resolveURL resolves ref against base, returning ref untouched when
// either side does not parse.
func resolveURL(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

// contentLength parses the Content-Length header, returning -1 when the
// origin did not send one.
func contentLength(header http.Header) int64 {
	v := header.Get("Content-Length")
	if v == "" {
		return -1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return -1
	}
	return n
}
