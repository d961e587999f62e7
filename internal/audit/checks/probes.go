package checks

import (
	"fmt"

	"github.com/sitepulse/engine/internal/common/urlutil"
	"github.com/sitepulse/engine/pkg/types"
)

// Probe thresholds.
const (
	ttfbWarnMs   = 1500
	psiPassScore = 70
)

// goodRedirectStatuses are the redirect codes accepted by the www variant
// check.
var goodRedirectStatuses = map[int]bool{301: true, 302: true, 307: true, 308: true}

// HTTPStatus classifies the main page response code: anything below 400
// passes, the rest fails.
func HTTPStatus(status int) types.Check {
	c := types.Check{ID: types.CheckHTTP, Label: label(types.CheckHTTP), Value: status}
	c.Details = fmt.Sprintf("Page answered %d", status)
	if status < 400 {
		c.Status = types.StatusPass
	} else {
		c.Status = types.StatusFail
	}
	return c
}

// TTFB warns at and above 1500 ms.
func TTFB(ms int64) types.Check {
	c := types.Check{ID: types.CheckTTFB, Label: label(types.CheckTTFB), Value: ms}
	if ms < ttfbWarnMs {
		c.Status = types.StatusPass
		c.Details = fmt.Sprintf("First byte after %d ms", ms)
	} else {
		c.Status = types.StatusWarn
		c.Details = fmt.Sprintf("First byte after %d ms, aim for under %d", ms, ttfbWarnMs)
	}
	return c
}

// PSI classifies an already-scaled Lighthouse performance score (0-100).
// Callers omit the check entirely when the probe never ran.
func PSI(score int) types.Check {
	c := types.Check{ID: types.CheckPSI, Label: label(types.CheckPSI), Value: score}
	if score >= psiPassScore {
		c.Status = types.StatusPass
		c.Details = fmt.Sprintf("Performance score %d", score)
	} else {
		c.Status = types.StatusWarn
		c.Details = fmt.Sprintf("Performance score %d, aim for %d or higher", score, psiPassScore)
	}
	return c
}

// Favicon passes when the probe answered below 400 and warns on any other
// answer. No answer at all means the state is unknown, which fails.
func Favicon(probed bool, status int) types.Check {
	c := types.Check{ID: types.CheckFavicon, Label: label(types.CheckFavicon)}
	switch {
	case probed && status < 400:
		c.Status = types.StatusPass
		c.Details = "Favicon loads"
	case probed:
		c.Status = types.StatusWarn
		c.Details = fmt.Sprintf("Favicon request answered %d", status)
	default:
		c.Status = types.StatusFail
		c.Details = "Favicon could not be verified"
	}
	return c
}

// Robots tolerates a missing robots.txt with a warning; a wildcard
// Disallow: / fails.
func Robots(found bool, info RobotsInfo) types.Check {
	c := types.Check{ID: types.CheckRobots, Label: label(types.CheckRobots)}
	switch {
	case !found:
		c.Status = types.StatusWarn
		c.Details = "No robots.txt found"
	case info.DisallowsAll:
		c.Status = types.StatusFail
		c.Details = "robots.txt disallows all crawling"
	default:
		c.Status = types.StatusPass
		c.Details = "robots.txt allows crawling"
	}
	return c
}

// SitemapEvidence is what sitemap discovery produced.
type SitemapEvidence struct {
	Discovered bool
	URL        string
	Gzipped    bool
	LocCount   int
	// SampledOK is nil when no listed URL was sampled.
	SampledOK *bool
}

// Sitemap passes only for a fully verified sitemap: discovered, parseable,
// with at least one listed URL answering. Gzipped sitemaps are never
// parsed and stay at warn.
func Sitemap(ev SitemapEvidence) types.Check {
	c := types.Check{ID: types.CheckSitemap, Label: label(types.CheckSitemap)}
	switch {
	case !ev.Discovered:
		c.Status = types.StatusFail
		c.Details = "No sitemap found"
	case ev.Gzipped:
		c.Status = types.StatusWarn
		c.Details = fmt.Sprintf("Sitemap at %s is gzipped and was not parsed", ev.URL)
	case ev.LocCount > 0 && ev.SampledOK != nil && *ev.SampledOK:
		c.Status = types.StatusPass
		c.Details = fmt.Sprintf("Sitemap at %s lists %d URLs", ev.URL, ev.LocCount)
	default:
		c.Status = types.StatusWarn
		c.Details = fmt.Sprintf("Sitemap at %s could not be fully verified", ev.URL)
	}
	return c
}

// VariantEvidence is the outcome of the www flip probe.
type VariantEvidence struct {
	// Applicable is false for IP, localhost, and single-label hosts where
	// no www variant exists.
	Applicable   bool
	Probed       bool
	Status       int
	LocationHost string
	TargetHost   string
}

// WWWCanonical passes when the flipped host permanently redirects to the
// canonical one. Everything else warns; the check never fails.
func WWWCanonical(ev VariantEvidence) types.Check {
	c := types.Check{ID: types.CheckWWWCanonical, Label: label(types.CheckWWWCanonical)}
	switch {
	case !ev.Applicable:
		c.Status = types.StatusWarn
		c.Details = "Not applicable for this host"
	case !ev.Probed:
		c.Status = types.StatusWarn
		c.Details = "Variant host could not be probed"
	case goodRedirectStatuses[ev.Status] && urlutil.HostsEqual(ev.LocationHost, ev.TargetHost):
		c.Status = types.StatusPass
		c.Details = fmt.Sprintf("Variant redirects with %d", ev.Status)
	default:
		c.Status = types.StatusWarn
		c.Details = "Variant host does not redirect to the canonical host"
	}
	return c
}

// Blocked is the terminal finding of the blocked path.
func Blocked(status int) types.Check {
	return types.Check{
		ID:      types.CheckBlocked,
		Label:   label(types.CheckBlocked),
		Status:  types.StatusFail,
		Details: fmt.Sprintf("The origin answered %d to both bot and browser requests", status),
		Value:   status,
	}
}

// Timeout is the terminal finding of the timeout path.
func Timeout() types.Check {
	return types.Check{
		ID:      types.CheckTimeout,
		Label:   label(types.CheckTimeout),
		Status:  types.StatusWarn,
		Details: "The page did not answer within the audit budget",
	}
}
