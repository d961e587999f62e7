// Package score aggregates classified findings into the 0-100 audit
// score: weighted per-category means combined by a weighted harmonic
// mean, then capped by gates on the most damaging failures.
package score

import (
	"math"

	"github.com/sitepulse/engine/pkg/types"
)

// Scoring categories.
const (
	categorySEO         = "seo"
	categoryPerformance = "performance"
	categorySecurity    = "security"
)

// categoryFloor keeps a fully failed category from zeroing the harmonic
// mean outright.
const categoryFloor = 0.05

// checkWeights are the per-id weights; ids not listed weigh 1.
var checkWeights = map[string]float64{
	types.CheckSitemap:         2.2,
	types.CheckCanonical:       2.0,
	types.CheckRobots:          1.6,
	types.CheckWWWCanonical:    1.2,
	types.CheckNoindex:         5.0,
	types.CheckMetaRobots:      1.0,
	types.CheckImgAlt:          1.2,
	types.CheckViewport:        1.1,
	types.CheckMetaDescription: 0.8,
	types.CheckTitleLength:     0.8,
	types.CheckOpengraph:       0.5,
	types.CheckFavicon:         0.3,
	types.CheckPSI:             2.4,
	types.CheckTTFB:            1.4,
	types.CheckImgSize:         1.2,
	types.CheckImgModern:       0.8,
	types.CheckImgLazy:         0.6,
	types.CheckHTTP:            2.0,
	types.CheckHTTPSRedirect:   1.8,
	types.CheckMixedContent:    1.8,
	types.CheckSecurityHeaders: 1.0,
	types.CheckCompression:     1.2,
	types.CheckStructuredData:  1.4,
}

// categoryByID assigns each check id to its scoring category.
var categoryByID = map[string]string{
	types.CheckSitemap:         categorySEO,
	types.CheckCanonical:       categorySEO,
	types.CheckRobots:          categorySEO,
	types.CheckWWWCanonical:    categorySEO,
	types.CheckNoindex:         categorySEO,
	types.CheckMetaRobots:      categorySEO,
	types.CheckImgAlt:          categorySEO,
	types.CheckViewport:        categorySEO,
	types.CheckMetaDescription: categorySEO,
	types.CheckTitleLength:     categorySEO,
	types.CheckOpengraph:       categorySEO,
	types.CheckFavicon:         categorySEO,
	types.CheckStructuredData:  categorySEO,
	types.CheckH1Structure:     categorySEO,
	types.CheckLLMS:            categorySEO,
	types.CheckPSI:             categoryPerformance,
	types.CheckTTFB:            categoryPerformance,
	types.CheckImgSize:         categoryPerformance,
	types.CheckImgModern:       categoryPerformance,
	types.CheckImgLazy:         categoryPerformance,
	types.CheckCompression:     categoryPerformance,
	types.CheckHTTP:            categorySecurity,
	types.CheckHTTPSRedirect:   categorySecurity,
	types.CheckMixedContent:    categorySecurity,
	types.CheckSecurityHeaders: categorySecurity,
}

// categoryWeights balance the categories in the final mean.
var categoryWeights = map[string]float64{
	categorySEO:         0.55,
	categoryPerformance: 0.35,
	categorySecurity:    0.10,
}

// statusValue converts a status into its score contribution. Locked and
// unknown statuses carry no contribution.
func statusValue(s types.CheckStatus) (float64, bool) {
	switch s {
	case types.StatusPass:
		return 1, true
	case types.StatusWarn:
		return 0.5, true
	case types.StatusFail:
		return 0, true
	default:
		return 0, false
	}
}

// Compute aggregates checks into the final score. Locked placeholders and
// the blocked/timeout markers never contribute; empty input scores 0.
func Compute(checks []types.Check) int {
	type bucket struct {
		weighted float64
		total    float64
	}
	buckets := make(map[string]*bucket, 3)
	failed := make(map[string]bool)

	for _, c := range checks {
		if c.Locked || c.ID == types.CheckBlocked || c.ID == types.CheckTimeout {
			continue
		}
		v, scorable := statusValue(c.Status)
		if !scorable {
			continue
		}
		if c.Status == types.StatusFail {
			failed[c.ID] = true
		}

		cat, known := categoryByID[c.ID]
		if !known {
			continue
		}
		w := checkWeights[c.ID]
		if w == 0 {
			w = 1
		}

		b := buckets[cat]
		if b == nil {
			b = &bucket{}
			buckets[cat] = b
		}
		b.weighted += w * v
		b.total += w
	}

	var sumW, sumWOverS float64
	for cat, b := range buckets {
		if b.total == 0 {
			continue
		}
		s := b.weighted / b.total
		if s < categoryFloor {
			s = categoryFloor
		}
		if s > 1 {
			s = 1
		}
		w := categoryWeights[cat]
		sumW += w
		sumWOverS += w / s
	}

	score := 0
	if sumWOverS > 0 {
		score = int(math.Round(100 * sumW / sumWOverS))
	}

	// Gates, most damaging first. Caps stack: the lowest applicable wins.
	if failed[types.CheckNoindex] {
		return 0
	}
	if failed[types.CheckHTTP] && score > 40 {
		score = 40
	}
	if failed[types.CheckCanonical] && score > 65 {
		score = 65
	}
	if (failed[types.CheckSitemap] || failed[types.CheckRobots]) && score > 80 {
		score = 80
	}
	return score
}
