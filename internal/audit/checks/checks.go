// Package checks turns probe evidence into classified findings. Each
// classifier owns exactly one check id and encodes its thresholds; the
// orchestrator only gathers evidence and never decides a status itself.
package checks

import (
	"github.com/sitepulse/engine/pkg/types"
)

// labels maps check ids to display names.
var labels = map[string]string{
	types.CheckSitemap:         "XML sitemap",
	types.CheckRobots:          "robots.txt",
	types.CheckFavicon:         "Favicon",
	types.CheckOpengraph:       "Open Graph tags",
	types.CheckCanonical:       "Canonical URL",
	types.CheckNoindex:         "Indexability",
	types.CheckMetaRobots:      "Robots directives",
	types.CheckMetaDescription: "Meta description",
	types.CheckTitleLength:     "Title length",
	types.CheckViewport:        "Viewport meta tag",
	types.CheckWWWCanonical:    "www redirect",
	types.CheckImgAlt:          "Image alt text",
	types.CheckStructuredData:  "Structured data",
	types.CheckH1Structure:     "Heading structure",
	types.CheckLLMS:            "llms.txt",
	types.CheckTimeout:         "Audit timeout",
	types.CheckPSI:             "PageSpeed score",
	types.CheckTTFB:            "Time to first byte",
	types.CheckImgModern:       "Modern image formats",
	types.CheckImgSize:         "Image sizes",
	types.CheckImgLazy:         "Lazy image loading",
	types.CheckCompression:     "Text compression",
	types.CheckBlocked:         "Bot access",
	types.CheckHTTP:            "HTTP status",
	types.CheckHTTPSRedirect:   "HTTPS redirect",
	types.CheckMixedContent:    "Mixed content",
	types.CheckSecurityHeaders: "Security headers",
}

func label(id string) string {
	return labels[id]
}

// LockedPlaceholders returns the deferred findings attached to every
// report, including the blocked and timeout paths.
func LockedPlaceholders() []types.Check {
	placeholders := make([]types.Check, 0, len(types.LockedCheckIDs))
	for _, id := range types.LockedCheckIDs {
		placeholders = append(placeholders, types.Check{
			ID:     id,
			Label:  label(id),
			Status: types.StatusLocked,
			Locked: true,
		})
	}
	return placeholders
}
