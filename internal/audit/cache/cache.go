// Package cache keeps finished audit reports warm so repeated checks of
// the same page within the TTL window do not re-probe the target.
package cache

import (
	"context"
	"time"

	"github.com/sitepulse/engine/internal/common/urlutil"
	"github.com/sitepulse/engine/pkg/types"
)

// DefaultTTL bounds how long a cached report may be served.
const DefaultTTL = 90 * time.Second

// ReportCache stores and serves reports under their canonical URL key.
// Implementations are safe for concurrent use.
type ReportCache interface {
	// Get returns the cached report and its age; the bool reports a hit.
	// Callers own the returned report and may annotate it freely.
	Get(ctx context.Context, key string) (*types.Report, time.Duration, bool)
	// Set stores a report, replacing any previous entry for the key.
	Set(ctx context.Context, key string, report *types.Report)
}

// Key reduces a target URL to its cache key: the canonical form prefixed
// with its xxhash64 fingerprint. Variants of the same page (query strings,
// trailing slashes, host casing) collapse onto one entry.
func Key(rawURL string) string {
	canonical := urlutil.CanonicalKey(rawURL)
	return urlutil.KeyHash(canonical) + ":" + canonical
}
