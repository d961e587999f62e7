// Package events records one line per completed audit for offline
// analysis of usage and target behavior.
package events

import (
	"time"

	"github.com/sitepulse/engine/internal/common/urlutil"
	"github.com/sitepulse/engine/pkg/types"
)

// Result source constants.
const (
	SourceLive     = "live"
	SourceCache    = "cache"
	SourceSnapshot = "snapshot"
)

// Audit status constants.
const (
	StatusOK      = "ok"
	StatusBlocked = "blocked"
	StatusTimeout = "timeout"
	StatusError   = "error"
)

// AuditEvent is the JSON line written for every completed audit.
type AuditEvent struct {
	RequestID     string    `json:"request_id"`
	URL           string    `json:"url"`
	Host          string    `json:"host"`
	CacheKey      string    `json:"cache_key"`
	Source        string    `json:"source"`
	Status        string    `json:"status"`
	FetchedStatus int       `json:"fetched_status"`
	Score         int       `json:"score"`
	SubRequests   int       `json:"sub_requests"`
	DurationMs    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// BuildAuditEvent assembles the event for a completed audit. A nil
// report marks the event as an error.
func BuildAuditEvent(
	requestID string,
	report *types.Report,
	source string,
	cacheKey string,
	subRequests int,
	duration time.Duration,
) *AuditEvent {
	event := &AuditEvent{
		RequestID:   requestID,
		CacheKey:    cacheKey,
		Source:      source,
		Status:      StatusError,
		SubRequests: subRequests,
		DurationMs:  duration.Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	}

	if report == nil {
		return event
	}

	event.URL = report.NormalizedURL
	event.Host = urlutil.ExtractHost(report.NormalizedURL)
	event.FetchedStatus = report.FetchedStatus
	event.Score = report.Score

	switch {
	case report.Blocked:
		event.Status = StatusBlocked
	case report.Timeout:
		event.Status = StatusTimeout
	case report.OK:
		event.Status = StatusOK
	}

	return event
}
