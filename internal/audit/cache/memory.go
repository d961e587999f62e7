package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sitepulse/engine/pkg/types"
)

type memoryEntry struct {
	report   types.Report
	storedAt time.Time
}

// Memory is the in-process ReportCache. Expired entries are evicted
// lazily on read; there is no size bound since entries are small and
// short-lived.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	logger  *zap.Logger
}

// NewMemory creates a memory cache. A non-positive ttl falls back to
// DefaultTTL.
func NewMemory(ttl time.Duration, logger *zap.Logger) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		logger:  logger,
	}
}

func (m *Memory) Get(_ context.Context, key string) (*types.Report, time.Duration, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, 0, false
	}

	age := time.Since(entry.storedAt)
	if age > m.ttl {
		m.mu.Lock()
		// Re-check under the write lock: a fresher entry may have landed.
		if current, still := m.entries[key]; still && current.storedAt.Equal(entry.storedAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()

		m.logger.Debug("Cache entry expired",
			zap.String("key", key),
			zap.Duration("age", age))
		return nil, 0, false
	}

	// Hand out a copy so callers can annotate it without touching the
	// stored entry.
	report := entry.report
	return &report, age, true
}

func (m *Memory) Set(_ context.Context, key string, report *types.Report) {
	if report == nil {
		return
	}

	m.mu.Lock()
	m.entries[key] = memoryEntry{
		report:   *report,
		storedAt: time.Now().UTC(),
	}
	m.mu.Unlock()

	m.logger.Debug("Cache entry stored",
		zap.String("key", key),
		zap.Duration("ttl", m.ttl))
}

// Len reports the number of entries currently held, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
