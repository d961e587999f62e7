package server

import (
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"
)

const (
	minConcurrency = 16
	maxConcurrency = 1024
)

// limiter bounds the number of audits running at once. Each audit holds
// a slot for its full budget, so the bound also caps outbound probe
// fan-out against third-party origins.
type limiter struct {
	slots chan struct{}
}

func newLimiter(n int) *limiter {
	return &limiter{slots: make(chan struct{}, n)}
}

// acquire claims a slot, waiting up to timeout. The returned release
// func must be called exactly once when ok is true.
func (l *limiter) acquire(timeout time.Duration) (release func(), ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		return func() { <-l.slots }, true
	case <-timer.C:
		return nil, false
	}
}

// resolveConcurrency turns the configured concurrency value into a slot
// count. "auto" sizes from system RAM; config validation guarantees any
// other value parses as a positive integer.
func resolveConcurrency(value string, logger *zap.Logger) int {
	if value == "auto" {
		n := autoConcurrency()
		logger.Info("Auto-sized audit concurrency", zap.Int("slots", n))
		return n
	}

	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		n = autoConcurrency()
		logger.Warn("Invalid concurrency value, using auto sizing",
			zap.String("value", value),
			zap.Int("slots", n))
	}
	return n
}

// autoConcurrency sizes the slot count from system RAM. An audit peaks
// at roughly 8MB (page body cap plus parse overhead); half a gigabyte
// stays reserved for the runtime and caches.
func autoConcurrency() int {
	v, err := mem.VirtualMemory()
	var totalBytes int64

	if err != nil {
		// Conservative estimate when system memory is unreadable.
		totalBytes = int64(8 * 1024 * 1024 * 1024)
	} else {
		totalBytes = int64(v.Total)
	}

	reservedBytes := int64(512 * 1024 * 1024)
	auditBytes := int64(8 * 1024 * 1024)

	n := int((totalBytes - reservedBytes) / auditBytes)

	if n < minConcurrency {
		n = minConcurrency
	}
	if n > maxConcurrency {
		n = maxConcurrency
	}

	return n
}
