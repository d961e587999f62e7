// Package budget enforces the wall-clock and sub-request limits of a
// single audit run.
package budget

import (
	"context"
	"sync/atomic"
	"time"
)

// MinWindow is the smallest timeout handed to any origin probe, even when
// the overall budget is nearly gone.
const MinWindow = 150 * time.Millisecond

// Budget tracks how much wall-clock time and how many sub-requests an
// audit run has left. The time fields (startedAt, overall) are immutable
// after creation, making TimeLeft safe to call from multiple goroutines;
// the quota counter is atomic.
type Budget struct {
	startedAt time.Time
	overall   time.Duration

	quota int64
	spent atomic.Int64
}

// New creates a budget spanning the given overall duration with the given
// sub-request quota. A quota of zero or less means unlimited.
func New(overall time.Duration, quota int) *Budget {
	return &Budget{
		startedAt: time.Now().UTC(),
		overall:   overall,
		quota:     int64(quota),
	}
}

// Elapsed returns how long the run has been going.
func (b *Budget) Elapsed() time.Duration {
	return time.Now().UTC().Sub(b.startedAt)
}

// TimeLeft returns how much of the overall budget remains.
func (b *Budget) TimeLeft() time.Duration {
	remaining := b.overall - b.Elapsed()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Exhausted returns true once the overall budget is spent.
func (b *Budget) Exhausted() bool {
	return b.TimeLeft() == 0
}

// Overall returns the total duration the budget was created with.
func (b *Budget) Overall() time.Duration {
	return b.overall
}

// Within clamps an operation timeout to the remaining budget, but never
// below MinWindow.
func (b *Budget) Within(d time.Duration) time.Duration {
	if remaining := b.TimeLeft(); d > remaining {
		d = remaining
	}
	if d < MinWindow {
		d = MinWindow
	}
	return d
}

// Context derives a context bounded by Within(d).
func (b *Budget) Context(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, b.Within(d))
}

// Spend reserves n sub-request slots. It returns false without reserving
// anything once the quota cannot cover n. Quota-exempt requests never
// call it.
func (b *Budget) Spend(n int) bool {
	if n <= 0 {
		return true
	}
	if b.quota <= 0 {
		b.spent.Add(int64(n))
		return true
	}
	for {
		cur := b.spent.Load()
		if cur+int64(n) > b.quota {
			return false
		}
		if b.spent.CompareAndSwap(cur, cur+int64(n)) {
			return true
		}
	}
}

// Spent returns how many sub-request slots have been used.
func (b *Budget) Spent() int {
	return int(b.spent.Load())
}

// Quota returns the configured sub-request quota (0 = unlimited).
func (b *Budget) Quota() int {
	return int(b.quota)
}
