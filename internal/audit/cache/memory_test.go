package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitepulse/engine/pkg/types"
)

func sampleReport(url string, score int) *types.Report {
	return &types.Report{
		OK:            true,
		URL:           url,
		NormalizedURL: url,
		FinalURL:      url,
		FetchedStatus: 200,
		Score:         score,
		Checks: []types.Check{
			{ID: types.CheckTitleLength, Label: "Title length", Status: types.StatusPass, Value: 30},
		},
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		same bool
	}{
		{"query ignored", "https://example.com/page?utm=1", "https://example.com/page", true},
		{"trailing slash ignored", "https://example.com/page/", "https://example.com/page", true},
		{"host case ignored", "https://EXAMPLE.com/page", "https://example.com/page", true},
		{"fragment ignored", "https://example.com/page#top", "https://example.com/page", true},
		{"different path differs", "https://example.com/a", "https://example.com/b", false},
		{"different host differs", "https://a.example.com", "https://b.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.same {
				assert.Equal(t, Key(tt.a), Key(tt.b))
			} else {
				assert.NotEqual(t, Key(tt.a), Key(tt.b))
			}
		})
	}
}

func TestMemoryHitAndMiss(t *testing.T) {
	m := NewMemory(time.Minute, zap.NewNop())
	ctx := context.Background()
	key := Key("https://example.com")

	_, _, ok := m.Get(ctx, key)
	assert.False(t, ok)

	m.Set(ctx, key, sampleReport("https://example.com", 88))

	got, age, ok := m.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, 88, got.Score)
	assert.Equal(t, "https://example.com", got.URL)
	assert.GreaterOrEqual(t, age, time.Duration(0))
	assert.Less(t, age, time.Minute)
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory(10*time.Millisecond, zap.NewNop())
	ctx := context.Background()
	key := Key("https://example.com")

	m.Set(ctx, key, sampleReport("https://example.com", 70))
	require.Equal(t, 1, m.Len())

	time.Sleep(25 * time.Millisecond)

	_, _, ok := m.Get(ctx, key)
	assert.False(t, ok)
	// Lazy eviction removed the expired entry on read.
	assert.Equal(t, 0, m.Len())
}

func TestMemoryOverwrite(t *testing.T) {
	m := NewMemory(time.Minute, zap.NewNop())
	ctx := context.Background()
	key := Key("https://example.com")

	m.Set(ctx, key, sampleReport("https://example.com", 50))
	m.Set(ctx, key, sampleReport("https://example.com", 90))

	got, _, ok := m.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, 90, got.Score)
	assert.Equal(t, 1, m.Len())
}

func TestMemoryReturnsCopy(t *testing.T) {
	m := NewMemory(time.Minute, zap.NewNop())
	ctx := context.Background()
	key := Key("https://example.com")

	m.Set(ctx, key, sampleReport("https://example.com", 75))

	first, _, ok := m.Get(ctx, key)
	require.True(t, ok)
	first.Cached = true
	first.CacheAgeMs = 1234

	second, _, ok := m.Get(ctx, key)
	require.True(t, ok)
	assert.False(t, second.Cached)
	assert.Zero(t, second.CacheAgeMs)
}

func TestMemoryDefaultTTL(t *testing.T) {
	m := NewMemory(0, zap.NewNop())
	assert.Equal(t, DefaultTTL, m.ttl)
}
