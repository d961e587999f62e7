package psi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitepulse/engine/internal/common/configtypes"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(&configtypes.PSIConfig{
		APIKey:   "test-key",
		Endpoint: srv.URL,
	}, zap.NewNop())
}

func psiPayload(score float64) string {
	return fmt.Sprintf(`{"lighthouseResult":{"categories":{"performance":{"score":%g}}}}`, score)
}

func TestEnabled(t *testing.T) {
	enabled := New(&configtypes.PSIConfig{APIKey: "k"}, zap.NewNop())
	assert.True(t, enabled.Enabled())

	disabled := New(&configtypes.PSIConfig{}, zap.NewNop())
	assert.False(t, disabled.Enabled())
}

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		raw  float64
		want int
	}{
		{"high score", 0.93, 93},
		{"perfect", 1.0, 100},
		{"rounded up", 0.896, 90},
		{"threshold", 0.7, 70},
		{"zero", 0.0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, psiPayload(tt.raw))
			})

			got, err := client.Score(context.Background(), "https://example.com")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScoreQueryParameters(t *testing.T) {
	var query map[string][]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		fmt.Fprint(w, psiPayload(0.5))
	})

	_, err := client.Score(context.Background(), "https://example.com/page")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com/page"}, query["url"])
	assert.Equal(t, []string{"test-key"}, query["key"])
	assert.Equal(t, []string{"performance"}, query["category"])
	assert.Equal(t, []string{"mobile"}, query["strategy"])
}

func TestScoreErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		errText string
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			errText: "status 429",
		},
		{
			name: "missing score",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"lighthouseResult":{"categories":{}}}`)
			},
			errText: "no performance score",
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "not json")
			},
			errText: "decode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)
			_, err := client.Score(context.Background(), "https://example.com")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestScoreContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, psiPayload(0.9))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Score(ctx, "https://example.com")
	assert.Error(t, err)
}
