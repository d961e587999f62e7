package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/sitepulse/engine/internal/audit/email"
	"github.com/sitepulse/engine/internal/common/configtypes"
)

func newTestLeadSender(t *testing.T) (*email.Sender, *[]string) {
	t.Helper()

	var payloads []string
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		payloads = append(payloads, string(body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"em_test_1"}`))
	}))
	t.Cleanup(provider.Close)

	sender, err := email.NewSender(&configtypes.ResendConfig{
		Endpoint: provider.URL,
		APIKey:   "re_test_key",
		From:     "Audit <audit@example.com>",
		To:       "leads@example.com",
	}, zap.NewNop())
	require.NoError(t, err)

	return sender, &payloads
}

func TestLeadDelivers(t *testing.T) {
	sender, payloads := newTestLeadSender(t)
	s := newTestServer(t, testConfig(), sender)

	body, err := json.Marshal(email.Lead{
		Name:    "Jamie",
		Email:   "jamie@example.com",
		Website: "https://example.com",
		Source:  "widget",
	})
	require.NoError(t, err)

	ctx := doRequest(s, fasthttp.MethodPost, "/lead", string(body), nil)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"ok":true,"id":"em_test_1"}`, string(ctx.Response.Body()))

	require.Len(t, *payloads, 1)
	assert.Contains(t, (*payloads)[0], "jamie@example.com")
	assert.Contains(t, (*payloads)[0], "https://example.com")
}

func TestLeadValidation(t *testing.T) {
	sender, _ := newTestLeadSender(t)
	s := newTestServer(t, testConfig(), sender)

	tests := []struct {
		name      string
		body      string
		wantError string
	}{
		{"missing email", `{"website":"https://example.com"}`, "email is required"},
		{"bad email", `{"email":"nope","website":"https://example.com"}`, "email is not valid"},
		{"missing website", `{"email":"a@b.co"}`, "website is required"},
		{"malformed json", `{"email"`, "not valid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := doRequest(s, fasthttp.MethodPost, "/lead", tt.body, nil)

			assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
			assert.Contains(t, string(ctx.Response.Body()), tt.wantError)
		})
	}
}

func TestLeadNotConfigured(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	ctx := doRequest(s, fasthttp.MethodPost, "/lead", `{"email":"a@b.co","website":"https://example.com"}`, nil)

	assert.Equal(t, fasthttp.StatusServiceUnavailable, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "not configured")
}

func TestLeadMethodNotAllowed(t *testing.T) {
	sender, _ := newTestLeadSender(t)
	s := newTestServer(t, testConfig(), sender)

	ctx := doRequest(s, fasthttp.MethodGet, "/lead", "", nil)

	assert.Equal(t, fasthttp.StatusMethodNotAllowed, ctx.Response.StatusCode())
}

func TestLeadPreflight(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	ctx := doRequest(s, fasthttp.MethodOptions, "/lead", "", map[string]string{
		"Origin": "https://widget.example.com",
	})

	assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
	assert.Equal(t, "https://widget.example.com", string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))
}
