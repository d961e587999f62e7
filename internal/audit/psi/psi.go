// Package psi fetches the PageSpeed Insights mobile performance score
// for audited pages.
package psi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/sitepulse/engine/internal/common/configtypes"
)

const maxResponseBytes = 4 << 20

// Client calls the PageSpeed Insights v5 API. A client without an API
// key is valid but disabled; the orchestrator skips the probe entirely.
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *zap.Logger
}

func New(cfg *configtypes.PSIConfig, logger *zap.Logger) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Score fetches the performance score for target, scaled to 0-100.
// The per-call deadline comes from ctx.
func (c *Client) Score(ctx context.Context, target string) (int, error) {
	params := url.Values{}
	params.Set("url", target)
	params.Set("key", c.apiKey)
	params.Set("category", "performance")
	params.Set("strategy", "mobile")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build pagespeed request: %w", err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("pagespeed request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, fmt.Errorf("failed to read pagespeed response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("pagespeed returned status %d", resp.StatusCode)
	}

	var result struct {
		LighthouseResult struct {
			Categories struct {
				Performance struct {
					Score *float64 `json:"score"`
				} `json:"performance"`
			} `json:"categories"`
		} `json:"lighthouseResult"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("failed to decode pagespeed response: %w", err)
	}

	raw := result.LighthouseResult.Categories.Performance.Score
	if raw == nil {
		return 0, fmt.Errorf("pagespeed response carries no performance score")
	}

	score := int(math.Round(*raw * 100))
	c.logger.Debug("PageSpeed score fetched",
		zap.String("url", target),
		zap.Int("score", score),
		zap.Duration("duration", time.Since(start)))

	return score, nil
}
