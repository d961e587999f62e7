package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sitepulse/engine/internal/common/configtypes"
	"github.com/sitepulse/engine/pkg/types"
)

const (
	defaultBlobTimeout = 5 * time.Second
	maxSnapshotBytes   = 8 << 20
)

// Blob stores snapshots in an external blob service: writes PUT to
// endpoint/<path> with a bearer token, reads GET from publicBase/<path>.
type Blob struct {
	endpoint   string
	token      string
	publicBase string
	client     *http.Client
	logger     *zap.Logger
}

// NewBlob creates a blob store from configuration. Token and public base
// are required; the endpoint and timeout have defaults.
func NewBlob(cfg *configtypes.BlobStoreConfig, logger *zap.Logger) (*Blob, error) {
	if cfg == nil {
		return nil, fmt.Errorf("blob config is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("blob token is required")
	}
	if cfg.PublicBase == "" {
		return nil, fmt.Errorf("blob public base is required")
	}

	timeout := cfg.Timeout.ToDuration()
	if timeout <= 0 {
		timeout = defaultBlobTimeout
	}

	return &Blob{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		token:      cfg.Token,
		publicBase: strings.TrimRight(cfg.PublicBase, "/"),
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

func (b *Blob) Save(ctx context.Context, report *types.Report) (string, string, error) {
	payload, err := json.Marshal(report)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode report: %w", err)
	}

	path := NewPath()
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, b.endpoint+"/"+path, bytes.NewReader(payload))
	if err != nil {
		return "", "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("snapshot upload failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", fmt.Errorf("snapshot upload failed: unexpected status %d", resp.StatusCode)
	}

	absoluteURL := b.publicBase + "/" + path
	b.logger.Info("Snapshot stored",
		zap.String("path", path),
		zap.Int("size_bytes", len(payload)))

	return path, absoluteURL, nil
}

func (b *Blob) Load(ctx context.Context, pathOrURL string) (*types.Report, error) {
	target := pathOrURL
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = b.publicBase + "/" + strings.TrimLeft(pathOrURL, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, target)
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("snapshot fetch failed: unexpected status %d for %s", resp.StatusCode, target)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot body: %w", err)
	}

	var report types.Report
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	b.logger.Debug("Snapshot loaded",
		zap.String("url", target),
		zap.Int("size_bytes", len(body)))

	return &report, nil
}

func (b *Blob) LoadByID(ctx context.Context, id string) (*types.Report, error) {
	return loadByID(ctx, b, id)
}
