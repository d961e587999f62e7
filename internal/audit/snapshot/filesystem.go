package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/sitepulse/engine/internal/common/configtypes"
	"github.com/sitepulse/engine/pkg/types"
)

// Filesystem stores snapshots under a base directory, for single-host
// deployments that run without an external blob service. Snapshot URLs
// use the file:// scheme.
type Filesystem struct {
	basePath    string
	compression string
	logger      *zap.Logger
}

// NewFilesystem creates a filesystem store rooted at cfg.BasePath,
// creating the directory if needed.
func NewFilesystem(cfg *configtypes.FilesystemStoreConfig, logger *zap.Logger) (*Filesystem, error) {
	if cfg == nil {
		return nil, fmt.Errorf("filesystem config is required")
	}
	if cfg.BasePath == "" {
		return nil, fmt.Errorf("filesystem base path is required")
	}

	base, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base path: %w", err)
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	return &Filesystem{
		basePath:    base,
		compression: cfg.Compression,
		logger:      logger,
	}, nil
}

func (f *Filesystem) Save(ctx context.Context, report *types.Report) (string, string, error) {
	payload, err := json.Marshal(report)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode report: %w", err)
	}

	stored, ext, err := compress(payload, f.compression)
	if err != nil {
		return "", "", err
	}

	path := NewPath()
	fullPath, err := f.absolutePath(path)
	if err != nil {
		return "", "", err
	}
	fullPath += ext

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", "", fmt.Errorf("failed to create directory: %w", err)
	}

	// Atomic write: temp file in the target directory, then rename.
	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, stored, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return "", "", fmt.Errorf("failed to rename temp file: %w", err)
	}

	f.logger.Info("Snapshot stored",
		zap.String("path", path),
		zap.String("file_path", fullPath),
		zap.Int("size_bytes", len(payload)),
		zap.Int("disk_bytes", len(stored)))

	return path, "file://" + fullPath, nil
}

func (f *Filesystem) Load(ctx context.Context, pathOrURL string) (*types.Report, error) {
	path := strings.TrimPrefix(pathOrURL, "file://")
	if strings.HasPrefix(path, f.basePath) {
		path = strings.TrimPrefix(path, f.basePath)
	}

	fullPath, err := f.absolutePath(strings.TrimLeft(path, "/"))
	if err != nil {
		return nil, err
	}

	// The stored file may carry a compression extension.
	for _, candidate := range []string{fullPath, fullPath + extSnappy, fullPath + extLZ4} {
		content, err := os.ReadFile(candidate)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read snapshot: %w", err)
		}

		decompressed, err := decompress(content, candidate)
		if err != nil {
			return nil, err
		}

		var report types.Report
		if err := json.Unmarshal(decompressed, &report); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot: %w", err)
		}

		f.logger.Debug("Snapshot loaded",
			zap.String("file_path", candidate),
			zap.Int("size_bytes", len(decompressed)))

		return &report, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, pathOrURL)
}

func (f *Filesystem) LoadByID(ctx context.Context, id string) (*types.Report, error) {
	return loadByID(ctx, f, id)
}

// absolutePath resolves a relative snapshot path under the base directory
// and rejects paths that escape it.
func (f *Filesystem) absolutePath(relative string) (string, error) {
	cleaned := filepath.Clean(filepath.Join(f.basePath, relative))
	if cleaned != f.basePath && !strings.HasPrefix(cleaned, f.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes snapshot directory: %s", relative)
	}
	return cleaned, nil
}
