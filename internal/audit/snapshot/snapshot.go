// Package snapshot persists finished reports so an audit can be shared
// by URL long after its cache entry expires.
package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sitepulse/engine/pkg/types"
)

// ErrNotFound reports that no snapshot exists under the requested path.
// Use errors.Is(err, ErrNotFound) to distinguish missing snapshots from
// transport failures.
var ErrNotFound = errors.New("snapshot not found")

// Store persists reports under random public paths.
type Store interface {
	// Save persists the report, returning the relative storage path and
	// the absolute URL the payload can later be fetched from.
	Save(ctx context.Context, report *types.Report) (path string, absoluteURL string, err error)
	// Load fetches a snapshot by relative path or absolute URL.
	Load(ctx context.Context, pathOrURL string) (*types.Report, error)
	// LoadByID resolves a legacy bare id: `<id>.json` first, then `<id>`.
	LoadByID(ctx context.Context, id string) (*types.Report, error)
}

// NewPath generates the random storage path for a new snapshot.
func NewPath() string {
	return "audits/" + uuid.NewString() + ".json"
}

// loadByID implements the legacy id fallback shared by the backends.
func loadByID(ctx context.Context, s Store, id string) (*types.Report, error) {
	report, err := s.Load(ctx, id+".json")
	if err == nil {
		return report, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	report, err = s.Load(ctx, id)
	if err == nil {
		return report, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: tried %s.json and %s", ErrNotFound, id, id)
}
