package store

import (
	"context"
	"time"

	"github.com/artpar/safebite-deploy/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store records every successful deployment run. The manifest file only
// holds the latest run per network; the store keeps all of them.
type Store interface {
	RecordRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, network string, opts ListOptions) ([]Run, error)

	// Lifecycle
	Close() error
}

// =============================================================================
// Types
// =============================================================================

// Run is one successful deployment run.
type Run struct {
	ID           string
	Manifest     *domain.DeploymentManifest
	ManifestPath string
	RecordedAt   time.Time
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  20,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
