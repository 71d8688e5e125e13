package scrape

import (
	"context"

	"github.com/sells-group/recall-cli/internal/model"
)

// PrimarySource is the per-VIN recall lookup collaborator. Sessions are
// stateful and must not be shared across concurrent calls; the orchestrator
// is the sole owner for a run's duration.
type PrimarySource interface {
	Initialize(ctx context.Context) error
	Lookup(ctx context.Context, vin string) ([]model.RecallEntry, error)
	Close() error
}

// RegistrySource resolves recall numbers to internal EA tracking numbers.
// Authenticate may block on a human completing a sign-in and should honor
// its context's deadline.
type RegistrySource interface {
	Initialize(ctx context.Context) error
	CheckAuthenticated(ctx context.Context) (bool, error)
	Authenticate(ctx context.Context) (bool, error)
	Resolve(ctx context.Context, recallNumber string) (model.EaInfo, error)
	Close() error
}

// Progress receives observer-only updates as the phases advance. Emitting is
// fire-and-forget; implementations must never block the pipeline.
type Progress func(percent int, message string)
