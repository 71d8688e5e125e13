package resilience

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// RestartPolicy controls the restart-gated retry used by both lookup phases.
// The per-item flow is: attempt; on a restartable failure, restart the
// session, wait the cooldown, and try once more. Anything else fails the
// item immediately.
type RestartPolicy struct {
	// MaxRestarts bounds how many restart-retry cycles one item gets.
	// Default: 1.
	MaxRestarts int

	// Cooldown is the wait between a successful restart and the retry.
	Cooldown time.Duration

	// Restart closes and reinitializes the collaborator session. A restart
	// failure is terminal for the item.
	Restart func(ctx context.Context) error

	// ShouldRestart overrides the default IsRestartable classification.
	ShouldRestart func(err error) bool

	// OnRestart is called before each restart with the triggering error.
	OnRestart func(attempt int, err error)
}

// RunWithRestart executes fn under the policy and returns its value, the
// last error otherwise.
func RunWithRestart[T any](ctx context.Context, p RestartPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	if p.MaxRestarts <= 0 {
		p.MaxRestarts = 1
	}
	shouldRestart := p.ShouldRestart
	if shouldRestart == nil {
		shouldRestart = IsRestartable
	}

	var zero T
	var lastErr error
	for attempt := 0; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}
		if attempt >= p.MaxRestarts || !shouldRestart(lastErr) {
			return zero, lastErr
		}

		if p.OnRestart != nil {
			p.OnRestart(attempt+1, lastErr)
		}

		if p.Restart != nil {
			if restartErr := p.Restart(ctx); restartErr != nil {
				return zero, eris.Wrapf(restartErr, "resilience: session restart after %v", lastErr)
			}
		}

		if p.Cooldown > 0 {
			timer := time.NewTimer(p.Cooldown)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, lastErr
			case <-timer.C:
			}
		}
	}
}

// RestartLogger returns an OnRestart callback that logs each restart cycle.
func RestartLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("restarting session",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
