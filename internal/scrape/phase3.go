package scrape

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/recall-cli/internal/model"
	"github.com/sells-group/recall-cli/internal/recall"
	"github.com/sells-group/recall-cli/internal/resilience"
)

// ErrSessionLost signals that registry authentication could not be
// re-established mid-phase. Already-resolved numbers are preserved; the
// remainder stay unresolved and render downstream as "NONE".
var ErrSessionLost = errors.New("scrape: registry session lost")

// Phase3 resolves each unique recall number against the registry, exactly
// once per number per run. Authentication is a precondition; when it cannot
// be established the whole phase is skipped and the run degrades rather
// than fails.
type Phase3 struct {
	Source   RegistrySource
	Cfg      Config
	Progress Progress

	PercentStart int
	PercentEnd   int
}

// Run resolves the cache's numbers. skipped=true means authentication never
// came up and nothing was attempted. ErrSessionLost means the phase stopped
// partway; any other error is context cancellation.
func (p *Phase3) Run(ctx context.Context, cache *recall.Cache) (skipped bool, err error) {
	log := zap.L().Named("phase3")

	numbers := cache.Numbers()
	if len(numbers) == 0 {
		return false, nil
	}

	if err := p.Source.Initialize(ctx); err != nil {
		log.Warn("registry init failed, skipping EA resolution", zap.Error(err))
		return true, nil
	}
	defer func() {
		if cerr := p.Source.Close(); cerr != nil {
			log.Warn("close registry source", zap.Error(cerr))
		}
	}()

	ok, err := p.ensureAuth(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		log.Warn("registry authentication not established, skipping EA resolution")
		return true, nil
	}

	limiter := pacer(p.Cfg.Pacing)

	for i, num := range numbers {
		if err := limiter.Wait(ctx); err != nil {
			return false, eris.Wrap(err, "phase3: cancelled")
		}

		// Same recycle cadence as Phase 1, but a restart here can silently
		// drop the signed-in session; re-check before continuing.
		if i > 0 && p.Cfg.RestartEvery > 0 && i%p.Cfg.RestartEvery == 0 {
			if err := p.restartAndRecheck(ctx); err != nil {
				if errors.Is(err, ErrSessionLost) {
					log.Warn("authentication lost after recycle, stopping",
						zap.Int("resolved", i), zap.Int("remaining", len(numbers)-i))
					return false, ErrSessionLost
				}
				log.Warn("proactive restart failed, reusing session",
					zap.Int("call_index", i), zap.Error(err))
			}
		}

		info, err := resilience.RunWithRestart(ctx, resilience.RestartPolicy{
			MaxRestarts: 1,
			Cooldown:    p.Cfg.RetryCooldown,
			Restart:     p.restartAndRecheck,
			OnRestart:   resilience.RestartLogger("registry", "resolve"),
		}, func(ctx context.Context) (model.EaInfo, error) {
			return resilience.CallWithDeadline(ctx, p.Cfg.CallTimeout, func(ctx context.Context) (model.EaInfo, error) {
				return p.Source.Resolve(ctx, num)
			})
		})

		switch {
		case err == nil:
			cache.Resolve(num, info)
		case errors.Is(err, ErrSessionLost):
			cache.Resolve(num, model.EaInfo{Number: num, Exists: false, Error: err.Error()})
			log.Warn("authentication lost mid-phase, stopping",
				zap.Int("resolved", i+1), zap.Int("remaining", len(numbers)-i-1))
			return false, ErrSessionLost
		default:
			cache.Resolve(num, model.EaInfo{Number: num, Exists: false, Error: err.Error()})
			log.Warn("ea resolution failed", zap.String("recall", num), zap.Error(err))
		}

		p.emit(i+1, len(numbers), num, err)

		if ctx.Err() != nil {
			return false, eris.Wrap(ctx.Err(), "phase3: cancelled")
		}
	}

	return false, nil
}

// ensureAuth checks for an existing session and otherwise waits, bounded,
// for the manual sign-in to complete.
func (p *Phase3) ensureAuth(ctx context.Context) (bool, error) {
	authed, err := p.Source.CheckAuthenticated(ctx)
	if err != nil {
		zap.L().Named("phase3").Warn("auth check failed", zap.Error(err))
		return false, nil
	}
	if authed {
		return true, nil
	}

	ok, err := resilience.CallWithDeadline(ctx, p.Cfg.AuthWait, func(ctx context.Context) (bool, error) {
		return p.Source.Authenticate(ctx)
	})
	if err != nil {
		if ctx.Err() != nil {
			return false, eris.Wrap(ctx.Err(), "phase3: cancelled")
		}
		zap.L().Named("phase3").Warn("manual authentication did not complete", zap.Error(err))
		return false, nil
	}
	return ok, nil
}

// restartAndRecheck recycles the session and verifies the signed-in state
// survived. Returns ErrSessionLost when it did not.
func (p *Phase3) restartAndRecheck(ctx context.Context) error {
	if err := p.Source.Close(); err != nil {
		zap.L().Debug("phase3: close before restart", zap.Error(err))
	}
	if err := p.Source.Initialize(ctx); err != nil {
		return eris.Wrap(err, "phase3: reinitialize")
	}
	authed, err := p.Source.CheckAuthenticated(ctx)
	if err != nil {
		return eris.Wrap(err, "phase3: auth recheck")
	}
	if !authed {
		return ErrSessionLost
	}
	return nil
}

func (p *Phase3) emit(done, total int, num string, err error) {
	if p.Progress == nil {
		return
	}
	msg := fmt.Sprintf("Resolved %s (%d of %d)", num, done, total)
	if err != nil {
		msg = fmt.Sprintf("EA lookup failed for %s (%d of %d): %v", num, done, total, err)
	}
	p.Progress(scale(done, total, p.PercentStart, p.PercentEnd), msg)
}
