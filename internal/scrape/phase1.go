package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/recall-cli/internal/model"
	"github.com/sells-group/recall-cli/internal/resilience"
)

// Config holds the pacing, timeout and session-hygiene knobs shared by both
// lookup phases.
type Config struct {
	CallTimeout   time.Duration
	Pacing        time.Duration
	RetryCooldown time.Duration
	RestartEvery  int
	AuthWait      time.Duration // Phase 3 only
}

// Phase1 drives the per-VIN lookups against the primary source: strictly
// sequential, one restart-gated retry per VIN, proactive session recycling,
// fixed pacing.
type Phase1 struct {
	Source   PrimarySource
	Cfg      Config
	Progress Progress

	// PercentStart/PercentEnd bound this phase's slice of the run's
	// progress range.
	PercentStart int
	PercentEnd   int
}

// Run looks up every record and returns one VinScrapeResult per input VIN,
// in input order. A VIN's failure is recorded in its result, never
// propagated; the only errors returned are session-initialization failure
// and context cancellation.
func (p *Phase1) Run(ctx context.Context, records []model.VinRecord) ([]*model.VinScrapeResult, error) {
	log := zap.L().Named("phase1")

	if err := p.Source.Initialize(ctx); err != nil {
		return nil, eris.Wrap(err, "phase1: initialize primary source")
	}
	defer func() {
		if err := p.Source.Close(); err != nil {
			log.Warn("close primary source", zap.Error(err))
		}
	}()

	limiter := pacer(p.Cfg.Pacing)

	results := make([]*model.VinScrapeResult, 0, len(records))
	for i, rec := range records {
		res := &model.VinScrapeResult{
			VIN:        rec.VIN,
			Record:     rec,
			RecallToEA: make(map[string]model.EaInfo),
		}
		results = append(results, res)

		if err := limiter.Wait(ctx); err != nil {
			res.Primary = model.PrimaryOutcome{Error: err.Error()}
			return results, eris.Wrap(err, "phase1: cancelled")
		}

		// Session hygiene: recycle on a fixed cadence to bound memory growth
		// in the automation session. A failed recycle keeps the old session.
		if i > 0 && p.Cfg.RestartEvery > 0 && i%p.Cfg.RestartEvery == 0 {
			if err := p.restart(ctx); err != nil {
				log.Warn("proactive restart failed, reusing session",
					zap.Int("vin_index", i), zap.Error(err))
			}
		}

		entries, err := resilience.RunWithRestart(ctx, resilience.RestartPolicy{
			MaxRestarts: 1,
			Cooldown:    p.Cfg.RetryCooldown,
			Restart:     p.restart,
			OnRestart:   resilience.RestartLogger("primary", "lookup"),
		}, func(ctx context.Context) ([]model.RecallEntry, error) {
			return resilience.CallWithDeadline(ctx, p.Cfg.CallTimeout, func(ctx context.Context) ([]model.RecallEntry, error) {
				return p.Source.Lookup(ctx, rec.VIN)
			})
		})

		if err != nil {
			res.Primary = model.PrimaryOutcome{Error: err.Error()}
			log.Warn("vin lookup failed", zap.String("vin", rec.VIN), zap.Error(err))
		} else {
			res.Primary = model.PrimaryOutcome{Success: true, Recalls: entries}
		}

		p.emit(i+1, len(records), rec.VIN, err)

		if ctx.Err() != nil {
			return results, eris.Wrap(ctx.Err(), "phase1: cancelled")
		}
	}

	return results, nil
}

func (p *Phase1) restart(ctx context.Context) error {
	if err := p.Source.Close(); err != nil {
		zap.L().Debug("phase1: close before restart", zap.Error(err))
	}
	return p.Source.Initialize(ctx)
}

func (p *Phase1) emit(done, total int, vin string, err error) {
	if p.Progress == nil {
		return
	}
	msg := fmt.Sprintf("Checked %s (%d of %d)", vin, done, total)
	if err != nil {
		msg = fmt.Sprintf("Lookup failed for %s (%d of %d): %v", vin, done, total, err)
	}
	p.Progress(scale(done, total, p.PercentStart, p.PercentEnd), msg)
}

// pacer builds the fixed-cadence limiter. Burst 1 makes the first call
// immediate and every later call wait out the interval.
func pacer(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// scale maps done/total onto [start, end]. Monotone in done.
func scale(done, total, start, end int) int {
	if total <= 0 {
		return end
	}
	return start + (end-start)*done/total
}
