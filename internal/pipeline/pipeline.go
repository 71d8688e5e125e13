// Package pipeline wires the full scan together: spreadsheet in, report
// out, with run state persisted and progress broadcast along the way.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/recall-cli/internal/config"
	"github.com/sells-group/recall-cli/internal/extract"
	"github.com/sells-group/recall-cli/internal/fetcher"
	"github.com/sells-group/recall-cli/internal/model"
	"github.com/sells-group/recall-cli/internal/progress"
	"github.com/sells-group/recall-cli/internal/recall"
	"github.com/sells-group/recall-cli/internal/report"
	"github.com/sells-group/recall-cli/internal/scrape"
	"github.com/sells-group/recall-cli/internal/store"
)

// Progress percent allocation across the run. Phase boundaries are fixed so
// the bar never moves backwards between stages.
const (
	pctExtractEnd = 5
	pctPhase1End  = 60
	pctDedupEnd   = 65
	pctPhase3End  = 95
)

// Pipeline orchestrates one scan run end to end.
type Pipeline struct {
	cfg      *config.Config
	store    store.Store
	primary  scrape.PrimarySource
	registry scrape.RegistrySource
	builder  *report.Builder
}

// New creates a Pipeline with all dependencies.
func New(cfg *config.Config, st store.Store, primary scrape.PrimarySource, registry scrape.RegistrySource) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		primary:  primary,
		registry: registry,
		builder:  report.NewBuilder(),
	}
}

// NewRun persists a queued run for the given source file and builds its
// progress broker, attaching the webhook sink when one is configured.
func (p *Pipeline) NewRun(ctx context.Context, sourceFile string) (*model.Run, *progress.Broker, error) {
	run, err := p.store.CreateRun(ctx, sourceFile)
	if err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: create run")
	}

	var sinks []progress.Sink
	if p.cfg.Progress.WebhookURL != "" {
		sinks = append(sinks, progress.NewWebhookSink(p.cfg.Progress.WebhookURL))
	}
	return run, progress.NewBroker(run.ID, sinks...), nil
}

// Execute runs the scan for an already-created run: read, extract, Phase 1,
// dedup, Phase 3, fan-out, report. A single VIN's or recall's failure never
// aborts the run; only unreadable input or a bad column letter is fatal.
func (p *Pipeline) Execute(ctx context.Context, run *model.Run, broker *progress.Broker, sourcePath string) (*model.RunResult, error) {
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("source", sourcePath))
	log.Info("pipeline: starting scan")

	start := time.Now()
	result := &model.RunResult{}

	setStatus := func(status model.RunStatus) {
		if err := p.store.UpdateRunStatus(ctx, run.ID, status); err != nil {
			log.Warn("pipeline: update status", zap.Error(err))
		}
	}
	fail := func(err error) (*model.RunResult, error) {
		result.Error = err.Error()
		result.DurationMs = time.Since(start).Milliseconds()
		if uerr := p.store.UpdateRunResult(ctx, run.ID, model.RunStatusFailed, result); uerr != nil {
			log.Warn("pipeline: persist failed run", zap.Error(uerr))
		}
		broker.Error(err.Error())
		log.Error("pipeline: run failed", zap.Error(err))
		return result, err
	}
	finish := func(message string) (*model.RunResult, error) {
		result.DurationMs = time.Since(start).Milliseconds()
		if err := p.store.UpdateRunResult(ctx, run.ID, model.RunStatusComplete, result); err != nil {
			log.Warn("pipeline: persist run result", zap.Error(err))
		}
		broker.Complete(message, result)
		log.Info("pipeline: run complete",
			zap.Int("vins", result.VINs),
			zap.Int("unique_recalls", result.UniqueRecalls),
			zap.Int64("duration_ms", result.DurationMs),
		)
		return result, nil
	}

	// Extraction.
	setStatus(model.RunStatusExtracting)
	broker.Progress(0, "reading spreadsheet")

	header, rows, err := fetcher.ReadSheet(sourcePath, fetcher.Options{SheetName: p.cfg.Scan.SheetName})
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: read spreadsheet"))
	}

	ext, err := extract.Extract(header, rows, p.cfg.Scan.VINColumn)
	if err != nil {
		return fail(err)
	}
	result.VINColumn = ext.Column
	result.VINs = len(ext.Records)
	result.InvalidRows = len(ext.Invalid)

	broker.Progress(pctExtractEnd, fmt.Sprintf("extracted %d VINs (%d invalid rows)", len(ext.Records), len(ext.Invalid)))

	// Zero VINs is a terminal success: report which columns the sheet
	// actually had so the caller can self-diagnose.
	if len(ext.Records) == 0 {
		setStatus(model.RunStatusReporting)
		if path, rerr := p.saveReport(nil, ext.Invalid); rerr == nil {
			result.ReportPath = path
		} else {
			log.Warn("pipeline: save empty report", zap.Error(rerr))
		}
		return finish(fmt.Sprintf("no VINs found; available columns: %s", strings.Join(ext.Available, ", ")))
	}

	// Phase 1: per-VIN primary lookups.
	setStatus(model.RunStatusScanning)
	phase1 := &scrape.Phase1{
		Source:       p.primary,
		Cfg:          p.scanConfig(p.cfg.Scan.RestartEveryVINs),
		Progress:     broker.Progress,
		PercentStart: pctExtractEnd,
		PercentEnd:   pctPhase1End,
	}
	results, err := phase1.Run(ctx, ext.Records)
	if err != nil {
		return fail(err)
	}
	for _, r := range results {
		if r.Primary.Success {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	// Dedup.
	cache := recall.Build(results)
	result.UniqueRecalls = len(cache.Numbers())
	broker.Progress(pctDedupEnd, fmt.Sprintf("%d unique recall numbers across %d VINs", result.UniqueRecalls, len(ext.Records)))

	// Phase 3: per-number EA resolution. Losing the session partway keeps
	// what was already resolved; never-authenticated degrades to skipped.
	setStatus(model.RunStatusResolving)
	phase3 := &scrape.Phase3{
		Source:       p.registry,
		Cfg:          p.scanConfig(p.cfg.Scan.RestartEveryResolves),
		Progress:     broker.Progress,
		PercentStart: pctDedupEnd,
		PercentEnd:   pctPhase3End,
	}
	skipped, err := phase3.Run(ctx, cache)
	if err != nil && !errors.Is(err, scrape.ErrSessionLost) {
		return fail(err)
	}
	result.EASkipped = skipped
	result.ResolvedEAs = cache.Apply()

	// Report.
	setStatus(model.RunStatusReporting)
	broker.Progress(pctPhase3End, "building report")

	path, err := p.saveReport(results, ext.Invalid)
	if err != nil {
		return fail(err)
	}
	result.ReportPath = path

	return finish(fmt.Sprintf("report written to %s", path))
}

func (p *Pipeline) saveReport(results []*model.VinScrapeResult, invalid []model.InvalidRow) (string, error) {
	f, err := p.builder.Build(results, invalid)
	if err != nil {
		return "", err
	}
	return p.builder.Save(p.cfg.Scan.OutputDir, f)
}

func (p *Pipeline) scanConfig(restartEvery int) scrape.Config {
	return scrape.Config{
		CallTimeout:   p.cfg.Scan.CallTimeout(),
		Pacing:        p.cfg.Scan.Pacing(),
		RetryCooldown: p.cfg.Scan.RetryCooldown(),
		RestartEvery:  restartEvery,
		AuthWait:      p.cfg.Scan.AuthWait(),
	}
}
