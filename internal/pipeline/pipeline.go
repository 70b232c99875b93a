// Package pipeline orchestrates one analysis run: load the fact tables, run
// the five analytics stages in order, write the derived tables and persist
// the run.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pressure-cli/internal/analytics"
	"github.com/sells-group/pressure-cli/internal/export"
	"github.com/sells-group/pressure-cli/internal/metrics"
	"github.com/sells-group/pressure-cli/internal/model"
	"github.com/sells-group/pressure-cli/internal/store"
)

// Loader reads the three category fact tables.
type Loader interface {
	LoadAll(ctx context.Context, locations map[model.Category]string) (model.FactTables, model.RunInputs)
}

// Exporter writes derived tables and the run manifest.
type Exporter interface {
	WriteTables(tables *model.Tables) ([]string, error)
	WriteManifest(m *export.Manifest) (string, error)
}

// Pipeline runs the analytics stages over one batch of fact tables.
type Pipeline struct {
	mu       sync.Mutex // serializes runs sharing the exporter's output dir
	store    store.Store
	engine   *analytics.Engine
	loader   Loader
	exporter Exporter
	metrics  *metrics.Metrics
}

// New creates a Pipeline. A nil store disables run persistence, a nil
// exporter disables file output and nil metrics disables instrumentation.
func New(st store.Store, engine *analytics.Engine, loader Loader, exporter Exporter, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		store:    st,
		engine:   engine,
		loader:   loader,
		exporter: exporter,
		metrics:  m,
	}
}

// Outcome is everything one run produced.
type Outcome struct {
	RunID  string
	Inputs model.RunInputs
	Result model.Result
	Files  []string
}

// Status is the run status derived from the stage outcomes.
func (o *Outcome) Status() model.RunStatus {
	return o.Result.Status()
}

// Run creates and executes a full analysis run. Stage failures are recorded
// on the result and never returned; an error means the run could not be
// created, written or persisted.
func (p *Pipeline) Run(ctx context.Context, locations map[model.Category]string) (*Outcome, error) {
	runID, err := p.Create(ctx, locations)
	if err != nil {
		return nil, err
	}
	return p.Execute(ctx, runID, locations)
}

// Create records a queued run and returns its id. Without a store the id is
// empty.
func (p *Pipeline) Create(ctx context.Context, locations map[model.Category]string) (string, error) {
	if p.store == nil {
		return "", nil
	}
	run, err := p.store.CreateRun(ctx, model.RunInputs{Locations: locations})
	if err != nil {
		return "", eris.Wrap(err, "pipeline: create run")
	}
	return run.ID, nil
}

// Execute runs a created run to completion. Runs on the same Pipeline execute
// one at a time.
func (p *Pipeline) Execute(ctx context.Context, runID string, locations map[model.Category]string) (*Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := &Outcome{RunID: runID}
	log := zap.L().With(zap.String("run_id", out.RunID))
	log.Info("pipeline: starting run")

	setStatus := func(status model.RunStatus) {
		if p.store == nil {
			return
		}
		if err := p.store.UpdateRunStatus(ctx, out.RunID, status); err != nil {
			log.Warn("pipeline: failed to update status", zap.String("status", string(status)), zap.Error(err))
		}
	}
	fail := func(err error) {
		setStatus(model.RunStatusFailed)
		p.metrics.IncrementRun(string(model.RunStatusFailed))
		if p.store == nil {
			return
		}
		if saveErr := p.store.UpdateRunError(ctx, out.RunID, err.Error()); saveErr != nil {
			log.Warn("pipeline: failed to record run error", zap.Error(saveErr))
		}
	}

	// Load.
	setStatus(model.RunStatusLoading)
	facts, inputs := p.loader.LoadAll(ctx, locations)
	out.Inputs = inputs
	for c, n := range inputs.Rows {
		p.metrics.AddFactRows(c.Key(), n)
	}
	if p.store != nil {
		if err := p.store.UpdateRunInputs(ctx, out.RunID, inputs); err != nil {
			log.Warn("pipeline: failed to save inputs", zap.Error(err))
		}
	}

	// Analyze.
	setStatus(model.RunStatusAnalyzing)
	out.Result = p.Analyze(ctx, out.RunID, facts)

	// Write.
	setStatus(model.RunStatusWriting)
	if p.exporter != nil {
		files, err := p.exporter.WriteTables(&out.Result.Tables)
		out.Files = files
		if err != nil {
			fail(err)
			return out, eris.Wrap(err, "pipeline: write tables")
		}
		name, err := p.exporter.WriteManifest(export.NewManifest(out.RunID, inputs, &out.Result, files))
		if err != nil {
			fail(err)
			return out, eris.Wrap(err, "pipeline: write manifest")
		}
		out.Files = append(out.Files, name)
	}

	if p.store != nil {
		if err := p.store.SaveTables(ctx, out.RunID, &out.Result.Tables); err != nil {
			fail(err)
			return out, eris.Wrap(err, "pipeline: save tables")
		}
	}

	status := out.Status()
	setStatus(status)
	p.metrics.IncrementRun(string(status))

	log.Info("pipeline: run finished",
		zap.String("status", string(status)),
		zap.Int("stages", len(out.Result.Stages)),
		zap.Strings("files", out.Files),
	)
	return out, nil
}

// Analyze runs the five stages in order over the loaded fact tables. Each
// stage is isolated: a failure leaves its table nil and downstream stages
// that need it fail with a missing input.
func (p *Pipeline) Analyze(ctx context.Context, runID string, facts model.FactTables) model.Result {
	var res model.Result
	tables := &res.Tables

	stage := func(name string, fn func(context.Context) (tally, error)) {
		res.Stages = append(res.Stages, p.trackStage(ctx, runID, name, fn))
	}

	stage(model.StageComposition, func(ctx context.Context) (tally, error) {
		out, err := p.engine.Composition(ctx, facts)
		if err != nil {
			return tally{}, err
		}
		tables.Composition = out.Rows
		return tallyOf(out), nil
	})

	stage(model.StagePressure, func(ctx context.Context) (tally, error) {
		out, err := p.engine.Pressure(ctx, analytics.MonthlySeries(facts))
		if err != nil {
			return tally{}, err
		}
		tables.Pressure = out.Rows
		return tallyOf(out), nil
	})

	stage(model.StageTypology, func(ctx context.Context) (tally, error) {
		out, err := p.engine.Typology(ctx, analytics.AgeTotals(facts), tables.Pressure, tables.Composition)
		if err != nil {
			return tally{}, err
		}
		tables.Typology = out.Rows
		return tallyOf(out), nil
	})

	stage(model.StageSpikes, func(ctx context.Context) (tally, error) {
		out, err := p.engine.Spikes(ctx, analytics.MonthlySeries(facts))
		if err != nil {
			return tally{}, err
		}
		tables.Spikes = out.Rows
		return tallyOf(out), nil
	})

	stage(model.StageRecommendations, func(ctx context.Context) (tally, error) {
		out, err := p.engine.Recommendations(ctx, tables.Typology, tables.Composition)
		if err != nil {
			return tally{}, err
		}
		tables.Recommendations = out.Rows
		return tallyOf(out), nil
	})

	return res
}

// tally is the row accounting of one stage.
type tally struct {
	rows     int
	excluded int
	warnings int
}

func tallyOf[T any](o *analytics.Output[T]) tally {
	return tally{rows: len(o.Rows), excluded: len(o.Excluded), warnings: len(o.Warnings)}
}

// trackStage runs fn, recovering panics, and records the outcome in the store
// and metrics.
func (p *Pipeline) trackStage(ctx context.Context, runID, name string, fn func(context.Context) (tally, error)) model.StageResult {
	log := zap.L().With(zap.String("run_id", runID), zap.String("stage", name))

	var stageID string
	if p.store != nil && runID != "" {
		id, err := p.store.CreateStage(ctx, runID, name)
		if err != nil {
			log.Warn("pipeline: failed to create stage", zap.Error(err))
		}
		stageID = id
	}

	start := time.Now()
	t, fnErr := guard(ctx, fn)
	elapsed := time.Since(start)

	result := model.StageResult{
		Name:     name,
		Duration: elapsed.Milliseconds(),
		Rows:     t.rows,
		Excluded: t.excluded,
		Warnings: t.warnings,
	}
	if fnErr != nil {
		result.Status = model.StageStatusFailed
		result.Error = fnErr.Error()
		log.Error("pipeline: stage failed",
			zap.Int64("duration_ms", result.Duration),
			zap.Error(fnErr),
		)
	} else {
		result.Status = model.StageStatusComplete
		log.Info("pipeline: stage complete",
			zap.Int64("duration_ms", result.Duration),
			zap.Int("rows", result.Rows),
			zap.Int("excluded", result.Excluded),
			zap.Int("warnings", result.Warnings),
		)
	}

	if stageID != "" {
		if err := p.store.CompleteStage(ctx, stageID, &result); err != nil {
			log.Warn("pipeline: failed to complete stage", zap.Error(err))
		}
	}
	p.metrics.ObserveStage(name, string(result.Status), elapsed, result.Excluded, result.Warnings)
	return result
}

func guard(ctx context.Context, fn func(context.Context) (tally, error)) (t tally, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
