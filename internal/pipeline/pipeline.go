// Package pipeline sequences the history stages. Each stage reads its
// predecessor's artifact from the data directory and writes its own, so any
// stage can be re-run on its own.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/watchlog/internal/artifact"
	"github.com/sells-group/watchlog/internal/classify"
	"github.com/sells-group/watchlog/internal/enrich"
	"github.com/sells-group/watchlog/internal/feed"
	"github.com/sells-group/watchlog/internal/metrics"
	"github.com/sells-group/watchlog/internal/model"
	"github.com/sells-group/watchlog/internal/scan"
	"github.com/sells-group/watchlog/internal/store"
)

// Config holds the per-invocation settings.
type Config struct {
	DataDir string
	Window  model.Window
	// SampleTitles caps the titles per channel passed to the classifier.
	SampleTitles int
}

// Deps wires the stage collaborators. The source, enricher, and classifier
// are built on first use so a single-stage run needs only its own
// credentials. Ledger and Metrics may be nil.
type Deps struct {
	Ledger  store.Store
	Metrics *metrics.Recorder
	Scanner *scan.Scanner

	OpenSource    func(ctx context.Context) (feed.Source, func(), error)
	NewEnricher   func(ctx context.Context) (*enrich.Batcher, error)
	NewClassifier func(ctx context.Context) (*classify.Cache, error)
}

// Orchestrator runs stages and records them in the ledger and manifest.
type Orchestrator struct {
	cfg      Config
	deps     Deps
	manifest *artifact.Manifest
}

// New loads the data directory's manifest and returns an Orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if deps.Scanner == nil {
		deps.Scanner = scan.New(scan.DefaultConfig(), deps.Metrics)
	}

	m, err := artifact.LoadManifest(filepath.Join(cfg.DataDir, artifact.ManifestFile))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load manifest")
	}
	return &Orchestrator{cfg: cfg, deps: deps, manifest: m}, nil
}

// Manifest returns the data directory manifest.
func (o *Orchestrator) Manifest() *artifact.Manifest {
	return o.manifest
}

// RunStage runs a single stage.
func (o *Orchestrator) RunStage(ctx context.Context, name string) (*model.Run, error) {
	return o.Run(ctx, name, name)
}

// Run executes stages from..to in order. The first failing stage halts the
// sequence and is returned as a *StageError; artifacts written by earlier
// stages are left in place.
func (o *Orchestrator) Run(ctx context.Context, from, to string) (*model.Run, error) {
	stages, err := Range(from, to)
	if err != nil {
		return nil, err
	}

	run, err := o.startRun(ctx, stages)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("run_id", run.ID), zap.Stringer("window", o.cfg.Window))
	log.Info("pipeline: starting run", zap.Strings("stages", stages))

	for _, name := range stages {
		res, err := o.track(ctx, run.ID, name, o.stageFunc(name))
		run.Results = append(run.Results, *res)
		if err != nil {
			stageErr := &StageError{Stage: name, Err: err}
			o.finishRun(ctx, run, model.RunStatusFailed, stageErr.Error())
			return run, stageErr
		}
	}

	o.finishRun(ctx, run, model.RunStatusComplete, "")
	log.Info("pipeline: run complete", zap.Int("stages", len(stages)))
	return run, nil
}

func (o *Orchestrator) stageFunc(name string) func(context.Context) (*model.StageResult, error) {
	switch name {
	case StageScrape:
		return o.scrape
	case StageExtract:
		return o.extract
	case StageDedup:
		return o.dedup
	case StageEnrich:
		return o.enrich
	default:
		return o.classify
	}
}

func (o *Orchestrator) startRun(ctx context.Context, stages []string) (*model.Run, error) {
	if o.deps.Ledger == nil {
		now := time.Now().UTC()
		return &model.Run{
			ID:        uuid.New().String(),
			Status:    model.RunStatusRunning,
			Stages:    stages,
			Window:    o.cfg.Window,
			CreatedAt: now,
			UpdatedAt: now,
		}, nil
	}
	run, err := o.deps.Ledger.CreateRun(ctx, stages, o.cfg.Window)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	return run, nil
}

func (o *Orchestrator) finishRun(ctx context.Context, run *model.Run, status model.RunStatus, errMsg string) {
	run.Status = status
	run.Error = errMsg
	run.UpdatedAt = time.Now().UTC()
	if o.deps.Ledger == nil {
		return
	}
	// The ledger write outlives a cancelled run context.
	if err := o.deps.Ledger.UpdateRunStatus(context.WithoutCancel(ctx), run.ID, status, errMsg); err != nil {
		zap.L().Warn("pipeline: failed to update run status", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// track runs fn as stage name and records its outcome in the ledger,
// metrics, and, on success, the manifest.
func (o *Orchestrator) track(ctx context.Context, runID, name string, fn func(context.Context) (*model.StageResult, error)) (*model.StageResult, error) {
	log := zap.L().With(zap.String("run_id", runID), zap.String("stage", name))

	var stage *model.RunStage
	if o.deps.Ledger != nil {
		var err error
		stage, err = o.deps.Ledger.CreateStage(ctx, runID, name)
		if err != nil {
			log.Warn("pipeline: failed to create stage", zap.Error(err))
		}
	}

	start := time.Now()
	res, fnErr := fn(ctx)
	duration := time.Since(start).Milliseconds()

	if res == nil {
		res = &model.StageResult{}
	}
	res.Name = name
	res.Duration = duration

	if fnErr != nil {
		res.Status = model.StageStatusFailed
		res.Error = fnErr.Error()
		log.Error("pipeline: stage failed", zap.Int64("duration_ms", duration), zap.Error(fnErr))
	} else {
		res.Status = model.StageStatusComplete
		log.Info("pipeline: stage complete",
			zap.Int64("duration_ms", duration),
			zap.Int("rows", res.Rows),
			zap.Int("skipped", res.Skipped),
		)
		o.record(runID, name, res)
	}

	o.deps.Metrics.StageRun(name, string(res.Status))
	if stage != nil {
		if err := o.deps.Ledger.CompleteStage(context.WithoutCancel(ctx), stage.ID, res); err != nil {
			log.Warn("pipeline: failed to complete stage", zap.Error(err))
		}
	}
	return res, fnErr
}

func (o *Orchestrator) record(runID, name string, res *model.StageResult) {
	o.manifest.Record(name, artifact.StageEntry{
		Artifact:    Output(name),
		Rows:        res.Rows,
		Skipped:     res.Skipped,
		CompletedAt: time.Now().UTC(),
		RunID:       runID,
		Window:      o.cfg.Window.String(),
	})
	if err := o.manifest.Save(); err != nil {
		zap.L().Warn("pipeline: failed to save manifest", zap.String("stage", name), zap.Error(err))
	}
}

func (o *Orchestrator) path(stage string) string {
	return filepath.Join(o.cfg.DataDir, Output(stage))
}

// readInput loads the artifact written by stage's upstream.
func readInput[T any](o *Orchestrator, stage string) ([]T, error) {
	up := Upstream(stage)
	path := o.path(up)
	rows, err := artifact.Read[T](path)
	if artifact.IsMissing(err) {
		return nil, &MissingArtifactError{Stage: stage, Path: path, Upstream: up}
	}
	return rows, err
}
