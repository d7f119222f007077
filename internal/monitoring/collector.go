// Package monitoring summarizes pipeline health from the run ledger.
package monitoring

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/watchlog/internal/model"
	"github.com/sells-group/watchlog/internal/pipeline"
	"github.com/sells-group/watchlog/internal/store"
)

// maxRuns bounds how many runs one snapshot reads.
const maxRuns = 10000

// StageStats aggregates the recorded outcomes of one stage.
type StageStats struct {
	Stage         string  `json:"stage"`
	Runs          int     `json:"runs"`
	Failed        int     `json:"failed"`
	AvgDurationMs int64   `json:"avg_duration_ms"`
	AvgRows       float64 `json:"avg_rows"`
	Skipped       int     `json:"skipped"`
}

// Snapshot is a point-in-time view of pipeline health.
type Snapshot struct {
	Total    int     `json:"total"`
	Complete int     `json:"complete"`
	Failed   int     `json:"failed"`
	Running  int     `json:"running"`
	FailRate float64 `json:"fail_rate"`

	Stages []StageStats `json:"stages"`

	// LastFailure is the error of the most recent failed run.
	LastFailure string `json:"last_failure,omitempty"`

	Lookback    time.Duration `json:"lookback"`
	CollectedAt time.Time     `json:"collected_at"`
}

// Collector gathers snapshots from the ledger.
type Collector struct {
	store store.Store
	now   func() time.Time
}

// NewCollector creates a Collector over st.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect summarizes runs created within lookback. A non-positive lookback
// includes every run.
func (c *Collector) Collect(ctx context.Context, lookback time.Duration) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{Lookback: lookback, CollectedAt: now}

	runs, err := c.store.ListRuns(ctx, store.RunFilter{Limit: maxRuns})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	cutoff := now.Add(-lookback)
	stages := map[string]*stageAcc{}
	var lastFailure time.Time

	for _, r := range runs {
		if lookback > 0 && r.CreatedAt.Before(cutoff) {
			continue
		}
		snap.Total++
		switch r.Status {
		case model.RunStatusComplete:
			snap.Complete++
		case model.RunStatusFailed:
			snap.Failed++
			if r.CreatedAt.After(lastFailure) {
				lastFailure = r.CreatedAt
				snap.LastFailure = r.Error
			}
		case model.RunStatusRunning:
			snap.Running++
		}

		recorded, err := c.store.ListStages(ctx, r.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "monitoring: list stages for run %s", r.ID)
		}
		for _, st := range recorded {
			acc := stages[st.Name]
			if acc == nil {
				acc = &stageAcc{}
				stages[st.Name] = acc
			}
			acc.add(st)
		}
	}

	if finished := snap.Complete + snap.Failed; finished > 0 {
		snap.FailRate = float64(snap.Failed) / float64(finished)
	}
	snap.Stages = stageStats(stages)
	return snap, nil
}

type stageAcc struct {
	runs, failed, finished, skipped int
	durationMs                      int64
	rows                            int
}

func (a *stageAcc) add(st model.RunStage) {
	a.runs++
	if st.Status == model.StageStatusFailed {
		a.failed++
	}
	if st.Result == nil {
		return
	}
	a.finished++
	a.durationMs += st.Result.Duration
	a.rows += st.Result.Rows
	a.skipped += st.Result.Skipped
}

// stageStats orders stages by pipeline position; unknown names sort last.
func stageStats(accs map[string]*stageAcc) []StageStats {
	out := make([]StageStats, 0, len(accs))
	for name, a := range accs {
		s := StageStats{Stage: name, Runs: a.runs, Failed: a.failed, Skipped: a.skipped}
		if a.finished > 0 {
			s.AvgDurationMs = a.durationMs / int64(a.finished)
			s.AvgRows = float64(a.rows) / float64(a.finished)
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := position(out[i].Stage), position(out[j].Stage)
		if pi != pj {
			return pi < pj
		}
		return out[i].Stage < out[j].Stage
	})
	return out
}

func position(stage string) int {
	if p := slices.Index(pipeline.Stages, stage); p >= 0 {
		return p
	}
	return len(pipeline.Stages)
}
