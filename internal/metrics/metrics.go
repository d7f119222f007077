// Package metrics counts pipeline activity on a private Prometheus registry.
// The tool runs as a batch job, so counters are exported by writing the
// registry to a node_exporter textfile rather than serving /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
)

const namespace = "watchlog"

// Recorder holds the pipeline counters. A nil *Recorder is valid and
// discards every observation.
type Recorder struct {
	registry *prometheus.Registry

	itemsScanned        prometheus.Counter
	sectionsSkipped     prometheus.Counter
	linksRejected       *prometheus.CounterVec
	duplicatesCollapsed prometheus.Counter
	lookupBatches       *prometheus.CounterVec
	classifyCalls       *prometheus.CounterVec
	cacheHits           prometheus.Counter
	stageRuns           *prometheus.CounterVec
}

// New creates a Recorder with all counters registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		itemsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scan", Name: "items_total",
			Help: "History items collected inside the window.",
		}),
		sectionsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scan", Name: "sections_skipped_total",
			Help: "Sections whose date label could not be resolved.",
		}),
		linksRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "links_rejected_total",
			Help: "Links dropped before deduplication, by shape.",
		}, []string{"shape"}),
		duplicatesCollapsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "dedup", Name: "duplicates_total",
			Help: "Offers collapsed into an existing identity.",
		}),
		lookupBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "enrich", Name: "batches_total",
			Help: "Metadata lookup batches, by result.",
		}, []string{"result"}),
		classifyCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "classify", Name: "calls_total",
			Help: "Classifier calls, by outcome.",
		}, []string{"outcome"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "classify", Name: "cache_hits_total",
			Help: "Channels answered from the classification cache.",
		}),
		stageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "stage_runs_total",
			Help: "Stage executions, by stage and status.",
		}, []string{"stage", "status"}),
	}
	r.registry.MustRegister(
		r.itemsScanned,
		r.sectionsSkipped,
		r.linksRejected,
		r.duplicatesCollapsed,
		r.lookupBatches,
		r.classifyCalls,
		r.cacheHits,
		r.stageRuns,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ItemsScanned(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.itemsScanned.Add(float64(n))
}

func (r *Recorder) SectionsSkipped(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.sectionsSkipped.Add(float64(n))
}

// LinkRejected counts a link dropped for the given shape ("shorts", "unknown").
func (r *Recorder) LinkRejected(shape string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.linksRejected.WithLabelValues(shape).Add(float64(n))
}

func (r *Recorder) DuplicatesCollapsed(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.duplicatesCollapsed.Add(float64(n))
}

// LookupBatch counts one lookup batch with result "ok" or "failed".
func (r *Recorder) LookupBatch(result string) {
	if r == nil {
		return
	}
	r.lookupBatches.WithLabelValues(result).Inc()
}

// ClassifyCall counts one classifier call with its outcome
// ("ok", "malformed", "rate_limited", "quota", "error").
func (r *Recorder) ClassifyCall(outcome string) {
	if r == nil {
		return
	}
	r.classifyCalls.WithLabelValues(outcome).Inc()
}

func (r *Recorder) CacheHit() {
	if r == nil {
		return
	}
	r.cacheHits.Inc()
}

// StageRun counts a finished stage.
func (r *Recorder) StageRun(stage, status string) {
	if r == nil {
		return
	}
	r.stageRuns.WithLabelValues(stage, status).Inc()
}

// WriteTextfile writes the registry in the text exposition format to path,
// atomically, for the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return eris.Wrapf(err, "metrics: write textfile %s", path)
	}
	return nil
}
