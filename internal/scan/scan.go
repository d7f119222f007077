// Package scan pages through the history feed until the target date window
// is covered, collecting the in-window items.
package scan

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/watchlog/internal/dates"
	"github.com/sells-group/watchlog/internal/feed"
	"github.com/sells-group/watchlog/internal/identity"
	"github.com/sells-group/watchlog/internal/metrics"
	"github.com/sells-group/watchlog/internal/model"
	"github.com/sells-group/watchlog/internal/resilience"
)

var (
	// ErrMaxIterations is returned when the iteration ceiling is hit before
	// the window start was reached.
	ErrMaxIterations = errors.New("scan: max iterations exceeded")
	// ErrNotSignedIn is returned when the source never reports a signed-in session.
	ErrNotSignedIn = errors.New("scan: not signed in")
)

// Abort reasons.
const (
	ReasonMaxIterations = "max_iterations_exceeded"
	ReasonNotSignedIn   = "not_signed_in"
	ReasonSourceError   = "source_error"
)

// State is the scanner's terminal or in-progress state.
type State int

const (
	StateScanning State = iota
	StateReachedEnd
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateReachedEnd:
		return "reached_end"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Config controls pacing and the iteration ceiling.
type Config struct {
	MaxIterations int
	// EmptyRetry is the wait after a batch with no sections.
	EmptyRetry time.Duration
	// StallWait is the wait after LoadMore rendered nothing new.
	StallWait time.Duration

	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// DefaultConfig returns the production scan settings.
func DefaultConfig() Config {
	return Config{
		MaxIterations: 100,
		EmptyRetry:    2 * time.Second,
		StallWait:     2 * time.Second,
	}
}

// Result is the outcome of one scan.
type Result struct {
	Items           []model.HistoryItem
	State           State
	Reason          string
	Iterations      int
	SkippedSections int
	RejectedShorts  int
}

// Scanner runs the boundary scan.
type Scanner struct {
	cfg     Config
	metrics *metrics.Recorder
}

// New creates a Scanner. Zero-valued fields fall back to DefaultConfig.
func New(cfg Config, rec *metrics.Recorder) *Scanner {
	def := DefaultConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.Sleep == nil {
		cfg.Sleep = resilience.Sleep
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Scanner{cfg: cfg, metrics: rec}
}

// Scan pulls sections from src until a section older than window.Start is
// seen, the feed ends, or the iteration ceiling is hit. Sections with
// unresolvable labels are skipped, sections newer than window.End are
// passed over, and short-form links are rejected. Hitting the ceiling is
// fatal and returns ErrMaxIterations alongside the partial result.
func (s *Scanner) Scan(ctx context.Context, src feed.Source, window model.Window) (Result, error) {
	res := Result{State: StateScanning}

	if auth, ok := src.(feed.Authenticator); ok {
		if err := auth.EnsureSignedIn(ctx); err != nil {
			res.State, res.Reason = StateAborted, ReasonNotSignedIn
			return res, eris.Wrap(err, "scan: sign-in")
		}
	}

	ref := model.CivilDate(s.cfg.Now())
	seen := make(map[string]bool)
	skipped := make(map[string]bool)
	log := zap.L().With(zap.Stringer("window", window))

	defer func() {
		s.metrics.ItemsScanned(len(res.Items))
		s.metrics.SectionsSkipped(res.SkippedSections)
		s.metrics.LinkRejected(model.ShapeShorts.String(), res.RejectedShorts)
	}()

	for res.Iterations < s.cfg.MaxIterations {
		res.Iterations++

		sections, err := src.NextBatch(ctx)
		if errors.Is(err, feed.ErrEndOfFeed) {
			log.Info("scan: feed ended before window start", zap.Int("iterations", res.Iterations))
			res.State = StateReachedEnd
			return res, nil
		}
		if err != nil {
			res.State, res.Reason = StateAborted, ReasonSourceError
			return res, eris.Wrap(err, "scan: next batch")
		}

		if len(sections) == 0 {
			log.Debug("scan: no sections rendered, waiting", zap.Int("iteration", res.Iterations))
			if err := s.cfg.Sleep(ctx, s.cfg.EmptyRetry); err != nil {
				return s.cancelled(res, err)
			}
			continue
		}

		if s.collect(sections, window, ref, seen, skipped, &res) {
			log.Info("scan: reached window start",
				zap.Int("iterations", res.Iterations),
				zap.Int("items", len(res.Items)),
			)
			res.State = StateReachedEnd
			return res, nil
		}

		grew, err := src.LoadMore(ctx)
		if errors.Is(err, feed.ErrEndOfFeed) {
			log.Info("scan: feed ended before window start", zap.Int("iterations", res.Iterations))
			res.State = StateReachedEnd
			return res, nil
		}
		if err != nil {
			res.State, res.Reason = StateAborted, ReasonSourceError
			return res, eris.Wrap(err, "scan: load more")
		}
		if !grew {
			log.Debug("scan: no new content, waiting", zap.Int("iteration", res.Iterations))
			if err := s.cfg.Sleep(ctx, s.cfg.StallWait); err != nil {
				return s.cancelled(res, err)
			}
		}
	}

	res.State, res.Reason = StateAborted, ReasonMaxIterations
	log.Error("scan: iteration ceiling reached",
		zap.Int("max_iterations", s.cfg.MaxIterations),
		zap.Int("items", len(res.Items)),
	)
	return res, eris.Wrapf(ErrMaxIterations, "scan: gave up after %d iterations", res.Iterations)
}

// collect appends in-window items from sections and reports whether a
// section older than the window was reached.
func (s *Scanner) collect(sections []feed.Section, window model.Window, ref time.Time, seen, skipped map[string]bool, res *Result) bool {
	for _, sec := range sections {
		date, ok := dates.Resolve(sec.Label, ref)
		if !ok {
			if !skipped[sec.Label] {
				skipped[sec.Label] = true
				res.SkippedSections++
				zap.L().Warn("scan: section skipped, unrecognized date label", zap.String("label", sec.Label))
			}
			continue
		}
		if date.After(window.End) {
			continue
		}
		if date.Before(window.Start) {
			return true
		}

		for _, it := range sec.Items {
			if seen[it.Link] {
				continue
			}
			seen[it.Link] = true
			if identity.IsShortForm(it.Link) {
				res.RejectedShorts++
				continue
			}
			d := date
			res.Items = append(res.Items, model.HistoryItem{Title: it.Title, Link: it.Link, SectionDate: &d})
		}
	}
	return false
}

func (s *Scanner) cancelled(res Result, err error) (Result, error) {
	res.State, res.Reason = StateAborted, "cancelled"
	return res, eris.Wrap(err, "scan: cancelled")
}
