package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/watchlog/internal/browser"
	"github.com/sells-group/watchlog/internal/classify"
	"github.com/sells-group/watchlog/internal/dates"
	"github.com/sells-group/watchlog/internal/enrich"
	"github.com/sells-group/watchlog/internal/feed"
	"github.com/sells-group/watchlog/internal/model"
	"github.com/sells-group/watchlog/internal/pipeline"
	"github.com/sells-group/watchlog/internal/resilience"
	"github.com/sells-group/watchlog/internal/scan"
	"github.com/sells-group/watchlog/internal/store"
	anthropicpkg "github.com/sells-group/watchlog/pkg/anthropic"
	"github.com/sells-group/watchlog/pkg/youtube"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// initStore opens the run ledger configured in store.driver and migrates it.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = filepath.Join(cfg.Data.Dir, "watchlog.db")
		}
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, eris.Wrapf(err, "create ledger dir %s", dir)
			}
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// window resolves --start/--end against the reference time.
func window() (model.Window, error) {
	return dates.ParseWindow(windowStart, windowEnd, now())
}

// initPipeline builds an Orchestrator over the configured ledger. The
// returned close func releases the ledger.
func initPipeline(ctx context.Context) (*pipeline.Orchestrator, func(), error) {
	w, err := window()
	if err != nil {
		return nil, nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	o, err := pipeline.New(pipeline.Config{
		DataDir:      cfg.Data.Dir,
		Window:       w,
		SampleTitles: cfg.Classify.SampleTitles,
	}, pipeline.Deps{
		Ledger:        st,
		Metrics:       rec,
		Scanner:       scan.New(scanConfig(), rec),
		OpenSource:    openSource,
		NewEnricher:   newEnricher,
		NewClassifier: newClassifier,
	})
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, err
	}
	return o, func() { _ = st.Close() }, nil
}

func scanConfig() scan.Config {
	return scan.Config{
		MaxIterations: cfg.Scan.MaxIterations,
		EmptyRetry:    ms(cfg.Scan.EmptyRetryMs),
		StallWait:     ms(cfg.Scan.StallWaitMs),
		Now:           now,
	}
}

// openSource replays saved pages when browser.snapshot_dir is set and drives
// Chrome otherwise.
func openSource(ctx context.Context) (feed.Source, func(), error) {
	if dir := cfg.Browser.SnapshotDir; dir != "" {
		src, err := feed.NewSnapshotSource(dir)
		if err != nil {
			return nil, nil, err
		}
		zap.L().Info("scrape: replaying snapshots", zap.String("dir", dir))
		return src, func() {}, nil
	}

	src, err := browser.Open(ctx, browser.Config{
		HistoryURL:   cfg.Browser.HistoryURL,
		UserDataDir:  cfg.Browser.UserDataDir,
		Headless:     cfg.Browser.Headless,
		LoginTimeout: time.Duration(cfg.Browser.LoginTimeoutSecs) * time.Second,
		LoadWait:     ms(cfg.Browser.LoadWaitMs),
	})
	if err != nil {
		return nil, nil, err
	}
	return src, src.Close, nil
}

func newEnricher(ctx context.Context) (*enrich.Batcher, error) {
	client, err := youtube.NewClient(ctx, cfg.YouTube.APIKey, youtubeOptions()...)
	if err != nil {
		return nil, err
	}
	return enrich.NewBatcher(enrich.NewYouTubeLookup(client), enrich.Config{
		BatchSize:   cfg.YouTube.BatchSize,
		MinInterval: ms(cfg.YouTube.MinBatchIntervalMs),
		Retry: resilience.FromMillis(
			cfg.YouTube.RetryAttempts,
			cfg.YouTube.RetryBackoffMs,
			cfg.YouTube.RetryMaxBackoffMs,
		),
	}, rec), nil
}

func youtubeOptions() []youtube.Option {
	var opts []youtube.Option
	if cfg.YouTube.BaseURL != "" {
		opts = append(opts, youtube.WithBaseURL(cfg.YouTube.BaseURL))
	}
	return opts
}

func newClassifier(_ context.Context) (*classify.Cache, error) {
	labels, err := classify.NewLabelSet(cfg.Classify.Labels, cfg.Classify.FallbackLabel)
	if err != nil {
		return nil, err
	}
	cache, err := classify.LoadStore(cachePath())
	if err != nil {
		return nil, err
	}

	// The retry policy lives in classify; the SDK must not retry on its own.
	opts := []anthropicpkg.Option{anthropicpkg.WithMaxRetries(0)}
	if cfg.Anthropic.BaseURL != "" {
		opts = append(opts, anthropicpkg.WithBaseURL(cfg.Anthropic.BaseURL))
	}
	client := anthropicpkg.NewClient(cfg.Anthropic.Key, opts...)

	return classify.NewCache(
		cache,
		labels,
		classify.NewAnthropicCompleter(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens),
		classifyPolicy(),
		classify.WithMinInterval(ms(cfg.Classify.MinCallIntervalMs)),
		classify.WithMetrics(rec),
	), nil
}

func classifyPolicy() classify.Policy {
	p := classify.DefaultPolicy()
	p.MalformedAttempts = cfg.Classify.MalformedAttempts
	p.MalformedDelay = ms(cfg.Classify.MalformedDelayMs)
	p.RateLimitBase = ms(cfg.Classify.RateLimitBaseMs)
	p.RateLimitMax = ms(cfg.Classify.RateLimitMaxMs)
	p.QuotaSleep = time.Duration(cfg.Classify.QuotaSleepSecs) * time.Second
	p.ErrorDelay = ms(cfg.Classify.ErrorDelayMs)
	return p
}

func cachePath() string {
	return filepath.Join(cfg.Data.Dir, cfg.Data.CacheFile)
}
