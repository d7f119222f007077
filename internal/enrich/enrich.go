// Package enrich attaches authoritative video metadata to deduplicated records.
package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/watchlog/internal/metrics"
	"github.com/sells-group/watchlog/internal/model"
	"github.com/sells-group/watchlog/internal/resilience"
)

// MaxBatchSize is the largest number of ids sent in one lookup.
const MaxBatchSize = 50

// Metadata is what a lookup returns for one video id.
type Metadata struct {
	Channel     string
	ISODuration string
	Language    string
	Title       string
	Description string
	Tags        []string
}

// Lookup resolves metadata for a batch of ids. Ids absent from the returned
// map are unknown to the service.
type Lookup interface {
	LookupBatch(ctx context.Context, ids []string) (map[string]Metadata, error)
}

// Config controls batching and pacing.
type Config struct {
	BatchSize   int
	MinInterval time.Duration
	Retry       resilience.RetryConfig
}

// Stats summarizes one Enrich call.
type Stats struct {
	Batches       int
	FailedBatches int
	Missing       int
}

// Batcher splits id lists into bounded batches and looks each one up.
type Batcher struct {
	lookup  Lookup
	size    int
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	metrics *metrics.Recorder
}

// NewBatcher creates a Batcher. A BatchSize outside 1..MaxBatchSize is
// clamped to MaxBatchSize.
func NewBatcher(lookup Lookup, cfg Config, rec *metrics.Recorder) *Batcher {
	size := cfg.BatchSize
	if size <= 0 || size > MaxBatchSize {
		size = MaxBatchSize
	}
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	retry := cfg.Retry
	if retry.ShouldRetry == nil {
		retry.ShouldRetry = func(err error) bool {
			return resilience.IsTransient(err) && !resilience.IsQuotaExhausted(err)
		}
	}
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("enrich", "lookup_batch")
	}
	return &Batcher{
		lookup:  lookup,
		size:    size,
		limiter: rate.NewLimiter(limit, 1),
		retry:   retry,
		metrics: rec,
	}
}

// Enrich looks up every id. A batch that still fails after retries is logged
// and contributes no metadata; only context cancellation is returned as an
// error.
func (b *Batcher) Enrich(ctx context.Context, ids []string) (map[string]Metadata, Stats, error) {
	out := make(map[string]Metadata, len(ids))
	var stats Stats

	for start := 0; start < len(ids); start += b.size {
		end := min(start+b.size, len(ids))
		batch := ids[start:end]

		if err := b.limiter.Wait(ctx); err != nil {
			return out, stats, eris.Wrap(err, "enrich: wait for batch slot")
		}

		stats.Batches++
		found, err := resilience.DoVal(ctx, b.retry, func(ctx context.Context) (map[string]Metadata, error) {
			return b.lookup.LookupBatch(ctx, batch)
		})
		if err != nil {
			if ctx.Err() != nil {
				return out, stats, eris.Wrap(ctx.Err(), "enrich: lookup cancelled")
			}
			stats.FailedBatches++
			b.metrics.LookupBatch("failed")
			zap.L().Warn("enrich: batch failed, continuing without metadata",
				zap.Int("batch", stats.Batches),
				zap.Int("size", len(batch)),
				zap.Error(err),
			)
			continue
		}

		b.metrics.LookupBatch("ok")
		for _, id := range batch {
			md, ok := found[id]
			if !ok {
				stats.Missing++
				continue
			}
			out[id] = md
		}
		zap.L().Debug("enrich: batch complete",
			zap.Int("batch", stats.Batches),
			zap.Int("found", len(found)),
		)
	}

	return out, stats, nil
}

// Merge pairs each record with its metadata. Every record is kept; missing
// fields fall back to the Unknown sentinels and a zero duration. A non-empty
// metadata title replaces the scraped one.
func Merge(records []model.UniqueRecord, md map[string]Metadata) []model.EnrichedRecord {
	out := make([]model.EnrichedRecord, 0, len(records))
	for _, r := range records {
		er := model.EnrichedRecord{
			UniqueRecord:     r,
			Channel:          model.UnknownChannel,
			OriginalLanguage: model.UnknownLanguage,
		}
		if m, ok := md[r.Identity.ID]; ok {
			if m.Channel != "" {
				er.Channel = m.Channel
			}
			if m.Language != "" {
				er.OriginalLanguage = m.Language
			}
			if m.Title != "" {
				er.BestTitle = m.Title
			}
			er.DurationSeconds = ParseISODuration(m.ISODuration)
			er.Description = m.Description
			er.Tags = m.Tags
		}
		out = append(out, er)
	}
	return out
}
