package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/watchlog/internal/artifact"
	"github.com/sells-group/watchlog/internal/dedup"
	"github.com/sells-group/watchlog/internal/enrich"
	"github.com/sells-group/watchlog/internal/identity"
	"github.com/sells-group/watchlog/internal/model"
)

func (o *Orchestrator) scrape(ctx context.Context) (*model.StageResult, error) {
	if o.deps.OpenSource == nil {
		return nil, eris.New("no history source configured")
	}
	src, closeSrc, err := o.deps.OpenSource(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "open history source")
	}
	defer closeSrc()

	res, err := o.deps.Scanner.Scan(ctx, src, o.cfg.Window)
	out := &model.StageResult{
		Rows:    len(res.Items),
		Skipped: res.SkippedSections + res.RejectedShorts,
		Metadata: map[string]any{
			"state":            res.State.String(),
			"iterations":       res.Iterations,
			"skipped_sections": res.SkippedSections,
			"rejected_shorts":  res.RejectedShorts,
		},
	}
	if err != nil {
		out.Metadata["reason"] = res.Reason
		return out, err
	}

	if err := artifact.Write(o.path(StageScrape), artifact.FromHistory(res.Items)); err != nil {
		return out, err
	}
	return out, nil
}

func (o *Orchestrator) extract(_ context.Context) (*model.StageResult, error) {
	rows, err := readInput[artifact.RawRow](o, StageExtract)
	if err != nil {
		return nil, err
	}

	out := make([]artifact.IdentityRow, 0, len(rows))
	rejected := map[string]int{}
	for _, r := range rows {
		id, ok := identity.Resolve(r.Link)
		if !ok {
			rejected[identity.Classify(r.Link).String()]++
			zap.L().Debug("extract: unresolvable link", zap.String("link", r.Link))
			continue
		}
		out = append(out, artifact.WithIdentity(r, id))
	}

	skipped := 0
	for shape, n := range rejected {
		o.deps.Metrics.LinkRejected(shape, n)
		skipped += n
	}

	res := &model.StageResult{Rows: len(out), Skipped: skipped}
	if len(rejected) > 0 {
		res.Metadata = map[string]any{"rejected_by_shape": rejected}
	}
	return res, artifact.Write(o.path(StageExtract), out)
}

func (o *Orchestrator) dedup(_ context.Context) (*model.StageResult, error) {
	rows, err := readInput[artifact.IdentityRow](o, StageDedup)
	if err != nil {
		return nil, err
	}

	idx := dedup.New()
	skipped := 0
	for _, r := range rows {
		d, err := r.SeenDate()
		if err != nil || r.VideoID == "" {
			skipped++
			zap.L().Debug("dedup: skipping malformed row", zap.String("link", r.Link), zap.Error(err))
			continue
		}
		idx.Offer(r.Identity(), r.Title, d)
	}

	records := idx.Finalize()
	o.deps.Metrics.DuplicatesCollapsed(idx.Duplicates())

	res := &model.StageResult{
		Rows:     len(records),
		Skipped:  skipped,
		Metadata: map[string]any{"duplicates": idx.Duplicates()},
	}
	return res, artifact.Write(o.path(StageDedup), artifact.FromUnique(records))
}

func (o *Orchestrator) enrich(ctx context.Context) (*model.StageResult, error) {
	rows, err := readInput[artifact.UniqueRow](o, StageEnrich)
	if err != nil {
		return nil, err
	}
	records, err := artifact.ToUnique(rows)
	if err != nil {
		return nil, err
	}

	var (
		md    map[string]enrich.Metadata
		stats enrich.Stats
	)
	if len(records) > 0 {
		if o.deps.NewEnricher == nil {
			return nil, eris.New("no metadata lookup configured")
		}
		batcher, err := o.deps.NewEnricher(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "build metadata lookup")
		}

		ids := make([]string, len(records))
		for i, r := range records {
			ids[i] = r.Identity.ID
		}
		md, stats, err = batcher.Enrich(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	enriched := enrich.Merge(records, md)
	unknown := 0
	for _, r := range enriched {
		if !r.HasChannel() {
			unknown++
		}
	}

	res := &model.StageResult{
		Rows:    len(enriched),
		Skipped: unknown,
		Metadata: map[string]any{
			"batches":        stats.Batches,
			"failed_batches": stats.FailedBatches,
			"missing":        stats.Missing,
		},
	}
	return res, artifact.Write(o.path(StageEnrich), artifact.FromEnriched(enriched))
}

func (o *Orchestrator) classify(ctx context.Context) (res *model.StageResult, err error) {
	rows, err := readInput[artifact.EnrichedRow](o, StageClassify)
	if err != nil {
		return nil, err
	}
	records, err := artifact.ToEnriched(rows)
	if err != nil {
		return nil, err
	}

	out := make([]model.CategorizedRecord, 0, len(records))
	res = &model.StageResult{}

	if len(records) > 0 {
		if o.deps.NewClassifier == nil {
			return nil, eris.New("no classifier configured")
		}
		cache, buildErr := o.deps.NewClassifier(ctx)
		if buildErr != nil {
			return nil, eris.Wrap(buildErr, "build classifier")
		}

		// New labels are kept even when the stage fails part-way.
		defer func() {
			if _, flushErr := cache.Store().Flush(); flushErr != nil {
				if err == nil {
					err = eris.Wrap(flushErr, "flush category cache")
				} else {
					zap.L().Error("classify: cache flush failed", zap.Error(flushErr))
				}
			}
			res.Metadata = map[string]any{
				"cache_hits": cache.Hits(),
				"calls":      cache.Calls(),
				"channels":   cache.Store().Len(),
			}
		}()

		digests := BuildDigests(records, o.cfg.SampleTitles)
		for _, r := range records {
			label, err := cache.Classify(ctx, r.Channel, digests[r.Channel])
			if err != nil {
				return res, err
			}
			if !r.HasChannel() {
				res.Skipped++
			}
			out = append(out, model.CategorizedRecord{EnrichedRecord: r, Category: label})
		}
	}

	res.Rows = len(out)
	return res, artifact.Write(o.path(StageClassify), artifact.FromCategorized(out))
}
