package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/watchlog/internal/model"
	"github.com/sells-group/watchlog/internal/resilience"
	"github.com/sells-group/watchlog/pkg/youtube"
	"github.com/sells-group/watchlog/pkg/youtube/mocks"
)

type fakeLookup struct {
	mu      sync.Mutex
	batches [][]string
	fail    func(call int, ids []string) error
	data    map[string]Metadata
}

func (f *fakeLookup) LookupBatch(_ context.Context, ids []string) (map[string]Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]string(nil), ids...))
	if f.fail != nil {
		if err := f.fail(len(f.batches), ids); err != nil {
			return nil, err
		}
	}
	out := make(map[string]Metadata)
	for _, id := range ids {
		if md, ok := f.data[id]; ok {
			out[id] = md
		}
	}
	return out, nil
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("id%03d", i)
	}
	return out
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestBatcher_SplitsIntoBoundedBatches(t *testing.T) {
	f := &fakeLookup{data: map[string]Metadata{"id000": {Channel: "A"}}}
	b := NewBatcher(f, Config{BatchSize: 50, Retry: fastRetry()}, nil)

	got, stats, err := b.Enrich(context.Background(), ids(120))
	require.NoError(t, err)

	require.Len(t, f.batches, 3)
	assert.Len(t, f.batches[0], 50)
	assert.Len(t, f.batches[1], 50)
	assert.Len(t, f.batches[2], 20)
	assert.Equal(t, 3, stats.Batches)
	assert.Equal(t, 119, stats.Missing)
	assert.Equal(t, "A", got["id000"].Channel)
}

func TestBatcher_ClampsBatchSize(t *testing.T) {
	f := &fakeLookup{}
	b := NewBatcher(f, Config{BatchSize: 500, Retry: fastRetry()}, nil)
	_, _, err := b.Enrich(context.Background(), ids(60))
	require.NoError(t, err)
	require.Len(t, f.batches, 2)
	assert.Len(t, f.batches[0], MaxBatchSize)
}

func TestBatcher_RetriesTransientFailures(t *testing.T) {
	f := &fakeLookup{
		data: map[string]Metadata{"id000": {Channel: "A"}},
		fail: func(call int, _ []string) error {
			if call == 1 {
				return resilience.NewTransientError(errors.New("503"), 503)
			}
			return nil
		},
	}
	b := NewBatcher(f, Config{Retry: fastRetry()}, nil)

	got, stats, err := b.Enrich(context.Background(), ids(1))
	require.NoError(t, err)
	assert.Len(t, f.batches, 2)
	assert.Zero(t, stats.FailedBatches)
	assert.Equal(t, "A", got["id000"].Channel)
}

func TestBatcher_FailedBatchYieldsNoMetadata(t *testing.T) {
	f := &fakeLookup{
		data: map[string]Metadata{"id000": {Channel: "A"}, "id002": {Channel: "C"}},
		fail: func(_ int, batch []string) error {
			if batch[0] == "id000" {
				return errors.New("permission denied")
			}
			return nil
		},
	}
	b := NewBatcher(f, Config{BatchSize: 2, Retry: fastRetry()}, nil)

	got, stats, err := b.Enrich(context.Background(), ids(3))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Batches)
	assert.Equal(t, 1, stats.FailedBatches)
	assert.NotContains(t, got, "id000")
	assert.Equal(t, "C", got["id002"].Channel)
	assert.Len(t, f.batches, 2, "non-transient errors are not retried")
}

func TestBatcher_QuotaNotRetried(t *testing.T) {
	f := &fakeLookup{
		fail: func(int, []string) error {
			return resilience.NewRateLimitError(errors.New("quotaExceeded"), true)
		},
	}
	b := NewBatcher(f, Config{Retry: fastRetry()}, nil)
	_, stats, err := b.Enrich(context.Background(), ids(1))
	require.NoError(t, err)
	assert.Len(t, f.batches, 1)
	assert.Equal(t, 1, stats.FailedBatches)
}

func TestBatcher_MinIntervalBetweenBatches(t *testing.T) {
	f := &fakeLookup{}
	b := NewBatcher(f, Config{BatchSize: 1, MinInterval: 20 * time.Millisecond, Retry: fastRetry()}, nil)

	start := time.Now()
	_, _, err := b.Enrich(context.Background(), ids(3))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestBatcher_ContextCancelled(t *testing.T) {
	f := &fakeLookup{}
	b := NewBatcher(f, Config{BatchSize: 1, MinInterval: time.Hour, Retry: fastRetry()}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := b.Enrich(ctx, ids(2))
	require.Error(t, err)
}

func TestBatcher_Empty(t *testing.T) {
	f := &fakeLookup{}
	got, stats, err := NewBatcher(f, Config{}, nil).Enrich(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, stats.Batches)
	assert.Empty(t, f.batches)
}

func TestMerge(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	records := []model.UniqueRecord{
		{Identity: model.VideoIdentity{ID: "a", Shape: model.ShapeWatch}, BestTitle: "scraped a", FirstSeenDate: day},
		{Identity: model.VideoIdentity{ID: "b", Shape: model.ShapeShortLink}, BestTitle: "scraped b", FirstSeenDate: day},
		{Identity: model.VideoIdentity{ID: "c", Shape: model.ShapeWatch}, BestTitle: "scraped c", FirstSeenDate: day},
	}
	md := map[string]Metadata{
		"a": {Channel: "Chan", ISODuration: "PT1H2M10S", Language: "en", Title: "API a", Tags: []string{"x"}},
		"c": {ISODuration: "garbage"},
	}

	out := Merge(records, md)
	require.Len(t, out, 3)

	assert.Equal(t, "Chan", out[0].Channel)
	assert.Equal(t, 3730, out[0].DurationSeconds)
	assert.Equal(t, "en", out[0].OriginalLanguage)
	assert.Equal(t, "API a", out[0].BestTitle)
	assert.Equal(t, []string{"x"}, out[0].Tags)

	assert.Equal(t, model.UnknownChannel, out[1].Channel)
	assert.Equal(t, model.UnknownLanguage, out[1].OriginalLanguage)
	assert.Zero(t, out[1].DurationSeconds)
	assert.Equal(t, "scraped b", out[1].BestTitle)
	assert.Equal(t, model.ShapeShortLink, out[1].Identity.Shape)

	assert.Equal(t, model.UnknownChannel, out[2].Channel)
	assert.Zero(t, out[2].DurationSeconds)
	assert.Equal(t, "scraped c", out[2].BestTitle)
}

func TestYouTubeLookup(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("Videos", mock.Anything, []string{"a", "b"}).Return([]youtube.Video{
		{ID: "a", ChannelTitle: "Chan", Duration: "PT45S", DefaultLanguage: "es", Title: "T"},
		{ID: "b", ChannelTitle: "Other"},
	}, nil)

	got, err := NewYouTubeLookup(client).LookupBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, Metadata{Channel: "Chan", ISODuration: "PT45S", Language: "es", Title: "T"}, got["a"])
	assert.Equal(t, model.UnknownLanguage, got["b"].Language)
}

func TestYouTubeLookup_Error(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("Videos", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	_, err := NewYouTubeLookup(client).LookupBatch(context.Background(), []string{"a"})
	require.Error(t, err)
}
