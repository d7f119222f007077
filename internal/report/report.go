// Package report aggregates the categorized history into the tables the
// charting hand-off consumes.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/watchlog/internal/model"
)

// Language groups used by the watch-time breakdown.
const (
	LanguageEnglish = "English"
	LanguageRussian = "Russian"
	LanguageOther   = "Other"
)

// Bucket is one row of an aggregation.
type Bucket struct {
	Name    string `json:"name"`
	Count   int    `json:"count"`
	Seconds int    `json:"seconds"`
}

// Summary holds the per-dimension aggregations of a categorized history.
type Summary struct {
	Total        int      `json:"total"`
	TotalSeconds int      `json:"total_seconds"`
	ByCategory   []Bucket `json:"by_category"`
	ByChannel    []Bucket `json:"by_channel"`
	ByLanguage   []Bucket `json:"by_language"`
}

// Summarize aggregates records by category, channel, and language group.
// Each slice is ordered by count descending, then name.
func Summarize(records []model.CategorizedRecord) Summary {
	cats := map[string]*Bucket{}
	chans := map[string]*Bucket{}
	langs := map[string]*Bucket{}

	var s Summary
	for _, r := range records {
		s.Total++
		s.TotalSeconds += r.DurationSeconds
		add(cats, r.Category, r.DurationSeconds)
		add(chans, r.Channel, r.DurationSeconds)
		add(langs, LanguageGroup(r.OriginalLanguage), r.DurationSeconds)
	}

	s.ByCategory = sorted(cats)
	s.ByChannel = sorted(chans)
	s.ByLanguage = sorted(langs)
	return s
}

func add(m map[string]*Bucket, name string, seconds int) {
	if name == "" {
		name = model.UnknownChannel
	}
	b, ok := m[name]
	if !ok {
		b = &Bucket{Name: name}
		m[name] = b
	}
	b.Count++
	b.Seconds += seconds
}

func sorted(m map[string]*Bucket) []Bucket {
	out := make([]Bucket, 0, len(m))
	for _, b := range m {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// TopByCount returns at most n buckets in count order.
func TopByCount(buckets []Bucket, n int) []Bucket {
	if n <= 0 || n >= len(buckets) {
		return buckets
	}
	return buckets[:n]
}

// TopByTime returns at most n buckets ordered by watch time descending.
func TopByTime(buckets []Bucket, n int) []Bucket {
	out := make([]Bucket, len(buckets))
	copy(out, buckets)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seconds > out[j].Seconds })
	return TopByCount(out, n)
}

// LanguageGroup folds a BCP-47-ish language code into English, Russian, or Other.
func LanguageGroup(lang string) string {
	l := strings.ToLower(strings.TrimSpace(lang))
	switch {
	case l == "" || l == strings.ToLower(model.UnknownLanguage):
		return LanguageOther
	case strings.HasPrefix(l, "ru"):
		return LanguageRussian
	case strings.HasPrefix(l, "en"):
		return LanguageEnglish
	default:
		return LanguageOther
	}
}

// FormatDuration renders seconds as "3h 5m" or "42m".
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
