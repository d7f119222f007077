package pipeline

import (
	"github.com/sells-group/watchlog/internal/model"
)

const defaultSampleTitles = 10

// BuildDigests assembles one classification digest per resolved channel.
// The channel's first record supplies title, description, and tags; up to
// sampleTitles distinct titles are collected in record order.
func BuildDigests(records []model.EnrichedRecord, sampleTitles int) map[string]model.ContentDigest {
	if sampleTitles <= 0 {
		sampleTitles = defaultSampleTitles
	}

	out := make(map[string]model.ContentDigest)
	seen := make(map[string]map[string]bool)
	for _, r := range records {
		if !r.HasChannel() {
			continue
		}
		d, ok := out[r.Channel]
		if !ok {
			d = model.ContentDigest{
				Channel:     r.Channel,
				Title:       r.BestTitle,
				Description: r.Description,
				Tags:        r.Tags,
			}
			seen[r.Channel] = make(map[string]bool)
		}
		if len(d.SampleTitles) < sampleTitles && r.BestTitle != "" && !seen[r.Channel][r.BestTitle] {
			seen[r.Channel][r.BestTitle] = true
			d.SampleTitles = append(d.SampleTitles, r.BestTitle)
		}
		out[r.Channel] = d
	}
	return out
}
