package enrich

import (
	"context"

	"github.com/sells-group/watchlog/internal/model"
	"github.com/sells-group/watchlog/pkg/youtube"
)

// YouTubeLookup adapts a youtube.Client to Lookup.
type YouTubeLookup struct {
	client youtube.Client
}

// NewYouTubeLookup wraps client.
func NewYouTubeLookup(client youtube.Client) *YouTubeLookup {
	return &YouTubeLookup{client: client}
}

// LookupBatch implements Lookup.
func (l *YouTubeLookup) LookupBatch(ctx context.Context, ids []string) (map[string]Metadata, error) {
	videos, err := l.client.Videos(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Metadata, len(videos))
	for _, v := range videos {
		lang := v.Language()
		if lang == "" {
			lang = model.UnknownLanguage
		}
		out[v.ID] = Metadata{
			Channel:     v.ChannelTitle,
			ISODuration: v.Duration,
			Language:    lang,
			Title:       v.Title,
			Description: v.Description,
			Tags:        v.Tags,
		}
	}
	return out, nil
}
