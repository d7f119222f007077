package artifact

import (
	"time"

	"github.com/sells-group/watchlog/internal/model"
)

// FromHistory converts scraped items to rows.
func FromHistory(items []model.HistoryItem) []RawRow {
	rows := make([]RawRow, 0, len(items))
	for _, it := range items {
		r := RawRow{Title: it.Title, Link: it.Link}
		if it.SectionDate != nil {
			r.Date = formatDate(*it.SectionDate)
		}
		rows = append(rows, r)
	}
	return rows
}

// WithIdentity extends a raw row with its resolved identity.
func WithIdentity(raw RawRow, id model.VideoIdentity) IdentityRow {
	return IdentityRow{
		Date:    raw.Date,
		Title:   raw.Title,
		Link:    raw.Link,
		VideoID: id.ID,
		Shape:   id.Shape.String(),
	}
}

// Identity returns the row's video identity.
func (r IdentityRow) Identity() model.VideoIdentity {
	return model.VideoIdentity{ID: r.VideoID, Shape: model.ParseShape(r.Shape)}
}

// SeenDate parses the row's section date. An empty date yields the zero time.
func (r IdentityRow) SeenDate() (time.Time, error) {
	return parseDate(r.Date)
}

// FromUnique converts deduplicated records to rows.
func FromUnique(records []model.UniqueRecord) []UniqueRow {
	rows := make([]UniqueRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, UniqueRow{
			VideoID: r.Identity.ID,
			Shape:   r.Identity.Shape.String(),
			Title:   r.BestTitle,
			Date:    formatDate(r.FirstSeenDate),
		})
	}
	return rows
}

// ToUnique converts rows back to records.
func ToUnique(rows []UniqueRow) ([]model.UniqueRecord, error) {
	out := make([]model.UniqueRecord, 0, len(rows))
	for _, r := range rows {
		d, err := parseDate(r.Date)
		if err != nil {
			return nil, err
		}
		out = append(out, model.UniqueRecord{
			Identity:      model.VideoIdentity{ID: r.VideoID, Shape: model.ParseShape(r.Shape)},
			BestTitle:     r.Title,
			FirstSeenDate: d,
		})
	}
	return out, nil
}

func enrichedRow(r model.EnrichedRecord) EnrichedRow {
	return EnrichedRow{
		VideoID:         r.Identity.ID,
		Shape:           r.Identity.Shape.String(),
		Title:           r.BestTitle,
		Date:            formatDate(r.FirstSeenDate),
		Channel:         r.Channel,
		DurationSeconds: r.DurationSeconds,
		Language:        r.OriginalLanguage,
		Description:     r.Description,
		Tags:            joinTags(r.Tags),
	}
}

func enrichedRecord(r EnrichedRow) (model.EnrichedRecord, error) {
	d, err := parseDate(r.Date)
	if err != nil {
		return model.EnrichedRecord{}, err
	}
	return model.EnrichedRecord{
		UniqueRecord: model.UniqueRecord{
			Identity:      model.VideoIdentity{ID: r.VideoID, Shape: model.ParseShape(r.Shape)},
			BestTitle:     r.Title,
			FirstSeenDate: d,
		},
		Channel:          r.Channel,
		DurationSeconds:  r.DurationSeconds,
		OriginalLanguage: r.Language,
		Description:      r.Description,
		Tags:             splitTags(r.Tags),
	}, nil
}

// FromEnriched converts enriched records to rows.
func FromEnriched(records []model.EnrichedRecord) []EnrichedRow {
	rows := make([]EnrichedRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, enrichedRow(r))
	}
	return rows
}

// ToEnriched converts rows back to records.
func ToEnriched(rows []EnrichedRow) ([]model.EnrichedRecord, error) {
	out := make([]model.EnrichedRecord, 0, len(rows))
	for _, r := range rows {
		er, err := enrichedRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, er)
	}
	return out, nil
}

// FromCategorized converts categorized records to rows.
func FromCategorized(records []model.CategorizedRecord) []CategorizedRow {
	rows := make([]CategorizedRow, 0, len(records))
	for _, r := range records {
		e := enrichedRow(r.EnrichedRecord)
		rows = append(rows, CategorizedRow{
			VideoID:         e.VideoID,
			Shape:           e.Shape,
			Title:           e.Title,
			Date:            e.Date,
			Channel:         e.Channel,
			DurationSeconds: e.DurationSeconds,
			Language:        e.Language,
			Description:     e.Description,
			Tags:            e.Tags,
			Category:        r.Category,
		})
	}
	return rows
}

// ToCategorized converts rows back to records.
func ToCategorized(rows []CategorizedRow) ([]model.CategorizedRecord, error) {
	out := make([]model.CategorizedRecord, 0, len(rows))
	for _, r := range rows {
		er, err := enrichedRecord(EnrichedRow{
			VideoID:         r.VideoID,
			Shape:           r.Shape,
			Title:           r.Title,
			Date:            r.Date,
			Channel:         r.Channel,
			DurationSeconds: r.DurationSeconds,
			Language:        r.Language,
			Description:     r.Description,
			Tags:            r.Tags,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, model.CategorizedRecord{EnrichedRecord: er, Category: r.Category})
	}
	return out, nil
}
