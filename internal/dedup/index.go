// Package dedup collapses repeated observations of the same video into one record.
package dedup

import (
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/watchlog/internal/model"
)

// Index keeps one UniqueRecord per video ID in first-seen order. It is owned
// by a single stage run and is not safe for concurrent use.
type Index struct {
	records    []model.UniqueRecord
	byID       map[string]int
	duplicates int
}

// New creates an empty Index.
func New() *Index {
	return &Index{byID: make(map[string]int)}
}

// Offer records an observation. The first observation of an ID fixes its
// first-seen date; later observations only replace the title when it is
// strictly longer.
func (x *Index) Offer(id model.VideoIdentity, title string, date time.Time) {
	title = norm.NFC.String(title)

	if i, ok := x.byID[id.ID]; ok {
		x.duplicates++
		if utf8.RuneCountInString(title) > utf8.RuneCountInString(x.records[i].BestTitle) {
			x.records[i].BestTitle = title
		}
		return
	}

	x.byID[id.ID] = len(x.records)
	x.records = append(x.records, model.UniqueRecord{
		Identity:      id,
		BestTitle:     title,
		FirstSeenDate: date,
	})
}

// Finalize returns the records in insertion order.
func (x *Index) Finalize() []model.UniqueRecord {
	out := make([]model.UniqueRecord, len(x.records))
	copy(out, x.records)
	return out
}

// Duplicates is the number of offers collapsed into an existing record.
func (x *Index) Duplicates() int { return x.duplicates }

// Len is the number of unique records.
func (x *Index) Len() int { return len(x.records) }
