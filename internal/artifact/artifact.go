// Package artifact reads and writes the CSV files exchanged between pipeline
// stages and the manifest that records when each was produced.
package artifact

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/watchlog/internal/model"
)

// Artifact file names, one per stage.
const (
	RawFile         = "01_raw_history.csv"
	IdentityFile    = "02_video_ids.csv"
	UniqueFile      = "03_unique_ids.csv"
	EnrichedFile    = "04_enriched.csv"
	CategorizedFile = "05_categorized.csv"
	ManifestFile    = "manifest.yaml"
)

const tagSep = "|"

// RawRow is one scraped history item.
type RawRow struct {
	Date  string `csv:"date"`
	Title string `csv:"title"`
	Link  string `csv:"link"`
}

// IdentityRow is a RawRow with its resolved video id.
type IdentityRow struct {
	Date    string `csv:"date"`
	Title   string `csv:"title"`
	Link    string `csv:"link"`
	VideoID string `csv:"video_id"`
	Shape   string `csv:"shape"`
}

// UniqueRow is one deduplicated video.
type UniqueRow struct {
	VideoID string `csv:"video_id"`
	Shape   string `csv:"shape"`
	Title   string `csv:"title"`
	Date    string `csv:"date"`
}

// EnrichedRow adds lookup metadata to a UniqueRow.
type EnrichedRow struct {
	VideoID         string `csv:"video_id"`
	Shape           string `csv:"shape"`
	Title           string `csv:"title"`
	Date            string `csv:"date"`
	Channel         string `csv:"channel"`
	DurationSeconds int    `csv:"duration_seconds"`
	Language        string `csv:"language"`
	Description     string `csv:"description"`
	Tags            string `csv:"tags"`
}

// CategorizedRow adds the category label to an EnrichedRow.
type CategorizedRow struct {
	VideoID         string `csv:"video_id"`
	Shape           string `csv:"shape"`
	Title           string `csv:"title"`
	Date            string `csv:"date"`
	Channel         string `csv:"channel"`
	DurationSeconds int    `csv:"duration_seconds"`
	Language        string `csv:"language"`
	Description     string `csv:"description"`
	Tags            string `csv:"tags"`
	Category        string `csv:"category"`
}

// Write encodes rows to path atomically. The header is written even when
// rows is empty.
func Write[T any](path string, rows []T) error {
	err := WriteAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		enc := csvutil.NewEncoder(cw)
		var zero T
		if err := enc.EncodeHeader(zero); err != nil {
			return eris.Wrap(err, "encode header")
		}
		for i := range rows {
			if err := enc.Encode(rows[i]); err != nil {
				return eris.Wrapf(err, "encode row %d", i)
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return eris.Wrapf(err, "artifact: write %s", path)
	}
	return nil
}

// Read decodes every row in path. A missing file yields an error for which
// errors.Is(err, os.ErrNotExist) holds.
func Read[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "artifact: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	dec, err := csvutil.NewDecoder(csv.NewReader(f))
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "artifact: read header %s", path)
	}

	var rows []T
	for {
		var row T
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "artifact: decode %s", path)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// IsMissing reports whether err means an artifact file does not exist.
func IsMissing(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(model.DateLayout)
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "artifact: parse date %q", s)
	}
	return t, nil
}

func joinTags(tags []string) string {
	return strings.Join(tags, tagSep)
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, tagSep)
}
