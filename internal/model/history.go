// Package model defines the records that flow between pipeline stages.
package model

import (
	"strings"
	"time"
)

// Sentinel values used when metadata is unavailable for a video.
const (
	UnknownChannel  = "Unknown"
	UnknownLanguage = "Unknown"
)

// DateLayout is the civil-date layout used in artifacts and flags.
const DateLayout = "2006-01-02"

// Shape tags the URL form a video link was observed in.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeWatch
	ShapeShorts
	ShapeShortLink
)

func (s Shape) String() string {
	switch s {
	case ShapeWatch:
		return "watch"
	case ShapeShorts:
		return "shorts"
	case ShapeShortLink:
		return "short_link"
	default:
		return "unknown"
	}
}

// ParseShape is the inverse of Shape.String. Unrecognized input maps to ShapeUnknown.
func ParseShape(s string) Shape {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "watch":
		return ShapeWatch
	case "shorts":
		return ShapeShorts
	case "short_link":
		return ShapeShortLink
	default:
		return ShapeUnknown
	}
}

// HistoryItem is a single entry collected from the history feed.
type HistoryItem struct {
	Title       string
	Link        string
	SectionDate *time.Time
}

// VideoIdentity identifies a video independent of the link shape it was seen in.
type VideoIdentity struct {
	ID    string
	Shape Shape
}

// UniqueRecord is one deduplicated video.
type UniqueRecord struct {
	Identity      VideoIdentity
	BestTitle     string
	FirstSeenDate time.Time
}

// EnrichedRecord is a UniqueRecord plus authoritative metadata.
type EnrichedRecord struct {
	UniqueRecord
	Channel          string
	DurationSeconds  int
	OriginalLanguage string
	Description      string
	Tags             []string
}

// HasChannel reports whether metadata resolved a real channel for the record.
func (r EnrichedRecord) HasChannel() bool {
	return r.Channel != "" && r.Channel != UnknownChannel
}

// CategorizedRecord is an EnrichedRecord with its category label.
type CategorizedRecord struct {
	EnrichedRecord
	Category string
}

// ContentDigest bundles whatever signals are available for classifying a channel.
type ContentDigest struct {
	Channel      string
	Title        string
	Description  string
	Tags         []string
	SampleTitles []string
}

// CivilDate truncates t to midnight UTC of its calendar day.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
