package feed

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// SnapshotSource replays saved HTML renderings of the history page. Each
// LoadMore advances to the next file in name order. It lets the scanner run
// offline against pages captured from a browser.
type SnapshotSource struct {
	pages [][]byte
	pos   int
}

// NewSnapshotSource loads every .html file in dir, sorted by name.
func NewSnapshotSource(dir string) (*SnapshotSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "feed: read snapshot dir %s", dir)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".html" || ext == ".htm" {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	pages := make([][]byte, 0, len(names))
	for _, n := range names {
		b, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			return nil, eris.Wrapf(err, "feed: read snapshot %s", n)
		}
		pages = append(pages, b)
	}
	zap.L().Debug("feed: snapshots loaded", zap.String("dir", dir), zap.Int("pages", len(pages)))
	return NewSnapshotSourceFromPages(pages...), nil
}

// NewSnapshotSourceFromPages replays the given HTML documents in order.
func NewSnapshotSourceFromPages(pages ...[]byte) *SnapshotSource {
	return &SnapshotSource{pages: pages}
}

// NextBatch parses the current page. With no pages at all the feed is empty.
func (s *SnapshotSource) NextBatch(_ context.Context) ([]Section, error) {
	if len(s.pages) == 0 {
		return nil, ErrEndOfFeed
	}
	return ParseSections(bytes.NewReader(s.pages[s.pos]))
}

// LoadMore advances to the next page. It returns ErrEndOfFeed once the last
// page has been shown.
func (s *SnapshotSource) LoadMore(_ context.Context) (bool, error) {
	if s.pos+1 >= len(s.pages) {
		return false, ErrEndOfFeed
	}
	s.pos++
	return true, nil
}
