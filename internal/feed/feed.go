// Package feed models the watch-history feed as a pull-based sequence of
// date-labeled sections.
package feed

import (
	"context"
	"errors"
)

// ErrEndOfFeed is returned by NextBatch when the feed has nothing further to render.
var ErrEndOfFeed = errors.New("feed: end of feed")

// Item is one rendered history entry.
type Item struct {
	Title string
	Link  string
}

// Section is a group of items under one date label ("Today", "Monday", "Mar 3").
type Section struct {
	Label string
	Items []Item
}

// Source yields the sections currently rendered by the feed. Sections stay
// rendered after LoadMore, so each batch is a superset of the previous one.
type Source interface {
	// NextBatch returns every currently rendered section, or ErrEndOfFeed.
	NextBatch(ctx context.Context) ([]Section, error)
	// LoadMore asks the feed to render more content and reports whether
	// anything new appeared.
	LoadMore(ctx context.Context) (bool, error)
}

// Authenticator is implemented by sources that require a signed-in session.
type Authenticator interface {
	EnsureSignedIn(ctx context.Context) error
}
