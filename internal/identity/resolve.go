// Package identity maps the different link shapes a video can be observed in
// onto a single canonical video ID.
package identity

import (
	"net/url"
	"strings"

	"github.com/sells-group/watchlog/internal/model"
)

const defaultBase = "https://www.youtube.com"

var shortLinkHosts = map[string]bool{
	"youtu.be":     true,
	"www.youtu.be": true,
}

// IsShortForm reports whether a link points at short-form content.
func IsShortForm(rawLink string) bool {
	return strings.Contains(strings.ToLower(rawLink), "/shorts/")
}

// Classify returns the link shape without validating the ID.
func Classify(rawLink string) model.Shape {
	u, ok := parse(rawLink)
	if !ok {
		return model.ShapeUnknown
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case shortLinkHosts[host]:
		return model.ShapeShortLink
	case strings.HasPrefix(u.Path, "/shorts/"):
		return model.ShapeShorts
	case u.Path == "/watch", strings.HasPrefix(u.Path, "/embed/"), strings.HasPrefix(u.Path, "/v/"):
		return model.ShapeWatch
	default:
		return model.ShapeUnknown
	}
}

// Resolve parses rawLink into a VideoIdentity. Short-form links and links of
// an unknown shape are rejected; the caller drops and counts them.
func Resolve(rawLink string) (model.VideoIdentity, bool) {
	u, ok := parse(rawLink)
	if !ok {
		return model.VideoIdentity{}, false
	}

	var id string
	shape := Classify(rawLink)
	switch shape {
	case model.ShapeWatch:
		if u.Path == "/watch" {
			id = u.Query().Get("v")
		} else {
			id = firstSegment(u.Path)
		}
	case model.ShapeShortLink:
		id = firstSegment(u.Path)
	default:
		return model.VideoIdentity{}, false
	}

	if !validID(id) {
		return model.VideoIdentity{}, false
	}
	return model.VideoIdentity{ID: id, Shape: shape}, true
}

// CanonicalURL renders the watch URL for an ID.
func CanonicalURL(id string) string {
	return defaultBase + "/watch?v=" + url.QueryEscape(id)
}

func parse(rawLink string) (*url.URL, bool) {
	s := strings.TrimSpace(rawLink)
	if s == "" {
		return nil, false
	}
	if strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "//") {
		s = defaultBase + s
	} else if !strings.Contains(s, "://") {
		s = "https://" + strings.TrimPrefix(s, "//")
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return nil, false
	}
	return u, true
}

// firstSegment returns the path segment after the shape prefix, e.g. "/embed/ID" or "/ID".
func firstSegment(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(parts) == 1:
		return parts[0]
	case parts[0] == "embed" || parts[0] == "v" || parts[0] == "shorts":
		return parts[1]
	default:
		return ""
	}
}

func validID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
