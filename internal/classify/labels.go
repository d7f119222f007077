package classify

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultLabels is the closed label set used when none is configured.
var DefaultLabels = []string{
	"AI and coding",
	"F1",
	"Football",
	"Basketball",
	"News",
	"Humor",
	"Popular Science",
	"History",
	"Superheroes",
	"Other",
}

// DefaultFallback is assigned when no valid label can be obtained.
const DefaultFallback = "Other"

// trimSet is stripped from both ends of a raw classifier response.
const trimSet = " \t\r\n.,:;!?#*`'\"“”‘’«»<>()[]{}-→"

// LabelSet is an ordered, closed set of category labels.
type LabelSet struct {
	labels   []string
	fallback string
	byFold   map[string]string
	// longest first, ties in set order
	bySize []string
}

// NewLabelSet validates labels and fallback. Labels must be non-empty and
// unique ignoring case, and the fallback must be one of them.
func NewLabelSet(labels []string, fallback string) (*LabelSet, error) {
	if len(labels) == 0 {
		return nil, eris.New("classify: label set is empty")
	}
	s := &LabelSet{byFold: make(map[string]string, len(labels))}
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			return nil, eris.New("classify: empty label")
		}
		key := strings.ToLower(l)
		if _, dup := s.byFold[key]; dup {
			return nil, eris.Errorf("classify: duplicate label %q", l)
		}
		s.byFold[key] = l
		s.labels = append(s.labels, l)
	}

	fb, ok := s.byFold[strings.ToLower(strings.TrimSpace(fallback))]
	if !ok {
		return nil, eris.Errorf("classify: fallback %q is not in the label set", fallback)
	}
	s.fallback = fb

	s.bySize = slices.Clone(s.labels)
	slices.SortStableFunc(s.bySize, func(a, b string) int {
		return len(b) - len(a)
	})
	return s, nil
}

// Labels returns the labels in set order.
func (s *LabelSet) Labels() []string {
	return slices.Clone(s.labels)
}

// Fallback returns the label used when classification gives up.
func (s *LabelSet) Fallback() string {
	return s.fallback
}

// Canonical returns the set's spelling of label, matched case-insensitively.
func (s *LabelSet) Canonical(label string) (string, bool) {
	l, ok := s.byFold[strings.ToLower(strings.TrimSpace(label))]
	return l, ok
}

// Normalize maps a raw classifier response onto a label. Only the first
// non-empty line is considered. A leading "Category:" is dropped, wrapping
// quotes and punctuation are trimmed, and the result is matched exactly
// (ignoring case). Failing that, the first label contained in the response
// wins, trying longer labels first so "Popular Science" beats "Science".
func (s *LabelSet) Normalize(raw string) (string, bool) {
	line := firstLine(raw)
	line = strings.Trim(line, trimSet)
	if rest, ok := cutPrefixFold(line, "category"); ok {
		line = strings.Trim(rest, trimSet)
	}
	if line == "" {
		return "", false
	}

	if l, ok := s.Canonical(line); ok {
		return l, true
	}

	lower := strings.ToLower(line)
	for _, l := range s.bySize {
		if strings.Contains(lower, strings.ToLower(l)) {
			return l, true
		}
	}
	return "", false
}

func firstLine(s string) string {
	for line := range strings.Lines(s) {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	rest := s[len(prefix):]
	if !strings.HasPrefix(strings.TrimLeft(rest, " "), ":") {
		return s, false
	}
	return rest, true
}
