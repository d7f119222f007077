// Package dates turns the relative and absolute section labels of the watch
// history feed into calendar dates.
package dates

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/watchlog/internal/model"
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"sun":       time.Sunday,
	"monday":    time.Monday,
	"mon":       time.Monday,
	"tuesday":   time.Tuesday,
	"tue":       time.Tuesday,
	"wednesday": time.Wednesday,
	"wed":       time.Wednesday,
	"thursday":  time.Thursday,
	"thu":       time.Thursday,
	"friday":    time.Friday,
	"fri":       time.Friday,
	"saturday":  time.Saturday,
	"sat":       time.Saturday,
}

var withYear = []string{"Jan 2, 2006", "January 2, 2006", "Jan 2 2006", "January 2 2006"}

var withoutYear = []string{"Jan 2", "January 2"}

// Resolve converts a section label into a calendar date relative to ref.
// The second return value is false when the label is not recognized; callers
// treat such sections as non-advancing.
//
// A weekday label always means a past day: on a Wednesday, "Wednesday" is
// seven days ago, since the feed labels the current day "Today".
func Resolve(label string, ref time.Time) (time.Time, bool) {
	ref = model.CivilDate(ref)
	s := strings.Join(strings.Fields(label), " ")
	lower := strings.ToLower(s)

	switch lower {
	case "":
		return time.Time{}, false
	case "today":
		return ref, true
	case "yesterday":
		return ref.AddDate(0, 0, -1), true
	}

	if wd, ok := weekdays[lower]; ok {
		daysAgo := (int(ref.Weekday()) - int(wd) + 7) % 7
		if daysAgo == 0 {
			daysAgo = 7
		}
		return ref.AddDate(0, 0, -daysAgo), true
	}

	for _, layout := range withYear {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	for _, layout := range withoutYear {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		d := time.Date(ref.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		// Feb 29 parsed without a year normalizes into March in non-leap years.
		if d.Month() != t.Month() {
			d = time.Date(ref.Year()-1, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			if d.Month() != t.Month() {
				return time.Time{}, false
			}
		}
		if d.After(ref) {
			d = d.AddDate(-1, 0, 0)
		}
		return d, true
	}

	return time.Time{}, false
}

// LastMonthRange returns the first and last day of the calendar month before ref.
func LastMonthRange(ref time.Time) (time.Time, time.Time) {
	ref = model.CivilDate(ref)
	firstThisMonth := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := firstThisMonth.AddDate(0, 0, -1)
	start := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, end
}

// ParseWindow builds the scan window from optional YYYY-MM-DD bounds. When both
// are empty the previous calendar month is used; an empty end alone means
// today.
func ParseWindow(start, end string, ref time.Time) (model.Window, error) {
	if start == "" && end == "" {
		s, e := LastMonthRange(ref)
		return model.Window{Start: s, End: e}, nil
	}

	var w model.Window
	if start == "" {
		s, _ := LastMonthRange(ref)
		w.Start = s
	} else {
		s, err := time.Parse(model.DateLayout, start)
		if err != nil {
			return w, eris.Wrapf(err, "dates: parse start %q", start)
		}
		w.Start = s
	}
	if end == "" {
		w.End = model.CivilDate(ref)
	} else {
		e, err := time.Parse(model.DateLayout, end)
		if err != nil {
			return w, eris.Wrapf(err, "dates: parse end %q", end)
		}
		w.End = e
	}
	if w.End.Before(w.Start) {
		return w, eris.Errorf("dates: window end %s precedes start %s", w.End.Format(model.DateLayout), w.Start.Format(model.DateLayout))
	}
	return w, nil
}
