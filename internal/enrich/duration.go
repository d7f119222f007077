package enrich

import (
	"regexp"
	"strconv"
	"strings"
)

// isoDuration matches the ISO-8601 durations the metadata API emits, e.g.
// PT1H2M10S, PT45S, P1DT2H. Fractional seconds are truncated.
var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)(?:\.\d+)?S)?)?$`)

// ParseISODuration converts an ISO-8601 duration to whole seconds. Empty or
// malformed input yields 0.
func ParseISODuration(s string) int {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || s == "P" || strings.HasSuffix(s, "T") {
		return 0
	}
	m := isoDuration.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	return atoi(m[1])*86400 + atoi(m[2])*3600 + atoi(m[3])*60 + atoi(m[4])
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
