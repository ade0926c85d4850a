package catalog

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	releaseDatePattern = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:\s+(\d{1,2}):(\d{2})(?::(\d{2}))?)?`)
	videoSizePattern   = regexp.MustCompile(`size=(\d+)_(\d+)`)
)

// ParseReleaseDate accepts "2012/8/3 10:00", "2026-02-13 10:00:00",
// "2026-02-13" and similar. Out-of-range components are rejected.
func ParseReleaseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	s = strings.ReplaceAll(s, "/", "-")
	m := releaseDatePattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	parts := make([]int, 6)
	for i := range parts {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return time.Time{}, false
		}
		parts[i] = n
	}
	y, mo, d, hh, mm, ss := parts[0], parts[1], parts[2], parts[3], parts[4], parts[5]
	if mo < 1 || mo > 12 || d < 1 || hh > 23 || mm > 59 || ss > 59 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(mo), d, hh, mm, ss, 0, time.UTC)
	// time.Date normalizes Feb 30 into March; reject instead.
	if t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}
