package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var durationPart = regexp.MustCompile(`(\d+)([dhms])`)

// TimeRange bounds event timestamps. A zero bound is open.
type TimeRange struct {
	Since time.Time
	Until time.Time
}

// ParseTimeRange parses --since / --until style references; either may be
// empty.
func ParseTimeRange(since, until string) (TimeRange, error) {
	var r TimeRange
	var err error
	if strings.TrimSpace(since) != "" {
		if r.Since, err = ParseTimeRef(since); err != nil {
			return TimeRange{}, fmt.Errorf("since: %w", err)
		}
	}
	if strings.TrimSpace(until) != "" {
		if r.Until, err = ParseTimeRef(until); err != nil {
			return TimeRange{}, fmt.Errorf("until: %w", err)
		}
	}
	if !r.Since.IsZero() && !r.Until.IsZero() && r.Until.Before(r.Since) {
		return TimeRange{}, fmt.Errorf("until %s is before since %s", r.Until.Format(time.RFC3339), r.Since.Format(time.RFC3339))
	}
	return r, nil
}

// IsZero reports whether the range is unbounded.
func (r TimeRange) IsZero() bool {
	return r.Since.IsZero() && r.Until.IsZero()
}

// Contains reports whether t lies within the range, bounds inclusive.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.Since.IsZero() && t.Before(r.Since) {
		return false
	}
	if !r.Until.IsZero() && t.After(r.Until) {
		return false
	}
	return true
}

// ParseTimeRef parses an absolute timestamp or a relative duration.
// Relative values are subtracted from the current time (e.g. "1h", "30m", "1d2h").
func ParseTimeRef(s string) (time.Time, error) {
	input := strings.TrimSpace(s)
	if input == "" {
		return time.Time{}, fmt.Errorf("time reference is empty")
	}

	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, input); err == nil {
			return t, nil
		}
	}

	d, err := ParseDuration(input)
	if err != nil {
		return time.Time{}, err
	}
	return time.Now().Add(-d), nil
}

// ParseDuration parses a Go duration or a sequence of day/hour/minute/second
// parts such as "2d" or "1d2h30m".
func ParseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	matches := durationPart.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("invalid relative duration: %s", s)
	}

	var total time.Duration
	consumed := 0
	for _, m := range matches {
		consumed += len(m[0])
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid relative duration: %s", s)
		}
		unit := map[string]time.Duration{
			"d": 24 * time.Hour,
			"h": time.Hour,
			"m": time.Minute,
			"s": time.Second,
		}[m[2]]
		total += time.Duration(n) * unit
	}

	if consumed != len(s) {
		return 0, fmt.Errorf("invalid relative duration: %s", s)
	}
	return total, nil
}
