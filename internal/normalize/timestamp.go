package normalize

import (
	"math"
	"strings"
	"time"
)

// secondsThreshold separates epoch seconds from epoch milliseconds. Any bare
// number below it is assumed to be seconds: 1e12 ms is September 2001, while
// 1e12 s is tens of thousands of years away, so real logs never straddle it.
const secondsThreshold = 1e12

// maxEpochMillis bounds accepted numeric timestamps to ±100,000,000 days
// around the epoch. Larger magnitudes do not fit a calendar date and
// overflow int64 on conversion.
const maxEpochMillis = 8.64e15

// DefaultTimestampLayouts are tried after RFC 3339 for string timestamps.
var DefaultTimestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// timestampKeys are consulted in order; the first non-null value wins.
var timestampKeys = []string{"ts", "time", "timestamp"}

// EpochMillis converts a numeric epoch to milliseconds. It reports false for
// NaN, infinities and values outside the representable date range.
func EpochMillis(n float64) (int64, bool) {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	ms := n
	if n < secondsThreshold {
		ms = n * 1000
	}
	ms = math.Round(ms)
	if ms > maxEpochMillis || ms < -maxEpochMillis {
		return 0, false
	}
	return int64(ms), true
}

// pickTimestamp extracts the record timestamp in epoch milliseconds.
func (n *Normalizer) pickTimestamp(r map[string]any) (int64, bool) {
	v := first(r, timestampKeys...)
	switch t := v.(type) {
	case float64:
		return EpochMillis(t)
	case string:
		return n.parseTimestamp(t)
	default:
		return 0, false
	}
}

func (n *Normalizer) parseTimestamp(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	for _, layout := range n.layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}
