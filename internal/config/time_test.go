package config

import (
	"testing"
	"time"
)

func TestParseTimeRefAbsolute(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2025-01-26T10:00:01Z", time.Date(2025, 1, 26, 10, 0, 1, 0, time.UTC)},
		{"2025-01-26T10:00:01.5Z", time.Date(2025, 1, 26, 10, 0, 1, 5e8, time.UTC)},
		{"2025-01-26 10:00:01", time.Date(2025, 1, 26, 10, 0, 1, 0, time.UTC)},
		{"2025-01-26", time.Date(2025, 1, 26, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimeRef(tt.input)
			if err != nil {
				t.Fatalf("ParseTimeRef() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("ParseTimeRef() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseTimeRefRelative(t *testing.T) {
	start := time.Now()
	got, err := ParseTimeRef("1h30m")
	if err != nil {
		t.Fatalf("ParseTimeRef() error = %v", err)
	}
	end := time.Now()

	duration := 90 * time.Minute
	maxSkew := 2 * time.Second
	if end.Sub(got) < duration-maxSkew {
		t.Fatalf("expected duration >= %v, got %v", duration-maxSkew, end.Sub(got))
	}
	if start.Sub(got) > duration+maxSkew {
		t.Fatalf("expected duration <= %v, got %v", duration+maxSkew, start.Sub(got))
	}

	got, err = ParseTimeRef("1d2h")
	if err != nil {
		t.Fatalf("ParseTimeRef() error = %v", err)
	}
	if end.Sub(got) < 26*time.Hour-maxSkew {
		t.Fatalf("expected duration >= %v, got %v", 26*time.Hour-maxSkew, end.Sub(got))
	}
}

func TestParseTimeRefInvalid(t *testing.T) {
	for _, input := range []string{"banana", "", "1x", "2d banana"} {
		if _, err := ParseTimeRef(input); err == nil {
			t.Errorf("ParseTimeRef(%q) expected error", input)
		}
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"5m", 5 * time.Minute},
		{"1h30m", 90 * time.Minute},
		{"2d", 48 * time.Hour},
		{"1d2h3m4s", 26*time.Hour + 3*time.Minute + 4*time.Second},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.input)
		if err != nil || got != tt.want {
			t.Errorf("ParseDuration(%q) = %v, %v; want %v", tt.input, got, err, tt.want)
		}
	}
}

func TestTimeRange(t *testing.T) {
	r, err := ParseTimeRange("2025-01-01", "2025-01-02")
	if err != nil {
		t.Fatalf("ParseTimeRange() error = %v", err)
	}

	tests := []struct {
		at   time.Time
		want bool
	}{
		{time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC), false},
		{time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), true},
		{time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{time.Date(2025, 1, 2, 0, 0, 1, 0, time.UTC), false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.at); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.at, got, tt.want)
		}
	}

	open, err := ParseTimeRange("", "")
	if err != nil || !open.IsZero() || !open.Contains(time.Unix(0, 0)) {
		t.Errorf("open range = %+v, %v", open, err)
	}

	if _, err := ParseTimeRange("2025-01-02", "2025-01-01"); err == nil {
		t.Error("expected error for inverted range")
	}
	if _, err := ParseTimeRange("nope", ""); err == nil {
		t.Error("expected error for invalid since")
	}
}
