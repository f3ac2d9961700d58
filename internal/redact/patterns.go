package redact

import (
	"regexp"
	"strconv"
)

// Pattern is one masking rule.
type Pattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replace     func(match string) string
	Description string
}

var (
	// Email addresses: user@example.com
	emailRegex = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

	// API keys, session tokens and other long opaque identifiers.
	tokenRegex = regexp.MustCompile(`\b[A-Za-z0-9_-]{20,}\b`)

	// Card numbers and other long digit runs.
	longDigitsRegex = regexp.MustCompile(`\b\d{16,}\b`)
)

// Built-in patterns, applied in this order.
var (
	EmailPattern = Pattern{
		Name:        "email",
		Regex:       emailRegex,
		Replace:     func(string) string { return "***@***" },
		Description: "Email addresses",
	}
	TokenPattern = Pattern{
		Name:        "token",
		Regex:       tokenRegex,
		Replace:     func(string) string { return "[REDACTED_TOKEN]" },
		Description: "Runs of 20 or more token characters",
	}
	LongDigitsPattern = Pattern{
		Name:  "long_digits",
		Regex: longDigitsRegex,
		Replace: func(m string) string {
			return "[REDACTED_" + strconv.Itoa(len(m)) + "D]"
		},
		Description: "Runs of 16 or more digits",
	}
)

// patterns returns the enabled patterns in application order.
func (o Options) patterns() []Pattern {
	ps := make([]Pattern, 0, 3)
	if o.Emails {
		ps = append(ps, EmailPattern)
	}
	if o.Tokens {
		ps = append(ps, TokenPattern)
	}
	if o.LongDigits {
		ps = append(ps, LongDigitsPattern)
	}
	return ps
}
