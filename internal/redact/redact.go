// Package redact masks sensitive substrings in event text at display time.
//
// Redaction never touches stored events: renderers call Redact on the text
// they are about to show or copy, so toggling it needs no re-parse.
package redact

// Options selects which maskings run. The zero value disables everything.
type Options struct {
	Emails     bool `mapstructure:"emails"`
	Tokens     bool `mapstructure:"tokens"`
	LongDigits bool `mapstructure:"long_digits"`
}

// DefaultOptions enables every masking.
func DefaultOptions() Options {
	return Options{Emails: true, Tokens: true, LongDigits: true}
}

// Redact masks text with the given options. Emails are masked first, then
// tokens, then long digit runs; each pass scans the output of the previous one.
func Redact(text string, opts Options) string {
	result := text
	for _, p := range opts.patterns() {
		result = p.Regex.ReplaceAllStringFunc(result, p.Replace)
	}
	return result
}

// Redactor applies a fixed set of options. A nil *Redactor is a no-op.
type Redactor struct {
	opts Options
}

// New creates a Redactor with opts.
func New(opts Options) *Redactor {
	return &Redactor{opts: opts}
}

// Redact masks text.
func (r *Redactor) Redact(text string) string {
	if r == nil {
		return text
	}
	return Redact(text, r.opts)
}

// Enabled reports whether any masking is active.
func (r *Redactor) Enabled() bool {
	return r != nil && (r.opts.Emails || r.opts.Tokens || r.opts.LongDigits)
}

// Options returns the active options.
func (r *Redactor) Options() Options {
	if r == nil {
		return Options{}
	}
	return r.opts
}

// Count returns how many spans Redact would mask in text.
func (r *Redactor) Count(text string) int {
	if r == nil {
		return 0
	}
	count := 0
	result := text
	for _, p := range r.opts.patterns() {
		count += len(p.Regex.FindAllStringIndex(result, -1))
		result = p.Regex.ReplaceAllStringFunc(result, p.Replace)
	}
	return count
}

// Value returns a copy of v with every string inside it redacted. Maps and
// slices are copied; map keys are left alone.
func (r *Redactor) Value(v any) any {
	if !r.Enabled() {
		return v
	}
	switch t := v.(type) {
	case string:
		return r.Redact(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = r.Value(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = r.Value(val)
		}
		return out
	default:
		return v
	}
}
