package output

import (
	"os"

	"golang.org/x/term"

	"github.com/bimmerbailey/convolog/internal/event"
)

// ANSI color codes
const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorGray    = "\033[90m"
	colorBold    = "\033[1m"
)

// ColorMode determines when to use colored output.
type ColorMode int

const (
	ColorAuto   ColorMode = iota // Auto-detect based on TTY
	ColorAlways                  // Always use colors
	ColorNever                   // Never use colors
)

// ParseColorMode maps "auto", "always" and "never"; anything else is auto.
func ParseColorMode(s string) ColorMode {
	switch s {
	case "always":
		return ColorAlways
	case "never":
		return ColorNever
	default:
		return ColorAuto
	}
}

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// shouldColorize determines if output should be colorized based on mode and TTY detection.
func shouldColorize(mode ColorMode, w any) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	case ColorAuto:
		if f, ok := w.(*os.File); ok {
			return isTerminal(f)
		}
		return false
	}
	return false
}

// typeColor returns the escape sequence used for e's header.
func typeColor(e event.Event) string {
	switch e.Type {
	case event.TypeUser:
		return colorBold + colorCyan
	case event.TypeAssistant:
		return colorGreen
	case event.TypeSystem:
		return colorGray
	case event.TypeToolCall:
		return colorYellow
	case event.TypeToolResult:
		return colorYellow
	case event.TypeMeta:
		if e.IsReasoning() {
			return colorMagenta
		}
		return colorGray
	default:
		return ""
	}
}

// ColorizeType wraps text in the color for e's type.
func ColorizeType(e event.Event, text string) string {
	c := typeColor(e)
	if c == "" {
		return text
	}
	return c + text + colorReset
}

// ColorizeError paints text red.
func ColorizeError(text string) string {
	return colorRed + text + colorReset
}
