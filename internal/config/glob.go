package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandSources turns command line source arguments into a de-duplicated
// list. URLs and "-" pass through unchanged; local glob patterns are
// expanded and sorted in place; plain local paths must exist. Argument order
// is kept.
func ExpandSources(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no sources provided")
	}

	var out []string
	seen := make(map[string]struct{})
	add := func(s string) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	for _, arg := range args {
		switch {
		case arg == "-" || strings.Contains(arg, "://"):
			add(arg)
		case hasGlobMeta(arg):
			matches, err := filepath.Glob(arg)
			if err != nil {
				return nil, err
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("no matches for pattern %q", arg)
			}
			for _, m := range matches {
				add(m)
			}
		default:
			if _, err := os.Stat(arg); err != nil {
				return nil, err
			}
			add(arg)
		}
	}
	return out, nil
}

func hasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}
