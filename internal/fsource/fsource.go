// Package fsource exposes a data directory as a sandboxed tree of log files.
//
// Client-supplied paths are always relative to the root; anything resolving
// outside it is rejected. Only directories and JSON / JSON Lines files
// (optionally gzip-compressed) are listed or opened.
package fsource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bimmerbailey/convolog/internal/source"
)

var (
	// ErrTraversal means a path resolved outside the root.
	ErrTraversal = errors.New("path escapes data directory")
	// ErrUnavailable means the root itself cannot be read.
	ErrUnavailable = errors.New("data directory unavailable")
	// ErrUnsupported means the file type is not served.
	ErrUnsupported = errors.New("unsupported file type")
	// ErrUnreadable means the file exists in the tree but cannot be opened.
	ErrUnreadable = errors.New("file not readable")
	// ErrInvalidSort means an unknown sort key.
	ErrInvalidSort = errors.New("invalid sort key")
)

// SortKey orders listings. Directories always come first.
type SortKey string

const (
	SortName SortKey = "name"
	SortDate SortKey = "date"
)

// ParseSortKey accepts "", "name" and "date".
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(s) {
	case "", SortName:
		return SortName, nil
	case SortDate:
		return SortDate, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSort, s)
	}
}

// EntryType distinguishes files from directories.
type EntryType string

const (
	TypeFile EntryType = "file"
	TypeDir  EntryType = "dir"
)

// Entry is one listed child.
type Entry struct {
	Name  string    `json:"name"`
	Type  EntryType `json:"type"`
	Size  int64     `json:"size"`
	MTime int64     `json:"mtime"`
}

// Listing is the content of one directory.
type Listing struct {
	Path    string  `json:"path"`
	Entries []Entry `json:"entries"`
}

var allowedExts = []string{".jsonl", ".json"}

// Allowed reports whether name has a served extension.
func Allowed(name string) bool {
	lower := strings.TrimSuffix(strings.ToLower(name), ".gz")
	for _, ext := range allowedExts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Root is a sandboxed data directory.
type Root struct {
	dir string
}

// New creates a Root at dir. The directory does not need to exist yet.
func New(dir string) (*Root, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	return &Root{dir: filepath.Clean(abs)}, nil
}

// Dir returns the absolute root directory.
func (r *Root) Dir() string {
	return r.dir
}

// Resolve maps a client path to an absolute path under the root. "" and "/"
// mean the root; leading slashes are ignored.
func (r *Root) Resolve(rel string) (string, error) {
	rel = strings.TrimLeft(filepath.ToSlash(rel), "/")
	abs := filepath.Clean(filepath.Join(r.dir, filepath.FromSlash(rel)))

	if abs == r.dir {
		return abs, nil
	}
	if !strings.HasPrefix(abs, r.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrTraversal, rel)
	}
	return abs, nil
}

// Rel returns the slash-separated, "/"-prefixed form of abs relative to the
// root.
func (r *Root) Rel(abs string) string {
	rel, err := filepath.Rel(r.dir, abs)
	if err != nil || rel == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(rel)
}

// List returns the visible entries of the directory at rel. Hidden entries,
// entries that cannot be inspected and files of other types are skipped.
func (r *Root) List(rel string, key SortKey) (Listing, error) {
	if _, err := os.Stat(r.dir); err != nil {
		return Listing{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	abs, err := r.Resolve(rel)
	if err != nil {
		return Listing{}, err
	}

	dirents, err := os.ReadDir(abs)
	if err != nil {
		if abs == r.dir {
			return Listing{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return Listing{}, fmt.Errorf("read %s: %w", r.Rel(abs), err)
	}

	entries := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		name := d.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		info, err := os.Stat(filepath.Join(abs, name))
		if err != nil {
			continue
		}

		e := Entry{Name: name, MTime: info.ModTime().UnixMilli()}
		if info.IsDir() {
			e.Type = TypeDir
		} else {
			if !info.Mode().IsRegular() || !Allowed(name) {
				continue
			}
			e.Type = TypeFile
			e.Size = info.Size()
		}
		entries = append(entries, e)
	}

	sortEntries(entries, key)
	return Listing{Path: r.Rel(abs), Entries: entries}, nil
}

func sortEntries(entries []Entry, key SortKey) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Type != b.Type {
			return a.Type == TypeDir
		}
		if key == SortDate && a.MTime != b.MTime {
			return a.MTime > b.MTime
		}
		return strings.Compare(a.Name, b.Name) < 0
	})
}

// Stat checks that rel is a served, readable file and returns its size.
func (r *Root) Stat(rel string) (string, int64, error) {
	abs, err := r.Resolve(rel)
	if err != nil {
		return "", 0, err
	}
	if !Allowed(abs) {
		return "", 0, fmt.Errorf("%w: %q", ErrUnsupported, filepath.Ext(abs))
	}
	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		return "", 0, fmt.Errorf("%w: %s", ErrUnreadable, r.Rel(abs))
	}
	return abs, info.Size(), nil
}

// Open returns a Source for the file at rel, decompressing gzip content.
func (r *Root) Open(rel string) (source.Source, error) {
	abs, _, err := r.Stat(rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnreadable, r.Rel(abs))
	}
	f.Close()
	return source.Gzip(source.File(abs)), nil
}
