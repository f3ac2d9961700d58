package source

import (
	"context"
	"fmt"
	"os"
)

// FileSource reads a local file.
type FileSource struct {
	Path string
}

// File returns a Source for the file at path.
func File(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Name() string { return s.Path }

func (s *FileSource) Open(ctx context.Context) (*Stream, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", s.Path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("open %s: is a directory", s.Path)
	}
	return &Stream{ReadCloser: f, Size: info.Size()}, nil
}
