// Package source opens the byte streams a pipeline run reads from.
//
// A Source is opened exactly once per run. Closing the returned Stream
// releases the underlying file, connection or watcher; the pipeline does that
// both on completion and when a run is abandoned.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// Source is something a run can read bytes from.
type Source interface {
	// Name identifies the source in logs and drives mode detection by
	// extension (".json" vs ".jsonl").
	Name() string
	// Open starts reading. The returned Stream must be closed.
	Open(ctx context.Context) (*Stream, error)
}

// Stream is an open byte stream.
type Stream struct {
	io.ReadCloser
	// Size is the total length in bytes, or 0 when unknown.
	Size int64
}

// Options configure FromArg.
type Options struct {
	HTTPClient *http.Client
	S3Client   GetObjectAPI
	S3Region   string
	Stdin      io.Reader
	// Follow makes local files keep streaming appended bytes until Stop
	// is closed.
	Follow bool
	Stop   <-chan struct{}
}

// FromArg builds a Source from a command line argument: an http(s) URL, an
// s3://bucket/key URL, "-" for standard input, or a local path. Every source
// is wrapped with Gzip.
func FromArg(arg string, opts Options) (Source, error) {
	var src Source

	switch {
	case arg == "-":
		in := opts.Stdin
		if in == nil {
			in = os.Stdin
		}
		src = Reader("-", in)
	case hasScheme(arg, "http://"), hasScheme(arg, "https://"):
		src = HTTP(arg, opts.HTTPClient)
	case hasScheme(arg, "s3://"):
		bucket, key, err := ParseS3URL(arg)
		if err != nil {
			return nil, err
		}
		s := S3(bucket, key, opts.S3Client)
		s.Region = opts.S3Region
		src = s
	case strings.Contains(arg, "://"):
		return nil, fmt.Errorf("unsupported source %q", arg)
	case opts.Follow:
		src = Follow(arg, opts.Stop)
	default:
		src = File(arg)
	}

	return Gzip(src), nil
}

func hasScheme(s, scheme string) bool {
	return len(s) >= len(scheme) && strings.EqualFold(s[:len(scheme)], scheme)
}

type readerSource struct {
	name string
	r    io.Reader
}

// Reader wraps an already open reader, such as standard input. Closing the
// stream does not close r.
func Reader(name string, r io.Reader) Source {
	return &readerSource{name: name, r: r}
}

func (s *readerSource) Name() string { return s.name }

func (s *readerSource) Open(ctx context.Context) (*Stream, error) {
	return &Stream{ReadCloser: io.NopCloser(s.r)}, nil
}
