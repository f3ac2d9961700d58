package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
)

var gzipMagic = []byte{0x1f, 0x8b}

type gzipSource struct {
	inner Source
}

// Gzip wraps src so that gzip-compressed content is decompressed on the fly.
// Compression is detected from the stream's magic bytes or a ".gz" name. The
// decompressed stream has unknown size and its name drops the ".gz" suffix.
func Gzip(src Source) Source {
	return &gzipSource{inner: src}
}

func (s *gzipSource) Name() string {
	return strings.TrimSuffix(s.inner.Name(), ".gz")
}

func (s *gzipSource) Open(ctx context.Context) (*Stream, error) {
	st, err := s.inner.Open(ctx)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(st)
	head, err := peek(ctx, br, len(gzipMagic))
	if err != nil {
		st.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read %s: %w", s.inner.Name(), err)
	}

	compressed := string(head) == string(gzipMagic)
	if !compressed && (len(head) == 0 || !strings.HasSuffix(s.inner.Name(), ".gz")) {
		return &Stream{ReadCloser: &wrapped{Reader: br, closer: st}, Size: st.Size}, nil
	}

	zr, err := gzip.NewReader(br)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("gunzip %s: %w", s.inner.Name(), err)
	}
	return &Stream{ReadCloser: &wrapped{Reader: zr, closer: multiCloser{zr, st}}}, nil
}

type peekResult struct {
	head []byte
	err  error
}

// peek returns up to n leading bytes of br. It gives up when ctx is done,
// since readers such as standard input ignore cancellation; the abandoned
// Peek finishes in the background once its reader returns.
func peek(ctx context.Context, br *bufio.Reader, n int) ([]byte, error) {
	res := make(chan peekResult, 1)
	go func() {
		head, err := br.Peek(n)
		if errors.Is(err, io.EOF) {
			err = nil
		}
		res <- peekResult{head: head, err: err}
	}()

	select {
	case r := <-res:
		return r.head, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type wrapped struct {
	io.Reader
	closer io.Closer
}

func (w *wrapped) Close() error { return w.closer.Close() }

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var errs []error
	for _, c := range m {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
