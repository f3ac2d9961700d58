package server

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/bimmerbailey/convolog/internal/fsource"
)

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	key, err := fsource.ParseSortKey(r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	listing, err := s.root.List(r.URL.Query().Get("path"), key)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, fsource.ErrUnavailable) {
			status = http.StatusServiceUnavailable
		}
		s.log.Debug().Err(err).Str("path", r.URL.Query().Get("path")).Msg("list failed")
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	if rel == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing path"))
		return
	}

	abs, _, err := s.root.Stat(rel)
	if err != nil {
		writeError(w, fsErrorStatus(err), err)
		return
	}
	f, err := os.Open(abs)
	if err != nil {
		writeError(w, http.StatusNotFound, fsource.ErrUnreadable)
		return
	}
	defer f.Close()

	// Size the response from the open handle so the header matches the file
	// actually being sent, even if the path was replaced since Stat.
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		writeError(w, http.StatusNotFound, fsource.ErrUnreadable)
		return
	}
	size := info.Size()

	contentType := "text/plain; charset=utf-8"
	if strings.HasSuffix(strings.ToLower(abs), ".gz") {
		contentType = "application/gzip"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)

	if err := copyBody(w, f, size); err != nil {
		s.log.Debug().Err(err).Str("path", rel).Msg("stream interrupted")
	}
}

// copyBody writes exactly size bytes of src to dst. Bytes appended to src
// after sizing are not sent; a src that shrank yields io.ErrUnexpectedEOF.
func copyBody(dst io.Writer, src io.Reader, size int64) error {
	n, err := io.CopyN(dst, src, size)
	if errors.Is(err, io.EOF) && n < size {
		return io.ErrUnexpectedEOF
	}
	return err
}

func fsErrorStatus(err error) int {
	switch {
	case errors.Is(err, fsource.ErrUnsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, fsource.ErrUnreadable):
		return http.StatusNotFound
	case errors.Is(err, fsource.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
