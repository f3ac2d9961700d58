// Package server exposes the data directory and the ingestion pipeline over
// HTTP.
//
// Routes:
//
//	GET /api/fs/list?path=&sort=name|date   directory listing
//	GET /api/fs/stream?path=                raw file bytes
//	GET /api/parse                          websocket parse protocol
//	GET /metrics                            Prometheus metrics
//	GET /healthz                            liveness
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/bimmerbailey/convolog/internal/fsource"
	"github.com/bimmerbailey/convolog/internal/metrics"
	"github.com/bimmerbailey/convolog/internal/pipeline"
)

// Options configure a Server.
type Options struct {
	Root       *fsource.Root
	Pipeline   *pipeline.Pipeline
	Metrics    *metrics.Metrics
	HTTPClient *http.Client
	Logger     *zerolog.Logger

	// AllowedOrigins lists browser origins, besides the server's own host,
	// that may open the parse websocket.
	AllowedOrigins []string
	// URLHosts restricts parse-from-url to these host names when non-empty.
	URLHosts []string
	// AllowPrivateURLs lets parse-from-url reach loopback, private and
	// link-local addresses.
	AllowPrivateURLs bool
}

// Server serves the HTTP API.
type Server struct {
	root       *fsource.Root
	pipeline   *pipeline.Pipeline
	metrics    *metrics.Metrics
	httpClient *http.Client
	urlHosts   []string
	log        zerolog.Logger
	upgrader   websocket.Upgrader
	mux        *http.ServeMux
}

// New creates a Server and registers its routes.
func New(opts Options) *Server {
	s := &Server{
		root:       opts.Root,
		pipeline:   opts.Pipeline,
		metrics:    opts.Metrics,
		httpClient: opts.HTTPClient,
		urlHosts:   opts.URLHosts,
		log:        zlog.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin(opts.AllowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 32 << 10,
		},
		mux: http.NewServeMux(),
	}
	if opts.Logger != nil {
		s.log = *opts.Logger
	}
	if s.httpClient == nil {
		s.httpClient = http.DefaultClient
	}
	if !opts.AllowPrivateURLs {
		s.httpClient = publicOnlyClient(s.httpClient)
	}
	if s.pipeline == nil {
		s.pipeline = pipeline.New(pipeline.Config{}, pipeline.WithMetrics(s.metrics))
	}

	s.mux.HandleFunc("GET /api/fs/list", s.handleList)
	s.mux.HandleFunc("GET /api/fs/stream", s.handleStream)
	s.mux.HandleFunc("GET /api/parse", s.handleParse)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readHeaderTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Str("data_dir", s.root.Dir()).Msg("server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Info().Msg("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}
