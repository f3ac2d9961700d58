package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/bimmerbailey/convolog/internal/pipeline"
	"github.com/bimmerbailey/convolog/internal/source"
)

const (
	writeWait      = 10 * time.Second
	maxRequestSize = 64 << 10
)

// Inbound parse protocol operations.
const (
	opParseURL  = "parse-from-url"
	opParsePath = "parse-from-path"
	opReset     = "reset"
)

type parseRequest struct {
	Op   string `json:"op"`
	URL  string `json:"url,omitempty"`
	Path string `json:"path,omitempty"`
}

// session is one websocket connection. It owns a pipeline worker; the read
// loop handles requests and a single writer goroutine sends every outbound
// message.
type session struct {
	s       *Server
	conn    *websocket.Conn
	worker  *pipeline.Worker
	log     zerolog.Logger
	replies chan pipeline.Message
	done    chan struct{}
	gen     uint64
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxRequestSize)

	sess := &session{
		s:       s,
		conn:    conn,
		worker:  pipeline.NewWorker(s.pipeline, 64),
		log:     s.log.With().Str("remote", r.RemoteAddr).Logger(),
		replies: make(chan pipeline.Message, 16),
		done:    make(chan struct{}),
	}
	sess.run(r.Context())
}

func (c *session) run(ctx context.Context) {
	c.log.Debug().Msg("parse session opened")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop()
	}()

	c.readLoop(ctx)

	close(c.done)
	c.worker.Close()
	wg.Wait()
	c.conn.Close()
	c.log.Debug().Msg("parse session closed")
}

func (c *session) readLoop(ctx context.Context) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var req parseRequest
		if err := json.Unmarshal(data, &req); err != nil {
			c.reply(pipeline.Message{Op: pipeline.OpError, Generation: c.gen, Err: "invalid request"})
			continue
		}
		c.handle(ctx, req)
	}
}

func (c *session) handle(ctx context.Context, req parseRequest) {
	switch req.Op {
	case opReset:
		c.gen++
		c.worker.Stop()
		return
	case opParseURL, opParsePath:
	default:
		c.reply(pipeline.Message{Op: pipeline.OpError, Generation: c.gen, Err: fmt.Sprintf("unknown op %q", req.Op)})
		return
	}

	c.gen++
	tag := pipeline.RunTag{Generation: c.gen, ID: uuid.NewString()}

	src, err := c.source(req)
	if err != nil {
		c.worker.Stop()
		c.reply(pipeline.Message{Op: pipeline.OpError, Generation: tag.Generation, RunID: tag.ID, Err: err.Error()})
		return
	}

	c.log.Info().Str("run_id", tag.ID).Uint64("gen", tag.Generation).Str("source", src.Name()).Msg("parse requested")
	if err := c.worker.Start(context.WithoutCancel(ctx), tag, src); err != nil {
		c.reply(pipeline.Message{Op: pipeline.OpError, Generation: tag.Generation, RunID: tag.ID, Err: err.Error()})
	}
}

func (c *session) source(req parseRequest) (source.Source, error) {
	if req.Op == opParsePath {
		if c.s.root == nil {
			return nil, errors.New("no data directory")
		}
		return c.s.root.Open(req.Path)
	}

	u, err := url.Parse(req.URL)
	if err != nil || (!strings.EqualFold(u.Scheme, "http") && !strings.EqualFold(u.Scheme, "https")) || u.Host == "" {
		return nil, fmt.Errorf("url must be http(s): %q", req.URL)
	}
	if !c.s.hostAllowed(u.Hostname()) {
		return nil, fmt.Errorf("%w: host %q", errURLNotAllowed, u.Hostname())
	}
	return source.Gzip(source.HTTP(u.String(), c.s.httpClient)), nil
}

func (c *session) reply(m pipeline.Message) {
	select {
	case c.replies <- m:
	case <-c.done:
	}
}

func (c *session) writeLoop() {
	msgs := c.worker.Messages()
	for {
		var m pipeline.Message
		select {
		case <-c.done:
			return
		case m = <-c.replies:
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			m = msg
		}

		if err := c.write(m); err != nil {
			c.log.Debug().Err(err).Msg("websocket write failed")
			c.conn.Close()
			return
		}
	}
}

func (c *session) write(m pipeline.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
