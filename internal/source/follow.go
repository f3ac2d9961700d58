package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FollowSource reads a local file from the start and then keeps reading
// bytes appended to it, like "tail -f". The stream ends with io.EOF when Stop
// is closed or the file is removed or renamed, so a run over a followed file
// still completes normally.
type FollowSource struct {
	Path string
	Stop <-chan struct{}
}

// Follow returns a Source following path until stop is closed.
func Follow(path string, stop <-chan struct{}) *FollowSource {
	return &FollowSource{Path: path, Stop: stop}
}

func (s *FollowSource) Name() string { return s.Path }

// Open opens the file and registers it with an fsnotify watcher. The size
// is reported as unknown since the file is expected to grow.
func (s *FollowSource) Open(ctx context.Context) (*Stream, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to setup watcher: %w", err)
	}
	if err := watcher.Add(s.Path); err != nil {
		watcher.Close()
		f.Close()
		return nil, fmt.Errorf("watch %s: %w", s.Path, err)
	}

	return &Stream{ReadCloser: &follower{
		ctx:     ctx,
		file:    f,
		watcher: watcher,
		stop:    s.Stop,
		closed:  make(chan struct{}),
	}}, nil
}

type follower struct {
	ctx     context.Context
	file    *os.File
	watcher *fsnotify.Watcher
	stop    <-chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
	ended     bool
}

// Read returns available bytes, blocking for new writes once the current
// end of file is reached.
func (f *follower) Read(p []byte) (int, error) {
	for {
		n, err := f.file.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		if f.ended {
			return 0, io.EOF
		}

		if err := f.wait(); err != nil {
			return 0, err
		}
	}
}

// wait blocks until the file may have grown. It marks the stream ended on
// stop, rotation or close.
func (f *follower) wait() error {
	select {
	case <-f.ctx.Done():
		return f.ctx.Err()

	case <-f.closed:
		return os.ErrClosed

	case <-f.stop:
		f.ended = true
		return nil

	case event, ok := <-f.watcher.Events:
		if !ok {
			f.ended = true
			return nil
		}
		f.handleEvent(event)
		return nil

	case err, ok := <-f.watcher.Errors:
		if !ok {
			f.ended = true
			return nil
		}
		return fmt.Errorf("watcher error: %w", err)
	}
}

func (f *follower) handleEvent(event fsnotify.Event) {
	switch {
	case event.Op&fsnotify.Remove == fsnotify.Remove || event.Op&fsnotify.Rename == fsnotify.Rename:
		// Rotation ends the stream once the open descriptor is drained.
		f.ended = true
	}
}

func (f *follower) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.closed)
		err = errors.Join(f.watcher.Close(), f.file.Close())
	})
	return err
}
