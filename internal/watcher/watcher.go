// Package watcher follows the annotation editor's active-session file.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/heimdex/heimdex-exporter/internal/logging"
)

const (
	// maxSessionFileBytes bounds what is read from the session file; ids are short.
	maxSessionFileBytes = 4096

	// settleDelay coalesces the truncate/write event pairs of a single save.
	settleDelay = 50 * time.Millisecond
)

type Watcher interface {
	Watch(ctx context.Context) error
	OnChange(callback func(sessionID string))
}

// SessionFileWatcher reports the session id stored in a file each time the
// file's content changes. An empty or missing file reports "".
type SessionFileWatcher struct {
	path   string
	logger *slog.Logger
	ready  chan struct{}

	mu       sync.Mutex
	callback func(sessionID string)
	last     string
}

func NewSessionFileWatcher(path string, logger *slog.Logger) *SessionFileWatcher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &SessionFileWatcher{
		path:   filepath.Clean(path),
		logger: logging.WithComponent(logger, "watcher"),
		ready:  make(chan struct{}),
	}
}

func (w *SessionFileWatcher) OnChange(callback func(sessionID string)) {
	w.mu.Lock()
	w.callback = callback
	w.mu.Unlock()
}

// Ready is closed once the watch is registered.
func (w *SessionFileWatcher) Ready() <-chan struct{} {
	return w.ready
}

// Watch blocks until ctx is done. The parent directory is watched, not the
// file, so editors that replace the file atomically are followed.
func (w *SessionFileWatcher) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session file dir: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", logging.SanitizePath(dir), err)
	}

	if id, err := ReadSessionFile(w.path); err != nil {
		w.logger.Warn("failed to read session file", "error", err)
	} else if id != "" {
		w.emit(id)
	}

	close(w.ready)
	w.logger.Info("watching session file", "path", logging.SanitizePath(w.path))

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			settle = time.After(settleDelay)
		case <-settle:
			settle = nil
			w.reload()
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("fsnotify error", "error", err)
		}
	}
}

func (w *SessionFileWatcher) reload() {
	id, err := ReadSessionFile(w.path)
	if err != nil {
		w.logger.Warn("failed to read session file", "error", err)
		return
	}
	w.emit(id)
}

func (w *SessionFileWatcher) emit(id string) {
	w.mu.Lock()
	if id == w.last {
		w.mu.Unlock()
		return
	}
	w.last = id
	cb := w.callback
	w.mu.Unlock()

	w.logger.Info("active session changed", "session_id", id)
	if cb != nil {
		cb(id)
	}
}

// ReadSessionFile returns the trimmed first line of path, or "" when the
// file does not exist.
func ReadSessionFile(path string) (string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, maxSessionFileBytes)
	n, err := f.Read(buf)
	if n == 0 && err != nil {
		// Empty file reads as io.EOF.
		return "", nil
	}
	content := string(buf[:n])
	if i := strings.IndexAny(content, "\r\n"); i >= 0 {
		content = content[:i]
	}
	return strings.TrimSpace(content), nil
}
