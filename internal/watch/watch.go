// Package watch processes new session directories as they appear under the
// input root, once they have stopped changing.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"splice/internal/logging"
	"splice/internal/session"
)

// Handler processes one settled session directory.
type Handler func(ctx context.Context, dir string) error

// Watcher tracks activity per session directory and hands a directory to the
// handler once no event touched it for the quiet period.
type Watcher struct {
	root    string
	quiet   time.Duration
	handler Handler
	logger  *slog.Logger

	pending map[string]time.Time
	handled map[string]struct{}
	now     func() time.Time
}

// New constructs a Watcher.
func New(root string, quiet time.Duration, handler Handler, logger *slog.Logger) *Watcher {
	if quiet <= 0 {
		quiet = time.Minute
	}
	return &Watcher{
		root:    filepath.Clean(root),
		quiet:   quiet,
		handler: handler,
		logger:  logging.NewComponentLogger(logger, "watch"),
		pending: make(map[string]time.Time),
		handled: make(map[string]struct{}),
		now:     time.Now,
	}
}

// Run watches until ctx is cancelled. Session directories already present
// are scheduled as if they had just appeared.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	dirs, _, err := session.ListDirs(w.root)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		w.track(fsw, dir)
	}
	w.logger.Info("watching for sessions",
		logging.String(logging.FieldEventType, "watch_started"),
		logging.String("root", w.root),
		logging.Duration("quiet_period", w.quiet),
		logging.Int("existing", len(dirs)),
	)

	ticker := time.NewTicker(max(w.quiet/4, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.observe(fsw, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(w.logger, "watcher error", "watch_error", logging.Error(err))
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

// sessionDir maps a path to the session directory it belongs to, or "".
func (w *Watcher) sessionDir(path string) string {
	candidate := filepath.Clean(path)
	for candidate != w.root {
		parent := filepath.Dir(candidate)
		if parent == w.root {
			if session.ValidID(filepath.Base(candidate)) {
				return candidate
			}
			return ""
		}
		if parent == candidate {
			return ""
		}
		candidate = parent
	}
	return ""
}

func (w *Watcher) track(fsw *fsnotify.Watcher, dir string) {
	if err := fsw.Add(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(w.logger, "cannot watch session directory", "watch_add_failed",
			logging.String("dir", dir), logging.Error(err))
	}
	w.pending[dir] = w.now()
}

func (w *Watcher) observe(fsw *fsnotify.Watcher, event fsnotify.Event) {
	dir := w.sessionDir(event.Name)
	if dir == "" {
		return
	}
	if event.Name == dir && event.Has(fsnotify.Create) {
		// A recreated directory is a new session.
		delete(w.handled, dir)
		w.track(fsw, dir)
		return
	}
	if event.Name == dir && (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
		delete(w.pending, dir)
		delete(w.handled, dir)
		return
	}
	// Relocation empties a handled directory; its events are not new work.
	if _, done := w.handled[dir]; done {
		return
	}
	w.pending[dir] = w.now()
}

// flush hands every settled directory to the handler in ID order.
func (w *Watcher) flush(ctx context.Context) {
	now := w.now()
	var ready []string
	for dir, last := range w.pending {
		if now.Sub(last) >= w.quiet {
			ready = append(ready, dir)
		}
	}
	slices.Sort(ready)
	for _, dir := range ready {
		delete(w.pending, dir)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		w.logger.Info("session settled",
			logging.String(logging.FieldEventType, "session_settled"),
			logging.String(logging.FieldSessionID, filepath.Base(dir)),
		)
		w.handled[dir] = struct{}{}
		if err := w.handler(ctx, dir); err != nil {
			logging.ErrorWithContext(w.logger, "session handler failed", "watch_handler_failed",
				logging.String(logging.FieldSessionID, filepath.Base(dir)),
				logging.Error(err),
			)
		}
	}
}
