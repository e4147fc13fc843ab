package fragments

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/contentsync/internal/logger"
)

// DefaultDebounce groups bursts of editor writes into one notification.
const DefaultDebounce = 250 * time.Millisecond

// Watcher calls a function when fragment files in a directory change.
type Watcher struct {
	dir      string
	debounce time.Duration
	onChange func()
}

// NewWatcher creates a watcher over dir. A non-positive debounce uses
// DefaultDebounce.
func NewWatcher(dir string, debounce time.Duration, onChange func()) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{dir: dir, debounce: debounce, onChange: onChange}
}

// Run watches until ctx is done. The directory is created if missing.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("creating fragments directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	logger.Debug("watching fragments in %s", w.dir)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.handleEvent(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("fragment watcher: %v", err)

		case <-fire:
			fire = nil
			w.onChange()
		}
	}
}

// handleEvent reports whether ev touches a fragment file.
func (w *Watcher) handleEvent(ev fsnotify.Event) bool {
	if !IsFragmentFile(ev.Name) {
		return false
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	logger.Debug("fragment %s: %s", ev.Op, ev.Name)
	return true
}
