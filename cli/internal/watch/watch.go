// Package watch re-runs a callback when a watched file changes. The
// explain command uses it to recompile a filter file on save.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounce = 500 * time.Millisecond

// Watcher watches one file and debounces change events.
type Watcher struct {
	file     string
	callback func() error
	watcher  *fsnotify.Watcher
	done     chan bool
}

// New creates a watcher for file. The callback runs once on Start and
// again after each saved change.
func New(file string, callback func() error) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	absPath, err := filepath.Abs(file)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	// Watch the directory: editors replace files on save, and watching
	// the file itself would drop the watch at the first replacement.
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}

	return &Watcher{
		file:     absPath,
		callback: callback,
		watcher:  watcher,
		done:     make(chan bool),
	}, nil
}

// Start runs the callback once, then keeps re-running it on changes
// until Stop. Callback errors are reported and the watch continues.
func (w *Watcher) Start() error {
	if err := w.callback(); err != nil {
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
	}

	go func() {
		debounceTimer := time.NewTimer(debounce)
		debounceTimer.Stop()
		var debounceCh <-chan time.Time

		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				eventPath, err := filepath.Abs(event.Name)
				if err == nil && eventPath == w.file {
					debounceTimer.Reset(debounce)
					debounceCh = debounceTimer.C
				}

			case <-debounceCh:
				if err := w.callback(); err != nil {
					fmt.Fprintf(os.Stderr, "watch: %v\n", err)
				}
				debounceCh = nil

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				fmt.Fprintf(os.Stderr, "watch error: %v\n", err)

			case <-w.done:
				return
			}
		}
	}()

	return nil
}

// Stop ends the watch.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}
