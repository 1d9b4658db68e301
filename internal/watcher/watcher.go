// Package watcher reports content changes of a single file. Editors that save
// by writing a temp file and renaming it over the original are handled by
// watching the parent directory.
package watcher

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change is one observed version of the file.
type Change struct {
	Path string
	Data []byte
	Time time.Time
	Err  error
}

// Options configures a Watcher.
type Options struct {
	// PollInterval is the stat fallback for filesystems where fsnotify
	// misses events. Zero disables polling.
	PollInterval time.Duration
	// Settle is how long to wait after the last event before reading, so a
	// burst of writes from one save is read once.
	Settle time.Duration
	// EmitInitial sends the current content as the first change.
	EmitInitial bool
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() *Options {
	return &Options{
		PollInterval: time.Second,
		Settle:       50 * time.Millisecond,
		EmitInitial:  true,
	}
}

// Watcher watches one file and emits its content whenever it changes.
type Watcher struct {
	path    string
	opts    *Options
	watcher *fsnotify.Watcher

	last    []byte
	modTime time.Time

	changes chan Change
	done    chan struct{}
	ctxDone <-chan struct{}

	mu     sync.Mutex
	closed bool
}

// New creates a Watcher for path. The file must exist.
func New(path string, opts *Options) (*Watcher, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	if _, err := os.Stat(absPath); err != nil {
		return nil, fmt.Errorf("stat %s: %w", absPath, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		path:    absPath,
		opts:    opts,
		watcher: fw,
		changes: make(chan Change, 8),
		done:    make(chan struct{}),
	}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Changes returns the channel of file versions. It is closed when the
// watcher stops.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Start begins watching until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}
	w.ctxDone = ctx.Done()
	go w.run(ctx)
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true
	close(w.done)
	w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.changes)

	if w.opts.EmitInitial {
		w.read()
	} else {
		w.prime()
	}

	var poll <-chan time.Time
	if w.opts.PollInterval > 0 {
		ticker := time.NewTicker(w.opts.PollInterval)
		defer ticker.Stop()
		poll = ticker.C
	}

	settle := time.NewTimer(time.Hour)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			// Remove and Rename are followed by a Create when the editor
			// replaces the file; the poll catches it otherwise.
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				settle.Reset(w.opts.Settle)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.send(Change{Path: w.path, Time: time.Now(), Err: fmt.Errorf("watcher error: %w", err)})
		case <-settle.C:
			w.read()
		case <-poll:
			w.checkForChanges()
		}
	}
}

// prime records the current content without emitting it.
func (w *Watcher) prime() {
	if info, err := os.Stat(w.path); err == nil {
		w.modTime = info.ModTime()
	}
	if data, err := os.ReadFile(w.path); err == nil {
		w.last = data
	}
}

func (w *Watcher) checkForChanges() {
	info, err := os.Stat(w.path)
	if err != nil {
		return
	}
	if info.ModTime().Equal(w.modTime) {
		return
	}
	w.read()
}

// read emits the file content when it differs from the last emitted version.
func (w *Watcher) read() {
	info, err := os.Stat(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		w.send(Change{Path: w.path, Time: time.Now(), Err: err})
		return
	}
	w.modTime = info.ModTime()

	data, err := os.ReadFile(w.path)
	if err != nil {
		w.send(Change{Path: w.path, Time: time.Now(), Err: fmt.Errorf("read error: %w", err)})
		return
	}
	if w.last != nil && bytes.Equal(data, w.last) {
		return
	}
	w.last = data
	w.send(Change{Path: w.path, Data: data, Time: time.Now()})
}

func (w *Watcher) send(c Change) {
	select {
	case w.changes <- c:
	case <-w.done:
	case <-w.ctxDone:
	}
}
