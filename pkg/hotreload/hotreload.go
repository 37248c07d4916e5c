// Package hotreload rebuilds a UI document whenever its file changes.
//
// The watcher observes the document's directory, so editors that save by
// renaming a temporary file are picked up. Bursts of events are coalesced
// into one reload after a quiet period. Reloads run on the UI thread: the
// debounce timer comes from a clock.Clock, and the real clock hands timer
// callbacks to dispatch.Dispatch.
package hotreload

import (
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/go-drift/declui/pkg/clock"
	"github.com/go-drift/declui/pkg/errors"
	"github.com/go-drift/declui/pkg/loader"
)

// DefaultDebounce is the quiet period used when Options.Debounce is zero.
const DefaultDebounce = 100 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	// Clock schedules the debounce timer. nil uses clock.Default().
	Clock clock.Clock
	// Extra lists more files whose changes trigger a reload, such as
	// included documents.
	Extra []string
}

// OnLoad receives every load result. On failure doc is nil and the
// previous document stays mounted.
type OnLoad func(doc *loader.Document, err error)

// Watcher reloads one document. Current, Reload and the OnLoad callback
// belong to the UI thread; Close may be called from any goroutine.
type Watcher struct {
	loader   *loader.Loader
	path     string
	files    []string
	onLoad   OnLoad
	clock    clock.Clock
	debounce time.Duration
	fs       *fsnotify.Watcher
	done     chan struct{}

	mu      sync.Mutex
	timer   clock.Timer
	closed  bool
	reloads int

	current *loader.Document
}

// Watch loads path through l, hands the result to onLoad, and keeps
// reloading it until Close. It fails when the file cannot be watched; a
// document that fails to load is reported through onLoad and retried on
// the next change.
func Watch(l *loader.Loader, path string, opts Options, onLoad OnLoad) (*Watcher, error) {
	const op = "hotreload.Watch"
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.New(errors.KindRuntime, op, err).At(path)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Clock == nil {
		opts.Clock = clock.Default()
	}
	if onLoad == nil {
		onLoad = func(*loader.Document, error) {}
	}
	files := []string{abs}
	for _, p := range opts.Extra {
		if a, err := filepath.Abs(p); err == nil && !slices.Contains(files, a) {
			files = append(files, a)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.New(errors.KindRuntime, op, err).At(abs)
	}
	var dirs []string
	for _, f := range files {
		dir := filepath.Dir(f)
		if slices.Contains(dirs, dir) {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, errors.New(errors.KindRuntime, op, err).At(dir)
		}
		dirs = append(dirs, dir)
	}

	w := &Watcher{
		loader:   l,
		path:     abs,
		files:    files,
		onLoad:   onLoad,
		clock:    opts.Clock,
		debounce: opts.Debounce,
		fs:       fsw,
		done:     make(chan struct{}),
	}
	w.Reload()
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if w.relevant(ev) {
				w.schedule()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			errors.WarnAt("hotreload.Watch", w.path, "%v", err)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	return slices.Contains(w.files, filepath.Clean(ev.Name))
}

// schedule restarts the debounce window.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = w.clock.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		w.timer = nil
		closed := w.closed
		w.mu.Unlock()
		if !closed {
			w.Reload()
		}
	})
}

// Reload loads the document now. On success the new document replaces the
// current one, which is unmounted after onLoad returns.
func (w *Watcher) Reload() {
	doc, err := w.loader.LoadFile(w.path)
	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()
	if err != nil {
		errors.WarnAt("hotreload.Reload", w.path, "keeping previous document: %v", err)
		w.onLoad(nil, err)
		return
	}
	prev := w.current
	w.current = doc
	w.onLoad(doc, nil)
	if prev != nil {
		prev.Unmount()
	}
}

// Current returns the last document that loaded successfully, or nil.
func (w *Watcher) Current() *loader.Document { return w.current }

// Reloads reports how many loads have run, including the initial one.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

// Path returns the absolute path of the watched document.
func (w *Watcher) Path() string { return w.path }

// Close stops watching and cancels a pending reload. The current document
// stays mounted.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()
	err := w.fs.Close()
	<-w.done
	return err
}
