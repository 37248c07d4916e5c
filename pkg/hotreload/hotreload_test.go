package hotreload

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-drift/declui/pkg/loader"
	"github.com/go-drift/declui/pkg/registry"
	"github.com/go-drift/declui/pkg/state"
	uitest "github.com/go-drift/declui/pkg/testing"
	"github.com/go-drift/declui/pkg/toolkit/headless"
)

const debounce = 50 * time.Millisecond

type fixture struct {
	dir   string
	path  string
	a     *headless.Adaptor
	clock *uitest.FakeClock
	rec   *uitest.ErrorRecorder
	loads []error
}

func newFixture(t *testing.T, text string) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:   dir,
		path:  filepath.Join(dir, "ui.json"),
		a:     headless.New(),
		clock: uitest.NewFakeClock(),
		rec:   uitest.RecordErrors(t),
	}
	f.write(t, label(text))
	return f
}

func label(text string) string {
	return `{"type": "Label", "properties": {"text": "` + text + `"}}`
}

func (f *fixture) write(t *testing.T, src string) {
	t.Helper()
	if err := os.WriteFile(f.path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) watch(t *testing.T) *Watcher {
	t.Helper()
	opts := loader.DefaultOptions()
	opts.Registry = registry.New()
	opts.State = state.NewManager()
	opts.Clock = f.clock
	l := loader.New(f.a, opts)
	w, err := Watch(l, f.path, Options{Debounce: debounce, Clock: f.clock}, func(_ *loader.Document, err error) {
		f.loads = append(f.loads, err)
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func text(w *Watcher) string {
	doc := w.Current()
	if doc == nil || doc.Primitive() == nil {
		return ""
	}
	return doc.Primitive().(*headless.Primitive).Property("text").String()
}

// settle advances the fake clock until cond holds or a second passes.
func settle(t *testing.T, clk *uitest.FakeClock, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		clk.Advance(debounce)
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func TestInitialLoad(t *testing.T) {
	f := newFixture(t, "one")
	w := f.watch(t)
	if got := text(w); got != "one" {
		t.Errorf("text = %q, want one", got)
	}
	if len(f.loads) != 1 || f.loads[0] != nil {
		t.Errorf("loads = %v", f.loads)
	}
	if w.Reloads() != 1 {
		t.Errorf("Reloads() = %d, want 1", w.Reloads())
	}
}

func TestReloadOnWrite(t *testing.T) {
	f := newFixture(t, "one")
	w := f.watch(t)
	first := w.Current().Primitive().(*headless.Primitive)

	f.write(t, label("two"))
	settle(t, f.clock, func() bool { return text(w) == "two" })

	if !first.Destroyed() {
		t.Error("previous document still mounted")
	}
	if n := len(f.a.Live("Label")); n != 1 {
		t.Errorf("%d live labels, want 1", n)
	}
}

func TestFailedReloadKeepsDocument(t *testing.T) {
	f := newFixture(t, "one")
	w := f.watch(t)

	f.write(t, `{"type": `)
	settle(t, f.clock, func() bool { return len(f.loads) > 1 })

	if f.loads[len(f.loads)-1] == nil {
		t.Error("broken document reported as loaded")
	}
	if got := text(w); got != "one" {
		t.Errorf("text = %q, want the previous document", got)
	}
	if len(f.rec.Warnings()) == 0 {
		t.Error("failed reload not logged")
	}

	f.write(t, label("three"))
	settle(t, f.clock, func() bool { return text(w) == "three" })
}

func TestDebounceCoalesces(t *testing.T) {
	f := newFixture(t, "one")
	w := f.watch(t)

	w.schedule()
	f.clock.Advance(debounce / 2)
	w.schedule()
	w.schedule()
	if n := f.clock.Pending(); n != 1 {
		t.Fatalf("Pending() = %d, want 1", n)
	}
	f.clock.Advance(debounce / 2)
	if w.Reloads() != 1 {
		t.Errorf("reload ran before the window closed")
	}
	f.clock.Advance(debounce / 2)
	if w.Reloads() != 2 {
		t.Errorf("Reloads() = %d, want 2", w.Reloads())
	}
}

func TestCloseCancelsPendingReload(t *testing.T) {
	f := newFixture(t, "one")
	w := f.watch(t)
	w.schedule()
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(time.Second)
	if w.Reloads() != 1 {
		t.Errorf("Reloads() = %d after Close, want 1", w.Reloads())
	}
	if text(w) != "one" {
		t.Error("Close unmounted the current document")
	}
	w.schedule()
	if f.clock.Pending() != 0 {
		t.Error("schedule after Close armed a timer")
	}
}

func TestExtraFiles(t *testing.T) {
	f := newFixture(t, "")
	part := filepath.Join(f.dir, "part.json")
	if err := os.WriteFile(part, []byte(`{"type": "Button", "properties": {"text": "a"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	f.write(t, `{"type": "Widget", "children": [{"$include": "./part.json"}]}`)

	opts := loader.DefaultOptions()
	opts.Registry = registry.New()
	opts.State = state.NewManager()
	w, err := Watch(loader.New(f.a, opts), f.path, Options{Debounce: debounce, Clock: f.clock, Extra: []string{part}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	buttonText := func() string {
		kids := w.Current().Primitive().(*headless.Primitive).Children
		if len(kids) != 1 {
			return ""
		}
		return kids[0].Property("text").String()
	}
	if got := buttonText(); got != "a" {
		t.Fatalf("button text = %q, want a", got)
	}
	if err := os.WriteFile(part, []byte(`{"type": "Button", "properties": {"text": "b"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	settle(t, f.clock, func() bool { return buttonText() == "b" })
}
