package core_test

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-drift/declui/pkg/core"
	"github.com/go-drift/declui/pkg/dispatch"
	"github.com/go-drift/declui/pkg/toolkit/headless"
	"github.com/go-drift/declui/pkg/value"
)

func (f *fixture) boundaryConfig(strategy core.Strategy) core.BoundaryConfig {
	return core.BoundaryConfig{
		Strategy:   strategy,
		RetryDelay: 10 * time.Millisecond,
		Clock:      f.clock,
		Manager:    core.NewBoundaryManager(),
	}
}

// flaky returns a child factory that fails until call number succeedAt.
func (f *fixture) flaky(succeedAt int, calls *int) func() (core.Node, error) {
	return func() (core.Node, error) {
		*calls++
		if succeedAt <= 0 || *calls < succeedAt {
			return nil, fmt.Errorf("attempt %d failed", *calls)
		}
		return f.builder("Label").Property("text", "recovered"), nil
	}
}

func labelContains(f *fixture, sub string) bool {
	for _, p := range f.a.Live("Label") {
		if strings.Contains(p.Property("text").String(), sub) {
			return true
		}
	}
	return false
}

func checkExclusive(t *testing.T, b *core.Boundary) {
	t.Helper()
	if b.ShowingFallback() == b.ChildVisible() {
		t.Errorf("ShowingFallback() = %v, ChildVisible() = %v; exactly one must hold", b.ShowingFallback(), b.ChildVisible())
	}
}

func TestBoundaryRetryRecovers(t *testing.T) {
	f := newFixture(t)
	calls := 0
	cfg := f.boundaryConfig(core.Retry)
	cfg.MaxRetryAttempts = 3
	cfg.ChildFactory = f.flaky(3, &calls)
	b := core.NewBoundary(f.a, f.builder("Label").Property("text", "initial"), cfg)
	if _, err := b.Build(); err != nil {
		t.Fatal(err)
	}

	b.CatchError("render failed", "Label")
	if !b.HasError() || !b.RetryPending() {
		t.Fatalf("HasError() = %v, RetryPending() = %v; want true, true", b.HasError(), b.RetryPending())
	}
	f.clock.Advance(30 * time.Millisecond)

	if b.HasError() {
		t.Errorf("HasError() = true after recovery: %v", b.LastError().Message)
	}
	if got := b.Stats().RetryAttempts; got != 3 {
		t.Errorf("RetryAttempts = %d, want 3", got)
	}
	if got := b.Stats().Recoveries; got != 1 {
		t.Errorf("Recoveries = %d, want 1", got)
	}
	if !b.ChildVisible() {
		t.Error("child not visible after recovery")
	}
	if got := text(t, f.a, b.Child().Primitive()); got != "recovered" {
		t.Errorf("child text = %q, want recovered", got)
	}
	checkExclusive(t, b)
}

func TestBoundaryRetryCap(t *testing.T) {
	f := newFixture(t)
	calls := 0
	cfg := f.boundaryConfig(core.Retry)
	cfg.MaxRetryAttempts = 4
	cfg.ChildFactory = f.flaky(0, &calls)
	b := core.NewBoundary(f.a, f.builder("Label"), cfg)
	b.Build()

	b.CatchError("broken", "Label")
	f.clock.Advance(time.Second)

	if calls != 4 {
		t.Errorf("factory ran %d times, want 4", calls)
	}
	if !b.ShowingFallback() {
		t.Error("fallback not shown after retries were exhausted")
	}
	if b.RetryPending() {
		t.Error("retry still pending after exhaustion")
	}
	checkExclusive(t, b)

	b.CatchError("still broken", "Label")
	f.clock.Advance(time.Second)
	if calls != 4 {
		t.Errorf("factory ran %d times after exhaustion, want 4", calls)
	}
}

func TestBoundaryDefaultFallback(t *testing.T) {
	f := newFixture(t)
	calls := 0
	cfg := f.boundaryConfig(core.ShowFallback)
	cfg.ChildFactory = f.flaky(1, &calls)
	b := core.NewBoundary(f.a, f.builder("Label"), cfg)
	b.Build()

	b.CatchError("disk on fire", "Label")
	if !b.ShowingFallback() {
		t.Fatal("fallback not shown")
	}
	checkExclusive(t, b)
	if f.a.Find("Label", "text", value.String(core.FallbackTitle)) == nil {
		t.Error("fallback title missing")
	}
	if !labelContains(f, "disk on fire") {
		t.Error("fallback message missing")
	}
	button := f.a.Find("Button", "text", value.String(core.FallbackButton))
	if button == nil {
		t.Fatal("Try Again button missing")
	}

	f.a.Emit(button, "clicked")
	if b.ShowingFallback() || b.HasError() {
		t.Errorf("after Try Again: ShowingFallback() = %v, HasError() = %v", b.ShowingFallback(), b.HasError())
	}
	if !button.Destroyed() {
		t.Error("fallback was not released")
	}
	checkExclusive(t, b)
}

func TestBoundaryShowErrorDetails(t *testing.T) {
	f := newFixture(t)
	cfg := f.boundaryConfig(core.ShowFallback)
	cfg.ShowErrorDetails = true
	b := core.NewBoundary(f.a, f.builder("Label"), cfg)
	b.Build()
	b.CatchError("oops", "Chart")

	found := false
	for _, p := range f.a.Live("Label") {
		if p.Property(core.ClassProperty).String() == "error-details" {
			found = true
		}
	}
	if !found {
		t.Error("details label missing with ShowErrorDetails")
	}
}

func TestBoundaryCustomFallback(t *testing.T) {
	f := newFixture(t)
	var got core.ErrorInfo
	cfg := f.boundaryConfig(core.ShowFallback)
	cfg.FallbackFactory = func(info core.ErrorInfo) (core.Node, error) {
		got = info
		return f.builder("Label").Property("text", "custom"), nil
	}
	b := core.NewBoundary(f.a, f.builder("Label"), cfg)
	b.Build()
	b.CatchError("bad", "Table")

	if got.Component != "Table" || got.Message == "" {
		t.Errorf("fallback factory got %+v", got)
	}
	if f.a.Find("Label", "text", value.String("custom")) == nil {
		t.Error("custom fallback not shown")
	}
}

func TestBoundaryFailingFallbackFactory(t *testing.T) {
	f := newFixture(t)
	fallbackCalls := 0
	cfg := f.boundaryConfig(core.ShowFallback)
	cfg.FallbackFactory = func(core.ErrorInfo) (core.Node, error) {
		fallbackCalls++
		panic("fallback bug")
	}
	b := core.NewBoundary(f.a, f.builder("Label"), cfg)
	b.Build()
	b.CatchError("first", "Label")

	if fallbackCalls != 1 {
		t.Errorf("fallback factory ran %d times, want 1", fallbackCalls)
	}
	if got := b.Stats().TotalErrors; got != 2 {
		t.Errorf("TotalErrors = %d, want 2 (the error and the fallback failure)", got)
	}
	if f.a.Find("Label", "text", value.String(core.FallbackTitle)) == nil {
		t.Error("default fallback not used after the custom one failed")
	}
	checkExclusive(t, b)
}

func TestBoundaryIgnore(t *testing.T) {
	f := newFixture(t)
	b := core.NewBoundary(f.a, f.builder("Label"), f.boundaryConfig(core.Ignore))
	b.Build()
	for i := range 150 {
		b.CatchError(fmt.Sprintf("error %d", i), "Label")
	}
	if !b.ChildVisible() || b.ShowingFallback() {
		t.Error("Ignore must keep the child visible")
	}
	h := b.History()
	if len(h) != core.MaxErrorHistory {
		t.Fatalf("len(History()) = %d, want %d", len(h), core.MaxErrorHistory)
	}
	if !strings.HasSuffix(h[0].Message, "error 50") || !strings.HasSuffix(h[len(h)-1].Message, "error 149") {
		t.Errorf("History() spans %q..%q, want error 50..error 149", h[0].Message, h[len(h)-1].Message)
	}
	if got := b.Stats().TotalErrors; got != 150 {
		t.Errorf("TotalErrors = %d, want 150", got)
	}
}

func TestBoundaryPropagate(t *testing.T) {
	f := newFixture(t)
	inner := core.NewBoundary(f.a, f.builder("Label"), f.boundaryConfig(core.Propagate))
	outer := core.NewBoundary(f.a, inner, f.boundaryConfig(core.ShowFallback))
	if _, err := outer.Build(); err != nil {
		t.Fatal(err)
	}

	if !inner.CatchError("deep failure", "Label") {
		t.Error("CatchError() = false with a parent boundary")
	}
	if !outer.ShowingFallback() {
		t.Error("parent did not show its fallback")
	}
	if inner.ShowingFallback() {
		t.Error("propagating boundary showed a fallback")
	}

	orphan := core.NewBoundary(f.a, f.builder("Label"), f.boundaryConfig(core.Propagate))
	orphan.Build()
	if orphan.CatchError("nobody home", "Label") {
		t.Error("CatchError() = true with no parent under Propagate")
	}
}

func TestBoundaryRestart(t *testing.T) {
	f := newFixture(t)
	calls := 0
	cfg := f.boundaryConfig(core.Restart)
	cfg.ChildFactory = f.flaky(1, &calls)
	b := core.NewBoundary(f.a, f.builder("Label").Property("text", "old"), cfg)
	b.Build()
	old := b.Child().Primitive().(*headless.Primitive)

	b.CatchError("stale", "Label")
	if calls != 1 || b.HasError() {
		t.Errorf("calls = %d, HasError() = %v; want 1, false", calls, b.HasError())
	}
	if !old.Destroyed() {
		t.Error("old child not released")
	}

	failing := 0
	cfg = f.boundaryConfig(core.Restart)
	cfg.ChildFactory = f.flaky(0, &failing)
	b2 := core.NewBoundary(f.a, f.builder("Label"), cfg)
	b2.Build()
	b2.CatchError("stale", "Label")
	if failing != 1 || !b2.ShowingFallback() {
		t.Errorf("failing restart: calls = %d, ShowingFallback() = %v; want 1, true", failing, b2.ShowingFallback())
	}
}

func TestBoundaryResetCancelsRetry(t *testing.T) {
	f := newFixture(t)
	calls := 0
	cfg := f.boundaryConfig(core.Retry)
	cfg.ChildFactory = f.flaky(1, &calls)
	b := core.NewBoundary(f.a, f.builder("Label"), cfg)
	b.Build()

	b.CatchError("transient", "Label")
	b.Reset()
	f.clock.Advance(time.Second)
	if calls != 0 {
		t.Errorf("factory ran %d times after Reset, want 0", calls)
	}
	if b.HasError() || b.RetryPending() {
		t.Errorf("HasError() = %v, RetryPending() = %v after Reset", b.HasError(), b.RetryPending())
	}
	checkExclusive(t, b)
}

func TestBoundaryCatchesEventPanic(t *testing.T) {
	f := newFixture(t)
	var got []core.ErrorInfo
	cfg := f.boundaryConfig(core.ShowFallback)
	cfg.OnError = func(info core.ErrorInfo) { got = append(got, info) }

	root := f.builder("Widget").Boundary(cfg, "Button", func(b *core.Builder) {
		b.Property("text", "explode").On("clicked", func() { panic("kaboom") })
	})
	if _, err := root.Build(); err != nil {
		t.Fatal(err)
	}
	button := f.a.Find("Button", "text", value.String("explode"))
	f.a.Emit(button, "clicked")

	if len(got) != 1 || got[0].Component != "Button" {
		t.Fatalf("OnError saw %+v, want one error from Button", got)
	}
	if button.Visible() {
		t.Error("failed child still visible")
	}
	if f.a.Find("Label", "text", value.String(core.FallbackTitle)) == nil {
		t.Error("fallback not shown")
	}
}

func TestBoundaryChildBuildFailure(t *testing.T) {
	f := newFixture(t)
	f.a.FailCreation("Chart", fmt.Errorf("no GPU"))
	b := core.NewBoundary(f.a, f.builder("Chart"), f.boundaryConfig(core.ShowFallback))
	if _, err := b.Build(); err != nil {
		t.Fatalf("Build() = %v, want the boundary to absorb the failure", err)
	}
	if !b.HasError() || !b.ShowingFallback() {
		t.Errorf("HasError() = %v, ShowingFallback() = %v; want true, true", b.HasError(), b.ShowingFallback())
	}
}

func TestBoundaryManagerConcurrentReports(t *testing.T) {
	m := core.NewBoundaryManager()
	seen := 0
	m.OnError(func(core.ErrorInfo) { seen++ })

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				m.Report(core.ErrorInfo{Component: fmt.Sprintf("worker-%d", w)})
			}
		}()
	}
	wg.Wait()

	if got := m.TotalErrors(); got != 800 {
		t.Errorf("TotalErrors() = %d, want 800", got)
	}
	if seen != 0 {
		t.Error("callbacks ran on the reporting goroutines")
	}
	if n := m.Flush(); n != 800 || seen != 800 {
		t.Errorf("Flush() = %d, seen = %d; want 800, 800", n, seen)
	}
	if got := m.ErrorCounts()["worker-3"]; got != 100 {
		t.Errorf("ErrorCounts()[worker-3] = %d, want 100", got)
	}
	if got := len(m.Recent()); got != core.MaxErrorHistory {
		t.Errorf("len(Recent()) = %d, want %d", got, core.MaxErrorHistory)
	}
}

func TestBoundaryManagerDispatch(t *testing.T) {
	q := dispatch.NewQueue()
	prev := dispatch.RegisterDispatch(q.Post)
	t.Cleanup(func() { dispatch.RegisterDispatch(prev) })

	m := core.NewBoundaryManager()
	seen := 0
	remove := m.OnError(func(core.ErrorInfo) { seen++ })
	m.Report(core.ErrorInfo{Component: "x"})
	if q.Len() != 1 || seen != 0 {
		t.Fatalf("queue len = %d, seen = %d; want 1, 0", q.Len(), seen)
	}
	q.Drain()
	if seen != 1 {
		t.Errorf("seen = %d after Drain, want 1", seen)
	}

	remove()
	m.Report(core.ErrorInfo{Component: "x"})
	q.Drain()
	if seen != 1 {
		t.Errorf("seen = %d after removing the callback, want 1", seen)
	}
}

func TestBoundaryRegistersWithManager(t *testing.T) {
	f := newFixture(t)
	cfg := f.boundaryConfig(core.ShowFallback)
	b := core.NewBoundary(f.a, f.builder("Label"), cfg)
	b.Build()
	if got := cfg.Manager.Boundaries(); got != 1 {
		t.Errorf("Boundaries() = %d, want 1", got)
	}
	b.CatchError("x", "Label")
	if got := cfg.Manager.TotalErrors(); got != 1 {
		t.Errorf("TotalErrors() = %d, want 1", got)
	}
	b.Unmount()
	if got := cfg.Manager.Boundaries(); got != 0 {
		t.Errorf("Boundaries() after Unmount = %d, want 0", got)
	}
}

func TestBoundaryGlobalFallbackBuilder(t *testing.T) {
	f := newFixture(t)
	if core.GetFallbackBuilder() == nil {
		t.Fatal("GetFallbackBuilder() = nil before any builder is installed")
	}
	var seen core.ErrorInfo
	prev := core.SetFallbackBuilder(func(b *core.Boundary, info core.ErrorInfo) core.Node {
		seen = info
		return f.builder("Label").Property("text", "global fallback")
	})
	if prev == nil {
		t.Fatal("SetFallbackBuilder returned a nil previous builder")
	}

	b := core.NewBoundary(f.a, f.builder("Label"), f.boundaryConfig(core.ShowFallback))
	b.Build()
	b.CatchError("bad row", "Table")
	if seen.Component != "Table" {
		t.Errorf("builder saw component %q, want Table", seen.Component)
	}
	if f.a.Find("Label", "text", value.String("global fallback")) == nil {
		t.Error("installed fallback builder was not used")
	}

	core.SetFallbackBuilder(nil)
	b2 := core.NewBoundary(f.a, f.builder("Label"), f.boundaryConfig(core.ShowFallback))
	b2.Build()
	b2.CatchError("again", "Table")
	if f.a.Find("Button", "text", value.String(core.FallbackButton)) == nil {
		t.Error("SetFallbackBuilder(nil) did not restore the default fallback")
	}
}

func TestBoundaryDebugModeShowsDetails(t *testing.T) {
	f := newFixture(t)
	core.SetDebugMode(true)
	defer core.SetDebugMode(false)

	b := core.NewBoundary(f.a, f.builder("Label"), f.boundaryConfig(core.ShowFallback))
	b.Build()
	b.CatchError("oops", "Chart")
	if !labelContains(f, "in Chart") {
		t.Error("debug mode did not add the details label")
	}
}
