package lifecycle

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/go-drift/declui/pkg/errors"
	uitest "github.com/go-drift/declui/pkg/testing"
	"github.com/go-drift/declui/pkg/value"
)

type prim struct{ name string }

func TestEffectDependencyArray(t *testing.T) {
	uitest.RecordErrors(t)
	l := New(nil)
	var log []string
	l.UseEffect(func() Cleanup {
		log = append(log, "f")
		return func() { log = append(log, "f cleanup") }
	}, value.String("a"))
	l.UseEffect(func() Cleanup {
		log = append(log, "g")
		return func() { log = append(log, "g cleanup") }
	})

	if err := l.Mount(&prim{}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"f", "g"}, log); diff != "" {
		t.Fatalf("mount mismatch (-want +got):\n%s", diff)
	}

	log = nil
	l.Update(Props{}, Props{"a": value.Int(1)})
	want := []string{"f cleanup", "f", "g cleanup", "g"}
	if diff := cmp.Diff(want, log); diff != "" {
		t.Fatalf("first update mismatch (-want +got):\n%s", diff)
	}

	log = nil
	l.Update(Props{"a": value.Int(1)}, Props{"a": value.Int(1)})
	want = []string{"g cleanup", "g"}
	if diff := cmp.Diff(want, log); diff != "" {
		t.Fatalf("second update mismatch (-want +got):\n%s", diff)
	}

	log = nil
	l.Unmount()
	want = []string{"f cleanup", "g cleanup"}
	if diff := cmp.Diff(want, log); diff != "" {
		t.Fatalf("unmount mismatch (-want +got):\n%s", diff)
	}

	m := l.Metrics()
	if m.EffectRuns != m.CleanupCount {
		t.Errorf("effect runs %d != cleanups %d after unmount", m.EffectRuns, m.CleanupCount)
	}
	if m.UpdateCount != 2 || m.EffectCount != 2 {
		t.Errorf("UpdateCount = %d, EffectCount = %d, want 2, 2", m.UpdateCount, m.EffectCount)
	}
}

func TestHookOrderAndPhases(t *testing.T) {
	l := New(nil)
	var log []string
	record := func(name string) Hook {
		return func(ctx *Context) error {
			log = append(log, fmt.Sprintf("%s:%s", name, ctx.Phase))
			return nil
		}
	}
	l.OnMount(record("m1")).OnMount(record("m2"))
	l.OnUpdate(record("u1"))
	l.OnUnmount(record("x1"))
	l.UseEffect(func() Cleanup {
		log = append(log, "effect")
		return nil
	})

	p := &prim{}
	l.Mount(p)
	if l.Phase() != Mounted || l.Primitive() != p {
		t.Errorf("after Mount phase = %v, primitive = %v", l.Phase(), l.Primitive())
	}
	l.Update(nil, Props{"x": value.Int(1)})
	if l.Phase() != Updated {
		t.Errorf("after Update phase = %v, want Updated", l.Phase())
	}
	l.Unmount()
	if l.Phase() != Unmounted || l.Primitive() != nil || l.Mounted() {
		t.Errorf("after Unmount phase = %v, primitive = %v, mounted = %v", l.Phase(), l.Primitive(), l.Mounted())
	}

	want := []string{"m1:Mounted", "m2:Mounted", "effect", "u1:Updated", "effect", "x1:BeforeUnmount"}
	if diff := cmp.Diff(want, log); diff != "" {
		t.Errorf("hook order mismatch (-want +got):\n%s", diff)
	}
}

func TestHookFailureEntersErrorPhase(t *testing.T) {
	rec := uitest.RecordErrors(t)
	l := New(nil)
	ranAfter := false
	var errCtx *Context
	l.OnMount(func(*Context) error { return fmt.Errorf("bad mount") })
	l.OnMount(func(*Context) error { panic("worse mount") })
	l.OnMount(func(*Context) error { ranAfter = true; return nil })
	l.OnError(func(ctx *Context) error {
		errCtx = ctx
		return nil
	})

	if err := l.Mount(&prim{}); err != nil {
		t.Fatalf("Mount returned %v, hooks must not propagate", err)
	}
	if !ranAfter {
		t.Error("hook after failing hooks did not run")
	}
	if l.Phase() != Error {
		t.Errorf("phase = %v, want Error", l.Phase())
	}
	if !l.Mounted() {
		t.Error("lifecycle should still be mounted")
	}
	if len(l.Errors()) != 2 {
		t.Errorf("recorded errors = %d, want 2", len(l.Errors()))
	}
	if errCtx == nil || errCtx.FailedPhase != BeforeMount || errCtx.ErrorMessage == "" {
		t.Errorf("OnError context = %+v", errCtx)
	}
	if len(rec.Errors()) != 1 || len(rec.Panics()) != 1 {
		t.Errorf("reported %d errors and %d panics, want 1 and 1", len(rec.Errors()), len(rec.Panics()))
	}
	for _, err := range rec.Errors() {
		if err.Kind != errors.KindLifecycle {
			t.Errorf("reported kind = %v, want lifecycle", err.Kind)
		}
	}
}

func TestCleanupFailureDoesNotSkipNext(t *testing.T) {
	uitest.RecordErrors(t)
	l := New(nil)
	second := false
	l.UseEffect(func() Cleanup { return func() { panic("cleanup failed") } })
	l.UseEffect(func() Cleanup { return func() { second = true } })
	l.Mount(&prim{})
	l.Unmount()
	if !second {
		t.Error("second cleanup skipped after first failed")
	}
	if len(l.Errors()) != 1 {
		t.Errorf("errors = %d, want 1", len(l.Errors()))
	}
}

func TestMountNilPrimitive(t *testing.T) {
	l := New(nil)
	err := l.Mount(nil)
	if errors.KindOf(err) != errors.KindComponentCreation {
		t.Errorf("Mount(nil) error = %v, want component creation", err)
	}
	if l.Mounted() {
		t.Error("Mounted() = true after failed mount")
	}
}

func TestDestroyedUnmounts(t *testing.T) {
	l := New(nil)
	cleaned := false
	l.UseEffect(func() Cleanup { return func() { cleaned = true } })
	l.Mount(&prim{})
	l.Destroyed()
	if l.Mounted() || !cleaned {
		t.Errorf("after Destroyed mounted = %v, cleaned = %v", l.Mounted(), cleaned)
	}
}

func TestMetricsUseClock(t *testing.T) {
	clk := uitest.NewFakeClock()
	l := New(clk)
	l.OnMount(func(*Context) error {
		clk.Advance(5 * time.Millisecond)
		return nil
	})
	l.Mount(&prim{})
	if got := l.Metrics().MountTime; got != 5*time.Millisecond {
		t.Errorf("MountTime = %v, want 5ms", got)
	}
}
