package state

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-drift/declui/pkg/errors"
	uitest "github.com/go-drift/declui/pkg/testing"
)

func TestCreateStateDuplicateKey(t *testing.T) {
	m := NewManager()
	if _, err := CreateState(m, "counter", 0); err != nil {
		t.Fatal(err)
	}
	_, err := CreateState(m, "counter", 1)
	if !errors.Is(err, errors.ErrDuplicateKey) {
		t.Errorf("second CreateState error = %v, want ErrDuplicateKey", err)
	}
	if errors.KindOf(err) != errors.KindStateManagement {
		t.Errorf("KindOf = %v, want state management", errors.KindOf(err))
	}
}

func TestGetState(t *testing.T) {
	m := NewManager()
	CreateState(m, "name", "ada")

	s, err := GetState[string](m, "name")
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Get(); got != "ada" {
		t.Errorf("Get() = %q, want %q", got, "ada")
	}
	if _, err := GetState[int](m, "name"); !errors.Is(err, errors.ErrTypeMismatch) {
		t.Errorf("GetState[int] error = %v, want ErrTypeMismatch", err)
	}
	if _, err := GetState[string](m, "missing"); !errors.Is(err, errors.ErrMissingKey) {
		t.Errorf("GetState(missing) error = %v, want ErrMissingKey", err)
	}
}

func TestSubscribersRunInRegistrationOrder(t *testing.T) {
	m := NewManager()
	s, _ := CreateState(m, "x", 0)

	var got []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		s.Subscribe(func(v int) { got = append(got, fmt.Sprintf("%s=%d", name, v)) })
	}
	s.Set(1)
	s.Set(1) // unchanged, no notification

	want := []string{"a=1", "b=1", "c=1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("notification order mismatch (-want +got):\n%s", diff)
	}
}

func TestUnsubscribe(t *testing.T) {
	m := NewManager()
	s, _ := CreateState(m, "x", 0)
	calls := 0
	tok := s.Subscribe(func(int) { calls++ })
	s.Set(1)
	if !s.Unsubscribe(tok) {
		t.Fatal("Unsubscribe returned false")
	}
	if s.Unsubscribe(tok) {
		t.Error("second Unsubscribe returned true")
	}
	s.Set(2)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestComputedTrackedDependencies(t *testing.T) {
	m := NewManager()
	counter, _ := CreateState(m, "counter", 0)
	label, err := CreateComputed(m, "label", func() string {
		return fmt.Sprintf("Count: %d", counter.Get())
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := label.Get(); got != "Count: 0" {
		t.Errorf("seeded label = %q, want %q", got, "Count: 0")
	}
	if diff := cmp.Diff([]string{"counter"}, m.Dependencies("label")); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}

	var seen []string
	label.Subscribe(func(v string) { seen = append(seen, v) })
	counter.Set(1)
	if got := label.Get(); got != "Count: 1" {
		t.Errorf("label after Set = %q, want %q", got, "Count: 1")
	}
	if diff := cmp.Diff([]string{"Count: 1"}, seen); diff != "" {
		t.Errorf("label notifications mismatch (-want +got):\n%s", diff)
	}
	if err := label.Set("nope"); err == nil {
		t.Error("Set on computed state should fail")
	}
}

func TestComputedExplicitDependencies(t *testing.T) {
	m := NewManager()
	a, _ := CreateState(m, "a", 1)
	b, _ := CreateState(m, "b", 10)
	sum, err := CreateComputed(m, "sum", func() int {
		return a.Get() + b.Get()
	}, "a")
	if err != nil {
		t.Fatal(err)
	}

	b.Set(20) // not a declared dependency
	if got := sum.Get(); got != 11 {
		t.Errorf("sum after b change = %d, want 11", got)
	}
	a.Set(2)
	if got := sum.Get(); got != 22 {
		t.Errorf("sum after a change = %d, want 22", got)
	}

	if _, err := CreateComputed(m, "bad", func() int { return 0 }, "missing"); !errors.Is(err, errors.ErrMissingKey) {
		t.Errorf("explicit missing dependency error = %v, want ErrMissingKey", err)
	}
}

func TestComputedTopologicalOrder(t *testing.T) {
	m := NewManager()
	x, _ := CreateState(m, "x", 1)

	var order []string
	CreateComputed(m, "b", func() int { order = append(order, "b"); return x.Get() * 2 })
	CreateComputed(m, "a", func() int { order = append(order, "a"); return x.Get() + 1 })
	bState, _ := GetState[int](m, "b")
	aState, _ := GetState[int](m, "a")
	CreateComputed(m, "c", func() int { order = append(order, "c"); return aState.Get() + bState.Get() })

	order = nil
	x.Set(2)
	want := []string{"a", "b", "c"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("recompute order mismatch (-want +got):\n%s", diff)
	}
	c, _ := GetState[int](m, "c")
	if got := c.Get(); got != 7 {
		t.Errorf("c = %d, want 7", got)
	}
}

func TestReentrantSetIsQueued(t *testing.T) {
	m := NewManager()
	a, _ := CreateState(m, "a", 0)
	b, _ := CreateState(m, "b", 0)

	var log []string
	a.Subscribe(func(v int) {
		log = append(log, fmt.Sprintf("a1=%d", v))
		b.Set(v * 10)
		log = append(log, "a1 done")
	})
	a.Subscribe(func(v int) { log = append(log, fmt.Sprintf("a2=%d", v)) })
	b.Subscribe(func(v int) { log = append(log, fmt.Sprintf("b=%d", v)) })

	a.Set(1)
	want := []string{"a1=1", "a1 done", "a2=1", "b=10"}
	if diff := cmp.Diff(want, log); diff != "" {
		t.Errorf("reentrant ordering mismatch (-want +got):\n%s", diff)
	}
	if got := b.Get(); got != 10 {
		t.Errorf("b = %d, want 10", got)
	}
}

func TestNoDoubleNotificationWithinOuterSet(t *testing.T) {
	m := NewManager()
	a, _ := CreateState(m, "a", 0)
	calls := 0
	a.Subscribe(func(v int) {
		calls++
		if v < 5 {
			a.Set(v + 1)
		}
	})
	a.Set(1)
	if calls != 1 {
		t.Errorf("subscriber calls = %d, want 1", calls)
	}
	if got := a.Get(); got != 2 {
		t.Errorf("a = %d, want 2", got)
	}
}

func TestSubscriberPanicIsIsolated(t *testing.T) {
	rec := uitest.RecordErrors(t)
	m := NewManager()
	s, _ := CreateState(m, "x", 0)
	ran := false
	s.Subscribe(func(int) { panic("boom") })
	s.Subscribe(func(int) { ran = true })

	s.Set(1)
	if !ran {
		t.Error("subscriber after a panicking one did not run")
	}
	if len(rec.Panics()) != 1 {
		t.Errorf("recorded panics = %d, want 1", len(rec.Panics()))
	}
}

func TestComputeFailureKeepsPreviousValue(t *testing.T) {
	rec := uitest.RecordErrors(t)
	m := NewManager()
	x, _ := CreateState(m, "x", 1)
	half, _ := CreateComputed(m, "half", func() int {
		if x.Get() == 0 {
			panic("division by zero")
		}
		return 10 / x.Get()
	})

	var failed []string
	m.OnError(func(key string, err error) { failed = append(failed, key) })

	x.Set(0)
	if got := half.Get(); got != 10 {
		t.Errorf("half after failure = %d, want previous value 10", got)
	}
	if diff := cmp.Diff([]string{"half"}, failed); diff != "" {
		t.Errorf("OnError keys mismatch (-want +got):\n%s", diff)
	}
	if len(rec.Errors()) != 1 {
		t.Errorf("reported errors = %d, want 1", len(rec.Errors()))
	}

	x.Set(5)
	if got := half.Get(); got != 2 {
		t.Errorf("half after recovery = %d, want 2", got)
	}
}

func TestBatch(t *testing.T) {
	m := NewManager()
	a, _ := CreateState(m, "a", 0)
	b, _ := CreateState(m, "b", 0)
	sum, _ := CreateComputed(m, "sum", func() int { return a.Get() + b.Get() })

	var sums []int
	sum.Subscribe(func(v int) { sums = append(sums, v) })
	m.Batch(func() {
		a.Set(1)
		b.Set(2)
		if len(sums) != 0 {
			t.Error("notification ran inside Batch")
		}
	})
	if diff := cmp.Diff([]int{3}, sums); diff != "" {
		t.Errorf("batched notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestValidator(t *testing.T) {
	m := NewManager()
	age, _ := CreateState(m, "age", 30)
	err := SetValidator(m, "age", func(v int) error {
		if v < 0 {
			return fmt.Errorf("negative age")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := age.Set(-1); err == nil {
		t.Error("Set(-1) should be rejected")
	}
	if got := age.Get(); got != 30 {
		t.Errorf("age = %d after rejected set, want 30", got)
	}
}

func TestUntypedAccess(t *testing.T) {
	m := NewManager()
	CreateState(m, "n", int64(1))
	CreateState(m, "flag", false)

	if err := m.SetValue("n", 5); err != nil {
		t.Fatalf("SetValue numeric conversion: %v", err)
	}
	if v, _ := m.Value("n"); v != int64(5) {
		t.Errorf("Value(n) = %#v, want int64(5)", v)
	}
	if err := m.SetValue("flag", "yes"); !errors.Is(err, errors.ErrTypeMismatch) {
		t.Errorf("SetValue(flag, string) error = %v, want ErrTypeMismatch", err)
	}

	var got []any
	if _, err := m.SubscribeKey("flag", func(v any) { got = append(got, v) }); err != nil {
		t.Fatal(err)
	}
	m.SetValue("flag", true)
	if diff := cmp.Diff([]any{true}, got); diff != "" {
		t.Errorf("SubscribeKey values mismatch (-want +got):\n%s", diff)
	}
}

func TestTrack(t *testing.T) {
	m := NewManager()
	a, _ := CreateState(m, "a", 1)
	CreateState(m, "b", 2)
	keys := m.Track(func() {
		a.Get()
		m.Value("b")
		a.Get()
	})
	if diff := cmp.Diff([]string{"a", "b"}, keys); diff != "" {
		t.Errorf("tracked keys mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoveAndClear(t *testing.T) {
	m := NewManager()
	x, _ := CreateState(m, "x", 1)
	CreateComputed(m, "y", func() int { return x.Get() })

	if err := m.Remove("x"); err == nil {
		t.Error("Remove of a cell with dependents should fail")
	}
	if err := m.Remove("y"); err != nil {
		t.Fatal(err)
	}
	if err := m.Remove("x"); err != nil {
		t.Fatal(err)
	}
	if err := x.Set(2); !errors.Is(err, errors.ErrMissingKey) {
		t.Errorf("Set on removed cell error = %v, want ErrMissingKey", err)
	}

	CreateState(m, "z", 0)
	m.Clear()
	if len(m.Keys()) != 0 {
		t.Errorf("Keys after Clear = %v, want none", m.Keys())
	}
}
