package testing

import (
	"testing"
	"time"

	"github.com/go-drift/declui/pkg/errors"
)

func TestFakeClock_Advance(t *testing.T) {
	clk := NewFakeClock()
	start := clk.Now()

	clk.Advance(100 * time.Millisecond)
	elapsed := clk.Now().Sub(start)

	if elapsed != 100*time.Millisecond {
		t.Errorf("expected 100ms elapsed, got %v", elapsed)
	}
}

func TestFakeClock_Set(t *testing.T) {
	clk := NewFakeClock()
	target := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	clk.Set(target)
	if !clk.Now().Equal(target) {
		t.Errorf("expected %v, got %v", target, clk.Now())
	}
}

func TestFakeClock_TimersFireInOrder(t *testing.T) {
	clk := NewFakeClock()
	var got []string
	clk.AfterFunc(30*time.Millisecond, func() { got = append(got, "c") })
	clk.AfterFunc(10*time.Millisecond, func() { got = append(got, "a") })
	clk.AfterFunc(10*time.Millisecond, func() { got = append(got, "b") })

	clk.Advance(20 * time.Millisecond)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("fired = %v, want [a b]", got)
	}
	clk.Advance(10 * time.Millisecond)
	if len(got) != 3 || got[2] != "c" {
		t.Fatalf("fired = %v, want [a b c]", got)
	}
}

func TestFakeClock_NestedTimers(t *testing.T) {
	clk := NewFakeClock()
	start := clk.Now()
	var at []time.Duration
	var tick func()
	tick = func() {
		at = append(at, clk.Now().Sub(start))
		if len(at) < 3 {
			clk.AfterFunc(10*time.Millisecond, tick)
		}
	}
	clk.AfterFunc(10*time.Millisecond, tick)

	clk.Advance(100 * time.Millisecond)
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}
	if len(at) != len(want) {
		t.Fatalf("ticks = %v, want %v", at, want)
	}
	for i := range want {
		if at[i] != want[i] {
			t.Errorf("tick %d at %v, want %v", i, at[i], want[i])
		}
	}
	if clk.Now().Sub(start) != 100*time.Millisecond {
		t.Errorf("clock at %v, want 100ms", clk.Now().Sub(start))
	}
}

func TestFakeClock_Stop(t *testing.T) {
	clk := NewFakeClock()
	fired := false
	timer := clk.AfterFunc(time.Second, func() { fired = true })
	if !timer.Stop() {
		t.Error("Stop() = false, want true")
	}
	if timer.Stop() {
		t.Error("second Stop() = true, want false")
	}
	clk.Advance(2 * time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
	if clk.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", clk.Pending())
	}
}

func TestRecordErrors(t *testing.T) {
	rec := RecordErrors(t)
	errors.Warn("test", "first")
	errors.Report(errors.Newf(errors.KindRuntime, "test", "second"))

	if len(rec.Warnings()) != 1 {
		t.Errorf("warnings = %d, want 1", len(rec.Warnings()))
	}
	if len(rec.Errors()) != 1 {
		t.Errorf("errors = %d, want 1", len(rec.Errors()))
	}
	rec.Reset()
	if len(rec.Errors()) != 0 {
		t.Errorf("errors after Reset = %d, want 0", len(rec.Errors()))
	}
}
