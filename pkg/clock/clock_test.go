package clock

import (
	"testing"
	"time"

	"github.com/go-drift/declui/pkg/dispatch"
)

func TestRealAfterFuncDispatches(t *testing.T) {
	q := dispatch.NewQueue()
	prev := dispatch.RegisterDispatch(q.Post)
	defer dispatch.RegisterDispatch(prev)

	fired := false
	Real().AfterFunc(time.Millisecond, func() { fired = true })

	select {
	case <-q.Ready():
	case <-time.After(time.Second):
		t.Fatal("timer callback was never dispatched")
	}
	if fired {
		t.Fatal("callback ran before the queue was drained")
	}
	q.Drain()
	if !fired {
		t.Error("callback did not run on Drain")
	}
}

func TestRealStopAfterDispatch(t *testing.T) {
	q := dispatch.NewQueue()
	prev := dispatch.RegisterDispatch(q.Post)
	defer dispatch.RegisterDispatch(prev)

	fired := false
	timer := Real().AfterFunc(time.Millisecond, func() { fired = true })
	<-q.Ready()
	timer.Stop()
	q.Drain()
	if fired {
		t.Error("stopped timer callback ran")
	}
}

func TestSetDefault(t *testing.T) {
	prev := SetDefault(nil)
	defer SetDefault(prev)

	if _, ok := Default().(realClock); !ok {
		t.Errorf("Default() = %T, want realClock", Default())
	}
	if Or(nil) != Default() {
		t.Error("Or(nil) should return the default clock")
	}
}

func TestRealAfterFuncWithoutDispatcher(t *testing.T) {
	prev := dispatch.RegisterDispatch(nil)
	defer dispatch.RegisterDispatch(prev)
	q := dispatch.Main()
	q.Drain()
	select {
	case <-q.Ready():
	default:
	}

	// Only the draining goroutine may observe draining == true.
	draining := false
	ranWhileDraining := false
	calls := 0
	Real().AfterFunc(time.Millisecond, func() {
		calls++
		ranWhileDraining = draining
	})

	select {
	case <-q.Ready():
	case <-time.After(time.Second):
		t.Fatal("timer callback was never queued on the main queue")
	}
	if calls != 0 {
		t.Fatal("callback ran on the timer goroutine")
	}
	draining = true
	q.Drain()
	draining = false
	if calls != 1 || !ranWhileDraining {
		t.Errorf("calls = %d, ran while draining = %v; want 1, true", calls, ranWhileDraining)
	}
}
