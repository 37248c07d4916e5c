// Package clock provides the time source for debounce windows, retry delays
// and transitions. The default implementation uses system time and hands
// timer callbacks to the UI thread. Tests inject a fake clock to control
// timing deterministically.
package clock

import (
	"sync"
	"time"

	"github.com/go-drift/declui/pkg/dispatch"
)

// Timer is a pending callback that can be cancelled.
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the call
	// stopped the timer.
	Stop() bool
}

// Clock provides time and one-shot timers.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f once d has elapsed. The real clock always runs f
	// on the UI thread: through the registered dispatcher, or from
	// dispatch.Main when the host drains it.
	AfterFunc(d time.Duration, f func()) Timer
}

// realClock uses system time.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	rt := &realTimer{}
	rt.t = time.AfterFunc(d, func() {
		run := func() {
			if !rt.stopped() {
				f()
			}
		}
		dispatch.Post(run)
	})
	return rt
}

// realTimer guards against a callback that was already handed to the
// dispatcher when Stop was called.
type realTimer struct {
	t    *time.Timer
	mu   sync.Mutex
	dead bool
}

func (t *realTimer) Stop() bool {
	t.mu.Lock()
	t.dead = true
	t.mu.Unlock()
	return t.t.Stop()
}

func (t *realTimer) stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dead
}

var (
	mu      sync.RWMutex
	current Clock = realClock{}
)

// Real returns the system clock.
func Real() Clock { return realClock{} }

// Default returns the package-level clock.
func Default() Clock {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// SetDefault replaces the package-level clock. Returns the previous clock
// so callers can restore it during cleanup. Passing nil restores the real
// clock.
func SetDefault(c Clock) Clock {
	mu.Lock()
	defer mu.Unlock()
	prev := current
	if c == nil {
		c = realClock{}
	}
	current = c
	return prev
}

// Or returns c, or the package-level clock when c is nil.
func Or(c Clock) Clock {
	if c != nil {
		return c
	}
	return Default()
}
