package animation

import (
	"fmt"
	"time"

	"github.com/go-drift/declui/pkg/clock"
)

// AnimationStatus is the state of an AnimationController.
//
//	Dismissed --Forward()--> Forward --(duration elapsed)--> Completed
//
// Stop leaves the status at Forward with the value where it was.
type AnimationStatus int

const (
	// AnimationDismissed means the controller has not started.
	AnimationDismissed AnimationStatus = iota
	// AnimationForward means ticks are advancing the value toward 1.
	AnimationForward
	// AnimationCompleted means the value reached 1.
	AnimationCompleted
)

func (s AnimationStatus) String() string {
	switch s {
	case AnimationDismissed:
		return "dismissed"
	case AnimationForward:
		return "forward"
	case AnimationCompleted:
		return "completed"
	default:
		return fmt.Sprintf("AnimationStatus(%d)", int(s))
	}
}

// AnimationController advances Value from 0 to 1 over Duration, shaped by
// Curve. Frames are scheduled on Clock, so with the real clock every
// listener runs on the UI thread.
type AnimationController struct {
	// Value is the eased progress in [0, 1].
	Value    float64
	Duration time.Duration
	// Curve maps linear progress to eased progress. Nil is linear.
	Curve func(float64) float64
	// Clock schedules frames. Nil uses clock.Default().
	Clock clock.Clock

	status    AnimationStatus
	ticker    *Ticker
	start     float64
	listeners []func()
	watchers  []func(AnimationStatus)
	disposed  bool
}

// NewAnimationController returns a dismissed controller.
func NewAnimationController(duration time.Duration) *AnimationController {
	return &AnimationController{Duration: duration, Curve: LinearCurve}
}

// Forward animates from the current value to 1. A zero duration jumps
// there immediately.
func (c *AnimationController) Forward() {
	if c.disposed {
		return
	}
	c.Stop()
	c.start = c.Value
	c.setStatus(AnimationForward)
	if c.Duration <= 0 {
		c.frame(c.Duration)
		return
	}
	c.ticker = NewTicker(c.Clock, c.frame)
	c.ticker.Start()
}

func (c *AnimationController) frame(elapsed time.Duration) {
	progress := 1.0
	if c.Duration > 0 {
		progress = min(float64(elapsed)/float64(c.Duration), 1)
	}
	eased := progress
	if c.Curve != nil {
		eased = c.Curve(progress)
	}
	c.Value = c.start + (1-c.start)*eased
	for _, fn := range c.listeners {
		fn()
	}
	if progress >= 1 {
		c.Stop()
		c.setStatus(AnimationCompleted)
	}
}

// Stop freezes the value where it is.
func (c *AnimationController) Stop() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}

func (c *AnimationController) Status() AnimationStatus { return c.status }

// IsAnimating reports whether frames are still scheduled.
func (c *AnimationController) IsAnimating() bool { return c.ticker != nil }

func (c *AnimationController) IsCompleted() bool { return c.status == AnimationCompleted }

// AddListener registers fn to run after every frame.
func (c *AnimationController) AddListener(fn func()) {
	c.listeners = append(c.listeners, fn)
}

// AddStatusListener registers fn to run on every status change.
func (c *AnimationController) AddStatusListener(fn func(AnimationStatus)) {
	c.watchers = append(c.watchers, fn)
}

func (c *AnimationController) setStatus(s AnimationStatus) {
	if c.status == s {
		return
	}
	c.status = s
	for _, fn := range c.watchers {
		fn(s)
	}
}

// Dispose stops the controller and drops its listeners. Forward is a no-op
// afterwards.
func (c *AnimationController) Dispose() {
	c.Stop()
	c.disposed = true
	c.listeners, c.watchers = nil, nil
}
