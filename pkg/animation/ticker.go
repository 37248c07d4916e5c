// Package animation drives property transitions over time.
//
// # Core Components
//
//   - [AnimationController]: Drives a value from 0.0 to 1.0 over a duration
//     with an optional easing curve.
//
//   - [Tween]: Maps the controller's 0-1 value to a begin/end range of any type.
//
//   - Curves: Easing functions such as [EaseIn], [EaseOut] and [EaseInOut].
//
//   - [Fade]: Animates a primitive's "opacity" property through an Adaptor.
//
// Frames are scheduled on a [clock.Clock], so tests drive transitions with a
// fake clock instead of sleeping.
//
// # Basic Usage
//
//	controller := animation.NewAnimationController(200 * time.Millisecond)
//	controller.Curve = animation.EaseInOut
//	opacity := animation.TweenFloat64(0, 1)
//	controller.AddListener(func() {
//	    adaptor.SetProperty(h, "opacity", value.Double(opacity.Transform(controller)))
//	})
//	controller.Forward()
package animation

import (
	"time"

	"github.com/go-drift/declui/pkg/clock"
)

// FrameInterval is the delay between ticks.
const FrameInterval = 16 * time.Millisecond

// Ticker calls back once per frame with the time elapsed since Start,
// until Stop. It is the timing source of AnimationController.
type Ticker struct {
	callback func(elapsed time.Duration)
	clock    clock.Clock
	timer    clock.Timer
	started  time.Time
}

// NewTicker returns a stopped ticker. A nil clock uses clock.Default().
func NewTicker(c clock.Clock, callback func(elapsed time.Duration)) *Ticker {
	return &Ticker{callback: callback, clock: clock.Or(c)}
}

// Start schedules the first tick one frame from now. Starting an active
// ticker does nothing.
func (t *Ticker) Start() {
	if t.timer != nil {
		return
	}
	t.started = t.clock.Now()
	t.timer = t.clock.AfterFunc(FrameInterval, t.fire)
}

func (t *Ticker) fire() {
	if t.timer == nil {
		return
	}
	t.callback(t.clock.Now().Sub(t.started))
	// The callback may have stopped the ticker.
	if t.timer != nil {
		t.timer = t.clock.AfterFunc(FrameInterval, t.fire)
	}
}

// Stop cancels the next tick.
func (t *Ticker) Stop() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// IsActive reports whether ticks are scheduled.
func (t *Ticker) IsActive() bool { return t.timer != nil }
