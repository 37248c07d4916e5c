package animation

import (
	"time"

	"github.com/go-drift/declui/pkg/clock"
	"github.com/go-drift/declui/pkg/toolkit"
	"github.com/go-drift/declui/pkg/value"
)

// OpacityProperty is the property a Fade writes.
const OpacityProperty = "opacity"

// Fade animates the opacity of a primitive through an Adaptor.
type Fade struct {
	adaptor    toolkit.Adaptor
	handle     toolkit.Handle
	controller *AnimationController
	tween      *Tween[float64]
	done       []func()
	finished   bool
	stopped    bool
}

// NewFade prepares a transition of h's opacity from one value to another.
// Nothing is written until Start.
func NewFade(a toolkit.Adaptor, h toolkit.Handle, from, to float64, d time.Duration, c clock.Clock) *Fade {
	f := &Fade{
		adaptor:    a,
		handle:     h,
		controller: NewAnimationController(d),
		tween:      TweenFloat64(from, to),
	}
	f.controller.Clock = c
	f.controller.Curve = EaseInOut
	f.controller.AddListener(f.apply)
	f.controller.AddStatusListener(func(s AnimationStatus) {
		if s == AnimationCompleted {
			f.finish()
		}
	})
	return f
}

// OnDone registers fn to run when the fade reaches its end value.
// A stopped fade never calls it.
func (f *Fade) OnDone(fn func()) *Fade {
	f.done = append(f.done, fn)
	return f
}

// Start writes the begin opacity and starts the transition.
func (f *Fade) Start() {
	f.adaptor.SetProperty(f.handle, OpacityProperty, value.Double(f.tween.Begin))
	f.controller.Forward()
}

// Stop halts the transition at its current opacity.
func (f *Fade) Stop() {
	f.stopped = true
	f.controller.Dispose()
}

// Running reports whether the fade is still in progress.
func (f *Fade) Running() bool {
	return !f.stopped && f.controller.IsAnimating()
}

// Finished reports whether the fade reached its end value.
func (f *Fade) Finished() bool {
	return f.finished
}

func (f *Fade) apply() {
	f.adaptor.SetProperty(f.handle, OpacityProperty, value.Double(f.tween.Transform(f.controller)))
}

func (f *Fade) finish() {
	if f.finished {
		return
	}
	f.finished = true
	for _, fn := range f.done {
		fn()
	}
}
