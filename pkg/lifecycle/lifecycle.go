// Package lifecycle implements the per-element mount, update and unmount
// state machine with ordered hooks and dependency-tracked effects.
//
// Hooks and effects never propagate failures. A failing hook is recorded,
// the lifecycle enters the Error phase, and the OnError hooks run with the
// phase that failed. The remaining hooks and effects still run.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/go-drift/declui/pkg/clock"
	"github.com/go-drift/declui/pkg/errors"
	"github.com/go-drift/declui/pkg/toolkit"
	"github.com/go-drift/declui/pkg/value"
)

// Phase is a lifecycle state.
type Phase int

const (
	BeforeMount Phase = iota
	Mounted
	BeforeUpdate
	Updated
	BeforeUnmount
	Unmounted
	Error
)

func (p Phase) String() string {
	switch p {
	case BeforeMount:
		return "BeforeMount"
	case Mounted:
		return "Mounted"
	case BeforeUpdate:
		return "BeforeUpdate"
	case Updated:
		return "Updated"
	case BeforeUnmount:
		return "BeforeUnmount"
	case Unmounted:
		return "Unmounted"
	case Error:
		return "Error"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Props is the property snapshot handed to update hooks.
type Props map[string]value.Value

// Context is passed to every hook.
type Context struct {
	Phase     Phase
	Primitive toolkit.Handle
	Prev      Props
	Next      Props
	Timestamp time.Time

	// Set for OnError hooks only.
	Err          error
	ErrorMessage string
	FailedPhase  Phase
}

// Hook is a lifecycle callback. Returned errors and panics are recorded.
type Hook func(ctx *Context) error

// Cleanup releases what an effect acquired.
type Cleanup func()

// EffectFunc runs after mount and after qualifying updates.
type EffectFunc func() Cleanup

// Metrics are wall-clock spans and counters for one lifecycle.
type Metrics struct {
	MountTime   time.Duration
	UpdateTime  time.Duration
	UnmountTime time.Duration
	UpdateCount int
	// EffectCount is the number of registered effects.
	EffectCount int
	// EffectRuns counts producer invocations.
	EffectRuns int
	// CleanupCount counts cleanup invocations.
	CleanupCount int
}

type effect struct {
	fn      EffectFunc
	deps    []value.Value
	last    []value.Value
	cleanup Cleanup
}

// Lifecycle is owned by one element and confined to the UI thread.
type Lifecycle struct {
	clock     clock.Clock
	phase     Phase
	mounted   bool
	primitive toolkit.Handle
	props     Props

	mountHooks   []Hook
	updateHooks  []Hook
	unmountHooks []Hook
	errorHooks   []Hook
	effects      []*effect

	errs    []error
	metrics Metrics
}

// New returns a lifecycle in the BeforeMount phase. A nil clock uses
// clock.Default.
func New(c clock.Clock) *Lifecycle {
	return &Lifecycle{clock: clock.Or(c), phase: BeforeMount}
}

// OnMount appends a hook run when the element mounts.
func (l *Lifecycle) OnMount(h Hook) *Lifecycle {
	l.mountHooks = append(l.mountHooks, h)
	return l
}

// OnUpdate appends a hook run on every update.
func (l *Lifecycle) OnUpdate(h Hook) *Lifecycle {
	l.updateHooks = append(l.updateHooks, h)
	return l
}

// OnUnmount appends a hook run before the element unmounts.
func (l *Lifecycle) OnUnmount(h Hook) *Lifecycle {
	l.unmountHooks = append(l.unmountHooks, h)
	return l
}

// OnError appends a hook run when another hook fails.
func (l *Lifecycle) OnError(h Hook) *Lifecycle {
	l.errorHooks = append(l.errorHooks, h)
	return l
}

// UseEffect registers an effect. fn runs on mount. On update it runs again,
// after the previous cleanup, when deps is empty or when any dependency
// changed since the last run. A string dependency naming a current prop
// stands for that prop's value. All cleanups run on unmount.
func (l *Lifecycle) UseEffect(fn EffectFunc, deps ...value.Value) *Lifecycle {
	if fn == nil {
		errors.Warn("lifecycle.UseEffect", "ignoring nil effect")
		return l
	}
	l.effects = append(l.effects, &effect{fn: fn, deps: deps})
	l.metrics.EffectCount++
	return l
}

// Phase returns the current phase.
func (l *Lifecycle) Phase() Phase { return l.phase }

// Mounted reports whether the lifecycle is mounted.
func (l *Lifecycle) Mounted() bool { return l.mounted }

// Primitive returns the mounted primitive, or nil.
func (l *Lifecycle) Primitive() toolkit.Handle { return l.primitive }

// Errors returns every recorded hook failure.
func (l *Lifecycle) Errors() []error { return append([]error(nil), l.errs...) }

// Props returns the props last passed to SetProps or Update.
func (l *Lifecycle) Props() Props { return l.props }

// SetProps records the initial props before Mount. Hooks see them as Next.
func (l *Lifecycle) SetProps(p Props) { l.props = p }

// Metrics returns a copy of the metrics.
func (l *Lifecycle) Metrics() Metrics { return l.metrics }

// Mount runs mount hooks, then every effect. Mounting twice is a no-op.
func (l *Lifecycle) Mount(prim toolkit.Handle) error {
	if l.mounted {
		return nil
	}
	if prim == nil {
		return errors.Newf(errors.KindComponentCreation, "lifecycle.Mount", "cannot mount with nil primitive")
	}
	start := l.clock.Now()
	l.primitive = prim
	l.phase = BeforeMount

	l.runHooks(l.mountHooks, &Context{Phase: Mounted, Primitive: prim, Next: l.props, Timestamp: start})
	for _, e := range l.effects {
		l.runEffect(e, l.resolve(e.deps))
	}

	l.mounted = true
	if l.phase != Error {
		l.phase = Mounted
	}
	l.metrics.MountTime = l.clock.Now().Sub(start)
	return nil
}

// Update runs update hooks with the previous and next props, then the
// effects whose dependencies changed.
func (l *Lifecycle) Update(prev, next Props) {
	if !l.mounted {
		errors.Warn("lifecycle.Update", "cannot update an unmounted component")
		return
	}
	start := l.clock.Now()
	l.phase = BeforeUpdate
	l.props = next

	l.runHooks(l.updateHooks, &Context{Phase: Updated, Primitive: l.primitive, Prev: prev, Next: next, Timestamp: start})
	for _, e := range l.effects {
		resolved := l.resolve(e.deps)
		if len(e.deps) > 0 && equalDeps(resolved, e.last) {
			continue
		}
		l.runCleanup(e)
		l.runEffect(e, resolved)
	}

	if l.phase != Error {
		l.phase = Updated
	}
	l.metrics.UpdateCount++
	l.metrics.UpdateTime = l.clock.Now().Sub(start)
}

// Unmount runs unmount hooks, then every pending cleanup in registration
// order.
func (l *Lifecycle) Unmount() {
	if !l.mounted {
		return
	}
	start := l.clock.Now()
	l.phase = BeforeUnmount

	l.runHooks(l.unmountHooks, &Context{Phase: BeforeUnmount, Primitive: l.primitive, Prev: l.props, Timestamp: start})
	for _, e := range l.effects {
		l.runCleanup(e)
	}

	l.mounted = false
	l.primitive = nil
	if l.phase != Error {
		l.phase = Unmounted
	}
	l.metrics.UnmountTime = l.clock.Now().Sub(start)
}

// Destroyed handles destruction of the primitive by the toolkit.
func (l *Lifecycle) Destroyed() {
	if l.mounted {
		l.Unmount()
	}
}

// HandleError records err against the current phase and runs the OnError
// hooks.
func (l *Lifecycle) HandleError(err error) {
	if err == nil {
		return
	}
	l.fail(err, l.phase)
}

func (l *Lifecycle) runHooks(hooks []Hook, ctx *Context) {
	phase := l.phase
	for _, h := range hooks {
		err := errors.Try("lifecycle."+phase.String(), func() error { return h(ctx) })
		if err != nil {
			l.fail(err, phase)
		}
	}
}

func (l *Lifecycle) runEffect(e *effect, resolved []value.Value) {
	phase := l.phase
	e.last = resolved
	l.metrics.EffectRuns++
	err := errors.Try("lifecycle.effect", func() error {
		e.cleanup = e.fn()
		return nil
	})
	if err != nil {
		e.cleanup = nil
		l.fail(err, phase)
	}
}

func (l *Lifecycle) runCleanup(e *effect) {
	if e.cleanup == nil {
		return
	}
	fn := e.cleanup
	e.cleanup = nil
	l.metrics.CleanupCount++
	phase := l.phase
	err := errors.Try("lifecycle.cleanup", func() error {
		fn()
		return nil
	})
	if err != nil {
		l.fail(err, phase)
	}
}

func (l *Lifecycle) fail(err error, phase Phase) {
	wrapped := errors.New(errors.KindLifecycle, "lifecycle."+phase.String(), err)
	l.errs = append(l.errs, wrapped)
	l.phase = Error
	var p *errors.PanicError
	if errors.As(err, &p) {
		errors.ReportPanic(p)
	} else {
		errors.Report(wrapped)
	}

	ctx := &Context{
		Phase:        Error,
		Primitive:    l.primitive,
		Next:         l.props,
		Timestamp:    l.clock.Now(),
		Err:          wrapped,
		ErrorMessage: err.Error(),
		FailedPhase:  phase,
	}
	for _, h := range l.errorHooks {
		if herr := errors.Try("lifecycle.OnError", func() error { return h(ctx) }); herr != nil {
			errors.Report(errors.New(errors.KindLifecycle, "lifecycle.OnError", herr))
		}
	}
}

// resolve maps string dependencies that name a current prop to the prop's
// value.
func (l *Lifecycle) resolve(deps []value.Value) []value.Value {
	if len(deps) == 0 {
		return nil
	}
	out := make([]value.Value, len(deps))
	for i, d := range deps {
		out[i] = d
		if name, ok := d.AsString(); ok {
			if v, ok := l.props[name]; ok {
				out[i] = v
			}
		}
	}
	return out
}

func equalDeps(a, b []value.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
