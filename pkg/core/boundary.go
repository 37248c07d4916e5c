package core

import (
	"fmt"
	"time"

	"github.com/go-drift/declui/pkg/clock"
	"github.com/go-drift/declui/pkg/errors"
	"github.com/go-drift/declui/pkg/toolkit"
	"github.com/go-drift/declui/pkg/value"
)

// Strategy selects how a boundary recovers from an error.
type Strategy int

const (
	// ShowFallback hides the child and shows a fallback.
	ShowFallback Strategy = iota
	// Retry rebuilds the child through ChildFactory after RetryDelay, up to
	// MaxRetryAttempts times, then shows the fallback.
	Retry
	// Ignore records the error and keeps the child.
	Ignore
	// Propagate hands the error to the parent boundary.
	Propagate
	// Restart rebuilds the child once, showing the fallback if that fails.
	Restart
)

func (s Strategy) String() string {
	switch s {
	case ShowFallback:
		return "show-fallback"
	case Retry:
		return "retry"
	case Ignore:
		return "ignore"
	case Propagate:
		return "propagate"
	case Restart:
		return "restart"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy parses the String form of a strategy.
func ParseStrategy(s string) (Strategy, error) {
	for _, st := range []Strategy{ShowFallback, Retry, Ignore, Propagate, Restart} {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown boundary strategy %q", s)
}

// Boundary defaults.
const (
	DefaultRetryDelay       = time.Second
	DefaultMaxRetryAttempts = 3
	// MaxErrorHistory bounds Boundary.History.
	MaxErrorHistory = 100
)

// ErrorInfo describes one captured error.
type ErrorInfo struct {
	Err        error
	Message    string
	Kind       errors.Kind
	Component  string
	Boundary   string
	StackTrace string
	Timestamp  time.Time
}

// BoundaryStats counts boundary activity.
type BoundaryStats struct {
	TotalErrors      int
	Recoveries       int
	FallbackDisplays int
	RetryAttempts    int
	LastError        time.Time
}

// BoundaryConfig controls a Boundary.
type BoundaryConfig struct {
	// Name identifies the boundary in reports.
	Name     string
	Strategy Strategy
	// RetryDelay defaults to DefaultRetryDelay when zero.
	RetryDelay time.Duration
	// MaxRetryAttempts defaults to DefaultMaxRetryAttempts when zero.
	MaxRetryAttempts int
	// LogErrors reports captured errors to the global handler.
	LogErrors bool
	// ShowErrorDetails adds the kind and stack trace to the default
	// fallback.
	ShowErrorDetails bool
	// ChildFactory produces a replacement child for Retry and Restart.
	ChildFactory func() (Node, error)
	// FallbackFactory produces the fallback. Nil uses the global
	// FallbackBuilder. Errors from it are recorded and never re-caught.
	FallbackFactory func(ErrorInfo) (Node, error)
	// OnError runs after each captured error is recorded.
	OnError func(ErrorInfo)
	// OnRecover runs after a successful rebuild or Reset.
	OnRecover func()
	Clock     clock.Clock
	// Parent receives errors under Propagate. Nodes nested in a boundary
	// get it set automatically.
	Parent *Boundary
	// Manager receives every report. Nil uses the process-wide manager.
	Manager *BoundaryManager
}

// DefaultBoundaryConfig returns a ShowFallback configuration that logs.
func DefaultBoundaryConfig() BoundaryConfig {
	return BoundaryConfig{
		Strategy:         ShowFallback,
		RetryDelay:       DefaultRetryDelay,
		MaxRetryAttempts: DefaultMaxRetryAttempts,
		LogErrors:        true,
	}
}

// Boundary isolates failures in a child subtree. Exactly one of the child
// and the fallback is visible at any time. A Boundary is confined to the
// UI thread; use BoundaryManager to report from other goroutines.
type Boundary struct {
	adaptor toolkit.Adaptor
	config  BoundaryConfig
	clock   clock.Clock
	manager *BoundaryManager
	id      uint64

	container toolkit.Handle
	layout    toolkit.Handle
	built     bool
	buildErr  error

	child        Node
	childPrim    toolkit.Handle
	fallback     Node
	fallbackPrim toolkit.Handle

	lastError    *ErrorInfo
	history      []ErrorInfo
	retryAttempt int
	retryTimer   clock.Timer
	rebuilding   bool
	stats        BoundaryStats
}

// NewBoundary wraps child. child may be nil when cfg.ChildFactory is set.
func NewBoundary(a toolkit.Adaptor, child Node, cfg BoundaryConfig) *Boundary {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.MaxRetryAttempts <= 0 {
		cfg.MaxRetryAttempts = DefaultMaxRetryAttempts
	}
	if cfg.Name == "" {
		cfg.Name = "ErrorBoundary"
	}
	b := &Boundary{
		adaptor: a,
		config:  cfg,
		clock:   clock.Or(cfg.Clock),
		manager: cfg.Manager,
		child:   child,
	}
	if b.manager == nil {
		b.manager = Manager()
	}
	return b
}

// Name returns the configured name.
func (b *Boundary) Name() string { return b.config.Name }

// Config returns the effective configuration.
func (b *Boundary) Config() BoundaryConfig { return b.config }

// Primitive returns the container, or nil.
func (b *Boundary) Primitive() toolkit.Handle { return b.container }

// Child returns the current child node.
func (b *Boundary) Child() Node { return b.child }

// HasError reports whether an unrecovered error is recorded.
func (b *Boundary) HasError() bool { return b.lastError != nil }

// LastError returns the unrecovered error, or nil.
func (b *Boundary) LastError() *ErrorInfo {
	if b.lastError == nil {
		return nil
	}
	cp := *b.lastError
	return &cp
}

// History returns the most recent errors, oldest first.
func (b *Boundary) History() []ErrorInfo {
	return append([]ErrorInfo(nil), b.history...)
}

// Stats returns a copy of the counters.
func (b *Boundary) Stats() BoundaryStats { return b.stats }

// RetryAttempt returns the number of automatic retries since the last
// recovery.
func (b *Boundary) RetryAttempt() int { return b.retryAttempt }

// RetryPending reports whether a retry timer is armed.
func (b *Boundary) RetryPending() bool { return b.retryTimer != nil }

// ShowingFallback reports whether the fallback is visible.
func (b *Boundary) ShowingFallback() bool { return b.fallbackPrim != nil }

// ChildVisible reports whether the child is visible.
func (b *Boundary) ChildVisible() bool { return b.childPrim != nil && b.fallbackPrim == nil }

func (b *Boundary) setCapture(c ErrorCapture) {
	if b.config.Parent != nil {
		return
	}
	if p, ok := c.(*Boundary); ok && p != b {
		b.config.Parent = p
	}
}

// Build creates the container and builds the child inside it. A child
// that fails to build is captured like any other error.
func (b *Boundary) Build() (toolkit.Handle, error) {
	const op = "core.Boundary"
	if b.built {
		if b.buildErr != nil {
			return nil, b.buildErr
		}
		if b.container == nil {
			return nil, errors.Newf(errors.KindComponentCreation, op, "boundary %q was unmounted", b.config.Name)
		}
		return b.container, nil
	}
	b.built = true
	container, err := b.adaptor.CreatePrimitive(ContainerType, nil)
	if err != nil {
		b.buildErr = errors.New(errors.KindComponentCreation, op, err)
		return nil, b.buildErr
	}
	layout, err := b.adaptor.CreateLayout(toolkit.LayoutSpec{Kind: toolkit.Stacked})
	if err != nil {
		b.adaptor.Destroy(container)
		b.buildErr = errors.New(errors.KindLayout, op, err)
		return nil, b.buildErr
	}
	b.container, b.layout = container, layout
	b.adaptor.SetProperty(container, "objectName", value.String(b.config.Name))
	b.id = b.manager.Register(b)
	b.adaptor.OnDestroyed(container, b.destroyed)

	child := b.child
	if child == nil && b.config.ChildFactory != nil {
		child, err = b.produce()
		if err != nil {
			b.CaptureError(err, b.config.Name)
			return container, nil
		}
	}
	if child == nil {
		return container, nil
	}
	if err := b.install(child); err != nil {
		if b.config.Strategy == Propagate && b.config.Parent == nil {
			b.Unmount()
			b.buildErr = err
			return nil, err
		}
		b.CaptureError(err, b.config.Name)
	}
	return container, nil
}

func (b *Boundary) produce() (Node, error) {
	var n Node
	err := errors.Try("core.Boundary", func() error {
		var ferr error
		n, ferr = b.config.ChildFactory()
		return ferr
	})
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("child factory returned no node")
	}
	return n, nil
}

// install builds n and makes it the visible child, replacing the previous
// child and hiding any fallback.
func (b *Boundary) install(n Node) error {
	routeErrors(n, b)
	prim, err := buildNode("core.Boundary", n)
	if err != nil {
		return err
	}
	if err := b.adaptor.Attach(b.container, prim, b.layout); err != nil {
		n.Unmount()
		return err
	}
	if old := b.child; old != nil && old != n {
		old.Unmount()
	}
	b.child, b.childPrim = n, prim
	b.removeFallback()
	b.adaptor.SetProperty(prim, VisibleProperty, value.Bool(true))
	return nil
}

// CaptureError records err against component and applies the strategy.
// It returns false only under Propagate with no parent; the caller then
// owns the error.
func (b *Boundary) CaptureError(err error, component string) bool {
	if err == nil {
		return true
	}
	info := b.record(err, component)
	if b.rebuilding {
		return true
	}
	switch b.config.Strategy {
	case Ignore:
	case Retry:
		if b.retryTimer == nil {
			if b.retryAttempt >= b.config.MaxRetryAttempts {
				b.ShowFallback()
			} else {
				b.scheduleRetry()
			}
		}
	case Restart:
		b.restart()
	case Propagate:
		if b.config.Parent != nil {
			return b.config.Parent.CaptureError(info.Err, component)
		}
		return false
	default:
		b.ShowFallback()
	}
	return true
}

// CatchError captures a plain message.
func (b *Boundary) CatchError(message, component string) bool {
	return b.CaptureError(errors.Newf(errors.KindRuntime, component, "%s", message), component)
}

// CatchPanic captures a recovered panic value.
func (b *Boundary) CatchPanic(r any, component string) bool {
	return b.CaptureError(&errors.PanicError{
		Op:         component,
		Value:      r,
		StackTrace: errors.CaptureStack(),
		Timestamp:  b.clock.Now(),
	}, component)
}

// Guard runs fn and captures a returned error or a panic.
func (b *Boundary) Guard(component string, fn func() error) error {
	err := errors.Try(component, fn)
	if err != nil && !b.CaptureError(err, component) {
		return err
	}
	return nil
}

func (b *Boundary) record(err error, component string) ErrorInfo {
	info := ErrorInfo{
		Err:       err,
		Message:   err.Error(),
		Kind:      errors.KindOf(err),
		Component: component,
		Boundary:  b.config.Name,
		Timestamp: b.clock.Now(),
	}
	var pe *errors.PanicError
	var ee *errors.Error
	switch {
	case errors.As(err, &pe):
		info.StackTrace = pe.StackTrace
	case errors.As(err, &ee):
		info.StackTrace = ee.StackTrace
	}

	b.lastError = &info
	b.history = append(b.history, info)
	if len(b.history) > MaxErrorHistory {
		b.history = append(b.history[:0:0], b.history[len(b.history)-MaxErrorHistory:]...)
	}
	b.stats.TotalErrors++
	b.stats.LastError = info.Timestamp

	if b.config.LogErrors {
		var e *errors.Error
		if !errors.As(err, &e) {
			e = errors.New(errors.KindRuntime, "core.Boundary", err)
		}
		errors.Report(e.At(b.config.Name + "/" + component))
	}
	b.manager.Report(info)
	if b.config.OnError != nil {
		func() {
			defer errors.Recover("core.Boundary.OnError")
			b.config.OnError(info)
		}()
	}
	return info
}

func (b *Boundary) scheduleRetry() {
	b.retryTimer = b.clock.AfterFunc(b.config.RetryDelay, func() {
		b.retryTimer = nil
		b.retryTick()
	})
}

func (b *Boundary) retryTick() {
	if b.container == nil {
		return
	}
	b.retryAttempt++
	b.stats.RetryAttempts++
	if err := b.rebuild(); err != nil {
		b.record(err, b.config.Name)
		if b.retryAttempt >= b.config.MaxRetryAttempts {
			b.ShowFallback()
			return
		}
		b.scheduleRetry()
	}
}

// rebuild replaces the child with a fresh one from ChildFactory.
func (b *Boundary) rebuild() error {
	if b.config.ChildFactory == nil {
		return errors.Newf(errors.KindComponentCreation, "core.Boundary", "boundary %q has no child factory", b.config.Name)
	}
	b.rebuilding = true
	defer func() { b.rebuilding = false }()
	n, err := b.produce()
	if err != nil {
		return err
	}
	if err := b.install(n); err != nil {
		return err
	}
	b.recovered()
	return nil
}

func (b *Boundary) recovered() {
	b.lastError = nil
	b.retryAttempt = 0
	b.stats.Recoveries++
	if b.config.OnRecover != nil {
		func() {
			defer errors.Recover("core.Boundary.OnRecover")
			b.config.OnRecover()
		}()
	}
}

func (b *Boundary) restart() {
	b.cancelRetry()
	b.retryAttempt = 0
	if err := b.rebuild(); err != nil {
		b.record(err, b.config.Name)
		b.ShowFallback()
	}
}

// Retry rebuilds the child now. The default fallback's "Try Again" button
// calls it. On failure the fallback stays.
func (b *Boundary) Retry() {
	if b.container == nil {
		return
	}
	b.cancelRetry()
	b.stats.RetryAttempts++
	if err := b.rebuild(); err != nil {
		b.record(err, b.config.Name)
		b.ShowFallback()
	}
}

// Reset clears the error, cancels a pending retry and shows the child
// again, rebuilding it when it was discarded.
func (b *Boundary) Reset() {
	b.cancelRetry()
	b.retryAttempt = 0
	if b.container == nil {
		b.lastError = nil
		return
	}
	if b.childPrim == nil {
		if err := b.rebuild(); err != nil {
			b.record(err, b.config.Name)
			b.ShowFallback()
		}
		return
	}
	b.removeFallback()
	b.adaptor.SetProperty(b.childPrim, VisibleProperty, value.Bool(true))
	if b.lastError != nil {
		b.recovered()
	}
}

func (b *Boundary) cancelRetry() {
	if b.retryTimer != nil {
		b.retryTimer.Stop()
		b.retryTimer = nil
	}
}

// ShowFallback hides the child and shows the fallback for the last error.
func (b *Boundary) ShowFallback() {
	if b.container == nil {
		return
	}
	info := ErrorInfo{Message: "unknown error", Boundary: b.config.Name, Timestamp: b.clock.Now()}
	if b.lastError != nil {
		info = *b.lastError
	}
	b.removeFallback()

	node, prim, err := b.buildFallback(info)
	if err != nil {
		// Fallback failures are recorded but never handled again.
		b.record(err, "fallback")
		node = DefaultFallbackBuilder(b, info)
		prim, err = buildNode("core.Boundary", node)
		if err != nil {
			errors.Report(errors.New(errors.KindComponentCreation, "core.Boundary", err).At(b.config.Name))
			return
		}
	}
	if err := b.adaptor.Attach(b.container, prim, b.layout); err != nil {
		node.Unmount()
		errors.Report(errors.New(errors.KindComponentCreation, "core.Boundary", err).At(b.config.Name))
		return
	}
	if b.childPrim != nil {
		b.adaptor.SetProperty(b.childPrim, VisibleProperty, value.Bool(false))
	}
	b.adaptor.SetProperty(prim, VisibleProperty, value.Bool(true))
	b.fallback, b.fallbackPrim = node, prim
	b.stats.FallbackDisplays++
}

func (b *Boundary) buildFallback(info ErrorInfo) (Node, toolkit.Handle, error) {
	var node Node
	if f := b.config.FallbackFactory; f != nil {
		err := errors.Try("core.Boundary.fallback", func() error {
			var ferr error
			node, ferr = f(info)
			return ferr
		})
		if err != nil {
			return nil, nil, err
		}
		if node == nil {
			return nil, nil, fmt.Errorf("fallback factory returned no node")
		}
	} else {
		node = GetFallbackBuilder()(b, info)
	}
	prim, err := buildNode("core.Boundary.fallback", node)
	return node, prim, err
}

func (b *Boundary) removeFallback() {
	if b.fallback == nil {
		return
	}
	fb := b.fallback
	b.fallback, b.fallbackPrim = nil, nil
	fb.Unmount()
}

// Unmount cancels a pending retry, unmounts the child and fallback and
// destroys the container.
func (b *Boundary) Unmount() {
	container := b.container
	if container == nil {
		return
	}
	b.teardown()
	b.container = nil
	b.adaptor.Destroy(container)
}

func (b *Boundary) destroyed() {
	if b.container == nil {
		return
	}
	b.container = nil
	b.teardown()
}

func (b *Boundary) teardown() {
	b.cancelRetry()
	b.removeFallback()
	if b.child != nil {
		b.child.Unmount()
	}
	b.childPrim = nil
	b.layout = nil
	b.manager.Unregister(b.id)
}
