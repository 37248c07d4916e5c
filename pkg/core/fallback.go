package core

import (
	"sync"

	"github.com/go-drift/declui/pkg/errors"
	"github.com/go-drift/declui/pkg/toolkit"
)

// FallbackBuilder creates the node a boundary shows in place of a failed
// child when the boundary has no FallbackFactory of its own.
type FallbackBuilder func(b *Boundary, info ErrorInfo) Node

// fallbackBuilder is nil until SetFallbackBuilder installs one. It cannot be
// initialized to DefaultFallbackBuilder: that function reaches the boundary
// code which reads this variable.
var (
	fallbackBuilder FallbackBuilder
	fallbackMu      sync.RWMutex
)

// SetFallbackBuilder configures the global fallback builder and returns the
// previous one. Pass nil to restore the default builder.
func SetFallbackBuilder(builder FallbackBuilder) FallbackBuilder {
	fallbackMu.Lock()
	defer fallbackMu.Unlock()
	prev := fallbackBuilder
	fallbackBuilder = builder
	if prev == nil {
		return DefaultFallbackBuilder
	}
	return prev
}

// GetFallbackBuilder returns the current fallback builder.
func GetFallbackBuilder() FallbackBuilder {
	fallbackMu.RLock()
	defer fallbackMu.RUnlock()
	if fallbackBuilder == nil {
		return DefaultFallbackBuilder
	}
	return fallbackBuilder
}

// Text shown by the default fallback.
const (
	FallbackTitle  = "Something went wrong"
	FallbackButton = "Try Again"
)

// DefaultFallbackBuilder returns a column with a title, the error message
// and a "Try Again" button wired to b.Retry.
func DefaultFallbackBuilder(b *Boundary, info ErrorInfo) Node {
	root := New(b.adaptor, "Widget", WithClock(b.clock)).
		Property("objectName", "errorFallback").
		Layout(toolkit.VBox, nil)
	root.Child("Label", func(l *Builder) {
		l.Property("text", FallbackTitle).Class("error-title")
	})
	root.Child("Label", func(l *Builder) {
		l.Property("text", info.Message).Property("wordWrap", true).Class("error-message")
	})
	if b.config.ShowErrorDetails || DebugMode {
		details := info.Kind.String()
		if info.Component != "" {
			details += " in " + info.Component
		}
		if info.StackTrace != "" {
			details += "\n" + info.StackTrace
		}
		root.Child("Label", func(l *Builder) {
			l.Property("text", details).Class("error-details")
		})
	}
	root.Child("Button", func(btn *Builder) {
		btn.Property("text", FallbackButton).On("clicked", b.Retry)
	})
	return root
}

// ErrorCapture is implemented by boundaries to capture runtime errors
// raised by descendants after they were built.
type ErrorCapture interface {
	// CaptureError captures an error from a descendant. Returns true if
	// the error was handled.
	CaptureError(err error, component string) bool
}

// report routes err to capture, or to the global handler when nothing
// captures it.
func report(capture ErrorCapture, err error, component string) {
	if capture != nil && capture.CaptureError(err, component) {
		return
	}
	var e *errors.Error
	if !errors.As(err, &e) {
		e = errors.New(errors.KindRuntime, component, err)
	}
	errors.Report(e)
}
