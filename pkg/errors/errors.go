// Package errors provides structured error handling for the declui runtime.
//
// Every subsystem surfaces failures as *Error values carrying a Kind from a
// fixed taxonomy. Errors that are recovered locally (subscriber panics,
// guard panics, lifecycle hook failures) are still routed to a single global
// Handler so hosts can observe them.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Kind identifies the category of an error.
type Kind int

const (
	// KindRuntime covers everything without a more specific category.
	KindRuntime Kind = iota
	// KindComponentCreation indicates an unknown type, a failing factory or a
	// missing required attribute.
	KindComponentCreation
	// KindPropertyBinding indicates a binding producer failed or a property
	// setter rejected a value.
	KindPropertyBinding
	// KindStateManagement indicates a duplicate key, a missing key or a type
	// mismatch in the state manager.
	KindStateManagement
	// KindLayout indicates an invalid layout type or invalid layout metrics.
	KindLayout
	// KindJSONParse indicates malformed input or an exceeded depth limit.
	KindJSONParse
	// KindJSONValidation indicates a rule violation.
	KindJSONValidation
	// KindReference indicates an unresolvable $ref or $include, or an invalid
	// JSON Pointer.
	KindReference
	// KindLifecycle indicates a lifecycle hook failure.
	KindLifecycle
)

func (k Kind) String() string {
	switch k {
	case KindComponentCreation:
		return "component creation"
	case KindPropertyBinding:
		return "property binding"
	case KindStateManagement:
		return "state management"
	case KindLayout:
		return "layout"
	case KindJSONParse:
		return "json parse"
	case KindJSONValidation:
		return "json validation"
	case KindReference:
		return "reference"
	case KindLifecycle:
		return "lifecycle"
	default:
		return "runtime"
	}
}

// Sentinel causes wrapped by *Error values.
var (
	ErrDuplicateKey        = stderrors.New("duplicate key")
	ErrMissingKey          = stderrors.New("missing key")
	ErrTypeMismatch        = stderrors.New("type mismatch")
	ErrUnknownType         = stderrors.New("unknown component type")
	ErrDepthExceeded       = stderrors.New("maximum depth exceeded")
	ErrUnresolvedReference = stderrors.New("unresolved reference")
)

// Error is a structured error carrying its category and origin.
type Error struct {
	// Op is the operation that failed (e.g. "state.CreateState").
	Op string
	// Kind categorizes the error.
	Kind Kind
	// Path locates the failure inside a JSON document or element tree.
	Path string
	// Err is the underlying error.
	Err error
	// StackTrace contains the call stack at the time of the error, if captured.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s [%s] path=%s: %v", e.Op, e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an *Error of the given kind wrapping err.
func New(kind Kind, op string, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err, Timestamp: time.Now()}
}

// Newf is like New but formats the cause. A %w verb wraps as with fmt.Errorf.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return New(kind, op, fmt.Errorf(format, args...))
}

// At returns a copy of e located at path.
func (e *Error) At(path string) *Error {
	cp := *e
	cp.Path = path
	return &cp
}

// KindOf reports the kind of the outermost *Error in err's chain.
// Errors outside the taxonomy report KindRuntime.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindRuntime
}

// HasKind reports whether any *Error in err's chain has the given kind.
func HasKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Join returns an error that wraps the given errors, discarding nils.
func Join(errs ...error) error { return stderrors.Join(errs...) }

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g. "state.notify").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Warning is a non-fatal diagnostic.
type Warning struct {
	Op        string
	Path      string
	Message   string
	Timestamp time.Time
}

func (w *Warning) String() string {
	if w.Path != "" {
		return fmt.Sprintf("%s path=%s: %s", w.Op, w.Path, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.Op, w.Message)
}

// Handler receives errors reported by the runtime.
type Handler interface {
	// HandleError is called when an error is reported.
	HandleError(err *Error)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
	// HandleWarning is called for non-fatal diagnostics.
	HandleWarning(w *Warning)
}
