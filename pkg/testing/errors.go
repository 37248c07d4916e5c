package testing

import (
	"sync"
	"testing"

	"github.com/go-drift/declui/pkg/errors"
)

// ErrorRecorder is an errors.Handler that keeps everything it receives.
type ErrorRecorder struct {
	mu       sync.Mutex
	errs     []*errors.Error
	panics   []*errors.PanicError
	warnings []*errors.Warning
}

// RecordErrors installs a recorder as the global handler and restores the
// previous handler when the test finishes.
func RecordErrors(t testing.TB) *ErrorRecorder {
	t.Helper()
	rec := &ErrorRecorder{}
	prev := errors.SetHandler(rec)
	t.Cleanup(func() { errors.SetHandler(prev) })
	return rec
}

func (r *ErrorRecorder) HandleError(err *errors.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *ErrorRecorder) HandlePanic(err *errors.PanicError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panics = append(r.panics, err)
}

func (r *ErrorRecorder) HandleWarning(w *errors.Warning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, w)
}

// Errors returns the reported errors in order.
func (r *ErrorRecorder) Errors() []*errors.Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*errors.Error(nil), r.errs...)
}

// Panics returns the recovered panics in order.
func (r *ErrorRecorder) Panics() []*errors.PanicError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*errors.PanicError(nil), r.panics...)
}

// Warnings returns the warnings in order.
func (r *ErrorRecorder) Warnings() []*errors.Warning {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*errors.Warning(nil), r.warnings...)
}

// Reset discards everything recorded so far.
func (r *ErrorRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs, r.panics, r.warnings = nil, nil, nil
}
