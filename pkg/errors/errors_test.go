package errors

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestErrorString(t *testing.T) {
	err := &Error{
		Op:   "state.CreateState",
		Kind: KindStateManagement,
		Err:  ErrDuplicateKey,
	}
	want := "state.CreateState [state management]: duplicate key"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorWithPath(t *testing.T) {
	err := Newf(KindJSONValidation, "validator.Validate", "expected boolean").At("$.properties.enabled")
	got := err.Error()
	want := "path=$.properties.enabled"
	if !strings.Contains(got, want) {
		t.Errorf("error string %q should contain %q", got, want)
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindRuntime, "runtime"},
		{KindComponentCreation, "component creation"},
		{KindPropertyBinding, "property binding"},
		{KindStateManagement, "state management"},
		{KindLayout, "layout"},
		{KindJSONParse, "json parse"},
		{KindJSONValidation, "json validation"},
		{KindReference, "reference"},
		{KindLifecycle, "lifecycle"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestKindOfAndHasKind(t *testing.T) {
	inner := New(KindPropertyBinding, "core.applyProperty", fmt.Errorf("rejected"))
	outer := New(KindComponentCreation, "core.Build", inner)
	wrapped := fmt.Errorf("loading: %w", outer)

	if got := KindOf(wrapped); got != KindComponentCreation {
		t.Errorf("KindOf = %v, want %v", got, KindComponentCreation)
	}
	if !HasKind(wrapped, KindPropertyBinding) {
		t.Error("HasKind(PropertyBinding) = false, want true")
	}
	if HasKind(wrapped, KindLayout) {
		t.Error("HasKind(Layout) = true, want false")
	}
	if got := KindOf(fmt.Errorf("plain")); got != KindRuntime {
		t.Errorf("KindOf(plain) = %v, want %v", got, KindRuntime)
	}
}

func TestSentinelsUnwrap(t *testing.T) {
	err := Newf(KindStateManagement, "state.GetState", "%w: %q", ErrMissingKey, "counter")
	if !Is(err, ErrMissingKey) {
		t.Errorf("Is(%v, ErrMissingKey) = false, want true", err)
	}
}

func TestPanicErrorString(t *testing.T) {
	err := &PanicError{
		Value:     "test panic",
		Timestamp: time.Now(),
	}
	got := err.Error()
	want := "panic: test panic"
	if got != want {
		t.Errorf("PanicError.Error() = %q, want %q", got, want)
	}
}

func TestPanicErrorStringWithOp(t *testing.T) {
	err := &PanicError{
		Op:        "state.notify",
		Value:     "test panic",
		Timestamp: time.Now(),
	}
	got := err.Error()
	want := "panic in state.notify: test panic"
	if got != want {
		t.Errorf("PanicError.Error() = %q, want %q", got, want)
	}
}

func TestReport(t *testing.T) {
	var capturedErr *Error
	handler := &testHandler{
		onError: func(err *Error) {
			capturedErr = err
		},
	}

	old := SetHandler(handler)
	defer SetHandler(old)

	Report(&Error{
		Op:   "test.op",
		Kind: KindLifecycle,
		Err:  fmt.Errorf("hook failed"),
	})

	if capturedErr == nil {
		t.Fatal("expected error to be captured")
	}
	if capturedErr.Op != "test.op" {
		t.Errorf("Op = %q, want %q", capturedErr.Op, "test.op")
	}
	if capturedErr.Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
}

func TestWarn(t *testing.T) {
	var got *Warning
	old := SetHandler(&testHandler{onWarning: func(w *Warning) { got = w }})
	defer SetHandler(old)

	WarnAt("core.Build", "Button", "unknown event %q", "hovered")
	if got == nil {
		t.Fatal("expected warning to be captured")
	}
	if got.Message != `unknown event "hovered"` {
		t.Errorf("Message = %q, want %q", got.Message, `unknown event "hovered"`)
	}
	if got.Path != "Button" {
		t.Errorf("Path = %q, want %q", got.Path, "Button")
	}
}

func TestRecover(t *testing.T) {
	var capturedPanic *PanicError
	handler := &testHandler{
		onPanic: func(err *PanicError) {
			capturedPanic = err
		},
	}

	old := SetHandler(handler)
	defer SetHandler(old)

	func() {
		defer Recover("test.recover")
		panic("intentional test panic")
	}()

	if capturedPanic == nil {
		t.Fatal("expected panic to be recovered and captured")
	}
	if capturedPanic.Value != "intentional test panic" {
		t.Errorf("Value = %v, want %q", capturedPanic.Value, "intentional test panic")
	}
	if capturedPanic.Op != "test.recover" {
		t.Errorf("Op = %q, want %q", capturedPanic.Op, "test.recover")
	}
}

func TestTry(t *testing.T) {
	err := Try("test.try", func() error { panic("boom") })
	var pe *PanicError
	if !As(err, &pe) {
		t.Fatalf("Try error = %v, want *PanicError", err)
	}
	if pe.Value != "boom" {
		t.Errorf("Value = %v, want boom", pe.Value)
	}

	want := fmt.Errorf("plain")
	if got := Try("test.try", func() error { return want }); got != want {
		t.Errorf("Try = %v, want %v", got, want)
	}
}

func TestCaptureStack(t *testing.T) {
	stack := CaptureStack()
	if stack == "" {
		t.Error("expected non-empty stack trace")
	}
	if !strings.Contains(stack, "testing") && !strings.Contains(stack, "runtime") {
		t.Errorf("stack trace should contain testing or runtime frames, got: %s", stack)
	}
}

func TestSetHandlerNil(t *testing.T) {
	old := SetHandler(nil)
	defer SetHandler(old)
	if DefaultHandler == nil {
		t.Error("SetHandler(nil) should set default LogHandler, not nil")
	}
	if _, ok := DefaultHandler.(*LogHandler); !ok {
		t.Errorf("SetHandler(nil) should set LogHandler, got %T", DefaultHandler)
	}
}

func TestLogHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	h := &LogHandler{Out: &buf}

	h.HandleError(New(KindReference, "parser.resolve", ErrUnresolvedReference))
	h.HandleWarning(&Warning{Op: "core.Build", Message: "unknown event"})

	got := buf.String()
	for _, want := range []string{
		"[declui error] parser.resolve: unresolved reference",
		"[declui warning] core.Build: unknown event",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("log output %q should contain %q", got, want)
		}
	}
}

type testHandler struct {
	onError   func(*Error)
	onPanic   func(*PanicError)
	onWarning func(*Warning)
}

func (h *testHandler) HandleError(err *Error) {
	if h.onError != nil {
		h.onError(err)
	}
}

func (h *testHandler) HandlePanic(err *PanicError) {
	if h.onPanic != nil {
		h.onPanic(err)
	}
}

func (h *testHandler) HandleWarning(w *Warning) {
	if h.onWarning != nil {
		h.onWarning(w)
	}
}
