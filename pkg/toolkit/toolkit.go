// Package toolkit defines the narrow contract between the runtime core and a
// visual toolkit. The core never paints, lays out or owns an event loop; it
// only creates primitives, sets properties by name, connects named events
// and attaches children through an Adaptor.
package toolkit

import (
	"errors"
	"fmt"

	"github.com/go-drift/declui/pkg/value"
)

// Handle is an opaque reference to a toolkit primitive or layout.
type Handle = any

// ErrUnknownEvent is returned by ConnectEvent when the primitive's type has
// no signal with the requested name.
var ErrUnknownEvent = errors.New("unknown event")

// Subscription identifies one event connection.
type Subscription struct {
	Handle Handle
	Event  string
	ID     uint64
}

// LayoutKind names a layout strategy realized by the toolkit.
type LayoutKind string

const (
	VBox    LayoutKind = "VBoxLayout"
	HBox    LayoutKind = "HBoxLayout"
	Grid    LayoutKind = "GridLayout"
	Form    LayoutKind = "FormLayout"
	Stacked LayoutKind = "StackedLayout"
)

// LayoutKinds lists every supported layout kind.
var LayoutKinds = []LayoutKind{VBox, HBox, Grid, Form, Stacked}

// ParseLayoutKind validates a layout type name.
func ParseLayoutKind(s string) (LayoutKind, error) {
	for _, k := range LayoutKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown layout type %q", s)
}

// LayoutSpec describes a layout to realize.
type LayoutSpec struct {
	Kind    LayoutKind
	Spacing float64
	// Margins are left, top, right, bottom.
	Margins [4]float64
}

// Validate checks metrics are non-negative and the kind is known.
func (s LayoutSpec) Validate() error {
	if _, err := ParseLayoutKind(string(s.Kind)); err != nil {
		return err
	}
	if s.Spacing < 0 {
		return fmt.Errorf("layout spacing must be non-negative, got %v", s.Spacing)
	}
	for i, m := range s.Margins {
		if m < 0 {
			return fmt.Errorf("layout margin %d must be non-negative, got %v", i, m)
		}
	}
	return nil
}

// Adaptor is implemented by a visual toolkit binding.
type Adaptor interface {
	// CreatePrimitive instantiates a primitive of the named type.
	CreatePrimitive(typeName string, config map[string]any) (Handle, error)
	// SetProperty writes a property. It returns false when the primitive
	// rejects the name or value. Setting the same value twice is harmless.
	SetProperty(h Handle, name string, v value.Value) bool
	// GetProperty reads a property back.
	GetProperty(h Handle, name string) (value.Value, bool)
	// ConnectEvent subscribes fn to the named signal of h. Unknown names
	// return an error wrapping ErrUnknownEvent.
	ConnectEvent(h Handle, event string, fn func()) (Subscription, error)
	// DisconnectEvent removes a subscription. Unknown subscriptions are
	// ignored.
	DisconnectEvent(sub Subscription)
	// CreateLayout realizes a layout spec.
	CreateLayout(spec LayoutSpec) (Handle, error)
	// Attach makes child a child of parent, through layout when non-nil.
	// Once attached, the parent owns the child.
	Attach(parent, child, layout Handle) error
	// Destroy releases a primitive and everything it owns.
	Destroy(h Handle)
	// OnDestroyed registers fn to run when h is destroyed, including
	// destruction the core did not request.
	OnDestroyed(h Handle, fn func())
}
