// Package registry maps component type names to primitive factories.
//
// A Registry starts with a builtin factory for every standard primitive
// type. Hosts register their own types on top; Clear drops them again and
// restores the builtins. The loader and the validator consult Default
// unless given a registry of their own.
package registry

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/go-drift/declui/pkg/errors"
	"github.com/go-drift/declui/pkg/toolkit"
)

// Factory creates the primitive for typeName from a document's
// "properties" object, which may be nil.
type Factory func(a toolkit.Adaptor, typeName string, config map[string]any) (toolkit.Handle, error)

// Builtins lists the types every registry knows.
var Builtins = []string{
	"Widget", "Label", "Button", "LineEdit", "TextEdit", "CheckBox",
	"RadioButton", "ComboBox", "SpinBox", "DoubleSpinBox", "Slider",
	"ProgressBar", "GroupBox", "Frame", "ScrollArea", "TabWidget", "Splitter",
}

// Primitive is the builtin factory. It asks the adaptor for a primitive of
// the same type name.
func Primitive(a toolkit.Adaptor, typeName string, config map[string]any) (toolkit.Handle, error) {
	return a.CreatePrimitive(typeName, config)
}

// Registry is a name to factory table safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// New returns a registry holding the builtins.
func New() *Registry {
	r := &Registry{}
	r.Clear()
	return r
}

// Register installs f under name, replacing any previous factory.
func (r *Registry) Register(name string, f Factory) error {
	const op = "registry.Register"
	if name == "" {
		return errors.Newf(errors.KindComponentCreation, op, "component name must not be empty")
	}
	if f == nil {
		return errors.Newf(errors.KindComponentCreation, op, "factory for %q must not be nil", name)
	}
	r.mu.Lock()
	r.factories[name] = f
	r.mu.Unlock()
	return nil
}

// Unregister removes name and reports whether it was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.factories[name]
	delete(r.factories, name)
	return ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	_, ok := r.factories[name]
	r.mu.RUnlock()
	return ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}

// Create builds a primitive for name. A missing name fails with
// errors.ErrUnknownType; a panicking factory is converted to an error.
func (r *Registry) Create(a toolkit.Adaptor, name string, config map[string]any) (toolkit.Handle, error) {
	const op = "registry.Create"
	r.mu.RLock()
	f := r.factories[name]
	r.mu.RUnlock()
	if f == nil {
		return nil, errors.New(errors.KindComponentCreation, op, fmt.Errorf("%w: %q", errors.ErrUnknownType, name)).At(name)
	}
	var h toolkit.Handle
	err := errors.Try(op, func() error {
		var ferr error
		h, ferr = f(a, name, config)
		return ferr
	})
	if err != nil {
		return nil, errors.New(errors.KindComponentCreation, op, err).At(name)
	}
	if h == nil {
		return nil, errors.Newf(errors.KindComponentCreation, op, "factory for %q returned no primitive", name).At(name)
	}
	return h, nil
}

// Clear drops every registration and restores the builtins.
func (r *Registry) Clear() {
	factories := make(map[string]Factory, len(Builtins))
	for _, name := range Builtins {
		factories[name] = Primitive
	}
	r.mu.Lock()
	r.factories = factories
	r.mu.Unlock()
}

var (
	defaultMu sync.RWMutex
	current   = New()
)

// Default returns the process-wide registry.
func Default() *Registry {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return current
}

// SetDefault replaces the process-wide registry and returns the previous
// one. nil installs a fresh registry.
func SetDefault(r *Registry) *Registry {
	if r == nil {
		r = New()
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := current
	current = r
	return prev
}
