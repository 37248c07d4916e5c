package state

import (
	"reflect"

	"github.com/go-drift/declui/pkg/errors"
)

// State is a typed handle to a cell.
type State[T any] struct {
	m *Manager
	c *cell
}

func as[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}
	return v.(T)
}

// CreateState registers a leaf cell. It fails with ErrDuplicateKey when key
// exists.
func CreateState[T any](m *Manager, key string, initial T) (*State[T], error) {
	c, err := m.create("state.CreateState", key, reflect.TypeFor[T](), initial)
	if err != nil {
		return nil, err
	}
	return &State[T]{m: m, c: c}, nil
}

// CreateComputed registers a computed cell and evaluates fn once to seed it.
// With explicit deps the cell recomputes when any of them changes; without,
// the cells fn reads during each evaluation become its dependencies.
func CreateComputed[T any](m *Manager, key string, fn func() T, deps ...string) (*State[T], error) {
	const op = "state.CreateComputed"
	if fn == nil {
		return nil, errors.Newf(errors.KindStateManagement, op, "nil compute function for %q", key)
	}
	var explicit []*cell
	for _, k := range deps {
		d, err := m.lookup(op, k)
		if err != nil {
			return nil, err
		}
		explicit = append(explicit, d)
	}
	var zero T
	c, err := m.create(op, key, reflect.TypeFor[T](), zero)
	if err != nil {
		return nil, err
	}
	c.computed = true
	c.explicit = len(explicit) > 0
	c.compute = func() any { return fn() }

	v, reads, err := m.evaluate(c)
	if err != nil {
		delete(m.cells, key)
		return nil, errors.Newf(errors.KindStateManagement, op, "seeding %q: %w", key, err)
	}
	c.value = v
	if c.explicit {
		m.setDeps(c, explicit)
	} else {
		m.setDeps(c, reads)
	}
	return &State[T]{m: m, c: c}, nil
}

// GetState returns a handle to an existing cell. It fails with
// ErrMissingKey or ErrTypeMismatch.
func GetState[T any](m *Manager, key string) (*State[T], error) {
	const op = "state.GetState"
	c, err := m.lookup(op, key)
	if err != nil {
		return nil, err
	}
	if want := reflect.TypeFor[T](); c.typ != want {
		return nil, errors.Newf(errors.KindStateManagement, op, "%w: state %q holds %v, not %v",
			errors.ErrTypeMismatch, key, c.typ, want)
	}
	return &State[T]{m: m, c: c}, nil
}

// SetValidator installs a check run before every Set of key. A rejected
// value leaves the cell unchanged.
func SetValidator[T any](m *Manager, key string, fn func(T) error) error {
	s, err := GetState[T](m, key)
	if err != nil {
		return err
	}
	if fn == nil {
		s.c.validate = nil
		return nil
	}
	s.c.validate = func(v any) error { return fn(as[T](v)) }
	return nil
}

// Key returns the cell's key.
func (s *State[T]) Key() string { return s.c.key }

// Manager returns the owning manager.
func (s *State[T]) Manager() *Manager { return s.m }

// Computed reports whether the cell is computed.
func (s *State[T]) Computed() bool { return s.c.computed }

// Get returns the current value and records the read when tracking.
func (s *State[T]) Get() T {
	s.m.track(s.c)
	return as[T](s.c.value)
}

// Set replaces the value and notifies when it differs from the current one.
func (s *State[T]) Set(v T) error {
	return s.m.set("state.Set", s.c, v)
}

// Update sets the value to fn applied to the current value.
func (s *State[T]) Update(fn func(T) T) error {
	return s.Set(fn(as[T](s.c.value)))
}

// Subscribe registers fn to run after every change.
func (s *State[T]) Subscribe(fn func(T)) Token {
	return s.m.subscribe(s.c, func(v any) { fn(as[T](v)) })
}

// Unsubscribe revokes a subscription made on any cell of the manager.
func (s *State[T]) Unsubscribe(tok Token) bool {
	return s.m.Unsubscribe(tok)
}
