package core

import (
	"reflect"
	"strings"

	"github.com/go-drift/declui/pkg/state"
	"github.com/go-drift/declui/pkg/value"
)

// Guards over state cells. A missing key makes every guard below false.
// Reads are tracked, so the guards also work inside computed cells.

// StateEquals holds while key equals want. Numbers compare by value.
func StateEquals(m *state.Manager, key string, want any) Guard {
	wv := value.Of(want)
	return func() bool {
		v, err := m.Value(key)
		if err != nil {
			return false
		}
		got := value.Of(v)
		if got.IsNumber() && wv.IsNumber() {
			a, _ := got.AsFloat()
			b, _ := wv.AsFloat()
			return a == b
		}
		if got.Kind() == value.HandleKind || wv.Kind() == value.HandleKind {
			return reflect.DeepEqual(v, want)
		}
		return got.Equal(wv)
	}
}

// StateTrue holds while key is truthy.
func StateTrue(m *state.Manager, key string) Guard {
	return func() bool {
		v, err := m.PropertyValue(key)
		return err == nil && v.Truthy()
	}
}

// StateFalse holds while key exists and is falsy.
func StateFalse(m *state.Manager, key string) Guard {
	return func() bool {
		v, err := m.PropertyValue(key)
		return err == nil && !v.Truthy()
	}
}

// StateExists holds while key exists.
func StateExists(m *state.Manager, key string) Guard {
	return func() bool { return m.Has(key) }
}

// StringEmpty holds while key is an empty string.
func StringEmpty(m *state.Manager, key string) Guard {
	return func() bool {
		v, err := m.PropertyValue(key)
		if err != nil {
			return false
		}
		s, ok := v.AsString()
		return ok && s == ""
	}
}

// StringContains holds while key is a string containing sub.
func StringContains(m *state.Manager, key, sub string) Guard {
	return func() bool {
		v, err := m.PropertyValue(key)
		if err != nil {
			return false
		}
		s, ok := v.AsString()
		return ok && strings.Contains(s, sub)
	}
}

// And holds while every guard holds. It stops at the first false guard.
func And(guards ...Guard) Guard {
	return func() bool {
		for _, g := range guards {
			if !g() {
				return false
			}
		}
		return true
	}
}

// Or holds while any guard holds. It stops at the first true guard.
func Or(guards ...Guard) Guard {
	return func() bool {
		for _, g := range guards {
			if g() {
				return true
			}
		}
		return false
	}
}

// Not inverts g.
func Not(g Guard) Guard {
	return func() bool { return !g() }
}
