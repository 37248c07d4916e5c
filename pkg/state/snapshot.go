package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"sort"

	"github.com/go-drift/declui/pkg/errors"
)

// Snapshot maps leaf-cell keys to their JSON-encoded values.
type Snapshot map[string]json.RawMessage

// SnapshotStore persists snapshots.
type SnapshotStore interface {
	WriteSnapshot(s Snapshot) error
	ReadSnapshot() (Snapshot, error)
}

// Snapshot encodes every leaf cell. Computed cells are derived and skipped.
func (m *Manager) Snapshot() (Snapshot, error) {
	const op = "state.Save"
	s := make(Snapshot)
	for _, key := range m.Keys() {
		c := m.cells[key]
		if c.computed {
			continue
		}
		data, err := json.Marshal(c.value)
		if err != nil {
			return nil, errors.Newf(errors.KindStateManagement, op, "encoding %q: %w", key, err)
		}
		s[key] = data
	}
	return s, nil
}

// Restore applies a snapshot. Unknown and computed keys are skipped with a
// warning. Values that do not decode into the cell's type are errors, and
// when any occur nothing is applied. Changes notify as a single batch.
func (m *Manager) Restore(s Snapshot) error {
	const op = "state.Load"
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	type staged struct {
		c *cell
		v any
	}
	var (
		apply []staged
		errs  []error
	)
	for _, key := range keys {
		c, ok := m.cells[key]
		if !ok {
			errors.WarnAt(op, key, "ignoring unknown state key %q", key)
			continue
		}
		if c.computed {
			errors.WarnAt(op, key, "ignoring computed state key %q", key)
			continue
		}
		v, err := decode(c, s[key])
		if err != nil {
			errs = append(errs, errors.Newf(errors.KindStateManagement, op, "%w: %q: %v", errors.ErrTypeMismatch, key, err).At(key))
			continue
		}
		apply = append(apply, staged{c: c, v: v})
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	m.Batch(func() {
		for _, st := range apply {
			if err := m.set(op, st.c, st.v); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

func decode(c *cell, raw json.RawMessage) (any, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if nillable(c.typ.Kind()) {
			return reflect.Zero(c.typ).Interface(), nil
		}
		return nil, fmt.Errorf("null is not a %v", c.typ)
	}
	ptr := reflect.New(c.typ)
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

// SaveTo writes a snapshot of the leaf cells to store.
func (m *Manager) SaveTo(store SnapshotStore) error {
	s, err := m.Snapshot()
	if err != nil {
		return err
	}
	return store.WriteSnapshot(s)
}

// LoadFrom reads a snapshot from store and applies it.
func (m *Manager) LoadFrom(store SnapshotStore) error {
	s, err := store.ReadSnapshot()
	if err != nil {
		return err
	}
	return m.Restore(s)
}

// Save writes the leaf cells to a JSON file.
func (m *Manager) Save(path string) error {
	return m.SaveTo(JSONFile(path))
}

// Load applies a JSON snapshot file.
func (m *Manager) Load(path string) error {
	return m.LoadFrom(JSONFile(path))
}

// JSONFile is a SnapshotStore backed by a JSON object on disk.
type JSONFile string

func (f JSONFile) WriteSnapshot(s Snapshot) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.New(errors.KindStateManagement, "state.Save", err)
	}
	if err := os.WriteFile(string(f), append(data, '\n'), 0o644); err != nil {
		return errors.New(errors.KindStateManagement, "state.Save", err)
	}
	return nil
}

func (f JSONFile) ReadSnapshot() (Snapshot, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return nil, errors.New(errors.KindStateManagement, "state.Load", err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Newf(errors.KindStateManagement, "state.Load", "snapshot %s must be a JSON object: %w", string(f), err)
	}
	return s, nil
}
