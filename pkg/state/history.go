package state

import "github.com/go-drift/declui/pkg/errors"

// DefaultHistorySize is the undo depth used when EnableHistory gets a
// non-positive size.
const DefaultHistorySize = 50

type history struct {
	past   []any
	future []any
	max    int
}

func (h *history) record(old any) {
	h.past = append(h.past, old)
	if len(h.past) > h.max {
		h.past = h.past[len(h.past)-h.max:]
	}
	h.future = nil
}

// EnableHistory starts recording previous values of a leaf cell so they can
// be restored with Undo and Redo.
func (m *Manager) EnableHistory(key string, size int) error {
	const op = "state.EnableHistory"
	c, err := m.lookup(op, key)
	if err != nil {
		return err
	}
	if c.computed {
		return errors.Newf(errors.KindStateManagement, op, "computed state %q has no history", key)
	}
	if size <= 0 {
		size = DefaultHistorySize
	}
	if c.history == nil {
		c.history = &history{max: size}
	} else {
		c.history.max = size
	}
	return nil
}

// DisableHistory stops recording and discards recorded values.
func (m *Manager) DisableHistory(key string) {
	if c, ok := m.cells[key]; ok {
		c.history = nil
	}
}

// CanUndo reports whether key has a recorded previous value.
func (m *Manager) CanUndo(key string) bool {
	c, ok := m.cells[key]
	return ok && c.history != nil && len(c.history.past) > 0
}

// CanRedo reports whether key has an undone value to reapply.
func (m *Manager) CanRedo(key string) bool {
	c, ok := m.cells[key]
	return ok && c.history != nil && len(c.history.future) > 0
}

// Undo restores the previous value of key and notifies as a normal Set.
func (m *Manager) Undo(key string) error {
	return m.step("state.Undo", key, true)
}

// Redo reapplies the most recently undone value of key.
func (m *Manager) Redo(key string) error {
	return m.step("state.Redo", key, false)
}

func (m *Manager) step(op, key string, back bool) error {
	c, err := m.lookup(op, key)
	if err != nil {
		return err
	}
	h := c.history
	if h == nil {
		return errors.Newf(errors.KindStateManagement, op, "history is not enabled for %q", key)
	}
	from, to := &h.past, &h.future
	if !back {
		from, to = &h.future, &h.past
	}
	if len(*from) == 0 {
		return errors.Newf(errors.KindStateManagement, op, "nothing to restore for %q", key)
	}
	v := (*from)[len(*from)-1]
	*from = (*from)[:len(*from)-1]
	*to = append(*to, c.value)

	m.restoring = true
	defer func() { m.restoring = false }()
	if equal(c.value, v) {
		return nil
	}
	c.value = v
	m.changed(c)
	return nil
}
