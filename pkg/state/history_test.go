package state

import "testing"

func TestUndoRedo(t *testing.T) {
	m := NewManager()
	s, _ := CreateState(m, "text", "a")
	if err := m.EnableHistory("text", 2); err != nil {
		t.Fatal(err)
	}
	var seen []string
	s.Subscribe(func(v string) { seen = append(seen, v) })

	s.Set("b")
	s.Set("c")
	s.Set("d")

	if err := m.Undo("text"); err != nil {
		t.Fatal(err)
	}
	if got := s.Get(); got != "c" {
		t.Errorf("after Undo = %q, want c", got)
	}
	if err := m.Undo("text"); err != nil {
		t.Fatal(err)
	}
	if got := s.Get(); got != "b" {
		t.Errorf("after second Undo = %q, want b", got)
	}
	if m.CanUndo("text") {
		t.Error("CanUndo = true beyond history size")
	}
	if err := m.Undo("text"); err == nil {
		t.Error("Undo with empty history should fail")
	}

	if err := m.Redo("text"); err != nil {
		t.Fatal(err)
	}
	if got := s.Get(); got != "c" {
		t.Errorf("after Redo = %q, want c", got)
	}
	s.Set("x")
	if m.CanRedo("text") {
		t.Error("CanRedo = true after a new Set")
	}
	if len(seen) != 7 {
		t.Errorf("notifications = %v, want 7", seen)
	}
}

func TestHistoryOnComputedFails(t *testing.T) {
	m := NewManager()
	x, _ := CreateState(m, "x", 1)
	CreateComputed(m, "y", func() int { return x.Get() })
	if err := m.EnableHistory("y", 0); err == nil {
		t.Error("EnableHistory on computed cell should fail")
	}
}
