package testing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/go-cmp/cmp"

	"github.com/go-drift/declui/pkg/toolkit"
	"github.com/go-drift/declui/pkg/toolkit/headless"
)

// UpdateSnapshotsEnv names the variable that makes MatchesFile rewrite
// golden files instead of comparing against them.
const UpdateSnapshotsEnv = "DECLUI_UPDATE_SNAPSHOTS"

// TestingT is the subset of *testing.T used by MatchesFile, allowing
// test doubles to intercept failures.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...any)
	Errorf(format string, args ...any)
	Name() string
}

// Snapshot captures the structure of a headless primitive tree.
type Snapshot struct {
	Tree *Node `json:"tree"`
}

// Node is one primitive in a snapshot.
type Node struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Layout     string            `json:"layout,omitempty"`
	Properties map[string]string `json:"props,omitempty"`
	Children   []*Node           `json:"children,omitempty"`
}

// CaptureSnapshot records the subtree rooted at h, which must be a headless
// primitive. IDs count per type in depth-first order, so they do not depend
// on how many primitives the adaptor created before h.
func CaptureSnapshot(h toolkit.Handle) *Snapshot {
	snap := &Snapshot{}
	if p, ok := h.(*headless.Primitive); ok && p != nil {
		snap.Tree = captureNode(p, &typeCounter{})
	}
	return snap
}

// MatchesFile compares this snapshot against a golden file. On mismatch it
// reports a diff and instructions for updating. When
// DECLUI_UPDATE_SNAPSHOTS=1 is set, the file is silently updated instead.
func (s *Snapshot) MatchesFile(t TestingT, path string) {
	t.Helper()

	if os.Getenv(UpdateSnapshotsEnv) == "1" {
		if err := s.UpdateFile(path); err != nil {
			t.Fatalf("failed to update snapshot: %v", err)
		}
		return
	}

	expected, err := loadSnapshot(path)
	if err != nil {
		if os.IsNotExist(err) {
			t.Fatalf("snapshot file missing: %s\n\nTo create: %s=1 go test -run %s", path, UpdateSnapshotsEnv, t.Name())
			return
		}
		t.Fatalf("failed to load snapshot: %v", err)
		return
	}

	if diff := s.Diff(expected); diff != "" {
		t.Errorf("snapshot mismatch: %s (-want +got)\n%s\nTo update: %s=1 go test -run %s", path, diff, UpdateSnapshotsEnv, t.Name())
	}
}

// UpdateFile writes this snapshot to the given path, creating directories
// as needed.
func (s *Snapshot) UpdateFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := marshalSnapshot(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Diff returns a diff from other to this snapshot, or "" when they are
// equal.
func (s *Snapshot) Diff(other *Snapshot) string {
	return cmp.Diff(other, s)
}

// typeCounter assigns stable IDs like "Button#0", "Button#1".
type typeCounter struct {
	counts map[string]int
}

func (c *typeCounter) next(typeName string) string {
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	n := c.counts[typeName]
	c.counts[typeName] = n + 1
	return fmt.Sprintf("%s#%d", typeName, n)
}

func captureNode(p *headless.Primitive, counter *typeCounter) *Node {
	node := &Node{
		ID:   counter.next(p.Type),
		Type: p.Type,
	}
	if p.Layout != nil {
		node.Layout = string(p.Layout.Spec.Kind)
	}
	if names := p.PropertyNames(); len(names) > 0 {
		node.Properties = make(map[string]string, len(names))
		for _, name := range names {
			node.Properties[name] = p.Property(name).String()
		}
	}
	for _, c := range p.Children {
		node.Children = append(node.Children, captureNode(c, counter))
	}
	return node
}

func loadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("invalid snapshot JSON: %w", err)
	}
	return &snap, nil
}

func marshalSnapshot(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
