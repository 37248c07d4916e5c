package testing

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-drift/declui/pkg/toolkit"
	"github.com/go-drift/declui/pkg/toolkit/headless"
	"github.com/go-drift/declui/pkg/value"
)

// buildTree creates a Widget with a VBox holding a Label and two Buttons.
func buildTree(t *testing.T, a *headless.Adaptor) toolkit.Handle {
	t.Helper()
	root, _ := a.CreatePrimitive("Widget", nil)
	lay, _ := a.CreateLayout(toolkit.LayoutSpec{Kind: toolkit.VBox})
	label, _ := a.CreatePrimitive("Label", nil)
	a.SetProperty(label, "text", value.String("Name"))
	if err := a.Attach(root, label, lay); err != nil {
		t.Fatal(err)
	}
	for _, text := range []string{"OK", "Cancel"} {
		b, _ := a.CreatePrimitive("Button", nil)
		a.SetProperty(b, "text", value.String(text))
		if err := a.Attach(root, b, lay); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestCaptureSnapshot(t *testing.T) {
	a := headless.New()
	// Unrelated primitives must not shift the captured IDs.
	a.CreatePrimitive("Button", nil)

	snap := CaptureSnapshot(buildTree(t, a))
	root := snap.Tree
	if root == nil {
		t.Fatal("expected a tree")
	}
	if root.ID != "Widget#0" || root.Layout != "VBoxLayout" {
		t.Errorf("root = %s layout %q", root.ID, root.Layout)
	}
	var ids []string
	for _, c := range root.Children {
		ids = append(ids, c.ID+"="+c.Properties["text"])
	}
	if got, want := strings.Join(ids, " "), "Label#0=Name Button#0=OK Button#1=Cancel"; got != want {
		t.Errorf("children = %s, want %s", got, want)
	}
}

func TestCaptureSnapshotNonPrimitive(t *testing.T) {
	if snap := CaptureSnapshot(nil); snap.Tree != nil {
		t.Errorf("tree = %+v, want nil", snap.Tree)
	}
}

func TestSnapshotDiff(t *testing.T) {
	a := headless.New()
	root := buildTree(t, a)
	first := CaptureSnapshot(root)
	if diff := first.Diff(CaptureSnapshot(root)); diff != "" {
		t.Errorf("expected no diff for identical trees, got:\n%s", diff)
	}

	a.SetProperty(root.(*headless.Primitive).Children[1], "text", value.String("Yes"))
	diff := CaptureSnapshot(root).Diff(first)
	if !strings.Contains(diff, "OK") || !strings.Contains(diff, "Yes") {
		t.Errorf("diff should mention both texts:\n%s", diff)
	}
}

func TestSnapshotFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "tree.json")
	snap := CaptureSnapshot(buildTree(t, headless.New()))
	if err := snap.UpdateFile(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := loadSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := snap.Diff(loaded); diff != "" {
		t.Errorf("round trip changed the snapshot:\n%s", diff)
	}
	snap.MatchesFile(t, path)
}

type fakeT struct {
	fatals []string
	errs   []string
}

func (f *fakeT) Helper()      {}
func (f *fakeT) Name() string { return "TestFake" }
func (f *fakeT) Fatalf(format string, args ...any) {
	f.fatals = append(f.fatals, fmt.Sprintf(format, args...))
}
func (f *fakeT) Errorf(format string, args ...any) {
	f.errs = append(f.errs, fmt.Sprintf(format, args...))
}

func TestMatchesFileMissing(t *testing.T) {
	ft := &fakeT{}
	CaptureSnapshot(nil).MatchesFile(ft, filepath.Join(t.TempDir(), "missing.json"))
	if len(ft.fatals) != 1 || !strings.Contains(ft.fatals[0], UpdateSnapshotsEnv) {
		t.Errorf("fatals = %q", ft.fatals)
	}
}

func TestMatchesFileMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.json")
	if err := os.WriteFile(path, []byte(`{"tree": {"id": "Label#0", "type": "Label"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	ft := &fakeT{}
	CaptureSnapshot(buildTree(t, headless.New())).MatchesFile(ft, path)
	if len(ft.errs) != 1 || !strings.Contains(ft.errs[0], "snapshot mismatch") {
		t.Errorf("errs = %q", ft.errs)
	}
}

func TestMatchesFileUpdate(t *testing.T) {
	t.Setenv(UpdateSnapshotsEnv, "1")
	path := filepath.Join(t.TempDir(), "tree.json")
	ft := &fakeT{}
	CaptureSnapshot(buildTree(t, headless.New())).MatchesFile(ft, path)
	if len(ft.fatals)+len(ft.errs) != 0 {
		t.Fatalf("unexpected failures: %q %q", ft.fatals, ft.errs)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("snapshot not written: %v", err)
	}
}
