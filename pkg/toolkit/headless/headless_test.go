package headless

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-drift/declui/pkg/toolkit"
	"github.com/go-drift/declui/pkg/value"
)

func TestSetGetProperty(t *testing.T) {
	a := New()
	h, err := a.CreatePrimitive("Label", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !a.SetProperty(h, "text", value.String("hi")) {
		t.Fatal("SetProperty returned false")
	}
	got, ok := a.GetProperty(h, "text")
	if !ok || !got.Equal(value.String("hi")) {
		t.Errorf("GetProperty = %v, %v, want hi, true", got, ok)
	}

	a.RejectProperty("width")
	if a.SetProperty(h, "width", value.Int(3)) {
		t.Error("SetProperty(width) = true after RejectProperty")
	}
}

func TestConnectUnknownEvent(t *testing.T) {
	a := New()
	h, _ := a.CreatePrimitive("Label", nil)
	_, err := a.ConnectEvent(h, "clicked", func() {})
	if !errors.Is(err, toolkit.ErrUnknownEvent) {
		t.Errorf("ConnectEvent(clicked on Label) error = %v, want ErrUnknownEvent", err)
	}
	if _, err := a.ConnectEvent(h, "destroyed", func() {}); err != nil {
		t.Errorf("common signal rejected: %v", err)
	}
}

func TestEmitAndDisconnect(t *testing.T) {
	a := New()
	h, _ := a.CreatePrimitive("Button", nil)
	count := 0
	sub, err := a.ConnectEvent(h, "clicked", func() { count++ })
	if err != nil {
		t.Fatal(err)
	}
	if n := a.Emit(h, "clicked"); n != 1 || count != 1 {
		t.Fatalf("Emit = %d, count = %d, want 1, 1", n, count)
	}
	a.DisconnectEvent(sub)
	a.Emit(h, "clicked")
	if count != 1 {
		t.Errorf("count = %d after disconnect, want 1", count)
	}
}

func TestAttachAndDestroy(t *testing.T) {
	a := New()
	parent, _ := a.CreatePrimitive("Widget", nil)
	child, _ := a.CreatePrimitive("Label", nil)
	layout, err := a.CreateLayout(toolkit.LayoutSpec{Kind: toolkit.VBox, Spacing: 4})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Attach(parent, child, layout); err != nil {
		t.Fatal(err)
	}
	pp := parent.(*Primitive)
	if len(pp.Children) != 1 || pp.Layout == nil || len(pp.Layout.Items) != 1 {
		t.Fatalf("children = %d, layout = %v", len(pp.Children), pp.Layout)
	}

	var destroyed []string
	a.OnDestroyed(child, func() { destroyed = append(destroyed, "child") })
	a.OnDestroyed(parent, func() { destroyed = append(destroyed, "parent") })
	a.Destroy(parent)

	if len(destroyed) != 2 || destroyed[0] != "child" {
		t.Errorf("destroy order = %v, want [child parent]", destroyed)
	}
	if len(a.Live("")) != 0 {
		t.Errorf("live primitives = %d, want 0", len(a.Live("")))
	}
}

func TestCreateLayoutRejectsInvalid(t *testing.T) {
	a := New()
	if _, err := a.CreateLayout(toolkit.LayoutSpec{Kind: "CircleLayout"}); err == nil {
		t.Error("expected error for unknown layout kind")
	}
	if _, err := a.CreateLayout(toolkit.LayoutSpec{Kind: toolkit.HBox, Margins: [4]float64{0, -1, 0, 0}}); err == nil {
		t.Error("expected error for negative margin")
	}
}

func TestDump(t *testing.T) {
	a := New()
	root, _ := a.CreatePrimitive("Widget", nil)
	lbl, _ := a.CreatePrimitive("Label", nil)
	a.SetProperty(lbl, "text", value.String("ok"))
	a.Attach(root, lbl, nil)

	got := Dump(root)
	want := "Widget\n  Label text=\"ok\"\n"
	if got != want {
		t.Errorf("Dump = %q, want %q", got, want)
	}
	if !strings.Contains(Dump(lbl), "Label") {
		t.Error("Dump(child) missing type")
	}
}
