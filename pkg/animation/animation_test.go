package animation_test

import (
	"math"
	"testing"
	"time"

	"github.com/go-drift/declui/pkg/animation"
	uitest "github.com/go-drift/declui/pkg/testing"
	"github.com/go-drift/declui/pkg/toolkit/headless"
	"github.com/go-drift/declui/pkg/value"
)

func TestControllerForward(t *testing.T) {
	clk := uitest.NewFakeClock()
	c := animation.NewAnimationController(100 * time.Millisecond)
	c.Clock = clk

	var statuses []animation.AnimationStatus
	c.AddStatusListener(func(s animation.AnimationStatus) { statuses = append(statuses, s) })

	c.Forward()
	if !c.IsAnimating() {
		t.Fatal("IsAnimating() = false after Forward")
	}
	clk.Advance(48 * time.Millisecond)
	if c.Value <= 0 || c.Value >= 1 {
		t.Errorf("Value mid-flight = %v, want in (0, 1)", c.Value)
	}
	clk.Advance(100 * time.Millisecond)
	if c.Value != 1 {
		t.Errorf("Value = %v, want 1", c.Value)
	}
	if !c.IsCompleted() {
		t.Errorf("Status() = %v, want completed", c.Status())
	}
	if len(statuses) != 2 || statuses[0] != animation.AnimationForward || statuses[1] != animation.AnimationCompleted {
		t.Errorf("statuses = %v, want [forward completed]", statuses)
	}
	if clk.Pending() != 0 {
		t.Errorf("Pending() = %d after completion, want 0", clk.Pending())
	}
}

func TestControllerZeroDuration(t *testing.T) {
	c := animation.NewAnimationController(0)
	c.Clock = uitest.NewFakeClock()
	c.Forward()
	if c.Value != 1 || !c.IsCompleted() {
		t.Errorf("Value = %v, status = %v; want 1, completed", c.Value, c.Status())
	}
}

func TestControllerStop(t *testing.T) {
	clk := uitest.NewFakeClock()
	c := animation.NewAnimationController(100 * time.Millisecond)
	c.Clock = clk
	c.Forward()
	clk.Advance(32 * time.Millisecond)
	c.Stop()
	v := c.Value
	clk.Advance(time.Second)
	if c.Value != v {
		t.Errorf("Value moved after Stop: %v -> %v", v, c.Value)
	}
}

func TestCubicBezierEndpoints(t *testing.T) {
	for name, curve := range map[string]func(float64) float64{
		"ease":      animation.Ease,
		"easeIn":    animation.EaseIn,
		"easeOut":   animation.EaseOut,
		"easeInOut": animation.EaseInOut,
	} {
		if got := curve(0); got != 0 {
			t.Errorf("%s(0) = %v, want 0", name, got)
		}
		if got := curve(1); got != 1 {
			t.Errorf("%s(1) = %v, want 1", name, got)
		}
		if got := curve(0.5); got <= 0 || got >= 1 {
			t.Errorf("%s(0.5) = %v, want in (0, 1)", name, got)
		}
	}
}

func TestTweenColor(t *testing.T) {
	tw := animation.TweenColor(value.Color{R: 0, A: 255}, value.Color{R: 200, A: 255})
	got := tw.Evaluate(0.5)
	if got.R != 100 || got.A != 255 {
		t.Errorf("Evaluate(0.5) = %v, want R=100 A=255", got)
	}
}

func TestFade(t *testing.T) {
	clk := uitest.NewFakeClock()
	a := headless.New()
	h, _ := a.CreatePrimitive("Label", nil)
	p := h.(*headless.Primitive)

	done := 0
	f := animation.NewFade(a, h, 0, 1, 200*time.Millisecond, clk).OnDone(func() { done++ })
	f.Start()
	if got, _ := p.Property("opacity").AsFloat(); got != 0 {
		t.Errorf("opacity at start = %v, want 0", got)
	}
	clk.Advance(100 * time.Millisecond)
	mid, _ := p.Property("opacity").AsFloat()
	if mid <= 0 || mid >= 1 {
		t.Errorf("opacity mid-fade = %v, want in (0, 1)", mid)
	}
	if !f.Running() {
		t.Error("Running() = false mid-fade")
	}
	clk.Advance(200 * time.Millisecond)
	if got, _ := p.Property("opacity").AsFloat(); math.Abs(got-1) > 1e-9 {
		t.Errorf("opacity at end = %v, want 1", got)
	}
	if done != 1 || !f.Finished() {
		t.Errorf("done = %d, Finished() = %v; want 1, true", done, f.Finished())
	}
}

func TestFadeStopSkipsDone(t *testing.T) {
	clk := uitest.NewFakeClock()
	a := headless.New()
	h, _ := a.CreatePrimitive("Label", nil)

	done := false
	f := animation.NewFade(a, h, 1, 0, 200*time.Millisecond, clk).OnDone(func() { done = true })
	f.Start()
	clk.Advance(50 * time.Millisecond)
	f.Stop()
	clk.Advance(time.Second)
	if done {
		t.Error("OnDone ran after Stop")
	}
	if f.Running() {
		t.Error("Running() = true after Stop")
	}
}
