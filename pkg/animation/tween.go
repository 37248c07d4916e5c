package animation

import "github.com/go-drift/declui/pkg/value"

// Tween maps controller progress onto a range between Begin and End.
type Tween[T any] struct {
	Begin T
	End   T
	// Lerp interpolates; nil makes every progress map to End.
	Lerp func(a, b T, t float64) T
}

// Evaluate returns the value at progress t.
func (tw *Tween[T]) Evaluate(t float64) T {
	if tw.Lerp == nil {
		return tw.End
	}
	return tw.Lerp(tw.Begin, tw.End, t)
}

// Transform evaluates the tween at the controller's current value.
func (tw *Tween[T]) Transform(controller *AnimationController) T {
	return tw.Evaluate(controller.Value)
}

func LerpFloat64(a, b, t float64) float64 { return a + (b-a)*t }

// LerpColor interpolates each channel, rounding to the nearest step.
func LerpColor(a, b value.Color, t float64) value.Color {
	ch := func(x, y uint8) uint8 {
		return uint8(LerpFloat64(float64(x), float64(y), t) + 0.5)
	}
	return value.Color{
		R: ch(a.R, b.R),
		G: ch(a.G, b.G),
		B: ch(a.B, b.B),
		A: ch(a.A, b.A),
	}
}

// TweenFloat64 is used for opacity.
func TweenFloat64(begin, end float64) *Tween[float64] {
	return &Tween[float64]{Begin: begin, End: end, Lerp: LerpFloat64}
}

func TweenColor(begin, end value.Color) *Tween[value.Color] {
	return &Tween[value.Color]{Begin: begin, End: end, Lerp: LerpColor}
}
