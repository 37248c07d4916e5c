// Package core provides the declarative element layer: builders that
// describe primitives, conditional renderers that choose between subtrees,
// and error boundaries that isolate failures.
//
// Every node materializes into one toolkit primitive through a
// toolkit.Adaptor. The package never paints or lays out anything itself.
//
// # Builders
//
// A Builder accumulates properties, events, bindings, children and a
// layout, then materializes them in one Build call:
//
//	counter, _ := state.CreateState(m, "counter", 0)
//	state.CreateComputed(m, "label", func() string {
//	    return fmt.Sprintf("Count: %d", counter.Get())
//	})
//
//	root := core.New(adaptor, "Widget", core.WithState(m)).
//	    Layout(toolkit.VBox, nil).
//	    Child("Label", func(b *core.Builder) { b.BindState("text", "label") }).
//	    Child("Button", func(b *core.Builder) {
//	        b.Property("text", "+1").On("clicked", func() {
//	            counter.Update(func(n int) int { return n + 1 })
//	        })
//	    })
//	prim, err := root.Build()
//
// Build applies plain properties in insertion order, connects events,
// evaluates bindings (a binding wins over a plain property of the same
// name), attaches children and mounts the lifecycle. Bindings re-evaluate
// whenever a state cell they read changes. Build is idempotent.
//
// # Conditional Rendering
//
// A Conditional shows the first item whose guard holds:
//
//	c := core.NewConditional(adaptor, core.DefaultConditionalConfig()).
//	    WhenStateTrue("loading", spinner).
//	    WhenStateTrue("error", errorView).
//	    Otherwise(content)
//
// Reactive renderers re-evaluate on state changes, debounced. Guards may be
// asynchronous; a change that arrives during an asynchronous round
// schedules exactly one follow-up round.
//
// # Error Boundaries
//
// A Boundary wraps a child and applies a Strategy to every error captured
// from it: show a fallback, retry through a child factory, ignore, restart
// or propagate to the enclosing boundary. Runtime errors raised by nodes
// inside a boundary (panicking event handlers, failing bindings) are routed
// to it automatically. The process-wide BoundaryManager observes every
// report and is safe for concurrent use.
//
// # Threading
//
// Builders, elements, renderers and boundaries are confined to the UI
// thread. Work finishing elsewhere comes back through dispatch.Dispatch.
package core
