package core

import (
	"fmt"

	"github.com/go-drift/declui/pkg/errors"
	"github.com/go-drift/declui/pkg/lifecycle"
	"github.com/go-drift/declui/pkg/toolkit"
	"github.com/go-drift/declui/pkg/value"
)

// Builder is the fluent front end of an Element. Every method returns the
// builder; the first configuration error is kept and returned by Build.
//
//	b := core.New(adaptor, "Widget").
//	    Layout(toolkit.VBox, func(l *toolkit.LayoutSpec) { l.Spacing = 6 }).
//	    Child("Label", func(c *core.Builder) {
//	        c.BindState("text", "label")
//	    }).
//	    Child("Button", func(c *core.Builder) {
//	        c.Property("text", "Increment").On("clicked", increment)
//	    })
//	prim, err := b.Build()
type Builder struct {
	el   *Element
	opts []Option
	err  error
}

// New returns a builder for a primitive of the named type.
func New(a toolkit.Adaptor, typeName string, opts ...Option) *Builder {
	return &Builder{el: NewElement(a, typeName, opts...), opts: opts}
}

// Element returns the element being described.
func (b *Builder) Element() *Element { return b.el }

// Err returns the first configuration error, if any.
func (b *Builder) Err() error { return b.err }

func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Property stores a property value. v may be a value.Value or any Go
// value accepted by value.Of; colour strings stay strings.
func (b *Builder) Property(name string, v any) *Builder {
	pv, ok := v.(value.Value)
	if !ok {
		pv = value.Of(v)
	}
	if !pv.IsValid() {
		b.setErr(errors.Newf(errors.KindPropertyBinding, "core.Property", "property %q has no value", name).At(b.el.typeName + "." + name))
		return b
	}
	if err := b.el.SetProperty(name, pv); err != nil {
		b.setErr(err)
	}
	return b
}

// Color stores a colour property parsed from a "#rrggbb" style string or a
// colour name.
func (b *Builder) Color(name, color string) *Builder {
	c, err := value.ParseColor(color)
	if err != nil {
		b.setErr(errors.New(errors.KindPropertyBinding, "core.Color", err).At(b.el.typeName + "." + name))
		return b
	}
	return b.Property(name, value.ColorOf(c))
}

// Bind installs a producer evaluated on build and whenever a state cell it
// read changes. A binding wins over a plain property of the same name.
func (b *Builder) Bind(name string, produce func() value.Value) *Builder {
	b.el.Bind(name, func() (value.Value, error) { return produce(), nil })
	return b
}

// BindErr is like Bind for producers that can fail.
func (b *Builder) BindErr(name string, produce func() (value.Value, error)) *Builder {
	b.el.Bind(name, produce)
	return b
}

// BindState binds a property to a state key.
func (b *Builder) BindState(name, key string) *Builder {
	b.el.BindState(name, key)
	return b
}

// On connects fn to the named event.
func (b *Builder) On(event string, fn func()) *Builder {
	if fn == nil {
		b.setErr(errors.Newf(errors.KindComponentCreation, "core.On", "nil handler for %q", event))
		return b
	}
	b.el.On(event, fn)
	return b
}

// child returns a builder that inherits the adaptor and options.
func (b *Builder) child(typeName string) *Builder {
	cb := New(b.el.adaptor, typeName, b.opts...)
	cb.el.capture = b.el.capture
	return cb
}

// Child describes a child primitive. configure may be nil.
func (b *Builder) Child(typeName string, configure func(*Builder)) *Builder {
	cb := b.child(typeName)
	if configure != nil {
		configure(cb)
	}
	return b.ChildNode(cb)
}

// ChildNode attaches an already described node.
func (b *Builder) ChildNode(n Node) *Builder {
	if n == nil {
		b.setErr(errors.Newf(errors.KindComponentCreation, "core.Child", "nil child of %s", b.el.typeName))
		return b
	}
	b.el.AddChild(n)
	return b
}

// ConditionalChild attaches a child that is present only while guard
// holds. The renderer re-evaluates when any of keys changes.
func (b *Builder) ConditionalChild(guard Guard, typeName string, configure func(*Builder), keys ...string) *Builder {
	c := NewConditional(b.el.adaptor, ConditionalConfig{
		Reactive:      len(keys) > 0,
		DebounceDelay: DefaultDebounceDelay,
		Lazy:          true,
		Cache:         true,
		Clock:         b.el.clock,
		State:         b.el.state,
	})
	c.When(guard, func() Node {
		cb := b.child(typeName)
		if configure != nil {
			configure(cb)
		}
		return cb
	})
	c.BindState(keys...)
	return b.ChildNode(c)
}

// Conditional attaches a renderer configured by configure.
func (b *Builder) Conditional(cfg ConditionalConfig, configure func(*Conditional)) *Builder {
	if cfg.Clock == nil {
		cfg.Clock = b.el.clock
	}
	if cfg.State == nil {
		cfg.State = b.el.state
	}
	c := NewConditional(b.el.adaptor, cfg)
	if configure != nil {
		configure(c)
	}
	return b.ChildNode(c)
}

// Boundary attaches a child of the named type wrapped in an error
// boundary. configure describes the child; it is also the boundary's
// ChildFactory unless cfg sets one.
func (b *Builder) Boundary(cfg BoundaryConfig, typeName string, configure func(*Builder)) *Builder {
	if cfg.Clock == nil {
		cfg.Clock = b.el.clock
	}
	factory := func() (Node, error) {
		cb := b.child(typeName)
		if configure != nil {
			configure(cb)
		}
		return cb, cb.Err()
	}
	if cfg.ChildFactory == nil {
		cfg.ChildFactory = factory
	}
	child, err := factory()
	if err != nil {
		b.setErr(err)
		return b
	}
	return b.ChildNode(NewBoundary(b.el.adaptor, child, cfg))
}

// Layout assigns a layout. configure may adjust spacing and margins.
func (b *Builder) Layout(kind toolkit.LayoutKind, configure func(*toolkit.LayoutSpec)) *Builder {
	spec := toolkit.LayoutSpec{Kind: kind}
	if configure != nil {
		configure(&spec)
	}
	if err := spec.Validate(); err != nil {
		b.setErr(errors.New(errors.KindLayout, "core.Layout", err).At(b.el.typeName))
		return b
	}
	b.el.SetLayout(spec)
	return b
}

// Class adds style classes.
func (b *Builder) Class(names ...string) *Builder {
	b.el.AddClass(names...)
	return b
}

// Validate registers a check run before the primitive is created.
func (b *Builder) Validate(fn func(*Element) error) *Builder {
	b.el.AddValidator(fn)
	return b
}

// OnMount appends a mount hook.
func (b *Builder) OnMount(h lifecycle.Hook) *Builder {
	b.el.lifecycle.OnMount(h)
	return b
}

// OnUpdate appends an update hook.
func (b *Builder) OnUpdate(h lifecycle.Hook) *Builder {
	b.el.lifecycle.OnUpdate(h)
	return b
}

// OnUnmount appends an unmount hook.
func (b *Builder) OnUnmount(h lifecycle.Hook) *Builder {
	b.el.lifecycle.OnUnmount(h)
	return b
}

// OnError appends an error hook.
func (b *Builder) OnError(h lifecycle.Hook) *Builder {
	b.el.lifecycle.OnError(h)
	return b
}

// UseEffect registers an effect. Dependencies are converted with value.Of;
// a string naming a prop stands for that prop's value.
func (b *Builder) UseEffect(fn lifecycle.EffectFunc, deps ...any) *Builder {
	vals := make([]value.Value, len(deps))
	for i, d := range deps {
		if v, ok := d.(value.Value); ok {
			vals[i] = v
		} else {
			vals[i] = value.Of(d)
		}
	}
	b.el.lifecycle.UseEffect(fn, vals...)
	return b
}

// CreateWith replaces Adaptor.CreatePrimitive for this element.
func (b *Builder) CreateWith(f Factory) *Builder {
	b.el.factory = f
	return b
}

// Config sets the configuration handed to the primitive factory.
func (b *Builder) Config(config map[string]any) *Builder {
	b.el.config = config
	return b
}

// Strict makes unknown event names fatal.
func (b *Builder) Strict(strict bool) *Builder {
	b.el.strict = strict
	return b
}

// Build materializes the description. See Element.Build.
func (b *Builder) Build() (toolkit.Handle, error) {
	if b.err != nil {
		return nil, &errors.Error{
			Op:   "core.Build",
			Kind: errors.KindComponentCreation,
			Path: b.el.typeName,
			Err:  b.err,
		}
	}
	return b.el.Build()
}

// BuildSafe is like Build but reports the failure and returns nil instead
// of an error. It never panics.
func (b *Builder) BuildSafe() (prim toolkit.Handle) {
	err := errors.Try("core.BuildSafe", func() error {
		var berr error
		prim, berr = b.Build()
		return berr
	})
	if err != nil {
		report(b.el.capture, fmt.Errorf("build %s: %w", b.el.typeName, err), b.el.typeName)
		return nil
	}
	return prim
}

// MustBuild is like Build but panics on failure.
func (b *Builder) MustBuild() toolkit.Handle {
	prim, err := b.Build()
	if err != nil {
		panic(err)
	}
	return prim
}

// Primitive returns the built primitive, or nil.
func (b *Builder) Primitive() toolkit.Handle { return b.el.Primitive() }

// Unmount unmounts the element.
func (b *Builder) Unmount() { b.el.Unmount() }

// Serialize describes the element as a UI document.
func (b *Builder) Serialize() map[string]any { return b.el.Serialize() }

func (b *Builder) setCapture(c ErrorCapture) { b.el.setCapture(c) }
