package core

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-drift/declui/pkg/clock"
	"github.com/go-drift/declui/pkg/errors"
	"github.com/go-drift/declui/pkg/lifecycle"
	"github.com/go-drift/declui/pkg/state"
	"github.com/go-drift/declui/pkg/toolkit"
	"github.com/go-drift/declui/pkg/value"
)

// Factory creates the primitive for an element in place of
// Adaptor.CreatePrimitive.
type Factory func(a toolkit.Adaptor, typeName string, config map[string]any) (toolkit.Handle, error)

// ClassProperty carries an element's style classes, joined by spaces.
const ClassProperty = "class"

type property struct {
	name string
	v    value.Value
}

type eventBinding struct {
	name    string
	handler string
	fn      func()
	sub     toolkit.Subscription
	live    bool
}

type binding struct {
	name     string
	stateKey string
	produce  func() (value.Value, error)
	keys     []string
	tokens   []state.Token
	last     value.Value
}

// Element is a materializable description of one primitive. It stores
// properties, events, bindings and children until Build, then owns the
// primitive until Unmount. An Element is confined to the UI thread.
type Element struct {
	adaptor  toolkit.Adaptor
	typeName string
	config   map[string]any
	factory  Factory
	state    *state.Manager
	clock    clock.Clock
	strict   bool
	capture  ErrorCapture

	props      []property
	events     []*eventBinding
	bindings   []*binding
	children   []Node
	layout     *toolkit.LayoutSpec
	classes    []string
	validators []func(*Element) error

	lifecycle *lifecycle.Lifecycle

	primitive     toolkit.Handle
	layoutHandle  toolkit.Handle
	built         bool
	buildErr      error
	removeErrHook func()
}

// Option configures an Element.
type Option func(*Element)

// WithState sets the state manager bindings read from. The default is
// state.Default().
func WithState(m *state.Manager) Option {
	return func(e *Element) {
		if m != nil {
			e.state = m
		}
	}
}

// WithClock sets the clock used for lifecycle metrics and timers.
func WithClock(c clock.Clock) Option {
	return func(e *Element) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithStrict makes unknown event names fatal.
func WithStrict(strict bool) Option {
	return func(e *Element) { e.strict = strict }
}

// WithConfig sets the configuration handed to the primitive factory.
func WithConfig(config map[string]any) Option {
	return func(e *Element) { e.config = config }
}

// WithFactory replaces Adaptor.CreatePrimitive for this element.
func WithFactory(f Factory) Option {
	return func(e *Element) { e.factory = f }
}

// NewElement returns an unbuilt element of the named primitive type.
func NewElement(a toolkit.Adaptor, typeName string, opts ...Option) *Element {
	e := &Element{
		adaptor:  a,
		typeName: typeName,
		state:    state.Default(),
		clock:    clock.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.lifecycle = lifecycle.New(e.clock)
	return e
}

// Type returns the primitive type name.
func (e *Element) Type() string { return e.typeName }

// Primitive returns the primitive while mounted, nil otherwise.
func (e *Element) Primitive() toolkit.Handle { return e.primitive }

// Mounted reports whether the element holds a live primitive.
func (e *Element) Mounted() bool { return e.primitive != nil }

// Lifecycle returns the element's lifecycle.
func (e *Element) Lifecycle() *lifecycle.Lifecycle { return e.lifecycle }

// State returns the state manager bindings read from.
func (e *Element) State() *state.Manager { return e.state }

// Children returns the child nodes in attachment order.
func (e *Element) Children() []Node { return slices.Clone(e.children) }

// Classes returns the style classes in insertion order.
func (e *Element) Classes() []string { return slices.Clone(e.classes) }

// SetProperty stores a plain property. A name set twice keeps its first
// position. While mounted the value is written through to the primitive;
// a bound name keeps its binding.
func (e *Element) SetProperty(name string, v value.Value) error {
	for i := range e.props {
		if e.props[i].name == name {
			e.props[i].v = v
			return e.writeThrough(name, v)
		}
	}
	e.props = append(e.props, property{name: name, v: v})
	return e.writeThrough(name, v)
}

func (e *Element) writeThrough(name string, v value.Value) error {
	if e.primitive == nil || e.bindingFor(name) != nil {
		return nil
	}
	if !e.adaptor.SetProperty(e.primitive, name, v) {
		return e.rejected(name, v)
	}
	return nil
}

func (e *Element) rejected(name string, v value.Value) error {
	return &errors.Error{
		Op:   "core.SetProperty",
		Kind: errors.KindPropertyBinding,
		Path: e.typeName + "." + name,
		Err:  fmt.Errorf("%s rejected property %q = %v", e.typeName, name, v),
	}
}

// Property returns the effective value of a property: the last bound
// value for a bound name, the stored value otherwise.
func (e *Element) Property(name string) (value.Value, bool) {
	if b := e.bindingFor(name); b != nil && b.last.IsValid() {
		return b.last, true
	}
	for _, p := range e.props {
		if p.name == name {
			return p.v, true
		}
	}
	return value.Value{}, false
}

// Props returns the effective properties.
func (e *Element) Props() lifecycle.Props {
	out := make(lifecycle.Props, len(e.props)+len(e.bindings))
	for _, p := range e.props {
		out[p.name] = p.v
	}
	for _, b := range e.bindings {
		if b.last.IsValid() {
			out[b.name] = b.last
		}
	}
	return out
}

func (e *Element) bindingFor(name string) *binding {
	for _, b := range e.bindings {
		if b.name == name {
			return b
		}
	}
	return nil
}

// Bind installs a producer for a property. A later Bind on the same name
// replaces the earlier one.
func (e *Element) Bind(name string, produce func() (value.Value, error)) {
	e.addBinding(&binding{name: name, produce: produce})
}

// BindState binds a property to the current value of a state key.
func (e *Element) BindState(name, key string) {
	e.addBinding(&binding{
		name:     name,
		stateKey: key,
		produce:  func() (value.Value, error) { return e.state.PropertyValue(key) },
	})
}

func (e *Element) addBinding(b *binding) {
	for i, old := range e.bindings {
		if old.name == b.name {
			e.unwatch(old)
			e.bindings[i] = b
			return
		}
	}
	e.bindings = append(e.bindings, b)
}

// On connects fn to the named event once the primitive exists.
func (e *Element) On(event string, fn func()) {
	e.events = append(e.events, &eventBinding{name: event, fn: fn})
}

// OnNamed is like On and records the handler name for Serialize.
func (e *Element) OnNamed(event, handler string, fn func()) {
	e.events = append(e.events, &eventBinding{name: event, handler: handler, fn: fn})
}

// AddChild appends a child node.
func (e *Element) AddChild(n Node) {
	e.children = append(e.children, n)
}

// SetLayout assigns the layout children are inserted into.
func (e *Element) SetLayout(spec toolkit.LayoutSpec) {
	e.layout = &spec
}

// Layout returns the layout spec, or nil.
func (e *Element) Layout() *toolkit.LayoutSpec { return e.layout }

// AddClass appends style classes, ignoring duplicates.
func (e *Element) AddClass(names ...string) {
	for _, n := range names {
		for _, f := range strings.Fields(n) {
			if !slices.Contains(e.classes, f) {
				e.classes = append(e.classes, f)
			}
		}
	}
	e.syncClasses()
}

// RemoveClass removes style classes.
func (e *Element) RemoveClass(names ...string) {
	e.classes = slices.DeleteFunc(e.classes, func(c string) bool {
		return slices.Contains(names, c)
	})
	e.syncClasses()
}

// HasClass reports whether the element carries the class.
func (e *Element) HasClass(name string) bool {
	return slices.Contains(e.classes, name)
}

// ToggleClass adds the class when absent and removes it otherwise.
func (e *Element) ToggleClass(name string) {
	if e.HasClass(name) {
		e.RemoveClass(name)
	} else {
		e.AddClass(name)
	}
}

func (e *Element) syncClasses() {
	if e.primitive != nil {
		e.adaptor.SetProperty(e.primitive, ClassProperty, value.String(strings.Join(e.classes, " ")))
	}
}

// AddValidator registers a check run at the start of Build.
func (e *Element) AddValidator(fn func(*Element) error) {
	e.validators = append(e.validators, fn)
}

// Validate runs every registered validator and joins their errors.
func (e *Element) Validate() error {
	var errs []error
	for _, fn := range e.validators {
		if err := fn(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Element) setCapture(c ErrorCapture) {
	if e.capture == nil {
		e.capture = c
	}
}

// Build materializes the element: it creates the primitive, applies
// properties in insertion order, connects events, evaluates bindings
// (overwriting plain properties of the same name), attaches children and
// mounts the lifecycle. A second call returns the same primitive or the
// same error; Build after Unmount fails.
func (e *Element) Build() (toolkit.Handle, error) {
	if e.built {
		if e.buildErr != nil {
			return nil, e.buildErr
		}
		if e.primitive == nil {
			return nil, errors.Newf(errors.KindComponentCreation, "core.Build", "%s was unmounted", e.typeName)
		}
		return e.primitive, nil
	}
	e.built = true
	if err := e.build(); err != nil {
		e.buildErr = &errors.Error{
			Op:        "core.Build",
			Kind:      errors.KindComponentCreation,
			Path:      e.typeName,
			Err:       err,
			Timestamp: e.clock.Now(),
		}
		return nil, e.buildErr
	}
	return e.primitive, nil
}

func (e *Element) build() error {
	const op = "core.Build"
	if e.adaptor == nil {
		return fmt.Errorf("no toolkit adaptor")
	}
	if err := e.Validate(); err != nil {
		return err
	}

	var prim toolkit.Handle
	err := errors.Try(op, func() error {
		var cerr error
		if e.factory != nil {
			prim, cerr = e.factory(e.adaptor, e.typeName, e.config)
		} else {
			prim, cerr = e.adaptor.CreatePrimitive(e.typeName, e.config)
		}
		return cerr
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", e.typeName, err)
	}
	if prim == nil {
		return fmt.Errorf("create %s: factory returned no primitive", e.typeName)
	}
	e.primitive = prim

	if err := e.apply(prim); err != nil {
		e.release(prim)
		return err
	}

	e.lifecycle.SetProps(e.Props())
	if err := e.lifecycle.Mount(prim); err != nil {
		e.release(prim)
		return err
	}
	e.adaptor.OnDestroyed(prim, e.destroyed)
	e.removeErrHook = e.state.OnError(e.computeFailed)
	return nil
}

func (e *Element) release(prim toolkit.Handle) {
	e.detach()
	e.primitive = nil
	e.adaptor.Destroy(prim)
}

func (e *Element) apply(prim toolkit.Handle) error {
	for _, p := range e.props {
		if e.bindingFor(p.name) != nil {
			continue
		}
		if !e.adaptor.SetProperty(prim, p.name, p.v) {
			return e.rejected(p.name, p.v)
		}
	}
	if len(e.classes) > 0 {
		e.syncClasses()
	}

	for _, ev := range e.events {
		sub, err := e.adaptor.ConnectEvent(prim, ev.name, e.guard(ev))
		if err != nil {
			if errors.Is(err, toolkit.ErrUnknownEvent) && !e.strict {
				errors.WarnAt("core.On", e.typeName, "%v", err)
				continue
			}
			return fmt.Errorf("connect %q: %w", ev.name, err)
		}
		ev.sub, ev.live = sub, true
	}

	for _, b := range e.bindings {
		if err := e.evaluate(b); err != nil {
			return err
		}
	}

	if e.layout != nil {
		lh, err := e.adaptor.CreateLayout(*e.layout)
		if err != nil {
			return errors.New(errors.KindLayout, "core.Layout", err).At(e.typeName)
		}
		e.layoutHandle = lh
	}
	for i, child := range e.children {
		routeErrors(child, e.capture)
		ch, err := buildNode("core.Child", child)
		if err != nil {
			return fmt.Errorf("child %d: %w", i, err)
		}
		if err := e.adaptor.Attach(prim, ch, e.layoutHandle); err != nil {
			child.Unmount()
			return fmt.Errorf("attach child %d: %w", i, err)
		}
	}
	return nil
}

// guard wraps an event handler so a panic is reported against the element
// instead of unwinding into the toolkit.
func (e *Element) guard(ev *eventBinding) func() {
	return func() {
		err := errors.Try("core.event", func() error {
			ev.fn()
			return nil
		})
		if err != nil {
			e.fail(errors.Newf(errors.KindRuntime, "core.event", "%s %q handler: %w", e.typeName, ev.name, err))
		}
	}
}

// evaluate runs a binding producer under dependency tracking, writes the
// result and subscribes to the keys it read.
func (e *Element) evaluate(b *binding) error {
	const op = "core.Bind"
	var v value.Value
	var perr error
	keys := e.state.Track(func() {
		perr = errors.Try(op, func() error {
			var err error
			v, err = b.produce()
			return err
		})
	})
	if b.stateKey != "" && !slices.Contains(keys, b.stateKey) {
		keys = append(keys, b.stateKey)
	}
	e.watch(b, keys)
	path := e.typeName + "." + b.name
	if perr != nil {
		return errors.Newf(errors.KindPropertyBinding, op, "binding %q: %w", b.name, perr).At(path)
	}
	b.last = v
	if !e.adaptor.SetProperty(e.primitive, b.name, v) {
		return e.rejected(b.name, v)
	}
	return nil
}

func (e *Element) watch(b *binding, keys []string) {
	if slices.Equal(b.keys, keys) && len(b.tokens) > 0 {
		return
	}
	e.unwatch(b)
	b.keys = keys
	for _, k := range keys {
		tok, err := e.state.SubscribeKey(k, func(any) { e.refreshBinding(b) })
		if err == nil {
			b.tokens = append(b.tokens, tok)
		}
	}
}

func (e *Element) unwatch(b *binding) {
	for _, tok := range b.tokens {
		e.state.Unsubscribe(tok)
	}
	b.tokens = nil
}

func (e *Element) refreshBinding(b *binding) {
	if e.primitive == nil {
		return
	}
	if err := e.evaluate(b); err != nil {
		e.fail(err)
	}
}

// Refresh re-evaluates every binding and returns the joined failures.
func (e *Element) Refresh() error {
	if e.primitive == nil {
		return nil
	}
	var errs []error
	for _, b := range e.bindings {
		if err := e.evaluate(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Element) computeFailed(key string, err error) {
	for _, b := range e.bindings {
		if slices.Contains(b.keys, key) {
			e.lifecycle.HandleError(err)
			if e.capture != nil {
				e.capture.CaptureError(err, e.typeName)
			}
			return
		}
	}
}

// fail records a runtime error: the lifecycle enters its Error phase and
// the nearest boundary, if any, applies its strategy.
func (e *Element) fail(err error) {
	e.lifecycle.HandleError(err)
	if e.capture != nil {
		e.capture.CaptureError(err, e.typeName)
	}
}

// Update writes changed properties through and runs update hooks and
// effects with the previous and next props.
func (e *Element) Update(next map[string]value.Value) error {
	if e.primitive == nil {
		return errors.Newf(errors.KindLifecycle, "core.Update", "%s is not mounted", e.typeName)
	}
	prev := e.Props()
	names := make([]string, 0, len(next))
	for name := range next {
		names = append(names, name)
	}
	slices.Sort(names)
	var errs []error
	for _, name := range names {
		if err := e.SetProperty(name, next[name]); err != nil {
			errs = append(errs, err)
		}
	}
	e.lifecycle.Update(prev, e.Props())
	return errors.Join(errs...)
}

// Unmount runs unmount hooks, unmounts children, disconnects events and
// bindings, then destroys the primitive.
func (e *Element) Unmount() {
	prim := e.primitive
	if prim == nil {
		return
	}
	e.lifecycle.Unmount()
	for _, child := range e.children {
		child.Unmount()
	}
	e.detach()
	e.primitive = nil
	e.adaptor.Destroy(prim)
}

// destroyed handles destruction the element did not request.
func (e *Element) destroyed() {
	if e.primitive == nil {
		return
	}
	e.primitive = nil
	e.lifecycle.Destroyed()
	for _, child := range e.children {
		child.Unmount()
	}
	e.detach()
}

func (e *Element) detach() {
	for _, ev := range e.events {
		if ev.live {
			e.adaptor.DisconnectEvent(ev.sub)
			ev.live = false
		}
	}
	for _, b := range e.bindings {
		e.unwatch(b)
		b.keys = nil
	}
	if e.removeErrHook != nil {
		e.removeErrHook()
		e.removeErrHook = nil
	}
	e.layoutHandle = nil
}

// Serialize describes the element as a UI document. Producer bindings and
// unnamed event handlers have no serialized form and are omitted.
func (e *Element) Serialize() map[string]any {
	doc := map[string]any{"type": e.typeName}
	if len(e.props) > 0 || len(e.classes) > 0 {
		props := make(map[string]any, len(e.props)+1)
		for _, p := range e.props {
			props[p.name] = plain(p.v)
		}
		if len(e.classes) > 0 {
			props[ClassProperty] = strings.Join(e.classes, " ")
		}
		doc["properties"] = props
	}
	events := make(map[string]any)
	for _, ev := range e.events {
		if ev.handler != "" {
			events[ev.name] = ev.handler
		}
	}
	if len(events) > 0 {
		doc["events"] = events
	}
	bindings := make(map[string]any)
	for _, b := range e.bindings {
		if b.stateKey != "" {
			bindings[b.name] = b.stateKey
		}
	}
	if len(bindings) > 0 {
		doc["bindings"] = bindings
	}
	if e.layout != nil {
		doc["layout"] = map[string]any{
			"type":    string(e.layout.Kind),
			"spacing": e.layout.Spacing,
			"margins": []any{e.layout.Margins[0], e.layout.Margins[1], e.layout.Margins[2], e.layout.Margins[3]},
		}
	}
	var children []any
	for _, c := range e.children {
		if s, ok := c.(serializer); ok {
			children = append(children, s.Serialize())
		}
	}
	if len(children) > 0 {
		doc["children"] = children
	}
	return doc
}

func plain(v value.Value) any {
	if c, ok := v.AsColor(); ok {
		return c.String()
	}
	return v.Interface()
}
