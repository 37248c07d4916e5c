// Package headless is an in-memory toolkit adaptor. Primitives are plain
// structs with a property bag, named signals and a child list. It backs the
// CLI preview and every test that needs a toolkit.
package headless

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-drift/declui/pkg/toolkit"
	"github.com/go-drift/declui/pkg/value"
)

// commonSignals are available on every primitive type.
var commonSignals = []string{"destroyed", "customContextMenuRequested"}

// DefaultSignals is the signal table installed by New.
var DefaultSignals = map[string][]string{
	"Widget":        {},
	"Label":         {"linkActivated", "linkHovered"},
	"Button":        {"clicked", "pressed", "released", "toggled"},
	"LineEdit":      {"textChanged", "textEdited", "editingFinished", "returnPressed"},
	"TextEdit":      {"textChanged", "selectionChanged"},
	"CheckBox":      {"clicked", "toggled", "stateChanged"},
	"RadioButton":   {"clicked", "toggled"},
	"ComboBox":      {"currentIndexChanged", "currentTextChanged", "activated"},
	"SpinBox":       {"valueChanged", "editingFinished"},
	"DoubleSpinBox": {"valueChanged", "editingFinished"},
	"Slider":        {"valueChanged", "sliderMoved", "sliderPressed", "sliderReleased"},
	"ProgressBar":   {"valueChanged"},
	"GroupBox":      {"clicked", "toggled"},
	"Frame":         {},
	"ScrollArea":    {},
	"TabWidget":     {"currentChanged", "tabCloseRequested"},
	"Splitter":      {"splitterMoved"},
}

// Primitive is a headless visual object.
type Primitive struct {
	ID       int
	Type     string
	Config   map[string]any
	Parent   *Primitive
	Children []*Primitive
	Layout   *Layout

	props     map[string]value.Value
	handlers  map[string][]handler
	destroyed bool
	onDestroy []func()
}

type handler struct {
	id uint64
	fn func()
}

// Layout is a realized layout spec with the primitives placed in it.
type Layout struct {
	Spec  toolkit.LayoutSpec
	Items []*Primitive
}

// Property returns a property value, or the invalid Value when unset.
func (p *Primitive) Property(name string) value.Value {
	return p.props[name]
}

// PropertyNames returns the names of all set properties, sorted.
func (p *Primitive) PropertyNames() []string {
	names := make([]string, 0, len(p.props))
	for name := range p.props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Destroyed reports whether the primitive was destroyed.
func (p *Primitive) Destroyed() bool { return p.destroyed }

// Visible reports the "visible" property, defaulting to true.
func (p *Primitive) Visible() bool {
	v, ok := p.props["visible"].AsBool()
	return !ok || v
}

func (p *Primitive) String() string {
	return fmt.Sprintf("%s#%d", p.Type, p.ID)
}

// Adaptor implements toolkit.Adaptor in memory. It is confined to the UI
// thread like the rest of the core.
type Adaptor struct {
	signals    map[string]map[string]bool
	failing    map[string]error
	rejecting  map[string]bool
	nextID     int
	nextSub    uint64
	primitives []*Primitive
}

var _ toolkit.Adaptor = (*Adaptor)(nil)

// New returns an adaptor with the DefaultSignals table.
func New() *Adaptor {
	a := &Adaptor{
		signals:   make(map[string]map[string]bool),
		failing:   make(map[string]error),
		rejecting: make(map[string]bool),
	}
	for typeName, names := range DefaultSignals {
		a.RegisterSignals(typeName, names...)
	}
	return a
}

// RegisterSignals declares signals for a primitive type, creating the type
// if needed. Types never registered accept only the common signals.
func (a *Adaptor) RegisterSignals(typeName string, names ...string) {
	set := a.signals[typeName]
	if set == nil {
		set = make(map[string]bool)
		a.signals[typeName] = set
	}
	for _, n := range names {
		set[n] = true
	}
}

// Signals returns the known signal names for a type, sorted.
func (a *Adaptor) Signals(typeName string) []string {
	var out []string
	out = append(out, commonSignals...)
	for n := range a.signals[typeName] {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// FailCreation makes CreatePrimitive fail for typeName. A nil err clears it.
func (a *Adaptor) FailCreation(typeName string, err error) {
	if err == nil {
		delete(a.failing, typeName)
		return
	}
	a.failing[typeName] = err
}

// RejectProperty makes SetProperty return false for name.
func (a *Adaptor) RejectProperty(name string) {
	a.rejecting[name] = true
}

func (a *Adaptor) CreatePrimitive(typeName string, config map[string]any) (toolkit.Handle, error) {
	if typeName == "" {
		return nil, fmt.Errorf("headless: empty type name")
	}
	if err := a.failing[typeName]; err != nil {
		return nil, err
	}
	a.nextID++
	p := &Primitive{
		ID:       a.nextID,
		Type:     typeName,
		Config:   config,
		props:    make(map[string]value.Value),
		handlers: make(map[string][]handler),
	}
	a.primitives = append(a.primitives, p)
	return p, nil
}

func (a *Adaptor) SetProperty(h toolkit.Handle, name string, v value.Value) bool {
	p, ok := h.(*Primitive)
	if !ok || p == nil || p.destroyed || a.rejecting[name] {
		return false
	}
	p.props[name] = v
	return true
}

func (a *Adaptor) GetProperty(h toolkit.Handle, name string) (value.Value, bool) {
	p, ok := h.(*Primitive)
	if !ok || p == nil {
		return value.Value{}, false
	}
	v, ok := p.props[name]
	return v, ok
}

func (a *Adaptor) knows(typeName, event string) bool {
	for _, s := range commonSignals {
		if s == event {
			return true
		}
	}
	return a.signals[typeName][event]
}

func (a *Adaptor) ConnectEvent(h toolkit.Handle, event string, fn func()) (toolkit.Subscription, error) {
	p, ok := h.(*Primitive)
	if !ok || p == nil || p.destroyed {
		return toolkit.Subscription{}, fmt.Errorf("headless: connect %q on invalid handle", event)
	}
	if !a.knows(p.Type, event) {
		return toolkit.Subscription{}, fmt.Errorf("%w %q for %s", toolkit.ErrUnknownEvent, event, p.Type)
	}
	a.nextSub++
	p.handlers[event] = append(p.handlers[event], handler{id: a.nextSub, fn: fn})
	return toolkit.Subscription{Handle: p, Event: event, ID: a.nextSub}, nil
}

func (a *Adaptor) DisconnectEvent(sub toolkit.Subscription) {
	p, ok := sub.Handle.(*Primitive)
	if !ok || p == nil {
		return
	}
	hs := p.handlers[sub.Event]
	for i, h := range hs {
		if h.id == sub.ID {
			p.handlers[sub.Event] = append(hs[:i:i], hs[i+1:]...)
			return
		}
	}
}

func (a *Adaptor) CreateLayout(spec toolkit.LayoutSpec) (toolkit.Handle, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &Layout{Spec: spec}, nil
}

func (a *Adaptor) Attach(parent, child, layout toolkit.Handle) error {
	pp, ok := parent.(*Primitive)
	if !ok || pp == nil || pp.destroyed {
		return fmt.Errorf("headless: attach to invalid parent %v", parent)
	}
	cp, ok := child.(*Primitive)
	if !ok || cp == nil || cp.destroyed {
		return fmt.Errorf("headless: attach invalid child %v", child)
	}
	if cp.Parent != nil {
		cp.Parent.removeChild(cp)
	}
	if layout != nil {
		l, ok := layout.(*Layout)
		if !ok {
			return fmt.Errorf("headless: invalid layout handle %T", layout)
		}
		if pp.Layout == nil {
			pp.Layout = l
		}
		l.Items = append(l.Items, cp)
	}
	cp.Parent = pp
	pp.Children = append(pp.Children, cp)
	return nil
}

func (p *Primitive) removeChild(c *Primitive) {
	for i, x := range p.Children {
		if x == c {
			p.Children = append(p.Children[:i:i], p.Children[i+1:]...)
			break
		}
	}
	if p.Layout != nil {
		for i, x := range p.Layout.Items {
			if x == c {
				p.Layout.Items = append(p.Layout.Items[:i:i], p.Layout.Items[i+1:]...)
				break
			}
		}
	}
	c.Parent = nil
}

func (a *Adaptor) Destroy(h toolkit.Handle) {
	p, ok := h.(*Primitive)
	if !ok || p == nil || p.destroyed {
		return
	}
	if p.Parent != nil {
		p.Parent.removeChild(p)
	}
	a.destroy(p)
}

func (a *Adaptor) destroy(p *Primitive) {
	p.destroyed = true
	children := p.Children
	p.Children = nil
	for _, c := range children {
		c.Parent = nil
		a.destroy(c)
	}
	for _, h := range p.handlers["destroyed"] {
		h.fn()
	}
	p.handlers = make(map[string][]handler)
	callbacks := p.onDestroy
	p.onDestroy = nil
	for _, fn := range callbacks {
		fn()
	}
}

func (a *Adaptor) OnDestroyed(h toolkit.Handle, fn func()) {
	p, ok := h.(*Primitive)
	if !ok || p == nil || fn == nil {
		return
	}
	if p.destroyed {
		fn()
		return
	}
	p.onDestroy = append(p.onDestroy, fn)
}

// Emit fires the named signal on h and returns how many handlers ran.
func (a *Adaptor) Emit(h toolkit.Handle, event string) int {
	p, ok := h.(*Primitive)
	if !ok || p == nil || p.destroyed {
		return 0
	}
	hs := append([]handler(nil), p.handlers[event]...)
	for _, h := range hs {
		h.fn()
	}
	return len(hs)
}

// Handlers reports how many handlers are connected to the signal.
func (a *Adaptor) Handlers(h toolkit.Handle, event string) int {
	p, ok := h.(*Primitive)
	if !ok || p == nil {
		return 0
	}
	return len(p.handlers[event])
}

// Primitives returns every primitive ever created, in creation order.
func (a *Adaptor) Primitives() []*Primitive {
	return append([]*Primitive(nil), a.primitives...)
}

// Live returns primitives of the given type that are not destroyed. An
// empty type matches all.
func (a *Adaptor) Live(typeName string) []*Primitive {
	var out []*Primitive
	for _, p := range a.primitives {
		if !p.destroyed && (typeName == "" || p.Type == typeName) {
			out = append(out, p)
		}
	}
	return out
}

// Find returns the first live primitive of typeName whose property name
// equals v.
func (a *Adaptor) Find(typeName, name string, v value.Value) *Primitive {
	for _, p := range a.Live(typeName) {
		if p.props[name].Equal(v) {
			return p
		}
	}
	return nil
}

// Dump renders the subtree rooted at h as an indented outline.
func Dump(h toolkit.Handle) string {
	p, ok := h.(*Primitive)
	if !ok || p == nil {
		return ""
	}
	var sb strings.Builder
	dump(&sb, p, 0)
	return sb.String()
}

func dump(sb *strings.Builder, p *Primitive, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(p.Type)
	for _, name := range p.PropertyNames() {
		fmt.Fprintf(sb, " %s=%q", name, p.props[name].String())
	}
	if p.Layout != nil {
		fmt.Fprintf(sb, " layout=%s", p.Layout.Spec.Kind)
	}
	sb.WriteString("\n")
	for _, c := range p.Children {
		dump(sb, c, depth+1)
	}
}
