// Package loader turns UI documents into element trees.
//
// A document node names a registered component type and may carry
// properties, events, bindings, a layout and children:
//
//	{
//	  "type": "Widget",
//	  "layout": {"type": "VBoxLayout", "spacing": 6},
//	  "children": [
//	    {"type": "Label", "bindings": {"text": "greeting"}},
//	    {"type": "Button", "properties": {"text": "ok"}, "events": {"clicked": "submit"}}
//	  ]
//	}
//
// Event values name handlers installed with RegisterHandler before the
// load. Binding values are state keys. Primitives are created through the
// component registry, so custom components registered there are
// available to documents.
package loader

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/go-drift/declui/pkg/clock"
	"github.com/go-drift/declui/pkg/core"
	"github.com/go-drift/declui/pkg/errors"
	"github.com/go-drift/declui/pkg/parser"
	"github.com/go-drift/declui/pkg/registry"
	"github.com/go-drift/declui/pkg/state"
	"github.com/go-drift/declui/pkg/toolkit"
	"github.com/go-drift/declui/pkg/validator"
	"github.com/go-drift/declui/pkg/value"
)

// Converter turns a decoded JSON property value into a property value.
type Converter func(v any) (value.Value, error)

// Options configures a Loader.
type Options struct {
	Parser parser.Options
	// Validate runs the validator over the document before building it.
	Validate bool
	// Validator replaces the default rule set used when Validate is on.
	Validator *validator.Validator
	// Strict makes unknown event names fatal.
	Strict bool
	// MissingHandler supplies a handler for names that were never
	// registered. nil makes such names an error.
	MissingHandler func(name string) func()
	// Registry creates primitives. nil uses registry.Default().
	Registry *registry.Registry
	// State is the manager bindings read from. nil uses state.Default().
	State *state.Manager
	Clock clock.Clock
}

// DefaultOptions returns lenient parser options and no pre-validation.
func DefaultOptions() Options {
	return Options{Parser: parser.DefaultOptions()}
}

// Loader builds element trees from documents. It is confined to the UI
// thread, like the elements it produces.
type Loader struct {
	adaptor    toolkit.Adaptor
	opts       Options
	parser     *parser.Parser
	handlers   map[string]func()
	converters map[string]Converter
}

// New returns a loader that creates primitives through a.
func New(a toolkit.Adaptor, opts Options) *Loader {
	if opts.Registry == nil {
		opts.Registry = registry.Default()
	}
	return &Loader{
		adaptor:    a,
		opts:       opts,
		parser:     parser.New(opts.Parser),
		handlers:   make(map[string]func()),
		converters: map[string]Converter{"color": colorConverter, "backgroundColor": colorConverter},
	}
}

// Parser returns the parser used by LoadFile, LoadString and LoadURL, for
// registering type hooks and named references.
func (l *Loader) Parser() *parser.Parser { return l.parser }

// RegisterHandler installs a handler that documents name in "events". A
// later registration under the same name replaces the earlier one.
func (l *Loader) RegisterHandler(name string, fn func()) {
	if fn == nil {
		delete(l.handlers, name)
		return
	}
	l.handlers[name] = fn
}

// Handlers returns the registered handler names, sorted.
func (l *Loader) Handlers() []string {
	return slices.Sorted(maps.Keys(l.handlers))
}

// RegisterConverter installs fn for every property called name. Colour
// properties convert "#rrggbb" strings and colour names by default.
func (l *Loader) RegisterConverter(name string, fn Converter) {
	if fn == nil {
		delete(l.converters, name)
		return
	}
	l.converters[name] = fn
}

func colorConverter(v any) (value.Value, error) {
	s, ok := v.(string)
	if !ok {
		return value.Of(v), nil
	}
	c, err := value.ParseColor(s)
	if err != nil {
		return value.Value{}, err
	}
	return value.ColorOf(c), nil
}

// LoadFile parses, resolves and builds the document at path.
func (l *Loader) LoadFile(path string) (*Document, error) {
	tree, err := l.parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return l.load(tree, path)
}

// LoadString parses, resolves and builds a document held in memory.
func (l *Loader) LoadString(src string) (*Document, error) {
	tree, err := l.parser.ParseString(src)
	if err != nil {
		return nil, err
	}
	return l.load(tree, "")
}

// LoadURL fetches, resolves and builds a remote document.
func (l *Loader) LoadURL(ctx context.Context, rawURL string) (*Document, error) {
	tree, err := l.parser.ParseURL(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return l.load(tree, rawURL)
}

// LoadObject builds an already parsed document.
func (l *Loader) LoadObject(doc map[string]any) (*Document, error) {
	return l.load(doc, "")
}

func (l *Loader) load(tree any, source string) (*Document, error) {
	const op = "loader.Load"
	obj, ok := tree.(map[string]any)
	if !ok {
		return nil, errors.Newf(errors.KindComponentCreation, op, "document root must be an object").At(string(parser.Root))
	}
	if err := l.validate(obj); err != nil {
		return nil, err
	}
	d := &Document{Source: source, ids: make(map[string]*core.Element)}
	root, err := l.describe(d, obj, parser.Root)
	if err != nil {
		return nil, err
	}
	if _, err := root.Build(); err != nil {
		return nil, err
	}
	d.Root = root
	return d, nil
}

func (l *Loader) validate(doc map[string]any) error {
	if !l.opts.Validate {
		return nil
	}
	v := l.opts.Validator
	if v == nil {
		opts := validator.DefaultOptions()
		opts.Strict = l.opts.Strict
		opts.Known = l.opts.Registry.Has
		v = validator.New(opts).RegisterBuiltins()
	}
	rep := v.Validate(doc)
	for _, w := range rep.Warnings() {
		errors.WarnAt("loader.Validate", w.Path, "%s", w.Message)
	}
	return rep.Err()
}

// Describe builds the unbuilt element tree for doc, for embedding in a
// larger builder tree.
func (l *Loader) Describe(doc map[string]any) (*core.Builder, error) {
	return l.describe(&Document{ids: make(map[string]*core.Element)}, doc, parser.Root)
}

func (l *Loader) describe(d *Document, n map[string]any, path parser.Path) (*core.Builder, error) {
	const op = "loader.Load"
	typeName, err := componentType(n, path)
	if err != nil {
		return nil, err
	}
	if !l.opts.Registry.Has(typeName) {
		return nil, errors.New(errors.KindComponentCreation, op, fmt.Errorf("%w %q", errors.ErrUnknownType, typeName)).
			At(string(path.Key("type")))
	}

	var props map[string]any
	if raw, ok := n["properties"]; ok {
		if props, ok = raw.(map[string]any); !ok {
			return nil, errors.Newf(errors.KindComponentCreation, op, "properties must be an object").At(string(path.Key("properties")))
		}
	}
	b := core.New(l.adaptor, typeName,
		core.WithState(l.opts.State),
		core.WithClock(l.opts.Clock),
		core.WithStrict(l.opts.Strict),
		core.WithConfig(props),
		core.WithFactory(l.opts.Registry.Create),
	)

	for _, name := range slices.Sorted(maps.Keys(props)) {
		if err := l.property(b, name, props[name], path.Key("properties").Key(name)); err != nil {
			return nil, err
		}
	}
	if id, ok := n["id"].(string); ok && id != "" {
		b.Property("objectName", id)
		d.ids[id] = b.Element()
	}

	events, err := members(n, "events", path)
	if err != nil {
		return nil, err
	}
	for _, event := range slices.Sorted(maps.Keys(events)) {
		handler := events[event]
		fn, ok := l.handlers[handler]
		if !ok && l.opts.MissingHandler != nil {
			fn = l.opts.MissingHandler(handler)
			ok = fn != nil
		}
		if !ok {
			return nil, errors.Newf(errors.KindComponentCreation, op, "unknown handler %q for event %q", handler, event).
				At(string(path.Key("events").Key(event)))
		}
		b.Element().OnNamed(event, handler, fn)
	}

	bindings, err := members(n, "bindings", path)
	if err != nil {
		return nil, err
	}
	for _, prop := range slices.Sorted(maps.Keys(bindings)) {
		b.BindState(prop, bindings[prop])
	}

	if raw, ok := n["layout"]; ok {
		spec, err := layoutSpec(raw, path.Key("layout"))
		if err != nil {
			return nil, err
		}
		b.Element().SetLayout(spec)
	}

	if raw, ok := n["children"]; ok {
		children, ok := raw.([]any)
		if !ok {
			return nil, errors.Newf(errors.KindComponentCreation, op, "children must be an array").At(string(path.Key("children")))
		}
		for i, c := range children {
			at := path.Key("children").Index(i)
			child, ok := c.(map[string]any)
			if !ok {
				return nil, errors.Newf(errors.KindComponentCreation, op, "child must be an object").At(string(at))
			}
			cb, err := l.describe(d, child, at)
			if err != nil {
				return nil, err
			}
			b.ChildNode(cb)
		}
	}
	if err := b.Err(); err != nil {
		return nil, errors.New(errors.KindComponentCreation, op, err).At(string(path))
	}
	return b, nil
}

func componentType(n map[string]any, path parser.Path) (string, error) {
	const op = "loader.Load"
	raw, ok := n["type"]
	if !ok {
		return "", errors.New(errors.KindComponentCreation, op, fmt.Errorf("%w: type", errors.ErrMissingKey)).At(string(path))
	}
	name, ok := raw.(string)
	if !ok || name == "" {
		return "", errors.Newf(errors.KindComponentCreation, op, "type must be a non-empty string").At(string(path.Key("type")))
	}
	return name, nil
}

func (l *Loader) property(b *core.Builder, name string, raw any, path parser.Path) error {
	if name == core.ClassProperty {
		s, ok := raw.(string)
		if !ok {
			return errors.Newf(errors.KindPropertyBinding, "loader.Property", "class must be a string").At(string(path))
		}
		b.Class(s)
		return nil
	}
	v := value.Of(raw)
	if conv, ok := l.converters[name]; ok {
		var err error
		if v, err = conv(raw); err != nil {
			return errors.New(errors.KindPropertyBinding, "loader.Property", err).At(string(path))
		}
	}
	if !v.IsValid() {
		return errors.Newf(errors.KindPropertyBinding, "loader.Property", "property %q has no value", name).At(string(path))
	}
	b.Property(name, v)
	return nil
}

// members reads an object of string values, such as events or bindings.
func members(n map[string]any, key string, path parser.Path) (map[string]string, error) {
	raw, ok := n[key]
	if !ok {
		return nil, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.Newf(errors.KindComponentCreation, "loader.Load", "%s must be an object", key).At(string(path.Key(key)))
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		s, ok := v.(string)
		if !ok || s == "" {
			return nil, errors.Newf(errors.KindComponentCreation, "loader.Load", "%s value for %q must be a non-empty string", key, k).
				At(string(path.Key(key).Key(k)))
		}
		out[k] = s
	}
	return out, nil
}

func layoutSpec(raw any, path parser.Path) (toolkit.LayoutSpec, error) {
	const op = "loader.Layout"
	var spec toolkit.LayoutSpec
	obj, ok := raw.(map[string]any)
	if !ok {
		return spec, errors.Newf(errors.KindLayout, op, "layout must be an object").At(string(path))
	}
	name, _ := obj["type"].(string)
	kind, err := toolkit.ParseLayoutKind(name)
	if err != nil {
		return spec, errors.New(errors.KindLayout, op, err).At(string(path.Key("type")))
	}
	spec.Kind = kind
	if s, ok := obj["spacing"]; ok {
		f, ok := value.Of(s).AsFloat()
		if !ok {
			return spec, errors.Newf(errors.KindLayout, op, "spacing must be a number").At(string(path.Key("spacing")))
		}
		spec.Spacing = f
	}
	if m, ok := obj["margins"]; ok {
		arr, ok := m.([]any)
		if !ok || len(arr) != 4 {
			return spec, errors.Newf(errors.KindLayout, op, "margins must be four numbers").At(string(path.Key("margins")))
		}
		for i, item := range arr {
			f, ok := value.Of(item).AsFloat()
			if !ok {
				return spec, errors.Newf(errors.KindLayout, op, "margin must be a number").At(string(path.Key("margins").Index(i)))
			}
			spec.Margins[i] = f
		}
	}
	if err := spec.Validate(); err != nil {
		return spec, errors.New(errors.KindLayout, op, err).At(string(path))
	}
	return spec, nil
}

// Document is a loaded and built element tree.
type Document struct {
	Root *core.Builder
	// Source is the file path or URL the document was loaded from.
	Source string
	ids    map[string]*core.Element
}

// Primitive returns the root primitive, or nil after Unmount.
func (d *Document) Primitive() toolkit.Handle { return d.Root.Primitive() }

// Element returns the element whose node carried "id": id.
func (d *Document) Element(id string) (*core.Element, bool) {
	e, ok := d.ids[id]
	return e, ok
}

// IDs returns the node ids in the document, sorted.
func (d *Document) IDs() []string {
	return slices.Sorted(maps.Keys(d.ids))
}

// Unmount unmounts the whole tree.
func (d *Document) Unmount() { d.Root.Unmount() }

// Serialize describes the loaded tree as a UI document.
func (d *Document) Serialize() map[string]any { return d.Root.Serialize() }
