// Package validator checks UI documents against a pipeline of rules.
//
// Rules are registered globally, per component type or per property
// name. For every component node the validator runs the global rules, the
// rules of the node's type (and of "*"), then the property rules for each
// member of "properties", and recurses into "children". Every failing
// result is collected into a Report; the document is valid when no result
// reaches Error.
//
//	v := validator.NewDefault()
//	report := v.Validate(doc)
//	if !report.Valid() {
//		fmt.Println(report.Summary())
//	}
package validator

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/go-drift/declui/pkg/errors"
	"github.com/go-drift/declui/pkg/parser"
	"github.com/go-drift/declui/pkg/registry"
)

// AnyType registers a component rule for every node.
const AnyType = "*"

// DefaultMaxDepth is the component nesting limit used by DefaultOptions.
const DefaultMaxDepth = 100

// Members are the recognised members of a component node. Members
// starting with "$" are reserved for tooling and always accepted.
var Members = []string{"type", "id", "name", "class", "properties", "events", "bindings", "layout", "children"}

// Options configures a Validator.
type Options struct {
	// Strict promotes warnings to errors.
	Strict bool
	// AllowAdditionalProperties demotes unknown component types and
	// unknown node members to warnings.
	AllowAdditionalProperties bool
	MaxDepth                  int
	// Schema is CUE source unified with every component node. An invalid
	// schema makes every document invalid.
	Schema string
	// Known reports registered component types. nil uses the default
	// registry.
	Known func(typeName string) bool
}

// DefaultOptions returns non-strict options with additional properties
// disallowed.
func DefaultOptions() Options {
	return Options{MaxDepth: DefaultMaxDepth}
}

// Validator holds the rule sets. Rules are not safe to add concurrently
// with Validate.
type Validator struct {
	opts       Options
	global     []Rule
	components map[string][]Rule
	properties map[string][]Rule
	schemaErr  error
}

// New returns a validator with no rules other than opts.Schema.
func New(opts Options) *Validator {
	v := &Validator{
		opts:       opts,
		components: make(map[string][]Rule),
		properties: make(map[string][]Rule),
	}
	if opts.Schema != "" {
		rule, err := CUE("schema", opts.Schema)
		if err != nil {
			v.schemaErr = err
		} else {
			v.AddComponent(AnyType, rule)
		}
	}
	return v
}

// NewDefault returns a validator with DefaultOptions and the builtin rules.
func NewDefault() *Validator {
	return New(DefaultOptions()).RegisterBuiltins()
}

// Options returns the validator's options.
func (v *Validator) Options() Options { return v.opts }

// AddGlobal adds a rule run on every component node.
func (v *Validator) AddGlobal(r Rule) *Validator {
	v.global = append(v.global, r)
	return v
}

// AddComponent adds a rule run on nodes of typeName, or on every node for
// AnyType.
func (v *Validator) AddComponent(typeName string, r Rule) *Validator {
	v.components[typeName] = append(v.components[typeName], r)
	return v
}

// AddProperty adds a rule run on every property called name.
func (v *Validator) AddProperty(name string, r Rule) *Validator {
	v.properties[name] = append(v.properties[name], r)
	return v
}

var (
	stringProperties = []string{"text", "title", "windowTitle", "styleSheet", "toolTip", "whatsThis", "placeholderText", "objectName", "class"}
	boolProperties   = []string{"enabled", "visible", "checked", "readOnly", "checkable", "wordWrap"}
	numberProperties = []string{"width", "height", "x", "y", "value", "minimum", "maximum", "singleStep", "pageStep", "currentIndex", "maxLength"}
	sizeProperties   = []string{"minimumSize", "maximumSize", "geometry"}
	colorProperties  = []string{"color", "backgroundColor"}
)

// RegisterBuiltins installs the standard rules: component type, layout,
// events, bindings and property compatibility on every node, and kind
// checks for the common properties.
func (v *Validator) RegisterBuiltins() *Validator {
	v.AddGlobal(ComponentType()).
		AddGlobal(Layout()).
		AddGlobal(Events()).
		AddGlobal(Bindings()).
		AddComponent(AnyType, PropertyCompatibility(DefaultProperties))
	for _, p := range stringProperties {
		v.AddProperty(p, Type(KindString))
	}
	for _, p := range boolProperties {
		v.AddProperty(p, Type(KindBoolean))
	}
	for _, p := range numberProperties {
		v.AddProperty(p, Type(KindNumber))
	}
	for _, p := range sizeProperties {
		v.AddProperty(p, Size())
	}
	for _, p := range colorProperties {
		v.AddProperty(p, Color())
	}
	v.AddProperty("objectName", ObjectName())
	v.AddProperty("opacity", Type(KindNumber)).AddProperty("opacity", Range(0, 1))
	v.AddProperty("maxLength", Range(0, 1<<31-1))
	return v
}

// Validate checks doc, which must be a component node.
func (v *Validator) Validate(doc any) *Report {
	rep := &Report{}
	ctx := &Context{
		Path:                      parser.Root,
		Root:                      doc,
		Strict:                    v.opts.Strict,
		AllowAdditionalProperties: v.opts.AllowAdditionalProperties,
		MaxDepth:                  v.opts.MaxDepth,
		Known:                     v.opts.Known,
	}
	if ctx.Known == nil {
		ctx.Known = registry.Default().Has
	}
	if v.schemaErr != nil {
		v.add(ctx, rep, ctx.Fail("schema", Critical, "%v", v.schemaErr))
		return rep
	}
	node, ok := doc.(map[string]any)
	if !ok {
		v.add(ctx, rep, ctx.Fail("document", Critical, "document root must be an object, got %s", KindOf(doc)))
		return rep
	}
	v.node(ctx, rep, node, parser.Root, 1)
	return rep
}

func (v *Validator) node(ctx *Context, rep *Report, n map[string]any, path parser.Path, depth int) {
	ctx.Path, ctx.Depth = path, depth
	if v.opts.MaxDepth > 0 && depth > v.opts.MaxDepth {
		v.add(ctx, rep, ctx.Fail("depth", Critical, "component nesting exceeds %d", v.opts.MaxDepth))
		return
	}

	for _, r := range v.global {
		v.run(ctx, rep, r, n)
	}
	typeName, _ := n["type"].(string)
	for _, r := range v.components[AnyType] {
		v.run(ctx, rep, r, n)
	}
	if typeName != AnyType {
		for _, r := range v.components[typeName] {
			v.run(ctx, rep, r, n)
		}
	}

	for _, k := range slices.Sorted(maps.Keys(n)) {
		if !slices.Contains(Members, k) && !strings.HasPrefix(k, "$") {
			sev := Error
			if v.opts.AllowAdditionalProperties {
				sev = Warning
			}
			v.add(ctx, rep, ctx.FailAt(path.Key(k), "members", sev, "unknown member %q", k))
		}
	}

	if raw, ok := n["properties"]; ok {
		props, ok := raw.(map[string]any)
		if !ok {
			v.add(ctx, rep, ctx.FailAt(path.Key("properties"), "properties", Error, "properties must be an object"))
		}
		for _, name := range slices.Sorted(maps.Keys(props)) {
			ctx.Path = path.Key("properties").Key(name)
			for _, r := range v.properties[name] {
				v.run(ctx, rep, r, props[name])
			}
		}
	}

	raw, ok := n["children"]
	if !ok {
		return
	}
	children, ok := raw.([]any)
	if !ok {
		v.add(ctx, rep, ctx.FailAt(path.Key("children"), "children", Error, "children must be an array"))
		return
	}
	for i, c := range children {
		at := path.Key("children").Index(i)
		child, ok := c.(map[string]any)
		if !ok {
			v.add(ctx, rep, ctx.FailAt(at, "children", Error, "child must be an object, got %s", KindOf(c)))
			continue
		}
		v.node(ctx, rep, child, at, depth+1)
	}
}

// run applies r, converting a panic into a Critical result.
func (v *Validator) run(ctx *Context, rep *Report, r Rule, val any) {
	var res Result
	func() {
		defer errors.RecoverWithCallback("validator."+r.Name(), func(p any) {
			res = ctx.Fail(r.Name(), Critical, "rule panicked: %v", p)
		})
		res = r.Validate(val, ctx)
	}()
	v.add(ctx, rep, res)
}

func (v *Validator) add(ctx *Context, rep *Report, res Result) {
	if res.Valid {
		return
	}
	if res.Path == "" {
		res.Path = string(ctx.Path)
	}
	if v.opts.Strict && res.Severity == Warning {
		res.Severity = Error
	}
	rep.Results = append(rep.Results, res)
}

// Validate checks doc with a default validator.
func Validate(doc any) *Report {
	return NewDefault().Validate(doc)
}

// String describes a rule for listings.
func String(r Rule) string {
	return fmt.Sprintf("%s: %s %v", r.Name(), r.Description(), r.Config())
}
