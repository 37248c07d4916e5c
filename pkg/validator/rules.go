package validator

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/go-drift/declui/pkg/toolkit"
	"github.com/go-drift/declui/pkg/value"
)

// Kind is a JSON value kind.
type Kind string

const (
	KindNull    Kind = "null"
	KindBoolean Kind = "boolean"
	KindNumber  Kind = "number"
	KindString  Kind = "string"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
)

// KindOf returns the JSON kind of a decoded value.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBoolean
	case json.Number, float64, float32, int, int64, int32:
		return KindNumber
	case string:
		return KindString
	case []any:
		return KindArray
	case map[string]any:
		return KindObject
	}
	return Kind(fmt.Sprintf("%T", v))
}

func number(v any) (float64, bool) {
	if KindOf(v) != KindNumber {
		return 0, false
	}
	return value.Of(v).AsFloat()
}

// Type requires values of kind k.
func Type(k Kind) Rule {
	return configured("type", "value has the expected JSON kind", map[string]any{"kind": string(k)},
		func(v any, ctx *Context) Result {
			if got := KindOf(v); got != k {
				return ctx.Fail("type", Error, "expected %s, got %s", k, got)
			}
			return ctx.Pass("type")
		})
}

// Range requires numbers within [lo, hi]. Other kinds pass.
func Range(lo, hi float64) Rule {
	return configured("range", "number lies within bounds", map[string]any{"min": lo, "max": hi},
		func(v any, ctx *Context) Result {
			n, ok := number(v)
			if ok && (n < lo || n > hi) {
				return ctx.Fail("range", Error, "%v is outside [%v, %v]", n, lo, hi)
			}
			return ctx.Pass("range")
		})
}

// Length bounds the rune count of strings and the size of arrays. A
// negative hi means no upper bound.
func Length(lo, hi int) Rule {
	return configured("length", "string or array length lies within bounds", map[string]any{"min": lo, "max": hi},
		func(v any, ctx *Context) Result {
			var n int
			switch x := v.(type) {
			case string:
				n = utf8.RuneCountInString(x)
			case []any:
				n = len(x)
			default:
				return ctx.Pass("length")
			}
			if n < lo || (hi >= 0 && n > hi) {
				return ctx.Fail("length", Error, "length %d is outside [%d, %s]", n, lo, bound(hi))
			}
			return ctx.Pass("length")
		})
}

func bound(hi int) string {
	if hi < 0 {
		return "∞"
	}
	return fmt.Sprint(hi)
}

// Pattern requires strings matching expr.
func Pattern(expr string) (Rule, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("validator: pattern %q: %w", expr, err)
	}
	return configured("pattern", "string matches a regular expression", map[string]any{"pattern": expr},
		func(v any, ctx *Context) Result {
			s, ok := v.(string)
			if ok && !re.MatchString(s) {
				return ctx.Fail("pattern", Error, "%q does not match %s", s, expr)
			}
			return ctx.Pass("pattern")
		}), nil
}

// MustPattern is like Pattern but panics on an invalid expression.
func MustPattern(expr string) Rule {
	r, err := Pattern(expr)
	if err != nil {
		panic(err)
	}
	return r
}

// Enum requires one of values. Numbers compare by value.
func Enum(values ...any) Rule {
	allowed := make([]value.Value, len(values))
	for i, v := range values {
		allowed[i] = value.Of(v)
	}
	return configured("enum", "value is one of a fixed set", map[string]any{"values": values},
		func(v any, ctx *Context) Result {
			got := value.Of(v)
			if slices.ContainsFunc(allowed, got.Equal) {
				return ctx.Pass("enum")
			}
			return ctx.Fail("enum", Error, "%v is not one of %v", v, values)
		})
}

// Required requires object members.
func Required(names ...string) Rule {
	return configured("required", "object has the required members", map[string]any{"members": names},
		func(v any, ctx *Context) Result {
			obj, ok := v.(map[string]any)
			if !ok {
				return ctx.Fail("required", Error, "expected object, got %s", KindOf(v))
			}
			var missing []string
			for _, name := range names {
				if _, ok := obj[name]; !ok {
					missing = append(missing, name)
				}
			}
			if len(missing) > 0 {
				return ctx.Fail("required", Error, "missing required members %s", strings.Join(missing, ", "))
			}
			return ctx.Pass("required")
		})
}

// Color requires strings that parse as colours: #rgb, #rrggbb, #rrggbbaa
// or a CSS colour name.
func Color() Rule {
	return NewRule("color", "string names a colour", func(v any, ctx *Context) Result {
		s, ok := v.(string)
		if !ok {
			return ctx.Fail("color", Error, "expected colour string, got %s", KindOf(v))
		}
		if _, err := value.ParseColor(s); err != nil {
			return ctx.Fail("color", Error, "%v", err)
		}
		return ctx.Pass("color")
	})
}

// Size requires [w, h] or [x, y, w, h] with non-negative numbers.
func Size() Rule {
	return NewRule("size", "size tuple of 2 or 4 non-negative numbers", func(v any, ctx *Context) Result {
		arr, ok := v.([]any)
		if !ok {
			return ctx.Fail("size", Error, "expected array, got %s", KindOf(v))
		}
		if len(arr) != 2 && len(arr) != 4 {
			return ctx.Fail("size", Error, "expected 2 or 4 numbers, got %d", len(arr))
		}
		for i, item := range arr {
			if n, ok := number(item); !ok || n < 0 {
				return ctx.FailAt(ctx.Path.Index(i), "size", Error, "expected a non-negative number, got %v", item)
			}
		}
		return ctx.Pass("size")
	})
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ObjectName requires objectName strings to be identifiers. Other kinds
// are left to the type check.
func ObjectName() Rule {
	return Predicate("objectName", "objectName is an identifier", func(v any) bool {
		s, ok := v.(string)
		return !ok || identifier.MatchString(s)
	})
}

// ComponentType checks a node's type member against the registry. An
// unknown type is a Warning when additional properties are allowed and an
// Error otherwise.
func ComponentType() Rule {
	return NewRule("componentType", "node type is a registered component", func(v any, ctx *Context) Result {
		obj, _ := v.(map[string]any)
		raw, ok := obj["type"]
		if !ok {
			return ctx.Fail("componentType", Error, `missing required member "type"`)
		}
		name, ok := raw.(string)
		if !ok || name == "" {
			return ctx.FailAt(ctx.Path.Key("type"), "componentType", Error, "type must be a non-empty string")
		}
		if ctx.Known != nil && !ctx.Known(name) {
			sev := Error
			if ctx.AllowAdditionalProperties {
				sev = Warning
			}
			return ctx.FailAt(ctx.Path.Key("type"), "componentType", sev, "unknown component type %q", name)
		}
		return ctx.Pass("componentType")
	})
}

// Layout checks a node's layout member: a known layout type, a
// non-negative spacing and four non-negative margins.
func Layout() Rule {
	return NewRule("layout", "layout type and metrics are valid", func(v any, ctx *Context) Result {
		obj, _ := v.(map[string]any)
		raw, ok := obj["layout"]
		if !ok {
			return ctx.Pass("layout")
		}
		at := ctx.Path.Key("layout")
		layout, ok := raw.(map[string]any)
		if !ok {
			return ctx.FailAt(at, "layout", Error, "layout must be an object")
		}
		name, _ := layout["type"].(string)
		if _, err := toolkit.ParseLayoutKind(name); err != nil {
			return ctx.FailAt(at.Key("type"), "layout", Error, "%v", err)
		}
		if s, ok := layout["spacing"]; ok {
			if n, ok := number(s); !ok || n < 0 {
				return ctx.FailAt(at.Key("spacing"), "layout", Error, "spacing must be a non-negative number")
			}
		}
		if m, ok := layout["margins"]; ok {
			arr, ok := m.([]any)
			if !ok || len(arr) != 4 {
				return ctx.FailAt(at.Key("margins"), "layout", Error, "margins must be four numbers [left, top, right, bottom]")
			}
			for i, item := range arr {
				if n, ok := number(item); !ok || n < 0 {
					return ctx.FailAt(at.Key("margins").Index(i), "layout", Error, "margin must be a non-negative number")
				}
			}
		}
		return ctx.Pass("layout")
	})
}

// Events requires every events member to name a handler.
func Events() Rule {
	return NewRule("events", "event handlers are named", func(v any, ctx *Context) Result {
		return names(v, ctx, "events", "handler")
	})
}

// Bindings requires every bindings member to name a state key.
func Bindings() Rule {
	return NewRule("bindings", "bindings name state keys", func(v any, ctx *Context) Result {
		return names(v, ctx, "bindings", "state key")
	})
}

func names(v any, ctx *Context, member, what string) Result {
	obj, _ := v.(map[string]any)
	raw, ok := obj[member]
	if !ok {
		return ctx.Pass(member)
	}
	at := ctx.Path.Key(member)
	m, ok := raw.(map[string]any)
	if !ok {
		return ctx.FailAt(at, member, Error, "%s must be an object", member)
	}
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if s, ok := m[k].(string); !ok || s == "" {
			return ctx.FailAt(at.Key(k), member, Error, "%s for %q must be a non-empty string", what, k)
		}
	}
	return ctx.Pass(member)
}

// CommonProperties are accepted on every widget type.
var CommonProperties = []string{
	"objectName", "geometry", "size", "minimumSize", "maximumSize",
	"pos", "x", "y", "width", "height", "enabled", "visible", "styleSheet",
	"toolTip", "whatsThis", "font", "palette", "class", "opacity",
	"color", "backgroundColor",
}

// DefaultProperties lists the extra properties of the widget types the
// compatibility check knows about.
var DefaultProperties = map[string][]string{
	"Label":    {"text", "alignment", "wordWrap", "indent", "margin"},
	"Button":   {"text", "icon", "iconSize", "checkable", "checked"},
	"LineEdit": {"text", "placeholderText", "maxLength", "readOnly", "echoMode"},
	"CheckBox": {"text", "checked", "tristate"},
	"Slider":   {"value", "minimum", "maximum", "singleStep", "pageStep", "orientation"},
}

// PropertyCompatibility warns about properties a widget type does not
// have. Types missing from table pass.
func PropertyCompatibility(table map[string][]string) Rule {
	return configured("propertyCompatibility", "properties exist on the widget type", map[string]any{"types": len(table)},
		func(v any, ctx *Context) Result {
			obj, _ := v.(map[string]any)
			name, _ := obj["type"].(string)
			extra, known := table[name]
			props, _ := obj["properties"].(map[string]any)
			if !known || len(props) == 0 {
				return ctx.Pass("propertyCompatibility")
			}
			var bad []string
			for _, p := range slices.Sorted(maps.Keys(props)) {
				if !slices.Contains(extra, p) && !slices.Contains(CommonProperties, p) {
					bad = append(bad, p)
				}
			}
			if len(bad) > 0 {
				return ctx.FailAt(ctx.Path.Key("properties"), "propertyCompatibility", Warning,
					"properties may not be compatible with %s: %s", name, strings.Join(bad, ", "))
			}
			return ctx.Pass("propertyCompatibility")
		})
}
