package validator

import (
	"fmt"
	"maps"

	"github.com/go-drift/declui/pkg/parser"
)

// Context describes where a rule runs. Rules may read it but the
// validator owns it.
type Context struct {
	// Path locates the value under validation.
	Path parser.Path
	// Root is the document being validated.
	Root any
	// Depth is the component nesting depth, starting at 1.
	Depth int

	Strict                    bool
	AllowAdditionalProperties bool
	MaxDepth                  int
	// Known reports whether a component type is registered.
	Known func(typeName string) bool
}

// Pass returns a valid result for rule.
func (c *Context) Pass(rule string) Result {
	return Result{Valid: true, Severity: Info, Path: string(c.Path), Rule: rule}
}

// Fail returns an invalid result for rule at the current path.
func (c *Context) Fail(rule string, sev Severity, format string, args ...any) Result {
	return Result{Severity: sev, Message: fmt.Sprintf(format, args...), Path: string(c.Path), Rule: rule}
}

// FailAt is like Fail with an explicit path.
func (c *Context) FailAt(path parser.Path, rule string, sev Severity, format string, args ...any) Result {
	r := c.Fail(rule, sev, format, args...)
	r.Path = string(path)
	return r
}

// Rule checks one value.
type Rule interface {
	Name() string
	Description() string
	Config() map[string]any
	Validate(v any, ctx *Context) Result
}

type ruleFunc struct {
	name   string
	desc   string
	config map[string]any
	fn     func(v any, ctx *Context) Result
}

func (r *ruleFunc) Name() string                        { return r.name }
func (r *ruleFunc) Description() string                 { return r.desc }
func (r *ruleFunc) Config() map[string]any              { return maps.Clone(r.config) }
func (r *ruleFunc) Validate(v any, ctx *Context) Result { return r.fn(v, ctx) }

// NewRule wraps fn as a Rule.
func NewRule(name, description string, fn func(v any, ctx *Context) Result) Rule {
	return &ruleFunc{name: name, desc: description, fn: fn}
}

// Predicate returns a rule that fails with Error whenever pred is false.
func Predicate(name, description string, pred func(v any) bool) Rule {
	return NewRule(name, description, func(v any, ctx *Context) Result {
		if pred(v) {
			return ctx.Pass(name)
		}
		return ctx.Fail(name, Error, "rule %q failed", name)
	})
}

func configured(name, desc string, config map[string]any, fn func(v any, ctx *Context) Result) Rule {
	return &ruleFunc{name: name, desc: desc, config: config, fn: fn}
}
