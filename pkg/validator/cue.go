package validator

import (
	"encoding/json"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/go-drift/declui/pkg/errors"
)

type cueRule struct {
	name   string
	src    string
	ctx    *cue.Context
	schema cue.Value
}

// CUE returns a rule that unifies each value with the CUE constraint src
// and fails when the result is not concrete and consistent. For example
//
//	validator.CUE("slider", `{type: "Slider", properties?: {value?: >=0 & <=100}}`)
func CUE(name, src string) (Rule, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(src, cue.Filename(name+".cue"))
	if err := schema.Err(); err != nil {
		return nil, errors.New(errors.KindJSONValidation, "validator.CUE", err).At(name)
	}
	return &cueRule{name: name, src: src, ctx: ctx, schema: schema}, nil
}

func (r *cueRule) Name() string        { return r.name }
func (r *cueRule) Description() string { return "value satisfies a CUE constraint" }

func (r *cueRule) Config() map[string]any {
	return map[string]any{"cue": r.src}
}

func (r *cueRule) Validate(v any, ctx *Context) Result {
	data, err := json.Marshal(v)
	if err != nil {
		return ctx.Fail(r.name, Error, "cannot encode value: %v", err)
	}
	val := r.ctx.CompileBytes(data)
	if err := val.Err(); err != nil {
		return ctx.Fail(r.name, Error, "cannot load value: %v", err)
	}
	if err := r.schema.Unify(val).Validate(cue.Concrete(true)); err != nil {
		var msgs []string
		for _, e := range cueerrors.Errors(err) {
			msgs = append(msgs, e.Error())
		}
		return ctx.Fail(r.name, Error, "%s", strings.Join(msgs, "; "))
	}
	return ctx.Pass(r.name)
}
