package parser

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-drift/declui/pkg/errors"
)

const (
	refKey     = "$ref"
	includeKey = "$include"
	typeKey    = "$type"

	refPrefix     = "$ref:"
	includePrefix = "$include:"

	maxFetchSize = 16 << 20
)

// document is a decoded source. Pointers resolve against root and
// relative paths against loc.
type document struct {
	loc  string
	root any
}

// resolver expands one parse. Documents and resolved references are cached
// by location so every occurrence of a reference yields the same value.
type resolver struct {
	ctx    context.Context
	p      *Parser
	res    *Result
	docs   map[string]*document
	cache  map[string]any
	active map[string]bool
}

func newResolver(ctx context.Context, p *Parser, res *Result) *resolver {
	if ctx == nil {
		ctx = context.Background()
	}
	return &resolver{
		ctx:    ctx,
		p:      p,
		res:    res,
		docs:   make(map[string]*document),
		cache:  make(map[string]any),
		active: make(map[string]bool),
	}
}

func (r *resolver) errorf(kind errors.Kind, path Path, err error) {
	r.res.Errors = append(r.res.Errors, errors.New(kind, "parser.Resolve", err).At(string(path)))
}

func (r *resolver) warnf(path Path, format string, args ...any) {
	r.res.Warnings = append(r.res.Warnings, &errors.Warning{
		Op:        "parser.Resolve",
		Path:      string(path),
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now(),
	})
}

// unresolved records err as an error in strict mode and as a warning
// otherwise. The value at path becomes null.
func (r *resolver) unresolved(path Path, err error) any {
	if r.p.opts.Strict {
		r.errorf(errors.KindReference, path, err)
	} else {
		r.warnf(path, "%v", err)
	}
	return nil
}

func (r *resolver) walk(doc *document, v any, path Path, depth int) any {
	switch x := v.(type) {
	case map[string]any:
		if limit := r.p.opts.MaxDepth; limit > 0 && depth > limit {
			r.errorf(errors.KindJSONParse, path, fmt.Errorf("%w: limit %d", errors.ErrDepthExceeded, limit))
			return nil
		}
		if ref, ok := x[refKey]; ok {
			if len(x) > 1 {
				r.warnf(path, "members next to %s are ignored", refKey)
			}
			s, ok := ref.(string)
			if !ok {
				r.errorf(errors.KindReference, path, fmt.Errorf("%s value must be a string", refKey))
				return nil
			}
			return r.resolve(doc, s, path, depth)
		}
		if inc, ok := x[includeKey]; ok {
			return r.include(doc, x, inc, path, depth)
		}
		out := make(map[string]any, len(x))
		for _, k := range slices.Sorted(maps.Keys(x)) {
			out[k] = r.walk(doc, x[k], path.Key(k), depth+1)
		}
		return r.applyType(out, path)
	case []any:
		if limit := r.p.opts.MaxDepth; limit > 0 && depth > limit {
			r.errorf(errors.KindJSONParse, path, fmt.Errorf("%w: limit %d", errors.ErrDepthExceeded, limit))
			return nil
		}
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = r.walk(doc, item, path.Index(i), depth+1)
		}
		return out
	case string:
		switch {
		case strings.HasPrefix(x, refPrefix):
			return r.resolve(doc, strings.TrimPrefix(x, refPrefix), path, depth)
		case strings.HasPrefix(x, includePrefix):
			return r.include(doc, nil, strings.TrimPrefix(x, includePrefix), path, depth)
		}
	}
	return v
}

// include replaces obj with the referenced object. Other members of obj
// are resolved and laid over a copy of it. Unlike $ref, a target that is
// neither a pointer nor a URL is always a file relative to doc, so
// "button.json" and "parts/button.json" need no "./" prefix.
func (r *resolver) include(doc *document, obj map[string]any, target any, path Path, depth int) any {
	s, ok := target.(string)
	if !ok {
		r.errorf(errors.KindReference, path, fmt.Errorf("%s value must be a string", includeKey))
		return nil
	}
	if s == "" {
		return r.unresolved(path, fmt.Errorf("%w: empty %s", errors.ErrUnresolvedReference, includeKey))
	}
	if !strings.HasPrefix(s, "#") && !isURL(s) && !isPath(s) {
		s = "./" + s
	}
	v := r.resolve(doc, s, path, depth)
	if v == nil {
		return nil
	}
	included, ok := v.(map[string]any)
	if !ok {
		return r.unresolved(path, fmt.Errorf("%w: %s %q is a %s, not an object",
			errors.ErrUnresolvedReference, includeKey, s, kindName(v)))
	}
	if len(obj) <= 1 {
		return included
	}
	out := maps.Clone(included)
	for _, k := range slices.Sorted(maps.Keys(obj)) {
		if k == includeKey {
			continue
		}
		out[k] = r.walk(doc, obj[k], path.Key(k), depth+1)
	}
	return r.applyType(out, path)
}

func (r *resolver) applyType(obj map[string]any, path Path) any {
	t, ok := obj[typeKey]
	if !ok {
		return obj
	}
	name, ok := t.(string)
	if !ok {
		r.errorf(errors.KindJSONParse, path.Key(typeKey), fmt.Errorf("%s value must be a string", typeKey))
		return obj
	}
	hook := r.p.types[name]
	if hook == nil {
		r.warnf(path, "no handler registered for %s %q", typeKey, name)
		return obj
	}
	var out any
	err := errors.Try("parser.TypeHook", func() error {
		var herr error
		out, herr = hook(obj)
		return herr
	})
	if err != nil {
		if r.p.opts.Strict {
			r.errorf(errors.KindJSONParse, path, fmt.Errorf("%s %q: %w", typeKey, name, err))
		} else {
			r.warnf(path, "%s %q: %v", typeKey, name, err)
		}
		return obj
	}
	return out
}

// resolve returns the expanded value named by ref. Pointers resolve in
// doc, paths and URLs load another document, and anything else is a name
// declared with DefineReference.
func (r *resolver) resolve(doc *document, ref string, path Path, depth int) any {
	if err := r.ctx.Err(); err != nil {
		return r.unresolved(path, err)
	}

	var (
		key     string
		target  *document
		pointer string
	)
	switch {
	case strings.HasPrefix(ref, "#"):
		key, target, pointer = doc.loc+ref, doc, ref
	case isURL(ref) || isPath(ref):
		loc, fragment, _ := strings.Cut(ref, "#")
		abs, err := r.locate(doc, loc)
		if err != nil {
			return r.unresolved(path, err)
		}
		key, pointer = abs+"#"+fragment, "#"+fragment
		if d, ok := r.docs[abs]; ok {
			target = d
		}
		if target == nil {
			d, err := r.load(abs)
			if err != nil {
				return r.unresolved(path, fmt.Errorf("%w: %q: %v", errors.ErrUnresolvedReference, ref, err))
			}
			target = d
		}
	default:
		named, ok := r.p.refs[ref]
		if !ok {
			return r.unresolved(path, fmt.Errorf("%w: %q", errors.ErrUnresolvedReference, ref))
		}
		key = "name:" + ref
		if v, ok := r.cache[key]; ok {
			return v
		}
		if r.active[key] {
			return r.unresolved(path, fmt.Errorf("%w: circular reference %q", errors.ErrUnresolvedReference, ref))
		}
		r.active[key] = true
		defer delete(r.active, key)
		v := r.walk(doc, named, path, depth)
		r.cache[key] = v
		return v
	}

	if v, ok := r.cache[key]; ok {
		return v
	}
	if r.active[key] {
		return r.unresolved(path, fmt.Errorf("%w: circular reference %q", errors.ErrUnresolvedReference, ref))
	}
	node, err := Lookup(target.root, pointer)
	if err != nil {
		return r.unresolved(path, err)
	}
	r.active[key] = true
	defer delete(r.active, key)
	v := r.walk(target, node, path, depth)
	r.cache[key] = v
	return v
}

// locate turns a path or URL into an absolute location relative to doc.
func (r *resolver) locate(doc *document, loc string) (string, error) {
	if isURL(doc.loc) {
		base, err := url.Parse(doc.loc)
		if err != nil {
			return "", err
		}
		u, err := base.Parse(loc)
		if err != nil {
			return "", err
		}
		return u.String(), nil
	}
	if isURL(loc) || filepath.IsAbs(loc) {
		return loc, nil
	}
	dir := r.p.opts.BaseDir
	if doc.loc != "" {
		dir = filepath.Dir(doc.loc)
	}
	return filepath.Abs(filepath.Join(dir, loc))
}

func (r *resolver) load(loc string) (*document, error) {
	var (
		data []byte
		err  error
	)
	if isURL(loc) {
		data, err = fetch(r.ctx, loc)
	} else {
		data, err = r.p.readFile(loc)
	}
	if err != nil {
		return nil, err
	}
	root, err := r.p.decode(data)
	if err != nil {
		return nil, err
	}
	d := &document{loc: loc, root: root}
	r.docs[loc] = d
	return d, nil
}

func fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", rawURL, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
}

func isURL(s string) bool {
	scheme, _, ok := strings.Cut(s, "://")
	return ok && scheme != "" && !strings.ContainsAny(scheme, "/\\.")
}

func isPath(s string) bool {
	return strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") || filepath.IsAbs(s)
}

func kindName(v any) string {
	switch v.(type) {
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return "number"
	}
}
