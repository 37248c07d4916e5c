package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-drift/declui/pkg/errors"
)

// DefaultMaxDepth is the nesting limit used by DefaultOptions.
const DefaultMaxDepth = 100

// HTTPClient fetches URL references and ParseURL documents.
var HTTPClient = http.DefaultClient

var clientMu sync.RWMutex

// SetHTTPClient replaces the client used for URL references and returns
// the previous one. nil restores http.DefaultClient.
func SetHTTPClient(c *http.Client) *http.Client {
	clientMu.Lock()
	defer clientMu.Unlock()
	prev := HTTPClient
	if c == nil {
		c = http.DefaultClient
	}
	HTTPClient = c
	return prev
}

func httpClient() *http.Client {
	clientMu.RLock()
	defer clientMu.RUnlock()
	return HTTPClient
}

// Options configures a Parser.
type Options struct {
	// AllowComments strips // and /* */ comments before decoding.
	AllowComments bool
	// AllowTrailingCommas drops commas directly before } or ].
	AllowTrailingCommas bool
	// MaxDepth limits container nesting. Zero disables the check.
	MaxDepth int
	// Strict turns unresolvable references and failing type hooks into
	// errors. Otherwise they are warnings and the value becomes null.
	Strict bool
	// ResolveReferences expands $ref, $include and $type.
	ResolveReferences bool
	// BaseDir resolves relative includes of documents parsed from strings.
	// Empty means the working directory.
	BaseDir string
	// ReadFile loads included files. nil uses os.ReadFile.
	ReadFile func(path string) ([]byte, error)
}

// DefaultOptions returns lenient options: comments and trailing commas on,
// references resolved, a depth limit of DefaultMaxDepth.
func DefaultOptions() Options {
	return Options{
		AllowComments:       true,
		AllowTrailingCommas: true,
		MaxDepth:            DefaultMaxDepth,
		ResolveReferences:   true,
	}
}

// TypeHook transforms an object carrying "$type": name. The object still
// holds its $type member.
type TypeHook func(obj map[string]any) (any, error)

// Parser decodes JSON documents and expands references. A Parser may be
// reused; caches live for the duration of one parse.
type Parser struct {
	opts  Options
	types map[string]TypeHook
	refs  map[string]any
}

// New returns a parser with the given options.
func New(opts Options) *Parser {
	return &Parser{
		opts:  opts,
		types: make(map[string]TypeHook),
		refs:  make(map[string]any),
	}
}

// Options returns the parser's options.
func (p *Parser) Options() Options { return p.opts }

// RegisterType installs hook for objects whose $type is name. A nil hook
// removes it.
func (p *Parser) RegisterType(name string, hook TypeHook) {
	if hook == nil {
		delete(p.types, name)
		return
	}
	p.types[name] = hook
}

// DefineReference declares a named reference, resolved by {"$ref": name}.
func (p *Parser) DefineReference(name string, v any) {
	p.refs[name] = v
}

// Result is the outcome of ParseContext.
type Result struct {
	// Tree is the resolved document. It is nil when Errors is non-empty.
	Tree     any
	Warnings []*errors.Warning
	Errors   []*errors.Error
}

// OK reports whether the parse produced no errors.
func (r *Result) OK() bool { return len(r.Errors) == 0 }

// Err joins the errors, or returns nil.
func (r *Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	if len(r.Errors) == 1 {
		return r.Errors[0]
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Object returns the tree as a JSON object.
func (r *Result) Object() (map[string]any, bool) {
	m, ok := r.Tree.(map[string]any)
	return m, ok
}

// ParseContext parses data and returns the tree along with every
// diagnostic. source is the file path or URL the data came from; it
// anchors relative references and may be empty.
func (p *Parser) ParseContext(ctx context.Context, data []byte, source string) *Result {
	res := &Result{}
	root, err := p.decode(data)
	if err != nil {
		res.Errors = append(res.Errors, errors.New(errors.KindJSONParse, "parser.Parse", err).At(string(Root)))
		return res
	}
	if !p.opts.ResolveReferences {
		res.Tree = root
		return res
	}
	r := newResolver(ctx, p, res)
	doc := &document{loc: source, root: root}
	if source != "" {
		r.docs[source] = doc
	}
	tree := r.walk(doc, root, Root, 1)
	if res.OK() {
		res.Tree = tree
	}
	return res
}

// Parse parses data, reports warnings to the global error handler and
// returns the tree or the joined errors.
func (p *Parser) Parse(ctx context.Context, data []byte, source string) (any, error) {
	res := p.ParseContext(ctx, data, source)
	for _, w := range res.Warnings {
		errors.WarnAt(w.Op, w.Path, "%s", w.Message)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return res.Tree, nil
}

// ParseString parses a document held in memory.
func (p *Parser) ParseString(s string) (any, error) {
	return p.Parse(context.Background(), []byte(s), "")
}

// ParseFile parses the file at path. Relative references resolve against
// its directory.
func (p *Parser) ParseFile(path string) (any, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.New(errors.KindJSONParse, "parser.ParseFile", err).At(path)
	}
	data, err := p.readFile(abs)
	if err != nil {
		return nil, errors.New(errors.KindJSONParse, "parser.ParseFile", err).At(path)
	}
	return p.Parse(context.Background(), data, abs)
}

// ParseURL fetches and parses a document. Relative references resolve
// against rawURL.
func (p *Parser) ParseURL(ctx context.Context, rawURL string) (any, error) {
	data, err := fetch(ctx, rawURL)
	if err != nil {
		return nil, errors.New(errors.KindJSONParse, "parser.ParseURL", err).At(rawURL)
	}
	return p.Parse(ctx, data, rawURL)
}

func (p *Parser) readFile(path string) ([]byte, error) {
	if p.opts.ReadFile != nil {
		return p.opts.ReadFile(path)
	}
	return os.ReadFile(path)
}

// ParseString parses s with DefaultOptions.
func ParseString(s string) (any, error) {
	return New(DefaultOptions()).ParseString(s)
}

// ParseFile parses the file at path with DefaultOptions.
func ParseFile(path string) (any, error) {
	return New(DefaultOptions()).ParseFile(path)
}

// Serialize encodes tree as indented JSON. Object keys come out sorted and
// HTML characters are not escaped.
func Serialize(tree any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tree); err != nil {
		return nil, errors.New(errors.KindJSONParse, "parser.Serialize", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
