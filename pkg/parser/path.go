package parser

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-drift/declui/pkg/errors"
)

// Path is a JSONPath-style location such as $.children[0].properties.text.
type Path string

// Root is the path of the document root.
const Root Path = "$"

// Key returns the path of member k.
func (p Path) Key(k string) Path {
	if isIdent(k) {
		return p + "." + Path(k)
	}
	return p + "[" + Path(strconv.Quote(k)) + "]"
}

// Index returns the path of element i.
func (p Path) Index(i int) Path {
	return p + "[" + Path(strconv.Itoa(i)) + "]"
}

func (p Path) String() string { return string(p) }

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$' || r == '-':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// Lookup resolves a JSON Pointer against root. Both the plain form
// (/a/b) and the URI fragment form (#/a/b) are accepted; "" and "#" name
// the root. ~1 and ~0 unescape to / and ~.
func Lookup(root any, pointer string) (any, error) {
	const op = "parser.Lookup"
	ptr := pointer
	if strings.HasPrefix(ptr, "#") {
		unescaped, err := url.PathUnescape(ptr[1:])
		if err != nil {
			return nil, errors.New(errors.KindReference, op, fmt.Errorf("invalid pointer %q: %w", pointer, err))
		}
		ptr = unescaped
	}
	if ptr == "" {
		return root, nil
	}
	if ptr[0] != '/' {
		return nil, errors.Newf(errors.KindReference, op, "invalid pointer %q: must start with /", pointer)
	}

	cur := root
	for _, token := range strings.Split(ptr[1:], "/") {
		token = strings.ReplaceAll(token, "~1", "/")
		token = strings.ReplaceAll(token, "~0", "~")
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[token]
			if !ok {
				return nil, errors.Newf(errors.KindReference, op, "%w: %q has no member %q", errors.ErrUnresolvedReference, pointer, token)
			}
			cur = next
		case []any:
			i, err := arrayIndex(token)
			if err != nil || i >= len(node) {
				return nil, errors.Newf(errors.KindReference, op, "%w: %q has no element %q", errors.ErrUnresolvedReference, pointer, token)
			}
			cur = node[i]
		default:
			return nil, errors.Newf(errors.KindReference, op, "%w: %q descends into a scalar at %q", errors.ErrUnresolvedReference, pointer, token)
		}
	}
	return cur, nil
}

func arrayIndex(token string) (int, error) {
	if token == "" || (len(token) > 1 && token[0] == '0') {
		return 0, fmt.Errorf("invalid array index %q", token)
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid array index %q", token)
		}
	}
	return strconv.Atoi(token)
}
