package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-drift/declui/pkg/errors"
)

// stripComments replaces // and /* */ comments outside string literals with
// spaces. Newlines are kept so decoder positions still match the input.
func stripComments(src []byte) ([]byte, error) {
	out := make([]byte, 0, len(src))
	inString, escaped := false, false
	for i := 0; i < len(src); i++ {
		c := src[i]
		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			out = append(out, c)
			continue
		}
		if c != '/' || i+1 >= len(src) {
			out = append(out, c)
			continue
		}
		switch src[i+1] {
		case '/':
			for i < len(src) && src[i] != '\n' {
				out = append(out, ' ')
				i++
			}
			if i < len(src) {
				out = append(out, '\n')
			}
		case '*':
			end := bytes.Index(src[i+2:], []byte("*/"))
			if end < 0 {
				line, col := position(src, i)
				return nil, fmt.Errorf("unterminated block comment at line %d, column %d", line, col)
			}
			for _, b := range src[i : i+2+end+2] {
				if b == '\n' {
					out = append(out, '\n')
				} else {
					out = append(out, ' ')
				}
			}
			i += 2 + end + 1
		default:
			out = append(out, c)
		}
	}
	return out, nil
}

// scan drops commas directly before a closing bracket when trim is set and
// fails when containers nest deeper than maxDepth. Both only look outside
// string literals.
func scan(src []byte, trim bool, maxDepth int) ([]byte, error) {
	out := make([]byte, 0, len(src))
	inString, escaped := false, false
	depth := 0
	for i := 0; i < len(src); i++ {
		c := src[i]
		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
			if maxDepth > 0 && depth > maxDepth {
				line, col := position(src, i)
				return nil, fmt.Errorf("%w: depth %d at line %d, column %d (limit %d)",
					errors.ErrDepthExceeded, depth, line, col, maxDepth)
			}
		case '}', ']':
			depth--
		case ',':
			if trim {
				j := i + 1
				for j < len(src) && isSpace(src[j]) {
					j++
				}
				if j < len(src) && (src[j] == '}' || src[j] == ']') {
					out = append(out, ' ')
					continue
				}
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// position converts a byte offset to a 1-based line and column.
func position(src []byte, offset int) (line, col int) {
	if offset > len(src) {
		offset = len(src)
	}
	line = 1 + bytes.Count(src[:offset], []byte("\n"))
	col = offset + 1
	if nl := bytes.LastIndexByte(src[:offset], '\n'); nl >= 0 {
		col = offset - nl
	}
	return line, col
}

// decode preprocesses src and decodes exactly one JSON value. Numbers stay
// json.Number so integers survive a round trip.
func (p *Parser) decode(src []byte) (any, error) {
	var err error
	if p.opts.AllowComments {
		if src, err = stripComments(src); err != nil {
			return nil, err
		}
	}
	if src, err = scan(src, p.opts.AllowTrailingCommas, p.opts.MaxDepth); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(src))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, describe(src, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		line, col := position(src, int(dec.InputOffset()))
		return nil, fmt.Errorf("unexpected data after the top-level value at line %d, column %d", line, col)
	}
	return v, nil
}

func describe(src []byte, err error) error {
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		line, col := position(src, int(syn.Offset))
		return fmt.Errorf("%v at line %d, column %d", syn, line, col)
	}
	if err == io.EOF {
		return fmt.Errorf("empty document")
	}
	return err
}
