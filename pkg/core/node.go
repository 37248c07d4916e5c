package core

import (
	"github.com/go-drift/declui/pkg/errors"
	"github.com/go-drift/declui/pkg/toolkit"
)

// Node is a description that materializes into one toolkit primitive.
// Builders, elements, conditional renderers and boundaries are nodes, so
// any of them can be the child of another.
type Node interface {
	// Build materializes the node. It is idempotent: later calls return
	// the same primitive, or the same error.
	Build() (toolkit.Handle, error)
	// Primitive returns the materialized primitive, or nil when the node
	// is not mounted.
	Primitive() toolkit.Handle
	// Unmount runs unmount hooks and releases the primitive.
	Unmount()
}

// captured is implemented by nodes that route runtime errors to the
// nearest enclosing boundary.
type captured interface {
	setCapture(c ErrorCapture)
}

// serializer is implemented by nodes that can describe themselves as a
// UI document.
type serializer interface {
	Serialize() map[string]any
}

func routeErrors(n Node, c ErrorCapture) {
	if c == nil {
		return
	}
	if rc, ok := n.(captured); ok {
		rc.setCapture(c)
	}
}

// buildNode builds n, converting a panic into an error.
func buildNode(op string, n Node) (prim toolkit.Handle, err error) {
	if n == nil {
		return nil, errors.Newf(errors.KindComponentCreation, op, "nil node")
	}
	err = errors.Try(op, func() error {
		var berr error
		prim, berr = n.Build()
		return berr
	})
	return prim, err
}
