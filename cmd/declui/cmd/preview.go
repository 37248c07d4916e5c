package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss/tree"
	"github.com/spf13/cobra"

	"github.com/go-drift/declui/pkg/core"
	"github.com/go-drift/declui/pkg/errors"
	"github.com/go-drift/declui/pkg/loader"
	"github.com/go-drift/declui/pkg/state"
	"github.com/go-drift/declui/pkg/toolkit"
	"github.com/go-drift/declui/pkg/toolkit/headless"
)

func init() {
	RegisterCommand(newPreviewCmd)
}

type previewFlags struct {
	snapshot string
	boundary bool
	validate bool
	plain    bool
}

func newPreviewCmd(a *app) *cobra.Command {
	var f previewFlags
	cmd := &cobra.Command{
		Use:   "preview <file>",
		Short: "Build a document on the headless toolkit and print the result",
		Long: `Load a document the way an application would and print the tree of
primitives it produces, with every property and layout.

Bindings read state seeded from a snapshot (--state, or state.snapshot in
declui.yaml). Event handlers are stubs that log their name. With
--boundary the document is built inside an error boundary configured by
the boundary section of declui.yaml, so a failing subtree shows the
fallback instead of aborting the preview.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPreview(args[0], f)
		},
	}
	cmd.Flags().StringVar(&f.snapshot, "state", "", "state snapshot (JSON, or bbolt with a .db extension)")
	cmd.Flags().BoolVar(&f.boundary, "boundary", false, "build inside an error boundary")
	cmd.Flags().BoolVar(&f.validate, "validate", false, "validate before building")
	cmd.Flags().BoolVar(&f.plain, "plain", false, "print an indented outline instead of a tree")
	return cmd
}

// newLoader returns a loader over adaptor whose missing handlers log.
func (a *app) newLoader(adaptor toolkit.Adaptor, m *state.Manager, validate bool) (*loader.Loader, error) {
	opts := loader.DefaultOptions()
	opts.Parser = a.cfg.Parser
	opts.Validate = validate
	opts.State = m
	opts.MissingHandler = func(name string) func() {
		return func() { fmt.Fprintf(a.out, "handler %s\n", name) }
	}
	if validate {
		v, err := a.validator(validateFlags{})
		if err != nil {
			return nil, err
		}
		opts.Validator = v
	}
	return loader.New(adaptor, opts), nil
}

func (a *app) runPreview(file string, f previewFlags) error {
	m := state.NewManager()
	if path := firstNonEmpty(f.snapshot, a.cfg.Snapshot); path != "" {
		if err := seedState(m, path); err != nil {
			return err
		}
	}
	h := headless.New()
	l, err := a.newLoader(h, m, f.validate)
	if err != nil {
		return err
	}

	var prim toolkit.Handle
	if f.boundary {
		if prim, err = a.buildInBoundary(l, h, file); err != nil {
			return err
		}
	} else {
		doc, lerr := l.LoadFile(file)
		if lerr != nil {
			return lerr
		}
		prim = doc.Primitive()
	}

	if f.plain {
		fmt.Fprint(a.out, headless.Dump(prim))
		return nil
	}
	if p, ok := prim.(*headless.Primitive); ok {
		fmt.Fprintln(a.out, a.primitiveTree(p).String())
	}
	fmt.Fprintf(a.out, "%s\n", a.styles.muted.Render(fmt.Sprintf("%d primitives", len(h.Primitives()))))
	return nil
}

func (a *app) buildInBoundary(l *loader.Loader, h *headless.Adaptor, file string) (toolkit.Handle, error) {
	doc, err := l.Parser().ParseFile(file)
	if err != nil {
		return nil, err
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, errors.Newf(errors.KindComponentCreation, "preview", "document root must be an object")
	}
	cfg := a.cfg.Boundary
	cfg.Manager = core.NewBoundaryManager()
	cfg.ChildFactory = func() (core.Node, error) {
		b, err := l.Describe(obj)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	prev := core.SetFallbackBuilder(previewFallback(h, filepath.Base(file)))
	defer core.SetFallbackBuilder(prev)
	b := core.NewBoundary(h, nil, cfg)
	prim, err := b.Build()
	if err != nil {
		return nil, err
	}
	if info := b.LastError(); info != nil {
		fmt.Fprintf(a.out, "%s %s\n", a.styles.error.Render("boundary caught:"), info.Message)
	}
	return prim, nil
}

// previewFallback names the failed document and, in debug mode, the error
// kind and component. It has no retry button since the preview is a single
// build.
func previewFallback(h toolkit.Adaptor, name string) core.FallbackBuilder {
	return func(b *core.Boundary, info core.ErrorInfo) core.Node {
		root := core.New(h, "Widget").
			Property("objectName", "previewFallback").
			Layout(toolkit.VBox, nil)
		root.Child("Label", func(l *core.Builder) {
			l.Property("text", "cannot preview "+name).Class("error-title")
		})
		root.Child("Label", func(l *core.Builder) {
			l.Property("text", info.Message).Property("wordWrap", true).Class("error-message")
		})
		if b.Config().ShowErrorDetails || core.DebugMode {
			details := info.Kind.String()
			if info.Component != "" {
				details += " in " + info.Component
			}
			root.Child("Label", func(l *core.Builder) {
				l.Property("text", details).Class("error-details")
			})
		}
		return root
	}
}

func (a *app) primitiveTree(p *headless.Primitive) *tree.Tree {
	t := tree.Root(a.describePrimitive(p)).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(a.styles.tree)
	for _, c := range p.Children {
		if len(c.Children) == 0 {
			t.Child(a.describePrimitive(c))
		} else {
			t.Child(a.primitiveTree(c))
		}
	}
	return t
}

func (a *app) describePrimitive(p *headless.Primitive) string {
	s := a.styles
	var sb strings.Builder
	sb.WriteString(s.typeName.Render(p.Type))
	if p.Layout != nil {
		sb.WriteString(" " + s.muted.Render("["+string(p.Layout.Spec.Kind)+"]"))
	}
	for _, name := range p.PropertyNames() {
		fmt.Fprintf(&sb, " %s=%q", s.prop.Render(name), p.Property(name).String())
	}
	if !p.Visible() {
		sb.WriteString(" " + s.muted.Render("(hidden)"))
	}
	return sb.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
