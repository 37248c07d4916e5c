package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-drift/declui/pkg/parser"
)

func init() {
	RegisterCommand(newResolveCmd)
}

func newResolveCmd(a *app) *cobra.Command {
	var (
		noRefs  bool
		strict  bool
		pointer string
	)
	cmd := &cobra.Command{
		Use:   "resolve <file|url>",
		Short: "Print a document with every reference expanded",
		Long: `Parse a document and print it as indented JSON with comments and
trailing commas removed and every $ref, $include and $type expanded.

Arguments starting with http:// or https:// are fetched. --pointer prints
only the value at a JSON Pointer such as /children/0.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := a.cfg.Parser
			opts.ResolveReferences = !noRefs
			opts.Strict = opts.Strict || strict
			p := parser.New(opts)

			var (
				tree any
				err  error
			)
			if src := args[0]; strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
				tree, err = p.ParseURL(cmd.Context(), src)
			} else {
				tree, err = p.ParseFile(src)
			}
			if err != nil {
				return err
			}
			if pointer != "" {
				if tree, err = parser.Lookup(tree, pointer); err != nil {
					return err
				}
			}
			data, err := parser.Serialize(tree)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, string(data))
			return nil
		},
	}
	cmd.Flags().BoolVar(&noRefs, "no-refs", false, "keep $ref, $include and $type members as written")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on unresolvable references")
	cmd.Flags().StringVar(&pointer, "pointer", "", "print only the value at this JSON Pointer")
	return cmd
}
