// Package cmd implements the declui CLI commands.
//
// Each command lives in its own file and registers a constructor with
// RegisterCommand from init, so NewRootCommand can assemble a fresh
// command tree for every invocation.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-drift/declui/cmd/declui/internal/config"
	"github.com/go-drift/declui/pkg/core"
	"github.com/go-drift/declui/pkg/errors"
)

// Version information set at build time.
var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
)

// app carries the state shared by every command of one invocation.
type app struct {
	dir     string
	verbose bool
	debug   bool
	noColor bool

	cfg    *config.Resolved
	out    io.Writer
	errOut io.Writer
	styles styles
}

var commands []func(*app) *cobra.Command

// RegisterCommand adds a command constructor to the CLI.
func RegisterCommand(newCmd func(*app) *cobra.Command) {
	commands = append(commands, newCmd)
}

// NewRootCommand returns the declui command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "declui",
		Short: "declui - inspect, preview and watch declarative UI documents",
		Long: `declui works with JSON UI documents: it validates them, prints them with
every $ref and $include expanded, previews the primitive tree they build
on the headless toolkit, rebuilds them on every save, and inspects state
snapshots.

Settings are read from declui.yaml in the project root, found by walking
up from the working directory (or --dir) to declui.yaml or go.mod.`,
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.dir, "dir", "", "project directory (default: working directory)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose diagnostics with stack traces")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "show error kinds and components in boundary fallbacks")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable coloured output")

	for _, newCmd := range commands {
		root.AddCommand(newCmd(a))
	}
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	a.out = cmd.OutOrStdout()
	a.errOut = cmd.ErrOrStderr()
	a.styles = newStyles(a.out, a.noColor)
	errors.SetHandler(&errors.LogHandler{Verbose: a.verbose, Out: a.errOut})
	core.SetDebugMode(a.debug)

	start := a.dir
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		start = wd
	}
	root, err := config.FindProjectRoot(start)
	if err != nil {
		return err
	}
	cfg, err := config.Resolve(root)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// Execute runs the CLI with os.Args.
func Execute() error {
	root := NewRootCommand()
	err := root.Execute()
	if err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
	}
	return err
}
