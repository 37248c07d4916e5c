package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-drift/declui/pkg/dispatch"
	"github.com/go-drift/declui/pkg/hotreload"
	"github.com/go-drift/declui/pkg/loader"
	"github.com/go-drift/declui/pkg/state"
	"github.com/go-drift/declui/pkg/toolkit/headless"
)

func init() {
	RegisterCommand(newWatchCmd)
}

type watchFlags struct {
	snapshot string
	debounce time.Duration
	timeout  time.Duration
	validate bool
	extra    []string
}

func newWatchCmd(a *app) *cobra.Command {
	var f watchFlags
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Rebuild a document every time it changes",
		Long: `Load a document on the headless toolkit and rebuild it whenever the
file, or one given with --also, is saved. Each rebuild prints the number
of primitives it produced, or the error that kept the previous document.

Runs until interrupted, or for --timeout when set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if f.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, f.timeout)
				defer cancel()
			}
			return a.runWatch(ctx, args[0], f)
		},
	}
	cmd.Flags().StringVar(&f.snapshot, "state", "", "state snapshot (JSON, or bbolt with a .db extension)")
	cmd.Flags().DurationVar(&f.debounce, "debounce", hotreload.DefaultDebounce, "quiet period before a rebuild")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "stop after this long")
	cmd.Flags().BoolVar(&f.validate, "validate", false, "validate before each build")
	cmd.Flags().StringSliceVar(&f.extra, "also", nil, "more files whose changes trigger a rebuild")
	return cmd
}

func (a *app) runWatch(ctx context.Context, file string, f watchFlags) error {
	// This goroutine is the UI thread: reload timers post here.
	q := dispatch.NewQueue()
	prev := dispatch.RegisterDispatch(q.Post)
	defer dispatch.RegisterDispatch(prev)

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

	w, err := hotreload.Watch(l, file, hotreload.Options{Debounce: f.debounce, Extra: f.extra},
		func(doc *loader.Document, err error) {
			a.reported(documentSize(doc), err)
		})
	if err != nil {
		return err
	}
	defer w.Close()
	fmt.Fprintf(a.out, "%s %s\n", a.styles.muted.Render("watching"), w.Path())

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(a.out, "%s after %d builds\n", a.styles.muted.Render("stopped"), w.Reloads())
			return nil
		case <-q.Ready():
			q.Drain()
		}
	}
}

// documentSize counts the primitives under the root of doc.
func documentSize(doc *loader.Document) int {
	if doc == nil {
		return 0
	}
	p, ok := doc.Primitive().(*headless.Primitive)
	if !ok {
		return 0
	}
	return countPrimitives(p)
}

func countPrimitives(p *headless.Primitive) int {
	n := 1
	for _, c := range p.Children {
		n += countPrimitives(c)
	}
	return n
}

func (a *app) reported(primitives int, err error) {
	stamp := a.styles.muted.Render(time.Now().Format("15:04:05"))
	if err != nil {
		fmt.Fprintf(a.out, "%s %s %v\n", stamp, a.styles.error.Render("failed"), err)
		return
	}
	fmt.Fprintf(a.out, "%s %s %d primitives\n", stamp, a.styles.ok.Render("built"), primitives)
}
