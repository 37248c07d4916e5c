package errors

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

const (
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiReset  = "\x1b[0m"
)

// LogHandler is a Handler that logs to stderr, or to Out when set.
// Prefixes are coloured when the destination is a terminal.
type LogHandler struct {
	// Verbose enables detailed output including stack traces.
	Verbose bool
	// Out overrides the destination. Defaults to os.Stderr.
	Out io.Writer

	once  sync.Once
	color bool
}

func (h *LogHandler) writer() io.Writer {
	out := h.Out
	if out == nil {
		out = os.Stderr
	}
	h.once.Do(func() {
		if f, ok := out.(*os.File); ok {
			h.color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
	})
	return out
}

func (h *LogHandler) prefix(tag, color string) string {
	if h.color {
		return color + "[declui " + tag + "]" + ansiReset
	}
	return "[declui " + tag + "]"
}

// HandleError logs an Error.
func (h *LogHandler) HandleError(err *Error) {
	if err == nil {
		return
	}
	w := h.writer()
	p := h.prefix("error", ansiRed)
	if h.Verbose {
		fmt.Fprintf(w, "%s %s [%s]", p, err.Op, err.Kind)
		if err.Path != "" {
			fmt.Fprintf(w, " path=%s", err.Path)
		}
		fmt.Fprintf(w, ": %v\n", err.Err)
		if err.StackTrace != "" {
			fmt.Fprintf(w, "Stack trace:\n%s\n", err.StackTrace)
		}
	} else {
		fmt.Fprintf(w, "%s %s: %v\n", p, err.Op, err.Err)
	}
}

// HandlePanic logs a PanicError.
func (h *LogHandler) HandlePanic(err *PanicError) {
	if err == nil {
		return
	}
	w := h.writer()
	p := h.prefix("panic", ansiRed)
	if err.Op != "" {
		fmt.Fprintf(w, "%s %s: %v\n", p, err.Op, err.Value)
	} else {
		fmt.Fprintf(w, "%s %v\n", p, err.Value)
	}
	if h.Verbose && err.StackTrace != "" {
		fmt.Fprintf(w, "Stack trace:\n%s\n", err.StackTrace)
	}
}

// HandleWarning logs a Warning.
func (h *LogHandler) HandleWarning(warn *Warning) {
	if warn == nil {
		return
	}
	fmt.Fprintf(h.writer(), "%s %s\n", h.prefix("warning", ansiYellow), warn.String())
}
