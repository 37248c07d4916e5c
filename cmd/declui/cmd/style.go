package cmd

import (
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/go-drift/declui/pkg/validator"
)

// styles render CLI output. The renderer picks the colour profile of the
// destination, so output to a pipe or buffer is plain text.
type styles struct {
	title    lipgloss.Style
	typeName lipgloss.Style
	prop     lipgloss.Style
	path     lipgloss.Style
	ok       lipgloss.Style
	muted    lipgloss.Style
	info     lipgloss.Style
	warning  lipgloss.Style
	error    lipgloss.Style
	critical lipgloss.Style
	tree     lipgloss.Style
}

func newStyles(w io.Writer, noColor bool) styles {
	r := lipgloss.NewRenderer(w)
	s := styles{
		title:    r.NewStyle(),
		typeName: r.NewStyle(),
		prop:     r.NewStyle(),
		path:     r.NewStyle(),
		ok:       r.NewStyle(),
		muted:    r.NewStyle(),
		info:     r.NewStyle(),
		warning:  r.NewStyle(),
		error:    r.NewStyle(),
		critical: r.NewStyle(),
		tree:     r.NewStyle(),
	}
	if noColor {
		return s
	}
	s.title = s.title.Bold(true)
	s.typeName = s.typeName.Bold(true).Foreground(lipgloss.Color("12"))
	s.prop = s.prop.Foreground(lipgloss.Color("14"))
	s.path = s.path.Foreground(lipgloss.Color("13"))
	s.ok = s.ok.Bold(true).Foreground(lipgloss.Color("10"))
	s.muted = s.muted.Faint(true)
	s.info = s.info.Foreground(lipgloss.Color("8"))
	s.warning = s.warning.Foreground(lipgloss.Color("11"))
	s.error = s.error.Foreground(lipgloss.Color("9"))
	s.critical = s.critical.Bold(true).Foreground(lipgloss.Color("9"))
	s.tree = s.tree.Foreground(lipgloss.Color("8"))
	return s
}

func (s styles) severity(sev validator.Severity) lipgloss.Style {
	switch sev {
	case validator.Critical:
		return s.critical
	case validator.Error:
		return s.error
	case validator.Warning:
		return s.warning
	default:
		return s.info
	}
}
