package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/leapstack-labs/leapflow/pkg/core"
)

// Styles holds the lipgloss styles used by commands.
type Styles struct {
	Header1   lipgloss.Style
	Header2   lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	ModelPath lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
}

// NewStyles returns colored styles bound to w.
func NewStyles(w io.Writer) *Styles {
	r := lipgloss.NewRenderer(w)
	return &Styles{
		Header1:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Header2:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		Bold:      r.NewStyle().Bold(true),
		Muted:     r.NewStyle().Foreground(lipgloss.Color("8")),
		ModelPath: r.NewStyle().Foreground(lipgloss.Color("13")),
		Success:   r.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:   r.NewStyle().Foreground(lipgloss.Color("11")),
		Error:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
}

// PlainStyles returns styles that render text unchanged.
func PlainStyles() *Styles {
	plain := lipgloss.NewStyle()
	return &Styles{
		Header1:   plain,
		Header2:   plain,
		Bold:      plain,
		Muted:     plain,
		ModelPath: plain,
		Success:   plain,
		Warning:   plain,
		Error:     plain,
	}
}

// ModelStatus returns the style for a model run status.
func (s *Styles) ModelStatus(status core.ModelRunStatus) lipgloss.Style {
	switch status {
	case core.ModelRunStatusSuccess:
		return s.Success
	case core.ModelRunStatusFailed:
		return s.Error
	default:
		return s.Warning
	}
}

// RunStatus returns the style for a run status.
func (s *Styles) RunStatus(status core.RunStatus) lipgloss.Style {
	switch status {
	case core.RunStatusCompleted:
		return s.Success
	case core.RunStatusFailed:
		return s.Error
	default:
		return s.Warning
	}
}

// Severity returns the style for a failed rule of the given severity.
func (s *Styles) Severity(sev core.Severity) lipgloss.Style {
	if sev == core.SeverityError {
		return s.Error
	}
	return s.Warning
}
