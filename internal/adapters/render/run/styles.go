package run

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/autoseed-cli/internal/engine"
)

type styles struct {
	title      lipgloss.Style
	header     lipgloss.Style
	account    lipgloss.Style
	detail     lipgloss.Style
	warning    lipgloss.Style
	section    lipgloss.Style
	empty      lipgloss.Style
	hint       lipgloss.Style
	timestamp  lipgloss.Style
	barBracket lipgloss.Style
	barFill    lipgloss.Style
	barEmpty   lipgloss.Style
	severity   map[engine.Severity]lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:      lipgloss.NewStyle().Bold(true),
		header:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		account:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		detail:     lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		warning:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		section:    lipgloss.NewStyle().MarginTop(1),
		empty:      lipgloss.NewStyle().Faint(true),
		hint:       lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		timestamp:  lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		barBracket: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		barFill:    lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		barEmpty:   lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		severity: map[engine.Severity]lipgloss.Style{
			engine.SeverityPending: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
			engine.SeveritySuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
			engine.SeverityError:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
			engine.SeverityInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
			engine.SeverityWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
			engine.SeverityNetwork: lipgloss.NewStyle().Foreground(lipgloss.Color("69")),
			engine.SeverityBridge:  lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
		},
	}
}

func (s styles) forSeverity(sev engine.Severity) lipgloss.Style {
	if style, ok := s.severity[sev]; ok {
		return style
	}
	return s.detail
}
