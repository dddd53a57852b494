package terminal

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/go-delve/memviz/service/api"
)

var (
	nullStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	cycleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8800")).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#CC3333")).Bold(true)
	boundStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4682B4"))
)

// decorate styles the markers of the text output, values are left alone.
func decorate(kind api.NodeKind, s string) string {
	switch kind {
	case api.NodeNull:
		return nullStyle.Render(s)
	case api.NodeCycle:
		return cycleStyle.Render(s)
	case api.NodeError:
		return errorStyle.Render(s)
	case api.NodeBound:
		return boundStyle.Render(s)
	}
	return s
}
