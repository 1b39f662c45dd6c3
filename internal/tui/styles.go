// styles.go defines lipgloss styles for the dashboard panels and status indicators.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#52525B")).
			Padding(0, 1)

	activePanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#8B5CF6")).
				Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#4C1D95")).
			Padding(0, 1)
)

// Library state styles.
var (
	statusLoaded = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#14B8A6")).
			Bold(true)

	statusUnloaded = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E11D48")).
			Bold(true)
)

// Table styles.
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			BorderBottom(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#6D28D9"))

	selectedRowStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("#4C1D95")).
				Foreground(lipgloss.Color("#FFFFFF"))

	normalRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A1A1AA"))
)

var (
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A1A1AA")).
			Width(16)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717A"))

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#14B8A6")).
			Bold(true)
)
