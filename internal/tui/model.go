// Package tui provides a Bubble Tea dashboard for a running mainboard.
// model.go implements the main model with three panels:
// loaded libraries, running components, and resource usage.
package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/insajin/autopus-mainboard/internal/metrics"
)

// Panel represents which dashboard panel is currently focused.
type Panel int

const (
	// PanelLibraries is the class loader panel (top).
	PanelLibraries Panel = iota
	// PanelComponents is the component list panel (middle).
	PanelComponents
	// PanelResources is the resource usage panel (bottom).
	PanelResources

	panelCount = 3
)

const maxVisibleRows = 5

// LibraryEntry is one class loader's counters.
type LibraryEntry struct {
	Path            string
	LibraryRefs     int
	InstanceRefs    int
	PendingReleases int
	Loaded          bool
}

// ComponentEntry is one running component.
type ComponentEntry struct {
	Name      string
	ClassName string
	Library   string
	Timer     bool
}

// DashboardData holds all data displayed on the dashboard.
type DashboardData struct {
	ProcessGroup string
	SchedName    string
	StartTime    time.Time

	Libraries  []LibraryEntry
	Components []ComponentEntry

	Metrics        metrics.MetricsSnapshot
	MemoryUsageMB  float64
	GoroutineCount int
}

// DataProvider fetches a fresh dashboard snapshot.
type DataProvider interface {
	FetchData() DashboardData
}

// tickMsg signals a periodic data refresh.
type tickMsg time.Time

// Model is the main Bubble Tea model for the dashboard.
type Model struct {
	data     DashboardData
	provider DataProvider
	interval time.Duration

	activePanel   Panel
	selected      int
	scrollOffset  int
	showDetail    bool
	width, height int
	quitting      bool
}

// NewModel creates a dashboard refreshing from provider every interval.
func NewModel(provider DataProvider, interval time.Duration) Model {
	if interval <= 0 {
		interval = time.Second
	}
	return Model{
		data:        provider.FetchData(),
		provider:    provider,
		interval:    interval,
		activePanel: PanelComponents,
	}
}

// Init implements tea.Model. It starts the auto-refresh ticker.
func (m Model) Init() tea.Cmd {
	return m.tickCmd()
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.refresh()
		return m, m.tickCmd()
	}
	return m, nil
}

func (m *Model) refresh() {
	m.data = m.provider.FetchData()
	if n := len(m.data.Components); m.selected >= n {
		m.selected = max(n-1, 0)
		m.scrollOffset = min(m.scrollOffset, m.selected)
	}
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "r":
		m.refresh()

	case "d":
		m.showDetail = !m.showDetail

	case "tab":
		m.activePanel = (m.activePanel + 1) % panelCount

	case "shift+tab":
		m.activePanel = (m.activePanel - 1 + panelCount) % panelCount

	case "up", "k":
		if m.activePanel == PanelComponents && m.selected > 0 {
			m.selected--
			if m.selected < m.scrollOffset {
				m.scrollOffset = m.selected
			}
		}

	case "down", "j":
		if m.activePanel == PanelComponents && m.selected < len(m.data.Components)-1 {
			m.selected++
			if m.selected >= m.scrollOffset+maxVisibleRows {
				m.scrollOffset = m.selected - maxVisibleRows + 1
			}
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return "mainboard dashboard closed.\n"
	}

	w := m.width
	if w == 0 {
		w = 80
	}
	contentWidth := max(w-2, 40)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(contentWidth),
		m.renderLibraryPanel(contentWidth),
		m.renderComponentPanel(contentWidth),
		m.renderResourcePanel(contentWidth),
		m.renderFooter(contentWidth),
	)
}

func (m Model) renderHeader(width int) string {
	text := fmt.Sprintf("mainboard  %s / %s", m.data.ProcessGroup, m.data.SchedName)
	return titleStyle.Width(width).Render(text)
}

func (m Model) renderFooter(width int) string {
	keys := []struct {
		key  string
		desc string
	}{
		{"q", "quit"},
		{"r", "refresh"},
		{"d", "toggle detail"},
		{"tab", "switch panel"},
		{"up/down", "scroll components"},
	}

	var parts []string
	for _, k := range keys {
		parts = append(parts, helpKeyStyle.Render(k.key)+" "+helpStyle.Render(k.desc))
	}
	help := strings.Join(parts, helpStyle.Render("  |  "))
	return lipgloss.NewStyle().Width(width).Align(lipgloss.Center).Render(help)
}

func (m Model) renderLibraryPanel(width int) string {
	header := headerStyle.Render(fmt.Sprintf("%-28s %-8s %6s %6s %8s", "Library", "State", "Refs", "Objs", "Pending"))
	rows := []string{header}

	if len(m.data.Libraries) == 0 {
		rows = append(rows, normalRowStyle.Render("  No libraries loaded"))
	}
	for _, lib := range m.data.Libraries {
		row := fmt.Sprintf("%-28s %-8s %6d %6d %8d",
			truncate(filepath.Base(lib.Path), 28),
			formatLoaded(lib.Loaded),
			lib.LibraryRefs,
			lib.InstanceRefs,
			lib.PendingReleases,
		)
		rows = append(rows, normalRowStyle.Render(row))
	}

	return titleStyle.Render(" Libraries ") + "\n" +
		m.getPanelStyle(PanelLibraries, width).Render(strings.Join(rows, "\n"))
}

func (m Model) renderComponentPanel(width int) string {
	header := headerStyle.Render(fmt.Sprintf("%-20s %-20s %-8s %-24s", "Name", "Class", "Kind", "Library"))
	rows := []string{header}

	comps := m.data.Components
	if len(comps) == 0 {
		rows = append(rows, normalRowStyle.Render("  No components running"))
	} else {
		end := min(m.scrollOffset+maxVisibleRows, len(comps))
		for i := m.scrollOffset; i < end; i++ {
			c := comps[i]
			kind := "plain"
			if c.Timer {
				kind = "timer"
			}
			row := fmt.Sprintf("%-20s %-20s %-8s %-24s",
				truncate(c.Name, 20),
				truncate(c.ClassName, 20),
				kind,
				truncate(filepath.Base(c.Library), 24),
			)
			if i == m.selected && m.activePanel == PanelComponents {
				rows = append(rows, selectedRowStyle.Render(row))
			} else {
				rows = append(rows, normalRowStyle.Render(row))
			}
		}
		if len(comps) > maxVisibleRows {
			rows = append(rows, helpStyle.Render(fmt.Sprintf("  [%d/%d components]", m.selected+1, len(comps))))
		}
	}

	if m.showDetail && m.selected < len(comps) {
		c := comps[m.selected]
		rows = append(rows, helpStyle.Render(fmt.Sprintf("\n  Detail: name=%s class=%s library=%s", c.Name, c.ClassName, c.Library)))
	}

	return titleStyle.Render(" Components ") + "\n" +
		m.getPanelStyle(PanelComponents, width).Render(strings.Join(rows, "\n"))
}

func (m Model) renderResourcePanel(width int) string {
	s := m.data.Metrics
	uptime := "--"
	if !m.data.StartTime.IsZero() {
		uptime = formatDuration(time.Since(m.data.StartTime))
	}

	lines := []string{
		labelStyle.Render("Uptime:") + " " + valueStyle.Render(uptime),
		labelStyle.Render("Memory:") + " " + valueStyle.Render(fmt.Sprintf("%.1f MB", m.data.MemoryUsageMB)),
		labelStyle.Render("Goroutines:") + " " + valueStyle.Render(fmt.Sprintf("%d", m.data.GoroutineCount)),
		labelStyle.Render("Live objects:") + " " + valueStyle.Render(fmt.Sprintf("%d", s.LiveInstances)),
		labelStyle.Render("Loads:") + " " + valueStyle.Render(fmt.Sprintf("%d (%d failed, avg %.2fms)", s.LibraryLoads, s.LibraryLoadFailures, s.AvgLoadMs)),
		labelStyle.Render("Unloads:") + " " + valueStyle.Render(fmt.Sprintf("%d (%d deferred)", s.LibraryUnloads, s.UnloadsDeferred)),
		labelStyle.Render("Timer ticks:") + " " + valueStyle.Render(fmt.Sprintf("%d", s.TimerTicks)) + " " + formatFailures(s.TimerTickFailures),
	}

	return titleStyle.Render(" Resources ") + "\n" +
		m.getPanelStyle(PanelResources, width).Render(strings.Join(lines, "\n"))
}

func (m Model) getPanelStyle(panel Panel, width int) lipgloss.Style {
	if m.activePanel == panel {
		return activePanelStyle.Width(width - 2)
	}
	return panelStyle.Width(width - 2)
}

func formatLoaded(loaded bool) string {
	if loaded {
		return statusLoaded.Render("loaded")
	}
	return statusUnloaded.Render("unmapped")
}

func formatFailures(n int64) string {
	if n == 0 {
		return ""
	}
	return statusUnloaded.Render(fmt.Sprintf("(%d failed)", n))
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	totalSeconds := int(d.Seconds())
	days := totalSeconds / 86400
	hours := (totalSeconds % 86400) / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// truncate shortens a string to maxLen, adding an ellipsis if needed.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
