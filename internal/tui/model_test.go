package tui

import (
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/insajin/autopus-mainboard/internal/metrics"
)

// staticDataProvider returns fixed data for deterministic tests.
type staticDataProvider struct {
	data  DashboardData
	calls int
}

func (s *staticDataProvider) FetchData() DashboardData {
	s.calls++
	return s.data
}

func newTestProvider() *staticDataProvider {
	return &staticDataProvider{
		data: DashboardData{
			ProcessGroup: "planning_group",
			SchedName:    "CYBER_DEFAULT",
			StartTime:    time.Now().Add(-90 * time.Second),
			Libraries: []LibraryEntry{
				{Path: "/opt/modules/libplanning.so", LibraryRefs: 1, InstanceRefs: 2, Loaded: true},
				{Path: "/opt/modules/libcontrol.so", LibraryRefs: 0, InstanceRefs: 1, PendingReleases: 1, Loaded: true},
			},
			Components: []ComponentEntry{
				{Name: "prediction", ClassName: "Prediction", Library: "/opt/modules/libplanning.so"},
				{Name: "planning", ClassName: "Planner", Library: "/opt/modules/libplanning.so"},
				{Name: "control", ClassName: "Control", Library: "/opt/modules/libcontrol.so", Timer: true},
			},
			Metrics: metrics.MetricsSnapshot{
				LibraryLoads:    2,
				UnloadsDeferred: 1,
				LiveInstances:   3,
				TimerTicks:      42,
			},
			MemoryUsageMB:  25.5,
			GoroutineCount: 12,
		},
	}
}

func press(t *testing.T, m Model, key string) Model {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		msg = tea.KeyMsg{Type: tea.KeyShiftTab}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+c":
		msg = tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	updated, _ := m.Update(msg)
	return updated.(Model)
}

func TestNewModel_InitialState(t *testing.T) {
	provider := newTestProvider()
	m := NewModel(provider, 0)

	if m.activePanel != PanelComponents {
		t.Errorf("expected initial panel to be PanelComponents, got %d", m.activePanel)
	}
	if m.interval != time.Second {
		t.Errorf("expected default interval 1s, got %v", m.interval)
	}
	if m.selected != 0 || m.showDetail || m.quitting {
		t.Error("unexpected initial selection state")
	}
	if len(m.data.Components) != 3 {
		t.Errorf("expected 3 components, got %d", len(m.data.Components))
	}
	if provider.calls != 1 {
		t.Errorf("expected one fetch, got %d", provider.calls)
	}
}

func TestKeyBinding_Quit(t *testing.T) {
	for _, msg := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyCtrlC},
	} {
		m := NewModel(newTestProvider(), time.Second)
		updated, cmd := m.Update(msg)
		model := updated.(Model)
		if !model.quitting {
			t.Errorf("%s: expected quitting to be true", msg)
		}
		if cmd == nil {
			t.Errorf("%s: expected a tea.Quit command", msg)
		}
		if !strings.Contains(model.View(), "closed") {
			t.Errorf("%s: expected closing view", msg)
		}
	}
}

func TestKeyBinding_PanelCycle(t *testing.T) {
	m := NewModel(newTestProvider(), time.Second)

	m = press(t, m, "tab")
	if m.activePanel != PanelResources {
		t.Errorf("expected PanelResources, got %d", m.activePanel)
	}
	m = press(t, m, "tab")
	if m.activePanel != PanelLibraries {
		t.Errorf("expected wrap to PanelLibraries, got %d", m.activePanel)
	}
	m = press(t, m, "shift+tab")
	if m.activePanel != PanelResources {
		t.Errorf("expected PanelResources after shift+tab, got %d", m.activePanel)
	}
}

func TestKeyBinding_Scroll(t *testing.T) {
	m := NewModel(newTestProvider(), time.Second)

	m = press(t, m, "up")
	if m.selected != 0 {
		t.Errorf("expected selection clamped at 0, got %d", m.selected)
	}
	m = press(t, m, "down")
	m = press(t, m, "j")
	m = press(t, m, "down")
	if m.selected != 2 {
		t.Errorf("expected selection clamped at 2, got %d", m.selected)
	}
	m = press(t, m, "k")
	if m.selected != 1 {
		t.Errorf("expected selection 1, got %d", m.selected)
	}

	// 다른 패널에서는 선택이 움직이지 않습니다.
	m = press(t, m, "tab")
	m = press(t, m, "down")
	if m.selected != 1 {
		t.Errorf("expected selection unchanged outside components panel, got %d", m.selected)
	}
}

func TestScroll_Offset(t *testing.T) {
	provider := newTestProvider()
	provider.data.Components = nil
	for i := range 8 {
		provider.data.Components = append(provider.data.Components, ComponentEntry{
			Name:      fmt.Sprintf("comp-%d", i),
			ClassName: "Recorder",
			Library:   "/opt/modules/libplanning.so",
		})
	}
	m := NewModel(provider, time.Second)
	for range 7 {
		m = press(t, m, "down")
	}
	if m.selected != 7 {
		t.Fatalf("expected selection 7, got %d", m.selected)
	}
	if m.scrollOffset != 7-maxVisibleRows+1 {
		t.Errorf("expected scroll offset %d, got %d", 7-maxVisibleRows+1, m.scrollOffset)
	}
	view := m.View()
	if !strings.Contains(view, "comp-7") || strings.Contains(view, "comp-0") {
		t.Error("expected view to follow the scroll window")
	}
	if !strings.Contains(view, "[8/8 components]") {
		t.Error("expected position indicator")
	}
}

func TestKeyBinding_Detail(t *testing.T) {
	m := NewModel(newTestProvider(), time.Second)
	m = press(t, m, "down")
	m = press(t, m, "d")
	if !m.showDetail {
		t.Fatal("expected detail view to be enabled")
	}
	if !strings.Contains(m.View(), "Detail: name=planning class=Planner") {
		t.Error("expected detail line for selected component")
	}
	m = press(t, m, "d")
	if m.showDetail {
		t.Error("expected detail view to toggle off")
	}
}

func TestRefresh_ClampsSelection(t *testing.T) {
	provider := newTestProvider()
	m := NewModel(provider, time.Second)
	m = press(t, m, "down")
	m = press(t, m, "down")

	provider.data.Components = provider.data.Components[:1]
	updated, cmd := m.Update(tickMsg(time.Now()))
	m = updated.(Model)
	if cmd == nil {
		t.Error("expected tick to schedule the next refresh")
	}
	if m.selected != 0 {
		t.Errorf("expected selection clamped to 0, got %d", m.selected)
	}

	provider.data.Components = nil
	m = press(t, m, "r")
	if m.selected != 0 || m.scrollOffset != 0 {
		t.Error("expected empty list to reset selection")
	}
	if !strings.Contains(m.View(), "No components running") {
		t.Error("expected empty component message")
	}
	if provider.calls != 3 {
		t.Errorf("expected 3 fetches, got %d", provider.calls)
	}
}

func TestView_Panels(t *testing.T) {
	m := NewModel(newTestProvider(), time.Second)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	view := updated.(Model).View()

	for _, want := range []string{
		"planning_group / CYBER_DEFAULT",
		"Libraries",
		"libplanning.so",
		"loaded",
		"Components",
		"prediction",
		"timer",
		"Resources",
		"25.5 MB",
		"1m 3",
		"2 (0 failed",
		"(1 deferred)",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}

func TestView_NoLibraries(t *testing.T) {
	provider := newTestProvider()
	provider.data.Libraries = nil
	provider.data.StartTime = time.Time{}
	view := NewModel(provider, time.Second).View()
	if !strings.Contains(view, "No libraries loaded") {
		t.Error("expected empty library message")
	}
	if !strings.Contains(view, "--") {
		t.Error("expected placeholder uptime")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{500 * time.Millisecond, "500ms"},
		{5 * time.Second, "5s"},
		{90 * time.Second, "1m 30s"},
		{2*time.Hour + 3*time.Minute + 4*time.Second, "2h 3m 4s"},
		{26 * time.Hour, "1d 2h 0m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("libvery_long_module.so", 10); got != "libvery..." {
		t.Errorf("got %q", got)
	}
	if got := truncate("abcdef", 3); got != "abc" {
		t.Errorf("got %q", got)
	}
}
