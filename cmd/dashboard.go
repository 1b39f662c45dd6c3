// dashboard.go는 실행 중인 mainboard의 TUI 대시보드를 구성합니다.
package cmd

import (
	"context"
	"fmt"
	"runtime"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/insajin/autopus-mainboard/internal/mainboard"
	"github.com/insajin/autopus-mainboard/internal/metrics"
	"github.com/insajin/autopus-mainboard/internal/tui"
	"github.com/insajin/autopus-mainboard/pkg/classloader"
)

// dashboardRefresh는 대시보드 갱신 주기입니다.
const dashboardRefresh = time.Second

// liveProvider는 컨트롤러, 매니저, 메트릭에서 대시보드 데이터를 읽습니다.
type liveProvider struct {
	controller *mainboard.Controller
	manager    *classloader.Manager
	metrics    *metrics.Metrics
	startTime  time.Time
}

func newLiveProvider(c *mainboard.Controller, mgr *classloader.Manager, m *metrics.Metrics) *liveProvider {
	return &liveProvider{
		controller: c,
		manager:    mgr,
		metrics:    m,
		startTime:  time.Now(),
	}
}

// FetchData implements tui.DataProvider.
func (p *liveProvider) FetchData() tui.DashboardData {
	data := tui.DashboardData{
		StartTime:      p.startTime,
		Metrics:        p.metrics.Snapshot(),
		GoroutineCount: runtime.NumGoroutine(),
	}
	if arg := p.controller.Argument(); arg != nil {
		data.ProcessGroup = arg.ProcessGroup
		data.SchedName = arg.SchedName
	}

	for _, path := range p.manager.LibraryPaths() {
		l, ok := p.manager.GetClassLoader(path)
		if !ok {
			continue
		}
		st := l.Stats()
		data.Libraries = append(data.Libraries, tui.LibraryEntry{
			Path:            path,
			LibraryRefs:     st.LibraryRefs,
			InstanceRefs:    st.InstanceRefs,
			PendingReleases: st.PendingReleases,
			Loaded:          st.Loaded,
		})
	}

	for _, info := range p.controller.ComponentInfos() {
		data.Components = append(data.Components, tui.ComponentEntry{
			Name:      info.Name,
			ClassName: info.ClassName,
			Library:   info.Library,
			Timer:     info.Timer,
		})
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	data.MemoryUsageMB = float64(mem.Alloc) / 1024 / 1024
	return data
}

// runDashboard는 ctx가 취소되거나 사용자가 종료할 때까지 대시보드를 표시합니다.
func runDashboard(ctx context.Context, provider tui.DataProvider) error {
	p := tea.NewProgram(
		tui.NewModel(provider, dashboardRefresh),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}
