package classloader

import (
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

// Manager는 라이브러리 경로별 ClassLoader를 등록 순서대로 관리합니다.
type Manager struct {
	opts   []Option
	logger zerolog.Logger

	mu      sync.RWMutex
	loaders map[string]*ClassLoader
	order   []string
}

// NewManager는 새 Manager를 만듭니다. opts는 생성되는 모든 로더에 전달됩니다.
func NewManager(opts ...Option) *Manager {
	o := buildOptions(opts)
	return &Manager{
		opts:    opts,
		logger:  o.logger.With().Str("scope", "manager").Logger(),
		loaders: make(map[string]*ClassLoader),
	}
}

// LoadLibrary는 처음 보는 경로에 대해 로더를 만들고 라이브러리가 매핑되었는지 반환합니다.
// 이미 로더가 있지만 라이브러리가 매핑되어 있지 않으면 로드를 다시 시도합니다.
func (m *Manager) LoadLibrary(path string) bool {
	m.mu.Lock()
	l, ok := m.loaders[path]
	if !ok {
		l = New(path, m.opts...)
		m.loaders[path] = l
		m.order = append(m.order, path)
	}
	m.mu.Unlock()

	if ok && !l.IsLibraryLoaded() {
		// 생성 시 로드에 실패한 경로는 다시 시도합니다
		return l.acquireBase()
	}
	return l.IsLibraryLoaded()
}

// IsLibraryValid는 path의 로더가 있고 라이브러리가 매핑되어 있는지 반환합니다.
func (m *Manager) IsLibraryValid(path string) bool {
	l, ok := m.GetClassLoader(path)
	return ok && l.IsLibraryLoaded()
}

// GetClassLoader는 path의 로더를 반환합니다.
func (m *Manager) GetClassLoader(path string) (*ClassLoader, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.loaders[path]
	return l, ok
}

// LibraryPaths는 등록된 라이브러리 경로를 등록 순서대로 반환합니다.
func (m *Manager) LibraryPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order)
}

func (m *Manager) snapshot() []*ClassLoader {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ClassLoader, 0, len(m.order))
	for _, p := range m.order {
		out = append(out, m.loaders[p])
	}
	return out
}

// UnloadAllLibrary는 모든 로더를 등록의 역순으로 닫고 목록을 비웁니다.
func (m *Manager) UnloadAllLibrary() {
	m.mu.Lock()
	order := m.order
	loaders := m.loaders
	m.order = nil
	m.loaders = make(map[string]*ClassLoader)
	m.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		loaders[order[i]].Close()
	}
	m.logger.Info().Int("libraries", len(order)).Msg("모든 라이브러리 언로드 요청 완료")
}

// ManagerCreateClassObj는 className을 Base로 등록한 첫 번째 로더에서 객체를 만듭니다.
func ManagerCreateClassObj[Base any](m *Manager, className string) (*Instance[Base], bool) {
	for _, l := range m.snapshot() {
		if IsClassValid[Base](l, className) {
			return CreateClassObj[Base](l, className)
		}
	}
	m.logger.Error().Str("class", className).Msg("클래스를 등록한 라이브러리가 없습니다")
	return nil, false
}

// ManagerCreateClassObjFrom은 path의 로더에서 객체를 만듭니다.
func ManagerCreateClassObjFrom[Base any](m *Manager, className, path string) (*Instance[Base], bool) {
	l, ok := m.GetClassLoader(path)
	if !ok {
		m.logger.Error().Str("class", className).Str("library", path).Msg("로드되지 않은 라이브러리")
		return nil, false
	}
	return CreateClassObj[Base](l, className)
}

// ManagerIsClassValid는 어느 로더든 className을 Base로 등록했는지 반환합니다.
func ManagerIsClassValid[Base any](m *Manager, className string) bool {
	return slices.Contains(ManagerValidClassNames[Base](m), className)
}

// ManagerValidClassNames는 모든 로더의 클래스 이름을 로더 순서대로 이어 붙여 반환합니다.
func ManagerValidClassNames[Base any](m *Manager) []string {
	var names []string
	for _, l := range m.snapshot() {
		names = append(names, GetValidClassNames[Base](l)...)
	}
	return names
}
