// Package classloader는 플러그인 라이브러리 하나의 매핑 수명을 관리합니다.
//
// ClassLoader는 두 개의 카운터를 하나의 뮤텍스로 보호합니다.
//   - libRefs: 아직 짝이 맞지 않은 로드 요청 수. 0이 되면 라이브러리를 닫습니다.
//   - objRefs: 이 로더로 만든 살아 있는 객체 수. 0보다 크면 언로드를 거부합니다.
//
// 객체는 CreateClassObj로 만들고 Instance.Release로 해제합니다.
package classloader

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/insajin/autopus-mainboard/internal/metrics"
	"github.com/insajin/autopus-mainboard/pkg/registry"
)

// ErrContractViolation은 해제된 적 없는 객체를 해제하는 등 카운터 계약이 깨졌을 때
// panic 값으로 사용됩니다.
var ErrContractViolation = errors.New("classloader: instance counter contract violated")

// Stats는 로더 카운터의 스냅샷입니다.
type Stats struct {
	LibraryRefs     int  `json:"library_refs"`
	InstanceRefs    int  `json:"instance_refs"`
	PendingReleases int  `json:"pending_releases"`
	Loaded          bool `json:"loaded"`
}

type options struct {
	reg     *registry.Registry
	logger  *zerolog.Logger
	metrics *metrics.Metrics
}

// Option은 ClassLoader 설정 옵션입니다.
type Option func(*options)

// WithRegistry는 클래스 레지스트리를 설정합니다. 기본값은 registry.Default()입니다.
func WithRegistry(reg *registry.Registry) Option {
	return func(o *options) {
		o.reg = reg
	}
}

// WithLogger는 로거를 설정합니다.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// WithMetrics는 메트릭 수집기를 설정합니다. 기본값은 metrics.Default()입니다.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.reg == nil {
		o.reg = registry.Default()
	}
	if o.metrics == nil {
		o.metrics = metrics.Default()
	}
	if o.logger == nil {
		l := log.With().Str("component", "classloader").Logger()
		o.logger = &l
	}
	return o
}

// ClassLoader는 라이브러리 하나를 로드하고, 그 라이브러리로 만든 객체가 살아 있는 동안
// 언로드되지 않도록 보장합니다.
type ClassLoader struct {
	id      uuid.UUID
	path    string
	reg     *registry.Registry
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu              sync.Mutex
	libRefs         int
	objRefs         int
	pendingReleases int

	base *LibraryToken
}

// New는 path의 라이브러리를 관리하는 로더를 만들고 로드 요청을 한 번 수행합니다.
// 로드에 실패해도 로더는 사용 가능하며, 이후 LoadLibrary로 다시 시도할 수 있습니다.
func New(path string, opts ...Option) *ClassLoader {
	o := buildOptions(opts)
	l := &ClassLoader{
		id:      uuid.New(),
		path:    path,
		reg:     o.reg,
		logger:  o.logger.With().Str("library", path).Logger(),
		metrics: o.metrics,
	}
	if tok, ok := l.Acquire(); ok {
		l.base = tok
	}
	return l
}

// acquireBase는 New에서 잡지 못한 로드 요청을 다시 시도해 기본 토큰으로 보관합니다.
// 이미 기본 토큰이 있으면 새 요청은 바로 되돌립니다.
func (l *ClassLoader) acquireBase() bool {
	tok, ok := l.Acquire()
	if !ok {
		return false
	}

	l.mu.Lock()
	if l.base == nil {
		l.base = tok
		tok = nil
	}
	l.mu.Unlock()

	tok.Release()
	return true
}

// Close는 New에서 수행한 로드 요청을 되돌립니다. 두 번째 호출부터는 아무것도 하지 않습니다.
// 살아 있는 객체가 있으면 마지막 객체가 해제될 때 언로드됩니다.
func (l *ClassLoader) Close() {
	l.mu.Lock()
	tok := l.base
	l.base = nil
	l.mu.Unlock()

	if tok != nil {
		tok.Release()
	}
}

// ID는 레지스트리에서 이 로더의 범위를 나타내는 식별자입니다.
func (l *ClassLoader) ID() uuid.UUID {
	return l.id
}

// GetLibraryPath는 로더가 관리하는 라이브러리 경로를 반환합니다.
func (l *ClassLoader) GetLibraryPath() string {
	return l.path
}

// IsLibraryLoaded는 라이브러리가 현재 매핑되어 있는지 반환합니다.
func (l *ClassLoader) IsLibraryLoaded() bool {
	return l.reg.IsLibraryLoaded(l.path, l.id)
}

// LoadLibrary는 라이브러리가 매핑되어 있도록 보장하고 로드 요청 수를 늘립니다.
// true를 반환한 호출마다 UnloadLibrary를 한 번 호출해야 합니다.
func (l *ClassLoader) LoadLibrary() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLocked()
}

// UnloadLibrary는 로드 요청 하나를 되돌리고 남은 요청 수를 반환합니다.
// 살아 있는 객체가 있으면 아무것도 바꾸지 않고 현재 값을 반환합니다.
func (l *ClassLoader) UnloadLibrary() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.metrics.UnloadRequests.Add(1)
	if l.objRefs > 0 {
		l.metrics.UnloadsDeferred.Add(1)
		l.logger.Info().
			Int("instances", l.objRefs).
			Int("refs", l.libRefs).
			Msg("살아 있는 객체가 있어 언로드를 건너뜁니다")
		return l.libRefs
	}
	return l.dropRefLocked()
}

// Stats는 현재 카운터 값을 반환합니다.
func (l *ClassLoader) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		LibraryRefs:     l.libRefs,
		InstanceRefs:    l.objRefs,
		PendingReleases: l.pendingReleases,
		Loaded:          l.reg.IsLibraryLoaded(l.path, l.id),
	}
}

// loadLocked는 호출자가 l.mu를 잡은 상태에서 호출합니다.
func (l *ClassLoader) loadLocked() bool {
	if !l.reg.IsLibraryLoaded(l.path, l.id) {
		start := time.Now()
		if err := l.reg.Load(l.path, l.id); err != nil {
			l.metrics.LibraryLoadFailures.Add(1)
			l.logger.Error().Err(err).Msg("라이브러리 로드 실패")
			return false
		}
		l.metrics.RecordLoadLatency(time.Since(start))
		l.metrics.LibraryLoads.Add(1)
		l.logger.Debug().Dur("took", time.Since(start)).Msg("라이브러리 로드")
	}
	l.libRefs++
	return true
}

// dropRefLocked는 libRefs를 하나 줄이고 0이 되면 라이브러리를 닫습니다.
func (l *ClassLoader) dropRefLocked() int {
	if l.libRefs == 0 {
		l.metrics.CounterUnderflows.Add(1)
		l.logger.Warn().Msg("로드되지 않은 라이브러리에 대한 언로드 요청")
		return 0
	}

	l.libRefs--
	if l.libRefs == 0 {
		if err := l.reg.Unload(l.path, l.id); err != nil {
			l.logger.Warn().Err(err).Msg("라이브러리 언로드 실패")
		} else {
			l.metrics.LibraryUnloads.Add(1)
			l.logger.Debug().Msg("라이브러리 언로드")
		}
	}
	return l.libRefs
}

// reserve는 라이브러리가 매핑되어 있도록 보장한 뒤 같은 락 안에서 객체 슬롯 하나를 예약합니다.
func (l *ClassLoader) reserve() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.reg.IsLibraryLoaded(l.path, l.id) {
		l.logger.Info().Msg("라이브러리가 로드되지 않아 자동으로 로드합니다")
		if !l.loadLocked() {
			return false
		}
	}
	l.objRefs++
	return true
}

// releaseSlot은 객체 슬롯 하나를 반환합니다. 마지막 슬롯이면 보류된 토큰 해제를 적용합니다.
func (l *ClassLoader) releaseSlot() {
	l.mu.Lock()
	if l.objRefs == 0 {
		l.mu.Unlock()
		l.metrics.CounterUnderflows.Add(1)
		l.logger.Error().Msg("객체 카운터가 0인 상태에서 해제 요청")
		panic(ErrContractViolation)
	}

	l.objRefs--
	if l.objRefs == 0 {
		for l.pendingReleases > 0 {
			l.pendingReleases--
			l.dropRefLocked()
		}
	}
	l.mu.Unlock()
}

// onClassObjDeleter는 객체의 마지막 핸들이 해제된 뒤 호출됩니다.
func (l *ClassLoader) onClassObjDeleter() {
	l.releaseSlot()
	l.metrics.InstancesReleased.Add(1)
}

// releaseToken은 토큰 하나의 로드 요청을 되돌립니다.
// 살아 있는 객체가 있으면 마지막 객체가 해제될 때까지 보류합니다.
func (l *ClassLoader) releaseToken() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.metrics.UnloadRequests.Add(1)
	if l.objRefs > 0 {
		l.pendingReleases++
		l.metrics.UnloadsDeferred.Add(1)
		l.logger.Info().
			Int("instances", l.objRefs).
			Int("pending", l.pendingReleases).
			Msg("살아 있는 객체가 있어 언로드를 보류합니다")
		return
	}
	l.dropRefLocked()
}
