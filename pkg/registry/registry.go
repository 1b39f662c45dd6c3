// Package registry는 (capability 타입, 클래스 이름, 로더 ID)를 생성자 함수로
// 매핑하는 프로세스 전역 팩토리 레지스트리를 제공합니다.
//
// 플러그인 라이브러리는 로드 시점에 Entrypoint를 통해 명시적으로 클래스를 등록합니다.
//
//	func RegisterClasses(r *registry.Registrar) error {
//		return registry.Provide[shape.Shape](r, "Circle", func() shape.Shape { return &Circle{} })
//	}
//
// Entrypoint는 registry.Link로 바이너리에 링크하거나, Go 플러그인의 경우
// RegisterClasses 심볼로 export합니다.
package registry

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/insajin/autopus-mainboard/pkg/dl"
)

// EntrypointSymbol은 Go 플러그인에서 찾을 등록 함수의 심볼 이름입니다.
const EntrypointSymbol = "RegisterClasses"

// 레지스트리 관련 에러 정의
var (
	// ErrNoEntrypoint는 라이브러리에 등록 진입점이 없을 때 반환됩니다.
	ErrNoEntrypoint = errors.New("library has no class registration entrypoint")

	// ErrInvalidEntrypoint는 RegisterClasses 심볼의 타입이 맞지 않을 때 반환됩니다.
	ErrInvalidEntrypoint = errors.New("registration symbol has an unexpected type")

	// ErrDuplicateClass는 같은 capability와 로더에 동일한 클래스가 두 번 등록될 때 반환됩니다.
	ErrDuplicateClass = errors.New("class already registered for this capability and loader")

	// ErrInvalidClass는 클래스 이름이나 생성자가 비어 있을 때 반환됩니다.
	ErrInvalidClass = errors.New("invalid class registration")

	// ErrLibraryNotLoaded는 로드되지 않은 (경로, 로더) 쌍을 언로드하려 할 때 반환됩니다.
	ErrLibraryNotLoaded = errors.New("library not loaded for this loader")

	// ErrRegistrarClosed는 Entrypoint가 끝난 뒤 Registrar를 사용할 때 반환됩니다.
	ErrRegistrarClosed = errors.New("registrar used outside of its entrypoint")
)

// Entrypoint는 라이브러리가 로드될 때 호출되어 클래스를 등록합니다.
type Entrypoint func(r *Registrar) error

// LibraryInfo는 로드된 라이브러리의 진단 정보입니다.
type LibraryInfo struct {
	Path    string
	Owner   uuid.UUID
	Classes map[string][]string // capability 타입 이름 -> 클래스 이름
}

// Registry는 로드된 라이브러리와 그 안에 등록된 클래스 생성자를 관리합니다.
type Registry struct {
	opener dl.Opener
	logger zerolog.Logger

	mu        sync.RWMutex
	libraries map[libraryKey]*library
	loads     singleflight.Group
}

type libraryKey struct {
	path  string
	owner uuid.UUID
}

func (k libraryKey) String() string {
	return k.owner.String() + ":" + k.path
}

// classKey는 로더 안에서 capability 타입별 클래스 테이블을 찾는 키입니다.
type classKey struct {
	typ   reflect.Type
	owner uuid.UUID
}

type library struct {
	handle dl.Library
	// capability 타입별 등록 순서를 유지합니다
	tables map[reflect.Type]*classTable
}

type classTable struct {
	names []string
	ctors map[string]any // func() Base
}

// Option은 Registry 설정 옵션입니다.
type Option func(*Registry)

// WithOpener는 라이브러리를 여는 동적 링크 백엔드를 설정합니다.
func WithOpener(o dl.Opener) Option {
	return func(r *Registry) {
		r.opener = o
	}
}

// WithLogger는 로거를 설정합니다.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New는 새로운 레지스트리를 생성합니다. 기본 백엔드는 dl.DefaultBackend입니다.
func New(opts ...Option) *Registry {
	r := &Registry{
		opener:    dl.OpenerFor(dl.DefaultBackend, dl.Flags{}),
		logger:    log.With().Str("component", "registry").Logger(),
		libraries: make(map[libraryKey]*library),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default는 프로세스 전역 레지스트리를 반환합니다.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = New()
	})
	return defaultRegistry
}

// IsLibraryLoaded는 (경로, 로더) 쌍의 라이브러리가 열려 있는지 반환합니다.
func (r *Registry) IsLibraryLoaded(path string, owner uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.libraries[libraryKey{path: path, owner: owner}]
	return ok
}

// Load는 라이브러리를 열고 Entrypoint를 실행해 클래스를 등록합니다.
// 이미 열린 쌍에 대해서는 아무것도 하지 않습니다.
// 열기와 Entrypoint 실행은 레지스트리 락 밖에서 수행하므로 Entrypoint는
// 다른 라이브러리를 로드하는 등 레지스트리를 다시 호출할 수 있습니다.
func (r *Registry) Load(path string, owner uuid.UUID) error {
	key := libraryKey{path: path, owner: owner}
	if r.IsLibraryLoaded(path, owner) {
		return nil
	}
	// 같은 (경로, 로더) 쌍의 동시 로드는 하나로 합칩니다
	_, err, _ := r.loads.Do(key.String(), func() (any, error) {
		return nil, r.load(key)
	})
	return err
}

func (r *Registry) load(key libraryKey) error {
	if r.IsLibraryLoaded(key.path, key.owner) {
		return nil
	}

	handle, err := r.opener.Open(key.path)
	if err != nil {
		return fmt.Errorf("라이브러리 열기 실패: %w", err)
	}

	entry, err := resolveEntrypoint(handle)
	if err != nil {
		r.closeHandle(handle)
		return err
	}

	lib := &library{handle: handle, tables: make(map[reflect.Type]*classTable)}
	reg := &Registrar{path: key.path, owner: key.owner, lib: lib}
	err = entry(reg)
	reg.done = true
	if err != nil {
		r.closeHandle(handle)
		return fmt.Errorf("클래스 등록 실패 (%s): %w", key.path, err)
	}

	r.mu.Lock()
	if _, ok := r.libraries[key]; ok {
		r.mu.Unlock()
		r.closeHandle(handle)
		return nil
	}
	r.libraries[key] = lib
	r.mu.Unlock()

	r.logger.Debug().
		Str("path", key.path).
		Str("owner", key.owner.String()).
		Int("capabilities", len(lib.tables)).
		Msg("라이브러리 로드 완료")
	return nil
}

// Unload는 (경로, 로더) 쌍에 묶인 모든 클래스 항목을 제거하고 라이브러리를 닫습니다.
func (r *Registry) Unload(path string, owner uuid.UUID) error {
	key := libraryKey{path: path, owner: owner}

	r.mu.Lock()
	lib, ok := r.libraries[key]
	if ok {
		delete(r.libraries, key)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrLibraryNotLoaded, path)
	}
	if err := lib.handle.Close(); err != nil {
		return fmt.Errorf("라이브러리 닫기 실패: %w", err)
	}
	r.logger.Debug().Str("path", path).Str("owner", owner.String()).Msg("라이브러리 언로드 완료")
	return nil
}

// Libraries는 로드된 모든 라이브러리의 정보를 반환합니다.
func (r *Registry) Libraries() []LibraryInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]LibraryInfo, 0, len(r.libraries))
	for key, lib := range r.libraries {
		info := LibraryInfo{
			Path:    key.path,
			Owner:   key.owner,
			Classes: make(map[string][]string, len(lib.tables)),
		}
		for typ, table := range lib.tables {
			info.Classes[typ.String()] = slices.Clone(table.names)
		}
		infos = append(infos, info)
	}
	slices.SortFunc(infos, func(a, b LibraryInfo) int {
		if a.Path != b.Path {
			if a.Path < b.Path {
				return -1
			}
			return 1
		}
		return slices.Compare(a.Owner[:], b.Owner[:])
	})
	return infos
}

func (r *Registry) closeHandle(handle dl.Library) {
	if err := handle.Close(); err != nil {
		r.logger.Warn().Err(err).Str("path", handle.Path()).Msg("라이브러리 닫기 실패")
	}
}

// table은 (capability 타입, 로더)의 클래스 테이블을 찾습니다. 호출자가 읽기 락을 잡아야 합니다.
func (r *Registry) table(key classKey) *classTable {
	for lk, lib := range r.libraries {
		if lk.owner != key.owner {
			continue
		}
		if t, ok := lib.tables[key.typ]; ok {
			return t
		}
	}
	return nil
}

// ValidClassNames는 로더 범위에서 Base로 등록된 클래스 이름을 등록 순서대로 반환합니다.
func ValidClassNames[Base any](r *Registry, owner uuid.UUID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t := r.table(classKey{typ: reflect.TypeFor[Base](), owner: owner})
	if t == nil {
		return []string{}
	}
	return slices.Clone(t.names)
}

// Create는 로더 범위의 생성자로 Base 인스턴스를 만듭니다.
// 클래스가 없으면 (zero, false)를 반환합니다.
func Create[Base any](r *Registry, className string, owner uuid.UUID) (Base, bool) {
	var zero Base

	r.mu.RLock()
	t := r.table(classKey{typ: reflect.TypeFor[Base](), owner: owner})
	var ctor func() Base
	if t != nil {
		ctor, _ = t.ctors[className].(func() Base)
	}
	r.mu.RUnlock()

	if ctor == nil {
		return zero, false
	}
	// 생성자는 레지스트리 락 밖에서 실행합니다
	return ctor(), true
}

// resolveEntrypoint는 링크된 진입점을 먼저, 그다음 RegisterClasses 심볼을 찾습니다.
func resolveEntrypoint(handle dl.Library) (Entrypoint, error) {
	if entry, ok := linked(handle.Path()); ok {
		return entry, nil
	}

	sym, err := handle.Lookup(EntrypointSymbol)
	if err != nil {
		if errors.Is(err, dl.ErrSymbolNotFound) {
			return nil, fmt.Errorf("%w: %s (export %s or link it with registry.Link)", ErrNoEntrypoint, handle.Path(), EntrypointSymbol)
		}
		return nil, err
	}

	switch fn := sym.(type) {
	case uintptr:
		return nil, fmt.Errorf("%w: %s in %s is a native symbol; link the entrypoint with registry.Link or use the goplugin backend",
			ErrInvalidEntrypoint, EntrypointSymbol, handle.Path())
	case func(*Registrar) error:
		return fn, nil
	case Entrypoint:
		return fn, nil
	case *Entrypoint:
		if fn == nil || *fn == nil {
			return nil, fmt.Errorf("%w: nil %s in %s", ErrInvalidEntrypoint, EntrypointSymbol, handle.Path())
		}
		return *fn, nil
	default:
		return nil, fmt.Errorf("%w: %s in %s is %T", ErrInvalidEntrypoint, EntrypointSymbol, handle.Path(), sym)
	}
}

var (
	linkMu    sync.RWMutex
	linkTable = make(map[string]Entrypoint)
)

// Link는 바이너리에 정적으로 포함된 플러그인의 진입점을 라이브러리 이름에 연결합니다.
// name은 전체 경로 또는 파일 이름(예: "libshapes.so")입니다. 보통 init()에서 호출합니다.
func Link(name string, entry Entrypoint) {
	if name == "" || entry == nil {
		panic("registry: Link requires a name and an entrypoint")
	}
	linkMu.Lock()
	defer linkMu.Unlock()
	linkTable[name] = entry
}

// Unlink는 Link로 연결한 진입점을 제거합니다.
func Unlink(name string) {
	linkMu.Lock()
	defer linkMu.Unlock()
	delete(linkTable, name)
}

func linked(path string) (Entrypoint, bool) {
	linkMu.RLock()
	defer linkMu.RUnlock()
	if e, ok := linkTable[path]; ok {
		return e, true
	}
	e, ok := linkTable[filepath.Base(path)]
	return e, ok
}
