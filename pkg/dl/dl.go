// Package dl은 공유 라이브러리를 프로세스에 매핑하고 심볼을 해석하는
// 동적 링크 기능을 추상화합니다.
//
// 두 가지 백엔드를 제공합니다.
//   - GoPluginOpener: 표준 라이브러리 plugin 패키지 (Go 플러그인 전용, 언매핑 불가).
//     plugin 패키지가 동작하는 플랫폼의 기본값입니다.
//   - NativeOpener: purego 기반 dlopen/dlsym/dlclose (cgo 불필요).
//     심볼은 주소로만 해석되므로 클래스 등록 진입점은 registry.Link로 바이너리에
//     링크해야 합니다.
package dl

import (
	"errors"
	"fmt"
	"strings"
)

// 동적 라이브러리 관련 에러 정의
var (
	// ErrUnsupported는 현재 플랫폼에서 백엔드를 사용할 수 없을 때 반환됩니다.
	ErrUnsupported = errors.New("dynamic library loading is not supported on this platform")

	// ErrSymbolNotFound는 라이브러리에서 심볼을 찾을 수 없을 때 반환됩니다.
	ErrSymbolNotFound = errors.New("symbol not found in library")

	// ErrClosed는 이미 닫힌 핸들을 사용하려 할 때 반환됩니다.
	ErrClosed = errors.New("library handle is closed")

	// ErrEmptyPath는 빈 경로로 라이브러리를 열려고 할 때 반환됩니다.
	ErrEmptyPath = errors.New("library path cannot be empty")
)

// Symbol은 라이브러리에서 해석된 심볼입니다.
// NativeOpener는 uintptr 주소를, GoPluginOpener는 plugin.Symbol 값을 돌려줍니다.
type Symbol any

// Library는 프로세스에 매핑된 공유 라이브러리 하나에 대한 핸들입니다.
type Library interface {
	// Path는 라이브러리를 열 때 사용한 경로를 반환합니다.
	Path() string
	// Lookup은 export된 심볼을 해석합니다.
	Lookup(name string) (Symbol, error)
	// Close는 라이브러리를 언매핑합니다. Close 이후의 심볼 사용은 정의되지 않습니다.
	Close() error
}

// Opener는 경로를 Library로 여는 동적 링크 기능입니다.
type Opener interface {
	Open(path string) (Library, error)
}

// OpenerFunc는 함수를 Opener로 사용할 수 있게 합니다.
type OpenerFunc func(path string) (Library, error)

// Open implements Opener.
func (f OpenerFunc) Open(path string) (Library, error) { return f(path) }

// Backend는 설정에서 선택할 수 있는 백엔드 이름입니다.
type Backend string

const (
	// BackendNative는 purego 기반 네이티브 백엔드입니다.
	BackendNative Backend = "native"
	// BackendGoPlugin은 표준 라이브러리 plugin 백엔드입니다.
	BackendGoPlugin Backend = "goplugin"
)

// ParseBackend는 문자열을 Backend로 변환합니다.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultBackend, nil
	case BackendNative:
		return BackendNative, nil
	case BackendGoPlugin:
		return BackendGoPlugin, nil
	default:
		return "", fmt.Errorf("unknown library backend %q (native, goplugin)", s)
	}
}

// OpenerFor는 백엔드 이름과 네이티브 플래그로 Opener를 생성합니다.
func OpenerFor(backend Backend, flags Flags) Opener {
	if backend == BackendGoPlugin {
		return GoPluginOpener{}
	}
	return NativeOpener{Flags: flags}
}

// Flags는 네이티브 백엔드의 dlopen 모드입니다.
type Flags struct {
	// Global은 RTLD_GLOBAL로 심볼을 이후 로드되는 라이브러리에 공개합니다.
	Global bool
	// Lazy는 RTLD_LAZY로 함수 심볼 바인딩을 첫 호출까지 미룹니다.
	Lazy bool
}
