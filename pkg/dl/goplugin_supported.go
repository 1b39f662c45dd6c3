//go:build linux || darwin || freebsd

package dl

import (
	"fmt"
	"plugin"
	"sync/atomic"
)

// DefaultBackend는 설정이 비어 있을 때 사용하는 백엔드입니다.
const DefaultBackend = BackendGoPlugin

// GoPluginOpener는 -buildmode=plugin으로 빌드된 Go 공유 객체를 로드합니다.
// Go 런타임은 플러그인 언매핑을 지원하지 않으므로 Close는 핸들만 무효화합니다.
type GoPluginOpener struct{}

// Open implements Opener.
func (GoPluginOpener) Open(path string) (Library, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	// 같은 경로를 다시 열면 plugin 패키지가 기존 인스턴스를 돌려줍니다
	raw, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("공유 객체 로드 실패 (%s): %w", path, err)
	}
	return &goPlugin{path: path, raw: raw}, nil
}

type goPlugin struct {
	path   string
	raw    *plugin.Plugin
	closed atomic.Bool
}

func (p *goPlugin) Path() string { return p.path }

// Lookup은 plugin.Symbol을 반환합니다. 변수는 포인터, 함수는 함수 값입니다.
func (p *goPlugin) Lookup(name string) (Symbol, error) {
	if p.closed.Load() {
		return nil, fmt.Errorf("%w: %s", ErrClosed, p.path)
	}
	sym, err := p.raw.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s in %s", ErrSymbolNotFound, name, p.path)
	}
	return sym, nil
}

func (p *goPlugin) Close() error {
	p.closed.Store(true)
	return nil
}
