//go:build !(linux || darwin || freebsd)

package dl

import "fmt"

// DefaultBackend는 설정이 비어 있을 때 사용하는 백엔드입니다.
// Go 플러그인을 쓸 수 없으므로 링크된 진입점만 사용하는 native 백엔드입니다.
const DefaultBackend = BackendNative

// GoPluginOpener는 Go plugin 패키지가 동작하지 않는 플랫폼용 스텁입니다.
// Go의 plugin 패키지는 Linux, macOS, FreeBSD에서만 동작합니다.
type GoPluginOpener struct{}

// Open implements Opener.
func (GoPluginOpener) Open(path string) (Library, error) {
	return nil, fmt.Errorf("%w: cannot load Go plugin %s", ErrUnsupported, path)
}
