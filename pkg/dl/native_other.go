//go:build !(darwin || freebsd || linux || netbsd)

package dl

import "fmt"

// NativeOpener는 지원되지 않는 플랫폼에서 항상 ErrUnsupported를 반환합니다.
type NativeOpener struct {
	Flags Flags
}

// Open implements Opener.
func (o NativeOpener) Open(path string) (Library, error) {
	return nil, fmt.Errorf("%w: cannot dlopen %s", ErrUnsupported, path)
}

// BindFunc는 지원되지 않는 플랫폼에서 ErrUnsupported를 반환합니다.
func BindFunc(lib Library, fptr any, name string) error {
	return fmt.Errorf("%w: cannot bind %s", ErrUnsupported, name)
}
