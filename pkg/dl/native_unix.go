//go:build darwin || freebsd || linux || netbsd

package dl

import (
	"fmt"
	"sync"

	"github.com/ebitengine/purego"
)

// NativeOpener는 purego로 공유 라이브러리를 dlopen합니다.
type NativeOpener struct {
	Flags Flags
}

// Open implements Opener.
func (o NativeOpener) Open(path string) (Library, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	h, err := purego.Dlopen(path, o.Flags.mode())
	if err != nil {
		return nil, fmt.Errorf("dlopen %s failed: %w", path, err)
	}
	return &nativeLibrary{path: path, handle: h}, nil
}

func (f Flags) mode() int {
	mode := purego.RTLD_NOW
	if f.Lazy {
		mode = purego.RTLD_LAZY
	}
	if f.Global {
		mode |= purego.RTLD_GLOBAL
	} else {
		mode |= purego.RTLD_LOCAL
	}
	return mode
}

// nativeLibrary는 dlopen 핸들입니다.
type nativeLibrary struct {
	path string

	mu     sync.RWMutex
	handle uintptr
}

func (l *nativeLibrary) Path() string { return l.path }

// Lookup은 심볼 주소(uintptr)를 반환합니다.
// 함수 심볼은 purego.RegisterFunc로 Go 함수에 바인딩할 수 있습니다.
func (l *nativeLibrary) Lookup(name string) (Symbol, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.handle == 0 {
		return nil, fmt.Errorf("%w: %s", ErrClosed, l.path)
	}
	addr, err := purego.Dlsym(l.handle, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s in %s (%v)", ErrSymbolNotFound, name, l.path, err)
	}
	return addr, nil
}

func (l *nativeLibrary) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handle == 0 {
		return nil
	}
	if err := purego.Dlclose(l.handle); err != nil {
		return fmt.Errorf("dlclose %s failed: %w", l.path, err)
	}
	l.handle = 0
	return nil
}

// BindFunc는 라이브러리의 함수 심볼을 fptr이 가리키는 Go 함수 변수에 바인딩합니다.
// 바인딩된 함수는 라이브러리가 언매핑된 뒤에 호출하면 안 됩니다.
func BindFunc(lib Library, fptr any, name string) error {
	sym, err := lib.Lookup(name)
	if err != nil {
		return err
	}
	addr, ok := sym.(uintptr)
	if !ok {
		return fmt.Errorf("%w: %s in %s is not a native function", ErrSymbolNotFound, name, lib.Path())
	}
	purego.RegisterFunc(fptr, addr)
	return nil
}
