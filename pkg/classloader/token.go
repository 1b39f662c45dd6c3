package classloader

import "sync"

// LibraryToken은 짝이 맞는 로드 요청 하나를 나타냅니다.
//
//	tok, ok := loader.Acquire()
//	if !ok {
//		return
//	}
//	defer tok.Release()
type LibraryToken struct {
	loader *ClassLoader
	once   sync.Once
}

// Acquire는 로드 요청을 수행하고 그 요청을 되돌릴 토큰을 반환합니다.
// 라이브러리를 매핑하지 못하면 (nil, false)를 반환합니다.
func (l *ClassLoader) Acquire() (*LibraryToken, bool) {
	if !l.LoadLibrary() {
		return nil, false
	}
	return &LibraryToken{loader: l}, true
}

// Release는 로드 요청을 한 번만 되돌립니다.
func (t *LibraryToken) Release() {
	if t == nil {
		return
	}
	t.once.Do(t.loader.releaseToken)
}
