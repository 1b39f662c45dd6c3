package registry

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/insajin/autopus-mainboard/pkg/dl"
)

// Registrar는 Entrypoint 실행 동안 한 라이브러리와 로더에 범위가 묶인 등록 창구입니다.
// Entrypoint가 반환된 뒤에는 사용할 수 없습니다.
type Registrar struct {
	path  string
	owner uuid.UUID
	lib   *library
	done  bool
}

// Path는 로드 중인 라이브러리 경로를 반환합니다.
func (r *Registrar) Path() string { return r.path }

// Owner는 라이브러리를 요청한 로더의 ID를 반환합니다.
func (r *Registrar) Owner() uuid.UUID { return r.owner }

// Library는 로드 중인 라이브러리 핸들을 반환합니다.
// 팩토리는 이 핸들로 네이티브 심볼을 바인딩할 수 있습니다(dl.BindFunc).
func (r *Registrar) Library() dl.Library { return r.lib.handle }

// Provide는 Base capability로 className 클래스의 생성자를 등록합니다.
func Provide[Base any](r *Registrar, className string, ctor func() Base) error {
	if r == nil || r.done {
		return ErrRegistrarClosed
	}
	if className == "" {
		return fmt.Errorf("%w: empty class name", ErrInvalidClass)
	}
	if ctor == nil {
		return fmt.Errorf("%w: nil constructor for %s", ErrInvalidClass, className)
	}

	typ := reflect.TypeFor[Base]()
	t, ok := r.lib.tables[typ]
	if !ok {
		t = &classTable{ctors: make(map[string]any)}
		r.lib.tables[typ] = t
	}
	if _, exists := t.ctors[className]; exists {
		return fmt.Errorf("%w: %s (%s) in %s", ErrDuplicateClass, className, typ, r.path)
	}

	t.names = append(t.names, className)
	t.ctors[className] = ctor
	return nil
}
