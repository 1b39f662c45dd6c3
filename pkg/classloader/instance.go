package classloader

import (
	"io"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/insajin/autopus-mainboard/pkg/registry"
)

// Destroyer는 마지막 핸들이 해제될 때 정리 작업이 필요한 객체가 구현합니다.
// Destroyer를 구현하지 않은 io.Closer는 Close가 대신 호출됩니다.
type Destroyer interface {
	Destroy()
}

type sharedObject[Base any] struct {
	obj       Base
	className string
	refs      atomic.Int64
	deleter   func()
}

// Instance는 로더로 만든 객체의 소유 핸들입니다. Clone으로 소유권을 공유하고
// 모든 핸들이 Release되면 객체를 한 번 정리하고 로더에 알립니다.
type Instance[Base any] struct {
	shared   *sharedObject[Base]
	once     sync.Once
	released atomic.Bool
}

func newInstance[Base any](obj Base, className string, deleter func()) *Instance[Base] {
	s := &sharedObject[Base]{obj: obj, className: className, deleter: deleter}
	s.refs.Store(1)
	return &Instance[Base]{shared: s}
}

// Get은 객체를 반환합니다. 해제된 핸들은 zero 값을 반환합니다.
func (i *Instance[Base]) Get() Base {
	if i == nil || i.released.Load() {
		var zero Base
		return zero
	}
	return i.shared.obj
}

// ClassName은 객체를 만든 클래스 이름입니다.
func (i *Instance[Base]) ClassName() string {
	if i == nil {
		return ""
	}
	return i.shared.className
}

// Clone은 같은 객체를 가리키는 새 핸들을 반환합니다. 해제된 핸들에서는 nil입니다.
// 같은 핸들의 Release와 동시에 호출되면 둘 중 먼저 참조 수를 바꾼 쪽이 이깁니다.
func (i *Instance[Base]) Clone() *Instance[Base] {
	if i == nil || i.released.Load() {
		return nil
	}
	// 참조 수가 0이 된 객체는 이미 정리 중이므로 되살리지 않습니다
	for {
		n := i.shared.refs.Load()
		if n <= 0 {
			return nil
		}
		if i.shared.refs.CompareAndSwap(n, n+1) {
			return &Instance[Base]{shared: i.shared}
		}
	}
}

// Released는 이 핸들이 해제되었는지 반환합니다.
func (i *Instance[Base]) Released() bool {
	return i == nil || i.released.Load()
}

// Release는 핸들을 해제합니다. 여러 번 호출해도 한 번만 적용됩니다.
func (i *Instance[Base]) Release() {
	if i == nil {
		return
	}
	i.once.Do(func() {
		i.released.Store(true)
		if i.shared.refs.Add(-1) > 0 {
			return
		}
		destroy(i.shared.obj)
		i.shared.deleter()
	})
}

func destroy(obj any) {
	switch o := obj.(type) {
	case Destroyer:
		o.Destroy()
	case io.Closer:
		_ = o.Close()
	}
}

// GetValidClassNames는 로더의 라이브러리가 Base로 등록한 클래스 이름을 등록 순서대로 반환합니다.
func GetValidClassNames[Base any](l *ClassLoader) []string {
	return registry.ValidClassNames[Base](l.reg, l.id)
}

// IsClassValid는 className이 Base로 등록되어 있는지 반환합니다.
func IsClassValid[Base any](l *ClassLoader, className string) bool {
	return slices.Contains(GetValidClassNames[Base](l), className)
}

// CreateClassObj는 className 클래스의 객체를 만듭니다.
// 라이브러리가 로드되어 있지 않으면 먼저 로드합니다. 실패하면 (nil, false)를 반환합니다.
func CreateClassObj[Base any](l *ClassLoader, className string) (*Instance[Base], bool) {
	if !l.reserve() {
		l.logger.Warn().Str("class", className).Msg("라이브러리를 로드할 수 없어 객체를 만들지 못했습니다")
		return nil, false
	}

	created := false
	defer func() {
		if !created {
			l.releaseSlot()
		}
	}()

	obj, ok := registry.Create[Base](l.reg, className, l.id)
	if !ok {
		l.metrics.ClassNotFound.Add(1)
		l.logger.Warn().Str("class", className).Msg("등록되지 않은 클래스")
		return nil, false
	}

	created = true
	l.metrics.InstancesCreated.Add(1)
	return newInstance(obj, className, l.onClassObjDeleter), true
}
