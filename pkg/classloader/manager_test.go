package classloader

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/insajin/autopus-mainboard/internal/metrics"
	"github.com/insajin/autopus-mainboard/pkg/dl/dltest"
	"github.com/insajin/autopus-mainboard/pkg/registry"
)

type origin struct {
	lib string
}

func (o *origin) Sides() int { return len(o.lib) }

func newTestManager(t *testing.T) (*Manager, *dltest.Opener, []string) {
	t.Helper()

	opener := dltest.NewOpener()
	reg := registry.New(registry.WithOpener(opener), registry.WithLogger(zerolog.Nop()))

	base := "/plugins/" + strings.ReplaceAll(t.Name(), "/", "_")
	libs := map[string][]string{
		base + "_a.so": {"Square"},
		base + "_b.so": {"Square", "Circle"},
	}
	paths := []string{base + "_a.so", base + "_b.so"}
	for _, p := range paths {
		opener.Add(p, nil)
		path, classes := p, libs[p]
		registry.Link(path, func(r *registry.Registrar) error {
			for _, c := range classes {
				if err := registry.Provide[Shape](r, c, func() Shape { return &origin{lib: path} }); err != nil {
					return err
				}
			}
			return nil
		})
		t.Cleanup(func() { registry.Unlink(path) })
	}

	m := NewManager(WithRegistry(reg), WithMetrics(metrics.NewMetrics()), WithLogger(zerolog.Nop()))
	return m, opener, paths
}

func TestManager_LoadLibrary(t *testing.T) {
	m, opener, paths := newTestManager(t)

	for _, p := range paths {
		if !m.LoadLibrary(p) {
			t.Fatalf("LoadLibrary(%s) = false", p)
		}
	}
	// 같은 경로는 로더를 다시 만들지 않습니다
	if !m.LoadLibrary(paths[0]) {
		t.Error("second LoadLibrary = false")
	}
	if got := opener.Opens(paths[0]); got != 1 {
		t.Errorf("Opens = %d, want 1", got)
	}

	if got := m.LibraryPaths(); strings.Join(got, ",") != strings.Join(paths, ",") {
		t.Errorf("LibraryPaths = %v, want %v", got, paths)
	}
	if !m.IsLibraryValid(paths[1]) {
		t.Error("IsLibraryValid = false for a loaded library")
	}
	if m.IsLibraryValid("/plugins/missing.so") {
		t.Error("IsLibraryValid = true for an unknown library")
	}

	if m.LoadLibrary("/plugins/missing.so") {
		t.Error("LoadLibrary of a missing file = true")
	}
	if _, ok := m.GetClassLoader("/plugins/missing.so"); !ok {
		t.Error("loader for a failed path was not kept")
	}
}

func TestManager_LoadLibraryRetriesAfterFailure(t *testing.T) {
	m, opener, paths := newTestManager(t)
	p := paths[0]

	opener.FailOpen(p, errors.New("transient"))
	if m.LoadLibrary(p) {
		t.Fatal("LoadLibrary = true while open fails")
	}
	if m.LoadLibrary(p) {
		t.Fatal("LoadLibrary = true while open still fails")
	}

	opener.FailOpen(p, nil)
	if !m.LoadLibrary(p) {
		t.Fatal("LoadLibrary after recovery = false")
	}
	if !m.IsLibraryValid(p) {
		t.Error("IsLibraryValid = false after recovery")
	}
	if got := len(m.LibraryPaths()); got != 1 {
		t.Errorf("LibraryPaths len = %d, want 1", got)
	}

	l, _ := m.GetClassLoader(p)
	if st := l.Stats(); st.LibraryRefs != 1 {
		t.Errorf("LibraryRefs = %d, want 1", st.LibraryRefs)
	}
	// 이미 매핑된 경로는 요청을 더 쌓지 않습니다
	if !m.LoadLibrary(p) || l.Stats().LibraryRefs != 1 {
		t.Errorf("LibraryRefs after repeat = %d, want 1", l.Stats().LibraryRefs)
	}

	inst, ok := ManagerCreateClassObj[Shape](m, "Square")
	if !ok {
		t.Fatal("ManagerCreateClassObj failed after recovery")
	}
	inst.Release()

	m.UnloadAllLibrary()
	if got := opener.Mapped(p); got != 0 {
		t.Errorf("Mapped = %d after UnloadAllLibrary, want 0", got)
	}
}

func TestManager_CreateClassObjOrder(t *testing.T) {
	m, _, paths := newTestManager(t)
	for _, p := range paths {
		m.LoadLibrary(p)
	}

	tests := []struct {
		class   string
		wantLib string
		wantOK  bool
	}{
		{"Square", paths[0], true},
		{"Circle", paths[1], true},
		{"Hexagon", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			inst, ok := ManagerCreateClassObj[Shape](m, tt.class)
			if ok != tt.wantOK {
				t.Fatalf("ManagerCreateClassObj(%s) ok = %v, want %v", tt.class, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			defer inst.Release()
			if got := inst.Get().(*origin).lib; got != tt.wantLib {
				t.Errorf("created from %s, want %s", got, tt.wantLib)
			}
		})
	}

	inst, ok := ManagerCreateClassObjFrom[Shape](m, "Square", paths[1])
	if !ok {
		t.Fatal("ManagerCreateClassObjFrom failed")
	}
	if got := inst.Get().(*origin).lib; got != paths[1] {
		t.Errorf("created from %s, want %s", got, paths[1])
	}
	inst.Release()

	if _, ok := ManagerCreateClassObjFrom[Shape](m, "Square", "/plugins/unknown.so"); ok {
		t.Error("ManagerCreateClassObjFrom on an unknown library succeeded")
	}
}

func TestManager_ClassNames(t *testing.T) {
	m, _, paths := newTestManager(t)
	if got := ManagerValidClassNames[Shape](m); len(got) != 0 {
		t.Errorf("ManagerValidClassNames on empty manager = %v", got)
	}
	for _, p := range paths {
		m.LoadLibrary(p)
	}

	want := "Square,Square,Circle"
	if got := strings.Join(ManagerValidClassNames[Shape](m), ","); got != want {
		t.Errorf("ManagerValidClassNames = %s, want %s", got, want)
	}
	if !ManagerIsClassValid[Shape](m, "Circle") {
		t.Error("ManagerIsClassValid(Circle) = false")
	}
	if ManagerIsClassValid[Shape](m, "Hexagon") {
		t.Error("ManagerIsClassValid(Hexagon) = true")
	}
}

func TestManager_UnloadAllLibraryReverseOrder(t *testing.T) {
	m, opener, paths := newTestManager(t)

	var mu sync.Mutex
	var closed []string
	opener.OnClose(func(path string) {
		mu.Lock()
		closed = append(closed, path)
		mu.Unlock()
	})

	for _, p := range paths {
		m.LoadLibrary(p)
	}
	m.UnloadAllLibrary()

	want := []string{paths[1], paths[0]}
	if strings.Join(closed, ",") != strings.Join(want, ",") {
		t.Errorf("close order = %v, want %v", closed, want)
	}
	if len(m.LibraryPaths()) != 0 {
		t.Errorf("LibraryPaths after UnloadAllLibrary = %v", m.LibraryPaths())
	}
	for _, p := range paths {
		if opener.Mapped(p) != 0 {
			t.Errorf("%s still mapped", p)
		}
	}
}

func TestManager_UnloadAllLibraryWaitsForInstances(t *testing.T) {
	m, opener, paths := newTestManager(t)
	m.LoadLibrary(paths[0])

	l, _ := m.GetClassLoader(paths[0])
	inst, ok := ManagerCreateClassObj[Shape](m, "Square")
	if !ok {
		t.Fatal("ManagerCreateClassObj failed")
	}

	m.UnloadAllLibrary()
	if opener.Mapped(paths[0]) != 1 {
		t.Fatal("library unmapped while an instance is alive")
	}

	inst.Release()
	if opener.Mapped(paths[0]) != 0 || l.IsLibraryLoaded() {
		t.Error("library still mapped after the last instance was released")
	}
}
