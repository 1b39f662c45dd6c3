//go:build linux || darwin || freebsd

package dl

import "testing"

// TestDefaultBackend는 Go 플러그인을 쓸 수 있는 플랫폼의 기본 백엔드를 테스트합니다.
func TestDefaultBackend(t *testing.T) {
	if DefaultBackend != BackendGoPlugin {
		t.Fatalf("DefaultBackend = %q, want %q", DefaultBackend, BackendGoPlugin)
	}
	got, err := ParseBackend("")
	if err != nil {
		t.Fatalf("ParseBackend(\"\") error = %v", err)
	}
	if _, ok := OpenerFor(got, Flags{}).(GoPluginOpener); !ok {
		t.Error("빈 설정이 GoPluginOpener를 선택하지 않았습니다")
	}
}
