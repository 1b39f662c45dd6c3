// Package main은 mainboard CLI의 진입점입니다.
// DAG 설정에 선언된 플러그인 라이브러리를 로드하고 컴포넌트를 실행합니다.
package main

import (
	"os"

	"github.com/insajin/autopus-mainboard/cmd"
)

// 빌드 시 ldflags로 주입되는 버전 정보
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
