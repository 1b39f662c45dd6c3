// Package mainboard는 DAG 설정을 읽어 플러그인 컴포넌트를 생성, 초기화, 정리합니다.
package mainboard

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/insajin/autopus-mainboard/internal/config"
)

// Argument는 mainboard 실행 인자입니다.
type Argument struct {
	BinaryName   string
	ProcessGroup string
	SchedName    string
	DagConfList  []string
}

// ParseArgument는 CLI에서 받은 값으로 Argument를 만듭니다.
// dagConfs는 -d 플래그 값, extra는 플래그 뒤에 이어지는 DAG 파일입니다.
// 비어 있는 process group과 sched name은 기본값으로 채웁니다.
func ParseArgument(binary string, dagConfs, extra []string, processGroup, schedName string) *Argument {
	a := &Argument{
		BinaryName:   filepath.Base(binary),
		ProcessGroup: processGroup,
		SchedName:    schedName,
	}
	for _, d := range append(append([]string{}, dagConfs...), extra...) {
		if d = strings.TrimSpace(d); d != "" {
			a.DagConfList = append(a.DagConfList, d)
		}
	}
	if a.ProcessGroup == "" {
		a.ProcessGroup = config.DefaultProcessGroup
	}
	if a.SchedName == "" {
		a.SchedName = config.DefaultSchedName
	}
	return a
}

// Log는 실행 인자를 기록합니다.
func (a *Argument) Log(logger zerolog.Logger) {
	logger.Info().
		Str("binary", a.BinaryName).
		Str("process_group", a.ProcessGroup).
		Str("sched_name", a.SchedName).
		Int("dag_count", len(a.DagConfList)).
		Msg("mainboard 인자")
	for _, dag := range a.DagConfList {
		logger.Info().Str("dag_conf", dag).Msg("DAG 설정")
	}
}

// Usage는 사용법 문자열을 반환합니다.
func (a *Argument) Usage() string {
	name := a.BinaryName
	if name == "" {
		name = "mainboard"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Usage:\n    %s [OPTION]...\n", name)
	b.WriteString("Description:\n")
	b.WriteString("    -h, --help : help information\n")
	b.WriteString("    -d, --dag_conf=CONFIG_FILE : module dag config file\n")
	b.WriteString("    -p, --process_group=process_group : the process namespace for running this module\n")
	b.WriteString("    -s, --sched_name=sched_name : sched policy conf for the whole process\n")
	b.WriteString("Example:\n")
	fmt.Fprintf(&b, "    %s -h\n", name)
	fmt.Fprintf(&b, "    %s -d dag_conf_file1 -d dag_conf_file2 -p process_group -s sched_name\n", name)
	return b.String()
}
