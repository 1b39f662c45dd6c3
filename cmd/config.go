// config.go는 설정 관리 명령을 구현합니다.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/insajin/autopus-mainboard/internal/config"
)

// configCmd는 설정 관리를 위한 상위 명령어입니다.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "설정을 관리합니다",
	Long: `설정 파일의 값을 조회하거나 수정합니다.

설정 파일 위치: ~/.config/autopus/mainboard.yaml
환경변수는 MAINBOARD_ 접두사를 사용합니다 (예: MAINBOARD_LOADER_BACKEND=goplugin).`,
}

// configSetCmd는 설정 값을 저장하는 명령어입니다.
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "설정 값을 저장합니다",
	Long: `설정 파일에 값을 저장합니다.

지원하는 설정 키:
  logging.level             - 로그 레벨 (debug, info, warn, error)
  logging.format            - 로그 포맷 (json, text)
  logging.file              - 로그 파일 경로 (비어있으면 stdout)
  mainboard.process_group   - 기본 process group
  mainboard.sched_name      - 기본 스케줄 정책
  loader.backend            - 동적 링크 백엔드 (goplugin, native)
                              native는 registry.Link로 링크된 진입점만 지원
  loader.global_symbols     - RTLD_GLOBAL 사용 여부
  loader.lazy_binding       - RTLD_LAZY 사용 여부
  metrics.enabled           - Prometheus 엔드포인트 활성화
  metrics.addr              - Prometheus 주소
  metrics.path              - Prometheus 경로`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

// configGetCmd는 설정 값을 조회하는 명령어입니다.
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "설정 값을 조회합니다",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value := viper.Get(args[0])
		if value == nil {
			return fmt.Errorf("설정 키를 찾을 수 없습니다: %s", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", args[0], value)
		return nil
	},
}

// configListCmd는 전체 설정을 출력하는 명령어입니다.
var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "전체 설정을 YAML로 출력합니다",
	RunE:  runConfigList,
}

// configPathCmd는 설정 파일 경로를 출력하는 명령어입니다.
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "설정 파일 경로를 출력합니다",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), config.DefaultConfigPath())
		return nil
	},
}

// configInitCmd는 기본 설정 파일을 생성하는 명령어입니다.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "기본 설정 파일을 생성합니다",
	Long: `기본 설정 파일을 ~/.config/autopus/mainboard.yaml에 생성합니다.
이미 파일이 존재하면 --force 없이는 덮어쓰지 않습니다.`,
	RunE: runConfigInit,
}

var forceInit bool

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "기존 파일을 덮어씁니다")
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	if !isValidConfigKey(key) {
		return fmt.Errorf("알 수 없는 설정 키: %s", key)
	}

	parsed := parseConfigValue(value)
	viper.Set(key, parsed)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("설정 검증 실패: %w", err)
	}

	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("설정 디렉토리 생성 실패: %w", err)
	}
	configPath := config.DefaultConfigPath()
	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("설정 파일 저장 실패: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n설정이 저장되었습니다: %s\n", key, parsed, configPath)
	return nil
}

func runConfigList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("설정 로드 실패: %w", err)
	}

	out := cmd.OutOrStdout()
	if f := viper.ConfigFileUsed(); f != "" {
		fmt.Fprintf(out, "# 설정 파일: %s\n\n", f)
	} else {
		fmt.Fprintf(out, "# 설정 파일: (기본값 사용 중)\n\n")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("YAML 직렬화 실패: %w", err)
	}
	_, err = out.Write(data)
	return err
}

const defaultConfigYAML = `# Autopus Mainboard 설정 파일
# 생성됨: mainboard config init

logging:
  level: "info"    # debug, info, warn, error
  format: "json"   # json, text
  file: ""         # 비어있으면 stdout

mainboard:
  process_group: "mainboard_default"
  sched_name: "CYBER_DEFAULT"
  dag_conf: []

loader:
  backend: ""             # 비어 있으면 플랫폼 기본값 (goplugin), native는 registry.Link 진입점 전용
  global_symbols: false   # RTLD_GLOBAL
  lazy_binding: false     # RTLD_LAZY

metrics:
  enabled: false
  addr: ":9464"
  path: "/metrics"
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := config.DefaultConfigPath()

	if !forceInit {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("설정 파일이 이미 존재합니다: %s (--force로 덮어쓸 수 있습니다)", configPath)
		}
	}
	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("설정 디렉토리 생성 실패: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(defaultConfigYAML), 0600); err != nil {
		return fmt.Errorf("설정 파일 생성 실패: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "설정 파일이 생성되었습니다: %s\n", configPath)
	return nil
}

// isValidConfigKey는 config set으로 바꿀 수 있는 키인지 확인합니다.
func isValidConfigKey(key string) bool {
	validKeys := map[string]bool{
		"logging.level":           true,
		"logging.format":          true,
		"logging.file":            true,
		"mainboard.process_group": true,
		"mainboard.sched_name":    true,
		"loader.backend":          true,
		"loader.global_symbols":   true,
		"loader.lazy_binding":     true,
		"metrics.enabled":         true,
		"metrics.addr":            true,
		"metrics.path":            true,
	}
	return validKeys[key]
}

// parseConfigValue는 문자열 값을 적절한 타입으로 변환합니다.
func parseConfigValue(value string) interface{} {
	if value == "true" {
		return true
	}
	if value == "false" {
		return false
	}

	var intVal int
	if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
		if fmt.Sprint(intVal) == strings.TrimSpace(value) {
			return intVal
		}
	}

	return value
}
