// Package config는 mainboard의 설정 관리를 담당합니다.
// 설정 우선순위: 환경변수(MAINBOARD_) > 설정파일 > 기본값
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/insajin/autopus-mainboard/pkg/dl"
)

// 기본값
const (
	DefaultProcessGroup = "mainboard_default"
	DefaultSchedName    = "CYBER_DEFAULT"
	DefaultMetricsAddr  = ":9464"
	DefaultMetricsPath  = "/metrics"
	EnvPrefix           = "MAINBOARD"
)

// Config는 전체 애플리케이션 설정을 나타냅니다.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Mainboard MainboardConfig `mapstructure:"mainboard" yaml:"mainboard"`
	Loader    LoaderConfig    `mapstructure:"loader" yaml:"loader"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig는 로깅 설정입니다.
type LoggingConfig struct {
	// Level은 로그 레벨입니다 (debug, info, warn, error).
	Level string `mapstructure:"level" yaml:"level"`
	// Format은 로그 포맷입니다 (json, text).
	Format string `mapstructure:"format" yaml:"format"`
	// File은 로그 파일 경로입니다. 비어있으면 stdout으로 출력합니다.
	File string `mapstructure:"file" yaml:"file"`
}

// MainboardConfig는 모듈 컨트롤러 설정입니다.
type MainboardConfig struct {
	ProcessGroup string   `mapstructure:"process_group" yaml:"process_group"`
	SchedName    string   `mapstructure:"sched_name" yaml:"sched_name"`
	DagConf      []string `mapstructure:"dag_conf" yaml:"dag_conf"`
}

// LoaderConfig는 동적 링크 백엔드 설정입니다.
type LoaderConfig struct {
	// Backend는 "goplugin" 또는 "native"(dlopen)입니다. 비어 있으면 dl.DefaultBackend입니다.
	// native는 registry.Link로 링크된 진입점을 가진 라이브러리만 로드할 수 있습니다.
	Backend string `mapstructure:"backend" yaml:"backend"`
	// GlobalSymbols가 true이면 RTLD_GLOBAL, 아니면 RTLD_LOCAL로 엽니다.
	GlobalSymbols bool `mapstructure:"global_symbols" yaml:"global_symbols"`
	// LazyBinding이 true이면 RTLD_LAZY, 아니면 RTLD_NOW로 엽니다.
	LazyBinding bool `mapstructure:"lazy_binding" yaml:"lazy_binding"`
}

// Opener는 설정에 맞는 dl.Opener를 반환합니다.
func (c LoaderConfig) Opener() (dl.Opener, error) {
	backend, err := dl.ParseBackend(c.Backend)
	if err != nil {
		return nil, err
	}
	return dl.OpenerFor(backend, dl.Flags{Global: c.GlobalSymbols, Lazy: c.LazyBinding}), nil
}

// MetricsConfig는 Prometheus 엔드포인트 설정입니다.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// SetDefaults는 viper 인스턴스에 기본값을 등록합니다.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")

	v.SetDefault("mainboard.process_group", DefaultProcessGroup)
	v.SetDefault("mainboard.sched_name", DefaultSchedName)
	v.SetDefault("mainboard.dag_conf", []string{})

	v.SetDefault("loader.backend", string(dl.DefaultBackend))
	v.SetDefault("loader.global_symbols", false)
	v.SetDefault("loader.lazy_binding", false)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", DefaultMetricsAddr)
	v.SetDefault("metrics.path", DefaultMetricsPath)
}

// Load는 전역 viper에서 설정을 로드합니다.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom은 주어진 viper 인스턴스에서 설정을 로드합니다.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("설정 파싱 실패: %w", err)
	}

	// 홈 디렉토리 경로 확장
	cfg.Logging.File = expandPath(cfg.Logging.File)
	for i, p := range cfg.Mainboard.DagConf {
		cfg.Mainboard.DagConf[i] = expandPath(p)
	}

	return &cfg, nil
}

// Validate는 설정의 유효성을 검사합니다.
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("유효하지 않은 로그 레벨: %s (debug, info, warn, error 중 하나)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("유효하지 않은 로그 포맷: %s (json, text 중 하나)", c.Logging.Format)
	}

	if _, err := dl.ParseBackend(c.Loader.Backend); err != nil {
		return fmt.Errorf("유효하지 않은 로더 백엔드: %w", err)
	}

	if c.Mainboard.ProcessGroup == "" {
		return fmt.Errorf("process_group은 비어 있을 수 없습니다")
	}
	if c.Mainboard.SchedName == "" {
		return fmt.Errorf("sched_name은 비어 있을 수 없습니다")
	}

	if c.Metrics.Enabled {
		if c.Metrics.Addr == "" {
			return fmt.Errorf("metrics.addr는 metrics가 활성화되면 필수입니다")
		}
		if len(c.Metrics.Path) == 0 || c.Metrics.Path[0] != '/' {
			return fmt.Errorf("metrics.path는 /로 시작해야 합니다: %q", c.Metrics.Path)
		}
	}

	return nil
}

// expandPath는 ~를 홈 디렉토리로 확장합니다.
func expandPath(path string) string {
	if path == "" {
		return ""
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// EnsureConfigDir는 설정 디렉토리가 존재하는지 확인하고 없으면 생성합니다.
func EnsureConfigDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("홈 디렉토리를 찾을 수 없습니다: %w", err)
	}

	configDir := filepath.Join(home, ".config", "autopus")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("설정 디렉토리 생성 실패: %w", err)
	}

	return nil
}

// DefaultConfigPath는 기본 설정 파일 경로를 반환합니다.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "autopus", "mainboard.yaml")
}
