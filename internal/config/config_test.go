package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/insajin/autopus-mainboard/pkg/dl"
)

func validConfig() *Config {
	return &Config{
		Logging:   LoggingConfig{Level: "info", Format: "json"},
		Mainboard: MainboardConfig{ProcessGroup: DefaultProcessGroup, SchedName: DefaultSchedName},
		Loader:    LoaderConfig{Backend: "native"},
		Metrics:   MetricsConfig{Addr: DefaultMetricsAddr, Path: DefaultMetricsPath},
	}
}

// TestConfig_Validate는 설정 검증을 테스트합니다.
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{
			name:   "기본 설정",
			modify: func(c *Config) {},
		},
		{
			name:    "잘못된 로그 레벨",
			modify:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "로그 레벨",
		},
		{
			name:    "잘못된 로그 포맷",
			modify:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "로그 포맷",
		},
		{
			name:    "알 수 없는 백엔드",
			modify:  func(c *Config) { c.Loader.Backend = "wasm" },
			wantErr: "로더 백엔드",
		},
		{
			name:   "빈 백엔드는 기본 백엔드",
			modify: func(c *Config) { c.Loader.Backend = "" },
		},
		{
			name:    "빈 process group",
			modify:  func(c *Config) { c.Mainboard.ProcessGroup = "" },
			wantErr: "process_group",
		},
		{
			name:    "빈 sched name",
			modify:  func(c *Config) { c.Mainboard.SchedName = "" },
			wantErr: "sched_name",
		},
		{
			name: "metrics 경로가 /로 시작하지 않음",
			modify: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Path = "metrics"
			},
			wantErr: "metrics.path",
		},
		{
			name: "metrics 비활성화 시 주소 검증 생략",
			modify: func(c *Config) {
				c.Metrics.Addr = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.modify(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

// TestLoadFrom은 기본값, 설정 파일, 환경변수 우선순위를 테스트합니다.
func TestLoadFrom(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mainboard.yaml")
	content := `
logging:
  level: debug
mainboard:
  process_group: planning
  dag_conf:
    - /apollo/dag/planning.dag
    - ~/dag/extra.dag
loader:
  backend: goplugin
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MAINBOARD_MAINBOARD_SCHED_NAME", "CYBER_CLASSIC")

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}

	cfg, err := LoadFrom(v)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json (default)", cfg.Logging.Format)
	}
	if cfg.Mainboard.ProcessGroup != "planning" {
		t.Errorf("ProcessGroup = %q, want planning", cfg.Mainboard.ProcessGroup)
	}
	if cfg.Mainboard.SchedName != "CYBER_CLASSIC" {
		t.Errorf("SchedName = %q, want CYBER_CLASSIC (env)", cfg.Mainboard.SchedName)
	}
	if len(cfg.Mainboard.DagConf) != 2 {
		t.Fatalf("DagConf = %v, want 2 entries", cfg.Mainboard.DagConf)
	}
	if strings.HasPrefix(cfg.Mainboard.DagConf[1], "~") {
		t.Errorf("DagConf[1] = %q, want home expanded", cfg.Mainboard.DagConf[1])
	}
	if cfg.Metrics.Addr != DefaultMetricsAddr || cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics = %+v, want defaults", cfg.Metrics)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadFrom_DefaultBackend(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadFrom(v)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Loader.Backend != string(dl.DefaultBackend) {
		t.Errorf("Loader.Backend = %q, want %q", cfg.Loader.Backend, dl.DefaultBackend)
	}

	o, err := cfg.Loader.Opener()
	if err != nil {
		t.Fatalf("Opener() error = %v", err)
	}
	// Go 플러그인을 쓸 수 있는 플랫폼에서는 심볼 진입점을 해석할 수 있는 백엔드가 기본입니다
	if dl.DefaultBackend == dl.BackendGoPlugin {
		if _, ok := o.(dl.GoPluginOpener); !ok {
			t.Errorf("default Opener = %T, want dl.GoPluginOpener", o)
		}
	}
}

func TestLoaderConfig_Opener(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{"native", false},
		{"", false},
		{"goplugin", false},
		{"GoPlugin", false},
		{"jni", true},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			o, err := LoaderConfig{Backend: tt.backend}.Opener()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Opener() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && o == nil {
				t.Error("Opener() returned nil")
			}
		})
	}

	o, _ := LoaderConfig{Backend: "native", GlobalSymbols: true, LazyBinding: true}.Opener()
	native, ok := o.(dl.NativeOpener)
	if !ok {
		t.Fatalf("Opener() = %T, want dl.NativeOpener", o)
	}
	if !native.Flags.Global || !native.Flags.Lazy {
		t.Errorf("Flags = %+v, want global and lazy", native.Flags)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"/abs/path", "/abs/path"},
		{"rel/path", "rel/path"},
		{"~/dag/a.dag", filepath.Join(home, "dag/a.dag")},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultConfigPath(t *testing.T) {
	p := DefaultConfigPath()
	if p != "" && filepath.Base(p) != "mainboard.yaml" {
		t.Errorf("DefaultConfigPath() = %q, want mainboard.yaml", p)
	}
}
