package mainboard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/insajin/autopus-mainboard/pkg/component"
)

// mainboard 관련 에러 정의
var (
	// ErrNoDagConf는 DAG 설정 파일이 하나도 주어지지 않았을 때 반환됩니다.
	ErrNoDagConf = errors.New("no dag conf given")

	// ErrInvalidDag는 DAG 파일을 읽거나 파싱하거나 검증하지 못했을 때 반환됩니다.
	ErrInvalidDag = errors.New("invalid dag conf")

	// ErrComponentInit는 컴포넌트 생성이나 초기화에 실패했을 때 반환됩니다.
	ErrComponentInit = errors.New("component init failed")
)

// DagConfig는 DAG 파일 하나의 내용입니다.
type DagConfig struct {
	Path         string         `yaml:"-"`
	ModuleConfig []ModuleConfig `yaml:"module_config"`
}

// ModuleConfig는 라이브러리 하나와 그 라이브러리에서 만들 컴포넌트 목록입니다.
type ModuleConfig struct {
	ModuleLibrary   string                 `yaml:"module_library"`
	Components      []ComponentConfig      `yaml:"components"`
	TimerComponents []TimerComponentConfig `yaml:"timer_components"`
}

// ComponentConfig는 일반 컴포넌트 설정입니다.
type ComponentConfig struct {
	ClassName string           `yaml:"class_name"`
	Config    component.Config `yaml:"config"`
}

// TimerComponentConfig는 타이머 컴포넌트 설정입니다.
type TimerComponentConfig struct {
	ClassName string                `yaml:"class_name"`
	Config    component.TimerConfig `yaml:"config"`
}

// ParseDag는 YAML DAG 설정을 파싱하고 검증합니다.
func ParseDag(data []byte) (*DagConfig, error) {
	var dag DagConfig
	if err := yaml.Unmarshal(data, &dag); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDag, err)
	}
	if err := dag.Validate(); err != nil {
		return nil, err
	}
	return &dag, nil
}

// LoadDagFile은 DAG 파일을 읽습니다.
// 상대 경로의 module_library는 DAG 파일이 있는 디렉토리를 기준으로 해석합니다.
func LoadDagFile(path string) (*DagConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDag, path, err)
	}
	dag, err := ParseDag(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dag.Path = path
	dir := filepath.Dir(path)
	for i := range dag.ModuleConfig {
		lib := dag.ModuleConfig[i].ModuleLibrary
		if !filepath.IsAbs(lib) {
			dag.ModuleConfig[i].ModuleLibrary = filepath.Join(dir, lib)
		}
	}
	return dag, nil
}

// LoadDagFiles는 여러 DAG 파일을 병렬로 읽고 입력 순서대로 반환합니다.
func LoadDagFiles(ctx context.Context, paths []string) ([]*DagConfig, error) {
	dags := make([]*DagConfig, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			dag, err := LoadDagFile(p)
			if err != nil {
				return err
			}
			dags[i] = dag
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dags, nil
}

// Validate는 DAG 설정을 검증합니다.
func (d *DagConfig) Validate() error {
	if len(d.ModuleConfig) == 0 {
		return fmt.Errorf("%w: no module_config", ErrInvalidDag)
	}
	for i, m := range d.ModuleConfig {
		if m.ModuleLibrary == "" {
			return fmt.Errorf("%w: module_config[%d]: empty module_library", ErrInvalidDag, i)
		}
		for j, c := range m.Components {
			if c.ClassName == "" {
				return fmt.Errorf("%w: module_config[%d].components[%d]: empty class_name", ErrInvalidDag, i, j)
			}
		}
		for j, c := range m.TimerComponents {
			if c.ClassName == "" {
				return fmt.Errorf("%w: module_config[%d].timer_components[%d]: empty class_name", ErrInvalidDag, i, j)
			}
			if c.Config.Interval <= 0 {
				return fmt.Errorf("%w: module_config[%d].timer_components[%d]: interval must be positive", ErrInvalidDag, i, j)
			}
		}
	}
	return nil
}
