package mainboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/insajin/autopus-mainboard/internal/metrics"
	"github.com/insajin/autopus-mainboard/pkg/classloader"
	"github.com/insajin/autopus-mainboard/pkg/component"
)

// runningComponent는 초기화가 끝난 컴포넌트 하나입니다.
type runningComponent struct {
	name      string
	className string
	library   string
	timer     bool
	inst      *classloader.Instance[component.Component]
}

// ComponentInfo는 실행 중인 컴포넌트의 진단 정보입니다.
type ComponentInfo struct {
	Name      string `json:"name"`
	ClassName string `json:"class_name"`
	Library   string `json:"library"`
	Timer     bool   `json:"timer"`
}

// Controller는 DAG에 선언된 컴포넌트의 수명을 관리합니다.
type Controller struct {
	arg     *Argument
	manager *classloader.Manager
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	components []*runningComponent
	cancel     context.CancelFunc
	timers     sync.WaitGroup
}

// ControllerOption은 Controller 설정 옵션입니다.
type ControllerOption func(*Controller)

// WithManager는 클래스 로더 매니저를 설정합니다.
func WithManager(m *classloader.Manager) ControllerOption {
	return func(c *Controller) {
		c.manager = m
	}
}

// WithLogger는 로거를 설정합니다.
func WithLogger(logger zerolog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithMetrics는 메트릭 수집기를 설정합니다.
func WithMetrics(m *metrics.Metrics) ControllerOption {
	return func(c *Controller) {
		c.metrics = m
	}
}

// NewController는 새 Controller를 생성합니다.
func NewController(arg *Argument, opts ...ControllerOption) *Controller {
	c := &Controller{
		arg:     arg,
		logger:  log.With().Str("component", "controller").Logger(),
		metrics: metrics.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.manager == nil {
		c.manager = classloader.NewManager(classloader.WithMetrics(c.metrics))
	}
	return c
}

// Init은 모든 DAG 파일을 읽고 컴포넌트를 생성, 초기화합니다.
// 타이머 컴포넌트는 ctx가 취소되거나 Clear가 호출될 때까지 주기적으로 실행됩니다.
// 실패하면 이미 시작된 컴포넌트는 그대로 두므로 호출자가 Clear를 호출해야 합니다.
func (c *Controller) Init(ctx context.Context) error {
	if len(c.arg.DagConfList) == 0 {
		return ErrNoDagConf
	}

	dags, err := LoadDagFiles(ctx, c.arg.DagConfList)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	for _, dag := range dags {
		for _, module := range dag.ModuleConfig {
			if err := c.loadModule(runCtx, module); err != nil {
				c.logger.Error().Err(err).Str("dag", dag.Path).Msg("모듈 시작 실패")
				return err
			}
		}
	}

	c.logger.Info().Int("components", len(c.Components())).Msg("모든 컴포넌트 시작 완료")
	return nil
}

func (c *Controller) loadModule(ctx context.Context, module ModuleConfig) error {
	lib := module.ModuleLibrary
	if !c.manager.LoadLibrary(lib) {
		return fmt.Errorf("%w: cannot load library %s", ErrComponentInit, lib)
	}

	for _, cc := range module.Components {
		inst, err := c.create(cc.ClassName, lib, cc.Config)
		if err != nil {
			return err
		}
		c.add(cc.Config.Name, cc.ClassName, lib, inst, false)
	}

	for _, tc := range module.TimerComponents {
		inst, err := c.create(tc.ClassName, lib, tc.Config.Config)
		if err != nil {
			return err
		}
		timer, ok := inst.Get().(component.TimerComponent)
		if !ok {
			c.shutdown(inst)
			c.metrics.ComponentFailures.Add(1)
			return fmt.Errorf("%w: %s is not a timer component", ErrComponentInit, tc.ClassName)
		}
		rc := c.add(tc.Config.Name, tc.ClassName, lib, inst, true)
		c.startTimer(ctx, rc, timer, tc.Config.Period())
	}
	return nil
}

// create는 컴포넌트를 만들고 설정을 적용한 뒤 Initialize를 호출합니다.
func (c *Controller) create(className, lib string, cfg component.Config) (*classloader.Instance[component.Component], error) {
	inst, ok := classloader.ManagerCreateClassObjFrom[component.Component](c.manager, className, lib)
	if !ok {
		c.metrics.ComponentFailures.Add(1)
		return nil, fmt.Errorf("%w: cannot create %s from %s", ErrComponentInit, className, lib)
	}

	comp := inst.Get()
	if cfgable, ok := comp.(component.Configurable); ok {
		if err := applyParams(cfgable, cfg.Params); err != nil {
			inst.Release()
			c.metrics.ComponentFailures.Add(1)
			return nil, fmt.Errorf("%w: %s params: %v", ErrComponentInit, className, err)
		}
	}

	if err := comp.Initialize(cfg); err != nil {
		inst.Release()
		c.metrics.ComponentFailures.Add(1)
		return nil, fmt.Errorf("%w: %s: %v", ErrComponentInit, className, err)
	}
	return inst, nil
}

// applyParams는 params를 컴포넌트의 설정 구조체로 디코딩합니다.
func applyParams(comp component.Configurable, params map[string]any) error {
	target := comp.ConfigType()
	if target == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(params); err != nil {
		return err
	}
	return comp.SetConfig(target)
}

func (c *Controller) add(name, className, lib string, inst *classloader.Instance[component.Component], timer bool) *runningComponent {
	if name == "" {
		name = className
	}
	rc := &runningComponent{name: name, className: className, library: lib, timer: timer, inst: inst}

	c.mu.Lock()
	c.components = append(c.components, rc)
	c.mu.Unlock()

	c.metrics.ComponentsStarted.Add(1)
	c.logger.Info().Str("name", name).Str("class", className).Str("library", lib).Msg("컴포넌트 시작")
	return rc
}

func (c *Controller) startTimer(ctx context.Context, rc *runningComponent, timer component.TimerComponent, period time.Duration) {
	c.timers.Add(1)
	go func() {
		defer c.timers.Done()

		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.metrics.TimerTicks.Add(1)
				if !timer.Proc() {
					c.metrics.TimerTickFailures.Add(1)
					c.logger.Debug().Str("name", rc.name).Msg("타이머 Proc 실패")
				}
			}
		}
	}()
}

func (c *Controller) shutdown(inst *classloader.Instance[component.Component]) {
	inst.Get().Shutdown()
	inst.Release()
}

// Clear는 타이머를 멈추고 컴포넌트를 역순으로 종료한 뒤 모든 라이브러리를 언로드합니다.
func (c *Controller) Clear() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	components := c.components
	c.components = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.timers.Wait()

	for i := len(components) - 1; i >= 0; i-- {
		rc := components[i]
		c.shutdown(rc.inst)
		c.logger.Info().Str("name", rc.name).Str("class", rc.className).Msg("컴포넌트 종료")
	}

	c.manager.UnloadAllLibrary()
}

// Components는 실행 중인 컴포넌트 이름을 시작 순서대로 반환합니다.
func (c *Controller) Components() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.components))
	for _, rc := range c.components {
		names = append(names, rc.name)
	}
	return names
}

// ComponentInfos는 실행 중인 컴포넌트 정보를 시작 순서대로 반환합니다.
func (c *Controller) ComponentInfos() []ComponentInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	infos := make([]ComponentInfo, 0, len(c.components))
	for _, rc := range c.components {
		infos = append(infos, ComponentInfo{
			Name:      rc.name,
			ClassName: rc.className,
			Library:   rc.library,
			Timer:     rc.timer,
		})
	}
	return infos
}

// Argument는 컨트롤러의 실행 인자를 반환합니다.
func (c *Controller) Argument() *Argument {
	return c.arg
}
