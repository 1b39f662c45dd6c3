// Package component defines the capability types the mainboard instantiates
// from plugin libraries.
//
// A plugin registers its components with the registry under the Component
// capability:
//
//	registry.Provide[component.Component](r, "Planner", func() component.Component {
//		return &Planner{}
//	})
package component

import "time"

// Config is the per-instance configuration taken from a DAG file.
type Config struct {
	Name           string         `yaml:"name"`
	ConfigFilePath string         `yaml:"config_file_path"`
	FlagFilePath   string         `yaml:"flag_file_path"`
	Params         map[string]any `yaml:"params"`
}

// TimerConfig configures a component driven by a fixed interval.
type TimerConfig struct {
	Config `yaml:",inline"`
	// Interval in milliseconds.
	Interval int `yaml:"interval"`
}

// Period returns the timer interval as a duration.
func (c TimerConfig) Period() time.Duration {
	return time.Duration(c.Interval) * time.Millisecond
}

// Component is a unit of computation loaded from a plugin library.
type Component interface {
	// Initialize is called once after construction.
	Initialize(cfg Config) error
	// Shutdown is called once before the instance is released.
	Shutdown()
}

// TimerComponent is a Component whose Proc runs on every timer tick.
type TimerComponent interface {
	Component
	// Proc returns false to signal a failed tick; the timer keeps running.
	Proc() bool
}

// Configurable components receive Params decoded into the value returned by
// ConfigType before Initialize is called.
type Configurable interface {
	// ConfigType returns a pointer to an empty config struct.
	ConfigType() any
	// SetConfig receives the decoded struct.
	SetConfig(cfg any) error
}
