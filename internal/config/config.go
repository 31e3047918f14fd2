package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/san-kum/pidloop/internal/control"
	"github.com/san-kum/pidloop/internal/pid"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPlant      = "thermal"
	DefaultIntegrator = "rk4"
	DefaultDt         = 0.05
	DefaultDuration   = 600.0
	DefaultSettleBand = 1.0
	DefaultKc         = 4.0
	DefaultTauI       = 60.0
	DefaultTauD       = 0.0
	DefaultInterval   = 1.0
	DefaultSetPoint   = 80.0
)

var ErrInvalid = errors.New("config: invalid")

// Config is a closed-loop scenario: a plant, a controller and a schedule
// of configuration changes.
type Config struct {
	Name        string             `yaml:"name"`
	Plant       string             `yaml:"plant"`
	PlantParams map[string]float64 `yaml:"plant_params,omitempty"`
	Integrator  string             `yaml:"integrator"`
	Dt          float64            `yaml:"dt"`
	Duration    float64            `yaml:"duration"`
	InitState   []float64          `yaml:"init_state,omitempty"`
	SettleBand  float64            `yaml:"settle_band"`
	// OpenLoop replaces the controller with a fixed actuator command.
	OpenLoop   *float64         `yaml:"open_loop,omitempty"`
	Controller ControllerConfig `yaml:"controller"`
	Events     []EventConfig    `yaml:"events,omitempty"`
}

type ControllerConfig struct {
	Kc           float64    `yaml:"kc" json:"kc"`
	TauI         float64    `yaml:"tau_i" json:"tau_i"`
	TauD         float64    `yaml:"tau_d" json:"tau_d"`
	Interval     float64    `yaml:"interval" json:"interval"`
	InputLimits  [2]float64 `yaml:"input_limits" json:"input_limits"`
	OutputLimits [2]float64 `yaml:"output_limits" json:"output_limits"`
	SetPoint     float64    `yaml:"setpoint" json:"setpoint"`
	Bias         *float64   `yaml:"bias,omitempty" json:"bias,omitempty"`
	Mode         string     `yaml:"mode" json:"mode"`
	ManualOutput float64    `yaml:"manual_output" json:"manual_output"`
}

type EventConfig struct {
	At   float64   `yaml:"at"`
	Kind string    `yaml:"kind"`
	Args []float64 `yaml:"args,flow"`
}

func DefaultConfig() *Config {
	return &Config{
		Name:       "default",
		Plant:      DefaultPlant,
		Integrator: DefaultIntegrator,
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		SettleBand: DefaultSettleBand,
		Controller: ControllerConfig{
			Kc:           DefaultKc,
			TauI:         DefaultTauI,
			TauD:         DefaultTauD,
			Interval:     DefaultInterval,
			InputLimits:  [2]float64{0, 200},
			OutputLimits: [2]float64{0, 1},
			SetPoint:     DefaultSetPoint,
			Mode:         "auto",
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every problem in the scenario at once. Controller
// settings are checked by the controller itself.
func (c *Config) Validate() error {
	var errs error
	add := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Plant == "" {
		add("plant is required")
	}
	if !(c.Dt > 0) {
		add("dt must be positive, got %g", c.Dt)
	}
	if !(c.Duration > 0) {
		add("duration must be positive, got %g", c.Duration)
	}
	if c.Dt > 0 && c.Duration > 0 && c.Duration < c.Dt {
		add("duration %g is shorter than dt %g", c.Duration, c.Dt)
	}
	if c.SettleBand < 0 {
		add("settle_band must not be negative, got %g", c.SettleBand)
	}
	if c.Dt > 0 && c.Controller.Interval > 0 && c.Controller.Interval < c.Dt {
		add("controller interval %g is shorter than dt %g", c.Controller.Interval, c.Dt)
	}

	ctl := c.Controller
	if _, err := pid.New(ctl.Kc, ctl.TauI, ctl.TauD, ctl.Interval); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := pid.ParseMode(ctl.Mode); err != nil {
		errs = multierr.Append(errs, err)
	}
	if !finiteRange(ctl.InputLimits) {
		errs = multierr.Append(errs, fmt.Errorf("%w: input %v", pid.ErrInvalidLimits, ctl.InputLimits))
	}
	if !finiteRange(ctl.OutputLimits) {
		errs = multierr.Append(errs, fmt.Errorf("%w: output %v", pid.ErrInvalidLimits, ctl.OutputLimits))
	}

	for i, e := range c.ControlEvents() {
		if err := e.Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("event %d: %w", i, err))
		}
	}

	return errs
}

func finiteRange(r [2]float64) bool {
	return r[0] < r[1] && !math.IsInf(r[0], 0) && !math.IsInf(r[1], 0)
}

// ControlEvents converts the schedule for the control loop.
func (c *Config) ControlEvents() []control.Event {
	events := make([]control.Event, 0, len(c.Events))
	for _, e := range c.Events {
		events = append(events, control.Event{At: e.At, Kind: control.EventKind(e.Kind), Args: e.Args})
	}
	return events
}

// NewController builds the configured controller in manual mode, holding
// the manual output. The configured mode is applied by the control loop on
// its first sample; see InitialMode.
func (c *Config) NewController() (*pid.Controller, error) {
	ctl := c.Controller
	p, err := pid.New(ctl.Kc, ctl.TauI, ctl.TauD, ctl.Interval)
	if err != nil {
		return nil, err
	}
	if err := p.SetInputLimits(ctl.InputLimits[0], ctl.InputLimits[1]); err != nil {
		return nil, err
	}
	if err := p.SetOutputLimits(ctl.OutputLimits[0], ctl.OutputLimits[1]); err != nil {
		return nil, err
	}
	p.SetSetPoint(ctl.SetPoint)
	if ctl.Bias != nil {
		p.SetBias(*ctl.Bias)
	}
	p.SetOutput(ctl.ManualOutput)
	return p, nil
}

// InitialMode returns the mode the controller starts the run in.
func (c *Config) InitialMode() (pid.Mode, error) {
	return pid.ParseMode(c.Controller.Mode)
}
