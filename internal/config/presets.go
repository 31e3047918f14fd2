package config

import "sort"

func f(v float64) *float64 { return &v }

var Presets = map[string]map[string]*Config{
	"thermal": {
		"oven": {
			Name: "oven", Plant: "thermal", Integrator: "rk4", Dt: 0.05, Duration: 600, SettleBand: 1,
			Controller: ControllerConfig{
				Kc: 4, TauI: 60, Interval: 1, InputLimits: [2]float64{0, 200}, OutputLimits: [2]float64{0, 1},
				SetPoint: 80, Mode: "auto",
			},
		},
		"bumpless": {
			Name: "bumpless", Plant: "thermal", Integrator: "rk4", Dt: 0.05, Duration: 600, SettleBand: 1,
			Controller: ControllerConfig{
				Kc: 4, TauI: 60, Interval: 1, InputLimits: [2]float64{0, 200}, OutputLimits: [2]float64{0, 1},
				SetPoint: 80, Mode: "manual", ManualOutput: 0.4,
			},
			Events: []EventConfig{
				{At: 300, Kind: "bias", Args: []float64{0.4}},
				{At: 300, Kind: "mode", Args: []float64{1}},
				{At: 450, Kind: "setpoint", Args: []float64{100}},
			},
		},
		"retune": {
			Name: "retune", Plant: "thermal", Integrator: "rk4", Dt: 0.05, Duration: 900, SettleBand: 1,
			Controller: ControllerConfig{
				Kc: 1, TauI: 120, Interval: 1, InputLimits: [2]float64{0, 200}, OutputLimits: [2]float64{0, 1},
				SetPoint: 80, Mode: "auto",
			},
			Events: []EventConfig{
				{At: 300, Kind: "tunings", Args: []float64{4, 60, 0}},
				{At: 450, Kind: "interval", Args: []float64{2}},
				{At: 600, Kind: "setpoint", Args: []float64{60}},
			},
		},
		"step": {
			Name: "step", Plant: "thermal", Integrator: "rk4", Dt: 0.05, Duration: 600, OpenLoop: f(0.5),
			Controller: ControllerConfig{
				Kc: 1, Interval: 1, InputLimits: [2]float64{0, 200}, OutputLimits: [2]float64{0, 1}, Mode: "manual",
			},
		},
	},
	"motor": {
		"speed": {
			Name: "speed", Plant: "motor", Integrator: "rk4", Dt: 0.005, Duration: 20, SettleBand: 2,
			Controller: ControllerConfig{
				Kc: 2, TauI: 3, TauD: 0.05, Interval: 0.05, InputLimits: [2]float64{0, 400}, OutputLimits: [2]float64{0, 24},
				SetPoint: 200, Mode: "auto",
			},
		},
		"load": {
			Name: "load", Plant: "motor", Integrator: "rk4", Dt: 0.005, Duration: 30, SettleBand: 2,
			PlantParams: map[string]float64{"load": 0.1},
			Controller: ControllerConfig{
				Kc: 2, TauI: 3, TauD: 0.05, Interval: 0.05, InputLimits: [2]float64{0, 400}, OutputLimits: [2]float64{0, 24},
				SetPoint: 200, Mode: "auto",
			},
			Events: []EventConfig{
				{At: 15, Kind: "output_limits", Args: []float64{0, 12}},
			},
		},
	},
	"servo": {
		"position": {
			Name: "position", Plant: "servo", Integrator: "rk4", Dt: 0.002, Duration: 20, SettleBand: 0.05,
			Controller: ControllerConfig{
				Kc: 3, TauI: 4, TauD: 0.5, Interval: 0.02, InputLimits: [2]float64{-5, 5}, OutputLimits: [2]float64{-1, 1},
				SetPoint: 2, Mode: "auto",
			},
			Events: []EventConfig{
				{At: 10, Kind: "setpoint", Args: []float64{-1}},
			},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(plant, name string) *Config {
	presets, ok := Presets[plant]
	if !ok {
		return nil
	}
	cfg, ok := presets[name]
	if !ok {
		return nil
	}
	c := *cfg
	c.Events = append([]EventConfig(nil), cfg.Events...)
	return &c
}

func ListPresets(plant string) []string {
	presets, ok := Presets[plant]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
