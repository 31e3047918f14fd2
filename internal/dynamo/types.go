package dynamo

import "math"

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Plant is a simulated process driven by a single actuator input u.
type Plant interface {
	Derive(x State, u float64, t float64) State
	StateDim() int
	// Initial returns the resting state.
	Initial() State
	// Measure returns the process variable a sensor would report.
	Measure(x State) float64
}

type Integrator interface {
	Step(p Plant, x State, u float64, t float64, dt float64) State
}

// Controller turns a measured process variable into an actuator command.
// It is called once per simulation step; sampled controllers hold their
// output between samples.
type Controller interface {
	Compute(pv float64, t float64) float64
}

// Tracker is implemented by controllers that follow a setpoint.
type Tracker interface {
	SetPoint() float64
}

// Automatic is implemented by controllers with a manual/automatic mode.
type Automatic interface {
	InAuto() bool
}

// Sample is one step of a closed-loop run.
type Sample struct {
	T        float64
	X        State
	PV       float64
	SetPoint float64
	U        float64
	Auto     bool
}

// Error returns SetPoint - PV.
func (s Sample) Error() float64 { return s.SetPoint - s.PV }

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

type Observer interface {
	OnSample(s Sample)
}

type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

type Config struct {
	Dt            float64
	Duration      float64
	ValidateState bool
}

func DefaultConfig() Config {
	return Config{
		Dt:            0.01,
		Duration:      60.0,
		ValidateState: true,
	}
}

type Result struct {
	Times     []float64
	States    []State
	PV        []float64
	SetPoints []float64
	Outputs   []float64
	Auto      []bool
	Metrics   map[string]float64
	Steps     int
}
