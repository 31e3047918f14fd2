package plant

import "github.com/san-kum/pidloop/internal/dynamo"

const (
	DefaultThermalTau     = 60.0
	DefaultThermalGain    = 150.0
	DefaultThermalAmbient = 20.0
)

// Thermal is a first-order heater: tau*dT/dt = gain*u - (T - ambient).
// With u in [0,1] the steady-state temperature spans ambient to
// ambient+gain.
type Thermal struct {
	Tau     float64 // time constant, s
	Gain    float64 // steady-state rise per unit input
	Ambient float64
}

func NewThermal() *Thermal {
	return &Thermal{
		Tau:     DefaultThermalTau,
		Gain:    DefaultThermalGain,
		Ambient: DefaultThermalAmbient,
	}
}

func (p *Thermal) StateDim() int { return 1 }

func (p *Thermal) Initial() dynamo.State { return dynamo.State{p.Ambient} }

func (p *Thermal) Measure(x dynamo.State) float64 { return x[0] }

func (p *Thermal) Derive(x dynamo.State, u float64, t float64) dynamo.State {
	return dynamo.State{(p.Gain*u - (x[0] - p.Ambient)) / p.Tau}
}

func (p *Thermal) GetParams() map[string]float64 {
	return map[string]float64{
		"tau":     p.Tau,
		"gain":    p.Gain,
		"ambient": p.Ambient,
	}
}

func (p *Thermal) SetParam(name string, value float64) error {
	switch name {
	case "tau":
		if value <= 0 {
			return paramError(name, value)
		}
		p.Tau = value
	case "gain":
		p.Gain = value
	case "ambient":
		p.Ambient = value
	default:
		return unknownParam(name)
	}
	return nil
}
