package plant

import "github.com/san-kum/pidloop/internal/dynamo"

const (
	DefaultServoMass      = 1.0
	DefaultServoStiffness = 2.0
	DefaultServoDamping   = 1.5
	DefaultServoGain      = 10.0
)

// Servo is a mass on a spring and damper pushed by a force gain*u. State
// is [position, velocity]; the sensor reports position.
type Servo struct {
	Mass      float64
	Stiffness float64
	Damping   float64
	Gain      float64
}

func NewServo() *Servo {
	return &Servo{
		Mass:      DefaultServoMass,
		Stiffness: DefaultServoStiffness,
		Damping:   DefaultServoDamping,
		Gain:      DefaultServoGain,
	}
}

func (s *Servo) StateDim() int { return 2 }

func (s *Servo) Initial() dynamo.State { return dynamo.State{0, 0} }

func (s *Servo) Measure(x dynamo.State) float64 { return x[0] }

func (s *Servo) Derive(x dynamo.State, u float64, t float64) dynamo.State {
	pos, vel := x[0], x[1]
	force := s.Gain*u - s.Damping*vel - s.Stiffness*pos
	return dynamo.State{vel, force / s.Mass}
}

func (s *Servo) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":      s.Mass,
		"stiffness": s.Stiffness,
		"damping":   s.Damping,
		"gain":      s.Gain,
	}
}

func (s *Servo) SetParam(name string, value float64) error {
	switch name {
	case "mass":
		if value <= 0 {
			return paramError(name, value)
		}
		s.Mass = value
	case "stiffness":
		if value < 0 {
			return paramError(name, value)
		}
		s.Stiffness = value
	case "damping":
		if value < 0 {
			return paramError(name, value)
		}
		s.Damping = value
	case "gain":
		s.Gain = value
	default:
		return unknownParam(name)
	}
	return nil
}
