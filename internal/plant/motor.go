package plant

import "github.com/san-kum/pidloop/internal/dynamo"

const (
	DefaultMotorResistance = 1.0
	DefaultMotorInductance = 0.5
	DefaultMotorKt         = 0.05
	DefaultMotorKe         = 0.05
	DefaultMotorInertia    = 0.01
	DefaultMotorFriction   = 0.001
)

// Motor is a DC motor driven by armature voltage u. State is
// [current, speed]; the sensor reports speed in rad/s.
type Motor struct {
	Resistance float64
	Inductance float64
	Kt         float64 // torque constant
	Ke         float64 // back-EMF constant
	Inertia    float64
	Friction   float64
	Load       float64 // constant load torque
}

func NewMotor() *Motor {
	return &Motor{
		Resistance: DefaultMotorResistance,
		Inductance: DefaultMotorInductance,
		Kt:         DefaultMotorKt,
		Ke:         DefaultMotorKe,
		Inertia:    DefaultMotorInertia,
		Friction:   DefaultMotorFriction,
	}
}

func (m *Motor) StateDim() int { return 2 }

func (m *Motor) Initial() dynamo.State { return dynamo.State{0, 0} }

func (m *Motor) Measure(x dynamo.State) float64 { return x[1] }

func (m *Motor) Derive(x dynamo.State, u float64, t float64) dynamo.State {
	i, w := x[0], x[1]
	return dynamo.State{
		(u - m.Resistance*i - m.Ke*w) / m.Inductance,
		(m.Kt*i - m.Friction*w - m.Load) / m.Inertia,
	}
}

func (m *Motor) GetParams() map[string]float64 {
	return map[string]float64{
		"resistance": m.Resistance,
		"inductance": m.Inductance,
		"kt":         m.Kt,
		"ke":         m.Ke,
		"inertia":    m.Inertia,
		"friction":   m.Friction,
		"load":       m.Load,
	}
}

func (m *Motor) SetParam(name string, value float64) error {
	switch name {
	case "resistance", "inductance", "inertia":
		if value <= 0 {
			return paramError(name, value)
		}
	case "friction":
		if value < 0 {
			return paramError(name, value)
		}
	}

	switch name {
	case "resistance":
		m.Resistance = value
	case "inductance":
		m.Inductance = value
	case "kt":
		m.Kt = value
	case "ke":
		m.Ke = value
	case "inertia":
		m.Inertia = value
	case "friction":
		m.Friction = value
	case "load":
		m.Load = value
	default:
		return unknownParam(name)
	}
	return nil
}
