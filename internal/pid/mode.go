package pid

import (
	"fmt"
	"strings"
)

// Mode selects who drives the output: the operator or the control law.
type Mode int

const (
	Manual Mode = iota
	Automatic
)

func (m Mode) String() string {
	if m == Manual {
		return "manual"
	}
	return "auto"
}

// ParseMode accepts "manual"/"man" and "auto"/"automatic", case-insensitive.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manual", "man":
		return Manual, nil
	case "auto", "automatic":
		return Automatic, nil
	}
	return Manual, fmt.Errorf("pid: unknown mode %q", s)
}

// ManualController is a controller held in manual mode. The operator drives
// the output; there is no Compute.
type ManualController struct {
	*core
}

// NewManual returns a controller in manual mode with default limits and no
// bias.
func NewManual(kc, tauI, tauD, interval float64) (*ManualController, error) {
	c, err := newCore(kc, tauI, tauD, interval)
	if err != nil {
		return nil, err
	}
	return &ManualController{core: c}, nil
}

// SetOutput records the real-world output the operator applies.
func (m *ManualController) SetOutput(v float64) { m.setOutput(v) }

// Engage hands the output over to the control law. The working variables
// are reset from the current process value and the operator's output (or
// the bias, when feed-forward is enabled) so the output does not jump.
// m must not be used afterwards.
func (m *ManualController) Engage() *AutomaticController {
	c := m.core
	m.core = nil
	c.setMode(Automatic)
	return &AutomaticController{core: c}
}

// AutomaticController is a controller whose output is computed by the
// control law.
type AutomaticController struct {
	*core
}

// Compute runs one sample of the control law and returns the output in
// real-world units. Call it once per interval.
func (a *AutomaticController) Compute() float64 { return a.compute() }

// Release hands the output back to the operator, holding the last computed
// value. a must not be used afterwards.
func (a *AutomaticController) Release() *ManualController {
	c := a.core
	a.core = nil
	c.setMode(Manual)
	return &ManualController{core: c}
}
