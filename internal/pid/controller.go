package pid

import (
	"fmt"
	"math"
)

// Default limits for both axes. Set limits that fit the application.
const (
	DefaultMin = 0.0
	DefaultMax = 3.3
)

// Tunings are the raw tuning parameters as supplied by the caller.
type Tunings struct {
	Kc   float64 // controller gain
	TauI float64 // integral (reset) time in seconds, 0 disables integral action
	TauD float64 // derivative time in seconds
}

func (t Tunings) valid() bool {
	if math.IsNaN(t.Kc) || math.IsNaN(t.TauI) || math.IsNaN(t.TauD) {
		return false
	}
	return t.Kc != 0 && t.TauI >= 0 && t.TauD >= 0
}

// Limits map a real-world range onto [0,1].
type Limits struct {
	Min float64
	Max float64
}

// Span returns Max - Min.
func (l Limits) Span() float64 { return l.Max - l.Min }

func (l Limits) scale(v float64) float64   { return (v - l.Min) / l.Span() }
func (l Limits) unscale(s float64) float64 { return clamp(s*l.Span()+l.Min, l.Min, l.Max) }

// validLimits requires a finite, non-empty range.
func validLimits(min, max float64) bool {
	return min < max && !math.IsInf(min, 0) && !math.IsInf(max, 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// core holds the controller state shared by Controller, ManualController
// and AutomaticController.
type core struct {
	tunings Tunings

	// operational parameters derived from tunings and interval
	kc   float64
	tauR float64
	tauD float64

	in  Limits
	out Limits

	interval float64

	setPoint     float64
	processValue float64
	prevScaledPV float64

	// scaled [0,1]
	output     float64
	prevOutput float64

	accError float64
	bias     float64

	// last real-world output, from Compute or the operator
	realOutput float64

	feedForward bool
	inAuto      bool
}

func newCore(kc, tauI, tauD, interval float64) (*core, error) {
	if !(interval > 0) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidInterval, interval)
	}
	c := &core{
		in:       Limits{Min: DefaultMin, Max: DefaultMax},
		out:      Limits{Min: DefaultMin, Max: DefaultMax},
		interval: interval,
	}
	if err := c.SetTunings(kc, tauI, tauD); err != nil {
		return nil, err
	}
	return c, nil
}

// SetInputLimits sets the real-world values corresponding to 0% and 100%
// of the process variable span.
func (c *core) SetInputLimits(min, max float64) error {
	if !validLimits(min, max) {
		return fmt.Errorf("%w: input [%g, %g]", ErrInvalidLimits, min, max)
	}

	ratio := (max - min) / c.in.Span()
	c.prevScaledPV = clamp(c.prevScaledPV*ratio, 0, 1)
	c.accError *= ratio

	c.in = Limits{Min: min, Max: max}
	return nil
}

// SetOutputLimits sets the real-world values corresponding to 0% and 100%
// of the controller output span.
func (c *core) SetOutputLimits(min, max float64) error {
	if !validLimits(min, max) {
		return fmt.Errorf("%w: output [%g, %g]", ErrInvalidLimits, min, max)
	}

	c.prevOutput = clamp(c.prevOutput*(max-min)/c.out.Span(), 0, 1)

	c.out = Limits{Min: min, Max: max}
	return nil
}

// SetTunings changes the tuning parameters. While automatic, the integral
// is rescaled so the integral contribution to the output does not jump.
func (c *core) SetTunings(kc, tauI, tauD float64) error {
	t := Tunings{Kc: kc, TauI: tauI, TauD: tauD}
	if !t.valid() {
		return fmt.Errorf("%w: Kc=%g tauI=%g tauD=%g", ErrInvalidTuning, kc, tauI, tauD)
	}

	tauR := 0.0
	if tauI != 0 {
		tauR = (1 / tauI) * c.interval
	}

	if c.inAuto {
		if tauR == 0 {
			c.accError = 0
		} else {
			c.accError *= (c.kc * c.tauR) / (kc * tauR)
		}
	}

	c.tunings = t
	c.kc = kc
	c.tauR = tauR
	c.tauD = tauD / c.interval
	return nil
}

// SetInterval changes the sample interval in seconds. The time-based
// parameters and the integral are rescaled so the real-time behaviour
// carries over.
func (c *core) SetInterval(interval float64) error {
	if !(interval > 0) {
		return fmt.Errorf("%w: got %g", ErrInvalidInterval, interval)
	}

	ratio := interval / c.interval
	c.tauR *= ratio
	c.accError /= ratio
	c.tauD *= ratio
	c.interval = interval
	return nil
}

// SetSetPoint sets the target as a real-world value.
func (c *core) SetSetPoint(sp float64) { c.setPoint = sp }

// SetPoint returns the target as a real-world value.
func (c *core) SetPoint() float64 { return c.setPoint }

// SetProcessValue records the latest measurement as a real-world value.
func (c *core) SetProcessValue(pv float64) { c.processValue = pv }

// SetBias sets a real-world feed-forward term added to the output.
// Feed-forward stays enabled for the lifetime of the controller.
func (c *core) SetBias(bias float64) {
	c.bias = bias
	c.feedForward = true
}

// Tunings returns the raw tuning parameters.
func (c *core) Tunings() Tunings { return c.tunings }

// InputLimits returns the process variable limits.
func (c *core) InputLimits() Limits { return c.in }

// OutputLimits returns the controller output limits.
func (c *core) OutputLimits() Limits { return c.out }

// Interval returns the sample interval in seconds.
func (c *core) Interval() float64 { return c.interval }

// Output returns the last real-world output, computed or manual.
func (c *core) Output() float64 { return c.realOutput }

// Mode reports whether the controller is in manual or automatic mode.
func (c *core) Mode() Mode {
	if c.inAuto {
		return Automatic
	}
	return Manual
}

// reinitializes the working variables from the current process value and
// output so the next compute starts where the process is.
func (c *core) reset() {
	start := c.realOutput
	if c.feedForward {
		start = c.bias
	}

	c.prevOutput = clamp(c.out.scale(start), 0, 1)
	c.prevScaledPV = clamp(c.in.scale(c.processValue), 0, 1)
	c.accError = 0
}

func (c *core) setMode(m Mode) {
	auto := m != Manual
	if auto && !c.inAuto {
		c.reset()
	}
	c.inAuto = auto
}

func (c *core) setOutput(v float64) { c.realOutput = v }

func (c *core) compute() float64 {
	pv := clamp(c.in.scale(c.processValue), 0, 1)
	sp := clamp(c.in.scale(c.setPoint), 0, 1)

	err := sp - pv

	// Integrate unless the output is pegged and the error pushes it further.
	if !(c.prevOutput >= 1 && err > 0) && !(c.prevOutput <= 0 && err < 0) {
		c.accError += err
	}

	// Derivative on measurement, no kick on setpoint changes.
	dMeas := (pv - c.prevScaledPV) / c.interval

	bias := 0.0
	if c.feedForward {
		bias = c.out.scale(c.bias)
	}

	c.output = clamp(bias+c.kc*(err+c.tauR*c.accError-c.tauD*dMeas), 0, 1)

	c.prevOutput = c.output
	c.prevScaledPV = pv

	c.realOutput = c.out.unscale(c.output)
	return c.realOutput
}

// Controller is a PID controller with a run-time mode flag.
type Controller struct {
	*core
}

// New returns a manual-mode controller with default limits and no bias.
// interval is the period in seconds at which Compute will be called.
func New(kc, tauI, tauD, interval float64) (*Controller, error) {
	c, err := newCore(kc, tauI, tauD, interval)
	if err != nil {
		return nil, err
	}
	return &Controller{core: c}, nil
}

// Reset reinitializes the controller internals from the current process
// value and output. It runs automatically on every manual to automatic
// transition.
func (c *Controller) Reset() { c.reset() }

// SetMode switches between manual and automatic. Entering automatic from
// manual resets the internals for a bumpless transfer.
func (c *Controller) SetMode(m Mode) { c.setMode(m) }

// SetOutput records the real-world output the operator applies while the
// controller is manual. Without feed-forward, engaging automatic mode
// starts from this value.
func (c *Controller) SetOutput(v float64) { c.setOutput(v) }

// Compute runs one sample of the control law and returns the output in
// real-world units, always within the output limits. It must be called once
// per interval and only while the controller is automatic; it does not
// check the mode itself.
func (c *Controller) Compute() float64 { return c.compute() }
