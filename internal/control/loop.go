package control

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/san-kum/pidloop/internal/pid"
)

// sampleSlack absorbs float error when comparing step times to sample times.
const sampleSlack = 1e-9

// Loop is the external scheduler of a pid.Controller: it sets the process
// value, fires due events and calls Compute once per controller interval,
// holding the output in between. While the controller is manual it applies
// the operator's output instead and reports it back to the controller so
// that switching to automatic is bumpless.
type Loop struct {
	pid    *pid.Controller
	events []Event
	next   int
	log    *log.Logger

	started    bool
	nextSample float64
	held       float64
	manual     float64
	samples    int
	rejected   int

	// mode to enter on the first sample, once the process value is known
	initial *pid.Mode
}

type Option func(*Loop)

// WithEvents schedules configuration changes. Events are applied in time
// order; events with equal times keep their given order.
func WithEvents(events ...Event) Option {
	return func(l *Loop) { l.events = sortEvents(append(l.events, events...)) }
}

func WithLogger(logger *log.Logger) Option {
	return func(l *Loop) { l.log = logger }
}

// WithInitialMode switches the controller to m on the first sample, after
// the first process value has been recorded, so entering automatic resets
// from where the process actually starts.
func WithInitialMode(m pid.Mode) Option {
	return func(l *Loop) { l.initial = &m }
}

// WithManualOutput sets the operator's output used while manual.
func WithManualOutput(u float64) Option {
	return func(l *Loop) { l.manual = u }
}

func NewLoop(c *pid.Controller, opts ...Option) *Loop {
	l := &Loop{pid: c}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = log.New(io.Discard)
	}
	return l
}

// Compute implements dynamo.Controller.
func (l *Loop) Compute(pv float64, t float64) float64 {
	if l.started && t+sampleSlack < l.nextSample {
		return l.held
	}

	l.pid.SetProcessValue(pv)
	if l.initial != nil {
		l.pid.SetMode(*l.initial)
		l.initial = nil
	}
	l.fire(t)

	if l.pid.Mode() == pid.Automatic {
		l.held = l.pid.Compute()
	} else {
		lim := l.pid.OutputLimits()
		l.held = min(max(l.manual, lim.Min), lim.Max)
		l.pid.SetOutput(l.held)
	}
	l.samples++

	l.log.Debug("sample", "t", t, "pv", pv, "sp", l.pid.SetPoint(), "u", l.held, "mode", l.pid.Mode())

	if !l.started {
		l.started = true
		l.nextSample = t
	}
	l.nextSample += l.pid.Interval()
	if l.nextSample+sampleSlack < t {
		l.nextSample = t + l.pid.Interval()
	}
	return l.held
}

func (l *Loop) fire(t float64) {
	for l.next < len(l.events) && l.events[l.next].At <= t+sampleSlack {
		e := l.events[l.next]
		l.next++
		if err := e.apply(l); err != nil {
			l.rejected++
			l.log.Warn("event rejected", "event", e, "t", t, "err", err)
			continue
		}
		l.log.Info("event applied", "event", e, "t", t)
	}
}

// SetPoint implements dynamo.Tracker.
func (l *Loop) SetPoint() float64 { return l.pid.SetPoint() }

// InAuto implements dynamo.Automatic.
func (l *Loop) InAuto() bool { return l.pid.Mode() == pid.Automatic }

// Controller returns the driven controller.
func (l *Loop) Controller() *pid.Controller { return l.pid }

// Samples returns how many times the controller has been sampled.
func (l *Loop) Samples() int { return l.samples }

// Rejected returns how many events the controller refused.
func (l *Loop) Rejected() int { return l.rejected }

// SetMode switches the controller's mode now, overriding any initial mode
// not yet applied.
func (l *Loop) SetMode(m pid.Mode) {
	l.initial = nil
	l.pid.SetMode(m)
}

// SetManualOutput changes the operator's output used while manual.
func (l *Loop) SetManualOutput(u float64) { l.manual = u }

// ManualOutput returns the operator's output.
func (l *Loop) ManualOutput() float64 { return l.manual }
