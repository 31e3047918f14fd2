package control

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/pidloop/internal/pid"
)

// EventKind names the controller call an Event makes.
type EventKind string

const (
	SetPoint     EventKind = "setpoint"      // [sp]
	Mode         EventKind = "mode"          // [0 manual | non-zero auto]
	Tunings      EventKind = "tunings"       // [Kc, tauI, tauD]
	Bias         EventKind = "bias"          // [bias]
	InputLimits  EventKind = "input_limits"  // [min, max]
	OutputLimits EventKind = "output_limits" // [min, max]
	Interval     EventKind = "interval"      // [seconds]
	ManualOutput EventKind = "manual_output" // [output]
)

var arity = map[EventKind]int{
	SetPoint:     1,
	Mode:         1,
	Tunings:      3,
	Bias:         1,
	InputLimits:  2,
	OutputLimits: 2,
	Interval:     1,
	ManualOutput: 1,
}

// ErrBadEvent indicates an unknown event kind or wrong argument count.
var ErrBadEvent = errors.New("control: malformed event")

// Event is a configuration change applied at the first sample at or after
// At seconds.
type Event struct {
	At   float64
	Kind EventKind
	Args []float64
}

func (e Event) String() string {
	return fmt.Sprintf("%s%v@%gs", e.Kind, e.Args, e.At)
}

// Validate checks the kind and argument count. It does not check the
// values; the controller decides those when the event fires.
func (e Event) Validate() error {
	n, ok := arity[e.Kind]
	if !ok {
		return fmt.Errorf("%w: unknown kind %q", ErrBadEvent, e.Kind)
	}
	if len(e.Args) != n {
		return fmt.Errorf("%w: %s takes %d args, got %d", ErrBadEvent, e.Kind, n, len(e.Args))
	}
	if e.At < 0 {
		return fmt.Errorf("%w: %s at negative time %g", ErrBadEvent, e.Kind, e.At)
	}
	return nil
}

func (e Event) apply(l *Loop) error {
	if err := e.Validate(); err != nil {
		return err
	}

	c := l.pid
	a := e.Args
	switch e.Kind {
	case SetPoint:
		c.SetSetPoint(a[0])
	case Mode:
		m := pid.Manual
		if a[0] != 0 {
			m = pid.Automatic
		}
		c.SetMode(m)
	case Tunings:
		return c.SetTunings(a[0], a[1], a[2])
	case Bias:
		c.SetBias(a[0])
	case InputLimits:
		return c.SetInputLimits(a[0], a[1])
	case OutputLimits:
		return c.SetOutputLimits(a[0], a[1])
	case Interval:
		return c.SetInterval(a[0])
	case ManualOutput:
		l.manual = a[0]
	}
	return nil
}

func sortEvents(events []Event) []Event {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At < sorted[j].At })
	return sorted
}
