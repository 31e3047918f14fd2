package metrics

import (
	"math"

	"github.com/san-kum/pidloop/internal/dynamo"
)

// IntegralError integrates |e| (IAE) or e² (ISE) over time using the
// spacing between observed samples.
type IntegralError struct {
	name    string
	squared bool
	sum     float64
	lastT   float64
	lastV   float64
	started bool
}

func NewIAE() *IntegralError { return &IntegralError{name: "iae"} }
func NewISE() *IntegralError { return &IntegralError{name: "ise", squared: true} }

func (m *IntegralError) Name() string { return m.name }

func (m *IntegralError) Observe(s dynamo.Sample) {
	v := math.Abs(s.Error())
	if m.squared {
		v = v * v
	}
	if m.started {
		// trapezoid
		m.sum += 0.5 * (v + m.lastV) * (s.T - m.lastT)
	}
	m.lastT, m.lastV, m.started = s.T, v, true
}

func (m *IntegralError) Value() float64 { return m.sum }

func (m *IntegralError) Reset() {
	m.sum = 0
	m.lastT, m.lastV, m.started = 0, 0, false
}
