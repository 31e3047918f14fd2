package metrics

import (
	"math"

	"github.com/san-kum/pidloop/internal/dynamo"
)

// Overshoot is the peak excursion past the first setpoint, in percent of
// the initial step from the starting process value to that setpoint.
type Overshoot struct {
	pv0, sp0 float64
	peak     float64
	started  bool
}

func NewOvershoot() *Overshoot { return &Overshoot{} }

func (o *Overshoot) Name() string { return "overshoot_pct" }

func (o *Overshoot) Observe(s dynamo.Sample) {
	if !o.started {
		o.pv0, o.sp0, o.started = s.PV, s.SetPoint, true
		return
	}
	dir := 1.0
	if o.sp0 < o.pv0 {
		dir = -1
	}
	if past := (s.PV - o.sp0) * dir; past > o.peak {
		o.peak = past
	}
}

func (o *Overshoot) Value() float64 {
	step := math.Abs(o.sp0 - o.pv0)
	if step == 0 {
		return 0
	}
	return o.peak / step * 100
}

func (o *Overshoot) Reset() { *o = Overshoot{} }

// SettlingTime is the time of the last sample whose error was outside
// ±Band. A run that never settles reports its last sample time.
type SettlingTime struct {
	Band    float64
	settled float64
}

func NewSettlingTime(band float64) *SettlingTime { return &SettlingTime{Band: band} }

func (m *SettlingTime) Name() string { return "settling_time" }

func (m *SettlingTime) Observe(s dynamo.Sample) {
	if math.Abs(s.Error()) > m.Band {
		m.settled = s.T
	}
}

func (m *SettlingTime) Value() float64 { return m.settled }

func (m *SettlingTime) Reset() { m.settled = 0 }

// Saturation is the fraction of automatic samples whose output sat at an
// output limit.
type Saturation struct {
	Min, Max  float64
	saturated int
	samples   int
}

func NewSaturation(min, max float64) *Saturation { return &Saturation{Min: min, Max: max} }

func (m *Saturation) Name() string { return "saturation" }

func (m *Saturation) Observe(s dynamo.Sample) {
	if !s.Auto {
		return
	}
	m.samples++
	if s.U <= m.Min || s.U >= m.Max {
		m.saturated++
	}
}

func (m *Saturation) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return float64(m.saturated) / float64(m.samples)
}

func (m *Saturation) Reset() {
	m.saturated = 0
	m.samples = 0
}

// Default returns the metrics every closed-loop run reports.
func Default(band, outMin, outMax float64) []dynamo.Metric {
	return []dynamo.Metric{
		NewIAE(),
		NewISE(),
		NewOvershoot(),
		NewSettlingTime(band),
		NewControlEffort(),
		NewSaturation(outMin, outMax),
	}
}
