package sim

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/charmbracelet/log"
	"github.com/san-kum/pidloop/internal/dynamo"
)

// Simulator closes the loop between a plant and a controller. The plant is
// integrated every Dt; the controller sees the measured process value every
// step and decides itself when to sample.
type Simulator struct {
	plant      dynamo.Plant
	integrator dynamo.Integrator
	controller dynamo.Controller
	metrics    []dynamo.Metric
	observers  []dynamo.Observer
	log        *log.Logger
}

func New(p dynamo.Plant, integrator dynamo.Integrator, controller dynamo.Controller) *Simulator {
	return &Simulator{
		plant:      p,
		integrator: integrator,
		controller: controller,
		metrics:    make([]dynamo.Metric, 0),
		observers:  make([]dynamo.Observer, 0),
		log:        log.New(io.Discard),
	}
}

func (s *Simulator) AddMetric(m dynamo.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }
func (s *Simulator) SetLogger(l *log.Logger)       { s.log = l }

func (s *Simulator) Plant() dynamo.Plant           { return s.plant }
func (s *Simulator) Controller() dynamo.Controller { return s.controller }

// Run simulates cfg.Duration seconds starting from x0 and records one
// sample per step.
func (s *Simulator) Run(ctx context.Context, x0 dynamo.State, cfg dynamo.Config) (*dynamo.Result, error) {
	if err := s.validate(x0, cfg); err != nil {
		return nil, err
	}

	steps := int(math.Round(cfg.Duration / cfg.Dt))
	result := &dynamo.Result{
		Times:     make([]float64, 0, steps),
		States:    make([]dynamo.State, 0, steps),
		PV:        make([]float64, 0, steps),
		SetPoints: make([]float64, 0, steps),
		Outputs:   make([]float64, 0, steps),
		Auto:      make([]bool, 0, steps),
		Metrics:   make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	x := x0.Clone()
	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		// Derive time from the step index so sample times do not drift.
		t := float64(i) * cfg.Dt
		smp := s.Step(x, t)

		for _, m := range s.metrics {
			m.Observe(smp)
		}
		for _, obs := range s.observers {
			obs.OnSample(smp)
		}

		result.Times = append(result.Times, t)
		result.States = append(result.States, smp.X)
		result.PV = append(result.PV, smp.PV)
		result.SetPoints = append(result.SetPoints, smp.SetPoint)
		result.Outputs = append(result.Outputs, smp.U)
		result.Auto = append(result.Auto, smp.Auto)
		result.Steps++

		x = s.integrator.Step(s.plant, x, smp.U, t, cfg.Dt)

		if cfg.ValidateState && !x.IsValid() {
			return result, &dynamo.SimulationError{Step: i, Time: t, State: x, Wrapped: dynamo.ErrInvalidState}
		}
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	s.log.Info("run complete", "steps", result.Steps, "duration", cfg.Duration)
	return result, nil
}

// Step measures x, asks the controller for an output and returns the
// sample without advancing the plant.
func (s *Simulator) Step(x dynamo.State, t float64) dynamo.Sample {
	pv := s.plant.Measure(x)
	smp := dynamo.Sample{
		T:  t,
		X:  x.Clone(),
		PV: pv,
		U:  s.controller.Compute(pv, t),
	}
	if tr, ok := s.controller.(dynamo.Tracker); ok {
		smp.SetPoint = tr.SetPoint()
	}
	if a, ok := s.controller.(dynamo.Automatic); ok {
		smp.Auto = a.InAuto()
	}
	return smp
}

// Advance integrates the plant one step of dt under input u.
func (s *Simulator) Advance(x dynamo.State, u, t, dt float64) dynamo.State {
	return s.integrator.Step(s.plant, x, u, t, dt)
}

func (s *Simulator) validate(x0 dynamo.State, cfg dynamo.Config) error {
	if !(cfg.Dt > 0) {
		return fmt.Errorf("%w: dt must be positive, got %f", dynamo.ErrInvalidConfig, cfg.Dt)
	}
	if !(cfg.Duration > 0) {
		return fmt.Errorf("%w: duration must be positive, got %f", dynamo.ErrInvalidConfig, cfg.Duration)
	}
	if cfg.Duration < cfg.Dt {
		return fmt.Errorf("%w: duration %f is shorter than dt %f", dynamo.ErrInvalidConfig, cfg.Duration, cfg.Dt)
	}
	if len(x0) != s.plant.StateDim() {
		return fmt.Errorf("%w: got %d states, plant has %d", dynamo.ErrDimensionMismatch, len(x0), s.plant.StateDim())
	}
	return nil
}
