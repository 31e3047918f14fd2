package experiment

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/san-kum/pidloop/internal/config"
	"github.com/san-kum/pidloop/internal/control"
	"github.com/san-kum/pidloop/internal/dynamo"
	"github.com/san-kum/pidloop/internal/metrics"
	"github.com/san-kum/pidloop/internal/sim"
)

// Experiment is a scenario assembled into a runnable simulation.
type Experiment struct {
	Config *config.Config
	Plant  dynamo.Plant
	// Loop is nil for open-loop scenarios.
	Loop *control.Loop
	Sim  *sim.Simulator
	X0   dynamo.State
}

// Build validates cfg and wires its plant, integrator, controller and
// metrics. Every call returns fresh state, so experiments may run in
// parallel.
func (r *Registry) Build(cfg *config.Config, logger *log.Logger) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p, err := r.GetPlant(cfg.Plant)
	if err != nil {
		return nil, err
	}
	if err := applyParams(p, cfg.PlantParams); err != nil {
		return nil, err
	}

	integ, err := r.GetIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}

	exp := &Experiment{Config: cfg, Plant: p, X0: p.Initial()}
	if len(cfg.InitState) > 0 {
		exp.X0 = dynamo.State(cfg.InitState).Clone()
	}

	var ctrl dynamo.Controller
	if cfg.OpenLoop != nil {
		ctrl = control.NewOpenLoop(*cfg.OpenLoop)
	} else {
		c, err := cfg.NewController()
		if err != nil {
			return nil, err
		}
		mode, err := cfg.InitialMode()
		if err != nil {
			return nil, err
		}
		exp.Loop = control.NewLoop(c,
			control.WithInitialMode(mode),
			control.WithEvents(cfg.ControlEvents()...),
			control.WithManualOutput(cfg.Controller.ManualOutput),
			control.WithLogger(logger.With("scenario", cfg.Name)),
		)
		ctrl = exp.Loop
	}

	exp.Sim = sim.New(p, integ, ctrl)
	exp.Sim.SetLogger(logger.With("scenario", cfg.Name))
	lim := cfg.Controller.OutputLimits
	for _, m := range metrics.Default(cfg.SettleBand, lim[0], lim[1]) {
		exp.Sim.AddMetric(m)
	}

	return exp, nil
}

func applyParams(p dynamo.Plant, params map[string]float64) error {
	if len(params) == 0 {
		return nil
	}
	c, ok := p.(dynamo.Configurable)
	if !ok {
		return fmt.Errorf("%w: plant takes no parameters", dynamo.ErrUnknownParameter)
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := c.SetParam(name, params[name]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Experiment) SimConfig() dynamo.Config {
	return dynamo.Config{
		Dt:            e.Config.Dt,
		Duration:      e.Config.Duration,
		ValidateState: true,
	}
}

func (e *Experiment) Run(ctx context.Context) (*dynamo.Result, error) {
	return e.Sim.Run(ctx, e.X0, e.SimConfig())
}

// Job packages the experiment for sim.RunAll.
func (e *Experiment) Job() sim.Job {
	return sim.Job{Name: e.Config.Name, Sim: e.Sim, X0: e.X0, Cfg: e.SimConfig()}
}
