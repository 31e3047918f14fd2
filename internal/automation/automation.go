// Package automation runs batches of control loop scenarios: scripted
// suites, parameter sweeps and Monte Carlo trials over initial conditions.
package automation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/pidloop/internal/config"
	"github.com/san-kum/pidloop/internal/dynamo"
	"github.com/san-kum/pidloop/internal/experiment"
	"github.com/san-kum/pidloop/internal/sim"
	"gopkg.in/yaml.v3"
)

var ErrBadSuite = errors.New("automation: bad suite")

// Suite is a scripted list of runs loaded from YAML.
type Suite struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Runs        []SuiteStep `yaml:"runs"`
}

// SuiteStep names a scenario by preset ("plant/preset") or scenario file,
// with optional overrides.
type SuiteStep struct {
	Name     string             `yaml:"name"`
	Preset   string             `yaml:"preset"`
	Config   string             `yaml:"config"`
	Duration float64            `yaml:"duration"`
	Params   map[string]float64 `yaml:"params"`
}

// Outcome is one finished run of a batch.
type Outcome struct {
	Name   string
	Config *config.Config
	Result *dynamo.Result
}

func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("suite %s: %w", path, err)
	}
	if len(suite.Runs) == 0 {
		return nil, fmt.Errorf("%w: %s has no runs", ErrBadSuite, path)
	}
	return &suite, nil
}

// Resolve turns a step into a scenario.
func (s SuiteStep) Resolve() (*config.Config, error) {
	var cfg *config.Config
	switch {
	case s.Preset != "" && s.Config != "":
		return nil, fmt.Errorf("%w: step %q sets both preset and config", ErrBadSuite, s.Name)
	case s.Preset != "":
		p, err := PresetConfig(s.Preset)
		if err != nil {
			return nil, err
		}
		cfg = p
	case s.Config != "":
		c, err := config.Load(s.Config)
		if err != nil {
			return nil, err
		}
		cfg = c
	default:
		return nil, fmt.Errorf("%w: step %q needs a preset or config", ErrBadSuite, s.Name)
	}

	if s.Name != "" {
		cfg.Name = s.Name
	}
	if s.Duration > 0 {
		cfg.Duration = s.Duration
	}
	for name, v := range s.Params {
		setParam(cfg, name, v)
	}
	return cfg, nil
}

// PresetConfig looks up "plant/preset".
func PresetConfig(ref string) (*config.Config, error) {
	plant, name, ok := strings.Cut(ref, "/")
	if !ok {
		return nil, fmt.Errorf("%w: expected plant/preset, got %q", ErrBadSuite, ref)
	}
	cfg := config.GetPreset(plant, name)
	if cfg == nil {
		return nil, fmt.Errorf("%w: unknown preset %q (available: %v)", ErrBadSuite, ref, config.ListPresets(plant))
	}
	cfg.Name = ref
	return cfg, nil
}

// setParam sets a controller tuning (kc, tau_i, tau_d, interval, setpoint)
// or else a plant parameter.
func setParam(cfg *config.Config, name string, v float64) {
	switch name {
	case "kc":
		cfg.Controller.Kc = v
	case "tau_i":
		cfg.Controller.TauI = v
	case "tau_d":
		cfg.Controller.TauD = v
	case "interval":
		cfg.Controller.Interval = v
	case "setpoint":
		cfg.Controller.SetPoint = v
	default:
		params := make(map[string]float64, len(cfg.PlantParams)+1)
		for k, pv := range cfg.PlantParams {
			params[k] = pv
		}
		params[name] = v
		cfg.PlantParams = params
	}
}

// runBatch builds every scenario and runs them concurrently.
func runBatch(ctx context.Context, cfgs []*config.Config, registry *experiment.Registry, logger *log.Logger, workers int) ([]Outcome, error) {
	jobs := make([]sim.Job, 0, len(cfgs))
	for _, cfg := range cfgs {
		exp, err := registry.Build(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Name, err)
		}
		jobs = append(jobs, exp.Job())
	}

	results, err := sim.RunAll(ctx, jobs, workers)
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, len(results))
	for i, res := range results {
		outcomes[i] = Outcome{Name: cfgs[i].Name, Config: cfgs[i], Result: res}
	}
	return outcomes, nil
}

// RunSuite executes all runs of a suite.
func RunSuite(ctx context.Context, suite *Suite, registry *experiment.Registry, logger *log.Logger, workers int) ([]Outcome, error) {
	cfgs := make([]*config.Config, 0, len(suite.Runs))
	for i, step := range suite.Runs {
		cfg, err := step.Resolve()
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i+1, err)
		}
		cfgs = append(cfgs, cfg)
	}

	logger.Info("running suite", "suite", suite.Name, "runs", len(cfgs))
	return runBatch(ctx, cfgs, registry, logger, workers)
}

// ParameterSweep varies one parameter of a base scenario across a range.
type ParameterSweep struct {
	Base      *config.Config
	ParamName string
	ParamMin  float64
	ParamMax  float64
	NumSteps  int
}

// SweepResult holds one point of a sweep.
type SweepResult struct {
	ParamValue float64
	Metrics    map[string]float64
	FinalPV    float64
}

func RunSweep(ctx context.Context, sweep *ParameterSweep, registry *experiment.Registry, logger *log.Logger, workers int) ([]SweepResult, error) {
	if sweep.NumSteps < 2 {
		return nil, fmt.Errorf("%w: sweep needs at least 2 steps", ErrBadSuite)
	}
	if !(sweep.ParamMax > sweep.ParamMin) {
		return nil, fmt.Errorf("%w: empty sweep range [%g, %g]", ErrBadSuite, sweep.ParamMin, sweep.ParamMax)
	}

	paramStep := (sweep.ParamMax - sweep.ParamMin) / float64(sweep.NumSteps-1)
	values := make([]float64, sweep.NumSteps)
	cfgs := make([]*config.Config, sweep.NumSteps)
	for i := range cfgs {
		values[i] = sweep.ParamMin + float64(i)*paramStep
		cfg := clone(sweep.Base)
		cfg.Name = fmt.Sprintf("%s %s=%.4g", sweep.Base.Name, sweep.ParamName, values[i])
		setParam(cfg, sweep.ParamName, values[i])
		cfgs[i] = cfg
	}

	outcomes, err := runBatch(ctx, cfgs, registry, logger, workers)
	if err != nil {
		return nil, err
	}

	results := make([]SweepResult, len(outcomes))
	for i, o := range outcomes {
		results[i] = SweepResult{
			ParamValue: values[i],
			Metrics:    o.Result.Metrics,
			FinalPV:    finalPV(o.Result),
		}
	}
	return results, nil
}

// MonteCarloConfig perturbs the initial plant state of a base scenario.
type MonteCarloConfig struct {
	Base *config.Config
	// Perturbation is the standard deviation of the noise added to each
	// state component, relative to the input span.
	Perturbation float64
	NumTrials    int
	Seed         int64
}

// MonteCarloResult holds statistics from one trial.
type MonteCarloResult struct {
	TrialID   int
	InitState dynamo.State
	FinalPV   float64
	IAE       float64
	// Settled reports whether the final error is inside the settle band.
	Settled bool
}

func RunMonteCarlo(ctx context.Context, mc *MonteCarloConfig, registry *experiment.Registry, logger *log.Logger, workers int) ([]MonteCarloResult, error) {
	if mc.NumTrials < 1 {
		return nil, fmt.Errorf("%w: need at least one trial", ErrBadSuite)
	}

	base, err := registry.GetPlant(mc.Base.Plant)
	if err != nil {
		return nil, err
	}
	x0 := base.Initial()
	if len(mc.Base.InitState) > 0 {
		x0 = dynamo.State(mc.Base.InitState)
	}

	rng := rand.New(rand.NewSource(mc.Seed))
	if mc.Seed == 0 {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	lim := mc.Base.Controller.InputLimits
	sigma := mc.Perturbation * (lim[1] - lim[0])

	cfgs := make([]*config.Config, mc.NumTrials)
	for trial := range cfgs {
		cfg := clone(mc.Base)
		cfg.Name = fmt.Sprintf("%s #%d", mc.Base.Name, trial)
		cfg.InitState = make([]float64, len(x0))
		for i, v := range x0 {
			cfg.InitState[i] = v + rng.NormFloat64()*sigma
		}
		cfgs[trial] = cfg
	}

	outcomes, err := runBatch(ctx, cfgs, registry, logger, workers)
	if err != nil {
		return nil, err
	}

	results := make([]MonteCarloResult, len(outcomes))
	for i, o := range outcomes {
		res := o.Result
		results[i] = MonteCarloResult{
			TrialID:   i,
			InitState: dynamo.State(cfgs[i].InitState),
			FinalPV:   finalPV(res),
			IAE:       res.Metrics["iae"],
		}
		if n := len(res.PV); n > 0 {
			results[i].Settled = math.Abs(res.SetPoints[n-1]-res.PV[n-1]) <= mc.Base.SettleBand
		}
	}
	return results, nil
}

func clone(c *config.Config) *config.Config {
	cp := *c
	cp.Events = append([]config.EventConfig(nil), c.Events...)
	cp.InitState = append([]float64(nil), c.InitState...)
	if c.PlantParams != nil {
		cp.PlantParams = make(map[string]float64, len(c.PlantParams))
		for k, v := range c.PlantParams {
			cp.PlantParams[k] = v
		}
	}
	return &cp
}

func finalPV(res *dynamo.Result) float64 {
	if len(res.PV) == 0 {
		return math.NaN()
	}
	return res.PV[len(res.PV)-1]
}
