package experiment

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/san-kum/pidloop/internal/config"
	"github.com/san-kum/pidloop/internal/dynamo"
	"github.com/san-kum/pidloop/internal/plant"
	"github.com/san-kum/pidloop/internal/sim"
)

var quiet = log.New(io.Discard)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	for _, name := range r.ListPlants() {
		if _, err := r.GetPlant(name); err != nil {
			t.Errorf("GetPlant(%s): %v", name, err)
		}
	}
	if _, err := r.GetPlant("reactor"); err == nil {
		t.Error("expected error for unknown plant")
	}
	if _, err := r.GetIntegrator("verlet"); err == nil {
		t.Error("expected error for unknown integrator")
	}
}

func TestBuildAllPresets(t *testing.T) {
	r := NewRegistry()

	for plantName, presets := range config.Presets {
		for name := range presets {
			cfg := config.GetPreset(plantName, name)
			cfg.Duration = 1

			exp, err := r.Build(cfg, quiet)
			if err != nil {
				t.Errorf("%s/%s: build: %v", plantName, name, err)
				continue
			}
			res, err := exp.Run(context.Background())
			if err != nil {
				t.Errorf("%s/%s: run: %v", plantName, name, err)
				continue
			}
			if res.Steps == 0 || len(res.Metrics) != 6 {
				t.Errorf("%s/%s: steps=%d metrics=%d", plantName, name, res.Steps, len(res.Metrics))
			}
		}
	}
}

func TestBuild_PlantParams(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PlantParams = map[string]float64{"tau": 10, "ambient": 25}

	exp, err := NewRegistry().Build(cfg, quiet)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	th := exp.Plant.(*plant.Thermal)
	if th.Tau != 10 || th.Ambient != 25 {
		t.Errorf("params not applied: %+v", th)
	}
	if exp.X0[0] != 25 {
		t.Errorf("expected initial temperature at ambient, got %v", exp.X0)
	}

	cfg.PlantParams = map[string]float64{"tau": -1}
	if _, err := NewRegistry().Build(cfg, quiet); !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected ErrParameterBounds, got %v", err)
	}
}

func TestBuild_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Controller.Interval = 0
	if _, err := NewRegistry().Build(cfg, quiet); err == nil {
		t.Error("expected error for invalid interval")
	}

	cfg = config.DefaultConfig()
	cfg.Plant = "reactor"
	if _, err := NewRegistry().Build(cfg, quiet); err == nil {
		t.Error("expected error for unknown plant")
	}
}

func TestBuild_OpenLoopStepResponse(t *testing.T) {
	cfg := config.GetPreset("thermal", "step")

	exp, err := NewRegistry().Build(cfg, quiet)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if exp.Loop != nil {
		t.Error("open-loop scenario should have no control loop")
	}

	res, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Ten time constants at half power: ambient + gain/2.
	final := res.PV[len(res.PV)-1]
	if math.Abs(final-95) > 0.1 {
		t.Errorf("expected step response to settle near 95, got %f", final)
	}
}

func TestBumplessPreset(t *testing.T) {
	cfg := config.GetPreset("thermal", "bumpless")
	cfg.Duration = 400

	exp, err := NewRegistry().Build(cfg, quiet)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	res, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Find the switch to automatic and compare the outputs either side.
	for i := 1; i < len(res.Auto); i++ {
		if res.Auto[i] && !res.Auto[i-1] {
			jump := math.Abs(res.Outputs[i] - res.Outputs[i-1])
			if jump > 0.05 {
				t.Errorf("output jumped by %f at engagement (t=%.2f)", jump, res.Times[i])
			}
			return
		}
	}
	t.Error("controller never engaged")
}

func TestBuild_AutomaticStartIsBumpless(t *testing.T) {
	cfg := config.GetPreset("servo", "position")
	cfg.InitState = []float64{1, 0}
	cfg.Controller.SetPoint = 1
	bias := 0.0
	cfg.Controller.Bias = &bias

	exp, err := NewRegistry().Build(cfg, quiet)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if exp.Loop.InAuto() {
		t.Error("controller should stay manual until the first sample")
	}

	smp := exp.Sim.Step(exp.X0, 0)
	if !smp.Auto {
		t.Fatal("expected automatic after the first sample")
	}
	// At rest on the setpoint the first output is the bias.
	if math.Abs(smp.U-bias) > 1e-9 {
		t.Errorf("first output %f, want %f", smp.U, bias)
	}
}

func TestParallelJobs(t *testing.T) {
	r := NewRegistry()
	var jobs []sim.Job
	for _, name := range []string{"oven", "retune"} {
		cfg := config.GetPreset("thermal", name)
		cfg.Duration = 5
		exp, err := r.Build(cfg, quiet)
		if err != nil {
			t.Fatal(err)
		}
		jobs = append(jobs, exp.Job())
	}

	results, err := sim.RunAll(context.Background(), jobs, 2)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if len(results) != 2 || results[0].Steps != 100 {
		t.Errorf("unexpected results: %d", len(results))
	}
}
