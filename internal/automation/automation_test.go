package automation

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/san-kum/pidloop/internal/config"
	"github.com/san-kum/pidloop/internal/experiment"
)

var quiet = log.New(io.Discard)

func TestLoadAndRunSuite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	suite := `
name: ovens
description: default and slow oven
runs:
  - preset: thermal/oven
    duration: 30
  - name: slow oven
    preset: thermal/oven
    duration: 30
    params:
      tau: 120
      kc: 2
`
	if err := os.WriteFile(path, []byte(suite), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSuite(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(s.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(s.Runs))
	}

	outcomes, err := RunSuite(context.Background(), s, experiment.NewRegistry(), quiet, 2)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcomes[0].Name != "thermal/oven" || outcomes[1].Name != "slow oven" {
		t.Errorf("unexpected names %q, %q", outcomes[0].Name, outcomes[1].Name)
	}
	if outcomes[1].Config.Controller.Kc != 2 || outcomes[1].Config.PlantParams["tau"] != 120 {
		t.Errorf("overrides not applied: %+v", outcomes[1].Config)
	}
	if outcomes[0].Result.Steps != 600 {
		t.Errorf("expected 600 steps, got %d", outcomes[0].Result.Steps)
	}
	// The slower plant heats up less in the same time.
	if outcomes[1].Result.PV[599] >= outcomes[0].Result.PV[599] {
		t.Error("expected the slow oven to lag")
	}
	if _, ok := config.GetPreset("thermal", "oven").PlantParams["tau"]; ok {
		t.Error("suite overrides leaked into the preset")
	}
}

func TestSuiteErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("name: nothing\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSuite(empty); !errors.Is(err, ErrBadSuite) {
		t.Errorf("expected ErrBadSuite for empty suite, got %v", err)
	}

	steps := []SuiteStep{
		{Name: "both", Preset: "thermal/oven", Config: "x.yaml"},
		{Name: "neither"},
		{Name: "bad ref", Preset: "thermal"},
		{Name: "unknown", Preset: "thermal/kiln"},
	}
	for _, s := range steps {
		if _, err := s.Resolve(); !errors.Is(err, ErrBadSuite) {
			t.Errorf("%s: expected ErrBadSuite, got %v", s.Name, err)
		}
	}
}

func TestRunSweep(t *testing.T) {
	base := config.GetPreset("thermal", "oven")
	base.Duration = 100

	results, err := RunSweep(context.Background(), &ParameterSweep{
		Base:      base,
		ParamName: "kc",
		ParamMin:  1,
		ParamMax:  4,
		NumSteps:  4,
	}, experiment.NewRegistry(), quiet, 4)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for i, r := range results {
		if r.ParamValue != float64(i+1) {
			t.Errorf("point %d: expected kc=%d, got %f", i, i+1, r.ParamValue)
		}
		if _, ok := r.Metrics["iae"]; !ok {
			t.Errorf("point %d: missing iae", i)
		}
	}
	if base.Controller.Kc != 4 {
		t.Error("sweep modified its base scenario")
	}

	if _, err := RunSweep(context.Background(), &ParameterSweep{Base: base, ParamName: "kc", ParamMin: 1, ParamMax: 1, NumSteps: 3}, experiment.NewRegistry(), quiet, 1); !errors.Is(err, ErrBadSuite) {
		t.Errorf("expected ErrBadSuite for empty range, got %v", err)
	}
}

func TestRunMonteCarlo(t *testing.T) {
	base := config.GetPreset("thermal", "oven")
	mc := &MonteCarloConfig{Base: base, Perturbation: 0.05, NumTrials: 4, Seed: 7}

	results, err := RunMonteCarlo(context.Background(), mc, experiment.NewRegistry(), quiet, 4)
	if err != nil {
		t.Fatalf("monte carlo: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 trials, got %d", len(results))
	}

	distinct := false
	for _, r := range results {
		if !r.Settled {
			t.Errorf("trial %d did not settle: final PV %f", r.TrialID, r.FinalPV)
		}
		if r.InitState[0] != results[0].InitState[0] {
			distinct = true
		}
	}
	if !distinct {
		t.Error("expected perturbed initial states")
	}

	again, err := RunMonteCarlo(context.Background(), mc, experiment.NewRegistry(), quiet, 2)
	if err != nil {
		t.Fatal(err)
	}
	if again[2].InitState[0] != results[2].InitState[0] {
		t.Error("same seed should reproduce the trials")
	}
}

func TestRunMonteCarlo_RejectsRunShorterThanStep(t *testing.T) {
	base := config.GetPreset("thermal", "oven")
	base.Duration = 0.02
	mc := &MonteCarloConfig{Base: base, Perturbation: 0.05, NumTrials: 2, Seed: 1}

	_, err := RunMonteCarlo(context.Background(), mc, experiment.NewRegistry(), quiet, 2)
	if !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected config.ErrInvalid, got %v", err)
	}
}
