package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/pidloop/internal/automation"
	"github.com/san-kum/pidloop/internal/config"
	"github.com/san-kum/pidloop/internal/dynamo"
	"github.com/san-kum/pidloop/internal/experiment"
	"github.com/san-kum/pidloop/internal/sim"
	"github.com/san-kum/pidloop/internal/storage"
	"github.com/san-kum/pidloop/internal/viz"
	"github.com/spf13/cobra"
)

var (
	dataDir  string
	logLevel string

	configFile   string
	preset       string
	dt           float64
	duration     float64
	integrator   string
	kc           float64
	tauI         float64
	tauD         float64
	interval     float64
	setPoint     float64
	mode         string
	manualOutput float64

	plotAfter bool
	width     int
	height    int
	speed     float64
	workers   int

	sweepParam string
	sweepMin   float64
	sweepMax   float64
	sweepSteps int
	trials     int
	perturb    float64
	seed       int64

	logger = log.New(io.Discard)
)

func main() {
	rootCmd := &cobra.Command{
		Use:               "pidloop",
		Short:             "PID control loop lab",
		SilenceUsage:      true,
		PersistentPreRunE: setupLogger,
		RunE: func(cmd *cobra.Command, args []string) error {
			return viz.RunPicker(pickerEntries(), buildLive)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".pidloop", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [plant]",
		Short: "run a closed-loop scenario and store the result",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScenario,
	}
	addScenarioFlags(runCmd)
	runCmd.Flags().BoolVar(&plotAfter, "plot", false, "plot the run when done")
	addPlotFlags(runCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	addPlotFlags(plotCmd)

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run samples to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [plant]",
		Short: "list available presets for a plant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for plant: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	configCmd := &cobra.Command{
		Use:   "config [path] [plant]",
		Short: "write the resolved scenario to a YAML file",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  writeConfig,
	}
	addScenarioFlags(configCmd)

	liveCmd := &cobra.Command{
		Use:   "live [plant]",
		Short: "drive a scenario interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addScenarioFlags(liveCmd)
	liveCmd.Flags().Float64Var(&speed, "speed", 0, "simulated seconds per second (0 fits the run into a minute)")

	compareCmd := &cobra.Command{
		Use:   "compare [plant/preset...]",
		Short: "run presets in parallel and compare their metrics",
		Args:  cobra.MinimumNArgs(1),
		RunE:  comparePresets,
	}
	compareCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	compareCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	compareCmd.Flags().IntVar(&workers, "workers", 4, "parallel runs")

	suiteCmd := &cobra.Command{
		Use:   "suite [file]",
		Short: "run a suite of scenarios from a YAML file and store the results",
		Args:  cobra.ExactArgs(1),
		RunE:  runSuite,
	}
	suiteCmd.Flags().IntVar(&workers, "workers", 4, "parallel runs")

	sweepCmd := &cobra.Command{
		Use:   "sweep [plant/preset]",
		Short: "sweep a tuning or plant parameter and compare metrics",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&sweepParam, "param", "kc", "parameter (kc, tau_i, tau_d, interval, setpoint or a plant parameter)")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 1, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 8, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 8, "number of values")
	sweepCmd.Flags().IntVar(&workers, "workers", 4, "parallel runs")

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo [plant/preset]",
		Short: "run a preset from randomly perturbed initial states",
		Args:  cobra.ExactArgs(1),
		RunE:  runMonteCarlo,
	}
	monteCarloCmd.Flags().IntVar(&trials, "trials", 20, "number of trials")
	monteCarloCmd.Flags().Float64Var(&perturb, "perturb", 0.05, "initial state noise, fraction of the input span")
	monteCarloCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 picks one)")
	monteCarloCmd.Flags().IntVar(&workers, "workers", 4, "parallel runs")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, exportJSONCmd, exportCSVCmd, presetsCmd, configCmd, liveCmd, compareCmd, suiteCmd, sweepCmd, monteCarloCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func setupLogger(cmd *cobra.Command, args []string) error {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logger = log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		Prefix:          "pidloop",
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})
	return nil
}

func addScenarioFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "scenario file (yaml)")
	f.StringVar(&preset, "preset", "", "use preset scenario for the plant")
	f.Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	f.Float64Var(&duration, "time", config.DefaultDuration, "duration")
	f.StringVar(&integrator, "integrator", config.DefaultIntegrator, "integrator (euler, rk4)")
	f.Float64Var(&kc, "kc", config.DefaultKc, "controller gain")
	f.Float64Var(&tauI, "tau-i", config.DefaultTauI, "integral time (0 disables)")
	f.Float64Var(&tauD, "tau-d", config.DefaultTauD, "derivative time")
	f.Float64Var(&interval, "interval", config.DefaultInterval, "controller sample interval")
	f.Float64Var(&setPoint, "setpoint", config.DefaultSetPoint, "setpoint")
	f.StringVar(&mode, "mode", "auto", "initial mode (manual, auto)")
	f.Float64Var(&manualOutput, "manual-output", 0, "operator output while manual")
}

func addPlotFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&width, "width", 80, "plot width")
	cmd.Flags().IntVar(&height, "height", 12, "plot height")
}

// resolveConfig starts from a scenario file, a preset or the plant's first
// preset, then applies the flags the user set explicitly.
func resolveConfig(cmd *cobra.Command, plant string) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "":
		c, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = c
		if plant != "" {
			cfg.Plant = plant
		}
	case preset != "":
		if plant == "" {
			plant = config.DefaultPlant
		}
		cfg = config.GetPreset(plant, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(plant))
		}
	case plant != "":
		names := config.ListPresets(plant)
		if len(names) == 0 {
			return nil, fmt.Errorf("unknown plant: %s (available: %v)", plant, experiment.NewRegistry().ListPlants())
		}
		cfg = config.GetPreset(plant, names[0])
	default:
		cfg = config.DefaultConfig()
	}

	f := cmd.Flags()
	if f.Changed("dt") {
		cfg.Dt = dt
	}
	if f.Changed("time") {
		cfg.Duration = duration
	}
	if f.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if f.Changed("kc") {
		cfg.Controller.Kc = kc
	}
	if f.Changed("tau-i") {
		cfg.Controller.TauI = tauI
	}
	if f.Changed("tau-d") {
		cfg.Controller.TauD = tauD
	}
	if f.Changed("interval") {
		cfg.Controller.Interval = interval
	}
	if f.Changed("setpoint") {
		cfg.Controller.SetPoint = setPoint
	}
	if f.Changed("mode") {
		cfg.Controller.Mode = mode
	}
	if f.Changed("manual-output") {
		cfg.Controller.ManualOutput = manualOutput
	}

	return cfg, nil
}

func plantArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, plantArg(args))
	if err != nil {
		return err
	}

	exp, err := experiment.NewRegistry().Build(cfg, logger)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	logger.Info("running", "scenario", cfg.Name, "plant", cfg.Plant, "duration", cfg.Duration)
	start := time.Now()

	result, err := exp.Run(cmd.Context())
	if err != nil {
		return err
	}

	elapsed := time.Since(start)

	runID, err := st.Save(cfg, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.Steps)
	if exp.Loop != nil {
		fmt.Printf("controller samples: %d\n", exp.Loop.Samples())
		if n := exp.Loop.Rejected(); n > 0 {
			fmt.Printf("rejected events: %d\n", n)
		}
	}
	fmt.Println("\nmetrics:")
	printMetrics(result.Metrics)

	if plotAfter {
		fmt.Println()
		fmt.Println(viz.PlotResult(result, width, height))
	}
	return nil
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, m[name])
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPLANT\tTIME\tDURATION\tDT\tKC\tTAU_I\tTAU_D\tIAE")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%g\t%g\t%g\t%.4g\n",
			run.ID,
			run.Plant,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Controller.Kc,
			run.Controller.TauI,
			run.Controller.TauD,
			run.Metrics["iae"],
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	result, err := st.LoadResult(runID)
	if err != nil {
		return err
	}
	if result.Steps == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("plant: %s\n", meta.Plant)
	fmt.Printf("samples: %d\n\n", result.Steps)
	fmt.Println(viz.PlotResult(result, width, height))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	result, err := st.LoadResult(runID)
	if err != nil {
		return err
	}

	cfg := &config.Config{
		Name:       meta.Name,
		Plant:      meta.Plant,
		Integrator: meta.Integrator,
		Dt:         meta.Dt,
		Duration:   meta.Duration,
		Controller: meta.Controller,
	}
	return storage.ExportJSON(os.Stdout, cfg, result)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	result, err := st.LoadResult(args[0])
	if err != nil {
		return err
	}
	if result.Steps == 0 {
		return fmt.Errorf("no data to export")
	}
	return storage.WriteCSV(os.Stdout, result)
}

func writeConfig(cmd *cobra.Command, args []string) error {
	var plant string
	if len(args) > 1 {
		plant = args[1]
	}
	cfg, err := resolveConfig(cmd, plant)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(args[0], cfg); err != nil {
		return err
	}
	logger.Info("scenario written", "path", args[0], "plant", cfg.Plant)
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, plantArg(args))
	if err != nil {
		return err
	}
	m, err := newLive(cfg, speed)
	if err != nil {
		return err
	}
	return viz.RunLive(m)
}

// newLive builds a live view. Logging is silenced while the TUI owns the
// terminal.
func newLive(cfg *config.Config, speed float64) (viz.Live, error) {
	exp, err := experiment.NewRegistry().Build(cfg, log.New(io.Discard))
	if err != nil {
		return viz.Live{}, err
	}
	if speed <= 0 {
		speed = math.Max(1, cfg.Duration/60)
	}
	return viz.NewLive(cfg.Name, exp.Sim, exp.Loop, exp.X0, cfg.Dt, speed), nil
}

func buildLive(e viz.Entry) (viz.Live, error) {
	cfg := config.GetPreset(e.Plant, e.Preset)
	if cfg == nil {
		return viz.Live{}, fmt.Errorf("unknown preset: %s", e)
	}
	return newLive(cfg, 0)
}

func pickerEntries() []viz.Entry {
	var entries []viz.Entry
	for _, plant := range experiment.NewRegistry().ListPlants() {
		for _, name := range config.ListPresets(plant) {
			cfg := config.GetPreset(plant, name)
			summary := fmt.Sprintf("Kc=%g tau_i=%g tau_d=%g, %d events", cfg.Controller.Kc, cfg.Controller.TauI, cfg.Controller.TauD, len(cfg.Events))
			if cfg.OpenLoop != nil {
				summary = fmt.Sprintf("open loop u=%g", *cfg.OpenLoop)
			}
			entries = append(entries, viz.Entry{Plant: plant, Preset: name, Summary: summary})
		}
	}
	return entries
}

func comparePresets(cmd *cobra.Command, args []string) error {
	registry := experiment.NewRegistry()

	jobs := make([]sim.Job, 0, len(args))
	for _, arg := range args {
		cfg, err := automation.PresetConfig(arg)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("dt") {
			cfg.Dt = dt
		}
		if cmd.Flags().Changed("time") {
			cfg.Duration = duration
		}

		exp, err := registry.Build(cfg, logger)
		if err != nil {
			return fmt.Errorf("%s: %w", arg, err)
		}
		jobs = append(jobs, exp.Job())
	}

	start := time.Now()
	results, err := sim.RunAll(cmd.Context(), jobs, workers)
	if err != nil {
		return err
	}
	logger.Info("compare complete", "runs", len(results), "elapsed", time.Since(start))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCENARIO\tIAE\tISE\tOVERSHOOT%\tSETTLING\tSATURATION\tEFFORT\tFINAL_PV")
	for i, res := range results {
		fmt.Fprintf(w, "%s\t%.4g\t%.4g\t%.2f\t%.2fs\t%.1f%%\t%.4g\t%.4g\n",
			jobs[i].Name,
			res.Metrics["iae"],
			res.Metrics["ise"],
			res.Metrics["overshoot_pct"],
			res.Metrics["settling_time"],
			100*res.Metrics["saturation"],
			res.Metrics["control_effort"],
			finalPV(res),
		)
	}
	return w.Flush()
}

func finalPV(res *dynamo.Result) float64 {
	if len(res.PV) == 0 {
		return math.NaN()
	}
	return res.PV[len(res.PV)-1]
}

func runSuite(cmd *cobra.Command, args []string) error {
	suite, err := automation.LoadSuite(args[0])
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	outcomes, err := automation.RunSuite(cmd.Context(), suite, experiment.NewRegistry(), logger, workers)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tID\tIAE\tOVERSHOOT%\tSETTLING")
	for _, o := range outcomes {
		runID, err := st.Save(o.Config, o.Result)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%.4g\t%.2f\t%.2fs\n",
			o.Name,
			runID,
			o.Result.Metrics["iae"],
			o.Result.Metrics["overshoot_pct"],
			o.Result.Metrics["settling_time"],
		)
	}
	return w.Flush()
}

func runSweep(cmd *cobra.Command, args []string) error {
	base, err := automation.PresetConfig(args[0])
	if err != nil {
		return err
	}

	results, err := automation.RunSweep(cmd.Context(), &automation.ParameterSweep{
		Base:      base,
		ParamName: sweepParam,
		ParamMin:  sweepMin,
		ParamMax:  sweepMax,
		NumSteps:  sweepSteps,
	}, experiment.NewRegistry(), logger, workers)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tIAE\tOVERSHOOT%%\tSETTLING\tSATURATION\tFINAL_PV\n", strings.ToUpper(sweepParam))
	for _, r := range results {
		fmt.Fprintf(w, "%.4g\t%.4g\t%.2f\t%.2fs\t%.1f%%\t%.4g\n",
			r.ParamValue,
			r.Metrics["iae"],
			r.Metrics["overshoot_pct"],
			r.Metrics["settling_time"],
			100*r.Metrics["saturation"],
			r.FinalPV,
		)
	}
	return w.Flush()
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	base, err := automation.PresetConfig(args[0])
	if err != nil {
		return err
	}

	results, err := automation.RunMonteCarlo(cmd.Context(), &automation.MonteCarloConfig{
		Base:         base,
		Perturbation: perturb,
		NumTrials:    trials,
		Seed:         seed,
	}, experiment.NewRegistry(), logger, workers)
	if err != nil {
		return err
	}

	settled := 0
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRIAL\tX0\tFINAL_PV\tIAE\tSETTLED")
	for _, r := range results {
		if r.Settled {
			settled++
		}
		fmt.Fprintf(w, "%d\t%.4g\t%.4g\t%.4g\t%t\n", r.TrialID, []float64(r.InitState), r.FinalPV, r.IAE, r.Settled)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nsettled: %d/%d\n", settled, len(results))
	return nil
}
