package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/san-kum/moldyn/internal/analysis"
	"github.com/san-kum/moldyn/internal/config"
	"github.com/san-kum/moldyn/internal/experiment"
	"github.com/san-kum/moldyn/internal/job"
	"github.com/san-kum/moldyn/internal/props"
	"github.com/san-kum/moldyn/internal/storage"
	"github.com/san-kum/moldyn/internal/viz"
)

var (
	dataDir  string
	logLevel string

	configFile string
	preset     string
	resumeID   string

	dim         int
	particles   int
	density     float64
	temperature float64
	dt          float64
	steps       int
	potential   string
	cutoff      float64
	workers     int
	stepAvg     int
	seed        int64
	checkpoint  bool

	property   string
	outputFile string
	svgFile    string
	cellsX     int
	cellsY     int
	svgScale   float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "moldyn",
		Short:        "molecular dynamics in one to four dimensions",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return viz.RunInteractive(openQuiet)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".moldyn", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation and store it",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().StringVar(&resumeID, "resume", "", "continue a stored run from its last checkpoint")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "run a simulation in the terminal viewer",
		Args:  cobra.NoArgs,
		RunE:  watchSimulation,
	}
	addConfigFlags(watchCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot averaged properties of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&property, "property", "total", "kinetic, potential, total or pressure")
	plotCmd.Flags().StringVar(&svgFile, "svg", "", "also write the mean series to an SVG file")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "energy conservation and property statistics",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata and properties to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default stdout)")

	archiveCmd := &cobra.Command{
		Use:   "archive [run_id]",
		Short: "compress the checkpoint log of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  archiveRun,
	}

	snapshotCmd := &cobra.Command{
		Use:   "snapshot [run_id]",
		Short: "render the last checkpoint of a run to SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  snapshotRun,
	}
	snapshotCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default <run_id>.svg)")
	snapshotCmd.Flags().IntVar(&cellsX, "width", 80, "canvas width in cells")
	snapshotCmd.Flags().IntVar(&cellsY, "height", 40, "canvas height in cells")
	snapshotCmd.Flags().Float64Var(&svgScale, "scale", 4, "pixels per braille dot")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run a parameter sweep with seed replicas",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addConfigFlags(sweepCmd)
	addSweepFlags(sweepCmd)

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	rootCmd.AddCommand(runCmd, watchCmd, sweepCmd, listCmd, plotCmd, analyzeCmd, exportCmd, archiveCmd, snapshotCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command) {
	d := config.DefaultConfig()
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file (yaml or gcfg)")
	f.StringVar(&preset, "preset", "", "start from a preset")
	f.IntVar(&dim, "dim", d.Dim, "spatial dimension (1-4)")
	f.IntVar(&particles, "particles", d.Particles, "number of particles")
	f.Float64Var(&density, "density", d.Density, "number density")
	f.Float64Var(&temperature, "temperature", d.Temperature, "initial temperature")
	f.Float64Var(&dt, "dt", d.Dt, "timestep")
	f.IntVar(&steps, "steps", d.Steps, "number of steps")
	f.StringVar(&potential, "potential", d.Potential, "pair potential (lj, wca, none)")
	f.Float64Var(&cutoff, "cutoff", 0, "interaction cutoff (0 picks the potential's default)")
	f.IntVar(&workers, "workers", 1, "force kernel goroutines")
	f.IntVar(&stepAvg, "step-avg", d.StepAvg, "steps per property average")
	f.Int64Var(&seed, "seed", d.Seed, "random seed")
	f.BoolVar(&checkpoint, "checkpoint", d.Checkpoint, "write a checkpoint log")
}

// buildConfig layers defaults, preset, config file and changed flags, in
// that order.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("dim") {
		cfg.Dim = dim
	}
	if flags.Changed("particles") {
		cfg.Particles = particles
	}
	if flags.Changed("density") {
		cfg.Density = density
	}
	if flags.Changed("temperature") {
		cfg.Temperature = temperature
	}
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("steps") {
		cfg.Steps = steps
	}
	if flags.Changed("potential") {
		cfg.Potential = potential
	}
	if flags.Changed("cutoff") {
		cfg.Cutoff = cutoff
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("step-avg") {
		cfg.StepAvg = stepAvg
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("checkpoint") {
		cfg.Checkpoint = checkpoint
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger() (*log.Logger, error) {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "moldyn",
		ReportTimestamp: true,
		Level:           level,
	})
	log.SetDefault(logger)
	return logger, nil
}

// openQuiet builds a runner whose logs would otherwise tear the alt screen.
func openQuiet(cfg *config.Config) (viz.Simulation, error) {
	return experiment.New(cfg, experiment.WithLogger(log.New(io.Discard)))
}

func watchSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	r, err := experiment.New(cfg, experiment.WithLogger(log.New(io.Discard)))
	if err != nil {
		return err
	}
	defer r.Close()
	return viz.Watch(r, cfg.Name, cfg.Steps)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	var (
		meta     *storage.RunMetadata
		cfg      *config.Config
		previous []props.Summary
		opts     = []experiment.Option{experiment.WithLogger(logger)}
	)

	if resumeID != "" {
		if meta, err = st.Load(resumeID); err != nil {
			return err
		}
		cfg = &meta.Config
		if cmd.Flags().Changed("steps") {
			cfg.Steps = steps
		}
		if err := st.Unarchive(meta.ID); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if previous, _, err = st.LoadSummaries(meta.ID); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		opts = append(opts, experiment.WithRestore(st.TrackPath(meta.ID)))
	} else {
		if cfg, err = buildConfig(cmd); err != nil {
			return err
		}
		if meta, err = st.Create(cfg); err != nil {
			return err
		}
		if cfg.Checkpoint {
			opts = append(opts, experiment.WithTrack(st.TrackPath(meta.ID)))
		}
	}

	r, err := experiment.New(cfg, opts...)
	if err != nil {
		meta.Status, meta.Error = storage.StatusFailed, err.Error()
		if serr := st.SaveMetadata(meta); serr != nil {
			logger.Error("saving metadata", "run", meta.ID, "err", serr)
		}
		return err
	}
	defer r.Close()

	if resumeID != "" && !r.Restored() {
		logger.Warn("no usable checkpoint, starting over", "run", meta.ID)
		previous = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Info("running", "run", meta.ID, "steps", cfg.Steps, "from", r.StepCount())
	start := time.Now()
	runErr := r.Run(ctx, cfg.Steps)
	elapsed := time.Since(start)

	switch {
	case runErr == nil:
		meta.Status, meta.Error = storage.StatusCompleted, ""
	case errors.Is(runErr, job.ErrCanceled):
		meta.Status, meta.Error = storage.StatusInterrupted, ""
	default:
		meta.Status, meta.Error = storage.StatusFailed, runErr.Error()
	}

	summaries := append(previous, r.Summaries()...)
	if err := st.SaveSummaries(meta.ID, cfg.Dt, summaries); err != nil {
		return err
	}

	meta.Particles = r.NumParticles()
	meta.StepCount = r.StepCount()
	meta.Time = r.TimeNow()
	meta.Extents = r.Extents()
	if report, err := analysis.Analyze(summaries, summaryTimes(summaries, cfg.Dt), cfg.Dim); err == nil {
		meta.Metrics = reportMetrics(report)
	}
	if err := st.SaveMetadata(meta); err != nil {
		return err
	}

	printRun(meta, elapsed)

	if meta.Status == storage.StatusFailed {
		return runErr
	}
	return nil
}

func summaryTimes(summaries []props.Summary, dt float64) []float64 {
	times := make([]float64, len(summaries))
	for i, s := range summaries {
		times[i] = dt * float64(s.Step)
	}
	return times
}

func reportMetrics(r *analysis.Report) map[string]float64 {
	return map[string]float64{
		"kinetic_mean":   r.Kinetic.Mean,
		"potential_mean": r.Potential.Mean,
		"total_mean":     r.Total.Mean,
		"total_sd":       r.Total.StdDev,
		"pressure_mean":  r.Pressure.Mean,
		"temperature":    r.Temperature.Mean,
		"energy_drift":   r.Drift.Relative,
		"drift_rate":     r.DriftRate,
		"max_vel_sum":    r.MaxVelSum,
	}
}

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(16)
	valStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

func printRun(meta *storage.RunMetadata, elapsed time.Duration) {
	status := valStyle.Render(meta.Status)
	if meta.Status != storage.StatusCompleted {
		status = badStyle.Render(meta.Status)
	}

	fmt.Println(titleStyle.Render(meta.ID))
	fmt.Println(keyStyle.Render("status") + status)
	fmt.Println(keyStyle.Render("elapsed") + valStyle.Render(elapsed.Round(time.Millisecond).String()))
	fmt.Println(keyStyle.Render("particles") + valStyle.Render(fmt.Sprintf("%d in %dD", meta.Particles, meta.Config.Dim)))
	fmt.Println(keyStyle.Render("steps") + valStyle.Render(fmt.Sprintf("%d (t=%.4f)", meta.StepCount, meta.Time)))
	if meta.Error != "" {
		fmt.Println(keyStyle.Render("error") + badStyle.Render(meta.Error))
	}
	printMetrics(meta.Metrics)
}
