package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/moldyn/internal/automation"
)

var (
	sweepFile     string
	sweepParam    string
	sweepMin      float64
	sweepMax      float64
	sweepPoints   int
	sweepReplicas int
	sweepJobs     int
)

func addSweepFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&sweepFile, "file", "", "sweep definition (yaml); other flags override it")
	f.StringVar(&sweepParam, "param", "temperature", fmt.Sprintf("parameter to sweep %v", automation.SweepParams))
	f.Float64Var(&sweepMin, "min", 0.5, "first value")
	f.Float64Var(&sweepMax, "max", 1.5, "last value")
	f.IntVar(&sweepPoints, "points", 5, "number of values")
	f.IntVar(&sweepReplicas, "replicas", 1, "seeds per value")
	f.IntVar(&sweepJobs, "jobs", runtime.NumCPU(), "simulations run at once")
}

func buildSweep(cmd *cobra.Command) (*automation.Sweep, error) {
	sw := &automation.Sweep{}
	if sweepFile != "" {
		loaded, err := automation.LoadSweep(sweepFile)
		if err != nil {
			return nil, err
		}
		sw = loaded
	}

	// A sweep file owns the base config unless config flags were given.
	if sweepFile == "" || configFile != "" || preset != "" || anyConfigFlag(cmd) {
		base, err := buildConfig(cmd)
		if err != nil {
			return nil, err
		}
		sw.Base = *base
	}

	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if sweepFile == "" || flags.Changed(name) {
			apply()
		}
	}
	set("param", func() { sw.Param = sweepParam })
	set("min", func() { sw.Min = sweepMin })
	set("max", func() { sw.Max = sweepMax })
	set("points", func() { sw.Points = sweepPoints })
	set("replicas", func() { sw.Replicas = sweepReplicas })
	set("jobs", func() { sw.Workers = sweepJobs })
	if sw.Name == "" {
		sw.Name = sw.Base.Name + "-" + sw.Param
	}

	return sw, sw.Validate()
}

func anyConfigFlag(cmd *cobra.Command) bool {
	for _, name := range []string{"dim", "particles", "density", "temperature", "dt", "steps",
		"potential", "cutoff", "workers", "step-avg", "seed", "checkpoint"} {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

func runSweep(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	sw, err := buildSweep(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Info("sweeping", "name", sw.Name, "param", sw.Param, "values", sw.Points, "replicas", sw.Replicas, "jobs", sw.Workers)
	trials, runErr := automation.RunSweep(ctx, sw,
		automation.WithLogger(logger),
		automation.WithProgress(func(done, total int) {
			logger.Info("progress", "done", done, "total", total)
		}),
	)
	if trials == nil {
		return runErr
	}

	ok, failed := automation.Stats(trials)
	fmt.Println(titleStyle.Render(sw.Name))
	fmt.Println(keyStyle.Render("trials") + valStyle.Render(fmt.Sprintf("%d ok, %d failed", ok, failed)))
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tOK\tFAILED\tTEMP\tPRESSURE\tTOTAL\tPOTENTIAL\tDRIFT SD\n", sw.Param)
	for _, p := range automation.Aggregate(trials) {
		if p.Replicas == 0 {
			fmt.Fprintf(w, "%g\t0\t%d\t-\t-\t-\t-\t-\n", p.Value, p.Failed)
			continue
		}
		fmt.Fprintf(w, "%g\t%d\t%d\t%.4f\t%.4f ± %.4f\t%.4f ± %.4f\t%.4f\t%.2e\n",
			p.Value, p.Replicas, p.Failed, p.Temperature,
			p.Pressure, p.PressureSD, p.Total, p.TotalSD, p.Potential, p.EnergyDriftSD)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}
