package main

import (
	"fmt"
	"math"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/moldyn/internal/analysis"
	"github.com/san-kum/moldyn/internal/config"
	"github.com/san-kum/moldyn/internal/export"
	"github.com/san-kum/moldyn/internal/props"
	"github.com/san-kum/moldyn/internal/state"
	"github.com/san-kum/moldyn/internal/storage"
)

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
	fmt.Fprintln(w, "ID\tCREATED\tDIM\tN\tPOTENTIAL\tSTEPS\tTIME\tSTATUS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%d\t%.4f\t%s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Config.Dim,
			run.Particles,
			run.Config.Potential,
			run.StepCount,
			run.Time,
			run.Status,
		)
	}

	return w.Flush()
}

// propertySeries picks one averaged property and its spread.
func propertySeries(summaries []props.Summary, name string) (mean, sd []float64, err error) {
	var pick func(props.Summary) (float64, float64)
	switch name {
	case "kinetic":
		pick = func(s props.Summary) (float64, float64) { return s.Kinetic, s.KineticSD }
	case "potential":
		pick = func(s props.Summary) (float64, float64) { return s.Potential, s.PotentialSD }
	case "total":
		pick = func(s props.Summary) (float64, float64) { return s.Total, s.TotalSD }
	case "pressure":
		pick = func(s props.Summary) (float64, float64) { return s.Pressure, s.PressureSD }
	default:
		return nil, nil, fmt.Errorf("unknown property: %s", name)
	}

	mean = make([]float64, len(summaries))
	sd = make([]float64, len(summaries))
	for i, s := range summaries {
		mean[i], sd[i] = pick(s)
	}
	return mean, sd, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	summaries, times, err := st.LoadSummaries(runID)
	if err != nil {
		return err
	}

	if len(summaries) == 0 {
		return fmt.Errorf("no data to plot")
	}

	mean, sd, err := propertySeries(summaries, property)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("samples: %d (t=%.4f..%.4f)\n\n", len(summaries), times[0], times[len(times)-1])

	if len(mean) == 1 {
		fmt.Printf("%s: %.6f ± %.6f\n", property, mean[0], sd[0])
		return nil
	}

	lo := make([]float64, len(mean))
	hi := make([]float64, len(mean))
	for i := range mean {
		lo[i], hi[i] = mean[i]-sd[i], mean[i]+sd[i]
	}

	graph := asciigraph.PlotMany([][]float64{lo, mean, hi},
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption(property+" per particle"),
		asciigraph.SeriesColors(asciigraph.DarkGray, asciigraph.Green, asciigraph.DarkGray),
		asciigraph.SeriesLegends("-sd", "mean", "+sd"),
	)
	fmt.Println(graph)

	if svgFile != "" {
		doc, err := export.SeriesToSVG(times, mean, 640, 320, "#00ff9f")
		if err != nil {
			return err
		}
		if err := os.WriteFile(svgFile, []byte(doc), 0644); err != nil {
			return err
		}
		fmt.Printf("\nwrote %s\n", svgFile)
	}
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	summaries, times, err := st.LoadSummaries(runID)
	if err != nil {
		return err
	}

	report, err := analysis.Analyze(summaries, times, meta.Config.Dim)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render(meta.ID))
	fmt.Println(keyStyle.Render("samples") + valStyle.Render(fmt.Sprint(report.Samples)))

	row := func(name string, s analysis.Stat) {
		fmt.Println(keyStyle.Render(name) + valStyle.Render(
			fmt.Sprintf("%12.6f ± %-10.6f [%.6f, %.6f]", s.Mean, s.StdDev, s.Min, s.Max)))
	}
	row("kinetic", report.Kinetic)
	row("potential", report.Potential)
	row("total", report.Total)
	row("pressure", report.Pressure)
	row("temperature", report.Temperature)

	fmt.Println()
	fmt.Println(keyStyle.Render("energy drift") + valStyle.Render(
		fmt.Sprintf("%.3e (max deviation %.3e)", report.Drift.Relative, report.Drift.MaxDeviation)))
	fmt.Println(keyStyle.Render("drift rate") + valStyle.Render(fmt.Sprintf("%.3e per unit time", report.DriftRate)))
	fmt.Println(keyStyle.Render("max |Σv|/N") + valStyle.Render(fmt.Sprintf("%.3e", report.MaxVelSum)))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)

	if outputFile == "" {
		return st.ExportJSON(os.Stdout, args[0])
	}

	f, err := os.Create(outputFile)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := st.ExportJSON(f, args[0]); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", outputFile)
	return nil
}

func archiveRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	if _, err := st.Load(args[0]); err != nil {
		return err
	}

	path, err := st.Archive(args[0])
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	fmt.Printf("archived to %s (%d bytes)\n", path, info.Size())
	return nil
}

func snapshotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	rc, err := st.OpenTrack(runID)
	if err != nil {
		return fmt.Errorf("no checkpoint log for %s: %w", runID, err)
	}
	defer rc.Close()

	snap, err := state.LastSnapshot(rc)
	if err != nil {
		return err
	}

	extents := meta.Extents
	if len(extents) == 0 {
		extents = boxExtents(&meta.Config)
	}

	path := outputFile
	if path == "" {
		path = runID + ".svg"
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := export.WriteSnapshot(f, snap.Positions, extents, cellsX, cellsY, svgScale); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d particles at t=%.4f)\n", path, len(snap.Positions), snap.Time)
	return nil
}

// boxExtents rebuilds the cubic box of runs stored without extents.
func boxExtents(cfg *config.Config) []float64 {
	edge := math.Pow(float64(cfg.Particles)/cfg.Density, 1/float64(cfg.Dim))
	extents := make([]float64, cfg.Dim)
	for i := range extents {
		extents[i] = edge
	}
	return extents
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDIM\tN\tDENSITY\tTEMP\tDT\tSTEPS\tPOTENTIAL")
	for _, name := range config.ListPresets() {
		p := config.Presets[name]
		fmt.Fprintf(w, "%s\t%d\t%d\t%g\t%g\t%g\t%d\t%s\n",
			name, p.Dim, p.Particles, p.Density, p.Temperature, p.Dt, p.Steps, p.Potential)
	}
	return w.Flush()
}

func printMetrics(metrics map[string]float64) {
	if len(metrics) == 0 {
		return
	}
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %-16s %.6g\n", name, metrics[name])
	}
}
