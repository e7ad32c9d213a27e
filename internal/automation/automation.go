// Package automation runs batches of simulations: a parameter swept over a
// range, each value repeated with several seeds, spread over a pool of
// workers.
package automation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/moldyn/internal/analysis"
	"github.com/san-kum/moldyn/internal/config"
	"github.com/san-kum/moldyn/internal/experiment"
	"github.com/san-kum/moldyn/internal/props"
)

// SweepParams lists the parameters SetParam understands.
var SweepParams = []string{"density", "temperature", "dt", "particles", "cutoff"}

// Sweep runs Base at Points values of Param evenly spaced over [Min, Max],
// Replicas times each with seeds Base.Seed, Base.Seed+1, ...
type Sweep struct {
	Name     string        `yaml:"name"`
	Base     config.Config `yaml:"base"`
	Param    string        `yaml:"param"`
	Min      float64       `yaml:"min"`
	Max      float64       `yaml:"max"`
	Points   int           `yaml:"points"`
	Replicas int           `yaml:"replicas"`
	Workers  int           `yaml:"workers"`
}

// LoadSweep reads a sweep from YAML. Base fields that are not given keep
// their defaults.
func LoadSweep(path string) (*Sweep, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	sw := &Sweep{Base: *config.DefaultConfig(), Points: 1, Replicas: 1, Workers: 1}
	if err := yaml.Unmarshal(data, sw); err != nil {
		return nil, fmt.Errorf("automation: parse %s: %w", path, err)
	}
	return sw, nil
}

func (sw *Sweep) Validate() error {
	if err := sw.Base.Validate(); err != nil {
		return err
	}
	if err := SetParam(&config.Config{}, sw.Param, 1); err != nil {
		return err
	}
	switch {
	case sw.Points < 1:
		return fmt.Errorf("automation: points must be positive, got %d", sw.Points)
	case sw.Replicas < 1:
		return fmt.Errorf("automation: replicas must be positive, got %d", sw.Replicas)
	case sw.Max < sw.Min:
		return fmt.Errorf("automation: max %v below min %v", sw.Max, sw.Min)
	}
	return nil
}

// Values returns the swept parameter values.
func (sw *Sweep) Values() []float64 {
	if sw.Points == 1 {
		return []float64{sw.Min}
	}
	return floats.Span(make([]float64, sw.Points), sw.Min, sw.Max)
}

// SetParam assigns v to the named parameter of cfg.
func SetParam(cfg *config.Config, name string, v float64) error {
	switch name {
	case "density":
		cfg.Density = v
	case "temperature":
		cfg.Temperature = v
	case "dt":
		cfg.Dt = v
	case "particles":
		cfg.Particles = int(v + 0.5)
	case "cutoff":
		cfg.Cutoff = v
	default:
		return fmt.Errorf("automation: cannot sweep %q (want one of %v)", name, SweepParams)
	}
	return nil
}

// Trial is one replica at one parameter value.
type Trial struct {
	Index  int
	Value  float64
	Seed   int64
	Steps  int
	Report *analysis.Report
	Err    error
}

type Option func(*options)

type options struct {
	logger   *log.Logger
	progress func(done, total int)
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithProgress calls fn after each finished trial. Calls are serialized.
func WithProgress(fn func(done, total int)) Option {
	return func(o *options) { o.progress = fn }
}

// RunSweep runs every trial of sw and returns them in value-major order.
// A failing trial records its error and does not stop the others; only a
// canceled ctx ends the sweep early.
func RunSweep(ctx context.Context, sw *Sweep, opts ...Option) ([]Trial, error) {
	if err := sw.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: log.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	values := sw.Values()
	trials := make([]Trial, 0, len(values)*sw.Replicas)
	for _, v := range values {
		for r := 0; r < sw.Replicas; r++ {
			trials = append(trials, Trial{Index: len(trials), Value: v, Seed: sw.Base.Seed + int64(r)})
		}
	}

	workers := max(1, min(sw.Workers, len(trials)))
	jobs := make(chan int)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				runTrial(ctx, sw, &trials[idx])

				mu.Lock()
				done++
				if t := trials[idx]; t.Err != nil {
					o.logger.Warn("trial failed", sw.Param, t.Value, "seed", t.Seed, "err", t.Err)
				} else {
					o.logger.Debug("trial done", sw.Param, t.Value, "seed", t.Seed, "steps", t.Steps)
				}
				if o.progress != nil {
					o.progress(done, len(trials))
				}
				mu.Unlock()
			}
		}()
	}

	next := 0
feed:
	for ; next < len(trials); next++ {
		select {
		case jobs <- next:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		for i := next; i < len(trials); i++ {
			trials[i].Err = err
		}
		return trials, err
	}
	return trials, nil
}

func runTrial(ctx context.Context, sw *Sweep, t *Trial) {
	cfg := sw.Base
	cfg.Checkpoint = false
	cfg.Seed = t.Seed
	if err := SetParam(&cfg, sw.Param, t.Value); err != nil {
		t.Err = err
		return
	}

	r, err := experiment.New(&cfg, experiment.WithLogger(log.New(io.Discard)))
	if err != nil {
		t.Err = err
		return
	}
	defer r.Close()

	if err := r.Run(ctx, cfg.Steps); err != nil {
		t.Err = err
	}
	t.Steps = r.StepCount()

	summaries := r.Summaries()
	if len(summaries) == 0 && r.StepCount() > 0 {
		summaries = []props.Summary{r.Current()}
	}
	times := make([]float64, len(summaries))
	for i, s := range summaries {
		times[i] = cfg.Dt * float64(s.Step)
	}
	report, err := analysis.Analyze(summaries, times, cfg.Dim)
	if err != nil && !errors.Is(err, analysis.ErrNoData) && t.Err == nil {
		t.Err = err
	}
	t.Report = report
}

// Stats counts trials that finished and trials that failed.
func Stats(trials []Trial) (ok, failed int) {
	for _, t := range trials {
		if t.Err != nil {
			failed++
		} else {
			ok++
		}
	}
	return ok, failed
}

// Point merges the successful replicas at one parameter value. Spreads are
// taken across replicas.
type Point struct {
	Value         float64
	Replicas      int
	Failed        int
	Temperature   float64
	Pressure      float64
	PressureSD    float64
	Total         float64
	TotalSD       float64
	Potential     float64
	EnergyDriftSD float64
}

// Aggregate groups trials by value, keeping the order of first appearance.
func Aggregate(trials []Trial) []Point {
	var order []float64
	groups := make(map[float64][]Trial)
	for _, t := range trials {
		if _, seen := groups[t.Value]; !seen {
			order = append(order, t.Value)
		}
		groups[t.Value] = append(groups[t.Value], t)
	}

	points := make([]Point, 0, len(order))
	for _, v := range order {
		p := Point{Value: v}
		var temp, pres, total, pot, drift []float64
		for _, t := range groups[v] {
			if t.Err != nil || t.Report == nil {
				p.Failed++
				continue
			}
			temp = append(temp, t.Report.Temperature.Mean)
			pres = append(pres, t.Report.Pressure.Mean)
			total = append(total, t.Report.Total.Mean)
			pot = append(pot, t.Report.Potential.Mean)
			drift = append(drift, t.Report.Drift.Relative)
		}
		p.Replicas = len(pres)
		if p.Replicas > 0 {
			p.Temperature = stat.Mean(temp, nil)
			p.Pressure, p.PressureSD = meanStdDev(pres)
			p.Total, p.TotalSD = meanStdDev(total)
			p.Potential = stat.Mean(pot, nil)
			_, p.EnergyDriftSD = meanStdDev(drift)
		}
		points = append(points, p)
	}
	return points
}

func meanStdDev(xs []float64) (float64, float64) {
	if len(xs) < 2 {
		return stat.Mean(xs, nil), 0
	}
	return stat.MeanStdDev(xs, nil)
}
