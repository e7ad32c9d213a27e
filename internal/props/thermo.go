package props

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/san-kum/moldyn/internal/vector"
)

const DefaultStepAvg = 100

// Summary is one averaging window of thermodynamic properties, all per
// particle except pressure.
type Summary struct {
	Step        int     `json:"step"`
	VelSum      float64 `json:"vel_sum"`
	Kinetic     float64 `json:"kinetic"`
	KineticSD   float64 `json:"kinetic_sd"`
	Potential   float64 `json:"potential"`
	PotentialSD float64 `json:"potential_sd"`
	Total       float64 `json:"total"`
	TotalSD     float64 `json:"total_sd"`
	Pressure    float64 `json:"pressure"`
	PressureSD  float64 `json:"pressure_sd"`
}

// Thermo tracks velocity sum, kinetic, potential and total energy per particle
// and the virial pressure, averaged over windows of StepAvg steps.
type Thermo[D vector.Dimension] struct {
	density float64
	stepAvg int

	VelSum   Estimate
	Kinetic  Estimate
	Total    Estimate
	Pressure Estimate
	Pot      Estimate

	count    int
	step     int
	logger   *log.Logger
	observer func(Summary)

	mu      sync.Mutex
	history []Summary
}

type ThermoOption func(*thermoOptions)

type thermoOptions struct {
	logger   *log.Logger
	observer func(Summary)
}

func WithLogger(l *log.Logger) ThermoOption {
	return func(o *thermoOptions) { o.logger = l }
}

// WithObserver registers fn to receive every summary as it is produced.
func WithObserver(fn func(Summary)) ThermoOption {
	return func(o *thermoOptions) { o.observer = fn }
}

// NewThermo averages every stepAvg steps. density is the number density used
// for the pressure.
func NewThermo[D vector.Dimension](density float64, stepAvg int, opts ...ThermoOption) *Thermo[D] {
	o := thermoOptions{logger: log.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if stepAvg < 1 {
		stepAvg = DefaultStepAvg
	}
	return &Thermo[D]{
		density:  density,
		stepAvg:  stepAvg,
		logger:   o.logger,
		observer: o.observer,
	}
}

func (t *Thermo[D]) StepAvg() int { return t.stepAvg }

func (t *Thermo[D]) estimates() []*Estimate {
	return []*Estimate{&t.VelSum, &t.Kinetic, &t.Pot, &t.Total, &t.Pressure}
}

func (t *Thermo[D]) Reset() {
	for _, e := range t.estimates() {
		e.zero()
	}
	t.count = 0
}

func (t *Thermo[D]) Eval(u EnergySource, pos, vel []vector.Vector[D]) {
	n := len(vel)
	if n == 0 {
		for _, e := range t.estimates() {
			e.Val = 0
		}
		return
	}

	var vSum vector.Vector[D]
	var vvSum float64
	for _, v := range vel {
		vSum = vSum.Add(v)
		vvSum += v.SquareLength()
	}

	nf := float64(n)
	t.VelSum.Val = vSum.Length() / nf
	t.Kinetic.Val = 0.5 * vvSum / nf
	t.Pot.Val = u.USum() / nf
	t.Total.Val = t.Kinetic.Val + t.Pot.Val
	t.Pressure.Val = t.density * (vvSum + u.VirialSum()) / (nf * float64(vector.DimOf[D]()))
}

func (t *Thermo[D]) Accum() {
	for _, e := range t.estimates() {
		e.accum()
	}
	t.count++
}

func (t *Thermo[D]) NeedAvg(step int) bool {
	t.step = step
	return step%t.stepAvg == 0
}

func (t *Thermo[D]) Avg() {
	for _, e := range t.estimates() {
		e.avg(t.count)
	}
}

func (t *Thermo[D]) Summarize() {
	s := Summary{
		Step:        t.step,
		VelSum:      t.VelSum.Mean,
		Kinetic:     t.Kinetic.Mean,
		KineticSD:   t.Kinetic.StdDev,
		Potential:   t.Pot.Mean,
		PotentialSD: t.Pot.StdDev,
		Total:       t.Total.Mean,
		TotalSD:     t.Total.StdDev,
		Pressure:    t.Pressure.Mean,
		PressureSD:  t.Pressure.StdDev,
	}

	t.mu.Lock()
	t.history = append(t.history, s)
	t.mu.Unlock()

	t.logger.Info("props",
		"step", s.Step,
		"vsum", s.VelSum,
		"etot", s.Total,
		"etot_sd", s.TotalSD,
		"ekin", s.Kinetic,
		"press", s.Pressure,
	)
	if t.observer != nil {
		t.observer(s)
	}
}

// Current returns the values of the latest Eval, without deviations.
func (t *Thermo[D]) Current() Summary {
	return Summary{
		Step:      t.step,
		VelSum:    t.VelSum.Val,
		Kinetic:   t.Kinetic.Val,
		Potential: t.Pot.Val,
		Total:     t.Total.Val,
		Pressure:  t.Pressure.Val,
	}
}

// Summaries returns a copy of every summary produced so far.
func (t *Thermo[D]) Summaries() []Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Summary(nil), t.history...)
}

func (t *Thermo[D]) Last() (Summary, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.history) == 0 {
		return Summary{}, false
	}
	return t.history[len(t.history)-1], true
}
