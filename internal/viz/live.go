package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/moldyn/internal/props"
)

const (
	width           = 60
	height          = 20
	historyCapacity = 600
	maxStepsPerTick = 256
)

// Simulation is what the viewer needs from a running system.
type Simulation interface {
	Step() error
	Positions() [][]float64
	Extents() []float64
	TimeNow() float64
	StepCount() int
	Dim() int
	NumParticles() int
	Current() props.Summary
	Summaries() []props.Summary
	// CheckStability reports particles moving further than the box in one step.
	CheckStability() error
}

type TickMsg time.Time

// Model advances a Simulation on every tick and draws it next to its
// thermodynamic readout.
type Model struct {
	sim             Simulation
	name            string
	target          int
	stepsPerTick    int
	canvas          *Canvas
	camera          *Camera
	running         bool
	frame           int
	energyHistory   []float64
	pressureHistory []float64
	err             error
	showHelp        bool
}

// NewModel watches sim until it reaches target steps; target <= 0 runs
// until the user quits.
func NewModel(sim Simulation, name string, target int) Model {
	return Model{
		sim:             sim,
		name:            name,
		target:          target,
		stepsPerTick:    1,
		canvas:          NewCanvas(width, height),
		camera:          NewCamera(),
		running:         true,
		energyHistory:   make([]float64, 0, historyCapacity),
		pressureHistory: make([]float64, 0, historyCapacity),
	}
}

func (m Model) Err() error { return m.err }

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "s":
			if !m.running {
				m.advance(1)
			}
		case "]":
			m.stepsPerTick = min(maxStepsPerTick, m.stepsPerTick*2)
		case "[":
			m.stepsPerTick = max(1, m.stepsPerTick/2)
		case "t":
			NextTheme()
		case "x":
			m.camera.RotateX(0.1)
		case "X":
			m.camera.RotateX(-0.1)
		case "y":
			m.camera.RotateY(0.1)
		case "Y":
			m.camera.RotateY(-0.1)
		case "+", "=":
			m.camera.ZoomIn()
		case "-", "_":
			m.camera.ZoomOut()
		case "c":
			m.camera.Reset()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		m.frame++
		if m.running {
			m.advance(m.stepsPerTick)
		}
		return m, tick()
	}
	return m, nil
}

// advance runs up to n steps, stopping at the target or on the first error.
func (m *Model) advance(n int) {
	if m.err != nil {
		return
	}
	if m.target > 0 {
		n = min(n, m.target-m.sim.StepCount())
	}
	if n <= 0 {
		m.running = false
		return
	}

	for i := 0; i < n; i++ {
		err := m.sim.Step()
		if err == nil {
			err = m.sim.CheckStability()
		}
		if err != nil {
			m.err = err
			m.running = false
			break
		}
	}

	cur := m.sim.Current()
	m.energyHistory = appendCapped(m.energyHistory, cur.Total)
	m.pressureHistory = appendCapped(m.pressureHistory, cur.Pressure)

	if m.target > 0 && m.sim.StepCount() >= m.target {
		m.running = false
	}
}

func appendCapped(xs []float64, x float64) []float64 {
	if len(xs) == historyCapacity {
		copy(xs, xs[1:])
		xs = xs[:len(xs)-1]
	}
	return append(xs, x)
}

func (m Model) status(st styleSet) string {
	switch {
	case m.err != nil:
		return st.failure.Render("FAILED")
	case m.target > 0 && m.sim.StepCount() >= m.target:
		return st.running.Render("DONE")
	case !m.running:
		return st.paused.Render("PAUSED")
	}
	return st.running.Render(AnimatedSpinner(m.frame) + " RUNNING")
}

func (m Model) View() string {
	st := currentStyles()

	m.canvas.Clear()
	RenderParticles(m.canvas, m.camera, m.sim.Positions(), m.sim.Extents())
	canvasView := st.canvas.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(st.header.Render(strings.ToUpper(m.name)) + "\n")
	s.WriteString(m.status(st) + "\n")
	if m.target > 0 {
		frac := float64(m.sim.StepCount()) / float64(m.target)
		s.WriteString(ProgressBar(frac, 30) + fmt.Sprintf(" %3.0f%%", 100*frac) + "\n")
	}

	if len(m.energyHistory) > 1 {
		chart := asciigraph.Plot(m.energyHistory,
			asciigraph.Height(5), asciigraph.Width(30), asciigraph.Caption("E/N"))
		s.WriteString(st.graph.Render(chart) + "\n")
	}

	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}

	cur := m.sim.Current()
	row("Time", fmt.Sprintf("%.4f", m.sim.TimeNow()))
	row("Step", fmt.Sprintf("%d (x%d)", m.sim.StepCount(), m.stepsPerTick))
	row("Particles", fmt.Sprintf("%d in %dD", m.sim.NumParticles(), m.sim.Dim()))
	row("Kinetic", fmt.Sprintf("%.5f", cur.Kinetic))
	row("Potential", fmt.Sprintf("%.5f", cur.Potential))
	row("Total", fmt.Sprintf("%.5f", cur.Total))
	row("Pressure", fmt.Sprintf("%.5f", cur.Pressure))
	row("|Σv|/N", fmt.Sprintf("%.2e", cur.VelSum))
	if len(m.pressureHistory) > 1 {
		row("", SparklineChart(m.pressureHistory, 30))
	}

	if summaries := m.sim.Summaries(); len(summaries) > 0 {
		last := summaries[len(summaries)-1]
		s.WriteString("\n" + st.header.Render(fmt.Sprintf("AVERAGE @ %d", last.Step)) + "\n")
		row("Total", fmt.Sprintf("%.5f ± %.5f", last.Total, last.TotalSD))
		row("Kinetic", fmt.Sprintf("%.5f ± %.5f", last.Kinetic, last.KineticSD))
		row("Pressure", fmt.Sprintf("%.5f ± %.5f", last.Pressure, last.PressureSD))
	}

	if m.err != nil {
		s.WriteString("\n" + st.failure.Render(wrap(m.err.Error(), 40)) + "\n")
	}

	s.WriteString(st.help.Render("SP:Pause S:Step [ ]:Speed\nT:Theme Q:Quit ?:Help"))
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, st.stats.Render(s.String()))

	if m.showHelp {
		return helpText + "\n" + mainView
	}
	return mainView
}

const helpText = `
  Space    pause / resume
  S        single step while paused
  [ ]      halve / double steps per frame
  X Y      rotate about x / y (shift reverses)
  + -      zoom
  C        reset camera
  T        cycle themes
  Q        quit
`

func wrap(text string, w int) string {
	var b strings.Builder
	line := 0
	for _, word := range strings.Fields(text) {
		if line > 0 && line+1+len(word) > w {
			b.WriteByte('\n')
			line = 0
		} else if line > 0 {
			b.WriteByte(' ')
			line++
		}
		b.WriteString(word)
		line += len(word)
	}
	return b.String()
}

// Watch runs the viewer full screen until the user quits. It returns the
// first simulation error, if any.
func Watch(sim Simulation, name string, target int) error {
	final, err := tea.NewProgram(NewModel(sim, name, target), tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	if m, ok := final.(Model); ok {
		return m.err
	}
	return nil
}
