package viz

import (
	"fmt"
	"io"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/moldyn/internal/config"
)

// Opener builds a simulation from a configuration.
type Opener func(cfg *config.Config) (Simulation, error)

const (
	stateMenu = iota
	stateConfig
	stateSim
)

// tunable is a config field the picker can nudge up and down.
type tunable struct {
	name  string
	get   func(*config.Config) float64
	set   func(*config.Config, float64)
	step  float64
	ratio bool
}

var tunables = []tunable{
	{"particles", func(c *config.Config) float64 { return float64(c.Particles) },
		func(c *config.Config, v float64) { c.Particles = max(1, int(math.Round(v))) }, 2, true},
	{"density", func(c *config.Config) float64 { return c.Density },
		func(c *config.Config, v float64) { c.Density = v }, 0.05, false},
	{"temperature", func(c *config.Config) float64 { return c.Temperature },
		func(c *config.Config, v float64) { c.Temperature = v }, 0.1, false},
	{"dt", func(c *config.Config) float64 { return c.Dt },
		func(c *config.Config, v float64) { c.Dt = v }, 2, true},
	{"steps", func(c *config.Config) float64 { return float64(c.Steps) },
		func(c *config.Config, v float64) { c.Steps = max(1, int(math.Round(v))) }, 2, true},
}

type model struct {
	state, cursor int
	presets       []string
	cfg           *config.Config
	paramCursor   int
	open          Opener
	err           error
	live          Model
	started       bool
}

// NewInteractiveApp lists the presets, lets the user tune the chosen one and
// hands the result to open.
func NewInteractiveApp(open Opener) tea.Model {
	return model{
		state:   stateMenu,
		presets: config.ListPresets(),
		open:    open,
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch m.state {
		case stateMenu:
			return m.menuKey(key)
		case stateConfig:
			return m.configKey(key)
		}
	}
	if m.state == stateSim {
		next, cmd := m.live.Update(msg)
		m.live = next.(Model)
		return m, cmd
	}
	return m, nil
}

func (m model) menuKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.presets)-1 {
			m.cursor++
		}
	case "enter":
		if len(m.presets) == 0 {
			return m, nil
		}
		m.cfg = config.GetPreset(m.presets[m.cursor])
		m.paramCursor = 0
		m.err = nil
		m.state = stateConfig
	}
	return m, nil
}

func (m model) configKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.state = stateMenu
	case "up", "k":
		if m.paramCursor > 0 {
			m.paramCursor--
		}
	case "down", "j":
		if m.paramCursor < len(tunables)-1 {
			m.paramCursor++
		}
	case "left", "h":
		m.nudge(-1)
	case "right", "l":
		m.nudge(1)
	case "enter", "s":
		return m.start()
	}
	return m, nil
}

func (m *model) nudge(dir float64) {
	p := tunables[m.paramCursor]
	v := p.get(m.cfg)
	if p.ratio {
		v *= math.Pow(p.step, dir)
	} else {
		v += dir * p.step
	}
	if v > 0 {
		p.set(m.cfg, v)
	}
}

func (m model) start() (model, tea.Cmd) {
	if err := m.cfg.Validate(); err != nil {
		m.err = err
		return m, nil
	}
	sim, err := m.open(m.cfg)
	if err != nil {
		m.err = err
		return m, nil
	}
	m.live = NewModel(sim, m.cfg.Name, m.cfg.Steps)
	m.started = true
	m.state = stateSim
	return m, m.live.Init()
}

func (m model) View() string {
	switch m.state {
	case stateMenu:
		return m.viewMenu()
	case stateConfig:
		return m.viewConfig()
	case stateSim:
		return m.live.View()
	}
	return ""
}

func (m model) viewMenu() string {
	st := currentStyles()
	var b strings.Builder
	b.WriteString("\n\n    " + GradientText("MOLDYN", CurrentTheme.Primary, CurrentTheme.Secondary) + "\n")
	b.WriteString("    " + st.label.UnsetWidth().Render("molecular dynamics") + "\n\n")

	for i, name := range m.presets {
		cfg := config.Presets[name]
		desc := fmt.Sprintf("%dD  N=%-5d rho=%-5g %s", cfg.Dim, cfg.Particles, cfg.Density, cfg.Potential)
		if i == m.cursor {
			b.WriteString("    " + st.cursor.Render(fmt.Sprintf("▸ %-10s", name)) + " " + st.value.Render(desc) + "\n")
		} else {
			b.WriteString("    " + st.label.UnsetWidth().Render(fmt.Sprintf("  %-10s %s", name, desc)) + "\n")
		}
	}
	b.WriteString("\n    " + st.help.Render("j/k navigate  enter select  q quit") + "\n")
	return b.String()
}

func (m model) viewConfig() string {
	st := currentStyles()
	var b strings.Builder
	b.WriteString("\n\n    " + st.header.Render(strings.ToUpper(m.cfg.Name)) + "\n")
	b.WriteString(fmt.Sprintf("    %dD, %s potential\n\n", m.cfg.Dim, m.cfg.Potential))

	for i, p := range tunables {
		line := fmt.Sprintf("%-12s %10.4g", p.name, p.get(m.cfg))
		if i == m.paramCursor {
			b.WriteString("    " + st.cursor.Render("▸ "+line) + "\n")
		} else {
			b.WriteString("    " + st.label.UnsetWidth().Render("  "+line) + "\n")
		}
	}
	if m.err != nil {
		b.WriteString("\n    " + st.failure.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n    " + st.help.Render("j/k select  h/l adjust  enter start  esc back") + "\n")
	return b.String()
}

// RunInteractive runs the preset picker and the viewer it opens. A
// simulation that implements io.Closer is closed on exit.
func RunInteractive(open Opener) error {
	final, err := tea.NewProgram(NewInteractiveApp(open), tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}

	m, ok := final.(model)
	if !ok || !m.started {
		return nil
	}
	if c, ok := m.live.sim.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil {
			return cerr
		}
	}
	return m.live.err
}
