package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/pidloop/internal/control"
	"github.com/san-kum/pidloop/internal/dynamo"
	"github.com/san-kum/pidloop/internal/pid"
	"github.com/san-kum/pidloop/internal/sim"
)

const (
	frameRate       = 30
	historyCapacity = 240
	minSpeed        = 0.125
	retuneStep      = 1.1
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

var tuningNames = [...]string{"Kc", "tau_i", "tau_d"}

// Live steps a closed loop in real time and turns key presses into
// operator actions on its controller.
type Live struct {
	name  string
	sim   *sim.Simulator
	loop  *control.Loop // nil for open-loop scenarios
	x     dynamo.State
	step  int
	dt    float64
	speed float64 // simulated seconds per wall-clock second

	running  bool
	selected int
	status   string
	showHelp bool
	err      error

	sp, pv, u []float64
	last      dynamo.Sample
}

// NewLive prepares a live view of s starting from x0. loop must be the
// controller s was built with, or nil.
func NewLive(name string, s *sim.Simulator, loop *control.Loop, x0 dynamo.State, dt, speed float64) Live {
	if speed <= 0 {
		speed = 1
	}
	return Live{
		name:    name,
		sim:     s,
		loop:    loop,
		x:       x0.Clone(),
		dt:      dt,
		speed:   speed,
		running: true,
		sp:      make([]float64, 0, historyCapacity),
		pv:      make([]float64, 0, historyCapacity),
		u:       make([]float64, 0, historyCapacity),
	}
}

func (m Live) Init() tea.Cmd { return tick() }

func (m Live) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "?":
			m.showHelp = !m.showHelp
		case "t":
			NextTheme()
		case "+", "=":
			m.speed *= 2
		case "-", "_":
			m.speed = math.Max(m.speed/2, minSpeed)
		case "a":
			m.toggleMode()
		case "up", "k":
			m.nudgeSetPoint(1)
		case "down", "j":
			m.nudgeSetPoint(-1)
		case "right", "l":
			m.nudgeManual(1)
		case "left", "h":
			m.nudgeManual(-1)
		case "tab":
			m.selected = (m.selected + 1) % len(tuningNames)
		case "]":
			m.retune(retuneStep)
		case "[":
			m.retune(1 / retuneStep)
		}
	case TickMsg:
		if m.running && m.err == nil {
			m.advance(m.speed / frameRate)
		}
		return m, tick()
	}
	return m, nil
}

// advance simulates span seconds and records the last sample.
func (m *Live) advance(span float64) {
	steps := max(1, int(math.Round(span/m.dt)))
	for i := 0; i < steps; i++ {
		t := float64(m.step) * m.dt
		m.last = m.sim.Step(m.x, t)
		m.x = m.sim.Advance(m.x, m.last.U, t, m.dt)
		m.step++

		if !m.x.IsValid() {
			m.err = &dynamo.SimulationError{Step: m.step - 1, Time: t, State: m.x, Wrapped: dynamo.ErrInvalidState}
			m.running = false
			break
		}
	}

	m.sp = appendCapped(m.sp, m.last.SetPoint)
	m.pv = appendCapped(m.pv, m.last.PV)
	m.u = appendCapped(m.u, m.last.U)
}

func appendCapped(s []float64, v float64) []float64 {
	if len(s) == historyCapacity {
		copy(s, s[1:])
		s = s[:len(s)-1]
	}
	return append(s, v)
}

func (m *Live) controller() *pid.Controller {
	if m.loop == nil {
		m.status = "open loop: no controller"
		return nil
	}
	return m.loop.Controller()
}

// toggleMode switches modes without bumping the output: going manual
// holds the last output, going automatic resets from it.
func (m *Live) toggleMode() {
	c := m.controller()
	if c == nil {
		return
	}
	if c.Mode() == pid.Automatic {
		m.loop.SetManualOutput(c.Output())
		m.loop.SetMode(pid.Manual)
	} else {
		m.loop.SetMode(pid.Automatic)
	}
	m.status = "mode " + c.Mode().String()
}

func (m *Live) nudgeSetPoint(dir float64) {
	c := m.controller()
	if c == nil {
		return
	}
	c.SetSetPoint(c.SetPoint() + dir*c.InputLimits().Span()/100)
	m.status = fmt.Sprintf("setpoint %.4g", c.SetPoint())
}

func (m *Live) nudgeManual(dir float64) {
	c := m.controller()
	if c == nil {
		return
	}
	if c.Mode() == pid.Automatic {
		m.status = "output is automatic"
		return
	}
	lim := c.OutputLimits()
	u := m.loop.ManualOutput() + dir*lim.Span()/100
	m.loop.SetManualOutput(math.Min(math.Max(u, lim.Min), lim.Max))
	m.status = fmt.Sprintf("manual output %.4g", m.loop.ManualOutput())
}

func (m *Live) retune(factor float64) {
	c := m.controller()
	if c == nil {
		return
	}
	tn := c.Tunings()
	switch m.selected {
	case 0:
		tn.Kc *= factor
	case 1:
		tn.TauI *= factor
	case 2:
		tn.TauD *= factor
	}
	if err := c.SetTunings(tn.Kc, tn.TauI, tn.TauD); err != nil {
		m.status = err.Error()
		return
	}
	m.status = fmt.Sprintf("Kc=%.4g tau_i=%.4g tau_d=%.4g", tn.Kc, tn.TauI, tn.TauD)
}

func (m Live) View() string {
	st := stylesFor(CurrentTheme)

	var chart string
	if len(m.pv) > 1 {
		chart = asciigraph.PlotMany([][]float64{m.sp, m.pv},
			asciigraph.Height(12),
			asciigraph.Width(60),
			asciigraph.SeriesColors(asciigraph.Yellow, asciigraph.Green),
			asciigraph.SeriesLegends("setpoint", "process value"),
		)
		chart += "\n\n" + asciigraph.Plot(m.u,
			asciigraph.Height(4),
			asciigraph.Width(60),
			asciigraph.Caption("output"),
		)
	}
	graphView := st.graph.Render(chart)

	var s strings.Builder
	s.WriteString(st.header.Render(strings.ToUpper(m.name)) + "\n\n")

	switch {
	case m.err != nil:
		s.WriteString(st.alert.Render("DIVERGED") + "\n")
	case !m.running:
		s.WriteString(st.manual.Render("PAUSED") + "\n")
	default:
		s.WriteString(st.auto.Render("RUNNING") + fmt.Sprintf(" x%g\n", m.speed))
	}

	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.2fs", float64(m.step)*m.dt))
	row("Setpoint", fmt.Sprintf("%.4g", m.last.SetPoint))
	row("PV", fmt.Sprintf("%.4g", m.last.PV))
	row("Error", fmt.Sprintf("%.4g", m.last.Error()))
	row("Output", fmt.Sprintf("%.4g", m.last.U))

	if m.loop != nil {
		c := m.loop.Controller()
		lim := c.OutputLimits()
		s.WriteString(st.label.Render("") + ProgressBar((m.last.U-lim.Min)/lim.Span(), 20, st.auto) + "\n")

		mode := st.manual.Render("MANUAL")
		if c.Mode() == pid.Automatic {
			mode = st.auto.Render("AUTO")
		}
		row("Mode", mode)

		s.WriteString("\nTUNINGS\n")
		tn := c.Tunings()
		for i, v := range []float64{tn.Kc, tn.TauI, tn.TauD} {
			line := fmt.Sprintf("%-6s %.4g", tuningNames[i], v)
			if i == m.selected {
				s.WriteString(st.selected.Render("> "+line) + "\n")
			} else {
				s.WriteString("  " + st.value.Render(line) + "\n")
			}
		}
		row("Interval", fmt.Sprintf("%gs", c.Interval()))
		if n := m.loop.Rejected(); n > 0 {
			row("Rejected", st.alert.Render(fmt.Sprint(n)))
		}
	}

	if m.err != nil {
		s.WriteString("\n" + st.alert.Render(m.err.Error()) + "\n")
	} else if m.status != "" {
		s.WriteString("\n" + st.selected.Render(m.status) + "\n")
	}
	s.WriteString(st.hint.Render("SP:Pause A:Auto/Man Q:Quit ?:Help\n↑↓:Setpoint ←→:Output [ ]:Tune"))

	mainView := lipgloss.JoinHorizontal(lipgloss.Top, graphView, st.panel.Render(s.String()))
	if m.showHelp {
		return st.panel.Render(helpText) + "\n\n" + mainView
	}
	return mainView
}

const helpText = `KEYBOARD SHORTCUTS

  Space    Pause/Resume
  A        Toggle manual/automatic
  Up/K     Raise setpoint 1%
  Down/J   Lower setpoint 1%
  Right/L  Raise manual output 1%
  Left/H   Lower manual output 1%
  Tab      Select tuning parameter
  ]        Increase selected tuning 10%
  [        Decrease selected tuning 10%
  +/-      Faster/slower
  T        Cycle themes
  Q        Quit`

// RunLive runs m full screen until the operator quits.
func RunLive(m Live) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
