package viz

import (
	"errors"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/san-kum/pidloop/internal/config"
	"github.com/san-kum/pidloop/internal/dynamo"
	"github.com/san-kum/pidloop/internal/experiment"
	"github.com/san-kum/pidloop/internal/pid"
)

func newLive(t *testing.T, plant, preset string) Live {
	t.Helper()
	cfg := config.GetPreset(plant, preset)
	exp, err := experiment.NewRegistry().Build(cfg, log.New(io.Discard))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return NewLive(cfg.Name, exp.Sim, exp.Loop, exp.X0, cfg.Dt, 3)
}

func send(m Live, msg tea.Msg) Live {
	next, _ := m.Update(msg)
	return next.(Live)
}

func key(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestLive_TickAdvances(t *testing.T) {
	m := newLive(t, "thermal", "oven")

	m = send(m, TickMsg{})
	// 3 simulated seconds per second at 30 fps and dt 0.05.
	if m.step != 2 {
		t.Errorf("expected 2 steps per tick, got %d", m.step)
	}
	if len(m.pv) != 1 {
		t.Errorf("expected one recorded frame, got %d", len(m.pv))
	}

	m = send(m, key(" "))
	m = send(m, TickMsg{})
	if m.step != 2 {
		t.Error("paused view should not advance")
	}
}

func TestLive_ToggleModeIsBumpless(t *testing.T) {
	m := newLive(t, "thermal", "oven")
	for i := 0; i < 50; i++ {
		m = send(m, TickMsg{})
	}
	c := m.loop.Controller()
	before := c.Output()

	m = send(m, key("a"))
	if c.Mode() != pid.Manual {
		t.Fatal("expected manual mode")
	}
	for i := 0; i < 20; i++ {
		m = send(m, TickMsg{})
		if m.last.U != before {
			t.Fatalf("manual output moved from %f to %f", before, m.last.U)
		}
	}

	m = send(m, key("a"))
	if c.Mode() != pid.Automatic {
		t.Fatal("expected automatic mode")
	}
	m = send(m, TickMsg{})
	if jump := m.last.U - before; jump > 0.05 || jump < -0.05 {
		t.Errorf("output jumped by %f on engage", jump)
	}
}

func TestLive_OperatorAdjustments(t *testing.T) {
	m := newLive(t, "thermal", "oven")
	c := m.loop.Controller()
	// the configured automatic mode applies on the first sample
	m = send(m, TickMsg{})

	m = send(m, key("up"))
	if c.SetPoint() != 82 {
		t.Errorf("expected setpoint 82 after one step of 1%% of 200, got %f", c.SetPoint())
	}

	m = send(m, key("right"))
	if m.status != "output is automatic" {
		t.Errorf("unexpected status %q", m.status)
	}

	m = send(m, key("tab"))
	m = send(m, key("]"))
	if tn := c.Tunings(); tn.TauI < 65.99 || tn.TauI > 66.01 {
		t.Errorf("expected tau_i retuned to 66, got %f", tn.TauI)
	}

	m = send(m, key("a"))
	m = send(m, key("right"))
	if m.loop.ManualOutput() <= c.Output() {
		t.Error("manual output should rise")
	}
}

func TestLive_OpenLoopHasNoController(t *testing.T) {
	m := newLive(t, "thermal", "step")

	m = send(m, key("a"))
	if !strings.Contains(m.status, "open loop") {
		t.Errorf("unexpected status %q", m.status)
	}
	m = send(m, TickMsg{})
	if !strings.Contains(m.View(), "STEP") {
		t.Error("view should show the scenario name")
	}
}

func TestLive_Quit(t *testing.T) {
	m := newLive(t, "thermal", "oven")
	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestAppendCapped(t *testing.T) {
	var s []float64
	for i := 0; i < historyCapacity+10; i++ {
		s = appendCapped(s, float64(i))
	}
	if len(s) != historyCapacity {
		t.Fatalf("expected %d values, got %d", historyCapacity, len(s))
	}
	if s[0] != 10 || s[len(s)-1] != float64(historyCapacity+9) {
		t.Errorf("expected the newest values, got %v..%v", s[0], s[len(s)-1])
	}
}

func TestDownsample(t *testing.T) {
	v := make([]float64, 1001)
	for i := range v {
		v[i] = float64(i)
	}

	d := downsample(v, 11)
	if len(d) != 11 || d[0] != 0 || d[5] != 500 || d[10] != 1000 {
		t.Errorf("unexpected samples %v", d)
	}
	if got := downsample(v[:5], 11); len(got) != 5 {
		t.Error("short series should be returned unchanged")
	}
}

func TestPlotResult(t *testing.T) {
	if PlotResult(&dynamo.Result{}, 40, 5) != "" {
		t.Error("empty result should render nothing")
	}

	res := &dynamo.Result{
		Times:     []float64{0, 1, 2},
		SetPoints: []float64{1, 1, 1},
		PV:        []float64{0, 0.6, 0.9},
		Outputs:   []float64{1, 0.5, 0.2},
		Steps:     3,
	}
	out := PlotResult(res, 40, 5)
	for _, want := range []string{"setpoint", "process value", "controller output"} {
		if !strings.Contains(out, want) {
			t.Errorf("plot missing %q", want)
		}
	}
}

func TestPicker(t *testing.T) {
	entries := []Entry{{Plant: "thermal", Preset: "oven"}, {Plant: "thermal", Preset: "broken"}}
	build := func(e Entry) (Live, error) {
		if e.Preset == "broken" {
			return Live{}, errors.New("no such preset")
		}
		return newLive(t, e.Plant, e.Preset), nil
	}

	var m tea.Model = NewPicker(entries, build)
	m, _ = m.Update(key("down"))
	m, _ = m.Update(key("enter"))
	if !strings.Contains(m.View(), "no such preset") {
		t.Error("build error should be shown")
	}

	m, _ = m.Update(key("up"))
	m, cmd := m.Update(key("enter"))
	if cmd == nil {
		t.Fatal("expected the live view to start ticking")
	}
	if !strings.Contains(m.View(), "OVEN") {
		t.Error("expected the live view of the picked scenario")
	}
}
