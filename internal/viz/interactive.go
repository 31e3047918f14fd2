package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// Entry is one scenario offered by the picker.
type Entry struct {
	Plant   string
	Preset  string
	Summary string
}

func (e Entry) String() string { return e.Plant + "/" + e.Preset }

// BuildFunc assembles the live view for a picked scenario.
type BuildFunc func(Entry) (Live, error)

type picker struct {
	entries []Entry
	cursor  int
	build   BuildFunc
	live    *Live
	err     error
}

func NewPicker(entries []Entry, build BuildFunc) tea.Model {
	return picker{entries: entries, build: build}
}

func (m picker) Init() tea.Cmd { return nil }

func (m picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.live != nil {
		next, cmd := m.live.Update(msg)
		live := next.(Live)
		m.live = &live
		return m, cmd
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}
	case "enter", " ":
		if len(m.entries) == 0 {
			return m, nil
		}
		live, err := m.build(m.entries[m.cursor])
		if err != nil {
			m.err = err
			return m, nil
		}
		m.live = &live
		return m, live.Init()
	}
	return m, nil
}

func (m picker) View() string {
	if m.live != nil {
		return m.live.View()
	}

	st := stylesFor(CurrentTheme)
	var s strings.Builder
	s.WriteString(st.header.Render("PIDLOOP") + "\n\n")
	for i, e := range m.entries {
		line := fmt.Sprintf("%-18s %s", e, e.Summary)
		if i == m.cursor {
			s.WriteString(st.selected.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + st.value.Render(line) + "\n")
		}
	}
	if m.err != nil {
		s.WriteString("\n" + st.alert.Render(m.err.Error()) + "\n")
	}
	s.WriteString(st.hint.Render("↑↓:Select Enter:Run Q:Quit"))
	return s.String()
}

// RunPicker shows the scenario menu and then the live view of the
// chosen scenario.
func RunPicker(entries []Entry, build BuildFunc) error {
	_, err := tea.NewProgram(NewPicker(entries, build), tea.WithAltScreen()).Run()
	return err
}
