package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/fiber-runtime/fiber"
	"github.com/wippyai/fiber-runtime/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	fiberStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	deadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	stateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// interactiveModel renders the live state of one runtime.Program - fiber
// list plus the shared asyncify state - and lets the user advance it one
// Driver dispatch (a single poll_oneoff batch, at most) at a time. A direct,
// inspectable rendering of the driver loop spec.md §8 describes.
type interactiveModel struct {
	filename string
	cfg      runtime.ProgramConfig

	rt   *runtime.Runtime
	prog *runtime.Program

	err    error
	done   bool
	status uint32

	steps int
	log   []string
}

func newInteractiveModel(filename string, cfg runtime.ProgramConfig) *interactiveModel {
	return &interactiveModel{filename: filename, cfg: cfg}
}

type loadedMsg struct {
	err  error
	rt   *runtime.Runtime
	prog *runtime.Program
}

type stepMsg struct {
	err    error
	done   bool
	status uint32
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadProgram
}

func (m *interactiveModel) loadProgram() tea.Msg {
	ctx := context.Background()

	data, err := os.ReadFile(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}

	rt, err := runtime.New(ctx, &runtime.Config{})
	if err != nil {
		return loadedMsg{err: err}
	}

	prog, err := rt.LoadFiberModule(ctx, data, m.cfg)
	if err != nil {
		rt.Close(ctx)
		return loadedMsg{err: err}
	}

	return loadedMsg{rt: rt, prog: prog}
}

func (m *interactiveModel) step() tea.Msg {
	done, status, err := m.prog.Step(context.Background())
	return stepMsg{done: done, status: status, err: err}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.close()
			return m, tea.Quit

		case "enter", "s":
			if m.prog != nil && !m.done {
				return m, m.step
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.rt, m.prog = msg.rt, msg.prog
		m.log = append(m.log, "loaded "+m.filename)

	case stepMsg:
		m.steps++
		if msg.err != nil {
			m.err = msg.err
			m.done = true
			m.log = append(m.log, fmt.Sprintf("step %d: error: %v", m.steps, msg.err))
			return m, nil
		}
		m.done = msg.done
		m.status = msg.status
		if m.done {
			m.log = append(m.log, fmt.Sprintf("step %d: program exited, status=%d", m.steps, m.status))
		} else {
			m.log = append(m.log, fmt.Sprintf("step %d: dispatched", m.steps))
		}
	}

	return m, nil
}

func (m *interactiveModel) close() {
	ctx := context.Background()
	if m.prog != nil {
		m.prog.Close(ctx)
	}
	if m.rt != nil {
		m.rt.Close(ctx)
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Fiber Runtime"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("q quit"))
		return b.String()
	}

	if m.prog == nil {
		b.WriteString("Loading...")
		return b.String()
	}

	b.WriteString(stateStyle.Render(fmt.Sprintf("asyncify state: %s", m.prog.RuntimeState().Cached())))
	b.WriteString("\n\n")

	b.WriteString("Fibers:\n")
	for _, f := range m.prog.Fibers() {
		style := fiberStyle
		if f.Dead() {
			style = deadStyle
		}
		b.WriteString("  " + style.Render(fiberSummary(f)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.done {
		b.WriteString(resultStyle.Render(fmt.Sprintf("Program exited, status=%d", m.status)))
		b.WriteString("\n\n")
	} else {
		b.WriteString("Recent steps:\n")
		start := 0
		if len(m.log) > 8 {
			start = len(m.log) - 8
		}
		for _, line := range m.log[start:] {
			b.WriteString("  " + helpStyle.Render(line) + "\n")
		}
		b.WriteString("\n")
	}

	if m.done {
		b.WriteString(helpStyle.Render("q quit"))
	} else {
		b.WriteString(helpStyle.Render("enter/s step • q quit"))
	}
	return b.String()
}

// fiberSummary renders one fiber's name and scheduling status the way the
// fiber list line (and, so they stay consistent, a future non-TUI dump)
// would.
func fiberSummary(f *fiber.Fiber) string {
	switch {
	case f.Dead():
		return f.Name + " [dead]"
	case f.Resumable():
		return f.Name + " [suspended]"
	default:
		return f.Name + " [ready]"
	}
}

func runInteractive(filename string, cfg runtime.ProgramConfig) error {
	p := tea.NewProgram(newInteractiveModel(filename, cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
