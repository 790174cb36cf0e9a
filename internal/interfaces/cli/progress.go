package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"gdm.sh/cli/internal/core/ports"
)

var (
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// runWithProgress executes op with a live per-plugin progress display when
// stdout is a terminal, or plain line output otherwise. op's error is always
// the one returned; display failures degrade to plain output.
func runWithProgress(out io.Writer, op func(ports.ProgressReporter) error) error {
	if f, ok := out.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		return op(&plainReporter{out: out})
	}

	program := tea.NewProgram(newProgressModel())
	done := make(chan error, 1)
	go func() {
		err := op(&teaReporter{program: program})
		program.Send(opFinishedMsg{})
		done <- err
	}()

	if _, err := program.Run(); err != nil {
		// The display failed; the operation still runs to completion.
		fmt.Fprintf(os.Stderr, "progress display failed: %v\n", err)
	}
	return <-done
}

// plainReporter prints one line per lifecycle event, for pipes and CI.
type plainReporter struct {
	out io.Writer
}

func (r *plainReporter) Start(name string) {
	fmt.Fprintf(r.out, "fetching %s\n", name)
}

func (r *plainReporter) Done(name string, err error) {
	if err != nil {
		fmt.Fprintf(r.out, "failed %s: %v\n", name, err)
		return
	}
	fmt.Fprintf(r.out, "done %s\n", name)
}

// teaReporter forwards lifecycle events into the running Bubble Tea program.
type teaReporter struct {
	program *tea.Program
}

func (r *teaReporter) Start(name string)           { r.program.Send(startedMsg{name: name}) }
func (r *teaReporter) Done(name string, err error) { r.program.Send(doneMsg{name: name, err: err}) }

type startedMsg struct{ name string }

type doneMsg struct {
	name string
	err  error
}

type opFinishedMsg struct{}

type spinTickMsg time.Time

type pluginState int

const (
	stateRunning pluginState = iota
	stateDone
	stateFailed
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// progressModel renders one line per plugin with a spinner while its fetch
// is in flight and a final mark once it settles.
type progressModel struct {
	order    []string
	state    map[string]pluginState
	errs     map[string]error
	frame    int
	finished bool
}

func newProgressModel() progressModel {
	return progressModel{
		state: map[string]pluginState{},
		errs:  map[string]error{},
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.tick()
}

func (m progressModel) tick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(t time.Time) tea.Msg {
		return spinTickMsg(t)
	})
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case startedMsg:
		if _, seen := m.state[msg.name]; !seen {
			m.order = append(m.order, msg.name)
			sort.Strings(m.order)
		}
		m.state[msg.name] = stateRunning
		return m, nil

	case doneMsg:
		if msg.err != nil {
			m.state[msg.name] = stateFailed
			m.errs[msg.name] = msg.err
		} else {
			m.state[msg.name] = stateDone
		}
		return m, nil

	case opFinishedMsg:
		m.finished = true
		return m, tea.Quit

	case spinTickMsg:
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, m.tick()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m progressModel) View() string {
	if len(m.order) == 0 {
		if m.finished {
			return ""
		}
		return dimStyle.Render("resolving...") + "\n"
	}

	var b strings.Builder
	for _, name := range m.order {
		switch m.state[name] {
		case stateRunning:
			fmt.Fprintf(&b, "%s %s\n", runningStyle.Render(spinnerFrames[m.frame]), name)
		case stateDone:
			fmt.Fprintf(&b, "%s %s\n", okStyle.Render("✓"), name)
		case stateFailed:
			fmt.Fprintf(&b, "%s %s %s\n", failStyle.Render("✗"), name,
				dimStyle.Render(m.errs[name].Error()))
		}
	}
	return b.String()
}
