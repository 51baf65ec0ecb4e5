package tui

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/snipsync/internal/ui"
	"github.com/sokinpui/snipsync/model"
	"github.com/sokinpui/snipsync/snipsync"
)

// Runner produces the summary the TUI displays.
type Runner interface {
	Execute(ctx context.Context) (model.Summary, error)
	SourceName() string
}

// --- Messages ---
type summaryMsg struct {
	model.Summary
}

type errorMsg struct{ err error }

func (e errorMsg) Error() string { return e.err.Error() }

// --- Model ---
type Model struct {
	runner  Runner
	ctx     context.Context
	cancel  context.CancelFunc
	spinner spinner.Model
	state   state
	summary summaryMsg
	err     error
}

type state int

const (
	stateProcessing state = iota
	stateCancelling
	stateSummary
	stateError
)

func New(runner Runner) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		runner:  runner,
		ctx:     ctx,
		cancel:  cancel,
		spinner: s,
		state:   stateProcessing,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runApp)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			// The first press stops after the item being written; the
			// summary of what was done still arrives. A second press quits.
			if m.state == stateProcessing {
				m.state = stateCancelling
				m.cancel()
				return m, nil
			}
			m.cancel()
			return m, tea.Quit
		}

	case summaryMsg:
		m.state = stateSummary
		m.summary = msg
		m.cancel()
		return m, tea.Quit

	case errorMsg:
		m.state = stateError
		m.err = msg
		m.cancel()
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		if m.state == stateProcessing || m.state == stateCancelling {
			m.spinner, cmd = m.spinner.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	switch m.state {
	case stateProcessing:
		return fmt.Sprintf("%s Applying reply from %s...", m.spinner.View(), m.runner.SourceName())
	case stateCancelling:
		return fmt.Sprintf("%s Cancelling...", m.spinner.View())
	case stateError:
		return ui.ErrorStyle.Render("Error: "+m.err.Error()) + "\n"
	case stateSummary:
		return ui.RenderSummary(m.summary.Summary)
	default:
		return ""
	}
}

// Err returns the error the run ended with, if any.
func (m Model) Err() error { return m.err }

// Finished reports whether the run delivered its summary.
func (m Model) Finished() bool { return m.state == stateSummary }

// Summary returns the summary of a finished run.
func (m Model) Summary() model.Summary { return m.summary.Summary }

func (m Model) runApp() tea.Msg {
	summary, err := m.runner.Execute(m.ctx)
	if err != nil {
		// Check for detailed error to print stack
		var e *snipsync.DetailedError
		if errors.As(err, &e) {
			// The TUI will exit, so we can print to stderr here for the stack trace.
			fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", e.Stack)
		}
		return errorMsg{err}
	}
	return summaryMsg{
		Summary: summary,
	}
}
