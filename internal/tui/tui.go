// Package tui is the full-screen console: a scrollback of console events above a
// command input.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tldr-it-stepankutaj/reconkit/internal/console"
	"github.com/tldr-it-stepankutaj/reconkit/internal/event"
)

const (
	headerHeight = 2
	inputHeight  = 2
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	echoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8a8f98"))
)

// eventMsg carries a console event into the Bubble Tea loop.
type eventMsg struct{ ev event.Event }

type model struct {
	hub      console.Submitter
	input    textinput.Model
	viewport viewport.Model
	history  []string
	status   string
	ready    bool
	err      error
}

func newModel(hub console.Submitter) model {
	ti := textinput.New()
	ti.Placeholder = "type a command, 'help' for the reference, 'exit' to leave"
	ti.Prompt = console.Prompt
	ti.CharLimit = 4096
	ti.Width = 80
	ti.Focus()

	vp := viewport.New(80, 20)
	return model{hub: hub, input: ti, viewport: vp, status: "Ready."}
}

func (m model) Init() tea.Cmd { return textinput.Blink }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if console.IsExit(line) {
				return m, tea.Quit
			}
			if line == "" {
				return m, nil
			}
			m.append(echoStyle.Render(console.Prompt + line))
			if err := m.hub.Submit(line); err != nil {
				m.err = err
				return m, tea.Quit
			}
			m.status = "Sent: " + line
			return m, nil
		}
	case tea.WindowSizeMsg:
		height := msg.Height - headerHeight - inputHeight
		if height < 1 {
			height = 1
		}
		m.viewport.Width = msg.Width
		m.viewport.Height = height
		m.input.Width = msg.Width - len(console.Prompt) - 1
		m.ready = true
		m.refresh()
	case eventMsg:
		if text := console.Render(msg.ev); text != "" {
			m.append(text)
		}
		if _, failed := msg.ev.(event.ResponseError); failed {
			m.status = "Last command failed."
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *model) append(text string) {
	m.history = append(m.history, text)
	m.refresh()
}

func (m *model) refresh() {
	m.viewport.SetContent(strings.Join(m.history, "\n"))
	m.viewport.GotoBottom()
}

func (m model) View() string {
	header := headerStyle.Render("reconkit") + "  " + statusStyle.Render(m.status)
	return header + "\n\n" + m.viewport.View() + "\n" + m.input.View()
}

// Run starts the full-screen console and forwards every event from events into it
// until the operator leaves or ctx is done.
func Run(ctx context.Context, hub console.Submitter, events <-chan event.Event) error {
	p := tea.NewProgram(newModel(hub), tea.WithAltScreen(), tea.WithContext(ctx))

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case ev, ok := <-events:
				if !ok {
					p.Quit()
					return
				}
				p.Send(eventMsg{ev: ev})
			}
		}
	}()

	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(model); ok && m.err != nil {
		return m.err
	}
	return nil
}
