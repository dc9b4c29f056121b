package lockwindow

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// tickMsg carries a countdown view into the event loop.
type tickMsg View

// closeMsg carries the view after an out-of-band close attempt (SIGINT).
type closeMsg View

var (
	artStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	titleStyle  = lipgloss.NewStyle().Bold(true)
	timerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	frameStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 3)
)

// Model is the bubbletea model for the window. It owns no lock state; every
// transition goes through the Session.
type Model struct {
	session *Session
	input   textinput.Model
	view    View
	width   int
	height  int
}

// NewModel creates the window model for s.
func NewModel(s *Session) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "password"
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '*'
	ti.CharLimit = 1024
	ti.Width = 32
	ti.Focus()

	return Model{
		session: s,
		input:   ti,
		view:    s.View(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.view = View(msg)
		if m.view.State == Terminated {
			return m, tea.Quit
		}
		return m, nil

	case closeMsg:
		m.view = View(msg)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyCtrlBackslash, tea.KeyEsc:
			// The close affordance is never bound to a transition.
			m.view = m.session.CloseAttempt()
			return m, nil
		case tea.KeyEnter:
			ok := m.session.Submit(m.input.Value())
			m.input.Reset()
			m.view = m.session.View()
			if ok {
				return m, tea.Quit
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if m.view.State == Terminated {
		return ""
	}

	var b strings.Builder
	if m.view.OverlayVisible {
		b.WriteString(artStyle.Render(strings.Trim(overlayArt, "\n")))
		b.WriteString("\n\n")
	}
	b.WriteString(titleStyle.Render("Enter password to unlock:"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(timerStyle.Render(fmt.Sprintf("Time remaining: %ds", m.view.Remaining)))
	if m.view.Notice != "" {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render(m.view.Notice))
	}

	content := frameStyle.Render(b.String())
	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	return content
}
