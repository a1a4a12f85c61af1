// Package tui is the terminal front end of the chat client.
package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/omochice/relay-chat/internal/client"
)

// MissingIdentityAlert is shown when Enter is pressed with an empty name.
const MissingIdentityAlert = "missing identity: enter a display name"

// chrome is the number of rows outside the log view.
const chrome = 6

// Connector starts a connection announcing a display name.
type Connector interface {
	Connect(name string) error
}

// Submitter sends the content of a composition input.
type Submitter interface {
	Submit(c client.Composer) client.Result
}

type focus int

const (
	focusName focus = iota
	focusMessage
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("247"))
	alertStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	logStyle    = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
)

// Model is the bubbletea model: a name input with its connect trigger, a
// message input with its send trigger and the append-only log.
type Model struct {
	relay string
	conn  Connector
	sub   Submitter

	name   textinput.Model
	msg    textinput.Model
	focus  focus
	log    viewport.Model
	ready  bool
	lines  []string
	state  client.State
	alert  string
	width  int
	height int
}

// New returns a Model talking to the relay at relay.
func New(relay string, conn Connector, sub Submitter) Model {
	name := textinput.New()
	name.Placeholder = "display name"
	name.Prompt = "name> "
	name.CharLimit = 64
	name.Focus()

	msg := textinput.New()
	msg.Placeholder = "message"
	msg.Prompt = "msg>  "

	return Model{
		relay: relay,
		conn:  conn,
		sub:   sub,
		name:  name,
		msg:   msg,
		state: client.StateIdle,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Lines returns the log content received so far.
func (m Model) Lines() []string {
	out := make([]string, len(m.lines))
	copy(out, m.lines)
	return out
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		h := max(msg.Height-chrome, 1)
		if !m.ready {
			m.log = viewport.New(max(msg.Width-4, 1), h)
			m.ready = true
		} else {
			m.log.Width = max(msg.Width-4, 1)
			m.log.Height = h
		}
		m.refresh()
		return m, nil

	case LineMsg:
		m.lines = append(m.lines, msg.Line)
		m.refresh()
		return m, nil

	case StateMsg:
		m.state = msg.State
		if msg.State == client.StateOpen && m.focus == focusName {
			return m, m.setFocus(focusMessage)
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "tab":
			if m.focus == focusName {
				return m, m.setFocus(focusMessage)
			}
			return m, m.setFocus(focusName)
		case "enter":
			if m.focus == focusName {
				m.connect()
				return m, nil
			}
			m.sub.Submit(&m.msg)
			return m, nil
		}
	}

	var cmd tea.Cmd
	if m.focus == focusName {
		m.name, cmd = m.name.Update(msg)
	} else {
		m.msg, cmd = m.msg.Update(msg)
	}
	return m, cmd
}

func (m *Model) connect() {
	err := m.conn.Connect(m.name.Value())
	var verr *client.ValidationError
	switch {
	case errors.As(err, &verr):
		m.alert = MissingIdentityAlert
	case err != nil:
		m.alert = err.Error()
	default:
		m.alert = ""
	}
}

func (m *Model) setFocus(f focus) tea.Cmd {
	m.focus = f
	if f == focusName {
		m.msg.Blur()
		return m.name.Focus()
	}
	m.name.Blur()
	return m.msg.Focus()
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.log.SetContent(strings.Join(m.lines, "\n"))
	m.log.GotoBottom()
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("relay-chat"))
	b.WriteString("  ")
	b.WriteString(statusStyle.Render("relay=" + m.relay + " state=" + m.state.String()))
	b.WriteString("\n")

	if m.ready {
		b.WriteString(logStyle.Width(max(m.width-2, 20)).Render(m.log.View()))
	} else {
		b.WriteString(strings.Join(m.lines, "\n"))
	}
	b.WriteString("\n")

	if m.alert != "" {
		b.WriteString(alertStyle.Render(m.alert))
	}
	b.WriteString("\n")
	b.WriteString(m.name.View())
	b.WriteString("\n")
	b.WriteString(m.msg.View())
	return b.String()
}
