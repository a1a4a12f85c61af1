package tui

import (
	"testing"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/relay-chat/internal/client"
)

var _ client.Composer = (*textinput.Model)(nil)

type fakeConnector struct {
	names []string
}

func (f *fakeConnector) Connect(name string) error {
	if name == "" {
		return &client.ValidationError{Field: "identity", Err: client.ErrMissingIdentity}
	}
	f.names = append(f.names, name)
	return nil
}

// fakeSubmitter mimics Channel.Submit with a fixed open/closed connection.
type fakeSubmitter struct {
	open bool
	sent []string
}

func (f *fakeSubmitter) Submit(c client.Composer) client.Result {
	text := c.Value()
	switch {
	case text == "":
		return client.ResultSkippedEmpty
	case !f.open:
		return client.ResultSkippedNotOpen
	}
	f.sent = append(f.sent, text)
	c.Reset()
	return client.ResultSent
}

func newTestModel() (Model, *fakeConnector, *fakeSubmitter) {
	conn := &fakeConnector{}
	sub := &fakeSubmitter{}
	return New("ws://localhost:8080/ws", conn, sub), conn, sub
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func key(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

func TestModel_EnterOnNameConnects(t *testing.T) {
	m, conn, _ := newTestModel()
	m.name.SetValue("Alice")

	m, _ = update(t, m, key(tea.KeyEnter))

	assert.Equal(t, []string{"Alice"}, conn.names)
	assert.Empty(t, m.alert)
}

func TestModel_EmptyNameShowsAlert(t *testing.T) {
	m, conn, _ := newTestModel()

	m, _ = update(t, m, key(tea.KeyEnter))

	assert.Empty(t, conn.names)
	assert.Equal(t, MissingIdentityAlert, m.alert)
	assert.Contains(t, m.View(), MissingIdentityAlert)

	m.name.SetValue("Alice")
	m, _ = update(t, m, key(tea.KeyEnter))
	assert.Empty(t, m.alert)
}

func TestModel_TypingGoesToFocusedInput(t *testing.T) {
	m, _, _ := newTestModel()

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("Al")})
	assert.Equal(t, "Al", m.name.Value())
	assert.Empty(t, m.msg.Value())

	m, _ = update(t, m, key(tea.KeyTab))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hi")})
	assert.Equal(t, "Al", m.name.Value())
	assert.Equal(t, "hi", m.msg.Value())

	m, _ = update(t, m, key(tea.KeyTab))
	assert.Equal(t, focusName, m.focus)
}

func TestModel_EnterOnMessageSubmits(t *testing.T) {
	m, _, sub := newTestModel()
	sub.open = true
	m, _ = update(t, m, StateMsg{State: client.StateOpen})
	require.Equal(t, focusMessage, m.focus)

	m.msg.SetValue("hello")
	m, _ = update(t, m, key(tea.KeyEnter))

	assert.Equal(t, []string{"hello"}, sub.sent)
	assert.Empty(t, m.msg.Value())
}

func TestModel_SubmitWhileNotOpenKeepsDraft(t *testing.T) {
	m, _, sub := newTestModel()
	m, _ = update(t, m, key(tea.KeyTab))

	m.msg.SetValue("hello")
	m, _ = update(t, m, key(tea.KeyEnter))

	assert.Empty(t, sub.sent)
	assert.Equal(t, "hello", m.msg.Value())
	assert.Empty(t, m.alert)
}

func TestModel_LinesAppendInOrder(t *testing.T) {
	m, _, _ := newTestModel()
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})

	for _, line := range []string{"Alice joined the chat", "[Bob]: hi", "[Alice]: hello"} {
		m, _ = update(t, m, LineMsg{Line: line})
	}

	assert.Equal(t, []string{"Alice joined the chat", "[Bob]: hi", "[Alice]: hello"}, m.Lines())
	assert.Contains(t, m.View(), "[Alice]: hello")
	assert.True(t, m.log.AtBottom())
}

func TestModel_LinesBeforeWindowSize(t *testing.T) {
	m, _, _ := newTestModel()

	m, _ = update(t, m, LineMsg{Line: "[Bob]: hi"})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})

	assert.Contains(t, m.View(), "[Bob]: hi")
}

func TestModel_StatusLine(t *testing.T) {
	m, _, _ := newTestModel()
	assert.Contains(t, m.View(), "state=idle")

	m, _ = update(t, m, StateMsg{State: client.StateConnecting})
	assert.Contains(t, m.View(), "state=connecting")
	assert.Equal(t, focusName, m.focus)

	m, _ = update(t, m, StateMsg{State: client.StateClosed})
	assert.Contains(t, m.View(), "state=closed")
}

func TestModel_Quit(t *testing.T) {
	for _, k := range []tea.KeyType{tea.KeyCtrlC, tea.KeyEsc} {
		m, _, _ := newTestModel()
		_, cmd := update(t, m, key(k))
		require.NotNil(t, cmd)
		assert.Equal(t, tea.Quit(), cmd())
	}
}
