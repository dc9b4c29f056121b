package lockwindow

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func typeString(t *testing.T, m Model, s string) Model {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func TestModel_CloseKeysAreBlocked(t *testing.T) {
	s := NewSession(newConfig(t, "pw", 30, 3))
	m := NewModel(s)

	for _, k := range []tea.KeyType{tea.KeyCtrlC, tea.KeyEsc, tea.KeyCtrlD, tea.KeyCtrlBackslash} {
		var cmd tea.Cmd
		m, cmd = update(t, m, tea.KeyMsg{Type: k})
		assert.False(t, isQuit(cmd))
	}
	assert.Equal(t, Locked, s.State())
	assert.Equal(t, 4, s.View().CloseAttempts)
	assert.Contains(t, m.View(), NoticeCloseBlocked)
}

func TestModel_CorrectPasswordQuits(t *testing.T) {
	s := NewSession(newConfig(t, "abc123", 30, 3))
	m := NewModel(s)

	m = typeString(t, m, "abc123")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.True(t, isQuit(cmd))
	assert.Equal(t, ReasonPassword, s.Reason())
	assert.Empty(t, m.View())
}

func TestModel_WrongPasswordClearsInput(t *testing.T) {
	s := NewSession(newConfig(t, "abc123", 30, 3))
	m := NewModel(s)

	m = typeString(t, m, "nope")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.False(t, isQuit(cmd))
	assert.Equal(t, Locked, s.State())
	assert.Equal(t, "", m.input.Value())
	assert.Contains(t, m.View(), NoticeWrongPassword)
}

func TestModel_PasswordIsMasked(t *testing.T) {
	s := NewSession(newConfig(t, "abc123", 30, 3))
	m := typeString(t, NewModel(s), "secret")
	assert.NotContains(t, m.View(), "secret")
}

func TestModel_TickRendersCountdownAndOverlay(t *testing.T) {
	s := NewSession(newConfig(t, "pw", 5, 3))
	m := NewModel(s)

	m, cmd := update(t, m, tickMsg(s.Tick(0)))
	assert.Nil(t, cmd)
	view := m.View()
	assert.Contains(t, view, "Time remaining: 5s")
	assert.Contains(t, view, "|_____")

	m, _ = update(t, m, tickMsg(s.Tick(3)))
	view = m.View()
	assert.Contains(t, view, "Time remaining: 2s")
	assert.False(t, strings.Contains(view, "|_____"))
}

func TestModel_ExpiryQuits(t *testing.T) {
	s := NewSession(newConfig(t, "pw", 2, 0))
	m := NewModel(s)

	_, cmd := update(t, m, tickMsg(s.Tick(2)))
	assert.True(t, isQuit(cmd))
}

func TestModel_CloseMsgShowsNotice(t *testing.T) {
	s := NewSession(newConfig(t, "pw", 10, 0))
	m := NewModel(s)

	m, cmd := update(t, m, closeMsg(s.CloseAttempt()))
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), NoticeCloseBlocked)
	assert.Equal(t, Locked, s.State())
}
