package ui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twopl/pkg/concurrency/scheduler"
	"twopl/pkg/operation"
)

func runScenario(t *testing.T, ops ...operation.Operation) *scheduler.Result {
	t.Helper()
	s := scheduler.NewScheduler(scheduler.Options{RecordSnapshots: true})
	res, err := s.Run(context.Background(), ops)
	require.NoError(t, err)
	return res
}

func press(t *testing.T, m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelNavigation(t *testing.T) {
	res := runScenario(t,
		operation.NewWrite(1, "x"),
		operation.NewRead(2, "x"),
		operation.NewCommit(1),
	)
	m := NewModel("scenario-b", res)
	assert.Equal(t, 0, m.Cursor())

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, 1, m.Cursor())

	m, _ = press(t, m, runes("n"))
	m, _ = press(t, m, runes("n"))
	assert.Equal(t, 2, m.Cursor(), "stays on the last snapshot")

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	assert.Equal(t, 1, m.Cursor())

	m, _ = press(t, m, runes("G"))
	assert.Equal(t, 2, m.Cursor())

	m, _ = press(t, m, runes("g"))
	assert.Equal(t, 0, m.Cursor())

	m, _ = press(t, m, runes("p"))
	assert.Equal(t, 0, m.Cursor(), "stays on the first snapshot")
}

func TestModelView(t *testing.T) {
	res := runScenario(t,
		operation.NewWrite(1, "x"),
		operation.NewRead(2, "x"),
		operation.NewCommit(1),
	)
	m := NewModel("scenario-b", res)

	view := m.View()
	assert.Contains(t, view, "twopl scenario-b")
	assert.Contains(t, view, "step 1/3")
	assert.Contains(t, view, "input: w1(x)")
	assert.Contains(t, view, "lx1(x)")

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	view = m.View()
	assert.Contains(t, view, "step 2/3")
	assert.Contains(t, view, "r2(x)")

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnd})
	view = m.View()
	assert.Contains(t, view, "step 3/3")
	assert.Contains(t, view, "ux1(x)")
	assert.Contains(t, view, "6 operations in history, 0 pending at end")
}

func TestModelDeadlockStatus(t *testing.T) {
	res := runScenario(t,
		operation.NewRead(1, "x"),
		operation.NewRead(2, "y"),
		operation.NewWrite(1, "y"),
		operation.NewWrite(2, "x"),
	)
	view := NewModel("deadlock", res).View()
	assert.Contains(t, view, "deadlock: T1 -> T2 -> T1")
}

func TestModelEmptyRun(t *testing.T) {
	m := NewModel("empty", runScenario(t))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, 0, m.Cursor())
	assert.Contains(t, m.View(), "No operations were scheduled.")
}

func TestModelQuit(t *testing.T) {
	m := NewModel("quit", runScenario(t, operation.NewCommit(1)))
	_, cmd := press(t, m, runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
