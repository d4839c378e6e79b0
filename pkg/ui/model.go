package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"twopl/pkg/concurrency/scheduler"
	"twopl/pkg/render"
)

const (
	defaultWidth  = 80
	historyHeight = 8
	tableHeight   = 6
)

// Model steps through the snapshots recorded during one scheduling run.
type Model struct {
	name      string
	result    *scheduler.Result
	renderer  *render.Renderer
	lockTable table.Model
	history   viewport.Model
	help      help.Model
	keys      keyMap

	cursor int
	width  int
	height int
}

// NewModel creates a viewer positioned on the first snapshot of res.
func NewModel(name string, res *scheduler.Result) Model {
	t := table.New(
		table.WithColumns(lockColumns(defaultWidth)),
		table.WithFocused(false),
		table.WithHeight(tableHeight),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(primaryColor).
		BorderBottom(true).
		Bold(true).
		Foreground(primaryColor)
	s.Selected = lipgloss.NewStyle()
	t.SetStyles(s)

	vp := viewport.New(defaultWidth-6, historyHeight)
	vp.Style = historyStyle

	m := Model{
		name:      name,
		result:    res,
		renderer:  render.New(false, ""),
		lockTable: t,
		history:   vp,
		help:      help.New(),
		keys:      keys,
		width:     defaultWidth,
	}
	m.syncStep()
	return m
}

func lockColumns(width int) []table.Column {
	col := (width - 10) / 3
	if col < 10 {
		col = 10
	}
	return []table.Column{
		{Title: "Resource", Width: col},
		{Title: "Shared", Width: col},
		{Title: "Exclusive", Width: col},
	}
}

// Cursor returns the index of the snapshot on display.
func (m Model) Cursor() int {
	return m.cursor
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil

	case tea.KeyMsg:
		last := len(m.result.Snapshots) - 1
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Next):
			m.moveTo(min(m.cursor+1, last))
			return m, nil
		case key.Matches(msg, m.keys.Prev):
			m.moveTo(max(m.cursor-1, 0))
			return m, nil
		case key.Matches(msg, m.keys.First):
			m.moveTo(0)
			return m, nil
		case key.Matches(msg, m.keys.Last):
			m.moveTo(max(last, 0))
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.history, cmd = m.history.Update(msg)
	return m, cmd
}

func (m *Model) moveTo(step int) {
	if step == m.cursor || step < 0 || step >= len(m.result.Snapshots) {
		return
	}
	m.cursor = step
	m.syncStep()
}

// syncStep loads the lock table and history of the current snapshot.
func (m *Model) syncStep() {
	if len(m.result.Snapshots) == 0 {
		m.lockTable.SetRows(nil)
		m.history.SetContent("")
		return
	}
	snap := m.result.Snapshots[m.cursor]

	rows := make([]table.Row, 0, len(snap.Locks))
	for _, rs := range snap.Locks {
		shared, exclusive := render.Owners(rs)
		rows = append(rows, table.Row{string(rs.Resource), shared, exclusive})
	}
	m.lockTable.SetRows(rows)

	var b strings.Builder
	for i, op := range m.result.History[:snap.HistoryLen] {
		fmt.Fprintf(&b, "%3d  %s\n", i+1, m.renderer.Operation(op))
	}
	m.history.SetContent(b.String())
	m.history.GotoBottom()
}

func (m *Model) updateLayout() {
	m.lockTable.SetColumns(lockColumns(m.width))
	m.history.Width = m.width - 6

	if h := m.height - tableHeight - 16; h > 3 {
		m.history.Height = h
	}
}

func (m Model) View() string {
	sections := []string{m.renderHeader()}

	if len(m.result.Snapshots) == 0 {
		sections = append(sections, lipgloss.NewStyle().Foreground(textMuted).Render("No operations were scheduled."))
	} else {
		snap := m.result.Snapshots[m.cursor]
		sections = append(sections,
			labelStyle.Render("Locks"),
			m.lockTable.View(),
			labelStyle.Render("Waiting")+" "+waitingStyle.Render(m.renderer.WaitQueue(snap.Waiting)),
			labelStyle.Render("History"),
			m.history.View(),
		)
	}

	sections = append(sections, m.renderStatusBar(), m.help.View(m.keys))
	return appStyle.Render(strings.Join(sections, "\n"))
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("twopl " + m.name)
	if len(m.result.Snapshots) == 0 {
		return title
	}

	snap := m.result.Snapshots[m.cursor]
	badge := stepBadgeStyle.Render(fmt.Sprintf("step %d/%d", m.cursor+1, len(m.result.Snapshots)))
	input := lipgloss.NewStyle().
		Foreground(textSecondary).
		Render("input: " + m.renderer.Operation(snap.Input))

	return lipgloss.JoinHorizontal(lipgloss.Left, title, "  ", badge, input)
}

func (m Model) renderStatusBar() string {
	status := fmt.Sprintf("%d operations in history, %d pending at end",
		len(m.result.History), len(m.result.Pending))
	if len(m.result.Deadlock) > 0 {
		status += " | deadlock: " + m.renderer.Cycle(m.result.Deadlock)
	}

	width := m.width - 4
	if width < 0 {
		width = 0
	}
	return statusBarStyle.Width(width).Render(status)
}

// Run shows the viewer until the user quits or ctx is done. A nil in reads
// keys from the controlling terminal, for when stdin carried the log.
func Run(ctx context.Context, name string, res *scheduler.Result, in io.Reader, out io.Writer) error {
	p := tea.NewProgram(NewModel(name, res), programOptions(ctx, in, out)...)
	_, err := p.Run()
	return err
}

func programOptions(ctx context.Context, in io.Reader, out io.Writer) []tea.ProgramOption {
	input := tea.WithInputTTY()
	if in != nil {
		input = tea.WithInput(in)
	}
	return []tea.ProgramOption{
		tea.WithContext(ctx),
		input,
		tea.WithOutput(out),
		tea.WithAltScreen(),
	}
}
