package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/nexflow/internal/scheduler"
	"github.com/aristath/nexflow/internal/workspace"
)

// TablePaneModel lists every task with its window, slack and status, and
// shows details of the selected task underneath.
type TablePaneModel struct {
	table    table.Model
	tasks    map[string]scheduler.Task
	result   *scheduler.ScheduleResult
	late     map[string]bool
	hideDone bool
	width    int
	height   int
	focused  bool
}

const detailHeight = 4

// NewTablePaneModel creates a new task table pane.
func NewTablePaneModel() TablePaneModel {
	t := table.New(
		table.WithColumns(tableColumns(80)),
		table.WithFocused(true),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("62"))
	t.SetStyles(styles)

	return TablePaneModel{
		table: t,
		tasks: make(map[string]scheduler.Task),
		late:  make(map[string]bool),
	}
}

// tableColumns sizes the columns for the given inner width. The name column
// absorbs whatever the fixed columns leave over.
func tableColumns(width int) []table.Column {
	fixed := []table.Column{
		{Title: "ID", Width: 10},
		{Title: "Name", Width: 0},
		{Title: "Owner", Width: 8},
		{Title: "Dur", Width: 5},
		{Title: "Start", Width: 6},
		{Title: "End", Width: 6},
		{Title: "Slack", Width: 6},
		{Title: "Status", Width: 11},
	}
	used := 0
	for _, c := range fixed {
		used += c.Width + 2 // cell padding
	}
	fixed[1].Width = max(8, width-used-2)
	return fixed
}

// Update handles messages for the table pane.
func (m TablePaneModel) Update(msg tea.Msg) (TablePaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		m.table, cmd = m.table.Update(msg)
	}

	return m, cmd
}

// SetSnapshot replaces the displayed tasks. late holds the ids of tasks that
// are running behind the wall clock.
func (m *TablePaneModel) SetSnapshot(snap *workspace.Snapshot, late []string) {
	m.tasks = make(map[string]scheduler.Task, len(snap.Tasks))
	for _, t := range snap.Tasks {
		m.tasks[t.ID] = t
	}
	m.result = snap.Result
	m.late = make(map[string]bool, len(late))
	for _, id := range late {
		m.late[id] = true
	}

	cursor := m.table.Cursor()
	m.table.SetRows(m.rows(snap.Tasks))
	if n := len(m.table.Rows()); cursor >= n && n > 0 {
		m.table.SetCursor(n - 1)
	}
}

// rows renders tasks in topological order when a schedule exists, otherwise
// in insertion order with empty schedule columns.
func (m TablePaneModel) rows(tasks []scheduler.Task) []table.Row {
	rows := make([]table.Row, 0, len(tasks))

	if m.result == nil {
		for _, t := range tasks {
			rows = append(rows, table.Row{t.ID, t.Name, t.Owner, formatDuration(t.Duration), "-", "-", "-", "-"})
		}
		return rows
	}

	scheduled := m.result.Ordered()
	if m.hideDone {
		scheduled = m.result.Pending()
	}
	for _, st := range scheduled {
		t := m.tasks[st.ID]
		status := st.Status.String()
		if m.late[st.ID] {
			status = "late"
		}
		slack := formatFloat(st.Slack)
		if st.Critical {
			slack += "*"
		}
		rows = append(rows, table.Row{
			st.ID,
			st.Name,
			t.Owner,
			formatFloat(st.Duration),
			formatFloat(st.Start),
			formatFloat(st.End),
			slack,
			status,
		})
	}
	return rows
}

// ToggleHideDone switches between all tasks and only the unfinished ones.
// Takes effect on the next SetSnapshot.
func (m *TablePaneModel) ToggleHideDone() {
	m.hideDone = !m.hideDone
}

// SelectedID returns the ID of the highlighted task, or "" if the table is empty.
func (m TablePaneModel) SelectedID() string {
	row := m.table.SelectedRow()
	if len(row) == 0 {
		return ""
	}
	return row[0]
}

// SelectedTask returns the highlighted task.
func (m TablePaneModel) SelectedTask() (scheduler.Task, bool) {
	t, ok := m.tasks[m.SelectedID()]
	return t, ok
}

// View renders the table pane.
func (m TablePaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(StyleTitle.Render("Tasks"))
	b.WriteString("\n")
	if len(m.tasks) == 0 {
		b.WriteString(StyleStatusBlocked.Render("No tasks yet. Press 'a' to add one."))
	} else if len(m.table.Rows()) == 0 {
		b.WriteString(StyleStatusBlocked.Render("Everything is done. Press 'h' to show finished tasks."))
	} else {
		b.WriteString(m.table.View())
		b.WriteString("\n")
		b.WriteString(m.details())
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// details describes the selected task: its dependencies and, when blocked,
// what it is waiting for.
func (m TablePaneModel) details() string {
	t, ok := m.SelectedTask()
	if !ok {
		return ""
	}

	var lines []string
	deps := "none"
	if len(t.DependsOn) > 0 {
		deps = strings.Join(t.DependsOn, ", ")
	}
	lines = append(lines, fmt.Sprintf("%s depends on: %s", t.ID, deps))

	if m.result != nil {
		if st, ok := m.result.Task(t.ID); ok {
			line := fmt.Sprintf("%s %s", StatusIcon(st.Status), StatusStyle(st.Status).Render(st.Status.String()))
			if len(st.WaitingFor) > 0 {
				line += fmt.Sprintf(" - waiting for %s to be completed", strings.Join(st.WaitingFor, ", "))
			}
			lines = append(lines, line)
			if st.Critical {
				lines = append(lines, StyleCritical.Render("on the critical path"))
			}
		}
	}
	if m.late[t.ID] {
		lines = append(lines, StyleLate.Render("running late"))
	}

	return strings.Join(lines, "\n")
}

// SetSize updates the pane dimensions.
func (m *TablePaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	inner := max(10, w-4)
	m.table.SetColumns(tableColumns(inner))
	m.table.SetWidth(inner)
	m.table.SetHeight(max(3, h-4-detailHeight))
}

// SetFocused updates the focus state.
func (m *TablePaneModel) SetFocused(focused bool) {
	m.focused = focused
	if focused {
		m.table.Focus()
	} else {
		m.table.Blur()
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}

func formatDuration(d *float64) string {
	if d == nil {
		return "?"
	}
	return formatFloat(*d)
}
