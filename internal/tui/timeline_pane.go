package tui

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/nexflow/internal/scheduler"
)

const labelWidth = 14

// TimelinePaneModel draws the schedule as a Gantt chart in a scrollable viewport.
type TimelinePaneModel struct {
	viewport viewport.Model
	result   *scheduler.ScheduleResult
	failure  error
	late     map[string]bool
	anchor   time.Time
	unit     time.Duration
	width    int
	height   int
	focused  bool
}

// NewTimelinePaneModel creates a timeline pane projecting unit 0 at anchor.
func NewTimelinePaneModel(anchor time.Time, unit time.Duration) TimelinePaneModel {
	return TimelinePaneModel{
		viewport: viewport.New(0, 0),
		late:     make(map[string]bool),
		anchor:   anchor,
		unit:     unit,
	}
}

// Update handles messages for the timeline pane.
func (m TimelinePaneModel) Update(msg tea.Msg) (TimelinePaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		m.viewport, cmd = m.viewport.Update(msg)
	}

	return m, cmd
}

// SetSchedule replaces the chart. A non-nil failure is shown instead of bars.
func (m *TimelinePaneModel) SetSchedule(result *scheduler.ScheduleResult, failure error, late []string) {
	m.result = result
	m.failure = failure
	m.late = make(map[string]bool, len(late))
	for _, id := range late {
		m.late[id] = true
	}
	m.refresh()
}

// SetUnit changes the wall-clock length of one schedule unit.
func (m *TimelinePaneModel) SetUnit(unit time.Duration) {
	m.unit = unit
	m.refresh()
}

func (m *TimelinePaneModel) refresh() {
	switch {
	case m.failure != nil:
		m.viewport.SetContent(StyleError.Render(describeFailure(m.failure)))
	case m.result == nil || len(m.result.Order) == 0:
		m.viewport.SetContent(StyleStatusBlocked.Render("Nothing scheduled yet."))
	default:
		m.viewport.SetContent(RenderGantt(m.result, m.viewport.Width, m.late, m.anchor, m.unit))
	}
}

// View renders the timeline pane.
func (m TimelinePaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		StyleTitle.Render("Timeline"),
		m.viewport.View(),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

// SetSize updates the pane dimensions.
func (m *TimelinePaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = max(20, w-4)
	m.viewport.Height = max(3, h-3)
	m.refresh()
}

// SetFocused updates the focus state.
func (m *TimelinePaneModel) SetFocused(focused bool) {
	m.focused = focused
}

// RenderGantt draws one bar per task in topological order, scaled so the
// project end fits width columns. Critical tasks use a heavier bar, zero
// duration tasks render as a milestone and late tasks get a marker.
func RenderGantt(result *scheduler.ScheduleResult, width int, late map[string]bool, anchor time.Time, unit time.Duration) string {
	chartWidth := max(10, width-labelWidth-8)

	scale := 0.0
	if result.ProjectEnd > 0 {
		scale = float64(chartWidth) / result.ProjectEnd
	}

	var b strings.Builder
	b.WriteString(axis(result.ProjectEnd, chartWidth, anchor, unit))

	for _, st := range result.Ordered() {
		label := st.Name
		if lipgloss.Width(label) > labelWidth {
			label = string([]rune(label)[:labelWidth-1]) + "…"
		}

		startCol := int(math.Round(st.Start * scale))
		barLen := int(math.Round(st.Duration * scale))

		var bar string
		switch {
		case st.Duration == 0:
			bar = "◆"
		case st.Critical:
			bar = strings.Repeat("█", max(1, barLen))
		default:
			bar = strings.Repeat("▓", max(1, barLen))
		}
		bar = StatusStyle(st.Status).Render(bar)

		line := fmt.Sprintf("%-*s %s%s", labelWidth, label, strings.Repeat(" ", min(startCol, chartWidth)), bar)
		if late[st.ID] {
			line += " " + StyleLate.Render("LATE")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(result.CriticalPath) > 0 {
		b.WriteString("\n")
		b.WriteString(StyleCritical.Render("critical: " + strings.Join(result.CriticalPath, " → ")))
	}
	return b.String()
}

// axis renders the start and end of the project as wall-clock times.
func axis(end float64, chartWidth int, anchor time.Time, unit time.Duration) string {
	const layout = "Jan 2 15:04"
	first := anchor.Format(layout)
	last := anchor.Add(time.Duration(end * float64(unit))).Format(layout)

	gap := max(1, chartWidth-len(first)-len(last))
	return StyleHelp.Render(fmt.Sprintf("%-*s %s%s%s", labelWidth, "", first, strings.Repeat(" ", gap), last)) + "\n"
}

// describeFailure renders scheduling errors in user-facing form.
func describeFailure(err error) string {
	var cycle *scheduler.CycleError
	if errors.As(err, &cycle) {
		return "Cannot schedule: dependency cycle " + strings.Join(cycle.Path, " → ")
	}
	return "Cannot schedule: " + err.Error()
}
