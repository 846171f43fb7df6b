package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/nexflow/internal/scheduler"
)

// SummaryPaneModel shows project progress: status counts, a progress bar,
// the projected finish and how many tasks are late.
type SummaryPaneModel struct {
	project    string
	total      int
	done       int
	inProgress int
	ready      int
	blocked    int
	late       int
	finish     time.Time
	scheduled  bool
	width      int
	height     int
	focused    bool
}

// NewSummaryPaneModel creates a new summary pane.
func NewSummaryPaneModel() SummaryPaneModel {
	return SummaryPaneModel{}
}

// Update handles messages for the summary pane.
func (m SummaryPaneModel) Update(msg tea.Msg) (SummaryPaneModel, tea.Cmd) {
	return m, nil
}

// SetSchedule recounts statuses from result. A nil result clears the counts
// but keeps the task total.
func (m *SummaryPaneModel) SetSchedule(project string, taskCount int, result *scheduler.ScheduleResult, late int, anchor time.Time, unit time.Duration) {
	m.project = project
	m.total = taskCount
	m.done, m.inProgress, m.ready, m.blocked = 0, 0, 0, 0
	m.late = late
	m.scheduled = result != nil
	if result == nil {
		return
	}

	for _, st := range result.Tasks {
		switch st.Status {
		case scheduler.StatusDone:
			m.done++
		case scheduler.StatusInProgress:
			m.inProgress++
		case scheduler.StatusReady:
			m.ready++
		default:
			m.blocked++
		}
	}
	m.finish = anchor.Add(time.Duration(result.ProjectEnd * float64(unit)))
}

// View renders the summary pane.
func (m SummaryPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Project " + m.project)
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("Total:       %d\n", m.total))
	b.WriteString(fmt.Sprintf("Done:        %s\n", StyleStatusDone.Render(fmt.Sprintf("%d", m.done))))
	b.WriteString(fmt.Sprintf("In progress: %s\n", StyleStatusInProgress.Render(fmt.Sprintf("%d", m.inProgress))))
	b.WriteString(fmt.Sprintf("Ready:       %s\n", StyleStatusReady.Render(fmt.Sprintf("%d", m.ready))))
	b.WriteString(fmt.Sprintf("Blocked:     %s\n", StyleStatusBlocked.Render(fmt.Sprintf("%d", m.blocked))))
	if m.late > 0 {
		b.WriteString(fmt.Sprintf("Late:        %s\n", StyleLate.Render(fmt.Sprintf("%d", m.late))))
	}

	b.WriteString("\n")

	if m.scheduled && m.total > 0 {
		barWidth := min(m.width-14, 40)
		doneWidth := (m.done * barWidth) / m.total
		inProgressWidth := (m.inProgress * barWidth) / m.total
		restWidth := barWidth - doneWidth - inProgressWidth

		bar := StyleStatusDone.Render(strings.Repeat("=", max(0, doneWidth)))
		bar += StyleStatusInProgress.Render(strings.Repeat("-", max(0, inProgressWidth)))
		bar += StyleStatusBlocked.Render(strings.Repeat(".", max(0, restWidth)))

		b.WriteString(fmt.Sprintf("[%s]  %d/%d\n", bar, m.done, m.total))
		b.WriteString(fmt.Sprintf("Finish: %s\n", m.finish.Format("Mon Jan 2 15:04")))
	} else if !m.scheduled && m.total > 0 {
		b.WriteString(StyleError.Render("Not schedulable"))
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

// SetSize updates the pane dimensions.
func (m *SummaryPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *SummaryPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
