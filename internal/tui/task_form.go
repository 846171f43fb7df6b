package tui

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/nexflow/internal/scheduler"
)

// TaskFormModel is the modal form for adding a task.
type TaskFormModel struct {
	form     *huh.Form
	existing []string // task IDs available as dependencies, in insertion order
	width    int
	height   int
	visible  bool
	done     bool // form completed; Task holds the result

	// Form field bindings (strings for Huh)
	id        string
	name      string
	duration  string
	owner     string
	dependsOn []string
}

// NewTaskFormModel creates a hidden add-task form.
func NewTaskFormModel() TaskFormModel {
	return TaskFormModel{}
}

// Open shows a fresh form. existing lists the task IDs that can be picked as
// dependencies and defaultDuration prefills the duration field.
func (m *TaskFormModel) Open(existing []string, defaultDuration float64) tea.Cmd {
	m.existing = existing
	m.visible = true
	m.done = false
	m.id = ""
	m.name = ""
	m.duration = strconv.FormatFloat(defaultDuration, 'g', -1, 64)
	m.owner = ""
	m.dependsOn = nil
	m.buildForm()
	m.resizeForm()
	return m.form.Init()
}

// buildForm constructs the Huh form. The dependency picker is only shown
// when there is something to depend on.
func (m *TaskFormModel) buildForm() {
	taken := make(map[string]bool, len(m.existing))
	for _, id := range m.existing {
		taken[id] = true
	}

	groups := []*huh.Group{
		huh.NewGroup(
			huh.NewInput().
				Key("id").
				Title("Task ID").
				Value(&m.id).
				Placeholder("design").
				Validate(func(s string) error {
					s = strings.TrimSpace(s)
					if s == "" {
						return errors.New("an ID is required")
					}
					if taken[s] {
						return fmt.Errorf("task %q already exists", s)
					}
					return nil
				}),

			huh.NewInput().
				Key("name").
				Title("Name").
				Value(&m.name).
				Placeholder("defaults to the ID"),

			huh.NewInput().
				Key("duration").
				Title("Duration").
				Value(&m.duration).
				Validate(func(s string) error {
					_, err := parseDuration(s)
					return err
				}),

			huh.NewInput().
				Key("owner").
				Title("Owner").
				Value(&m.owner),
		).Title("New Task"),
	}

	if len(m.existing) > 0 {
		groups = append(groups, huh.NewGroup(
			huh.NewMultiSelect[string]().
				Key("dependsOn").
				Title("Depends on").
				Options(huh.NewOptions(m.existing...)...).
				Value(&m.dependsOn),
		).Title("Dependencies"))
	}

	m.form = huh.NewForm(groups...)
}

// Update handles messages for the form.
func (m TaskFormModel) Update(msg tea.Msg) (TaskFormModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == KeyEsc {
		m.visible = false
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.visible = false
		m.done = true
	case huh.StateAborted:
		m.visible = false
	}

	return m, cmd
}

// Task returns the submitted task. ok is false until the form completes, and
// only true once per submission.
func (m *TaskFormModel) Task() (scheduler.Task, bool) {
	if !m.done {
		return scheduler.Task{}, false
	}
	m.done = false

	task := scheduler.Task{
		ID:        strings.TrimSpace(m.id),
		Name:      strings.TrimSpace(m.name),
		Owner:     strings.TrimSpace(m.owner),
		DependsOn: append([]string(nil), m.dependsOn...),
	}
	if d, err := parseDuration(m.duration); err == nil {
		task.Duration = scheduler.Float64(d)
	}
	return task, true
}

// View renders the form.
func (m TaskFormModel) View() string {
	if !m.visible {
		return ""
	}

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render("+ Add Task")

	body := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(m.width - 4).
		Height(m.height - 4).
		Render(m.form.View())

	return lipgloss.JoinVertical(lipgloss.Left, title, body)
}

// SetSize updates the dimensions of the form.
func (m *TaskFormModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeForm()
}

func (m *TaskFormModel) resizeForm() {
	if m.form != nil && m.width > 8 && m.height > 8 {
		m.form.WithWidth(m.width - 8).WithHeight(m.height - 8)
	}
}

// IsVisible returns whether the form is currently shown.
func (m TaskFormModel) IsVisible() bool {
	return m.visible
}

// parseDuration accepts a non-negative finite number.
func parseDuration(s string) (float64, error) {
	d, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.New("duration must be a number")
	}
	if d < 0 || math.IsInf(d, 0) || math.IsNaN(d) {
		return 0, errors.New("duration must be a non-negative number")
	}
	return d, nil
}
