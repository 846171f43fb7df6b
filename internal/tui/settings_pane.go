package tui

import (
	"fmt"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/nexflow/internal/config"
)

// SettingsPaneModel manages the settings form overlay.
type SettingsPaneModel struct {
	form        *huh.Form
	config      *config.NexflowConfig
	globalPath  string
	projectPath string
	width       int
	height      int
	visible     bool
	saved       bool
	err         error

	// Form field bindings (strings for Huh)
	saveTarget      string
	removalPolicy   string
	timeUnit        string
	defaultDuration string
	logLevel        string
}

// NewSettingsPaneModel creates a new settings pane.
func NewSettingsPaneModel(cfg *config.NexflowConfig, globalPath, projectPath string) SettingsPaneModel {
	m := SettingsPaneModel{
		config:      cfg,
		globalPath:  globalPath,
		projectPath: projectPath,
	}
	m.loadFields()
	m.buildForm()
	return m
}

// loadFields copies config values into the form bindings.
func (m *SettingsPaneModel) loadFields() {
	m.saveTarget = "global"
	m.removalPolicy = m.config.Scheduler.RemovalPolicy
	m.timeUnit = time.Duration(m.config.Scheduler.TimeUnit).String()
	m.defaultDuration = strconv.FormatFloat(m.config.Scheduler.DefaultDuration, 'g', -1, 64)
	m.logLevel = m.config.Log.Level
}

// buildForm constructs the Huh form with all settings fields.
func (m *SettingsPaneModel) buildForm() {
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Save To").
				Options(
					huh.NewOption("Global (~/.nexflow/config.json)", "global"),
					huh.NewOption("Project (.nexflow/config.json)", "project"),
				).
				Value(&m.saveTarget),
		).Title("Save Target"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Key("removalPolicy").
				Title("Removing a task others depend on").
				Options(
					huh.NewOption("Cascade: drop its dependency edges", "cascade"),
					huh.NewOption("Reject: refuse the removal", "reject"),
				).
				Value(&m.removalPolicy),

			huh.NewInput().
				Key("timeUnit").
				Title("Time Unit").
				Description("Wall-clock length of one schedule unit").
				Value(&m.timeUnit).
				Placeholder("1h").
				Validate(func(s string) error {
					d, err := time.ParseDuration(s)
					if err != nil {
						return err
					}
					if d <= 0 {
						return fmt.Errorf("time unit must be positive")
					}
					return nil
				}),

			huh.NewInput().
				Key("defaultDuration").
				Title("Default Task Duration").
				Value(&m.defaultDuration).
				Placeholder("1").
				Validate(func(s string) error {
					_, err := parseDuration(s)
					return err
				}),
		).Title("Scheduling"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Key("logLevel").
				Title("Log Level").
				Options(huh.NewOptions("debug", "info", "warn", "error")...).
				Value(&m.logLevel),
		).Title("Logging"),
	)
}

// Init initializes the settings pane.
func (m SettingsPaneModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the settings pane.
func (m SettingsPaneModel) Update(msg tea.Msg) (SettingsPaneModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == KeyEsc {
		// Cancel without saving
		m.visible = false
		m.saved = false
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		targetPath := m.globalPath
		if m.saveTarget == "project" {
			targetPath = m.projectPath
		}

		updated := *m.config
		m.applyFormTo(&updated)

		if err := config.Save(&updated, targetPath); err != nil {
			m.err = err
			m.saved = false
		} else {
			*m.config = updated
			m.saved = true
			m.err = nil
			m.visible = false
		}
	}

	return m, cmd
}

// applyFormTo copies form field values into cfg. Inputs were validated by
// the form, so parse failures leave the previous value.
func (m *SettingsPaneModel) applyFormTo(cfg *config.NexflowConfig) {
	cfg.Scheduler.RemovalPolicy = m.removalPolicy
	if d, err := time.ParseDuration(m.timeUnit); err == nil {
		cfg.Scheduler.TimeUnit = config.Duration(d)
	}
	if d, err := parseDuration(m.defaultDuration); err == nil {
		cfg.Scheduler.DefaultDuration = d
	}
	cfg.Log.Level = m.logLevel
}

// View renders the settings pane.
func (m SettingsPaneModel) View() string {
	if !m.visible {
		return ""
	}

	var content string
	if m.err != nil {
		content = StyleError.Render(fmt.Sprintf("✗ Error saving: %v", m.err))
	} else {
		content = m.form.View()
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(m.width - 4).
		Height(m.height - 4)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render("⚙ Settings")

	return lipgloss.JoinVertical(lipgloss.Left, title, style.Render(content))
}

// SetSize updates the dimensions of the settings pane.
func (m *SettingsPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.form != nil && w > 8 && h > 8 {
		m.form.WithWidth(w - 8).WithHeight(h - 8)
	}
}

// SetVisible shows or hides the settings pane. Showing rebuilds the form
// from the current config.
func (m *SettingsPaneModel) SetVisible(v bool) {
	m.visible = v
	m.saved = false
	m.err = nil

	if v {
		m.loadFields()
		m.buildForm()
		m.SetSize(m.width, m.height)
	}
}

// IsVisible returns whether the settings pane is currently visible.
func (m SettingsPaneModel) IsVisible() bool {
	return m.visible
}

// Saved reports whether the last form submission was written to disk.
func (m SettingsPaneModel) Saved() bool {
	return m.saved
}
