package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/nexflow/internal/config"
	"github.com/aristath/nexflow/internal/events"
	"github.com/aristath/nexflow/internal/scheduler"
	"github.com/aristath/nexflow/internal/workspace"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneTable PaneID = iota
	PaneTimeline
	PaneSummary
)

const clockInterval = 30 * time.Second

// Workspace is the subset of *workspace.Workspace the TUI drives.
type Workspace interface {
	Snapshot(ctx context.Context, projectID string) (*workspace.Snapshot, error)
	AddTask(ctx context.Context, projectID string, task scheduler.Task) error
	RemoveTask(ctx context.Context, projectID, taskID string) error
	SetCompleted(ctx context.Context, projectID, taskID string, completed bool) error
	SetInProgress(ctx context.Context, projectID, taskID string, inProgress bool) error
}

// Options configures the TUI.
type Options struct {
	ProjectID         string
	Config            *config.NexflowConfig
	GlobalConfigPath  string
	ProjectConfigPath string
	Anchor            time.Time        // Wall-clock time of schedule unit 0 (default: now)
	Now               func() time.Time // Clock used for lateness (default: time.Now)
}

// snapshotMsg carries a freshly loaded project.
type snapshotMsg struct {
	snap *workspace.Snapshot
	err  error
}

// actionMsg reports the outcome of a mutation started from the UI.
type actionMsg struct {
	verb string
	err  error
}

// clockMsg re-evaluates lateness.
type clockMsg struct{}

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	// ctx bounds the workspace calls issued by commands; bubbletea has no
	// per-message context.
	ctx          context.Context
	ws           Workspace
	projectID    string
	tablePane    TablePaneModel
	timelinePane TimelinePaneModel
	summaryPane  SummaryPaneModel
	taskForm     TaskFormModel
	settingsPane SettingsPaneModel
	focusedPane  PaneID
	eventSub     <-chan events.Event
	config       *config.NexflowConfig
	anchor       time.Time
	now          func() time.Time
	snapshot     *workspace.Snapshot
	status       string
	statusErr    bool
	width        int
	height       int
	quitting     bool
	showSettings bool
}

// New creates a new TUI model for one project.
// It subscribes to all events from the event bus using SubscribeAll.
func New(ctx context.Context, ws Workspace, eventBus *events.EventBus, opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	anchor := opts.Anchor
	if anchor.IsZero() {
		anchor = time.Now()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	m := Model{
		ctx:          ctx,
		ws:           ws,
		projectID:    opts.ProjectID,
		tablePane:    NewTablePaneModel(),
		timelinePane: NewTimelinePaneModel(anchor, time.Duration(cfg.Scheduler.TimeUnit)),
		summaryPane:  NewSummaryPaneModel(),
		taskForm:     NewTaskFormModel(),
		settingsPane: NewSettingsPaneModel(cfg, opts.GlobalConfigPath, opts.ProjectConfigPath),
		focusedPane:  PaneTable,
		config:       cfg,
		anchor:       anchor,
		now:          now,
	}
	if eventBus != nil {
		m.eventSub = eventBus.SubscribeAll(256)
	}
	m.updateFocusStates()
	return m
}

// Init loads the project and starts listening for events.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), waitForEvent(m.eventSub), tickClock())
}

// waitForEvent returns a command that waits for the next event from the event bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

func tickClock() tea.Cmd {
	return tea.Tick(clockInterval, func(time.Time) tea.Msg {
		return clockMsg{}
	})
}

// refresh loads the current snapshot of the project.
func (m Model) refresh() tea.Cmd {
	ctx, ws, id := m.ctx, m.ws, m.projectID
	return func() tea.Msg {
		snap, err := ws.Snapshot(ctx, id)
		return snapshotMsg{snap: snap, err: err}
	}
}

// act runs a workspace mutation off the UI goroutine. The resulting schedule
// event triggers the refresh.
func (m Model) act(verb string, fn func(ctx context.Context, ws Workspace, projectID string) error) tea.Cmd {
	ctx, ws, id := m.ctx, m.ws, m.projectID
	return func() tea.Msg {
		return actionMsg{verb: verb, err: fn(ctx, ws, id)}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}

		// Modal overlays receive every key while open.
		if m.taskForm.IsVisible() {
			var cmd tea.Cmd
			m.taskForm, cmd = m.taskForm.Update(msg)
			cmds = append(cmds, cmd)
			if task, ok := m.taskForm.Task(); ok {
				cmds = append(cmds, m.act("add "+task.ID, func(ctx context.Context, ws Workspace, id string) error {
					return ws.AddTask(ctx, id, task)
				}))
			}
			return m, tea.Batch(cmds...)
		}

		if m.showSettings {
			var cmd tea.Cmd
			m.settingsPane, cmd = m.settingsPane.Update(msg)
			cmds = append(cmds, cmd)

			// The settings pane closes itself after a save or on esc.
			if !m.settingsPane.IsVisible() {
				m.showSettings = false
				if m.settingsPane.Saved() {
					m.timelinePane.SetUnit(time.Duration(m.config.Scheduler.TimeUnit))
					m.applySnapshot()
					m.setStatus("settings saved", false)
				}
			}
			return m, tea.Batch(cmds...)
		}

		switch msg.String() {
		case KeyQuit:
			m.quitting = true
			return m, tea.Quit

		case KeySettings:
			m.showSettings = true
			m.settingsPane.SetVisible(true)
			cmds = append(cmds, m.settingsPane.Init())

		case KeyAdd:
			var existing []string
			if m.snapshot != nil {
				for _, t := range m.snapshot.Tasks {
					existing = append(existing, t.ID)
				}
			}
			cmds = append(cmds, m.taskForm.Open(existing, m.config.Scheduler.DefaultDuration))

		case KeyDone:
			if t, ok := m.tablePane.SelectedTask(); ok {
				cmds = append(cmds, m.act("complete "+t.ID, func(ctx context.Context, ws Workspace, id string) error {
					return ws.SetCompleted(ctx, id, t.ID, !t.Completed)
				}))
			}

		case KeyInProgress:
			if t, ok := m.tablePane.SelectedTask(); ok {
				cmds = append(cmds, m.act("start "+t.ID, func(ctx context.Context, ws Workspace, id string) error {
					return ws.SetInProgress(ctx, id, t.ID, !t.InProgress)
				}))
			}

		case KeyRemove:
			if t, ok := m.tablePane.SelectedTask(); ok {
				cmds = append(cmds, m.act("remove "+t.ID, func(ctx context.Context, ws Workspace, id string) error {
					return ws.RemoveTask(ctx, id, t.ID)
				}))
			}

		case KeyRefresh:
			cmds = append(cmds, m.refresh())

		case KeyHideDone:
			m.tablePane.ToggleHideDone()
			m.applySnapshot()

		case KeyTab:
			m.focusedPane = (m.focusedPane + 1) % 3
			m.updateFocusStates()

		case KeyShiftTab:
			m.focusedPane = (m.focusedPane + 2) % 3 // +2 is equivalent to -1 mod 3
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneTable
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneTimeline
			m.updateFocusStates()

		case KeyPane3:
			m.focusedPane = PaneSummary
			m.updateFocusStates()

		default:
			// Delegate to focused pane
			var cmd tea.Cmd
			switch m.focusedPane {
			case PaneTable:
				m.tablePane, cmd = m.tablePane.Update(msg)
			case PaneTimeline:
				m.timelinePane, cmd = m.timelinePane.Update(msg)
			case PaneSummary:
				m.summaryPane, cmd = m.summaryPane.Update(msg)
			}
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()
		m.settingsPane.SetSize(msg.Width, msg.Height)
		m.taskForm.SetSize(msg.Width, msg.Height)

	case snapshotMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("load failed: %v", msg.err), true)
			break
		}
		m.snapshot = msg.snap
		m.applySnapshot()

	case actionMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("%s: %v", msg.verb, msg.err), true)
		} else {
			m.setStatus(msg.verb, false)
		}

	case clockMsg:
		m.applySnapshot()
		cmds = append(cmds, tickClock())

	case events.Event:
		// Schedule events follow every mutation, so they are enough to
		// know when to reload.
		if msg.ProjectID() == m.projectID {
			switch msg.(type) {
			case events.ScheduleComputedEvent, events.ScheduleFailedEvent, events.CycleDetectedEvent:
				cmds = append(cmds, m.refresh())
			}
		}
		cmds = append(cmds, waitForEvent(m.eventSub))
	}

	return m, tea.Batch(cmds...)
}

// applySnapshot pushes the current snapshot into every pane.
func (m *Model) applySnapshot() {
	snap := m.snapshot
	if snap == nil {
		return
	}

	unit := time.Duration(m.config.Scheduler.TimeUnit)
	var late []string
	if snap.Result != nil {
		late = snap.Result.Overdue(m.anchor, unit, m.now())
	}

	m.tablePane.SetSnapshot(snap, late)
	m.timelinePane.SetSchedule(snap.Result, snap.ScheduleErr, late)
	m.summaryPane.SetSchedule(snap.Name, len(snap.Tasks), snap.Result, len(late), m.anchor, unit)
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.taskForm.IsVisible() {
		return m.taskForm.View()
	}
	if m.showSettings {
		return m.settingsPane.View()
	}

	rightPane := lipgloss.JoinVertical(lipgloss.Left, m.timelinePane.View(), m.summaryPane.View())
	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, m.tablePane.View(), rightPane)

	status := StyleHelp.Render(m.status)
	if m.statusErr {
		status = StyleError.Render(m.status)
	}

	return lipgloss.JoinVertical(lipgloss.Left, mainContent, status, HelpView())
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 55) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 2 // status line and help bar
	rightTopHeight := (availableHeight * 65) / 100
	rightBottomHeight := availableHeight - rightTopHeight

	m.tablePane.SetSize(leftWidth, availableHeight)
	m.timelinePane.SetSize(rightWidth, rightTopHeight)
	m.summaryPane.SetSize(rightWidth, rightBottomHeight)

	m.updateFocusStates()
}

// updateFocusStates updates the focus state of all panes.
func (m *Model) updateFocusStates() {
	m.tablePane.SetFocused(m.focusedPane == PaneTable)
	m.timelinePane.SetFocused(m.focusedPane == PaneTimeline)
	m.summaryPane.SetFocused(m.focusedPane == PaneSummary)
}
