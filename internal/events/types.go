package events

import (
	"time"

	"github.com/aristath/nexflow/internal/scheduler"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	ProjectID() string
}

// Topic constants
const (
	TopicProject  = "project"
	TopicSchedule = "schedule"
)

// Event type constants
const (
	EventTypeTaskAdded         = "task.added"
	EventTypeTaskRemoved       = "task.removed"
	EventTypeTaskUpdated       = "task.updated"
	EventTypeDependencyChanged = "dependency.changed"
	EventTypeCompletionChanged = "completion.changed"
	EventTypeScheduleComputed  = "schedule.computed"
	EventTypeScheduleFailed    = "schedule.failed"
	EventTypeCycleDetected     = "schedule.cycle"
)

// TaskAddedEvent is published when a task is registered.
type TaskAddedEvent struct {
	Project   string
	Task      scheduler.Task
	Timestamp time.Time
}

func (e TaskAddedEvent) EventType() string { return EventTypeTaskAdded }
func (e TaskAddedEvent) ProjectID() string { return e.Project }

// TaskRemovedEvent is published when a task is deleted.
type TaskRemovedEvent struct {
	Project   string
	TaskID    string
	Timestamp time.Time
}

func (e TaskRemovedEvent) EventType() string { return EventTypeTaskRemoved }
func (e TaskRemovedEvent) ProjectID() string { return e.Project }

// TaskUpdatedEvent is published when duration, name or owner change.
type TaskUpdatedEvent struct {
	Project   string
	TaskID    string
	Field     string
	Timestamp time.Time
}

func (e TaskUpdatedEvent) EventType() string { return EventTypeTaskUpdated }
func (e TaskUpdatedEvent) ProjectID() string { return e.Project }

// DependencyChangedEvent is published when an edge is added or removed.
type DependencyChangedEvent struct {
	Project     string
	Predecessor string
	Successor   string
	Added       bool
	Timestamp   time.Time
}

func (e DependencyChangedEvent) EventType() string { return EventTypeDependencyChanged }
func (e DependencyChangedEvent) ProjectID() string { return e.Project }

// CompletionChangedEvent is published when a completion or in-progress flag changes.
type CompletionChangedEvent struct {
	Project    string
	TaskID     string
	Completed  bool
	InProgress bool
	Timestamp  time.Time
}

func (e CompletionChangedEvent) EventType() string { return EventTypeCompletionChanged }
func (e CompletionChangedEvent) ProjectID() string { return e.Project }

// ScheduleComputedEvent carries a fresh schedule.
type ScheduleComputedEvent struct {
	Project   string
	Name      string
	Result    *scheduler.ScheduleResult
	Timestamp time.Time
}

func (e ScheduleComputedEvent) EventType() string { return EventTypeScheduleComputed }
func (e ScheduleComputedEvent) ProjectID() string { return e.Project }

// ScheduleFailedEvent is published when scheduling fails for a reason other
// than a cycle, e.g. an invalid duration.
type ScheduleFailedEvent struct {
	Project   string
	Err       error
	Timestamp time.Time
}

func (e ScheduleFailedEvent) EventType() string { return EventTypeScheduleFailed }
func (e ScheduleFailedEvent) ProjectID() string { return e.Project }

// CycleDetectedEvent carries the cycle that blocks scheduling.
type CycleDetectedEvent struct {
	Project   string
	Path      []string
	Timestamp time.Time
}

func (e CycleDetectedEvent) EventType() string { return EventTypeCycleDetected }
func (e CycleDetectedEvent) ProjectID() string { return e.Project }
