package scheduler

import "encoding/json"

// TaskStatus represents the runtime state of a task.
type TaskStatus int

const (
	StatusBlocked    TaskStatus = iota // At least one predecessor is not done
	StatusReady                        // All predecessors done, not started
	StatusInProgress                   // Ready and marked started by the user
	StatusDone                         // Completed by the user
)

func (s TaskStatus) String() string {
	switch s {
	case StatusBlocked:
		return "blocked"
	case StatusReady:
		return "ready"
	case StatusInProgress:
		return "in_progress"
	case StatusDone:
		return "done"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the status by name so results stay readable.
func (s TaskStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// RemovalPolicy decides what RemoveTask does with edges pointing at the removed task.
type RemovalPolicy int

const (
	RemoveCascade RemovalPolicy = iota // Drop the task from every successor's predecessor set
	RemoveReject                       // Refuse while any task still depends on it
)

// ParseRemovalPolicy maps a config string to a RemovalPolicy.
// Unknown values fall back to RemoveCascade.
func ParseRemovalPolicy(s string) RemovalPolicy {
	if s == "reject" {
		return RemoveReject
	}
	return RemoveCascade
}

func (p RemovalPolicy) String() string {
	if p == RemoveReject {
		return "reject"
	}
	return "cascade"
}

// Task represents a unit of work in a project.
type Task struct {
	ID         string   // Unique identifier
	Name       string   // Human-readable name, defaults to ID
	Owner      string   // Who is responsible
	Duration   *float64 // Time units; nil means not set
	DependsOn  []string // Predecessor IDs in insertion order
	Completed  bool     // Set by the user
	InProgress bool     // Set by the user, only visible once the task is Ready
}

// Float64 returns a pointer to v, for filling Task.Duration.
func Float64(v float64) *float64 {
	return &v
}

func cloneTask(task *Task) *Task {
	if task == nil {
		return nil
	}

	cp := *task
	if task.Duration != nil {
		d := *task.Duration
		cp.Duration = &d
	}
	if task.DependsOn != nil {
		cp.DependsOn = append([]string(nil), task.DependsOn...)
	}
	return &cp
}
