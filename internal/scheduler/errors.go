package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownTask is returned when an operation references a task that is not registered.
	ErrUnknownTask = errors.New("unknown task")

	// ErrSelfDependency is returned when a task is made to depend on itself.
	ErrSelfDependency = errors.New("task cannot depend on itself")

	// ErrDependencyExists is returned when removing a task that others still depend on
	// under the reject removal policy.
	ErrDependencyExists = errors.New("task is still a dependency")

	// ErrCycle is returned when the dependency graph contains a cycle.
	ErrCycle = errors.New("dependency cycle detected")

	// ErrInvalidDuration is returned when a duration is missing, negative or not finite.
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrDuplicateTask is returned when a task ID is registered twice.
	ErrDuplicateTask = errors.New("duplicate task")

	// ErrEmptyID is returned when a task has no ID.
	ErrEmptyID = errors.New("task ID must not be empty")
)

// CycleError carries the offending cycle as a closed path, e.g. [A B A].
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Path) == 0 {
		return ErrCycle.Error()
	}
	return fmt.Sprintf("%s: %s", ErrCycle.Error(), strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// DurationError reports which task has an unusable duration and why.
type DurationError struct {
	TaskID string
	Reason string
}

func (e *DurationError) Error() string {
	return fmt.Sprintf("%s for task %q: %s", ErrInvalidDuration.Error(), e.TaskID, e.Reason)
}

func (e *DurationError) Unwrap() error { return ErrInvalidDuration }

func unknownTask(id string) error {
	return fmt.Errorf("%w: %q", ErrUnknownTask, id)
}
