package scheduler

import (
	"fmt"
	"strings"
)

// Option configures a Project.
type Option func(*Project)

// WithRemovalPolicy sets how RemoveTask treats tasks that are still depended on.
func WithRemovalPolicy(policy RemovalPolicy) Option {
	return func(p *Project) {
		p.policy = policy
	}
}

// Project is the explicit session object every engine call goes through: a
// task registry plus its dependency graph. It has no internal locking; hosts
// that share a Project between goroutines must serialize access.
//
// Every mutation is atomic: it either applies fully or returns an error and
// leaves the project untouched.
type Project struct {
	name   string
	policy RemovalPolicy
	tasks  map[string]*Task // attributes only, dependencies live in graph
	graph  *Graph
}

// NewProject creates an empty project.
func NewProject(name string, opts ...Option) *Project {
	p := &Project{
		name:  name,
		tasks: make(map[string]*Task),
		graph: NewGraph(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load rebuilds a project from tasks in insertion order, as returned by Tasks.
// Dependencies may reference tasks later in the slice, and cycles are kept so
// they can be reported by Validate.
func Load(name string, tasks []Task, opts ...Option) (*Project, error) {
	p := NewProject(name, opts...)

	for i := range tasks {
		t := tasks[i]
		if err := p.graph.AddTask(t.ID); err != nil {
			return nil, err
		}
		p.tasks[t.ID] = attributesOf(&t)
	}

	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if err := p.graph.AddEdge(dep, t.ID); err != nil {
				return nil, fmt.Errorf("task %q: %w", t.ID, err)
			}
		}
	}

	return p, nil
}

// Name returns the project name.
func (p *Project) Name() string {
	return p.name
}

// Policy returns the removal policy.
func (p *Project) Policy() RemovalPolicy {
	return p.policy
}

// Len returns the number of tasks.
func (p *Project) Len() int {
	return p.graph.Len()
}

// AddTask registers a task together with its DependsOn edges.
// Every dependency must already be registered.
func (p *Project) AddTask(task Task) error {
	if task.ID == "" {
		return ErrEmptyID
	}
	if p.graph.Has(task.ID) {
		return fmt.Errorf("%w: %q", ErrDuplicateTask, task.ID)
	}
	for _, dep := range task.DependsOn {
		if dep == task.ID {
			return fmt.Errorf("%w: %q", ErrSelfDependency, dep)
		}
		if !p.graph.Has(dep) {
			return unknownTask(dep)
		}
	}

	// All checks passed, nothing below can fail.
	if err := p.graph.AddTask(task.ID); err != nil {
		return err
	}
	for _, dep := range task.DependsOn {
		if err := p.graph.AddEdge(dep, task.ID); err != nil {
			return err
		}
	}
	p.tasks[task.ID] = attributesOf(&task)
	return nil
}

// RemoveTask deletes a task. Under RemoveCascade the task is also dropped from
// every dependent's predecessor set; under RemoveReject removal fails with
// ErrDependencyExists while anything depends on it.
func (p *Project) RemoveTask(id string) error {
	if !p.graph.Has(id) {
		return unknownTask(id)
	}

	if p.policy == RemoveReject {
		if dependents := p.graph.Successors(id); len(dependents) > 0 {
			return fmt.Errorf("%w: %q is required by %s", ErrDependencyExists, id, strings.Join(dependents, ", "))
		}
	}

	if err := p.graph.RemoveTask(id); err != nil {
		return err
	}
	delete(p.tasks, id)
	return nil
}

// SetDuration sets the duration of a task. Values are validated when the
// schedule is computed, not here.
func (p *Project) SetDuration(id string, duration float64) error {
	t, err := p.lookup(id)
	if err != nil {
		return err
	}
	t.Duration = Float64(duration)
	return nil
}

// ClearDuration unsets the duration of a task.
func (p *Project) ClearDuration(id string) error {
	t, err := p.lookup(id)
	if err != nil {
		return err
	}
	t.Duration = nil
	return nil
}

// SetName sets the display name of a task.
func (p *Project) SetName(id, name string) error {
	t, err := p.lookup(id)
	if err != nil {
		return err
	}
	t.Name = name
	return nil
}

// SetOwner sets the owner of a task.
func (p *Project) SetOwner(id, owner string) error {
	t, err := p.lookup(id)
	if err != nil {
		return err
	}
	t.Owner = owner
	return nil
}

// AddDependency makes succ depend on pred.
func (p *Project) AddDependency(pred, succ string) error {
	return p.graph.AddEdge(pred, succ)
}

// RemoveDependency drops the dependency of succ on pred.
func (p *Project) RemoveDependency(pred, succ string) error {
	return p.graph.RemoveEdge(pred, succ)
}

// SetCompleted sets or clears the completion flag. Completing a task also
// clears its in-progress flag.
func (p *Project) SetCompleted(id string, completed bool) error {
	t, err := p.lookup(id)
	if err != nil {
		return err
	}
	t.Completed = completed
	if completed {
		t.InProgress = false
	}
	return nil
}

// SetInProgress sets or clears the externally driven in-progress flag.
func (p *Project) SetInProgress(id string, inProgress bool) error {
	t, err := p.lookup(id)
	if err != nil {
		return err
	}
	t.InProgress = inProgress
	return nil
}

// Task returns a copy of the task with its current dependencies.
func (p *Project) Task(id string) (Task, bool) {
	t, ok := p.tasks[id]
	if !ok {
		return Task{}, false
	}
	return p.export(t), true
}

// Tasks returns copies of all tasks in insertion order.
func (p *Project) Tasks() []Task {
	ids := p.graph.IDs()
	tasks := make([]Task, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, p.export(p.tasks[id]))
	}
	return tasks
}

// Graph returns a snapshot of the dependency graph.
func (p *Project) Graph() *Graph {
	return p.graph.Clone()
}

// Validate returns *CycleError if the dependencies contain a cycle.
func (p *Project) Validate() error {
	if cycle := p.graph.DetectCycle(); cycle != nil {
		return &CycleError{Path: cycle}
	}
	return nil
}

// Schedule computes the time window and runtime status of every task.
func (p *Project) Schedule() (*ScheduleResult, error) {
	durations := make(map[string]float64, len(p.tasks))
	completed := make(map[string]bool, len(p.tasks))
	inProgress := make(map[string]bool, len(p.tasks))
	for id, t := range p.tasks {
		if t.Duration != nil {
			durations[id] = *t.Duration
		}
		completed[id] = t.Completed
		inProgress[id] = t.InProgress
	}

	result, err := ComputeSchedule(p.graph, durations)
	if err != nil {
		return nil, err
	}

	status, err := ComputeStatus(p.graph, completed, inProgress)
	if err != nil {
		return nil, err
	}

	for id, ts := range result.Tasks {
		ts.Name = p.tasks[id].Name
		ts.Status = status[id]
		if ts.Status == StatusBlocked {
			ts.WaitingFor = waitingFor(p.graph, id, status)
		}
	}
	return result, nil
}

func (p *Project) lookup(id string) (*Task, error) {
	t, ok := p.tasks[id]
	if !ok {
		return nil, unknownTask(id)
	}
	return t, nil
}

func (p *Project) export(t *Task) Task {
	cp := cloneTask(t)
	cp.DependsOn = p.graph.Predecessors(t.ID)
	return *cp
}

func attributesOf(task *Task) *Task {
	t := cloneTask(task)
	t.DependsOn = nil
	if t.Name == "" {
		t.Name = t.ID
	}
	if t.Completed {
		t.InProgress = false
	}
	return t
}
