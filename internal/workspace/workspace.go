// Package workspace hosts many named scheduling projects. It serializes
// mutations per project, recomputes the schedule after every change,
// publishes the outcome on the event bus and autosaves to a store.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/nexflow/internal/events"
	"github.com/aristath/nexflow/internal/persistence"
	"github.com/aristath/nexflow/internal/scheduler"
)

var (
	// ErrProjectNotFound is returned for IDs or names the workspace does not know.
	ErrProjectNotFound = persistence.ErrProjectNotFound
	// ErrProjectExists is returned when creating a project under a taken name.
	ErrProjectExists = errors.New("project already exists")
	// ErrEmptyName is returned when creating a project without a name.
	ErrEmptyName = errors.New("project name must not be empty")
)

// Config controls workspace behavior.
type Config struct {
	RemovalPolicy    scheduler.RemovalPolicy // Policy for newly created projects
	ConcurrencyLimit int                     // Max projects scheduled in parallel by ScheduleAll (0 = unlimited)
}

// Snapshot is a read-only view of a project and its latest schedule.
// ScheduleErr is set instead of Result when the project cannot be scheduled,
// e.g. while it contains a cycle.
type Snapshot struct {
	ID          string
	Name        string
	Policy      scheduler.RemovalPolicy
	Tasks       []scheduler.Task
	Result      *scheduler.ScheduleResult
	ScheduleErr error
}

// Outcome is the per-project result of ScheduleAll.
type Outcome struct {
	ProjectID string
	Name      string
	Result    *scheduler.ScheduleResult
	Err       error
}

// entry is immutable once stored; mutations build a new one.
type entry struct {
	project *scheduler.Project
	result  *scheduler.ScheduleResult
	err     error
}

// Workspace is safe for concurrent use.
type Workspace struct {
	cfg    Config
	store  persistence.Store
	bus    *events.EventBus
	logger *zap.Logger
	locks  *ProjectLocks

	createMu sync.Mutex // Serializes Create so names stay unique
	mu       sync.RWMutex
	projects map[string]*entry
}

// New creates a workspace. store and bus may be nil, in which case projects
// live only in memory and no events are published.
func New(cfg Config, store persistence.Store, bus *events.EventBus, logger *zap.Logger) *Workspace {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workspace{
		cfg:      cfg,
		store:    store,
		bus:      bus,
		logger:   logger.Named("workspace"),
		locks:    NewProjectLocks(),
		projects: make(map[string]*entry),
	}
}

// Create registers an empty project and returns its ID.
func (w *Workspace) Create(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}

	w.createMu.Lock()
	defer w.createMu.Unlock()

	if _, err := w.lookupName(ctx, name); err == nil {
		return "", fmt.Errorf("%w: %s", ErrProjectExists, name)
	} else if !errors.Is(err, ErrProjectNotFound) {
		return "", err
	}

	id := uuid.NewString()
	w.locks.Lock(id)
	defer w.locks.Unlock(id)

	project := scheduler.NewProject(name, scheduler.WithRemovalPolicy(w.cfg.RemovalPolicy))
	e := w.compute(id, project)

	if err := w.save(ctx, id, project); err != nil {
		return "", err
	}

	w.mu.Lock()
	w.projects[id] = e
	w.mu.Unlock()

	w.logger.Info("project created", zap.String("project", id), zap.String("name", name))
	return id, nil
}

// Open makes sure the project is loaded and returns its snapshot.
func (w *Workspace) Open(ctx context.Context, projectID string) (*Snapshot, error) {
	return w.Snapshot(ctx, projectID)
}

// OpenByName resolves a project by name, creating it when it does not exist.
func (w *Workspace) OpenByName(ctx context.Context, name string) (string, error) {
	id, err := w.lookupName(ctx, name)
	if errors.Is(err, ErrProjectNotFound) {
		return w.Create(ctx, name)
	}
	if err != nil {
		return "", err
	}
	if _, err := w.get(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

// Delete removes a project from memory and from the store.
func (w *Workspace) Delete(ctx context.Context, projectID string) error {
	w.locks.Lock(projectID)
	defer w.locks.Unlock(projectID)

	w.mu.Lock()
	_, cached := w.projects[projectID]
	delete(w.projects, projectID)
	w.mu.Unlock()

	if w.store != nil {
		err := w.store.DeleteProject(ctx, projectID)
		if err != nil && !(cached && errors.Is(err, ErrProjectNotFound)) {
			return fmt.Errorf("failed to delete project: %w", err)
		}
	} else if !cached {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}

	w.logger.Info("project deleted", zap.String("project", projectID))
	return nil
}

// List returns every known project sorted by name.
func (w *Workspace) List(ctx context.Context) ([]persistence.ProjectSummary, error) {
	byID := make(map[string]persistence.ProjectSummary)

	if w.store != nil {
		stored, err := w.store.ListProjects(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}
		for _, s := range stored {
			byID[s.ID] = s
		}
	}

	w.mu.RLock()
	for id, e := range w.projects {
		s := byID[id]
		s.ID = id
		s.Name = e.project.Name()
		s.TaskCount = e.project.Len()
		byID[id] = s
	}
	w.mu.RUnlock()

	out := make([]persistence.ProjectSummary, 0, len(byID))
	for _, s := range byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Snapshot returns the project's tasks and its latest schedule.
func (w *Workspace) Snapshot(ctx context.Context, projectID string) (*Snapshot, error) {
	e, err := w.get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		ID:          projectID,
		Name:        e.project.Name(),
		Policy:      e.project.Policy(),
		Tasks:       e.project.Tasks(),
		Result:      e.result,
		ScheduleErr: e.err,
	}, nil
}

// Schedule returns the latest schedule of a project. The error is the
// scheduling failure (*scheduler.CycleError, *scheduler.DurationError) if the
// project cannot currently be scheduled.
func (w *Workspace) Schedule(ctx context.Context, projectID string) (*scheduler.ScheduleResult, error) {
	e, err := w.get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return e.result, e.err
}

// Validate reports whether the project's dependency graph is acyclic.
func (w *Workspace) Validate(ctx context.Context, projectID string) error {
	e, err := w.get(ctx, projectID)
	if err != nil {
		return err
	}
	return e.project.Validate()
}

// ScheduleAll schedules every known project concurrently. Per-project
// scheduling failures are reported in the outcomes; the returned error is
// reserved for failures to reach the projects at all.
func (w *Workspace) ScheduleAll(ctx context.Context) ([]Outcome, error) {
	projects, err := w.List(ctx)
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, len(projects))
	g, ctx := errgroup.WithContext(ctx)
	if w.cfg.ConcurrencyLimit > 0 {
		g.SetLimit(w.cfg.ConcurrencyLimit)
	}

	for i, p := range projects {
		g.Go(func() error {
			w.locks.Lock(p.ID)
			defer w.locks.Unlock(p.ID)

			e, err := w.get(ctx, p.ID)
			if err != nil {
				return fmt.Errorf("loading project %s: %w", p.Name, err)
			}
			result, err := e.project.Schedule()
			outcomes[i] = Outcome{ProjectID: p.ID, Name: p.Name, Result: result, Err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	w.logger.Debug("scheduled all projects", zap.Int("count", len(outcomes)))
	return outcomes, nil
}

// Flush saves every loaded project. Used on shutdown.
func (w *Workspace) Flush(ctx context.Context) error {
	if w.store == nil {
		return nil
	}

	w.mu.RLock()
	ids := make([]string, 0, len(w.projects))
	for id := range w.projects {
		ids = append(ids, id)
	}
	w.mu.RUnlock()

	w.locks.LockAll(ids)
	defer w.locks.UnlockAll(ids)

	var errs []error
	for _, id := range ids {
		w.mu.RLock()
		e, ok := w.projects[id]
		w.mu.RUnlock()
		if !ok {
			continue
		}
		if err := w.save(ctx, id, e.project); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Mutate applies fn to the project. fn runs against a copy that is saved
// before it replaces the project, so a failing fn or a failed save leaves
// the project untouched. On success the schedule is recomputed and published.
func (w *Workspace) Mutate(ctx context.Context, projectID string, fn func(*scheduler.Project) error) error {
	return w.mutate(ctx, projectID, func(p *scheduler.Project) (events.Event, error) {
		return nil, fn(p)
	})
}

// mutate is Mutate with an optional event, built by fn after it succeeds.
func (w *Workspace) mutate(ctx context.Context, projectID string, fn func(*scheduler.Project) (events.Event, error)) error {
	w.locks.Lock(projectID)
	defer w.locks.Unlock(projectID)

	current, err := w.get(ctx, projectID)
	if err != nil {
		return err
	}

	draft, err := clone(current.project)
	if err != nil {
		return fmt.Errorf("failed to copy project: %w", err)
	}
	ev, err := fn(draft)
	if err != nil {
		return err
	}

	// Save before swapping so a failed save leaves the project as it was.
	if err := w.save(ctx, projectID, draft); err != nil {
		return err
	}

	next := w.compute(projectID, draft)

	w.mu.Lock()
	w.projects[projectID] = next
	w.mu.Unlock()

	if ev != nil {
		w.publish(events.TopicProject, ev)
	}
	w.announce(projectID, next)
	return nil
}

// AddTask registers a task in the project.
func (w *Workspace) AddTask(ctx context.Context, projectID string, task scheduler.Task) error {
	return w.mutate(ctx, projectID, func(p *scheduler.Project) (events.Event, error) {
		if err := p.AddTask(task); err != nil {
			return nil, err
		}
		added, _ := p.Task(task.ID)
		return events.TaskAddedEvent{Project: projectID, Task: added, Timestamp: time.Now()}, nil
	})
}

// RemoveTask deletes a task under the project's removal policy.
func (w *Workspace) RemoveTask(ctx context.Context, projectID, taskID string) error {
	return w.mutate(ctx, projectID, func(p *scheduler.Project) (events.Event, error) {
		if err := p.RemoveTask(taskID); err != nil {
			return nil, err
		}
		return events.TaskRemovedEvent{Project: projectID, TaskID: taskID, Timestamp: time.Now()}, nil
	})
}

// SetDuration changes a task's duration.
func (w *Workspace) SetDuration(ctx context.Context, projectID, taskID string, duration float64) error {
	return w.mutate(ctx, projectID, func(p *scheduler.Project) (events.Event, error) {
		if err := p.SetDuration(taskID, duration); err != nil {
			return nil, err
		}
		return events.TaskUpdatedEvent{Project: projectID, TaskID: taskID, Field: "duration", Timestamp: time.Now()}, nil
	})
}

// SetCompleted marks a task done or not done.
func (w *Workspace) SetCompleted(ctx context.Context, projectID, taskID string, completed bool) error {
	return w.mutate(ctx, projectID, func(p *scheduler.Project) (events.Event, error) {
		if err := p.SetCompleted(taskID, completed); err != nil {
			return nil, err
		}
		return completionChanged(p, projectID, taskID), nil
	})
}

// SetInProgress sets or clears a task's in-progress flag.
func (w *Workspace) SetInProgress(ctx context.Context, projectID, taskID string, inProgress bool) error {
	return w.mutate(ctx, projectID, func(p *scheduler.Project) (events.Event, error) {
		if err := p.SetInProgress(taskID, inProgress); err != nil {
			return nil, err
		}
		return completionChanged(p, projectID, taskID), nil
	})
}

// AddDependency records that succ depends on pred.
func (w *Workspace) AddDependency(ctx context.Context, projectID, pred, succ string) error {
	return w.mutate(ctx, projectID, func(p *scheduler.Project) (events.Event, error) {
		if err := p.AddDependency(pred, succ); err != nil {
			return nil, err
		}
		return dependencyChanged(projectID, pred, succ, true), nil
	})
}

// RemoveDependency deletes the edge pred -> succ.
func (w *Workspace) RemoveDependency(ctx context.Context, projectID, pred, succ string) error {
	return w.mutate(ctx, projectID, func(p *scheduler.Project) (events.Event, error) {
		if err := p.RemoveDependency(pred, succ); err != nil {
			return nil, err
		}
		return dependencyChanged(projectID, pred, succ, false), nil
	})
}

func completionChanged(p *scheduler.Project, projectID, taskID string) events.Event {
	t, _ := p.Task(taskID)
	return events.CompletionChangedEvent{
		Project:    projectID,
		TaskID:     taskID,
		Completed:  t.Completed,
		InProgress: t.InProgress,
		Timestamp:  time.Now(),
	}
}

func dependencyChanged(projectID, pred, succ string, added bool) events.Event {
	return events.DependencyChangedEvent{
		Project:     projectID,
		Predecessor: pred,
		Successor:   succ,
		Added:       added,
		Timestamp:   time.Now(),
	}
}

// get returns the cached entry, loading it from the store on first access.
func (w *Workspace) get(ctx context.Context, projectID string) (*entry, error) {
	w.mu.RLock()
	e, ok := w.projects[projectID]
	w.mu.RUnlock()
	if ok {
		return e, nil
	}

	if w.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}

	rec, err := w.store.LoadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	project, err := scheduler.Load(rec.Name, rec.Tasks, scheduler.WithRemovalPolicy(rec.Policy))
	if err != nil {
		return nil, fmt.Errorf("loading project %s: %w", rec.Name, err)
	}
	loaded := w.compute(projectID, project)

	w.mu.Lock()
	defer w.mu.Unlock()
	// Another caller may have loaded it meanwhile; keep the first.
	if e, ok := w.projects[projectID]; ok {
		return e, nil
	}
	w.projects[projectID] = loaded
	w.logger.Debug("project loaded", zap.String("project", projectID), zap.Int("tasks", project.Len()))
	return loaded, nil
}

// lookupName finds a project ID by name in memory, then in the store.
func (w *Workspace) lookupName(ctx context.Context, name string) (string, error) {
	w.mu.RLock()
	for id, e := range w.projects {
		if e.project.Name() == name {
			w.mu.RUnlock()
			return id, nil
		}
	}
	w.mu.RUnlock()

	if w.store == nil {
		return "", fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}
	return w.store.FindProject(ctx, name)
}

func (w *Workspace) compute(projectID string, project *scheduler.Project) *entry {
	result, err := project.Schedule()
	if err != nil {
		w.logger.Debug("project not schedulable", zap.String("project", projectID), zap.Error(err))
	}
	return &entry{project: project, result: result, err: err}
}

// announce publishes the schedule outcome of e.
func (w *Workspace) announce(projectID string, e *entry) {
	now := time.Now()

	var cycle *scheduler.CycleError
	switch {
	case e.err == nil:
		w.publish(events.TopicSchedule, events.ScheduleComputedEvent{
			Project:   projectID,
			Name:      e.project.Name(),
			Result:    e.result,
			Timestamp: now,
		})
	case errors.As(e.err, &cycle):
		w.logger.Warn("dependency cycle", zap.String("project", projectID), zap.Strings("path", cycle.Path))
		w.publish(events.TopicSchedule, events.CycleDetectedEvent{Project: projectID, Path: cycle.Path, Timestamp: now})
	default:
		w.publish(events.TopicSchedule, events.ScheduleFailedEvent{Project: projectID, Err: e.err, Timestamp: now})
	}
}

func (w *Workspace) publish(topic string, ev events.Event) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(topic, ev)
}

func (w *Workspace) save(ctx context.Context, projectID string, project *scheduler.Project) error {
	if w.store == nil {
		return nil
	}
	rec := &persistence.ProjectRecord{
		ID:     projectID,
		Name:   project.Name(),
		Policy: project.Policy(),
		Tasks:  project.Tasks(),
	}
	if err := w.store.SaveProject(ctx, rec); err != nil {
		w.logger.Error("autosave failed", zap.String("project", projectID), zap.Error(err))
		return fmt.Errorf("failed to save project %s: %w", project.Name(), err)
	}
	return nil
}

// clone copies a project through its exported task list.
func clone(p *scheduler.Project) (*scheduler.Project, error) {
	return scheduler.Load(p.Name(), p.Tasks(), scheduler.WithRemovalPolicy(p.Policy()))
}
