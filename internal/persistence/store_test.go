package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/aristath/nexflow/internal/scheduler"
)

// testStore creates an in-memory store for testing and registers cleanup.
func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func sampleRecord(id, name string) *ProjectRecord {
	return &ProjectRecord{
		ID:     id,
		Name:   name,
		Policy: scheduler.RemoveReject,
		Tasks: []scheduler.Task{
			{ID: "build", Name: "Build", Owner: "ana", Duration: scheduler.Float64(3), DependsOn: []string{"design"}},
			{ID: "design", Name: "Design", Duration: scheduler.Float64(2), Completed: true},
			{ID: "ship", Name: "Ship", DependsOn: []string{"build", "design"}, InProgress: true},
		},
	}
}

func TestSaveAndLoadProject(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	rec := sampleRecord("p-1", "launch")
	if err := store.SaveProject(ctx, rec); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}

	got, err := store.LoadProject(ctx, "p-1")
	if err != nil {
		t.Fatalf("LoadProject failed: %v", err)
	}

	if got.Name != "launch" {
		t.Errorf("Name = %q, want launch", got.Name)
	}
	if got.Policy != scheduler.RemoveReject {
		t.Errorf("Policy = %v, want reject", got.Policy)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set")
	}
	if len(got.Tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(got.Tasks))
	}

	// Insertion order survives, even though "build" references a later task.
	wantOrder := []string{"build", "design", "ship"}
	for i, id := range wantOrder {
		if got.Tasks[i].ID != id {
			t.Errorf("Tasks[%d].ID = %q, want %q", i, got.Tasks[i].ID, id)
		}
	}

	build := got.Tasks[0]
	if build.Owner != "ana" || build.Duration == nil || *build.Duration != 3 {
		t.Errorf("build attributes not preserved: %+v", build)
	}
	if len(build.DependsOn) != 1 || build.DependsOn[0] != "design" {
		t.Errorf("build.DependsOn = %v, want [design]", build.DependsOn)
	}

	if !got.Tasks[1].Completed {
		t.Error("design should be completed")
	}

	ship := got.Tasks[2]
	if ship.Duration != nil {
		t.Errorf("ship duration should be missing, got %v", *ship.Duration)
	}
	if !ship.InProgress {
		t.Error("ship should be in progress")
	}
	if len(ship.DependsOn) != 2 {
		t.Errorf("ship.DependsOn = %v, want 2 entries", ship.DependsOn)
	}
}

func TestSaveProjectReplacesSnapshot(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	rec := sampleRecord("p-1", "launch")
	if err := store.SaveProject(ctx, rec); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	rec.Name = "relaunch"
	rec.Tasks = []scheduler.Task{{ID: "solo", Name: "Solo", Duration: scheduler.Float64(1)}}
	if err := store.SaveProject(ctx, rec); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	got, err := store.LoadProject(ctx, "p-1")
	if err != nil {
		t.Fatalf("LoadProject failed: %v", err)
	}
	if got.Name != "relaunch" {
		t.Errorf("Name = %q, want relaunch", got.Name)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].ID != "solo" {
		t.Errorf("expected only task solo, got %+v", got.Tasks)
	}
	if len(got.Tasks[0].DependsOn) != 0 {
		t.Errorf("stale dependencies survived: %v", got.Tasks[0].DependsOn)
	}
}

func TestSaveProjectRejectsDanglingDependency(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	rec := &ProjectRecord{
		ID:   "p-1",
		Name: "broken",
		Tasks: []scheduler.Task{
			{ID: "a", Name: "A", DependsOn: []string{"ghost"}},
		},
	}
	if err := store.SaveProject(ctx, rec); err == nil {
		t.Fatal("expected foreign key error for unknown dependency")
	}

	// The failed transaction leaves nothing behind.
	if _, err := store.LoadProject(ctx, "p-1"); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound after rollback, got %v", err)
	}
}

func TestLoadProjectNotFound(t *testing.T) {
	store := testStore(t)

	_, err := store.LoadProject(context.Background(), "missing")
	if !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestFindProject(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.SaveProject(ctx, sampleRecord("p-1", "launch")); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}

	id, err := store.FindProject(ctx, "launch")
	if err != nil {
		t.Fatalf("FindProject failed: %v", err)
	}
	if id != "p-1" {
		t.Errorf("FindProject = %q, want p-1", id)
	}

	if _, err := store.FindProject(ctx, "nope"); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestProjectNamesAreUnique(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.SaveProject(ctx, sampleRecord("p-1", "launch")); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}
	if err := store.SaveProject(ctx, sampleRecord("p-2", "launch")); err == nil {
		t.Error("expected unique constraint error for duplicate name")
	}
}

func TestListProjects(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.SaveProject(ctx, sampleRecord("p-1", "alpha")); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}
	if err := store.SaveProject(ctx, &ProjectRecord{ID: "p-2", Name: "beta"}); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}

	projects, err := store.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(projects))
	}

	counts := make(map[string]int)
	for _, p := range projects {
		counts[p.Name] = p.TaskCount
	}
	if counts["alpha"] != 3 {
		t.Errorf("alpha task count = %d, want 3", counts["alpha"])
	}
	if counts["beta"] != 0 {
		t.Errorf("beta task count = %d, want 0", counts["beta"])
	}
}

func TestDeleteProject(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.SaveProject(ctx, sampleRecord("p-1", "launch")); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}
	if err := store.DeleteProject(ctx, "p-1"); err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}

	if _, err := store.LoadProject(ctx, "p-1"); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound after delete, got %v", err)
	}

	// Cascade removed the task rows, so the name and IDs are reusable.
	if err := store.SaveProject(ctx, sampleRecord("p-1", "launch")); err != nil {
		t.Errorf("re-saving deleted project failed: %v", err)
	}

	if err := store.DeleteProject(ctx, "missing"); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound deleting unknown project, got %v", err)
	}
}

func TestMemoryStoresAreIsolated(t *testing.T) {
	a := testStore(t)
	b := testStore(t)
	ctx := context.Background()

	if err := a.SaveProject(ctx, sampleRecord("p-1", "launch")); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}
	if _, err := b.LoadProject(ctx, "p-1"); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("second memory store should not see first store's data, got %v", err)
	}
}

func TestSQLiteStoreOnDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "nexflow.db")

	store, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if err := store.SaveProject(ctx, sampleRecord("p-1", "launch")); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.LoadProject(ctx, "p-1")
	if err != nil {
		t.Fatalf("LoadProject after reopen failed: %v", err)
	}
	if len(got.Tasks) != 3 {
		t.Errorf("expected 3 tasks after reopen, got %d", len(got.Tasks))
	}
}
