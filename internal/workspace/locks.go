package workspace

import (
	"sort"
	"sync"
)

// ProjectLocks serializes mutations per project. Each project ID gets its own
// mutex, so edits to different projects proceed concurrently while edits to
// the same project are applied one at a time.
type ProjectLocks struct {
	mu    sync.Mutex             // Guards the locks map itself
	locks map[string]*sync.Mutex // Per-project mutexes
}

// NewProjectLocks creates an empty lock set.
func NewProjectLocks() *ProjectLocks {
	return &ProjectLocks{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the mutex for projectID, creating it on first use.
func (l *ProjectLocks) Lock(projectID string) {
	l.mu.Lock()
	m, ok := l.locks[projectID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[projectID] = m
	}
	l.mu.Unlock()

	// Block outside the map lock so other projects stay available.
	m.Lock()
}

// Unlock releases the mutex for projectID. Unknown IDs are ignored.
func (l *ProjectLocks) Unlock(projectID string) {
	l.mu.Lock()
	m, ok := l.locks[projectID]
	l.mu.Unlock()

	if ok {
		m.Unlock()
	}
}

// LockAll acquires the mutexes for every ID in sorted order, so two callers
// locking overlapping sets cannot deadlock.
func (l *ProjectLocks) LockAll(projectIDs []string) {
	for _, id := range sortedCopy(projectIDs) {
		l.Lock(id)
	}
}

// UnlockAll releases the mutexes taken by LockAll, in reverse order.
func (l *ProjectLocks) UnlockAll(projectIDs []string) {
	sorted := sortedCopy(projectIDs)
	for i := len(sorted) - 1; i >= 0; i-- {
		l.Unlock(sorted[i])
	}
}

func sortedCopy(ids []string) []string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)
	return sorted
}
