package scheduler

import (
	"container/heap"
	"fmt"
	"sort"
)

type nodeSet map[string]struct{}

// Graph is a directed dependency graph over task IDs.
// An edge pred -> succ means succ cannot start until pred ends.
// Cycles are representable so that they can be reported, see DetectCycle.
type Graph struct {
	seq  map[string]int     // insertion sequence per task, drives every tie-break
	next int                // next insertion sequence
	succ map[string]nodeSet // task -> tasks that depend on it
	pred map[string]nodeSet // task -> tasks it depends on
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		seq:  make(map[string]int),
		succ: make(map[string]nodeSet),
		pred: make(map[string]nodeSet),
	}
}

// AddTask adds a node. Returns error if the ID is empty or already present.
func (g *Graph) AddTask(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if _, exists := g.seq[id]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTask, id)
	}

	g.seq[id] = g.next
	g.next++
	g.succ[id] = make(nodeSet)
	g.pred[id] = make(nodeSet)
	return nil
}

// RemoveTask deletes a node together with every edge that references it.
func (g *Graph) RemoveTask(id string) error {
	if !g.Has(id) {
		return unknownTask(id)
	}

	for s := range g.succ[id] {
		delete(g.pred[s], id)
	}
	for p := range g.pred[id] {
		delete(g.succ[p], id)
	}
	delete(g.succ, id)
	delete(g.pred, id)
	delete(g.seq, id)
	return nil
}

// Has reports whether id is a node of the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.seq[id]
	return ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.seq)
}

// IDs returns all node IDs in insertion order.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.seq))
	for id := range g.seq {
		ids = append(ids, id)
	}
	g.sortBySeq(ids)
	return ids
}

// AddEdge records that succ depends on pred. Adding an existing edge is a no-op.
func (g *Graph) AddEdge(pred, succ string) error {
	if !g.Has(pred) {
		return unknownTask(pred)
	}
	if !g.Has(succ) {
		return unknownTask(succ)
	}
	if pred == succ {
		return fmt.Errorf("%w: %q", ErrSelfDependency, pred)
	}

	g.succ[pred][succ] = struct{}{}
	g.pred[succ][pred] = struct{}{}
	return nil
}

// RemoveEdge deletes the edge pred -> succ. Removing a missing edge is a no-op.
func (g *Graph) RemoveEdge(pred, succ string) error {
	if !g.Has(pred) {
		return unknownTask(pred)
	}
	if !g.Has(succ) {
		return unknownTask(succ)
	}

	delete(g.succ[pred], succ)
	delete(g.pred[succ], pred)
	return nil
}

// HasEdge reports whether succ depends on pred.
func (g *Graph) HasEdge(pred, succ string) bool {
	_, ok := g.succ[pred][succ]
	return ok
}

// Predecessors returns the direct dependencies of id in insertion order.
func (g *Graph) Predecessors(id string) []string {
	return g.ordered(g.pred[id])
}

// Successors returns the direct dependents of id in insertion order.
func (g *Graph) Successors(id string) []string {
	return g.ordered(g.succ[id])
}

// Roots returns tasks without dependencies, in insertion order.
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.IDs() {
		if len(g.pred[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Leaves returns tasks nothing depends on, in insertion order.
func (g *Graph) Leaves() []string {
	var leaves []string
	for _, id := range g.IDs() {
		if len(g.succ[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// Clone returns a deep copy that preserves insertion order.
func (g *Graph) Clone() *Graph {
	cp := &Graph{
		seq:  make(map[string]int, len(g.seq)),
		next: g.next,
		succ: make(map[string]nodeSet, len(g.succ)),
		pred: make(map[string]nodeSet, len(g.pred)),
	}
	for id, s := range g.seq {
		cp.seq[id] = s
	}
	for id, set := range g.succ {
		cp.succ[id] = copySet(set)
	}
	for id, set := range g.pred {
		cp.pred[id] = copySet(set)
	}
	return cp
}

// DetectCycle returns a cycle as a closed path (first ID repeated at the end),
// or nil if the graph is acyclic.
// DFS roots and successors are visited in insertion order, so the reported
// cycle is stable for identical input.
func (g *Graph) DetectCycle() []string {
	const (
		unvisited = iota
		onStack
		finished
	)

	state := make(map[string]int, len(g.seq))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		state[id] = onStack
		stack = append(stack, id)

		for _, next := range g.Successors(id) {
			switch state[next] {
			case onStack:
				// Back edge: unwind the stack to where next was entered.
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == next {
						cycle := append([]string(nil), stack[i:]...)
						return append(cycle, next)
					}
				}
			case unvisited:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = finished
		return nil
	}

	for _, id := range g.IDs() {
		if state[id] != unvisited {
			continue
		}
		if cycle := visit(id); cycle != nil {
			return cycle
		}
	}
	return nil
}

// TopologicalOrder returns every task ordered so that each task follows all of
// its dependencies. Kahn's algorithm; when several tasks are ready at once the
// earliest inserted wins. Returns *CycleError if the graph is cyclic.
func (g *Graph) TopologicalOrder() ([]string, error) {
	if cycle := g.DetectCycle(); cycle != nil {
		return nil, &CycleError{Path: cycle}
	}

	inDegree := make(map[string]int, len(g.seq))
	ready := &seqHeap{seq: g.seq}
	for id := range g.seq {
		inDegree[id] = len(g.pred[id])
		if inDegree[id] == 0 {
			ready.ids = append(ready.ids, id)
		}
	}
	heap.Init(ready)

	order := make([]string, 0, len(g.seq))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(string)
		order = append(order, id)

		for succ := range g.succ[id] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				heap.Push(ready, succ)
			}
		}
	}

	if len(order) != len(g.seq) {
		// Unreachable once DetectCycle passed; kept so a bug cannot yield a short schedule.
		return nil, &CycleError{Path: g.DetectCycle()}
	}
	return order, nil
}

func (g *Graph) ordered(set nodeSet) []string {
	if len(set) == 0 {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	g.sortBySeq(ids)
	return ids
}

func (g *Graph) sortBySeq(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		return g.seq[ids[i]] < g.seq[ids[j]]
	})
}

func copySet(set nodeSet) nodeSet {
	cp := make(nodeSet, len(set))
	for id := range set {
		cp[id] = struct{}{}
	}
	return cp
}

// seqHeap is a min-heap of task IDs keyed by insertion sequence.
type seqHeap struct {
	ids []string
	seq map[string]int
}

func (h seqHeap) Len() int           { return len(h.ids) }
func (h seqHeap) Less(i, j int) bool { return h.seq[h.ids[i]] < h.seq[h.ids[j]] }
func (h seqHeap) Swap(i, j int)      { h.ids[i], h.ids[j] = h.ids[j], h.ids[i] }
func (h *seqHeap) Push(x any)        { h.ids = append(h.ids, x.(string)) }
func (h *seqHeap) Pop() any {
	old := h.ids
	n := len(old)
	x := old[n-1]
	h.ids = old[:n-1]
	return x
}
