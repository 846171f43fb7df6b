package scheduler

import (
	"errors"
	"reflect"
	"testing"
)

// buildGraph creates a graph from node IDs (insertion order) and pred->succ edges.
func buildGraph(t *testing.T, ids []string, edges [][2]string) *Graph {
	t.Helper()
	g := NewGraph()
	for _, id := range ids {
		if err := g.AddTask(id); err != nil {
			t.Fatalf("AddTask(%q): %v", id, err)
		}
	}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			t.Fatalf("AddEdge(%q, %q): %v", e[0], e[1], err)
		}
	}
	return g
}

func TestGraphAddTask(t *testing.T) {
	g := NewGraph()

	if err := g.AddTask("A"); err != nil {
		t.Fatalf("AddTask(A) error = %v", err)
	}
	if err := g.AddTask("A"); !errors.Is(err, ErrDuplicateTask) {
		t.Errorf("AddTask(A) twice error = %v, want ErrDuplicateTask", err)
	}
	if err := g.AddTask(""); !errors.Is(err, ErrEmptyID) {
		t.Errorf("AddTask(\"\") error = %v, want ErrEmptyID", err)
	}
	if g.Len() != 1 {
		t.Errorf("Len() = %d, want 1", g.Len())
	}
}

func TestGraphAddEdge(t *testing.T) {
	tests := []struct {
		name    string
		pred    string
		succ    string
		wantErr error
	}{
		{name: "valid edge", pred: "A", succ: "B"},
		{name: "unknown predecessor", pred: "X", succ: "B", wantErr: ErrUnknownTask},
		{name: "unknown successor", pred: "A", succ: "X", wantErr: ErrUnknownTask},
		{name: "self dependency", pred: "A", succ: "A", wantErr: ErrSelfDependency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := buildGraph(t, []string{"A", "B"}, nil)

			err := g.AddEdge(tt.pred, tt.succ)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("AddEdge() error = %v, want %v", err, tt.wantErr)
				}
				if g.HasEdge(tt.pred, tt.succ) {
					t.Error("failed AddEdge left an edge behind")
				}
				return
			}
			if err != nil {
				t.Fatalf("AddEdge() unexpected error: %v", err)
			}
			if !g.HasEdge(tt.pred, tt.succ) {
				t.Error("HasEdge() = false after AddEdge")
			}
		})
	}
}

func TestGraphAddEdgeIsIdempotent(t *testing.T) {
	g := buildGraph(t, []string{"A", "B"}, [][2]string{{"A", "B"}, {"A", "B"}})

	if got := g.Successors("A"); !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("Successors(A) = %v, want [B]", got)
	}
	if got := g.Predecessors("B"); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("Predecessors(B) = %v, want [A]", got)
	}
}

func TestGraphRemoveTaskDropsEdges(t *testing.T) {
	// A -> B -> C, A -> C
	g := buildGraph(t, []string{"A", "B", "C"}, [][2]string{{"A", "B"}, {"B", "C"}, {"A", "C"}})

	if err := g.RemoveTask("B"); err != nil {
		t.Fatalf("RemoveTask(B) error = %v", err)
	}

	if g.Has("B") {
		t.Error("B still present after removal")
	}
	if got := g.Successors("A"); !reflect.DeepEqual(got, []string{"C"}) {
		t.Errorf("Successors(A) = %v, want [C]", got)
	}
	if got := g.Predecessors("C"); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("Predecessors(C) = %v, want [A]", got)
	}
	if err := g.RemoveTask("B"); !errors.Is(err, ErrUnknownTask) {
		t.Errorf("second RemoveTask(B) error = %v, want ErrUnknownTask", err)
	}
}

func TestGraphRemoveEdge(t *testing.T) {
	g := buildGraph(t, []string{"A", "B"}, [][2]string{{"A", "B"}})

	if err := g.RemoveEdge("A", "B"); err != nil {
		t.Fatalf("RemoveEdge() error = %v", err)
	}
	if g.HasEdge("A", "B") {
		t.Error("edge still present")
	}
	if err := g.RemoveEdge("A", "B"); err != nil {
		t.Errorf("removing a missing edge should be a no-op, got %v", err)
	}
	if err := g.RemoveEdge("A", "Z"); !errors.Is(err, ErrUnknownTask) {
		t.Errorf("RemoveEdge(A, Z) error = %v, want ErrUnknownTask", err)
	}
}

func TestGraphRootsAndLeaves(t *testing.T) {
	// A -> B -> D
	// A -> C -> D
	// E isolated
	g := buildGraph(t, []string{"A", "B", "C", "D", "E"},
		[][2]string{{"A", "B"}, {"A", "C"}, {"B", "D"}, {"C", "D"}})

	if got := g.Roots(); !reflect.DeepEqual(got, []string{"A", "E"}) {
		t.Errorf("Roots() = %v, want [A E]", got)
	}
	if got := g.Leaves(); !reflect.DeepEqual(got, []string{"D", "E"}) {
		t.Errorf("Leaves() = %v, want [D E]", got)
	}
}

func TestDetectCycle(t *testing.T) {
	tests := []struct {
		name  string
		ids   []string
		edges [][2]string
		want  []string
	}{
		{
			name:  "acyclic chain",
			ids:   []string{"A", "B", "C"},
			edges: [][2]string{{"A", "B"}, {"B", "C"}},
			want:  nil,
		},
		{
			name:  "two task cycle",
			ids:   []string{"A", "B"},
			edges: [][2]string{{"B", "A"}, {"A", "B"}},
			want:  []string{"A", "B", "A"},
		},
		{
			name:  "three task cycle",
			ids:   []string{"A", "B", "C"},
			edges: [][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}},
			want:  []string{"A", "B", "C", "A"},
		},
		{
			name:  "cycle behind an acyclic prefix",
			ids:   []string{"root", "X", "Y", "Z"},
			edges: [][2]string{{"root", "X"}, {"X", "Y"}, {"Y", "Z"}, {"Z", "X"}},
			want:  []string{"X", "Y", "Z", "X"},
		},
		{
			name:  "diamond is not a cycle",
			ids:   []string{"A", "B", "C", "D"},
			edges: [][2]string{{"A", "B"}, {"A", "C"}, {"B", "D"}, {"C", "D"}},
			want:  nil,
		},
		{
			name: "empty graph",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := buildGraph(t, tt.ids, tt.edges)
			got := g.DetectCycle()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DetectCycle() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTopologicalOrder(t *testing.T) {
	tests := []struct {
		name  string
		ids   []string
		edges [][2]string
		want  []string
	}{
		{
			name:  "linear chain",
			ids:   []string{"C", "B", "A"},
			edges: [][2]string{{"A", "B"}, {"B", "C"}},
			want:  []string{"A", "B", "C"},
		},
		{
			name: "independent tasks keep insertion order",
			ids:  []string{"zeta", "alpha", "mid"},
			want: []string{"zeta", "alpha", "mid"},
		},
		{
			name:  "ready ties broken by insertion order",
			ids:   []string{"A", "B", "C", "D"},
			edges: [][2]string{{"B", "A"}, {"D", "C"}},
			// B and D ready; B inserted first. After B, A becomes ready and
			// was inserted before D.
			want: []string{"B", "A", "D", "C"},
		},
		{
			name:  "diamond",
			ids:   []string{"A", "B", "C", "D"},
			edges: [][2]string{{"A", "C"}, {"A", "B"}, {"B", "D"}, {"C", "D"}},
			want:  []string{"A", "B", "C", "D"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := buildGraph(t, tt.ids, tt.edges)
			got, err := g.TopologicalOrder()
			if err != nil {
				t.Fatalf("TopologicalOrder() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("TopologicalOrder() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTopologicalOrderCycle(t *testing.T) {
	g := buildGraph(t, []string{"A", "B", "C"}, [][2]string{{"A", "B"}, {"B", "A"}, {"B", "C"}})

	order, err := g.TopologicalOrder()
	if order != nil {
		t.Errorf("expected nil order, got %v", order)
	}

	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("error = %v, want *CycleError", err)
	}
	if !errors.Is(err, ErrCycle) {
		t.Error("CycleError should unwrap to ErrCycle")
	}
	if want := []string{"A", "B", "A"}; !reflect.DeepEqual(cycleErr.Path, want) {
		t.Errorf("cycle path = %v, want %v", cycleErr.Path, want)
	}
	if got, want := err.Error(), "dependency cycle detected: A -> B -> A"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestGraphClone(t *testing.T) {
	g := buildGraph(t, []string{"A", "B"}, [][2]string{{"A", "B"}})
	cp := g.Clone()

	if err := cp.AddTask("C"); err != nil {
		t.Fatalf("AddTask on clone: %v", err)
	}
	if err := cp.RemoveEdge("A", "B"); err != nil {
		t.Fatalf("RemoveEdge on clone: %v", err)
	}

	if g.Has("C") {
		t.Error("clone mutation leaked a node into the original")
	}
	if !g.HasEdge("A", "B") {
		t.Error("clone mutation removed an edge from the original")
	}
	if got := cp.IDs(); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Errorf("clone IDs() = %v, want insertion order [A B C]", got)
	}
}
