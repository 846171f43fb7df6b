package scheduler

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/gammazero/toposort"
)

// randomGraph builds a graph with n tasks. With acyclic set, edges only point
// from lower to higher index; otherwise any direction is allowed.
func randomGraph(t *testing.T, rng *rand.Rand, n int, density float64, acyclic bool) *Graph {
	t.Helper()
	g := NewGraph()
	for i := 0; i < n; i++ {
		if err := g.AddTask(fmt.Sprintf("t%02d", i)); err != nil {
			t.Fatalf("AddTask: %v", err)
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j || rng.Float64() >= density {
				continue
			}
			if acyclic && i > j {
				continue
			}
			if err := g.AddEdge(fmt.Sprintf("t%02d", i), fmt.Sprintf("t%02d", j)); err != nil {
				t.Fatalf("AddEdge: %v", err)
			}
		}
	}
	return g
}

// oracleHasCycle asks gammazero/toposort whether g is cyclic.
func oracleHasCycle(g *Graph) bool {
	var edges []toposort.Edge
	for _, id := range g.IDs() {
		preds := g.Predecessors(id)
		if len(preds) == 0 {
			edges = append(edges, toposort.Edge{nil, id})
			continue
		}
		for _, p := range preds {
			edges = append(edges, toposort.Edge{p, id})
		}
	}
	_, err := toposort.Toposort(edges)
	return err != nil
}

func TestTopologicalOrderRespectsEdges(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		g := randomGraph(t, rng, 2+rng.Intn(20), 0.2, true)

		order, err := g.TopologicalOrder()
		if err != nil {
			t.Fatalf("round %d: acyclic graph reported %v", round, err)
		}
		if len(order) != g.Len() {
			t.Fatalf("round %d: order has %d tasks, graph has %d", round, len(order), g.Len())
		}

		pos := make(map[string]int, len(order))
		for i, id := range order {
			pos[id] = i
		}
		for _, id := range g.IDs() {
			for _, succ := range g.Successors(id) {
				if pos[id] >= pos[succ] {
					t.Errorf("round %d: edge %s -> %s violated by order %v", round, id, succ, order)
				}
			}
		}
	}
}

func TestDetectCycleAgreesWithTopologicalOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 100; round++ {
		g := randomGraph(t, rng, 2+rng.Intn(12), 0.15, false)

		cycle := g.DetectCycle()
		_, err := g.TopologicalOrder()

		if (cycle != nil) != (err != nil) {
			t.Fatalf("round %d: DetectCycle() = %v but TopologicalOrder() error = %v", round, cycle, err)
		}
		if (cycle != nil) != oracleHasCycle(g) {
			t.Fatalf("round %d: DetectCycle() = %v disagrees with toposort oracle", round, cycle)
		}

		if cycle == nil {
			continue
		}
		// The reported path must be closed and follow real edges.
		if cycle[0] != cycle[len(cycle)-1] {
			t.Errorf("round %d: cycle %v is not closed", round, cycle)
		}
		for i := 0; i+1 < len(cycle); i++ {
			if !g.HasEdge(cycle[i], cycle[i+1]) {
				t.Errorf("round %d: cycle %v uses missing edge %s -> %s", round, cycle, cycle[i], cycle[i+1])
			}
		}
	}
}

func TestTopologicalOrderIsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	g := randomGraph(t, rng, 30, 0.1, true)

	first, err := g.TopologicalOrder()
	if err != nil {
		t.Fatalf("TopologicalOrder() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := g.TopologicalOrder()
		if err != nil {
			t.Fatalf("TopologicalOrder() error = %v", err)
		}
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("run %d differs at %d: %v vs %v", i, j, first, again)
			}
		}
	}
}
