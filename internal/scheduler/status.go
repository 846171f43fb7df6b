package scheduler

// ComputeStatus derives the runtime status of every task from the completion
// flags and direct predecessor relations of g:
//
//   - Done if the task's own completed flag is set
//   - Ready if every direct predecessor is Done (always true without predecessors)
//   - InProgress if it would be Ready and the external in-progress flag is set
//   - Blocked otherwise
//
// InProgress is never inferred from timing; it only reflects inProgress.
// Returns *CycleError if g is cyclic.
func ComputeStatus(g *Graph, completed, inProgress map[string]bool) (map[string]TaskStatus, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	status := make(map[string]TaskStatus, len(order))
	for _, id := range order {
		if completed[id] {
			status[id] = StatusDone
			continue
		}

		ready := true
		for _, pred := range g.Predecessors(id) {
			if status[pred] != StatusDone {
				ready = false
				break
			}
		}

		switch {
		case !ready:
			status[id] = StatusBlocked
		case inProgress[id]:
			status[id] = StatusInProgress
		default:
			status[id] = StatusReady
		}
	}
	return status, nil
}

// waitingFor lists the direct predecessors of id that are not Done.
func waitingFor(g *Graph, id string, status map[string]TaskStatus) []string {
	var waiting []string
	for _, pred := range g.Predecessors(id) {
		if status[pred] != StatusDone {
			waiting = append(waiting, pred)
		}
	}
	return waiting
}
