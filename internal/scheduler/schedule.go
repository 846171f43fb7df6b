package scheduler

import (
	"fmt"
	"math"
)

// criticalEpsilon absorbs float rounding when deciding whether slack is zero.
const criticalEpsilon = 1e-9

// ScheduledTask holds the computed time window and status of a single task.
type ScheduledTask struct {
	ID          string     `json:"id"`
	Name        string     `json:"name,omitempty"`
	Duration    float64    `json:"duration"`
	Start       float64    `json:"start"`        // earliest start
	End         float64    `json:"end"`          // earliest finish
	LatestStart float64    `json:"latest_start"` // latest start that keeps ProjectEnd
	LatestEnd   float64    `json:"latest_end"`
	Slack       float64    `json:"slack"`
	Critical    bool       `json:"critical"`
	Status      TaskStatus `json:"status"`
	WaitingFor  []string   `json:"waiting_for,omitempty"` // predecessors not yet done
}

// ScheduleResult is the outcome of one scheduling pass. It is plain data and is
// replaced, never patched, on the next pass.
type ScheduleResult struct {
	Tasks        map[string]*ScheduledTask `json:"tasks"`
	Order        []string                  `json:"order"`         // topological order
	CriticalPath []string                  `json:"critical_path"` // zero-slack tasks in Order
	ProjectEnd   float64                   `json:"project_end"`
}

// Task returns the scheduled entry for id.
func (r *ScheduleResult) Task(id string) (*ScheduledTask, bool) {
	t, ok := r.Tasks[id]
	return t, ok
}

// Ordered returns the scheduled tasks in topological order.
func (r *ScheduleResult) Ordered() []*ScheduledTask {
	out := make([]*ScheduledTask, 0, len(r.Order))
	for _, id := range r.Order {
		out = append(out, r.Tasks[id])
	}
	return out
}

// ComputeSchedule runs a forward pass over g in topological order to find the
// earliest start and finish of every task, then a backward pass for latest
// times and slack. Every node of g needs an entry in durations.
//
// Status fields are left at their zero value; see ComputeStatus.
func ComputeSchedule(g *Graph, durations map[string]float64) (*ScheduleResult, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	for _, id := range order {
		if err := checkDuration(id, durations); err != nil {
			return nil, err
		}
	}

	result := &ScheduleResult{
		Tasks: make(map[string]*ScheduledTask, len(order)),
		Order: order,
	}

	// Forward pass: predecessors are always written before they are read.
	for _, id := range order {
		start := 0.0
		for _, pred := range g.Predecessors(id) {
			if end := result.Tasks[pred].End; end > start {
				start = end
			}
		}
		d := durations[id]
		if math.IsInf(start+d, 0) {
			return nil, &DurationError{TaskID: id, Reason: "finish time overflows"}
		}
		result.Tasks[id] = &ScheduledTask{
			ID:       id,
			Duration: d,
			Start:    start,
			End:      start + d,
		}
		if result.Tasks[id].End > result.ProjectEnd {
			result.ProjectEnd = result.Tasks[id].End
		}
	}

	// Backward pass in reverse topological order.
	for i := len(order) - 1; i >= 0; i-- {
		ts := result.Tasks[order[i]]
		latestEnd := result.ProjectEnd
		for _, succ := range g.Successors(ts.ID) {
			if ls := result.Tasks[succ].LatestStart; ls < latestEnd {
				latestEnd = ls
			}
		}
		ts.LatestEnd = latestEnd
		ts.LatestStart = latestEnd - ts.Duration
		ts.Slack = ts.LatestStart - ts.Start
		ts.Critical = math.Abs(ts.Slack) < criticalEpsilon
	}

	for _, id := range order {
		if result.Tasks[id].Critical {
			result.CriticalPath = append(result.CriticalPath, id)
		}
	}

	return result, nil
}

func checkDuration(id string, durations map[string]float64) error {
	d, ok := durations[id]
	switch {
	case !ok:
		return &DurationError{TaskID: id, Reason: "missing"}
	case math.IsNaN(d) || math.IsInf(d, 0):
		return &DurationError{TaskID: id, Reason: "not a finite number"}
	case d < 0:
		return &DurationError{TaskID: id, Reason: fmt.Sprintf("negative (%g)", d)}
	}
	return nil
}
