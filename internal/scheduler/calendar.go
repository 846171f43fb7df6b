package scheduler

import "time"

// CalendarEntry is a scheduled task projected onto wall-clock time.
type CalendarEntry struct {
	ID     string
	Name   string
	Start  time.Time
	End    time.Time
	Status TaskStatus
}

// Calendar projects the abstract schedule onto wall-clock time, with time 0 at
// anchor and one time unit lasting unit. Entries follow topological order.
func (r *ScheduleResult) Calendar(anchor time.Time, unit time.Duration) []CalendarEntry {
	entries := make([]CalendarEntry, 0, len(r.Order))
	for _, ts := range r.Ordered() {
		entries = append(entries, CalendarEntry{
			ID:     ts.ID,
			Name:   ts.Name,
			Start:  project(anchor, unit, ts.Start),
			End:    project(anchor, unit, ts.End),
			Status: ts.Status,
		})
	}
	return entries
}

// Overdue returns, in topological order, the tasks that are not done and whose
// projected end lies before now.
func (r *ScheduleResult) Overdue(anchor time.Time, unit time.Duration, now time.Time) []string {
	var late []string
	for _, ts := range r.Ordered() {
		if ts.Status == StatusDone {
			continue
		}
		if project(anchor, unit, ts.End).Before(now) {
			late = append(late, ts.ID)
		}
	}
	return late
}

// Pending returns the tasks that are not done, in topological order.
func (r *ScheduleResult) Pending() []*ScheduledTask {
	var pending []*ScheduledTask
	for _, ts := range r.Ordered() {
		if ts.Status != StatusDone {
			pending = append(pending, ts)
		}
	}
	return pending
}

func project(anchor time.Time, unit time.Duration, at float64) time.Time {
	return anchor.Add(time.Duration(at * float64(unit)))
}
