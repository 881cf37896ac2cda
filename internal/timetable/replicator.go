package timetable

// ScheduledSlot is one cell of one academic week.
type ScheduledSlot struct {
	Week       int        `json:"week"`
	Day        int        `json:"day"`
	Period     int        `json:"period"`
	Assignment Assignment `json:"assignment"`
}

// Replicator stamps a week-1 template over every week of the academic year.
type Replicator struct {
	TotalWeeks int
}

// Replicate copies every template cell to the same (day, period) of weeks 1..TotalWeeks.
// Output is ordered by week, day and period.
func (r Replicator) Replicate(template *ClassGrid) []ScheduledSlot {
	if template == nil {
		return nil
	}
	return r.ReplicateCells(template.Cells())
}

// ReplicateCells stamps an already flattened template, such as one restored from a
// cached proposal. Cells must be ordered by day then period.
func (r Replicator) ReplicateCells(cells []Cell) []ScheduledSlot {
	if len(cells) == 0 || r.TotalWeeks < 1 {
		return nil
	}
	out := make([]ScheduledSlot, 0, len(cells)*r.TotalWeeks)
	for week := 1; week <= r.TotalWeeks; week++ {
		for _, cell := range cells {
			out = append(out, ScheduledSlot{
				Week:       week,
				Day:        cell.Day,
				Period:     cell.Period,
				Assignment: cell.Assignment,
			})
		}
	}
	return out
}
