package timetable

// ClassGrid is the week-1 template of one class.
type ClassGrid struct {
	ClassID string
	cal     Calendar
	cells   [][]*Assignment
}

// NewClassGrid allocates an empty grid shaped by the calendar.
func NewClassGrid(classID string, cal Calendar) *ClassGrid {
	grid := &ClassGrid{ClassID: classID, cal: cal, cells: make([][]*Assignment, cal.TeachingDaysPerWeek+1)}
	for _, day := range cal.Days() {
		grid.cells[day] = make([]*Assignment, cal.PeriodsOn(day)+1)
	}
	return grid
}

// At returns the assignment at (day, period), if any.
func (g *ClassGrid) At(day, period int) (Assignment, bool) {
	if !g.cal.Contains(day, period) || g.cells[day][period] == nil {
		return Assignment{}, false
	}
	return *g.cells[day][period], true
}

// IsFree reports whether the cell exists and holds nothing.
func (g *ClassGrid) IsFree(day, period int) bool {
	return g.cal.Contains(day, period) && g.cells[day][period] == nil
}

func (g *ClassGrid) set(day, period int, a Assignment) {
	cp := a
	g.cells[day][period] = &cp
}

// Calendar returns the calendar the grid was built for.
func (g *ClassGrid) Calendar() Calendar {
	return g.cal
}

// Cell is a positioned assignment.
type Cell struct {
	Day        int        `json:"day"`
	Period     int        `json:"period"`
	Assignment Assignment `json:"assignment"`
}

// Cells lists the occupied cells ordered by day then period.
func (g *ClassGrid) Cells() []Cell {
	var out []Cell
	for _, day := range g.cal.Days() {
		for _, period := range g.cal.Periods(day) {
			if a := g.cells[day][period]; a != nil {
				out = append(out, Cell{Day: day, Period: period, Assignment: *a})
			}
		}
	}
	return out
}

// runLength counts consecutive cells of subjectID touching period on day, including period itself.
func (g *ClassGrid) runLength(subjectID string, day, period int) int {
	n := 1
	for p := period - 1; p >= 1; p-- {
		if a := g.cells[day][p]; a != nil && a.SubjectID == subjectID {
			n++
			continue
		}
		break
	}
	for p := period + 1; p <= g.cal.PeriodsOn(day); p++ {
		if a := g.cells[day][p]; a != nil && a.SubjectID == subjectID {
			n++
			continue
		}
		break
	}
	return n
}
