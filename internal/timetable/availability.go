package timetable

import (
	"fmt"
	"sort"
)

const (
	defaultMaxPerDay  = 8
	defaultMaxPerWeek = 40
)

// TeacherState tracks one teacher's occupancy for a whole run.
type TeacherState struct {
	TeacherID  string
	MaxPerDay  int
	MaxPerWeek int
	occupied   [][]bool
	blocked    [][]bool
	perDay     []int
	weekly     int
}

func newTeacherState(teacher Teacher, days, periods int, limits Limits) *TeacherState {
	state := &TeacherState{
		TeacherID:  teacher.ID,
		MaxPerDay:  teacher.MaxPerDay,
		MaxPerWeek: teacher.MaxPerWeek,
		occupied:   make([][]bool, days+1),
		blocked:    make([][]bool, days+1),
		perDay:     make([]int, days+1),
	}
	if state.MaxPerDay <= 0 {
		state.MaxPerDay = limits.MaxPerDay
	}
	if state.MaxPerWeek <= 0 {
		state.MaxPerWeek = limits.MaxPerWeek
	}
	for day := 1; day <= days; day++ {
		state.occupied[day] = make([]bool, periods+1)
		state.blocked[day] = make([]bool, periods+1)
	}
	for _, slot := range teacher.Unavailable {
		if state.inRange(slot.Day, slot.Period) {
			state.blocked[slot.Day][slot.Period] = true
		}
	}
	return state
}

func (t *TeacherState) inRange(day, period int) bool {
	return day >= 1 && day < len(t.occupied) && period >= 1 && period < len(t.occupied[day])
}

// Limits are the default load ceilings applied to teachers without their own.
type Limits struct {
	MaxPerDay  int
	MaxPerWeek int
}

func (l Limits) withDefaults() Limits {
	if l.MaxPerDay <= 0 {
		l.MaxPerDay = defaultMaxPerDay
	}
	if l.MaxPerWeek <= 0 {
		l.MaxPerWeek = defaultMaxPerWeek
	}
	return l
}

// AvailabilityMatrix is the shared record of teacher time for one run.
// It is not safe for concurrent use; a run drives it from a single goroutine.
type AvailabilityMatrix struct {
	days     int
	periods  int
	limits   Limits
	teachers map[string]*TeacherState
}

// NewAvailabilityMatrix allocates an empty matrix sized to the calendar.
func NewAvailabilityMatrix(cal Calendar, limits Limits) *AvailabilityMatrix {
	return &AvailabilityMatrix{
		days:     cal.TeachingDaysPerWeek,
		periods:  cal.PeriodsPerDay,
		limits:   limits.withDefaults(),
		teachers: make(map[string]*TeacherState),
	}
}

// Register adds a teacher, blocking their unavailable slots.
func (m *AvailabilityMatrix) Register(teacher Teacher) {
	m.teachers[teacher.ID] = newTeacherState(teacher, m.days, m.periods, m.limits)
}

// State returns the state of a registered teacher.
func (m *AvailabilityMatrix) State(teacherID string) (*TeacherState, bool) {
	state, ok := m.teachers[teacherID]
	return state, ok
}

// IsFree reports whether the teacher has nothing at (day, period).
func (m *AvailabilityMatrix) IsFree(teacherID string, day, period int) bool {
	state, ok := m.teachers[teacherID]
	if !ok || !state.inRange(day, period) {
		return false
	}
	return !state.occupied[day][period]
}

// CanTeach reports whether one more regular period may be given to the teacher.
func (m *AvailabilityMatrix) CanTeach(teacherID string, day, period int) bool {
	return m.CanTeachBlock(teacherID, day, period, 1)
}

// CanTeachBlock checks n consecutive periods starting at period.
func (m *AvailabilityMatrix) CanTeachBlock(teacherID string, day, period, n int) bool {
	state, ok := m.teachers[teacherID]
	if !ok {
		return false
	}
	for p := period; p < period+n; p++ {
		if !state.inRange(day, p) || state.occupied[day][p] || state.blocked[day][p] {
			return false
		}
	}
	if state.perDay[day]+n > state.MaxPerDay {
		return false
	}
	return state.weekly+n <= state.MaxPerWeek
}

// Reserve marks the cell occupied and counts it toward the teacher's load.
func (m *AvailabilityMatrix) Reserve(teacherID string, day, period int) error {
	state, ok := m.teachers[teacherID]
	if !ok {
		return fmt.Errorf("teacher %s is not registered", teacherID)
	}
	if !state.inRange(day, period) {
		return fmt.Errorf("slot %d/%d is outside the grid", day, period)
	}
	if state.occupied[day][period] {
		return fmt.Errorf("%w: %s at %d/%d", errDoubleBooked, teacherID, day, period)
	}
	state.occupied[day][period] = true
	state.perDay[day]++
	state.weekly++
	return nil
}

// DailyLoad returns the periods the teacher holds on a day.
func (m *AvailabilityMatrix) DailyLoad(teacherID string, day int) int {
	state, ok := m.teachers[teacherID]
	if !ok || day < 1 || day >= len(state.perDay) {
		return 0
	}
	return state.perDay[day]
}

// WeeklyLoad returns the periods the teacher holds in the week.
func (m *AvailabilityMatrix) WeeklyLoad(teacherID string) int {
	if state, ok := m.teachers[teacherID]; ok {
		return state.weekly
	}
	return 0
}

// TeacherLoad summarises the final load of one teacher.
type TeacherLoad struct {
	TeacherID  string      `json:"teacherId"`
	Weekly     int         `json:"weekly"`
	Daily      map[int]int `json:"daily"`
	MaxPerDay  int         `json:"maxPerDay"`
	MaxPerWeek int         `json:"maxPerWeek"`
}

// Loads returns a snapshot of every teacher's load ordered by teacher id.
func (m *AvailabilityMatrix) Loads() []TeacherLoad {
	ids := make([]string, 0, len(m.teachers))
	for id := range m.teachers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]TeacherLoad, 0, len(ids))
	for _, id := range ids {
		state := m.teachers[id]
		daily := make(map[int]int)
		for day := 1; day < len(state.perDay); day++ {
			if state.perDay[day] > 0 {
				daily[day] = state.perDay[day]
			}
		}
		out = append(out, TeacherLoad{
			TeacherID:  id,
			Weekly:     state.weekly,
			Daily:      daily,
			MaxPerDay:  state.MaxPerDay,
			MaxPerWeek: state.MaxPerWeek,
		})
	}
	return out
}
