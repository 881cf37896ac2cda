package timetable

// bindingKey identifies a (class, subject) pair.
type bindingKey struct {
	ClassID   string
	SubjectID string
}

// RunContext carries all mutable state of one scheduling run. Independent runs
// never share a RunContext, so they may execute concurrently.
type RunContext struct {
	Calendar Calendar
	Matrix   *AvailabilityMatrix

	workload   map[string]int
	roundRobin map[string]int
	bindings   map[bindingKey]string
	unresolved map[bindingKey]bool
	violations []Violation
}

// NewRunContext prepares a run over the calendar and registers every teacher.
func NewRunContext(cal Calendar, teachers []Teacher, limits Limits) *RunContext {
	cal = cal.Normalize()
	matrix := NewAvailabilityMatrix(cal, limits)
	for _, teacher := range teachers {
		matrix.Register(teacher)
	}
	return &RunContext{
		Calendar:   cal,
		Matrix:     matrix,
		workload:   make(map[string]int),
		roundRobin: make(map[string]int),
		bindings:   make(map[bindingKey]string),
		unresolved: make(map[bindingKey]bool),
	}
}

// Bind records the teacher for a (class, subject) pair and counts the workload.
func (r *RunContext) Bind(classID, subjectID, teacherID string) {
	r.bindings[bindingKey{ClassID: classID, SubjectID: subjectID}] = teacherID
	r.workload[teacherID]++
}

// TeacherFor returns the teacher bound to the (class, subject) pair.
func (r *RunContext) TeacherFor(classID, subjectID string) (string, bool) {
	id, ok := r.bindings[bindingKey{ClassID: classID, SubjectID: subjectID}]
	return id, ok
}

// Workload returns the number of (class, subject) pairs bound to the teacher.
func (r *RunContext) Workload(teacherID string) int {
	return r.workload[teacherID]
}

// Unresolved reports whether the pair was left without a teacher.
func (r *RunContext) Unresolved(classID, subjectID string) bool {
	return r.unresolved[bindingKey{ClassID: classID, SubjectID: subjectID}]
}

func (r *RunContext) markUnresolved(classID, subjectID string) {
	r.unresolved[bindingKey{ClassID: classID, SubjectID: subjectID}] = true
}

func (r *RunContext) nextRoundRobin(subjectID string) int {
	idx := r.roundRobin[subjectID]
	r.roundRobin[subjectID] = idx + 1
	return idx
}

// Report appends violations to the run.
func (r *RunContext) Report(v ...Violation) {
	r.violations = append(r.violations, v...)
}

// Violations returns a sorted copy of the violations collected so far.
func (r *RunContext) Violations() []Violation {
	out := make([]Violation, len(r.violations))
	copy(out, r.violations)
	SortViolations(out)
	return out
}

// ViolationsFor returns the collected violations of one class, sorted.
func (r *RunContext) ViolationsFor(classID string) []Violation {
	var out []Violation
	for _, v := range r.violations {
		if v.ClassID == classID {
			out = append(out, v)
		}
	}
	SortViolations(out)
	return out
}
