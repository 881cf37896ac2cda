package timetable

import (
	"fmt"
	"sort"
)

// Resolver binds exactly one teacher to every (class, subject) pair of a grade.
type Resolver struct {
	teachers []Teacher
	byID     map[string]Teacher
}

// NewResolver orders the teacher pool by name then id so tie-breaks are stable.
func NewResolver(teachers []Teacher) *Resolver {
	pool := make([]Teacher, len(teachers))
	copy(pool, teachers)
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Name != pool[j].Name {
			return pool[i].Name < pool[j].Name
		}
		return pool[i].ID < pool[j].ID
	})
	byID := make(map[string]Teacher, len(pool))
	for _, teacher := range pool {
		byID[teacher.ID] = teacher
	}
	return &Resolver{teachers: pool, byID: byID}
}

// Resolve binds teachers into run. Homeroom teachers claim their own subjects first;
// the remaining pairs go to the least loaded qualified teacher.
func (r *Resolver) Resolve(run *RunContext, classes []Class, subjects []Subject) {
	for _, class := range classes {
		homeroom, ok := r.byID[class.HomeroomTeacherID]
		if !ok {
			continue
		}
		for _, subject := range subjects {
			if homeroom.Qualified(subject.ID) {
				run.Bind(class.ID, subject.ID, homeroom.ID)
			}
		}
	}

	for _, class := range classes {
		for _, subject := range subjects {
			if _, bound := run.TeacherFor(class.ID, subject.ID); bound {
				continue
			}
			teacherID, ok := r.pick(run, class.ID, subject, subjects)
			if !ok {
				run.markUnresolved(class.ID, subject.ID)
				run.Report(Violation{
					Type:      ViolationNoQualifiedTeacher,
					Severity:  SeverityCritical,
					ClassID:   class.ID,
					SubjectID: subject.ID,
					Detail:    fmt.Sprintf("no qualified teacher available for subject %s in class %s", subject.ID, class.ID),
				})
				continue
			}
			run.Bind(class.ID, subject.ID, teacherID)
		}
	}
}

func (r *Resolver) pick(run *RunContext, classID string, subject Subject, subjects []Subject) (string, bool) {
	var (
		candidates []Teacher
		lowest     int
	)
	for _, teacher := range r.teachers {
		if !teacher.Qualified(subject.ID) {
			continue
		}
		if r.boundElsewhere(run, classID, subject.ID, teacher.ID, subjects) {
			continue
		}
		load := run.Workload(teacher.ID)
		switch {
		case len(candidates) == 0 || load < lowest:
			candidates = []Teacher{teacher}
			lowest = load
		case load == lowest:
			candidates = append(candidates, teacher)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	idx := run.nextRoundRobin(subject.ID) % len(candidates)
	return candidates[idx].ID, true
}

// boundElsewhere reports whether the teacher already teaches another subject to the class.
func (r *Resolver) boundElsewhere(run *RunContext, classID, subjectID, teacherID string, subjects []Subject) bool {
	for _, other := range subjects {
		if other.ID == subjectID {
			continue
		}
		if bound, ok := run.TeacherFor(classID, other.ID); ok && bound == teacherID {
			return true
		}
	}
	return false
}
