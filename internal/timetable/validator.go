package timetable

import "fmt"

// MorningRatioTarget is the share of priority periods expected before lunch.
const MorningRatioTarget = 0.6

// Validator runs advisory consistency checks. It never mutates what it inspects.
type Validator struct {
	MorningRatio float64
}

// NewValidator returns a validator with the default morning ratio target.
func NewValidator() *Validator {
	return &Validator{MorningRatio: MorningRatioTarget}
}

// ValidateClass checks one class's requirements, double blocks and morning ratio.
func (v *Validator) ValidateClass(run *RunContext, cp *ClassPlacement) []Violation {
	var out []Violation
	classID := cp.Class.ID
	for _, subject := range cp.Tracker.Subjects() {
		if run.Unresolved(classID, subject.ID) {
			continue
		}
		teacherID, _ := run.TeacherFor(classID, subject.ID)
		if scheduled, required := cp.Tracker.Scheduled(subject.ID), cp.Tracker.Required(subject.ID); scheduled < required {
			out = append(out, Violation{
				Type:      ViolationSubjectUnderfulfilled,
				Severity:  SeverityHigh,
				ClassID:   classID,
				SubjectID: subject.ID,
				TeacherID: teacherID,
				Detail:    fmt.Sprintf("subject %s scheduled %d of %d weekly periods", subject.ID, scheduled, required),
			})
		}
		if placed, target := cp.Tracker.DoublesPlaced(subject.ID), cp.Tracker.DoubleTarget(subject.ID); placed < target {
			out = append(out, Violation{
				Type:      ViolationDoublePeriodUnderfulfilled,
				Severity:  SeverityHigh,
				ClassID:   classID,
				SubjectID: subject.ID,
				TeacherID: teacherID,
				Detail:    fmt.Sprintf("subject %s has %d of %d double blocks", subject.ID, placed, target),
			})
		}
	}

	priorityTotal, priorityMorning := 0, 0
	cal := cp.Grid.Calendar()
	for _, cell := range cp.Grid.Cells() {
		if cell.Assignment.Kind != KindRegular {
			continue
		}
		subject, ok := cp.Tracker.Subject(cell.Assignment.SubjectID)
		if !ok || !subject.IsPriority {
			continue
		}
		priorityTotal++
		if cal.IsMorning(cell.Period) {
			priorityMorning++
		}
	}
	if priorityTotal > 0 {
		ratio := float64(priorityMorning) / float64(priorityTotal)
		if ratio < v.MorningRatio {
			out = append(out, Violation{
				Type:     ViolationMorningRatioBelowTarget,
				Severity: SeverityMedium,
				ClassID:  classID,
				Detail: fmt.Sprintf("%d of %d priority periods are in the morning (%.0f%% < %.0f%%)",
					priorityMorning, priorityTotal, ratio*100, v.MorningRatio*100),
			})
		}
	}
	return out
}

// ValidateTeachers checks every teacher's daily and weekly load against their limits.
func (v *Validator) ValidateTeachers(matrix *AvailabilityMatrix) []Violation {
	var out []Violation
	for _, load := range matrix.Loads() {
		for day := 1; day <= matrix.days; day++ {
			if count := load.Daily[day]; count > load.MaxPerDay {
				out = append(out, Violation{
					Type:      ViolationTeacherOverload,
					Severity:  SeverityCritical,
					TeacherID: load.TeacherID,
					Day:       day,
					Detail:    fmt.Sprintf("teacher %s has %d periods on day %d (max %d)", load.TeacherID, count, day, load.MaxPerDay),
				})
			}
		}
		if load.Weekly > load.MaxPerWeek {
			out = append(out, Violation{
				Type:      ViolationTeacherOverload,
				Severity:  SeverityCritical,
				TeacherID: load.TeacherID,
				Detail:    fmt.Sprintf("teacher %s has %d periods this week (max %d)", load.TeacherID, load.Weekly, load.MaxPerWeek),
			})
		}
	}
	return out
}
