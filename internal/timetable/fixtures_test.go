package timetable

func weekCalendar(days, periods, weeks int) Calendar {
	return Calendar{TeachingDaysPerWeek: days, PeriodsPerDay: periods, TotalWeeks: weeks}
}

// scenarioInput is the single-class Math/Art/PE example.
func scenarioInput() GradeInput {
	return GradeInput{
		Grade:    "10",
		Calendar: weekCalendar(6, 7, 4),
		Subjects: []Subject{
			{ID: "math", Name: "Mathematics", RequiredWeeklyPeriods: 4, IsPriority: true},
			{ID: "art", Name: "Art", RequiredWeeklyPeriods: 2},
			{ID: "pe", Name: "Physical Education", RequiredWeeklyPeriods: 2},
		},
		Teachers: []Teacher{
			{ID: "t-hr", Name: "Homeroom"},
			{ID: "t-math", Name: "Math Teacher", SubjectIDs: []string{"math"}},
			{ID: "t-art", Name: "Art Teacher", SubjectIDs: []string{"art"}},
			{ID: "t-pe", Name: "PE Teacher", SubjectIDs: []string{"pe"}},
		},
		Classes: []Class{{ID: "10A", Name: "X-A", HomeroomTeacherID: "t-hr"}},
	}
}

// gradeInput is a four-class grade whose homerooms also teach.
func gradeInput() GradeInput {
	return GradeInput{
		Grade:    "10",
		Calendar: weekCalendar(6, 8, 3),
		Subjects: []Subject{
			{ID: "math", Name: "Matematika", RequiredWeeklyPeriods: 5, IsPriority: true},
			{ID: "indo", Name: "Bahasa Indonesia", RequiredWeeklyPeriods: 4, IsPriority: true},
			{ID: "eng", Name: "Bahasa Inggris", RequiredWeeklyPeriods: 3, IsPriority: true},
			{ID: "phys", Name: "Fisika", RequiredWeeklyPeriods: 3},
			{ID: "chem", Name: "Kimia", RequiredWeeklyPeriods: 2},
			{ID: "bio", Name: "Biologi", RequiredWeeklyPeriods: 2},
			{ID: "pe", Name: "PJOK", RequiredWeeklyPeriods: 2},
			{ID: "art", Name: "Seni Budaya", RequiredWeeklyPeriods: 2},
			{ID: "rel", Name: "Pendidikan Agama", RequiredWeeklyPeriods: 2},
		},
		Teachers: []Teacher{
			{ID: "m1", Name: "Ahmad", SubjectIDs: []string{"math"}},
			{ID: "m2", Name: "Bambang", SubjectIDs: []string{"math"}},
			{ID: "i1", Name: "Citra", SubjectIDs: []string{"indo"}},
			{ID: "i2", Name: "Dewi", SubjectIDs: []string{"indo"}},
			{ID: "e1", Name: "Eka", SubjectIDs: []string{"eng"}},
			{ID: "p1", Name: "Fajar", SubjectIDs: []string{"phys"}},
			{ID: "k1", Name: "Gita", SubjectIDs: []string{"chem"}},
			{ID: "b1", Name: "Hadi", SubjectIDs: []string{"bio"}},
			{ID: "o1", Name: "Indra", SubjectIDs: []string{"pe"}},
			{ID: "s1", Name: "Joko", SubjectIDs: []string{"art"}},
			{ID: "r1", Name: "Kartika", SubjectIDs: []string{"rel"}},
		},
		Classes: []Class{
			{ID: "10-1", Name: "X-1", HomeroomTeacherID: "m1"},
			{ID: "10-2", Name: "X-2", HomeroomTeacherID: "i1"},
			{ID: "10-3", Name: "X-3", HomeroomTeacherID: "e1"},
			{ID: "10-4", Name: "X-4", HomeroomTeacherID: "p1"},
		},
	}
}

func violationTypes(items []Violation) []ViolationType {
	out := make([]ViolationType, 0, len(items))
	for _, v := range items {
		out = append(out, v.Type)
	}
	return out
}

func countSeverity(items []Violation, severity Severity) int {
	return CountBySeverity(items)[severity]
}
