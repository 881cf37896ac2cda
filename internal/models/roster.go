package models

// CurriculumSubject is one subject of a grade's weekly curriculum.
type CurriculumSubject struct {
	SubjectID     string  `db:"subject_id" json:"subject_id"`
	Code          string  `db:"code" json:"code"`
	Name          string  `db:"name" json:"name"`
	Grade         string  `db:"grade" json:"grade"`
	WeeklyPeriods int     `db:"weekly_periods" json:"weekly_periods"`
	IsPriority    bool    `db:"is_priority" json:"is_priority"`
	Category      *string `db:"category" json:"category,omitempty"`
}

// RosterTeacher is an active teacher that may take part in a run.
type RosterTeacher struct {
	ID       string `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
}

// TeacherSubject links a teacher to a subject they are qualified to teach.
type TeacherSubject struct {
	TeacherID string `db:"teacher_id" json:"teacher_id"`
	SubjectID string `db:"subject_id" json:"subject_id"`
}

// RosterClass is a class of the grade being scheduled.
type RosterClass struct {
	ID                string  `db:"id" json:"id"`
	Name              string  `db:"name" json:"name"`
	Grade             string  `db:"grade" json:"grade"`
	HomeroomTeacherID *string `db:"homeroom_teacher_id" json:"homeroom_teacher_id,omitempty"`
}

// TeacherCommitment is a week-1 period a teacher already teaches in a published
// timetable of another grade.
type TeacherCommitment struct {
	TeacherID string `db:"teacher_id" json:"teacher_id"`
	Day       int    `db:"day_of_week" json:"day_of_week"`
	Period    int    `db:"period" json:"period"`
}
