package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TimetableStatus represents lifecycle phases of a saved timetable run.
type TimetableStatus string

const (
	TimetableStatusDraft     TimetableStatus = "DRAFT"
	TimetableStatusPublished TimetableStatus = "PUBLISHED"
	TimetableStatusArchived  TimetableStatus = "ARCHIVED"
)

// TimetableRun is a versioned, persisted timetable for every class of a grade in a term.
type TimetableRun struct {
	ID          string          `db:"id" json:"id"`
	TermID      string          `db:"term_id" json:"term_id"`
	Grade       string          `db:"grade" json:"grade"`
	Version     int             `db:"version" json:"version"`
	Status      TimetableStatus `db:"status" json:"status"`
	ProposalID  string          `db:"proposal_id" json:"proposal_id"`
	TotalWeeks  int             `db:"total_weeks" json:"total_weeks"`
	Meta        types.JSONText  `db:"meta" json:"meta"`
	CreatedBy   *string         `db:"created_by" json:"created_by,omitempty"`
	PublishedAt *time.Time      `db:"published_at" json:"published_at,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// TimetableSlot is one (class, week, day, period) cell of a saved run.
type TimetableSlot struct {
	ID          string    `db:"id" json:"id"`
	RunID       string    `db:"run_id" json:"run_id"`
	ClassID     string    `db:"class_id" json:"class_id"`
	Week        int       `db:"week" json:"week"`
	DayOfWeek   int       `db:"day_of_week" json:"day_of_week"`
	Period      int       `db:"period" json:"period"`
	SubjectID   *string   `db:"subject_id" json:"subject_id,omitempty"`
	TeacherID   *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	Kind        string    `db:"kind" json:"kind"`
	SpecialType *string   `db:"special_type" json:"special_type,omitempty"`
	DoubleHalf  *string   `db:"double_half" json:"double_half,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// TimetableSlotFilter narrows slot listings of a run.
type TimetableSlotFilter struct {
	ClassID string
	Week    int
}
