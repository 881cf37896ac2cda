package dto

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/timetable"
)

// CalendarOverride adjusts the configured teaching week for one generation request.
type CalendarOverride struct {
	TeachingDaysPerWeek int         `json:"teachingDaysPerWeek" validate:"omitempty,min=1,max=7"`
	PeriodsPerDay       int         `json:"periodsPerDay" validate:"omitempty,min=1,max=16"`
	DayLengths          map[int]int `json:"dayLengths" validate:"omitempty,dive,keys,min=1,max=7,endkeys,min=1,max=16"`
	CeremonyDay         int         `json:"ceremonyDay" validate:"omitempty,min=1,max=7"`
	CeremonyPeriod      int         `json:"ceremonyPeriod" validate:"omitempty,min=1,max=16"`
	ClassMeetingDay     int         `json:"classMeetingDay" validate:"omitempty,min=1,max=7"`
	ClassMeetingPeriod  int         `json:"classMeetingPeriod" validate:"omitempty,min=1,max=16"`
	LunchBreakAfter     int         `json:"lunchBreakAfter" validate:"omitempty,min=1,max=16"`
	TotalWeeks          int         `json:"totalWeeks" validate:"omitempty,min=1,max=53"`
}

// GenerateTimetableRequest asks for proposals covering every class of the listed grades.
type GenerateTimetableRequest struct {
	TermID          string            `json:"termId" validate:"required"`
	Grades          []string          `json:"grades" validate:"required,min=1,dive,required"`
	Calendar        *CalendarOverride `json:"calendar"`
	MaxPerDay       int               `json:"maxPerDay" validate:"omitempty,min=1,max=16"`
	MaxPerWeek      int               `json:"maxPerWeek" validate:"omitempty,min=1,max=80"`
	IgnorePublished bool              `json:"ignorePublished"`
}

// ClassTemplate is the week-1 grid of one class inside a proposal.
type ClassTemplate struct {
	Class      timetable.Class       `json:"class"`
	Template   []timetable.Cell      `json:"template"`
	Violations []timetable.Violation `json:"violations"`
}

// ViolationSummary counts violations per severity.
type ViolationSummary struct {
	Critical int  `json:"critical"`
	High     int  `json:"high"`
	Medium   int  `json:"medium"`
	Savable  bool `json:"savable"`
}

// TimetableProposal is a generated, not yet persisted, timetable for one grade.
type TimetableProposal struct {
	ProposalID   string                  `json:"proposalId"`
	TermID       string                  `json:"termId"`
	Grade        string                  `json:"grade"`
	Calendar     timetable.Calendar      `json:"calendar"`
	Classes      []ClassTemplate         `json:"classes"`
	Bindings     []timetable.Binding     `json:"bindings"`
	TeacherLoads []timetable.TeacherLoad `json:"teacherLoads"`
	Violations   []timetable.Violation   `json:"violations"`
	Summary      ViolationSummary        `json:"summary"`
	SubjectNames map[string]string       `json:"subjectNames"`
	TeacherNames map[string]string       `json:"teacherNames"`
	GeneratedBy  string                  `json:"generatedBy,omitempty"`
	GeneratedAt  time.Time               `json:"generatedAt"`
	ExpiresAt    time.Time               `json:"expiresAt"`
}

// GenerateTimetableResponse returns one proposal per requested grade, in request order.
type GenerateTimetableResponse struct {
	Proposals []TimetableProposal `json:"proposals"`
}

// GenerateJobStatus enumerates background generation states.
type GenerateJobStatus string

const (
	GenerateJobQueued    GenerateJobStatus = "QUEUED"
	GenerateJobRunning   GenerateJobStatus = "RUNNING"
	GenerateJobCompleted GenerateJobStatus = "COMPLETED"
	GenerateJobFailed    GenerateJobStatus = "FAILED"
)

// GenerateJob tracks an asynchronous generation request.
type GenerateJob struct {
	ID          string            `json:"id"`
	Status      GenerateJobStatus `json:"status"`
	TermID      string            `json:"termId"`
	Grades      []string          `json:"grades"`
	ProposalIDs []string          `json:"proposalIds,omitempty"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// SaveTimetableRequest persists a cached proposal as a timetable run.
type SaveTimetableRequest struct {
	ProposalID string `json:"proposalId" validate:"required"`
	Publish    bool   `json:"publish"`
	Force      bool   `json:"force"`
}

// SaveTimetableResponse describes the stored run.
type SaveTimetableResponse struct {
	RunID     string `json:"runId"`
	Version   int    `json:"version"`
	Status    string `json:"status"`
	SlotCount int    `json:"slotCount"`
	Archived  int64  `json:"archived"`
}

// TimetableListQuery filters stored runs.
type TimetableListQuery struct {
	TermID   string `form:"termId" validate:"required"`
	Grade    string `form:"grade"`
	Status   string `form:"status" validate:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// SlotQuery filters slots of a stored run.
type SlotQuery struct {
	ClassID string `form:"classId"`
	Week    int    `form:"week" validate:"omitempty,min=1"`
}

// ExportQuery selects the class, week and file format of a rendered timetable.
type ExportQuery struct {
	ClassID string `form:"classId" validate:"required"`
	Format  string `form:"format" validate:"omitempty,oneof=csv pdf"`
	Week    int    `form:"week" validate:"omitempty,min=1"`
}

// ExportLinkResponse returns a signed download link for a rendered timetable.
type ExportLinkResponse struct {
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	Format    string    `json:"format"`
	ExpiresAt time.Time `json:"expiresAt"`
}
