package timetable

import (
	"fmt"
	"sort"
	"strings"
)

// Category classifies a subject for slot scoring.
type Category string

const (
	CategoryCore      Category = "core"
	CategoryPhysical  Category = "physical"
	CategoryPractical Category = "practical"
	CategoryGeneral   Category = "general"
)

// Subject is a curriculum entry for the grade being scheduled.
type Subject struct {
	ID                    string   `json:"id"`
	Name                  string   `json:"name"`
	RequiredWeeklyPeriods int      `json:"requiredWeeklyPeriods"`
	IsPriority            bool     `json:"isPriority"`
	Category              Category `json:"category,omitempty"`
}

// DoublePeriodTarget returns how many double blocks the subject should receive per week.
func (s Subject) DoublePeriodTarget() int {
	target := 0
	switch {
	case s.RequiredWeeklyPeriods >= 4:
		target = 2
	case s.IsPriority && s.RequiredWeeklyPeriods >= 2:
		target = 1
	}
	if max := s.RequiredWeeklyPeriods / 2; target > max {
		target = max
	}
	return target
}

// Kind resolves the explicit category or infers one from the subject name.
func (s Subject) Kind() Category {
	if s.Category != "" {
		return s.Category
	}
	return inferCategory(s.Name)
}

// Slot addresses a single teaching period inside a week.
type Slot struct {
	Day    int `json:"day"`
	Period int `json:"period"`
}

// Teacher is a member of staff that may be bound to (class, subject) pairs.
type Teacher struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	SubjectIDs  []string `json:"subjectIds"`
	MaxPerDay   int      `json:"maxPerDay,omitempty"`
	MaxPerWeek  int      `json:"maxPerWeek,omitempty"`
	Unavailable []Slot   `json:"unavailable,omitempty"`
}

// Qualified reports whether the teacher may teach the subject.
func (t Teacher) Qualified(subjectID string) bool {
	for _, id := range t.SubjectIDs {
		if id == subjectID {
			return true
		}
	}
	return false
}

// Class is a homeroom group of students.
type Class struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	HomeroomTeacherID string `json:"homeroomTeacherId"`
}

// AssignmentKind distinguishes regular lessons from reserved and filler cells.
type AssignmentKind string

const (
	KindFixed   AssignmentKind = "fixed"
	KindRegular AssignmentKind = "regular"
	KindEmpty   AssignmentKind = "empty"
)

// SpecialType names the ceremony a fixed period is reserved for.
type SpecialType string

const (
	SpecialFlagCeremony SpecialType = "flag_ceremony"
	SpecialClassMeeting SpecialType = "class_meeting"
)

// DoubleHalf marks the position of a cell inside a double block.
type DoubleHalf string

const (
	DoubleFirst  DoubleHalf = "first"
	DoubleSecond DoubleHalf = "second"
)

// Assignment is the content of one grid cell.
type Assignment struct {
	SubjectID  string         `json:"subjectId,omitempty"`
	TeacherID  string         `json:"teacherId,omitempty"`
	Kind       AssignmentKind `json:"kind"`
	Special    SpecialType    `json:"specialType,omitempty"`
	DoubleHalf DoubleHalf     `json:"doublePeriodHalf,omitempty"`
}

// Severity ranks violations for operator review.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
)

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	default:
		return 2
	}
}

// ViolationType enumerates the constraint failures reported by a run.
type ViolationType string

const (
	ViolationNoQualifiedTeacher         ViolationType = "NoQualifiedTeacher"
	ViolationCannotScheduleDoublePeriod ViolationType = "CannotScheduleDoublePeriod"
	ViolationCannotSchedulePeriod       ViolationType = "CannotSchedulePeriod"
	ViolationTeacherOverload            ViolationType = "TeacherOverload"
	ViolationSubjectUnderfulfilled      ViolationType = "SubjectUnderfulfilled"
	ViolationDoublePeriodUnderfulfilled ViolationType = "DoublePeriodUnderfulfilled"
	ViolationMorningRatioBelowTarget    ViolationType = "MorningRatioBelowTarget"
)

// Violation describes a constraint that could not be satisfied.
type Violation struct {
	Type      ViolationType `json:"type"`
	Severity  Severity      `json:"severity"`
	ClassID   string        `json:"classId,omitempty"`
	SubjectID string        `json:"subjectId,omitempty"`
	TeacherID string        `json:"teacherId,omitempty"`
	Day       int           `json:"day,omitempty"`
	Detail    string        `json:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s[%s] %s", v.Type, v.Severity, v.Detail)
}

// SortViolations orders violations by severity, then class, subject, teacher and type.
func SortViolations(items []Violation) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Severity.rank() != b.Severity.rank() {
			return a.Severity.rank() < b.Severity.rank()
		}
		if a.ClassID != b.ClassID {
			return a.ClassID < b.ClassID
		}
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		if a.TeacherID != b.TeacherID {
			return a.TeacherID < b.TeacherID
		}
		return a.Type < b.Type
	})
}

// CountBySeverity tallies violations for summaries and metrics.
func CountBySeverity(items []Violation) map[Severity]int {
	out := map[Severity]int{}
	for _, v := range items {
		out[v.Severity]++
	}
	return out
}

var (
	physicalKeywords  = []string{"physical", "olahraga", "penjas", "pjok", "jasmani", "sport", "gym"}
	practicalKeywords = []string{"physics", "chemistry", "biology", "fisika", "kimia", "biologi", "lab", "practical", "praktik", "computer", "informatika", "tik"}
	coreKeywords      = []string{"math", "matematika", "bahasa indonesia", "indonesian", "english", "bahasa inggris"}
)

func inferCategory(name string) Category {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "pe" || strings.HasPrefix(lower, "pe ") {
		return CategoryPhysical
	}
	for _, kw := range physicalKeywords {
		if strings.Contains(lower, kw) {
			return CategoryPhysical
		}
	}
	for _, kw := range practicalKeywords {
		if containsWord(lower, kw) {
			return CategoryPractical
		}
	}
	for _, kw := range coreKeywords {
		if strings.Contains(lower, kw) {
			return CategoryCore
		}
	}
	return CategoryGeneral
}

func containsWord(haystack, word string) bool {
	for _, field := range strings.FieldsFunc(haystack, func(r rune) bool {
		return r == ' ' || r == '-' || r == '/' || r == '_' || r == '(' || r == ')'
	}) {
		if field == word || (len(word) > 3 && strings.HasPrefix(field, word)) {
			return true
		}
	}
	return false
}
