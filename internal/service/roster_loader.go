package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type rosterRepository interface {
	ListCurriculum(ctx context.Context, grade string) ([]models.CurriculumSubject, error)
	ListClasses(ctx context.Context, grade string) ([]models.RosterClass, error)
	ListQualifications(ctx context.Context, subjectIDs []string) ([]models.TeacherSubject, error)
	ListTeachers(ctx context.Context, ids []string) ([]models.RosterTeacher, error)
}

type teacherPreferenceRepository interface {
	ListByTeachers(ctx context.Context, teacherIDs []string) ([]models.TeacherPreference, error)
}

// gradeRoster is the engine input of one grade plus display names for exports.
type gradeRoster struct {
	Input    timetable.GradeInput
	Subjects map[string]string
	Teachers map[string]string
}

// rosterLoader assembles engine input from the school's master data.
type rosterLoader struct {
	roster rosterRepository
	prefs  teacherPreferenceRepository
	logger *zap.Logger
}

func newRosterLoader(roster rosterRepository, prefs teacherPreferenceRepository, logger *zap.Logger) *rosterLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &rosterLoader{roster: roster, prefs: prefs, logger: logger}
}

// Load reads curriculum, classes, qualified teachers and their preferences for a grade.
func (l *rosterLoader) Load(ctx context.Context, grade string, cal timetable.Calendar, limits timetable.Limits) (*gradeRoster, error) {
	curriculum, err := l.roster.ListCurriculum(ctx, grade)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum")
	}
	if len(curriculum) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("no curriculum defined for grade %s", grade))
	}
	classes, err := l.roster.ListClasses(ctx, grade)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classes")
	}
	if len(classes) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("no classes defined for grade %s", grade))
	}

	subjects := make([]timetable.Subject, 0, len(curriculum))
	subjectNames := make(map[string]string, len(curriculum))
	subjectIDs := make([]string, 0, len(curriculum))
	for _, item := range curriculum {
		subject := timetable.Subject{
			ID:                    item.SubjectID,
			Name:                  item.Name,
			RequiredWeeklyPeriods: item.WeeklyPeriods,
			IsPriority:            item.IsPriority,
		}
		if item.Category != nil {
			subject.Category = timetable.Category(strings.ToLower(*item.Category))
		}
		subjects = append(subjects, subject)
		subjectNames[item.SubjectID] = item.Name
		subjectIDs = append(subjectIDs, item.SubjectID)
	}

	qualifications, err := l.roster.ListQualifications(ctx, subjectIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher qualifications")
	}
	qualified := make(map[string][]string)
	candidates := make(map[string]struct{})
	for _, q := range qualifications {
		qualified[q.TeacherID] = append(qualified[q.TeacherID], q.SubjectID)
		candidates[q.TeacherID] = struct{}{}
	}

	rosterClasses := make([]timetable.Class, 0, len(classes))
	for _, class := range classes {
		if class.HomeroomTeacherID == nil || *class.HomeroomTeacherID == "" {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("class %s has no homeroom teacher", class.Name))
		}
		candidates[*class.HomeroomTeacherID] = struct{}{}
		rosterClasses = append(rosterClasses, timetable.Class{ID: class.ID, Name: class.Name, HomeroomTeacherID: *class.HomeroomTeacherID})
	}

	teacherRows, err := l.roster.ListTeachers(ctx, sortedKeys(candidates))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}
	active := make(map[string]struct{}, len(teacherRows))
	activeIDs := make([]string, 0, len(teacherRows))
	for _, row := range teacherRows {
		active[row.ID] = struct{}{}
		activeIDs = append(activeIDs, row.ID)
	}
	for _, class := range rosterClasses {
		if _, ok := active[class.HomeroomTeacherID]; !ok {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("homeroom teacher of class %s is not an active teacher", class.Name))
		}
	}

	prefs, err := l.prefs.ListByTeachers(ctx, activeIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher preferences")
	}
	prefByTeacher := make(map[string]models.TeacherPreference, len(prefs))
	for _, pref := range prefs {
		prefByTeacher[pref.TeacherID] = pref
	}

	teachers := make([]timetable.Teacher, 0, len(teacherRows))
	teacherNames := make(map[string]string, len(teacherRows))
	for _, row := range teacherRows {
		teacher := timetable.Teacher{ID: row.ID, Name: row.FullName, SubjectIDs: qualified[row.ID]}
		if pref, ok := prefByTeacher[row.ID]; ok {
			teacher.MaxPerDay = pref.MaxLoadPerDay
			teacher.MaxPerWeek = pref.MaxLoadPerWeek
			teacher.Unavailable = l.parseUnavailable(row.ID, pref, cal.PeriodsPerDay)
		}
		teachers = append(teachers, teacher)
		teacherNames[row.ID] = row.FullName
	}

	return &gradeRoster{
		Input: timetable.GradeInput{
			Grade:    grade,
			Calendar: cal,
			Subjects: subjects,
			Teachers: teachers,
			Classes:  rosterClasses,
			Limits:   limits,
		},
		Subjects: subjectNames,
		Teachers: teacherNames,
	}, nil
}

func (l *rosterLoader) parseUnavailable(teacherID string, pref models.TeacherPreference, maxPeriod int) []timetable.Slot {
	if len(pref.Unavailable) == 0 {
		return nil
	}
	var windows []models.TeacherUnavailableSlot
	if err := json.Unmarshal(pref.Unavailable, &windows); err != nil {
		l.logger.Warn("ignoring malformed teacher unavailability", zap.String("teacher_id", teacherID), zap.Error(err))
		return nil
	}
	var slots []timetable.Slot
	for _, window := range windows {
		day := dayStringToIndex(window.DayOfWeek)
		if day == 0 {
			continue
		}
		periods := expandTimeRange(window.TimeRange, maxPeriod)
		if len(periods) == 0 {
			l.logger.Warn("ignoring teacher unavailability outside the teaching day",
				zap.String("teacher_id", teacherID), zap.String("time_range", window.TimeRange))
			continue
		}
		for _, period := range periods {
			slots = append(slots, timetable.Slot{Day: day, Period: period})
		}
	}
	return slots
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

var dayNameIndex = map[string]int{
	"MONDAY":    1,
	"TUESDAY":   2,
	"WEDNESDAY": 3,
	"THURSDAY":  4,
	"FRIDAY":    5,
	"SATURDAY":  6,
	"SUNDAY":    7,
}

var dayIndexName = map[int]string{
	1: "Monday",
	2: "Tuesday",
	3: "Wednesday",
	4: "Thursday",
	5: "Friday",
	6: "Saturday",
	7: "Sunday",
}

func dayStringToIndex(name string) int {
	return dayNameIndex[strings.ToUpper(strings.TrimSpace(name))]
}

func dayIndexToName(day int) string {
	if name, ok := dayIndexName[day]; ok {
		return name
	}
	return fmt.Sprintf("Day %d", day)
}

// expandTimeRange turns "1-3" into [1 2 3] and "4" into [4]. Periods past maxPeriod
// are dropped.
func expandTimeRange(raw string, maxPeriod int) []int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.Contains(raw, "-") {
		parts := strings.SplitN(raw, "-", 2)
		start := parseTimeSlot(parts[0])
		end := parseTimeSlot(parts[1])
		if end > maxPeriod {
			end = maxPeriod
		}
		if start == 0 || end == 0 || end < start {
			return nil
		}
		slots := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			slots = append(slots, i)
		}
		return slots
	}
	if value := parseTimeSlot(raw); value > 0 && value <= maxPeriod {
		return []int{value}
	}
	return nil
}

func parseTimeSlot(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		return 0
	}
	return value
}
