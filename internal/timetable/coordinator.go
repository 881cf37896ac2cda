package timetable

import (
	"fmt"

	"go.uber.org/zap"
)

// GradeInput is everything needed to schedule one grade.
type GradeInput struct {
	Grade    string    `json:"grade"`
	Calendar Calendar  `json:"calendar"`
	Subjects []Subject `json:"subjects"`
	Teachers []Teacher `json:"teachers"`
	Classes  []Class   `json:"classes"`
	Limits   Limits    `json:"limits"`
}

// Binding records the teacher chosen for a (class, subject) pair.
type Binding struct {
	ClassID   string `json:"classId"`
	SubjectID string `json:"subjectId"`
	TeacherID string `json:"teacherId"`
}

// ClassTimetable is the outcome for one class.
type ClassTimetable struct {
	Class      Class           `json:"class"`
	Template   []Cell          `json:"template"`
	Slots      []ScheduledSlot `json:"slots"`
	Violations []Violation     `json:"violations"`
}

// GradeResult is the outcome of a grade-level run.
type GradeResult struct {
	Grade        string           `json:"grade"`
	Calendar     Calendar         `json:"calendar"`
	Classes      []ClassTimetable `json:"classes"`
	Bindings     []Binding        `json:"bindings"`
	TeacherLoads []TeacherLoad    `json:"teacherLoads"`
	Violations   []Violation      `json:"violations"`
}

// Coordinator schedules every class of a grade against one shared availability matrix.
type Coordinator struct {
	scorer    SlotScorer
	validator *Validator
	logger    *zap.Logger
}

// NewCoordinator builds a coordinator. A nil scorer means DefaultScorer.
func NewCoordinator(scorer SlotScorer, logger *zap.Logger) *Coordinator {
	if scorer == nil {
		scorer = DefaultScorer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{scorer: scorer, validator: NewValidator(), logger: logger}
}

// Generate runs resolver, placement, validation and replication for the grade.
// Classes are processed sequentially in input order.
func (c *Coordinator) Generate(in GradeInput) (*GradeResult, error) {
	if err := ValidateInput(in); err != nil {
		return nil, err
	}
	run := NewRunContext(in.Calendar, in.Teachers, in.Limits)
	NewResolver(in.Teachers).Resolve(run, in.Classes, in.Subjects)

	engine := NewPlacementEngine(run, c.scorer)
	placements := make([]*ClassPlacement, 0, len(in.Classes))
	for idx, class := range in.Classes {
		classEngine := engine.WithScorer(NewRotatingScorer(c.scorer, idx))
		cp := classEngine.Begin(class, in.Subjects)
		classEngine.PlaceFixed(cp)
		classEngine.PlaceDoubles(cp)
		classEngine.PlaceSingles(cp)
		placements = append(placements, cp)
		c.logger.Debug("class placed",
			zap.String("grade", in.Grade),
			zap.String("class_id", class.ID),
			zap.Int("class_index", idx),
		)
	}

	replicator := Replicator{TotalWeeks: run.Calendar.TotalWeeks}
	result := &GradeResult{Grade: in.Grade, Calendar: run.Calendar}
	for _, cp := range placements {
		engine.FillEmpty(cp)
		run.Report(c.validator.ValidateClass(run, cp)...)
		result.Classes = append(result.Classes, ClassTimetable{
			Class:    cp.Class,
			Template: cp.Grid.Cells(),
			Slots:    replicator.Replicate(cp.Grid),
		})
	}
	run.Report(c.validator.ValidateTeachers(run.Matrix)...)

	for i := range result.Classes {
		result.Classes[i].Violations = run.ViolationsFor(result.Classes[i].Class.ID)
	}
	for _, class := range in.Classes {
		for _, subject := range in.Subjects {
			if teacherID, ok := run.TeacherFor(class.ID, subject.ID); ok {
				result.Bindings = append(result.Bindings, Binding{ClassID: class.ID, SubjectID: subject.ID, TeacherID: teacherID})
			}
		}
	}
	result.TeacherLoads = run.Matrix.Loads()
	result.Violations = run.Violations()

	counts := CountBySeverity(result.Violations)
	c.logger.Debug("grade scheduled",
		zap.String("grade", in.Grade),
		zap.Int("classes", len(result.Classes)),
		zap.Int("critical", counts[SeverityCritical]),
		zap.Int("high", counts[SeverityHigh]),
		zap.Int("medium", counts[SeverityMedium]),
	)
	return result, nil
}

// ValidateInput rejects input on which no meaningful placement is possible.
func ValidateInput(in GradeInput) error {
	if err := in.Calendar.Validate(); err != nil {
		return err
	}
	if len(in.Classes) == 0 {
		return fmt.Errorf("%w: at least one class is required", ErrInvalidInput)
	}

	teachers := make(map[string]bool, len(in.Teachers))
	for _, teacher := range in.Teachers {
		if teacher.ID == "" {
			return fmt.Errorf("%w: teacher id is required", ErrInvalidInput)
		}
		if teachers[teacher.ID] {
			return fmt.Errorf("%w: duplicate teacher %s", ErrInvalidInput, teacher.ID)
		}
		teachers[teacher.ID] = true
	}

	subjects := make(map[string]bool, len(in.Subjects))
	for _, subject := range in.Subjects {
		if subject.ID == "" {
			return fmt.Errorf("%w: subject id is required", ErrInvalidInput)
		}
		if subjects[subject.ID] {
			return fmt.Errorf("%w: duplicate subject %s", ErrInvalidInput, subject.ID)
		}
		if subject.RequiredWeeklyPeriods < 1 {
			return fmt.Errorf("%w: subject %s must require at least one weekly period", ErrInvalidInput, subject.ID)
		}
		subjects[subject.ID] = true
	}

	classes := make(map[string]bool, len(in.Classes))
	homerooms := make(map[string]string, len(in.Classes))
	for _, class := range in.Classes {
		if class.ID == "" {
			return fmt.Errorf("%w: class id is required", ErrInvalidInput)
		}
		if classes[class.ID] {
			return fmt.Errorf("%w: duplicate class %s", ErrInvalidInput, class.ID)
		}
		classes[class.ID] = true
		if class.HomeroomTeacherID == "" {
			return fmt.Errorf("%w: class %s has no homeroom teacher", ErrInvalidInput, class.ID)
		}
		if !teachers[class.HomeroomTeacherID] {
			return fmt.Errorf("%w: homeroom teacher %s of class %s is not in the teacher list", ErrInvalidInput, class.HomeroomTeacherID, class.ID)
		}
		if other, ok := homerooms[class.HomeroomTeacherID]; ok {
			return fmt.Errorf("%w: teacher %s is homeroom of both %s and %s", ErrInvalidInput, class.HomeroomTeacherID, other, class.ID)
		}
		homerooms[class.HomeroomTeacherID] = class.ID
	}
	return nil
}
