package timetable

import "fmt"

const maxConsecutiveSameSubject = 3

// ClassPlacement is the per-class state of a placement pass.
type ClassPlacement struct {
	Class   Class
	Grid    *ClassGrid
	Tracker *RequirementTracker
}

// PlacementEngine fills class grids against the run's shared availability matrix.
type PlacementEngine struct {
	run    *RunContext
	scorer SlotScorer
}

// NewPlacementEngine binds an engine to a run. A nil scorer means DefaultScorer.
func NewPlacementEngine(run *RunContext, scorer SlotScorer) *PlacementEngine {
	if scorer == nil {
		scorer = DefaultScorer{}
	}
	return &PlacementEngine{run: run, scorer: scorer}
}

// WithScorer returns an engine sharing the run but using another scorer.
func (e *PlacementEngine) WithScorer(scorer SlotScorer) *PlacementEngine {
	return NewPlacementEngine(e.run, scorer)
}

// Begin creates a fresh grid and tracker for the class.
func (e *PlacementEngine) Begin(class Class, subjects []Subject) *ClassPlacement {
	return &ClassPlacement{
		Class:   class,
		Grid:    NewClassGrid(class.ID, e.run.Calendar),
		Tracker: NewRequirementTracker(subjects),
	}
}

// Place runs all four phases for a single class.
func (e *PlacementEngine) Place(class Class, subjects []Subject) *ClassPlacement {
	cp := e.Begin(class, subjects)
	e.PlaceFixed(cp)
	e.PlaceDoubles(cp)
	e.PlaceSingles(cp)
	e.FillEmpty(cp)
	return cp
}

// PlaceFixed reserves the flag ceremony and class meeting for the homeroom teacher.
func (e *PlacementEngine) PlaceFixed(cp *ClassPlacement) {
	cal := e.run.Calendar
	fixed := []struct {
		day, period int
		special     SpecialType
	}{
		{cal.CeremonyDay, cal.CeremonyPeriod, SpecialFlagCeremony},
		{cal.ClassMeetingDay, cal.ClassMeetingPeriod, SpecialClassMeeting},
	}
	homeroom := cp.Class.HomeroomTeacherID
	for _, f := range fixed {
		if err := e.run.Matrix.Reserve(homeroom, f.day, f.period); err != nil {
			e.run.Report(Violation{
				Type:      ViolationTeacherOverload,
				Severity:  SeverityCritical,
				ClassID:   cp.Class.ID,
				TeacherID: homeroom,
				Day:       f.day,
				Detail:    fmt.Sprintf("fixed period %s: %v", f.special, err),
			})
		}
		cp.Grid.set(f.day, f.period, Assignment{TeacherID: homeroom, Kind: KindFixed, Special: f.special})
	}
}

// PlaceDoubles commits first-fit double blocks for every subject with a target.
func (e *PlacementEngine) PlaceDoubles(cp *ClassPlacement) {
	for _, subject := range cp.Tracker.Subjects() {
		target := cp.Tracker.DoubleTarget(subject.ID)
		if target == 0 {
			continue
		}
		teacherID, ok := e.teacherFor(cp, subject.ID)
		if !ok {
			continue
		}
		for cp.Tracker.DoublesPlaced(subject.ID) < target {
			day, start, found := e.findPair(cp, subject, teacherID)
			if !found {
				e.run.Report(Violation{
					Type:      ViolationCannotScheduleDoublePeriod,
					Severity:  SeverityHigh,
					ClassID:   cp.Class.ID,
					SubjectID: subject.ID,
					TeacherID: teacherID,
					Detail: fmt.Sprintf("no free double block for subject %s (%d of %d placed)",
						subject.ID, cp.Tracker.DoublesPlaced(subject.ID), target),
				})
				break
			}
			e.commit(cp, subject.ID, teacherID, day, start, DoubleFirst)
			e.commit(cp, subject.ID, teacherID, day, start+1, DoubleSecond)
			cp.Tracker.RecordDouble(subject.ID, day)
		}
	}
}

func (e *PlacementEngine) findPair(cp *ClassPlacement, subject Subject, teacherID string) (int, int, bool) {
	halves := []bool{false, true}
	if subject.IsPriority {
		halves = []bool{true, false}
	}
	cal := e.run.Calendar
	for _, morning := range halves {
		for _, day := range e.scorer.DayOrder(cal.Days()) {
			if cp.Tracker.PlacedOn(subject.ID, day) > 0 {
				continue
			}
			for _, start := range e.scorer.PeriodOrder(pairStarts(cal, day, morning)) {
				if !cp.Grid.IsFree(day, start) || !cp.Grid.IsFree(day, start+1) {
					continue
				}
				if e.run.Matrix.CanTeachBlock(teacherID, day, start, 2) {
					return day, start, true
				}
			}
		}
	}
	return 0, 0, false
}

// pairStarts lists start periods of double blocks fully inside the requested half of the day.
func pairStarts(cal Calendar, day int, morning bool) []int {
	var starts []int
	for start := 1; start < cal.PeriodsOn(day); start++ {
		if cal.CrossesBreak(start) {
			continue
		}
		if cal.IsMorning(start) == morning {
			starts = append(starts, start)
		}
	}
	return starts
}

// PlaceSingles places the remaining periods one by one on the best scoring cell.
func (e *PlacementEngine) PlaceSingles(cp *ClassPlacement) {
	cal := e.run.Calendar
	for _, subject := range cp.Tracker.Subjects() {
		teacherID, ok := e.teacherFor(cp, subject.ID)
		if !ok {
			continue
		}
		for remaining := cp.Tracker.Remaining(subject.ID); remaining > 0; remaining-- {
			bestDay, bestPeriod, bestScore := 0, 0, 0
			for _, day := range cal.Days() {
				for _, period := range cal.Periods(day) {
					if !cp.Grid.IsFree(day, period) || !e.run.Matrix.CanTeach(teacherID, day, period) {
						continue
					}
					if cp.Grid.runLength(subject.ID, day, period) > maxConsecutiveSameSubject {
						continue
					}
					score := e.scorer.Score(Candidate{
						Subject:          subject,
						Day:              day,
						Period:           period,
						Calendar:         cal,
						TeacherDailyLoad: e.run.Matrix.DailyLoad(teacherID, day),
						PlacedToday:      cp.Tracker.PlacedOn(subject.ID, day),
					})
					if bestDay == 0 || score > bestScore {
						bestDay, bestPeriod, bestScore = day, period, score
					}
				}
			}
			if bestDay == 0 {
				e.run.Report(Violation{
					Type:      ViolationCannotSchedulePeriod,
					Severity:  SeverityMedium,
					ClassID:   cp.Class.ID,
					SubjectID: subject.ID,
					TeacherID: teacherID,
					Detail: fmt.Sprintf("no free cell for subject %s (%d of %d placed)",
						subject.ID, cp.Tracker.Scheduled(subject.ID), cp.Tracker.Required(subject.ID)),
				})
				continue
			}
			e.commit(cp, subject.ID, teacherID, bestDay, bestPeriod, "")
			cp.Tracker.RecordSingle(subject.ID, bestDay)
		}
	}
}

// FillEmpty closes every remaining hole with an empty cell owned by the homeroom teacher
// when that teacher is not busy elsewhere at the same time.
func (e *PlacementEngine) FillEmpty(cp *ClassPlacement) {
	cal := e.run.Calendar
	homeroom := cp.Class.HomeroomTeacherID
	for _, day := range cal.Days() {
		for _, period := range cal.Periods(day) {
			if !cp.Grid.IsFree(day, period) {
				continue
			}
			cell := Assignment{Kind: KindEmpty}
			if e.run.Matrix.IsFree(homeroom, day, period) {
				cell.TeacherID = homeroom
			}
			cp.Grid.set(day, period, cell)
		}
	}
}

func (e *PlacementEngine) teacherFor(cp *ClassPlacement, subjectID string) (string, bool) {
	if e.run.Unresolved(cp.Class.ID, subjectID) {
		return "", false
	}
	return e.run.TeacherFor(cp.Class.ID, subjectID)
}

// commit writes a regular cell. Callers have already checked both grid and matrix.
func (e *PlacementEngine) commit(cp *ClassPlacement, subjectID, teacherID string, day, period int, half DoubleHalf) {
	if err := e.run.Matrix.Reserve(teacherID, day, period); err != nil {
		panic(fmt.Sprintf("timetable: reserve after availability check: %v", err))
	}
	cp.Grid.set(day, period, Assignment{
		SubjectID:  subjectID,
		TeacherID:  teacherID,
		Kind:       KindRegular,
		DoubleHalf: half,
	})
}
