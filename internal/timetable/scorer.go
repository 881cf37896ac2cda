package timetable

// Candidate is a free cell offered to a SlotScorer for one period of a subject.
type Candidate struct {
	Subject          Subject
	Day              int
	Period           int
	Calendar         Calendar
	TeacherDailyLoad int
	PlacedToday      int
}

// SlotScorer ranks candidate cells. Hard constraints are filtered before a scorer
// is consulted, so a scorer only expresses preference.
type SlotScorer interface {
	Score(c Candidate) int
	DayOrder(days []int) []int
	PeriodOrder(periods []int) []int
}

// Score weights used by DefaultScorer.
const (
	scorePriorityMorning    = 50
	scorePEFirstPeriod      = -100
	scorePEAfterLunch       = -50
	scorePracticalAfternoon = 30
	scoreLightTeacherDay    = 20
	scoreHeavyTeacherDay    = -30
	scoreNewDay             = 100

	lightDayThreshold = 3
	heavyDayThreshold = 6
)

// DefaultScorer applies the school's placement preferences.
type DefaultScorer struct{}

// Score implements SlotScorer.
func (DefaultScorer) Score(c Candidate) int {
	score := 0
	morning := c.Calendar.IsMorning(c.Period)
	if c.Subject.IsPriority && morning {
		score += scorePriorityMorning
	}
	switch c.Subject.Kind() {
	case CategoryPhysical:
		if c.Period == 1 {
			score += scorePEFirstPeriod
		}
		if c.Period == c.Calendar.LunchBreakAfter+1 {
			score += scorePEAfterLunch
		}
	case CategoryPractical:
		if !morning {
			score += scorePracticalAfternoon
		}
	}
	switch {
	case c.TeacherDailyLoad < lightDayThreshold:
		score += scoreLightTeacherDay
	case c.TeacherDailyLoad > heavyDayThreshold:
		score += scoreHeavyTeacherDay
	}
	if c.PlacedToday == 0 {
		score += scoreNewDay
	}
	return score
}

// DayOrder implements SlotScorer.
func (DefaultScorer) DayOrder(days []int) []int {
	return append([]int(nil), days...)
}

// PeriodOrder implements SlotScorer.
func (DefaultScorer) PeriodOrder(periods []int) []int {
	return append([]int(nil), periods...)
}

// Rotation bonuses stay below the smallest DefaultScorer weight and only reorder near-ties.
const (
	rotationDayBonus    = 6
	rotationPeriodBonus = 3
)

// RotatingScorer perturbs a base scorer per class so sibling classes sharing
// teachers do not end up with identical timetables.
type RotatingScorer struct {
	Base  SlotScorer
	Index int
}

// NewRotatingScorer decorates base with the class index of the run.
func NewRotatingScorer(base SlotScorer, index int) RotatingScorer {
	if base == nil {
		base = DefaultScorer{}
	}
	if index < 0 {
		index = -index
	}
	return RotatingScorer{Base: base, Index: index}
}

// Score implements SlotScorer.
func (r RotatingScorer) Score(c Candidate) int {
	score := r.Base.Score(c)
	days := c.Calendar.TeachingDaysPerWeek
	if days > 0 && c.Day == 1+r.Index%days {
		score += rotationDayBonus
	}
	half := c.Calendar.PeriodsOn(c.Day) / 2
	if r.prefersLate() == (c.Period > half) {
		score += rotationPeriodBonus
	}
	return score
}

// DayOrder implements SlotScorer.
func (r RotatingScorer) DayOrder(days []int) []int {
	base := r.Base.DayOrder(days)
	if len(base) == 0 {
		return base
	}
	shift := r.Index % len(base)
	return append(append([]int(nil), base[shift:]...), base[:shift]...)
}

// PeriodOrder implements SlotScorer.
func (r RotatingScorer) PeriodOrder(periods []int) []int {
	base := r.Base.PeriodOrder(periods)
	if !r.prefersLate() {
		return base
	}
	out := make([]int, len(base))
	for i, p := range base {
		out[len(base)-1-i] = p
	}
	return out
}

func (r RotatingScorer) prefersLate() bool {
	return r.Index%2 == 1
}
