package timetable

import (
	"sort"
	"strings"
)

// requirement is the mutable per-class state of one subject.
type requirement struct {
	subject      Subject
	rank         int
	scheduled    int
	doubleTarget int
	doublePlaced int
	daily        map[int]int
}

// RequirementTracker follows how far each subject of a class is from its weekly requirement.
type RequirementTracker struct {
	order []*requirement
	byID  map[string]*requirement
}

// NewRequirementTracker builds a tracker ordered by subject priority ranking.
func NewRequirementTracker(subjects []Subject) *RequirementTracker {
	t := &RequirementTracker{byID: make(map[string]*requirement, len(subjects))}
	for _, subject := range subjects {
		req := &requirement{
			subject:      subject,
			rank:         subjectRank(subject),
			doubleTarget: subject.DoublePeriodTarget(),
			daily:        make(map[int]int),
		}
		t.order = append(t.order, req)
		t.byID[subject.ID] = req
	}
	sort.SliceStable(t.order, func(i, j int) bool {
		if t.order[i].rank != t.order[j].rank {
			return t.order[i].rank < t.order[j].rank
		}
		return t.order[i].subject.ID < t.order[j].subject.ID
	})
	return t
}

// Subjects returns the subjects in ranking order.
func (t *RequirementTracker) Subjects() []Subject {
	out := make([]Subject, 0, len(t.order))
	for _, req := range t.order {
		out = append(out, req.subject)
	}
	return out
}

// Subject looks up a tracked subject.
func (t *RequirementTracker) Subject(id string) (Subject, bool) {
	req, ok := t.byID[id]
	if !ok {
		return Subject{}, false
	}
	return req.subject, true
}

// Required returns the weekly requirement of a subject.
func (t *RequirementTracker) Required(id string) int {
	if req, ok := t.byID[id]; ok {
		return req.subject.RequiredWeeklyPeriods
	}
	return 0
}

// Scheduled returns how many periods of the subject have been placed.
func (t *RequirementTracker) Scheduled(id string) int {
	if req, ok := t.byID[id]; ok {
		return req.scheduled
	}
	return 0
}

// Remaining returns the number of periods still to place.
func (t *RequirementTracker) Remaining(id string) int {
	req, ok := t.byID[id]
	if !ok {
		return 0
	}
	if left := req.subject.RequiredWeeklyPeriods - req.scheduled; left > 0 {
		return left
	}
	return 0
}

// DoubleTarget returns the number of double blocks wanted for the subject.
func (t *RequirementTracker) DoubleTarget(id string) int {
	if req, ok := t.byID[id]; ok {
		return req.doubleTarget
	}
	return 0
}

// DoublesPlaced returns the number of double blocks committed for the subject.
func (t *RequirementTracker) DoublesPlaced(id string) int {
	if req, ok := t.byID[id]; ok {
		return req.doublePlaced
	}
	return 0
}

// PlacedOn returns how many periods of the subject sit on the given day.
func (t *RequirementTracker) PlacedOn(id string, day int) int {
	if req, ok := t.byID[id]; ok {
		return req.daily[day]
	}
	return 0
}

// RecordSingle counts one placed period.
func (t *RequirementTracker) RecordSingle(id string, day int) {
	if req, ok := t.byID[id]; ok {
		req.scheduled++
		req.daily[day]++
	}
}

// RecordDouble counts a committed double block.
func (t *RequirementTracker) RecordDouble(id string, day int) {
	if req, ok := t.byID[id]; ok {
		req.scheduled += 2
		req.doublePlaced++
		req.daily[day] += 2
	}
}

// coreRanking orders well-known academic subjects ahead of the rest.
var coreRanking = []string{
	"matematika", "math",
	"bahasa indonesia", "indonesian",
	"bahasa inggris", "english",
	"fisika", "physics",
	"kimia", "chemistry",
	"biologi", "biology",
}

// subjectRank places priority subjects first, then known core names, then categories.
func subjectRank(s Subject) int {
	base := 0
	if !s.IsPriority {
		base = 100
	}
	lower := strings.ToLower(s.Name)
	for i, name := range coreRanking {
		if strings.Contains(lower, name) {
			return base + i/2
		}
	}
	switch s.Kind() {
	case CategoryCore:
		return base + 20
	case CategoryPractical:
		return base + 30
	case CategoryGeneral:
		return base + 40
	default:
		return base + 50
	}
}
