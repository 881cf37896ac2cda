package timetable

import "fmt"

const defaultLunchBreakAfter = 5

// Calendar describes the weekly teaching grid shared by every class of a run.
// Days and periods are 1-based.
type Calendar struct {
	TeachingDaysPerWeek int         `json:"teachingDaysPerWeek"`
	PeriodsPerDay       int         `json:"periodsPerDay"`
	DayLengths          map[int]int `json:"dayLengths,omitempty"`
	CeremonyDay         int         `json:"ceremonyDay,omitempty"`
	CeremonyPeriod      int         `json:"ceremonyPeriod,omitempty"`
	ClassMeetingDay     int         `json:"classMeetingDay,omitempty"`
	ClassMeetingPeriod  int         `json:"classMeetingPeriod,omitempty"`
	LunchBreakAfter     int         `json:"lunchBreakAfter,omitempty"`
	TotalWeeks          int         `json:"totalWeeks"`
}

// Normalize fills unset fixed-period coordinates with their defaults.
func (c Calendar) Normalize() Calendar {
	if c.CeremonyDay == 0 {
		c.CeremonyDay = 1
	}
	if c.CeremonyPeriod == 0 {
		c.CeremonyPeriod = 1
	}
	if c.ClassMeetingDay == 0 {
		c.ClassMeetingDay = c.TeachingDaysPerWeek
	}
	if c.ClassMeetingPeriod == 0 {
		c.ClassMeetingPeriod = c.PeriodsOn(c.ClassMeetingDay)
	}
	if c.LunchBreakAfter == 0 {
		c.LunchBreakAfter = defaultLunchBreakAfter
	}
	if c.LunchBreakAfter > c.PeriodsPerDay {
		c.LunchBreakAfter = c.PeriodsPerDay
	}
	return c
}

// Validate rejects calendars on which no placement is possible.
func (c Calendar) Validate() error {
	if c.TeachingDaysPerWeek < 1 || c.TeachingDaysPerWeek > 7 {
		return fmt.Errorf("%w: teaching days per week must be between 1 and 7", ErrInvalidInput)
	}
	if c.PeriodsPerDay < 1 {
		return fmt.Errorf("%w: periods per day must be positive", ErrInvalidInput)
	}
	if c.TotalWeeks < 1 {
		return fmt.Errorf("%w: total weeks must be positive", ErrInvalidInput)
	}
	for day, length := range c.DayLengths {
		if day < 1 || day > c.TeachingDaysPerWeek {
			return fmt.Errorf("%w: day length given for unknown day %d", ErrInvalidInput, day)
		}
		if length < 1 || length > c.PeriodsPerDay {
			return fmt.Errorf("%w: day %d length must be between 1 and %d", ErrInvalidInput, day, c.PeriodsPerDay)
		}
	}
	n := c.Normalize()
	if !n.Contains(n.CeremonyDay, n.CeremonyPeriod) {
		return fmt.Errorf("%w: flag ceremony slot %d/%d is outside the grid", ErrInvalidInput, n.CeremonyDay, n.CeremonyPeriod)
	}
	if !n.Contains(n.ClassMeetingDay, n.ClassMeetingPeriod) {
		return fmt.Errorf("%w: class meeting slot %d/%d is outside the grid", ErrInvalidInput, n.ClassMeetingDay, n.ClassMeetingPeriod)
	}
	if n.CeremonyDay == n.ClassMeetingDay && n.CeremonyPeriod == n.ClassMeetingPeriod {
		return fmt.Errorf("%w: flag ceremony and class meeting share a slot", ErrInvalidInput)
	}
	return nil
}

// PeriodsOn returns the number of periods taught on the given day.
func (c Calendar) PeriodsOn(day int) int {
	if length, ok := c.DayLengths[day]; ok && length > 0 {
		return length
	}
	return c.PeriodsPerDay
}

// Contains reports whether (day, period) is a real cell of the grid.
func (c Calendar) Contains(day, period int) bool {
	return day >= 1 && day <= c.TeachingDaysPerWeek && period >= 1 && period <= c.PeriodsOn(day)
}

// IsMorning reports whether a period falls before the lunch break.
func (c Calendar) IsMorning(period int) bool {
	return period <= c.LunchBreakAfter
}

// CrossesBreak reports whether periods p and p+1 straddle the lunch break.
func (c Calendar) CrossesBreak(period int) bool {
	return period == c.LunchBreakAfter
}

// IsFixed reports whether the cell is reserved for a ceremony.
func (c Calendar) IsFixed(day, period int) bool {
	return (day == c.CeremonyDay && period == c.CeremonyPeriod) ||
		(day == c.ClassMeetingDay && period == c.ClassMeetingPeriod)
}

// Days lists teaching days in ascending order.
func (c Calendar) Days() []int {
	days := make([]int, c.TeachingDaysPerWeek)
	for i := range days {
		days[i] = i + 1
	}
	return days
}

// Periods lists the periods of a day in ascending order.
func (c Calendar) Periods(day int) []int {
	periods := make([]int, c.PeriodsOn(day))
	for i := range periods {
		periods[i] = i + 1
	}
	return periods
}

// WeeklyCapacity counts the non-fixed cells of one week.
func (c Calendar) WeeklyCapacity() int {
	total := 0
	for _, day := range c.Days() {
		for _, period := range c.Periods(day) {
			if !c.IsFixed(day, period) {
				total++
			}
		}
	}
	return total
}
