// Package timetable builds weekly class timetables for a whole grade.
//
// A run binds one teacher to every (class, subject) pair, then fills each
// class grid in four phases: fixed ceremony periods, double blocks, scored
// single periods and empty filler cells. All classes of a grade share one
// AvailabilityMatrix, which is what keeps a teacher from being booked twice.
// The finished week-1 grid is replicated over every week of the year.
//
// The engine never fails on constraint problems. They are returned as
// Violations next to a best-effort grid; only malformed input returns an error.
package timetable
