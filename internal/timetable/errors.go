package timetable

import "errors"

// ErrInvalidInput marks malformed run input; no placement is attempted.
var ErrInvalidInput = errors.New("invalid timetable input")

// errDoubleBooked is returned by the matrix when a reservation would overlap.
var errDoubleBooked = errors.New("teacher already occupied")
