package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// Malformed catalog data (bad lesson times, empty exam dates, stale group
// references, unknown prerequisite kinds) is never an error; these cover caller mistakes and lookups.
// -----------------------------------------------------------------------------

// Catalog errors
var (
	ErrCourseNotFound  = errors.New("course not found")
	ErrSemesterUnknown = errors.New("semester not in catalog metadata")
)

// Selection errors
var (
	ErrInvalidSemester   = errors.New("invalid semester key")
	ErrCourseNotSelected = errors.New("course not selected")
	ErrInvalidPosition   = errors.New("invalid course position")
	ErrInvalidDocument   = errors.New("invalid selection document")
)

// ErrInvalidInput marks malformed caller input.
var ErrInvalidInput = errors.New("invalid input")
