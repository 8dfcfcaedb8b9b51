package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when an insert collides with an existing record.
	ErrDuplicate = errors.New("persistence: duplicate")
	// ErrConstraintViolation is returned when a CHECK constraint rejects a write.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a referenced record is missing.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrAlreadyResolved is returned when a negotiation request was already
	// approved or rejected by the time the write transaction observed it.
	ErrAlreadyResolved = errors.New("persistence: request already resolved")
	// ErrScheduleConflict is returned when committing an interval would leave a
	// participant with two overlapping confirmed schedules.
	ErrScheduleConflict = errors.New("persistence: schedule conflict")
)
