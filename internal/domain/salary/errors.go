package salary

import "errors"

var (
	ErrSalaryNotFound      = errors.New("salary not found")
	ErrSalaryAlreadyExists = errors.New("salary already exists for this driver and period")
	ErrInvalidTransition   = errors.New("invalid salary status transition")
	ErrImmutableRecord     = errors.New("salary is finalized or paid, cannot modify")
	ErrConflict            = errors.New("salary is being modified by another operation")
	ErrUpstreamFailure     = errors.New("upstream service unavailable")
	ErrMissingDriverData   = errors.New("driver has no base salary configured")
	ErrBatchInProgress     = errors.New("automatic processing already running for this period")
)
