package salary

import (
	"context"
	"time"
)

// SalaryRepository defines data access methods for salaries.
type SalaryRepository interface {
	// Create inserts a new salary. Returns ErrSalaryAlreadyExists when the
	// (driver, period) pair is taken.
	Create(ctx context.Context, s Salary) (Salary, error)

	GetByID(ctx context.Context, id string) (Salary, error)
	GetByDriverPeriod(ctx context.Context, driverID string, period time.Time) (Salary, error)
	List(ctx context.Context, filter SalaryFilter) ([]Salary, error)

	// Update persists every mutable field only if the stored version equals
	// s.Version, and returns the record with the incremented version.
	// A stale version yields ErrConflict.
	Update(ctx context.Context, s Salary) (Salary, error)

	// GetSummary aggregates finalized and paid salaries of a month.
	GetSummary(ctx context.Context, period time.Time) (Summary, error)
}

// Transactor runs fn inside a storage transaction carried by ctx.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SalaryFilter narrows List. Period bounds are inclusive.
type SalaryFilter struct {
	Status     *Status
	DriverID   *string
	PeriodFrom *time.Time
	PeriodTo   *time.Time
	ActiveOnly bool
}
