package driver

import (
	"context"
	"time"
)

// DriverRepository is the read-only view of the driver registry used by
// the salary engine. Range arguments are half-open: [from, to).
type DriverRepository interface {
	GetByID(ctx context.Context, id string) (Driver, error)
	GetActive(ctx context.Context) ([]Driver, error)

	// ListTrips returns trips intersecting [from, to), ordered by departure.
	ListTrips(ctx context.Context, driverID string, from, to time.Time) ([]Trip, error)

	// ListDiurnaEntries returns recorded diurna entries dated in [from, to).
	ListDiurnaEntries(ctx context.Context, driverID string, from, to time.Time) ([]DiurnaEntry, error)

	// ListApprovedHolidays returns approved holidays intersecting [from, to).
	ListApprovedHolidays(ctx context.Context, driverID string, from, to time.Time) ([]Holiday, error)
}
