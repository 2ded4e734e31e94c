package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fleetdesk/payroll-backend-go/internal/domain/driver"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type driverRepository struct {
	db *database.DB
}

func NewDriverRepository(db *database.DB) driver.DriverRepository {
	return &driverRepository{db: db}
}

const driverSelect = `
	SELECT id, name, active, current_location, status, base_salary, created_at, updated_at
	FROM drivers
`

func (r *driverRepository) GetByID(ctx context.Context, id string) (driver.Driver, error) {
	q := GetQuerier(ctx, r.db)

	var d driver.Driver
	err := q.QueryRow(ctx, driverSelect+` WHERE id = $1`, id).Scan(
		&d.ID, &d.Name, &d.Active, &d.CurrentLocation, &d.Status, &d.BaseSalary, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return driver.Driver{}, driver.ErrDriverNotFound
		}
		return driver.Driver{}, fmt.Errorf("failed to get driver: %w", err)
	}
	return d, nil
}

func (r *driverRepository) GetActive(ctx context.Context) ([]driver.Driver, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, driverSelect+` WHERE active = TRUE ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active drivers: %w", err)
	}
	defer rows.Close()

	drivers := make([]driver.Driver, 0)
	for rows.Next() {
		var d driver.Driver
		if err := rows.Scan(
			&d.ID, &d.Name, &d.Active, &d.CurrentLocation, &d.Status, &d.BaseSalary, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan driver: %w", err)
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

func (r *driverRepository) ListTrips(ctx context.Context, driverID string, from, to time.Time) ([]driver.Trip, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, driver_id, destination, departed_at, returned_at, daily_rate, currency
		FROM driver_trips
		WHERE driver_id = $1
		  AND departed_at < $3
		  AND (returned_at IS NULL OR returned_at > $2)
		ORDER BY departed_at
	`

	rows, err := q.Query(ctx, query, driverID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	defer rows.Close()

	trips := make([]driver.Trip, 0)
	for rows.Next() {
		var t driver.Trip
		if err := rows.Scan(&t.ID, &t.DriverID, &t.Destination, &t.DepartedAt, &t.ReturnedAt, &t.DailyRate, &t.Currency); err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func (r *driverRepository) ListDiurnaEntries(ctx context.Context, driverID string, from, to time.Time) ([]driver.DiurnaEntry, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, driver_id, entry_date, amount, currency, description
		FROM driver_diurna_entries
		WHERE driver_id = $1 AND entry_date >= $2 AND entry_date < $3
		ORDER BY entry_date
	`

	rows, err := q.Query(ctx, query, driverID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list diurna entries: %w", err)
	}
	defer rows.Close()

	entries := make([]driver.DiurnaEntry, 0)
	for rows.Next() {
		var e driver.DiurnaEntry
		if err := rows.Scan(&e.ID, &e.DriverID, &e.Date, &e.Amount, &e.Currency, &e.Description); err != nil {
			return nil, fmt.Errorf("failed to scan diurna entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *driverRepository) ListApprovedHolidays(ctx context.Context, driverID string, from, to time.Time) ([]driver.Holiday, error) {
	q := GetQuerier(ctx, r.db)

	// end_date is inclusive
	query := `
		SELECT id, driver_id, start_date, end_date, status
		FROM driver_holidays
		WHERE driver_id = $1
		  AND status = $4
		  AND start_date < $3
		  AND end_date >= $2
		ORDER BY start_date
	`

	rows, err := q.Query(ctx, query, driverID, from, to, driver.HolidayApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to list holidays: %w", err)
	}
	defer rows.Close()

	holidays := make([]driver.Holiday, 0)
	for rows.Next() {
		var h driver.Holiday
		if err := rows.Scan(&h.ID, &h.DriverID, &h.StartDate, &h.EndDate, &h.Status); err != nil {
			return nil, fmt.Errorf("failed to scan holiday: %w", err)
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}
