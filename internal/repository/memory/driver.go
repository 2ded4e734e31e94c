package memory

import (
	"context"
	"sort"
	"time"

	"github.com/fleetdesk/payroll-backend-go/internal/domain/driver"
)

type driverRepositoryImpl struct {
	store *Store
}

func NewDriverRepository(store *Store) driver.DriverRepository {
	return &driverRepositoryImpl{store: store}
}

func (r *driverRepositoryImpl) GetByID(ctx context.Context, id string) (driver.Driver, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	d, ok := r.store.drivers[id]
	if !ok {
		return driver.Driver{}, driver.ErrDriverNotFound
	}
	return d, nil
}

func (r *driverRepositoryImpl) GetActive(ctx context.Context) ([]driver.Driver, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]driver.Driver, 0, len(r.store.drivers))
	for _, d := range r.store.drivers {
		if d.Active {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *driverRepositoryImpl) ListTrips(ctx context.Context, driverID string, from, to time.Time) ([]driver.Trip, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []driver.Trip
	for _, t := range r.store.trips {
		if t.DriverID != driverID || !t.DepartedAt.Before(to) {
			continue
		}
		if t.ReturnedAt != nil && !t.ReturnedAt.After(from) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartedAt.Before(out[j].DepartedAt) })
	return out, nil
}

func (r *driverRepositoryImpl) ListDiurnaEntries(ctx context.Context, driverID string, from, to time.Time) ([]driver.DiurnaEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []driver.DiurnaEntry
	for _, e := range r.store.entries {
		if e.DriverID == driverID && !e.Date.Before(from) && e.Date.Before(to) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *driverRepositoryImpl) ListApprovedHolidays(ctx context.Context, driverID string, from, to time.Time) ([]driver.Holiday, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []driver.Holiday
	for _, h := range r.store.holidays {
		if h.DriverID != driverID || h.Status != driver.HolidayApproved {
			continue
		}
		// EndDate is the last day off, inclusive.
		if !h.StartDate.Before(to) || !h.EndDate.AddDate(0, 0, 1).After(from) {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}
