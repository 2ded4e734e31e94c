package memory

import (
	"context"
	"sort"
	"time"

	"github.com/fleetdesk/payroll-backend-go/internal/domain/salary"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type salaryRepositoryImpl struct {
	store *Store
}

func NewSalaryRepository(store *Store) salary.SalaryRepository {
	return &salaryRepositoryImpl{store: store}
}

func (r *salaryRepositoryImpl) Create(ctx context.Context, s salary.Salary) (salary.Salary, error) {
	var created salary.Salary
	err := r.store.write(ctx, func() error {
		for _, existing := range r.store.salaries {
			if existing.DriverID == s.DriverID && existing.Period.Equal(s.Period) {
				return salary.ErrSalaryAlreadyExists
			}
		}
		created = s.Clone()
		if created.ID == "" {
			created.ID = uuid.NewString()
		}
		created.Version = 1
		created.DriverName, created.DriverActive = nil, nil
		r.store.salaries[created.ID] = created
		return nil
	})
	if err != nil {
		return salary.Salary{}, err
	}
	return r.withDriver(created), nil
}

func (r *salaryRepositoryImpl) GetByID(ctx context.Context, id string) (salary.Salary, error) {
	r.store.mu.RLock()
	s, ok := r.store.salaries[id]
	r.store.mu.RUnlock()
	if !ok {
		return salary.Salary{}, salary.ErrSalaryNotFound
	}
	return r.withDriver(s), nil
}

func (r *salaryRepositoryImpl) GetByDriverPeriod(ctx context.Context, driverID string, period time.Time) (salary.Salary, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, s := range r.store.salaries {
		if s.DriverID == driverID && s.Period.Equal(period) {
			return r.withDriverLocked(s), nil
		}
	}
	return salary.Salary{}, salary.ErrSalaryNotFound
}

func (r *salaryRepositoryImpl) List(ctx context.Context, filter salary.SalaryFilter) ([]salary.Salary, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]salary.Salary, 0)
	for _, s := range r.store.salaries {
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		if filter.DriverID != nil && s.DriverID != *filter.DriverID {
			continue
		}
		if filter.PeriodFrom != nil && s.Period.Before(*filter.PeriodFrom) {
			continue
		}
		if filter.PeriodTo != nil && s.Period.After(*filter.PeriodTo) {
			continue
		}
		joined := r.withDriverLocked(s)
		if filter.ActiveOnly && (joined.DriverActive == nil || !*joined.DriverActive) {
			continue
		}
		out = append(out, joined)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Period.Equal(out[j].Period) {
			return out[i].Period.After(out[j].Period)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *salaryRepositoryImpl) Update(ctx context.Context, s salary.Salary) (salary.Salary, error) {
	var updated salary.Salary
	err := r.store.write(ctx, func() error {
		stored, ok := r.store.salaries[s.ID]
		if !ok {
			return salary.ErrSalaryNotFound
		}
		if stored.Version != s.Version {
			return salary.ErrConflict
		}
		for _, other := range r.store.salaries {
			if other.ID != s.ID && other.DriverID == s.DriverID && other.Period.Equal(s.Period) {
				return salary.ErrSalaryAlreadyExists
			}
		}
		updated = s.Clone()
		updated.Version = stored.Version + 1
		updated.CreatedAt = stored.CreatedAt
		updated.DriverID = stored.DriverID
		updated.DriverName, updated.DriverActive = nil, nil
		r.store.salaries[s.ID] = updated
		return nil
	})
	if err != nil {
		return salary.Salary{}, err
	}
	return r.withDriver(updated), nil
}

func (r *salaryRepositoryImpl) GetSummary(ctx context.Context, period time.Time) (salary.Summary, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	sum := salary.Summary{Period: period, TotalSalary: decimal.Zero, TotalDiurna: decimal.Zero}
	for _, s := range r.store.salaries {
		if !s.Period.Equal(period) {
			continue
		}
		if s.Status != salary.StatusFinalized && s.Status != salary.StatusPaid {
			continue
		}
		sum.TotalSalary = sum.TotalSalary.Add(s.Total)
		sum.TotalDiurna = sum.TotalDiurna.Add(s.DiurnaTotal)
		sum.Count++
	}
	return sum, nil
}

func (r *salaryRepositoryImpl) withDriver(s salary.Salary) salary.Salary {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.withDriverLocked(s)
}

// withDriverLocked expects r.store.mu to be held.
func (r *salaryRepositoryImpl) withDriverLocked(s salary.Salary) salary.Salary {
	out := s.Clone()
	if d, ok := r.store.drivers[s.DriverID]; ok {
		name, active := d.Name, d.Active
		out.DriverName = &name
		out.DriverActive = &active
	}
	return out
}
