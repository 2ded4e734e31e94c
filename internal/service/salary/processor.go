package salary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fleetdesk/payroll-backend-go/internal/domain/audit"
	"github.com/fleetdesk/payroll-backend-go/internal/domain/driver"
	"github.com/fleetdesk/payroll-backend-go/internal/domain/salary"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/lock"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/validator"
	"golang.org/x/sync/errgroup"
)

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeCreated
	outcomeCalculated
)

// ProcessAutomaticPayments brings every active driver's salary for period
// to Calculated. Existing Calculated, Finalized and Paid records are left
// alone, so running it twice is harmless. A failing driver is reported and
// does not stop the others.
func (s *SalaryServiceImpl) ProcessAutomaticPayments(ctx context.Context, period time.Time) (salary.BatchReport, error) {
	period = validator.FirstOfMonth(period)
	label := period.Format(monthLayout)
	started := time.Now()

	release, err := s.locker.Acquire(ctx, "batch:"+label, s.opts.BatchLockTTL)
	if errors.Is(err, lock.ErrLocked) {
		s.metrics.BatchRun("locked", time.Since(started))
		return salary.BatchReport{}, fmt.Errorf("%w: %s", salary.ErrBatchInProgress, label)
	}
	if err != nil {
		s.metrics.BatchRun("error", time.Since(started))
		return salary.BatchReport{}, fmt.Errorf("%w: %w", salary.ErrUpstreamFailure, err)
	}
	defer release()

	drivers, err := s.driverRepo.GetActive(ctx)
	if err != nil {
		s.metrics.BatchRun("error", time.Since(started))
		return salary.BatchReport{}, registryError("list active drivers", err)
	}

	report := salary.BatchReport{
		Period:   label,
		Drivers:  len(drivers),
		Failures: []salary.DriverFailure{},
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.opts.Concurrency)

	for _, d := range drivers {
		g.Go(func() error {
			result, err := s.processDriver(ctx, d, period)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("Automatic salary processing failed for driver", "driver_id", d.ID, "period", label, "error", err)
				report.Failures = append(report.Failures, salary.DriverFailure{
					DriverID:   d.ID,
					DriverName: d.Name,
					Reason:     err.Error(),
				})
				return nil
			}
			switch result {
			case outcomeCreated:
				report.Created++
				report.Calculated++
			case outcomeCalculated:
				report.Calculated++
			default:
				report.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].DriverID < report.Failures[j].DriverID
	})

	s.metrics.BatchDrivers("created", report.Created)
	s.metrics.BatchDrivers("calculated", report.Calculated-report.Created)
	s.metrics.BatchDrivers("skipped", report.Skipped)
	s.metrics.BatchDrivers("failed", len(report.Failures))
	s.metrics.BatchRun("ok", time.Since(started))

	slog.Info("Automatic salary processing finished",
		"period", label,
		"drivers", report.Drivers,
		"created", report.Created,
		"calculated", report.Calculated,
		"skipped", report.Skipped,
		"failed", len(report.Failures),
		"duration", time.Since(started),
	)
	return report, nil
}

func (s *SalaryServiceImpl) processDriver(ctx context.Context, d driver.Driver, period time.Time) (outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.DriverTimeout)
	defer cancel()

	existing, err := s.salaryRepo.GetByDriverPeriod(ctx, d.ID, period)
	switch {
	case errors.Is(err, salary.ErrSalaryNotFound):
		return s.createCalculated(ctx, d, period)
	case err != nil:
		return outcomeSkipped, err
	case existing.Status != salary.StatusDraft:
		return outcomeSkipped, nil
	}

	_, err = s.mutate(ctx, existing.ID, func(ctx context.Context, rec *salary.Salary) (*pendingEntry, error) {
		before := rec.Clone()
		if _, err := s.recalculate(ctx, rec); err != nil {
			return nil, err
		}
		if err := rec.Apply(salary.EventCalculate, s.opts.Now()); err != nil {
			return nil, err
		}
		return &pendingEntry{
			action:  audit.ActionCalculate,
			changes: diffSalary(before, *rec),
			message: "Salariu calculat automat",
		}, nil
	})
	if err != nil {
		return outcomeSkipped, err
	}
	return outcomeCalculated, nil
}

// createCalculated creates the driver's salary from registry data and moves
// it to Calculated in a single transaction.
func (s *SalaryServiceImpl) createCalculated(ctx context.Context, d driver.Driver, period time.Time) (outcome, error) {
	if d.BaseSalary == nil {
		return outcomeSkipped, salary.ErrMissingDriverData
	}

	holidayDays, err := s.approvedHolidayDays(ctx, d.ID, period)
	if err != nil {
		return outcomeSkipped, err
	}

	now := s.opts.Now()
	rec := salary.Salary{
		DriverID:    d.ID,
		Period:      period,
		BaseAmount:  *d.BaseSalary,
		DaysWorked:  validator.DaysInMonth(period) - holidayDays,
		Currency:    s.converter.Base(),
		Status:      salary.StatusDraft,
		PaymentType: salary.PaymentTypeSalary,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.recalculate(ctx, &rec); err != nil {
		return outcomeSkipped, err
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		created, err := s.salaryRepo.Create(ctx, rec)
		if err != nil {
			return err
		}
		if err := s.log(ctx, created.ID, audit.ActionCreate, creationChanges(created), "Salariu creat automat"); err != nil {
			return err
		}

		before := created.Clone()
		if err := created.Apply(salary.EventCalculate, now); err != nil {
			return err
		}
		if _, err := s.salaryRepo.Update(ctx, created); err != nil {
			return err
		}
		return s.log(ctx, created.ID, audit.ActionCalculate, diffSalary(before, created), "Salariu calculat automat")
	})
	if errors.Is(err, salary.ErrSalaryAlreadyExists) {
		// created concurrently by a manual call
		return outcomeSkipped, nil
	}
	if err != nil {
		return outcomeSkipped, err
	}

	s.metrics.Mutation(string(audit.ActionCreate))
	s.metrics.Mutation(string(audit.ActionCalculate))
	return outcomeCreated, nil
}

// approvedHolidayDays counts the distinct days of period covered by the
// driver's approved holidays.
func (s *SalaryServiceImpl) approvedHolidayDays(ctx context.Context, driverID string, period time.Time) (int, error) {
	end := period.AddDate(0, 1, 0)
	holidays, err := s.driverRepo.ListApprovedHolidays(ctx, driverID, period, end)
	if err != nil {
		return 0, registryError("list holidays", err)
	}

	days := make(map[int]struct{})
	for _, h := range holidays {
		from := validator.FirstOfMonth(h.StartDate).AddDate(0, 0, h.StartDate.Day()-1)
		to := validator.FirstOfMonth(h.EndDate).AddDate(0, 0, h.EndDate.Day()-1)
		if from.Before(period) {
			from = period
		}
		for d := from; !d.After(to) && d.Before(end); d = d.AddDate(0, 0, 1) {
			days[d.Day()] = struct{}{}
		}
	}
	return len(days), nil
}
