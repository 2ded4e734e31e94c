package salary

import (
	"context"
	"testing"
	"time"

	"github.com/fleetdesk/payroll-backend-go/internal/domain/audit"
	"github.com/fleetdesk/payroll-backend-go/internal/domain/driver"
	"github.com/fleetdesk/payroll-backend-go/internal/domain/salary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessAutomaticPayments(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	// March 2026 has 31 days.
	withHoliday := env.addDriver("Ana", ptr(d("3100")))
	env.store.AddHoliday(driver.Holiday{
		DriverID:  withHoliday.ID,
		StartDate: time.Date(2026, time.February, 27, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC),
		Status:    driver.HolidayApproved,
	})
	env.store.AddHoliday(driver.Holiday{
		DriverID:  withHoliday.ID,
		StartDate: time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC),
		Status:    driver.HolidayApproved,
	})
	env.store.AddHoliday(driver.Holiday{
		DriverID:  withHoliday.ID,
		StartDate: time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, time.March, 25, 0, 0, 0, 0, time.UTC),
		Status:    driver.HolidayRejected,
	})
	env.store.AddDiurnaEntry(driver.DiurnaEntry{DriverID: withHoliday.ID, Date: at(12, 0), Amount: d("45"), Currency: "RON"})

	hasDraft := env.addDriver("Bogdan", ptr(d("2000")))
	draft := createDraft(t, env, hasDraft.ID, "2026-03")

	hasFinalized := env.addDriver("Cristi", ptr(d("2500")))
	done := createDraft(t, env, hasFinalized.ID, "2026-03")
	_, err := env.svc.Calculate(ctx, salary.CalculateSalaryRequest{DriverID: hasFinalized.ID, Period: "2026-03", BaseAmount: ptr(d("2500")), DaysWorked: ptr(31)})
	require.NoError(t, err)
	_, err = env.svc.Finalize(ctx, done.ID)
	require.NoError(t, err)

	noBase := env.addDriver("Dan", nil)

	inactive := env.addDriver("Elena", ptr(d("4000")))
	env.store.SetDriverActive(inactive.ID, false)

	report, err := env.svc.ProcessAutomaticPayments(ctx, at(15, 10))
	require.NoError(t, err)
	assert.Equal(t, "2026-03", report.Period)
	assert.Equal(t, 4, report.Drivers)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 2, report.Calculated)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, noBase.ID, report.Failures[0].DriverID)
	assert.Contains(t, report.Failures[0].Reason, salary.ErrMissingDriverData.Error())

	created, err := env.salaries.GetByDriverPeriod(ctx, withHoliday.ID, march)
	require.NoError(t, err)
	assert.Equal(t, salary.StatusCalculated, created.Status)
	// Mar 1-4 off
	assert.Equal(t, 27, created.DaysWorked)
	assert.True(t, created.DiurnaTotal.Equal(d("45")))
	assert.True(t, created.Total.Equal(d("2745")), "got %s", created.Total)
	assert.Equal(t, []audit.Action{audit.ActionCreate, audit.ActionCalculate}, actions(env.history(t, created.ID)))

	recalculated, err := env.salaries.GetByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, salary.StatusCalculated, recalculated.Status)
	assert.Equal(t, 20, recalculated.DaysWorked)

	finalized, err := env.salaries.GetByID(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, salary.StatusFinalized, finalized.Status)

	_, err = env.salaries.GetByDriverPeriod(ctx, inactive.ID, march)
	assert.ErrorIs(t, err, salary.ErrSalaryNotFound)
}

func TestProcessAutomaticPayments_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addDriver("Ana", ptr(d("3100")))
	env.addDriver("Bogdan", ptr(d("2000")))

	first, err := env.svc.ProcessAutomaticPayments(ctx, march)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)

	snapshot, err := env.salaries.List(ctx, salary.SalaryFilter{})
	require.NoError(t, err)

	second, err := env.svc.ProcessAutomaticPayments(ctx, march)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 0, second.Calculated)
	assert.Equal(t, 2, second.Skipped)
	assert.Empty(t, second.Failures)

	after, err := env.salaries.List(ctx, salary.SalaryFilter{})
	require.NoError(t, err)
	require.Len(t, after, 2)
	for i := range after {
		assert.Equal(t, snapshot[i].ID, after[i].ID)
		assert.Equal(t, snapshot[i].Version, after[i].Version)
		assert.Equal(t, salary.StatusCalculated, after[i].Status)
	}
}

func TestProcessAutomaticPayments_IsolatesFailures(t *testing.T) {
	ctx := context.Background()
	var broken driver.Driver
	env := newTestEnv(t, withDrivers(func(r driver.DriverRepository) driver.DriverRepository {
		return &lateFlaky{DriverRepository: r, broken: &broken}
	}))
	broken = env.addDriver("Ana", ptr(d("3100")))
	healthy := env.addDriver("Bogdan", ptr(d("2000")))

	report, err := env.svc.ProcessAutomaticPayments(ctx, march)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, broken.ID, report.Failures[0].DriverID)
	assert.Equal(t, "Ana", report.Failures[0].DriverName)

	_, err = env.salaries.GetByDriverPeriod(ctx, healthy.ID, march)
	assert.NoError(t, err)
	_, err = env.salaries.GetByDriverPeriod(ctx, broken.ID, march)
	assert.ErrorIs(t, err, salary.ErrSalaryNotFound)
}

// lateFlaky fails registry reads for a driver known only after setup.
type lateFlaky struct {
	driver.DriverRepository
	broken *driver.Driver
}

func (f *lateFlaky) ListDiurnaEntries(ctx context.Context, driverID string, from, to time.Time) ([]driver.DiurnaEntry, error) {
	return flakyDrivers{DriverRepository: f.DriverRepository, failFor: f.broken.ID}.ListDiurnaEntries(ctx, driverID, from, to)
}

func TestProcessAutomaticPayments_BoundsSlowDriver(t *testing.T) {
	ctx := context.Background()
	var slow driver.Driver
	env := newTestEnv(t,
		withDriverTimeout(150*time.Millisecond),
		withDrivers(func(r driver.DriverRepository) driver.DriverRepository {
			return &stalledDrivers{DriverRepository: r, stalled: &slow}
		}),
	)
	slow = env.addDriver("Ana", ptr(d("3100")))
	healthy := env.addDriver("Bogdan", ptr(d("2000")))

	started := time.Now()
	report, err := env.svc.ProcessAutomaticPayments(ctx, march)
	require.NoError(t, err)
	assert.Less(t, time.Since(started), 2*time.Second)

	assert.Equal(t, 1, report.Created)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, slow.ID, report.Failures[0].DriverID)
	assert.Contains(t, report.Failures[0].Reason, context.DeadlineExceeded.Error())

	_, err = env.salaries.GetByDriverPeriod(ctx, healthy.ID, march)
	assert.NoError(t, err)
	_, err = env.salaries.GetByDriverPeriod(ctx, slow.ID, march)
	assert.ErrorIs(t, err, salary.ErrSalaryNotFound)
}

func TestProcessAutomaticPayments_RejectsConcurrentBatch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addDriver("Ana", ptr(d("3100")))

	release, err := env.locker.Acquire(ctx, "batch:2026-03", time.Minute)
	require.NoError(t, err)

	_, err = env.svc.ProcessAutomaticPayments(ctx, march)
	assert.ErrorIs(t, err, salary.ErrBatchInProgress)

	// other periods are not blocked
	_, err = env.svc.ProcessAutomaticPayments(ctx, february)
	assert.NoError(t, err)

	release()
	report, err := env.svc.ProcessAutomaticPayments(ctx, march)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
}
