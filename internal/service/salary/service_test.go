package salary

import (
	"context"
	"sync"
	"testing"

	"github.com/fleetdesk/payroll-backend-go/internal/domain/audit"
	"github.com/fleetdesk/payroll-backend-go/internal/domain/driver"
	"github.com/fleetdesk/payroll-backend-go/internal/domain/salary"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createDraft(t *testing.T, env *testEnv, driverID, period string) salary.SalaryResponse {
	t.Helper()
	resp, err := env.svc.Create(context.Background(), salary.CreateSalaryRequest{
		DriverID:   driverID,
		Period:     period,
		BaseAmount: d("3000"),
		DaysWorked: ptr(20),
	})
	require.NoError(t, err)
	return resp
}

func TestSalaryService_CreateAndCalculateScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	drv := env.addDriver("Ion Popescu", nil)
	env.store.AddDiurnaEntry(driver.DiurnaEntry{DriverID: drv.ID, Date: february.AddDate(0, 0, 9), Amount: d("150"), Currency: "RON"})

	created, err := env.svc.Create(ctx, salary.CreateSalaryRequest{
		DriverID:   drv.ID,
		Period:     "2026-02",
		BaseAmount: d("3000"),
		DaysWorked: ptr(28),
		Bonuses:    []salary.AdjustmentRequest{{Type: "performanta", Amount: d("200")}},
		Deductions: []salary.AdjustmentRequest{{Type: "avans", Amount: d("50")}},
	})
	require.NoError(t, err)
	assert.Equal(t, string(salary.StatusDraft), created.Status)
	assert.Equal(t, string(salary.PaymentTypeSalary), created.PaymentType)
	assert.Equal(t, "RON", created.Currency)
	assert.Equal(t, "RON", created.Bonuses[0].Currency)
	assert.True(t, created.DiurnaTotal.Equal(d("150")))
	assert.True(t, created.Total.Equal(d("3300")), "got %s", created.Total)
	require.NotNil(t, created.Driver.Name)
	assert.Equal(t, "Ion Popescu", *created.Driver.Name)

	calculated, err := env.svc.Calculate(ctx, salary.CalculateSalaryRequest{
		DriverID:   drv.ID,
		Period:     "2026-02-01",
		BaseAmount: ptr(d("3000")),
		DaysWorked: ptr(28),
	})
	require.NoError(t, err)
	assert.Equal(t, string(salary.StatusCalculated), calculated.Status)
	assert.True(t, calculated.Total.Equal(d("3300")), "got %s", calculated.Total)
	require.NotNil(t, calculated.Breakdown)
	assert.True(t, calculated.Breakdown.ProratedBase.Equal(d("3000")))
	assert.Equal(t, created.Version+1, calculated.Version)

	assert.Equal(t, []audit.Action{audit.ActionCreate, audit.ActionCalculate}, actions(env.history(t, created.ID)))
}

func TestSalaryService_CreateErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	drv := env.addDriver("Ion", nil)
	createDraft(t, env, drv.ID, "2026-03")

	_, err := env.svc.Create(ctx, salary.CreateSalaryRequest{DriverID: drv.ID, Period: "2026-03", BaseAmount: d("1"), DaysWorked: ptr(1)})
	assert.ErrorIs(t, err, salary.ErrSalaryAlreadyExists)

	_, err = env.svc.Create(ctx, salary.CreateSalaryRequest{DriverID: "7f1c4a3e-2b7d-4c55-9b1a-0d2f5e6a7b8c", Period: "2026-03", BaseAmount: d("1"), DaysWorked: ptr(1)})
	assert.ErrorIs(t, err, driver.ErrDriverNotFound)

	_, err = env.svc.Create(ctx, salary.CreateSalaryRequest{DriverID: "missing", Period: "2026-03", BaseAmount: d("1"), DaysWorked: ptr(1)})
	var idErrs validator.ValidationErrors
	require.ErrorAs(t, err, &idErrs)
	assert.Contains(t, idErrs.ToMap(), "sofer")

	_, err = env.svc.Create(ctx, salary.CreateSalaryRequest{DriverID: drv.ID, Period: "martie", BaseAmount: d("-1")})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs.ToMap(), "luna")
	assert.Contains(t, verrs.ToMap(), "salariuBaza")
	assert.Contains(t, verrs.ToMap(), "zileLucrate")

	_, err = env.svc.Create(ctx, salary.CreateSalaryRequest{
		DriverID: drv.ID, Period: "2026-04", BaseAmount: d("1"), DaysWorked: ptr(1),
		Bonuses: []salary.AdjustmentRequest{{Type: "x", Amount: d("1"), Currency: "GBP"}},
	})
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs.ToMap(), "bonusuri[0].moneda")
}

func TestSalaryService_CreateDiurnaPaymentType(t *testing.T) {
	env := newTestEnv(t)
	drv := env.addDriver("Ion", nil)
	env.store.AddTrip(driver.Trip{DriverID: drv.ID, DepartedAt: at(2, 6), ReturnedAt: ptr(at(5, 22))})

	created, err := env.svc.Create(context.Background(), salary.CreateSalaryRequest{
		DriverID:    drv.ID,
		Period:      "2026-03",
		BaseAmount:  d("3100"),
		DaysWorked:  ptr(31),
		PaymentType: ptr("diurna_externa"),
	})
	require.NoError(t, err)
	assert.Equal(t, "DIURNA_EXTERNA", created.PaymentType)
	assert.True(t, created.DiurnaTotal.Equal(d("200")), "got %s", created.DiurnaTotal)
	assert.True(t, created.Total.Equal(d("3300")), "got %s", created.Total)
}

func TestSalaryService_FinalizeDraftIsInvalidTransition(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	drv := env.addDriver("Ion", nil)
	draft := createDraft(t, env, drv.ID, "2026-03")

	_, err := env.svc.Finalize(ctx, draft.ID)
	assert.ErrorIs(t, err, salary.ErrInvalidTransition)

	got, err := env.svc.Get(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, string(salary.StatusDraft), got.Status)
	assert.Equal(t, draft.Version, got.Version)
	assert.Len(t, env.history(t, draft.ID), 1)
}

func TestSalaryService_FullLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	drv := env.addDriver("Ion", nil)
	draft := createDraft(t, env, drv.ID, "2026-03")

	_, err := env.svc.Calculate(ctx, salary.CalculateSalaryRequest{DriverID: drv.ID, Period: "2026-03", BaseAmount: ptr(d("3100")), DaysWorked: ptr(31)})
	require.NoError(t, err)

	finalized, err := env.svc.Finalize(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, string(salary.StatusFinalized), finalized.Status)
	require.NotNil(t, finalized.FinalizedAt)

	_, err = env.svc.Finalize(ctx, draft.ID)
	assert.ErrorIs(t, err, salary.ErrInvalidTransition)

	paid, err := env.svc.MarkPaid(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, string(salary.StatusPaid), paid.Status)
	require.NotNil(t, paid.PaidAt)

	_, err = env.svc.MarkPaid(ctx, draft.ID)
	assert.ErrorIs(t, err, salary.ErrInvalidTransition)

	history, err := env.svc.History(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, []audit.Action{
		audit.ActionCreate,
		audit.ActionCalculate,
		audit.ActionFinalize,
		audit.ActionStatusUpdate,
	}, actions(history))

	finalize := history[2]
	assert.Equal(t, salary.EntityType, finalize.EntityType)
	assert.Contains(t, finalize.Changes, audit.FieldChange{Field: "status", OldValue: "calculat", NewValue: "finalizat"})

	summary, err := env.svc.Summary(ctx, march)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Count)
	assert.True(t, summary.TotalSalary.Equal(d("3100")))
}

func TestSalaryService_MarkPaidFromCalculated(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	drv := env.addDriver("Ion", nil)
	draft := createDraft(t, env, drv.ID, "2026-03")

	_, err := env.svc.MarkPaid(ctx, draft.ID)
	assert.ErrorIs(t, err, salary.ErrInvalidTransition)

	_, err = env.svc.Calculate(ctx, salary.CalculateSalaryRequest{DriverID: drv.ID, Period: "2026-03", BaseAmount: ptr(d("3000")), DaysWorked: ptr(20)})
	require.NoError(t, err)

	paid, err := env.svc.MarkPaid(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, string(salary.StatusPaid), paid.Status)
	assert.Nil(t, paid.FinalizedAt)
}

func TestSalaryService_FinalizedRecordIsImmutable(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	drv := env.addDriver("Ion", nil)
	draft := createDraft(t, env, drv.ID, "2026-03")
	_, err := env.svc.Calculate(ctx, salary.CalculateSalaryRequest{DriverID: drv.ID, Period: "2026-03", BaseAmount: ptr(d("3000")), DaysWorked: ptr(20)})
	require.NoError(t, err)
	finalized, err := env.svc.Finalize(ctx, draft.ID)
	require.NoError(t, err)

	before := len(env.history(t, draft.ID))

	_, err = env.svc.Update(ctx, salary.UpdateSalaryRequest{ID: draft.ID, DaysWorked: ptr(10)})
	assert.ErrorIs(t, err, salary.ErrImmutableRecord)

	_, err = env.svc.AddBonus(ctx, draft.ID, salary.AdjustmentRequest{Type: "x", Amount: d("10")})
	assert.ErrorIs(t, err, salary.ErrImmutableRecord)

	_, err = env.svc.AddDeduction(ctx, draft.ID, salary.AdjustmentRequest{Type: "x", Amount: d("10")})
	assert.ErrorIs(t, err, salary.ErrImmutableRecord)

	_, err = env.svc.Calculate(ctx, salary.CalculateSalaryRequest{DriverID: drv.ID, Period: "2026-03", BaseAmount: ptr(d("1")), DaysWorked: ptr(1)})
	assert.ErrorIs(t, err, salary.ErrInvalidTransition)

	got, err := env.svc.Get(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, finalized.Version, got.Version)
	assert.True(t, got.Total.Equal(finalized.Total))
	assert.Len(t, env.history(t, draft.ID), before)
}

func TestSalaryService_Update(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	drv := env.addDriver("Ion", nil)
	draft := createDraft(t, env, drv.ID, "2026-03")
	createDraft(t, env, drv.ID, "2026-04")

	t.Run("changed fields are audited", func(t *testing.T) {
		updated, err := env.svc.Update(ctx, salary.UpdateSalaryRequest{
			ID:         draft.ID,
			BaseAmount: ptr(d("3100")),
			DaysWorked: ptr(31),
			Notes:      ptr("ore suplimentare"),
		})
		require.NoError(t, err)
		assert.True(t, updated.Total.Equal(d("3100")))
		assert.Equal(t, string(salary.StatusDraft), updated.Status)

		history := env.history(t, draft.ID)
		last := history[len(history)-1]
		assert.Equal(t, audit.ActionUpdate, last.Action)
		assert.Contains(t, last.Changes, audit.FieldChange{Field: "salariuBaza", OldValue: "3000.00", NewValue: "3100.00"})
		assert.Contains(t, last.Changes, audit.FieldChange{Field: "zileLucrate", OldValue: 20, NewValue: 31})
	})

	t.Run("no-op writes nothing", func(t *testing.T) {
		before := len(env.history(t, draft.ID))
		_, err := env.svc.Update(ctx, salary.UpdateSalaryRequest{ID: draft.ID, DaysWorked: ptr(31)})
		require.NoError(t, err)
		assert.Len(t, env.history(t, draft.ID), before)
	})

	t.Run("fixed fields are rejected", func(t *testing.T) {
		_, err := env.svc.Update(ctx, salary.UpdateSalaryRequest{ID: draft.ID, DriverID: ptr("other"), Status: ptr("platit")})
		var verrs validator.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs.ToMap(), "sofer")
		assert.Contains(t, verrs.ToMap(), "status")
	})

	t.Run("moving onto a taken period", func(t *testing.T) {
		_, err := env.svc.Update(ctx, salary.UpdateSalaryRequest{ID: draft.ID, Period: ptr("2026-04")})
		assert.ErrorIs(t, err, salary.ErrSalaryAlreadyExists)
	})

	t.Run("days must fit the month", func(t *testing.T) {
		_, err := env.svc.Update(ctx, salary.UpdateSalaryRequest{ID: draft.ID, DaysWorked: ptr(32)})
		var verrs validator.ValidationErrors
		require.ErrorAs(t, err, &verrs)
	})

	t.Run("missing salary", func(t *testing.T) {
		_, err := env.svc.Update(ctx, salary.UpdateSalaryRequest{ID: "nope", DaysWorked: ptr(1)})
		assert.ErrorIs(t, err, salary.ErrSalaryNotFound)
	})
}

func TestSalaryService_Adjustments(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	drv := env.addDriver("Ion", nil)
	draft := createDraft(t, env, drv.ID, "2026-03")

	withBonus, err := env.svc.AddBonus(ctx, draft.ID, salary.AdjustmentRequest{Type: "km", Amount: d("20"), Currency: "eur"})
	require.NoError(t, err)
	require.Len(t, withBonus.Bonuses, 1)
	assert.Equal(t, "EUR", withBonus.Bonuses[0].Currency)
	assert.True(t, withBonus.Total.Equal(draft.Total.Add(d("100"))), "got %s", withBonus.Total)

	withDeduction, err := env.svc.AddDeduction(ctx, draft.ID, salary.AdjustmentRequest{Type: "amenda", Amount: d("30")})
	require.NoError(t, err)
	require.Len(t, withDeduction.Deductions, 1)
	assert.Equal(t, "RON", withDeduction.Deductions[0].Currency)
	assert.True(t, withDeduction.Total.Equal(withBonus.Total.Sub(d("30"))))

	_, err = env.svc.AddBonus(ctx, draft.ID, salary.AdjustmentRequest{Type: "x", Amount: d("1"), Currency: "USD"})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)

	_, err = env.svc.AddBonus(ctx, draft.ID, salary.AdjustmentRequest{Type: "x", Amount: d("-5")})
	require.ErrorAs(t, err, &verrs)

	assert.Equal(t, []audit.Action{audit.ActionCreate, audit.ActionBonus, audit.ActionDeduction}, actions(env.history(t, draft.ID)))
}

// blockingAudit parks the first finalize inside its transaction.
type blockingAudit struct {
	audit.Logger
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingAudit) Log(ctx context.Context, e audit.Entry) error {
	if e.Action == audit.ActionFinalize {
		b.once.Do(func() {
			close(b.entered)
			<-b.release
		})
	}
	return b.Logger.Log(ctx, e)
}

func TestSalaryService_ConcurrentFinalizeConflicts(t *testing.T) {
	ctx := context.Background()
	blocker := &blockingAudit{entered: make(chan struct{}), release: make(chan struct{})}
	env := newTestEnv(t, withAudit(func(l audit.Logger) audit.Logger {
		blocker.Logger = l
		return blocker
	}))
	drv := env.addDriver("Ion", nil)
	draft := createDraft(t, env, drv.ID, "2026-03")
	_, err := env.svc.Calculate(ctx, salary.CalculateSalaryRequest{DriverID: drv.ID, Period: "2026-03", BaseAmount: ptr(d("3000")), DaysWorked: ptr(20)})
	require.NoError(t, err)

	type result struct {
		resp salary.SalaryResponse
		err  error
	}
	first := make(chan result, 1)
	go func() {
		resp, err := env.svc.Finalize(ctx, draft.ID)
		first <- result{resp, err}
	}()

	<-blocker.entered
	_, err = env.svc.Finalize(ctx, draft.ID)
	assert.ErrorIs(t, err, salary.ErrConflict)

	close(blocker.release)
	res := <-first
	require.NoError(t, res.err)
	assert.Equal(t, string(salary.StatusFinalized), res.resp.Status)

	history := env.history(t, draft.ID)
	finalizes := 0
	for _, e := range history {
		if e.Action == audit.ActionFinalize {
			finalizes++
		}
	}
	assert.Equal(t, 1, finalizes)
}

func TestSalaryService_AuditFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withAudit(func(l audit.Logger) audit.Logger {
		return failingAudit{Logger: l, action: audit.ActionFinalize}
	}))
	drv := env.addDriver("Ion", nil)
	draft := createDraft(t, env, drv.ID, "2026-03")
	_, err := env.svc.Calculate(ctx, salary.CalculateSalaryRequest{DriverID: drv.ID, Period: "2026-03", BaseAmount: ptr(d("3000")), DaysWorked: ptr(20)})
	require.NoError(t, err)

	_, err = env.svc.Finalize(ctx, draft.ID)
	assert.ErrorIs(t, err, salary.ErrUpstreamFailure)

	got, err := env.svc.Get(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, string(salary.StatusCalculated), got.Status)
	assert.Nil(t, got.FinalizedAt)
}

type failingAudit struct {
	audit.Logger
	action audit.Action
}

func (f failingAudit) Log(ctx context.Context, e audit.Entry) error {
	if e.Action == f.action {
		return errRegistryDown
	}
	return f.Logger.Log(ctx, e)
}

func TestSalaryService_Queries(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ion := env.addDriver("Ion", nil)
	ana := env.addDriver("Ana", nil)
	createDraft(t, env, ion.ID, "2026-02")
	createDraft(t, env, ion.ID, "2026-03")
	createDraft(t, env, ana.ID, "2026-03")
	env.store.SetDriverActive(ana.ID, false)

	all, err := env.svc.List(ctx, salary.SalaryFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	from, to := march, march
	inMarch, err := env.svc.List(ctx, salary.SalaryFilter{PeriodFrom: &from, PeriodTo: &to, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, inMarch, 1)
	assert.Equal(t, ion.ID, inMarch[0].Driver.ID)

	byDriver, err := env.svc.ListByDriver(ctx, ion.ID)
	require.NoError(t, err)
	assert.Len(t, byDriver, 2)
	assert.Equal(t, "2026-03", byDriver[0].Period)

	_, err = env.svc.ListByDriver(ctx, "missing")
	assert.ErrorIs(t, err, driver.ErrDriverNotFound)

	_, err = env.svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, salary.ErrSalaryNotFound)

	_, err = env.svc.History(ctx, "missing")
	assert.ErrorIs(t, err, salary.ErrSalaryNotFound)

	diurna, err := env.svc.CalculateDiurna(ctx, salary.CalculateDiurnaRequest{DriverID: ion.ID, StartDate: "2026-03-10", EndDate: "2026-03-01"})
	require.NoError(t, err)
	assert.True(t, diurna.Diurna.IsZero())
	assert.Equal(t, "RON", diurna.Currency)
}
