package salary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fleetdesk/payroll-backend-go/internal/domain/audit"
	"github.com/fleetdesk/payroll-backend-go/internal/domain/driver"
	"github.com/fleetdesk/payroll-backend-go/internal/domain/salary"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/jwt"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/lock"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/metrics"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/money"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	// RecordLockTTL bounds how long one mutation may hold a salary.
	RecordLockTTL time.Duration
	// Concurrency caps drivers processed in parallel by the batch.
	Concurrency   int
	DriverTimeout time.Duration
	BatchLockTTL  time.Duration
	Now           func() time.Time
}

func (o Options) withDefaults() Options {
	if o.RecordLockTTL <= 0 {
		o.RecordLockTTL = 30 * time.Second
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.DriverTimeout <= 0 {
		o.DriverTimeout = 10 * time.Second
	}
	if o.BatchLockTTL <= 0 {
		o.BatchLockTTL = 15 * time.Minute
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type SalaryServiceImpl struct {
	tx         salary.Transactor
	salaryRepo salary.SalaryRepository
	driverRepo driver.DriverRepository
	auditLog   audit.Logger
	diurna     *DiurnaCalculator
	converter  *money.Converter
	locker     lock.Locker
	metrics    *metrics.Metrics
	opts       Options
}

func NewSalaryService(
	tx salary.Transactor,
	salaryRepo salary.SalaryRepository,
	driverRepo driver.DriverRepository,
	auditLog audit.Logger,
	diurna *DiurnaCalculator,
	converter *money.Converter,
	locker lock.Locker,
	m *metrics.Metrics,
	opts Options,
) salary.SalaryService {
	return &SalaryServiceImpl{
		tx:         tx,
		salaryRepo: salaryRepo,
		driverRepo: driverRepo,
		auditLog:   auditLog,
		diurna:     diurna,
		converter:  converter,
		locker:     locker,
		metrics:    m,
		opts:       opts.withDefaults(),
	}
}

// ========== QUERIES ==========

func (s *SalaryServiceImpl) List(ctx context.Context, filter salary.SalaryFilter) ([]salary.SalaryResponse, error) {
	salaries, err := s.salaryRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list salaries: %w", err)
	}

	responses := make([]salary.SalaryResponse, 0, len(salaries))
	for _, sal := range salaries {
		responses = append(responses, toResponse(sal, nil))
	}
	return responses, nil
}

func (s *SalaryServiceImpl) ListByDriver(ctx context.Context, driverID string) ([]salary.SalaryResponse, error) {
	if _, err := s.driverRepo.GetByID(ctx, driverID); err != nil {
		return nil, registryError("get driver", err)
	}
	return s.List(ctx, salary.SalaryFilter{DriverID: &driverID})
}

func (s *SalaryServiceImpl) Get(ctx context.Context, id string) (salary.SalaryResponse, error) {
	sal, err := s.salaryRepo.GetByID(ctx, id)
	if err != nil {
		return salary.SalaryResponse{}, err
	}
	return toResponse(sal, nil), nil
}

func (s *SalaryServiceImpl) History(ctx context.Context, id string) ([]audit.Entry, error) {
	if _, err := s.salaryRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.auditLog.ListByEntity(ctx, salary.EntityType, id)
	if err != nil {
		return nil, fmt.Errorf("audit history: %w: %w", salary.ErrUpstreamFailure, err)
	}
	return entries, nil
}

func (s *SalaryServiceImpl) Summary(ctx context.Context, period time.Time) (salary.SummaryResponse, error) {
	period = validator.FirstOfMonth(period)
	sum, err := s.salaryRepo.GetSummary(ctx, period)
	if err != nil {
		return salary.SummaryResponse{}, fmt.Errorf("failed to summarize salaries: %w", err)
	}
	return salary.SummaryResponse{
		Period:      period.Format(monthLayout),
		TotalSalary: sum.TotalSalary,
		TotalDiurna: sum.TotalDiurna,
		Count:       sum.Count,
	}, nil
}

func (s *SalaryServiceImpl) CalculateDiurna(ctx context.Context, req salary.CalculateDiurnaRequest) (salary.DiurnaResponse, error) {
	if err := req.Validate(); err != nil {
		return salary.DiurnaResponse{}, err
	}
	start, _ := validator.ParseDay(req.StartDate)
	end, _ := validator.ParseDay(req.EndDate)

	if _, err := s.driverRepo.GetByID(ctx, req.DriverID); err != nil {
		return salary.DiurnaResponse{}, registryError("get driver", err)
	}

	amount, err := s.diurna.ComputeDiurna(ctx, req.DriverID, start, end)
	if err != nil {
		return salary.DiurnaResponse{}, err
	}

	return salary.DiurnaResponse{
		DriverID:  req.DriverID,
		StartDate: start.Format(dateLayout),
		EndDate:   end.Format(dateLayout),
		Diurna:    amount,
		Currency:  s.converter.Base(),
	}, nil
}

// ========== MUTATIONS ==========

func (s *SalaryServiceImpl) Create(ctx context.Context, req salary.CreateSalaryRequest) (salary.SalaryResponse, error) {
	if err := req.Validate(); err != nil {
		return salary.SalaryResponse{}, err
	}
	period, _ := validator.ParseMonth(req.Period)

	drv, err := s.driverRepo.GetByID(ctx, req.DriverID)
	if err != nil {
		return salary.SalaryResponse{}, registryError("get driver", err)
	}

	if _, err := s.salaryRepo.GetByDriverPeriod(ctx, drv.ID, period); err == nil {
		return salary.SalaryResponse{}, fmt.Errorf("%w: %s", salary.ErrSalaryAlreadyExists, period.Format(monthLayout))
	} else if !errors.Is(err, salary.ErrSalaryNotFound) {
		return salary.SalaryResponse{}, err
	}

	paymentType := salary.PaymentTypeSalary
	if req.PaymentType != nil {
		paymentType = salary.PaymentType(strings.ToUpper(strings.TrimSpace(*req.PaymentType)))
	}

	now := s.opts.Now()
	rec := salary.Salary{
		DriverID:    drv.ID,
		Period:      period,
		BaseAmount:  req.BaseAmount,
		DaysWorked:  *req.DaysWorked,
		Bonuses:     s.toAdjustments(req.Bonuses),
		Deductions:  s.toAdjustments(req.Deductions),
		Currency:    s.converter.Base(),
		Status:      salary.StatusDraft,
		PaymentType: paymentType,
		Notes:       req.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	rec.DiurnaTotal, err = s.diurna.ForSalary(ctx, rec)
	if err != nil {
		return salary.SalaryResponse{}, err
	}
	breakdown, err := salary.CalculateTotal(&rec, s.converter)
	if err != nil {
		return salary.SalaryResponse{}, err
	}

	var created salary.Salary
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		created, err = s.salaryRepo.Create(ctx, rec)
		if err != nil {
			return err
		}
		return s.log(ctx, created.ID, audit.ActionCreate, creationChanges(created), "Salariu creat")
	})
	if err != nil {
		return salary.SalaryResponse{}, err
	}

	created.DriverName = &drv.Name
	created.DriverActive = &drv.Active
	s.metrics.Mutation(string(audit.ActionCreate))
	slog.Info("Salary created", "salary_id", created.ID, "driver_id", created.DriverID, "period", period.Format(monthLayout))
	return toResponse(created, &breakdown), nil
}

// Calculate recomputes the salary of (driver, period) from the request and
// advances it to Calculated.
func (s *SalaryServiceImpl) Calculate(ctx context.Context, req salary.CalculateSalaryRequest) (salary.SalaryResponse, error) {
	if err := req.Validate(); err != nil {
		return salary.SalaryResponse{}, err
	}
	period, _ := validator.ParseMonth(req.Period)

	current, err := s.salaryRepo.GetByDriverPeriod(ctx, req.DriverID, period)
	if err != nil {
		return salary.SalaryResponse{}, err
	}

	var breakdown salary.Breakdown
	updated, err := s.mutate(ctx, current.ID, func(ctx context.Context, rec *salary.Salary) (*pendingEntry, error) {
		before := rec.Clone()
		if _, err := salary.Next(rec.Status, salary.EventCalculate); err != nil {
			return nil, err
		}

		rec.BaseAmount = *req.BaseAmount
		rec.DaysWorked = *req.DaysWorked
		if req.Bonuses != nil {
			rec.Bonuses = s.toAdjustments(req.Bonuses)
		}
		if req.Deductions != nil {
			rec.Deductions = s.toAdjustments(req.Deductions)
		}

		breakdown, err = s.recalculate(ctx, rec)
		if err != nil {
			return nil, err
		}
		if err := rec.Apply(salary.EventCalculate, s.opts.Now()); err != nil {
			return nil, err
		}

		return &pendingEntry{
			action:  audit.ActionCalculate,
			changes: diffSalary(before, *rec),
			message: "Salariu calculat",
		}, nil
	})
	if err != nil {
		return salary.SalaryResponse{}, err
	}
	return toResponse(updated, &breakdown), nil
}

func (s *SalaryServiceImpl) Update(ctx context.Context, req salary.UpdateSalaryRequest) (salary.SalaryResponse, error) {
	if err := req.Validate(); err != nil {
		return salary.SalaryResponse{}, err
	}

	var breakdown *salary.Breakdown
	updated, err := s.mutate(ctx, req.ID, func(ctx context.Context, rec *salary.Salary) (*pendingEntry, error) {
		if err := rec.EnsureMutable(); err != nil {
			return nil, err
		}
		if err := checkFixedFields(req, *rec); err != nil {
			return nil, err
		}

		before := rec.Clone()
		periodChanged := false
		if req.Period != nil {
			period, _ := validator.ParseMonth(*req.Period)
			if !period.Equal(rec.Period) {
				if other, err := s.salaryRepo.GetByDriverPeriod(ctx, rec.DriverID, period); err == nil && other.ID != rec.ID {
					return nil, fmt.Errorf("%w: %s", salary.ErrSalaryAlreadyExists, period.Format(monthLayout))
				} else if err != nil && !errors.Is(err, salary.ErrSalaryNotFound) {
					return nil, err
				}
				rec.Period = period
				periodChanged = true
			}
		}
		if req.BaseAmount != nil {
			rec.BaseAmount = *req.BaseAmount
		}
		if req.DaysWorked != nil {
			rec.DaysWorked = *req.DaysWorked
		}
		if req.Notes != nil {
			rec.Notes = req.Notes
		}

		var b salary.Breakdown
		var err error
		if periodChanged {
			b, err = s.recalculate(ctx, rec)
		} else {
			b, err = salary.CalculateTotal(rec, s.converter)
		}
		if err != nil {
			return nil, err
		}
		breakdown = &b

		changes := diffSalary(before, *rec)
		if len(changes) == 0 {
			return nil, nil
		}
		return &pendingEntry{
			action:  audit.ActionUpdate,
			changes: changes,
			message: "Salariu modificat",
		}, nil
	})
	if err != nil {
		return salary.SalaryResponse{}, err
	}
	return toResponse(updated, breakdown), nil
}

func (s *SalaryServiceImpl) Finalize(ctx context.Context, id string) (salary.SalaryResponse, error) {
	return s.transition(ctx, id, salary.EventFinalize, audit.ActionFinalize, "Salariu finalizat")
}

func (s *SalaryServiceImpl) MarkPaid(ctx context.Context, id string) (salary.SalaryResponse, error) {
	return s.transition(ctx, id, salary.EventMarkPaid, audit.ActionStatusUpdate, "Salariu marcat ca platit")
}

func (s *SalaryServiceImpl) transition(ctx context.Context, id string, event salary.Event, action audit.Action, message string) (salary.SalaryResponse, error) {
	updated, err := s.mutate(ctx, id, func(ctx context.Context, rec *salary.Salary) (*pendingEntry, error) {
		before := rec.Clone()
		if err := rec.Apply(event, s.opts.Now()); err != nil {
			return nil, err
		}
		return &pendingEntry{
			action:  action,
			changes: diffSalary(before, *rec),
			message: message,
		}, nil
	})
	if err != nil {
		return salary.SalaryResponse{}, err
	}
	return toResponse(updated, nil), nil
}

func (s *SalaryServiceImpl) AddBonus(ctx context.Context, id string, req salary.AdjustmentRequest) (salary.SalaryResponse, error) {
	return s.addAdjustment(ctx, id, req, audit.ActionBonus)
}

func (s *SalaryServiceImpl) AddDeduction(ctx context.Context, id string, req salary.AdjustmentRequest) (salary.SalaryResponse, error) {
	return s.addAdjustment(ctx, id, req, audit.ActionDeduction)
}

func (s *SalaryServiceImpl) addAdjustment(ctx context.Context, id string, req salary.AdjustmentRequest, action audit.Action) (salary.SalaryResponse, error) {
	if err := req.Validate(); err != nil {
		return salary.SalaryResponse{}, err
	}
	adj := req.ToAdjustment(s.converter.Base())
	if !s.converter.Supports(adj.Currency) {
		return salary.SalaryResponse{}, validator.Single("moneda", "no exchange rate configured for "+adj.Currency)
	}

	var breakdown salary.Breakdown
	updated, err := s.mutate(ctx, id, func(ctx context.Context, rec *salary.Salary) (*pendingEntry, error) {
		if err := rec.EnsureMutable(); err != nil {
			return nil, err
		}

		field, message := "bonusuri", "Bonus adaugat"
		oldTotal := rec.Total
		if action == audit.ActionDeduction {
			field, message = "deduceri", "Deducere adaugata"
			rec.Deductions = append(rec.Deductions, adj)
		} else {
			rec.Bonuses = append(rec.Bonuses, adj)
		}

		var err error
		breakdown, err = salary.CalculateTotal(rec, s.converter)
		if err != nil {
			return nil, err
		}

		changes := []audit.FieldChange{{Field: field, OldValue: nil, NewValue: adj}}
		if !oldTotal.Equal(rec.Total) {
			changes = append(changes, audit.FieldChange{Field: "total", OldValue: amount(oldTotal), NewValue: amount(rec.Total)})
		}
		return &pendingEntry{action: action, changes: changes, message: message}, nil
	})
	if err != nil {
		return salary.SalaryResponse{}, err
	}
	return toResponse(updated, &breakdown), nil
}

// ========== HELPERS ==========

// pendingEntry is the audit record a mutation wants written with it.
type pendingEntry struct {
	action  audit.Action
	changes []audit.FieldChange
	message string
}

// mutate loads the salary, applies fn and persists the result together with
// its audit entry. Only one mutation per salary may be in flight; a second
// one fails with ErrConflict. fn returning a nil entry leaves the record as
// stored.
func (s *SalaryServiceImpl) mutate(ctx context.Context, id string, fn func(ctx context.Context, rec *salary.Salary) (*pendingEntry, error)) (salary.Salary, error) {
	release, err := s.locker.Acquire(ctx, "salary:"+id, s.opts.RecordLockTTL)
	if errors.Is(err, lock.ErrLocked) {
		s.metrics.Conflict()
		return salary.Salary{}, fmt.Errorf("%w: salary %s", salary.ErrConflict, id)
	}
	if err != nil {
		return salary.Salary{}, fmt.Errorf("%w: %w", salary.ErrUpstreamFailure, err)
	}
	defer release()

	var (
		result salary.Salary
		entry  *pendingEntry
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		rec, err := s.salaryRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		entry, err = fn(ctx, &rec)
		if err != nil {
			return err
		}
		if entry == nil {
			result = rec
			return nil
		}

		rec.UpdatedAt = s.opts.Now()
		result, err = s.salaryRepo.Update(ctx, rec)
		if err != nil {
			return err
		}
		return s.log(ctx, id, entry.action, entry.changes, entry.message)
	})
	if err != nil {
		if errors.Is(err, salary.ErrConflict) {
			s.metrics.Conflict()
		}
		return salary.Salary{}, err
	}

	if entry != nil {
		s.metrics.Mutation(string(entry.action))
		slog.Info("Salary updated", "salary_id", id, "action", entry.action, "status", result.Status, "version", result.Version)
	}
	return result, nil
}

// recalculate refreshes diurna from the registry and recomputes the total.
func (s *SalaryServiceImpl) recalculate(ctx context.Context, rec *salary.Salary) (salary.Breakdown, error) {
	diurna, err := s.diurna.ForSalary(ctx, *rec)
	if err != nil {
		return salary.Breakdown{}, err
	}
	rec.DiurnaTotal = diurna
	return salary.CalculateTotal(rec, s.converter)
}

func (s *SalaryServiceImpl) log(ctx context.Context, id string, action audit.Action, changes []audit.FieldChange, message string) error {
	err := s.auditLog.Log(ctx, audit.Entry{
		EntityType: salary.EntityType,
		EntityID:   id,
		Action:     action,
		Changes:    changes,
		ActorID:    jwt.ActorFromContext(ctx),
		Message:    message,
		CreatedAt:  s.opts.Now(),
	})
	if err != nil {
		return fmt.Errorf("audit log: %w: %w", salary.ErrUpstreamFailure, err)
	}
	return nil
}

func (s *SalaryServiceImpl) toAdjustments(items []salary.AdjustmentRequest) []salary.Adjustment {
	out := make([]salary.Adjustment, 0, len(items))
	for _, item := range items {
		out = append(out, item.ToAdjustment(s.converter.Base()))
	}
	return out
}

// checkFixedFields rejects attempts to change what PATCH may not touch.
func checkFixedFields(req salary.UpdateSalaryRequest, rec salary.Salary) error {
	var errs validator.ValidationErrors
	if req.DriverID != nil && *req.DriverID != rec.DriverID {
		errs = append(errs, validator.ValidationError{Field: "sofer", Message: "cannot be changed"})
	}
	if req.PaymentType != nil && !strings.EqualFold(*req.PaymentType, string(rec.PaymentType)) {
		errs = append(errs, validator.ValidationError{Field: "tipPlata", Message: "cannot be changed"})
	}
	if req.Status != nil {
		if st, ok := salary.ParseStatus(*req.Status); !ok || st != rec.Status {
			errs = append(errs, validator.ValidationError{Field: "status", Message: "use the finalize and plateste actions"})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(money.Places)
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.UTC().Format(time.RFC3339)
	return &v
}

// diffSalary lists the exposed fields that differ between two versions.
func diffSalary(before, after salary.Salary) []audit.FieldChange {
	var changes []audit.FieldChange
	add := func(field string, oldValue, newValue any) {
		changes = append(changes, audit.FieldChange{Field: field, OldValue: oldValue, NewValue: newValue})
	}

	if !before.Period.Equal(after.Period) {
		add("luna", before.Period.Format(monthLayout), after.Period.Format(monthLayout))
	}
	if !before.BaseAmount.Equal(after.BaseAmount) {
		add("salariuBaza", amount(before.BaseAmount), amount(after.BaseAmount))
	}
	if before.DaysWorked != after.DaysWorked {
		add("zileLucrate", before.DaysWorked, after.DaysWorked)
	}
	if !adjustmentsEqual(before.Bonuses, after.Bonuses) {
		add("bonusuri", before.Bonuses, after.Bonuses)
	}
	if !adjustmentsEqual(before.Deductions, after.Deductions) {
		add("deduceri", before.Deductions, after.Deductions)
	}
	if !before.DiurnaTotal.Equal(after.DiurnaTotal) {
		add("totalDiurna", amount(before.DiurnaTotal), amount(after.DiurnaTotal))
	}
	if !before.Total.Equal(after.Total) {
		add("total", amount(before.Total), amount(after.Total))
	}
	if derefString(before.Notes) != derefString(after.Notes) {
		add("observatii", before.Notes, after.Notes)
	}
	if before.Status != after.Status {
		add("status", string(before.Status), string(after.Status))
	}
	if before.FinalizedAt == nil && after.FinalizedAt != nil {
		add("dataFinalizare", nil, formatTime(after.FinalizedAt))
	}
	if before.PaidAt == nil && after.PaidAt != nil {
		add("dataPlata", nil, formatTime(after.PaidAt))
	}
	return changes
}

func creationChanges(s salary.Salary) []audit.FieldChange {
	changes := []audit.FieldChange{
		{Field: "sofer", NewValue: s.DriverID},
		{Field: "luna", NewValue: s.Period.Format(monthLayout)},
		{Field: "salariuBaza", NewValue: amount(s.BaseAmount)},
		{Field: "zileLucrate", NewValue: s.DaysWorked},
		{Field: "tipPlata", NewValue: string(s.PaymentType)},
		{Field: "totalDiurna", NewValue: amount(s.DiurnaTotal)},
		{Field: "total", NewValue: amount(s.Total)},
		{Field: "status", NewValue: string(s.Status)},
	}
	if len(s.Bonuses) > 0 {
		changes = append(changes, audit.FieldChange{Field: "bonusuri", NewValue: s.Bonuses})
	}
	if len(s.Deductions) > 0 {
		changes = append(changes, audit.FieldChange{Field: "deduceri", NewValue: s.Deductions})
	}
	if s.Notes != nil {
		changes = append(changes, audit.FieldChange{Field: "observatii", NewValue: *s.Notes})
	}
	return changes
}

func adjustmentsEqual(a, b []salary.Adjustment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type || !a[i].Amount.Equal(b[i].Amount) ||
			a[i].Currency != b[i].Currency || a[i].Description != b[i].Description {
			return false
		}
	}
	return true
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func toResponse(s salary.Salary, b *salary.Breakdown) salary.SalaryResponse {
	resp := salary.SalaryResponse{
		ID: s.ID,
		Driver: salary.DriverRef{
			ID:     s.DriverID,
			Name:   s.DriverName,
			Active: s.DriverActive,
		},
		Period:       s.Period.Format(monthLayout),
		BaseAmount:   s.BaseAmount,
		DaysWorked:   s.DaysWorked,
		DaysInPeriod: s.DaysInPeriod(),
		Bonuses:      s.Bonuses,
		Deductions:   s.Deductions,
		DiurnaTotal:  s.DiurnaTotal,
		Total:        s.Total,
		Currency:     s.Currency,
		Status:       string(s.Status),
		PaymentType:  string(s.PaymentType),
		Notes:        s.Notes,
		FinalizedAt:  formatTime(s.FinalizedAt),
		PaidAt:       formatTime(s.PaidAt),
		Version:      s.Version,
		CreatedAt:    s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    s.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if resp.Bonuses == nil {
		resp.Bonuses = []salary.Adjustment{}
	}
	if resp.Deductions == nil {
		resp.Deductions = []salary.Adjustment{}
	}
	if b != nil {
		resp.Breakdown = &salary.BreakdownResponse{
			ProratedBase: b.ProratedBase,
			BonusSum:     b.BonusSum,
			DeductionSum: b.DeductionSum,
			DiurnaTotal:  b.DiurnaTotal,
			Total:        b.Total,
		}
	}
	return resp
}
