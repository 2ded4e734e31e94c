package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fleetdesk/payroll-backend-go/internal/domain/salary"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueSalaryPeriod = "uk_salaries_driver_period"

type salaryRepository struct {
	db *database.DB
}

func NewSalaryRepository(db *database.DB) salary.SalaryRepository {
	return &salaryRepository{db: db}
}

const salarySelect = `
	SELECT s.id, s.driver_id, s.period, s.base_amount, s.days_worked,
		   s.bonuses, s.deductions, s.diurna_total, s.total, s.currency,
		   s.status, s.payment_type, s.notes, s.finalized_at, s.paid_at,
		   s.version, s.created_at, s.updated_at,
		   d.name, d.active
	FROM salaries s
	LEFT JOIN drivers d ON d.id = s.driver_id
`

func (r *salaryRepository) Create(ctx context.Context, s salary.Salary) (salary.Salary, error) {
	q := GetQuerier(ctx, r.db)

	bonusesJSON, deductionsJSON, err := marshalAdjustments(s)
	if err != nil {
		return salary.Salary{}, err
	}

	query := `
		INSERT INTO salaries (
			driver_id, period, base_amount, days_worked, bonuses, deductions,
			diurna_total, total, currency, status, payment_type, notes,
			finalized_at, paid_at, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1, $15, $16)
		RETURNING id
	`

	var id string
	err = q.QueryRow(ctx, query,
		s.DriverID, s.Period, s.BaseAmount, s.DaysWorked, bonusesJSON, deductionsJSON,
		s.DiurnaTotal, s.Total, s.Currency, s.Status, s.PaymentType, s.Notes,
		s.FinalizedAt, s.PaidAt, s.CreatedAt, s.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err, uniqueSalaryPeriod) {
			return salary.Salary{}, salary.ErrSalaryAlreadyExists
		}
		return salary.Salary{}, fmt.Errorf("failed to create salary: %w", err)
	}

	return r.GetByID(ctx, id)
}

func (r *salaryRepository) GetByID(ctx context.Context, id string) (salary.Salary, error) {
	q := GetQuerier(ctx, r.db)

	s, err := scanSalary(q.QueryRow(ctx, salarySelect+` WHERE s.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return salary.Salary{}, salary.ErrSalaryNotFound
		}
		return salary.Salary{}, fmt.Errorf("failed to get salary: %w", err)
	}
	return s, nil
}

func (r *salaryRepository) GetByDriverPeriod(ctx context.Context, driverID string, period time.Time) (salary.Salary, error) {
	q := GetQuerier(ctx, r.db)

	s, err := scanSalary(q.QueryRow(ctx, salarySelect+` WHERE s.driver_id = $1 AND s.period = $2`, driverID, period))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return salary.Salary{}, salary.ErrSalaryNotFound
		}
		return salary.Salary{}, fmt.Errorf("failed to get salary by driver and period: %w", err)
	}
	return s, nil
}

func (r *salaryRepository) List(ctx context.Context, filter salary.SalaryFilter) ([]salary.Salary, error) {
	q := GetQuerier(ctx, r.db)

	query := salarySelect + ` WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND s.status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.DriverID != nil {
		query += fmt.Sprintf(" AND s.driver_id = $%d", argIdx)
		args = append(args, *filter.DriverID)
		argIdx++
	}
	if filter.PeriodFrom != nil {
		query += fmt.Sprintf(" AND s.period >= $%d", argIdx)
		args = append(args, *filter.PeriodFrom)
		argIdx++
	}
	if filter.PeriodTo != nil {
		query += fmt.Sprintf(" AND s.period <= $%d", argIdx)
		args = append(args, *filter.PeriodTo)
		argIdx++
	}
	if filter.ActiveOnly {
		query += " AND d.active = TRUE"
	}
	query += " ORDER BY s.period DESC, s.created_at DESC, s.id"

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list salaries: %w", err)
	}
	defer rows.Close()

	salaries := make([]salary.Salary, 0)
	for rows.Next() {
		s, err := scanSalary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan salary: %w", err)
		}
		salaries = append(salaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate salaries: %w", err)
	}
	return salaries, nil
}

func (r *salaryRepository) Update(ctx context.Context, s salary.Salary) (salary.Salary, error) {
	q := GetQuerier(ctx, r.db)

	bonusesJSON, deductionsJSON, err := marshalAdjustments(s)
	if err != nil {
		return salary.Salary{}, err
	}

	query := `
		UPDATE salaries SET
			period = $3, base_amount = $4, days_worked = $5,
			bonuses = $6, deductions = $7, diurna_total = $8, total = $9,
			currency = $10, status = $11, notes = $12,
			finalized_at = $13, paid_at = $14, updated_at = $15,
			version = version + 1
		WHERE id = $1 AND version = $2
	`

	tag, err := q.Exec(ctx, query,
		s.ID, s.Version,
		s.Period, s.BaseAmount, s.DaysWorked,
		bonusesJSON, deductionsJSON, s.DiurnaTotal, s.Total,
		s.Currency, s.Status, s.Notes,
		s.FinalizedAt, s.PaidAt, s.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, uniqueSalaryPeriod) {
			return salary.Salary{}, salary.ErrSalaryAlreadyExists
		}
		return salary.Salary{}, fmt.Errorf("failed to update salary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, s.ID); err != nil {
			return salary.Salary{}, err
		}
		return salary.Salary{}, salary.ErrConflict
	}

	return r.GetByID(ctx, s.ID)
}

func (r *salaryRepository) GetSummary(ctx context.Context, period time.Time) (salary.Summary, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT COALESCE(SUM(total), 0), COALESCE(SUM(diurna_total), 0), COUNT(*)
		FROM salaries
		WHERE period = $1 AND status IN ($2, $3)
	`

	sum := salary.Summary{Period: period}
	err := q.QueryRow(ctx, query, period, salary.StatusFinalized, salary.StatusPaid).
		Scan(&sum.TotalSalary, &sum.TotalDiurna, &sum.Count)
	if err != nil {
		return salary.Summary{}, fmt.Errorf("failed to summarize salaries: %w", err)
	}
	return sum, nil
}

func scanSalary(row pgx.Row) (salary.Salary, error) {
	var (
		s                         salary.Salary
		bonusesRaw, deductionsRaw []byte
	)
	err := row.Scan(
		&s.ID, &s.DriverID, &s.Period, &s.BaseAmount, &s.DaysWorked,
		&bonusesRaw, &deductionsRaw, &s.DiurnaTotal, &s.Total, &s.Currency,
		&s.Status, &s.PaymentType, &s.Notes, &s.FinalizedAt, &s.PaidAt,
		&s.Version, &s.CreatedAt, &s.UpdatedAt,
		&s.DriverName, &s.DriverActive,
	)
	if err != nil {
		return salary.Salary{}, err
	}

	if err := json.Unmarshal(bonusesRaw, &s.Bonuses); err != nil {
		return salary.Salary{}, fmt.Errorf("decode bonuses of salary %s: %w", s.ID, err)
	}
	if err := json.Unmarshal(deductionsRaw, &s.Deductions); err != nil {
		return salary.Salary{}, fmt.Errorf("decode deductions of salary %s: %w", s.ID, err)
	}
	s.Period = time.Date(s.Period.Year(), s.Period.Month(), 1, 0, 0, 0, 0, time.UTC)
	return s, nil
}

func marshalAdjustments(s salary.Salary) (bonuses, deductions []byte, err error) {
	if s.Bonuses == nil {
		s.Bonuses = []salary.Adjustment{}
	}
	if s.Deductions == nil {
		s.Deductions = []salary.Adjustment{}
	}
	if bonuses, err = json.Marshal(s.Bonuses); err != nil {
		return nil, nil, fmt.Errorf("encode bonuses: %w", err)
	}
	if deductions, err = json.Marshal(s.Deductions); err != nil {
		return nil, nil, fmt.Errorf("encode deductions: %w", err)
	}
	return bonuses, deductions, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}
