package salary

import (
	"context"
	"time"

	"github.com/fleetdesk/payroll-backend-go/internal/domain/audit"
)

type SalaryService interface {
	List(ctx context.Context, filter SalaryFilter) ([]SalaryResponse, error)
	ListByDriver(ctx context.Context, driverID string) ([]SalaryResponse, error)
	Get(ctx context.Context, id string) (SalaryResponse, error)
	History(ctx context.Context, id string) ([]audit.Entry, error)
	Summary(ctx context.Context, period time.Time) (SummaryResponse, error)

	Create(ctx context.Context, req CreateSalaryRequest) (SalaryResponse, error)
	Calculate(ctx context.Context, req CalculateSalaryRequest) (SalaryResponse, error)
	CalculateDiurna(ctx context.Context, req CalculateDiurnaRequest) (DiurnaResponse, error)
	Update(ctx context.Context, req UpdateSalaryRequest) (SalaryResponse, error)
	Finalize(ctx context.Context, id string) (SalaryResponse, error)
	MarkPaid(ctx context.Context, id string) (SalaryResponse, error)
	AddBonus(ctx context.Context, id string, req AdjustmentRequest) (SalaryResponse, error)
	AddDeduction(ctx context.Context, id string, req AdjustmentRequest) (SalaryResponse, error)

	// ProcessAutomaticPayments creates and calculates the salaries of every
	// active driver for period. It never finalizes or pays.
	ProcessAutomaticPayments(ctx context.Context, period time.Time) (BatchReport, error)
}
