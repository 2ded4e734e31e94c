package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fleetdesk/payroll-backend-go/internal/domain/salary"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/validator"
)

type SalaryJobs struct {
	salaryService salary.SalaryService
	schedule      string
	location      *time.Location
	now           func() time.Time
}

func NewSalaryJobs(salaryService salary.SalaryService, schedule string, location *time.Location, now func() time.Time) *SalaryJobs {
	if now == nil {
		now = time.Now
	}
	if location == nil {
		location = time.UTC
	}
	return &SalaryJobs{
		salaryService: salaryService,
		schedule:      schedule,
		location:      location,
		now:           now,
	}
}

func (j *SalaryJobs) RegisterJobs(scheduler *Scheduler) error {
	return scheduler.AddJob("process_automatic_salaries", j.schedule, j.ProcessCurrentPeriod)
}

// ProcessCurrentPeriod runs the automatic processor for the month the
// clock currently falls in, in the payroll time zone.
func (j *SalaryJobs) ProcessCurrentPeriod(ctx context.Context) error {
	period := validator.FirstOfMonth(j.now().In(j.location))

	slog.Info("Cron: Starting automatic salary processing", "period", period.Format("2006-01"))

	report, err := j.salaryService.ProcessAutomaticPayments(ctx, period)
	if errors.Is(err, salary.ErrBatchInProgress) {
		slog.Info("Cron: Automatic salary processing already running elsewhere", "period", period.Format("2006-01"))
		return nil
	}
	if err != nil {
		return fmt.Errorf("process automatic salaries for %s: %w", period.Format("2006-01"), err)
	}

	slog.Info("Cron: Automatic salary processing completed",
		"period", report.Period,
		"drivers", report.Drivers,
		"created", report.Created,
		"calculated", report.Calculated,
		"skipped", report.Skipped,
		"failed", len(report.Failures),
	)
	return nil
}
