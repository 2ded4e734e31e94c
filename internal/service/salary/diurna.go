package salary

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fleetdesk/payroll-backend-go/internal/domain/driver"
	"github.com/fleetdesk/payroll-backend-go/internal/domain/salary"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/metrics"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/money"
	"github.com/shopspring/decimal"
)

var (
	halfDay = decimal.RequireFromString("0.5")
	fullDay = decimal.NewFromInt(1)
)

// DiurnaPolicy decides how much of a calendar day away from base counts.
type DiurnaPolicy struct {
	DefaultRate      decimal.Decimal
	HalfDayThreshold time.Duration
	FullDayThreshold time.Duration
	Location         *time.Location
}

// DefaultDiurnaPolicy is 50 per full day, half a day from 6h, a full day from 12h.
func DefaultDiurnaPolicy() DiurnaPolicy {
	return DiurnaPolicy{
		DefaultRate:      decimal.NewFromInt(50),
		HalfDayThreshold: 6 * time.Hour,
		FullDayThreshold: 12 * time.Hour,
		Location:         time.UTC,
	}
}

// credit rounds hours away down to 0, 0.5 or 1 day.
func (p DiurnaPolicy) credit(away time.Duration) decimal.Decimal {
	switch {
	case away >= p.FullDayThreshold:
		return fullDay
	case away >= p.HalfDayThreshold:
		return halfDay
	default:
		return decimal.Zero
	}
}

type DiurnaCalculator struct {
	drivers   driver.DriverRepository
	converter *money.Converter
	policy    DiurnaPolicy
	metrics   *metrics.Metrics
}

func NewDiurnaCalculator(drivers driver.DriverRepository, converter *money.Converter, policy DiurnaPolicy, m *metrics.Metrics) *DiurnaCalculator {
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	return &DiurnaCalculator{
		drivers:   drivers,
		converter: converter,
		policy:    policy,
		metrics:   m,
	}
}

type interval struct {
	start, end time.Time
}

// ComputeDiurna returns the per-diem earned from trips between the calendar
// days startDate and endDate, both inclusive. An inverted range is zero.
func (c *DiurnaCalculator) ComputeDiurna(ctx context.Context, driverID string, startDate, endDate time.Time) (decimal.Decimal, error) {
	began := time.Now()
	defer func() { c.metrics.DiurnaComputed(time.Since(began)) }()

	loc := c.policy.Location
	rangeStart := time.Date(startDate.Year(), startDate.Month(), startDate.Day(), 0, 0, 0, 0, loc)
	rangeEnd := time.Date(endDate.Year(), endDate.Month(), endDate.Day()+1, 0, 0, 0, 0, loc)
	if !rangeEnd.After(rangeStart) {
		return decimal.Zero, nil
	}

	trips, err := c.drivers.ListTrips(ctx, driverID, rangeStart, rangeEnd)
	if err != nil {
		return decimal.Zero, registryError("list trips", err)
	}
	if len(trips) == 0 {
		return decimal.Zero, nil
	}

	rates := make([]decimal.Decimal, len(trips))
	for i, trip := range trips {
		rates[i], err = c.tripRate(trip)
		if err != nil {
			return decimal.Zero, err
		}
	}

	total := decimal.Zero
	for dayStart := rangeStart; dayStart.Before(rangeEnd); dayStart = dayStart.AddDate(0, 0, 1) {
		dayEnd := dayStart.AddDate(0, 0, 1)

		var spans []interval
		rate := decimal.Zero
		for i, trip := range trips {
			span, ok := clip(trip, dayStart, dayEnd, rangeEnd)
			if !ok {
				continue
			}
			spans = append(spans, span)
			if rates[i].GreaterThan(rate) {
				rate = rates[i]
			}
		}
		if len(spans) == 0 {
			continue
		}

		days := c.policy.credit(coveredDuration(spans))
		total = total.Add(rate.Mul(days))
	}

	return money.Round(total), nil
}

// SumRecorded adds up the manually recorded diurna entries of a driver in
// [from, to), converted to the base currency.
func (c *DiurnaCalculator) SumRecorded(ctx context.Context, driverID string, from, to time.Time) (decimal.Decimal, error) {
	entries, err := c.drivers.ListDiurnaEntries(ctx, driverID, from, to)
	if err != nil {
		return decimal.Zero, registryError("list diurna entries", err)
	}

	total := decimal.Zero
	for _, e := range entries {
		amount, err := c.converter.ToBase(e.Amount, e.Currency)
		if err != nil {
			return decimal.Zero, fmt.Errorf("diurna entry %s: %w", e.ID, err)
		}
		total = total.Add(money.Round(amount))
	}
	return total, nil
}

// ForSalary picks the diurna path matching the salary's payment type.
func (c *DiurnaCalculator) ForSalary(ctx context.Context, s salary.Salary) (decimal.Decimal, error) {
	if s.PaymentType.IsDiurna() {
		lastDay := s.PeriodEnd().AddDate(0, 0, -1)
		return c.ComputeDiurna(ctx, s.DriverID, s.Period, lastDay)
	}
	return c.SumRecorded(ctx, s.DriverID, s.Period, s.PeriodEnd())
}

func (c *DiurnaCalculator) tripRate(trip driver.Trip) (decimal.Decimal, error) {
	if trip.DailyRate == nil {
		return c.policy.DefaultRate, nil
	}
	rate, err := c.converter.ToBase(*trip.DailyRate, trip.Currency)
	if err != nil {
		return decimal.Zero, fmt.Errorf("trip %s: %w", trip.ID, err)
	}
	return rate, nil
}

// clip intersects a trip with one day. Open trips run until rangeEnd.
func clip(trip driver.Trip, dayStart, dayEnd, rangeEnd time.Time) (interval, bool) {
	end := rangeEnd
	if trip.ReturnedAt != nil {
		end = *trip.ReturnedAt
	}
	start := trip.DepartedAt
	if start.Before(dayStart) {
		start = dayStart
	}
	if end.After(dayEnd) {
		end = dayEnd
	}
	if !end.After(start) {
		return interval{}, false
	}
	return interval{start: start, end: end}, true
}

// coveredDuration is the length of the union of spans.
func coveredDuration(spans []interval) time.Duration {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start.Before(spans[j].start) })

	var total time.Duration
	cur := spans[0]
	for _, s := range spans[1:] {
		if s.start.After(cur.end) {
			total += cur.end.Sub(cur.start)
			cur = s
			continue
		}
		if s.end.After(cur.end) {
			cur.end = s.end
		}
	}
	return total + cur.end.Sub(cur.start)
}

// registryError keeps not-found errors intact and marks anything else as an
// upstream failure.
func registryError(op string, err error) error {
	if errors.Is(err, driver.ErrDriverNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, salary.ErrUpstreamFailure, err)
}
