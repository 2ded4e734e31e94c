package salary

import (
	"fmt"

	"github.com/fleetdesk/payroll-backend-go/internal/pkg/money"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// Breakdown is the audited result of one aggregation.
type Breakdown struct {
	ProratedBase decimal.Decimal
	BonusSum     decimal.Decimal
	DeductionSum decimal.Decimal
	DiurnaTotal  decimal.Decimal
	Total        decimal.Decimal
}

// CalculateTotal recomputes the grand total of a Draft or Calculated salary
// and stores it on the record. Status is left to the caller. The total may be
// negative.
func CalculateTotal(s *Salary, conv *money.Converter) (Breakdown, error) {
	if err := s.EnsureMutable(); err != nil {
		return Breakdown{}, err
	}

	daysInPeriod := s.DaysInPeriod()
	if s.DaysWorked < 0 || s.DaysWorked > daysInPeriod {
		return Breakdown{}, validator.Single("zileLucrate", fmt.Sprintf("must be between 0 and %d", daysInPeriod))
	}

	// 1. proratedBase = base x daysWorked / daysInPeriod
	proratedBase := decimal.Zero
	if s.DaysWorked > 0 {
		proratedBase = money.Round(
			s.BaseAmount.Mul(decimal.NewFromInt(int64(s.DaysWorked))).
				Div(decimal.NewFromInt(int64(daysInPeriod))),
		)
	}

	// 2. bonuses
	bonusSum, err := sumAdjustments(s.Bonuses, conv, "bonusuri")
	if err != nil {
		return Breakdown{}, err
	}

	// 3. deductions
	deductionSum, err := sumAdjustments(s.Deductions, conv, "deduceri")
	if err != nil {
		return Breakdown{}, err
	}

	// 4. total
	diurna := money.Round(s.DiurnaTotal)
	total := proratedBase.Add(bonusSum).Sub(deductionSum).Add(diurna)

	s.DiurnaTotal = diurna
	s.Total = total
	s.Currency = conv.Base()

	return Breakdown{
		ProratedBase: proratedBase,
		BonusSum:     bonusSum,
		DeductionSum: deductionSum,
		DiurnaTotal:  diurna,
		Total:        total,
	}, nil
}

func sumAdjustments(items []Adjustment, conv *money.Converter, field string) (decimal.Decimal, error) {
	sum := decimal.Zero
	for i, item := range items {
		amount, err := conv.ToBase(item.Amount, item.Currency)
		if err != nil {
			return decimal.Zero, validator.Single(fmt.Sprintf("%s[%d].moneda", field, i), err.Error())
		}
		sum = sum.Add(money.Round(amount))
	}
	return sum, nil
}
