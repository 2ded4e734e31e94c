package salary

import (
	"strings"
	"time"

	"github.com/fleetdesk/payroll-backend-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

const EntityType = "Salary"

// Status enum
type Status string

const (
	StatusDraft      Status = "draft"
	StatusCalculated Status = "calculat"
	StatusFinalized  Status = "finalizat"
	StatusPaid       Status = "platit"
)

// ParseStatus accepts the stored value or its English name, case-insensitive.
func ParseStatus(value string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "draft":
		return StatusDraft, true
	case "calculat", "calculated":
		return StatusCalculated, true
	case "finalizat", "finalized":
		return StatusFinalized, true
	case "platit", "paid":
		return StatusPaid, true
	}
	return "", false
}

// Mutable reports whether monetary fields may still change.
func (s Status) Mutable() bool {
	return s == StatusDraft || s == StatusCalculated
}

// PaymentType is fixed at creation and selects the diurna computation path.
type PaymentType string

const (
	PaymentTypeSalary PaymentType = "SALARIU"
	PaymentTypeDiurna PaymentType = "DIURNA"
)

// IsDiurna reports whether diurna is computed from the driver's trips.
func (p PaymentType) IsDiurna() bool {
	return strings.HasPrefix(string(p), string(PaymentTypeDiurna))
}

// Adjustment is a bonus or a deduction. Amounts are always positive;
// deductions are subtracted by the aggregator.
type Adjustment struct {
	Type        string          `json:"tip"`
	Amount      decimal.Decimal `json:"suma"`
	Description string          `json:"descriere,omitempty"`
	Currency    string          `json:"moneda"`
}

// Salary - one driver's pay computation for one calendar month
type Salary struct {
	ID          string
	DriverID    string
	Period      time.Time // first day of the month, UTC
	BaseAmount  decimal.Decimal
	DaysWorked  int
	Bonuses     []Adjustment
	Deductions  []Adjustment
	DiurnaTotal decimal.Decimal
	Total       decimal.Decimal
	Currency    string
	Status      Status
	PaymentType PaymentType
	Notes       *string
	FinalizedAt *time.Time
	PaidAt      *time.Time
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Joined fields
	DriverName   *string
	DriverActive *bool
}

// DaysInPeriod returns the number of calendar days in the salary's month.
func (s Salary) DaysInPeriod() int {
	return validator.DaysInMonth(s.Period)
}

// PeriodEnd returns the exclusive end of the salary's month.
func (s Salary) PeriodEnd() time.Time {
	return s.Period.AddDate(0, 1, 0)
}

// Clone returns a copy that shares no slices or pointers with s.
func (s Salary) Clone() Salary {
	c := s
	c.Bonuses = append([]Adjustment(nil), s.Bonuses...)
	c.Deductions = append([]Adjustment(nil), s.Deductions...)
	c.Notes = clonePtr(s.Notes)
	c.FinalizedAt = clonePtr(s.FinalizedAt)
	c.PaidAt = clonePtr(s.PaidAt)
	c.DriverName = clonePtr(s.DriverName)
	c.DriverActive = clonePtr(s.DriverActive)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Summary aggregates finalized and paid salaries of one month.
type Summary struct {
	Period      time.Time
	TotalSalary decimal.Decimal
	TotalDiurna decimal.Decimal
	Count       int
}
