package salary

import (
	"fmt"
	"strings"

	"github.com/fleetdesk/payroll-backend-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========== REQUEST DTOs ==========

type AdjustmentRequest struct {
	Type        string          `json:"tip"`
	Amount      decimal.Decimal `json:"suma"`
	Description string          `json:"descriere"`
	Currency    string          `json:"moneda"`
}

func (r *AdjustmentRequest) validate(field string) validator.ValidationErrors {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.Type) {
		errs = append(errs, validator.ValidationError{Field: field + ".tip", Message: "is required"})
	}
	if !r.Amount.IsPositive() {
		errs = append(errs, validator.ValidationError{Field: field + ".suma", Message: "must be positive"})
	}
	if r.Currency != "" && !validator.IsValidCurrency(strings.ToUpper(r.Currency)) {
		errs = append(errs, validator.ValidationError{Field: field + ".moneda", Message: "must be a 3-letter currency code"})
	}
	return errs
}

func (r *AdjustmentRequest) Validate() error {
	if errs := r.validate("adjustment"); len(errs) > 0 {
		return errs
	}
	return nil
}

// ToAdjustment applies the base currency when none was given.
func (r AdjustmentRequest) ToAdjustment(baseCurrency string) Adjustment {
	currency := strings.ToUpper(strings.TrimSpace(r.Currency))
	if currency == "" {
		currency = baseCurrency
	}
	return Adjustment{
		Type:        strings.TrimSpace(r.Type),
		Amount:      r.Amount,
		Description: r.Description,
		Currency:    currency,
	}
}

func validateAdjustments(items []AdjustmentRequest, field string) validator.ValidationErrors {
	var errs validator.ValidationErrors
	for i := range items {
		errs = append(errs, items[i].validate(fmt.Sprintf("%s[%d]", field, i))...)
	}
	return errs
}

type CreateSalaryRequest struct {
	DriverID    string              `json:"sofer"`
	Period      string              `json:"luna"`
	BaseAmount  decimal.Decimal     `json:"salariuBaza"`
	DaysWorked  *int                `json:"zileLucrate"`
	Bonuses     []AdjustmentRequest `json:"bonusuri,omitempty"`
	Deductions  []AdjustmentRequest `json:"deduceri,omitempty"`
	Notes       *string             `json:"observatii,omitempty"`
	PaymentType *string             `json:"tipPlata,omitempty"`
}

func (r *CreateSalaryRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.DriverID) {
		errs = append(errs, validator.ValidationError{Field: "sofer", Message: "is required"})
	} else if !validator.IsValidUUID(r.DriverID) {
		errs = append(errs, validator.ValidationError{Field: "sofer", Message: "must be a valid UUID"})
	}
	period, err := validator.ParseMonth(r.Period)
	if err != nil {
		errs = append(errs, validator.ValidationError{Field: "luna", Message: "must be a valid month (YYYY-MM or YYYY-MM-DD)"})
	}
	if r.BaseAmount.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "salariuBaza", Message: "must be non-negative"})
	}
	if r.DaysWorked == nil {
		errs = append(errs, validator.ValidationError{Field: "zileLucrate", Message: "is required"})
	} else if err == nil && (*r.DaysWorked < 0 || *r.DaysWorked > validator.DaysInMonth(period)) {
		errs = append(errs, validator.ValidationError{Field: "zileLucrate", Message: fmt.Sprintf("must be between 0 and %d", validator.DaysInMonth(period))})
	}
	if r.PaymentType != nil && validator.IsEmpty(*r.PaymentType) {
		errs = append(errs, validator.ValidationError{Field: "tipPlata", Message: "must not be empty"})
	}
	errs = append(errs, validateAdjustments(r.Bonuses, "bonusuri")...)
	errs = append(errs, validateAdjustments(r.Deductions, "deduceri")...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type CalculateSalaryRequest struct {
	DriverID   string              `json:"soferId"`
	Period     string              `json:"luna"`
	BaseAmount *decimal.Decimal    `json:"salariuBaza"`
	DaysWorked *int                `json:"zileLucrate"`
	Bonuses    []AdjustmentRequest `json:"bonusuri,omitempty"`
	Deductions []AdjustmentRequest `json:"deduceri,omitempty"`
}

func (r *CalculateSalaryRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.DriverID) {
		errs = append(errs, validator.ValidationError{Field: "soferId", Message: "is required"})
	} else if !validator.IsValidUUID(r.DriverID) {
		errs = append(errs, validator.ValidationError{Field: "soferId", Message: "must be a valid UUID"})
	}
	period, err := validator.ParseMonth(r.Period)
	if err != nil {
		errs = append(errs, validator.ValidationError{Field: "luna", Message: "must be a valid month (YYYY-MM or YYYY-MM-DD)"})
	}
	if r.BaseAmount == nil {
		errs = append(errs, validator.ValidationError{Field: "salariuBaza", Message: "is required"})
	} else if r.BaseAmount.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "salariuBaza", Message: "must be non-negative"})
	}
	if r.DaysWorked == nil {
		errs = append(errs, validator.ValidationError{Field: "zileLucrate", Message: "is required"})
	} else if err == nil && (*r.DaysWorked < 0 || *r.DaysWorked > validator.DaysInMonth(period)) {
		errs = append(errs, validator.ValidationError{Field: "zileLucrate", Message: fmt.Sprintf("must be between 0 and %d", validator.DaysInMonth(period))})
	}
	errs = append(errs, validateAdjustments(r.Bonuses, "bonusuri")...)
	errs = append(errs, validateAdjustments(r.Deductions, "deduceri")...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// UpdateSalaryRequest lists every field PATCH understands. Driver, payment
// type and status are accepted only when unchanged.
type UpdateSalaryRequest struct {
	ID          string           `json:"-"`
	Period      *string          `json:"luna,omitempty"`
	BaseAmount  *decimal.Decimal `json:"salariuBaza,omitempty"`
	DaysWorked  *int             `json:"zileLucrate,omitempty"`
	Notes       *string          `json:"observatii,omitempty"`
	DriverID    *string          `json:"sofer,omitempty"`
	PaymentType *string          `json:"tipPlata,omitempty"`
	Status      *string          `json:"status,omitempty"`
}

func (r *UpdateSalaryRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.Period != nil {
		if _, err := validator.ParseMonth(*r.Period); err != nil {
			errs = append(errs, validator.ValidationError{Field: "luna", Message: "must be a valid month (YYYY-MM or YYYY-MM-DD)"})
		}
	}
	if r.BaseAmount != nil && r.BaseAmount.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "salariuBaza", Message: "must be non-negative"})
	}
	if r.DaysWorked != nil && *r.DaysWorked < 0 {
		errs = append(errs, validator.ValidationError{Field: "zileLucrate", Message: "must be non-negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type CalculateDiurnaRequest struct {
	DriverID  string `json:"driverId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

func (r *CalculateDiurnaRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.DriverID) {
		errs = append(errs, validator.ValidationError{Field: "driverId", Message: "is required"})
	} else if !validator.IsValidUUID(r.DriverID) {
		errs = append(errs, validator.ValidationError{Field: "driverId", Message: "must be a valid UUID"})
	}
	if _, err := validator.ParseDay(r.StartDate); err != nil {
		errs = append(errs, validator.ValidationError{Field: "startDate", Message: "must be a valid date"})
	}
	if _, err := validator.ParseDay(r.EndDate); err != nil {
		errs = append(errs, validator.ValidationError{Field: "endDate", Message: "must be a valid date"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type ProcessAutomaticRequest struct {
	Period *string `json:"luna,omitempty"`
}

// ========== RESPONSE DTOs ==========

type DriverRef struct {
	ID     string  `json:"id"`
	Name   *string `json:"nume,omitempty"`
	Active *bool   `json:"activ,omitempty"`
}

type BreakdownResponse struct {
	ProratedBase decimal.Decimal `json:"salariuProratat"`
	BonusSum     decimal.Decimal `json:"totalBonusuri"`
	DeductionSum decimal.Decimal `json:"totalDeduceri"`
	DiurnaTotal  decimal.Decimal `json:"totalDiurna"`
	Total        decimal.Decimal `json:"total"`
}

type SalaryResponse struct {
	ID           string             `json:"id"`
	Driver       DriverRef          `json:"sofer"`
	Period       string             `json:"luna"`
	BaseAmount   decimal.Decimal    `json:"salariuBaza"`
	DaysWorked   int                `json:"zileLucrate"`
	DaysInPeriod int                `json:"zileInLuna"`
	Bonuses      []Adjustment       `json:"bonusuri"`
	Deductions   []Adjustment       `json:"deduceri"`
	DiurnaTotal  decimal.Decimal    `json:"totalDiurna"`
	Total        decimal.Decimal    `json:"total"`
	Currency     string             `json:"moneda"`
	Status       string             `json:"status"`
	PaymentType  string             `json:"tipPlata"`
	Notes        *string            `json:"observatii,omitempty"`
	FinalizedAt  *string            `json:"dataFinalizare,omitempty"`
	PaidAt       *string            `json:"dataPlata,omitempty"`
	Version      int64              `json:"versiune"`
	CreatedAt    string             `json:"createdAt"`
	UpdatedAt    string             `json:"updatedAt"`
	Breakdown    *BreakdownResponse `json:"calcul,omitempty"`
}

type DiurnaResponse struct {
	DriverID  string          `json:"driverId"`
	StartDate string          `json:"startDate"`
	EndDate   string          `json:"endDate"`
	Diurna    decimal.Decimal `json:"diurna"`
	Currency  string          `json:"moneda"`
}

type SummaryResponse struct {
	Period      string          `json:"luna"`
	TotalSalary decimal.Decimal `json:"totalSalarii"`
	TotalDiurna decimal.Decimal `json:"totalDiurne"`
	Count       int             `json:"count"`
}

// DriverFailure records why one driver could not be processed in a batch.
type DriverFailure struct {
	DriverID   string `json:"soferId"`
	DriverName string `json:"nume,omitempty"`
	Reason     string `json:"motiv"`
}

// BatchReport is the outcome of one automatic processing run.
type BatchReport struct {
	Period     string          `json:"luna"`
	Drivers    int             `json:"soferi"`
	Created    int             `json:"create"`
	Calculated int             `json:"calculate"`
	Skipped    int             `json:"ignorate"`
	Failures   []DriverFailure `json:"esecuri"`
}
