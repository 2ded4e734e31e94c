package driver

import (
	"time"

	"github.com/shopspring/decimal"
)

type Driver struct {
	ID              string
	Name            string
	Active          bool
	CurrentLocation *string
	Status          Status
	BaseSalary      *decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Status string

const (
	StatusAvailable Status = "disponibil"
	StatusOnTrip    Status = "in_cursa"
	StatusOnLeave   Status = "concediu"
)

// Trip is a qualifying-activity interval: the driver is away from base
// between DepartedAt and ReturnedAt. A nil ReturnedAt means still away.
type Trip struct {
	ID          string
	DriverID    string
	Destination string
	DepartedAt  time.Time
	ReturnedAt  *time.Time
	DailyRate   *decimal.Decimal
	Currency    string
}

// DiurnaEntry is a per-diem amount recorded manually for a driver.
type DiurnaEntry struct {
	ID          string
	DriverID    string
	Date        time.Time
	Amount      decimal.Decimal
	Currency    string
	Description *string
}

type HolidayStatus string

const (
	HolidayPending  HolidayStatus = "pending"
	HolidayApproved HolidayStatus = "approved"
	HolidayRejected HolidayStatus = "rejected"
)

type Holiday struct {
	ID        string
	DriverID  string
	StartDate time.Time
	EndDate   time.Time
	Status    HolidayStatus
}
