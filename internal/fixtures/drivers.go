package fixtures

import (
	"time"

	"github.com/fleetdesk/payroll-backend-go/internal/domain/driver"
	"github.com/fleetdesk/payroll-backend-go/internal/repository/memory"
	"github.com/shopspring/decimal"
)

// ==========================================
// HELPER FUNCTIONS
// ==========================================

func strPtr(s string) *string { return &s }

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func at(day time.Time, hour int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, time.UTC)
}

// ==========================================
// SEEDED DATA RESULT
// ==========================================

// SeededFleet holds the ids of the demo drivers by name.
type SeededFleet struct {
	DriverIDs map[string]string
}

// ==========================================
// DEFAULT DRIVERS
// ==========================================

type driverDefault struct {
	Name       string
	Location   string
	BaseSalary *decimal.Decimal
	Active     bool
}

func defaultDrivers() []driverDefault {
	return []driverDefault{
		{Name: "Ion Popescu", Location: "Bucuresti", BaseSalary: decimalPtr("4500"), Active: true},
		{Name: "Maria Ionescu", Location: "Cluj-Napoca", BaseSalary: decimalPtr("4200"), Active: true},
		{Name: "Andrei Dumitru", Location: "Timisoara", BaseSalary: decimalPtr("3900"), Active: true},
		// no base salary: the automatic processor reports it as a failure
		{Name: "Vasile Georgescu", Location: "Iasi", Active: true},
		{Name: "Elena Stan", Location: "Constanta", BaseSalary: decimalPtr("4000"), Active: false},
	}
}

// SeedDemoFleet fills an in-memory store with drivers, trips, manual diurna
// entries and holidays for the month before and the month of now.
func SeedDemoFleet(store *memory.Store, now time.Time) SeededFleet {
	seeded := SeededFleet{DriverIDs: make(map[string]string)}

	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	previous := current.AddDate(0, -1, 0)

	for _, def := range defaultDrivers() {
		status := driver.StatusAvailable
		if !def.Active {
			status = driver.StatusOnLeave
		}
		d := store.AddDriver(driver.Driver{
			Name:            def.Name,
			Active:          def.Active,
			CurrentLocation: strPtr(def.Location),
			Status:          status,
			BaseSalary:      def.BaseSalary,
			CreatedAt:       previous,
			UpdatedAt:       previous,
		})
		seeded.DriverIDs[def.Name] = d.ID
	}

	ion := seeded.DriverIDs["Ion Popescu"]
	maria := seeded.DriverIDs["Maria Ionescu"]
	andrei := seeded.DriverIDs["Andrei Dumitru"]

	// Trips
	for _, month := range []time.Time{previous, current} {
		returned := at(month.AddDate(0, 0, 4), 18)
		store.AddTrip(driver.Trip{
			DriverID:    ion,
			Destination: "Viena",
			DepartedAt:  at(month.AddDate(0, 0, 1), 5),
			ReturnedAt:  &returned,
			DailyRate:   decimalPtr("40"),
			Currency:    "EUR",
		})

		shortReturn := at(month.AddDate(0, 0, 9), 15)
		store.AddTrip(driver.Trip{
			DriverID:    maria,
			Destination: "Brasov",
			DepartedAt:  at(month.AddDate(0, 0, 9), 7),
			ReturnedAt:  &shortReturn,
			Currency:    "RON",
		})
	}
	// still on the road
	store.AddTrip(driver.Trip{
		DriverID:    andrei,
		Destination: "Budapesta",
		DepartedAt:  at(current.AddDate(0, 0, 11), 6),
		DailyRate:   decimalPtr("35"),
		Currency:    "EUR",
	})

	// Manual diurna entries
	store.AddDiurnaEntry(driver.DiurnaEntry{
		DriverID:    maria,
		Date:        previous.AddDate(0, 0, 14),
		Amount:      decimal.RequireFromString("150"),
		Currency:    "RON",
		Description: strPtr("Cursa Sibiu"),
	})
	store.AddDiurnaEntry(driver.DiurnaEntry{
		DriverID:    andrei,
		Date:        previous.AddDate(0, 0, 20),
		Amount:      decimal.RequireFromString("30"),
		Currency:    "EUR",
		Description: strPtr("Cursa Szeged"),
	})

	// Holidays
	store.AddHoliday(driver.Holiday{
		DriverID:  andrei,
		StartDate: previous.AddDate(0, 0, 2),
		EndDate:   previous.AddDate(0, 0, 6),
		Status:    driver.HolidayApproved,
	})
	store.AddHoliday(driver.Holiday{
		DriverID:  maria,
		StartDate: current.AddDate(0, 0, 20),
		EndDate:   current.AddDate(0, 0, 22),
		Status:    driver.HolidayPending,
	})

	return seeded
}
