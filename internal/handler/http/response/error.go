package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/fleetdesk/payroll-backend-go/internal/domain/driver"
	"github.com/fleetdesk/payroll-backend-go/internal/domain/salary"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Lifecycle
	case errors.Is(err, salary.ErrInvalidTransition):
		BadRequest(w, "Tranzitie de status invalida", nil)
	case errors.Is(err, salary.ErrImmutableRecord):
		BadRequest(w, "Salariul este finalizat sau platit si nu mai poate fi modificat", nil)
	case errors.Is(err, salary.ErrMissingDriverData):
		BadRequest(w, "Soferul nu are salariu de baza configurat", nil)

	// Lookup
	case errors.Is(err, salary.ErrSalaryNotFound):
		NotFound(w, "Salariul nu a fost gasit")
	case errors.Is(err, driver.ErrDriverNotFound):
		NotFound(w, "Soferul nu a fost gasit")

	// Concurrency
	case errors.Is(err, salary.ErrConflict):
		Conflict(w, "Salariul este modificat de o alta operatiune")
	case errors.Is(err, salary.ErrSalaryAlreadyExists):
		Conflict(w, "Exista deja un salariu pentru acest sofer si aceasta luna")
	case errors.Is(err, salary.ErrBatchInProgress):
		Conflict(w, "Procesarea automata ruleaza deja pentru aceasta luna")

	case errors.Is(err, salary.ErrUpstreamFailure):
		slog.Error("upstream failure", "error", err)
		BadGateway(w, "Serviciu extern indisponibil")

	// Default
	default:
		slog.Error("unhandled error", "error", err)
		InternalServerError(w, "A aparut o eroare neasteptata")
	}
}
