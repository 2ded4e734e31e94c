package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/fleetdesk/payroll-backend-go/internal/domain/salary"
	"github.com/fleetdesk/payroll-backend-go/internal/handler/http/response"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
)

type SalaryHandler interface {
	// Queries
	List(w http.ResponseWriter, r *http.Request)
	Summary(w http.ResponseWriter, r *http.Request)
	ListByDriver(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	History(w http.ResponseWriter, r *http.Request)

	// Computation
	ProcessAutomatic(w http.ResponseWriter, r *http.Request)
	Calculate(w http.ResponseWriter, r *http.Request)
	CalculateDiurna(w http.ResponseWriter, r *http.Request)

	// Record mutations
	Create(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	Finalize(w http.ResponseWriter, r *http.Request)
	MarkPaid(w http.ResponseWriter, r *http.Request)
	AddBonus(w http.ResponseWriter, r *http.Request)
	AddDeduction(w http.ResponseWriter, r *http.Request)
}

type salaryHandlerImpl struct {
	salaryService salary.SalaryService
	now           func() time.Time
	location      *time.Location
}

// NewSalaryHandler builds the salary handler. now and location resolve the
// current month for endpoints called without an explicit period.
func NewSalaryHandler(salaryService salary.SalaryService, now func() time.Time, location *time.Location) SalaryHandler {
	if now == nil {
		now = time.Now
	}
	if location == nil {
		location = time.UTC
	}
	return &salaryHandlerImpl{salaryService: salaryService, now: now, location: location}
}

func (h *salaryHandlerImpl) currentPeriod() time.Time {
	return validator.FirstOfMonth(h.now().In(h.location))
}

// ========== QUERIES ==========

func (h *salaryHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSalaryFilter(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.salaryService.List(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *salaryHandlerImpl) Summary(w http.ResponseWriter, r *http.Request) {
	period := h.currentPeriod()
	from, to, err := parsePeriodQuery(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	if from != nil {
		if !from.Equal(*to) {
			response.HandleError(w, validator.Single("month", "is required together with year"))
			return
		}
		period = *from
	}

	result, err := h.salaryService.Summary(r.Context(), period)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *salaryHandlerImpl) ListByDriver(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "soferId")
	if !validator.IsValidUUID(driverID) {
		response.BadRequest(w, "ID sofer invalid", nil)
		return
	}

	result, err := h.salaryService.ListByDriver(r.Context(), driverID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *salaryHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := salaryID(w, r)
	if !ok {
		return
	}

	result, err := h.salaryService.Get(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *salaryHandlerImpl) History(w http.ResponseWriter, r *http.Request) {
	id, ok := salaryID(w, r)
	if !ok {
		return
	}

	result, err := h.salaryService.History(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== COMPUTATION ==========

func (h *salaryHandlerImpl) ProcessAutomatic(w http.ResponseWriter, r *http.Request) {
	var req salary.ProcessAutomaticRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	period := h.currentPeriod()
	if req.Period != nil {
		p, err := validator.ParseMonth(*req.Period)
		if err != nil {
			response.HandleError(w, validator.Single("luna", "must be a valid month (YYYY-MM or YYYY-MM-DD)"))
			return
		}
		period = p
	}

	result, err := h.salaryService.ProcessAutomaticPayments(r.Context(), period)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Procesarea automata a salariilor s-a incheiat", result)
}

func (h *salaryHandlerImpl) Calculate(w http.ResponseWriter, r *http.Request) {
	var req salary.CalculateSalaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.salaryService.Calculate(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Salariu calculat", result)
}

func (h *salaryHandlerImpl) CalculateDiurna(w http.ResponseWriter, r *http.Request) {
	var req salary.CalculateDiurnaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.salaryService.CalculateDiurna(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== RECORD MUTATIONS ==========

func (h *salaryHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	var req salary.CreateSalaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.salaryService.Create(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Salariu creat", result)
}

func (h *salaryHandlerImpl) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := salaryID(w, r)
	if !ok {
		return
	}

	var req salary.UpdateSalaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.ID = id

	result, err := h.salaryService.Update(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Salariu actualizat", result)
}

func (h *salaryHandlerImpl) Finalize(w http.ResponseWriter, r *http.Request) {
	id, ok := salaryID(w, r)
	if !ok {
		return
	}

	result, err := h.salaryService.Finalize(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Salariu finalizat", result)
}

func (h *salaryHandlerImpl) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := salaryID(w, r)
	if !ok {
		return
	}

	result, err := h.salaryService.MarkPaid(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Salariu marcat ca platit", result)
}

func (h *salaryHandlerImpl) AddBonus(w http.ResponseWriter, r *http.Request) {
	id, ok := salaryID(w, r)
	if !ok {
		return
	}

	var req salary.AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.salaryService.AddBonus(r.Context(), id, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Bonus adaugat", result)
}

func (h *salaryHandlerImpl) AddDeduction(w http.ResponseWriter, r *http.Request) {
	id, ok := salaryID(w, r)
	if !ok {
		return
	}

	var req salary.AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.salaryService.AddDeduction(r.Context(), id, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Deducere adaugata", result)
}

// ========== HELPERS ==========

func salaryID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !validator.IsValidUUID(id) {
		response.BadRequest(w, "ID salariu invalid", nil)
		return "", false
	}
	return id, true
}

func parseSalaryFilter(r *http.Request) (salary.SalaryFilter, error) {
	q := r.URL.Query()
	var (
		filter salary.SalaryFilter
		errs   validator.ValidationErrors
	)

	if raw := q.Get("status"); raw != "" {
		status, ok := salary.ParseStatus(raw)
		if !ok {
			errs = append(errs, validator.ValidationError{Field: "status", Message: "is not a known salary status"})
		} else {
			filter.Status = &status
		}
	}

	if driverID := q.Get("sofer"); driverID != "" {
		if !validator.IsValidUUID(driverID) {
			errs = append(errs, validator.ValidationError{Field: "sofer", Message: "must be a valid id"})
		} else {
			filter.DriverID = &driverID
		}
	}

	from, to, err := parsePeriodQuery(r)
	if err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			errs = append(errs, ve...)
		}
	}
	filter.PeriodFrom, filter.PeriodTo = from, to

	// showInactive=false hides salaries of inactive drivers
	filter.ActiveOnly = q.Get("showInactive") == "false"

	if len(errs) > 0 {
		return salary.SalaryFilter{}, errs
	}
	return filter, nil
}

// parsePeriodQuery reads month and year. Both select one month; year alone
// selects the whole year. Bounds are first-of-month and inclusive.
func parsePeriodQuery(r *http.Request) (*time.Time, *time.Time, error) {
	q := r.URL.Query()
	monthRaw, yearRaw := q.Get("month"), q.Get("year")
	if monthRaw == "" && yearRaw == "" {
		return nil, nil, nil
	}

	year, err := strconv.Atoi(yearRaw)
	if err != nil || year < 1 || year > 9999 {
		return nil, nil, validator.Single("year", "must be a valid year")
	}

	if monthRaw == "" {
		from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(year, time.December, 1, 0, 0, 0, 0, time.UTC)
		return &from, &to, nil
	}

	month, err := strconv.Atoi(monthRaw)
	if err != nil || month < 1 || month > 12 {
		return nil, nil, validator.Single("month", "must be between 1 and 12")
	}
	period := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return &period, &period, nil
}
