package app

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/metinatakli/showtime-booking/internal/domain"
	appvalidator "github.com/metinatakli/showtime-booking/internal/validator"
)

const (
	ErrInternalServer   = "The server encountered a problem and could not process your request"
	ErrResourceNotFound = "The requested resource not found"
	ErrInvalidFields    = "One or more fields have invalid values"
	ErrMissingUser      = "The X-User-Id header must carry a positive user id"
)

type ErrorDetails struct {
	Seats         []string `json:"seats,omitempty"`
	ScheduleId    *int     `json:"scheduleId,omitempty"`
	ReservationId *int     `json:"reservationId,omitempty"`
	Status        string   `json:"status,omitempty"`
	VoucherCode   string   `json:"voucherCode,omitempty"`
}

type ErrorResponse struct {
	Message   string        `json:"message"`
	RequestId string        `json:"requestId"`
	Timestamp time.Time     `json:"timestamp"`
	Details   *ErrorDetails `json:"details,omitempty"`
}

type ValidationError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

type ValidationErrorResponse struct {
	Message          string            `json:"message"`
	RequestId        string            `json:"requestId"`
	Timestamp        time.Time         `json:"timestamp"`
	ValidationErrors []ValidationError `json:"validationErrors"`
}

func (app *Application) logError(r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.contextGetLogger(r).Error(err.Error(), "method", method, "uri", uri)
}

// The errorResponse() method is a generic helper for sending JSON-formatted error
// messages to the client with a given status code.
func (app *Application) errorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	app.errorResponseWithDetails(w, r, status, message, nil)
}

func (app *Application) errorResponseWithDetails(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	message string,
	details *ErrorDetails) {

	resp := ErrorResponse{
		Message:   message,
		RequestId: middleware.GetReqID(r.Context()),
		Timestamp: time.Now(),
		Details:   details,
	}

	err := app.writeJSON(w, status, resp, nil)
	if err != nil {
		app.logError(r, err)
		w.WriteHeader(500)
	}
}

func (app *Application) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logError(r, err)

	app.errorResponse(w, r, http.StatusInternalServerError, ErrInternalServer)
}

func (app *Application) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusNotFound, ErrResourceNotFound)
}

func (app *Application) methodNotAllowedResponse(w http.ResponseWriter, r *http.Request) {
	message := fmt.Sprintf("The %s method is not supported for this resource", r.Method)
	app.errorResponse(w, r, http.StatusMethodNotAllowed, message)
}

func (app *Application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func (app *Application) unauthorizedAccessResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusUnauthorized, ErrMissingUser)
}

func (app *Application) failedValidationResponse(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		app.badRequestResponse(w, r, err)
		return
	}

	fieldErrors := make([]ValidationError, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fieldErrors = append(fieldErrors, ValidationError{
			Field: fe.Field(),
			Issue: appvalidator.ValidationMessage(fe),
		})
	}

	app.validationErrorsResponse(w, r, fieldErrors)
}

func (app *Application) validationErrorsResponse(w http.ResponseWriter, r *http.Request, fieldErrors []ValidationError) {
	resp := ValidationErrorResponse{
		Message:          ErrInvalidFields,
		RequestId:        middleware.GetReqID(r.Context()),
		Timestamp:        time.Now(),
		ValidationErrors: fieldErrors,
	}

	err := app.writeJSON(w, http.StatusUnprocessableEntity, resp, nil)
	if err != nil {
		app.logError(r, err)
		w.WriteHeader(500)
	}
}

// domainErrorResponse maps the booking error taxonomy to HTTP statuses.
// Anything unknown, including persistence failures, is a 500.
func (app *Application) domainErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFoundErr   *domain.NotFoundError
		conflictErr   *domain.ConflictError
		seatErr       *domain.SeatConflictError
		stateErr      *domain.InvalidStateError
		voucherErr    *domain.InvalidVoucherError
		validationErr *domain.ValidationError
	)

	switch {
	case errors.As(err, &notFoundErr):
		app.errorResponse(w, r, http.StatusNotFound, notFoundErr.Error())

	case errors.As(err, &seatErr):
		app.errorResponseWithDetails(w, r, http.StatusConflict, seatErr.Error(), &ErrorDetails{
			Seats: seatErr.Seats,
		})

	case errors.As(err, &conflictErr):
		var details *ErrorDetails
		if conflictErr.ScheduleID != 0 {
			details = &ErrorDetails{ScheduleId: &conflictErr.ScheduleID}
		}
		app.errorResponseWithDetails(w, r, http.StatusConflict, conflictErr.Error(), details)

	case errors.As(err, &stateErr):
		app.errorResponseWithDetails(w, r, http.StatusConflict, stateErr.Error(), &ErrorDetails{
			ReservationId: &stateErr.ReservationID,
			Status:        string(stateErr.From),
		})

	case errors.As(err, &voucherErr):
		app.errorResponseWithDetails(w, r, http.StatusUnprocessableEntity, voucherErr.Error(), &ErrorDetails{
			VoucherCode: voucherErr.Code,
		})

	case errors.As(err, &validationErr):
		app.validationErrorsResponse(w, r, []ValidationError{
			{Field: validationErr.Field, Issue: validationErr.Reason},
		})

	default:
		app.serverErrorResponse(w, r, err)
	}
}
