package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/metinatakli/showtime-booking/internal/domain"
	"github.com/metinatakli/showtime-booking/internal/ledger"
)

func (app *Application) CreateReservationHandler(w http.ResponseWriter, r *http.Request) {
	var input CreateReservationRequest

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(input)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	combos := make([]ledger.ComboRequest, len(input.Combos))
	for i, c := range input.Combos {
		combos[i] = ledger.ComboRequest{ComboID: c.ComboId, Quantity: c.Quantity}
	}

	reservation, err := app.ledger.CreateReservation(r.Context(), ledger.CreateInput{
		UserID:       app.contextGetUserId(r),
		ScheduleID:   input.ScheduleId,
		SeatCodes:    input.Seats,
		Combos:       combos,
		VoucherCode:  input.VoucherCode,
		ContactEmail: input.ContactEmail,
	})
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/reservations/%d", reservation.ID))

	err = app.writeJSON(w, http.StatusCreated, toReservationResponse(reservation), headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetReservationHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	reservation, err := app.ledger.GetUserReservation(r.Context(), id, app.contextGetUserId(r))
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, toReservationResponse(reservation), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetReservationsOfUserHandler(w http.ResponseWriter, r *http.Request) {
	params, err := app.readPagination(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(params)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	userId := app.contextGetUserId(r)

	reservations, metadata, err := app.ledger.ListUserReservations(r.Context(), userId, toPagination(params))
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	resp := UserReservationsResponse{
		Reservations: toReservationSummaries(reservations),
		Metadata:     toApiMetadata(metadata),
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) CancelReservationHandler(w http.ResponseWriter, r *http.Request) {
	app.releaseReservation(w, r, app.ledger.Cancel)
}

func (app *Application) RefundReservationHandler(w http.ResponseWriter, r *http.Request) {
	app.releaseReservation(w, r, app.ledger.Refund)
}

type releaseFunc func(ctx context.Context, id, actorID int, reason string) (*domain.Reservation, error)

// releaseReservation handles cancel and refund. Both take an optional reason
// and are limited to the caller's own reservations.
func (app *Application) releaseReservation(w http.ResponseWriter, r *http.Request, release releaseFunc) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var input CancelReservationRequest

	if r.ContentLength > 0 {
		err = app.readJSON(w, r, &input)
		if err != nil {
			app.badRequestResponse(w, r, err)
			return
		}

		err = app.validator.Struct(input)
		if err != nil {
			app.failedValidationResponse(w, r, err)
			return
		}
	}

	userId := app.contextGetUserId(r)

	_, err = app.ledger.GetUserReservation(r.Context(), id, userId)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	reservation, err := release(r.Context(), id, userId, input.Reason)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, toReservationResponse(reservation), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
