package app

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/metinatakli/showtime-booking/internal/domain"
	"github.com/metinatakli/showtime-booking/internal/schedule"
)

const dateLayout = "2006-01-02"

func (app *Application) ListSchedulesHandler(w http.ResponseWriter, r *http.Request) {
	params, err := app.readListSchedulesParams(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(params)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	filter := domain.ScheduleFilter{
		MovieID:    params.MovieId,
		TheaterID:  params.TheaterId,
		RoomID:     params.RoomId,
		Date:       params.Date,
		ActiveOnly: params.ActiveOnly,
	}

	schedules, metadata, err := app.schedules.List(r.Context(), filter, toPagination(params.PaginationParams))
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	resp := SchedulesResponse{
		Schedules: make([]ScheduleResponse, len(schedules)),
		Metadata:  toApiMetadata(metadata),
	}
	for i := range schedules {
		resp.Schedules[i] = toScheduleResponse(&schedules[i])
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) readListSchedulesParams(r *http.Request) (ListSchedulesParams, error) {
	var (
		params ListSchedulesParams
		err    error
	)

	params.PaginationParams, err = app.readPagination(r)
	if err != nil {
		return params, err
	}

	for key, dst := range map[string]**int{
		"movieId":   &params.MovieId,
		"theaterId": &params.TheaterId,
		"roomId":    &params.RoomId,
	} {
		*dst, err = readIntQuery(r, key)
		if err != nil {
			return params, err
		}
	}

	query := r.URL.Query()

	if raw := query.Get("date"); raw != "" {
		date, err := time.Parse(dateLayout, raw)
		if err != nil {
			return params, fmt.Errorf("date must be formatted as YYYY-MM-DD")
		}
		params.Date = &date
	}

	if raw := query.Get("activeOnly"); raw != "" {
		params.ActiveOnly, err = strconv.ParseBool(raw)
		if err != nil {
			return params, fmt.Errorf("activeOnly must be a boolean")
		}
	}

	return params, nil
}

func (app *Application) CreateScheduleHandler(w http.ResponseWriter, r *http.Request) {
	var input CreateScheduleRequest

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

	created, err := app.schedules.Create(r.Context(), schedule.CreateInput{
		MovieID:    input.MovieId,
		TheaterID:  input.TheaterId,
		RoomID:     input.RoomId,
		StartTime:  input.StartTime,
		EndTime:    input.EndTime,
		Price:      input.Price,
		Attributes: toScheduleAttributes(input.Attributes),
	})
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/schedules/%d", created.ID))

	err = app.writeJSON(w, http.StatusCreated, toScheduleResponse(created), headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetScheduleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	s, err := app.schedules.Get(r.Context(), id)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, toScheduleResponse(s), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) UpdateScheduleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var input UpdateScheduleRequest

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

	updated, err := app.schedules.Update(r.Context(), id, toSchedulePatch(input))
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, toScheduleResponse(updated), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) DeleteScheduleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.schedules.Delete(r.Context(), id)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (app *Application) GetAvailableSlotsHandler(w http.ResponseWriter, r *http.Request) {
	roomId, err := app.readIDParam(r, "roomId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	query := r.URL.Query()

	date, err := time.Parse(dateLayout, query.Get("date"))
	if err != nil {
		app.badRequestResponse(w, r, errors.New("date must be formatted as YYYY-MM-DD"))
		return
	}

	duration, err := strconv.Atoi(query.Get("duration"))
	if err != nil {
		app.badRequestResponse(w, r, errors.New("duration must be a number of minutes"))
		return
	}

	params := AvailableSlotsParams{Date: date, Duration: duration}

	err = app.validator.Struct(params)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	slots, err := app.schedules.FindAvailableSlots(r.Context(), roomId, date, time.Duration(duration)*time.Minute)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	resp := AvailableSlotsResponse{
		RoomId:          roomId,
		Date:            date.Format(dateLayout),
		DurationMinutes: duration,
		Slots:           toSlots(slots),
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
