package app

import (
	"net/http"

	"github.com/metinatakli/showtime-booking/internal/inventory"
)

func (app *Application) GetSeatMapHandler(w http.ResponseWriter, r *http.Request) {
	scheduleId, err := app.readIDParam(r, "id")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	availability, err := app.inventory.GetAvailability(r.Context(), scheduleId)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, toSeatMapResponse(availability), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func toSeatMapResponse(a *inventory.Availability) SeatMapResponse {
	return SeatMapResponse{
		ScheduleId: a.ScheduleID,
		RoomId:     a.RoomID,
		Free:       a.Free,
		Held:       a.Held,
		Booked:     a.Booked,
		SeatRows:   toSeatRows(a.Seats),
	}
}

// toSeatRows groups seats by row. The room layout lists seats row by row, so
// one pass is enough.
func toSeatRows(seats []inventory.SeatAvailability) []SeatRow {
	seatRows := []SeatRow{}
	if len(seats) == 0 {
		return seatRows
	}

	currentRow := SeatRow{Row: seats[0].Row}

	for _, v := range seats {
		if v.Row != currentRow.Row {
			seatRows = append(seatRows, currentRow)
			currentRow = SeatRow{Row: v.Row}
		}

		currentRow.Seats = append(currentRow.Seats, Seat{
			Code:   v.Code,
			Row:    v.Row,
			Column: v.Column,
			Class:  string(v.Class),
			Price:  v.Price,
			State:  string(v.State),
		})
	}

	seatRows = append(seatRows, currentRow)

	return seatRows
}
