package app

import (
	"time"

	"github.com/metinatakli/showtime-booking/internal/domain"
	"github.com/metinatakli/showtime-booking/internal/schedule"
	"github.com/shopspring/decimal"
)

type Metadata struct {
	CurrentPage  int `json:"currentPage"`
	FirstPage    int `json:"firstPage"`
	LastPage     int `json:"lastPage"`
	PageSize     int `json:"pageSize"`
	TotalRecords int `json:"totalRecords"`
}

type ScheduleAttributes struct {
	Is3D      bool `json:"is3d"`
	Subtitled bool `json:"subtitled"`
	Dubbed    bool `json:"dubbed"`
}

type CreateScheduleRequest struct {
	MovieId    int                 `json:"movieId" validate:"required,gt=0"`
	TheaterId  int                 `json:"theaterId" validate:"required,gt=0"`
	RoomId     int                 `json:"roomId" validate:"required,gt=0"`
	StartTime  time.Time           `json:"startTime" validate:"required"`
	EndTime    time.Time           `json:"endTime" validate:"required,gtfield=StartTime"`
	Price      decimal.Decimal     `json:"price" validate:"money"`
	Attributes *ScheduleAttributes `json:"attributes"`
}

type UpdateScheduleRequest struct {
	MovieId    *int                `json:"movieId" validate:"omitempty,gt=0"`
	TheaterId  *int                `json:"theaterId" validate:"omitempty,gt=0"`
	RoomId     *int                `json:"roomId" validate:"omitempty,gt=0"`
	StartTime  *time.Time          `json:"startTime"`
	EndTime    *time.Time          `json:"endTime"`
	Price      *decimal.Decimal    `json:"price" validate:"omitempty,money"`
	Attributes *ScheduleAttributes `json:"attributes"`
	Active     *bool               `json:"active"`
}

type ScheduleResponse struct {
	Id         int                `json:"id"`
	MovieId    int                `json:"movieId"`
	TheaterId  int                `json:"theaterId"`
	RoomId     int                `json:"roomId"`
	StartTime  time.Time          `json:"startTime"`
	EndTime    time.Time          `json:"endTime"`
	Price      decimal.Decimal    `json:"price"`
	Attributes ScheduleAttributes `json:"attributes"`
	Active     bool               `json:"active"`
	CreatedAt  time.Time          `json:"createdAt"`
}

type SchedulesResponse struct {
	Schedules []ScheduleResponse `json:"schedules"`
	Metadata  Metadata           `json:"metadata"`
}

type ListSchedulesParams struct {
	PaginationParams
	MovieId    *int `validate:"omitempty,gt=0"`
	TheaterId  *int `validate:"omitempty,gt=0"`
	RoomId     *int `validate:"omitempty,gt=0"`
	Date       *time.Time
	ActiveOnly bool
}

type AvailableSlotsParams struct {
	Date     time.Time
	Duration int `validate:"gt=0,max=600"`
}

type Slot struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

type AvailableSlotsResponse struct {
	RoomId          int    `json:"roomId"`
	Date            string `json:"date"`
	DurationMinutes int    `json:"durationMinutes"`
	Slots           []Slot `json:"slots"`
}

type Seat struct {
	Code   string          `json:"code"`
	Row    string          `json:"row"`
	Column int             `json:"column"`
	Class  string          `json:"class"`
	Price  decimal.Decimal `json:"price"`
	State  string          `json:"state"`
}

type SeatRow struct {
	Row   string `json:"row"`
	Seats []Seat `json:"seats"`
}

type SeatMapResponse struct {
	ScheduleId int       `json:"scheduleId"`
	RoomId     int       `json:"roomId"`
	Free       int       `json:"free"`
	Held       int       `json:"held"`
	Booked     int       `json:"booked"`
	SeatRows   []SeatRow `json:"seatRows"`
}

type ComboRequest struct {
	ComboId  int `json:"comboId" validate:"gt=0"`
	Quantity int `json:"quantity" validate:"min=1,max=20"`
}

type CreateReservationRequest struct {
	ScheduleId   int            `json:"scheduleId" validate:"required,gt=0"`
	Seats        []string       `json:"seats" validate:"required,min=1,max=10,unique,dive,seat_code"`
	Combos       []ComboRequest `json:"combos" validate:"omitempty,max=10,dive"`
	VoucherCode  string         `json:"voucherCode" validate:"omitempty,voucher_code"`
	ContactEmail *string        `json:"contactEmail" validate:"omitempty,email"`
}

type CancelReservationRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type ConfirmPaymentRequest struct {
	TransactionId string `json:"transactionId" validate:"required,max=255"`
	Status        string `json:"status" validate:"required,oneof=completed failed"`
	FailureReason string `json:"failureReason" validate:"max=500"`
}

type SeatLine struct {
	Code  string          `json:"code"`
	Class string          `json:"class"`
	Price decimal.Decimal `json:"price"`
}

type ComboLine struct {
	ComboId  int             `json:"comboId"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type AppliedVoucher struct {
	Code          string           `json:"code"`
	DiscountType  string           `json:"discountType"`
	DiscountValue decimal.Decimal  `json:"discountValue"`
	MaxDiscount   *decimal.Decimal `json:"maxDiscount,omitempty"`
	MinOrderValue *decimal.Decimal `json:"minOrderValue,omitempty"`
}

type Payment struct {
	Method        string     `json:"method,omitempty"`
	TransactionId *string    `json:"transactionId,omitempty"`
	Status        string     `json:"status"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
	FailureReason *string    `json:"failureReason,omitempty"`
}

type ReservationResponse struct {
	Id                 int             `json:"id"`
	UserId             int             `json:"userId"`
	ScheduleId         int             `json:"scheduleId"`
	Seats              []SeatLine      `json:"seats"`
	Combos             []ComboLine     `json:"combos"`
	Voucher            *AppliedVoucher `json:"voucher,omitempty"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	Discount           decimal.Decimal `json:"discount"`
	Tax                decimal.Decimal `json:"tax"`
	ServiceFee         decimal.Decimal `json:"serviceFee"`
	TotalAmount        decimal.Decimal `json:"totalAmount"`
	Currency           string          `json:"currency"`
	Payment            Payment         `json:"payment"`
	Status             string          `json:"status"`
	QRCode             *string         `json:"qrCode,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	ExpiresAt          time.Time       `json:"expiresAt"`
	CancelledAt        *time.Time      `json:"cancelledAt,omitempty"`
	CancellationReason *string         `json:"cancellationReason,omitempty"`
}

type ReservationSummary struct {
	Id          int             `json:"id"`
	ScheduleId  int             `json:"scheduleId"`
	Seats       []string        `json:"seats"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type UserReservationsResponse struct {
	Reservations []ReservationSummary `json:"reservations"`
	Metadata     Metadata             `json:"metadata"`
}

type CheckoutSessionResponse struct {
	TransactionId string `json:"transactionId"`
	Method        string `json:"method"`
	RedirectUrl   string `json:"redirectUrl"`
}

type SystemInfo struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Store       string `json:"store"`
	Events      string `json:"events,omitempty"`
}

type HealthcheckResponse struct {
	Status     string     `json:"status"`
	SystemInfo SystemInfo `json:"systemInfo"`
}

func toApiMetadata(metadata *domain.Metadata) Metadata {
	if metadata == nil {
		return Metadata{}
	}

	return Metadata{
		CurrentPage:  metadata.CurrentPage,
		FirstPage:    metadata.FirstPage,
		LastPage:     metadata.LastPage,
		PageSize:     metadata.PageSize,
		TotalRecords: metadata.TotalRecords,
	}
}

func toScheduleAttributes(a *ScheduleAttributes) domain.ScheduleAttributes {
	if a == nil {
		return domain.ScheduleAttributes{}
	}

	return domain.ScheduleAttributes{Is3D: a.Is3D, Subtitled: a.Subtitled, Dubbed: a.Dubbed}
}

func toScheduleResponse(s *domain.Schedule) ScheduleResponse {
	return ScheduleResponse{
		Id:        s.ID,
		MovieId:   s.MovieID,
		TheaterId: s.TheaterID,
		RoomId:    s.RoomID,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Price:     s.Price,
		Attributes: ScheduleAttributes{
			Is3D:      s.Attributes.Is3D,
			Subtitled: s.Attributes.Subtitled,
			Dubbed:    s.Attributes.Dubbed,
		},
		Active:    s.Active,
		CreatedAt: s.CreatedAt,
	}
}

func toSchedulePatch(req UpdateScheduleRequest) domain.SchedulePatch {
	patch := domain.SchedulePatch{
		MovieID:   req.MovieId,
		TheaterID: req.TheaterId,
		RoomID:    req.RoomId,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Price:     req.Price,
		Active:    req.Active,
	}

	if req.Attributes != nil {
		attrs := toScheduleAttributes(req.Attributes)
		patch.Attributes = &attrs
	}

	return patch
}

func toSlots(slots []schedule.Slot) []Slot {
	resp := make([]Slot, len(slots))
	for i, s := range slots {
		resp[i] = Slot{StartTime: s.StartTime, EndTime: s.EndTime}
	}
	return resp
}

func toReservationResponse(r *domain.Reservation) ReservationResponse {
	resp := ReservationResponse{
		Id:          r.ID,
		UserId:      r.UserID,
		ScheduleId:  r.ScheduleID,
		Seats:       make([]SeatLine, len(r.Seats)),
		Combos:      make([]ComboLine, len(r.Combos)),
		Subtotal:    r.Subtotal,
		Discount:    r.Discount,
		Tax:         r.Tax,
		ServiceFee:  r.ServiceFee,
		TotalAmount: r.TotalAmount,
		Currency:    r.Currency,
		Payment: Payment{
			Method:        r.Payment.Method,
			TransactionId: r.Payment.TransactionID,
			Status:        string(r.Payment.Status),
			PaidAt:        r.Payment.PaidAt,
			FailureReason: r.Payment.FailureReason,
		},
		Status:             string(r.Status),
		QRCode:             r.QRCode,
		CreatedAt:          r.CreatedAt,
		ExpiresAt:          r.ExpiresAt,
		CancelledAt:        r.CancelledAt,
		CancellationReason: r.CancellationReason,
	}

	for i, s := range r.Seats {
		resp.Seats[i] = SeatLine{Code: s.Code, Class: string(s.Class), Price: s.Price}
	}

	for i, c := range r.Combos {
		resp.Combos[i] = ComboLine{ComboId: c.ComboID, Name: c.Name, Quantity: c.Quantity, Price: c.Price}
	}

	if r.Voucher != nil {
		resp.Voucher = &AppliedVoucher{
			Code:          r.Voucher.Code,
			DiscountType:  string(r.Voucher.DiscountType),
			DiscountValue: r.Voucher.DiscountValue,
			MaxDiscount:   r.Voucher.MaxDiscount,
			MinOrderValue: r.Voucher.MinOrderValue,
		}
	}

	return resp
}

func toReservationSummaries(reservations []domain.Reservation) []ReservationSummary {
	reservationSummaries := make([]ReservationSummary, len(reservations))

	for i, v := range reservations {
		summary := &reservationSummaries[i]

		summary.Id = v.ID
		summary.ScheduleId = v.ScheduleID
		summary.Seats = v.SeatCodes()
		summary.TotalAmount = v.TotalAmount
		summary.Status = string(v.Status)
		summary.CreatedAt = v.CreatedAt
	}

	return reservationSummaries
}
