package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

type Movie struct {
	ID              int
	Title           string
	DurationMinutes int
}

type Theater struct {
	ID   int
	Name string
}

type SeatClass string

const (
	SeatClassStandard SeatClass = "standard"
	SeatClassVIP      SeatClass = "vip"
	SeatClassCouple   SeatClass = "couple"
)

// Seat is one entry of a room layout. Surcharge is added to the schedule price.
type Seat struct {
	Code      string
	Row       string
	Column    int
	Class     SeatClass
	Surcharge decimal.Decimal
}

type Room struct {
	ID        int
	TheaterID int
	Name      string
	Seats     []Seat
}

func (r *Room) Seat(code string) (Seat, bool) {
	for _, s := range r.Seats {
		if s.Code == code {
			return s, true
		}
	}

	return Seat{}, false
}

type Combo struct {
	ID     int
	Name   string
	Price  decimal.Decimal
	Active bool
}

// CatalogRepository is the read-only view over movies, theaters, rooms, combos
// and vouchers owned by the catalog.
type CatalogRepository interface {
	GetMovie(ctx context.Context, id int) (*Movie, error)
	GetTheater(ctx context.Context, id int) (*Theater, error)
	GetRoom(ctx context.Context, id int) (*Room, error)
	GetCombos(ctx context.Context, ids []int) ([]Combo, error)
	GetVoucher(ctx context.Context, code string) (*Voucher, error)
}
