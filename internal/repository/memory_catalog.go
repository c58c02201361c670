package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/metinatakli/showtime-booking/internal/domain"
	"github.com/shopspring/decimal"
)

// MemoryCatalog is an in-process catalog used by the memory store and tests.
type MemoryCatalog struct {
	mu       sync.RWMutex
	movies   map[int]domain.Movie
	theaters map[int]domain.Theater
	rooms    map[int]domain.Room
	combos   map[int]domain.Combo
	vouchers map[string]domain.Voucher
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		movies:   make(map[int]domain.Movie),
		theaters: make(map[int]domain.Theater),
		rooms:    make(map[int]domain.Room),
		combos:   make(map[int]domain.Combo),
		vouchers: make(map[string]domain.Voucher),
	}
}

func (c *MemoryCatalog) AddMovie(m domain.Movie) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.movies[m.ID] = m
}

func (c *MemoryCatalog) AddTheater(t domain.Theater) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.theaters[t.ID] = t
}

func (c *MemoryCatalog) AddRoom(r domain.Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[r.ID] = r
}

func (c *MemoryCatalog) AddCombo(combo domain.Combo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.combos[combo.ID] = combo
}

func (c *MemoryCatalog) AddVoucher(v domain.Voucher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vouchers[strings.ToUpper(v.Code)] = v
}

func (c *MemoryCatalog) GetMovie(ctx context.Context, id int) (*domain.Movie, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.movies[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "movie", ID: id}
	}
	return &m, nil
}

func (c *MemoryCatalog) GetTheater(ctx context.Context, id int) (*domain.Theater, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.theaters[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "theater", ID: id}
	}
	return &t, nil
}

func (c *MemoryCatalog) GetRoom(ctx context.Context, id int) (*domain.Room, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.rooms[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "room", ID: id}
	}

	// the layout is shared read-only, but callers get their own slice header
	r.Seats = append([]domain.Seat(nil), r.Seats...)
	return &r, nil
}

func (c *MemoryCatalog) GetCombos(ctx context.Context, ids []int) ([]domain.Combo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	combos := make([]domain.Combo, 0, len(ids))
	for _, id := range ids {
		combo, ok := c.combos[id]
		if !ok {
			return nil, &domain.NotFoundError{Resource: "combo", ID: id}
		}
		combos = append(combos, combo)
	}
	return combos, nil
}

func (c *MemoryCatalog) GetVoucher(ctx context.Context, code string) (*domain.Voucher, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.vouchers[strings.ToUpper(code)]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "voucher", ID: code}
	}
	return &v, nil
}

// SeedDemoCatalog fills c with one theater, two rooms and a few combos and
// vouchers so the memory store is usable without a database.
func SeedDemoCatalog(c *MemoryCatalog, now time.Time) {
	c.AddMovie(domain.Movie{ID: 1, Title: "The Matrix", DurationMinutes: 136})
	c.AddMovie(domain.Movie{ID: 2, Title: "Spirited Away", DurationMinutes: 125})
	c.AddTheater(domain.Theater{ID: 1, Name: "Cinema City"})
	c.AddRoom(domain.Room{ID: 1, TheaterID: 1, Name: "Hall 1", Seats: GridLayout(5, 10, 1)})
	c.AddRoom(domain.Room{ID: 2, TheaterID: 1, Name: "Hall 2", Seats: GridLayout(3, 8, 0)})
	c.AddCombo(domain.Combo{ID: 1, Name: "Popcorn + Soda", Price: decimal.NewFromInt(45000), Active: true})
	c.AddCombo(domain.Combo{ID: 2, Name: "Nachos", Price: decimal.NewFromInt(30000), Active: true})

	maxDiscount := decimal.NewFromInt(50000)
	minOrder := decimal.NewFromInt(200000)
	c.AddVoucher(domain.Voucher{
		Code:          "SAVE10",
		DiscountType:  domain.DiscountPercent,
		DiscountValue: decimal.NewFromInt(10),
		MaxDiscount:   &maxDiscount,
		MinOrderValue: &minOrder,
		ValidFrom:     now.AddDate(0, -1, 0),
		ValidUntil:    now.AddDate(1, 0, 0),
	})
}

// GridLayout builds rows A, B, ... of cols seats each. The last vipRows rows
// are VIP seats with a fixed surcharge.
func GridLayout(rows, cols, vipRows int) []domain.Seat {
	seats := make([]domain.Seat, 0, rows*cols)
	for r := range rows {
		row := string(rune('A' + r))
		class := domain.SeatClassStandard
		surcharge := decimal.Zero
		if r >= rows-vipRows {
			class = domain.SeatClassVIP
			surcharge = decimal.NewFromInt(20000)
		}

		for col := 1; col <= cols; col++ {
			seats = append(seats, domain.Seat{
				Code:      fmt.Sprintf("%s%d", row, col),
				Row:       row,
				Column:    col,
				Class:     class,
				Surcharge: surcharge,
			})
		}
	}
	return seats
}
