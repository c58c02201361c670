package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/showtime-booking/internal/domain"
	"github.com/shopspring/decimal"
)

type PostgresCatalogRepository struct {
	db *pgxpool.Pool
}

func NewPostgresCatalogRepository(db *pgxpool.Pool) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{
		db: db,
	}
}

func (p *PostgresCatalogRepository) GetMovie(ctx context.Context, id int) (*domain.Movie, error) {
	var m domain.Movie

	err := p.db.QueryRow(ctx, `SELECT id, title, duration_minutes FROM movies WHERE id = $1`, id).
		Scan(&m.ID, &m.Title, &m.DurationMinutes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.NotFoundError{Resource: "movie", ID: id}
	}
	if err != nil {
		return nil, storageErr("get movie", err)
	}

	return &m, nil
}

func (p *PostgresCatalogRepository) GetTheater(ctx context.Context, id int) (*domain.Theater, error) {
	var t domain.Theater

	err := p.db.QueryRow(ctx, `SELECT id, name FROM theaters WHERE id = $1`, id).Scan(&t.ID, &t.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.NotFoundError{Resource: "theater", ID: id}
	}
	if err != nil {
		return nil, storageErr("get theater", err)
	}

	return &t, nil
}

func (p *PostgresCatalogRepository) GetRoom(ctx context.Context, id int) (*domain.Room, error) {
	var room domain.Room

	err := p.db.QueryRow(ctx, `SELECT id, theater_id, name FROM rooms WHERE id = $1`, id).
		Scan(&room.ID, &room.TheaterID, &room.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.NotFoundError{Resource: "room", ID: id}
	}
	if err != nil {
		return nil, storageErr("get room", err)
	}

	query := `
		SELECT seat_code, seat_row, seat_col, seat_class, surcharge
		FROM room_seats
		WHERE room_id = $1
		ORDER BY seat_row, seat_col
	`

	rows, err := p.db.Query(ctx, query, id)
	if err != nil {
		return nil, storageErr("get room seats", err)
	}
	defer rows.Close()

	for rows.Next() {
		var seat domain.Seat

		err = rows.Scan(&seat.Code, &seat.Row, &seat.Column, &seat.Class, &seat.Surcharge)
		if err != nil {
			return nil, storageErr("get room seats", err)
		}

		room.Seats = append(room.Seats, seat)
	}

	if err = rows.Err(); err != nil {
		return nil, storageErr("get room seats", err)
	}

	return &room, nil
}

func (p *PostgresCatalogRepository) GetCombos(ctx context.Context, ids []int) ([]domain.Combo, error) {
	if len(ids) == 0 {
		return []domain.Combo{}, nil
	}

	rows, err := p.db.Query(ctx, `SELECT id, name, price, active FROM combos WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, storageErr("get combos", err)
	}
	defer rows.Close()

	byID := make(map[int]domain.Combo, len(ids))

	for rows.Next() {
		var c domain.Combo

		err = rows.Scan(&c.ID, &c.Name, &c.Price, &c.Active)
		if err != nil {
			return nil, storageErr("get combos", err)
		}

		byID[c.ID] = c
	}

	if err = rows.Err(); err != nil {
		return nil, storageErr("get combos", err)
	}

	combos := make([]domain.Combo, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, &domain.NotFoundError{Resource: "combo", ID: id}
		}
		combos = append(combos, c)
	}

	return combos, nil
}

func (p *PostgresCatalogRepository) GetVoucher(ctx context.Context, code string) (*domain.Voucher, error) {
	query := `
		SELECT code, discount_type, discount_value, max_discount, min_order_value, valid_from, valid_until
		FROM vouchers
		WHERE UPPER(code) = UPPER($1)
	`

	var (
		v           domain.Voucher
		maxDiscount decimal.NullDecimal
		minOrder    decimal.NullDecimal
	)

	err := p.db.QueryRow(ctx, query, code).Scan(
		&v.Code,
		&v.DiscountType,
		&v.DiscountValue,
		&maxDiscount,
		&minOrder,
		&v.ValidFrom,
		&v.ValidUntil,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.NotFoundError{Resource: "voucher", ID: code}
	}
	if err != nil {
		return nil, storageErr("get voucher", err)
	}

	v.MaxDiscount = nullDecimalPtr(maxDiscount)
	v.MinOrderValue = nullDecimalPtr(minOrder)

	return &v, nil
}

func nullDecimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	return &d.Decimal
}

func decimalPtrValue(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
