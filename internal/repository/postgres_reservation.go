package repository

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/showtime-booking/internal/domain"
	"github.com/shopspring/decimal"
)

const reservationColumns = `id, user_id, schedule_id, status,
	voucher_code, voucher_type, voucher_value, voucher_max_discount, voucher_min_order_value,
	subtotal, discount, tax, service_fee, total_amount, currency,
	payment_method, payment_transaction_id, payment_status, paid_at, payment_failure_reason,
	qr_code, contact_email, hold_token, created_at, updated_at, expires_at,
	cancelled_by, cancelled_at, cancellation_reason`

// PostgresReservationRepository enforces the one-active-claim-per-seat rule
// with the partial unique index on reservation_seats(schedule_id, seat_code).
type PostgresReservationRepository struct {
	db *pgxpool.Pool
}

func NewPostgresReservationRepository(db *pgxpool.Pool) *PostgresReservationRepository {
	return &PostgresReservationRepository{
		db: db,
	}
}

func (p *PostgresReservationRepository) Create(ctx context.Context, reservation *domain.Reservation, now time.Time) error {
	codes := reservation.SeatCodes()

	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		var active bool
		err := tx.QueryRow(ctx,
			`SELECT active FROM schedules WHERE id = $1 AND deleted_at IS NULL FOR SHARE`,
			reservation.ScheduleID).Scan(&active)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && !active) {
			return &domain.NotFoundError{Resource: "schedule", ID: reservation.ScheduleID}
		}
		if err != nil {
			return err
		}

		err = expireLapsedHolders(ctx, tx, reservation.ScheduleID, codes, now)
		if err != nil {
			return err
		}

		conflicts, err := activeSeatConflicts(ctx, tx, reservation.ScheduleID, codes)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &domain.SeatConflictError{Seats: conflicts}
		}

		reservation.CreatedAt = now
		reservation.UpdatedAt = now

		err = insertReservation(ctx, tx, reservation)
		if err != nil {
			return err
		}

		return insertLines(ctx, tx, reservation)
	})

	switch pgErrCode(err) {
	case pgerrcode.UniqueViolation, pgerrcode.DeadlockDetected:
		// a concurrent claim on the same seats won the race
		conflicts, qErr := activeSeatConflicts(ctx, p.db, reservation.ScheduleID, codes)
		if qErr != nil {
			return storageErr("create reservation", qErr)
		}
		if len(conflicts) == 0 {
			conflicts = codes
		}
		return &domain.SeatConflictError{Seats: conflicts}
	}

	return storageErr("create reservation", err)
}

// expireLapsedHolders expires pending reservations on the given seats whose
// hold ended at or before now, so their seats can be claimed again.
func expireLapsedHolders(ctx context.Context, tx pgx.Tx, scheduleID int, codes []string, now time.Time) error {
	query := `
		UPDATE reservations r
		SET status = 'expired', updated_at = $3
		WHERE r.schedule_id = $1 AND r.status = 'pending' AND r.expires_at <= $3
			AND EXISTS (
				SELECT 1 FROM reservation_seats rs
				WHERE rs.reservation_id = r.id AND rs.released_at IS NULL AND rs.seat_code = ANY($2)
			)
		RETURNING r.id
	`

	rows, err := tx.Query(ctx, query, scheduleID, codes, now)
	if err != nil {
		return err
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return err
	}

	return releaseSeats(ctx, tx, ids, now)
}

func releaseSeats(ctx context.Context, q querier, reservationIDs []int, at time.Time) error {
	if len(reservationIDs) == 0 {
		return nil
	}

	_, err := q.Exec(ctx,
		`UPDATE reservation_seats SET released_at = $2 WHERE reservation_id = ANY($1) AND released_at IS NULL`,
		reservationIDs, at)

	return err
}

func activeSeatConflicts(ctx context.Context, q querier, scheduleID int, codes []string) ([]string, error) {
	query := `
		SELECT seat_code
		FROM reservation_seats
		WHERE schedule_id = $1 AND seat_code = ANY($2) AND released_at IS NULL
		ORDER BY seat_code
	`

	rows, err := q.Query(ctx, query, scheduleID, codes)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func insertReservation(ctx context.Context, tx pgx.Tx, r *domain.Reservation) error {
	query := `
		INSERT INTO reservations (
			user_id, schedule_id, status,
			voucher_code, voucher_type, voucher_value, voucher_max_discount, voucher_min_order_value,
			subtotal, discount, tax, service_fee, total_amount, currency,
			payment_method, payment_transaction_id, payment_status,
			qr_code, contact_email, hold_token, created_at, updated_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		RETURNING id
	`

	var (
		voucherCode  *string
		voucherType  *string
		voucherValue decimal.NullDecimal
		maxDiscount  decimal.NullDecimal
		minOrder     decimal.NullDecimal
	)

	if v := r.Voucher; v != nil {
		code, kind := v.Code, string(v.DiscountType)
		voucherCode, voucherType = &code, &kind
		voucherValue = decimal.NullDecimal{Decimal: v.DiscountValue, Valid: true}
		maxDiscount = decimalPtrValue(v.MaxDiscount)
		minOrder = decimalPtrValue(v.MinOrderValue)
	}

	return tx.QueryRow(
		ctx,
		query,
		r.UserID,
		r.ScheduleID,
		r.Status,
		voucherCode,
		voucherType,
		voucherValue,
		maxDiscount,
		minOrder,
		r.Subtotal,
		r.Discount,
		r.Tax,
		r.ServiceFee,
		r.TotalAmount,
		r.Currency,
		r.Payment.Method,
		r.Payment.TransactionID,
		r.Payment.Status,
		r.QRCode,
		r.ContactEmail,
		r.HoldToken,
		r.CreatedAt,
		r.UpdatedAt,
		r.ExpiresAt,
	).Scan(&r.ID)
}

// insertLines copies seat rows in seat code order so concurrent claims take
// the unique index entries in the same order.
func insertLines(ctx context.Context, tx pgx.Tx, r *domain.Reservation) error {
	seats := slices.SortedFunc(slices.Values(r.Seats), func(a, b domain.SeatLine) int {
		return strings.Compare(a.Code, b.Code)
	})

	seatRows := make([][]any, 0, len(seats))
	for _, seat := range seats {
		seatRows = append(seatRows, []any{r.ID, r.ScheduleID, seat.Code, string(seat.Class), seat.Price})
	}

	_, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"reservation_seats"},
		[]string{"reservation_id", "schedule_id", "seat_code", "seat_class", "price"},
		pgx.CopyFromRows(seatRows),
	)
	if err != nil {
		return err
	}

	if len(r.Combos) == 0 {
		return nil
	}

	comboRows := make([][]any, 0, len(r.Combos))
	for _, combo := range r.Combos {
		comboRows = append(comboRows, []any{r.ID, combo.ComboID, combo.Name, combo.Quantity, combo.Price})
	}

	_, err = tx.CopyFrom(
		ctx,
		pgx.Identifier{"reservation_combos"},
		[]string{"reservation_id", "combo_id", "name", "quantity", "price"},
		pgx.CopyFromRows(comboRows),
	)

	return err
}

func scanReservation(row scanner) (*domain.Reservation, error) {
	var (
		r            domain.Reservation
		voucherCode  *string
		voucherType  *string
		voucherValue decimal.NullDecimal
		maxDiscount  decimal.NullDecimal
		minOrder     decimal.NullDecimal
	)

	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.ScheduleID,
		&r.Status,
		&voucherCode,
		&voucherType,
		&voucherValue,
		&maxDiscount,
		&minOrder,
		&r.Subtotal,
		&r.Discount,
		&r.Tax,
		&r.ServiceFee,
		&r.TotalAmount,
		&r.Currency,
		&r.Payment.Method,
		&r.Payment.TransactionID,
		&r.Payment.Status,
		&r.Payment.PaidAt,
		&r.Payment.FailureReason,
		&r.QRCode,
		&r.ContactEmail,
		&r.HoldToken,
		&r.CreatedAt,
		&r.UpdatedAt,
		&r.ExpiresAt,
		&r.CancelledBy,
		&r.CancelledAt,
		&r.CancellationReason,
	)
	if err != nil {
		return nil, err
	}

	if voucherCode != nil {
		r.Voucher = &domain.AppliedVoucher{
			Code:          *voucherCode,
			DiscountType:  domain.DiscountType(*voucherType),
			DiscountValue: voucherValue.Decimal,
			MaxDiscount:   nullDecimalPtr(maxDiscount),
			MinOrderValue: nullDecimalPtr(minOrder),
		}
	}

	return &r, nil
}

// loadLines fills the seat and combo snapshots of the given reservations.
func loadLines(ctx context.Context, q querier, reservations []*domain.Reservation) error {
	if len(reservations) == 0 {
		return nil
	}

	byID := make(map[int]*domain.Reservation, len(reservations))
	ids := make([]int, 0, len(reservations))
	for _, r := range reservations {
		byID[r.ID] = r
		ids = append(ids, r.ID)
	}

	rows, err := q.Query(ctx, `
		SELECT reservation_id, seat_code, seat_class, price
		FROM reservation_seats
		WHERE reservation_id = ANY($1)
		ORDER BY reservation_id, seat_code
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int
			line domain.SeatLine
		)

		err = rows.Scan(&id, &line.Code, &line.Class, &line.Price)
		if err != nil {
			return err
		}

		byID[id].Seats = append(byID[id].Seats, line)
	}

	if err = rows.Err(); err != nil {
		return err
	}

	comboRows, err := q.Query(ctx, `
		SELECT reservation_id, combo_id, name, quantity, price
		FROM reservation_combos
		WHERE reservation_id = ANY($1)
		ORDER BY reservation_id, combo_id
	`, ids)
	if err != nil {
		return err
	}
	defer comboRows.Close()

	for comboRows.Next() {
		var (
			id   int
			line domain.ComboLine
		)

		err = comboRows.Scan(&id, &line.ComboID, &line.Name, &line.Quantity, &line.Price)
		if err != nil {
			return err
		}

		byID[id].Combos = append(byID[id].Combos, line)
	}

	return comboRows.Err()
}

func (p *PostgresReservationRepository) GetById(ctx context.Context, id int) (*domain.Reservation, error) {
	r, err := getReservation(ctx, p.db, id, false)
	if err != nil {
		return nil, storageErr("get reservation", err)
	}

	return r, nil
}

func getReservation(ctx context.Context, q querier, id int, forUpdate bool) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	r, err := scanReservation(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.NotFoundError{Resource: "reservation", ID: id}
	}
	if err != nil {
		return nil, err
	}

	err = loadLines(ctx, q, []*domain.Reservation{r})
	if err != nil {
		return nil, err
	}

	return r, nil
}

func (p *PostgresReservationRepository) ListByUser(
	ctx context.Context,
	userID int,
	pagination domain.Pagination) ([]domain.Reservation, *domain.Metadata, error) {

	query := `
		SELECT COUNT(*) OVER(), ` + reservationColumns + `
		FROM reservations
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := p.db.Query(ctx, query, userID, pagination.Limit(), pagination.Offset())
	if err != nil {
		return nil, nil, storageErr("list user reservations", err)
	}
	defer rows.Close()

	var (
		found        []*domain.Reservation
		totalRecords int
	)

	for rows.Next() {
		r, err := scanReservation(countingScanner{rows, &totalRecords})
		if err != nil {
			return nil, nil, storageErr("list user reservations", err)
		}
		found = append(found, r)
	}

	if err = rows.Err(); err != nil {
		return nil, nil, storageErr("list user reservations", err)
	}
	rows.Close()

	err = loadLines(ctx, p.db, found)
	if err != nil {
		return nil, nil, storageErr("list user reservations", err)
	}

	reservations := make([]domain.Reservation, 0, len(found))
	for _, r := range found {
		reservations = append(reservations, *r)
	}

	return reservations, domain.NewMetadata(totalRecords, pagination), nil
}

// countingScanner prepends the window count column to a row scan.
type countingScanner struct {
	row   scanner
	total *int
}

func (c countingScanner) Scan(dest ...any) error {
	return c.row.Scan(append([]any{c.total}, dest...)...)
}

func (p *PostgresReservationRepository) SeatStates(ctx context.Context, scheduleID int, now time.Time) (map[string]domain.SeatState, error) {
	query := `
		SELECT rs.seat_code, r.status
		FROM reservation_seats rs
		JOIN reservations r ON r.id = rs.reservation_id
		WHERE rs.schedule_id = $1 AND rs.released_at IS NULL
			AND (r.status = 'confirmed' OR (r.status = 'pending' AND r.expires_at > $2))
	`

	rows, err := p.db.Query(ctx, query, scheduleID, now)
	if err != nil {
		return nil, storageErr("get seat states", err)
	}
	defer rows.Close()

	states := make(map[string]domain.SeatState)

	for rows.Next() {
		var (
			code   string
			status domain.ReservationStatus
		)

		err = rows.Scan(&code, &status)
		if err != nil {
			return nil, storageErr("get seat states", err)
		}

		states[code] = domain.SeatHeld
		if status == domain.ReservationConfirmed {
			states[code] = domain.SeatBooked
		}
	}

	if err = rows.Err(); err != nil {
		return nil, storageErr("get seat states", err)
	}

	return states, nil
}

func (p *PostgresReservationRepository) Transition(
	ctx context.Context,
	id int,
	from domain.ReservationStatus,
	mutate func(*domain.Reservation) error) (*domain.Reservation, error) {

	var next *domain.Reservation

	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		current, err := getReservation(ctx, tx, id, true)
		if err != nil {
			return err
		}

		if current.Status != from {
			return &domain.InvalidStateError{ReservationID: id, From: current.Status}
		}

		next = current.Clone()
		err = mutate(next)
		if err != nil {
			return err
		}

		query := `
			UPDATE reservations
			SET status = $3, payment_method = $4, payment_transaction_id = $5, payment_status = $6,
				paid_at = $7, payment_failure_reason = $8, qr_code = $9, updated_at = $10,
				cancelled_by = $11, cancelled_at = $12, cancellation_reason = $13
			WHERE id = $1 AND status = $2
		`

		tag, err := tx.Exec(
			ctx,
			query,
			id,
			from,
			next.Status,
			next.Payment.Method,
			next.Payment.TransactionID,
			next.Payment.Status,
			next.Payment.PaidAt,
			next.Payment.FailureReason,
			next.QRCode,
			next.UpdatedAt,
			next.CancelledBy,
			next.CancelledAt,
			next.CancellationReason,
		)
		if err != nil {
			return err
		}

		if tag.RowsAffected() != 1 {
			return &domain.InvalidStateError{ReservationID: id, From: current.Status}
		}

		if next.Status.HoldsSeats() {
			return nil
		}

		return releaseSeats(ctx, tx, []int{id}, next.UpdatedAt)
	})
	if err != nil {
		return nil, storageErr("transition reservation", err)
	}

	return next, nil
}

// ExpireStale is conditioned on status = 'pending' in the same statement, so a
// reservation confirmed after any earlier read is never expired.
func (p *PostgresReservationRepository) ExpireStale(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	var expired []*domain.Reservation

	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		query := `
			UPDATE reservations
			SET status = 'expired', updated_at = $1
			WHERE status = 'pending' AND expires_at <= $1
			RETURNING ` + reservationColumns

		rows, err := tx.Query(ctx, query, now)
		if err != nil {
			return err
		}

		for rows.Next() {
			r, err := scanReservation(rows)
			if err != nil {
				rows.Close()
				return err
			}
			expired = append(expired, r)
		}
		rows.Close()

		if err = rows.Err(); err != nil {
			return err
		}

		ids := make([]int, len(expired))
		for i, r := range expired {
			ids[i] = r.ID
		}

		err = releaseSeats(ctx, tx, ids, now)
		if err != nil {
			return err
		}

		return loadLines(ctx, tx, expired)
	})
	if err != nil {
		return nil, storageErr("expire stale reservations", err)
	}

	result := make([]domain.Reservation, len(expired))
	for i, r := range expired {
		result[i] = *r
	}

	return result, nil
}

func (p *PostgresReservationRepository) PurgeTerminal(ctx context.Context, before time.Time) (int, error) {
	query := `
		DELETE FROM reservations
		WHERE status IN ('cancelled', 'expired', 'refunded') AND updated_at < $1
	`

	tag, err := p.db.Exec(ctx, query, before)
	if err != nil {
		return 0, storageErr("purge terminal reservations", err)
	}

	return int(tag.RowsAffected()), nil
}

// RetireSchedule leaves the reference check to remove. The schedule delete
// is a single conditional UPDATE, and Create reads the schedule row FOR SHARE,
// so the two serialize on that row.
func (p *PostgresReservationRepository) RetireSchedule(ctx context.Context, scheduleID int, remove func(context.Context) error) error {
	return remove(ctx)
}
