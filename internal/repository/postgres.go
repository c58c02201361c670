package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/showtime-booking/internal/domain"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func runInTx(ctx context.Context, db *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	var txOptions pgx.TxOptions

	tx, err := db.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}

	err = fn(tx)
	if err == nil {
		return tx.Commit(ctx)
	}

	rollbackErr := tx.Rollback(ctx)
	if rollbackErr != nil {
		return errors.Join(err, rollbackErr)
	}

	return err
}

// storageErr leaves domain errors untouched and wraps everything else as a
// persistence failure of op.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}

	var (
		notFound     *domain.NotFoundError
		conflict     *domain.ConflictError
		seatConflict *domain.SeatConflictError
		invalidState *domain.InvalidStateError
		validation   *domain.ValidationError
		voucher      *domain.InvalidVoucherError
	)

	switch {
	case errors.As(err, &notFound),
		errors.As(err, &conflict),
		errors.As(err, &seatConflict),
		errors.As(err, &invalidState),
		errors.As(err, &validation),
		errors.As(err, &voucher):
		return err
	}

	return &domain.PersistenceError{Op: op, Err: err}
}

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
