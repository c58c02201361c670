package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/showtime-booking/internal/domain"
)

const scheduleColumns = `id, movie_id, theater_id, room_id, start_time, end_time, price,
	is_3d, subtitled, dubbed, active, created_at, updated_at`

type PostgresScheduleRepository struct {
	db *pgxpool.Pool
}

func NewPostgresScheduleRepository(db *pgxpool.Pool) *PostgresScheduleRepository {
	return &PostgresScheduleRepository{
		db: db,
	}
}

func scanSchedule(row scanner) (domain.Schedule, error) {
	var s domain.Schedule

	err := row.Scan(
		&s.ID,
		&s.MovieID,
		&s.TheaterID,
		&s.RoomID,
		&s.StartTime,
		&s.EndTime,
		&s.Price,
		&s.Attributes.Is3D,
		&s.Attributes.Subtitled,
		&s.Attributes.Dubbed,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
	)

	return s, err
}

func (p *PostgresScheduleRepository) Create(ctx context.Context, schedule *domain.Schedule) error {
	query := `
		INSERT INTO schedules (movie_id, theater_id, room_id, start_time, end_time, price, is_3d, subtitled, dubbed, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	err := p.db.QueryRow(
		ctx,
		query,
		schedule.MovieID,
		schedule.TheaterID,
		schedule.RoomID,
		schedule.StartTime,
		schedule.EndTime,
		schedule.Price,
		schedule.Attributes.Is3D,
		schedule.Attributes.Subtitled,
		schedule.Attributes.Dubbed,
		schedule.Active,
	).Scan(&schedule.ID, &schedule.CreatedAt, &schedule.UpdatedAt)

	if pgErrCode(err) == pgerrcode.ExclusionViolation {
		return p.overlapConflict(ctx, schedule)
	}

	return storageErr("create schedule", err)
}

func (p *PostgresScheduleRepository) Update(ctx context.Context, schedule *domain.Schedule) error {
	query := `
		UPDATE schedules
		SET movie_id = $2, theater_id = $3, room_id = $4, start_time = $5, end_time = $6, price = $7,
			is_3d = $8, subtitled = $9, dubbed = $10, active = $11, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at
	`

	err := p.db.QueryRow(
		ctx,
		query,
		schedule.ID,
		schedule.MovieID,
		schedule.TheaterID,
		schedule.RoomID,
		schedule.StartTime,
		schedule.EndTime,
		schedule.Price,
		schedule.Attributes.Is3D,
		schedule.Attributes.Subtitled,
		schedule.Attributes.Dubbed,
		schedule.Active,
	).Scan(&schedule.UpdatedAt)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return &domain.NotFoundError{Resource: "schedule", ID: schedule.ID}
	case pgErrCode(err) == pgerrcode.ExclusionViolation:
		return p.overlapConflict(ctx, schedule)
	}

	return storageErr("update schedule", err)
}

// overlapConflict reports the schedule that made the exclusion constraint fire.
func (p *PostgresScheduleRepository) overlapConflict(ctx context.Context, schedule *domain.Schedule) error {
	query := `
		SELECT id FROM schedules
		WHERE room_id = $1 AND id <> $2 AND active AND deleted_at IS NULL
			AND start_time < $4 AND end_time > $3
		ORDER BY start_time
		LIMIT 1
	`

	var id int
	err := p.db.QueryRow(ctx, query, schedule.RoomID, schedule.ID, schedule.StartTime, schedule.EndTime).Scan(&id)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return storageErr("find overlapping schedule", err)
	}

	return &domain.ConflictError{Reason: "room is already booked for an overlapping schedule", ScheduleID: id}
}

func (p *PostgresScheduleRepository) GetById(ctx context.Context, id int) (*domain.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1 AND deleted_at IS NULL`

	s, err := scanSchedule(p.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.NotFoundError{Resource: "schedule", ID: id}
	}
	if err != nil {
		return nil, storageErr("get schedule", err)
	}

	return &s, nil
}

// Delete soft-deletes the schedule unless a pending or confirmed reservation
// references it. The check and the write are one statement.
func (p *PostgresScheduleRepository) Delete(ctx context.Context, id int) error {
	query := `
		UPDATE schedules
		SET active = FALSE, deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
			AND NOT EXISTS (
				SELECT 1 FROM reservations
				WHERE schedule_id = $1 AND status IN ('pending', 'confirmed')
			)
	`

	tag, err := p.db.Exec(ctx, query, id)
	if err != nil {
		return storageErr("delete schedule", err)
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	_, err = p.GetById(ctx, id)
	if err != nil {
		return err
	}

	return &domain.ConflictError{Reason: "schedule has active reservations", ScheduleID: id}
}

func (p *PostgresScheduleRepository) ListByRoom(ctx context.Context, roomID int, from, to time.Time) ([]domain.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE room_id = $1 AND active AND deleted_at IS NULL
			AND start_time < $3 AND end_time > $2
		ORDER BY start_time, id
	`

	rows, err := p.db.Query(ctx, query, roomID, from, to)
	if err != nil {
		return nil, storageErr("list room schedules", err)
	}
	defer rows.Close()

	schedules := make([]domain.Schedule, 0)

	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, storageErr("list room schedules", err)
		}

		schedules = append(schedules, s)
	}

	if err = rows.Err(); err != nil {
		return nil, storageErr("list room schedules", err)
	}

	return schedules, nil
}

func (p *PostgresScheduleRepository) List(
	ctx context.Context,
	filter domain.ScheduleFilter,
	pagination domain.Pagination) ([]domain.Schedule, *domain.Metadata, error) {

	conditions := []string{"deleted_at IS NULL"}
	args := []any{}

	where := func(condition string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if filter.ActiveOnly {
		conditions = append(conditions, "active")
	}
	if filter.MovieID != nil {
		where("movie_id = $%d", *filter.MovieID)
	}
	if filter.TheaterID != nil {
		where("theater_id = $%d", *filter.TheaterID)
	}
	if filter.RoomID != nil {
		where("room_id = $%d", *filter.RoomID)
	}
	if filter.Date != nil {
		day := time.Date(filter.Date.Year(), filter.Date.Month(), filter.Date.Day(), 0, 0, 0, 0, filter.Date.Location())
		where("start_time >= $%d", day)
		where("start_time < $%d", day.AddDate(0, 0, 1))
	}

	query := fmt.Sprintf(`
		SELECT COUNT(*) OVER(), %s
		FROM schedules
		WHERE %s
		ORDER BY start_time, id
		LIMIT $%d OFFSET $%d
	`, scheduleColumns, strings.Join(conditions, " AND "), len(args)+1, len(args)+2)

	args = append(args, pagination.Limit(), pagination.Offset())

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, storageErr("list schedules", err)
	}
	defer rows.Close()

	schedules := make([]domain.Schedule, 0)
	totalRecords := 0

	for rows.Next() {
		var s domain.Schedule

		err := rows.Scan(
			&totalRecords,
			&s.ID,
			&s.MovieID,
			&s.TheaterID,
			&s.RoomID,
			&s.StartTime,
			&s.EndTime,
			&s.Price,
			&s.Attributes.Is3D,
			&s.Attributes.Subtitled,
			&s.Attributes.Dubbed,
			&s.Active,
			&s.CreatedAt,
			&s.UpdatedAt,
		)
		if err != nil {
			return nil, nil, storageErr("list schedules", err)
		}

		schedules = append(schedules, s)
	}

	if err = rows.Err(); err != nil {
		return nil, nil, storageErr("list schedules", err)
	}

	return schedules, domain.NewMetadata(totalRecords, pagination), nil
}
