package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdeck/sla-engine/internal/domain"
)

// CalendarRepository encapsulates calendar persistence.
type CalendarRepository interface {
	Create(ctx context.Context, calendar *domain.Calendar) error
	GetByID(ctx context.Context, id string) (*domain.Calendar, error)
	GetDefault(ctx context.Context) (*domain.Calendar, error)
	List(ctx context.Context, limit, offset int) ([]domain.Calendar, error)
}

type calendarRepository struct {
	pool *pgxpool.Pool
}

// NewCalendarRepository instantiates repository.
func NewCalendarRepository(pool *pgxpool.Pool) CalendarRepository {
	return &calendarRepository{pool: pool}
}

func (r *calendarRepository) Create(ctx context.Context, calendar *domain.Calendar) error {
	windows, err := json.Marshal(calendar.WorkingWindows)
	if err != nil {
		return err
	}
	holidays, err := json.Marshal(calendar.Holidays)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO calendars (uuid, name, time_zone, working_windows, holidays, is_default)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		calendar.UUID,
		calendar.Name,
		calendar.TimeZone,
		windows,
		holidays,
		calendar.IsDefault,
	).Scan(&calendar.ID, &calendar.CreatedAt, &calendar.UpdatedAt)
}

func (r *calendarRepository) GetByID(ctx context.Context, id string) (*domain.Calendar, error) {
	const query = `
        SELECT id, uuid, name, time_zone, working_windows, holidays, is_default, created_at, updated_at
        FROM calendars WHERE id=$1`
	return scanCalendar(r.pool.QueryRow(ctx, query, id))
}

func (r *calendarRepository) GetDefault(ctx context.Context) (*domain.Calendar, error) {
	const query = `
        SELECT id, uuid, name, time_zone, working_windows, holidays, is_default, created_at, updated_at
        FROM calendars WHERE is_default LIMIT 1`
	return scanCalendar(r.pool.QueryRow(ctx, query))
}

func (r *calendarRepository) List(ctx context.Context, limit, offset int) ([]domain.Calendar, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, uuid, name, time_zone, working_windows, holidays, is_default, created_at, updated_at
        FROM calendars ORDER BY name LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Calendar
	for rows.Next() {
		calendar, err := scanCalendar(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *calendar)
	}
	return result, rows.Err()
}

func scanCalendar(row pgx.Row) (*domain.Calendar, error) {
	var calendar domain.Calendar
	var windows, holidays []byte
	if err := row.Scan(
		&calendar.ID,
		&calendar.UUID,
		&calendar.Name,
		&calendar.TimeZone,
		&windows,
		&holidays,
		&calendar.IsDefault,
		&calendar.CreatedAt,
		&calendar.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(windows, &calendar.WorkingWindows); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(holidays, &calendar.Holidays); err != nil {
		return nil, err
	}
	return &calendar, nil
}
