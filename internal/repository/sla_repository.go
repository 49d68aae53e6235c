package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdeck/sla-engine/internal/domain"
)

// SlaRepository persists SLA definitions and their frozen snapshots.
type SlaRepository interface {
	CreateDefinition(ctx context.Context, definition *domain.SlaDefinition) error
	GetDefinitionByID(ctx context.Context, id string) (*domain.SlaDefinition, error)
	UpdateDefinitionStatus(ctx context.Context, definition *domain.SlaDefinition) error
	CreateSnapshot(ctx context.Context, snapshot *domain.SlaSnapshot) error
	GetSnapshotByUUID(ctx context.Context, snapshotUUID string) (*domain.SlaSnapshot, error)
}

type slaRepository struct {
	pool      *pgxpool.Pool
	calendars CalendarRepository
}

// NewSlaRepository instantiates repository.
func NewSlaRepository(pool *pgxpool.Pool) SlaRepository {
	return &slaRepository{pool: pool, calendars: NewCalendarRepository(pool)}
}

func (r *slaRepository) CreateDefinition(ctx context.Context, definition *domain.SlaDefinition) error {
	rules, err := json.Marshal(definition.EscalationRules)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO sla_definitions (uuid, name, status, version_number, calendar_id,
            response_target_minutes, resolution_target_minutes, escalation_rules)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		definition.UUID,
		definition.Name,
		definition.Status,
		definition.VersionNumber,
		definition.Calendar.ID,
		definition.ResponseTargetMinutes,
		definition.ResolutionTargetMinutes,
		rules,
	).Scan(&definition.ID, &definition.CreatedAt, &definition.UpdatedAt)
}

func (r *slaRepository) GetDefinitionByID(ctx context.Context, id string) (*domain.SlaDefinition, error) {
	const query = `
        SELECT id, uuid, name, status, version_number, calendar_id,
               response_target_minutes, resolution_target_minutes, escalation_rules,
               created_at, updated_at
        FROM sla_definitions WHERE id=$1`

	var definition domain.SlaDefinition
	var calendarID string
	var rules []byte
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&definition.ID,
		&definition.UUID,
		&definition.Name,
		&definition.Status,
		&definition.VersionNumber,
		&calendarID,
		&definition.ResponseTargetMinutes,
		&definition.ResolutionTargetMinutes,
		&rules,
		&definition.CreatedAt,
		&definition.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rules, &definition.EscalationRules); err != nil {
		return nil, err
	}
	calendar, err := r.calendars.GetByID(ctx, calendarID)
	if err != nil {
		return nil, err
	}
	definition.Calendar = calendar
	return &definition, nil
}

func (r *slaRepository) UpdateDefinitionStatus(ctx context.Context, definition *domain.SlaDefinition) error {
	const query = `UPDATE sla_definitions SET status=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, definition.Status, definition.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slaRepository) CreateSnapshot(ctx context.Context, snapshot *domain.SlaSnapshot) error {
	calendarSnapshot, err := json.Marshal(snapshot.CalendarSnapshot)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO sla_snapshots (uuid, bound_entity_id, sla_original_id, sla_version_at_binding,
            sla_name_at_binding, response_target_minutes, resolution_target_minutes,
            calendar_snapshot, bound_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		snapshot.UUID,
		snapshot.BoundEntityID,
		snapshot.SlaOriginalID,
		snapshot.SlaVersionAtBinding,
		snapshot.SlaNameAtBinding,
		snapshot.ResponseTargetMinutes,
		snapshot.ResolutionTargetMinutes,
		calendarSnapshot,
		snapshot.BoundAt,
	).Scan(&snapshot.ID)
}

func (r *slaRepository) GetSnapshotByUUID(ctx context.Context, snapshotUUID string) (*domain.SlaSnapshot, error) {
	const query = `
        SELECT id, uuid, bound_entity_id, sla_original_id, sla_version_at_binding,
               sla_name_at_binding, response_target_minutes, resolution_target_minutes,
               calendar_snapshot, bound_at
        FROM sla_snapshots WHERE uuid=$1`

	var snapshot domain.SlaSnapshot
	var calendarSnapshot []byte
	if err := r.pool.QueryRow(ctx, query, snapshotUUID).Scan(
		&snapshot.ID,
		&snapshot.UUID,
		&snapshot.BoundEntityID,
		&snapshot.SlaOriginalID,
		&snapshot.SlaVersionAtBinding,
		&snapshot.SlaNameAtBinding,
		&snapshot.ResponseTargetMinutes,
		&snapshot.ResolutionTargetMinutes,
		&calendarSnapshot,
		&snapshot.BoundAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(calendarSnapshot, &snapshot.CalendarSnapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}
