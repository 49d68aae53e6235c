package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdeck/sla-engine/internal/domain"
)

// TicketRepository exposes the ticket read model the automation needs.
// Full ticket CRUD belongs to the surrounding application.
type TicketRepository interface {
	FindActive(ctx context.Context, limit int) ([]domain.Ticket, error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	SetSlaBinding(ctx context.Context, ticketID, snapshotID string, responseDueAt, resolutionDueAt time.Time) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, external_key, subject, status, sla_snapshot_id,
       response_due_at, resolution_due_at, responded_at, created_at, updated_at`

// FindActive returns tickets whose SLA clock may still transition.
// Closed tickets are excluded once their paused state has been recorded.
func (r *ticketRepository) FindActive(ctx context.Context, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `
        SELECT ` + ticketColumns + `
        FROM tickets t
        WHERE t.status <> 'closed'
           OR NOT EXISTS (
                SELECT 1 FROM sla_clock_states cs
                WHERE cs.ticket_id = t.id AND cs.last_event_dispatched = 'paused')
        ORDER BY t.created_at
        LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets t WHERE t.id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.Subject,
		&ticket.Status,
		&ticket.SlaSnapshotID,
		&ticket.ResponseDueAt,
		&ticket.ResolutionDueAt,
		&ticket.RespondedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// SetSlaBinding stamps the frozen due dates computed at binding time.
func (r *ticketRepository) SetSlaBinding(ctx context.Context, ticketID, snapshotID string, responseDueAt, resolutionDueAt time.Time) error {
	const query = `
        UPDATE tickets SET sla_snapshot_id=$1, response_due_at=$2, resolution_due_at=$3, updated_at=NOW()
        WHERE id=$4`
	cmd, err := r.pool.Exec(ctx, query, snapshotID, responseDueAt, resolutionDueAt, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.ExternalKey,
			&ticket.Subject,
			&ticket.Status,
			&ticket.SlaSnapshotID,
			&ticket.ResponseDueAt,
			&ticket.ResolutionDueAt,
			&ticket.RespondedAt,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
