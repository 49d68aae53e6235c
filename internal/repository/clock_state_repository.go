package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdeck/sla-engine/internal/domain"
)

// ClockStateFn runs inside a per-ticket clock transaction. Returning
// true persists the (possibly mutated) state before commit; returning
// false commits without a write.
type ClockStateFn func(ctx context.Context, state *domain.SlaClockState) (bool, error)

// ClockStateRepository guards the per-ticket read-modify-write cycle.
// WithTicketClockLock holds an exclusive row lock for the duration of
// fn so two concurrent evaluators of the same ticket cannot both read
// stale state and double-dispatch. Evaluations of different tickets
// proceed fully in parallel.
type ClockStateRepository interface {
	WithTicketClockLock(ctx context.Context, ticketID string, fn ClockStateFn) error
	GetByTicketID(ctx context.Context, ticketID string) (*domain.SlaClockState, error)
}

type clockStateRepository struct {
	pool *pgxpool.Pool
}

// NewClockStateRepository instantiates repository.
func NewClockStateRepository(pool *pgxpool.Pool) ClockStateRepository {
	return &clockStateRepository{pool: pool}
}

const clockStateColumns = `id, ticket_id, last_event_dispatched, last_evaluated_at,
       sla_version_id, paused, escalation_stage, created_at, updated_at`

func (r *clockStateRepository) WithTicketClockLock(ctx context.Context, ticketID string, fn ClockStateFn) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	state, err := lockClockState(ctx, tx, ticketID)
	if errors.Is(err, pgx.ErrNoRows) {
		// first evaluation for this ticket: initialize, then lock the
		// row whichever evaluator won the insert race
		const insert = `
            INSERT INTO sla_clock_states (ticket_id, last_event_dispatched, escalation_stage, paused)
            VALUES ($1, $2, 0, FALSE)
            ON CONFLICT (ticket_id) DO NOTHING`
		if _, err := tx.Exec(ctx, insert, ticketID, domain.SlaStateNone); err != nil {
			return err
		}
		state, err = lockClockState(ctx, tx, ticketID)
	}
	if err != nil {
		return err
	}

	changed, err := fn(ctx, state)
	if err != nil {
		return err
	}
	if changed {
		const update = `
            UPDATE sla_clock_states
            SET last_event_dispatched=$1, last_evaluated_at=$2, sla_version_id=$3,
                paused=$4, escalation_stage=$5, updated_at=NOW()
            WHERE id=$6`
		if _, err := tx.Exec(ctx, update,
			state.LastEventDispatched,
			state.LastEvaluatedAt,
			state.SlaVersionID,
			state.Paused,
			state.EscalationStage,
			state.ID,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *clockStateRepository) GetByTicketID(ctx context.Context, ticketID string) (*domain.SlaClockState, error) {
	query := `SELECT ` + clockStateColumns + ` FROM sla_clock_states WHERE ticket_id=$1`
	return scanClockState(r.pool.QueryRow(ctx, query, ticketID))
}

func lockClockState(ctx context.Context, tx pgx.Tx, ticketID string) (*domain.SlaClockState, error) {
	query := `SELECT ` + clockStateColumns + ` FROM sla_clock_states WHERE ticket_id=$1 FOR UPDATE`
	return scanClockState(tx.QueryRow(ctx, query, ticketID))
}

func scanClockState(row pgx.Row) (*domain.SlaClockState, error) {
	var state domain.SlaClockState
	if err := row.Scan(
		&state.ID,
		&state.TicketID,
		&state.LastEventDispatched,
		&state.LastEvaluatedAt,
		&state.SlaVersionID,
		&state.Paused,
		&state.EscalationStage,
		&state.CreatedAt,
		&state.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &state, nil
}
