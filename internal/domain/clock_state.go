package domain

import "time"

// SlaState is the automation verdict for a ticket at evaluation time.
// States are recomputed from scratch every evaluation, never advanced
// incrementally, which makes re-evaluation idempotent by construction.
type SlaState string

const (
	SlaStateNone     SlaState = "none"
	SlaStateActive   SlaState = "active"
	SlaStateWarning  SlaState = "warning"
	SlaStateBreached SlaState = "breached"
	SlaStatePaused   SlaState = "paused"
)

// SlaClockState is the per-ticket persisted record of the last SLA
// state dispatched. It is owned exclusively by the automation service
// for the duration of one evaluation transaction.
type SlaClockState struct {
	ID                  string
	TicketID            string
	LastEventDispatched SlaState
	LastEvaluatedAt     *time.Time
	SlaVersionID        *string
	Paused              bool
	EscalationStage     int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewSlaClockState returns a fresh pre-initialization state for a ticket.
func NewSlaClockState(ticketID string) *SlaClockState {
	return &SlaClockState{
		TicketID:            ticketID,
		LastEventDispatched: SlaStateNone,
		EscalationStage:     0,
	}
}
