package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "new"
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusOnHold     TicketStatus = "on_hold"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// IsClockPaused reports whether the status suspends SLA measurement.
// Resolved and closed tickets must never breach retroactively.
func (s TicketStatus) IsClockPaused() bool {
	switch s {
	case TicketStatusPending, TicketStatusOnHold, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// Ticket is the read model the automation evaluates. Ticket CRUD lives
// in the surrounding application; this engine only reads status and the
// due-date fields stamped at SLA binding time.
type Ticket struct {
	ID              string
	ExternalKey     string
	Subject         string
	Status          TicketStatus
	SlaSnapshotID   *string
	ResponseDueAt   *time.Time
	ResolutionDueAt *time.Time
	RespondedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
