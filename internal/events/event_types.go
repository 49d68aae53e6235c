package events

import "time"

// EventType enumerates supported event identifiers. Publishing a type
// nobody subscribed to is a no-op, not an error.
type EventType string

const (
	EventSlaTicketWarning       EventType = "sla_ticket_warning"
	EventSlaTicketBreached      EventType = "sla_ticket_breached"
	EventSlaEscalationTriggered EventType = "sla_escalation_triggered"
	EventSlaPublished           EventType = "sla_published"
	EventSlaBound               EventType = "sla_bound"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketWarningPayload payload.
type TicketWarningPayload struct {
	TicketID string `json:"ticket_id"`
}

// TicketBreachedPayload payload.
type TicketBreachedPayload struct {
	TicketID string `json:"ticket_id"`
}

// EscalationTriggeredPayload payload.
type EscalationTriggeredPayload struct {
	TicketID string `json:"ticket_id"`
	Stage    int    `json:"stage"`
}

// SlaPublishedPayload payload.
type SlaPublishedPayload struct {
	SlaUUID       string `json:"sla_uuid"`
	VersionNumber int    `json:"version_number"`
}

// SlaBoundPayload payload.
type SlaBoundPayload struct {
	SlaUUID       string  `json:"sla_uuid"`
	SnapshotUUID  string  `json:"snapshot_uuid"`
	BoundEntityID *string `json:"bound_entity_id,omitempty"`
}
