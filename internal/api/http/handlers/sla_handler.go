package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/opsdeck/sla-engine/internal/repository"
	"github.com/opsdeck/sla-engine/internal/service"
	"github.com/opsdeck/sla-engine/internal/worker"
	apperrors "github.com/opsdeck/sla-engine/pkg/util/errorutil"
)

// SlaHandler exposes operational SLA endpoints: a manual batch trigger
// and per-ticket clock inspection.
type SlaHandler struct {
	worker      *worker.SlaWorker
	clock       *service.ClockService
	tickets     repository.TicketRepository
	clockStates repository.ClockStateRepository
	slas        repository.SlaRepository
}

// NewSlaHandler returns a new handler instance.
func NewSlaHandler(w *worker.SlaWorker, clock *service.ClockService, tickets repository.TicketRepository, clockStates repository.ClockStateRepository, slas repository.SlaRepository) *SlaHandler {
	return &SlaHandler{worker: w, clock: clock, tickets: tickets, clockStates: clockStates, slas: slas}
}

// Run triggers one automation batch. Manual runs share the scheduled
// runs' lock, so an overlapping invocation is skipped rather than
// doubled up.
func (h *SlaHandler) Run(c *fiber.Ctx) error {
	if err := h.worker.RunOnce(c.UserContext()); err != nil {
		return apperrors.MapError(err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "completed",
	})
}

// TicketClock reports the ticket's persisted clock state plus its
// current usage percentages measured against the bound snapshot.
func (h *SlaHandler) TicketClock(c *fiber.Ctx) error {
	ticketID := c.Params("id")
	ticket, err := h.tickets.GetByID(c.UserContext(), ticketID)
	if err != nil {
		return apperrors.MapError(err)
	}

	response := fiber.Map{
		"ticket_id":         ticket.ID,
		"status":            ticket.Status,
		"response_due_at":   ticket.ResponseDueAt,
		"resolution_due_at": ticket.ResolutionDueAt,
	}

	if state, err := h.clockStates.GetByTicketID(c.UserContext(), ticketID); err == nil {
		response["last_event_dispatched"] = state.LastEventDispatched
		response["last_evaluated_at"] = state.LastEvaluatedAt
		response["escalation_stage"] = state.EscalationStage
	}

	if ticket.SlaSnapshotID != nil {
		snapshot, err := h.slas.GetSnapshotByUUID(c.UserContext(), *ticket.SlaSnapshotID)
		if err != nil {
			return apperrors.MapError(err)
		}
		now := time.Now()
		responseUsed, err := h.clock.CalculateUsagePercent(ticket.CreatedAt, now, snapshot.ResponseTargetMinutes, snapshot.CalendarSnapshot)
		if err != nil {
			return apperrors.MapError(err)
		}
		resolutionUsed, err := h.clock.CalculateUsagePercent(ticket.CreatedAt, now, snapshot.ResolutionTargetMinutes, snapshot.CalendarSnapshot)
		if err != nil {
			return apperrors.MapError(err)
		}
		response["sla_name"] = snapshot.SlaNameAtBinding
		response["response_used_percent"] = responseUsed
		response["resolution_used_percent"] = resolutionUsed
	}

	return c.JSON(response)
}
