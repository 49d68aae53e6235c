package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsdeck/sla-engine/internal/domain"
	"github.com/opsdeck/sla-engine/internal/events"
	"github.com/opsdeck/sla-engine/internal/observability"
	"github.com/opsdeck/sla-engine/internal/repository"
)

// warningWindow is how long before a due date a ticket enters warning.
const warningWindow = time.Hour

// AutomationService drives the SLA state machine: it recomputes each
// ticket's state from current time versus its due dates and emits an
// event at most once per state transition.
type AutomationService struct {
	tickets     repository.TicketRepository
	clockStates repository.ClockStateRepository
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	metrics     *observability.Metrics
	batchLimit  int
	now         func() time.Time
}

// AutomationDependencies bundles collaborators for the automation service.
type AutomationDependencies struct {
	TicketRepo     repository.TicketRepository
	ClockStateRepo repository.ClockStateRepository
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	BatchLimit     int
}

// NewAutomationService constructs the service.
func NewAutomationService(deps AutomationDependencies) *AutomationService {
	return &AutomationService{
		tickets:     deps.TicketRepo,
		clockStates: deps.ClockStateRepo,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		batchLimit:  deps.BatchLimit,
		now:         time.Now,
	}
}

// DetermineState derives the SLA state for a ticket at the given
// instant. The checks run in fixed priority order; the state is always
// recomputed from scratch, never advanced incrementally.
func (s *AutomationService) DetermineState(ticket *domain.Ticket, now time.Time) domain.SlaState {
	if ticket.Status.IsClockPaused() {
		return domain.SlaStatePaused
	}
	if ticket.ResolutionDueAt != nil && now.After(*ticket.ResolutionDueAt) {
		return domain.SlaStateBreached
	}
	unresponded := ticket.RespondedAt == nil
	if ticket.ResponseDueAt != nil && unresponded && now.After(*ticket.ResponseDueAt) {
		return domain.SlaStateBreached
	}
	if ticket.ResolutionDueAt != nil && now.After(ticket.ResolutionDueAt.Add(-warningWindow)) {
		return domain.SlaStateWarning
	}
	if ticket.ResponseDueAt != nil && unresponded && now.After(ticket.ResponseDueAt.Add(-warningWindow)) {
		return domain.SlaStateWarning
	}
	return domain.SlaStateActive
}

// Evaluate runs one state-machine step for a single ticket under the
// ticket's exclusive clock lock. When the derived state equals the last
// dispatched one it neither publishes nor writes.
func (s *AutomationService) Evaluate(ctx context.Context, ticket *domain.Ticket) error {
	now := s.now()
	return s.clockStates.WithTicketClockLock(ctx, ticket.ID, func(ctx context.Context, state *domain.SlaClockState) (bool, error) {
		newState := s.DetermineState(ticket, now)
		if newState == state.LastEventDispatched {
			return false, nil
		}

		switch newState {
		case domain.SlaStateWarning:
			s.publishEvent(ctx, events.Event{
				Type:     events.EventSlaTicketWarning,
				TicketID: ticket.ID,
				Payload:  events.TicketWarningPayload{TicketID: ticket.ID},
			})
		case domain.SlaStateBreached:
			s.publishEvent(ctx, events.Event{
				Type:     events.EventSlaTicketBreached,
				TicketID: ticket.ID,
				Payload:  events.TicketBreachedPayload{TicketID: ticket.ID},
			})
			// escalation is a one-shot action per clock-state lifetime
			if state.EscalationStage == 0 {
				state.EscalationStage = 1
				s.publishEvent(ctx, events.Event{
					Type:     events.EventSlaEscalationTriggered,
					TicketID: ticket.ID,
					Payload:  events.EscalationTriggeredPayload{TicketID: ticket.ID, Stage: state.EscalationStage},
				})
			}
		}

		state.LastEventDispatched = newState
		state.Paused = newState == domain.SlaStatePaused
		state.SlaVersionID = ticket.SlaSnapshotID
		evaluatedAt := now
		state.LastEvaluatedAt = &evaluatedAt
		s.metrics.RecordTransition(string(newState))
		return true, nil
	})
}

// RunSlaCheck evaluates every active ticket. A failure on one ticket is
// logged and never aborts the rest of the batch.
func (s *AutomationService) RunSlaCheck(ctx context.Context) error {
	tickets, err := s.tickets.FindActive(ctx, s.batchLimit)
	if err != nil {
		return err
	}

	failures := 0
	for i := range tickets {
		err := s.Evaluate(ctx, &tickets[i])
		s.metrics.RecordEvaluation(err != nil)
		if err != nil {
			failures++
			s.logger.Error("sla evaluation failed",
				zap.String("ticket_id", tickets[i].ID),
				zap.Error(err))
		}
	}

	s.logger.Info("sla check completed",
		zap.Int("tickets", len(tickets)),
		zap.Int("failures", failures))
	return nil
}

func (s *AutomationService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	// fire and forget: subscriber outcome never rolls back clock state
	_ = s.dispatcher.Publish(ctx, event)
	s.metrics.RecordEventPublished(string(event.Type))
}
