package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsdeck/sla-engine/internal/domain"
	"github.com/opsdeck/sla-engine/internal/events"
	"github.com/opsdeck/sla-engine/internal/repository"
)

// SlaService coordinates the definition lifecycle and snapshot binding.
type SlaService struct {
	calendars  repository.CalendarRepository
	slas       repository.SlaRepository
	tickets    repository.TicketRepository
	clock      *ClockService
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// SlaDependencies bundles repositories for the SLA service.
type SlaDependencies struct {
	CalendarRepo repository.CalendarRepository
	SlaRepo      repository.SlaRepository
	TicketRepo   repository.TicketRepository
	Clock        *ClockService
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// SlaCreateInput describes a new draft definition.
type SlaCreateInput struct {
	Name                    string
	CalendarID              *string
	ResponseTargetMinutes   int
	ResolutionTargetMinutes int
	EscalationRules         []domain.EscalationRule
}

// NewSlaService constructs the service.
func NewSlaService(deps SlaDependencies) *SlaService {
	return &SlaService{
		calendars:  deps.CalendarRepo,
		slas:       deps.SlaRepo,
		tickets:    deps.TicketRepo,
		clock:      deps.Clock,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// CreateDefinition validates and persists a draft SLA bound to the
// requested calendar, or the default calendar when none is given.
func (s *SlaService) CreateDefinition(ctx context.Context, input SlaCreateInput) (*domain.SlaDefinition, error) {
	var calendar *domain.Calendar
	var err error
	if input.CalendarID != nil {
		calendar, err = s.calendars.GetByID(ctx, *input.CalendarID)
	} else {
		calendar, err = s.calendars.GetDefault(ctx)
	}
	if err != nil {
		return nil, err
	}

	definition, err := domain.NewSlaDefinition(input.Name, calendar,
		input.ResponseTargetMinutes, input.ResolutionTargetMinutes, input.EscalationRules)
	if err != nil {
		return nil, err
	}
	if err := s.slas.CreateDefinition(ctx, definition); err != nil {
		return nil, err
	}
	return definition, nil
}

// PublishDefinition moves a draft to published and announces it.
func (s *SlaService) PublishDefinition(ctx context.Context, id string) (*domain.SlaDefinition, error) {
	definition, err := s.slas.GetDefinitionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := definition.Publish(); err != nil {
		return nil, err
	}
	if err := s.slas.UpdateDefinitionStatus(ctx, definition); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type: events.EventSlaPublished,
		Payload: events.SlaPublishedPayload{
			SlaUUID:       definition.UUID,
			VersionNumber: definition.VersionNumber,
		},
	})
	return definition, nil
}

// BindToTicket freezes the published policy into a snapshot for the
// ticket and stamps the ticket's due dates from its creation time. The
// snapshot, not the live definition, is the contract the clock is
// measured against from this point on.
func (s *SlaService) BindToTicket(ctx context.Context, definitionID, ticketID string) (*domain.SlaSnapshot, error) {
	definition, err := s.slas.GetDefinitionByID(ctx, definitionID)
	if err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	boundID := ticket.ID
	snapshot, err := definition.CreateSnapshot(&boundID)
	if err != nil {
		return nil, err
	}
	if err := s.slas.CreateSnapshot(ctx, snapshot); err != nil {
		return nil, err
	}

	start := ticket.CreatedAt
	responseDue, err := s.clock.CalculateDueDate(start, snapshot.ResponseTargetMinutes, snapshot.CalendarSnapshot)
	if err != nil {
		return nil, err
	}
	resolutionDue, err := s.clock.CalculateDueDate(start, snapshot.ResolutionTargetMinutes, snapshot.CalendarSnapshot)
	if err != nil {
		return nil, err
	}
	if err := s.tickets.SetSlaBinding(ctx, ticket.ID, snapshot.UUID, responseDue, resolutionDue); err != nil {
		return nil, err
	}

	s.logger.Info("sla bound to ticket",
		zap.String("ticket_id", ticket.ID),
		zap.String("sla_uuid", definition.UUID),
		zap.Time("response_due_at", responseDue),
		zap.Time("resolution_due_at", resolutionDue))

	s.publishEvent(ctx, events.Event{
		Type:     events.EventSlaBound,
		TicketID: ticket.ID,
		Payload: events.SlaBoundPayload{
			SlaUUID:       definition.UUID,
			SnapshotUUID:  snapshot.UUID,
			BoundEntityID: snapshot.BoundEntityID,
		},
	})
	return snapshot, nil
}

func (s *SlaService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
