package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opsdeck/sla-engine/internal/domain"
	"github.com/opsdeck/sla-engine/internal/events"
	"github.com/opsdeck/sla-engine/internal/observability"
	"github.com/opsdeck/sla-engine/internal/repository"
)

var evalNow = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time { return &t }

type memTicketRepo struct {
	tickets []domain.Ticket
	listErr error
}

func (r *memTicketRepo) FindActive(_ context.Context, limit int) ([]domain.Ticket, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	if limit > 0 && limit < len(r.tickets) {
		return r.tickets[:limit], nil
	}
	return r.tickets, nil
}

func (r *memTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	for i := range r.tickets {
		if r.tickets[i].ID == id {
			ticket := r.tickets[i]
			return &ticket, nil
		}
	}
	return nil, errors.New("ticket not found")
}

func (r *memTicketRepo) SetSlaBinding(_ context.Context, _, _ string, _, _ time.Time) error {
	return nil
}

type memClockStateRepo struct {
	mu     sync.Mutex
	states map[string]*domain.SlaClockState
	failOn map[string]error
	writes int
}

func newMemClockStateRepo() *memClockStateRepo {
	return &memClockStateRepo{
		states: make(map[string]*domain.SlaClockState),
		failOn: make(map[string]error),
	}
}

func (r *memClockStateRepo) WithTicketClockLock(ctx context.Context, ticketID string, fn repository.ClockStateFn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.failOn[ticketID]; err != nil {
		return err
	}

	state, ok := r.states[ticketID]
	if !ok {
		state = domain.NewSlaClockState(ticketID)
		state.ID = "cs-" + ticketID
		r.states[ticketID] = state
	}

	working := *state
	changed, err := fn(ctx, &working)
	if err != nil {
		return err
	}
	if changed {
		r.writes++
		persisted := working
		r.states[ticketID] = &persisted
	}
	return nil
}

func (r *memClockStateRepo) GetByTicketID(_ context.Context, ticketID string) (*domain.SlaClockState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[ticketID]
	if !ok {
		return nil, errors.New("clock state not found")
	}
	copied := *state
	return &copied, nil
}

func (r *memClockStateRepo) mustGet(t *testing.T, ticketID string) *domain.SlaClockState {
	t.Helper()
	state, err := r.GetByTicketID(context.Background(), ticketID)
	require.NoError(t, err)
	return state
}

type eventCounter struct {
	mu     sync.Mutex
	counts map[events.EventType]int
}

func (c *eventCounter) handle(_ context.Context, event events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[event.Type]++
	return nil
}

func (c *eventCounter) count(eventType events.EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[eventType]
}

func newTestAutomation(tickets *memTicketRepo, states *memClockStateRepo) (*AutomationService, *eventCounter) {
	dispatcher := events.NewInMemoryDispatcher()
	counter := &eventCounter{counts: make(map[events.EventType]int)}
	dispatcher.Subscribe(events.EventSlaTicketWarning, counter.handle)
	dispatcher.Subscribe(events.EventSlaTicketBreached, counter.handle)
	dispatcher.Subscribe(events.EventSlaEscalationTriggered, counter.handle)

	svc := NewAutomationService(AutomationDependencies{
		TicketRepo:     tickets,
		ClockStateRepo: states,
		Dispatcher:     dispatcher,
		Logger:         zap.NewNop(),
		Metrics:        observability.NewMetrics(),
	})
	svc.now = func() time.Time { return evalNow }
	return svc, counter
}

func TestDetermineState(t *testing.T) {
	svc, _ := newTestAutomation(&memTicketRepo{}, newMemClockStateRepo())

	cases := []struct {
		name   string
		ticket domain.Ticket
		want   domain.SlaState
	}{
		{
			name: "resolved overrides past resolution due",
			ticket: domain.Ticket{
				Status:          domain.TicketStatusResolved,
				ResolutionDueAt: timePtr(evalNow.Add(-time.Hour)),
			},
			want: domain.SlaStatePaused,
		},
		{
			name: "on hold pauses the clock",
			ticket: domain.Ticket{
				Status:          domain.TicketStatusOnHold,
				ResolutionDueAt: timePtr(evalNow.Add(24 * time.Hour)),
			},
			want: domain.SlaStatePaused,
		},
		{
			name: "past resolution due breaches",
			ticket: domain.Ticket{
				Status:          domain.TicketStatusOpen,
				ResolutionDueAt: timePtr(evalNow.Add(-time.Minute)),
			},
			want: domain.SlaStateBreached,
		},
		{
			name: "past response due without response breaches",
			ticket: domain.Ticket{
				Status:          domain.TicketStatusOpen,
				ResponseDueAt:   timePtr(evalNow.Add(-time.Minute)),
				ResolutionDueAt: timePtr(evalNow.Add(24 * time.Hour)),
			},
			want: domain.SlaStateBreached,
		},
		{
			name: "past response due already answered stays active",
			ticket: domain.Ticket{
				Status:          domain.TicketStatusOpen,
				ResponseDueAt:   timePtr(evalNow.Add(-time.Hour)),
				RespondedAt:     timePtr(evalNow.Add(-2 * time.Hour)),
				ResolutionDueAt: timePtr(evalNow.Add(24 * time.Hour)),
			},
			want: domain.SlaStateActive,
		},
		{
			name: "resolution due inside warning window warns",
			ticket: domain.Ticket{
				Status:          domain.TicketStatusOpen,
				ResolutionDueAt: timePtr(evalNow.Add(30 * time.Minute)),
			},
			want: domain.SlaStateWarning,
		},
		{
			name: "response due inside warning window warns",
			ticket: domain.Ticket{
				Status:          domain.TicketStatusOpen,
				ResponseDueAt:   timePtr(evalNow.Add(45 * time.Minute)),
				ResolutionDueAt: timePtr(evalNow.Add(24 * time.Hour)),
			},
			want: domain.SlaStateWarning,
		},
		{
			name: "comfortably ahead of both due dates",
			ticket: domain.Ticket{
				Status:          domain.TicketStatusOpen,
				ResponseDueAt:   timePtr(evalNow.Add(4 * time.Hour)),
				ResolutionDueAt: timePtr(evalNow.Add(24 * time.Hour)),
			},
			want: domain.SlaStateActive,
		},
		{
			name:   "no due dates at all",
			ticket: domain.Ticket{Status: domain.TicketStatusNew},
			want:   domain.SlaStateActive,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, svc.DetermineState(&tc.ticket, evalNow))
		})
	}
}

func TestEvaluateFirstRunActivates(t *testing.T) {
	states := newMemClockStateRepo()
	svc, counter := newTestAutomation(&memTicketRepo{}, states)

	ticket := domain.Ticket{
		ID:              "t1",
		Status:          domain.TicketStatusOpen,
		ResolutionDueAt: timePtr(evalNow.Add(48 * time.Hour)),
	}
	require.NoError(t, svc.Evaluate(context.Background(), &ticket))

	state := states.mustGet(t, "t1")
	assert.Equal(t, domain.SlaStateActive, state.LastEventDispatched)
	assert.False(t, state.Paused)
	require.NotNil(t, state.LastEvaluatedAt)
	assert.True(t, state.LastEvaluatedAt.Equal(evalNow))
	assert.Equal(t, 1, states.writes)

	// activation is a state record, not a notification
	assert.Zero(t, counter.count(events.EventSlaTicketWarning))
	assert.Zero(t, counter.count(events.EventSlaTicketBreached))
}

func TestEvaluateIsIdempotent(t *testing.T) {
	states := newMemClockStateRepo()
	svc, counter := newTestAutomation(&memTicketRepo{}, states)

	ticket := domain.Ticket{
		ID:              "t1",
		Status:          domain.TicketStatusOpen,
		ResolutionDueAt: timePtr(evalNow.Add(-time.Hour)),
	}
	require.NoError(t, svc.Evaluate(context.Background(), &ticket))
	require.NoError(t, svc.Evaluate(context.Background(), &ticket))

	assert.Equal(t, 1, counter.count(events.EventSlaTicketBreached))
	assert.Equal(t, 1, counter.count(events.EventSlaEscalationTriggered))
	assert.Equal(t, 1, states.writes)

	state := states.mustGet(t, "t1")
	assert.Equal(t, domain.SlaStateBreached, state.LastEventDispatched)
	assert.Equal(t, 1, state.EscalationStage)
}

func TestEvaluatePublishesWarning(t *testing.T) {
	states := newMemClockStateRepo()
	svc, counter := newTestAutomation(&memTicketRepo{}, states)

	ticket := domain.Ticket{
		ID:              "t1",
		Status:          domain.TicketStatusOpen,
		ResolutionDueAt: timePtr(evalNow.Add(20 * time.Minute)),
	}
	require.NoError(t, svc.Evaluate(context.Background(), &ticket))

	assert.Equal(t, 1, counter.count(events.EventSlaTicketWarning))
	assert.Zero(t, counter.count(events.EventSlaTicketBreached))
	assert.Equal(t, domain.SlaStateWarning, states.mustGet(t, "t1").LastEventDispatched)
}

func TestEvaluatePausedOverridesBreach(t *testing.T) {
	states := newMemClockStateRepo()
	svc, counter := newTestAutomation(&memTicketRepo{}, states)

	ticket := domain.Ticket{
		ID:              "t1",
		Status:          domain.TicketStatusResolved,
		ResolutionDueAt: timePtr(evalNow.Add(-time.Hour)),
	}
	require.NoError(t, svc.Evaluate(context.Background(), &ticket))

	state := states.mustGet(t, "t1")
	assert.Equal(t, domain.SlaStatePaused, state.LastEventDispatched)
	assert.True(t, state.Paused)
	assert.Zero(t, counter.count(events.EventSlaTicketBreached))
	assert.Zero(t, counter.count(events.EventSlaEscalationTriggered))
}

func TestEscalationFiresOnlyOnce(t *testing.T) {
	states := newMemClockStateRepo()
	svc, counter := newTestAutomation(&memTicketRepo{}, states)

	ticket := domain.Ticket{
		ID:              "t1",
		Status:          domain.TicketStatusOpen,
		ResolutionDueAt: timePtr(evalNow.Add(-time.Hour)),
	}
	require.NoError(t, svc.Evaluate(context.Background(), &ticket))

	// the ticket is put on hold, then reopened while still overdue
	ticket.Status = domain.TicketStatusOnHold
	require.NoError(t, svc.Evaluate(context.Background(), &ticket))
	ticket.Status = domain.TicketStatusOpen
	require.NoError(t, svc.Evaluate(context.Background(), &ticket))

	// the renewed breach dispatches again but escalation does not repeat
	assert.Equal(t, 2, counter.count(events.EventSlaTicketBreached))
	assert.Equal(t, 1, counter.count(events.EventSlaEscalationTriggered))
	assert.Equal(t, 1, states.mustGet(t, "t1").EscalationStage)
}

func TestRunSlaCheckContinuesPastFailures(t *testing.T) {
	tickets := &memTicketRepo{tickets: []domain.Ticket{
		{ID: "t1", Status: domain.TicketStatusOpen, ResolutionDueAt: timePtr(evalNow.Add(-time.Hour))},
		{ID: "t2", Status: domain.TicketStatusOpen, ResolutionDueAt: timePtr(evalNow.Add(-time.Hour))},
		{ID: "t3", Status: domain.TicketStatusOpen, ResolutionDueAt: timePtr(evalNow.Add(48 * time.Hour))},
	}}
	states := newMemClockStateRepo()
	states.failOn["t2"] = errors.New("lock timeout")

	svc, counter := newTestAutomation(tickets, states)
	require.NoError(t, svc.RunSlaCheck(context.Background()))

	assert.Equal(t, domain.SlaStateBreached, states.mustGet(t, "t1").LastEventDispatched)
	assert.Equal(t, domain.SlaStateActive, states.mustGet(t, "t3").LastEventDispatched)
	_, err := states.GetByTicketID(context.Background(), "t2")
	assert.Error(t, err)

	assert.Equal(t, 1, counter.count(events.EventSlaTicketBreached))

	total, failed := svc.metrics.EvaluationTotals()
	assert.Equal(t, int64(3), total)
	assert.Equal(t, int64(1), failed)
}

func TestRunSlaCheckPropagatesListError(t *testing.T) {
	tickets := &memTicketRepo{listErr: errors.New("connection refused")}
	svc, _ := newTestAutomation(tickets, newMemClockStateRepo())

	assert.Error(t, svc.RunSlaCheck(context.Background()))
}

func TestRunSlaCheckHonorsBatchLimit(t *testing.T) {
	tickets := &memTicketRepo{tickets: []domain.Ticket{
		{ID: "t1", Status: domain.TicketStatusOpen},
		{ID: "t2", Status: domain.TicketStatusOpen},
	}}
	states := newMemClockStateRepo()
	svc, _ := newTestAutomation(tickets, states)
	svc.batchLimit = 1

	require.NoError(t, svc.RunSlaCheck(context.Background()))
	assert.Equal(t, 1, states.writes)
}
