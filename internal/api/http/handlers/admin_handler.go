package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsdeck/sla-engine/internal/domain"
	"github.com/opsdeck/sla-engine/internal/repository"
	"github.com/opsdeck/sla-engine/internal/service"
	apperrors "github.com/opsdeck/sla-engine/pkg/util/errorutil"
)

// AdminHandler exposes calendar and SLA lifecycle administration.
type AdminHandler struct {
	calendars repository.CalendarRepository
	slas      *service.SlaService
}

// NewAdminHandler returns a new handler instance.
func NewAdminHandler(calendars repository.CalendarRepository, slas *service.SlaService) *AdminHandler {
	return &AdminHandler{calendars: calendars, slas: slas}
}

type createCalendarRequest struct {
	Name           string                 `json:"name"`
	TimeZone       string                 `json:"time_zone"`
	WorkingWindows []domain.WorkingWindow `json:"working_windows"`
	Holidays       []domain.Holiday       `json:"holidays"`
	IsDefault      bool                   `json:"is_default"`
}

// CreateCalendar validates and stores a working calendar.
func (h *AdminHandler) CreateCalendar(c *fiber.Ctx) error {
	var req createCalendarRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	calendar, err := domain.NewCalendar(req.Name, req.TimeZone, req.WorkingWindows, req.Holidays, req.IsDefault)
	if err != nil {
		return apperrors.MapError(err)
	}
	if err := h.calendars.Create(c.UserContext(), calendar); err != nil {
		return apperrors.MapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(calendar)
}

type createSlaRequest struct {
	Name                    string                  `json:"name"`
	CalendarID              *string                 `json:"calendar_id"`
	ResponseTargetMinutes   int                     `json:"response_target_minutes"`
	ResolutionTargetMinutes int                     `json:"resolution_target_minutes"`
	EscalationRules         []domain.EscalationRule `json:"escalation_rules"`
}

// CreateSla stores a draft SLA definition.
func (h *AdminHandler) CreateSla(c *fiber.Ctx) error {
	var req createSlaRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	definition, err := h.slas.CreateDefinition(c.UserContext(), service.SlaCreateInput{
		Name:                    req.Name,
		CalendarID:              req.CalendarID,
		ResponseTargetMinutes:   req.ResponseTargetMinutes,
		ResolutionTargetMinutes: req.ResolutionTargetMinutes,
		EscalationRules:         req.EscalationRules,
	})
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(definition)
}

// PublishSla moves a draft definition to published.
func (h *AdminHandler) PublishSla(c *fiber.Ctx) error {
	definition, err := h.slas.PublishDefinition(c.UserContext(), c.Params("id"))
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(definition)
}

// BindSla freezes a published definition onto a ticket.
func (h *AdminHandler) BindSla(c *fiber.Ctx) error {
	snapshot, err := h.slas.BindToTicket(c.UserContext(), c.Params("id"), c.Params("ticketId"))
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(snapshot)
}
