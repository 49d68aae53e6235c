package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/opsdeck/sla-engine/pkg/util/errorutil"
)

// SlaStatus enumerates the SLA definition lifecycle.
type SlaStatus string

const (
	SlaStatusDraft      SlaStatus = "DRAFT"
	SlaStatusPublished  SlaStatus = "PUBLISHED"
	SlaStatusDeprecated SlaStatus = "DEPRECATED"
)

// EscalationRule is attached to a definition and consumed by richer
// escalation evaluation outside the first-stage automation.
type EscalationRule struct {
	ID               string `json:"id"`
	ThresholdPercent int    `json:"threshold_percent"`
	Action           string `json:"action"`
}

// SlaDefinition is a versioned SLA policy bound to a working calendar.
type SlaDefinition struct {
	ID                      string
	UUID                    string
	Name                    string
	Status                  SlaStatus
	VersionNumber           int
	Calendar                *Calendar
	ResponseTargetMinutes   int
	ResolutionTargetMinutes int
	EscalationRules         []EscalationRule
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// NewSlaDefinition validates and constructs a draft definition.
func NewSlaDefinition(name string, calendar *Calendar, responseTargetMinutes, resolutionTargetMinutes int, rules []EscalationRule) (*SlaDefinition, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.NewValidationError("sla name is required", nil)
	}
	if calendar == nil {
		return nil, apperrors.NewValidationError("sla requires a calendar", nil)
	}
	if responseTargetMinutes <= 0 || resolutionTargetMinutes <= 0 {
		return nil, apperrors.NewValidationError("sla targets must be positive", map[string]any{
			"response_target_minutes":   responseTargetMinutes,
			"resolution_target_minutes": resolutionTargetMinutes,
		})
	}
	if responseTargetMinutes > resolutionTargetMinutes {
		return nil, apperrors.NewValidationError("response target cannot exceed resolution target", map[string]any{
			"response_target_minutes":   responseTargetMinutes,
			"resolution_target_minutes": resolutionTargetMinutes,
		})
	}
	for _, rule := range rules {
		if rule.ThresholdPercent < 1 || rule.ThresholdPercent > 100 {
			return nil, apperrors.NewValidationError("escalation threshold must be within 1-100", map[string]any{
				"threshold_percent": rule.ThresholdPercent,
			})
		}
	}

	return &SlaDefinition{
		UUID:                    uuid.NewString(),
		Name:                    strings.TrimSpace(name),
		Status:                  SlaStatusDraft,
		VersionNumber:           1,
		Calendar:                calendar,
		ResponseTargetMinutes:   responseTargetMinutes,
		ResolutionTargetMinutes: resolutionTargetMinutes,
		EscalationRules:         rules,
	}, nil
}

// Publish moves the definition from draft to published. Publishing is
// one-way; there is no un-publish.
func (s *SlaDefinition) Publish() error {
	if s.Status != SlaStatusDraft {
		return apperrors.NewInvalidState("only draft SLAs can be published", map[string]any{
			"status": s.Status,
		})
	}
	s.Status = SlaStatusPublished
	return nil
}

// CreateSnapshot freezes the published policy plus its calendar into an
// immutable record bound to the given entity at acceptance time.
func (s *SlaDefinition) CreateSnapshot(boundEntityID *string) (*SlaSnapshot, error) {
	if s.Status != SlaStatusPublished {
		return nil, apperrors.NewInvalidState("only published SLAs can be snapshotted", map[string]any{
			"status": s.Status,
		})
	}
	return &SlaSnapshot{
		UUID:                    uuid.NewString(),
		BoundEntityID:           boundEntityID,
		SlaOriginalID:           s.UUID,
		SlaVersionAtBinding:     s.VersionNumber,
		SlaNameAtBinding:        s.Name,
		ResponseTargetMinutes:   s.ResponseTargetMinutes,
		ResolutionTargetMinutes: s.ResolutionTargetMinutes,
		CalendarSnapshot:        s.Calendar.CreateSnapshot(),
		BoundAt:                 time.Now().UTC(),
	}, nil
}
