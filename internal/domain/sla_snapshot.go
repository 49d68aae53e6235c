package domain

import "time"

// SlaSnapshot is the frozen contract a ticket's clock is measured
// against. It is created exactly once per binding event and never
// mutated afterwards, even if the source definition or calendar is
// later edited.
type SlaSnapshot struct {
	ID                      string
	UUID                    string
	BoundEntityID           *string
	SlaOriginalID           string
	SlaVersionAtBinding     int
	SlaNameAtBinding        string
	ResponseTargetMinutes   int
	ResolutionTargetMinutes int
	CalendarSnapshot        CalendarSnapshot
	BoundAt                 time.Time
}
