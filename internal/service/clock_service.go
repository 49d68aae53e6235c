package service

import (
	"math"
	"time"

	"github.com/opsdeck/sla-engine/internal/businesstime"
	"github.com/opsdeck/sla-engine/internal/domain"
)

// ClockService translates SLA targets plus a frozen snapshot into
// concrete due dates and percentage-used figures.
type ClockService struct{}

// NewClockService constructs the service.
func NewClockService() *ClockService {
	return &ClockService{}
}

// CalculateDueDate projects the due timestamp reached after consuming
// the target's business minutes from start.
func (s *ClockService) CalculateDueDate(start time.Time, targetMinutes int, snapshot domain.CalendarSnapshot) (time.Time, error) {
	calc, err := businesstime.NewCalculator(snapshot)
	if err != nil {
		return time.Time{}, err
	}
	return calc.AddMinutes(start, targetMinutes), nil
}

// CalculateUsagePercent returns the share of the target consumed
// between start and now, rounded to two decimals. A zero target is
// treated as fully used.
func (s *ClockService) CalculateUsagePercent(start, now time.Time, targetMinutes int, snapshot domain.CalendarSnapshot) (float64, error) {
	if targetMinutes <= 0 {
		return 100.0, nil
	}
	calc, err := businesstime.NewCalculator(snapshot)
	if err != nil {
		return 0, err
	}
	used := calc.MinutesBetween(start, now)
	percent := float64(used) / float64(targetMinutes) * 100
	return math.Round(percent*100) / 100, nil
}
