package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck/sla-engine/internal/domain"
)

func weekdaySnapshot() domain.CalendarSnapshot {
	windows := make([]domain.WindowSnapshot, 0, 5)
	for day := int(time.Monday); day <= int(time.Friday); day++ {
		windows = append(windows, domain.WindowSnapshot{
			DayOfWeek: day,
			StartTime: "09:00",
			EndTime:   "17:00",
			Kind:      domain.WindowKindStandard,
		})
	}
	return domain.CalendarSnapshot{Name: "weekdays", TimeZone: "UTC", Windows: windows}
}

func TestCalculateDueDate(t *testing.T) {
	svc := NewClockService()

	start := time.Date(2024, 7, 1, 16, 0, 0, 0, time.UTC) // Mon 4pm
	due, err := svc.CalculateDueDate(start, 120, weekdaySnapshot())
	require.NoError(t, err)
	assert.True(t, due.Equal(time.Date(2024, 7, 2, 10, 0, 0, 0, time.UTC)))
}

func TestCalculateDueDateRejectsBadSnapshot(t *testing.T) {
	svc := NewClockService()
	snapshot := weekdaySnapshot()
	snapshot.TimeZone = "Nowhere/Nothing"

	_, err := svc.CalculateDueDate(time.Now(), 120, snapshot)
	require.Error(t, err)
}

func TestCalculateUsagePercent(t *testing.T) {
	svc := NewClockService()

	start := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	now := start.Add(50 * time.Minute)
	percent, err := svc.CalculateUsagePercent(start, now, 480, weekdaySnapshot())
	require.NoError(t, err)
	assert.InDelta(t, 10.42, percent, 0.001)
}

func TestCalculateUsagePercentCanExceedHundred(t *testing.T) {
	svc := NewClockService()

	start := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	now := time.Date(2024, 7, 2, 17, 0, 0, 0, time.UTC) // two full days later
	percent, err := svc.CalculateUsagePercent(start, now, 480, weekdaySnapshot())
	require.NoError(t, err)
	assert.InDelta(t, 200.0, percent, 0.001)
}

func TestCalculateUsagePercentZeroTarget(t *testing.T) {
	svc := NewClockService()

	percent, err := svc.CalculateUsagePercent(time.Now(), time.Now(), 0, weekdaySnapshot())
	require.NoError(t, err)
	assert.Equal(t, 100.0, percent)
}
