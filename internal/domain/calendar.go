package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/opsdeck/sla-engine/pkg/util/errorutil"
)

// WindowKind distinguishes standard coverage from overtime coverage.
type WindowKind string

const (
	WindowKindStandard WindowKind = "STANDARD"
	WindowKindOvertime WindowKind = "OVERTIME"
)

// WorkingWindow is a single span of working time on a given weekday.
// EndTime earlier than StartTime denotes a window crossing midnight.
type WorkingWindow struct {
	DayOfWeek      time.Weekday `json:"day_of_week"`
	StartTime      string       `json:"start_time"`
	EndTime        string       `json:"end_time"`
	Kind           WindowKind   `json:"kind"`
	RateMultiplier float64      `json:"rate_multiplier"`
}

// CrossesMidnight reports whether the window spills into the following day.
func (w WorkingWindow) CrossesMidnight() bool {
	start, err1 := ParseClock(w.StartTime)
	end, err2 := ParseClock(w.EndTime)
	if err1 != nil || err2 != nil {
		return false
	}
	return end < start
}

// Holiday marks a non-working day. For recurring holidays only the
// month and day are significant when matching future dates.
type Holiday struct {
	Name        string    `json:"name"`
	Date        time.Time `json:"date"`
	IsRecurring bool      `json:"is_recurring"`
}

// Calendar is a named working-hours definition. Once snapshotted it is
// read-only as far as any bound SLA is concerned.
type Calendar struct {
	ID             string
	UUID           string
	Name           string
	TimeZone       string
	WorkingWindows []WorkingWindow
	Holidays       []Holiday
	IsDefault      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewCalendar validates and constructs a calendar.
func NewCalendar(name, timeZone string, windows []WorkingWindow, holidays []Holiday, isDefault bool) (*Calendar, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.NewValidationError("calendar name is required", nil)
	}
	if _, err := time.LoadLocation(timeZone); err != nil {
		return nil, apperrors.NewValidationError("invalid time zone", map[string]any{"time_zone": timeZone})
	}
	if err := validateWindows(windows); err != nil {
		return nil, err
	}

	normalized := make([]Holiday, len(holidays))
	for i, h := range holidays {
		normalized[i] = Holiday{
			Name:        h.Name,
			Date:        truncateToDate(h.Date),
			IsRecurring: h.IsRecurring,
		}
	}

	return &Calendar{
		Name:           strings.TrimSpace(name),
		TimeZone:       timeZone,
		WorkingWindows: windows,
		Holidays:       normalized,
		IsDefault:      isDefault,
	}, nil
}

// CreateSnapshot projects the calendar into its frozen serializable form.
// It is deterministic and free of side effects.
func (c *Calendar) CreateSnapshot() CalendarSnapshot {
	windows := make([]WindowSnapshot, len(c.WorkingWindows))
	for i, w := range c.WorkingWindows {
		windows[i] = WindowSnapshot{
			DayOfWeek:      int(w.DayOfWeek),
			StartTime:      w.StartTime,
			EndTime:        w.EndTime,
			Kind:           w.Kind,
			RateMultiplier: w.RateMultiplier,
		}
	}
	holidays := make([]HolidaySnapshot, len(c.Holidays))
	for i, h := range c.Holidays {
		holidays[i] = HolidaySnapshot{
			Name:        h.Name,
			Date:        truncateToDate(h.Date),
			IsRecurring: h.IsRecurring,
		}
	}
	return CalendarSnapshot{
		CalendarUUID: c.UUID,
		Name:         c.Name,
		TimeZone:     c.TimeZone,
		Windows:      windows,
		Holidays:     holidays,
	}
}

func validateWindows(windows []WorkingWindow) error {
	type span struct {
		start, end int
		index      int
	}
	byDay := map[time.Weekday][]span{}
	for i, w := range windows {
		start, err := ParseClock(w.StartTime)
		if err != nil {
			return apperrors.NewValidationError("invalid window start time", map[string]any{"start_time": w.StartTime})
		}
		end, err := ParseClock(w.EndTime)
		if err != nil {
			return apperrors.NewValidationError("invalid window end time", map[string]any{"end_time": w.EndTime})
		}
		if w.DayOfWeek < time.Sunday || w.DayOfWeek > time.Saturday {
			return apperrors.NewValidationError("invalid day of week", map[string]any{"day_of_week": w.DayOfWeek})
		}
		// cross-midnight windows are deliberate and excluded from overlap checks
		if end < start {
			continue
		}
		byDay[w.DayOfWeek] = append(byDay[w.DayOfWeek], span{start: start, end: end, index: i})
	}
	for day, spans := range byDay {
		for i := 0; i < len(spans); i++ {
			for j := i + 1; j < len(spans); j++ {
				if spans[i].start < spans[j].end && spans[j].start < spans[i].end {
					return apperrors.NewValidationError("overlapping working windows", map[string]any{
						"day_of_week": day.String(),
					})
				}
			}
		}
	}
	return nil
}

// ParseClock parses a strict 24-hour HH:MM string into minutes after midnight.
func ParseClock(value string) (int, error) {
	if len(value) != 5 || value[2] != ':' {
		return 0, fmt.Errorf("malformed clock value %q, expected HH:MM", value)
	}
	hours, err := strconv.Atoi(value[:2])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("malformed clock value %q, expected HH:MM", value)
	}
	minutes, err := strconv.Atoi(value[3:])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("malformed clock value %q, expected HH:MM", value)
	}
	return hours*60 + minutes, nil
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
