package domain

import "time"

// WindowSnapshot is the frozen form of a WorkingWindow.
type WindowSnapshot struct {
	DayOfWeek      int        `json:"day_of_week"`
	StartTime      string     `json:"start_time"`
	EndTime        string     `json:"end_time"`
	Kind           WindowKind `json:"kind"`
	RateMultiplier float64    `json:"rate_multiplier"`
}

// HolidaySnapshot is the frozen form of a Holiday.
type HolidaySnapshot struct {
	Name        string    `json:"name"`
	Date        time.Time `json:"date"`
	IsRecurring bool      `json:"is_recurring"`
}

// CalendarSnapshot is a flattened serializable copy of a Calendar taken
// at the moment an SLA is published or bound. It is never re-derived
// from the live Calendar once embedded in an SlaSnapshot, so later
// calendar edits cannot shift already-accepted targets.
type CalendarSnapshot struct {
	CalendarUUID string            `json:"calendar_uuid"`
	Name         string            `json:"name"`
	TimeZone     string            `json:"time_zone"`
	Windows      []WindowSnapshot  `json:"windows"`
	Holidays     []HolidaySnapshot `json:"holidays"`
}
