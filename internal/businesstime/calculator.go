// Package businesstime converts between elapsed calendar time and
// elapsed business time against a frozen calendar snapshot. All
// operations are pure and safe for concurrent use.
package businesstime

import (
	"fmt"
	"sort"
	"time"

	"github.com/opsdeck/sla-engine/internal/domain"
)

// maxDayAdvances bounds the day-by-day walk so a snapshot with no
// working time at all still terminates with a deterministic result.
const maxDayAdvances = 10000

type window struct {
	startMin int
	endMin   int // endMin <= startMin denotes a cross-midnight window
}

type dateKey struct {
	year  int
	month time.Month
	day   int
}

type monthDayKey struct {
	month time.Month
	day   int
}

// Calculator performs business-minute arithmetic for one calendar
// snapshot. Construction resolves the snapshot's time zone and parses
// its window clock strings; both are configuration errors when invalid.
type Calculator struct {
	loc       *time.Location
	byWeekday [7][]window
	fixed     map[dateKey]struct{}
	recurring map[monthDayKey]struct{}
}

// NewCalculator builds a calculator from a calendar snapshot. An
// unknown time zone is rejected, never silently replaced with UTC.
func NewCalculator(snapshot domain.CalendarSnapshot) (*Calculator, error) {
	loc, err := time.LoadLocation(snapshot.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("calendar snapshot has invalid time zone %q: %w", snapshot.TimeZone, err)
	}

	calc := &Calculator{
		loc:       loc,
		fixed:     make(map[dateKey]struct{}),
		recurring: make(map[monthDayKey]struct{}),
	}

	for _, w := range snapshot.Windows {
		if w.DayOfWeek < 0 || w.DayOfWeek > 6 {
			return nil, fmt.Errorf("calendar snapshot window has invalid weekday %d", w.DayOfWeek)
		}
		startMin, err := domain.ParseClock(w.StartTime)
		if err != nil {
			return nil, fmt.Errorf("calendar snapshot window start: %w", err)
		}
		endMin, err := domain.ParseClock(w.EndTime)
		if err != nil {
			return nil, fmt.Errorf("calendar snapshot window end: %w", err)
		}
		calc.byWeekday[w.DayOfWeek] = append(calc.byWeekday[w.DayOfWeek], window{startMin: startMin, endMin: endMin})
	}
	for i := range calc.byWeekday {
		sort.Slice(calc.byWeekday[i], func(a, b int) bool {
			return calc.byWeekday[i][a].startMin < calc.byWeekday[i][b].startMin
		})
	}

	for _, h := range snapshot.Holidays {
		if h.IsRecurring {
			calc.recurring[monthDayKey{month: h.Date.Month(), day: h.Date.Day()}] = struct{}{}
			continue
		}
		calc.fixed[dateKey{year: h.Date.Year(), month: h.Date.Month(), day: h.Date.Day()}] = struct{}{}
	}

	return calc, nil
}

// Location exposes the resolved snapshot zone.
func (c *Calculator) Location() *time.Location {
	return c.loc
}

// MinutesBetween returns the whole business minutes elapsed between
// start and end. It returns 0 when end is not after start. Partial
// minutes are truncated, never rounded up.
func (c *Calculator) MinutesBetween(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}

	cursor := start.In(c.loc)
	endLocal := end.In(c.loc)
	total := 0

	for i := 0; i < maxDayAdvances && cursor.Before(endLocal); i++ {
		day := c.startOfDay(cursor)
		next := c.nextDay(day)

		if !c.isHoliday(day) {
			for _, w := range c.byWeekday[day.Weekday()] {
				winStart, winEnd := c.windowBounds(day, w)
				if !winEnd.After(cursor) {
					continue
				}
				from := cursor
				if winStart.After(from) {
					from = winStart
				}
				to := endLocal
				if winEnd.Before(to) {
					to = winEnd
				}
				if to.After(from) {
					total += int(to.Sub(from) / time.Minute)
				}
				if !winEnd.Before(endLocal) {
					return total
				}
				cursor = winEnd
			}
		}

		if cursor.Before(next) {
			cursor = next
		}
	}

	return total
}

// AddMinutes projects the timestamp reached after consuming the given
// business-minute budget from start. It returns start unchanged when
// minutes is not positive. When the snapshot offers no working time the
// walk stops at the iteration cap and returns the cursor reached there.
func (c *Calculator) AddMinutes(start time.Time, minutes int) time.Time {
	if minutes <= 0 {
		return start
	}

	cursor := start.In(c.loc)
	remaining := minutes

	for i := 0; i < maxDayAdvances; i++ {
		day := c.startOfDay(cursor)
		next := c.nextDay(day)

		if !c.isHoliday(day) {
			for _, w := range c.byWeekday[day.Weekday()] {
				winStart, winEnd := c.windowBounds(day, w)
				if !winEnd.After(cursor) {
					continue
				}
				from := cursor
				if winStart.After(from) {
					from = winStart
				}
				available := int(winEnd.Sub(from) / time.Minute)
				if remaining <= available {
					return from.Add(time.Duration(remaining) * time.Minute)
				}
				remaining -= available
				cursor = winEnd
			}
		}

		if cursor.Before(next) {
			cursor = next
		}
	}

	return cursor
}

func (c *Calculator) isHoliday(day time.Time) bool {
	if _, ok := c.fixed[dateKey{year: day.Year(), month: day.Month(), day: day.Day()}]; ok {
		return true
	}
	_, ok := c.recurring[monthDayKey{month: day.Month(), day: day.Day()}]
	return ok
}

// windowBounds materializes a window on a concrete day using wall-clock
// construction so DST shifts cannot skew the boundaries. A
// cross-midnight window ends on the following day.
func (c *Calculator) windowBounds(day time.Time, w window) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), w.startMin/60, w.startMin%60, 0, 0, c.loc)
	endDay := day
	if w.endMin <= w.startMin {
		endDay = c.nextDay(day)
	}
	end := time.Date(endDay.Year(), endDay.Month(), endDay.Day(), w.endMin/60, w.endMin%60, 0, 0, c.loc)
	return start, end
}

func (c *Calculator) startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}

func (c *Calculator) nextDay(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, c.loc)
}
