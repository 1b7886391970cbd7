package clinic

import (
	"fmt"
	"time"
)

// Operating policy. Hours are fixed clinic-wide: every specialty is bookable
// 09:00-17:00 clinic-local in 15-minute slots.
const (
	OpeningHour  = 9
	ClosingHour  = 17
	SlotInterval = 15 * time.Minute

	// DailySlotLimit is the number of slot intervals between opening and
	// closing time: (17-9) hours * 4 slots/hour.
	DailySlotLimit = (ClosingHour - OpeningHour) * int(time.Hour/SlotInterval)

	// DateFormat is the wire format for day-granularity dates.
	DateFormat = "2006-01-02"
)

// Calendar anchors day-boundary computations to the clinic's local timezone,
// so a bare YYYY-MM-DD never shifts a day under a different ambient zone.
type Calendar struct {
	loc *time.Location
}

// NewCalendar loads the clinic timezone by IANA name.
func NewCalendar(tz string) (*Calendar, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("clinic: load timezone %q: %w", tz, err)
	}
	return &Calendar{loc: loc}, nil
}

// NewCalendarIn wraps an already-loaded location. Used by tests.
func NewCalendarIn(loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.Local
	}
	return &Calendar{loc: loc}
}

// Location returns the clinic timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// ParseDate parses a strict YYYY-MM-DD string into midnight of that calendar
// day in the clinic timezone.
func (c *Calendar) ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateFormat, s, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("clinic: invalid date %q: %w", s, err)
	}
	return t, nil
}

// DayKey collapses a timestamp to its clinic-local calendar day.
func (c *Calendar) DayKey(t time.Time) string {
	return t.In(c.loc).Format(DateFormat)
}

// Today returns midnight of the current clinic-local day.
func (c *Calendar) Today(now time.Time) time.Time {
	local := now.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
}

// OpeningTime returns 09:00 clinic-local on the given day.
func (c *Calendar) OpeningTime(day time.Time) time.Time {
	local := day.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), OpeningHour, 0, 0, 0, c.loc)
}

// ClosingTime returns 17:00 clinic-local on the given day.
func (c *Calendar) ClosingTime(day time.Time) time.Time {
	local := day.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), ClosingHour, 0, 0, 0, c.loc)
}
