package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/josbro2/AI-Health-Book-AppBot/internal/appointments"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/clinic"
)

// ErrNoSlotAvailable indicates the requested day has no free slot left for
// the specialty.
var ErrNoSlotAvailable = errors.New("schedule: no slot available")

// ErrInvalidDate indicates the requested date string is not a valid
// YYYY-MM-DD calendar date.
var ErrInvalidDate = errors.New("schedule: invalid date")

// NextFreeSlot returns the earliest free 15-minute slot for the specialty on
// the requested calendar day. First fit: the scan starts at 09:00
// clinic-local and walks forward in clinic.SlotInterval steps, returning the
// first instant that no existing record for the specialty occupies. Reaching
// 17:00 without a free instant yields ErrNoSlotAvailable.
//
// date is a bare YYYY-MM-DD and is anchored to the clinic-local day via the
// calendar, never the caller's ambient timezone.
func NextFreeSlot(records []appointments.Record, specialty clinic.Specialty, date string, cal *clinic.Calendar) (time.Time, error) {
	day, err := cal.ParseDate(date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	taken := make(map[int64]struct{})
	for _, rec := range records {
		if rec.Specialty == specialty {
			taken[rec.ScheduledAt.Unix()] = struct{}{}
		}
	}

	end := cal.ClosingTime(day)
	for slot := cal.OpeningTime(day); slot.Before(end); slot = slot.Add(clinic.SlotInterval) {
		if _, occupied := taken[slot.Unix()]; !occupied {
			return slot, nil
		}
	}
	return time.Time{}, ErrNoSlotAvailable
}
