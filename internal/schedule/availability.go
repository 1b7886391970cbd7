// Package schedule holds the slot allocation core: the availability
// aggregator that derives fully-booked dates per specialty, and the slot
// finder that assigns concrete times. Both are pure, synchronous, in-memory
// computations over the session's appointment record set.
package schedule

import (
	"github.com/josbro2/AI-Health-Book-AppBot/internal/appointments"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/clinic"
)

// DateSet is a set of YYYY-MM-DD clinic-local calendar days.
type DateSet map[string]struct{}

// Contains reports membership.
func (s DateSet) Contains(date string) bool {
	_, ok := s[date]
	return ok
}

// Dates returns the set as a slice, order unspecified.
func (s DateSet) Dates() []string {
	out := make([]string, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	return out
}

// FullyBookedDates derives, per specialty, the dates whose booked-slot count
// has reached the daily ceiling. A date is in the set iff the number of
// records for that (specialty, clinic-local day) is >= clinic.DailySlotLimit.
//
// Recomputed wholesale whenever the record set changes; the set is small (one
// clinic's bookings) so incremental updates are not worth carrying.
func FullyBookedDates(records []appointments.Record, cal *clinic.Calendar) map[clinic.Specialty]DateSet {
	counts := make(map[clinic.Specialty]map[string]int)
	for _, rec := range records {
		day := cal.DayKey(rec.ScheduledAt)
		if counts[rec.Specialty] == nil {
			counts[rec.Specialty] = make(map[string]int)
		}
		counts[rec.Specialty][day]++
	}

	full := make(map[clinic.Specialty]DateSet)
	for specialty, days := range counts {
		for day, n := range days {
			if n >= clinic.DailySlotLimit {
				if full[specialty] == nil {
					full[specialty] = make(DateSet)
				}
				full[specialty][day] = struct{}{}
			}
		}
	}
	return full
}
