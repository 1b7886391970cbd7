package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josbro2/AI-Health-Book-AppBot/internal/appointments"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/clinic"
)

func TestFullyBookedDates_ThresholdIsExact(t *testing.T) {
	cal := kolkata(t)
	day, err := cal.ParseDate("2025-03-10")
	require.NoError(t, err)

	var records []appointments.Record
	end := cal.ClosingTime(day)
	for at := cal.OpeningTime(day); at.Before(end); at = at.Add(clinic.SlotInterval) {
		records = append(records, appointments.Record{Specialty: clinic.Cardiologist, ScheduledAt: at})
	}

	// One below the ceiling: not fully booked.
	below := FullyBookedDates(records[:clinic.DailySlotLimit-1], cal)
	assert.False(t, below[clinic.Cardiologist].Contains("2025-03-10"))

	// At the ceiling: fully booked.
	at := FullyBookedDates(records, cal)
	assert.True(t, at[clinic.Cardiologist].Contains("2025-03-10"))

	// Other specialties unaffected.
	assert.False(t, at[clinic.Dermatologist].Contains("2025-03-10"))
}

func TestFullyBookedDates_BucketsByClinicLocalDay(t *testing.T) {
	cal := kolkata(t)

	// 18:40 UTC on March 9 is already March 10 in Asia/Kolkata (+05:30).
	lateUTC := time.Date(2025, 3, 9, 18, 40, 0, 0, time.UTC)

	var records []appointments.Record
	for i := 0; i < clinic.DailySlotLimit; i++ {
		records = append(records, appointments.Record{
			Specialty:   clinic.Pediatrician,
			ScheduledAt: lateUTC.Add(time.Duration(i) * clinic.SlotInterval),
		})
	}

	full := FullyBookedDates(records, cal)
	assert.True(t, full[clinic.Pediatrician].Contains("2025-03-10"))
	assert.False(t, full[clinic.Pediatrician].Contains("2025-03-09"))
}

func TestFullyBookedDates_EmptyInput(t *testing.T) {
	cal := kolkata(t)
	full := FullyBookedDates(nil, cal)
	assert.Empty(t, full)
}

func TestFullAndSlotFinderAgree(t *testing.T) {
	// End-to-end property: once a (specialty, day) is fully booked, the slot
	// finder must report no availability for it.
	cal := kolkata(t)
	day, err := cal.ParseDate("2025-03-10")
	require.NoError(t, err)

	var records []appointments.Record
	end := cal.ClosingTime(day)
	for at := cal.OpeningTime(day); at.Before(end); at = at.Add(clinic.SlotInterval) {
		records = append(records, appointments.Record{Specialty: clinic.Cardiologist, ScheduledAt: at})
	}

	full := FullyBookedDates(records, cal)
	require.True(t, full[clinic.Cardiologist].Contains("2025-03-10"))

	_, err = NextFreeSlot(records, clinic.Cardiologist, "2025-03-10", cal)
	assert.ErrorIs(t, err, ErrNoSlotAvailable)
}
