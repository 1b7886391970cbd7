package notify

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josbro2/AI-Health-Book-AppBot/internal/appointments"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/clinic"
)

func testRecord(t *testing.T) (appointments.Record, *clinic.Calendar) {
	t.Helper()
	cal, err := clinic.NewCalendar("Asia/Kolkata")
	require.NoError(t, err)
	day, err := cal.ParseDate("2025-03-10")
	require.NoError(t, err)
	return appointments.Record{
		ID:          uuid.New(),
		Specialty:   clinic.Cardiologist,
		PatientName: "Asha Rao",
		PhoneNumber: "+91 98765-43210",
		ScheduledAt: day.Add(9 * time.Hour),
	}, cal
}

func TestBuildWhatsAppLinks(t *testing.T) {
	rec, cal := testRecord(t)

	links := BuildWhatsAppLinks(rec, "+91 11 2345 6789", cal)

	assert.True(t, strings.HasPrefix(links.Patient, "https://wa.me/919876543210?text="), links.Patient)
	assert.True(t, strings.HasPrefix(links.Clinic, "https://wa.me/911123456789?text="), links.Clinic)

	patientURL, err := url.Parse(links.Patient)
	require.NoError(t, err)
	text := patientURL.Query().Get("text")
	assert.Contains(t, text, "Asha Rao")
	assert.Contains(t, text, "Dr. Marcus Thorne")
	assert.Contains(t, text, "Monday, 10 Mar 2025 at 09:00")

	clinicURL, err := url.Parse(links.Clinic)
	require.NoError(t, err)
	text = clinicURL.Query().Get("text")
	assert.Contains(t, text, "New appointment")
	assert.Contains(t, text, "+91 98765-43210")
}

func TestBuildWhatsAppLinksMissingNumbers(t *testing.T) {
	rec, cal := testRecord(t)
	rec.PhoneNumber = "no digits here"

	links := BuildWhatsAppLinks(rec, "", cal)
	assert.Empty(t, links.Patient)
	assert.Empty(t, links.Clinic)
}

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "919876543210", digitsOnly("+91 98765-43210"))
	assert.Equal(t, "", digitsOnly("abc"))
	assert.Equal(t, "108", digitsOnly("1 0 8"))
}
