package notify

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/josbro2/AI-Health-Book-AppBot/internal/appointments"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/clinic"
)

// WhatsAppLinks are click-to-chat URLs with a prefilled confirmation text.
// The client opens them; no WhatsApp API credentials are involved.
type WhatsAppLinks struct {
	Patient string `json:"patient,omitempty"`
	Clinic  string `json:"clinic,omitempty"`
}

// digitsOnly strips everything but digits so "+91 98765-43210" becomes a
// wa.me-compatible number.
func digitsOnly(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func waLink(phone, text string) string {
	digits := digitsOnly(phone)
	if digits == "" {
		return ""
	}
	return fmt.Sprintf("https://wa.me/%s?text=%s", digits, url.QueryEscape(text))
}

// BuildWhatsAppLinks composes the patient and clinic notification links for
// a confirmed appointment. Times are rendered in the clinic's timezone.
func BuildWhatsAppLinks(rec appointments.Record, clinicNumber string, cal *clinic.Calendar) WhatsAppLinks {
	doctor, _ := clinic.DoctorFor(rec.Specialty)
	when := rec.ScheduledAt.In(cal.Location()).Format("Monday, 02 Jan 2006 at 15:04")

	patientText := fmt.Sprintf(
		"Hello %s, your appointment with %s (%s) is confirmed for %s.",
		rec.PatientName, doctor.Name, rec.Specialty, when,
	)
	clinicText := fmt.Sprintf(
		"New appointment: %s with %s (%s) on %s. Patient phone: %s.",
		rec.PatientName, doctor.Name, rec.Specialty, when, rec.PhoneNumber,
	)
	return WhatsAppLinks{
		Patient: waLink(rec.PhoneNumber, patientText),
		Clinic:  waLink(clinicNumber, clinicText),
	}
}
