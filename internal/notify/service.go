// Package notify delivers booking confirmations to the patient and the
// clinic. WhatsApp notifications are click-to-chat links opened by the
// client; email to the clinic is sent server side and is best effort.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/josbro2/AI-Health-Book-AppBot/internal/appointments"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/clinic"
	"github.com/josbro2/AI-Health-Book-AppBot/pkg/logging"
)

const sendTimeout = 10 * time.Second

// Config holds the clinic-side notification targets.
type Config struct {
	ClinicWhatsAppNumber string
	ClinicEmail          string
}

// Service composes notifications for confirmed appointments.
type Service struct {
	email  EmailSender
	cal    *clinic.Calendar
	cfg    Config
	logger *logging.Logger
}

// NewService creates a notification service. email may be nil when no
// provider is configured.
func NewService(email EmailSender, cal *clinic.Calendar, cfg Config, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:  email,
		cal:    cal,
		cfg:    cfg,
		logger: logger.WithComponent("notify"),
	}
}

// BookingConfirmed returns the WhatsApp links for the caller to open and
// fires the clinic email in the background. Notification failures never
// fail the booking.
func (s *Service) BookingConfirmed(ctx context.Context, rec appointments.Record) WhatsAppLinks {
	links := BuildWhatsAppLinks(rec, s.cfg.ClinicWhatsAppNumber, s.cal)

	if s.email != nil && s.cfg.ClinicEmail != "" {
		go s.sendClinicEmail(rec)
	}
	return links
}

func (s *Service) sendClinicEmail(rec appointments.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	doctor, _ := clinic.DoctorFor(rec.Specialty)
	when := rec.ScheduledAt.In(s.cal.Location()).Format("Monday, 02 Jan 2006 at 15:04")

	msg := EmailMessage{
		To:      s.cfg.ClinicEmail,
		ToName:  "Front Desk",
		Subject: fmt.Sprintf("New appointment: %s with %s", rec.PatientName, doctor.Name),
		Body: fmt.Sprintf(
			"Patient: %s\nPhone: %s\nDoctor: %s (%s)\nWhen: %s\nBooking ID: %s\n",
			rec.PatientName, rec.PhoneNumber, doctor.Name, rec.Specialty, when, rec.ID,
		),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("clinic email failed", "error", err, "booking_id", rec.ID)
		return
	}
	s.logger.Info("clinic notified", "booking_id", rec.ID)
}
