package appointments

import (
	"time"

	"github.com/google/uuid"

	"github.com/josbro2/AI-Health-Book-AppBot/internal/clinic"
)

// Record is a persisted appointment. Records are immutable once created;
// there is no update or cancel path.
type Record struct {
	ID          uuid.UUID        `json:"id"`
	Specialty   clinic.Specialty `json:"specialty"`
	PatientName string           `json:"patient_name"`
	PhoneNumber string           `json:"phone_number"`
	ScheduledAt time.Time        `json:"scheduled_at"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Request is an unconfirmed booking intent. It carries a requested calendar
// day, not a committed slot; the slot is assigned at confirmation time.
type Request struct {
	Specialty   clinic.Specialty `json:"specialty"`
	Date        string           `json:"date"` // YYYY-MM-DD
	PatientName string           `json:"patient_name"`
	PhoneNumber string           `json:"phone_number"`
}

// Complete reports whether all four required fields are populated.
func (r Request) Complete() bool {
	return r.Specialty != "" && r.Date != "" && r.PatientName != "" && r.PhoneNumber != ""
}
