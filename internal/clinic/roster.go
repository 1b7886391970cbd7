package clinic

import "strings"

// Specialty is the capacity-tracking key for bookings. Capacity is modeled as
// one clinic-wide line per specialty, so the roster maps each specialty to
// exactly one doctor for display.
type Specialty string

const (
	GeneralPhysician Specialty = "General Physician"
	Cardiologist     Specialty = "Cardiologist"
	Dermatologist    Specialty = "Dermatologist"
	Pediatrician     Specialty = "Pediatrician"
)

// Doctor is a roster entry shown to patients.
type Doctor struct {
	Name      string    `json:"name"`
	Specialty Specialty `json:"specialty"`
}

var roster = []Doctor{
	{Name: "Dr. Evelyn Reed", Specialty: GeneralPhysician},
	{Name: "Dr. Marcus Thorne", Specialty: Cardiologist},
	{Name: "Dr. Lena Petrova", Specialty: Dermatologist},
	{Name: "Dr. Javier Solis", Specialty: Pediatrician},
}

// Doctors returns the clinic roster.
func Doctors() []Doctor {
	out := make([]Doctor, len(roster))
	copy(out, roster)
	return out
}

// Specialties returns the known specialty set in roster order.
func Specialties() []Specialty {
	out := make([]Specialty, 0, len(roster))
	for _, d := range roster {
		out = append(out, d.Specialty)
	}
	return out
}

// ParseSpecialty validates s against the known set. Matching is
// case-insensitive but otherwise exact.
func ParseSpecialty(s string) (Specialty, bool) {
	trimmed := strings.TrimSpace(s)
	for _, d := range roster {
		if strings.EqualFold(trimmed, string(d.Specialty)) {
			return d.Specialty, true
		}
	}
	return "", false
}

// DoctorFor returns the roster entry for a specialty.
func DoctorFor(s Specialty) (Doctor, bool) {
	for _, d := range roster {
		if d.Specialty == s {
			return d, true
		}
	}
	return Doctor{}, false
}
