package conversation

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/josbro2/AI-Health-Book-AppBot/internal/appointments"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/clinic"
)

// payloadBlockRe locates a single fenced ```json block in model output.
var payloadBlockRe = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// appointmentPayload is the wire shape the model is instructed to emit.
type appointmentPayload struct {
	Specialty   string `json:"specialty"`
	DateTime    string `json:"dateTime"` // YYYY-MM-DD, day granularity
	PatientName string `json:"patientName"`
	PhoneNumber string `json:"phoneNumber"`
}

// ExtractAppointmentPayload locates a fenced JSON block inside free text and
// returns the parsed request only when all four required fields are present
// and non-empty. Malformed JSON, a missing block, or a missing field all
// yield nil: the conversation is simply not yet a complete booking request,
// never an error to surface.
func ExtractAppointmentPayload(responseText string) *appointments.Request {
	match := payloadBlockRe.FindStringSubmatch(responseText)
	if match == nil {
		return nil
	}

	var payload appointmentPayload
	if err := json.Unmarshal([]byte(match[1]), &payload); err != nil {
		return nil
	}

	specialty, ok := clinic.ParseSpecialty(payload.Specialty)
	if !ok {
		return nil
	}

	req := appointments.Request{
		Specialty:   specialty,
		Date:        strings.TrimSpace(payload.DateTime),
		PatientName: strings.TrimSpace(payload.PatientName),
		PhoneNumber: strings.TrimSpace(payload.PhoneNumber),
	}
	if !req.Complete() {
		return nil
	}
	return &req
}

// StripPayloadBlock removes the fenced JSON block (and anything after it)
// from display text, leaving the human-readable confirmation sentence.
func StripPayloadBlock(responseText string) string {
	idx := strings.Index(responseText, "```json")
	if idx < 0 {
		return responseText
	}
	return strings.TrimSpace(responseText[:idx])
}
