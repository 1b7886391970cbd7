package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josbro2/AI-Health-Book-AppBot/internal/clinic"
)

const validPayloadReply = "Excellent. I have the following details for your appointment with Dr. Lena Petrova. Please confirm.\n" +
	"```json\n" +
	"{\n" +
	"  \"specialty\": \"Dermatologist\",\n" +
	"  \"dateTime\": \"2025-03-10\",\n" +
	"  \"patientName\": \"Asha Rao\",\n" +
	"  \"phoneNumber\": \"+91 98765 43210\"\n" +
	"}\n" +
	"```"

func TestExtractAppointmentPayload(t *testing.T) {
	req := ExtractAppointmentPayload(validPayloadReply)
	require.NotNil(t, req)
	assert.Equal(t, clinic.Dermatologist, req.Specialty)
	assert.Equal(t, "2025-03-10", req.Date)
	assert.Equal(t, "Asha Rao", req.PatientName)
	assert.Equal(t, "+91 98765 43210", req.PhoneNumber)
}

func TestExtractAppointmentPayloadNormalizesSpecialtyCase(t *testing.T) {
	text := "Done.\n```json\n{\"specialty\": \"cardiologist\", \"dateTime\": \"2025-04-01\", \"patientName\": \"Ravi\", \"phoneNumber\": \"9876543210\"}\n```"
	req := ExtractAppointmentPayload(text)
	require.NotNil(t, req)
	assert.Equal(t, clinic.Cardiologist, req.Specialty)
}

func TestExtractAppointmentPayloadRejections(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no block", "Just a chat reply with no payload."},
		{"unfenced json", `{"specialty": "Cardiologist", "dateTime": "2025-03-10", "patientName": "A", "phoneNumber": "1"}`},
		{"malformed json", "```json\n{\"specialty\": \"Cardiologist\",\n```"},
		{"unknown specialty", "```json\n{\"specialty\": \"Astrologer\", \"dateTime\": \"2025-03-10\", \"patientName\": \"A\", \"phoneNumber\": \"1\"}\n```"},
		{"missing name", "```json\n{\"specialty\": \"Cardiologist\", \"dateTime\": \"2025-03-10\", \"patientName\": \"\", \"phoneNumber\": \"1\"}\n```"},
		{"missing phone", "```json\n{\"specialty\": \"Cardiologist\", \"dateTime\": \"2025-03-10\", \"patientName\": \"A\"}\n```"},
		{"missing date", "```json\n{\"specialty\": \"Cardiologist\", \"patientName\": \"A\", \"phoneNumber\": \"1\"}\n```"},
		{"empty block", "```json\n```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, ExtractAppointmentPayload(tt.text))
		})
	}
}

func TestStripPayloadBlock(t *testing.T) {
	stripped := StripPayloadBlock(validPayloadReply)
	assert.NotContains(t, stripped, "```")
	assert.Equal(t, "Excellent. I have the following details for your appointment with Dr. Lena Petrova. Please confirm.", stripped)

	assert.Equal(t, "plain text", StripPayloadBlock("plain text"))
	assert.Equal(t, "", StripPayloadBlock("```json\n{}\n```"))
}
