package conversation

import (
	"fmt"
	"strings"

	"github.com/josbro2/AI-Health-Book-AppBot/internal/clinic"
)

// Language is a supported conversation language with its speech locale.
type Language struct {
	Code    string `json:"code"`     // "en", "hi", "mr"
	Name    string `json:"name"`     // display name fed to the system prompt
	STTCode string `json:"stt_code"` // BCP-47 locale for speech I/O
}

var languages = []Language{
	{Code: "en", Name: "English", STTCode: "en-US"},
	{Code: "hi", Name: "हिंदी (Hindi)", STTCode: "hi-IN"},
	{Code: "mr", Name: "मराठी (Marathi)", STTCode: "mr-IN"},
}

// Languages returns the supported language set.
func Languages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}

// LanguageByCode resolves a language code, falling back to English.
func LanguageByCode(code string) Language {
	for _, l := range languages {
		if strings.EqualFold(l.Code, code) {
			return l
		}
	}
	return languages[0]
}

// MedicalDisclaimer is shown alongside every conversation surface.
const MedicalDisclaimer = "Disclaimer: This AI assistant is for informational purposes only and not a substitute for professional medical advice, diagnosis, or treatment. Always seek the advice of your physician or other qualified health provider with any questions you may have regarding a medical condition."

// EmergencyResponse is the fixed reply for detected emergencies. It
// pre-empts every other state.
const EmergencyResponse = "This seems like a medical emergency. Please call emergency services like 112 or 108 in India immediately. This service is not for medical emergencies."

// Greeting opens every new conversation.
const Greeting = "Hello! How can I help you today? Please remember, I am an AI assistant and not a medical professional. I can help you book an appointment."

// User-visible failure messages, one per cause.
const (
	MsgStoreUnavailable = "I'm sorry, but the database is not connected, so I cannot save your appointment. Please contact the administrator."
	MsgNoSlotAvailable  = "We are sorry, but there are no available appointment slots for the selected date with this doctor. Please try another day by starting a new booking request."
	MsgBookingFailed    = "We're sorry, but there was an error confirming your appointment. Please try again later."
	MsgUpstreamFailure  = "Sorry, I encountered an error. Please try again."
	MsgBookingCancelled = "The appointment booking has been cancelled. How can I help you otherwise?"
	MsgNothingPending   = "There is no appointment awaiting confirmation."
)

// systemInstruction builds the conversational system prompt. The model must
// collect patient name and phone number, then emit the confirmation sentence
// followed immediately by a single fenced JSON block with no trailing text.
func systemInstruction(languageName string) string {
	var doctors strings.Builder
	for _, d := range clinic.Doctors() {
		fmt.Fprintf(&doctors, "- %s (%s)\n", d.Name, d.Specialty)
	}

	return fmt.Sprintf(`You are a helpful and compassionate AI healthcare assistant. Your primary role is to help users book medical appointments with our available doctors.
You are not a doctor and must not provide medical advice, diagnoses, or prescriptions.

We have the following specialists available:
%s
Your conversation flow for booking an appointment is as follows:
1. Greet the user. If they express intent to book an appointment, the system will show them an interface to select a doctor and date.
2. Once the user has made their selection, they will confirm it in the chat. Your job is to then collect the remaining information.
3. Ask for the patient's full name.
4. Ask for a WhatsApp-enabled phone number for notifications.
5. Once you have all four pieces of information (specialty, date, name, phone number), you MUST present a summary for confirmation.
6. Use a formal and reassuring tone for the confirmation message. For example: "Excellent. I have the following details for your appointment with [Doctor's Name]. The system will assign the next available 15-minute time slot for the selected date. Please review them carefully and confirm if everything is correct."
7. Immediately after the confirmation message, you MUST provide the collected details in a single, clean JSON block formatted exactly like this:
`+"```json"+`
{
  "specialty": "string",
  "dateTime": "YYYY-MM-DD",
  "patientName": "string",
  "phoneNumber": "string"
}
`+"```"+`
For the "dateTime" field, only provide the date in YYYY-MM-DD format. Do not include time.
For the "specialty" field, use the specialty of the doctor (e.g., "Cardiologist").
Do not include any other text after the JSON block.

You must respond ONLY in the following language: %s.
Always start your very first response with a disclaimer: "As an AI assistant, I am not a medical professional. The following information is for educational purposes only. Please consult a healthcare provider for any medical concerns. I can help you book an appointment with one of our doctors."`, doctors.String(), languageName)
}

// extractionSystemPrompt constrains the single-shot extraction calls to emit
// a bare value or the INVALID sentinel, nothing else.
const (
	dateExtractionSystem      = "You are an expert date parsing system. Your only output should be a single date string in YYYY-MM-DD format or the exact word 'INVALID'. Do not add any other explanatory text."
	specialtyExtractionSystem = "You are an expert entity extraction system. Your only output should be a single specialty string or the exact word 'INVALID'. Do not add any other explanatory text."
)

func dateExtractionPrompt(freeText, today string) string {
	return fmt.Sprintf("Parse the following text into a YYYY-MM-DD format. The date must not be in the past. Today's date is %s. If the text does not represent a clear future or present date, output 'INVALID'.\n\nText: %q", today, freeText)
}

func specialtyExtractionPrompt(freeText string) string {
	var doctors strings.Builder
	for _, d := range clinic.Doctors() {
		fmt.Fprintf(&doctors, "- %s (%s)\n", d.Name, d.Specialty)
	}
	return fmt.Sprintf("From the following list of doctors:\n%s\nIdentify which doctor's specialty is mentioned in the text below. Respond with only the specialty name (e.g., \"Cardiologist\"). If no clear match is found, respond with \"INVALID\".\n\nText: %q", doctors.String(), freeText)
}
