package conversation

import (
	"context"
	"time"

	"github.com/josbro2/AI-Health-Book-AppBot/internal/appointments"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/clinic"
)

// Service describes how the booking assistant engine behaves.
type Service interface {
	StartConversation(ctx context.Context, req StartRequest) (*Response, error)
	ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error)
	SelectDoctor(ctx context.Context, req SelectionRequest) (*Response, error)
	Confirm(ctx context.Context, req ConfirmRequest) (*Response, error)
	Cancel(ctx context.Context, req CancelRequest) (*Response, error)
	Emergency(ctx context.Context, req EmergencyRequest) (*Response, error)
	Availability(ctx context.Context, conversationID string) (AvailabilityView, error)
	History(ctx context.Context, conversationID string) ([]Message, error)
}

// Message represents a single message in a conversation transcript.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// StartRequest opens a new conversation.
type StartRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Language       string `json:"language,omitempty"` // "en", "hi", "mr"
}

// MessageRequest is a single user turn. Typed text and speech transcripts
// arrive identically.
type MessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// SelectionRequest carries the outcome of the external doctor/date picker.
type SelectionRequest struct {
	ConversationID string `json:"conversation_id"`
	Specialty      string `json:"specialty"`
	Date           string `json:"date"` // YYYY-MM-DD
}

// ConfirmRequest confirms the pending booking request.
type ConfirmRequest struct {
	ConversationID string `json:"conversation_id"`
}

// CancelRequest discards the pending booking request.
type CancelRequest struct {
	ConversationID string `json:"conversation_id"`
}

// EmergencyRequest is the chat UI's explicit emergency control.
type EmergencyRequest struct {
	ConversationID string `json:"conversation_id"`
}

// Action tells the UI collaborator which surface to present next.
type Action string

const (
	ActionNone              Action = ""
	ActionShowSelection     Action = "show_selection"     // doctor/date picker
	ActionAwaitConfirmation Action = "await_confirmation" // confirm/cancel controls
	ActionEmergency         Action = "emergency"
)

// Response is the DTO returned to the API layer. Message text doubles as the
// speech payload; SpeakLocale carries the session's STT locale.
type Response struct {
	ConversationID string                `json:"conversation_id"`
	Message        string                `json:"message"`
	Action         Action                `json:"action,omitempty"`
	Pending        *appointments.Request `json:"pending,omitempty"`
	Booked         *appointments.Record  `json:"booked,omitempty"`
	PatientNotify  string                `json:"patient_notify_url,omitempty"`
	ClinicNotify   string                `json:"clinic_notify_url,omitempty"`
	SpeakLocale    string                `json:"speak_locale,omitempty"`
	Timestamp      time.Time             `json:"timestamp"`
}

// AvailabilityView maps each specialty to its fully booked dates, used by
// the external date picker to restrict selectable days.
type AvailabilityView map[clinic.Specialty][]string
