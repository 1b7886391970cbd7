package conversation

import (
	"time"

	"github.com/josbro2/AI-Health-Book-AppBot/internal/appointments"
)

// State is the booking flow position of a conversation.
type State string

const (
	// StateIdle accepts free chat and watches for booking intent.
	StateIdle State = "idle"
	// StateCollectingSelection waits for the doctor/date picker result.
	StateCollectingSelection State = "collecting_selection"
	// StateAwaitingDetails waits for the model to emit a complete payload.
	StateAwaitingDetails State = "awaiting_details"
	// StatePendingConfirmation holds a parsed request until the user
	// confirms or cancels. New chat messages are ignored in this state.
	StatePendingConfirmation State = "pending_confirmation"
	// StateBooking marks a confirmation that is being committed.
	StateBooking State = "booking"
)

// Session is the per-conversation state persisted between turns.
type Session struct {
	ConversationID string                `json:"conversation_id"`
	Language       string                `json:"language"`
	State          State                 `json:"state"`
	UserTurns      int                   `json:"user_turns"`
	Pending        *appointments.Request `json:"pending,omitempty"`
	Records        []appointments.Record `json:"records,omitempty"`
	RefreshedAt    time.Time             `json:"refreshed_at"`
	StartedAt      time.Time             `json:"started_at"`
}

// Locked reports whether new chat messages should be ignored until the
// pending request is resolved.
func (s *Session) Locked() bool {
	return s.State == StatePendingConfirmation || s.State == StateBooking
}

// ClearPending drops the pending request and returns the session to idle.
func (s *Session) ClearPending() {
	s.Pending = nil
	s.State = StateIdle
}
