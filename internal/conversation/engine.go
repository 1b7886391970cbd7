package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/josbro2/AI-Health-Book-AppBot/internal/appointments"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/clinic"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/notify"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/observability/metrics"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/schedule"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/speech"
	"github.com/josbro2/AI-Health-Book-AppBot/pkg/logging"
)

var engineTracer = otel.Tracer("healthbook.internal.conversation.engine")

// AppointmentStore is the slice of the appointments repository the engine
// needs. *appointments.Repository satisfies it, including its nil
// "database not connected" mode.
type AppointmentStore interface {
	Available() bool
	ListUpcoming(ctx context.Context, from time.Time) ([]appointments.Record, error)
	Create(ctx context.Context, rec appointments.Record) (*appointments.Record, error)
}

// Notifier delivers confirmations for booked appointments.
type Notifier interface {
	BookingConfirmed(ctx context.Context, rec appointments.Record) notify.WhatsAppLinks
}

// Deps wires the booking assistant's collaborators.
type Deps struct {
	LLM       LLMClient
	Store     AppointmentStore
	Sessions  SessionStore
	Emergency *EmergencyDetector
	Intent    IntentDetector
	Notifier  Notifier
	Archive   *TranscriptStore
	Calendar  *clinic.Calendar
	Speaker   speech.Speaker
	Metrics   *metrics.Metrics
	Logger    *logging.Logger
	Now       func() time.Time
}

// BookingAssistant drives a conversation through the booking flow: idle
// chat, doctor selection, detail collection, confirmation, commit.
type BookingAssistant struct {
	llm       LLMClient
	store     AppointmentStore
	sessions  SessionStore
	emergency *EmergencyDetector
	intent    IntentDetector
	notifier  Notifier
	archive   *TranscriptStore
	cal       *clinic.Calendar
	speaker   speech.Speaker
	metrics   *metrics.Metrics
	logger    *logging.Logger
	now       func() time.Time
}

func NewBookingAssistant(deps Deps) *BookingAssistant {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	speaker := deps.Speaker
	if speaker == nil {
		speaker = speech.NoopSpeaker{}
	}
	return &BookingAssistant{
		llm:       deps.LLM,
		store:     deps.Store,
		sessions:  deps.Sessions,
		emergency: deps.Emergency,
		intent:    deps.Intent,
		notifier:  deps.Notifier,
		archive:   deps.Archive,
		cal:       deps.Calendar,
		speaker:   speaker,
		metrics:   deps.Metrics,
		logger:    logger.WithComponent("booking_assistant"),
		now:       now,
	}
}

// appendMessage records a transcript message in the live session store and
// mirrors it to the archive when one is configured. Archive failures are
// logged, never surfaced.
func (a *BookingAssistant) appendMessage(ctx context.Context, sess *Session, msg Message) error {
	if a.archive != nil {
		if _, err := a.archive.EnsureConversation(ctx, sess.ConversationID, sess.Language); err != nil {
			a.logger.Warn("transcript archive failed", "error", err, "conversation_id", sess.ConversationID)
		} else if err := a.archive.ArchiveMessage(ctx, sess.ConversationID, msg); err != nil {
			a.logger.Warn("transcript archive failed", "error", err, "conversation_id", sess.ConversationID)
		}
	}
	return a.sessions.AppendMessage(ctx, sess.ConversationID, msg)
}

func (a *BookingAssistant) respond(sess *Session, message string) *Response {
	locale := LanguageByCode(sess.Language).STTCode
	if message != "" {
		if err := a.speaker.Speak(context.Background(), message, locale); err != nil {
			a.logger.Warn("speech output failed", "error", err, "conversation_id", sess.ConversationID)
		}
	}
	return &Response{
		ConversationID: sess.ConversationID,
		Message:        message,
		SpeakLocale:    locale,
		Timestamp:      a.now(),
	}
}

// refreshRecords reloads the slot cache from the store. Failures keep the
// previous cache and are logged, never surfaced.
func (a *BookingAssistant) refreshRecords(ctx context.Context, sess *Session) {
	if a.store == nil || !a.store.Available() {
		return
	}
	records, err := a.store.ListUpcoming(ctx, a.cal.Today(a.now()))
	if err != nil {
		a.logger.Warn("record refresh failed", "error", err, "conversation_id", sess.ConversationID)
		return
	}
	sess.Records = records
	sess.RefreshedAt = a.now()
}

// StartConversation opens a session, warms the slot cache and greets the
// user with the standing disclaimer.
func (a *BookingAssistant) StartConversation(ctx context.Context, req StartRequest) (*Response, error) {
	id := req.ConversationID
	if id == "" {
		id = "chat_" + uuid.NewString()
	}
	lang := LanguageByCode(req.Language)

	sess := &Session{
		ConversationID: id,
		Language:       lang.Code,
		State:          StateIdle,
		StartedAt:      a.now(),
	}
	a.refreshRecords(ctx, sess)
	if err := a.sessions.SaveSession(ctx, sess); err != nil {
		return nil, err
	}

	greeting := Greeting + "\n\n" + MedicalDisclaimer
	if err := a.appendMessage(ctx, sess, Message{Role: ChatRoleAssistant, Content: greeting}); err != nil {
		return nil, err
	}
	a.logger.Info("conversation started", "conversation_id", id, "language", lang.Code)
	return a.respond(sess, greeting), nil
}

// ProcessMessage runs one user turn. Emergencies pre-empt everything; a
// pending confirmation ignores new messages until resolved.
func (a *BookingAssistant) ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error) {
	return a.processMessage(ctx, req, nil)
}

// ProcessMessageStream behaves like ProcessMessage but calls onFragment
// with each model text fragment as it arrives, for live chat transports.
// Fixed replies (emergency, failures) arrive only in the final Response.
func (a *BookingAssistant) ProcessMessageStream(ctx context.Context, req MessageRequest, onFragment func(string)) (*Response, error) {
	return a.processMessage(ctx, req, onFragment)
}

func (a *BookingAssistant) processMessage(ctx context.Context, req MessageRequest, onFragment func(string)) (*Response, error) {
	ctx, span := engineTracer.Start(ctx, "ProcessMessage")
	defer span.End()

	sess, err := a.sessions.LoadSession(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("conversation.state", string(sess.State)))

	if result := a.emergency.Detect(ctx, req.Message); result.Detected {
		return a.handleEmergency(ctx, sess, req.Message)
	}

	if sess.Locked() {
		resp := a.respond(sess, "")
		resp.Action = ActionAwaitConfirmation
		resp.Pending = sess.Pending
		return resp, nil
	}

	sess.UserTurns++
	if err := a.appendMessage(ctx, sess, Message{Role: ChatRoleUser, Content: req.Message}); err != nil {
		return nil, err
	}

	if sess.State == StateIdle && a.intent.HasBookingIntent(ctx, req.Message, sess.UserTurns) {
		sess.State = StateCollectingSelection
		if err := a.sessions.SaveSession(ctx, sess); err != nil {
			return nil, err
		}
		resp := a.respond(sess, "")
		resp.Action = ActionShowSelection
		return resp, nil
	}

	return a.chatTurn(ctx, sess, onFragment)
}

func (a *BookingAssistant) handleEmergency(ctx context.Context, sess *Session, message string) (*Response, error) {
	if a.metrics != nil {
		a.metrics.EmergenciesHit.Inc()
	}
	sess.ClearPending()
	if err := a.sessions.SaveSession(ctx, sess); err != nil {
		return nil, err
	}
	a.appendMessage(ctx, sess, Message{Role: ChatRoleUser, Content: message})
	a.appendMessage(ctx, sess, Message{Role: ChatRoleAssistant, Content: EmergencyResponse})

	resp := a.respond(sess, EmergencyResponse)
	resp.Action = ActionEmergency
	return resp, nil
}

// SelectDoctor accepts the doctor/date picker result and feeds it back into
// the chat as a synthesized user turn, so the model takes over collecting
// the remaining details.
func (a *BookingAssistant) SelectDoctor(ctx context.Context, req SelectionRequest) (*Response, error) {
	sess, err := a.sessions.LoadSession(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	if sess.Locked() {
		resp := a.respond(sess, "")
		resp.Action = ActionAwaitConfirmation
		resp.Pending = sess.Pending
		return resp, nil
	}

	specialty, ok := clinic.ParseSpecialty(req.Specialty)
	if !ok {
		return nil, fmt.Errorf("conversation: select doctor: unknown specialty %q", req.Specialty)
	}
	if _, err := a.cal.ParseDate(req.Date); err != nil {
		return nil, fmt.Errorf("conversation: select doctor: %w", err)
	}

	// The picker should already hide full days; re-check against the cache.
	full := schedule.FullyBookedDates(sess.Records, a.cal)
	if full[specialty].Contains(req.Date) {
		return a.respond(sess, MsgNoSlotAvailable), nil
	}

	doctor, _ := clinic.DoctorFor(specialty)
	synthesized := fmt.Sprintf("I would like to book an appointment with %s on %s.", doctor.Name, req.Date)

	sess.State = StateAwaitingDetails
	sess.UserTurns++
	if err := a.appendMessage(ctx, sess, Message{Role: ChatRoleUser, Content: synthesized}); err != nil {
		return nil, err
	}
	return a.chatTurn(ctx, sess, nil)
}

// chatTurn sends the stored transcript to the model and routes the reply:
// a parseable appointment payload moves the session to pending
// confirmation, anything else is plain chat.
func (a *BookingAssistant) chatTurn(ctx context.Context, sess *Session, onFragment func(string)) (*Response, error) {
	history, err := a.sessions.History(ctx, sess.ConversationID)
	if err != nil {
		return nil, err
	}

	msgs := make([]ChatMessage, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, ChatMessage{Role: m.Role, Content: m.Content})
	}

	lang := LanguageByCode(sess.Language)
	llmReq := LLMRequest{
		System:   []string{systemInstruction(lang.Name)},
		Messages: msgs,
	}

	start := a.now()
	var llmResp LLMResponse
	if streamer, ok := a.llm.(StreamingLLMClient); ok && onFragment != nil {
		llmResp, err = streamer.CompleteStream(ctx, llmReq, onFragment)
	} else {
		llmResp, err = a.llm.Complete(ctx, llmReq)
	}
	if a.metrics != nil {
		a.metrics.LLMSeconds.Observe(a.now().Sub(start).Seconds())
	}
	if err != nil {
		if a.metrics != nil {
			a.metrics.LLMRequests.WithLabelValues("error").Inc()
		}
		a.logger.Error("llm completion failed", "error", err, "conversation_id", sess.ConversationID)
		a.appendMessage(ctx, sess, Message{Role: ChatRoleAssistant, Content: MsgUpstreamFailure})
		if err := a.sessions.SaveSession(ctx, sess); err != nil {
			return nil, err
		}
		return a.respond(sess, MsgUpstreamFailure), nil
	}
	if a.metrics != nil {
		a.metrics.LLMRequests.WithLabelValues("ok").Inc()
	}

	if pending := ExtractAppointmentPayload(llmResp.Text); pending != nil {
		display := StripPayloadBlock(llmResp.Text)
		sess.Pending = pending
		sess.State = StatePendingConfirmation
		if err := a.appendMessage(ctx, sess, Message{Role: ChatRoleAssistant, Content: display}); err != nil {
			return nil, err
		}
		if err := a.sessions.SaveSession(ctx, sess); err != nil {
			return nil, err
		}
		resp := a.respond(sess, display)
		resp.Action = ActionAwaitConfirmation
		resp.Pending = pending
		return resp, nil
	}

	if err := a.appendMessage(ctx, sess, Message{Role: ChatRoleAssistant, Content: llmResp.Text}); err != nil {
		return nil, err
	}
	if err := a.sessions.SaveSession(ctx, sess); err != nil {
		return nil, err
	}
	return a.respond(sess, llmResp.Text), nil
}

// Confirm commits the pending request: scan for the earliest free slot,
// persist it, notify, and report back. A slot conflict triggers one
// refresh-and-rescan before giving up.
func (a *BookingAssistant) Confirm(ctx context.Context, req ConfirmRequest) (*Response, error) {
	ctx, span := engineTracer.Start(ctx, "Confirm")
	defer span.End()

	sess, err := a.sessions.LoadSession(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	if sess.Pending == nil || sess.State != StatePendingConfirmation {
		return a.respond(sess, MsgNothingPending), nil
	}

	pending := *sess.Pending
	sess.State = StateBooking
	if err := a.sessions.SaveSession(ctx, sess); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("booking.specialty", string(pending.Specialty)),
		attribute.String("booking.date", pending.Date),
	)

	if a.store == nil || !a.store.Available() {
		return a.failBooking(ctx, sess, pending.Specialty, "store_unavailable", MsgStoreUnavailable)
	}

	created, failMsg, status := a.commitBooking(ctx, sess, pending)
	if created == nil {
		return a.failBooking(ctx, sess, pending.Specialty, status, failMsg)
	}

	if a.metrics != nil {
		a.metrics.BookingsTotal.WithLabelValues(string(pending.Specialty), "booked").Inc()
	}
	sess.Records = append(sess.Records, *created)
	a.refreshRecords(ctx, sess)
	sess.ClearPending()
	if err := a.sessions.SaveSession(ctx, sess); err != nil {
		return nil, err
	}

	var links notify.WhatsAppLinks
	if a.notifier != nil {
		links = a.notifier.BookingConfirmed(ctx, *created)
	}

	doctor, _ := clinic.DoctorFor(created.Specialty)
	when := created.ScheduledAt.In(a.cal.Location()).Format("Monday, 02 Jan 2006 at 15:04")
	confirmed := fmt.Sprintf(
		"Your appointment with %s is confirmed for %s. We will now attempt to open WhatsApp to send notifications to you and the clinic.",
		doctor.Name, when,
	)
	a.appendMessage(ctx, sess, Message{Role: ChatRoleAssistant, Content: confirmed})
	a.logger.Info("appointment booked",
		"conversation_id", sess.ConversationID,
		"booking_id", created.ID,
		"specialty", created.Specialty,
		"scheduled_at", created.ScheduledAt,
	)

	resp := a.respond(sess, confirmed)
	resp.Booked = created
	resp.PatientNotify = links.Patient
	resp.ClinicNotify = links.Clinic
	return resp, nil
}

// commitBooking finds a slot and inserts the record. On a unique-index
// conflict it refreshes the cache and rescans exactly once.
func (a *BookingAssistant) commitBooking(ctx context.Context, sess *Session, pending appointments.Request) (*appointments.Record, string, string) {
	slot, failMsg, status := a.findSlot(sess, pending)
	if failMsg != "" {
		return nil, failMsg, status
	}

	for attempt := 0; attempt < 2; attempt++ {
		rec := appointments.Record{
			ID:          uuid.New(),
			Specialty:   pending.Specialty,
			PatientName: pending.PatientName,
			PhoneNumber: pending.PhoneNumber,
			ScheduledAt: slot,
			CreatedAt:   a.now(),
		}
		created, err := a.store.Create(ctx, rec)
		if err == nil {
			return created, "", ""
		}
		if errors.Is(err, appointments.ErrSlotTaken) && attempt == 0 {
			a.logger.Warn("slot conflict, rescanning", "conversation_id", sess.ConversationID, "slot", slot)
			a.refreshRecords(ctx, sess)
			slot, failMsg, status = a.findSlot(sess, pending)
			if failMsg != "" {
				return nil, failMsg, status
			}
			continue
		}
		if errors.Is(err, appointments.ErrSlotTaken) {
			return nil, MsgNoSlotAvailable, "conflict"
		}
		if errors.Is(err, appointments.ErrStoreUnavailable) {
			return nil, MsgStoreUnavailable, "store_unavailable"
		}
		a.logger.Error("booking insert failed", "error", err, "conversation_id", sess.ConversationID)
		return nil, MsgBookingFailed, "error"
	}
	return nil, MsgBookingFailed, "error"
}

func (a *BookingAssistant) findSlot(sess *Session, pending appointments.Request) (time.Time, string, string) {
	start := a.now()
	slot, err := schedule.NextFreeSlot(sess.Records, pending.Specialty, pending.Date, a.cal)
	if a.metrics != nil {
		a.metrics.SlotScanSeconds.Observe(a.now().Sub(start).Seconds())
	}
	switch {
	case errors.Is(err, schedule.ErrNoSlotAvailable):
		return time.Time{}, MsgNoSlotAvailable, "full"
	case err != nil:
		return time.Time{}, MsgBookingFailed, "invalid_date"
	}
	return slot, "", ""
}

func (a *BookingAssistant) failBooking(ctx context.Context, sess *Session, specialty clinic.Specialty, status, message string) (*Response, error) {
	if a.metrics != nil {
		a.metrics.BookingsTotal.WithLabelValues(string(specialty), status).Inc()
	}
	sess.ClearPending()
	if err := a.sessions.SaveSession(ctx, sess); err != nil {
		return nil, err
	}
	a.appendMessage(ctx, sess, Message{Role: ChatRoleAssistant, Content: message})
	return a.respond(sess, message), nil
}

// Cancel discards the pending request and returns the session to idle chat.
func (a *BookingAssistant) Cancel(ctx context.Context, req CancelRequest) (*Response, error) {
	sess, err := a.sessions.LoadSession(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	sess.ClearPending()
	if err := a.sessions.SaveSession(ctx, sess); err != nil {
		return nil, err
	}
	a.appendMessage(ctx, sess, Message{Role: ChatRoleAssistant, Content: MsgBookingCancelled})
	return a.respond(sess, MsgBookingCancelled), nil
}

// Emergency handles the chat UI's explicit emergency control, taking the
// same path as a detected emergency phrase.
func (a *BookingAssistant) Emergency(ctx context.Context, req EmergencyRequest) (*Response, error) {
	sess, err := a.sessions.LoadSession(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	return a.handleEmergency(ctx, sess, "I need emergency assistance.")
}

// ListenAndRespond drains a recorder's transcript stream, running each
// utterance through the normal message path. Returns when the stream
// closes or ctx is cancelled. Replies reach the caller through the
// injected speaker.
func (a *BookingAssistant) ListenAndRespond(ctx context.Context, conversationID string, rec speech.Recorder) error {
	stream, err := rec.Record(ctx)
	if err != nil {
		return fmt.Errorf("conversation: record: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tr, ok := <-stream:
			if !ok {
				return nil
			}
			if tr.Text == "" {
				continue
			}
			if _, err := a.ProcessMessage(ctx, MessageRequest{ConversationID: conversationID, Message: tr.Text}); err != nil {
				return err
			}
		}
	}
}

// Availability reports, per specialty, the dates with no free slot left,
// for the date picker to disable.
func (a *BookingAssistant) Availability(ctx context.Context, conversationID string) (AvailabilityView, error) {
	sess, err := a.sessions.LoadSession(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	a.refreshRecords(ctx, sess)
	if err := a.sessions.SaveSession(ctx, sess); err != nil {
		return nil, err
	}

	view := AvailabilityView{}
	for specialty, dates := range schedule.FullyBookedDates(sess.Records, a.cal) {
		view[specialty] = dates.Dates()
	}
	return view, nil
}

// History returns the stored transcript.
func (a *BookingAssistant) History(ctx context.Context, conversationID string) ([]Message, error) {
	if _, err := a.sessions.LoadSession(ctx, conversationID); err != nil {
		return nil, err
	}
	return a.sessions.History(ctx, conversationID)
}

var _ Service = (*BookingAssistant)(nil)
