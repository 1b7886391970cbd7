package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josbro2/AI-Health-Book-AppBot/internal/appointments"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/clinic"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/notify"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/observability/metrics"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/speech"
	"github.com/josbro2/AI-Health-Book-AppBot/pkg/logging"
)

// fakeLLM returns scripted responses in order and records requests.
type fakeLLM struct {
	mu        sync.Mutex
	responses []LLMResponse
	err       error
	calls     int
	lastReq   LLMRequest
}

func (f *fakeLLM) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return LLMResponse{}, f.err
	}
	if len(f.responses) == 0 {
		return LLMResponse{Text: "How can I help?"}, nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

// memSessions is an in-memory SessionStore for engine tests.
type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
	history  map[string][]Message
}

func newMemSessions() *memSessions {
	return &memSessions{
		sessions: make(map[string]*Session),
		history:  make(map[string][]Message),
	}
}

func (m *memSessions) SaveSession(_ context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sess
	m.sessions[sess.ConversationID] = &cp
	return nil
}

func (m *memSessions) LoadSession(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

func (m *memSessions) AppendMessage(_ context.Context, id string, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[id] = append(m.history[id], msg)
	return nil
}

func (m *memSessions) History(_ context.Context, id string) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.history[id]...), nil
}

// fakeStore is an in-memory AppointmentStore with failure injection.
type fakeStore struct {
	mu          sync.Mutex
	available   bool
	records     []appointments.Record
	createErrs  []error // consumed one per Create call before succeeding
	createCalls int
}

func (f *fakeStore) Available() bool { return f.available }

func (f *fakeStore) ListUpcoming(_ context.Context, _ time.Time) ([]appointments.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]appointments.Record(nil), f.records...), nil
}

func (f *fakeStore) Create(_ context.Context, rec appointments.Record) (*appointments.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	f.records = append(f.records, rec)
	return &rec, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []appointments.Record
}

func (f *fakeNotifier) BookingConfirmed(_ context.Context, rec appointments.Record) notify.WhatsAppLinks {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rec)
	return notify.WhatsAppLinks{Patient: "https://wa.me/911234567890?text=hi"}
}

type spokenLine struct {
	text   string
	locale string
}

type fakeSpeaker struct {
	mu    sync.Mutex
	lines []spokenLine
}

func (f *fakeSpeaker) Speak(_ context.Context, text, locale string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, spokenLine{text: text, locale: locale})
	return nil
}

type fakeRecorder struct {
	ch chan speech.Transcript
}

func (f *fakeRecorder) Record(context.Context) (<-chan speech.Transcript, error) {
	return f.ch, nil
}

func testCalendar(t *testing.T) *clinic.Calendar {
	t.Helper()
	cal, err := clinic.NewCalendar("Asia/Kolkata")
	require.NoError(t, err)
	return cal
}

type engineFixture struct {
	engine   *BookingAssistant
	llm      *fakeLLM
	store    *fakeStore
	sessions *memSessions
	notifier *fakeNotifier
	speaker  *fakeSpeaker
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	llm := &fakeLLM{}
	store := &fakeStore{available: true}
	sessions := newMemSessions()
	notifier := &fakeNotifier{}
	speaker := &fakeSpeaker{}
	logger := logging.Default()
	fixed := time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC)

	engine := NewBookingAssistant(Deps{
		LLM:       llm,
		Store:     store,
		Sessions:  sessions,
		Emergency: NewEmergencyDetector(logger),
		Intent:    NewKeywordIntentDetector(logger),
		Notifier:  notifier,
		Calendar:  testCalendar(t),
		Speaker:   speaker,
		Metrics:   metrics.New(prometheus.NewRegistry()),
		Logger:    logger,
		Now:       func() time.Time { return fixed },
	})
	return &engineFixture{engine: engine, llm: llm, store: store, sessions: sessions, notifier: notifier, speaker: speaker}
}

func (f *engineFixture) start(t *testing.T) string {
	t.Helper()
	resp, err := f.engine.StartConversation(context.Background(), StartRequest{})
	require.NoError(t, err)
	return resp.ConversationID
}

// pendingSession drives a conversation into the pending-confirmation state
// via a scripted payload response.
func (f *engineFixture) pendingSession(t *testing.T, specialty clinic.Specialty, date string) string {
	t.Helper()
	id := f.start(t)
	f.llm.mu.Lock()
	f.llm.responses = append(f.llm.responses, LLMResponse{Text: payloadReply(specialty, date)})
	f.llm.mu.Unlock()

	resp, err := f.engine.ProcessMessage(context.Background(), MessageRequest{
		ConversationID: id,
		Message:        "My name is Asha Rao, phone +91 98765 43210",
	})
	require.NoError(t, err)
	require.Equal(t, ActionAwaitConfirmation, resp.Action)
	require.NotNil(t, resp.Pending)
	return id
}

func payloadReply(specialty clinic.Specialty, date string) string {
	return fmt.Sprintf("Excellent. Please review the details and confirm.\n```json\n{\n  \"specialty\": %q,\n  \"dateTime\": %q,\n  \"patientName\": \"Asha Rao\",\n  \"phoneNumber\": \"+91 98765 43210\"\n}\n```", specialty, date)
}

func TestStartConversationGreets(t *testing.T) {
	f := newEngineFixture(t)

	resp, err := f.engine.StartConversation(context.Background(), StartRequest{Language: "hi"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ConversationID)
	assert.Contains(t, resp.Message, Greeting)
	assert.Contains(t, resp.Message, MedicalDisclaimer)
	assert.Equal(t, "hi-IN", resp.SpeakLocale)

	sess, err := f.sessions.LoadSession(context.Background(), resp.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, sess.State)
	assert.Equal(t, "hi", sess.Language)
}

func TestProcessMessageUnknownConversation(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.ProcessMessage(context.Background(), MessageRequest{ConversationID: "nope", Message: "hi"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestBookingIntentShowsSelection(t *testing.T) {
	f := newEngineFixture(t)
	id := f.start(t)

	resp, err := f.engine.ProcessMessage(context.Background(), MessageRequest{
		ConversationID: id,
		Message:        "I want to book an appointment",
	})
	require.NoError(t, err)

	assert.Equal(t, ActionShowSelection, resp.Action)
	assert.Zero(t, f.llm.calls, "intent shortcut should not call the model")

	sess, err := f.sessions.LoadSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StateCollectingSelection, sess.State)
}

func TestBookingIntentExpiresAfterFiveTurns(t *testing.T) {
	f := newEngineFixture(t)
	id := f.start(t)

	for i := 0; i < 5; i++ {
		_, err := f.engine.ProcessMessage(context.Background(), MessageRequest{
			ConversationID: id,
			Message:        fmt.Sprintf("small talk %d", i),
		})
		require.NoError(t, err)
	}

	resp, err := f.engine.ProcessMessage(context.Background(), MessageRequest{
		ConversationID: id,
		Message:        "please book an appointment",
	})
	require.NoError(t, err)
	assert.Equal(t, ActionNone, resp.Action)
	assert.Equal(t, 6, f.llm.calls, "late intent should go to the model")
}

func TestEmergencyPreemptsPendingConfirmation(t *testing.T) {
	f := newEngineFixture(t)
	id := f.pendingSession(t, clinic.Cardiologist, "2025-03-10")

	resp, err := f.engine.ProcessMessage(context.Background(), MessageRequest{
		ConversationID: id,
		Message:        "Actually I have severe chest pain right now",
	})
	require.NoError(t, err)

	assert.Equal(t, ActionEmergency, resp.Action)
	assert.Equal(t, EmergencyResponse, resp.Message)

	sess, err := f.sessions.LoadSession(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, sess.Pending)
	assert.Equal(t, StateIdle, sess.State)
}

func TestEmergencyButtonBypassesDetection(t *testing.T) {
	f := newEngineFixture(t)
	id := f.pendingSession(t, clinic.GeneralPhysician, "2025-03-10")

	resp, err := f.engine.Emergency(context.Background(), EmergencyRequest{ConversationID: id})
	require.NoError(t, err)

	assert.Equal(t, ActionEmergency, resp.Action)
	assert.Equal(t, EmergencyResponse, resp.Message)

	sess, err := f.sessions.LoadSession(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, sess.Pending)
}

func TestRepliesAreSpoken(t *testing.T) {
	f := newEngineFixture(t)

	resp, err := f.engine.StartConversation(context.Background(), StartRequest{Language: "mr"})
	require.NoError(t, err)

	f.speaker.mu.Lock()
	defer f.speaker.mu.Unlock()
	require.NotEmpty(t, f.speaker.lines)
	last := f.speaker.lines[len(f.speaker.lines)-1]
	assert.Equal(t, resp.Message, last.text)
	assert.Equal(t, "mr-IN", last.locale)
}

func TestListenAndRespondDrainsTranscripts(t *testing.T) {
	f := newEngineFixture(t)
	id := f.start(t)
	f.llm.mu.Lock()
	f.llm.responses = append(f.llm.responses,
		LLMResponse{Text: "Hello! How can I help?"},
		LLMResponse{Text: "Of course."},
	)
	f.llm.mu.Unlock()

	rec := &fakeRecorder{ch: make(chan speech.Transcript, 2)}
	rec.ch <- speech.Transcript{Text: "hello there", Locale: "en-US"}
	rec.ch <- speech.Transcript{Text: "tell me about the clinic", Locale: "en-US"}
	close(rec.ch)

	require.NoError(t, f.engine.ListenAndRespond(context.Background(), id, rec))
	assert.Equal(t, 2, f.llm.calls)

	history, err := f.engine.History(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Of course.", history[len(history)-1].Content)
}

func TestPendingConfirmationIgnoresNewMessages(t *testing.T) {
	f := newEngineFixture(t)
	id := f.pendingSession(t, clinic.Dermatologist, "2025-03-10")
	callsBefore := f.llm.calls

	resp, err := f.engine.ProcessMessage(context.Background(), MessageRequest{
		ConversationID: id,
		Message:        "wait, change the date",
	})
	require.NoError(t, err)

	assert.Equal(t, ActionAwaitConfirmation, resp.Action)
	assert.NotNil(t, resp.Pending)
	assert.Empty(t, resp.Message)
	assert.Equal(t, callsBefore, f.llm.calls, "locked session must not reach the model")
}

func TestPayloadResponseStripsBlockForDisplay(t *testing.T) {
	f := newEngineFixture(t)
	id := f.pendingSession(t, clinic.Dermatologist, "2025-03-11")

	history, err := f.engine.History(context.Background(), id)
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, ChatRoleAssistant, last.Role)
	assert.NotContains(t, last.Content, "```json")
	assert.Contains(t, last.Content, "review the details")
}

func TestConfirmBooksFirstSlotOfEmptyDay(t *testing.T) {
	f := newEngineFixture(t)
	id := f.pendingSession(t, clinic.Cardiologist, "2025-03-10")

	resp, err := f.engine.Confirm(context.Background(), ConfirmRequest{ConversationID: id})
	require.NoError(t, err)

	require.NotNil(t, resp.Booked)
	loc := testCalendar(t).Location()
	at := resp.Booked.ScheduledAt.In(loc)
	assert.Equal(t, "2025-03-10 09:00", at.Format("2006-01-02 15:04"))
	assert.Equal(t, clinic.Cardiologist, resp.Booked.Specialty)
	assert.Contains(t, resp.Message, "Dr. Marcus Thorne")
	assert.NotEmpty(t, resp.PatientNotify)

	require.Len(t, f.notifier.calls, 1)

	sess, err := f.sessions.LoadSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, sess.State)
	assert.Nil(t, sess.Pending)
	assert.NotEmpty(t, sess.Records)
}

func TestConfirmFullyBookedDay(t *testing.T) {
	f := newEngineFixture(t)
	cal := testCalendar(t)
	day, err := cal.ParseDate("2025-03-10")
	require.NoError(t, err)
	for i := 0; i < clinic.DailySlotLimit; i++ {
		f.store.records = append(f.store.records, appointments.Record{
			ID:          uuid.New(),
			Specialty:   clinic.Cardiologist,
			ScheduledAt: day.Add(time.Duration(i) * clinic.SlotInterval).Add(9 * time.Hour),
		})
	}

	id := f.pendingSession(t, clinic.Cardiologist, "2025-03-10")
	resp, err := f.engine.Confirm(context.Background(), ConfirmRequest{ConversationID: id})
	require.NoError(t, err)

	assert.Equal(t, MsgNoSlotAvailable, resp.Message)
	assert.Nil(t, resp.Booked)
	assert.Zero(t, f.store.createCalls)

	sess, err := f.sessions.LoadSession(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, sess.Pending)
	assert.Equal(t, StateIdle, sess.State)
}

func TestConfirmWithoutStore(t *testing.T) {
	f := newEngineFixture(t)
	f.store.available = false

	id := f.pendingSession(t, clinic.GeneralPhysician, "2025-03-12")
	resp, err := f.engine.Confirm(context.Background(), ConfirmRequest{ConversationID: id})
	require.NoError(t, err)

	assert.Equal(t, MsgStoreUnavailable, resp.Message)
	assert.Nil(t, resp.Booked)
}

func TestConfirmSlotConflictRescansOnce(t *testing.T) {
	f := newEngineFixture(t)
	id := f.pendingSession(t, clinic.Pediatrician, "2025-03-10")

	cal := testCalendar(t)
	day, err := cal.ParseDate("2025-03-10")
	require.NoError(t, err)
	nineAM := day.Add(9 * time.Hour)

	// Another caller grabbed 09:00 between the scan and the insert.
	f.store.mu.Lock()
	f.store.createErrs = []error{appointments.ErrSlotTaken}
	f.store.records = append(f.store.records, appointments.Record{
		ID:          uuid.New(),
		Specialty:   clinic.Pediatrician,
		ScheduledAt: nineAM,
	})
	f.store.mu.Unlock()

	resp, err := f.engine.Confirm(context.Background(), ConfirmRequest{ConversationID: id})
	require.NoError(t, err)

	require.NotNil(t, resp.Booked)
	at := resp.Booked.ScheduledAt.In(cal.Location())
	assert.Equal(t, "09:15", at.Format("15:04"))
	assert.Equal(t, 2, f.store.createCalls)
}

func TestConfirmNothingPending(t *testing.T) {
	f := newEngineFixture(t)
	id := f.start(t)

	resp, err := f.engine.Confirm(context.Background(), ConfirmRequest{ConversationID: id})
	require.NoError(t, err)
	assert.Equal(t, MsgNothingPending, resp.Message)
}

func TestCancelClearsPending(t *testing.T) {
	f := newEngineFixture(t)
	id := f.pendingSession(t, clinic.Dermatologist, "2025-03-10")

	resp, err := f.engine.Cancel(context.Background(), CancelRequest{ConversationID: id})
	require.NoError(t, err)
	assert.Equal(t, MsgBookingCancelled, resp.Message)

	sess, err := f.sessions.LoadSession(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, sess.Pending)
	assert.Equal(t, StateIdle, sess.State)
}

func TestSelectDoctorSynthesizesChatTurn(t *testing.T) {
	f := newEngineFixture(t)
	id := f.start(t)

	resp, err := f.engine.SelectDoctor(context.Background(), SelectionRequest{
		ConversationID: id,
		Specialty:      "Cardiologist",
		Date:           "2025-03-10",
	})
	require.NoError(t, err)
	assert.Equal(t, ActionNone, resp.Action)

	f.llm.mu.Lock()
	msgs := f.llm.lastReq.Messages
	f.llm.mu.Unlock()
	require.NotEmpty(t, msgs)
	var lastUser string
	for _, m := range msgs {
		if m.Role == ChatRoleUser {
			lastUser = m.Content
		}
	}
	assert.Equal(t, "I would like to book an appointment with Dr. Marcus Thorne on 2025-03-10.", lastUser)

	sess, err := f.sessions.LoadSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingDetails, sess.State)
}

func TestSelectDoctorRejectsBadInput(t *testing.T) {
	f := newEngineFixture(t)
	id := f.start(t)

	_, err := f.engine.SelectDoctor(context.Background(), SelectionRequest{
		ConversationID: id, Specialty: "Astrologer", Date: "2025-03-10",
	})
	assert.Error(t, err)

	_, err = f.engine.SelectDoctor(context.Background(), SelectionRequest{
		ConversationID: id, Specialty: "Cardiologist", Date: "10-03-2025",
	})
	assert.Error(t, err)
}

func TestSelectDoctorFullyBookedDate(t *testing.T) {
	f := newEngineFixture(t)
	cal := testCalendar(t)
	day, err := cal.ParseDate("2025-03-10")
	require.NoError(t, err)
	for i := 0; i < clinic.DailySlotLimit; i++ {
		f.store.records = append(f.store.records, appointments.Record{
			ID:          uuid.New(),
			Specialty:   clinic.Dermatologist,
			ScheduledAt: day.Add(9 * time.Hour).Add(time.Duration(i) * clinic.SlotInterval),
		})
	}
	id := f.start(t)

	resp, err := f.engine.SelectDoctor(context.Background(), SelectionRequest{
		ConversationID: id, Specialty: "Dermatologist", Date: "2025-03-10",
	})
	require.NoError(t, err)
	assert.Equal(t, MsgNoSlotAvailable, resp.Message)
}

func TestLLMFailureKeepsSessionUsable(t *testing.T) {
	f := newEngineFixture(t)
	id := f.start(t)
	f.llm.err = errors.New("upstream exploded")

	resp, err := f.engine.ProcessMessage(context.Background(), MessageRequest{
		ConversationID: id, Message: "hello there",
	})
	require.NoError(t, err)
	assert.Equal(t, MsgUpstreamFailure, resp.Message)

	// Session still answers the next turn once the model recovers.
	f.llm.mu.Lock()
	f.llm.err = nil
	f.llm.mu.Unlock()
	resp, err = f.engine.ProcessMessage(context.Background(), MessageRequest{
		ConversationID: id, Message: "are you back?",
	})
	require.NoError(t, err)
	assert.NotEqual(t, MsgUpstreamFailure, resp.Message)
}

func TestAvailabilityReportsFullDates(t *testing.T) {
	f := newEngineFixture(t)
	cal := testCalendar(t)
	day, err := cal.ParseDate("2025-03-14")
	require.NoError(t, err)
	for i := 0; i < clinic.DailySlotLimit; i++ {
		f.store.records = append(f.store.records, appointments.Record{
			ID:          uuid.New(),
			Specialty:   clinic.GeneralPhysician,
			ScheduledAt: day.Add(9 * time.Hour).Add(time.Duration(i) * clinic.SlotInterval),
		})
	}
	id := f.start(t)

	view, err := f.engine.Availability(context.Background(), id)
	require.NoError(t, err)
	require.Contains(t, view, clinic.GeneralPhysician)
	assert.Equal(t, []string{"2025-03-14"}, view[clinic.GeneralPhysician])
	assert.NotContains(t, view, clinic.Cardiologist)
}

func TestSystemInstructionCarriesLanguage(t *testing.T) {
	f := newEngineFixture(t)
	resp, err := f.engine.StartConversation(context.Background(), StartRequest{Language: "mr"})
	require.NoError(t, err)

	_, err = f.engine.ProcessMessage(context.Background(), MessageRequest{
		ConversationID: resp.ConversationID, Message: "hello",
	})
	require.NoError(t, err)

	f.llm.mu.Lock()
	system := strings.Join(f.llm.lastReq.System, "\n")
	f.llm.mu.Unlock()
	assert.Contains(t, system, "मराठी (Marathi)")
}
