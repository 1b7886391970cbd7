package conversation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josbro2/AI-Health-Book-AppBot/pkg/logging"
)

type notFoundProcessor struct {
	fakeProcessor
}

func (n *notFoundProcessor) ProcessMessage(_ context.Context, _ MessageRequest) (*Response, error) {
	return nil, ErrSessionNotFound
}

func TestHandlerStart(t *testing.T) {
	h := NewHandler(&fakeProcessor{}, nil, logging.Default())

	req := httptest.NewRequest(http.MethodPost, "/conversations/start", strings.NewReader(`{"language":"en"}`))
	rec := httptest.NewRecorder()
	h.Start(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "conv-1", resp.ConversationID)
}

func TestHandlerStartBadBody(t *testing.T) {
	h := NewHandler(&fakeProcessor{}, nil, logging.Default())

	req := httptest.NewRequest(http.MethodPost, "/conversations/start", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.Start(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerMessageUnknownConversation(t *testing.T) {
	h := NewHandler(&notFoundProcessor{}, nil, logging.Default())

	req := httptest.NewRequest(http.MethodPost, "/conversations/message", strings.NewReader(`{"conversation_id":"nope","message":"hi"}`))
	rec := httptest.NewRecorder()
	h.Message(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerHistory(t *testing.T) {
	h := NewHandler(&fakeProcessor{}, nil, logging.Default())

	r := chi.NewRouter()
	r.Get("/conversations/{conversationID}/history", h.History)

	req := httptest.NewRequest(http.MethodGet, "/conversations/conv-1/history", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		ConversationID string    `json:"conversation_id"`
		Messages       []Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "conv-1", body.ConversationID)
}

func TestHandlerExtractDate(t *testing.T) {
	cal := testCalendar(t)
	extractor := NewExtractor(&scriptedLLM{reply: "2099-03-10"}, cal, logging.Default())
	h := NewHandler(&fakeProcessor{}, extractor, logging.Default())

	req := httptest.NewRequest(http.MethodPost, "/extract/date", strings.NewReader(`{"text":"day after tomorrow"}`))
	rec := httptest.NewRecorder()
	h.ExtractDate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2099-03-10", body["date"])
}

func TestHandlerExtractWithoutExtractor(t *testing.T) {
	h := NewHandler(&fakeProcessor{}, nil, logging.Default())

	req := httptest.NewRequest(http.MethodPost, "/extract/specialty", strings.NewReader(`{"text":"heart"}`))
	rec := httptest.NewRecorder()
	h.ExtractSpecialty(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlerListLanguages(t *testing.T) {
	h := NewHandler(&fakeProcessor{}, nil, logging.Default())

	rec := httptest.NewRecorder()
	h.ListLanguages(rec, httptest.NewRequest(http.MethodGet, "/languages", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Languages []Language `json:"languages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Languages, 3)
	assert.Equal(t, "en", body.Languages[0].Code)
}
