package conversation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/josbro2/AI-Health-Book-AppBot/pkg/logging"
)

// Handler wires HTTP requests to the conversation service.
type Handler struct {
	service   Service
	extractor *Extractor
	logger    *logging.Logger
}

// NewHandler creates a conversation handler. extractor may be nil when the
// single-shot extraction endpoints are not exposed.
func NewHandler(service Service, extractor *Extractor, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service:   service,
		extractor: extractor,
		logger:    logger,
	}
}

// Start handles POST /conversations/start.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode start request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.StartConversation(r.Context(), req)
	if err != nil {
		h.logger.Error("failed to start conversation", "error", err)
		http.Error(w, "Failed to start conversation", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, resp)
}

// Message handles POST /conversations/message.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode message request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.ProcessMessage(r.Context(), req)
	if err != nil {
		h.respondError(w, "Failed to process message", err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Select handles POST /conversations/select, the doctor/date picker result.
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode selection request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.SelectDoctor(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			http.Error(w, "Conversation not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to apply selection", "error", err)
		http.Error(w, "Invalid selection", http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Confirm handles POST /conversations/confirm.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode confirm request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Confirm(r.Context(), req)
	if err != nil {
		h.respondError(w, "Failed to confirm appointment", err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Cancel handles POST /conversations/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode cancel request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Cancel(r.Context(), req)
	if err != nil {
		h.respondError(w, "Failed to cancel booking", err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Emergency handles POST /conversations/emergency, the chat UI's explicit
// emergency button.
func (h *Handler) Emergency(w http.ResponseWriter, r *http.Request) {
	var req EmergencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode emergency request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Emergency(r.Context(), req)
	if err != nil {
		h.respondError(w, "Failed to handle emergency", err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Availability handles GET /conversations/{conversationID}/availability.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	view, err := h.service.Availability(r.Context(), conversationID)
	if err != nil {
		h.respondError(w, "Failed to load availability", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id":    conversationID,
		"fully_booked_dates": view,
	})
}

// History handles GET /conversations/{conversationID}/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	msgs, err := h.service.History(r.Context(), conversationID)
	if err != nil {
		h.respondError(w, "Failed to load history", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": conversationID,
		"messages":        msgs,
	})
}

// ListLanguages handles GET /languages.
func (h *Handler) ListLanguages(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"languages": Languages()})
}

type extractRequest struct {
	Text string `json:"text"`
}

// ExtractDate handles POST /extract/date. Returns the normalized date or an
// empty string when no valid date could be derived.
func (h *Handler) ExtractDate(w http.ResponseWriter, r *http.Request) {
	if h.extractor == nil {
		http.Error(w, "Extraction not configured", http.StatusServiceUnavailable)
		return
	}
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	date := h.extractor.ExtractDate(r.Context(), req.Text)
	h.writeJSON(w, http.StatusOK, map[string]string{"date": date})
}

// ExtractSpecialty handles POST /extract/specialty. Returns the matched
// specialty or an empty string.
func (h *Handler) ExtractSpecialty(w http.ResponseWriter, r *http.Request) {
	if h.extractor == nil {
		http.Error(w, "Extraction not configured", http.StatusServiceUnavailable)
		return
	}
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	specialty := h.extractor.ExtractSpecialty(r.Context(), req.Text)
	h.writeJSON(w, http.StatusOK, map[string]string{"specialty": string(specialty)})
}

func (h *Handler) respondError(w http.ResponseWriter, message string, err error) {
	if errors.Is(err, ErrSessionNotFound) {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}
	h.logger.Error(message, "error", err)
	http.Error(w, message, http.StatusInternalServerError)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
