// Package webchat serves the browser chat widget over WebSocket. Model
// replies stream to the socket fragment by fragment; booking controls
// (selection, confirm, cancel) arrive as typed messages on the same
// connection.
package webchat

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/josbro2/AI-Health-Book-AppBot/internal/conversation"
	"github.com/josbro2/AI-Health-Book-AppBot/pkg/logging"
)

// Assistant is the slice of the conversation engine the widget needs.
// Streaming is used for chat turns so the widget can render tokens live.
type Assistant interface {
	conversation.Service
	ProcessMessageStream(ctx context.Context, req conversation.MessageRequest, onFragment func(string)) (*conversation.Response, error)
}

// Handler manages web chat connections.
type Handler struct {
	assistant Assistant
	logger    *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*wsConn // conversationID -> active connection
}

type wsConn struct {
	conn *websocket.Conn
	done chan struct{}
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type      string `json:"type"` // "message", "select", "confirm", "cancel", "emergency", "ping"
	Text      string `json:"text,omitempty"`
	Specialty string `json:"specialty,omitempty"`
	Date      string `json:"date,omitempty"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type           string                 `json:"type"` // "session", "fragment", "message", "history", "pong", "error"
	Text           string                 `json:"text,omitempty"`
	Role           string                 `json:"role,omitempty"`
	ConversationID string                 `json:"conversation_id,omitempty"`
	Action         conversation.Action    `json:"action,omitempty"`
	Pending        any                    `json:"pending,omitempty"`
	PatientNotify  string                 `json:"patient_notify_url,omitempty"`
	ClinicNotify   string                 `json:"clinic_notify_url,omitempty"`
	SpeakLocale    string                 `json:"speak_locale,omitempty"`
	Messages       []conversation.Message `json:"messages,omitempty"`
	Timestamp      string                 `json:"timestamp,omitempty"`
}

// NewHandler creates a web chat handler.
func NewHandler(assistant Assistant, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		assistant: assistant,
		logger:    logger.WithComponent("webchat"),
		sessions:  make(map[string]*wsConn),
	}
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	ctx := r.Context()
	convID := r.URL.Query().Get("session")
	lang := r.URL.Query().Get("lang")

	if convID == "" {
		resp, err := h.assistant.StartConversation(ctx, conversation.StartRequest{Language: lang})
		if err != nil {
			h.logger.Error("failed to start conversation", "error", err)
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "could not start conversation"})
			return
		}
		convID = resp.ConversationID
		_ = websocket.JSON.Send(conn, OutboundMessage{
			Type:           "session",
			ConversationID: convID,
			SpeakLocale:    resp.SpeakLocale,
		})
		// Not registered yet, write the greeting straight to the socket.
		_ = websocket.JSON.Send(conn, OutboundMessage{
			Type:           "message",
			Role:           "assistant",
			Text:           resp.Message,
			ConversationID: convID,
			SpeakLocale:    resp.SpeakLocale,
			Timestamp:      resp.Timestamp.Format(time.RFC3339),
		})
	} else {
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", ConversationID: convID})
		if msgs, err := h.assistant.History(ctx, convID); err == nil && len(msgs) > 0 {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "history", Messages: msgs})
		}
	}

	wsc := &wsConn{conn: conn, done: make(chan struct{})}
	h.mu.Lock()
	h.sessions[convID] = wsc
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.sessions[convID] == wsc {
			delete(h.sessions, convID)
		}
		h.mu.Unlock()
		close(wsc.done)
	}()

	h.logger.Info("connection opened", "conversation_id", convID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("connection closed", "conversation_id", convID, "error", err)
			return
		}
		h.handleInbound(ctx, convID, msg)
	}
}

func (h *Handler) handleInbound(ctx context.Context, convID string, msg InboundMessage) {
	switch msg.Type {
	case "ping":
		h.send(convID, OutboundMessage{Type: "pong"})
	case "message":
		if strings.TrimSpace(msg.Text) == "" {
			return
		}
		resp, err := h.assistant.ProcessMessageStream(ctx,
			conversation.MessageRequest{ConversationID: convID, Message: msg.Text},
			func(fragment string) {
				h.send(convID, OutboundMessage{Type: "fragment", Role: "assistant", Text: fragment})
			},
		)
		h.finish(convID, resp, err)
	case "select":
		resp, err := h.assistant.SelectDoctor(ctx, conversation.SelectionRequest{
			ConversationID: convID,
			Specialty:      msg.Specialty,
			Date:           msg.Date,
		})
		h.finish(convID, resp, err)
	case "confirm":
		resp, err := h.assistant.Confirm(ctx, conversation.ConfirmRequest{ConversationID: convID})
		h.finish(convID, resp, err)
	case "cancel":
		resp, err := h.assistant.Cancel(ctx, conversation.CancelRequest{ConversationID: convID})
		h.finish(convID, resp, err)
	case "emergency":
		resp, err := h.assistant.Emergency(ctx, conversation.EmergencyRequest{ConversationID: convID})
		h.finish(convID, resp, err)
	}
}

func (h *Handler) finish(convID string, resp *conversation.Response, err error) {
	if err != nil {
		h.logger.Error("turn failed", "error", err, "conversation_id", convID)
		h.send(convID, OutboundMessage{Type: "error", Text: "Sorry, something went wrong. Please try again."})
		return
	}
	h.sendResponse(convID, resp)
}

func (h *Handler) sendResponse(convID string, resp *conversation.Response) {
	out := OutboundMessage{
		Type:           "message",
		Role:           "assistant",
		Text:           resp.Message,
		ConversationID: resp.ConversationID,
		Action:         resp.Action,
		SpeakLocale:    resp.SpeakLocale,
		PatientNotify:  resp.PatientNotify,
		ClinicNotify:   resp.ClinicNotify,
		Timestamp:      resp.Timestamp.Format(time.RFC3339),
	}
	if resp.Pending != nil {
		out.Pending = resp.Pending
	}
	h.send(convID, out)
}

func (h *Handler) send(convID string, msg OutboundMessage) {
	h.mu.RLock()
	wsc, ok := h.sessions[convID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	_ = websocket.JSON.Send(wsc.conn, msg)
}
