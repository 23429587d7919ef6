package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/minho5235/jammin/internal/chat"
	"github.com/minho5235/jammin/internal/models"
	"go.uber.org/zap"
)

// Handler exposes the controller's operations over JSON. The controller
// itself is single-flow, so every access goes through mu; the completion
// call runs outside the lock.
type Handler struct {
	mu     sync.Mutex
	ctl    *chat.Controller
	logger *zap.Logger
}

func NewHandler(ctl *chat.Controller, logger *zap.Logger) *Handler {
	return &Handler{ctl: ctl, logger: logger}
}

// Register attaches all routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/message", h.HandleMessage)
	mux.HandleFunc("/api/sessions", h.ListSessions)
	mux.HandleFunc("/api/sessions/select", h.SelectSession)
	mux.HandleFunc("/api/sessions/delete", h.DeleteSession)
	mux.HandleFunc("/api/sessions/new", h.NewSession)
}

type messageRequest struct {
	Content string `json:"content"`
}

type messageResponse struct {
	SessionID int64  `json:"session_id"`
	Reply     string `json:"reply"`
}

func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	send, err := h.ctl.SendMessage(req.Content)
	h.mu.Unlock()
	if err != nil {
		// Whitespace-only input is dropped, not an error.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	reply := send.Complete(r.Context())

	h.mu.Lock()
	h.ctl.AcceptReply(reply)
	h.mu.Unlock()

	writeJSON(w, h.logger, messageResponse{SessionID: reply.SessionID, Reply: reply.Content})
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.mu.Lock()
	sessions := h.ctl.ListSessions(r.URL.Query().Get("q"))
	h.mu.Unlock()

	writeJSON(w, h.logger, sessions)
}

func (h *Handler) SelectSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	h.mu.Lock()
	messages := h.ctl.SelectSession(id)
	h.mu.Unlock()

	writeJSON(w, h.logger, messages)
}

type deleteResponse struct {
	Deleted bool            `json:"deleted"`
	Next    *models.Session `json:"next,omitempty"`
}

// DeleteSession removes a session. Confirmation is the client's job; this
// endpoint deletes unconditionally.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	h.mu.Lock()
	deletion, deleted := h.ctl.DeleteSession(id)
	h.mu.Unlock()

	if !deleted {
		h.logger.Warn("session delete refused", zap.Int64("session_id", id))
		writeJSON(w, h.logger, deleteResponse{Deleted: false})
		return
	}
	writeJSON(w, h.logger, deleteResponse{Deleted: true, Next: deletion.Next})
}

func (h *Handler) NewSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.mu.Lock()
	sessions := h.ctl.NewSession()
	h.mu.Unlock()

	writeJSON(w, h.logger, sessions)
}

func sessionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get("session_id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}
