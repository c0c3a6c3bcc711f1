package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/markdave123-py/newsdesk/internal/models"
	"github.com/markdave123-py/newsdesk/internal/services"
)

// ChatSender is the chat flow behind POST /api/chat.
type ChatSender interface {
	Send(ctx context.Context, sessionID, message string) (*models.ChatReply, error)
}

type ChatHandler struct {
	chat     ChatSender
	validate *validator.Validate
	log      *zap.Logger
}

func NewChatHandler(chat ChatSender, log *zap.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, validate: validator.New(), log: log.Named("chat_handler")}
}

type ChatRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
	Message   string `json:"message" validate:"required"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "sessionId and message are required")
		return
	}

	reply, err := h.chat.Send(r.Context(), req.SessionID, req.Message)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

var _ ChatSender = (*services.ChatService)(nil)
