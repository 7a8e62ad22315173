package handler

import (
	"context"
	"net/http"

	"github.com/mypt/mypt/internal/facade"
	"github.com/mypt/mypt/internal/model"
)

// MessageServiceInterface はメッセージハンドラーが必要とするサービスインターフェース。
type MessageServiceInterface interface {
	SendMessage(ctx context.Context, actor model.Actor, input facade.MessageInput) (*model.Message, error)
	ListInbox(ctx context.Context, actor model.Actor) ([]model.Message, error)
	ListOutbox(ctx context.Context, actor model.Actor) ([]model.Message, error)
}

// MessageHandler はメッセージ送受信のHTTPハンドラー。
type MessageHandler struct {
	service MessageServiceInterface
}

// NewMessageHandler はMessageHandlerを生成する。
func NewMessageHandler(service MessageServiceInterface) *MessageHandler {
	return &MessageHandler{service: service}
}

// SendMessage はメッセージを送信する。
// POST /api/messages
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var input facade.MessageInput
	if !decodeJSON(w, r, &input) {
		return
	}

	msg, err := h.service.SendMessage(r.Context(), actor, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// ListInbox は受信メッセージを新しい順に返す。
// GET /api/messages/inbox
func (h *MessageHandler) ListInbox(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.ListInbox)
}

// ListOutbox は送信メッセージを新しい順に返す。
// GET /api/messages/outbox
func (h *MessageHandler) ListOutbox(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.ListOutbox)
}

func (h *MessageHandler) list(
	w http.ResponseWriter,
	r *http.Request,
	fetch func(ctx context.Context, actor model.Actor) ([]model.Message, error),
) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	messages, err := fetch(r.Context(), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}
