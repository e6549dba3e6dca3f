package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/service"
	"github.com/vedran77/relay/internal/transport/http/middleware"
	"github.com/vedran77/relay/pkg/validator"
)

type MessageHandler struct {
	messageService *service.MessageService
}

func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

type editMessageRequest struct {
	Text string `json:"text"`
}

type messageListResponse struct {
	Messages []domain.Message `json:"messages"`
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convID, ok := pathID(w, r, "id", "conversation")
	if !ok {
		return
	}

	var input domain.NewMessage
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateMessage(input.Text, input.AttachmentURL); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	msg, err := h.messageService.Send(r.Context(), userID, convID, input)
	if err != nil {
		writeServiceError(w, r, err, "send message")
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// List returns every message of the conversation, oldest first.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convID, ok := pathID(w, r, "id", "conversation")
	if !ok {
		return
	}

	messages, err := h.messageService.List(r.Context(), userID, convID)
	if err != nil {
		writeServiceError(w, r, err, "list messages")
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	writeJSON(w, http.StatusOK, messageListResponse{Messages: messages})
}

func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, ok := pathID(w, r, "id", "message")
	if !ok {
		return
	}

	msg, err := h.messageService.Get(r.Context(), userID, messageID)
	if err != nil {
		writeServiceError(w, r, err, "get message")
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, ok := pathID(w, r, "id", "message")
	if !ok {
		return
	}

	var req editMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateEdit(req.Text); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	msg, err := h.messageService.Edit(r.Context(), userID, messageID, req.Text)
	if err != nil {
		writeServiceError(w, r, err, "edit message")
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, ok := pathID(w, r, "id", "message")
	if !ok {
		return
	}

	if err := h.messageService.Delete(r.Context(), userID, messageID); err != nil {
		writeServiceError(w, r, err, "delete message")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
