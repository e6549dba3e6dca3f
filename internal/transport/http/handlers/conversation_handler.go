package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/service"
	"github.com/vedran77/relay/internal/transport/http/middleware"
)

type ConversationHandler struct {
	convService *service.ConversationService
}

func NewConversationHandler(convService *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{convService: convService}
}

type createConversationRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

type pinRequest struct {
	MessageID *uuid.UUID `json:"message_id"`
}

type conversationListResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	convs, err := h.convService.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "list conversations")
		return
	}
	if convs == nil {
		convs = []domain.Conversation{}
	}

	writeJSON(w, http.StatusOK, conversationListResponse{Conversations: convs})
}

// Create returns the conversation between the caller and user_id, creating
// it when the pair has none. 201 means a new row was inserted.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if req.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "MISSING_USER_ID", "user_id is required")
		return
	}

	conv, created, err := h.convService.GetOrCreate(r.Context(), userID, req.UserID)
	if err != nil {
		writeServiceError(w, r, err, "create conversation")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, conv)
}

// Lookup finds the conversation with ?user_id= without creating one.
func (h *ConversationHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	otherID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
		return
	}

	conv, err := h.convService.Find(r.Context(), userID, otherID)
	if err != nil {
		writeServiceError(w, r, err, "lookup conversation")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convID, ok := pathID(w, r, "id", "conversation")
	if !ok {
		return
	}

	conv, err := h.convService.Get(r.Context(), userID, convID)
	if err != nil {
		writeServiceError(w, r, err, "get conversation")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Pin sets the pinned message. A null message_id unpins.
func (h *ConversationHandler) Pin(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convID, ok := pathID(w, r, "id", "conversation")
	if !ok {
		return
	}

	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	conv, err := h.convService.SetPinned(r.Context(), userID, convID, req.MessageID)
	if err != nil {
		writeServiceError(w, r, err, "pin message")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}
