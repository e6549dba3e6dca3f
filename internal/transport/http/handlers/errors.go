package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"
	"github.com/vedran77/relay/internal/service"
)

// writeServiceError maps service sentinel errors to HTTP responses. Anything
// unexpected is logged and reported as INTERNAL.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
	case errors.Is(err, service.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Conversation not found")
	case errors.Is(err, service.ErrMessageNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Message not found")
	case errors.Is(err, service.ErrNotParticipant):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "You are not a participant of this conversation")
	case errors.Is(err, service.ErrNotMessageOwner):
		writeError(w, http.StatusForbidden, "NOT_OWNER", "Only the sender can do that")
	case errors.Is(err, service.ErrCannotChatSelf):
		writeError(w, http.StatusBadRequest, "CANNOT_CHAT_SELF", "Cannot start a conversation with yourself")
	case errors.Is(err, service.ErrMessageNotInChat):
		writeError(w, http.StatusBadRequest, "MESSAGE_NOT_IN_CONVERSATION", "Message does not belong to this conversation")
	case errors.Is(err, service.ErrUploadForbidden):
		writeError(w, http.StatusForbidden, "UPLOAD_FORBIDDEN", "Upload path not allowed")
	case errors.Is(err, service.ErrUploadTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", "File is too large")
	case errors.Is(err, service.ErrUploadEmpty):
		writeError(w, http.StatusBadRequest, "UPLOAD_EMPTY", "File is empty")
	default:
		hlog.FromRequest(r).Error().Err(err).Str("op", op).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}
