package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/service"
	"github.com/vedran77/relay/internal/transport/http/middleware"
	"github.com/vedran77/relay/pkg/validator"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

type userListResponse struct {
	Users []domain.User `json:"users"`
}

// Search does an exact lookup on ?email=.
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "MISSING_EMAIL", "email is required")
		return
	}

	users, err := h.userService.SearchByEmail(r.Context(), email)
	if err != nil {
		writeServiceError(w, r, err, "search users")
		return
	}

	writeJSON(w, http.StatusOK, userListResponse{Users: users})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "user")
	if !ok {
		return
	}

	user, err := h.userService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "get user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input domain.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateProfile(input.Username, input.AvatarURL); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userID, input)
	if err != nil {
		writeServiceError(w, r, err, "update profile")
		return
	}

	writeJSON(w, http.StatusOK, user)
}
