package handlers

import (
	"net/http"

	"github.com/vedran77/relay/internal/transport/http/middleware"
)

// API groups the REST handlers that share the /api/v1 prefix.
type API struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Conversations *ConversationHandler
	Messages      *MessageHandler
	Uploads       *UploadHandler
}

// Register mounts the API on mux. Everything except register and login
// requires a bearer token signed with jwtSecret.
func (a *API) Register(mux *http.ServeMux, jwtSecret string) {
	auth := middleware.Auth(jwtSecret)
	protect := func(h http.HandlerFunc) http.Handler { return auth(h) }

	// Public
	mux.HandleFunc("POST /api/v1/auth/register", a.Auth.Register)
	mux.HandleFunc("POST /api/v1/auth/login", a.Auth.Login)

	// Protected - Session and directory
	mux.Handle("GET /api/v1/auth/me", protect(a.Auth.Me))
	mux.Handle("GET /api/v1/users", protect(a.Users.Search))
	mux.Handle("PATCH /api/v1/users/me", protect(a.Users.UpdateMe))
	mux.Handle("GET /api/v1/users/{id}", protect(a.Users.Get))

	// Protected - Conversations
	mux.Handle("GET /api/v1/conversations", protect(a.Conversations.List))
	mux.Handle("POST /api/v1/conversations", protect(a.Conversations.Create))
	mux.Handle("GET /api/v1/conversations/lookup", protect(a.Conversations.Lookup))
	mux.Handle("GET /api/v1/conversations/{id}", protect(a.Conversations.Get))
	mux.Handle("PUT /api/v1/conversations/{id}/pin", protect(a.Conversations.Pin))

	// Protected - Messages
	mux.Handle("GET /api/v1/conversations/{id}/messages", protect(a.Messages.List))
	mux.Handle("POST /api/v1/conversations/{id}/messages", protect(a.Messages.Send))
	mux.Handle("GET /api/v1/messages/{id}", protect(a.Messages.Get))
	mux.Handle("PATCH /api/v1/messages/{id}", protect(a.Messages.Edit))
	mux.Handle("DELETE /api/v1/messages/{id}", protect(a.Messages.Delete))

	// Protected - Uploads
	mux.Handle("POST /api/v1/uploads", protect(a.Uploads.Upload))
}
