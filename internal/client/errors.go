package client

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/vedran77/relay/pkg/validator"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrEmptyMessage     = errors.New("message has no text and no attachment")
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", validator.MinPasswordLength)
	ErrNotSender        = errors.New("only the sender can do that")
	ErrNoConversation   = errors.New("no conversation is open")
	ErrSelfConversation = errors.New("cannot start a conversation with yourself")
	ErrAuthUnavailable  = errors.New("identity provider did not respond")
)

type AuthErrorKind int

const (
	AuthOther AuthErrorKind = iota
	AuthEmailInUse
	AuthInvalidCredentials
)

// AuthError is returned by account creation and sign-in.
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	switch e.Kind {
	case AuthEmailInUse:
		return "email already in use"
	case AuthInvalidCredentials:
		return "invalid credentials"
	}
	if e.Err == nil {
		return "authentication failed"
	}
	return "authentication failed: " + e.Err.Error()
}

func (e *AuthError) Unwrap() error { return e.Err }

// DataError is a failed read or write. Err usually wraps ErrNotFound or
// ErrForbidden.
type DataError struct {
	Op  string
	Err error
}

func (e *DataError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *DataError) Unwrap() error { return e.Err }

type UploadError struct {
	Path string
	Err  error
}

func (e *UploadError) Error() string { return "upload " + e.Path + ": " + e.Err.Error() }
func (e *UploadError) Unwrap() error { return e.Err }

// UserMessage turns an error into the text shown in a flash.
func UserMessage(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		switch authErr.Kind {
		case AuthEmailInUse:
			return "This email is already taken."
		case AuthInvalidCredentials:
			return "Invalid email or password"
		}
		if authErr.Err != nil {
			return "Error: " + authErr.Err.Error()
		}
		return "Error: " + authErr.Error()
	}

	var uploadErr *UploadError
	switch {
	case errors.Is(err, ErrPasswordTooShort):
		return "Password must be at least 6 characters"
	case errors.Is(err, ErrEmptyMessage):
		return "Type a message or attach a photo"
	case errors.Is(err, ErrNotSender):
		return "Only the sender can do that"
	case errors.Is(err, ErrNoConversation):
		return "Open a conversation first"
	case errors.Is(err, ErrSelfConversation):
		return "You cannot start a conversation with yourself"
	case errors.Is(err, ErrAuthUnavailable):
		return "Could not reach the server. Check your connection."
	case errors.As(err, &uploadErr):
		return "Upload failed: " + uploadErr.Err.Error()
	case errors.Is(err, ErrNotFound):
		return "Not found"
	case errors.Is(err, ErrForbidden):
		return "You don't have access to that"
	}
	return "Error: " + err.Error()
}

// report surfaces a failed user action. Errors are never retried.
func report(log zerolog.Logger, flash Flasher, op string, err error) {
	log.Debug().Err(err).Str("op", op).Msg("action failed")
	if flash != nil {
		flash.ShowFlash(Flash{Text: UserMessage(err), Type: FlashError, Duration: FlashDuration})
	}
}
