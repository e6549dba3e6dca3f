package client

import (
	"context"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/pkg/validator"
)

// Authenticator drives the entry screen. On success it leaves navigation
// to the Gate, which sees the new auth state.
type Authenticator struct {
	backend AuthBackend
	loader  LoaderView
	flash   Flasher
	log     zerolog.Logger
}

func NewAuthenticator(backend AuthBackend, loader LoaderView, flash Flasher, log zerolog.Logger) *Authenticator {
	return &Authenticator{
		backend: backend,
		loader:  loader,
		flash:   flash,
		log:     log.With().Str("component", "authenticator").Logger(),
	}
}

// Register creates an account. A short password is rejected before any
// call reaches the backend.
func (a *Authenticator) Register(ctx context.Context, input domain.RegisterInput) (*Session, error) {
	if utf8.RuneCountInString(input.Password) < validator.MinPasswordLength {
		report(a.log, a.flash, "register", ErrPasswordTooShort)
		return nil, ErrPasswordTooShort
	}

	a.loader.ShowLoader()
	session, err := a.backend.CreateAccount(ctx, input)
	if err != nil {
		a.loader.HideLoader()
		report(a.log, a.flash, "register", err)
		return nil, err
	}
	return session, nil
}

func (a *Authenticator) Login(ctx context.Context, email, password string) (*Session, error) {
	a.loader.ShowLoader()
	session, err := a.backend.Authenticate(ctx, email, password)
	if err != nil {
		a.loader.HideLoader()
		report(a.log, a.flash, "login", err)
		return nil, err
	}
	return session, nil
}
