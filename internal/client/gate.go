package client

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Gate keeps a screen consistent with the auth state. It acts only on
// transitions, so a repeated identical state never navigates twice.
type Gate struct {
	backend AuthBackend
	guard   View
	view    GateView
	timeout time.Duration
	log     zerolog.Logger
}

// NewGate guards the given screen. If no first state arrives within
// timeout the view is shown ErrAuthUnavailable instead of a spinner.
func NewGate(backend AuthBackend, guard View, view GateView, timeout time.Duration, log zerolog.Logger) *Gate {
	return &Gate{
		backend: backend,
		guard:   guard,
		view:    view,
		timeout: timeout,
		log:     log.With().Str("component", "gate").Stringer("guard", guard).Logger(),
	}
}

// Run watches the auth state until ctx is done or the provider closes the
// stream.
func (g *Gate) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	states := g.backend.WatchAuthState(ctx)

	var deadline <-chan time.Time
	if g.timeout > 0 {
		timer := time.NewTimer(g.timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	var (
		last    AuthState
		settled bool
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-deadline:
			deadline = nil
			g.log.Warn().Dur("timeout", g.timeout).Msg("no auth state yet")
			g.view.ShowError(ErrAuthUnavailable)

		case st, ok := <-states:
			if !ok {
				return nil
			}
			deadline = nil

			if st.Err != nil {
				g.log.Warn().Err(st.Err).Msg("auth provider error")
				g.view.ShowError(st.Err)
				settled = false
				continue
			}
			if settled && sameIdentity(last, st) {
				continue
			}
			last, settled = st, true
			g.transition(st)
		}
	}
}

func (g *Gate) transition(st AuthState) {
	g.log.Debug().Bool("authenticated", st.Authenticated()).Msg("auth state changed")

	switch g.guard {
	case ViewChat:
		if st.Authenticated() {
			g.view.Ready(st.User)
		} else {
			g.view.Navigate(ViewLogin)
		}
	case ViewLogin:
		if st.Authenticated() {
			g.view.Navigate(ViewChat)
		} else {
			g.view.Ready(nil)
		}
	}
}

func sameIdentity(a, b AuthState) bool {
	if a.User == nil || b.User == nil {
		return a.User == nil && b.User == nil
	}
	return a.User.ID == b.User.ID
}
