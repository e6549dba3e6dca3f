// Command relay is a line-oriented chat client for a relay server.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/vedran77/relay/internal/client"
	"github.com/vedran77/relay/internal/client/remote"
	"github.com/vedran77/relay/internal/config"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.WarnLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	serverURL := os.Getenv("RELAY_URL")
	if serverURL == "" {
		serverURL = cfg.PublicURL
	}

	backend := remote.New(serverURL, remote.WithTimeout(cfg.RequestTimeout), remote.WithLogger(log))
	term := newTerminal(os.Stdout, backend, log)
	defer term.endSession()

	if token := os.Getenv("RELAY_TOKEN"); token != "" {
		if _, err := backend.Resume(ctx, token); err != nil {
			term.ShowError(err)
		}
	}

	gate := client.NewGate(backend, client.ViewChat, term, cfg.AuthTimeout, log)
	go func() {
		if err := gate.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("gate stopped")
		}
	}()

	cmds := &commands{
		term: term,
		auth: client.NewAuthenticator(backend, term, term, log),
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := cmds.run(ctx, line); errors.Is(err, errQuit) {
				return nil
			}
		}
	}
}
