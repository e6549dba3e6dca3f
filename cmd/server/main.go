package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/vedran77/relay/internal/cache"
	"github.com/vedran77/relay/internal/config"
	"github.com/vedran77/relay/internal/database"
	"github.com/vedran77/relay/internal/repository"
	"github.com/vedran77/relay/internal/repository/memory"
	postgresrepo "github.com/vedran77/relay/internal/repository/postgres"
	"github.com/vedran77/relay/internal/service"
	"github.com/vedran77/relay/internal/storage"
	"github.com/vedran77/relay/internal/transport/http/handlers"
	"github.com/vedran77/relay/internal/transport/http/middleware"
	"github.com/vedran77/relay/internal/transport/ws"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()
	cfg := config.Load()
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.DevMode {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger()
}

type repos struct {
	users         repository.UserRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// Database
	r, closeDB, err := openRepos(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	// Cache
	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		r.users = cache.NewUserCache(r.users, rdb, cfg.UserCacheTTL, log)
		log.Info().Msg("user cache enabled")
	}

	// Storage
	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	blobs, err := storage.NewDiskStore(cfg.UploadDir, publicURL+"/uploads")
	if err != nil {
		return err
	}

	// Services
	authService := service.NewAuthService(r.users, cfg.JWTSecret, cfg.TokenTTL)
	userService := service.NewUserService(r.users)
	convService := service.NewConversationService(r.conversations, r.messages, r.users)
	msgService := service.NewMessageService(r.messages, r.conversations)
	uploadService := service.NewUploadService(blobs, r.conversations, cfg.MaxUploadBytes)

	// WebSocket Hub
	hub := ws.NewHub(service.NewSnapshotService(convService, msgService), log)
	go hub.Run(ctx)

	notifier := ws.NewHubNotifier(hub)
	convService.SetNotifier(notifier)
	msgService.SetNotifier(notifier)

	// Routes
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})

	api := &handlers.API{
		Auth:          handlers.NewAuthHandler(authService, userService),
		Users:         handlers.NewUserHandler(userService),
		Conversations: handlers.NewConversationHandler(convService),
		Messages:      handlers.NewMessageHandler(msgService),
		Uploads:       handlers.NewUploadHandler(uploadService),
	}
	api.Register(mux, cfg.JWTSecret)

	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(blobs.Root()))))
	mux.Handle("GET /ws", ws.ServeWS(hub, cfg.JWTSecret))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           middleware.Logging(log)(middleware.CORS(mux)),
		ReadHeaderTimeout: cfg.RequestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("db", cfg.DBDriver).Msg("starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openRepos picks the storage backend. "memory" keeps everything in
// process and is meant for local runs and demos.
func openRepos(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*repos, func(), error) {
	switch cfg.DBDriver {
	case "memory":
		store := memory.NewStore()
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		return &repos{
			users:         store.Users(),
			conversations: store.Conversations(),
			messages:      store.Messages(),
		}, func() {}, nil

	case "postgres", "":
		pool, err := database.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("connected to database")
		return &repos{
			users:         postgresrepo.NewUserRepo(pool),
			conversations: postgresrepo.NewConversationRepo(pool),
			messages:      postgresrepo.NewMessageRepo(pool),
		}, pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
}
