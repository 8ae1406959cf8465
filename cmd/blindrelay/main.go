package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"blindrelay/internal/admission"
	"blindrelay/internal/api"
	"blindrelay/internal/auth"
	"blindrelay/internal/config"
	"blindrelay/internal/database"
	"blindrelay/internal/dispatch"
	"blindrelay/internal/session"
	"blindrelay/internal/ws"
	dbconfig "blindrelay/pkg/database"
	"blindrelay/pkg/interfaces"
)

// Application wires the components in dependency order:
// store -> registries -> dispatcher -> transport/API -> HTTP.
type Application struct {
	config     *config.Config
	store      *database.Store
	sessions   *session.Registry
	conns      *ws.Registry
	dispatcher *dispatch.Dispatcher
	httpServer *http.Server
}

// NewApplication builds the application from configuration.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := database.NewStore(&dbconfig.Config{
		DatabasePath:    cfg.Database.Path,
		MaxConnections:  10,
		ConnMaxLifetime: cfg.Database.Timeout,
		ConnMaxIdleTime: cfg.Database.Timeout / 3,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	sessions := session.NewRegistry()
	conns := ws.NewRegistry()

	notifier := admission.NewNotifier(cfg.Admission.AIServiceURL)
	dispatcher := dispatch.New(sessions, conns, store, notifier, cfg.WebSocket.PublicURL)

	var verifier interfaces.Verifier
	if cfg.Auth.DevMode {
		log.Printf("WARNING: dev mode enabled, token verification disabled")
		verifier = auth.DevVerifier{}
	} else {
		verifier, err = auth.NewVerifier(cfg.Auth.TokenSecret)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize verifier: %w", err)
		}
	}

	apiServer := api.NewServer(store, verifier, sessions, conns, dispatcher)
	wsHandler := ws.NewHandler(dispatcher)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws/{session_id}/{user_id}/{role}", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		store:      store,
		sessions:   sessions,
		conns:      conns,
		dispatcher: dispatcher,
		httpServer: httpServer,
	}, nil
}

// Start begins serving and returns once the listener is up.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting blindrelay on %s", app.httpServer.Addr)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("blindrelay started")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts down in reverse dependency order: HTTP, then storage.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down blindrelay")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if err := app.store.Close(); err != nil {
		log.Printf("Session store shutdown error: %v", err)
	}

	log.Printf("blindrelay shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// .env is optional; absence is the normal production case.
	if err := godotenv.Load(); err == nil {
		log.Printf("Loaded environment from .env")
	}

	cfg := config.Load(os.Getenv("BLINDRELAY_CONFIG_FILE"))

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	appErrCh := make(chan error, 1)
	go func() {
		if err := app.Start(ctx); err != nil {
			appErrCh <- err
		}
	}()

	select {
	case err := <-appErrCh:
		return fmt.Errorf("application error: %w", err)
	case sig := <-signalCh:
		log.Printf("Received signal %v, shutting down gracefully", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		return app.Stop(shutdownCtx)
	}
}
