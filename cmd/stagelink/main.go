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

	"stagelink/internal/api"
	"stagelink/internal/auth"
	"stagelink/internal/broadcast"
	"stagelink/internal/config"
	"stagelink/internal/registry"
	"stagelink/internal/relay"
	"stagelink/internal/room"
	"stagelink/internal/websocket"
)

// ARCHITECTURAL DISCOVERY: Application struct coordinates all system components
// Clean dependency injection pattern with proper initialization order
type Application struct {
	config     *config.Config
	registry   *registry.Registry
	rooms      *room.Store
	tokens     *auth.Tokens
	sweeper    *room.Sweeper
	httpServer *http.Server
}

// FUNCTIONAL DISCOVERY: Component initialization follows strict dependency order
// Registry → Rooms → Tokens → Broadcast → Relay → WebSocket → API → HTTP
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	// ARCHITECTURAL DISCOVERY: Validate configuration before component initialization
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// STEP 1: Connection registry and room store (foundation layer)
	reg := registry.NewRegistry()
	rooms := room.NewStore(cfg.Room.MaxUsers)

	// STEP 2: Single-use handshake tokens
	tokens := auth.NewTokens(cfg.Auth.TokenTTL)

	// STEP 3: Broadcast router over registry and rooms
	router := broadcast.NewRouter(reg, rooms)

	// STEP 4: Session protocol handler
	session := relay.NewHandler(reg, rooms, router)

	// STEP 5: WebSocket transport
	wsHandler := websocket.NewHandler(reg, session, tokens, cfg.WebSocket)

	// STEP 6: Expiry sweeper covers rooms and tokens
	sweeper := room.NewSweeper(rooms, tokens, cfg.Room.SweepInterval, cfg.Room.InactivityTimeout)

	// STEP 7: REST surface plus the websocket upgrade endpoint
	apiServer := api.NewServer(rooms, tokens, reg, wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      apiServer.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		registry:   reg,
		rooms:      rooms,
		tokens:     tokens,
		sweeper:    sweeper,
		httpServer: httpServer,
	}, nil
}

// FUNCTIONAL DISCOVERY: Startup coordination ensures background work is
// running before the HTTP server accepts connections
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting stagelink relay on %s", app.httpServer.Addr)

	// STEP 1: Start the expiry sweeper
	app.sweeper.Start(ctx)

	// STEP 2: Start HTTP server (accepts connections)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// FUNCTIONAL DISCOVERY: Verify server is ready before returning
	select {
	case err := <-serverErrCh:
		app.sweeper.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("stagelink relay started successfully")
		return nil
	case <-ctx.Done():
		app.sweeper.Stop()
		return ctx.Err()
	}
}

// FUNCTIONAL DISCOVERY: Shutdown coordination in reverse dependency order:
// HTTP → Sweeper. All state is volatile, nothing to flush.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down stagelink relay")

	// STEP 1: Stop accepting new connections
	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// STEP 2: Stop background sweeping
	app.sweeper.Stop()

	log.Printf("stagelink relay shutdown complete")
	return nil
}

// FUNCTIONAL DISCOVERY: Main entry point with comprehensive error handling
// Graceful shutdown on SIGINT/SIGTERM ensures proper resource cleanup
func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// ARCHITECTURAL DISCOVERY: Separate run function enables testing and error handling
func run() error {
	// STEP 1: Load configuration with precedence (file > env > defaults)
	configPath := os.Getenv("STAGELINK_CONFIG_FILE")
	cfg := config.LoadConfigWithPrecedence(configPath)

	// STEP 2: Create application with configuration
	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	// STEP 3: Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	// STEP 4: Start application in background
	appErrCh := make(chan error, 1)
	go func() {
		if err := app.Start(ctx); err != nil {
			appErrCh <- err
		}
	}()

	// STEP 5: Wait for shutdown signal or application error
	select {
	case err := <-appErrCh:
		return fmt.Errorf("application error: %w", err)
	case sig := <-signalCh:
		log.Printf("Received signal %v, shutting down gracefully", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := app.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}

		return nil
	}
}
