package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"hdbackend/clients"
	"hdbackend/clients/socketio"
	"hdbackend/config"
	"hdbackend/db"
	"hdbackend/handlers"
	"hdbackend/middleware"
	"hdbackend/services/presence"
	"hdbackend/services/roster"
	"hdbackend/services/txmanager"
	"hdbackend/services/viewers"
	"hdbackend/services/worklogs"
	"hdbackend/usecases/collab"
)

func main() {
	if err := run(); err != nil {
		log.Printf("❌ Fatal error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	// Initialize error alert middleware
	alertMiddleware := middleware.NewErrorAlertMiddleware(middleware.AlertConfig{
		WebhookURL:  cfg.AlertingConfig.WebhookURL,
		Environment: cfg.Environment,
		AppName:     "hdbackend",
		LogsURL:     cfg.AlertingConfig.LogsURL,
	})

	// Initialize database connection
	dbConn, err := db.NewConnection(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	// Initialize repositories with shared connection
	agentsRepo := db.NewPostgresAgentsRepository(dbConn, cfg.DatabaseSchema)
	worklogsRepo := db.NewPostgresWorklogsRepository(dbConn, cfg.DatabaseSchema)

	// Initialize transaction manager
	txManager := txmanager.NewTransactionManager(dbConn)

	rosterService := roster.NewRosterService(agentsRepo)
	worklogsService := worklogs.NewWorklogsService(worklogsRepo, rosterService, txManager)

	// Token validator for realtime connections
	tokenValidator := func(token string) (string, error) {
		maybeAgent, err := rosterService.GetAgentByAPIToken(context.Background(), token)
		if err != nil {
			return "", err
		}
		if !maybeAgent.IsPresent() {
			return "", fmt.Errorf("invalid API token")
		}
		return maybeAgent.MustGet().ID, nil
	}

	gateway := socketio.NewSocketIOGateway(tokenValidator)

	presenceService := presence.NewPresenceService(rosterService, gateway)
	viewersService := viewers.NewViewersService(gateway)
	collabUseCase := collab.NewCollabUseCase(presenceService, viewersService)

	realtimeHandler := handlers.NewRealtimeHandler(viewersService)
	httpHandler := handlers.NewCollabHTTPHandler(rosterService, presenceService, viewersService, worklogsService)
	authMiddleware := middleware.NewTokenAuthMiddleware(rosterService)

	// Create a new router
	router := mux.NewRouter()

	// Setup endpoints with the new router
	gateway.RegisterWithRouter(router)
	httpHandler.RegisterRoutes(router, authMiddleware.WithAuth)

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			log.Printf("❌ Failed to write health check response: %v", err)
		}
	}).Methods("GET")

	// Wrapper functions for usecase methods that require context
	registerSession := func(client *clients.Client) error {
		return collabUseCase.RegisterSession(context.Background(), client)
	}
	deregisterSession := func(client *clients.Client) error {
		return collabUseCase.DeregisterSession(context.Background(), client)
	}

	// Register realtime hooks for session lifecycle
	gateway.RegisterConnectionHook(alertMiddleware.WrapConnectionHook(registerSession))
	gateway.RegisterDisconnectionHook(alertMiddleware.WrapConnectionHook(deregisterSession))

	// Register realtime event handlers
	gateway.RegisterEventHandler("ticket:view",
		alertMiddleware.WrapEventHandler("ticket:view", realtimeHandler.HandleTicketView))
	gateway.RegisterEventHandler("ticket:leave",
		alertMiddleware.WrapEventHandler("ticket:leave", realtimeHandler.HandleTicketLeave))

	// Start periodic persistence of last-seen timestamps
	flushTicker := time.NewTicker(1 * time.Minute)
	go func() {
		for range flushTicker.C {
			_ = alertMiddleware.WrapBackgroundTask("FlushPresence", func() error {
				return collabUseCase.FlushPresence(context.Background())
			})()
		}
	}()
	defer flushTicker.Stop()

	// Setup CORS middleware
	allowedOrigins := strings.Split(cfg.CORSAllowedOrigins, ",")
	for i, origin := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(origin)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	// Setup and handle graceful shutdown
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           alertMiddleware.HTTPMiddleware(c.Handler(router)),
		ReadHeaderTimeout: 30 * time.Second,
	}

	return handleGracefulShutdown(server)
}

func handleGracefulShutdown(server *http.Server) error {
	// Channel to listen for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		log.Printf("✅ Listening on http://localhost%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	<-stop
	log.Printf("🛑 Shutdown signal received, cleaning up...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown server gracefully
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("❌ Server shutdown error: %v", err)
		return err
	}

	log.Printf("✅ Server stopped gracefully")
	return nil
}
