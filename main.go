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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mindgate/mindgate/config"
	"github.com/mindgate/mindgate/internal/adapter/agentclient"
	"github.com/mindgate/mindgate/internal/adapter/voice"
	"github.com/mindgate/mindgate/internal/approval"
	"github.com/mindgate/mindgate/internal/ratelimit"
	store "github.com/mindgate/mindgate/internal/repository"
	"github.com/mindgate/mindgate/internal/service"
	v1 "github.com/mindgate/mindgate/internal/transport/http/v1"
	"github.com/mindgate/mindgate/internal/transport/ws"
	"github.com/mindgate/mindgate/policy"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting control plane...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Agent URL: %s", cfg.AgentURL)
	log.Printf("Voice URL: %s", cfg.VoiceURL)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL, cfg.SessionCap)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize collaborator clients
	agentClient := agentclient.NewClient(cfg.AgentURL)
	voiceEngine := voice.NewClient(cfg.VoiceURL)

	// Initialize policy engine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	policySource := policy.DefaultPolicy
	if cfg.PolicyFile != "" {
		data, err := os.ReadFile(cfg.PolicyFile)
		if err != nil {
			log.Fatalf("Failed to read policy file: %v", err)
		}
		policySource = string(data)
	}
	policyEngine, err := policy.NewEngine(ctx, policySource)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize approval registry and its expiry sweeper
	approvals := approval.NewRegistry(nil)
	go approvals.Run(ctx, cfg.ApprovalSweep)

	// Initialize rate limiter
	limiter := ratelimit.NewLimiter(cfg.RateCooldown, cfg.RateBurst, cfg.RateWindow, nil)

	// Initialize service
	svc := service.New(db, agentClient, voiceEngine, policyEngine, approvals, limiter, cfg)

	// Initialize handlers
	h := v1.NewHandler(svc)
	wsServer := ws.NewServer(svc)

	// Create Echo server
	server := echo.New()
	server.HideBanner = true

	// Middleware
	server.Use(middleware.Logger())
	server.Use(middleware.Recover())
	server.Use(middleware.CORS())

	// Register routes
	h.RegisterRoutes(server)
	server.GET("/ws", wsServer.HandleWebSocket)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down control plane...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Control plane stopped")
}
