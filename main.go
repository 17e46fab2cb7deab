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

	"github.com/xqin1/pipeflow/internal/adapter/llm"
	"github.com/xqin1/pipeflow/internal/agent"
	"github.com/xqin1/pipeflow/internal/config"
	"github.com/xqin1/pipeflow/internal/hub"
	"github.com/xqin1/pipeflow/internal/notify"
	"github.com/xqin1/pipeflow/internal/scheduler"
	"github.com/xqin1/pipeflow/internal/service"
	"github.com/xqin1/pipeflow/internal/store"
	transport "github.com/xqin1/pipeflow/internal/transport/http"
	"github.com/xqin1/pipeflow/policy"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting pipeflow...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("LLM backend: %s (model %s)", cfg.LLMBaseURL, cfg.LLMModel)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize LLM client and agent registry
	llmClient := llm.NewLLMClient(cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMTimeout)
	registry := agent.NewRegistry(llmClient)

	// Initialize policy engine
	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize notification channels
	emailSender := notify.NewSMTPSender(cfg.SMTPUsername, cfg.SMTPPassword)
	webhookSender := notify.NewHTTPWebhookSender(10 * time.Second)
	dispatcher := notify.NewDispatcher(emailSender, webhookSender)

	// Initialize event hub and service
	eventHub := hub.NewHub()
	svc := service.New(db, registry, dispatcher, eventHub, policyEngine, cfg)

	// Fail sessions orphaned by a previous crash before accepting triggers.
	if err := svc.RecoverStaleSessions(ctx); err != nil {
		log.Printf("WARN: stale session recovery failed: %v", err)
	}

	// Start scheduler
	runner := scheduler.NewRunner(svc, cfg.TickInterval)
	schedCtx, stopScheduler := context.WithCancel(ctx)
	go runner.Start(schedCtx)

	// Create HTTP server
	server := transport.NewServer(svc, eventHub, runner)

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

	log.Println("Shutting down pipeflow...")

	stopScheduler()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}
	if err := svc.Drain(shutdownCtx); err != nil {
		log.Printf("Shutdown timed out waiting for running sessions: %v", err)
	}

	log.Println("Pipeflow stopped")
}
