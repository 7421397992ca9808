package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finanzas/internal/amqp"
	"finanzas/internal/analysis"
	"finanzas/internal/audit"
	"finanzas/internal/auth"
	"finanzas/internal/config"
	apphttp "finanzas/internal/http"
	"finanzas/internal/llm"
	applog "finanzas/internal/log"
	"finanzas/internal/ratelimit"
	"finanzas/internal/storage"
	"finanzas/internal/webhook"
)

func main() {
	// Best effort: the server runs fine on real environment variables alone.
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Component: "finanzas"})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open storage", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	limits := ratelimit.NewMemoryStore()
	defer limits.Stop()

	var queue apphttp.ExportPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// The export pipeline is optional; the API works without it.
			logger.Warn("AMQP unavailable, transaction export disabled", "error", err)
		} else {
			defer client.Close()
			queue = client
		}
	}

	server := apphttp.NewServer(apphttp.ServerOptions{
		Repo:     repo,
		Sessions: auth.NewManager(repo, cfg.SessionTTL, cfg.SecureCookies),
		Limits:   limits,
		Audit:    audit.NewRecorder(repo, logger.Logger),
		Webhook:  webhook.NewForwarder(cfg.FeedbackWebhookURL),
		Queue:    queue,
		LLM: llm.NewClient(llm.Config{
			BaseURL:     cfg.LLMBaseURL,
			APIKey:      cfg.LLMAPIKey,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
			Timeout:     cfg.LLMTimeout,
		}),
		Aggregator: analysis.NewAggregator(repo),
		Logger:     logger.Logger,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Handler(),

		ReadTimeout: 10 * time.Second,
		// The analysis stream can legitimately run for minutes.
		WriteTimeout:   cfg.LLMTimeout + 30*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting finanzas server", "port", cfg.Port, "export_queue", queue != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
