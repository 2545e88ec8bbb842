package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bloomkart/internal/config"
	"bloomkart/internal/database"
	"bloomkart/internal/handler"
	"bloomkart/internal/notify"
	"bloomkart/internal/pricing"
	"bloomkart/internal/proofstore"
	"bloomkart/internal/repository"
	"bloomkart/internal/router"
	"bloomkart/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting bloomkart API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	// Initialize repositories
	productRepo := repository.NewProductRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	paymentRepo := repository.NewPaymentRepository(pool, logger)

	// Initialize proof store with S3 and local fallback
	fileStore := proofstore.NewFileStore(cfg.ProofStore.LocalDir, logger)
	var proofs proofstore.Store

	if cfg.ProofStore.S3Enabled {
		s3Store, err := proofstore.NewS3Store(ctx, cfg.ProofStore.S3Bucket, cfg.ProofStore.S3Region, cfg.ProofStore.S3Prefix, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 proof store, falling back to local file system only")
			proofs = fileStore
		} else {
			proofs = proofstore.NewFallbackStore(s3Store, fileStore, logger)
		}
	} else {
		proofs = fileStore
		logger.Info().Msg("using local file system for payment proofs (S3 disabled)")
	}

	// Initialize event publisher
	var publisher notify.Publisher
	if cfg.Kafka.Enabled {
		publisher = notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	} else {
		publisher = notify.NewNopPublisher()
		logger.Info().Msg("event publishing disabled (kafka disabled)")
	}
	defer publisher.Close()

	emitter := notify.NewEmitter(publisher, logger)

	// Initialize services
	pricer := pricing.New(productRepo, logger)
	productService := service.NewProductService(productRepo, logger)
	orderService := service.NewOrderService(orderRepo, pricer, emitter, logger)
	paymentService := service.NewPaymentService(paymentRepo, orderRepo, proofs, emitter, logger)

	// Initialize HTTP handlers
	productHandler := handler.NewProductHandler(productService, logger)
	orderHandler := handler.NewOrderHandler(orderService, logger)
	paymentHandler := handler.NewPaymentHandler(paymentService, logger)

	// Initialize router
	mux := router.New(productHandler, orderHandler, paymentHandler, cfg.Auth.APIKey, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}
