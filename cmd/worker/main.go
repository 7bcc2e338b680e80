// Package main provides the entrypoint for the BarberSync dispatch worker.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/barbersync/barbersync/internal/api"
	"github.com/barbersync/barbersync/internal/api/middleware"
	"github.com/barbersync/barbersync/internal/database"
	"github.com/barbersync/barbersync/internal/messaging"
	"github.com/barbersync/barbersync/internal/messaging/wappcloud"
	"github.com/barbersync/barbersync/internal/messaging/wappsession"
	"github.com/barbersync/barbersync/internal/provider/resilience"
	"github.com/barbersync/barbersync/internal/tenant"
	"github.com/barbersync/barbersync/internal/telemetry"
	"github.com/barbersync/barbersync/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "barbersync-dispatch"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting BarberSync dispatch worker")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	gatewayCfg, err := messaging.ConfigFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid gateway configuration")
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	gatewayMetrics, err := middleware.NewGatewayMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize gateway metrics")
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	tenants := tenant.NewPostgresDirectory(pool)

	// Initialize the gateway transport for the configured variant
	var transport messaging.Transport
	switch gatewayCfg.Variant {
	case messaging.VariantSession:
		transport = wappsession.NewClient(wappsession.ClientConfig{
			BaseURL:        gatewayCfg.BaseURL,
			APIKey:         gatewayCfg.APIKey,
			DefaultSession: gatewayCfg.DefaultSession,
			CountryCode:    gatewayCfg.CountryCode,
			Logger:         log,
		})
	default:
		transport = wappcloud.NewClient(wappcloud.ClientConfig{
			BaseURL:         gatewayCfg.BaseURL,
			APIKey:          gatewayCfg.APIKey,
			DefaultInstance: gatewayCfg.DefaultSession,
			CountryCode:     gatewayCfg.CountryCode,
			Logger:          log,
		})
	}
	log.Info().
		Str("variant", string(gatewayCfg.Variant)).
		Str("gateway", transport.Name()).
		Msg("gateway transport initialized")

	// Circuit breaker and gateway health registry
	breakerCfg := resilience.DefaultConfig(transport.Name())
	breakerCfg.OnStateChange = func(name string, from, to resilience.State) {
		log.Warn().
			Str("gateway", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("circuit breaker state change")
	}
	breaker := resilience.New(breakerCfg)

	registry := resilience.NewRegistry()
	registry.Register(transport.Name(), breaker)

	// Messaging service and batch dispatcher
	sender := messaging.NewService(messaging.ServiceConfig{
		Transport: transport,
		Breaker:   breaker,
		Tenants:   tenants,
		Registry:  registry,
		Metrics:   gatewayMetrics,
		Logger:    log,
	})

	dispatcher := messaging.NewBatchDispatcher(messaging.DispatcherConfig{
		Sender:   sender,
		MinDelay: gatewayCfg.MinMessageDelay,
		MaxDelay: gatewayCfg.MaxMessageDelay,
		Logger:   log,
	})

	dispatchJob := worker.NewDispatchJob(worker.DispatchJobConfig{
		Dispatcher: dispatcher,
		Logger:     log,
	})

	// Pub/Sub subscription delivering reminder batches
	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
	if subscription == "" {
		subscription = "reminder-dispatch"
	}

	pubsubHandler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        projectID,
		SubscriptionName: subscription,
		DispatchJob:      dispatchJob,
		Logger:           log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pubsub handler")
	}
	defer pubsubHandler.Close()

	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()

	go func() {
		if err := pubsubHandler.Start(workerCtx); err != nil {
			log.Error().Err(err).Msg("pubsub receiver stopped")
		}
	}()

	// Ops HTTP surface
	statusAuthKey := os.Getenv("OPS_AUTH_SIGNING_KEY")
	if statusAuthKey == "" {
		statusAuthKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default ops signing key - not secure for production")
	}

	router := api.NewRouter(api.RouterConfig{
		Version:         Version,
		BuildTime:       BuildTime,
		Logger:          log,
		ServiceName:     serviceName,
		Metrics:         metrics,
		Database:        pool,
		GatewayRegistry: registry,
		StatusAuthKey:   []byte(statusAuthKey),
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("ops server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	workerCancel()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("worker stopped")
}
