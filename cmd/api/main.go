package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	cataloghttp "github.com/turathna/marketplace/internal/catalog/adapters/http"
	catalogmemory "github.com/turathna/marketplace/internal/catalog/adapters/memory"
	catalogpostgres "github.com/turathna/marketplace/internal/catalog/adapters/postgres"
	catalogports "github.com/turathna/marketplace/internal/catalog/ports"
	"github.com/turathna/marketplace/internal/config"
	"github.com/turathna/marketplace/internal/database"
	idemmemory "github.com/turathna/marketplace/internal/idempotency/memory"
	idempostgres "github.com/turathna/marketplace/internal/idempotency/postgres"
	idemredis "github.com/turathna/marketplace/internal/idempotency/redis"
	"github.com/turathna/marketplace/internal/kafka"
	"github.com/turathna/marketplace/internal/orders/adapters"
	demogateway "github.com/turathna/marketplace/internal/orders/adapters/demo"
	ordershttp "github.com/turathna/marketplace/internal/orders/adapters/http"
	ordersmemory "github.com/turathna/marketplace/internal/orders/adapters/memory"
	orderspostgres "github.com/turathna/marketplace/internal/orders/adapters/postgres"
	stripegateway "github.com/turathna/marketplace/internal/orders/adapters/stripe"
	ordersapp "github.com/turathna/marketplace/internal/orders/app"
	ordersmetrics "github.com/turathna/marketplace/internal/orders/metrics"
	"github.com/turathna/marketplace/internal/orders/ports"
	"github.com/turathna/marketplace/internal/telemetry"
	"go.opentelemetry.io/otel"
)

const meterName = "github.com/turathna/marketplace"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(parseLogLevel(cfg.Telemetry.LogLevel))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.OTelEndpoint != "" {
		tel, err := telemetry.Initialize(ctx, telemetry.Config{
			ServiceName:    cfg.Service.Name,
			ServiceVersion: cfg.Service.Version,
			Environment:    cfg.Service.Environment,
			OTLPEndpoint:   cfg.Telemetry.OTelEndpoint,
			EnableTracing:  cfg.Telemetry.EnableTracing,
			EnableMetrics:  cfg.Telemetry.EnableMetrics,
			SampleRate:     cfg.Telemetry.SampleRate,
		})
		if err != nil {
			logger.Error("failed to initialize telemetry", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tel.Shutdown(shutdownCtx); err != nil {
				logger.Error("telemetry shutdown failed", "error", err)
			}
		}()
	}

	meter := otel.Meter(meterName)

	dbMetrics, err := database.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create database metrics", "error", err)
		os.Exit(1)
	}

	kafkaMetrics, err := kafka.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create kafka metrics", "error", err)
		os.Exit(1)
	}

	httpMetrics, err := ordershttp.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create http metrics", "error", err)
		os.Exit(1)
	}

	orderMetrics, err := ordersmetrics.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create order metrics", "error", err)
		os.Exit(1)
	}

	var (
		productRepo catalogports.ProductRepository
		orderRepo   ports.OrderRepository
		processed   ports.ProcessedEvents
		readiness   func(context.Context) error
	)

	switch cfg.Storage.Backend {
	case "postgres":
		pool, err := database.NewPool(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("failed to create database pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if cfg.Database.AutoMigrate {
			logger.Info("running database migrations", "path", cfg.Database.MigrationsPath)
			if err := database.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
				logger.Error("failed to run migrations", "error", err)
				os.Exit(1)
			}
			logger.Info("migrations completed successfully")
		}

		productRepo = catalogpostgres.NewRepository(pool)
		orderRepo = orderspostgres.NewRepository(pool)
		processed = idempostgres.NewStore(pool)
		readiness = func(ctx context.Context) error { return database.CheckHealth(ctx, pool) }
	default:
		productRepo = catalogmemory.NewRepository()
		orderRepo = ordersmemory.NewRepository()
		processed = idemmemory.NewStore()
		readiness = func(context.Context) error { return nil }
	}

	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr})
		defer func() { _ = client.Close() }()
		processed = idemredis.NewStore(client, cfg.Redis.TTL)
		logger.Info("processed-events ledger backed by redis", "addr", cfg.Redis.Addr)
	}

	orderRepo = adapters.NewObservableRepository(orderRepo, dbMetrics)

	var gateway ports.CheckoutGateway
	if cfg.Stripe.SecretKey != "" {
		gateway = stripegateway.NewGateway(stripegateway.Config{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			BaseURL:       cfg.Stripe.BaseURL,
			Currency:      cfg.Stripe.Currency,
			Timeout:       cfg.Stripe.Timeout,
		})
	} else {
		logger.Warn("stripe secret key not set, running checkout in demo mode")
		gateway = demogateway.NewGateway()
	}

	var eventBus ports.EventBus
	if len(cfg.Kafka.Brokers) > 0 {
		bus := kafka.NewEventBus(cfg.Kafka.Brokers)
		defer func() { _ = bus.Close() }()
		eventBus = bus
	} else {
		eventBus = kafka.NewNoopEventBus()
	}
	eventBus = adapters.NewObservableEventBus(eventBus, kafkaMetrics)

	service := ordersapp.NewService(orderRepo, productRepo, gateway, eventBus, processed, nil, logger, orderMetrics)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := readiness(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.HandleFunc(cfg.HTTP.MetricsPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("# metrics are exported via OTLP\n"))
	})

	ordershttp.NewHandler(service).Register(mux)
	cataloghttp.NewHandler(productRepo, cfg.AdminAPIKey).Register(mux)

	handler := withRecovery(withLogging(ordershttp.WithMetrics(mux, httpMetrics)))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "port", cfg.HTTP.Port, "storage", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownGrace)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	} else {
		logger.Info("http server stopped")
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		slog.InfoContext(r.Context(), "http request", "method", r.Method, "path", r.URL.Path, "status", rw.status, "duration", time.Since(start))
	})
}

func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.ErrorContext(r.Context(), "panic recovered", "error", rec)
				respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
