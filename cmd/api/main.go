// Package main is the entry point for the Karib API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/karibapp/karib/internal/api"
	"github.com/karibapp/karib/internal/auth"
	"github.com/karibapp/karib/internal/config"
	"github.com/karibapp/karib/internal/db"
	"github.com/karibapp/karib/internal/health"
	"github.com/karibapp/karib/internal/middleware"
	"github.com/karibapp/karib/internal/nearby"
	"github.com/karibapp/karib/internal/place"
	"github.com/karibapp/karib/internal/points"
	"github.com/karibapp/karib/internal/tracing"
)

const serviceName = "karib-api"

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Karib API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "summary", cfg.LogSummary())

	ctx := context.Background()

	tracingProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingProtocol,
		OTLPEndpoint: cfg.TracingEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("tracing setup failed", "error", err)
		os.Exit(1)
	}

	checkers := health.NewRegistry()

	// Storage: Postgres with PostGIS when configured, in-memory otherwise.
	var placeRepo place.Repository
	var ledger points.Ledger
	if cfg.DatabaseURL != "" {
		openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		pool, err := db.Open(openCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			logger.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		placeRepo = place.NewPostgresRepository(pool, logger)
		ledger = points.NewPostgresLedger(pool, logger)
		checkers.Add("database", health.NewDBChecker(pool))
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
		placeRepo = place.NewInMemoryRepository()
		ledger = points.NewInMemoryLedger()
	}

	// Rate limiting: Redis-backed when configured so limits hold across
	// instances, per-instance counters otherwise.
	metrics := middleware.NewMetrics()
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	if err := metrics.Register(registry); err != nil {
		logger.Error("metrics registration failed", "error", err)
		os.Exit(1)
	}

	var rateLimitStore middleware.RateLimitStore
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		rateLimitStore = middleware.NewRedisRateLimitStore(redisClient, logger, metrics)
		checkers.Add("redis", health.NewRedisChecker(redisClient))
	} else {
		memStore := middleware.NewInMemoryRateLimitStore()
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				memStore.Cleanup(10 * time.Minute)
			}
		}()
		rateLimitStore = memStore
	}

	jwtService := auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)

	nearbyService := nearby.NewServiceWithTimeout(placeRepo, cfg.QueryTimeout())
	nearbyHandlers := api.NewNearbyHandlers(nearbyService, ledger, metrics)
	placeHandlers := api.NewPlaceHandlers(placeRepo, ledger, logger)
	healthHandlers := api.NewHealthHandlers(checkers)

	globalLimit := middleware.RateLimitConfig{
		Requests: cfg.RateLimitGlobalRequests,
		Window:   time.Duration(cfg.RateLimitGlobalWindowS) * time.Second,
	}
	searchLimit := middleware.RateLimitConfig{
		Requests: cfg.RateLimitSearchRequests,
		Window:   time.Duration(cfg.RateLimitSearchWindowS) * time.Second,
	}

	searchLimiter := middleware.RateLimiter(rateLimitStore, searchLimit, middleware.UserKeyFunc, metrics)

	mux := http.NewServeMux()

	mux.Handle("/places/nearby", searchLimiter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			api.WriteError(w, r.Context(), http.StatusMethodNotAllowed, api.ErrCodeBadRequest, "Method not allowed")
			return
		}
		nearbyHandlers.Nearby(w, r)
	})))

	requireAuth := auth.Required(jwtService)
	mux.Handle("/places", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			api.WriteError(w, r.Context(), http.StatusMethodNotAllowed, api.ErrCodeBadRequest, "Method not allowed")
			return
		}
		requireAuth(http.HandlerFunc(placeHandlers.Submit)).ServeHTTP(w, r)
	}))

	mux.HandleFunc("/places/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			api.WriteError(w, r.Context(), http.StatusMethodNotAllowed, api.ErrCodeBadRequest, "Method not allowed")
			return
		}
		placeHandlers.GetByID(w, r)
	})

	mux.HandleFunc("/health", healthHandlers.Live)
	mux.HandleFunc("/health/live", healthHandlers.Live)
	mux.HandleFunc("/health/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			api.WriteError(w, r.Context(), http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"karib-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.CORSAllowedOrigins) > 0 {
		corsConfig.AllowedOrigins = cfg.CORSAllowedOrigins
	}

	// Outermost first: request IDs, then tracing and logging so every span
	// and log line carries them, auth before rate limiting so authenticated
	// callers are keyed by user rather than shared NAT IPs.
	var handler http.Handler = mux
	handler = middleware.RateLimiter(rateLimitStore, globalLimit, middleware.UserKeyFunc, metrics)(handler)
	handler = auth.Optional(jwtService)(handler)
	handler = middleware.CORS(corsConfig)(handler)
	handler = middleware.HTTPMetrics(metrics)(handler)
	handler = middleware.Logging(logger)(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing(serviceName)(handler)
	}
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := tracingProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracer shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}
