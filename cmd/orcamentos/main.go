package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/boddenberg/orcamento-engine-go/internal/config"
	"github.com/boddenberg/orcamento-engine-go/internal/domain"
	"github.com/boddenberg/orcamento-engine-go/internal/handler"
	"github.com/boddenberg/orcamento-engine-go/internal/infra/cache"
	"github.com/boddenberg/orcamento-engine-go/internal/infra/client"
	"github.com/boddenberg/orcamento-engine-go/internal/infra/memstore"
	"github.com/boddenberg/orcamento-engine-go/internal/infra/observability"
	"github.com/boddenberg/orcamento-engine-go/internal/infra/resilience"
	"github.com/boddenberg/orcamento-engine-go/internal/infra/supabase"
	"github.com/boddenberg/orcamento-engine-go/internal/port"
	"github.com/boddenberg/orcamento-engine-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "ignoring malformed .env: %v\n", err)
	}

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("timezone", cfg.Timezone),
		zap.Bool("supabase", cfg.SupabaseEnabled()),
		zap.Bool("redis", cfg.RedisURL != ""),
		zap.Bool("auth", cfg.SupabaseJWTSecret != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
	)

	// --- Tracing ---
	if cfg.OTLPEndpoint != "" {
		shutdown, err := observability.InitTracer(context.Background(), cfg.OTLPEndpoint, "orcamentos")
		if err != nil {
			logger.Fatal("failed to init tracer", zap.Error(err))
		}
		defer shutdown(context.Background())
	}

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Clock ---
	clock, err := service.NewSystemClock(cfg.Timezone)
	if err != nil {
		logger.Fatal("invalid TIMEZONE", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var probes []handler.Probe

	// --- Data store ---
	var store port.DataStore
	if cfg.SupabaseEnabled() {
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))
		sb := supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase"),
			resilienceCfg,
			logger,
		)
		store = sb
		probes = append(probes, handler.Probe{Name: "supabase", Ping: sb.Ping})
	} else {
		logger.Warn("Supabase not configured, using in-memory store (data is lost on restart)")
		mem := memstore.New()
		store = mem
		probes = append(probes, handler.Probe{Name: "memstore", Ping: mem.Ping})
	}

	// --- Cache ---
	var templates port.Cache[[]domain.PaymentOptionTemplate]
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		defer rdb.Close()
		rc := cache.NewRedis[[]domain.PaymentOptionTemplate](rdb, "orcamentos:", cfg.CacheTTL, logger)
		templates = rc
		probes = append(probes, handler.Probe{Name: "redis", Ping: rc.Ping})
	} else {
		mc := cache.New[[]domain.PaymentOptionTemplate](cfg.CacheTTL)
		defer mc.Close()
		templates = mc
	}

	// --- Notifiers ---
	var email port.EmailSender
	if cfg.EmailAPIURL != "" {
		email = client.NewEmailClient(
			httpClient,
			cfg.EmailAPIURL,
			cfg.EmailAPIKey,
			cfg.EmailFrom,
			resilience.NewCircuitBreaker("email"),
			resilienceCfg,
			resilience.NewBulkhead(cfg.MaxConcurrency),
		)
	} else {
		logger.Warn("EMAIL_API_URL not set, emails are only logged")
		email = client.NewLogEmailSender(logger)
	}
	inApp := service.NewStoreNotifier(store, clock)

	// --- Services ---
	catalogSvc := service.NewCatalogService(store, templates, metrics, logger)
	quoteSvc := service.NewQuoteService(store, inApp, email, clock, metrics, logger)
	paymentSvc := service.NewPaymentService(store, catalogSvc, quoteSvc, clock, metrics, logger)

	var verifier *service.TokenVerifier
	if cfg.SupabaseJWTSecret != "" {
		verifier = service.NewTokenVerifier(cfg.SupabaseJWTSecret)
	} else {
		logger.Warn("SUPABASE_JWT_SECRET not set, API is unauthenticated")
	}

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Catalog:  catalogSvc,
		Quotes:   quoteSvc,
		Payments: paymentSvc,
		Verifier: verifier,
		Probes:   probes,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
