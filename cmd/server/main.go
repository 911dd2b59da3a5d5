package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/aryan0dhankhar/societyhub/internal/domain"
	"github.com/aryan0dhankhar/societyhub/internal/featureflags"
	"github.com/aryan0dhankhar/societyhub/internal/handler"
	"github.com/aryan0dhankhar/societyhub/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/societyhub/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/societyhub/internal/observability/metrics"
	"github.com/aryan0dhankhar/societyhub/internal/observability/tracing"
	"github.com/aryan0dhankhar/societyhub/internal/repository"
	"github.com/aryan0dhankhar/societyhub/internal/security"
	"github.com/aryan0dhankhar/societyhub/internal/security/audit"
	"github.com/aryan0dhankhar/societyhub/internal/security/auth"
	"github.com/aryan0dhankhar/societyhub/internal/security/credential"
	"github.com/aryan0dhankhar/societyhub/internal/security/middleware"
	"github.com/aryan0dhankhar/societyhub/internal/security/ratelimit"
	"github.com/aryan0dhankhar/societyhub/internal/service"
	"github.com/aryan0dhankhar/societyhub/internal/worker"
	"github.com/aryan0dhankhar/societyhub/pkg/config"
	"github.com/aryan0dhankhar/societyhub/pkg/database"
)

const maxBodyBytes = 1 << 20

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "societyhub: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.Environment)
	slog.SetDefault(log)
	log.Info("starting societyhub server", slog.String("environment", cfg.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, log, cfg.OTLPEndpoint, "societyhub", cfg.Environment)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracing shutdown failed", slog.String("error", err.Error()))
		}
	}()

	// 3. Storage: Postgres when configured, otherwise the in-memory store
	var store domain.Store
	if cfg.DatabaseURL != "" {
		pool, err := database.NewConnectionPool(ctx, &database.Config{
			URL:             cfg.DatabaseURL,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		}, log)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := pool.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		store = repository.NewPostgresStore(pool.GetDB(), log)
	} else {
		if cfg.IsProduction() {
			return errors.New("DATABASE_URL is required in production")
		}
		log.Warn("DATABASE_URL not set, using in-memory store")
		store = repository.NewMemoryStore()
	}

	// 4. Flat listing cache and worker lock: Redis when configured
	var (
		cache       domain.FlatListCache
		redisClient *redis.Client
		locker      worker.Locker
	)
	checks := map[string]handler.Pinger{"database": store, "redis": nil}
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL, log)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		cache = repository.NewRedisFlatCache(redisClient, cfg.FlatCacheTTL, log)
		locker = redisClient
		checks["redis"] = redisClient
	} else {
		cache = repository.NewMemoryFlatCache(cfg.FlatCacheTTL)
	}

	// 5. Security components
	secret := cfg.JWTSecret
	if secret == "" {
		log.Warn("JWT_SECRET not set, using an insecure development secret")
		secret = "societyhub-dev-secret"
	}
	tokens := auth.NewTokenManager(secret, cfg.JWTIssuer, cfg.TokenTTL)
	hasher := credential.NewHasher(cfg.BcryptCost)
	provisioner := credential.NewProvisioner(cfg.OwnerBootstrapLength, cfg.TenantBootstrapLength)
	authz := security.NewAuthorizationService(log)
	auditLogger := audit.NewLogger(log)
	limiter := ratelimit.NewLimiter(0, time.Minute)
	defer limiter.Stop()
	trustedProxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return err
	}

	// 6. Services
	societies := service.NewSocietyService(store, hasher, tokens, cache, auditLogger,
		featureflags.Enabled(featureflags.SelfRegistration), log)
	occupancy := service.NewOccupancyService(store, provisioner, cache, auditLogger, log)
	authService := service.NewAuthService(store, hasher, tokens, auditLogger, log)
	residents := service.NewResidentService(store, cache, log)

	// 7. Routes
	routes := &handler.Routes{
		Society:  handler.NewSocietyHandler(societies, log),
		Flats:    handler.NewFlatHandler(occupancy, log),
		Auth:     handler.NewAuthHandler(authService, limiter, cfg.LoginRateLimit, trustedProxies, log),
		Resident: handler.NewResidentHandler(residents, log),
		Health:   handler.NewHealthHandler(checks, log),
		Metrics:  promhttp.Handler(),
		Tokens:   tokens,
		Authz:    authz,
		Audit:    auditLogger,
	}
	mux := http.NewServeMux()
	routes.Register(mux)

	// metrics wraps the mux directly so the matched pattern is visible
	root := middleware.Chain(
		otelhttp.NewHandler(metrics.HTTPMetricsMiddleware(mux), "societyhub"),
		middleware.Recover(log),
		middleware.RequestID,
		middleware.Logging(log),
		middleware.CORS(cfg.CORSAllowedOrigins),
		middleware.SanitizePath(log),
		middleware.ValidateJSONContentType(log),
		middleware.LimitBody(maxBodyBytes),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	auditWorker := worker.NewBootstrapAuditWorker(store.Residents(), locker, cfg.BootstrapAuditInterval, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return auditWorker.Run(gctx)
	})
	g.Go(func() error {
		log.Info("server starting",
			slog.Int("port", cfg.ServerPort),
			slog.Int("login_rate_limit", cfg.LoginRateLimit),
			slog.Bool("postgres", cfg.DatabaseURL != ""),
			slog.Bool("redis", redisClient != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", slog.String("error", err.Error()))
		return err
	}
	log.Info("server stopped")
	return nil
}
