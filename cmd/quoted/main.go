package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quoteforge/quoteforge/internal/audit"
	"github.com/quoteforge/quoteforge/internal/health"
	"github.com/quoteforge/quoteforge/internal/identity"
	"github.com/quoteforge/quoteforge/internal/integrity"
	"github.com/quoteforge/quoteforge/internal/lifecycle"
	"github.com/quoteforge/quoteforge/internal/quote/handler"
	"github.com/quoteforge/quoteforge/internal/quote/repository"
	"github.com/quoteforge/quoteforge/internal/quote/service"
	"github.com/quoteforge/quoteforge/internal/resolve"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("quoted exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	viper.SetConfigName("quoted")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.issuer_url", "")
	viper.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("server.rate_limit_rps", 20)
	viper.SetDefault("server.admin_secret", "")
	viper.SetDefault("database.url", "")
	viper.SetDefault("ledger.signing_key", "")
	viper.SetDefault("identity.token_ttl_seconds", 3600)

	if err := viper.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return fmt.Errorf("read config: %w", err)
		}
		logger.Warn("no config file found, using defaults and env vars")
	}

	httpPort := viper.GetInt("server.port")
	issuerURL := viper.GetString("server.issuer_url")
	if issuerURL == "" {
		issuerURL = fmt.Sprintf("http://localhost:%d", httpPort)
	}

	// ── Database (optional: empty URL runs fully in memory) ──────────────────
	var db *pgxpool.Pool
	dbURL := viper.GetString("database.url")
	if dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := pool.Ping(context.Background()); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		db = pool
		logger.Info("connected to postgres")
	} else {
		logger.Warn("database.url not set — running with in-memory storage; data is lost on restart")
	}

	// ── Integrity ledger ─────────────────────────────────────────────────────
	signingKey := []byte(viper.GetString("ledger.signing_key"))
	var (
		ledger integrity.Ledger
		err    error
	)
	if db != nil {
		ledger, err = integrity.NewPostgresLedger(db, signingKey, logger)
	} else {
		ledger, err = integrity.NewMemoryLedger(signingKey)
	}
	if err != nil {
		return fmt.Errorf("ledger setup: %w", err)
	}
	logger.Info("integrity ledger ready", zap.Bool("persistent", db != nil))

	// ── Identity (service tokens) ────────────────────────────────────────────
	adminSecret := viper.GetString("server.admin_secret")
	var tokens *identity.TokenIssuer
	var verifier handler.TokenVerifier
	if adminSecret != "" {
		tokenTTL := time.Duration(viper.GetInt("identity.token_ttl_seconds")) * time.Second
		tokens, err = identity.NewTokenIssuer([]byte(adminSecret), issuerURL, tokenTTL)
		if err != nil {
			return fmt.Errorf("token issuer setup: %w", err)
		}
		verifier = tokens
	} else {
		logger.Warn("server.admin_secret not set — API auth disabled; do not use in production")
	}

	// ── Wire up layers ───────────────────────────────────────────────────────
	var repo service.Repository
	if db != nil {
		repo = repository.NewQuoteRepository(db)
	} else {
		repo = repository.NewMemoryRepository()
	}

	engine := lifecycle.NewAuditedEngine(lifecycle.NewEngine(), audit.NewZapSink(logger))
	resolver := resolve.NewResolver(logger)
	svc := service.NewQuoteService(repo, engine, resolver, ledger, logger)

	quoteHandler := handler.NewQuoteHandler(svc, verifier, logger)
	ledgerHandler := handler.NewLedgerHandler(svc, logger)

	if db != nil {
		verifyStartupChains(context.Background(), svc, logger)
	}

	// ── Health checks ────────────────────────────────────────────────────────
	checker := health.NewChecker(5*time.Second, logger)
	if db != nil {
		checker.Register("postgres", func(ctx context.Context) error {
			return db.Ping(ctx)
		})
	}
	checker.Register("ledger", func(ctx context.Context) error {
		_, err := ledger.Chain(ctx, uuid.Nil.String())
		return err
	})

	// ── HTTP Router ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsOrigins := viper.GetStringSlice("server.cors_origins")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(corsOrigins),
		MaxAge:           12 * time.Hour,
	}))

	// Request body size limit (1 MB)
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		c.Next()
	})

	rps := viper.GetInt("server.rate_limit_rps")
	if rps > 0 {
		router.Use(handler.RateLimiter(rps, rps*2))
	}

	router.Use(handler.PrometheusMiddleware())
	router.Use(requestLogger(logger))

	// Health and metrics (public, no auth)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", func(c *gin.Context) {
		checks, ready := checker.Check(c.Request.Context())
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"ready": ready, "checks": checks})
	})
	router.GET("/metrics", handler.MetricsHandler())

	// API v1
	v1 := router.Group("/api/v1")
	quoteHandler.Register(v1)
	ledgerHandler.Register(v1)
	if tokens != nil {
		handler.NewTokenHandler(tokens, adminSecret, logger).Register(v1)
	}

	// ── Serve ────────────────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", httpPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("quoted HTTP listening", zap.Int("port", httpPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	<-quit
	logger.Info("shutting down quoted...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("quoted stopped")
	return nil
}

// verifyStartupChains sweeps persisted quotes and checks each ledger chain.
// Failures are logged, not fatal; a broken chain still needs the API up so
// operators can inspect it.
func verifyStartupChains(ctx context.Context, svc *service.QuoteService, logger *zap.Logger) (checked, broken int) {
	// List caps pages at 100 rows; requesting more gets clamped.
	const pageSize = 100
	for offset := 0; ; {
		quotes, err := svc.List(ctx, pageSize, offset)
		if err != nil {
			logger.Error("startup chain sweep: list quotes failed (non-fatal)", zap.Error(err))
			return checked, broken
		}
		if len(quotes) == 0 {
			break
		}
		for _, q := range quotes {
			result, err := svc.VerifyChain(ctx, q.ID)
			if err != nil {
				logger.Error("startup chain sweep: verify failed (non-fatal)",
					zap.String("quote_id", q.ID.String()), zap.Error(err))
				continue
			}
			checked++
			if !result.Valid {
				broken++
				logger.Error("ledger chain invalid",
					zap.String("quote_id", q.ID.String()),
					zap.Int("verified_entries", result.VerifiedEntries),
					zap.String("reason", result.Reason),
				)
			}
		}
		offset += len(quotes)
		if len(quotes) < pageSize {
			break
		}
	}
	logger.Info("startup chain sweep complete", zap.Int("checked", checked), zap.Int("broken", broken))
	return checked, broken
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// requestLogger returns a Gin middleware that logs each request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
