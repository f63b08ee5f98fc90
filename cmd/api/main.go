package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"golang.org/x/sync/errgroup"

	"github.com/outreachhq/outreach-backend/internal/api"
	"github.com/outreachhq/outreach-backend/internal/auth"
	"github.com/outreachhq/outreach-backend/internal/config"
	"github.com/outreachhq/outreach-backend/internal/email"
	"github.com/outreachhq/outreach-backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// newLogger returns JSON in production and text elsewhere.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Log.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.StartupEnvironment() == config.Production {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	env := cfg.StartupEnvironment()
	logger.Info("config loaded", "env", env, "port", cfg.Server.Port)

	// ── Database ──────────────────────────────────────────────────────────────
	// One pool per environment. The startup environment's database must be
	// reachable; the other is optional and only used if APP_ENV changes.
	stores := make(map[config.Environment]store.Querier, 2)
	for _, e := range []config.Environment{config.Production, config.Development} {
		dsn := cfg.Environment(e).DatabaseURL
		if dsn == "" {
			continue
		}
		pool, err := openDB(dsn)
		switch {
		case err == nil:
			logger.Info("database connected", "env", e)
		case e == env:
			if pool != nil {
				pool.Close()
			}
			return fmt.Errorf("database (%s): %w", e, err)
		case pool == nil:
			logger.Warn("database not opened", "env", e, "error", err)
			continue
		default:
			logger.Warn("database unreachable, retrying on use", "env", e, "error", err)
		}
		defer pool.Close()
		stores[e] = store.New(pool)
	}
	st := store.NewEnvRouter(stores, cfg.CurrentEnvironment)

	// ── Auth ──────────────────────────────────────────────────────────────────
	// The API pins the environment on each request; the verifier, resolver
	// and store router all honour it.
	verifier := auth.NewVerifier(cfg.CurrentEnvironment, cfg)
	resolver := auth.NewResolver(st, auth.ResolverConfig{
		KnownRoles:      cfg.Auth.Roles(),
		DevDefaultRoles: cfg.Auth.DevDefaultRoles(),
	}, cfg.CurrentEnvironment, logger)

	// ── Email (Resend) ────────────────────────────────────────────────────────
	sender := email.NewResendClient(email.ResendConfig{
		APIKey:   cfg.Email.ResendAPIKey,
		BaseURL:  cfg.Email.ResendBaseURL,
		FromAddr: cfg.Email.FromAddr,
		FromName: cfg.Email.FromName,
		Timeout:  cfg.Email.Timeout,
	})
	dispatcher := email.NewDispatcher(sender, email.DispatchConfig{
		MaxBatchSize: cfg.Dispatch.MaxBatchSize,
		MaxRetries:   cfg.Dispatch.MaxRetries,
		RetryDelay:   cfg.Dispatch.RetryDelay,
		BatchDelay:   cfg.Dispatch.BatchDelay,
		DefaultFrom:  email.FormatSender(cfg.Email.FromName, cfg.Email.FromAddr),
	}, logger)

	// ── HTTP server ───────────────────────────────────────────────────────────
	proxies, err := cfg.RateLimit.Proxies()
	if err != nil {
		return err
	}
	handler := api.NewServer(st, verifier, resolver, dispatcher, api.Config{
		Env:            cfg.CurrentEnvironment,
		AllowedOrigins: cfg.CORS.Origins(),
		RequestTimeout: cfg.Server.RequestTimeout,
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
		TrustedProxies: proxies,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// openDB opens the connection pool and verifies it is reachable. On a failed
// ping the pool is still returned, open, alongside the error.
func openDB(dsn string) (*sql.DB, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(10)
	pool.SetConnMaxLifetime(5 * time.Minute)
	pool.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pool.PingContext(ctx); err != nil {
		return pool, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}
