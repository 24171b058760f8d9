package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bot-crm/internal/ai"
	"bot-crm/internal/cache"
	"bot-crm/internal/config"
	"bot-crm/internal/convo"
	"bot-crm/internal/httpapi"
	"bot-crm/internal/metrics"
	"bot-crm/internal/quote"
	"bot-crm/internal/repo"
	"bot-crm/internal/wa"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed loading .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	m := metrics.New(cfg.MetricsNamespace)

	repository, err := repo.Open(ctx, repo.Config{
		DatabaseURL: cfg.DatabaseURL,
		Schema:      cfg.DatabaseSchema,
	}, logger, m)
	if err != nil {
		return err
	}
	defer repository.Close()
	if err := repository.Migrate(ctx); err != nil {
		return err
	}

	checks := []httpapi.Check{{Name: "postgres", Ping: repository.Ping}}

	var redis *cache.Redis
	if cfg.RedisAddr != "" {
		redis, err = cache.New(ctx, cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TLS:      cfg.RedisTLS,
			Prefix:   cfg.MetricsNamespace,
		})
		if err != nil {
			return err
		}
		defer redis.Close()
		checks = append(checks, httpapi.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return redis.Client().Ping(ctx).Err()
		}})
	} else {
		logger.Warn("REDIS_ADDR not set, catalog cache and AI rate limit disabled")
	}

	items := repository.Items(redis, cfg.CatalogCacheTTL)
	assistant := ai.NewDispatcher(primaryProvider(cfg, logger), ai.NewSecondaryProvider(ai.SecondaryConfig{
		BaseURL: cfg.AISecondaryBaseURL,
		Model:   cfg.AISecondaryModel,
		Timeout: cfg.AITimeout,
	}), ai.DispatcherConfig{Timeout: cfg.AITimeout}, logger, m)

	deps := convo.Deps{
		Customers: repository.Customers(),
		Catalog:   items,
		Tasks:     repository.Tasks(),
		Quotes: quote.New(items, repository.Quotations(), quote.Config{
			MarkupPercent: cfg.QuoteMarkupPercent,
			TaxPercent:    cfg.QuoteTaxPercent,
			Location:      cfg.Location,
		}, logger),
		Assistant: assistant,
		Log:       repository.Messages(),
	}
	if redis != nil {
		deps.Limiter = redis
	}

	sessions := convo.NewSessions(cfg.SessionIdleTTL, m)
	go sessions.Run(ctx, time.Minute)

	location := cfg.Location
	engine := convo.New(deps, sessions, convo.Config{
		DuplicatePolicy: cfg.DuplicatePolicy,
		AIRateLimit:     cfg.AIRateLimit,
		AIRateWindow:    cfg.AIRateWindow,
		Clock:           func() time.Time { return time.Now().In(location) },
	}, logger, m)

	if cfg.WhatsAppEnabled {
		gateway, err := wa.Open(ctx, wa.Config{StorePath: cfg.WhatsAppStorePath, LogLevel: cfg.WhatsAppLogLevel}, logger)
		if err != nil {
			return err
		}
		defer gateway.Close()
		handler := wa.NewHandler(engine, gateway, m, logger, cfg.AITimeout*3)
		if err := gateway.Start(ctx, handler.HandleEvent); err != nil {
			return err
		}
		checks = append(checks, httpapi.Check{Name: "whatsapp", Ping: gateway.Ping})
	}

	srv := &http.Server{
		Addr: cfg.HTTPListenAddr,
		Handler: httpapi.NewRouter(engine, httpapi.Config{
			RequestTimeout: cfg.AITimeout * 3,
			Checks:         checks,
			Registry:       m.Registry,
		}, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPListenAddr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func primaryProvider(cfg *config.Config, logger *slog.Logger) ai.Provider {
	switch cfg.AIPrimary {
	case config.PrimaryFunction:
		return ai.NewFunctionProvider(ai.FunctionConfig{
			URL:        cfg.AIFunctionURL,
			ServiceKey: cfg.AIFunctionKey,
			Timeout:    cfg.AITimeout,
		})
	case config.PrimaryGemini:
		return ai.NewGeminiProvider(ai.GeminiConfig{
			Keys:     cfg.GeminiAPIKeys,
			Model:    cfg.GeminiModel,
			Timeout:  cfg.AITimeout,
			Cooldown: cfg.GeminiCooldown,
		}, logger)
	default:
		logger.Warn("no primary AI provider configured")
		return nil
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
