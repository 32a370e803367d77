package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"finwise/internal/advice"
	"finwise/internal/advice/gemini"
	"finwise/internal/amqp"
	"finwise/internal/cache"
	"finwise/internal/cli"
	"finwise/internal/config"
	apphttp "finwise/internal/http"
	"finwise/internal/log"
	"finwise/internal/middleware/ratelimit"
	"finwise/internal/services"
	"finwise/internal/session"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	generator, err := gemini.New(ctx, gemini.Config{
		APIKey:         cfg.GeminiAPIKey,
		Model:          cfg.GeminiModel,
		ThinkingBudget: cfg.GeminiThinkingBudget,
	})
	if err != nil {
		logger.Error("Failed to initialize Gemini client",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeExternal)
		os.Exit(1)
	}

	adviceCfg := advice.DefaultConfig()
	adviceCfg.MaxOutputTokens = cfg.AdviceMaxOutputTokens
	adviceCfg.Timeout = cfg.AdviceTimeout
	adviceCfg.MaxRetries = cfg.AdviceMaxRetries
	gateway := advice.NewGateway(generator, adviceCfg)

	sessions := session.NewManager(cfg.SessionTTL, cfg.SessionMaxEntries)
	caches := cache.NewManager()
	caches.Register("sessions", sessions.Store())
	if c := gateway.CategoryCache(); c != nil {
		caches.Register("categories", c)
	}
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	// An unreachable broker disables events; the worker's periodic sweep
	// exports whatever was recorded meanwhile.
	var publisher services.EventPublisher
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, expense events disabled",
				log.FieldError, err,
				log.FieldErrorType, log.ErrorTypeNetwork)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("AMQP publisher ready", "exchange", cfg.AMQPExchange)
		}
	}

	rate := cfg.AuthRate()
	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:          ":" + cfg.Port,
		Auth:          services.NewAuthService(repo),
		Expenses:      services.NewExpenseService(repo, gateway, publisher),
		Advice:        services.NewAdviceService(gateway),
		Sessions:      sessions,
		Health:        repo,
		Logger:        logger,
		SecureCookies: cfg.SecureCookies,
		AuthRateLimit: ratelimit.Config{Requests: rate.Requests, Window: rate.Window},
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting finwise server",
			"port", cfg.Port,
			"model", generator.Model(),
			"amqp", publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
