package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uara/dashboard/internal/activity"
	"github.com/uara/dashboard/internal/cache"
	"github.com/uara/dashboard/internal/config"
	"github.com/uara/dashboard/internal/handler"
	natsclient "github.com/uara/dashboard/internal/nats"
	"github.com/uara/dashboard/internal/service"
	"github.com/uara/dashboard/internal/sizing"
	"github.com/uara/dashboard/internal/store"
	"github.com/uara/dashboard/pkg/retry"
	"github.com/uara/dashboard/pkg/tracing"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  `Apply pending migrations, connect to the configured backends, and serve the dashboard API until interrupted.`,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("starting dashboard API", zap.String("env", cfg.Env))

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "uara-dashboard", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer store.Close(db)

	if err := store.Migrate(db, log.Logger); err != nil {
		return err
	}

	health := handler.NewHealthHandler()
	health.AddCheck("database", func(ctx context.Context) error { return store.Ping(db) })

	// Activity events are announced on NATS when configured.
	var publisher activity.Publisher
	if cfg.NATSURL != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		nc, err := natsclient.Connect(connectCtx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		cancel()
		if err != nil {
			return err
		}
		defer nc.Close()

		streams := natsclient.NewStreamManager(nc)
		if err := streams.EnsureStream(ctx); err != nil {
			return err
		}
		publisher = streams
		health.AddCheck("nats", func(context.Context) error {
			if !nc.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		})
	} else {
		log.Info("NATS_URL not set, activity events are not published")
	}

	var viewCache service.ViewCache
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewClient(ctx, cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()

		requestCache := cache.NewRequestCache(rdb, cfg.RedisCacheTTL, log)
		viewCache = requestCache
		health.AddCheck("redis", requestCache.Ping)
	} else {
		log.Info("REDIS_ADDR not set, request lists are not cached")
	}

	tx := store.NewTransactionManager(db)
	activities := activity.NewLogger(store.NewActivityRepository(db), publisher, log)

	accounts := service.NewAccountService(store.NewUserRepository(db), tx, viewCache, log)
	requests := service.NewRequestService(
		store.NewRequestRepository(db),
		tx,
		activities,
		viewCache,
		accounts,
		service.LifecycleOptions{
			BlockCreateWhileActive: cfg.BlockCreateWhileActive,
			ReadRetry: retry.Policy{
				Attempts:  cfg.ReadRetryAttempts,
				BaseDelay: cfg.ReadRetryBaseDelay,
			},
			OperationTimeout: cfg.DatabaseQueryTimeout,
		},
		log,
	)
	sizer := sizing.NewService(newAdvisor(cfg, log), log)

	router := handler.NewRouter(handler.RouterConfig{
		JWTSecret:         cfg.JWTSecret,
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	}, handler.Handlers{
		Health:   health,
		Requests: handler.NewRequestHandler(requests),
		Sizing:   handler.NewSizingHandler(sizer, requests),
		Settings: handler.NewSettingsHandler(accounts),
		Accounts: accounts,
	}, log)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Error("server error", zap.Error(err))
		return err
	case <-quit:
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
		return err
	}

	log.Info("server stopped")
	return nil
}
