package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	brokeradapter "github.com/evanhall/daybrief/internal/adapter/driven/broker"
	sqliteadapter "github.com/evanhall/daybrief/internal/adapter/driven/sqlite"
	"github.com/evanhall/daybrief/internal/adapter/driven/upstream"
	httphandler "github.com/evanhall/daybrief/internal/adapter/driving/http"
	"github.com/evanhall/daybrief/internal/application"
	"github.com/evanhall/daybrief/internal/config"
)

const heartbeatInterval = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on malformed env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"redis_addr", cfg.RedisAddr,
		"sync_interval", cfg.SyncInterval,
		"encryption_configured", cfg.HasSecretKey(),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Dial the broker. Unreachable Redis is not fatal: caching, locking,
	// rate limiting, and the realtime stream all degrade gracefully.
	pool := brokeradapter.NewPool(cfg.RedisAddr)
	defer pool.Close()
	if err := brokeradapter.Ping(ctx, pool); err != nil {
		slog.Warn("broker unreachable at startup, running degraded", "error", err)
	} else {
		slog.Info("broker connected", "addr", cfg.RedisAddr)
	}

	// 6. Wire driven adapters.
	userStore := sqliteadapter.NewUserRepo(db)
	messageStore := sqliteadapter.NewMessageRepo(db)
	eventStore := sqliteadapter.NewEventRepo(db)
	taskStore := sqliteadapter.NewTaskRepo(db)
	notificationStore := sqliteadapter.NewNotificationRepo(db)
	credentialStore := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)

	snapshotStore := brokeradapter.NewSnapshotStore(pool)
	syncLock := brokeradapter.NewSyncLock(pool)
	pubsub := brokeradapter.NewPubSub(pool)
	rateWindow := brokeradapter.NewRateWindow(pool)

	providerClient := upstream.NewClient(cfg.ProviderBaseURL)
	refresher := upstream.NewTokenRefresher(cfg.OAuthClientID, cfg.OAuthClientSecret, cfg.OAuthTokenURL)

	// 7. Wire application services.
	vault := application.NewCredentialVault(credentialStore, refresher, cfg.ProviderService)
	snapshots := application.NewSnapshotService(snapshotStore, cfg.SnapshotTTL)
	hub := application.NewRealtimeHub(pubsub, pubsub, heartbeatInterval)
	limiter := application.NewRateLimiter(rateWindow, cfg.DashboardRateLimit, cfg.DashboardRatePeriod)

	worker := application.NewSyncWorker(
		userStore, messageStore, eventStore, notificationStore,
		vault, providerClient, snapshots, hub,
		cfg.ProviderService, cfg.SyncInterval,
		cfg.SyncWorkers, cfg.SyncQueueSize,
	)
	go worker.Start(ctx)

	scheduler := application.NewSyncScheduler(syncLock, worker, cfg.StalenessWindow)
	dashboard := application.NewDashboardService(
		messageStore, eventStore, taskStore, notificationStore,
		credentialStore, snapshots, scheduler, cfg.ProviderService,
	)

	// 8. Create HTTP handler with middleware.
	apiHandler := httphandler.NewHandler(
		userStore, messageStore, eventStore, taskStore, notificationStore,
		dashboard, snapshots, hub, limiter,
		func(ctx context.Context) error { return db.Reader.PingContext(ctx) },
		func(ctx context.Context) error { return brokeradapter.Ping(ctx, pool) },
		slog.Default(),
	)
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Long-lived SSE connections flow through this server; WriteTimeout
		// would sever them, so streams rely on client disconnect instead.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("daybrief started",
		"listen_addr", cfg.ListenAddr,
		"sync_interval", cfg.SyncInterval,
		"staleness_window", cfg.StalenessWindow,
	)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout for HTTP server drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
