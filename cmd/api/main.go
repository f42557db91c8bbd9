package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/stowaway-backend/api/routes"
	"github.com/angelmondragon/stowaway-backend/internal/engine"
	dispatchwebhook "github.com/angelmondragon/stowaway-backend/internal/webhooks/dispatch"
	"github.com/angelmondragon/stowaway-backend/pkg/config"
	"github.com/angelmondragon/stowaway-backend/pkg/db"
	"github.com/angelmondragon/stowaway-backend/pkg/instance"
	"github.com/angelmondragon/stowaway-backend/pkg/logger"
	"github.com/angelmondragon/stowaway-backend/pkg/migrate"
	"github.com/angelmondragon/stowaway-backend/pkg/redis"
	"github.com/angelmondragon/stowaway-backend/pkg/square"
	"github.com/angelmondragon/stowaway-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap stripe", err)
		os.Exit(1)
	}
	squareClient, err := square.NewClient(ctx, cfg.Square, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap square", err)
		os.Exit(1)
	}

	gateway, closeGateway, err := engine.OpenGateway(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap notifications", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeGateway(); err != nil {
			logg.Error(context.Background(), "error closing notifications", err)
		}
	}()

	eng, err := engine.New(cfg, logg, engine.Clients{
		DB:            dbClient,
		Transfers:     stripeClient,
		Payments:      squareClient,
		Notifications: gateway,
	}, prometheus.DefaultRegisterer)
	if err != nil {
		logg.Error(ctx, "failed to wire services", err)
		os.Exit(1)
	}

	guard, err := dispatchwebhook.NewIdempotencyGuard(redisClient, cfg.Dispatch.IdempotencyTTL, dispatchwebhook.Scope)
	if err != nil {
		logg.Error(ctx, "failed to create dispatch idempotency guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID("local"),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			Fulfillment:    eng.Fulfillment,
			DispatchGuard:  guard,
			WebhookMetrics: eng.WebhookMetrics,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
