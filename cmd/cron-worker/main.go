package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/stowaway-backend/internal/cron"
	"github.com/angelmondragon/stowaway-backend/internal/engine"
	"github.com/angelmondragon/stowaway-backend/pkg/config"
	"github.com/angelmondragon/stowaway-backend/pkg/db"
	"github.com/angelmondragon/stowaway-backend/pkg/instance"
	"github.com/angelmondragon/stowaway-backend/pkg/logger"
	"github.com/angelmondragon/stowaway-backend/pkg/metrics"
	"github.com/angelmondragon/stowaway-backend/pkg/migrate"
	"github.com/angelmondragon/stowaway-backend/pkg/redis"
	"github.com/angelmondragon/stowaway-backend/pkg/stripe"
)

const lockName = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit (for platform schedulers)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID("cron-0"),
	})

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
		Notifications: gateway,
	}, prometheus.DefaultRegisterer)
	if err != nil {
		logg.Error(ctx, "failed to wire services", err)
		os.Exit(1)
	}

	sweep, err := cron.NewPayoutSweepJob(cron.PayoutSweepJobParams{
		Logger:       logg,
		Jobs:         eng.Appointments,
		Routes:       eng.Routes,
		Settlement:   eng.Settlement,
		MaxRetries:   cfg.Payout.MaxRetries,
		StaleAfter:   cfg.Payout.StaleProcessing,
		SettledGrace: cfg.Payout.ReconcileGrace,
		BatchSize:    cfg.Payout.SweepBatchSize,
		Concurrency:  cfg.Payout.SweepConcurrency,
	})
	if err != nil {
		logg.Error(ctx, "failed to create payout sweep job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(sweep),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	if *once {
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}
