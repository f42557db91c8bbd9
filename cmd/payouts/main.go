// Command payouts settles a single job or route on demand, for operators fixing payee
// configuration after an automatic attempt was skipped.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/angelmondragon/stowaway-backend/internal/engine"
	"github.com/angelmondragon/stowaway-backend/internal/settlement"
	"github.com/angelmondragon/stowaway-backend/pkg/config"
	"github.com/angelmondragon/stowaway-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/stowaway-backend/pkg/errors"
	"github.com/angelmondragon/stowaway-backend/pkg/logger"
	"github.com/angelmondragon/stowaway-backend/pkg/stripe"
)

func main() {
	appointment := flag.String("appointment", "", "appointment id to settle")
	route := flag.String("route", "", "packing supply route id to settle")
	flag.Parse()

	target, err := parseTarget(*appointment, *route)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "payouts"})

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "payouts",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "target": target.kind})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

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
	defer closeGateway()

	eng, err := engine.New(cfg, logg, engine.Clients{
		DB:            dbClient,
		Transfers:     stripeClient,
		Notifications: gateway,
	}, nil)
	if err != nil {
		logg.Error(ctx, "failed to wire services", err)
		os.Exit(1)
	}

	result, err := target.settle(ctx, eng.Settlement)
	if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed) {
		logg.Error(ctx, "settlement failed", err)
		os.Exit(1)
	}

	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")
	_ = out.Encode(result)
}

type target struct {
	kind string
	id   uuid.UUID
}

func parseTarget(appointment, route string) (target, error) {
	switch {
	case appointment != "" && route != "":
		return target{}, fmt.Errorf("pass only one of -appointment or -route")
	case appointment != "":
		id, err := uuid.Parse(appointment)
		if err != nil {
			return target{}, fmt.Errorf("invalid -appointment: %w", err)
		}
		return target{kind: "job", id: id}, nil
	case route != "":
		id, err := uuid.Parse(route)
		if err != nil {
			return target{}, fmt.Errorf("invalid -route: %w", err)
		}
		return target{kind: "route", id: id}, nil
	default:
		return target{}, fmt.Errorf("one of -appointment or -route is required")
	}
}

func (t target) settle(ctx context.Context, svc settlement.Service) (settlement.Result, error) {
	if t.kind == "route" {
		return svc.SettleRoute(ctx, t.id)
	}
	return svc.SettleJob(ctx, t.id)
}
