// Package engine assembles the fulfillment and settlement services shared by the
// api, cron-worker and payouts binaries.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/stowaway-backend/internal/appointments"
	"github.com/angelmondragon/stowaway-backend/internal/billing"
	"github.com/angelmondragon/stowaway-backend/internal/costs"
	"github.com/angelmondragon/stowaway-backend/internal/fulfillment"
	"github.com/angelmondragon/stowaway-backend/internal/ledger"
	"github.com/angelmondragon/stowaway-backend/internal/notifications"
	"github.com/angelmondragon/stowaway-backend/internal/routes"
	"github.com/angelmondragon/stowaway-backend/internal/settlement"
	"github.com/angelmondragon/stowaway-backend/internal/workers"
	"github.com/angelmondragon/stowaway-backend/pkg/config"
	"github.com/angelmondragon/stowaway-backend/pkg/db"
	"github.com/angelmondragon/stowaway-backend/pkg/logger"
	"github.com/angelmondragon/stowaway-backend/pkg/metrics"
	"github.com/angelmondragon/stowaway-backend/pkg/pubsub"
	"github.com/angelmondragon/stowaway-backend/pkg/square"
	"github.com/angelmondragon/stowaway-backend/pkg/stripe"
)

// Clients are the external collaborators a process opens before building the engine.
type Clients struct {
	DB            *db.Client
	Transfers     stripe.TransferClient
	Payments      square.PaymentClient
	Notifications notifications.Gateway
}

// Engine exposes the wired services.
type Engine struct {
	Appointments appointments.Repository
	Routes       routes.Repository
	Workers      workers.Repository
	Settlement   settlement.Service
	Fulfillment  fulfillment.Service

	WebhookMetrics *metrics.WebhookMetrics
}

// New wires repositories and services. A nil registerer disables metrics.
func New(cfg *config.Config, logg *logger.Logger, clients Clients, reg prometheus.Registerer) (*Engine, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("config required")
	case logg == nil:
		return nil, errors.New("logger required")
	case clients.DB == nil:
		return nil, errors.New("database client required")
	}

	conn := clients.DB.DB()
	apptRepo := appointments.NewRepository(conn)
	routeRepo := routes.NewRepository(conn)
	workerRepo := workers.NewRepository(conn)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}

	notifier := notifications.NewNotifier(clients.Notifications, logg)

	settlementSvc, err := settlement.NewService(settlement.ServiceParams{
		Appointments: apptRepo,
		Routes:       routeRepo,
		Workers:      workerRepo,
		Ledger:       ledgerSvc,
		Transfers:    clients.Transfers,
		Notifier:     notifier,
		TxRunner:     clients.DB,
		Fees:         settlement.FeePolicyFromConfig(cfg.Payout),
		RouteFormula: settlement.RouteFormulaFromConfig(cfg.RoutePayout),
		Currency:     cfg.Payout.Currency,
		Metrics:      metrics.NewPayoutMetrics(reg),
		Logger:       logg,
	})
	if err != nil {
		return nil, fmt.Errorf("settlement service: %w", err)
	}

	eng := &Engine{
		Appointments:   apptRepo,
		Routes:         routeRepo,
		Workers:        workerRepo,
		Settlement:     settlementSvc,
		WebhookMetrics: metrics.NewWebhookMetrics(reg),
	}

	// binaries that only settle do not need a card processor
	if clients.Payments == nil {
		return eng, nil
	}

	billingSvc, err := billing.NewService(billing.ServiceParams{
		Payments:     clients.Payments,
		Appointments: apptRepo,
		Ledger:       ledgerSvc,
		TxRunner:     clients.DB,
		Logger:       logg,
	})
	if err != nil {
		return nil, fmt.Errorf("billing service: %w", err)
	}

	costSvc, err := costs.NewService(costs.NewCalculator(costs.RatesFromConfig(cfg.Rates)), apptRepo)
	if err != nil {
		return nil, fmt.Errorf("cost service: %w", err)
	}

	eng.Fulfillment, err = fulfillment.NewService(fulfillment.ServiceParams{
		Appointments: apptRepo,
		Routes:       routeRepo,
		Workers:      workerRepo,
		Costs:        costSvc,
		Billing:      billingSvc,
		Settlement:   settlementSvc,
		Notifier:     notifier,
		TxRunner:     clients.DB,
		Links:        cfg.Links,
		Metrics:      eng.WebhookMetrics,
		Logger:       logg,
	})
	if err != nil {
		return nil, fmt.Errorf("fulfillment service: %w", err)
	}
	return eng, nil
}

// OpenGateway returns the notification gateway selected by config and a close func.
func OpenGateway(ctx context.Context, cfg *config.Config, logg *logger.Logger) (notifications.Gateway, func() error, error) {
	if cfg.FeatureFlags.LogNotifications {
		logg.Warn(ctx, "notifications routed to log gateway")
		return notifications.NewLogGateway(logg), func() error { return nil }, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	gateway, err := notifications.NewPubSubGateway(client.NotificationPublisher(), cfg.PubSub.PublishTimeout)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return gateway, client.Close, nil
}
