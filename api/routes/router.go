package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/stowaway-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/stowaway-backend/api/controllers/webhooks"
	"github.com/angelmondragon/stowaway-backend/api/middleware"
	"github.com/angelmondragon/stowaway-backend/internal/fulfillment"
	dispatchwebhook "github.com/angelmondragon/stowaway-backend/internal/webhooks/dispatch"
	"github.com/angelmondragon/stowaway-backend/pkg/config"
	"github.com/angelmondragon/stowaway-backend/pkg/logger"
	"github.com/angelmondragon/stowaway-backend/pkg/metrics"
)

// Params groups what the router needs from cmd/api.
type Params struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             controllers.Pinger
	Redis          controllers.Pinger
	Fulfillment    fulfillment.Service
	DispatchGuard  *dispatchwebhook.IdempotencyGuard
	WebhookMetrics *metrics.WebhookMetrics
	// MetricsHandler defaults to the process-wide Prometheus handler.
	MetricsHandler http.Handler
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    p.DB,
			"redis": p.Redis,
		}))
	})

	metricsHandler := p.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	// a nil *IdempotencyGuard must not reach the controller as a non-nil interface
	var guard webhookcontrollers.DispatchGuard
	if p.DispatchGuard != nil {
		guard = p.DispatchGuard
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Get("/dispatch", webhookcontrollers.DispatchWebhookCheck())
		r.Post("/dispatch", webhookcontrollers.DispatchWebhook(p.Fulfillment, guard, webhookcontrollers.DispatchOptions{
			Secret:        cfg.Dispatch.WebhookSecret,
			MaxBodyBytes:  cfg.Dispatch.MaxBodyBytes,
			SkipSignature: cfg.Dispatch.WebhookSecret == "" && cfg.App.IsDev(),
			Metrics:       p.WebhookMetrics,
		}, logg))
	})

	return r
}
