package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/stowaway-backend/internal/appointments"
	"github.com/angelmondragon/stowaway-backend/internal/billing"
	"github.com/angelmondragon/stowaway-backend/internal/costs"
	"github.com/angelmondragon/stowaway-backend/internal/dispatch"
	"github.com/angelmondragon/stowaway-backend/internal/notifications"
	"github.com/angelmondragon/stowaway-backend/internal/routes"
	"github.com/angelmondragon/stowaway-backend/internal/settlement"
	"github.com/angelmondragon/stowaway-backend/internal/workers"
	"github.com/angelmondragon/stowaway-backend/pkg/config"
	"github.com/angelmondragon/stowaway-backend/pkg/db"
	"github.com/angelmondragon/stowaway-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stowaway-backend/pkg/errors"
	"github.com/angelmondragon/stowaway-backend/pkg/logger"
	"github.com/angelmondragon/stowaway-backend/pkg/metrics"
)

// Service routes dispatch webhooks to the step handlers.
type Service interface {
	HandleWebhook(ctx context.Context, payload dispatch.Payload) Result
}

// Result is the acknowledgement returned to the dispatch platform.
type Result struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Event   dispatch.Event `json:"-"`
	Outcome string         `json:"-"`
}

type notifier interface {
	Notify(ctx context.Context, msg notifications.Message) bool
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups the collaborators injected at process start.
type ServiceParams struct {
	Appointments appointments.Repository
	Routes       routes.Repository
	Workers      workers.Repository
	Costs        costs.Accruer
	Billing      billing.Collaborator
	Settlement   settlement.Service
	Notifier     notifier
	TxRunner     txRunner
	Links        config.LinksConfig
	Metrics      *metrics.WebhookMetrics
	Logger       *logger.Logger
}

type service struct {
	appointments appointments.Repository
	routes       routes.Repository
	workers      workers.Repository
	costs        costs.Accruer
	billing      billing.Collaborator
	settlement   settlement.Service
	notifier     notifier
	tx           txRunner
	links        config.LinksConfig
	metrics      *metrics.WebhookMetrics
	logg         *logger.Logger
	newToken     func() string
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Appointments == nil:
		return nil, errors.New("appointments repository required")
	case params.Routes == nil:
		return nil, errors.New("routes repository required")
	case params.Workers == nil:
		return nil, errors.New("workers repository required")
	case params.Costs == nil:
		return nil, errors.New("cost accruer required")
	case params.Billing == nil:
		return nil, errors.New("billing collaborator required")
	case params.Settlement == nil:
		return nil, errors.New("settlement service required")
	case params.Notifier == nil:
		return nil, errors.New("notifier required")
	case params.TxRunner == nil:
		return nil, errors.New("tx runner required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	}
	return &service{
		appointments: params.Appointments,
		routes:       params.Routes,
		workers:      params.Workers,
		costs:        params.Costs,
		billing:      params.Billing,
		settlement:   params.Settlement,
		notifier:     params.Notifier,
		tx:           params.TxRunner,
		links:        params.Links,
		metrics:      params.Metrics,
		logg:         params.Logger,
		newToken:     newTrackingToken,
	}, nil
}

// HandleWebhook never returns an error; failures become an unsuccessful Result.
func (s *service) HandleWebhook(ctx context.Context, payload dispatch.Payload) (result Result) {
	completion := dispatch.Extract(payload)
	ctx = s.logg.WithTaskID(ctx, completion.ShortID)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"trigger":  string(completion.Trigger),
		"task_id":  payload.TaskID,
		"job_kind": string(completion.Kind),
	})

	defer func() {
		if r := recover(); r != nil {
			s.logg.Error(ctx, "webhook handler panicked", fmt.Errorf("panic: %v", r))
			result = Result{Success: false, Message: "internal error", Outcome: metrics.OutcomeFailed}
		}
		s.metrics.Observe(string(completion.Trigger), result.Outcome)
	}()

	var err error
	if completion.Kind == dispatch.KindRoute {
		result, err = s.handleRouteStop(ctx, completion)
	} else {
		result, err = s.handleStorageTask(ctx, completion)
	}
	return s.finish(ctx, result, err)
}

func (s *service) finish(ctx context.Context, result Result, err error) Result {
	if err == nil {
		if result.Outcome == "" {
			result.Outcome = metrics.OutcomeProcessed
		}
		result.Success = true
		if result.Message == "" {
			result.Message = "processed"
		}
		s.logg.Info(s.logg.WithField(ctx, "outcome", result.Outcome), result.Message)
		return result
	}

	typed := pkgerrors.As(err)
	switch {
	case typed != nil && typed.Code() == pkgerrors.CodeAlreadyProcessed:
		result = Result{Success: true, Message: typed.Message(), Event: result.Event, Outcome: metrics.OutcomeDuplicate}
		s.logg.Info(s.logg.WithField(ctx, "outcome", result.Outcome), "webhook already processed")
	case typed != nil && (typed.Code() == pkgerrors.CodeNotFound || typed.Code() == pkgerrors.CodeUnsupported):
		result = Result{Success: true, Message: typed.Message(), Event: result.Event, Outcome: metrics.OutcomeIgnored}
		s.logg.Warn(s.logg.WithField(ctx, "outcome", result.Outcome), typed.Message())
	default:
		result = Result{Success: false, Message: "failed to process webhook", Event: result.Event, Outcome: metrics.OutcomeFailed}
		s.logg.Error(ctx, "webhook processing failed", err)
	}
	return result
}

func processed(event dispatch.Event, msg string) Result {
	return Result{Event: event, Message: msg, Outcome: metrics.OutcomeProcessed}
}

func ignored(event dispatch.Event, msg string) Result {
	return Result{Event: event, Message: msg, Outcome: metrics.OutcomeIgnored}
}

func alreadyProcessed(msg string) error {
	return pkgerrors.New(pkgerrors.CodeAlreadyProcessed, msg)
}

func notFound(err error, what string) error {
	if db.IsNotFound(err) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, what+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load "+what)
}

// partnerRate returns the crew's negotiated hourly rate, if any.
func (s *service) partnerRate(ctx context.Context, appt *models.Appointment, task *models.Task) decimal.NullDecimal {
	if !task.WorkerType.IsPartner() || appt.MovingPartnerID == nil {
		return decimal.NullDecimal{}
	}
	partner, err := s.workers.FindMovingPartner(ctx, *appt.MovingPartnerID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "moving partner lookup failed; using default rate")
		return decimal.NullDecimal{}
	}
	return partner.HourlyRate
}

func eventTime(values ...*time.Time) time.Time {
	for _, v := range values {
		if v != nil && !v.IsZero() {
			return v.UTC()
		}
	}
	return time.Now().UTC()
}
