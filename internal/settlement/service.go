package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stowaway-backend/internal/appointments"
	"github.com/angelmondragon/stowaway-backend/internal/ledger"
	"github.com/angelmondragon/stowaway-backend/internal/notifications"
	"github.com/angelmondragon/stowaway-backend/internal/routes"
	"github.com/angelmondragon/stowaway-backend/internal/workers"
	"github.com/angelmondragon/stowaway-backend/pkg/enums"
	"github.com/angelmondragon/stowaway-backend/pkg/logger"
	"github.com/angelmondragon/stowaway-backend/pkg/metrics"
	"github.com/angelmondragon/stowaway-backend/pkg/stripe"
)

// Service converts accrued costs into exactly one transfer per job or route.
type Service interface {
	SettleJob(ctx context.Context, appointmentID uuid.UUID) (Result, error)
	SettleRoute(ctx context.Context, routeID uuid.UUID) (Result, error)
}

// Result describes where a settlement attempt left the payout.
type Result struct {
	Status      enums.PayoutStatus
	TransferID  string
	AmountCents int64
	Reason      string
}

type notifier interface {
	Notify(ctx context.Context, msg notifications.Message) bool
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups settlement dependencies.
type ServiceParams struct {
	Appointments appointments.Repository
	Routes       routes.Repository
	Workers      workers.Repository
	Ledger       ledger.Service
	Transfers    stripe.TransferClient
	Notifier     notifier
	TxRunner     txRunner
	Fees         FeePolicy
	RouteFormula RouteFormula
	Currency     string
	Metrics      *metrics.PayoutMetrics
	Logger       *logger.Logger
}

type service struct {
	appointments appointments.Repository
	routes       routes.Repository
	workers      workers.Repository
	ledger       ledger.Service
	transfers    stripe.TransferClient
	notifier     notifier
	tx           txRunner
	fees         FeePolicy
	formula      RouteFormula
	currency     string
	metrics      *metrics.PayoutMetrics
	logg         *logger.Logger
	clock        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Appointments == nil:
		return nil, errors.New("appointments repository required")
	case params.Routes == nil:
		return nil, errors.New("routes repository required")
	case params.Workers == nil:
		return nil, errors.New("workers repository required")
	case params.Ledger == nil:
		return nil, errors.New("ledger service required")
	case params.Transfers == nil:
		return nil, errors.New("transfer client required")
	case params.TxRunner == nil:
		return nil, errors.New("tx runner required")
	}
	return &service{
		appointments: params.Appointments,
		routes:       params.Routes,
		workers:      params.Workers,
		ledger:       params.Ledger,
		transfers:    params.Transfers,
		notifier:     params.Notifier,
		tx:           params.TxRunner,
		fees:         params.Fees,
		formula:      params.RouteFormula,
		currency:     params.Currency,
		metrics:      params.Metrics,
		logg:         params.Logger,
		clock:        time.Now,
	}, nil
}

func (s *service) now() time.Time {
	return s.clock().UTC()
}

func (s *service) notifyPayee(ctx context.Context, payee workers.Payee, cents int64) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, notifications.Message{
		To:       payee.Phone,
		Template: notifications.TemplateWorkerPayoutSent,
		Variables: map[string]string{
			notifications.VarWorkerName: payee.Name,
			notifications.VarAmount:     FormatDollars(cents),
		},
	})
}

func (s *service) logError(ctx context.Context, msg string, err error) {
	if s.logg != nil {
		s.logg.Error(ctx, msg, err)
	}
}

func (s *service) logFailure(ctx context.Context, msg string, err error, retryable bool) {
	if s.logg != nil {
		s.logg.Error(s.logg.WithField(ctx, "retryable", retryable), msg, err)
	}
}

func (s *service) logInfo(ctx context.Context, msg string, fields map[string]any) {
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, fields), msg)
	}
}
