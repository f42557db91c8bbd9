package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/stowaway-backend/internal/appointments"
	"github.com/angelmondragon/stowaway-backend/internal/ledger"
	"github.com/angelmondragon/stowaway-backend/pkg/db/models"
	"github.com/angelmondragon/stowaway-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stowaway-backend/pkg/errors"
	"github.com/angelmondragon/stowaway-backend/pkg/logger"
	"github.com/angelmondragon/stowaway-backend/pkg/square"
)

// Collaborator charges the customer once service on site is finished.
type Collaborator interface {
	CompleteService(ctx context.Context, appt *models.Appointment) (Result, error)
}

// Result carries the terminal status billing settled on and the charge outcome.
type Result struct {
	Status        enums.AppointmentStatus
	PaymentStatus enums.PaymentStatus
	PaymentID     string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

var claimableCharges = []enums.PaymentStatus{enums.PaymentStatusUnpaid, enums.PaymentStatusFailed}

// ServiceParams groups dependencies for the billing service.
type ServiceParams struct {
	Payments     square.PaymentClient
	Appointments appointments.Repository
	Ledger       ledger.Service
	TxRunner     txRunner
	Logger       *logger.Logger
}

type service struct {
	payments     square.PaymentClient
	appointments appointments.Repository
	ledger       ledger.Service
	tx           txRunner
	logg         *logger.Logger
	clock        func() time.Time
}

func NewService(params ServiceParams) (Collaborator, error) {
	if params.Payments == nil {
		return nil, errors.New("payment client required")
	}
	if params.Appointments == nil {
		return nil, errors.New("appointments repository required")
	}
	if params.Ledger == nil {
		return nil, errors.New("ledger service required")
	}
	if params.TxRunner == nil {
		return nil, errors.New("tx runner required")
	}
	return &service{
		payments:     params.Payments,
		appointments: params.Appointments,
		ledger:       params.Ledger,
		tx:           params.TxRunner,
		logg:         params.Logger,
		clock:        time.Now,
	}, nil
}

// ChargeIdempotencyKey is stable per appointment so Square never double charges a retried completion.
func ChargeIdempotencyKey(appt *models.Appointment) string {
	return fmt.Sprintf("appointment-%s-completion", appt.ID)
}

func (s *service) CompleteService(ctx context.Context, appt *models.Appointment) (Result, error) {
	if appt == nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "appointment required")
	}
	result := Result{
		Status:        appt.AppointmentType.ServiceCompletedStatus(),
		PaymentStatus: appt.PaymentStatus,
	}
	if !appt.HasPaymentProfile() {
		return result, nil
	}

	if appt.BalanceDueCents <= 0 {
		waived, err := s.appointments.TransitionPaymentStatus(ctx, appt.ID, claimableCharges, enums.PaymentStatusWaived, nil)
		if err != nil {
			return result, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "waive zero balance")
		}
		if waived {
			result.PaymentStatus = enums.PaymentStatusWaived
		}
		return result, nil
	}

	claimed, err := s.appointments.TransitionPaymentStatus(ctx, appt.ID, claimableCharges, enums.PaymentStatusPending, nil)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim customer charge")
	}
	if !claimed {
		return result, pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "customer charge already in progress or settled")
	}

	payment, err := s.payments.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    appt.BalanceDueCents,
		Currency:       s.payments.Currency(),
		LocationID:     s.payments.LocationID(),
		CustomerID:     *appt.SquareCustomerID,
		SourceID:       *appt.SquareCardID,
		IdempotencyKey: ChargeIdempotencyKey(appt),
		Note:           fmt.Sprintf("Stowaway %s", strings.ReplaceAll(string(appt.AppointmentType), "_", " ")),
		ReferenceID:    appt.ID.String(),
		Autocomplete:   boolPtr(true),
	})
	if err == nil && payment != nil && isDeclined(payment.GetStatus()) {
		err = pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("square payment %s", strings.ToLower(*payment.GetStatus())))
	}
	if err != nil {
		s.recordFailure(ctx, appt, err)
		result.PaymentStatus = enums.PaymentStatusFailed
		return result, err
	}

	paymentID := ""
	if payment != nil && payment.GetID() != nil {
		paymentID = *payment.GetID()
	}
	now := s.clock().UTC()
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.appointments.WithTx(tx).TransitionPaymentStatus(ctx, appt.ID,
			[]enums.PaymentStatus{enums.PaymentStatusPending}, enums.PaymentStatusPaid,
			map[string]any{"square_payment_id": paymentID, "paid_at": now}); err != nil {
			return err
		}
		_, err := s.ledger.WithTx(tx).RecordEvent(ctx, ledger.RecordLedgerEventInput{
			AppointmentID: &appt.ID,
			Type:          enums.LedgerEventTypeCustomerCharge,
			AmountCents:   appt.BalanceDueCents,
			Reference:     paymentID,
		})
		return err
	})
	if txErr != nil {
		// the card was charged; the record can be repaired from Square by payment id
		return result, pkgerrors.Wrap(pkgerrors.CodeInternal, txErr, "record customer charge").
			WithDetails(map[string]any{"square_payment_id": paymentID})
	}

	result.PaymentStatus = enums.PaymentStatusPaid
	result.PaymentID = paymentID
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"square_payment_id": paymentID,
			"amount_cents":      appt.BalanceDueCents,
		}), "customer charged")
	}
	return result, nil
}

func (s *service) recordFailure(ctx context.Context, appt *models.Appointment, cause error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.appointments.WithTx(tx).UpdateAppointment(ctx, appt.ID, map[string]any{
			"payment_status": enums.PaymentStatusFailed,
		}); err != nil {
			return err
		}
		_, err := s.ledger.WithTx(tx).RecordEvent(ctx, ledger.RecordLedgerEventInput{
			AppointmentID: &appt.ID,
			Type:          enums.LedgerEventTypeChargeFailed,
			AmountCents:   appt.BalanceDueCents,
			Metadata:      map[string]any{"error": cause.Error()},
		})
		return err
	})
	if err != nil && s.logg != nil {
		s.logg.Error(ctx, "failed to record charge failure", err)
	}
}

func isDeclined(status *string) bool {
	if status == nil {
		return false
	}
	switch strings.ToUpper(*status) {
	case "FAILED", "CANCELED":
		return true
	default:
		return false
	}
}

func boolPtr(v bool) *bool { return &v }
