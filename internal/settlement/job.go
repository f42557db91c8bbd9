package settlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/stowaway-backend/internal/ledger"
	"github.com/angelmondragon/stowaway-backend/internal/workers"
	"github.com/angelmondragon/stowaway-backend/pkg/db"
	"github.com/angelmondragon/stowaway-backend/pkg/db/models"
	"github.com/angelmondragon/stowaway-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stowaway-backend/pkg/errors"
	"github.com/angelmondragon/stowaway-backend/pkg/metrics"
	"github.com/angelmondragon/stowaway-backend/pkg/stripe"
)

// JobBreakdown is the audit record attached to a job payout.
type JobBreakdown struct {
	FixedFee    decimal.Decimal `json:"fixed_fee"`
	Mileage     decimal.Decimal `json:"mileage"`
	DriveTime   decimal.Decimal `json:"drive_time"`
	ServiceTime decimal.Decimal `json:"service_time"`
	Gross       decimal.Decimal `json:"gross"`
	PlatformFee decimal.Decimal `json:"platform_fee"`
	Net         decimal.Decimal `json:"net"`
	TaskCount   int             `json:"task_count"`
}

// SummarizeTasks adds each task's payout basis and its cost components.
func SummarizeTasks(tasks []models.Task) JobBreakdown {
	var b JobBreakdown
	for _, task := range tasks {
		b.Gross = b.Gross.Add(task.PayoutBasis())
		b.FixedFee = b.FixedFee.Add(task.FixedFeePay.Decimal)
		b.Mileage = b.Mileage.Add(task.MileagePay.Decimal)
		b.DriveTime = b.DriveTime.Add(task.DriveTimePay.Decimal)
		b.ServiceTime = b.ServiceTime.Add(task.ServiceTimePay.Decimal)
	}
	b.TaskCount = len(tasks)
	return b
}

func (s *service) SettleJob(ctx context.Context, appointmentID uuid.UUID) (Result, error) {
	if s.logg != nil {
		ctx = s.logg.WithAppointmentID(ctx, appointmentID.String())
	}

	tasks, err := s.appointments.ListTasksByAppointment(ctx, appointmentID)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list tasks")
	}
	if len(tasks) == 0 {
		return Result{}, pkgerrors.New(pkgerrors.CodeNotFound, "appointment has no tasks")
	}
	for _, task := range tasks {
		if task.PayoutStatus == enums.PayoutStatusCompleted && task.PayoutTransferID != nil {
			return Result{
				Status:     enums.PayoutStatusCompleted,
				TransferID: *task.PayoutTransferID,
				Reason:     "already settled",
			}, nil
		}
	}

	appt, err := s.appointments.FindAppointment(ctx, appointmentID)
	if err != nil {
		if db.IsNotFound(err) {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "appointment not found")
		}
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load appointment")
	}

	breakdown := SummarizeTasks(tasks)

	payee, err := s.resolveJobPayee(ctx, appt, tasks)
	if err == nil {
		err = payee.Ready()
	}
	if err != nil {
		return s.failJob(ctx, appointmentID, payee, breakdown, err, !pkgerrors.IsCode(err, pkgerrors.CodeConfiguration), false)
	}

	claimed, err := s.appointments.ClaimJobPayout(ctx, appointmentID, s.now())
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim job payout")
	}
	if !claimed {
		return Result{Status: enums.PayoutStatusProcessing}, pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "job payout already claimed")
	}

	// the claim froze each task's amount; price the transfer from those
	tasks, err = s.appointments.ListTasksByAppointment(ctx, appointmentID)
	if err != nil {
		return s.failJob(ctx, appointmentID, payee, breakdown, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload claimed tasks"), true, true)
	}
	breakdown = SummarizeTasks(tasks)

	breakdown.PlatformFee = s.fees.Fee(breakdown.Gross)
	breakdown.Net = breakdown.Gross.Sub(breakdown.PlatformFee)
	netCents := ToCents(breakdown.Net)
	if netCents <= 0 {
		return s.failJob(ctx, appointmentID, payee, breakdown,
			pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("net payout %s is not positive", breakdown.Net.StringFixed(2))), false, true)
	}

	transferID, err := s.transfers.CreateTransfer(ctx, stripe.TransferParams{
		AmountCents:    netCents,
		Currency:       s.currency,
		Destination:    payee.AccountID,
		Description:    fmt.Sprintf("Stowaway job %s", appointmentID),
		IdempotencyKey: JobIdempotencyKey(appointmentID),
		Metadata: map[string]string{
			"appointment_id": appointmentID.String(),
			"worker_id":      payee.ID.String(),
			"worker_type":    string(payee.Kind),
			"gross_cents":    fmt.Sprint(ToCents(breakdown.Gross)),
			"fee_cents":      fmt.Sprint(ToCents(breakdown.PlatformFee)),
		},
	})
	if err != nil {
		return s.failJob(ctx, appointmentID, payee, breakdown, err, pkgerrors.IsRetryable(err), true)
	}

	at := s.now()
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.appointments.WithTx(tx).CompleteJobPayout(ctx, appointmentID, transferID, at); err != nil {
			return err
		}
		_, err := s.ledger.WithTx(tx).RecordEvent(ctx, ledger.RecordLedgerEventInput{
			AppointmentID: &appointmentID,
			WorkerID:      &payee.ID,
			Type:          enums.LedgerEventTypeWorkerPayout,
			AmountCents:   netCents,
			Reference:     transferID,
			Metadata:      breakdown,
		})
		return err
	})
	result := Result{Status: enums.PayoutStatusCompleted, TransferID: transferID, AmountCents: netCents}
	if txErr != nil {
		// the stale-processing sweep replays the same idempotency key and lands the same transfer
		s.logError(ctx, "job payout transferred but not recorded", txErr)
		s.metrics.Observe(metrics.PayoutKindJob, string(enums.PayoutStatusProcessing), 0)
		return result, pkgerrors.Wrap(pkgerrors.CodeInternal, txErr, "record job payout")
	}

	s.metrics.Observe(metrics.PayoutKindJob, string(enums.PayoutStatusCompleted), netCents)
	s.logInfo(ctx, "job payout completed", map[string]any{
		"transfer_id":  transferID,
		"amount_cents": netCents,
		"worker_id":    payee.ID.String(),
	})
	s.notifyPayee(ctx, payee, netCents)
	return result, nil
}

// failJob records a failed attempt. Before the claim only pending or failed
// tasks may move; after it only this attempt's processing tasks.
func (s *service) failJob(ctx context.Context, appointmentID uuid.UUID, payee workers.Payee, breakdown JobBreakdown, cause error, retryable, claimed bool) (Result, error) {
	reason := failureReason(cause)
	changed, err := s.appointments.FailJobPayout(ctx, appointmentID, failableFrom(claimed), reason, retryable, s.now())
	switch {
	case err != nil:
		s.logError(ctx, "failed to persist job payout failure", err)
	case !changed && !claimed:
		return s.yieldToClaim(ctx, reason, cause)
	}
	input := ledger.RecordLedgerEventInput{
		AppointmentID: &appointmentID,
		Type:          enums.LedgerEventTypePayoutFailed,
		AmountCents:   ToCents(breakdown.Gross),
		Metadata: map[string]any{
			"reason":    reason,
			"retryable": retryable,
			"breakdown": breakdown,
		},
	}
	if payee.ID != uuid.Nil {
		input.WorkerID = &payee.ID
	}
	if _, err := s.ledger.RecordEvent(ctx, input); err != nil {
		s.logError(ctx, "failed to record payout failure in ledger", err)
	}
	s.metrics.Observe(metrics.PayoutKindJob, string(enums.PayoutStatusFailed), 0)
	s.logFailure(ctx, "job payout failed", cause, retryable)
	return Result{Status: enums.PayoutStatusFailed, Reason: reason}, cause
}

// resolveJobPayee pays the moving partner when one is assigned; otherwise the
// driver on the latest step that has one.
func (s *service) resolveJobPayee(ctx context.Context, appt *models.Appointment, tasks []models.Task) (workers.Payee, error) {
	if appt.MovingPartnerID != nil {
		partner, err := s.workers.FindMovingPartner(ctx, *appt.MovingPartnerID)
		if err != nil {
			return workers.Payee{}, lookupError(err, "moving partner", *appt.MovingPartnerID)
		}
		return workers.PayeeFromPartner(partner), nil
	}

	var driverID *uuid.UUID
	step := 0
	for _, task := range tasks {
		if task.DriverID != nil && task.StepNumber >= step {
			driverID = task.DriverID
			step = task.StepNumber
		}
	}
	if driverID == nil {
		return workers.Payee{}, pkgerrors.New(pkgerrors.CodeConfiguration, "no driver assigned to the job")
	}
	driver, err := s.workers.FindDriver(ctx, *driverID)
	if err != nil {
		return workers.Payee{}, lookupError(err, "driver", *driverID)
	}
	return workers.PayeeFromDriver(driver), nil
}

func failableFrom(claimed bool) []enums.PayoutStatus {
	if claimed {
		return []enums.PayoutStatus{enums.PayoutStatusProcessing}
	}
	return enums.ClaimablePayoutStatuses
}

// yieldToClaim leaves an in-flight or settled payout to the attempt that owns it.
func (s *service) yieldToClaim(ctx context.Context, reason string, cause error) (Result, error) {
	s.logInfo(ctx, "payout owned by another attempt; failure not recorded", map[string]any{"reason": reason})
	return Result{Status: enums.PayoutStatusProcessing, Reason: reason},
		pkgerrors.Wrap(pkgerrors.CodeAlreadyProcessed, cause, "payout claimed by another attempt")
}

func lookupError(err error, kind string, id uuid.UUID) error {
	if db.IsNotFound(err) {
		return pkgerrors.Wrap(pkgerrors.CodeConfiguration, err, fmt.Sprintf("%s %s not found", kind, id))
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("load %s", kind))
}

func failureReason(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return err.Error()
	}
	if cause := typed.Unwrap(); cause != nil {
		return typed.Message() + ": " + cause.Error()
	}
	return typed.Message()
}
