package fulfillment

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/stowaway-backend/internal/dispatch"
	"github.com/angelmondragon/stowaway-backend/internal/notifications"
	"github.com/angelmondragon/stowaway-backend/pkg/db"
	"github.com/angelmondragon/stowaway-backend/pkg/db/models"
	"github.com/angelmondragon/stowaway-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stowaway-backend/pkg/errors"
)

// job is the resolved context one storage webhook runs against.
type job struct {
	task       *models.Task
	appt       *models.Appointment
	completion dispatch.Completion
	event      dispatch.Event
}

func (s *service) handleStorageTask(ctx context.Context, c dispatch.Completion) (Result, error) {
	task, err := s.appointments.FindTaskByShortID(ctx, c.ShortID)
	if err != nil {
		if db.IsNotFound(err) {
			// route stops booked without a jobType tag still resolve by short id
			if _, orderErr := s.routes.FindOrderByShortID(ctx, c.ShortID); orderErr == nil {
				c.Kind = dispatch.KindRoute
				return s.handleRouteStop(ctx, c)
			}
		}
		return Result{}, notFound(err, "task")
	}
	appt, err := s.appointments.FindAppointmentForTask(ctx, task)
	if err != nil {
		return Result{}, notFound(err, "appointment")
	}
	ctx = s.logg.WithAppointmentID(ctx, appt.ID.String())
	ctx = s.logg.WithFields(ctx, map[string]any{"step": task.StepNumber, "unit": task.UnitNumber})

	event, err := dispatch.Classify(dispatch.KindStorage, task.StepNumber, c.Trigger)
	if err != nil {
		return Result{}, err
	}
	j := &job{task: task, appt: appt, completion: c, event: event}

	switch event {
	case dispatch.EventPickupStarted:
		return s.pickupStarted(ctx, j)
	case dispatch.EventPickupCompleted:
		return s.pickupCompleted(ctx, j)
	case dispatch.EventServiceStarted:
		return s.serviceStarted(ctx, j)
	case dispatch.EventServiceArrived:
		return s.serviceArrived(ctx, j)
	case dispatch.EventServiceCompleted:
		return s.serviceCompleted(ctx, j)
	case dispatch.EventReturnCompleted:
		return s.returnCompleted(ctx, j)
	case dispatch.EventCloseOutCompleted:
		return s.closeOutCompleted(ctx, j)
	}
	return Result{}, pkgerrors.New(pkgerrors.CodeUnsupported, "unhandled storage event "+string(event))
}

// Step 1: the crew left for the customer.
func (s *service) pickupStarted(ctx context.Context, j *job) (Result, error) {
	if _, err := s.appointments.MarkTaskStarted(ctx, j.task.ID, eventTime(j.completion.StartedAt, &j.completion.WebhookTime)); err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stamp task start")
	}
	if !j.task.IsPrimaryUnit() {
		return ignored(j.event, "secondary unit start recorded"), nil
	}
	if j.appt.Status.IsCanceled() {
		return ignored(j.event, "appointment canceled"), nil
	}

	token := s.newToken()
	moved, err := s.appointments.TransitionAppointmentStatus(ctx, j.appt.ID,
		[]enums.AppointmentStatus{enums.AppointmentStatusScheduled}, enums.AppointmentStatusInTransit,
		map[string]any{"tracking_token": token})
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "move appointment in transit")
	}
	if !moved {
		return Result{}, alreadyProcessed("appointment already past scheduled")
	}

	s.notifier.Notify(ctx, customerMessage(j.appt, notifications.TemplatePickupStarted, j.completion, map[string]string{
		notifications.VarTrackingURL: s.trackingURL(token),
	}))
	return processed(j.event, "pickup started"), nil
}

func (s *service) pickupCompleted(ctx context.Context, j *job) (Result, error) {
	if err := s.accrue(ctx, j, false); err != nil {
		return Result{}, err
	}
	return processed(j.event, "pickup cost recorded"), nil
}

// Step 2 taskStarted: the crew is driving to the service address.
func (s *service) serviceStarted(ctx context.Context, j *job) (Result, error) {
	if j.appt.Status.IsCanceled() {
		return ignored(j.event, "appointment canceled"), nil
	}
	first, err := s.appointments.MarkTaskStarted(ctx, j.task.ID, eventTime(j.completion.StartedAt, &j.completion.WebhookTime))
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stamp task start")
	}
	if !first {
		return Result{}, alreadyProcessed("service start already recorded")
	}
	if !j.task.IsPrimaryUnit() {
		return ignored(j.event, "secondary unit start recorded"), nil
	}

	vars := map[string]string{}
	if j.appt.TrackingToken != nil {
		vars[notifications.VarTrackingURL] = s.trackingURL(*j.appt.TrackingToken)
	}
	s.notifier.Notify(ctx, customerMessage(j.appt, notifications.TemplateServiceStarted, j.completion, vars))
	return processed(j.event, "service started"), nil
}

// Step 2 taskArrival: service time starts now.
func (s *service) serviceArrived(ctx context.Context, j *job) (Result, error) {
	if j.appt.Status.IsCanceled() {
		return ignored(j.event, "appointment canceled"), nil
	}
	arrivedAt := eventTime(j.completion.ArrivedAt, &j.completion.WebhookTime)
	first, err := s.appointments.MarkTaskArrived(ctx, j.task.ID, arrivedAt)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stamp task arrival")
	}
	if !first {
		return Result{}, alreadyProcessed("arrival already recorded")
	}
	if !j.task.IsPrimaryUnit() {
		return ignored(j.event, "secondary unit arrival recorded"), nil
	}

	token := s.newToken()
	if err := s.appointments.UpdateAppointment(ctx, j.appt.ID, map[string]any{
		"service_start_time": arrivedAt,
		"tracking_token":     token,
	}); err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record service start")
	}

	s.notifier.Notify(ctx, customerMessage(j.appt, notifications.TemplateCrewArrived, j.completion, map[string]string{
		notifications.VarTrackingURL: s.trackingURL(token),
	}))
	return processed(j.event, "crew arrived"), nil
}

// Step 2 taskCompleted: stamp the service end, bill the customer and notify, exactly once.
func (s *service) serviceCompleted(ctx context.Context, j *job) (Result, error) {
	if j.appt.Status.IsCanceled() {
		return ignored(j.event, "appointment canceled"), nil
	}
	if !j.task.IsPrimaryUnit() {
		if err := s.accrue(ctx, j, false); err != nil {
			return Result{}, err
		}
		return processed(j.event, "secondary unit cost recorded"), nil
	}
	if j.appt.Status.IsServiceCompleted() {
		return Result{}, alreadyProcessed("service already completed")
	}

	terminal := j.appt.AppointmentType.ServiceCompletedStatus()
	endedAt := eventTime(j.completion.CompletedAt, &j.completion.WebhookTime)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.accrueTx(ctx, tx, j, false); err != nil {
			return err
		}
		claimed, err := s.appointments.WithTx(tx).ClaimServiceCompletion(ctx, j.appt.ID, terminal, endedAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim service completion")
		}
		if !claimed {
			return alreadyProcessed("service completion already claimed")
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if j.appt.HasPaymentProfile() {
		s.bill(ctx, j, terminal)
	}

	s.notifier.Notify(ctx, customerMessage(j.appt, completionTemplate(j.appt.AppointmentType), j.completion, map[string]string{
		notifications.VarFeedbackURL: s.feedbackURL(j.appt.ID),
	}))
	return processed(j.event, "service completed"), nil
}

// bill runs after the completion commit. Failures are recorded by billing and never undo the status.
func (s *service) bill(ctx context.Context, j *job, terminal enums.AppointmentStatus) {
	res, err := s.billing.CompleteService(ctx, j.appt)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed) {
			s.logg.Info(ctx, "customer charge already handled")
			return
		}
		s.logg.Error(ctx, "customer billing failed", err)
		return
	}
	if res.Status == "" || res.Status == terminal || !terminal.Precedes(res.Status) {
		return
	}
	if _, err := s.appointments.TransitionAppointmentStatus(ctx, j.appt.ID,
		[]enums.AppointmentStatus{terminal}, res.Status, nil); err != nil {
		s.logg.Error(ctx, "failed to apply billing status", err)
	}
}

// Step 3 taskCompleted: the crew is back; total up the job and pay the worker.
func (s *service) returnCompleted(ctx context.Context, j *job) (Result, error) {
	if !j.task.IsPrimaryUnit() || j.appt.Status.IsCanceled() {
		if err := s.accrue(ctx, j, true); err != nil {
			return Result{}, err
		}
		if j.appt.Status.IsCanceled() {
			return ignored(j.event, "appointment canceled; return cost recorded"), nil
		}
		return processed(j.event, "secondary unit return recorded"), nil
	}
	if containsStatus(enums.PayableStatuses, j.appt.Status) {
		return Result{}, alreadyProcessed("return already processed")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.accrueTx(ctx, tx, j, true); err != nil {
			return err
		}
		moved, err := s.appointments.WithTx(tx).TransitionAppointmentStatus(ctx, j.appt.ID,
			enums.StatusesBefore(enums.AppointmentStatusAwaitingCheckIn), enums.AppointmentStatusAwaitingCheckIn, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "move appointment to check-in")
		}
		if !moved {
			return alreadyProcessed("appointment already awaiting check-in")
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	res, err := s.settlement.SettleJob(ctx, j.appt.ID)
	switch {
	case err == nil:
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"transfer_id":  res.TransferID,
			"amount_cents": res.AmountCents,
		}), "job settled")
	case pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed):
		s.logg.Info(ctx, "job settlement already in progress")
	default:
		// recorded as failed by settlement; the sweep or an operator picks it up
		s.logg.Error(s.logg.WithField(ctx, "payout_status", string(res.Status)), "job settlement failed", err)
	}
	return processed(j.event, "return completed"), nil
}

// Step 4 taskCompleted: admin check-in closes the job.
func (s *service) closeOutCompleted(ctx context.Context, j *job) (Result, error) {
	if err := s.accrue(ctx, j, false); err != nil {
		return Result{}, err
	}
	if !j.task.IsPrimaryUnit() || j.appt.Status.IsCanceled() {
		return ignored(j.event, "close-out recorded"), nil
	}
	moved, err := s.appointments.TransitionAppointmentStatus(ctx, j.appt.ID,
		enums.StatusesBefore(enums.AppointmentStatusComplete), enums.AppointmentStatusComplete, nil)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "complete appointment")
	}
	if !moved {
		if j.appt.Status == enums.AppointmentStatusComplete {
			return Result{}, alreadyProcessed("appointment already complete")
		}
		return ignored(j.event, "appointment not eligible for close-out"), nil
	}
	return processed(j.event, "appointment complete"), nil
}

func (s *service) accrue(ctx context.Context, j *job, recomputeTotal bool) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.accrueTx(ctx, tx, j, recomputeTotal)
	})
}

// accrueTx records completion fields and prices the task inside tx.
func (s *service) accrueTx(ctx context.Context, tx *gorm.DB, j *job, recomputeTotal bool) error {
	completedAt := eventTime(j.completion.CompletedAt, &j.completion.WebhookTime)
	if err := s.appointments.WithTx(tx).RecordTaskCompletion(ctx, j.task.ID, completedAt, j.completion.Photos); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record task completion")
	}
	accruer := s.costs.WithTx(tx)
	breakdown, err := accruer.Accrue(ctx, j.task, j.completion, s.partnerRate(ctx, j.appt, j.task))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "accrue task cost")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"actual_cost":  breakdown.Total.StringFixed(2),
		"mileage_pay":  breakdown.Mileage.StringFixed(2),
		"drive_pay":    breakdown.DriveTime.StringFixed(2),
		"service_pay":  breakdown.ServiceTime.StringFixed(2),
		"fixed_fee":    breakdown.FixedFee.StringFixed(2),
		"billed_miles": breakdown.BilledMiles.StringFixed(2),
	}), "task cost accrued")
	if !recomputeTotal {
		return nil
	}
	if _, err := accruer.RecomputeAppointmentTotal(ctx, j.appt.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recompute appointment total")
	}
	return nil
}

func containsStatus(set []enums.AppointmentStatus, status enums.AppointmentStatus) bool {
	for _, candidate := range set {
		if candidate == status {
			return true
		}
	}
	return false
}
