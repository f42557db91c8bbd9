package appointments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/stowaway-backend/pkg/db"
	"github.com/angelmondragon/stowaway-backend/pkg/db/models"
	"github.com/angelmondragon/stowaway-backend/pkg/enums"
)

// TaskCost is the accrued cost breakdown written once a step's final trigger arrives.
type TaskCost struct {
	ActualCost           decimal.Decimal
	FixedFeePay          decimal.Decimal
	MileagePay           decimal.Decimal
	DriveTimePay         decimal.Decimal
	ServiceTimePay       decimal.Decimal
	ActualDriveMinutes   *int
	ActualServiceMinutes *int
	ReportedMiles        decimal.NullDecimal
	CalculatedAt         time.Time
}

// Repository is the narrow persistence contract over appointments and their tasks.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindTaskByShortID(ctx context.Context, shortID string) (*models.Task, error)
	FindAppointment(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
	FindAppointmentForTask(ctx context.Context, task *models.Task) (*models.Appointment, error)
	ListTasksByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]models.Task, error)

	UpdateTask(ctx context.Context, taskID uuid.UUID, fields map[string]any) error
	MarkTaskStarted(ctx context.Context, taskID uuid.UUID, at time.Time) (bool, error)
	MarkTaskArrived(ctx context.Context, taskID uuid.UUID, at time.Time) (bool, error)
	RecordTaskCompletion(ctx context.Context, taskID uuid.UUID, completedAt time.Time, photos []string) error
	UpdateTaskCost(ctx context.Context, taskID uuid.UUID, cost TaskCost) error
	UpdateAppointment(ctx context.Context, id uuid.UUID, fields map[string]any) error
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status enums.AppointmentStatus) error
	TransitionAppointmentStatus(ctx context.Context, id uuid.UUID, from []enums.AppointmentStatus, to enums.AppointmentStatus, fields map[string]any) (bool, error)
	ClaimServiceCompletion(ctx context.Context, id uuid.UUID, terminal enums.AppointmentStatus, endedAt time.Time) (bool, error)
	SetAppointmentTotal(ctx context.Context, id uuid.UUID, total decimal.Decimal) error
	TransitionPaymentStatus(ctx context.Context, id uuid.UUID, from []enums.PaymentStatus, to enums.PaymentStatus, fields map[string]any) (bool, error)

	ClaimJobPayout(ctx context.Context, appointmentID uuid.UUID, at time.Time) (bool, error)
	CompleteJobPayout(ctx context.Context, appointmentID uuid.UUID, transferID string, at time.Time) error
	FailJobPayout(ctx context.Context, appointmentID uuid.UUID, from []enums.PayoutStatus, reason string, retryable bool, at time.Time) (bool, error)
	ListRetryableJobPayouts(ctx context.Context, maxRetries, limit int) ([]uuid.UUID, error)
	ResetStaleJobPayouts(ctx context.Context, attemptedBefore time.Time) (int64, error)
	ListUnsettledJobs(ctx context.Context, updatedBefore time.Time, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an appointments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindTaskByShortID(ctx context.Context, shortID string) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).Where("short_id = ?", shortID).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *repository) FindAppointment(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	var appt models.Appointment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&appt).Error; err != nil {
		return nil, err
	}
	return &appt, nil
}

func (r *repository) FindAppointmentForTask(ctx context.Context, task *models.Task) (*models.Appointment, error) {
	if task == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return r.FindAppointment(ctx, task.AppointmentID)
}

func (r *repository) ListTasksByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]models.Task, error) {
	var tasks []models.Task
	if err := r.db.WithContext(ctx).
		Where("appointment_id = ?", appointmentID).
		Order("step_number ASC, unit_number ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *repository) UpdateTask(ctx context.Context, taskID uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", taskID).Updates(fields).Error
}

// MarkTaskStarted stamps started_at once; false means an earlier delivery already did.
func (r *repository) MarkTaskStarted(ctx context.Context, taskID uuid.UUID, at time.Time) (bool, error) {
	return db.CompareAndSet(r.db.WithContext(ctx), &models.Task{}, func(q *gorm.DB) *gorm.DB {
		return q.Where("id = ? AND started_at IS NULL", taskID)
	}, map[string]any{"started_at": at})
}

func (r *repository) MarkTaskArrived(ctx context.Context, taskID uuid.UUID, at time.Time) (bool, error) {
	return db.CompareAndSet(r.db.WithContext(ctx), &models.Task{}, func(q *gorm.DB) *gorm.DB {
		return q.Where("id = ? AND arrived_at IS NULL", taskID)
	}, map[string]any{"arrived_at": at})
}

func (r *repository) RecordTaskCompletion(ctx context.Context, taskID uuid.UUID, completedAt time.Time, photos []string) error {
	fields := map[string]any{"completed_at": completedAt}
	if len(photos) > 0 {
		fields["photos"] = models.EncodePhotos(photos)
	}
	return r.UpdateTask(ctx, taskID, fields)
}

func (r *repository) UpdateTaskCost(ctx context.Context, taskID uuid.UUID, cost TaskCost) error {
	fields := map[string]any{
		"actual_cost":        cost.ActualCost,
		"fixed_fee_pay":      cost.FixedFeePay,
		"mileage_pay":        cost.MileagePay,
		"drive_time_pay":     cost.DriveTimePay,
		"service_time_pay":   cost.ServiceTimePay,
		"cost_calculated_at": cost.CalculatedAt,
	}
	if cost.ActualDriveMinutes != nil {
		fields["actual_drive_minutes"] = *cost.ActualDriveMinutes
	}
	if cost.ActualServiceMinutes != nil {
		fields["actual_service_minutes"] = *cost.ActualServiceMinutes
	}
	if cost.ReportedMiles.Valid {
		fields["reported_miles"] = cost.ReportedMiles.Decimal
	}
	return r.UpdateTask(ctx, taskID, fields)
}

func (r *repository) UpdateAppointment(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Appointment{}).Where("id = ?", id).Updates(fields).Error
}

func (r *repository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status enums.AppointmentStatus) error {
	return r.UpdateAppointment(ctx, id, map[string]any{"status": status})
}

// TransitionAppointmentStatus moves the appointment to `to` only while its
// current status is one of `from`.
func (r *repository) TransitionAppointmentStatus(ctx context.Context, id uuid.UUID, from []enums.AppointmentStatus, to enums.AppointmentStatus, fields map[string]any) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	updates := map[string]any{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	return db.CompareAndSet(r.db.WithContext(ctx), &models.Appointment{}, func(q *gorm.DB) *gorm.DB {
		return q.Where("id = ? AND status IN ?", id, from)
	}, updates)
}

// ClaimServiceCompletion stamps the service end exactly once. The status moves to
// terminal unless the appointment already reached Awaiting Admin Check-In.
func (r *repository) ClaimServiceCompletion(ctx context.Context, id uuid.UUID, terminal enums.AppointmentStatus, endedAt time.Time) (bool, error) {
	excluded := append([]enums.AppointmentStatus{enums.AppointmentStatusCanceled}, enums.ServiceCompletedStatuses...)
	return db.CompareAndSet(r.db.WithContext(ctx), &models.Appointment{}, func(q *gorm.DB) *gorm.DB {
		return q.Where("id = ? AND service_end_time IS NULL AND status NOT IN ?", id, excluded)
	}, map[string]any{
		"service_end_time": endedAt,
		"status": gorm.Expr("CASE WHEN status = ? THEN status ELSE ? END",
			enums.AppointmentStatusAwaitingCheckIn, terminal),
	})
}

func (r *repository) SetAppointmentTotal(ctx context.Context, id uuid.UUID, total decimal.Decimal) error {
	return r.UpdateAppointment(ctx, id, map[string]any{"total_actual_cost": total})
}

// TransitionPaymentStatus guards the customer charge so a single completion bills once.
func (r *repository) TransitionPaymentStatus(ctx context.Context, id uuid.UUID, from []enums.PaymentStatus, to enums.PaymentStatus, fields map[string]any) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	updates := map[string]any{"payment_status": to}
	for k, v := range fields {
		updates[k] = v
	}
	return db.CompareAndSet(r.db.WithContext(ctx), &models.Appointment{}, func(q *gorm.DB) *gorm.DB {
		return q.Where("id = ? AND payment_status IN ?", id, from)
	}, updates)
}

// ClaimJobPayout moves every claimable task into processing. The first claim
// freezes each task's payout amount so retries under the same idempotency key
// always send the same total.
func (r *repository) ClaimJobPayout(ctx context.Context, appointmentID uuid.UUID, at time.Time) (bool, error) {
	return db.CompareAndSet(r.db.WithContext(ctx), &models.Task{}, func(q *gorm.DB) *gorm.DB {
		return q.Where("appointment_id = ? AND payout_status IN ?", appointmentID, enums.ClaimablePayoutStatuses)
	}, map[string]any{
		"payout_status":       enums.PayoutStatusProcessing,
		"payout_attempted_at": at,
		"payout_amount":       gorm.Expr("COALESCE(payout_amount, actual_cost, estimated_cost, 0)"),
	})
}

// CompleteJobPayout stamps every processing task with the transfer. It returns
// db.ErrNoRowsUpdated when no task is processing any more.
func (r *repository) CompleteJobPayout(ctx context.Context, appointmentID uuid.UUID, transferID string, at time.Time) error {
	return db.RequireRows(r.db.WithContext(ctx).Model(&models.Task{}).
		Where("appointment_id = ? AND payout_status = ?", appointmentID, enums.PayoutStatusProcessing).
		Updates(map[string]any{
			"payout_status":         enums.PayoutStatusCompleted,
			"payout_transfer_id":    transferID,
			"payout_processed_at":   at,
			"payout_failure_reason": nil,
		}))
}

// FailJobPayout marks tasks currently in one of the from statuses as failed.
func (r *repository) FailJobPayout(ctx context.Context, appointmentID uuid.UUID, from []enums.PayoutStatus, reason string, retryable bool, at time.Time) (bool, error) {
	return db.CompareAndSet(r.db.WithContext(ctx), &models.Task{}, func(q *gorm.DB) *gorm.DB {
		return q.Where("appointment_id = ? AND payout_status IN ?", appointmentID, from)
	}, map[string]any{
		"payout_status":         enums.PayoutStatusFailed,
		"payout_failure_reason": reason,
		"payout_retryable":      retryable,
		"payout_attempted_at":   at,
		"payout_retry_count":    gorm.Expr("payout_retry_count + 1"),
	})
}

func (r *repository) ListRetryableJobPayouts(ctx context.Context, maxRetries, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	q := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("payout_status = ? AND payout_retryable = ? AND payout_retry_count < ?", enums.PayoutStatusFailed, true, maxRetries).
		Order("appointment_id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Distinct().Pluck("appointment_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ResetStaleJobPayouts fails payouts abandoned in processing so the sweep can retry them.
func (r *repository) ResetStaleJobPayouts(ctx context.Context, attemptedBefore time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("payout_status = ? AND payout_attempted_at < ?", enums.PayoutStatusProcessing, attemptedBefore).
		Updates(map[string]any{
			"payout_status":         enums.PayoutStatusFailed,
			"payout_failure_reason": "processing timed out",
			"payout_retryable":      true,
			"payout_retry_count":    gorm.Expr("payout_retry_count + 1"),
		})
	return res.RowsAffected, res.Error
}

// ListUnsettledJobs finds appointments past the return phase whose tasks never left pending.
func (r *repository) ListUnsettledJobs(ctx context.Context, updatedBefore time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	q := r.db.WithContext(ctx).Table("appointments").
		Joins("JOIN tasks ON tasks.appointment_id = appointments.id").
		Where("appointments.status IN ? AND appointments.updated_at < ? AND tasks.payout_status = ?",
			enums.PayableStatuses, updatedBefore, enums.PayoutStatusPending).
		Order("appointments.id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Distinct().Pluck("appointments.id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
