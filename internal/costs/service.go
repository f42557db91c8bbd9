package costs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/stowaway-backend/internal/appointments"
	"github.com/angelmondragon/stowaway-backend/internal/dispatch"
	"github.com/angelmondragon/stowaway-backend/pkg/db/models"
)

// Accruer prices completed tasks and keeps the appointment aggregate current.
type Accruer interface {
	WithTx(tx *gorm.DB) Accruer
	Accrue(ctx context.Context, task *models.Task, completion dispatch.Completion, partnerRate decimal.NullDecimal) (Breakdown, error)
	RecomputeAppointmentTotal(ctx context.Context, appointmentID uuid.UUID) (decimal.Decimal, error)
}

type service struct {
	calc  Calculator
	repo  appointments.Repository
	clock func() time.Time
}

func NewService(calc Calculator, repo appointments.Repository) (Accruer, error) {
	if repo == nil {
		return nil, fmt.Errorf("appointments repository required")
	}
	return &service{calc: calc, repo: repo, clock: time.Now}, nil
}

func (s *service) WithTx(tx *gorm.DB) Accruer {
	return &service{calc: s.calc, repo: s.repo.WithTx(tx), clock: s.clock}
}

// Accrue prices the task from the completion data and persists every component.
func (s *service) Accrue(ctx context.Context, task *models.Task, completion dispatch.Completion, partnerRate decimal.NullDecimal) (Breakdown, error) {
	if task == nil {
		return Breakdown{}, fmt.Errorf("task required")
	}
	breakdown := s.calc.Calculate(InputFor(task, completion, partnerRate))

	cost := appointments.TaskCost{
		ActualCost:           breakdown.Total,
		FixedFeePay:          breakdown.FixedFee,
		MileagePay:           breakdown.Mileage,
		DriveTimePay:         breakdown.DriveTime,
		ServiceTimePay:       breakdown.ServiceTime,
		ActualDriveMinutes:   breakdown.DriveMinutes,
		ActualServiceMinutes: breakdown.ServiceMinutes,
		ReportedMiles:        completion.DistanceMiles,
		CalculatedAt:         s.clock().UTC(),
	}
	if err := s.repo.UpdateTaskCost(ctx, task.ID, cost); err != nil {
		return Breakdown{}, fmt.Errorf("persist task cost: %w", err)
	}
	return breakdown, nil
}

// RecomputeAppointmentTotal sets the appointment's actual cost to the sum of its tasks' actual costs.
func (s *service) RecomputeAppointmentTotal(ctx context.Context, appointmentID uuid.UUID) (decimal.Decimal, error) {
	tasks, err := s.repo.ListTasksByAppointment(ctx, appointmentID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list tasks: %w", err)
	}
	total := decimal.Zero
	for _, task := range tasks {
		if task.ActualCost.Valid {
			total = total.Add(task.ActualCost.Decimal)
		}
	}
	if err := s.repo.SetAppointmentTotal(ctx, appointmentID, total); err != nil {
		return decimal.Zero, fmt.Errorf("set appointment total: %w", err)
	}
	return total, nil
}

// InputFor merges webhook timing with timestamps recorded by earlier triggers.
func InputFor(task *models.Task, completion dispatch.Completion, partnerRate decimal.NullDecimal) Input {
	return Input{
		Step:       task.StepNumber,
		WorkerType: task.WorkerType,
		Timing: Timing{
			StartedAt:   firstTime(completion.StartedAt, task.StartedAt),
			ArrivedAt:   firstTime(completion.ArrivedAt, task.ArrivedAt),
			CompletedAt: firstTime(completion.CompletedAt, task.CompletedAt),
		},
		EstimatedDriveMinutes:   task.EstimatedDriveMinutes,
		EstimatedServiceMinutes: task.EstimatedServiceMinutes,
		EstimatedMiles:          task.EstimatedMiles,
		ReportedMiles:           completion.DistanceMiles,
		PartnerHourlyRate:       partnerRate,
	}
}

func firstTime(values ...*time.Time) *time.Time {
	for _, v := range values {
		if v != nil && !v.IsZero() {
			return v
		}
	}
	return nil
}
