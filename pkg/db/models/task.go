package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stowaway-backend/pkg/enums"
)

// Task is one physical leg of an appointment, unique per (appointment, step, unit).
type Task struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AppointmentID uuid.UUID        `gorm:"column:appointment_id;type:uuid;not null"`
	StepNumber    int              `gorm:"column:step_number;not null"`
	UnitNumber    int              `gorm:"column:unit_number;not null;default:1"`
	ShortID       string           `gorm:"column:short_id;not null;uniqueIndex"`
	DispatchID    *string          `gorm:"column:dispatch_id"`
	WorkerType    enums.WorkerType `gorm:"column:worker_type;type:text;not null;default:'independent'"`
	DriverID      *uuid.UUID       `gorm:"column:driver_id;type:uuid"`

	EstimatedCost           decimal.NullDecimal `gorm:"column:estimated_cost;type:numeric(12,2)"`
	EstimatedDriveMinutes   *int                `gorm:"column:estimated_drive_minutes"`
	EstimatedServiceMinutes *int                `gorm:"column:estimated_service_minutes"`
	EstimatedMiles          decimal.NullDecimal `gorm:"column:estimated_miles;type:numeric(10,2)"`

	ActualCost           decimal.NullDecimal `gorm:"column:actual_cost;type:numeric(12,2)"`
	FixedFeePay          decimal.NullDecimal `gorm:"column:fixed_fee_pay;type:numeric(12,2)"`
	MileagePay           decimal.NullDecimal `gorm:"column:mileage_pay;type:numeric(12,2)"`
	DriveTimePay         decimal.NullDecimal `gorm:"column:drive_time_pay;type:numeric(12,2)"`
	ServiceTimePay       decimal.NullDecimal `gorm:"column:service_time_pay;type:numeric(12,2)"`
	ActualDriveMinutes   *int                `gorm:"column:actual_drive_minutes"`
	ActualServiceMinutes *int                `gorm:"column:actual_service_minutes"`
	ReportedMiles        decimal.NullDecimal `gorm:"column:reported_miles;type:numeric(10,2)"`
	CostCalculatedAt     *time.Time          `gorm:"column:cost_calculated_at"`

	Photos      []string   `gorm:"column:photos;type:jsonb;serializer:json"`
	StartedAt   *time.Time `gorm:"column:started_at"`
	ArrivedAt   *time.Time `gorm:"column:arrived_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`

	PayoutState `gorm:"embedded"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// IsPrimaryUnit reports whether the task drives appointment-level side effects.
func (t Task) IsPrimaryUnit() bool {
	return t.UnitNumber <= 1
}

// EffectiveCost returns the actual cost, falling back to the estimate.
func (t Task) EffectiveCost() decimal.Decimal {
	if t.ActualCost.Valid {
		return t.ActualCost.Decimal
	}
	if t.EstimatedCost.Valid {
		return t.EstimatedCost.Decimal
	}
	return decimal.Zero
}

// PayoutBasis is the amount frozen by the first payout claim, or the effective cost before one.
func (t Task) PayoutBasis() decimal.Decimal {
	if t.PayoutAmount.Valid {
		return t.PayoutAmount.Decimal
	}
	return t.EffectiveCost()
}
