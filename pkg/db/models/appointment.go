package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stowaway-backend/pkg/enums"
)

// Appointment is one customer job. Booking creates it; the fulfillment engine owns its status.
type Appointment struct {
	ID               uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AppointmentType  enums.AppointmentType   `gorm:"column:appointment_type;type:text;not null"`
	Status           enums.AppointmentStatus `gorm:"column:status;type:text;not null;default:'Scheduled'"`
	CustomerName     string                  `gorm:"column:customer_name;not null"`
	CustomerPhone    *string                 `gorm:"column:customer_phone"`
	Address          string                  `gorm:"column:address;not null;default:''"`
	ScheduledAt      time.Time               `gorm:"column:scheduled_at;not null"`
	NumberOfUnits    int                     `gorm:"column:number_of_units;not null;default:1"`
	MovingPartnerID  *uuid.UUID              `gorm:"column:moving_partner_id;type:uuid"`
	SquareCustomerID *string                 `gorm:"column:square_customer_id"`
	SquareCardID     *string                 `gorm:"column:square_card_id"`
	TrackingToken    *string                 `gorm:"column:tracking_token"`
	ServiceStartTime *time.Time              `gorm:"column:service_start_time"`
	ServiceEndTime   *time.Time              `gorm:"column:service_end_time"`
	BalanceDueCents  int64                   `gorm:"column:balance_due_cents;not null;default:0"`
	PaymentStatus    enums.PaymentStatus     `gorm:"column:payment_status;type:text;not null;default:'unpaid'"`
	SquarePaymentID  *string                 `gorm:"column:square_payment_id"`
	PaidAt           *time.Time              `gorm:"column:paid_at"`
	TotalActualCost  decimal.NullDecimal     `gorm:"column:total_actual_cost;type:numeric(12,2)"`
	CreatedAt        time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// HasPaymentProfile reports whether the customer can be charged on completion.
func (a Appointment) HasPaymentProfile() bool {
	return a.SquareCustomerID != nil && *a.SquareCustomerID != "" &&
		a.SquareCardID != nil && *a.SquareCardID != ""
}

// WorkerType derives who serves the job from the partner assignment.
func (a Appointment) WorkerType() enums.WorkerType {
	if a.MovingPartnerID != nil {
		return enums.WorkerTypePartner
	}
	return enums.WorkerTypeIndependent
}
