package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Driver is an independent contractor paid through a Stripe Connect account.
type Driver struct {
	ID                     uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                   string    `gorm:"column:name;not null"`
	Phone                  *string   `gorm:"column:phone"`
	StripeConnectAccountID *string   `gorm:"column:stripe_connect_account_id"`
	StripePayoutsEnabled   bool      `gorm:"column:stripe_payouts_enabled;not null;default:false"`
	CreatedAt              time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// MovingPartner is a partnered crew billed hourly.
type MovingPartner struct {
	ID                     uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                   string              `gorm:"column:name;not null"`
	Phone                  *string             `gorm:"column:phone"`
	HourlyRate             decimal.NullDecimal `gorm:"column:hourly_rate;type:numeric(10,2)"`
	StripeConnectAccountID *string             `gorm:"column:stripe_connect_account_id"`
	StripePayoutsEnabled   bool                `gorm:"column:stripe_payouts_enabled;not null;default:false"`
	CreatedAt              time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
