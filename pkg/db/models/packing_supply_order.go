package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stowaway-backend/pkg/enums"
)

// PackingSupplyOrder is one delivery stop on a Route.
type PackingSupplyOrder struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RouteID         *uuid.UUID          `gorm:"column:route_id;type:uuid"`
	DispatchShortID string              `gorm:"column:dispatch_short_id;not null;uniqueIndex"`
	CustomerName    string              `gorm:"column:customer_name;not null"`
	CustomerPhone   *string             `gorm:"column:customer_phone"`
	Status          enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'Pending'"`
	TrackingToken   *string             `gorm:"column:tracking_token"`
	ReportedMiles   decimal.NullDecimal `gorm:"column:reported_miles;type:numeric(10,2)"`
	Photos          []string            `gorm:"column:photos;type:jsonb;serializer:json"`
	FailureReason   *string             `gorm:"column:failure_reason"`
	StartedAt       *time.Time          `gorm:"column:started_at"`
	ArrivedAt       *time.Time          `gorm:"column:arrived_at"`
	DeliveredAt     *time.Time          `gorm:"column:delivered_at"`
	FailedAt        *time.Time          `gorm:"column:failed_at"`
	PayoutShare     decimal.NullDecimal `gorm:"column:payout_share;type:numeric(12,2)"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (PackingSupplyOrder) TableName() string {
	return "packing_supply_orders"
}
