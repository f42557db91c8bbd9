package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stowaway-backend/pkg/enums"
)

// Route groups packing-supply delivery stops for one driver on one day.
type Route struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DriverID    *uuid.UUID          `gorm:"column:driver_id;type:uuid"`
	RouteDate   time.Time           `gorm:"column:route_date;type:date;not null"`
	Status      enums.RouteStatus   `gorm:"column:status;type:text;not null;default:'Scheduled'"`
	TotalMiles  decimal.NullDecimal `gorm:"column:total_miles;type:numeric(10,2)"`
	StartedAt   *time.Time          `gorm:"column:started_at"`
	CompletedAt *time.Time          `gorm:"column:completed_at"`

	PayoutState `gorm:"embedded"`

	Orders    []PackingSupplyOrder `gorm:"foreignKey:RouteID"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
