package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stowaway-backend/pkg/enums"
)

// LedgerEvent records an immutable money lifecycle event for a job or route.
type LedgerEvent struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AppointmentID *uuid.UUID            `gorm:"column:appointment_id;type:uuid"`
	RouteID       *uuid.UUID            `gorm:"column:route_id;type:uuid"`
	WorkerID      *uuid.UUID            `gorm:"column:worker_id;type:uuid"`
	Type          enums.LedgerEventType `gorm:"column:type;type:text;not null"`
	AmountCents   int64                 `gorm:"column:amount_cents;not null"`
	Reference     *string               `gorm:"column:reference"`
	Metadata      json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
}
