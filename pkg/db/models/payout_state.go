package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stowaway-backend/pkg/enums"
)

// PayoutState is embedded by every record that can carry a worker payout.
type PayoutState struct {
	PayoutStatus        enums.PayoutStatus  `gorm:"column:payout_status;type:text;not null;default:'pending'"`
	PayoutAmount        decimal.NullDecimal `gorm:"column:payout_amount;type:numeric(12,2)"`
	PayoutTransferID    *string             `gorm:"column:payout_transfer_id"`
	PayoutProcessedAt   *time.Time          `gorm:"column:payout_processed_at"`
	PayoutAttemptedAt   *time.Time          `gorm:"column:payout_attempted_at"`
	PayoutFailureReason *string             `gorm:"column:payout_failure_reason"`
	PayoutRetryCount    int                 `gorm:"column:payout_retry_count;not null;default:0"`
	PayoutRetryable     bool                `gorm:"column:payout_retryable;not null;default:true"`
}
