package routes

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

// Repository persists packing-supply routes and their delivery stops.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindOrderByShortID(ctx context.Context, shortID string) (*models.PackingSupplyOrder, error)
	FindRoute(ctx context.Context, id uuid.UUID) (*models.Route, error)
	ListOrdersByRoute(ctx context.Context, routeID uuid.UUID) ([]models.PackingSupplyOrder, error)

	UpdateOrder(ctx context.Context, id uuid.UUID, fields map[string]any) error
	TransitionOrderStatus(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus, fields map[string]any) (bool, error)
	UpdateRoute(ctx context.Context, id uuid.UUID, fields map[string]any) error
	TransitionRouteStatus(ctx context.Context, id uuid.UUID, from []enums.RouteStatus, to enums.RouteStatus, fields map[string]any) (bool, error)

	ClaimRoutePayout(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) (bool, error)
	CompleteRoutePayout(ctx context.Context, id uuid.UUID, transferID string, at time.Time) error
	FailRoutePayout(ctx context.Context, id uuid.UUID, from []enums.PayoutStatus, reason string, retryable bool, at time.Time) (bool, error)
	SetOrderPayoutShares(ctx context.Context, shares map[uuid.UUID]decimal.Decimal) error
	ListRetryableRoutePayouts(ctx context.Context, maxRetries, limit int) ([]uuid.UUID, error)
	ResetStaleRoutePayouts(ctx context.Context, attemptedBefore time.Time) (int64, error)
	ListUnsettledRoutes(ctx context.Context, updatedBefore time.Time, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a routes repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrderByShortID(ctx context.Context, shortID string) (*models.PackingSupplyOrder, error) {
	var order models.PackingSupplyOrder
	if err := r.db.WithContext(ctx).Where("dispatch_short_id = ?", shortID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindRoute(ctx context.Context, id uuid.UUID) (*models.Route, error) {
	var route models.Route
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&route).Error; err != nil {
		return nil, err
	}
	return &route, nil
}

func (r *repository) ListOrdersByRoute(ctx context.Context, routeID uuid.UUID) ([]models.PackingSupplyOrder, error) {
	var orders []models.PackingSupplyOrder
	if err := r.db.WithContext(ctx).
		Where("route_id = ?", routeID).
		Order("created_at ASC, id ASC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) UpdateOrder(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.PackingSupplyOrder{}).Where("id = ?", id).Updates(fields).Error
}

func (r *repository) TransitionOrderStatus(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus, fields map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	return db.CompareAndSet(r.db.WithContext(ctx), &models.PackingSupplyOrder{}, func(q *gorm.DB) *gorm.DB {
		return q.Where("id = ? AND status IN ?", id, from)
	}, updates)
}

func (r *repository) UpdateRoute(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Route{}).Where("id = ?", id).Updates(fields).Error
}

func (r *repository) TransitionRouteStatus(ctx context.Context, id uuid.UUID, from []enums.RouteStatus, to enums.RouteStatus, fields map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	return db.CompareAndSet(r.db.WithContext(ctx), &models.Route{}, func(q *gorm.DB) *gorm.DB {
		return q.Where("id = ? AND status IN ?", id, from)
	}, updates)
}

// ClaimRoutePayout moves a claimable route into processing. An amount frozen by
// an earlier claim wins over the one passed in.
func (r *repository) ClaimRoutePayout(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) (bool, error) {
	return db.CompareAndSet(r.db.WithContext(ctx), &models.Route{}, func(q *gorm.DB) *gorm.DB {
		return q.Where("id = ? AND payout_status IN ?", id, enums.ClaimablePayoutStatuses)
	}, map[string]any{
		"payout_status":       enums.PayoutStatusProcessing,
		"payout_attempted_at": at,
		"payout_amount":       gorm.Expr("COALESCE(payout_amount, ?)", amount),
	})
}

func (r *repository) CompleteRoutePayout(ctx context.Context, id uuid.UUID, transferID string, at time.Time) error {
	return db.RequireRows(r.db.WithContext(ctx).Model(&models.Route{}).
		Where("id = ? AND payout_status = ?", id, enums.PayoutStatusProcessing).
		Updates(map[string]any{
			"payout_status":         enums.PayoutStatusCompleted,
			"payout_transfer_id":    transferID,
			"payout_processed_at":   at,
			"payout_failure_reason": nil,
		}))
}

func (r *repository) FailRoutePayout(ctx context.Context, id uuid.UUID, from []enums.PayoutStatus, reason string, retryable bool, at time.Time) (bool, error) {
	return db.CompareAndSet(r.db.WithContext(ctx), &models.Route{}, func(q *gorm.DB) *gorm.DB {
		return q.Where("id = ? AND payout_status IN ?", id, from)
	}, map[string]any{
		"payout_status":         enums.PayoutStatusFailed,
		"payout_failure_reason": reason,
		"payout_retryable":      retryable,
		"payout_attempted_at":   at,
		"payout_retry_count":    gorm.Expr("payout_retry_count + 1"),
	})
}

func (r *repository) SetOrderPayoutShares(ctx context.Context, shares map[uuid.UUID]decimal.Decimal) error {
	for id, share := range shares {
		if err := r.UpdateOrder(ctx, id, map[string]any{"payout_share": share}); err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) ListRetryableRoutePayouts(ctx context.Context, maxRetries, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	q := r.db.WithContext(ctx).Model(&models.Route{}).
		Where("payout_status = ? AND payout_retryable = ? AND payout_retry_count < ?", enums.PayoutStatusFailed, true, maxRetries).
		Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) ResetStaleRoutePayouts(ctx context.Context, attemptedBefore time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Route{}).
		Where("payout_status = ? AND payout_attempted_at < ?", enums.PayoutStatusProcessing, attemptedBefore).
		Updates(map[string]any{
			"payout_status":         enums.PayoutStatusFailed,
			"payout_failure_reason": "processing timed out",
			"payout_retryable":      true,
			"payout_retry_count":    gorm.Expr("payout_retry_count + 1"),
		})
	return res.RowsAffected, res.Error
}

func (r *repository) ListUnsettledRoutes(ctx context.Context, updatedBefore time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	q := r.db.WithContext(ctx).Model(&models.Route{}).
		Where("status = ? AND payout_status = ? AND updated_at < ?", enums.RouteStatusDelivered, enums.PayoutStatusPending, updatedBefore).
		Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
