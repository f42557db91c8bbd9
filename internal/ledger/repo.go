package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stowaway-backend/pkg/db/models"
)

// Repository manages persistence for ledger events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.LedgerEvent) error
	ListByAppointmentID(ctx context.Context, appointmentID uuid.UUID) ([]models.LedgerEvent, error)
	ListByRouteID(ctx context.Context, routeID uuid.UUID) ([]models.LedgerEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, event *models.LedgerEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListByAppointmentID(ctx context.Context, appointmentID uuid.UUID) ([]models.LedgerEvent, error) {
	return r.list(ctx, "appointment_id = ?", appointmentID)
}

func (r *repository) ListByRouteID(ctx context.Context, routeID uuid.UUID) ([]models.LedgerEvent, error) {
	return r.list(ctx, "route_id = ?", routeID)
}

func (r *repository) list(ctx context.Context, where string, id uuid.UUID) ([]models.LedgerEvent, error) {
	var events []models.LedgerEvent
	if err := r.db.WithContext(ctx).
		Where(where, id).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
