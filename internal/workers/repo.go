package workers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stowaway-backend/pkg/db/models"
)

// Repository looks up the people and crews who get paid.
type Repository interface {
	FindDriver(ctx context.Context, id uuid.UUID) (*models.Driver, error)
	FindMovingPartner(ctx context.Context, id uuid.UUID) (*models.MovingPartner, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindDriver(ctx context.Context, id uuid.UUID) (*models.Driver, error) {
	var driver models.Driver
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&driver).Error; err != nil {
		return nil, err
	}
	return &driver, nil
}

func (r *repository) FindMovingPartner(ctx context.Context, id uuid.UUID) (*models.MovingPartner, error) {
	var partner models.MovingPartner
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&partner).Error; err != nil {
		return nil, err
	}
	return &partner, nil
}
