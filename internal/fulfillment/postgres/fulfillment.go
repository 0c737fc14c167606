package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/moviemix/internal/core/datamodel/fulfillment"
	"github.com/frahmantamala/moviemix/internal/core/datamodel/marker"
	fulfillmentpkg "github.com/frahmantamala/moviemix/internal/fulfillment"
	"gorm.io/gorm"
)

type FulfillmentRepository struct {
	db *gorm.DB
}

func NewFulfillmentRepository(db *gorm.DB) fulfillmentpkg.RepositoryAPI {
	return &FulfillmentRepository{
		db: db,
	}
}

func (r *FulfillmentRepository) ClaimAndCreate(ctx context.Context, req *fulfillment.FulfillmentRequest) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("order_id = ?", req.OrderID).Delete(&marker.PendingOrder{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		if err := tx.Create(req).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (r *FulfillmentRepository) GetByOrderID(ctx context.Context, orderID string) (*fulfillment.FulfillmentRequest, error) {
	var req fulfillment.FulfillmentRequest
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fulfillmentpkg.ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}
