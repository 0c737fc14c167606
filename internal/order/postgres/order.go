package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/moviemix/internal"
	"github.com/frahmantamala/moviemix/internal/core/datamodel/order"
	orderpkg "github.com/frahmantamala/moviemix/internal/order"
	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) orderpkg.RepositoryAPI {
	return &OrderRepository{
		db: db,
	}
}

func (r *OrderRepository) Create(ctx context.Context, o *order.PaymentOrder) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *OrderRepository) GetByOrderID(ctx context.Context, orderID string) (*order.PaymentOrder, error) {
	var o order.PaymentOrder
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) RecordStatus(ctx context.Context, orderID, status string, attempts int, checkedAt time.Time) error {
	updates := map[string]interface{}{
		"status":          status,
		"last_checked_at": checkedAt,
	}
	if attempts > 0 {
		updates["attempts"] = attempts
	}

	result := r.db.WithContext(ctx).Model(&order.PaymentOrder{}).
		Where("order_id = ? AND status NOT IN ?", orderID, orderpkg.LockedStatuses(status)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&order.PaymentOrder{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return internal.ErrOrderNotFound
	}
	return orderpkg.ErrStatusSettled
}
