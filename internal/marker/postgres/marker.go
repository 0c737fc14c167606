package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/moviemix/internal/core/datamodel/marker"
	markerpkg "github.com/frahmantamala/moviemix/internal/marker"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MarkerStore struct {
	db *gorm.DB
}

func NewMarkerStore(db *gorm.DB) *MarkerStore {
	return &MarkerStore{
		db: db,
	}
}

var _ markerpkg.Store = (*MarkerStore)(nil)

func (s *MarkerStore) Get(ctx context.Context, orderID string) (*marker.PendingOrder, error) {
	var m marker.PendingOrder
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, markerpkg.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *MarkerStore) FindByOwner(ctx context.Context, ownerID string) (*marker.PendingOrder, error) {
	var m marker.PendingOrder
	err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, markerpkg.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *MarkerStore) Set(ctx context.Context, m *marker.PendingOrder) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing marker.PendingOrder
		err := tx.Where("owner_id = ? AND order_id <> ?", m.OwnerID, m.OrderID).First(&existing).Error
		if err == nil {
			return markerpkg.ErrOwnerHasMarker
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"mobile", "email", "title", "language"}),
		}).Create(m).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return markerpkg.ErrOwnerHasMarker
		}
		return err
	})
}

func (s *MarkerStore) Clear(ctx context.Context, orderID string) (bool, error) {
	result := s.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&marker.PendingOrder{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *MarkerStore) List(ctx context.Context) ([]*marker.PendingOrder, error) {
	var markers []*marker.PendingOrder
	err := s.db.WithContext(ctx).Order("created_at ASC").Find(&markers).Error
	return markers, err
}
