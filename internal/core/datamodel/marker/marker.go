package marker

import "time"

// PendingOrder is the durable row behind an unresolved payment.
type PendingOrder struct {
	OrderID   string    `gorm:"column:order_id;primaryKey"`
	Mobile    string    `gorm:"column:mobile;not null"`
	Email     string    `gorm:"column:email;not null"`
	Title     string    `gorm:"column:title;not null"`
	Language  string    `gorm:"column:language;not null"`
	OwnerID   string    `gorm:"column:owner_id;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (PendingOrder) TableName() string {
	return "pending_orders"
}
