package fulfillment

import "time"

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"

	PaymentStatusPending = "pending"
	PaymentStatusSuccess = "success"
	PaymentStatusFailed  = "failed"
)

type FulfillmentRequest struct {
	ID            int64     `gorm:"primaryKey"`
	OrderID       string    `gorm:"column:order_id;not null;uniqueIndex"`
	Mobile        string    `gorm:"column:mobile;not null"`
	Title         string    `gorm:"column:title;not null"`
	Language      string    `gorm:"column:language;not null"`
	OwnerID       string    `gorm:"column:owner_id;not null;index"`
	Status        string    `gorm:"column:status;not null;default:pending"`
	DownloadLink  *string   `gorm:"column:download_link"`
	PaymentStatus string    `gorm:"column:payment_status;not null;default:pending"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (FulfillmentRequest) TableName() string {
	return "movie_requests"
}
