package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentOrder struct {
	ID            int64           `gorm:"primaryKey"`
	OrderID       string          `gorm:"column:order_id;not null;uniqueIndex"`
	GatewayRef    string          `gorm:"column:gateway_ref"`
	CorrelationID string          `gorm:"column:correlation_id;not null;uniqueIndex"`
	Amount        decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency      string          `gorm:"column:currency;not null;default:INR"`
	CustomerPhone string          `gorm:"column:customer_phone;not null"`
	CustomerEmail string          `gorm:"column:customer_email;not null"`
	OwnerID       string          `gorm:"column:owner_id;not null;index"`
	Status        string          `gorm:"column:status;not null;default:CREATED"`
	SessionHandle string          `gorm:"column:session_handle;not null"`
	CheckoutURL   *string         `gorm:"column:checkout_url"`
	Attempts      int             `gorm:"column:attempts;default:0"`
	LastCheckedAt *time.Time      `gorm:"column:last_checked_at"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentOrder) TableName() string {
	return "payment_orders"
}
