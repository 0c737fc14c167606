package order

import (
	"strings"
	"time"

	"github.com/frahmantamala/moviemix/internal"
	"github.com/frahmantamala/moviemix/internal/checkout"
	"github.com/frahmantamala/moviemix/internal/core/common/validation"
	ordermodel "github.com/frahmantamala/moviemix/internal/core/datamodel/order"
	"github.com/shopspring/decimal"
)

const maxTitleLength = 200

// CreateOrderDTO is the request to pay for one movie request.
type CreateOrderDTO struct {
	Amount        decimal.Decimal `json:"amount"`
	CustomerPhone string          `json:"customer_phone"`
	CustomerEmail string          `json:"customer_email"`
	Title         string          `json:"title"`
	Language      string          `json:"language"`
	ReturnURL     string          `json:"return_url,omitempty"`
}

func (dto *CreateOrderDTO) Normalize() {
	dto.CustomerPhone = strings.TrimSpace(dto.CustomerPhone)
	dto.CustomerEmail = strings.TrimSpace(dto.CustomerEmail)
	dto.Title = strings.TrimSpace(dto.Title)
	dto.Language = strings.TrimSpace(dto.Language)
	dto.ReturnURL = strings.TrimSpace(dto.ReturnURL)
}

func (dto CreateOrderDTO) Validate() *internal.AppError {
	validator := validation.NewValidator()
	validator.Field("amount", dto.Amount).
		Positive(internal.ErrCodeInvalidAmount).
		MaxDecimals(2, internal.ErrCodeInvalidAmount)
	validator.Field("customer_phone", dto.CustomerPhone).
		Required().
		Phone()
	validator.Field("customer_email", dto.CustomerEmail).
		Required().
		Email()
	validator.Field("title", dto.Title).
		Required().
		MaxLength(maxTitleLength)
	validator.Field("language", dto.Language).
		Required()
	return validator.Validate()
}

// CreateOrderResponse is returned once the gateway order exists and the
// pending marker is stored.
type CreateOrderResponse struct {
	OrderID       string                `json:"order_id"`
	CorrelationID string                `json:"correlation_id"`
	Amount        decimal.Decimal       `json:"amount"`
	Currency      string                `json:"currency"`
	Status        string                `json:"status"`
	Checkout      *checkout.Instruction `json:"checkout"`
}

type OrderView struct {
	OrderID       string          `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	Attempts      int             `json:"attempts"`
	CheckoutURL   *string         `json:"checkout_url,omitempty"`
	LastCheckedAt *string         `json:"last_checked_at,omitempty"`
	CreatedAt     string          `json:"created_at"`
}

func NewOrderView(o *ordermodel.PaymentOrder) *OrderView {
	view := &OrderView{
		OrderID:     o.OrderID,
		Amount:      o.Amount,
		Currency:    o.Currency,
		Status:      o.Status,
		Attempts:    o.Attempts,
		CheckoutURL: o.CheckoutURL,
		CreatedAt:   o.CreatedAt.UTC().Format(time.RFC3339),
	}
	if o.LastCheckedAt != nil {
		checked := o.LastCheckedAt.UTC().Format(time.RFC3339)
		view.LastCheckedAt = &checked
	}
	return view
}

// PendingOrderView is the marker the client resumes verification from.
type PendingOrderView struct {
	OrderID   string `json:"order_id"`
	Title     string `json:"title"`
	Language  string `json:"language"`
	Mobile    string `json:"mobile"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}
