package paymentgateway

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusCreated   OrderStatus = "CREATED"
	StatusPending   OrderStatus = "PENDING"
	StatusPaid      OrderStatus = "PAID"
	StatusFailed    OrderStatus = "FAILED"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusExpired   OrderStatus = "EXPIRED"
	StatusTimeout   OrderStatus = "TIMEOUT"
)

const CurrencyINR = "INR"

// IsTerminal reports whether polling stops once the status is observed.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusPaid, StatusFailed, StatusCancelled, StatusExpired, StatusTimeout:
		return true
	}
	return false
}

// IsFailure covers the gateway-reported terminal states that require a new order.
func (s OrderStatus) IsFailure() bool {
	return s == StatusFailed || s == StatusCancelled || s == StatusExpired
}

// MapStatus maps any gateway status string onto the poller's status set.
// Unrecognized values map to PENDING so transient statuses keep the loop alive.
func MapStatus(raw string) OrderStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PAID", "SUCCESS":
		return StatusPaid
	case "FAILED", "FAILURE":
		return StatusFailed
	case "CANCELLED", "CANCELED", "USER_DROPPED", "TERMINATED", "TERMINATION_REQUESTED", "VOID":
		return StatusCancelled
	case "EXPIRED":
		return StatusExpired
	default:
		return StatusPending
	}
}

type Customer struct {
	ID    string `json:"customer_id"`
	Phone string `json:"customer_phone"`
	Email string `json:"customer_email,omitempty"`
}

type CreateOrderRequest struct {
	CorrelationID string
	Amount        decimal.Decimal
	Currency      string
	Customer      Customer
	ReturnURL     string
	NotifyURL     string
	Tags          map[string]string
}

func (r *CreateOrderRequest) Validate() error {
	if r.CorrelationID == "" {
		return errors.New("correlation id is required")
	}
	if !r.Amount.IsPositive() {
		return errors.New("amount must be greater than 0")
	}
	if r.Currency == "" {
		return errors.New("currency is required")
	}
	if r.Customer.Phone == "" {
		return errors.New("customer phone is required")
	}
	if r.Customer.ID == "" {
		return errors.New("customer id is required")
	}
	return nil
}

// Order is the canonical gateway order; upstream field drift stops at the adapter.
type Order struct {
	ID                string
	GatewayRef        string
	Amount            decimal.Decimal
	Currency          string
	Status            OrderStatus
	RawStatus         string
	SessionHandle     string
	HostedCheckoutURL string
	Customer          Customer
}
