package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentPaid                = "payment.paid"
	EventTypePaymentFailed              = "payment.failed"
	EventTypePaymentVerificationTimeout = "payment.verification_timeout"
	EventTypeFulfillmentRecorded        = "fulfillment.recorded"
)

// LifecycleEventTypes lists every event the payment lifecycle emits.
var LifecycleEventTypes = []string{
	EventTypePaymentPaid,
	EventTypePaymentFailed,
	EventTypePaymentVerificationTimeout,
	EventTypeFulfillmentRecorded,
}

func newBaseEvent(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

type PaymentPaidEvent struct {
	BaseEvent
	OrderID  string `json:"order_id"`
	OwnerID  string `json:"owner_id"`
	Attempts int    `json:"attempts"`
}

func NewPaymentPaidEvent(orderID, ownerID string, attempts int) *PaymentPaidEvent {
	return &PaymentPaidEvent{
		BaseEvent: newBaseEvent(EventTypePaymentPaid, map[string]interface{}{
			"order_id": orderID,
			"owner_id": ownerID,
			"attempts": attempts,
		}),
		OrderID:  orderID,
		OwnerID:  ownerID,
		Attempts: attempts,
	}
}

type PaymentFailedEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	OwnerID string `json:"owner_id"`
	Status  string `json:"status"`
}

func NewPaymentFailedEvent(orderID, ownerID, status string) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseEvent: newBaseEvent(EventTypePaymentFailed, map[string]interface{}{
			"order_id": orderID,
			"owner_id": ownerID,
			"status":   status,
		}),
		OrderID: orderID,
		OwnerID: ownerID,
		Status:  status,
	}
}

type VerificationTimeoutEvent struct {
	BaseEvent
	OrderID  string `json:"order_id"`
	OwnerID  string `json:"owner_id"`
	Attempts int    `json:"attempts"`
}

func NewVerificationTimeoutEvent(orderID, ownerID string, attempts int) *VerificationTimeoutEvent {
	return &VerificationTimeoutEvent{
		BaseEvent: newBaseEvent(EventTypePaymentVerificationTimeout, map[string]interface{}{
			"order_id": orderID,
			"owner_id": ownerID,
			"attempts": attempts,
		}),
		OrderID:  orderID,
		OwnerID:  ownerID,
		Attempts: attempts,
	}
}

type FulfillmentRecordedEvent struct {
	BaseEvent
	OrderID   string `json:"order_id"`
	RequestID int64  `json:"request_id"`
	OwnerID   string `json:"owner_id"`
	Title     string `json:"title"`
	Language  string `json:"language"`
}

func NewFulfillmentRecordedEvent(orderID string, requestID int64, ownerID, title, language string) *FulfillmentRecordedEvent {
	return &FulfillmentRecordedEvent{
		BaseEvent: newBaseEvent(EventTypeFulfillmentRecorded, map[string]interface{}{
			"order_id":   orderID,
			"request_id": requestID,
			"owner_id":   ownerID,
			"title":      title,
			"language":   language,
		}),
		OrderID:   orderID,
		RequestID: requestID,
		OwnerID:   ownerID,
		Title:     title,
		Language:  language,
	}
}

// NewEvent builds an ad-hoc event, used by operator tooling.
func NewEvent(eventType string, data map[string]interface{}) BaseEvent {
	return newBaseEvent(eventType, data)
}
