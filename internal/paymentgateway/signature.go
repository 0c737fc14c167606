package paymentgateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/frahmantamala/moviemix/internal"
)

const (
	HeaderWebhookTimestamp = "x-webhook-timestamp"
	HeaderWebhookSignature = "x-webhook-signature"
)

// SignatureVerifier checks Cashfree webhook signatures:
// base64(HMAC-SHA256(timestamp + raw body, client secret)).
type SignatureVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

func NewSignatureVerifier(secret string, tolerance time.Duration) *SignatureVerifier {
	return &SignatureVerifier{
		secret:    []byte(secret),
		tolerance: tolerance,
		now:       time.Now,
	}
}

func (v *SignatureVerifier) Sign(timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (v *SignatureVerifier) Verify(timestamp, signature string, body []byte) error {
	if timestamp == "" || signature == "" {
		return internal.ErrInvalidSignature
	}
	if v.tolerance > 0 {
		if err := v.checkFreshness(timestamp); err != nil {
			return internal.NewUnauthorizedError("Invalid webhook signature", internal.ErrCodeInvalidSignature).WithCause(err)
		}
	}
	expected := v.Sign(timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return internal.ErrInvalidSignature
	}
	return nil
}

// Cashfree sends the timestamp in milliseconds.
func (v *SignatureVerifier) checkFreshness(timestamp string) error {
	ms, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed timestamp %q", timestamp)
	}
	sent := time.UnixMilli(ms)
	age := v.now().Sub(sent)
	if age < 0 {
		age = -age
	}
	if age > v.tolerance {
		return fmt.Errorf("timestamp outside tolerance: %s", age)
	}
	return nil
}

// WebhookEvent is the subset of the payment webhook payload the service acts on.
type WebhookEvent struct {
	Type      string `json:"type"`
	EventTime string `json:"event_time"`
	Data      struct {
		Order struct {
			OrderID     string      `json:"order_id"`
			OrderAmount json.Number `json:"order_amount"`
		} `json:"order"`
		Payment struct {
			CFPaymentID   json.RawMessage `json:"cf_payment_id"`
			PaymentStatus string          `json:"payment_status"`
		} `json:"payment"`
	} `json:"data"`
}

func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var evt WebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, internal.NewValidationError("invalid webhook payload", internal.ErrCodeValidationFailed).WithCause(err)
	}
	if evt.Data.Order.OrderID == "" {
		return nil, internal.NewValidationFieldError("data.order.order_id", "order_id is required", internal.ErrCodeValidationFailed)
	}
	return &evt, nil
}

func (e *WebhookEvent) OrderID() string {
	return e.Data.Order.OrderID
}

func (e *WebhookEvent) PaymentStatus() string {
	return e.Data.Payment.PaymentStatus
}

func (e *WebhookEvent) PaymentRef() string {
	return rawID(e.Data.Payment.CFPaymentID)
}
