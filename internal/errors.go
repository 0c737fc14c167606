package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal     ErrorType = "EXTERNAL_ERROR"
	ErrorTypePayment      ErrorType = "PAYMENT_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidAmount    ErrorCode = "INVALID_AMOUNT"
	ErrCodeInvalidPhone     ErrorCode = "INVALID_PHONE"
	ErrCodeInvalidEmail     ErrorCode = "INVALID_EMAIL"

	ErrCodeOrderNotFound        ErrorCode = "ORDER_NOT_FOUND"
	ErrCodePendingPaymentExists ErrorCode = "PENDING_PAYMENT_EXISTS"
	ErrCodeUnauthorizedAccess   ErrorCode = "UNAUTHORIZED_ACCESS"

	ErrCodeInvalidToken     ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired     ErrorCode = "TOKEN_EXPIRED"
	ErrCodeInvalidSignature ErrorCode = "INVALID_SIGNATURE"

	ErrCodePaymentCreationFailed  ErrorCode = "PAYMENT_CREATION_FAILED"
	ErrCodeCheckoutUnavailable    ErrorCode = "CHECKOUT_UNAVAILABLE"
	ErrCodeGatewayUnavailable     ErrorCode = "GATEWAY_UNAVAILABLE"
	ErrCodePaymentFailed          ErrorCode = "PAYMENT_FAILED"
	ErrCodeVerificationTimeout    ErrorCode = "VERIFICATION_TIMEOUT"
	ErrCodeFulfillmentWriteFailed ErrorCode = "FULFILLMENT_WRITE_FAILED"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// PaymentCreationDetails preserves what the gateway answered when it refused an order.
type PaymentCreationDetails struct {
	UpstreamStatus int    `json:"upstream_status"`
	UpstreamBody   string `json:"upstream_body,omitempty"`
}

type PaymentFailureDetails struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type VerificationTimeoutDetails struct {
	OrderID  string `json:"order_id"`
	Attempts int    `json:"attempts"`
}

type PendingPaymentDetails struct {
	OrderID string `json:"order_id"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewPaymentCreationError is returned when the gateway refuses to create an order.
// It is never retried automatically: a blind retry may charge the customer twice.
func NewPaymentCreationError(upstreamStatus int, upstreamBody string) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       ErrCodePaymentCreationFailed,
		Message:    fmt.Sprintf("payment gateway rejected order creation (status %d)", upstreamStatus),
		StatusCode: http.StatusBadGateway,
		Details: PaymentCreationDetails{
			UpstreamStatus: upstreamStatus,
			UpstreamBody:   upstreamBody,
		},
	}
}

func NewCheckoutUnavailableError(orderID string) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       ErrCodeCheckoutUnavailable,
		Message:    fmt.Sprintf("no checkout surface available for order %s", orderID),
		StatusCode: http.StatusBadGateway,
	}
}

func NewGatewayUnavailableError(cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       ErrCodeGatewayUnavailable,
		Message:    "payment gateway unavailable",
		StatusCode: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

func NewPaymentFailedError(orderID, status string) *AppError {
	return &AppError{
		Type:       ErrorTypePayment,
		Code:       ErrCodePaymentFailed,
		Message:    fmt.Sprintf("payment %s, please start a new request", strings.ToLower(status)),
		StatusCode: http.StatusPaymentRequired,
		Details:    PaymentFailureDetails{OrderID: orderID, Status: status},
	}
}

// NewVerificationTimeoutError reports an ambiguous outcome: the charge may still settle.
func NewVerificationTimeoutError(orderID string, attempts int) *AppError {
	return &AppError{
		Type:       ErrorTypePayment,
		Code:       ErrCodeVerificationTimeout,
		Message:    "payment could not be confirmed yet, please contact support with your order id",
		StatusCode: http.StatusGatewayTimeout,
		Details:    VerificationTimeoutDetails{OrderID: orderID, Attempts: attempts},
	}
}

func NewFulfillmentWriteError(orderID string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       ErrCodeFulfillmentWriteFailed,
		Message:    fmt.Sprintf("payment confirmed but request for order %s could not be saved", orderID),
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewPendingPaymentError(orderID string) *AppError {
	return NewConflictError("an unresolved payment already exists, resume it instead", ErrCodePendingPaymentExists).
		WithDetails(PendingPaymentDetails{OrderID: orderID})
}

var (
	ErrOrderNotFound      = NewNotFoundError("Order not found", ErrCodeOrderNotFound)
	ErrUnauthorizedAccess = NewForbiddenError("unauthorized access to order", ErrCodeUnauthorizedAccess)

	ErrInvalidToken     = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired     = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
	ErrInvalidSignature = NewUnauthorizedError("Invalid webhook signature", ErrCodeInvalidSignature)
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := IsAppError(err)
	return ok && appErr.Code == code
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
