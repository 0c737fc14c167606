package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/frahmantamala/moviemix/internal"
	gatewaytypes "github.com/frahmantamala/moviemix/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/moviemix/pkg/logger"
	"github.com/shopspring/decimal"
)

const maxErrorBody = 4096

type Config struct {
	BaseURL           string
	ClientID          string
	ClientSecret      string
	APIVersion        string
	HostedCheckoutURL string
	RequestTimeout    time.Duration
}

// Client talks to the Cashfree PG orders API.
type Client struct {
	baseURL           string
	clientID          string
	clientSecret      string
	apiVersion        string
	hostedCheckoutURL string
	httpClient        *http.Client
	logger            *slog.Logger
}

func NewClient(config Config, log *slog.Logger) *Client {
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	apiVersion := config.APIVersion
	if apiVersion == "" {
		apiVersion = internal.DefaultAPIVersion
	}

	return &Client{
		baseURL:           strings.TrimRight(config.BaseURL, "/"),
		clientID:          config.ClientID,
		clientSecret:      config.ClientSecret,
		apiVersion:        apiVersion,
		hostedCheckoutURL: config.HostedCheckoutURL,
		httpClient:        &http.Client{Timeout: timeout},
		logger:            log,
	}
}

type createOrderPayload struct {
	OrderAmount     json.Number       `json:"order_amount"`
	OrderCurrency   string            `json:"order_currency"`
	CustomerDetails customerDetails   `json:"customer_details"`
	OrderMeta       *orderMeta        `json:"order_meta,omitempty"`
	OrderTags       map[string]string `json:"order_tags,omitempty"`
}

type customerDetails struct {
	CustomerID    string `json:"customer_id"`
	CustomerPhone string `json:"customer_phone"`
	CustomerEmail string `json:"customer_email,omitempty"`
}

type orderMeta struct {
	ReturnURL string `json:"return_url,omitempty"`
	NotifyURL string `json:"notify_url,omitempty"`
}

// orderResponse covers every field-name variant seen across API versions.
type orderResponse struct {
	OrderID          string          `json:"order_id"`
	CFOrderID        json.RawMessage `json:"cf_order_id"`
	PaymentSessionID string          `json:"payment_session_id"`
	OrderToken       string          `json:"order_token"`
	PaymentLink      string          `json:"payment_link"`
	PaymentURL       string          `json:"payment_url"`
	OrderStatus      string          `json:"order_status"`
	OrderAmount      json.Number     `json:"order_amount"`
	OrderCurrency    string          `json:"order_currency"`
	CustomerDetails  customerDetails `json:"customer_details"`
}

// CreateOrder submits a new order. Failures are never retried here: a second
// create may produce a second chargeable order.
func (c *Client) CreateOrder(ctx context.Context, req *gatewaytypes.CreateOrderRequest) (*gatewaytypes.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	log := logger.FromOr(ctx, c.logger)

	payload := createOrderPayload{
		OrderAmount:   json.Number(req.Amount.StringFixed(2)),
		OrderCurrency: req.Currency,
		CustomerDetails: customerDetails{
			CustomerID:    req.Customer.ID,
			CustomerPhone: req.Customer.Phone,
			CustomerEmail: req.Customer.Email,
		},
		OrderTags: req.Tags,
	}
	if req.ReturnURL != "" || req.NotifyURL != "" {
		payload.OrderMeta = &orderMeta{ReturnURL: req.ReturnURL, NotifyURL: req.NotifyURL}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create HTTP request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("x-request-id", req.CorrelationID)

	log.Info("creating gateway order",
		"correlation_id", req.CorrelationID,
		"amount", payload.OrderAmount,
		"currency", req.Currency)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Error("order creation request failed", "correlation_id", req.CorrelationID, "error", err)
		return nil, internal.NewPaymentCreationError(0, "").WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, internal.NewPaymentCreationError(resp.StatusCode, "").WithCause(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error("gateway rejected order creation",
			"correlation_id", req.CorrelationID,
			"status", resp.StatusCode,
			"response", truncate(respBody))
		return nil, internal.NewPaymentCreationError(resp.StatusCode, truncate(respBody))
	}

	var parsed orderResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, internal.NewPaymentCreationError(resp.StatusCode, truncate(respBody)).WithCause(err)
	}

	order := c.normalize(&parsed)
	if order.Amount.IsZero() {
		order.Amount = req.Amount
	}
	if order.Currency == "" {
		order.Currency = req.Currency
	}
	if order.Customer.Phone == "" {
		order.Customer = req.Customer
	}
	if order.Status == "" {
		order.Status = gatewaytypes.StatusCreated
	}

	if order.ID == "" || order.SessionHandle == "" {
		log.Error("gateway order response missing identifiers",
			"correlation_id", req.CorrelationID,
			"response", truncate(respBody))
		return nil, internal.NewPaymentCreationError(resp.StatusCode, truncate(respBody)).
			WithCause(fmt.Errorf("order id or session handle missing"))
	}

	log.Info("gateway order created",
		"correlation_id", req.CorrelationID,
		"order_id", order.ID,
		"gateway_ref", order.GatewayRef)

	return order, nil
}

// GetOrder fetches the current state of an order. Transport and non-2xx
// failures come back as GatewayUnavailable so the poller can absorb them.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*gatewaytypes.Order, error) {
	endpoint := fmt.Sprintf("%s/orders/%s", c.baseURL, url.PathEscape(orderID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create HTTP request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, internal.NewGatewayUnavailableError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, internal.NewGatewayUnavailableError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, internal.NewGatewayUnavailableError(
			fmt.Errorf("order status returned %d: %s", resp.StatusCode, truncate(respBody)))
	}

	var parsed orderResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, internal.NewGatewayUnavailableError(fmt.Errorf("decode order status: %w", err))
	}

	order := c.normalize(&parsed)
	if order.ID == "" {
		order.ID = orderID
	}
	return order, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-version", c.apiVersion)
	req.Header.Set("x-client-id", c.clientID)
	req.Header.Set("x-client-secret", c.clientSecret)
}

func (c *Client) normalize(r *orderResponse) *gatewaytypes.Order {
	gatewayRef := rawID(r.CFOrderID)

	id := r.OrderID
	if id == "" {
		id = gatewayRef
	}

	session := r.PaymentSessionID
	if session == "" {
		session = r.OrderToken
	}

	hosted := r.PaymentLink
	if hosted == "" {
		hosted = r.PaymentURL
	}
	if hosted == "" && session != "" && c.hostedCheckoutURL != "" {
		hosted = strings.TrimRight(c.hostedCheckoutURL, "/") + "/" + url.PathEscape(session)
	}

	amount, err := decimal.NewFromString(r.OrderAmount.String())
	if err != nil {
		amount = decimal.Zero
	}

	order := &gatewaytypes.Order{
		ID:                id,
		GatewayRef:        gatewayRef,
		Amount:            amount,
		Currency:          r.OrderCurrency,
		RawStatus:         r.OrderStatus,
		SessionHandle:     session,
		HostedCheckoutURL: hosted,
		Customer: gatewaytypes.Customer{
			ID:    r.CustomerDetails.CustomerID,
			Phone: r.CustomerDetails.CustomerPhone,
			Email: r.CustomerDetails.CustomerEmail,
		},
	}
	if r.OrderStatus != "" {
		order.Status = gatewaytypes.MapStatus(r.OrderStatus)
	}
	return order
}

// rawID accepts cf_order_id as either a JSON string or number.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody])
	}
	return string(body)
}
