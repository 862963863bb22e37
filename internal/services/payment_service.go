package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront-backend/config"
	"storefront-backend/internal/models"
	"storefront-backend/internal/utils"
)

// GatewayOrderRequest is the body sent to the gateway to open a payment intent
type GatewayOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// GatewayOrder is the gateway's view of a payment intent
type GatewayOrder struct {
	ID       string `json:"id"`
	Entity   string `json:"entity,omitempty"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status,omitempty"`
}

// GatewayClient opens payment intents with the external payment gateway
type GatewayClient interface {
	CreateOrder(ctx context.Context, req GatewayOrderRequest) (*GatewayOrder, error)
}

// HTTPGatewayClient talks to the gateway's REST API with basic auth
type HTTPGatewayClient struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
}

// NewHTTPGatewayClient creates a gateway client from configuration
func NewHTTPGatewayClient(cfg *config.Config) *HTTPGatewayClient {
	timeout := cfg.GatewayTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPGatewayClient{
		baseURL:   strings.TrimSuffix(cfg.GatewayBaseURL, "/"),
		keyID:     cfg.GatewayKeyID,
		keySecret: cfg.GatewayKeySecret,
		client:    &http.Client{Timeout: timeout},
	}
}

// CreateOrder opens a payment intent
func (c *HTTPGatewayClient) CreateOrder(ctx context.Context, orderReq GatewayOrderRequest) (*GatewayOrder, error) {
	jsonData, err := json.Marshal(orderReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gateway order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach payment gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("payment gateway returned %d: %s", resp.StatusCode, utils.TruncateString(strings.TrimSpace(string(body)), 200))
	}

	var order GatewayOrder
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("payment gateway returned an order without id")
	}
	return &order, nil
}

// PaymentIntent is returned to the client to open the gateway checkout
type PaymentIntent struct {
	GatewayOrder *GatewayOrder `json:"gatewayOrder"`
	PublicKeyID  string        `json:"publicKeyId"`
}

// PaymentService creates payment intents and verifies gateway callbacks
type PaymentService struct {
	gateway  GatewayClient
	keyID    string
	secret   []byte
	currency string
	logger   *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(gateway GatewayClient, cfg *config.Config, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		gateway:  gateway,
		keyID:    cfg.GatewayKeyID,
		secret:   []byte(cfg.GatewayKeySecret),
		currency: cfg.GatewayCurrency,
		logger:   logger,
	}
}

// ToMinorUnits converts an amount to the gateway's integer minor units,
// rounding half away from zero. ok is false when the result does not fit
// in an int64.
func ToMinorUnits(amount decimal.Decimal) (minor int64, ok bool) {
	rounded := amount.Mul(decimal.NewFromInt(100)).Round(0)
	if !rounded.BigInt().IsInt64() {
		return 0, false
	}
	return rounded.IntPart(), true
}

// CreateIntent opens a payment intent for amount in the configured currency
func (s *PaymentService) CreateIntent(ctx context.Context, amount *decimal.Decimal) (*PaymentIntent, error) {
	if amount == nil || !amount.IsPositive() {
		return nil, models.NewError(models.ErrValidation, "A positive order total is required", models.ErrGateway)
	}
	minor, ok := ToMinorUnits(*amount)
	if !ok {
		return nil, models.NewError(models.ErrValidation, "Order total is too large", models.ErrGateway)
	}
	if minor <= 0 {
		return nil, models.NewError(models.ErrValidation, "A positive order total is required", models.ErrGateway)
	}

	order, err := s.gateway.CreateOrder(ctx, GatewayOrderRequest{
		Amount:   minor,
		Currency: s.currency,
		Receipt:  "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20],
	})
	if err != nil {
		s.logger.Error("payment gateway call failed", zap.Int64("amount", minor), zap.Error(err))
		return nil, models.NewError(models.ErrGateway, "Payment gateway unavailable", err)
	}

	return &PaymentIntent{GatewayOrder: order, PublicKeyID: s.keyID}, nil
}

// Sign computes the hex encoded HMAC-SHA256 of "orderId|paymentId"
func Sign(secret []byte, gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCallback reports whether signature is the gateway's signature for
// the given order and payment. The comparison runs in constant time.
func VerifyCallback(secret []byte, gatewayOrderID, paymentID, signature string) bool {
	expected := Sign(secret, gatewayOrderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyCallback checks a callback with the configured gateway secret
func (s *PaymentService) VerifyCallback(gatewayOrderID, paymentID, signature string) bool {
	return VerifyCallback(s.secret, gatewayOrderID, paymentID, signature)
}

// SignCallback signs a callback with the configured gateway secret
func (s *PaymentService) SignCallback(gatewayOrderID, paymentID string) string {
	return Sign(s.secret, gatewayOrderID, paymentID)
}
