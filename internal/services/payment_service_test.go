package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront-backend/config"
	"storefront-backend/internal/models"
)

func testConfig(gatewayURL string) *config.Config {
	return &config.Config{
		Environment:      "test",
		GatewayBaseURL:   gatewayURL,
		GatewayKeyID:     "rzp_test_key",
		GatewayKeySecret: "gateway-secret",
		GatewayCurrency:  "INR",
	}
}

// fakeGateway records the last order request and answers like the real API
func fakeGateway(t *testing.T, status int) (*httptest.Server, *GatewayOrderRequest) {
	t.Helper()
	var last GatewayOrderRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "gateway-secret", pass)

		assert.NoError(t, json.NewDecoder(r.Body).Decode(&last))
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":{"description":"bad request"}}`))
			return
		}
		json.NewEncoder(w).Encode(GatewayOrder{
			ID: "order_GW123", Entity: "order", Amount: last.Amount,
			Currency: last.Currency, Receipt: last.Receipt, Status: "created",
		})
	}))
	t.Cleanup(server.Close)
	return server, &last
}

func TestSignAndVerifyCallback(t *testing.T) {
	secret := []byte("gateway-secret")
	tests := []struct {
		orderID   string
		paymentID string
	}{
		{"order_1", "pay_1"},
		{"order_GW123", "pay_XYZ789"},
		{"", ""},
		{"order|with|pipes", "pay"},
	}

	for _, tt := range tests {
		t.Run(tt.orderID, func(t *testing.T) {
			sig := Sign(secret, tt.orderID, tt.paymentID)
			assert.Len(t, sig, 64)
			assert.True(t, VerifyCallback(secret, tt.orderID, tt.paymentID, sig))
			assert.False(t, VerifyCallback([]byte("other"), tt.orderID, tt.paymentID, sig))
			assert.False(t, VerifyCallback(secret, tt.orderID+"x", tt.paymentID, sig))

			// Any single character mutation is rejected
			for i := range sig {
				mutated := []byte(sig)
				if mutated[i] == '0' {
					mutated[i] = '1'
				} else {
					mutated[i] = '0'
				}
				assert.False(t, VerifyCallback(secret, tt.orderID, tt.paymentID, string(mutated)), "position %d", i)
			}
			assert.False(t, VerifyCallback(secret, tt.orderID, tt.paymentID, sig[:63]))
			assert.False(t, VerifyCallback(secret, tt.orderID, tt.paymentID, ""))
		})
	}
}

func TestSignKnownVector(t *testing.T) {
	assert.Equal(t,
		"83db50fa4e3dc4ba9d8ba3f0df5a8aa8f6fc00eba09c166911fe77f9a7f959b8",
		Sign([]byte("gateway-secret"), "order_GW123", "pay_XYZ789"))
}

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"499", 49900},
		{"19.99", 1999},
		{"0.005", 1},
		{"10.125", 1013},
		{"0.1", 10},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			minor, ok := ToMinorUnits(decimal.RequireFromString(tt.amount))
			require.True(t, ok)
			assert.Equal(t, tt.want, minor)
		})
	}

	for _, amount := range []string{"184467440737095516.17", "92233720368547758.08", "-92233720368547758.09"} {
		_, ok := ToMinorUnits(decimal.RequireFromString(amount))
		assert.False(t, ok, amount)
	}

	minor, ok := ToMinorUnits(decimal.RequireFromString("92233720368547758.07"))
	require.True(t, ok)
	assert.Equal(t, int64(9223372036854775807), minor)
}

func TestCreateIntent(t *testing.T) {
	server, last := fakeGateway(t, http.StatusOK)
	cfg := testConfig(server.URL)
	svc := NewPaymentService(NewHTTPGatewayClient(cfg), cfg, zap.NewNop())

	amount := decimal.RequireFromString("1299.50")
	intent, err := svc.CreateIntent(context.Background(), &amount)
	require.NoError(t, err)

	assert.Equal(t, "order_GW123", intent.GatewayOrder.ID)
	assert.Equal(t, "rzp_test_key", intent.PublicKeyID)
	assert.Equal(t, int64(129950), last.Amount)
	assert.Equal(t, "INR", last.Currency)
	assert.NotEmpty(t, last.Receipt)
}

func TestCreateIntentRejectsMissingAmount(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:0")
	svc := NewPaymentService(NewHTTPGatewayClient(cfg), cfg, zap.NewNop())

	zero := decimal.Zero
	negative := decimal.NewFromInt(-5)
	wraps := decimal.RequireFromString("184467440737095516.17")
	overflows := decimal.RequireFromString("92233720368547758.08")
	for _, amount := range []*decimal.Decimal{nil, &zero, &negative, &wraps, &overflows} {
		_, err := svc.CreateIntent(context.Background(), amount)
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrValidation))
		assert.True(t, errors.Is(err, models.ErrGateway))
	}
}

func TestCreateIntentGatewayFailure(t *testing.T) {
	server, _ := fakeGateway(t, http.StatusBadRequest)
	cfg := testConfig(server.URL)
	svc := NewPaymentService(NewHTTPGatewayClient(cfg), cfg, zap.NewNop())

	amount := decimal.NewFromInt(10)
	_, err := svc.CreateIntent(context.Background(), &amount)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrGateway))
	assert.False(t, errors.Is(err, models.ErrValidation))
	assert.Equal(t, "Payment gateway unavailable", models.PublicMessage(err))
}
