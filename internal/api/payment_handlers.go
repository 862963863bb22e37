package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"storefront-backend/internal/models"
	"storefront-backend/internal/services"
)

// PaymentHandlers serves the checkout flow
type PaymentHandlers struct {
	payments *services.PaymentService
	orders   *services.OrderService
}

// NewPaymentHandlers creates new payment handlers
func NewPaymentHandlers(payments *services.PaymentService, orders *services.OrderService) *PaymentHandlers {
	return &PaymentHandlers{payments: payments, orders: orders}
}

type createIntentRequest struct {
	Total *decimal.Decimal `json:"total"`
}

// CreateIntent opens a gateway order for the cart total
func (h *PaymentHandlers) CreateIntent(c *gin.Context) {
	var req createIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "A positive order total is required", err)
		return
	}

	intent, err := h.payments.CreateIntent(c.Request.Context(), req.Total)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"gatewayOrder": intent.GatewayOrder,
		"publicKeyId":  intent.PublicKeyID,
	})
}

// Capture verifies the gateway callback and records the order
func (h *PaymentHandlers) Capture(c *gin.Context) {
	var req models.CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	req.ClientIP = c.ClientIP()

	order, err := h.orders.CapturePayment(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"orderId": order.OrderID,
	})
}
