package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront-backend/internal/models"
	"storefront-backend/internal/services"
)

// OrderHandlers serves the admin order console
type OrderHandlers struct {
	orders *services.OrderService
	feed   *services.OrderFeed
}

// NewOrderHandlers creates new order handlers
func NewOrderHandlers(orders *services.OrderService, feed *services.OrderFeed) *OrderHandlers {
	return &OrderHandlers{orders: orders, feed: feed}
}

// GetOrders lists orders newest first, optionally filtered by shipping status
func (h *OrderHandlers) GetOrders(c *gin.Context) {
	q := models.OrderQuery{
		Page:  queryInt(c, "page"),
		Limit: queryInt(c, "limit"),
	}
	if status := c.Query("status"); status != "" {
		parsed, err := models.ParseShippingStatus(status)
		if err != nil {
			respondError(c, err)
			return
		}
		q.ShippingStatus = parsed
	}

	page, err := h.orders.ListOrders(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"orders":      page.Orders,
		"totalPages":  page.TotalPages,
		"currentPage": page.CurrentPage,
		"totalOrders": page.TotalOrders,
	})
}

// GetOrder returns a single order
func (h *OrderHandlers) GetOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"order":   order,
	})
}

// UpdateShipping sets the shipping status and tracking of an order
func (h *OrderHandlers) UpdateShipping(c *gin.Context) {
	var update models.ShippingUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	order, err := h.orders.UpdateShipping(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"order":   order,
	})
}

// ExportOrders downloads every order as CSV
func (h *OrderHandlers) ExportOrders(c *gin.Context) {
	// Buffered so a store failure can still be reported as JSON
	var buf bytes.Buffer
	if err := h.orders.ExportCSV(c.Request.Context(), &buf); err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("orders-%s.csv", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// StreamOrders upgrades to a websocket that receives each confirmed order
func (h *OrderHandlers) StreamOrders(c *gin.Context) {
	h.feed.HandleWebSocket(c)
}
