package services

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront-backend/internal/models"
)

func TestOrderFeedBroadcastsConfirmedOrders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	feed := NewOrderFeed(nil, zap.NewNop())
	defer feed.Stop()

	router := gin.New()
	router.GET("/stream", feed.HandleWebSocket)
	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello map[string]any
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "connected", hello["type"])
	assert.Equal(t, 1, feed.ClientCount())

	feed.PublishOrder(&models.Order{OrderID: "order_A1", Total: decimal.RequireFromString("99.90")})

	var msg struct {
		Type string       `json:"type"`
		Data models.Order `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, EventOrderConfirmed, msg.Type)
	assert.Equal(t, "order_A1", msg.Data.OrderID)
	assert.Equal(t, "99.9", msg.Data.Total.String())
}

func TestOrderFeedRejectsUnknownOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	feed := NewOrderFeed([]string{"https://admin.example.com"}, zap.NewNop())
	defer feed.Stop()

	router := gin.New()
	router.GET("/stream", feed.HandleWebSocket)
	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/stream"
	header := map[string][]string{"Origin": {"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	assert.Error(t, err)
	if resp != nil {
		assert.Equal(t, 403, resp.StatusCode)
	}
}
