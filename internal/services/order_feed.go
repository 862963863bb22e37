package services

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"storefront-backend/internal/models"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = (feedPongWait * 9) / 10
	feedSendBuffer = 64
)

// FeedMessage is pushed to admin websocket clients
type FeedMessage struct {
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// feedClient is one connected admin console
type feedClient struct {
	id   string
	conn *websocket.Conn
	send chan FeedMessage
	feed *OrderFeed
}

// OrderFeed keeps the set of connected admin consoles and pushes each
// confirmed order to all of them
type OrderFeed struct {
	clients    map[*feedClient]bool
	broadcast  chan FeedMessage
	register   chan *feedClient
	unregister chan *feedClient
	done       chan struct{}
	stopOnce   sync.Once

	mutex    sync.RWMutex
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewOrderFeed creates the feed and starts its hub loop
func NewOrderFeed(allowedOrigins []string, logger *zap.Logger) *OrderFeed {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	f := &OrderFeed{
		clients:    make(map[*feedClient]bool),
		broadcast:  make(chan FeedMessage, 16),
		register:   make(chan *feedClient),
		unregister: make(chan *feedClient),
		done:       make(chan struct{}),
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(origins) == 0 || origins["*"] || origins[origin]
			},
		},
	}
	go f.run()
	return f
}

func (f *OrderFeed) run() {
	for {
		select {
		case client := <-f.register:
			f.mutex.Lock()
			f.clients[client] = true
			f.mutex.Unlock()

			select {
			case client.send <- FeedMessage{Type: "connected", Message: "Subscribed to order feed"}:
			default:
			}

		case client := <-f.unregister:
			f.mutex.Lock()
			if _, ok := f.clients[client]; ok {
				delete(f.clients, client)
				close(client.send)
			}
			f.mutex.Unlock()

		case message := <-f.broadcast:
			f.mutex.Lock()
			for client := range f.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer
					close(client.send)
					delete(f.clients, client)
				}
			}
			f.mutex.Unlock()

		case <-f.done:
			f.mutex.Lock()
			for client := range f.clients {
				close(client.send)
				delete(f.clients, client)
			}
			f.mutex.Unlock()
			return
		}
	}
}

// Stop disconnects every client and ends the hub loop
func (f *OrderFeed) Stop() {
	f.stopOnce.Do(func() { close(f.done) })
}

// ClientCount returns the number of connected consoles
func (f *OrderFeed) ClientCount() int {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return len(f.clients)
}

// PublishOrder pushes a confirmed order to every console. It never blocks
// the caller.
func (f *OrderFeed) PublishOrder(order *models.Order) {
	select {
	case f.broadcast <- FeedMessage{Type: EventOrderConfirmed, Data: order}:
	case <-f.done:
	default:
		f.logger.Warn("order feed is saturated, dropping message", zap.String("order_id", order.OrderID))
	}
}

// HandleWebSocket upgrades an admin request to a feed subscription
func (f *OrderFeed) HandleWebSocket(c *gin.Context) {
	conn, err := f.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &feedClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan FeedMessage, feedSendBuffer),
		feed: f,
	}

	select {
	case f.register <- client:
	case <-f.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump only watches for close and pong frames; consoles never send data
func (c *feedClient) readPump() {
	defer func() {
		select {
		case c.feed.unregister <- c:
		case <-c.feed.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.feed.logger.Debug("order feed client error", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}
	}
}

func (c *feedClient) writePump() {
	ticker := time.NewTicker(feedPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.feed.logger.Debug("order feed write failed", zap.String("client_id", c.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
