package api

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-backend/config"
	"storefront-backend/internal/middleware"
	"storefront-backend/internal/repository"
	"storefront-backend/internal/services"
)

// Services bundles everything the router dispatches to
type Services struct {
	Catalog  *services.CatalogService
	Curated  *services.CuratedService
	Reviews  *services.ReviewService
	Payments *services.PaymentService
	Orders   *services.OrderService
	Auth     services.AdminAuthenticator
	Feed     *services.OrderFeed
}

// NewServices wires the SQLite stores into the storefront services. The
// returned feed must be stopped by the caller.
func NewServices(db *sql.DB, cfg *config.Config, gateway services.GatewayClient, publisher services.EventPublisher, logger *zap.Logger) (*Services, error) {
	auth, err := services.NewAdminAuthService(cfg.AdminSecret, cfg.AdminTokenSecret, cfg.AdminTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create admin auth: %w", err)
	}

	products := repository.NewProductRepository(db)
	comments := repository.NewCommentRepository(db)
	orders := repository.NewOrderRepository(db)
	settings := repository.NewConfigRepository(db)

	feed := services.NewOrderFeed(cfg.AllowedOrigins, logger)
	payments := services.NewPaymentService(gateway, cfg, logger)

	return &Services{
		Catalog:  services.NewCatalogService(products, comments, logger),
		Curated:  services.NewCuratedService(settings, products, logger),
		Reviews:  services.NewReviewService(products, comments, orders, publisher, logger),
		Payments: payments,
		Orders:   services.NewOrderService(orders, payments, publisher, feed, logger),
		Auth:     auth,
		Feed:     feed,
	}, nil
}

// SetupRouter builds the HTTP router with the middleware chain and all routes
func SetupRouter(cfg *config.Config, svc *Services, logger *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	security := middleware.DefaultSecurityConfig()
	security.AllowedOrigins = cfg.AllowedOrigins
	security.DisableRateLimiting = cfg.DisableRateLimiting
	if cfg.MaxRequestSize > 0 {
		security.MaxRequestSize = cfg.MaxRequestSize
	}
	if cfg.RateLimitRequests > 0 {
		security.RateLimitRequests = cfg.RateLimitRequests
	}
	if cfg.RateLimitWindow > 0 {
		security.RateLimitWindow = cfg.RateLimitWindow
	}

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger, cfg.IsDevelopment()))
	router.Use(middleware.CORS(security.AllowedOrigins))
	router.Use(middleware.SecurityHeaders(security.MaxRequestSize))
	if !security.DisableRateLimiting {
		router.Use(middleware.NewRateLimiter(security.RateLimitRequests, security.RateLimitWindow, logger).Middleware())
	}

	// Error details are only exposed in development
	development := cfg.IsDevelopment()
	router.Use(func(c *gin.Context) {
		c.Set("development", development)
		c.Next()
	})

	productHandlers := NewProductHandlers(svc.Catalog, svc.Curated)
	reviewHandlers := NewReviewHandlers(svc.Reviews)
	paymentHandlers := NewPaymentHandlers(svc.Payments, svc.Orders)
	orderHandlers := NewOrderHandlers(svc.Orders, svc.Feed)
	adminHandlers := NewAdminHandlers(svc.Auth, svc.Curated, logger)
	authMiddleware := middleware.NewAuthMiddleware(svc.Auth, logger)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
		})
	})

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/products", productHandlers.GetProducts)
		apiGroup.GET("/products/:id", productHandlers.GetProduct)
		apiGroup.POST("/products/:id/reviews", reviewHandlers.CreateReview)
		apiGroup.GET("/comments/:productId", reviewHandlers.GetComments)
		apiGroup.GET("/categories", productHandlers.GetCategories)
		apiGroup.GET("/collections/:kind", productHandlers.GetCollection)

		payments := apiGroup.Group("/payment")
		{
			payments.POST("/create-intent", paymentHandlers.CreateIntent)
			payments.POST("/capture", paymentHandlers.Capture)
		}

		apiGroup.POST("/admin/login", adminHandlers.Login)

		admin := apiGroup.Group("/admin")
		admin.Use(authMiddleware.AdminRequired())
		{
			admin.GET("/config/:kind", adminHandlers.GetConfig)
			admin.PUT("/config/:kind", adminHandlers.PutConfig)

			admin.POST("/products", productHandlers.CreateProduct)
			admin.PUT("/products/:id", productHandlers.UpdateProduct)
			admin.DELETE("/products/:id", productHandlers.DeleteProduct)

			admin.GET("/orders", orderHandlers.GetOrders)
			admin.GET("/orders/export", orderHandlers.ExportOrders)
			admin.GET("/orders/stream", orderHandlers.StreamOrders)
			admin.GET("/orders/:id", orderHandlers.GetOrder)
			admin.PUT("/orders/:id/shipping", orderHandlers.UpdateShipping)
		}
	}

	return router
}
