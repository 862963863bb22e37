package services

import (
	"context"

	"storefront-backend/internal/models"
)

// ProductStore is the catalog store used by the services
type ProductStore interface {
	List(ctx context.Context, q models.ProductQuery) ([]*models.Product, int, error)
	Get(ctx context.Context, id int) (*models.Product, error)
	GetByIDs(ctx context.Context, ids []int) (map[int]*models.Product, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, in *models.ProductInput) (*models.Product, error)
	Delete(ctx context.Context, id int) error
	Categories(ctx context.Context) ([]string, error)
	UpdateAggregate(ctx context.Context, id int, agg models.Aggregate) (bool, error)
}

// CommentStore is the review store
type CommentStore interface {
	Create(ctx context.Context, c *models.Comment) error
	List(ctx context.Context, q models.CommentQuery) ([]*models.Comment, error)
	Ratings(ctx context.Context, productID int) ([]int, error)
}

// OrderStore is the order store
type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
	Get(ctx context.Context, orderID string) (*models.Order, error)
	List(ctx context.Context, q models.OrderQuery) ([]*models.Order, int, error)
	All(ctx context.Context) ([]*models.Order, error)
	PurchaserNames(ctx context.Context, productRef int) ([]models.PurchaserName, error)
	UpdateShipping(ctx context.Context, orderID string, status models.ShippingStatus, tracking *models.Tracking) (*models.Order, error)
}

// ConfigStore is the key/value config store
type ConfigStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// OrderNotifier is told about every confirmed order
type OrderNotifier interface {
	PublishOrder(order *models.Order)
}
