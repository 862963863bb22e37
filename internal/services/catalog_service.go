package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storefront-backend/internal/models"
)

// CatalogService serves catalog queries and admin product maintenance
type CatalogService struct {
	products ProductStore
	comments CommentStore
	logger   *zap.Logger
	now      func() time.Time
}

// NewCatalogService creates a new catalog service
func NewCatalogService(products ProductStore, comments CommentStore, logger *zap.Logger) *CatalogService {
	return &CatalogService{products: products, comments: comments, logger: logger, now: time.Now}
}

// ListProducts returns one page of the catalog
func (s *CatalogService) ListProducts(ctx context.Context, q models.ProductQuery) (*models.ProductPage, error) {
	q.Normalize()
	products, total, err := s.products.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return &models.ProductPage{
		Products:      products,
		TotalPages:    models.TotalPages(total, q.Limit),
		CurrentPage:   q.Page,
		TotalProducts: total,
	}, nil
}

// GetProduct retrieves a product by id
func (s *CatalogService) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	return s.products.Get(ctx, id)
}

// Categories lists the categories in use
func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	return s.products.Categories(ctx)
}

// CreateProduct adds a product. Comments left under the same id before a
// reseed are folded into its aggregate.
func (s *CatalogService) CreateProduct(ctx context.Context, in *models.ProductInput) (*models.Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	product := in.ToProduct(s.now().UTC())
	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}

	agg, err := RefreshAggregate(ctx, s.products, s.comments, product.ID)
	if err != nil {
		return nil, err
	}
	product.Rating = agg.Rating
	product.ReviewsCount = agg.ReviewsCount

	s.logger.Info("product created", zap.Int("product_id", product.ID))
	return product, nil
}

// UpdateProduct replaces the writable fields of a product
func (s *CatalogService) UpdateProduct(ctx context.Context, id int, in *models.ProductInput) (*models.Product, error) {
	in.ID = id
	if err := in.Validate(); err != nil {
		return nil, err
	}
	product, err := s.products.Update(ctx, in)
	if err != nil {
		return nil, err
	}
	s.logger.Info("product updated", zap.Int("product_id", id))
	return product, nil
}

// DeleteProduct removes a product
func (s *CatalogService) DeleteProduct(ctx context.Context, id int) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("product deleted", zap.Int("product_id", id))
	return nil
}
