package services

import (
	"context"

	"go.uber.org/zap"

	"storefront-backend/internal/models"
)

// CuratedService reads and writes the curated product lists
type CuratedService struct {
	config   ConfigStore
	products ProductStore
	logger   *zap.Logger
}

// NewCuratedService creates a new curated list service
func NewCuratedService(config ConfigStore, products ProductStore, logger *zap.Logger) *CuratedService {
	return &CuratedService{config: config, products: products, logger: logger}
}

// GetList returns the stored ids of a curated list; a missing list is empty
func (s *CuratedService) GetList(ctx context.Context, kind models.CuratedKind) (*models.CuratedList, error) {
	raw, err := s.config.Get(ctx, kind.ConfigKey())
	if err != nil {
		return nil, err
	}
	return models.DecodeCuratedList(kind, raw)
}

// PutList validates and stores a curated list
func (s *CuratedService) PutList(ctx context.Context, list *models.CuratedList) error {
	if err := list.Validate(); err != nil {
		return err
	}
	raw, err := list.Encode()
	if err != nil {
		return models.NewError(models.ErrValidation, "Invalid product id list", err)
	}
	if err := s.config.Put(ctx, list.Kind.ConfigKey(), raw); err != nil {
		return err
	}
	s.logger.Info("curated list saved", zap.String("kind", string(list.Kind)), zap.Int("size", len(list.ProductIDs)))
	return nil
}

// Resolve returns the products of a curated list in list order. Ids that no
// longer resolve to a product are skipped.
func (s *CuratedService) Resolve(ctx context.Context, kind models.CuratedKind) ([]*models.Product, error) {
	list, err := s.GetList(ctx, kind)
	if err != nil {
		return nil, err
	}

	found, err := s.products.GetByIDs(ctx, list.ProductIDs)
	if err != nil {
		return nil, err
	}

	products := make([]*models.Product, 0, len(list.ProductIDs))
	for _, id := range list.ProductIDs {
		if p, ok := found[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}
