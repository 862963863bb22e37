package services

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"storefront-backend/internal/models"
)

// SeedFile is the YAML catalog import format
type SeedFile struct {
	Products []models.ProductInput `yaml:"products"`
	Carousel []int                 `yaml:"carousel"`
	TopPicks []int                 `yaml:"topPicks"`
}

// LoadSeedFile reads and parses a YAML catalog file
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &seed, nil
}

// SeedResult counts what a seed run changed
type SeedResult struct {
	Created int
	Updated int
}

// Seeder imports a catalog. Products are matched by their external id so a
// reseed keeps comments and order history attached.
type Seeder struct {
	catalog *CatalogService
	curated *CuratedService
	logger  *zap.Logger
}

// NewSeeder creates a new seeder
func NewSeeder(catalog *CatalogService, curated *CuratedService, logger *zap.Logger) *Seeder {
	return &Seeder{catalog: catalog, curated: curated, logger: logger}
}

// Seed creates missing products, updates existing ones and replaces the
// curated lists that the file names
func (s *Seeder) Seed(ctx context.Context, seed *SeedFile) (*SeedResult, error) {
	result := &SeedResult{}
	for i := range seed.Products {
		in := seed.Products[i]
		_, err := s.catalog.CreateProduct(ctx, &in)
		if errors.Is(err, models.ErrConflict) {
			if _, err := s.catalog.UpdateProduct(ctx, in.ID, &in); err != nil {
				return nil, fmt.Errorf("failed to update product %d: %w", in.ID, err)
			}
			result.Updated++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create product %d: %w", in.ID, err)
		}
		result.Created++
	}

	lists := []struct {
		kind models.CuratedKind
		ids  []int
	}{
		{models.CarouselIDs, seed.Carousel},
		{models.TopPickIDs, seed.TopPicks},
	}
	for _, l := range lists {
		if l.ids == nil {
			continue
		}
		if err := s.curated.PutList(ctx, &models.CuratedList{Kind: l.kind, ProductIDs: l.ids}); err != nil {
			return nil, fmt.Errorf("failed to save %s list: %w", l.kind, err)
		}
	}

	s.logger.Info("catalog seeded", zap.Int("created", result.Created), zap.Int("updated", result.Updated))
	return result, nil
}
