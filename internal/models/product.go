package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Money renders as a JSON number, matching what clients send
	decimal.MarshalJSONWithoutQuotes = true
}

// Product is a catalog entry. Rating and ReviewsCount are derived from the
// product's comments and are only written by the review pipeline.
type Product struct {
	ID            int              `json:"id"`
	Name          string           `json:"name"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	Category      []string         `json:"category"`
	Images        []string         `json:"images"`
	Description   string           `json:"description"`
	Rating        float64          `json:"rating"`
	ReviewsCount  int              `json:"reviewsCount"`
	DateAdded     time.Time        `json:"dateAdded"`
}

// ProductInput is the writable part of a product
type ProductInput struct {
	ID            int              `json:"id" yaml:"id"`
	Name          string           `json:"name" yaml:"name"`
	Price         decimal.Decimal  `json:"price" yaml:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty" yaml:"originalPrice,omitempty"`
	Category      []string         `json:"category" yaml:"category"`
	Images        []string         `json:"images" yaml:"images"`
	Description   string           `json:"description" yaml:"description"`
}

// Validate checks the fields of a writable product
func (in *ProductInput) Validate() error {
	if in.ID <= 0 {
		return Validationf("Product id must be a positive integer")
	}
	if strings.TrimSpace(in.Name) == "" {
		return Validationf("Product name is required")
	}
	if in.Price.IsNegative() {
		return Validationf("Price must not be negative")
	}
	if in.OriginalPrice != nil && in.OriginalPrice.IsNegative() {
		return Validationf("Original price must not be negative")
	}
	return nil
}

// ToProduct builds a product with an empty aggregate
func (in *ProductInput) ToProduct(now time.Time) *Product {
	category := in.Category
	if category == nil {
		category = []string{}
	}
	images := in.Images
	if images == nil {
		images = []string{}
	}
	return &Product{
		ID:            in.ID,
		Name:          strings.TrimSpace(in.Name),
		Price:         in.Price,
		OriginalPrice: in.OriginalPrice,
		Category:      category,
		Images:        images,
		Description:   in.Description,
		DateAdded:     now,
	}
}

// ProductSort selects the listing order
type ProductSort string

const (
	SortDefault   ProductSort = ""
	SortNewest    ProductSort = "newest"
	SortPriceAsc  ProductSort = "price-asc"
	SortPriceDesc ProductSort = "price-desc"
)

const (
	DefaultPageSize = 12
	MaxPageSize     = 50
)

// ProductQuery describes a catalog listing request
type ProductQuery struct {
	Category string
	Search   string
	Sort     ProductSort
	Page     int
	Limit    int
}

// Normalize clamps paging to its bounds and resets unknown sort keys
func (q *ProductQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	switch q.Sort {
	case SortNewest, SortPriceAsc, SortPriceDesc:
	default:
		q.Sort = SortDefault
	}
	q.Search = strings.TrimSpace(q.Search)
	q.Category = strings.TrimSpace(q.Category)
}

// Offset returns the number of rows to skip
func (q *ProductQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// ProductPage is one page of a catalog listing
type ProductPage struct {
	Products      []*Product `json:"products"`
	TotalPages    int        `json:"totalPages"`
	CurrentPage   int        `json:"currentPage"`
	TotalProducts int        `json:"totalProducts"`
}

// TotalPages returns the number of pages needed for total rows
func TotalPages(total, limit int) int {
	if total == 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
