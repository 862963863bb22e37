package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-backend/internal/models"
	"storefront-backend/internal/services"
)

// ProductHandlers serves the catalog
type ProductHandlers struct {
	catalog *services.CatalogService
	curated *services.CuratedService
}

// NewProductHandlers creates new product handlers
func NewProductHandlers(catalog *services.CatalogService, curated *services.CuratedService) *ProductHandlers {
	return &ProductHandlers{catalog: catalog, curated: curated}
}

// GetProducts returns one page of the catalog
func (h *ProductHandlers) GetProducts(c *gin.Context) {
	q := models.ProductQuery{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Sort:     models.ProductSort(c.Query("sort")),
		Page:     queryInt(c, "page"),
		Limit:    queryInt(c, "limit"),
	}

	page, err := h.catalog.ListProducts(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"products":      page.Products,
		"totalPages":    page.TotalPages,
		"currentPage":   page.CurrentPage,
		"totalProducts": page.TotalProducts,
	})
}

// GetProduct returns a single product
func (h *ProductHandlers) GetProduct(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"product": product,
	})
}

// GetCategories lists the categories in use
func (h *ProductHandlers) GetCategories(c *gin.Context) {
	categories, err := h.catalog.Categories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"categories": categories,
	})
}

// GetCollection resolves a curated list to products in list order
func (h *ProductHandlers) GetCollection(c *gin.Context) {
	kind, err := models.ParseCuratedKind(c.Param("kind"))
	if err != nil {
		respondError(c, err)
		return
	}

	products, err := h.curated.Resolve(c.Request.Context(), kind)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"kind":     kind,
		"products": products,
	})
}

// CreateProduct adds a product to the catalog
func (h *ProductHandlers) CreateProduct(c *gin.Context) {
	var in models.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	product, err := h.catalog.CreateProduct(c.Request.Context(), &in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"product": product,
	})
}

// UpdateProduct replaces the writable fields of a product
func (h *ProductHandlers) UpdateProduct(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	var in models.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	product, err := h.catalog.UpdateProduct(c.Request.Context(), id, &in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"product": product,
	})
}

// DeleteProduct removes a product
func (h *ProductHandlers) DeleteProduct(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	if err := h.catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Product deleted",
	})
}
