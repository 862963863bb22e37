package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront-backend/internal/models"
	"storefront-backend/internal/services"
)

// ReviewHandlers serves product reviews
type ReviewHandlers struct {
	reviews *services.ReviewService
}

// NewReviewHandlers creates new review handlers
func NewReviewHandlers(reviews *services.ReviewService) *ReviewHandlers {
	return &ReviewHandlers{reviews: reviews}
}

// CreateReview stores a review and returns the refreshed product rating
func (h *ReviewHandlers) CreateReview(c *gin.Context) {
	productID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, models.NotFoundf("Product not found"))
		return
	}

	var in models.ReviewInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	result, err := h.reviews.SubmitReview(c.Request.Context(), productID, in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":         true,
		"newComment":      result.Comment,
		"newRating":       result.Rating,
		"newReviewsCount": result.ReviewsCount,
	})
}

// GetComments lists the reviews of a product, newest first by default
func (h *ReviewHandlers) GetComments(c *gin.Context) {
	productID, ok := intParam(c, "productId")
	if !ok {
		return
	}

	q := models.CommentQuery{
		ProductID: productID,
		Sort:      models.CommentSort(c.Query("sort")),
	}
	if stars := c.Query("stars"); stars != "" {
		n, err := strconv.Atoi(stars)
		if err != nil {
			badRequest(c, "Stars must be between 1 and 5", err)
			return
		}
		q.Stars = n
	}

	comments, err := h.reviews.ListComments(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"comments": comments,
	})
}
