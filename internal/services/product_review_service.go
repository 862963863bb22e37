package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront-backend/internal/models"
	"storefront-backend/internal/utils"
)

// ReviewResult is a stored review together with the refreshed aggregate of
// its product
type ReviewResult struct {
	Comment      *models.Comment
	Rating       float64
	ReviewsCount int
}

// ReviewService runs the review submission pipeline
type ReviewService struct {
	products  ProductStore
	comments  CommentStore
	orders    OrderStore
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewReviewService creates a new review service. publisher may be nil.
func NewReviewService(products ProductStore, comments CommentStore, orders OrderStore, publisher EventPublisher, logger *zap.Logger) *ReviewService {
	return &ReviewService{
		products:  products,
		comments:  comments,
		orders:    orders,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// SubmitReview validates and stores a review, then recomputes the product
// aggregate from every stored comment. Each step is a gate: the first
// failure aborts the pipeline.
func (s *ReviewService) SubmitReview(ctx context.Context, productID int, in models.ReviewInput) (*ReviewResult, error) {
	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return nil, err
	}

	if err := in.Validate(); err != nil {
		return nil, err
	}

	verified, err := s.isVerifiedPurchase(ctx, product.ID, in.Username)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		ID:               uuid.NewString(),
		ProductID:        product.ID,
		Username:         utils.SanitizeText(in.Username),
		Comment:          utils.SanitizeText(in.Comment),
		Rating:           in.Rating,
		CreatedAt:        s.now().UTC(),
		VerifiedPurchase: verified,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		s.logger.Error("failed to store review", zap.Int("product_id", product.ID), zap.Error(err))
		return nil, err
	}

	agg, err := RefreshAggregate(ctx, s.products, s.comments, product.ID)
	if err != nil {
		s.logger.Error("failed to refresh product rating", zap.Int("product_id", product.ID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("review stored",
		zap.Int("product_id", product.ID),
		zap.Int("rating", comment.Rating),
		zap.Bool("verified_purchase", verified),
		zap.Float64("product_rating", agg.Rating),
		zap.Int("reviews_count", agg.ReviewsCount),
	)
	publish(ctx, s.publisher, s.logger, NewEvent(EventReviewCreated, comment.ID, comment))

	return &ReviewResult{Comment: comment, Rating: agg.Rating, ReviewsCount: agg.ReviewsCount}, nil
}

// isVerifiedPurchase reports whether any order containing the product was
// placed by a customer whose name contains the reviewer name
func (s *ReviewService) isVerifiedPurchase(ctx context.Context, productID int, username string) (bool, error) {
	purchasers, err := s.orders.PurchaserNames(ctx, productID)
	if err != nil {
		return false, err
	}
	for _, p := range purchasers {
		if p.MatchesReviewer(username) {
			return true, nil
		}
	}
	return false, nil
}

// ListComments returns the reviews of a product
func (s *ReviewService) ListComments(ctx context.Context, q models.CommentQuery) ([]*models.Comment, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	return s.comments.List(ctx, q)
}

// RefreshAggregate recomputes a product's rating and review count from the
// full comment set and stores it. When the store already holds a newer
// aggregate the stored one is returned.
func RefreshAggregate(ctx context.Context, products ProductStore, comments CommentStore, productID int) (models.Aggregate, error) {
	ratings, err := comments.Ratings(ctx, productID)
	if err != nil {
		return models.Aggregate{}, err
	}
	agg := models.ComputeAggregate(ratings)

	written, err := products.UpdateAggregate(ctx, productID, agg)
	if err != nil {
		return models.Aggregate{}, err
	}
	if written {
		return agg, nil
	}

	product, err := products.Get(ctx, productID)
	if err != nil {
		return models.Aggregate{}, err
	}
	return models.Aggregate{Rating: product.Rating, ReviewsCount: product.ReviewsCount}, nil
}
