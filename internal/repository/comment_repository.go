package repository

import (
	"context"
	"database/sql"

	"storefront-backend/internal/models"
)

// CommentRepository is the review store. Comments are append-only.
type CommentRepository struct {
	db *sql.DB
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create stores a new comment
func (r *CommentRepository) Create(ctx context.Context, c *models.Comment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO comments (id, product_id, username, comment, rating, verified_purchase, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ProductID, c.Username, c.Comment, c.Rating, c.VerifiedPurchase, c.CreatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return models.NewError(models.ErrConflict, "Comment already exists", err)
	}
	if err != nil {
		return models.StoreError("failed to create comment", err)
	}
	return nil
}

func commentOrder(sort models.CommentSort) string {
	switch sort {
	case models.CommentSortOldest:
		return " ORDER BY created_at ASC, id ASC"
	case models.CommentSortHighest:
		return " ORDER BY rating DESC, created_at DESC, id DESC"
	case models.CommentSortLowest:
		return " ORDER BY rating ASC, created_at DESC, id DESC"
	}
	return " ORDER BY created_at DESC, id DESC"
}

// List returns the comments of one product. The query must already be
// normalized.
func (r *CommentRepository) List(ctx context.Context, q models.CommentQuery) ([]*models.Comment, error) {
	query := `SELECT id, product_id, username, comment, rating, verified_purchase, created_at
		FROM comments WHERE product_id = ?`
	args := []any{q.ProductID}
	if q.Stars != 0 {
		query += " AND rating = ?"
		args = append(args, q.Stars)
	}
	query += commentOrder(q.Sort)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, models.StoreError("failed to query comments", err)
	}
	defer rows.Close()

	comments := []*models.Comment{}
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.ProductID, &c.Username, &c.Comment, &c.Rating,
			&c.VerifiedPurchase, &c.CreatedAt); err != nil {
			return nil, models.StoreError("failed to scan comment", err)
		}
		comments = append(comments, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, models.StoreError("failed to iterate comments", err)
	}
	return comments, nil
}

// Ratings returns every rating recorded for a product
func (r *CommentRepository) Ratings(ctx context.Context, productID int) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT rating FROM comments WHERE product_id = ?", productID)
	if err != nil {
		return nil, models.StoreError("failed to query ratings", err)
	}
	defer rows.Close()

	ratings := []int{}
	for rows.Next() {
		var rating int
		if err := rows.Scan(&rating); err != nil {
			return nil, models.StoreError("failed to scan rating", err)
		}
		ratings = append(ratings, rating)
	}
	if err := rows.Err(); err != nil {
		return nil, models.StoreError("failed to iterate ratings", err)
	}
	return ratings, nil
}
