package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"storefront-backend/internal/models"
)

const productColumns = `id, name, price, original_price, category, images, description,
	rating, reviews_count, date_added`

// ProductRepository is the catalog store
type ProductRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	var originalPrice decimal.NullDecimal
	var category, images string

	err := row.Scan(
		&p.ID, &p.Name, &p.Price, &originalPrice, &category, &images, &p.Description,
		&p.Rating, &p.ReviewsCount, &p.DateAdded,
	)
	if err != nil {
		return nil, err
	}
	if originalPrice.Valid {
		v := originalPrice.Decimal
		p.OriginalPrice = &v
	}
	p.Category = decodeStrings(category)
	p.Images = decodeStrings(images)
	return &p, nil
}

func productFilter(q models.ProductQuery) (string, []any) {
	var conditions []string
	var args []any

	if q.Category != "" {
		conditions = append(conditions,
			"EXISTS (SELECT 1 FROM json_each(products.category) WHERE json_each.value = ?)")
		args = append(args, q.Category)
	}
	if q.Search != "" {
		if id, err := strconv.Atoi(q.Search); err == nil {
			conditions = append(conditions, `(id = ? OR casefold(name) LIKE ? ESCAPE '\')`)
			args = append(args, id, likePattern(strings.ToLower(q.Search)))
		} else {
			conditions = append(conditions, `casefold(name) LIKE ? ESCAPE '\'`)
			args = append(args, likePattern(strings.ToLower(q.Search)))
		}
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func productOrder(sort models.ProductSort) string {
	switch sort {
	case models.SortNewest:
		return " ORDER BY date_added DESC, id DESC"
	case models.SortPriceAsc:
		return " ORDER BY price ASC, id ASC"
	case models.SortPriceDesc:
		return " ORDER BY price DESC, id ASC"
	}
	return " ORDER BY id ASC"
}

// List returns one page of products and the total number of matches. The
// query must already be normalized.
func (r *ProductRepository) List(ctx context.Context, q models.ProductQuery) ([]*models.Product, int, error) {
	where, args := productFilter(q)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products"+where, args...).Scan(&total); err != nil {
		return nil, 0, models.StoreError("failed to count products", err)
	}

	query := "SELECT " + productColumns + " FROM products" + where + productOrder(q.Sort) + " LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, q.Limit, q.Offset())...)
	if err != nil {
		return nil, 0, models.StoreError("failed to query products", err)
	}
	defer rows.Close()

	products := []*models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, models.StoreError("failed to scan product", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, models.StoreError("failed to iterate products", err)
	}

	return products, total, nil
}

// Get retrieves a product by its external id
func (r *ProductRepository) Get(ctx context.Context, id int) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = ?", id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFoundf("Product not found")
	}
	if err != nil {
		return nil, models.StoreError("failed to get product", err)
	}
	return p, nil
}

// GetByIDs returns the products that exist among ids, keyed by id
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int) (map[int]*models.Product, error) {
	found := make(map[int]*models.Product, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := "SELECT " + productColumns + " FROM products WHERE id IN (" + placeholders(len(ids)) + ")"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, models.StoreError("failed to query products", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, models.StoreError("failed to scan product", err)
		}
		found[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, models.StoreError("failed to iterate products", err)
	}
	return found, nil
}

// Create inserts a product. A duplicate id is a conflict.
func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	category, err := encodeStrings(p.Category)
	if err != nil {
		return models.NewError(models.ErrValidation, "Invalid category list", err)
	}
	images, err := encodeStrings(p.Images)
	if err != nil {
		return models.NewError(models.ErrValidation, "Invalid image list", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price, original_price, category, images, description,
			rating, reviews_count, date_added)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Price, p.OriginalPrice, category, images, p.Description,
		p.Rating, p.ReviewsCount, p.DateAdded.UTC(),
	)
	if isUniqueViolation(err) {
		return models.NewError(models.ErrConflict, "A product with this id already exists", err)
	}
	if err != nil {
		return models.StoreError("failed to create product", err)
	}
	return nil
}

// Update replaces the writable fields of a product. The review aggregate
// and date added are left untouched.
func (r *ProductRepository) Update(ctx context.Context, in *models.ProductInput) (*models.Product, error) {
	category, err := encodeStrings(in.Category)
	if err != nil {
		return nil, models.NewError(models.ErrValidation, "Invalid category list", err)
	}
	images, err := encodeStrings(in.Images)
	if err != nil {
		return nil, models.NewError(models.ErrValidation, "Invalid image list", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, price = ?, original_price = ?, category = ?, images = ?, description = ?
		WHERE id = ?`,
		strings.TrimSpace(in.Name), in.Price, in.OriginalPrice, category, images, in.Description, in.ID,
	)
	if err != nil {
		return nil, models.StoreError("failed to update product", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, models.NotFoundf("Product not found")
	}

	return r.Get(ctx, in.ID)
}

// Delete removes a product. Its comments and historical order lines are
// kept since they reference the product by external id.
func (r *ProductRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return models.StoreError("failed to delete product", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return models.NotFoundf("Product not found")
	}
	return nil
}

// Categories lists the distinct categories in use, sorted
func (r *ProductRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT json_each.value
		FROM products, json_each(products.category)
		WHERE json_each.value <> ''
		ORDER BY json_each.value`)
	if err != nil {
		return nil, models.StoreError("failed to query categories", err)
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, models.StoreError("failed to scan category", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, models.StoreError("failed to iterate categories", err)
	}
	return categories, nil
}

// UpdateAggregate writes a freshly computed review aggregate. The write is
// skipped when the stored count is already larger, since comments are
// append-only and a smaller count can only come from a stale read. It
// reports whether the row was written.
func (r *ProductRepository) UpdateAggregate(ctx context.Context, id int, agg models.Aggregate) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products SET rating = ?, reviews_count = ?
		WHERE id = ? AND reviews_count <= ?`,
		agg.Rating, agg.ReviewsCount, id, agg.ReviewsCount,
	)
	if err != nil {
		return false, models.StoreError("failed to update product rating", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, models.StoreError("failed to update product rating", err)
	}
	return n > 0, nil
}
