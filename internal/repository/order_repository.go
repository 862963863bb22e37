package repository

import (
	"context"
	"database/sql"
	"errors"

	"storefront-backend/internal/models"
)

const orderColumns = `order_id, date, firstname, lastname, email, phone, address, city, state,
	postal_code, country, total, payment_status, gateway_order_id, gateway_payment_id,
	gateway_signature, shipping_status, tracking_carrier, tracking_number`

// OrderRepository is the order store. Orders are append-only apart from
// shipping status and tracking.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create persists an order and its items atomically. A second order with
// the same id is a conflict.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.StoreError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	var carrier, number sql.NullString
	if o.Tracking != nil {
		carrier = sql.NullString{String: o.Tracking.Carrier, Valid: true}
		number = sql.NullString{String: o.Tracking.Number, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderID, o.Date.UTC(), o.User.Firstname, o.User.Lastname, o.User.Email, o.User.Phone,
		o.User.Address, o.User.City, o.User.State, o.User.PostalCode, o.User.Country,
		o.Total, string(o.PaymentStatus), o.GatewayRef.OrderID, o.GatewayRef.PaymentID,
		o.GatewayRef.Signature, string(o.ShippingStatus), carrier, number,
	)
	if isUniqueViolation(err) {
		return models.NewError(models.ErrConflict, "Order already exists", err)
	}
	if err != nil {
		return models.StoreError("failed to create order", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO order_items (order_id, position, product_ref, name, quantity, price)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return models.StoreError("failed to prepare order items", err)
	}
	defer stmt.Close()

	for i, item := range o.Items {
		if _, err := stmt.ExecContext(ctx, o.OrderID, i, item.ProductRef, item.Name, item.Quantity, item.Price); err != nil {
			return models.StoreError("failed to create order item", err)
		}
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return models.NewError(models.ErrConflict, "Order already exists", err)
		}
		return models.StoreError("failed to commit order", err)
	}
	return nil
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	var paymentStatus, shippingStatus string
	var carrier, number sql.NullString

	err := row.Scan(
		&o.OrderID, &o.Date, &o.User.Firstname, &o.User.Lastname, &o.User.Email, &o.User.Phone,
		&o.User.Address, &o.User.City, &o.User.State, &o.User.PostalCode, &o.User.Country,
		&o.Total, &paymentStatus, &o.GatewayRef.OrderID, &o.GatewayRef.PaymentID,
		&o.GatewayRef.Signature, &shippingStatus, &carrier, &number,
	)
	if err != nil {
		return nil, err
	}
	o.PaymentStatus = models.PaymentStatus(paymentStatus)
	o.ShippingStatus = models.ShippingStatus(shippingStatus)
	if carrier.Valid || number.Valid {
		o.Tracking = &models.Tracking{Carrier: nullString(carrier), Number: nullString(number)}
	}
	o.Items = []models.OrderItem{}
	return &o, nil
}

// loadItems fills in the items of the given orders with one query
func (r *OrderRepository) loadItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*models.Order, len(orders))
	args := make([]any, len(orders))
	for i, o := range orders {
		byID[o.OrderID] = o
		args[i] = o.OrderID
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_ref, name, quantity, price
		FROM order_items
		WHERE order_id IN (`+placeholders(len(orders))+`)
		ORDER BY order_id, position`, args...)
	if err != nil {
		return models.StoreError("failed to query order items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID string
		var item models.OrderItem
		if err := rows.Scan(&orderID, &item.ProductRef, &item.Name, &item.Quantity, &item.Price); err != nil {
			return models.StoreError("failed to scan order item", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return models.StoreError("failed to iterate order items", err)
	}
	return nil
}

// Get retrieves an order with its items
func (r *OrderRepository) Get(ctx context.Context, orderID string) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE order_id = ?", orderID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFoundf("Order not found")
	}
	if err != nil {
		return nil, models.StoreError("failed to get order", err)
	}
	if err := r.loadItems(ctx, []*models.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepository) queryOrders(ctx context.Context, query string, args ...any) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, models.StoreError("failed to query orders", err)
	}

	orders := []*models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, models.StoreError("failed to scan order", err)
		}
		orders = append(orders, o)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, models.StoreError("failed to iterate orders", err)
	}

	// Items are loaded after the order cursor is closed so a single
	// connection pool is never asked for two cursors at once.
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// List returns one page of orders, newest first, and the total number of
// matches. The query must already be normalized.
func (r *OrderRepository) List(ctx context.Context, q models.OrderQuery) ([]*models.Order, int, error) {
	where := ""
	var args []any
	if q.ShippingStatus != "" {
		where = " WHERE shipping_status = ?"
		args = append(args, string(q.ShippingStatus))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, models.StoreError("failed to count orders", err)
	}

	offset := (q.Page - 1) * q.Limit
	orders, err := r.queryOrders(ctx,
		"SELECT "+orderColumns+" FROM orders"+where+" ORDER BY date DESC, order_id ASC LIMIT ? OFFSET ?",
		append(args, q.Limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// All returns every order, newest first
func (r *OrderRepository) All(ctx context.Context) ([]*models.Order, error) {
	return r.queryOrders(ctx, "SELECT "+orderColumns+" FROM orders ORDER BY date DESC, order_id ASC")
}

// PurchaserNames returns the customer names of every order containing the
// given product
func (r *OrderRepository) PurchaserNames(ctx context.Context, productRef int) ([]models.PurchaserName, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT o.firstname, o.lastname
		FROM orders o
		INNER JOIN order_items i ON i.order_id = o.order_id
		WHERE i.product_ref = ?`, productRef)
	if err != nil {
		return nil, models.StoreError("failed to query purchasers", err)
	}
	defer rows.Close()

	names := []models.PurchaserName{}
	for rows.Next() {
		var n models.PurchaserName
		if err := rows.Scan(&n.Firstname, &n.Lastname); err != nil {
			return nil, models.StoreError("failed to scan purchaser", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, models.StoreError("failed to iterate purchasers", err)
	}
	return names, nil
}

// UpdateShipping sets the shipping status and, when given, the tracking
// reference of an order
func (r *OrderRepository) UpdateShipping(ctx context.Context, orderID string, status models.ShippingStatus, tracking *models.Tracking) (*models.Order, error) {
	var result sql.Result
	var err error
	if tracking != nil {
		result, err = r.db.ExecContext(ctx, `
			UPDATE orders SET shipping_status = ?, tracking_carrier = ?, tracking_number = ?
			WHERE order_id = ?`, string(status), tracking.Carrier, tracking.Number, orderID)
	} else {
		result, err = r.db.ExecContext(ctx,
			"UPDATE orders SET shipping_status = ? WHERE order_id = ?", string(status), orderID)
	}
	if err != nil {
		return nil, models.StoreError("failed to update order", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, models.NotFoundf("Order not found")
	}
	return r.Get(ctx, orderID)
}
