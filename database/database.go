package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// DriverName is the sqlite3 driver with the storefront SQL functions loaded
const DriverName = "sqlite3_storefront"

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			// SQLite's own lower() and LIKE only fold ASCII
			return conn.RegisterFunc("casefold", strings.ToLower, true)
		},
	})
}

// Initialize creates and returns a database connection
func Initialize(databaseURL string, logger *zap.Logger) (*sql.DB, error) {
	// Add SQLite-specific parameters for better concurrent access
	if databaseURL != ":memory:" && !strings.Contains(databaseURL, "?") {
		databaseURL += "?_busy_timeout=30000&_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=1"
	}

	db, err := sql.Open(DriverName, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A private in-memory database only lives on a single connection
	if strings.HasPrefix(databaseURL, ":memory:") {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
	}
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA busy_timeout = 30000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = memory",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			logger.Warn("failed to set pragma", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	logger.Info("database connection established", zap.String("url", databaseURL))
	return db, nil
}

// Migrate runs database migrations
func Migrate(db *sql.DB) error {
	migrations := []string{
		createProductsTable,
		createCommentsTable,
		createOrdersTable,
		createOrderItemsTable,
		createConfigTable,
		createIndexes,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

// Products are keyed by their externally assigned id. category and images
// hold JSON arrays.
const createProductsTable = `
CREATE TABLE IF NOT EXISTS products (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	price REAL NOT NULL CHECK (price >= 0),
	original_price REAL,
	category TEXT NOT NULL DEFAULT '[]',
	images TEXT NOT NULL DEFAULT '[]',
	description TEXT NOT NULL DEFAULT '',
	rating REAL NOT NULL DEFAULT 0,
	reviews_count INTEGER NOT NULL DEFAULT 0,
	date_added DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Comments reference products by external id without a foreign key so
// products can be reseeded without losing reviews.
const createCommentsTable = `
CREATE TABLE IF NOT EXISTS comments (
	id TEXT PRIMARY KEY,
	product_id INTEGER NOT NULL,
	username TEXT NOT NULL,
	comment TEXT NOT NULL,
	rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
	verified_purchase BOOLEAN NOT NULL DEFAULT FALSE,
	created_at DATETIME NOT NULL
)`

const createOrdersTable = `
CREATE TABLE IF NOT EXISTS orders (
	order_id TEXT PRIMARY KEY,
	date DATETIME NOT NULL,
	firstname TEXT NOT NULL,
	lastname TEXT NOT NULL,
	email TEXT NOT NULL,
	phone TEXT NOT NULL,
	address TEXT NOT NULL DEFAULT '',
	city TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT '',
	postal_code TEXT NOT NULL DEFAULT '',
	country TEXT NOT NULL DEFAULT '',
	total REAL NOT NULL CHECK (total >= 0),
	payment_status TEXT NOT NULL,
	gateway_order_id TEXT NOT NULL,
	gateway_payment_id TEXT NOT NULL,
	gateway_signature TEXT NOT NULL,
	shipping_status TEXT NOT NULL DEFAULT 'Pending',
	tracking_carrier TEXT,
	tracking_number TEXT
)`

const createOrderItemsTable = `
CREATE TABLE IF NOT EXISTS order_items (
	order_id TEXT NOT NULL REFERENCES orders(order_id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	product_ref INTEGER NOT NULL,
	name TEXT NOT NULL,
	quantity INTEGER NOT NULL CHECK (quantity >= 1),
	price REAL NOT NULL CHECK (price >= 0),
	PRIMARY KEY (order_id, position)
)`

const createConfigTable = `
CREATE TABLE IF NOT EXISTS config (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

const createIndexes = `
CREATE INDEX IF NOT EXISTS idx_comments_product ON comments(product_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_order_items_product ON order_items(product_ref);
CREATE INDEX IF NOT EXISTS idx_orders_date ON orders(date DESC);
CREATE INDEX IF NOT EXISTS idx_products_date_added ON products(date_added DESC);
CREATE INDEX IF NOT EXISTS idx_products_price ON products(price)`
