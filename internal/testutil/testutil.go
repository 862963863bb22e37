// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront-backend/database"
)

// SetupTestDatabase creates a migrated in-memory SQLite database that is
// closed when the test ends
func SetupTestDatabase(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Initialize(":memory:", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

// SetupFileTestDatabase creates a migrated SQLite file under a temp dir,
// opened with the same pooled settings as production
func SetupFileTestDatabase(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "storefront.db"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

// CreateTestProduct inserts a product with an empty review aggregate
func CreateTestProduct(t *testing.T, db *sql.DB, id int, name string, price float64, categories ...string) {
	t.Helper()

	category, err := json.Marshal(append([]string{}, categories...))
	require.NoError(t, err)
	_, err = db.Exec(`
		INSERT INTO products (id, name, price, category, images, description, date_added)
		VALUES (?, ?, ?, ?, '[]', '', ?)`,
		id, name, price, string(category), time.Date(2024, 1, 1, 0, 0, id, 0, time.UTC))
	require.NoError(t, err)
}

// CreateTestOrder inserts a confirmed order for the given customer
// containing one unit of each product
func CreateTestOrder(t *testing.T, db *sql.DB, orderID, firstname, lastname string, productRefs ...int) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO orders (order_id, date, firstname, lastname, email, phone, total,
			payment_status, gateway_order_id, gateway_payment_id, gateway_signature)
		VALUES (?, ?, ?, ?, 'buyer@example.com', '5550100', 10, 'confirmed', ?, 'pay_test', 'sig')`,
		orderID, time.Now().UTC(), firstname, lastname, orderID)
	require.NoError(t, err)

	for i, ref := range productRefs {
		_, err := db.Exec(`
			INSERT INTO order_items (order_id, position, product_ref, name, quantity, price)
			VALUES (?, ?, ?, ?, 1, 10)`, orderID, i, ref, fmt.Sprintf("Product %d", ref))
		require.NoError(t, err)
	}
}

// MakeRequest sends a JSON request through the router
func MakeRequest(router http.Handler, method, url string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, _ := http.NewRequest(method, url, reqBody)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// AssertSuccessResponse asserts the status code and a success envelope
func AssertSuccessResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int) map[string]any {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, w.Body.String())

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, true, response["success"])
	return response
}

// AssertErrorResponse asserts the status code and a failure envelope
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int) map[string]any {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, w.Body.String())

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, false, response["success"])
	return response
}

func init() {
	gin.SetMode(gin.TestMode)
}
