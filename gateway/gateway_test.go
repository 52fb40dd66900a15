package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/sweetshop/pkg/cart"
	"github.com/example/sweetshop/pkg/catalog"
	"github.com/example/sweetshop/pkg/checkout"
	"github.com/example/sweetshop/pkg/config"
	"github.com/example/sweetshop/pkg/models"
	"github.com/example/sweetshop/pkg/orders"
)

func setupGateway(t *testing.T) *Gateway {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.CartItem{}, &models.Order{}, &models.OrderItem{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	log := zap.NewNop()
	gw := NewGateway(&config.Config{}, log,
		catalog.NewService(db, nil, nil, log),
		cart.NewService(db, log),
		checkout.NewEngine(db, nil, nil, log),
		orders.NewService(db, nil, nil, log))
	gw.SetupRoutes()
	return gw
}

func do(t *testing.T, gw *Gateway, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	gw.Router().ServeHTTP(w, req)
	return w
}

var (
	asAlice = map[string]string{"X-User-ID": "alice"}
	asAdmin = map[string]string{"X-User-ID": "root", "X-User-Role": "admin"}
)

func TestIdentityRequired(t *testing.T) {
	gw := setupGateway(t)

	w := do(t, gw, http.MethodGet, "/api/v1/products", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutesForbiddenForCustomers(t *testing.T) {
	gw := setupGateway(t)

	w := do(t, gw, http.MethodPost, "/api/v1/products",
		map[string]interface{}{"name": "Dark Truffle", "price": 4.5, "stock": 5}, asAlice)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, gw, http.MethodGet, "/api/v1/admin/orders", nil, asAlice)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestShoppingFlow(t *testing.T) {
	gw := setupGateway(t)

	// Admin stocks the shelf.
	w := do(t, gw, http.MethodPost, "/api/v1/products",
		map[string]interface{}{"name": "Dark Truffle", "category": "chocolate", "price": 4.5, "stock": 5}, asAdmin)
	require.Equal(t, http.StatusCreated, w.Code)
	var product models.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &product))

	// Alice fills her cart and checks out.
	w = do(t, gw, http.MethodPost, "/api/v1/cart",
		map[string]interface{}{"product_id": product.ID, "quantity": 3}, asAlice)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, gw, http.MethodPost, "/api/v1/orders/checkout",
		map[string]interface{}{"payment_mode": "PAYPAL", "payment_details": "tok_1", "shipping_address": "1 Candy Lane"}, asAlice)
	require.Equal(t, http.StatusCreated, w.Code)
	var order models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.Equal(t, models.StatusPending, order.Status)
	assert.InDelta(t, 13.5, order.TotalAmount, 1e-9)

	// Stock went down, her cart is empty, and the order is hers to read.
	w = do(t, gw, http.MethodGet, "/api/v1/products/"+product.ID, nil, asAlice)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &product))
	assert.Equal(t, 2, product.Stock)

	w = do(t, gw, http.MethodGet, "/api/v1/orders/"+order.ID, nil, asAlice)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, gw, http.MethodGet, "/api/v1/orders/"+order.ID, nil, map[string]string{"X-User-ID": "bob"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Admin ships it with a tracking number.
	w = do(t, gw, http.MethodPut, "/api/v1/admin/orders/"+order.ID+"/status",
		map[string]interface{}{"status": "PROCESSING"}, asAdmin)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, gw, http.MethodPut, "/api/v1/admin/orders/"+order.ID+"/tracking",
		map[string]interface{}{"tracking_number": "T1"}, asAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.Equal(t, models.StatusShipped, order.Status)
	assert.Equal(t, "T1", order.TrackingNumber)
}

func TestErrorMapping(t *testing.T) {
	gw := setupGateway(t)

	w := do(t, gw, http.MethodGet, "/api/v1/products/missing", nil, asAlice)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, gw, http.MethodPost, "/api/v1/orders/checkout", nil, asAlice)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Purchasing more than the shelf holds conflicts.
	w = do(t, gw, http.MethodPost, "/api/v1/products",
		map[string]interface{}{"name": "Milk Fudge", "price": 2.0, "stock": 1}, asAdmin)
	require.Equal(t, http.StatusCreated, w.Code)
	var product models.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &product))

	w = do(t, gw, http.MethodPost, "/api/v1/products/"+product.ID+"/purchase",
		map[string]interface{}{"quantity": 2}, asAlice)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, gw, http.MethodPut, "/api/v1/admin/orders/missing/status",
		map[string]interface{}{"status": "TELEPORTED"}, asAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
