package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/go_cart/pos-service/internal/backend"
	"github.com/fjod/go_cart/pos-service/internal/cart"
	"github.com/fjod/go_cart/pos-service/internal/catalog"
	"github.com/fjod/go_cart/pos-service/internal/domain"
	"github.com/fjod/go_cart/pos-service/internal/metrics"
	"github.com/fjod/go_cart/pos-service/internal/sale"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	router  http.Handler
	backend *mockBackend
	source  *stubSource
	metrics *metrics.RegisterMetrics
}

func rate(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func setupAPI(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	source := &stubSource{units: []domain.SellableUnit{
		{ID: "u1", Name: "Shirt", Barcode: "111", Active: true, UnitPrice: 1000, TaxRate: rate(5), AvailableQuantity: 5},
		{ID: "u2", Name: "Cap", Barcode: "222", Active: true, UnitPrice: 500, AvailableQuantity: 0},
		{ID: "u3", Name: "Socks", Barcode: "333", Active: true, UnitPrice: 300, AvailableQuantity: 3},
	}}
	index := catalog.NewIndex(source, nil, logger)
	require.NoError(t, index.Refresh(context.Background(), "store-1"))

	mb := newMockBackend()
	m := metrics.NewRegisterMetrics()
	registry := NewRegistry(index, mb, index.StoreID, logger)
	api := NewAPI(registry, index, "store-1", 5*time.Second, logger, m)

	return &testEnv{router: NewRouter(api), backend: mb, source: source, metrics: m}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	recorder := httptest.NewRecorder()
	e.router.ServeHTTP(recorder, httptest.NewRequest(method, path, &buf))
	return recorder
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	env := setupAPI(t)
	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestID_Propagated(t *testing.T) {
	env := setupAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "test-request-123")
	rec := httptest.NewRecorder()

	env.router.ServeHTTP(rec, req)

	assert.Equal(t, "test-request-123", rec.Header().Get("X-Request-ID"))
}

func TestAddItem_ByBarcodeComputesTotals(t *testing.T) {
	env := setupAPI(t)

	rec := env.do(t, http.MethodPost, "/api/v1/registers/r1/cart/items", map[string]interface{}{"barcode": "111", "quantity": 2})
	require.Equal(t, http.StatusCreated, rec.Code)

	view := decode[RegisterResponseDTO](t, rec)
	assert.Equal(t, "r1", view.RegisterID)
	assert.Equal(t, domain.SaleStateBuilding, view.State)
	assert.Equal(t, "store-1", view.Cart.StoreID)
	require.Len(t, view.Cart.Lines, 1)
	assert.Equal(t, domain.Totals{Subtotal: 2000, Tax: 100, Total: 2100}, view.Cart.Totals)

	rec = env.do(t, http.MethodPut, "/api/v1/registers/r1/cart/discount", map[string]int64{"amount": 200})
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[RegisterResponseDTO](t, rec)
	assert.Equal(t, int64(1900), view.Cart.Totals.Total)
}

func TestAddItem_DefaultsToOneUnit(t *testing.T) {
	env := setupAPI(t)

	rec := env.do(t, http.MethodPost, "/api/v1/registers/r1/cart/items", map[string]string{"unit_id": "u3"})
	require.Equal(t, http.StatusCreated, rec.Code)

	view := decode[RegisterResponseDTO](t, rec)
	require.Len(t, view.Cart.Lines, 1)
	assert.Equal(t, int64(1), view.Cart.Lines[0].Quantity)
}

func TestAddItem_OutOfStock(t *testing.T) {
	env := setupAPI(t)

	rec := env.do(t, http.MethodPost, "/api/v1/registers/r1/cart/items", map[string]string{"unit_id": "u2"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "out_of_stock", resp.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.CartRejections.WithLabelValues("out_of_stock")))
}

func TestAddItem_InvalidRequests(t *testing.T) {
	env := setupAPI(t)

	tests := []struct {
		name string
		body interface{}
		code string
		want int
	}{
		{name: "neither id nor barcode", body: map[string]int{"quantity": 1}, code: "invalid_request", want: http.StatusBadRequest},
		{name: "both id and barcode", body: map[string]string{"unit_id": "u1", "barcode": "111"}, code: "invalid_request", want: http.StatusBadRequest},
		{name: "zero quantity", body: map[string]interface{}{"unit_id": "u1", "quantity": 0}, code: "invalid_quantity", want: http.StatusBadRequest},
		{name: "unknown barcode", body: map[string]string{"barcode": "999"}, code: "unit_not_found", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/registers/r1/cart/items", tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestChangeQuantity_InsufficientStock(t *testing.T) {
	env := setupAPI(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/registers/r1/cart/items",
		map[string]interface{}{"unit_id": "u3", "quantity": 3}).Code)

	rec := env.do(t, http.MethodPatch, "/api/v1/registers/r1/cart/items/u3", map[string]int64{"delta": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "insufficient_stock", decode[ErrorResponse](t, rec).Code)

	rec = env.do(t, http.MethodPatch, "/api/v1/registers/r1/cart/items/u3", map[string]int64{"delta": -1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2), decode[RegisterResponseDTO](t, rec).Cart.Lines[0].Quantity)
}

func TestRemoveItemAndClear(t *testing.T) {
	env := setupAPI(t)
	env.do(t, http.MethodPost, "/api/v1/registers/r1/cart/items", map[string]string{"unit_id": "u1"})
	env.do(t, http.MethodPost, "/api/v1/registers/r1/cart/items", map[string]string{"unit_id": "u3"})

	rec := env.do(t, http.MethodDelete, "/api/v1/registers/r1/cart/items/u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[RegisterResponseDTO](t, rec).Cart.Lines, 1)

	rec = env.do(t, http.MethodDelete, "/api/v1/registers/r1/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[RegisterResponseDTO](t, rec)
	assert.Empty(t, view.Cart.Lines)
	assert.Equal(t, domain.Totals{}, view.Cart.Totals)
}

func TestRegisters_AreIsolated(t *testing.T) {
	env := setupAPI(t)
	env.do(t, http.MethodPost, "/api/v1/registers/r1/cart/items", map[string]string{"unit_id": "u1"})

	rec := env.do(t, http.MethodGet, "/api/v1/registers/r2/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[RegisterResponseDTO](t, rec).Cart.Lines)
}

func TestSetCustomerAndStore(t *testing.T) {
	env := setupAPI(t)

	rec := env.do(t, http.MethodPut, "/api/v1/registers/r1/cart/store", map[string]string{"store_id": "store-2"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "store-2", decode[RegisterResponseDTO](t, rec).Cart.StoreID)

	// the loaded catalog carries store-1 stock
	rec = env.do(t, http.MethodPost, "/api/v1/registers/r1/cart/items", map[string]string{"unit_id": "u1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "store_mismatch", decode[ErrorResponse](t, rec).Code)

	rec = env.do(t, http.MethodPut, "/api/v1/registers/r1/cart/store", map[string]string{"store_id": "store-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/registers/r1/cart/items",
		map[string]string{"unit_id": "u1"}).Code)

	rec = env.do(t, http.MethodPut, "/api/v1/registers/r1/cart/store", map[string]string{"store_id": "store-3"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "store_locked", decode[ErrorResponse](t, rec).Code)

	rec = env.do(t, http.MethodPut, "/api/v1/registers/r1/cart/customer", map[string]string{"customer_id": "c-9"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c-9", decode[RegisterResponseDTO](t, rec).Cart.CustomerID)
}

func TestRefreshCatalog_OtherStoreRejectsStaleRegisters(t *testing.T) {
	env := setupAPI(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/registers/r1/cart/items",
		map[string]string{"unit_id": "u1"}).Code)

	rec := env.do(t, http.MethodPost, "/api/v1/catalog/refresh", map[string]string{"store_id": "store-2"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/registers/r1/cart/items", map[string]string{"unit_id": "u3"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "store_mismatch", decode[ErrorResponse](t, rec).Code)
}

func TestAddItemAndChangeQuantity_HugeValuesRejected(t *testing.T) {
	env := setupAPI(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/registers/r1/cart/items",
		map[string]interface{}{"unit_id": "u1", "quantity": 1}).Code)

	rec := env.do(t, http.MethodPost, "/api/v1/registers/r1/cart/items",
		map[string]interface{}{"unit_id": "u1", "quantity": int64(math.MaxInt64)})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "insufficient_stock", decode[ErrorResponse](t, rec).Code)

	rec = env.do(t, http.MethodPatch, "/api/v1/registers/r1/cart/items/u1", map[string]int64{"delta": math.MaxInt64})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/registers/r1/cart", nil)
	view := decode[RegisterResponseDTO](t, rec)
	require.Len(t, view.Cart.Lines, 1)
	assert.Equal(t, int64(1), view.Cart.Lines[0].Quantity)
	assert.Equal(t, domain.Totals{Subtotal: 1000, Tax: 50, Total: 1050}, view.Cart.Totals)
}

func TestParkSale_EmptyCartMakesNoBackendCall(t *testing.T) {
	env := setupAPI(t)

	rec := env.do(t, http.MethodPost, "/api/v1/registers/r1/sales/park", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "empty_sale", decode[ErrorResponse](t, rec).Code)
	assert.Zero(t, env.backend.callCount())
}

func TestParkAndResume(t *testing.T) {
	env := setupAPI(t)
	env.do(t, http.MethodPost, "/api/v1/registers/r1/cart/items", map[string]interface{}{"unit_id": "u1", "quantity": 2})

	rec := env.do(t, http.MethodPost, "/api/v1/registers/r1/sales/park",
		ParkRequestDTO{Order: domain.OrderRef{Reference: "T4", Type: domain.OrderTypeDineIn, Covers: 2}})
	require.Equal(t, http.StatusCreated, rec.Code)
	parked := decode[SaleResponseDTO](t, rec)
	assert.Equal(t, domain.SaleStatusPending, parked.Sale.Status)
	assert.Empty(t, parked.Register.Cart.Lines)

	rec = env.do(t, http.MethodPost, "/api/v1/registers/r2/sales/"+parked.Sale.ID+"/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resumed := decode[SaleResponseDTO](t, rec)
	assert.Equal(t, parked.Sale.ID, resumed.Register.ResumedFrom)
	require.Len(t, resumed.Register.Cart.Lines, 1)
	assert.Equal(t, "Shirt", resumed.Register.Cart.Lines[0].Name)
	assert.Equal(t, domain.Totals{Subtotal: 2000, Tax: 100, Total: 2100}, resumed.Register.Cart.Totals)
	assert.Empty(t, resumed.Shortfalls)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Sales.WithLabelValues("parked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Sales.WithLabelValues("resumed")))
}

func TestResumeSale_NotFound(t *testing.T) {
	env := setupAPI(t)

	rec := env.do(t, http.MethodPost, "/api/v1/registers/r1/sales/missing/resume", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "sale_not_found", decode[ErrorResponse](t, rec).Code)
}

func TestProcessPayment(t *testing.T) {
	env := setupAPI(t)
	env.do(t, http.MethodPost, "/api/v1/registers/r1/cart/items", map[string]interface{}{"unit_id": "u1", "quantity": 2})
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/registers/r1/payment/begin", nil).Code)

	rec := env.do(t, http.MethodPost, "/api/v1/registers/r1/sales/pay", PayRequestDTO{
		Order:   domain.OrderRef{Reference: "A1"},
		Payment: domain.Payment{Method: "cash", Amount: 2100},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decode[SaleResponseDTO](t, rec)
	assert.Equal(t, "INV-0001", resp.Sale.InvoiceNumber)
	assert.Equal(t, int64(2100), resp.Sale.Totals.Total)
	assert.Equal(t, domain.SaleStateCompleted, resp.Register.State)
	assert.Empty(t, resp.Register.Cart.Lines)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Sales.WithLabelValues("completed")))
}

func TestProcessPayment_BackendFailureKeepsCart(t *testing.T) {
	env := setupAPI(t)
	env.do(t, http.MethodPost, "/api/v1/registers/r1/cart/items", map[string]string{"unit_id": "u1"})
	env.backend.createErr = &backend.StatusError{Code: http.StatusInternalServerError, Body: "boom"}

	rec := env.do(t, http.MethodPost, "/api/v1/registers/r1/sales/pay", PayRequestDTO{
		Payment: domain.Payment{Method: "card", Amount: 1050},
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "backend_error", decode[ErrorResponse](t, rec).Code)

	rec = env.do(t, http.MethodGet, "/api/v1/registers/r1/cart", nil)
	assert.Len(t, decode[RegisterResponseDTO](t, rec).Cart.Lines, 1)
}

func TestPaymentModal(t *testing.T) {
	env := setupAPI(t)

	rec := env.do(t, http.MethodPost, "/api/v1/registers/r1/payment/begin", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	env.do(t, http.MethodPost, "/api/v1/registers/r1/cart/items", map[string]string{"unit_id": "u1"})
	rec = env.do(t, http.MethodPost, "/api/v1/registers/r1/payment/begin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.SaleStatePaying, decode[RegisterResponseDTO](t, rec).State)

	rec = env.do(t, http.MethodPost, "/api/v1/registers/r1/payment/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.SaleStateBuilding, decode[RegisterResponseDTO](t, rec).State)

	rec = env.do(t, http.MethodPost, "/api/v1/registers/r1/payment/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "illegal_transition", decode[ErrorResponse](t, rec).Code)
}

func TestRemoveParkedSale(t *testing.T) {
	env := setupAPI(t)
	env.do(t, http.MethodPost, "/api/v1/registers/r1/cart/items", map[string]string{"unit_id": "u1"})
	parked := decode[SaleResponseDTO](t, env.do(t, http.MethodPost, "/api/v1/registers/r1/sales/park", nil))

	rec := env.do(t, http.MethodDelete, "/api/v1/registers/r1/sales/"+parked.Sale.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// already gone counts as removed
	rec = env.do(t, http.MethodDelete, "/api/v1/registers/r1/sales/"+parked.Sale.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCatalogEndpoints(t *testing.T) {
	env := setupAPI(t)

	rec := env.do(t, http.MethodGet, "/api/v1/catalog/units", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[CatalogResponseDTO](t, rec)
	assert.Equal(t, "store-1", list.StoreID)
	assert.Equal(t, 3, list.UnitCount)

	rec = env.do(t, http.MethodGet, "/api/v1/catalog/barcodes/222", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u2", decode[domain.SellableUnit](t, rec).ID)

	rec = env.do(t, http.MethodGet, "/api/v1/catalog/barcodes/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshCatalog(t *testing.T) {
	env := setupAPI(t)
	env.source.units = env.source.units[:1]

	rec := env.do(t, http.MethodPost, "/api/v1/catalog/refresh", map[string]string{"store_id": "store-9"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[CatalogResponseDTO](t, rec)
	assert.Equal(t, "store-9", resp.StoreID)
	assert.Equal(t, 1, resp.UnitCount)

	env.source.err = errors.New("connection refused")
	rec = env.do(t, http.MethodPost, "/api/v1/catalog/refresh", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "catalog_unavailable", decode[ErrorResponse](t, rec).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupAPI(t)
	env.do(t, http.MethodGet, "/health", nil)

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pos_register_http_requests_total")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&cart.StockError{UnitID: "u1", Err: cart.ErrInsufficientStock}, http.StatusConflict, "insufficient_stock"},
		{sale.ErrNoResumableItems, http.StatusUnprocessableEntity, "no_resumable_items"},
		{&sale.BackendError{Op: "fetch", Err: domain.ErrSaleNotFound}, http.StatusNotFound, "sale_not_found"},
		{&sale.BackendError{Op: "pay", Err: fmt.Errorf("x: %w", backend.ErrBreakerOpen)}, http.StatusServiceUnavailable, "backend_unavailable"},
		{&sale.BackendError{Op: "park", Err: errors.New("reset")}, http.StatusBadGateway, "backend_error"},
		{fmt.Errorf("%w: store s", catalog.ErrCatalogUnavailable), http.StatusServiceUnavailable, "catalog_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
