package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ayouballali/mahali-pos/internal/barcode"
	"github.com/ayouballali/mahali-pos/internal/cache"
	"github.com/ayouballali/mahali-pos/internal/camera"
	"github.com/ayouballali/mahali-pos/internal/cart"
	"github.com/ayouballali/mahali-pos/internal/domain"
	"github.com/ayouballali/mahali-pos/internal/repository"
	"github.com/ayouballali/mahali-pos/internal/sale"
	"github.com/ayouballali/mahali-pos/internal/scanner"
	"github.com/ayouballali/mahali-pos/internal/sell"
	"github.com/ayouballali/mahali-pos/internal/stats"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	handler  http.Handler
	repo     *repository.Repository
	register *sell.Register
}

type failingStock struct{}

func (failingStock) DecrementStock(context.Context, int64, int) error {
	return errors.New("database is locked")
}

func setupServer(t *testing.T, stock sale.StockUpdater) *testServer {
	t.Helper()

	repo, err := repository.NewRepository(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations("../repository/migrations"))
	t.Cleanup(func() { repo.Close() })

	if stock == nil {
		stock = repo.Products()
	}
	reports := stats.NewService(repo.Transactions(), repo.Products(), cache.NopCache{}, 10, nil)
	finalizer := sale.NewFinalizer(repo.Transactions(), stock, repo.Transactions(), nil)
	register := sell.NewRegister(cart.New(), repo.Products(), finalizer, reports, barcode.Validator{}, nil)

	sessionCfg := scanner.SessionConfig{
		Facing:        camera.FacingRear,
		RequiredReads: 2,
		Cooldown:      time.Minute,
		Throttle:      time.Millisecond,
	}
	samplerCfg := camera.SamplerConfig{Width: 1280, Height: 720, AcquireTimeout: 2 * time.Second}

	timeout := 5 * time.Second
	handler := NewRouter(RouterConfig{RequestTimeout: timeout, MaxRequestBodySize: 1 << 20}, Handlers{
		Products: NewProductHandler(repo.Products(), reports, timeout, 1<<20),
		Cart:     NewCartHandler(register, timeout, 1<<20),
		Checkout: NewCheckoutHandler(register, timeout),
		Reports:  NewReportHandler(reports, repo.Transactions(), timeout),
		Scan:     NewScanHandler(register, scanner.NewZXingDetector(nil), samplerCfg, sessionCfg, nil, nil),
		Health:   func(r *http.Request) error { return repo.Ping(r.Context()) },
	})

	return &testServer{handler: handler, repo: repo, register: register}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(method, path, &buf)
	s.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&v), recorder.Body.String())
	return v
}

func (s *testServer) addProduct(t *testing.T, code, name, price string, stock int) *domain.Product {
	t.Helper()
	cost := decimal.RequireFromString(price).Sub(decimal.NewFromInt(1))
	p := &domain.Product{
		Barcode:   code,
		Name:      name,
		SalePrice: decimal.RequireFromString(price),
		CostPrice: &cost,
		Stock:     stock,
	}
	_, err := s.repo.Products().Add(context.Background(), p)
	require.NoError(t, err)
	return p
}

func TestHealth(t *testing.T) {
	s := setupServer(t, nil)

	recorder := s.do(t, "GET", "/health", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.NotEmpty(t, recorder.Header().Get("X-Request-Id"))
	assert.Equal(t, "ok", decodeBody[map[string]string](t, recorder)["status"])
}

func TestProducts_Lifecycle(t *testing.T) {
	s := setupServer(t, nil)

	recorder := s.do(t, "POST", "/api/v1/products/", map[string]any{
		"barcode":    "6111245591124",
		"name":       "Lait Centrale 1L",
		"sale_price": "7.50",
		"cost_price": "6.20",
		"stock":      24,
	})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	created := decodeBody[domain.Product](t, recorder)
	assert.NotZero(t, created.ID)
	assert.Equal(t, domain.SaleByUnit, created.SaleType)

	recorder = s.do(t, "GET", "/api/v1/products/barcode/6111245591124", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, created.ID, decodeBody[domain.Product](t, recorder).ID)

	recorder = s.do(t, "PUT", "/api/v1/products/"+itoa(created.ID), map[string]any{"stock": 3})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.Equal(t, 3, decodeBody[domain.Product](t, recorder).Stock)

	recorder = s.do(t, "GET", "/api/v1/products/low-stock", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Len(t, decodeBody[ProductsResponse](t, recorder).Products, 1)

	recorder = s.do(t, "DELETE", "/api/v1/products/"+itoa(created.ID), nil)
	assert.Equal(t, http.StatusNoContent, recorder.Code)

	recorder = s.do(t, "GET", "/api/v1/products/"+itoa(created.ID), nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, "not_found", decodeBody[ErrorResponse](t, recorder).Code)
}

func TestProducts_ListAndSearch(t *testing.T) {
	s := setupServer(t, nil)
	s.addProduct(t, "6111245591124", "Lait Centrale", "7.50", 20)
	s.addProduct(t, "6111035000058", "Sidi Ali 1.5L", "6.00", 20)

	recorder := s.do(t, "GET", "/api/v1/products/", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Len(t, decodeBody[ProductsResponse](t, recorder).Products, 2)

	recorder = s.do(t, "GET", "/api/v1/products/?q=lait", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	products := decodeBody[ProductsResponse](t, recorder).Products
	require.Len(t, products, 1)
	assert.Equal(t, "Lait Centrale", products[0].Name)
}

func TestProducts_BadRequests(t *testing.T) {
	s := setupServer(t, nil)

	recorder := s.do(t, "POST", "/api/v1/products/", map[string]any{"name": "", "sale_price": "1"})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "invalid_argument", decodeBody[ErrorResponse](t, recorder).Code)

	recorder = s.do(t, "GET", "/api/v1/products/abc", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "invalid_id", decodeBody[ErrorResponse](t, recorder).Code)

	recorder = httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, httptest.NewRequest("POST", "/api/v1/products/", bytes.NewBufferString("{")))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = s.do(t, "GET", "/api/v1/products/barcode/0000000000000", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestCart_AddUpdateRemove(t *testing.T) {
	s := setupServer(t, nil)
	milk := s.addProduct(t, "6111245591124", "Lait Centrale", "7.50", 20)
	water := s.addProduct(t, "6111035000058", "Sidi Ali", "6.00", 20)

	recorder := s.do(t, "POST", "/api/v1/cart/items", map[string]any{"product_id": milk.ID, "quantity": 2})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	recorder = s.do(t, "POST", "/api/v1/cart/items", map[string]any{"barcode": " 6111035000058 "})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	snap := decodeBody[cart.Snapshot](t, recorder)
	assert.Equal(t, 3, snap.TotalItems)
	assert.True(t, decimal.RequireFromString("21").Equal(snap.Subtotal))

	recorder = s.do(t, "PUT", "/api/v1/cart/items/"+itoa(water.ID), map[string]any{"quantity": 4})
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 6, decodeBody[cart.Snapshot](t, recorder).TotalItems)

	recorder = s.do(t, "DELETE", "/api/v1/cart/items/"+itoa(milk.ID), nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	snap = decodeBody[cart.Snapshot](t, recorder)
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, water.ID, snap.Lines[0].ProductID)

	recorder = s.do(t, "PUT", "/api/v1/cart/items/"+itoa(water.ID), map[string]any{"quantity": 0})
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, decodeBody[cart.Snapshot](t, recorder).Lines)

	recorder = s.do(t, "PUT", "/api/v1/cart/items/"+itoa(water.ID), map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestCart_ConcurrentAddsWithQuantity(t *testing.T) {
	s := setupServer(t, nil)
	milk := s.addProduct(t, "6111245591124", "Lait Centrale", "7.50", 500)

	var wg sync.WaitGroup
	codes := make(chan int, 40)
	for range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			codes <- s.do(t, "POST", "/api/v1/cart/items", map[string]any{"product_id": milk.ID, "quantity": 3}).Code
		}()
		go func() {
			defer wg.Done()
			codes <- s.do(t, "POST", "/api/v1/cart/items", map[string]any{"barcode": milk.Barcode, "quantity": 2}).Code
		}()
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		assert.Equal(t, http.StatusCreated, code)
	}
	lines := s.register.Cart().Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 100, lines[0].Quantity)
}

func TestCart_AddErrors(t *testing.T) {
	s := setupServer(t, nil)

	tests := []struct {
		name string
		body map[string]any
		code int
		want string
	}{
		{"unknown barcode", map[string]any{"barcode": "6111245591124"}, http.StatusNotFound, "not_found"},
		{"invalid barcode", map[string]any{"barcode": "12ab"}, http.StatusBadRequest, "invalid_barcode"},
		{"unknown product", map[string]any{"product_id": 42}, http.StatusNotFound, "not_found"},
		{"nothing to add", map[string]any{}, http.StatusBadRequest, "invalid_product_id"},
		{"negative quantity", map[string]any{"product_id": 1, "quantity": -1}, http.StatusBadRequest, "invalid_quantity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := s.do(t, "POST", "/api/v1/cart/items", tt.body)
			assert.Equal(t, tt.code, recorder.Code)
			assert.Equal(t, tt.want, decodeBody[ErrorResponse](t, recorder).Code)
		})
	}
	assert.True(t, s.register.Cart().IsEmpty())
}

func TestCheckout_Success(t *testing.T) {
	s := setupServer(t, nil)
	milk := s.addProduct(t, "6111245591124", "Lait Centrale", "7.50", 20)
	s.do(t, "POST", "/api/v1/cart/items", map[string]any{"product_id": milk.ID, "quantity": 2})

	recorder := s.do(t, "POST", "/api/v1/checkout", nil)

	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	resp := decodeBody[CheckoutResponse](t, recorder)
	require.NotNil(t, resp.Transaction)
	assert.True(t, decimal.RequireFromString("15").Equal(resp.Transaction.Total))
	assert.True(t, decimal.RequireFromString("2").Equal(resp.Transaction.Profit))
	assert.Empty(t, resp.PendingStock)
	assert.True(t, s.register.Cart().IsEmpty())

	p, err := s.repo.Products().GetByID(context.Background(), milk.ID)
	require.NoError(t, err)
	assert.Equal(t, 18, p.Stock)

	recorder = s.do(t, "GET", "/api/v1/reports?period=today", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	report := decodeBody[domain.Report](t, recorder)
	assert.Equal(t, 1, report.Stats.SalesCount)
	assert.Equal(t, 2, report.Stats.ItemsSold)

	recorder = s.do(t, "GET", "/api/v1/transactions/"+itoa(resp.Transaction.ID), nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, resp.Transaction.Reference, decodeBody[domain.Transaction](t, recorder).Reference)
}

func TestCheckout_EmptyCart(t *testing.T) {
	s := setupServer(t, nil)

	recorder := s.do(t, "POST", "/api/v1/checkout", nil)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "empty_cart", decodeBody[ErrorResponse](t, recorder).Code)
}

func TestCheckout_PartialSale(t *testing.T) {
	s := setupServer(t, failingStock{})
	milk := s.addProduct(t, "6111245591124", "Lait Centrale", "7.50", 20)
	s.do(t, "POST", "/api/v1/cart/items", map[string]any{"product_id": milk.ID, "quantity": 3})

	recorder := s.do(t, "POST", "/api/v1/checkout", nil)

	require.Equal(t, http.StatusMultiStatus, recorder.Code, recorder.Body.String())
	resp := decodeBody[CheckoutResponse](t, recorder)
	require.NotNil(t, resp.Transaction)
	require.Len(t, resp.PendingStock, 1)
	assert.Equal(t, milk.ID, resp.PendingStock[0].ProductID)
	assert.Equal(t, 3, resp.PendingStock[0].Quantity)
	assert.True(t, resp.PendingStock[0].Queued)
	assert.True(t, s.register.Cart().IsEmpty())

	pending, err := s.repo.Transactions().PendingStockAdjustments(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, -3, pending[0].Delta)
}

func TestTransactions_Range(t *testing.T) {
	s := setupServer(t, nil)
	milk := s.addProduct(t, "6111245591124", "Lait Centrale", "7.50", 20)
	s.do(t, "POST", "/api/v1/cart/items", map[string]any{"product_id": milk.ID})
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/v1/checkout", nil).Code)

	today := time.Now().Format(time.DateOnly)
	recorder := s.do(t, "GET", "/api/v1/transactions?from="+today+"&to="+today, nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.Len(t, decodeBody[domain.Report](t, recorder).Transactions, 1)

	recorder = s.do(t, "GET", "/api/v1/transactions?from=2020-01-01&to=2020-01-02", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, decodeBody[domain.Report](t, recorder).Transactions)

	recorder = s.do(t, "GET", "/api/v1/transactions?from=2020-01-02&to=2020-01-01", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = s.do(t, "GET", "/api/v1/transactions?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "invalid_from", decodeBody[ErrorResponse](t, recorder).Code)
}

func TestDeactivate_ClearsCart(t *testing.T) {
	s := setupServer(t, nil)
	milk := s.addProduct(t, "6111245591124", "Lait Centrale", "7.50", 20)
	s.do(t, "POST", "/api/v1/cart/items", map[string]any{"product_id": milk.ID})

	recorder := s.do(t, "POST", "/api/v1/sell/deactivate", nil)

	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.True(t, s.register.Cart().IsEmpty())
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
