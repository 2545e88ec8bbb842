package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"bloomkart/internal/handler"
	"bloomkart/internal/model"
	"bloomkart/internal/notify"
	"bloomkart/internal/pricing"
	"bloomkart/internal/proofstore"
	"bloomkart/internal/repository"
	"bloomkart/internal/router"
	"bloomkart/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-api-key"

func setupTestServer(t *testing.T, testDB *TestDB) http.Handler {
	t.Helper()

	logger := zerolog.Nop()

	// Initialize repositories
	productRepo := repository.NewProductRepository(testDB.Pool, logger)
	orderRepo := repository.NewOrderRepository(testDB.Pool, logger)
	paymentRepo := repository.NewPaymentRepository(testDB.Pool, logger)

	// Local-only proof store and no-op event publisher for tests
	proofs := proofstore.NewFileStore(t.TempDir(), logger)
	emitter := notify.NewEmitter(notify.NewNopPublisher(), logger)

	// Initialize services
	pricer := pricing.New(productRepo, logger)
	productService := service.NewProductService(productRepo, logger)
	orderService := service.NewOrderService(orderRepo, pricer, emitter, logger)
	paymentService := service.NewPaymentService(paymentRepo, orderRepo, proofs, emitter, logger)

	// Initialize handlers
	productHandler := handler.NewProductHandler(productService, logger)
	orderHandler := handler.NewOrderHandler(orderService, logger)
	paymentHandler := handler.NewPaymentHandler(paymentService, logger)

	// Create router
	return router.New(productHandler, orderHandler, paymentHandler, testAPIKey, logger)
}

func postJSON(t *testing.T, srv http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func patchJSON(t *testing.T, srv http.Handler, path string, payload any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPatch, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   json.RawMessage `json:"error"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&envelope))
	require.True(t, envelope.Success, "expected success envelope, got error: %s", envelope.Error)
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

// paymentForm builds a multipart payment body with amount and method fields.
func paymentForm(t *testing.T, amount, method string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("amount", amount))
	require.NoError(t, mw.WriteField("method", method))
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func validOrderRequest(productID int64) model.CreateOrderRequest {
	return model.CreateOrderRequest{
		CustomerName:    "Rosa Bell",
		CustomerEmail:   "rosa@example.com",
		CustomerPhone:   "+44 20 7946 0958",
		DeliveryAddress: "1 Petal Lane",
		DeliveryCity:    "London",
		Items:           []model.OrderItemRequest{{ProductID: productID, Quantity: 2}},
	}
}

func TestOrderAPI_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	srv := setupTestServer(t, testDB)

	t.Run("create order snapshots prices and opens the history", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		w := postJSON(t, srv, "/api/orders", validOrderRequest(ids[0]))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var order model.Order
		decodeData(t, w, &order)
		assert.NotZero(t, order.ID)
		assert.Equal(t, model.StatusPending, order.Status)
		assert.Equal(t, "51.98", order.TotalAmount.StringFixed(2))
		require.Len(t, order.Items, 1)
		assert.Equal(t, "25.99", order.Items[0].UnitPrice.StringFixed(2))
		require.Len(t, order.History, 1)
		assert.Nil(t, order.History[0].PreviousStatus)
	})

	t.Run("create order reports every bad line at once", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		req := validOrderRequest(ids[0])
		req.Items = []model.OrderItemRequest{
			{ProductID: ids[2], Quantity: 50},  // only 3 in stock
			{ProductID: ids[3], Quantity: 1},   // zero stock
			{ProductID: ids[4], Quantity: 1},   // inactive
			{ProductID: 999999, Quantity: 1},   // unknown
		}

		w := postJSON(t, srv, "/api/orders", req)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)

		var envelope struct {
			Error struct {
				Details []model.LineError `json:"details"`
			} `json:"error"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&envelope))
		assert.Len(t, envelope.Error.Details, 4)
	})

	t.Run("rejected order writes nothing", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		req := validOrderRequest(ids[0])
		req.Items[0].Quantity = 500

		w := postJSON(t, srv, "/api/orders", req)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)

		var count int
		require.NoError(t, testDB.Pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM orders").Scan(&count))
		assert.Zero(t, count)
	})

	t.Run("get unknown order returns 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders/999999", nil)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("status walk keeps the history chained", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		w := postJSON(t, srv, "/api/orders", validOrderRequest(ids[0]))
		require.Equal(t, http.StatusCreated, w.Code)
		var order model.Order
		decodeData(t, w, &order)

		adminHeaders := map[string]string{"X-API-Key": testAPIKey, "X-Admin-User": "alice"}
		for _, next := range []string{"confirmed", "processing", "shipped", "delivered"} {
			w := patchJSON(t, srv, fmt.Sprintf("/api/orders/%d/status", order.ID),
				model.UpdateStatusRequest{Status: next}, adminHeaders)
			require.Equal(t, http.StatusOK, w.Code, "transition to %s: %s", next, w.Body.String())
		}

		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/orders/%d/history", order.ID), nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var history []model.StatusChange
		decodeData(t, rec, &history)
		require.Len(t, history, 5)

		// Each row's previous status must equal the prior row's new status.
		assert.Nil(t, history[0].PreviousStatus)
		for i := 1; i < len(history); i++ {
			require.NotNil(t, history[i].PreviousStatus)
			assert.Equal(t, history[i-1].NewStatus, *history[i].PreviousStatus)
		}
		assert.Equal(t, model.StatusDelivered, history[len(history)-1].NewStatus)
	})

	t.Run("invalid transition is rejected with the valid set", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		w := postJSON(t, srv, "/api/orders", validOrderRequest(ids[0]))
		require.Equal(t, http.StatusCreated, w.Code)
		var order model.Order
		decodeData(t, w, &order)

		rec := patchJSON(t, srv, fmt.Sprintf("/api/orders/%d/status", order.ID),
			model.UpdateStatusRequest{Status: "delivered"},
			map[string]string{"X-API-Key": testAPIKey})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_TRANSITION")
	})

	t.Run("admin listing requires the API key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		req = httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		req.Header.Set("X-API-Key", testAPIKey)
		w = httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("patch order details does not touch the total", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		w := postJSON(t, srv, "/api/orders", validOrderRequest(ids[0]))
		require.Equal(t, http.StatusCreated, w.Code)
		var order model.Order
		decodeData(t, w, &order)

		city := "Brighton"
		rec := patchJSON(t, srv, fmt.Sprintf("/api/orders/%d", order.ID),
			model.UpdateOrderRequest{DeliveryCity: &city}, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var updated model.Order
		decodeData(t, rec, &updated)
		assert.Equal(t, "Brighton", updated.DeliveryCity)
		assert.Equal(t, "51.98", updated.TotalAmount.StringFixed(2))
	})
}

func TestProductAPI_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	srv := setupTestServer(t, testDB)

	t.Run("catalog listing excludes inactive products", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		SeedProducts(t, testDB.Pool)

		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var products []model.Product
		decodeData(t, w, &products)
		assert.Len(t, products, 4)
	})

	t.Run("product detail", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/products/%d", ids[0]), nil)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var p model.Product
		decodeData(t, w, &p)
		assert.Equal(t, "Red Rose Bouquet", p.Name)
	})
}

func TestPaymentAPI_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	srv := setupTestServer(t, testDB)

	t.Run("record and verify a payment", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		w := postJSON(t, srv, "/api/orders", validOrderRequest(ids[0]))
		require.Equal(t, http.StatusCreated, w.Code)
		var order model.Order
		decodeData(t, w, &order)

		body, contentType := paymentForm(t, "51.98", "bank_transfer")
		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/orders/%d/payments", order.ID), body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var payment model.Payment
		decodeData(t, rec, &payment)
		assert.Equal(t, model.PaymentPending, payment.Status)

		verifyRec := patchJSON(t, srv, fmt.Sprintf("/api/admin/payments/%d/verify", payment.ID),
			map[string]bool{"verified": true},
			map[string]string{"X-API-Key": testAPIKey})
		require.Equal(t, http.StatusOK, verifyRec.Code)

		var verified model.Payment
		decodeData(t, verifyRec, &verified)
		assert.Equal(t, model.PaymentVerified, verified.Status)
		assert.NotNil(t, verified.VerifiedAt)
	})

	t.Run("verification endpoint requires the API key", func(t *testing.T) {
		rec := patchJSON(t, srv, "/api/admin/payments/1/verify",
			map[string]bool{"verified": true}, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
