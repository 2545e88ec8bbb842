package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bloomkart/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockProductService is a mock implementation of service.ProductService.
type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockProductService) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func TestProductHandler_GetAll(t *testing.T) {
	logger := zerolog.Nop()
	mockService := new(MockProductService)
	h := NewProductHandler(mockService, logger)

	products := []model.Product{
		{ID: 1, Name: "Red Rose Bouquet", Price: decimal.RequireFromString("25.99"), Stock: 10, Active: true, CreatedAt: time.Now()},
	}
	mockService.On("GetAll", mock.Anything, 5, 10).Return(products, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/products?limit=5&offset=10", nil)
	w := httptest.NewRecorder()

	h.GetAll(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	assert.True(t, resp.Success)
	mockService.AssertExpectations(t)
}

func TestProductHandler_GetByID(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockProductService)
		h := NewProductHandler(mockService, logger)

		p := model.Product{ID: 7, Name: "Tulip Mix", Price: decimal.RequireFromString("18.50"), Stock: 4, Active: true}
		mockService.On("GetByID", mock.Anything, int64(7)).Return(&p, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/products/7", nil)
		req = withURLParam(req, "id", "7")
		w := httptest.NewRecorder()

		h.GetByID(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Not found", func(t *testing.T) {
		mockService := new(MockProductService)
		h := NewProductHandler(mockService, logger)

		mockService.On("GetByID", mock.Anything, int64(404)).
			Return(nil, &model.NotFoundError{Resource: "product", ID: 404})

		req := httptest.NewRequest(http.MethodGet, "/api/products/404", nil)
		req = withURLParam(req, "id", "404")
		w := httptest.NewRecorder()

		h.GetByID(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Non-numeric ID", func(t *testing.T) {
		mockService := new(MockProductService)
		h := NewProductHandler(mockService, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/products/abc", nil)
		req = withURLParam(req, "id", "abc")
		w := httptest.NewRecorder()

		h.GetByID(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "GetByID")
	})
}
