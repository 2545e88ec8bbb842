package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"bloomkart/internal/model"
	"bloomkart/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	service service.OrderService
	logger  zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(service service.OrderService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger.With().Str("handler", "order").Logger(),
	}
}

// orderID extracts and parses the {id} URL parameter.
func orderID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// Create handles POST /api/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body", nil)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeData(w, http.StatusCreated, order)
}

// GetByID handles GET /api/orders/{id}.
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "invalid order ID", nil)
		return
	}

	order, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeData(w, http.StatusOK, order)
}

// List handles GET /api/orders with filter and pagination query parameters.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, page, err := parseListQuery(r)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	list, err := h.service.List(r.Context(), filter, page)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeData(w, http.StatusOK, list)
}

// parseListQuery builds the listing filter from query parameters.
func parseListQuery(r *http.Request) (model.ListOrdersFilter, model.Pagination, error) {
	var filter model.ListOrdersFilter
	var page model.Pagination
	verr := &model.ValidationError{}

	q := r.URL.Query()

	if raw := q.Get("status"); raw != "" {
		s, err := model.ParseStatus(raw)
		if err != nil {
			verr.Add("status", err.Error())
		} else {
			filter.Status = &s
		}
	}
	if raw := q.Get("from"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			verr.Add("from", "must be formatted YYYY-MM-DD")
		} else {
			filter.From = &d
		}
	}
	if raw := q.Get("to"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			verr.Add("to", "must be formatted YYYY-MM-DD")
		} else {
			// Treat the bound as inclusive of the whole day.
			end := d.Add(24*time.Hour - time.Nanosecond)
			filter.To = &end
		}
	}
	filter.Customer = q.Get("customer")

	if raw := q.Get("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err != nil || n < 1 {
			verr.Add("page", "must be a positive integer")
		} else {
			page.Page = n
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err != nil || n < 1 {
			verr.Add("limit", "must be a positive integer")
		} else {
			page.Limit = n
		}
	}

	if verr.HasErrors() {
		return filter, page, verr
	}
	return filter, page, nil
}

// Update handles PATCH /api/orders/{id}.
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "invalid order ID", nil)
		return
	}

	var patch model.UpdateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body", nil)
		return
	}

	order, err := h.service.UpdateOrder(r.Context(), id, &patch)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeData(w, http.StatusOK, order)
}

// UpdateStatus handles PATCH /api/orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "invalid order ID", nil)
		return
	}

	var req model.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body", nil)
		return
	}

	requested, err := model.ParseStatus(req.Status)
	if err != nil {
		verr := &model.ValidationError{}
		verr.Add("status", err.Error())
		writeServiceError(w, verr, h.logger)
		return
	}

	var actingUser *string
	if user := r.Header.Get("X-Admin-User"); user != "" {
		actingUser = &user
	}

	order, err := h.service.UpdateStatus(r.Context(), id, requested, req.Notes, actingUser)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeData(w, http.StatusOK, order)
}

// GetHistory handles GET /api/orders/{id}/history.
func (h *OrderHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "invalid order ID", nil)
		return
	}

	history, err := h.service.GetStatusHistory(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeData(w, http.StatusOK, history)
}
