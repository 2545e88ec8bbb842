package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"bloomkart/internal/model"
	"bloomkart/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// maxProofSize caps payment-proof uploads at 10 MiB.
const maxProofSize = 10 << 20

// PaymentHandler handles payment-related HTTP requests.
type PaymentHandler struct {
	service service.PaymentService
	logger  zerolog.Logger
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(service service.PaymentService, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger.With().Str("handler", "payment").Logger(),
	}
}

// Create handles POST /api/orders/{id}/payments. The body is multipart form
// data with "amount" and "method" fields and an optional "proof" file.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "invalid order ID", nil)
		return
	}

	if err := r.ParseMultipartForm(maxProofSize); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "invalid multipart form", nil)
		return
	}

	req := &model.RecordPaymentRequest{
		Amount: r.FormValue("amount"),
		Method: r.FormValue("method"),
	}

	var proof io.Reader
	var filename, contentType string
	file, header, err := r.FormFile("proof")
	if err == nil {
		defer file.Close()
		proof = file
		filename = header.Filename
		contentType = header.Header.Get("Content-Type")
	} else if err != http.ErrMissingFile {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "invalid proof upload", nil)
		return
	}

	payment, svcErr := h.service.RecordPayment(r.Context(), id, req, filename, contentType, proof)
	if svcErr != nil {
		writeServiceError(w, svcErr, h.logger)
		return
	}

	writeData(w, http.StatusCreated, payment)
}

// Verify handles PATCH /api/admin/payments/{id}/verify.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "invalid payment ID", nil)
		return
	}

	var req struct {
		Verified bool `json:"verified"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body", nil)
		return
	}

	payment, svcErr := h.service.VerifyPayment(r.Context(), id, req.Verified)
	if svcErr != nil {
		writeServiceError(w, svcErr, h.logger)
		return
	}

	writeData(w, http.StatusOK, payment)
}
