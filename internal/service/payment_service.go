package service

import (
	"context"
	"fmt"
	"io"

	"bloomkart/internal/model"
	"bloomkart/internal/notify"
	"bloomkart/internal/proofstore"
	"bloomkart/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// paymentService implements PaymentService. Verification is a flag flip plus
// an event; the actual checking of evidence is a human or external concern.
type paymentService struct {
	paymentRepo repository.PaymentRepository
	orderRepo   repository.OrderRepository
	proofs      proofstore.Store
	emitter     EventEmitter
	logger      zerolog.Logger
}

// NewPaymentService creates a new payment service.
func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	orderRepo repository.OrderRepository,
	proofs proofstore.Store,
	emitter EventEmitter,
	logger zerolog.Logger,
) PaymentService {
	return &paymentService{
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
		proofs:      proofs,
		emitter:     emitter,
		logger:      logger.With().Str("service", "payment").Logger(),
	}
}

// RecordPayment stores the uploaded proof and inserts a pending payment row.
func (s *paymentService) RecordPayment(ctx context.Context, orderID int64, req *model.RecordPaymentRequest, proofFilename, contentType string, proof io.Reader) (*model.Payment, error) {
	verr := &model.ValidationError{}
	if req == nil {
		verr.Add("request", "request body is required")
		return nil, verr
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.Sign() <= 0 {
		verr.Add("amount", "amount must be a positive decimal number")
	}
	if req.Method == "" {
		verr.Add("method", "payment method is required")
	}
	if verr.HasErrors() {
		return nil, verr
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, &model.NotFoundError{Resource: "order", ID: orderID}
	}

	var proofKey string
	if proof != nil {
		key := proofstore.NewKey(orderID, proofFilename)
		proofKey, err = s.proofs.Put(ctx, key, contentType, proof)
		if err != nil {
			s.logger.Error().Err(err).Int64("order_id", orderID).Msg("failed to store payment proof")
			return nil, fmt.Errorf("failed to store payment proof: %w", err)
		}
	}

	payment := &model.Payment{
		OrderID:  orderID,
		Amount:   amount.RoundBank(2),
		Method:   req.Method,
		Status:   model.PaymentPending,
		ProofKey: proofKey,
	}

	created, err := s.paymentRepo.Add(ctx, payment)
	if err != nil {
		s.logger.Error().Err(err).Int64("order_id", orderID).Msg("failed to record payment")
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	s.logger.Info().
		Int64("payment_id", created.ID).
		Int64("order_id", orderID).
		Str("amount", created.Amount.StringFixed(2)).
		Msg("payment recorded")

	return created, nil
}

// VerifyPayment marks a payment verified or rejected and emits the
// payment-verified event. The event is informational; nothing in the order
// lifecycle depends on its delivery.
func (s *paymentService) VerifyPayment(ctx context.Context, paymentID int64, verified bool) (*model.Payment, error) {
	newStatus := model.PaymentRejected
	if verified {
		newStatus = model.PaymentVerified
	}

	payment, err := s.paymentRepo.SetStatus(ctx, paymentID, newStatus)
	if err != nil {
		s.logger.Error().Err(err).Int64("payment_id", paymentID).Msg("failed to set payment status")
		return nil, fmt.Errorf("failed to set payment status: %w", err)
	}
	if payment == nil {
		return nil, &model.NotFoundError{Resource: "payment", ID: paymentID}
	}

	s.emitter.Emit(notify.EventPaymentVerified, notify.PaymentVerifiedPayload{
		OrderID:   payment.OrderID,
		PaymentID: payment.ID,
		Amount:    payment.Amount.StringFixed(2),
		Verified:  verified,
	})

	s.logger.Info().
		Int64("payment_id", payment.ID).
		Int64("order_id", payment.OrderID).
		Bool("verified", verified).
		Msg("payment verification recorded")

	return payment, nil
}
