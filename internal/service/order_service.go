package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"bloomkart/internal/model"
	"bloomkart/internal/notify"
	"bloomkart/internal/pricing"
	"bloomkart/internal/repository"
	"bloomkart/internal/status"

	"github.com/rs/zerolog"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// orderService implements OrderService.
type orderService struct {
	orderRepo repository.OrderRepository
	pricer    Pricer
	emitter   EventEmitter
	logger    zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	pricer Pricer,
	emitter EventEmitter,
	logger zerolog.Logger,
) OrderService {
	return &orderService{
		orderRepo: orderRepo,
		pricer:    pricer,
		emitter:   emitter,
		logger:    logger.With().Str("service", "order").Logger(),
	}
}

// CreateOrder validates the request, prices it against the current catalog
// and persists header, items and the initial history row in one transaction.
// Validation and pricing rejections abort before any write. The created event
// is emitted only after the commit and its delivery can never undo it.
func (s *orderService) CreateOrder(ctx context.Context, req *model.CreateOrderRequest) (*model.Order, error) {
	draft, err := pricing.ValidateRequest(req)
	if err != nil {
		s.logger.Warn().Err(err).Msg("order request rejected")
		return nil, err
	}

	quote, err := s.pricer.Price(ctx, draft.Items)
	if err != nil {
		var perr *model.PricingError
		if errors.As(err, &perr) {
			s.logger.Warn().Int("rejected_lines", len(perr.Lines)).Msg("order pricing rejected")
			return nil, err
		}
		s.logger.Error().Err(err).Msg("pricing failed")
		return nil, fmt.Errorf("failed to price order: %w", err)
	}

	order := &model.Order{
		CustomerName:     draft.CustomerName,
		CustomerEmail:    draft.CustomerEmail,
		CustomerPhone:    draft.CustomerPhone,
		DeliveryAddress:  draft.DeliveryAddress,
		DeliveryCity:     draft.DeliveryCity,
		DeliveryPostcode: draft.DeliveryPostcode,
		DeliveryDate:     draft.DeliveryDate,
		DeliveryWindow:   draft.DeliveryWindow,
		Notes:            draft.Notes,
		Status:           model.StatusPending,
		TotalAmount:      quote.Total,
	}

	initial := model.StatusChange{
		PreviousStatus: nil,
		NewStatus:      model.StatusPending,
	}

	created, err := s.orderRepo.Create(ctx, order, quote.Items, initial)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to create order")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.emitter.Emit(notify.EventOrderCreated, notify.OrderCreatedPayload{
		OrderID:       created.ID,
		CustomerEmail: created.CustomerEmail,
		TotalAmount:   created.TotalAmount.StringFixed(2),
		Items:         draft.Items,
	})

	s.logger.Info().
		Int64("order_id", created.ID).
		Int("item_count", len(created.Items)).
		Str("total_amount", created.TotalAmount.StringFixed(2)).
		Msg("order created")

	return created, nil
}

// GetByID retrieves an order with its nested entities.
func (s *orderService) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Int64("order_id", id).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, &model.NotFoundError{Resource: "order", ID: id}
	}
	return order, nil
}

// List returns a filtered page of orders with pagination metadata computed
// from the same filter predicate.
func (s *orderService) List(ctx context.Context, filter model.ListOrdersFilter, page model.Pagination) (*model.OrderList, error) {
	if page.Page < 1 {
		page.Page = 1
	}
	if page.Limit < 1 {
		page.Limit = defaultPageLimit
	}
	if page.Limit > maxPageLimit {
		page.Limit = maxPageLimit
	}

	orders, total, err := s.orderRepo.List(ctx, filter, page)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	totalPages := (total + page.Limit - 1) / page.Limit
	if orders == nil {
		orders = []model.Order{}
	}

	return &model.OrderList{
		Orders: orders,
		Pagination: model.PaginationInfo{
			Page:       page.Page,
			Limit:      page.Limit,
			TotalItems: total,
			TotalPages: totalPages,
		},
	}, nil
}

// GetStatusHistory returns the order's append-only status log.
func (s *orderService) GetStatusHistory(ctx context.Context, id int64) ([]model.StatusChange, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Int64("order_id", id).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, &model.NotFoundError{Resource: "order", ID: id}
	}
	return order.History, nil
}

// UpdateOrder patches customer and delivery details.
func (s *orderService) UpdateOrder(ctx context.Context, id int64, patch *model.UpdateOrderRequest) (*model.Order, error) {
	if patch == nil {
		verr := &model.ValidationError{}
		verr.Add("request", "request body is required")
		return nil, verr
	}

	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, &model.NotFoundError{Resource: "order", ID: id}
	}

	if err := applyPatch(order, patch); err != nil {
		s.logger.Warn().Err(err).Int64("order_id", id).Msg("order patch rejected")
		return nil, err
	}

	if err := s.orderRepo.UpdateDetails(ctx, order); err != nil {
		s.logger.Error().Err(err).Int64("order_id", id).Msg("failed to update order details")
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	return s.orderRepo.GetByID(ctx, id)
}

// applyPatch copies non-nil patch fields onto the order, validating the ones
// with a grammar.
func applyPatch(order *model.Order, patch *model.UpdateOrderRequest) error {
	verr := &model.ValidationError{}

	if patch.CustomerName != nil {
		if *patch.CustomerName == "" {
			verr.Add("customerName", "customer name cannot be empty")
		} else {
			order.CustomerName = *patch.CustomerName
		}
	}
	if patch.CustomerEmail != nil {
		if _, err := mail.ParseAddress(*patch.CustomerEmail); err != nil {
			verr.Add("customerEmail", "invalid email address")
		} else {
			order.CustomerEmail = *patch.CustomerEmail
		}
	}
	if patch.CustomerPhone != nil {
		order.CustomerPhone = *patch.CustomerPhone
	}
	if patch.DeliveryAddress != nil {
		if *patch.DeliveryAddress == "" {
			verr.Add("deliveryAddress", "delivery address cannot be empty")
		} else {
			order.DeliveryAddress = *patch.DeliveryAddress
		}
	}
	if patch.DeliveryCity != nil {
		order.DeliveryCity = *patch.DeliveryCity
	}
	if patch.DeliveryPostcode != nil {
		order.DeliveryPostcode = *patch.DeliveryPostcode
	}
	if patch.DeliveryDate != nil {
		if *patch.DeliveryDate == "" {
			order.DeliveryDate = nil
		} else if d, err := time.Parse("2006-01-02", *patch.DeliveryDate); err != nil {
			verr.Add("deliveryDate", "must be formatted YYYY-MM-DD")
		} else {
			order.DeliveryDate = &d
		}
	}
	if patch.DeliveryWindow != nil {
		order.DeliveryWindow = *patch.DeliveryWindow
	}
	if patch.Notes != nil {
		order.Notes = *patch.Notes
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// UpdateStatus reads the order, consults the state machine and applies the
// transition with the pre-read status as the optimistic-concurrency guard.
// On a guard failure it re-reads and retries the whole decision exactly once
// before surfacing a ConcurrentModificationError; the retry count is bounded
// to keep behaviour deterministic.
func (s *orderService) UpdateStatus(ctx context.Context, id int64, requested model.Status, notes string, actingUser *string) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, &model.NotFoundError{Resource: "order", ID: id}
	}

	updated, err := s.attemptTransition(ctx, order, requested, notes, actingUser)
	if errors.Is(err, repository.ErrStaleStatus) {
		s.logger.Warn().
			Int64("order_id", id).
			Str("requested", string(requested)).
			Msg("status transition lost race, retrying once")

		order, err = s.orderRepo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to re-read order: %w", err)
		}
		if order == nil {
			return nil, &model.NotFoundError{Resource: "order", ID: id}
		}

		updated, err = s.attemptTransition(ctx, order, requested, notes, actingUser)
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, &model.ConcurrentModificationError{OrderID: id}
		}
	}
	if err != nil {
		return nil, err
	}

	prev := order.Status
	s.emitter.Emit(notify.EventStatusChanged, notify.StatusChangedPayload{
		OrderID:        updated.ID,
		PreviousStatus: prev,
		NewStatus:      updated.Status,
		CustomerEmail:  updated.CustomerEmail,
	})

	return updated, nil
}

// attemptTransition runs one read-decide-write cycle against the status the
// order held at read time.
func (s *orderService) attemptTransition(ctx context.Context, order *model.Order, requested model.Status, notes string, actingUser *string) (*model.Order, error) {
	rec, err := status.Transition(order.Status, requested)
	if err != nil {
		s.logger.Warn().
			Int64("order_id", order.ID).
			Str("current", string(order.Status)).
			Str("requested", string(requested)).
			Msg("invalid status transition")
		return nil, err
	}

	prev := rec.From
	change := model.StatusChange{
		PreviousStatus: &prev,
		NewStatus:      rec.To,
		Notes:          notes,
		ChangedBy:      actingUser,
	}

	updated, err := s.orderRepo.ApplyTransition(ctx, order.ID, rec.From, change)
	if err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, err
		}
		s.logger.Error().Err(err).Int64("order_id", order.ID).Msg("failed to apply transition")
		return nil, fmt.Errorf("failed to apply transition: %w", err)
	}

	return updated, nil
}
