package service

import (
	"context"
	"io"

	"bloomkart/internal/model"
	"bloomkart/internal/pricing"
)

// Pricer produces validated, priced item drafts from requested lines.
// Implemented by pricing.Pricer.
type Pricer interface {
	Price(ctx context.Context, items []model.OrderItemRequest) (*pricing.Quote, error)
}

// EventEmitter fires lifecycle events at the notification collaborator.
// Implemented by notify.Emitter; delivery is best-effort and non-blocking.
type EventEmitter interface {
	Emit(name string, payload any)
}

// OrderService defines operations over the order lifecycle.
type OrderService interface {
	// CreateOrder validates and prices the request, then persists the order
	// atomically. Emits an order-created event after the commit.
	CreateOrder(ctx context.Context, req *model.CreateOrderRequest) (*model.Order, error)

	// GetByID retrieves an order with items, payments and history.
	GetByID(ctx context.Context, id int64) (*model.Order, error)

	// List returns a filtered, paginated order listing.
	List(ctx context.Context, filter model.ListOrdersFilter, page model.Pagination) (*model.OrderList, error)

	// GetStatusHistory returns the order's status log, oldest first.
	GetStatusHistory(ctx context.Context, id int64) ([]model.StatusChange, error)

	// UpdateOrder patches customer/delivery details. Status and totals are
	// not reachable through it.
	UpdateOrder(ctx context.Context, id int64, patch *model.UpdateOrderRequest) (*model.Order, error)

	// UpdateStatus runs the status state machine and applies the approved
	// transition with an optimistic-concurrency guard, retrying the whole
	// decision exactly once on a conflict.
	UpdateStatus(ctx context.Context, id int64, requested model.Status, notes string, actingUser *string) (*model.Order, error)
}

// ProductService defines read-only catalog operations.
type ProductService interface {
	// GetAll retrieves active products with pagination.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by ID.
	GetByID(ctx context.Context, id int64) (*model.Product, error)
}

// PaymentService records payment evidence and verification outcomes. It never
// verifies anything itself.
type PaymentService interface {
	// RecordPayment stores the proof upload and inserts a pending payment
	// row for the order. proof may be nil when no file was attached.
	RecordPayment(ctx context.Context, orderID int64, req *model.RecordPaymentRequest, proofFilename, contentType string, proof io.Reader) (*model.Payment, error)

	// VerifyPayment marks a payment verified or rejected and emits the
	// payment-verified event on success.
	VerifyPayment(ctx context.Context, paymentID int64, verified bool) (*model.Payment, error)
}
