package repository

import (
	"context"
	"errors"

	"bloomkart/internal/model"
)

// ErrStaleStatus is returned by ApplyTransition when the order's status no
// longer matches the expected value, meaning another actor won the race.
var ErrStaleStatus = errors.New("order status changed concurrently")

// ProductRepository defines read-only access to the flower catalog. The order
// core never mutates products or stock.
type ProductRepository interface {
	// GetAll retrieves active products with pagination support.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by its ID. Returns nil when absent.
	GetByID(ctx context.Context, id int64) (*model.Product, error)

	// GetByIDs retrieves multiple products in one batched read.
	GetByIDs(ctx context.Context, ids []int64) ([]model.Product, error)
}

// OrderRepository defines order persistence. Create and ApplyTransition each
// run as a single database transaction; partial writes are never visible.
type OrderRepository interface {
	// Create atomically inserts the order header, all item rows and the
	// initial status-history row. On any failure the whole write rolls back.
	Create(ctx context.Context, order *model.Order, items []model.OrderItem, initial model.StatusChange) (*model.Order, error)

	// GetByID retrieves an order with its items, payments and ordered
	// history in one batched fetch. Returns nil when absent.
	GetByID(ctx context.Context, id int64) (*model.Order, error)

	// List returns a filtered page of orders plus the total row count
	// computed from the same filter predicate.
	List(ctx context.Context, filter model.ListOrdersFilter, page model.Pagination) ([]model.Order, int, error)

	// GetStatusHistory returns the append-only status log, oldest first.
	GetStatusHistory(ctx context.Context, orderID int64) ([]model.StatusChange, error)

	// ApplyTransition conditionally moves the order to change.NewStatus and
	// appends the history row in one transaction. The status update is
	// guarded on the order still being in expected; if that guard fails the
	// write affects zero rows and ErrStaleStatus is returned.
	ApplyTransition(ctx context.Context, orderID int64, expected model.Status, change model.StatusChange) (*model.Order, error)

	// UpdateDetails rewrites the customer and delivery columns of an order.
	// Status, totals, items and history are untouchable through it.
	UpdateDetails(ctx context.Context, order *model.Order) error
}

// PaymentRepository stores payment evidence rows attached to orders.
type PaymentRepository interface {
	// Add inserts a payment row and returns it with its assigned ID.
	Add(ctx context.Context, payment *model.Payment) (*model.Payment, error)

	// GetByID retrieves a single payment. Returns nil when absent.
	GetByID(ctx context.Context, id int64) (*model.Payment, error)

	// SetStatus records the verification outcome for a payment.
	SetStatus(ctx context.Context, id int64, status model.PaymentStatus) (*model.Payment, error)
}
