package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a customer order with its delivery details.
// TotalAmount is fixed at creation time from the item price snapshots and is
// never recomputed, even if catalog prices later change.
type Order struct {
	ID               int64           `json:"id" db:"id"`
	CustomerName     string          `json:"customerName" db:"customer_name"`
	CustomerEmail    string          `json:"customerEmail" db:"customer_email"`
	CustomerPhone    string          `json:"customerPhone" db:"customer_phone"`
	DeliveryAddress  string          `json:"deliveryAddress" db:"delivery_address"`
	DeliveryCity     string          `json:"deliveryCity" db:"delivery_city"`
	DeliveryPostcode string          `json:"deliveryPostcode" db:"delivery_postcode"`
	DeliveryDate     *time.Time      `json:"deliveryDate,omitempty" db:"delivery_date"`
	DeliveryWindow   string          `json:"deliveryWindow,omitempty" db:"delivery_window"`
	Notes            string          `json:"notes,omitempty" db:"notes"`
	Status           Status          `json:"status" db:"status"`
	TotalAmount      decimal.Decimal `json:"totalAmount" db:"total_amount"`
	CreatedAt        time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time       `json:"updatedAt" db:"updated_at"`

	Items    []OrderItem    `json:"items,omitempty"`
	Payments []Payment      `json:"payments,omitempty"`
	History  []StatusChange `json:"history,omitempty"`
}

// OrderItem is a line item in an order. UnitPrice is the catalog price
// snapshotted at order time; the row is immutable after creation.
type OrderItem struct {
	ID          int64           `json:"-" db:"id"`
	OrderID     int64           `json:"-" db:"order_id"`
	ProductID   int64           `json:"productId" db:"product_id"`
	ProductName string          `json:"productName" db:"product_name"`
	UnitPrice   decimal.Decimal `json:"unitPrice" db:"unit_price"`
	Quantity    int             `json:"quantity" db:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal" db:"subtotal"`
}

// StatusChange is one row of the append-only order status history.
// PreviousStatus is nil only for the row written at order creation, and
// ChangedBy is nil for system-initiated transitions.
type StatusChange struct {
	ID             int64     `json:"-" db:"id"`
	OrderID        int64     `json:"-" db:"order_id"`
	PreviousStatus *Status   `json:"previousStatus" db:"previous_status"`
	NewStatus      Status    `json:"newStatus" db:"new_status"`
	Notes          string    `json:"notes,omitempty" db:"notes"`
	ChangedBy      *string   `json:"changedBy,omitempty" db:"changed_by"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

// Payment is a payment record attached to an order. The core only stores the
// evidence and reacts to verification; it performs no verification itself.
type Payment struct {
	ID         int64           `json:"id" db:"id"`
	OrderID    int64           `json:"-" db:"order_id"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Method     string          `json:"method" db:"method"`
	Status     PaymentStatus   `json:"status" db:"status"`
	ProofKey   string          `json:"proofKey,omitempty" db:"proof_key"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
	VerifiedAt *time.Time      `json:"verifiedAt,omitempty" db:"verified_at"`
}

// CreateOrderRequest is the payload for creating an order.
type CreateOrderRequest struct {
	CustomerName     string             `json:"customerName"`
	CustomerEmail    string             `json:"customerEmail"`
	CustomerPhone    string             `json:"customerPhone"`
	DeliveryAddress  string             `json:"deliveryAddress"`
	DeliveryCity     string             `json:"deliveryCity"`
	DeliveryPostcode string             `json:"deliveryPostcode"`
	DeliveryDate     string             `json:"deliveryDate,omitempty"` // YYYY-MM-DD
	DeliveryWindow   string             `json:"deliveryWindow,omitempty"`
	Notes            string             `json:"notes,omitempty"`
	Items            []OrderItemRequest `json:"items"`
}

// OrderItemRequest is a single requested line in an order.
type OrderItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// UpdateOrderRequest patches customer and delivery details of an order.
// Nil fields are left untouched. Status and totals are not reachable here.
type UpdateOrderRequest struct {
	CustomerName     *string `json:"customerName,omitempty"`
	CustomerEmail    *string `json:"customerEmail,omitempty"`
	CustomerPhone    *string `json:"customerPhone,omitempty"`
	DeliveryAddress  *string `json:"deliveryAddress,omitempty"`
	DeliveryCity     *string `json:"deliveryCity,omitempty"`
	DeliveryPostcode *string `json:"deliveryPostcode,omitempty"`
	DeliveryDate     *string `json:"deliveryDate,omitempty"`
	DeliveryWindow   *string `json:"deliveryWindow,omitempty"`
	Notes            *string `json:"notes,omitempty"`
}

// UpdateStatusRequest asks for a status transition on an order.
type UpdateStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

// RecordPaymentRequest records payment evidence against an order.
type RecordPaymentRequest struct {
	Amount string `json:"amount"`
	Method string `json:"method"`
}

// ListOrdersFilter narrows an order listing. Zero values mean "no filter".
type ListOrdersFilter struct {
	Status   *Status
	From     *time.Time
	To       *time.Time
	Customer string
}

// Pagination is an offset/limit page request.
type Pagination struct {
	Page  int
	Limit int
}

// Offset returns the row offset for the page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// PaginationInfo describes the page actually returned. TotalItems is counted
// with the same filter predicate as the page itself.
type PaginationInfo struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// OrderList is a page of orders plus its pagination metadata.
type OrderList struct {
	Orders     []Order        `json:"orders"`
	Pagination PaginationInfo `json:"pagination"`
}
