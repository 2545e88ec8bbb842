// Package pricing validates order requests and computes authoritative line
// totals from current catalog prices. It writes nothing; the repository owns
// all persistence.
package pricing

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"time"

	"bloomkart/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Catalog is the read-only product collaborator. Implementations must return
// all requested products in one batched read.
type Catalog interface {
	GetByIDs(ctx context.Context, ids []int64) ([]model.Product, error)
}

// Draft is the validated, typed form of a create-order request.
type Draft struct {
	CustomerName     string
	CustomerEmail    string
	CustomerPhone    string
	DeliveryAddress  string
	DeliveryCity     string
	DeliveryPostcode string
	DeliveryDate     *time.Time
	DeliveryWindow   string
	Notes            string
	Items            []model.OrderItemRequest
}

// Quote holds priced item drafts with their snapshots and the order total.
type Quote struct {
	Items []model.OrderItem
	Total decimal.Decimal
}

var phonePattern = regexp.MustCompile(`^\+?[0-9 ()-]{7,20}$`)

// countDigits counts decimal digits in s.
func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// ValidateRequest checks the request shape and returns a typed draft, or a
// ValidationError listing every bad field. No I/O happens here.
//
// A delivery date in the past is deliberately not rejected: date plausibility
// is a display concern, only the format is enforced.
func ValidateRequest(req *model.CreateOrderRequest) (*Draft, error) {
	verr := &model.ValidationError{}

	if req == nil {
		verr.Add("request", "request body is required")
		return nil, verr
	}

	if req.CustomerName == "" {
		verr.Add("customerName", "customer name is required")
	}

	if req.CustomerEmail == "" {
		verr.Add("customerEmail", "customer email is required")
	} else if _, err := mail.ParseAddress(req.CustomerEmail); err != nil {
		verr.Add("customerEmail", "invalid email address")
	}

	if req.CustomerPhone == "" {
		verr.Add("customerPhone", "customer phone is required")
	} else if !phonePattern.MatchString(req.CustomerPhone) ||
		countDigits(req.CustomerPhone) < 7 || countDigits(req.CustomerPhone) > 15 {
		verr.Add("customerPhone", "phone must contain 7 to 15 digits")
	}

	if req.DeliveryAddress == "" {
		verr.Add("deliveryAddress", "delivery address is required")
	}

	var deliveryDate *time.Time
	if req.DeliveryDate != "" {
		d, err := time.Parse("2006-01-02", req.DeliveryDate)
		if err != nil {
			verr.Add("deliveryDate", "must be formatted YYYY-MM-DD")
		} else {
			deliveryDate = &d
		}
	}

	if len(req.Items) == 0 {
		verr.Add("items", "order must contain at least one item")
	}
	for i, item := range req.Items {
		if item.ProductID <= 0 {
			verr.Add(fmt.Sprintf("items[%d].productId", i), "product id is required")
		}
		if item.Quantity < 1 {
			verr.Add(fmt.Sprintf("items[%d].quantity", i), "quantity must be a positive integer")
		}
	}

	if verr.HasErrors() {
		return nil, verr
	}

	return &Draft{
		CustomerName:     req.CustomerName,
		CustomerEmail:    req.CustomerEmail,
		CustomerPhone:    req.CustomerPhone,
		DeliveryAddress:  req.DeliveryAddress,
		DeliveryCity:     req.DeliveryCity,
		DeliveryPostcode: req.DeliveryPostcode,
		DeliveryDate:     deliveryDate,
		DeliveryWindow:   req.DeliveryWindow,
		Notes:            req.Notes,
		Items:            req.Items,
	}, nil
}

// Pricer snapshots catalog prices into order item drafts.
type Pricer struct {
	catalog Catalog
	logger  zerolog.Logger
}

// New creates a Pricer backed by the given catalog.
func New(catalog Catalog, logger zerolog.Logger) *Pricer {
	return &Pricer{
		catalog: catalog,
		logger:  logger.With().Str("component", "pricing").Logger(),
	}
}

// Price fetches the referenced products in one batched read and builds priced
// item drafts. Per-line failures are collected into a single PricingError so
// the caller receives the complete report: a missing or inactive product
// fails that line with PRODUCT_UNAVAILABLE, a quantity above current stock
// with INSUFFICIENT_STOCK.
//
// Totals are rounded to 2 decimal places with banker's rounding
// (half-to-even) to avoid systematic bias.
func (p *Pricer) Price(ctx context.Context, items []model.OrderItemRequest) (*Quote, error) {
	ids := make([]int64, 0, len(items))
	seen := make(map[int64]bool, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	products, err := p.catalog.GetByIDs(ctx, ids)
	if err != nil {
		p.logger.Error().Err(err).Int("product_count", len(ids)).Msg("catalog read failed")
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	byID := make(map[int64]model.Product, len(products))
	for _, prod := range products {
		byID[prod.ID] = prod
	}

	perr := &model.PricingError{}
	drafts := make([]model.OrderItem, 0, len(items))
	total := decimal.Zero

	for _, item := range items {
		prod, ok := byID[item.ProductID]
		if !ok || !prod.Active {
			perr.Lines = append(perr.Lines, model.LineError{
				ProductID: item.ProductID,
				Code:      model.ErrCodeProductUnavailable,
			})
			continue
		}

		if item.Quantity > prod.Stock {
			perr.Lines = append(perr.Lines, model.LineError{
				ProductID: item.ProductID,
				Code:      model.ErrCodeInsufficientStock,
				Requested: item.Quantity,
				Available: prod.Stock,
			})
			continue
		}

		subtotal := prod.Price.Mul(decimal.NewFromInt(int64(item.Quantity))).RoundBank(2)
		drafts = append(drafts, model.OrderItem{
			ProductID:   prod.ID,
			ProductName: prod.Name,
			UnitPrice:   prod.Price,
			Quantity:    item.Quantity,
			Subtotal:    subtotal,
		})
		total = total.Add(subtotal)
	}

	if len(perr.Lines) > 0 {
		p.logger.Warn().Int("rejected_lines", len(perr.Lines)).Msg("order lines rejected")
		return nil, perr
	}

	return &Quote{Items: drafts, Total: total.RoundBank(2)}, nil
}
