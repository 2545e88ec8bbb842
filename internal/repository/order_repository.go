package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bloomkart/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// Create atomically inserts the order header, its items and the initial
// history row. The transaction rolls back as a whole if any insert fails, so
// readers never observe a partial order.
func (r *orderRepository) Create(ctx context.Context, order *model.Order, items []model.OrderItem, initial model.StatusChange) (*model.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
	}()

	headerQuery := `
		INSERT INTO orders (
			customer_name, customer_email, customer_phone,
			delivery_address, delivery_city, delivery_postcode,
			delivery_date, delivery_window, notes,
			status, total_amount
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`

	err = tx.QueryRow(ctx, headerQuery,
		order.CustomerName, order.CustomerEmail, order.CustomerPhone,
		order.DeliveryAddress, order.DeliveryCity, order.DeliveryPostcode,
		order.DeliveryDate, order.DeliveryWindow, order.Notes,
		string(order.Status), order.TotalAmount,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to insert order header")
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (order_id, product_id, product_name, unit_price, quantity, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(itemQuery, order.ID, item.ProductID, item.ProductName, item.UnitPrice, item.Quantity, item.Subtotal)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range items {
		items[i].OrderID = order.ID
		if err := results.QueryRow().Scan(&items[i].ID); err != nil {
			results.Close()
			r.logger.Error().
				Err(err).
				Int64("order_id", order.ID).
				Int64("product_id", items[i].ProductID).
				Msg("failed to insert order item")
			return nil, fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("failed to insert order items: %w", err)
	}

	historyQuery := `
		INSERT INTO order_status_history (order_id, previous_status, new_status, notes, changed_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	initial.OrderID = order.ID
	err = tx.QueryRow(ctx, historyQuery,
		order.ID, statusPtrToString(initial.PreviousStatus), string(initial.NewStatus),
		initial.Notes, initial.ChangedBy,
	).Scan(&initial.ID, &initial.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).Int64("order_id", order.ID).Msg("failed to insert initial status history")
		return nil, fmt.Errorf("failed to insert status history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error().Err(err).Int64("order_id", order.ID).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}

	order.Items = items
	order.History = []model.StatusChange{initial}

	r.logger.Debug().
		Int64("order_id", order.ID).
		Int("item_count", len(items)).
		Msg("order created")

	return order, nil
}

const orderColumns = `
	id, customer_name, customer_email, customer_phone,
	delivery_address, delivery_city, delivery_postcode,
	delivery_date, delivery_window, notes,
	status, total_amount, created_at, updated_at
`

// GetByID retrieves an order with its items, payments and ordered history.
// All four result sets are fetched in one batched round trip.
func (r *orderRepository) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	batch := &pgx.Batch{}
	batch.Queue(`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	batch.Queue(`
		SELECT id, order_id, product_id, product_name, unit_price, quantity, subtotal
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, id)
	batch.Queue(`
		SELECT id, order_id, amount, method, status, proof_key, created_at, verified_at
		FROM payments
		WHERE order_id = $1
		ORDER BY id
	`, id)
	batch.Queue(`
		SELECT id, order_id, previous_status, new_status, notes, changed_by, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at, id
	`, id)

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	var order model.Order
	var statusRaw string
	err := results.QueryRow().Scan(
		&order.ID, &order.CustomerName, &order.CustomerEmail, &order.CustomerPhone,
		&order.DeliveryAddress, &order.DeliveryCity, &order.DeliveryPostcode,
		&order.DeliveryDate, &order.DeliveryWindow, &order.Notes,
		&statusRaw, &order.TotalAmount, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Int64("order_id", id).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Int64("order_id", id).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	order.Status = model.Status(statusRaw)

	rows, err := results.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	order.Items, err = scanItems(rows)
	if err != nil {
		r.logger.Error().Err(err).Int64("order_id", id).Msg("failed to scan order items")
		return nil, err
	}

	rows, err = results.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	order.Payments, err = scanPayments(rows)
	if err != nil {
		r.logger.Error().Err(err).Int64("order_id", id).Msg("failed to scan payments")
		return nil, err
	}

	rows, err = results.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	order.History, err = scanHistory(rows)
	if err != nil {
		r.logger.Error().Err(err).Int64("order_id", id).Msg("failed to scan status history")
		return nil, err
	}

	return &order, nil
}

// List returns a filtered page of orders. The total count is computed with
// the same WHERE clause as the page itself.
func (r *orderRepository) List(ctx context.Context, filter model.ListOrdersFilter, page model.Pagination) ([]model.Order, int, error) {
	var conds []string
	var args []any

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.Customer != "" {
		args = append(args, "%"+filter.Customer+"%")
		conds = append(conds, fmt.Sprintf("(customer_name ILIKE $%d OR customer_email ILIKE $%d)", len(args), len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		r.logger.Error().Err(err).Msg("failed to count orders")
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	pageArgs := append(args, page.Limit, page.Offset())
	query := fmt.Sprintf(
		`SELECT %s FROM orders%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)+1, len(args)+2,
	)

	rows, err := r.pool.Query(ctx, query, pageArgs...)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query orders")
		return nil, 0, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var order model.Order
		var statusRaw string
		err := rows.Scan(
			&order.ID, &order.CustomerName, &order.CustomerEmail, &order.CustomerPhone,
			&order.DeliveryAddress, &order.DeliveryCity, &order.DeliveryPostcode,
			&order.DeliveryDate, &order.DeliveryWindow, &order.Notes,
			&statusRaw, &order.TotalAmount, &order.CreatedAt, &order.UpdatedAt,
		)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order row")
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		order.Status = model.Status(statusRaw)
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, total, nil
}

// GetStatusHistory returns the append-only status log for an order, oldest
// entry first.
func (r *orderRepository) GetStatusHistory(ctx context.Context, orderID int64) ([]model.StatusChange, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, previous_status, new_status, notes, changed_by, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		r.logger.Error().Err(err).Int64("order_id", orderID).Msg("failed to query status history")
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	return scanHistory(rows)
}

// ApplyTransition performs the compare-and-write: the status update is
// conditioned on the row still holding the expected status. Zero affected
// rows means another actor changed it first and nothing is written.
func (r *orderRepository) ApplyTransition(ctx context.Context, orderID int64, expected model.Status, change model.StatusChange) (*model.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
	}()

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, string(change.NewStatus), orderID, string(expected))
	if err != nil {
		r.logger.Error().Err(err).Int64("order_id", orderID).Msg("failed to update order status")
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		r.logger.Warn().
			Int64("order_id", orderID).
			Str("expected", string(expected)).
			Str("requested", string(change.NewStatus)).
			Msg("optimistic concurrency guard failed")
		return nil, ErrStaleStatus
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_history (order_id, previous_status, new_status, notes, changed_by)
		VALUES ($1, $2, $3, $4, $5)
	`, orderID, statusPtrToString(change.PreviousStatus), string(change.NewStatus), change.Notes, change.ChangedBy)
	if err != nil {
		r.logger.Error().Err(err).Int64("order_id", orderID).Msg("failed to append status history")
		return nil, fmt.Errorf("failed to append status history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error().Err(err).Int64("order_id", orderID).Msg("failed to commit transition")
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}

	r.logger.Info().
		Int64("order_id", orderID).
		Str("from", string(expected)).
		Str("to", string(change.NewStatus)).
		Msg("order status transitioned")

	return r.GetByID(ctx, orderID)
}

// UpdateDetails rewrites the customer and delivery columns only.
func (r *orderRepository) UpdateDetails(ctx context.Context, order *model.Order) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET customer_name = $1, customer_email = $2, customer_phone = $3,
		    delivery_address = $4, delivery_city = $5, delivery_postcode = $6,
		    delivery_date = $7, delivery_window = $8, notes = $9,
		    updated_at = NOW()
		WHERE id = $10
	`,
		order.CustomerName, order.CustomerEmail, order.CustomerPhone,
		order.DeliveryAddress, order.DeliveryCity, order.DeliveryPostcode,
		order.DeliveryDate, order.DeliveryWindow, order.Notes,
		order.ID,
	)
	if err != nil {
		r.logger.Error().Err(err).Int64("order_id", order.ID).Msg("failed to update order details")
		return fmt.Errorf("failed to update order details: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update order details: %w", pgx.ErrNoRows)
	}
	return nil
}

func scanItems(rows pgx.Rows) ([]model.OrderItem, error) {
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var item model.OrderItem
		err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.UnitPrice, &item.Quantity, &item.Subtotal)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}
	return items, nil
}

func scanPayments(rows pgx.Rows) ([]model.Payment, error) {
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		var p model.Payment
		var statusRaw string
		err := rows.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Method, &statusRaw,
			&p.ProofKey, &p.CreatedAt, &p.VerifiedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.Status = model.PaymentStatus(statusRaw)
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}
	return payments, nil
}

func scanHistory(rows pgx.Rows) ([]model.StatusChange, error) {
	defer rows.Close()

	var history []model.StatusChange
	for rows.Next() {
		var h model.StatusChange
		var prev *string
		var newRaw string
		err := rows.Scan(&h.ID, &h.OrderID, &prev, &newRaw, &h.Notes, &h.ChangedBy, &h.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		if prev != nil {
			s := model.Status(*prev)
			h.PreviousStatus = &s
		}
		h.NewStatus = model.Status(newRaw)
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status history: %w", err)
	}
	return history, nil
}

func statusPtrToString(s *model.Status) *string {
	if s == nil {
		return nil
	}
	raw := string(*s)
	return &raw
}
