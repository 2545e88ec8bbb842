package repository

import (
	"context"
	"errors"
	"fmt"

	"bloomkart/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// paymentRepository implements the PaymentRepository interface using
// PostgreSQL.
type paymentRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPaymentRepository creates a new PostgreSQL-backed payment repository.
func NewPaymentRepository(pool *pgxpool.Pool, logger zerolog.Logger) PaymentRepository {
	return &paymentRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "payment").Logger(),
	}
}

const paymentColumns = `id, order_id, amount, method, status, proof_key, created_at, verified_at`

// Add inserts a payment row and returns it with its assigned ID.
func (r *paymentRepository) Add(ctx context.Context, payment *model.Payment) (*model.Payment, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO payments (order_id, amount, method, status, proof_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, payment.OrderID, payment.Amount, payment.Method, string(payment.Status), payment.ProofKey).
		Scan(&payment.ID, &payment.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).Int64("order_id", payment.OrderID).Msg("failed to insert payment")
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}

	r.logger.Debug().
		Int64("payment_id", payment.ID).
		Int64("order_id", payment.OrderID).
		Msg("payment recorded")

	return payment, nil
}

// GetByID retrieves a single payment by its ID.
func (r *paymentRepository) GetByID(ctx context.Context, id int64) (*model.Payment, error) {
	var p model.Payment
	var statusRaw string
	err := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id).Scan(
		&p.ID, &p.OrderID, &p.Amount, &p.Method, &statusRaw, &p.ProofKey, &p.CreatedAt, &p.VerifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Int64("payment_id", id).Msg("payment not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Int64("payment_id", id).Msg("failed to query payment")
		return nil, fmt.Errorf("failed to query payment: %w", err)
	}
	p.Status = model.PaymentStatus(statusRaw)

	return &p, nil
}

// SetStatus records the verification outcome. verified_at is stamped only
// when the payment is marked verified.
func (r *paymentRepository) SetStatus(ctx context.Context, id int64, status model.PaymentStatus) (*model.Payment, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payments
		SET status = $1,
		    verified_at = CASE WHEN $1 = 'verified' THEN NOW() ELSE verified_at END
		WHERE id = $2
	`, string(status), id)
	if err != nil {
		r.logger.Error().Err(err).Int64("payment_id", id).Msg("failed to update payment status")
		return nil, fmt.Errorf("failed to update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}
