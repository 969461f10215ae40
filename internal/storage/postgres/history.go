package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-checkout/internal/domain/order"
)

const (
	recordSubmissionSQL = `INSERT INTO submitted_orders (order_id, session_id, total, points_to_redeem, payment_method, submitted_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (order_id) DO NOTHING`

	listSubmissionsSQL = `SELECT order_id, session_id, total, points_to_redeem, payment_method, submitted_at
	FROM submitted_orders WHERE session_id = $1
	ORDER BY submitted_at DESC
	LIMIT $2`
)

var _ order.History = (*HistoryRepository)(nil)

// HistoryRepository implements order.History.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository returns a HistoryRepository that uses the given pool.
func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// Record stores a submission. Recording the same order twice is a no-op.
func (r *HistoryRepository) Record(ctx context.Context, s *order.Submission) error {
	_, err := r.pool.Exec(ctx, recordSubmissionSQL,
		s.OrderID, s.SessionID, s.Total, s.PointsToRedeem, string(s.PaymentMethod), s.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("recording order %d: %w", s.OrderID, err)
	}
	return nil
}

// List returns the latest submissions of a session, newest first.
func (r *HistoryRepository) List(ctx context.Context, sessionID string, limit int) ([]order.Submission, error) {
	rows, err := r.pool.Query(ctx, listSubmissionsSQL, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", sessionID, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Submission, error) {
		var (
			s      order.Submission
			method string
		)
		err := row.Scan(&s.OrderID, &s.SessionID, &s.Total, &s.PointsToRedeem, &method, &s.SubmittedAt)
		s.PaymentMethod = order.PaymentMethod(method)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning orders of %q: %w", sessionID, err)
	}
	return out, nil
}
