package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/pricing"
)

const (
	getCartSQL = `SELECT items, updated_at FROM carts WHERE session_id = $1`

	ensureCartSQL = `INSERT INTO carts (session_id) VALUES ($1)
	ON CONFLICT (session_id) DO NOTHING`

	lockCartSQL = `SELECT items, updated_at FROM carts WHERE session_id = $1 FOR UPDATE`

	updateCartSQL = `UPDATE carts SET items = $2, subtotal = $3, updated_at = $4
	WHERE session_id = $1`

	takeCartSQL = `DELETE FROM carts WHERE session_id = $1 RETURNING items, updated_at`

	deleteCartSQL = `DELETE FROM carts WHERE session_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository. Lines are stored as JSONB.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get loads the cart of a session.
func (r *CartRepository) Get(ctx context.Context, sessionID string) (*cart.Cart, error) {
	c, err := scanCart(r.pool.QueryRow(ctx, getCartSQL, sessionID), sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart %q: %w", sessionID, err)
	}
	return c, nil
}

// Update locks the session row, creating an empty one when missing, and
// writes back the result of fn in the same transaction. Errors from fn are
// returned as is and leave the cart untouched.
func (r *CartRepository) Update(ctx context.Context, sessionID string, fn cart.UpdateFunc) (*cart.Cart, error) {
	var out *cart.Cart
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, ensureCartSQL, sessionID); err != nil {
			return fmt.Errorf("creating cart %q: %w", sessionID, err)
		}
		current, err := scanCart(tx.QueryRow(ctx, lockCartSQL, sessionID), sessionID)
		if err != nil {
			return fmt.Errorf("locking cart %q: %w", sessionID, err)
		}

		next, err := fn(*current)
		if err != nil {
			return err
		}
		next.SessionID = sessionID
		if next.UpdatedAt.IsZero() {
			next.UpdatedAt = time.Now().UTC()
		}

		raw, err := marshalItems(next.Items)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, updateCartSQL, sessionID, raw, subtotalOf(&next), next.UpdatedAt); err != nil {
			return fmt.Errorf("saving cart %q: %w", sessionID, err)
		}
		out = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Take deletes the cart and returns what it held. The row lock taken by the
// DELETE makes a concurrent Take see no row.
func (r *CartRepository) Take(ctx context.Context, sessionID string) (*cart.Cart, error) {
	c, err := scanCart(r.pool.QueryRow(ctx, takeCartSQL, sessionID), sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("taking cart %q: %w", sessionID, err)
	}
	return c, nil
}

// Delete removes the cart of a session. Deleting a missing cart is not an error.
func (r *CartRepository) Delete(ctx context.Context, sessionID string) error {
	if _, err := r.pool.Exec(ctx, deleteCartSQL, sessionID); err != nil {
		return fmt.Errorf("deleting cart %q: %w", sessionID, err)
	}
	return nil
}

func scanCart(row pgx.Row, sessionID string) (*cart.Cart, error) {
	var (
		raw       []byte
		updatedAt time.Time
	)
	if err := row.Scan(&raw, &updatedAt); err != nil {
		return nil, err
	}
	var items []pricing.LineItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decoding cart %q items: %w", sessionID, err)
	}
	return &cart.Cart{
		SessionID: sessionID,
		Items:     items,
		UpdatedAt: updatedAt,
	}, nil
}

func marshalItems(items []pricing.LineItem) ([]byte, error) {
	if items == nil {
		items = []pricing.LineItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshaling cart items: %w", err)
	}
	return raw, nil
}

// subtotalOf is the denormalized subtotal column, kept for reporting.
func subtotalOf(c *cart.Cart) decimal.Decimal {
	subtotal := c.Subtotal().Round(2)
	if subtotal.IsNegative() {
		return decimal.Zero
	}
	return subtotal
}
