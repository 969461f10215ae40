package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-checkout/internal/domain/order"
	"github.com/xenking/kart-checkout/internal/domain/preference"
)

const (
	getPreferencesSQL = `SELECT address_id, payment_method, updated_at
	FROM session_preferences WHERE session_id = $1`

	upsertPreferencesSQL = `INSERT INTO session_preferences (session_id, address_id, payment_method, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (session_id) DO UPDATE
	SET address_id = EXCLUDED.address_id,
	    payment_method = EXCLUDED.payment_method,
	    updated_at = EXCLUDED.updated_at`
)

var _ preference.Repository = (*PreferenceRepository)(nil)

// PreferenceRepository implements preference.Repository.
type PreferenceRepository struct {
	pool *pgxpool.Pool
}

// NewPreferenceRepository returns a PreferenceRepository that uses the given pool.
func NewPreferenceRepository(pool *pgxpool.Pool) *PreferenceRepository {
	return &PreferenceRepository{pool: pool}
}

// Get returns the stored preferences, or empty ones for an unknown session.
func (r *PreferenceRepository) Get(ctx context.Context, sessionID string) (*preference.Preferences, error) {
	p := &preference.Preferences{SessionID: sessionID}
	var method string
	err := r.pool.QueryRow(ctx, getPreferencesSQL, sessionID).Scan(&p.AddressID, &method, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, nil
		}
		return nil, fmt.Errorf("getting preferences %q: %w", sessionID, err)
	}
	if m, ok := order.ParsePaymentMethod(method); ok {
		p.PaymentMethod = m
	}
	return p, nil
}

// Save upserts the preferences of a session.
func (r *PreferenceRepository) Save(ctx context.Context, p *preference.Preferences) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, upsertPreferencesSQL, p.SessionID, p.AddressID, string(p.PaymentMethod), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving preferences %q: %w", p.SessionID, err)
	}
	return nil
}
