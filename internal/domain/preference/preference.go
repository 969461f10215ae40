// Package preference stores per-session checkout choices, such as the
// last selected delivery address and payment method.
package preference

import (
	"context"
	"time"

	"github.com/xenking/kart-checkout/internal/domain/order"
)

// Preferences are remembered between checkouts of the same session.
type Preferences struct {
	SessionID     string
	AddressID     int64
	PaymentMethod order.PaymentMethod
	UpdatedAt     time.Time
}

// Repository persists preferences. Get returns zero Preferences (not an
// error) for a session that has none.
type Repository interface {
	Get(ctx context.Context, sessionID string) (*Preferences, error)
	Save(ctx context.Context, p *Preferences) error
}
