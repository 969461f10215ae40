// Package cart holds the customized lines a session has committed.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/domain/pricing"
)

var (
	// ErrNotFound is returned when a session has no cart.
	ErrNotFound = errors.New("cart not found")
	// ErrItemNotFound is returned when a line index is out of range.
	ErrItemNotFound = errors.New("cart item not found")
)

// Cart is the set of committed lines of one session.
type Cart struct {
	SessionID string
	Items     []pricing.LineItem
	UpdatedAt time.Time
}

// Subtotal sums the line totals.
func (c *Cart) Subtotal() decimal.Decimal {
	if c == nil {
		return decimal.Zero
	}
	return pricing.Subtotal(c.Items)
}

// Add returns a copy of the cart with item appended.
func (c Cart) Add(item pricing.LineItem) Cart {
	items := make([]pricing.LineItem, 0, len(c.Items)+1)
	items = append(items, c.Items...)
	c.Items = append(items, item)
	return c
}

// Remove returns a copy of the cart without the line at index.
func (c Cart) Remove(index int) (Cart, error) {
	if index < 0 || index >= len(c.Items) {
		return c, ErrItemNotFound
	}
	items := make([]pricing.LineItem, 0, len(c.Items)-1)
	items = append(items, c.Items[:index]...)
	c.Items = append(items, c.Items[index+1:]...)
	return c, nil
}

// Restore returns a copy of the cart with the lines of taken placed before
// its own. It puts back a cart claimed for a submission that failed, keeping
// lines added in the meantime.
func (c Cart) Restore(taken Cart) Cart {
	items := make([]pricing.LineItem, 0, len(taken.Items)+len(c.Items))
	items = append(items, taken.Items...)
	c.Items = append(items, c.Items...)
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = taken.UpdatedAt
	}
	return c
}

// UpdateFunc computes the next state of a cart. An error aborts the update
// and is returned unchanged by Repository.Update.
type UpdateFunc func(current Cart) (Cart, error)

// Repository persists carts. Update and Take are atomic per session.
type Repository interface {
	// Get returns ErrNotFound when the session has no cart.
	Get(ctx context.Context, sessionID string) (*Cart, error)
	// Update applies fn to the stored cart, or to an empty one, while no
	// other Update or Take of the session can interleave.
	Update(ctx context.Context, sessionID string, fn UpdateFunc) (*Cart, error)
	// Take removes the cart and returns it, or ErrNotFound when the session
	// has none. Of concurrent Takes only one gets the cart.
	Take(ctx context.Context, sessionID string) (*Cart, error)
	Delete(ctx context.Context, sessionID string) error
}
