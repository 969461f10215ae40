package checkout

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/preference"
)

// Cart returns the cart of a session. A session without a cart has an
// empty one.
func (s *Service) Cart(ctx context.Context, sessionID string) (*cart.Cart, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	c, err := s.carts.Get(ctx, sessionID)
	if errors.Is(err, cart.ErrNotFound) {
		return &cart.Cart{SessionID: sessionID}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	return c, nil
}

// AddToCart prices the line and appends it to the session cart.
func (s *Service) AddToCart(ctx context.Context, sessionID string, req LineRequest) (*cart.Cart, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	line, err := s.PriceLine(ctx, req)
	if err != nil {
		return nil, err
	}

	next, err := s.carts.Update(ctx, sessionID, func(c cart.Cart) (cart.Cart, error) {
		c = c.Add(line.Item)
		c.UpdatedAt = s.now().UTC()
		return c, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return next, nil
}

// RemoveItem drops the line at index from the session cart.
func (s *Service) RemoveItem(ctx context.Context, sessionID string, index int) (*cart.Cart, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	next, err := s.carts.Update(ctx, sessionID, func(c cart.Cart) (cart.Cart, error) {
		c, err := c.Remove(index)
		if err != nil {
			return c, err
		}
		c.UpdatedAt = s.now().UTC()
		return c, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "remove cart item")
	}
	return next, nil
}

// ClearCart empties the session cart.
func (s *Service) ClearCart(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidSession
	}
	if err := s.carts.Delete(ctx, sessionID); err != nil {
		return errors.Wrap(err, "delete cart")
	}
	return nil
}

// Preferences returns the remembered checkout choices of a session.
func (s *Service) Preferences(ctx context.Context, sessionID string) (*preference.Preferences, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	p, err := s.prefs.Get(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "get preferences")
	}
	return p, nil
}

// SavePreferences remembers the checkout choices of a session.
func (s *Service) SavePreferences(ctx context.Context, p *preference.Preferences) error {
	if p.SessionID == "" {
		return ErrInvalidSession
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.prefs.Save(ctx, p); err != nil {
		return errors.Wrap(err, "save preferences")
	}
	return nil
}
