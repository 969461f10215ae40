// Package catalog holds the canonical product and ingredient types the
// pricing core works with. Records coming from the ordering backend are
// normalized into these types before they reach any computation.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrProductNotFound is returned when a requested product does not exist.
	ErrProductNotFound = errors.New("product not found")
	// ErrCacheMiss is returned by a PriceCache that holds no price book.
	ErrCacheMiss = errors.New("price cache miss")
)

// Product is a menu item that can be customized and ordered.
type Product struct {
	ID          int64
	Name        string
	Description string
	BasePrice   decimal.Decimal
	Image       string
}

// Kind classifies an ingredient rule for the customization screen.
type Kind int

const (
	// KindBase is a recipe ingredient adjustable within [Min, Max].
	KindBase Kind = iota
	// KindFixed is a recipe ingredient whose Max equals its Min; it cannot be
	// adjusted and is hidden from the customization list.
	KindFixed
	// KindExtra is an optional add-on with no default portions.
	KindExtra
)

func (k Kind) String() string {
	switch k {
	case KindBase:
		return "base"
	case KindFixed:
		return "fixed"
	case KindExtra:
		return "extra"
	default:
		return "unknown"
	}
}

// IngredientRule describes how one ingredient may be customized on a product.
type IngredientRule struct {
	IngredientID int64
	Name         string
	// AdditionalPrice is the price field carried by the rule record itself,
	// used only when the catalog has no price for the ingredient.
	AdditionalPrice decimal.NullDecimal
	Portions        int
	MinQuantity     int
	// MaxQuantity is nil when the quantity is bounded only by stock.
	MaxQuantity *int
}

// Kind reports how the rule is presented and billed.
func (r IngredientRule) Kind() Kind {
	if r.Portions <= 0 {
		return KindExtra
	}
	if r.MaxQuantity != nil && *r.MaxQuantity == r.MinQuantity {
		return KindFixed
	}
	return KindBase
}

// Clamp bounds q into the rule's [MinQuantity, MaxQuantity] range. A nil or
// negative MaxQuantity leaves the upper side open.
func (r IngredientRule) Clamp(q int) int {
	lo := r.MinQuantity
	if lo < 0 {
		lo = 0
	}
	if q < lo {
		q = lo
	}
	if r.MaxQuantity != nil && *r.MaxQuantity >= 0 && q > *r.MaxQuantity {
		q = *r.MaxQuantity
	}
	return q
}

// Initial is the quantity a fresh customization starts with: the default
// portions for recipe ingredients and the configured minimum for extras.
func (r IngredientRule) Initial() int {
	if r.Kind() == KindExtra {
		return r.Clamp(r.MinQuantity)
	}
	return r.Clamp(r.Portions)
}

// Ingredient is an entry of the ingredient catalog.
type Ingredient struct {
	ID              int64
	Name            string
	AdditionalPrice decimal.Decimal
}

// Settings are the public store settings that affect checkout totals.
type Settings struct {
	DeliveryFee    decimal.Decimal
	GainRate       decimal.Decimal
	RedemptionRate decimal.Decimal
}

// Source provides catalog data from the ordering backend.
type Source interface {
	Ingredients(ctx context.Context) ([]Ingredient, error)
	Product(ctx context.Context, id int64) (*Product, error)
	ProductIngredients(ctx context.Context, productID int64) ([]IngredientRule, error)
	Settings(ctx context.Context) (*Settings, error)
}
