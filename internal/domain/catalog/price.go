package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceBook maps ingredient IDs to the price of one additional portion.
type PriceBook map[int64]decimal.Decimal

// NewPriceBook indexes catalog entries by ID. Later entries win.
func NewPriceBook(ingredients []Ingredient) PriceBook {
	book := make(PriceBook, len(ingredients))
	for _, ing := range ingredients {
		book[ing.ID] = ing.AdditionalPrice
	}
	return book
}

// Lookup returns the price for id and whether the book has one.
func (b PriceBook) Lookup(id int64) (decimal.Decimal, bool) {
	p, ok := b[id]
	return p, ok
}

// PriceCache stores a batch-fetched PriceBook so that the catalog is not
// fetched again for every pricing request.
type PriceCache interface {
	// Load returns ErrCacheMiss when nothing is cached.
	Load(ctx context.Context) (PriceBook, error)
	Store(ctx context.Context, book PriceBook) error
}

// Resolver resolves unit prices, preferring the catalog and falling back to
// the price carried on the product's ingredient rules. Unknown ingredients
// resolve to zero.
type Resolver struct {
	catalog  PriceBook
	fallback PriceBook
}

// NewResolver builds a Resolver. Either argument may be nil, which is the
// state before the catalog fetch has completed.
func NewResolver(book PriceBook, rules []IngredientRule) Resolver {
	fallback := make(PriceBook, len(rules))
	for _, r := range rules {
		if r.AdditionalPrice.Valid {
			fallback[r.IngredientID] = r.AdditionalPrice.Decimal
		}
	}
	return Resolver{catalog: book, fallback: fallback}
}

// UnitPrice returns the price of one additional portion of the ingredient.
func (r Resolver) UnitPrice(ingredientID int64) decimal.Decimal {
	if p, ok := r.catalog.Lookup(ingredientID); ok && !p.IsNegative() {
		return p
	}
	if p, ok := r.fallback.Lookup(ingredientID); ok && !p.IsNegative() {
		return p
	}
	return decimal.Zero
}
