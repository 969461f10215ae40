// Package pricing computes the price of a customized product line.
//
// Additional cost is billed only for portions above an ingredient's default
// (recipe ingredients) or above its configured minimum (extras). Removing an
// ingredient never refunds anything. All arithmetic is done in decimal
// currency units and nothing is rounded here; rounding belongs to whoever
// formats the value.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/domain/catalog"
)

// PriceLookup resolves the price of one additional portion of an ingredient.
// Implementations must return zero for unknown ingredients.
type PriceLookup interface {
	UnitPrice(ingredientID int64) decimal.Decimal
}

// PriceFunc adapts a function to PriceLookup.
type PriceFunc func(ingredientID int64) decimal.Decimal

// UnitPrice implements PriceLookup.
func (f PriceFunc) UnitPrice(ingredientID int64) decimal.Decimal { return f(ingredientID) }

var _ PriceLookup = catalog.Resolver{}

// IngredientModification is the signed change of a recipe ingredient
// relative to its default portions.
type IngredientModification struct {
	IngredientID int64 `json:"ingredient_id"`
	Delta        int   `json:"delta"`
}

// Billable returns the number of portions charged for the modification.
func (m IngredientModification) Billable() int {
	return max(0, m.Delta)
}

// ExtraSelection is the chosen quantity of an optional ingredient.
type ExtraSelection struct {
	IngredientID int64 `json:"ingredient_id"`
	Quantity     int   `json:"quantity"`
	MinQuantity  int   `json:"min_quantity"`
}

// Billable returns the number of portions charged for the extra: only the
// quantity above the configured minimum.
func (e ExtraSelection) Billable() int {
	return max(0, e.Quantity-e.MinQuantity)
}

// ModificationCost is the additional cost contributed by a recipe ingredient.
func ModificationCost(m IngredientModification, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(m.Billable())))
}

// ExtraCost is the additional cost contributed by an extra ingredient.
func ExtraCost(e ExtraSelection, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(e.Billable())))
}

// AdditionalCost sums the cost of all modifications and extras.
func AdditionalCost(mods []IngredientModification, extras []ExtraSelection, lookup PriceLookup) decimal.Decimal {
	sum := decimal.Zero
	for _, m := range mods {
		sum = sum.Add(ModificationCost(m, unitPrice(lookup, m.IngredientID)))
	}
	for _, e := range extras {
		sum = sum.Add(ExtraCost(e, unitPrice(lookup, e.IngredientID)))
	}
	return sum
}

// ComputeLineTotal returns basePrice × quantity plus the additional cost of
// the customization. The additional cost is charged once per line, not per
// unit.
func ComputeLineTotal(
	product catalog.Product,
	quantity int,
	mods []IngredientModification,
	extras []ExtraSelection,
	lookup PriceLookup,
) decimal.Decimal {
	base := product.BasePrice.Mul(decimal.NewFromInt(int64(max(0, quantity))))
	return base.Add(AdditionalCost(mods, extras, lookup))
}

func unitPrice(lookup PriceLookup, id int64) decimal.Decimal {
	if lookup == nil {
		return decimal.Zero
	}
	p := lookup.UnitPrice(id)
	if p.IsNegative() {
		return decimal.Zero
	}
	return p
}
