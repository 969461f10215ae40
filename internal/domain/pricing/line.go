package pricing

import "github.com/shopspring/decimal"

// LineItem is a customized product committed to the cart.
type LineItem struct {
	ProductID     int64                    `json:"product_id"`
	ProductName   string                   `json:"product_name"`
	UnitPrice     decimal.Decimal          `json:"unit_price"`
	Quantity      int                      `json:"quantity"`
	Modifications []IngredientModification `json:"modifications"`
	Extras        []ExtraSelection         `json:"extras"`
	Note          string                   `json:"note,omitempty"`
	Additional    decimal.Decimal          `json:"additional"`
	Total         decimal.Decimal          `json:"total"`
}

// Subtotal sums the totals of the given lines.
func Subtotal(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Total)
	}
	return sum
}
