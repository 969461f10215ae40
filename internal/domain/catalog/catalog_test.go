package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestIngredientRule_Kind(t *testing.T) {
	tests := []struct {
		name string
		rule IngredientRule
		want Kind
	}{
		{name: "extra has no portions", rule: IngredientRule{Portions: 0, MinQuantity: 1, MaxQuantity: intPtr(3)}, want: KindExtra},
		{name: "extra with max equal to min stays extra", rule: IngredientRule{Portions: 0, MinQuantity: 1, MaxQuantity: intPtr(1)}, want: KindExtra},
		{name: "base with open max", rule: IngredientRule{Portions: 1}, want: KindBase},
		{name: "base with range", rule: IngredientRule{Portions: 1, MinQuantity: 0, MaxQuantity: intPtr(3)}, want: KindBase},
		{name: "fixed when max equals min", rule: IngredientRule{Portions: 2, MinQuantity: 2, MaxQuantity: intPtr(2)}, want: KindFixed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Kind())
		})
	}
}

func TestIngredientRule_Clamp(t *testing.T) {
	r := IngredientRule{Portions: 1, MinQuantity: 1, MaxQuantity: intPtr(3)}
	assert.Equal(t, 1, r.Clamp(-4))
	assert.Equal(t, 1, r.Clamp(0))
	assert.Equal(t, 2, r.Clamp(2))
	assert.Equal(t, 3, r.Clamp(9))

	open := IngredientRule{Portions: 1}
	assert.Equal(t, 50, open.Clamp(50))

	negativeMax := IngredientRule{Portions: 1, MaxQuantity: intPtr(-1)}
	assert.Equal(t, 7, negativeMax.Clamp(7), "negative max is treated as unbounded")
}

func TestIngredientRule_Initial(t *testing.T) {
	assert.Equal(t, 2, IngredientRule{Portions: 2}.Initial())
	assert.Equal(t, 1, IngredientRule{Portions: 0, MinQuantity: 1}.Initial())
	assert.Equal(t, 0, IngredientRule{Portions: 0}.Initial())
}

func TestResolver_UnitPrice(t *testing.T) {
	book := NewPriceBook([]Ingredient{
		{ID: 1, AdditionalPrice: decimal.RequireFromString("1.50")},
	})
	rules := []IngredientRule{
		{IngredientID: 1, AdditionalPrice: decimal.NewNullDecimal(decimal.RequireFromString("9.99"))},
		{IngredientID: 2, AdditionalPrice: decimal.NewNullDecimal(decimal.RequireFromString("2.25"))},
		{IngredientID: 3},
	}
	r := NewResolver(book, rules)

	assert.True(t, decimal.RequireFromString("1.50").Equal(r.UnitPrice(1)), "catalog wins over rule price")
	assert.True(t, decimal.RequireFromString("2.25").Equal(r.UnitPrice(2)), "rule price used as fallback")
	assert.True(t, decimal.Zero.Equal(r.UnitPrice(3)))
	assert.True(t, decimal.Zero.Equal(r.UnitPrice(42)))
}

func TestResolver_BeforeCatalogLoaded(t *testing.T) {
	var r Resolver
	assert.True(t, decimal.Zero.Equal(r.UnitPrice(1)))
}
