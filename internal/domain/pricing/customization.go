package pricing

import (
	"maps"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/domain/catalog"
)

// MaxNoteLength is the maximum number of characters kept in a line note.
const MaxNoteLength = 140

// Customization is the state of one product being customized. It is a value:
// every update returns a new Customization and leaves the receiver intact.
type Customization struct {
	product  catalog.Product
	rules    []catalog.IngredientRule
	current  map[int64]int
	quantity int
	note     string
}

// NewCustomization starts a customization with every ingredient at its
// initial quantity and a line quantity of one.
func NewCustomization(product catalog.Product, rules []catalog.IngredientRule) Customization {
	current := make(map[int64]int, len(rules))
	for _, r := range rules {
		current[r.IngredientID] = r.Initial()
	}
	return Customization{
		product:  product,
		rules:    rules,
		current:  current,
		quantity: 1,
	}
}

// Product returns the product being customized.
func (c Customization) Product() catalog.Product { return c.product }

// Rules returns all ingredient rules of the product, fixed ones included.
func (c Customization) Rules() []catalog.IngredientRule { return c.rules }

// Quantity returns the number of units on the line.
func (c Customization) Quantity() int { return c.quantity }

// Note returns the free-text note for the kitchen.
func (c Customization) Note() string { return c.note }

// Current returns the current quantity of an ingredient. Unknown
// ingredients report zero.
func (c Customization) Current(ingredientID int64) int {
	return c.current[ingredientID]
}

// BaseIngredients returns the adjustable recipe ingredients. Fixed
// ingredients (max == min) are left out.
func (c Customization) BaseIngredients() []catalog.IngredientRule {
	return c.byKind(catalog.KindBase)
}

// ExtraIngredients returns the optional add-ons.
func (c Customization) ExtraIngredients() []catalog.IngredientRule {
	return c.byKind(catalog.KindExtra)
}

func (c Customization) byKind(k catalog.Kind) []catalog.IngredientRule {
	var out []catalog.IngredientRule
	for _, r := range c.rules {
		if r.Kind() == k {
			out = append(out, r)
		}
	}
	return out
}

// Increment adds one portion of the ingredient, clamped to its maximum.
func (c Customization) Increment(ingredientID int64) Customization {
	return c.SetIngredient(ingredientID, c.Current(ingredientID)+1)
}

// Decrement removes one portion of the ingredient, clamped to its minimum.
func (c Customization) Decrement(ingredientID int64) Customization {
	return c.SetIngredient(ingredientID, c.Current(ingredientID)-1)
}

// SetIngredient sets the ingredient quantity, clamped into the rule's range.
// Unknown and fixed ingredients are left unchanged.
func (c Customization) SetIngredient(ingredientID int64, q int) Customization {
	rule, ok := c.rule(ingredientID)
	if !ok || rule.Kind() == catalog.KindFixed {
		return c
	}
	q = rule.Clamp(q)
	if q == c.current[ingredientID] {
		return c
	}
	next := c
	next.current = maps.Clone(c.current)
	next.current[ingredientID] = q
	return next
}

// WithQuantity sets the line quantity. Values below one become one.
func (c Customization) WithQuantity(n int) Customization {
	c.quantity = max(1, n)
	return c
}

// WithNote sets the line note, truncated to MaxNoteLength characters.
func (c Customization) WithNote(note string) Customization {
	if utf8.RuneCountInString(note) > MaxNoteLength {
		note = string([]rune(note)[:MaxNoteLength])
	}
	c.note = note
	return c
}

// Modifications returns the deltas of the adjustable recipe ingredients,
// including zero deltas.
func (c Customization) Modifications() []IngredientModification {
	base := c.BaseIngredients()
	out := make([]IngredientModification, 0, len(base))
	for _, r := range base {
		out = append(out, IngredientModification{
			IngredientID: r.IngredientID,
			Delta:        c.current[r.IngredientID] - r.Portions,
		})
	}
	return out
}

// Extras returns the selections of every extra ingredient, including those
// left at zero.
func (c Customization) Extras() []ExtraSelection {
	extras := c.ExtraIngredients()
	out := make([]ExtraSelection, 0, len(extras))
	for _, r := range extras {
		out = append(out, ExtraSelection{
			IngredientID: r.IngredientID,
			Quantity:     c.current[r.IngredientID],
			MinQuantity:  r.MinQuantity,
		})
	}
	return out
}

// Total returns the line total under the given prices.
func (c Customization) Total(lookup PriceLookup) decimal.Decimal {
	return ComputeLineTotal(c.product, c.quantity, c.Modifications(), c.Extras(), lookup)
}

// AdditionalLine is the billing detail of one ingredient.
type AdditionalLine struct {
	IngredientID int64
	Name         string
	Kind         catalog.Kind
	Quantity     int
	Billable     int
	UnitPrice    decimal.Decimal
	Cost         decimal.Decimal
}

// Breakdown is the priced view of a customization.
type Breakdown struct {
	Base       decimal.Decimal
	Additional decimal.Decimal
	Total      decimal.Decimal
	Lines      []AdditionalLine
}

// Breakdown prices the customization ingredient by ingredient.
func (c Customization) Breakdown(lookup PriceLookup) Breakdown {
	b := Breakdown{
		Base:       c.product.BasePrice.Mul(decimal.NewFromInt(int64(c.quantity))),
		Additional: decimal.Zero,
	}
	for _, r := range c.rules {
		var billable int
		switch r.Kind() {
		case catalog.KindBase:
			billable = IngredientModification{Delta: c.current[r.IngredientID] - r.Portions}.Billable()
		case catalog.KindExtra:
			billable = ExtraSelection{Quantity: c.current[r.IngredientID], MinQuantity: r.MinQuantity}.Billable()
		default:
			continue
		}
		price := unitPrice(lookup, r.IngredientID)
		cost := price.Mul(decimal.NewFromInt(int64(billable)))
		b.Additional = b.Additional.Add(cost)
		b.Lines = append(b.Lines, AdditionalLine{
			IngredientID: r.IngredientID,
			Name:         r.Name,
			Kind:         r.Kind(),
			Quantity:     c.current[r.IngredientID],
			Billable:     billable,
			UnitPrice:    price,
			Cost:         cost,
		})
	}
	b.Total = b.Base.Add(b.Additional)
	return b
}

// LineItem freezes the customization into a cart line.
func (c Customization) LineItem(lookup PriceLookup) LineItem {
	b := c.Breakdown(lookup)
	return LineItem{
		ProductID:     c.product.ID,
		ProductName:   c.product.Name,
		UnitPrice:     c.product.BasePrice,
		Quantity:      c.quantity,
		Modifications: c.Modifications(),
		Extras:        c.Extras(),
		Note:          c.note,
		Additional:    b.Additional,
		Total:         b.Total,
	}
}

func (c Customization) rule(id int64) (catalog.IngredientRule, bool) {
	for _, r := range c.rules {
		if r.IngredientID == id {
			return r, true
		}
	}
	return catalog.IngredientRule{}, false
}
