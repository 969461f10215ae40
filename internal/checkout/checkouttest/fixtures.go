package checkouttest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/domain/catalog"
)

// Ingredient and product IDs of the fixture menu.
const (
	BurgerID int64 = 1

	CheeseID int64 = 10 // base, 1 portion, 0..3
	BunID    int64 = 11 // fixed, 1..1
	BaconID  int64 = 20 // extra, 1..3
	EggID    int64 = 21 // extra, 0..2
)

// Env bundles in-memory collaborators.
type Env struct {
	Catalog     *Catalog
	Prices      *PriceCache
	Loyalty     *Loyalty
	Gateway     *Gateway
	Carts       *Carts
	Preferences *Preferences
	History     *History
	Publisher   *Publisher
	Clock       time.Time
}

// NewEnv returns collaborators serving the fixture menu: a R$ 10,00 burger,
// R$ 5,00 delivery, gain rate 0.10 and redemption rate 0.01.
func NewEnv() *Env {
	c := NewCatalog()
	c.AddProduct(catalog.Product{
		ID:        BurgerID,
		Name:      "Burger",
		BasePrice: decimal.RequireFromString("10.00"),
	}, BurgerRules()...)
	c.Items = []catalog.Ingredient{
		{ID: CheeseID, Name: "Cheese", AdditionalPrice: decimal.RequireFromString("1.50")},
		{ID: BunID, Name: "Bun", AdditionalPrice: decimal.RequireFromString("2.00")},
		{ID: BaconID, Name: "Bacon", AdditionalPrice: decimal.RequireFromString("4.00")},
		{ID: EggID, Name: "Egg", AdditionalPrice: decimal.RequireFromString("2.50")},
	}
	c.Setting = catalog.Settings{
		DeliveryFee:    decimal.RequireFromString("5.00"),
		GainRate:       decimal.RequireFromString("0.10"),
		RedemptionRate: decimal.RequireFromString("0.01"),
	}

	return &Env{
		Catalog:     c,
		Prices:      &PriceCache{},
		Loyalty:     &Loyalty{},
		Gateway:     &Gateway{NextID: 500},
		Carts:       NewCarts(),
		Preferences: NewPreferences(),
		History:     &History{},
		Publisher:   &Publisher{},
		Clock:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

// Now returns the fixed clock of the environment.
func (e *Env) Now() time.Time { return e.Clock }

// BurgerRules returns the ingredient rules of the fixture burger.
func BurgerRules() []catalog.IngredientRule {
	return []catalog.IngredientRule{
		{IngredientID: CheeseID, Name: "Cheese", Portions: 1, MinQuantity: 0, MaxQuantity: ptr(3)},
		{IngredientID: BunID, Name: "Bun", Portions: 1, MinQuantity: 1, MaxQuantity: ptr(1)},
		{IngredientID: BaconID, Name: "Bacon", Portions: 0, MinQuantity: 1, MaxQuantity: ptr(3)},
		{IngredientID: EggID, Name: "Egg", Portions: 0, MinQuantity: 0, MaxQuantity: ptr(2)},
	}
}

func ptr(v int) *int { return &v }
