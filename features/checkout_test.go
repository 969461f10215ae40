package features

import (
	"context"
	"testing"

	"github.com/cucumber/godog"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/checkout"
	"github.com/xenking/kart-checkout/internal/checkout/checkouttest"
	"github.com/xenking/kart-checkout/internal/domain/catalog"
	"github.com/xenking/kart-checkout/internal/domain/order"
)

const (
	productID int64 = 1
	sessionID       = "feature-session"
	token           = "feature-token"
)

type checkoutContext struct {
	env         *checkouttest.Env
	svc         *checkout.Service
	ingredients map[string]int64

	line    *checkout.LinePrice
	quote   *checkout.Quote
	receipt *checkout.Receipt
}

func (c *checkoutContext) reset() {
	c.env = checkouttest.NewEnv()
	c.env.Catalog.Products = map[int64]catalog.Product{}
	c.env.Catalog.Rules = map[int64][]catalog.IngredientRule{}
	c.env.Catalog.Items = nil
	c.svc = nil
	c.ingredients = map[string]int64{}
	c.line, c.quote, c.receipt = nil, nil, nil
}

func (c *checkoutContext) service() (*checkout.Service, error) {
	if c.svc != nil {
		return c.svc, nil
	}
	svc, err := checkout.NewService(checkout.Deps{
		Catalog:     c.env.Catalog,
		Prices:      c.env.Prices,
		Loyalty:     c.env.Loyalty,
		Orders:      c.env.Gateway,
		Carts:       c.env.Carts,
		Preferences: c.env.Preferences,
		History:     c.env.History,
		Events:      c.env.Publisher,
		Now:         c.env.Now,
	})
	if err != nil {
		return nil, err
	}
	c.svc = svc
	return svc, nil
}

func money(s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse %q", s)
	}
	return v, nil
}

func expectMoney(what, want string, got decimal.Decimal) error {
	w, err := money(want)
	if err != nil {
		return err
	}
	if !w.Equal(got) {
		return errors.Errorf("expected %s %s, got %s", what, w.StringFixed(2), got.StringFixed(2))
	}
	return nil
}

// --- Given ---

func (c *checkoutContext) aProductPricedAt(name, price string) error {
	p, err := money(price)
	if err != nil {
		return err
	}
	c.env.Catalog.AddProduct(catalog.Product{ID: productID, Name: name, BasePrice: p})
	return nil
}

func (c *checkoutContext) theDeliveryFeeIs(fee string) error {
	v, err := money(fee)
	if err != nil {
		return err
	}
	c.env.Catalog.Setting.DeliveryFee = v
	return nil
}

func (c *checkoutContext) theLoyaltyRatesAre(gain, redemption string) error {
	g, err := money(gain)
	if err != nil {
		return err
	}
	r, err := money(redemption)
	if err != nil {
		return err
	}
	c.env.Catalog.Setting.GainRate = g
	c.env.Catalog.Setting.RedemptionRate = r
	return nil
}

func (c *checkoutContext) addRule(rule catalog.IngredientRule, price string) error {
	p, err := money(price)
	if err != nil {
		return err
	}
	rule.IngredientID = int64(10 + len(c.ingredients))
	c.ingredients[rule.Name] = rule.IngredientID
	c.env.Catalog.Rules[productID] = append(c.env.Catalog.Rules[productID], rule)
	c.env.Catalog.Items = append(c.env.Catalog.Items, catalog.Ingredient{
		ID:              rule.IngredientID,
		Name:            rule.Name,
		AdditionalPrice: p,
	})
	return nil
}

func (c *checkoutContext) aBaseIngredient(name string, portions int, price string) error {
	return c.addRule(catalog.IngredientRule{Name: name, Portions: portions}, price)
}

func (c *checkoutContext) anExtra(name string, minQ, maxQ int, price string) error {
	return c.addRule(catalog.IngredientRule{Name: name, MinQuantity: minQ, MaxQuantity: &maxQ}, price)
}

func (c *checkoutContext) iHaveLoyaltyPoints(points int) error {
	c.env.Loyalty.Balance = int64(points)
	return nil
}

func (c *checkoutContext) myCartHolds(quantity int) error {
	svc, err := c.service()
	if err != nil {
		return err
	}
	_, err = svc.AddToCart(context.Background(), sessionID, checkout.LineRequest{
		ProductID: productID,
		Quantity:  quantity,
	})
	return err
}

// --- When ---

func (c *checkoutContext) iCustomize(quantity int, name string, q int) error {
	id, ok := c.ingredients[name]
	if !ok {
		return errors.Errorf("unknown ingredient %q", name)
	}
	svc, err := c.service()
	if err != nil {
		return err
	}
	c.line, err = svc.PriceLine(context.Background(), checkout.LineRequest{
		ProductID:   productID,
		Quantity:    quantity,
		Ingredients: []checkout.IngredientQuantity{{IngredientID: id, Quantity: q}},
	})
	return err
}

func (c *checkoutContext) quoteWith(digits string) error {
	svc, err := c.service()
	if err != nil {
		return err
	}
	c.quote, err = svc.Quote(context.Background(), sessionID, checkout.QuoteRequest{
		Token:      token,
		UsePoints:  true,
		CashDigits: digits,
	})
	return err
}

func (c *checkoutContext) iReviewUsingPoints() error {
	return c.quoteWith("")
}

func (c *checkoutContext) iReviewAndTender(digits string) error {
	return c.quoteWith(digits)
}

func (c *checkoutContext) submit(req checkout.SubmitRequest) error {
	svc, err := c.service()
	if err != nil {
		return err
	}
	req.Token = token
	c.receipt, err = svc.Submit(context.Background(), sessionID, req)
	return err
}

func (c *checkoutContext) iSubmitWithCash(address int, method, digits string) error {
	return c.submit(checkout.SubmitRequest{
		AddressID:     int64(address),
		PaymentMethod: method,
		CashDigits:    digits,
		UsePoints:     true,
	})
}

func (c *checkoutContext) iSubmit(address int, method string) error {
	return c.submit(checkout.SubmitRequest{
		AddressID:     int64(address),
		PaymentMethod: method,
	})
}

// --- Then ---

func (c *checkoutContext) theLineTotalIs(total string) error {
	if c.line == nil {
		return errors.New("no line priced")
	}
	return expectMoney("line total", total, c.line.Item.Total)
}

func (c *checkoutContext) theModificationDeltaIs(name string, delta int) error {
	id := c.ingredients[name]
	for _, m := range c.line.Item.Modifications {
		if m.IngredientID == id {
			if m.Delta != delta {
				return errors.Errorf("expected delta %d, got %d", delta, m.Delta)
			}
			return nil
		}
	}
	return errors.Errorf("no modification for %q", name)
}

func (c *checkoutContext) theExtraIsSentWith(name string, quantity int) error {
	id := c.ingredients[name]
	for _, e := range c.line.Item.Extras {
		if e.IngredientID == id {
			if e.Quantity != quantity {
				return errors.Errorf("expected quantity %d, got %d", quantity, e.Quantity)
			}
			return nil
		}
	}
	return errors.Errorf("no extra for %q", name)
}

func (c *checkoutContext) theDiscountIs(discount string) error {
	return expectMoney("discount", discount, c.quote.Summary.Discount)
}

func (c *checkoutContext) theFinalTotalIs(total string) error {
	return expectMoney("final total", total, c.quote.Summary.Total)
}

func (c *checkoutContext) iEarnPoints(points int) error {
	if got := c.quote.Summary.PointsEarned; got != int64(points) {
		return errors.Errorf("expected %d points earned, got %d", points, got)
	}
	return nil
}

func (c *checkoutContext) pointsAreRedeemed(points int) error {
	if got := c.quote.Summary.PointsToRedeem; got != int64(points) {
		return errors.Errorf("expected %d points redeemed, got %d", points, got)
	}
	return nil
}

func (c *checkoutContext) theTenderedAmountShows(display string) error {
	if c.quote.Cash == nil {
		return errors.New("no cash quote")
	}
	if c.quote.Cash.Display != display {
		return errors.Errorf("expected display %q, got %q", display, c.quote.Cash.Display)
	}
	return nil
}

func (c *checkoutContext) theCashAmountIsRejected() error {
	if c.quote.Cash.Valid {
		return errors.New("expected cash amount to be rejected")
	}
	return nil
}

func (c *checkoutContext) theCashAmountIsAcceptedWith(change string) error {
	if !c.quote.Cash.Valid {
		return errors.New("expected cash amount to be accepted")
	}
	return expectMoney("change", change, c.quote.Cash.Change)
}

func (c *checkoutContext) theOrderIsAccepted() error {
	if c.receipt == nil || c.receipt.Order == nil {
		return errors.New("no receipt")
	}
	return nil
}

func (c *checkoutContext) lastRequest() (order.Request, error) {
	req, ok := c.env.Gateway.Last()
	if !ok {
		return order.Request{}, errors.New("backend received no order")
	}
	return req, nil
}

func (c *checkoutContext) theBackendReceivesPaidAmount(method string, amount float64) error {
	req, err := c.lastRequest()
	if err != nil {
		return err
	}
	if req.PaymentMethod != method {
		return errors.Errorf("expected payment method %q, got %q", method, req.PaymentMethod)
	}
	if req.AmountPaid == nil || *req.AmountPaid != amount {
		return errors.Errorf("expected amount paid %v, got %v", amount, req.AmountPaid)
	}
	return nil
}

func (c *checkoutContext) theBackendReceivesNoAmount(method string) error {
	req, err := c.lastRequest()
	if err != nil {
		return err
	}
	if req.PaymentMethod != method {
		return errors.Errorf("expected payment method %q, got %q", method, req.PaymentMethod)
	}
	if req.AmountPaid != nil {
		return errors.Errorf("expected no amount paid, got %v", *req.AmountPaid)
	}
	return nil
}

func (c *checkoutContext) theBackendReceivesPoints(points int) error {
	req, err := c.lastRequest()
	if err != nil {
		return err
	}
	if req.PointsToRedeem != int64(points) {
		return errors.Errorf("expected %d points to redeem, got %d", points, req.PointsToRedeem)
	}
	return nil
}

func (c *checkoutContext) myCartIsEmpty() error {
	cart, err := c.svc.Cart(context.Background(), sessionID)
	if err != nil {
		return err
	}
	if len(cart.Items) != 0 {
		return errors.Errorf("expected empty cart, got %d items", len(cart.Items))
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	c := &checkoutContext{}

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		c.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^a product "([^"]*)" priced at "([^"]*)"$`, c.aProductPricedAt)
	ctx.Step(`^the delivery fee is "([^"]*)"$`, c.theDeliveryFeeIs)
	ctx.Step(`^the loyalty gain rate is "([^"]*)" and the redemption rate is "([^"]*)"$`, c.theLoyaltyRatesAre)
	ctx.Step(`^the product has a base ingredient "([^"]*)" with (\d+) portions? priced at "([^"]*)"$`, c.aBaseIngredient)
	ctx.Step(`^the product has an extra "([^"]*)" from (\d+) to (\d+) priced at "([^"]*)"$`, c.anExtra)
	ctx.Step(`^I have (\d+) loyalty points$`, c.iHaveLoyaltyPoints)
	ctx.Step(`^my cart holds (\d+) of the product$`, c.myCartHolds)

	// When steps
	ctx.Step(`^I customize (\d+) of the product with "([^"]*)" set to (\d+)$`, c.iCustomize)
	ctx.Step(`^I review the order using my points$`, c.iReviewUsingPoints)
	ctx.Step(`^I review the order using my points and tender "([^"]*)" in cash$`, c.iReviewAndTender)
	ctx.Step(`^I submit the order to address (\d+) paying with "([^"]*)" tendering "([^"]*)" using my points$`, c.iSubmitWithCash)
	ctx.Step(`^I submit the order to address (\d+) paying with "([^"]*)"$`, c.iSubmit)

	// Then steps
	ctx.Step(`^the line total is "([^"]*)"$`, c.theLineTotalIs)
	ctx.Step(`^the "([^"]*)" modification delta is (-?\d+)$`, c.theModificationDeltaIs)
	ctx.Step(`^the "([^"]*)" extra is sent with quantity (\d+)$`, c.theExtraIsSentWith)
	ctx.Step(`^the discount is "([^"]*)"$`, c.theDiscountIs)
	ctx.Step(`^the final total is "([^"]*)"$`, c.theFinalTotalIs)
	ctx.Step(`^I earn (\d+) points$`, c.iEarnPoints)
	ctx.Step(`^(\d+) points are redeemed$`, c.pointsAreRedeemed)
	ctx.Step(`^the tendered amount shows "([^"]*)"$`, c.theTenderedAmountShows)
	ctx.Step(`^the cash amount is rejected$`, c.theCashAmountIsRejected)
	ctx.Step(`^the cash amount is accepted with "([^"]*)" change$`, c.theCashAmountIsAcceptedWith)
	ctx.Step(`^the order is accepted$`, c.theOrderIsAccepted)
	ctx.Step(`^the backend receives payment method "([^"]*)" with amount paid (\d+(?:\.\d+)?)$`, c.theBackendReceivesPaidAmount)
	ctx.Step(`^the backend receives payment method "([^"]*)" without an amount paid$`, c.theBackendReceivesNoAmount)
	ctx.Step(`^the backend receives (\d+) points to redeem$`, c.theBackendReceivesPoints)
	ctx.Step(`^my cart is empty$`, c.myCartIsEmpty)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"checkout.feature"},
			Strict:   true,
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
