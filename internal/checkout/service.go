// Package checkout implements the checkout flow of a delivery session:
// customizing products, keeping the cart, quoting and submitting orders.
package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/catalog"
	"github.com/xenking/kart-checkout/internal/domain/loyalty"
	"github.com/xenking/kart-checkout/internal/domain/order"
	"github.com/xenking/kart-checkout/internal/domain/preference"
	"github.com/xenking/kart-checkout/internal/domain/pricing"
	"github.com/xenking/kart-checkout/internal/events"
)

// Sentinel errors for submission gating.
var (
	ErrEmptyCart             = errors.New("cart is empty")
	ErrAddressRequired       = errors.New("delivery address required")
	ErrPaymentMethodRequired = errors.New("payment method required")
	ErrInvalidCashAmount     = errors.New("cash amount must cover the total and stay below R$ 1.000,01")
	ErrInvalidSession        = errors.New("session id required")
)

const instrumentationName = "github.com/xenking/kart-checkout/internal/checkout"

// Deps are the collaborators of a Service. Prices, History and Events are
// optional.
type Deps struct {
	Catalog     catalog.Source
	Prices      catalog.PriceCache
	Loyalty     loyalty.BalanceSource
	Orders      order.Gateway
	Carts       cart.Repository
	Preferences preference.Repository
	History     order.History
	Events      events.Publisher
	Meter       metric.MeterProvider
	Tracer      trace.TracerProvider
	Now         func() time.Time
}

// Service encapsulates the checkout business logic.
type Service struct {
	catalog catalog.Source
	prices  catalog.PriceCache
	loyalty loyalty.BalanceSource
	orders  order.Gateway
	carts   cart.Repository
	prefs   preference.Repository
	history order.History
	events  events.Publisher
	now     func() time.Time
	tracer  trace.Tracer

	submitted metric.Int64Counter
	rejected  metric.Int64Counter
	degraded  metric.Int64Counter
}

// NewService creates a checkout Service.
func NewService(deps Deps) (*Service, error) {
	mp := deps.Meter
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter(instrumentationName)
	tp := deps.Tracer
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}

	s := &Service{
		catalog: deps.Catalog,
		prices:  deps.Prices,
		loyalty: deps.Loyalty,
		orders:  deps.Orders,
		carts:   deps.Carts,
		prefs:   deps.Preferences,
		history: deps.History,
		events:  deps.Events,
		now:     deps.Now,
		tracer:  tp.Tracer(instrumentationName),
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}

	var err error
	if s.submitted, err = meter.Int64Counter("checkout.orders.submitted",
		metric.WithDescription("Orders accepted by the ordering backend"),
	); err != nil {
		return nil, errors.Wrap(err, "submitted counter")
	}
	if s.rejected, err = meter.Int64Counter("checkout.orders.rejected",
		metric.WithDescription("Submissions rejected by gating or by the backend"),
	); err != nil {
		return nil, errors.Wrap(err, "rejected counter")
	}
	if s.degraded, err = meter.Int64Counter("checkout.quote.degraded",
		metric.WithDescription("Quotes computed with missing settings or loyalty data"),
	); err != nil {
		return nil, errors.Wrap(err, "degraded counter")
	}
	return s, nil
}

// priceBook returns the ingredient catalog prices, from the cache when
// possible. A failed fetch yields a nil book: prices then fall back to the
// product rules.
func (s *Service) priceBook(ctx context.Context) catalog.PriceBook {
	lg := zctx.From(ctx)
	if s.prices != nil {
		book, err := s.prices.Load(ctx)
		if err == nil {
			return book
		}
		if !errors.Is(err, catalog.ErrCacheMiss) {
			lg.Warn("Price cache unavailable", zap.Error(err))
		}
	}

	ingredients, err := s.catalog.Ingredients(ctx)
	if err != nil {
		lg.Warn("Ingredient catalog unavailable", zap.Error(err))
		return nil
	}
	book := catalog.NewPriceBook(ingredients)
	if s.prices != nil {
		if err := s.prices.Store(ctx, book); err != nil {
			lg.Warn("Store price cache", zap.Error(err))
		}
	}
	return book
}

// product fetches a product, its ingredient rules and the price book
// concurrently.
func (s *Service) product(ctx context.Context, productID int64) (pricing.Customization, catalog.Resolver, error) {
	var (
		p     *catalog.Product
		rules []catalog.IngredientRule
		book  catalog.PriceBook
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		p, err = s.catalog.Product(gctx, productID)
		return err
	})
	g.Go(func() error {
		var err error
		rules, err = s.catalog.ProductIngredients(gctx, productID)
		return err
	})
	g.Go(func() error {
		book = s.priceBook(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return pricing.Customization{}, catalog.Resolver{}, errors.Wrapf(err, "load product %d", productID)
	}
	return pricing.NewCustomization(*p, rules), catalog.NewResolver(book, rules), nil
}

// IngredientQuantity is the chosen quantity of one ingredient.
type IngredientQuantity struct {
	IngredientID int64
	Quantity     int
}

// LineRequest describes a customized product line.
type LineRequest struct {
	ProductID   int64
	Quantity    int
	Ingredients []IngredientQuantity
	Note        string
}

// LinePrice is the priced result of a customization.
type LinePrice struct {
	Customization pricing.Customization
	Breakdown     pricing.Breakdown
	Item          pricing.LineItem
}

// Customization returns the initial customization of a product.
func (s *Service) Customization(ctx context.Context, productID int64) (*LinePrice, error) {
	return s.PriceLine(ctx, LineRequest{ProductID: productID, Quantity: 1})
}

// PriceLine applies the requested quantities to the product's initial
// customization and prices it. Out-of-range quantities are clamped; unknown
// and fixed ingredients are ignored.
func (s *Service) PriceLine(ctx context.Context, req LineRequest) (*LinePrice, error) {
	c, prices, err := s.product(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	for _, iq := range req.Ingredients {
		c = c.SetIngredient(iq.IngredientID, iq.Quantity)
	}
	c = c.WithQuantity(req.Quantity).WithNote(req.Note)

	return &LinePrice{
		Customization: c,
		Breakdown:     c.Breakdown(prices),
		Item:          c.LineItem(prices),
	}, nil
}
