// Package checkouttest provides in-memory collaborators for exercising the
// checkout service without a backend, database or broker.
package checkouttest

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/catalog"
	"github.com/xenking/kart-checkout/internal/domain/order"
	"github.com/xenking/kart-checkout/internal/domain/preference"
	"github.com/xenking/kart-checkout/internal/events"
)

// Catalog is an in-memory catalog.Source.
type Catalog struct {
	mu          sync.Mutex
	Products    map[int64]catalog.Product
	Rules       map[int64][]catalog.IngredientRule
	Items       []catalog.Ingredient
	Setting     catalog.Settings
	SettingsErr error
	CatalogErr  error
	// IngredientCalls counts catalog fetches.
	IngredientCalls int
}

var _ catalog.Source = (*Catalog)(nil)

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		Products: map[int64]catalog.Product{},
		Rules:    map[int64][]catalog.IngredientRule{},
	}
}

// AddProduct registers a product with its ingredient rules.
func (c *Catalog) AddProduct(p catalog.Product, rules ...catalog.IngredientRule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Products[p.ID] = p
	c.Rules[p.ID] = rules
}

func (c *Catalog) Ingredients(context.Context) ([]catalog.Ingredient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.IngredientCalls++
	if c.CatalogErr != nil {
		return nil, c.CatalogErr
	}
	return slices.Clone(c.Items), nil
}

func (c *Catalog) Product(_ context.Context, id int64) (*catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.Products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return &p, nil
}

func (c *Catalog) ProductIngredients(_ context.Context, productID int64) ([]catalog.IngredientRule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rules, ok := c.Rules[productID]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return slices.Clone(rules), nil
}

func (c *Catalog) Settings(context.Context) (*catalog.Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SettingsErr != nil {
		return nil, c.SettingsErr
	}
	s := c.Setting
	return &s, nil
}

// Loyalty is a fixed loyalty.BalanceSource.
type Loyalty struct {
	Balance int64
	Err     error
	// Tokens records the tokens seen.
	Tokens []string
	mu     sync.Mutex
}

func (l *Loyalty) LoyaltyBalance(_ context.Context, token string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Tokens = append(l.Tokens, token)
	return l.Balance, l.Err
}

// Gateway records submitted orders.
type Gateway struct {
	mu       sync.Mutex
	NextID   int64
	Err      error
	Requests []order.Request
	// BeforeCreate, when set, runs at the start of every CreateOrder call.
	BeforeCreate func()
}

var _ order.Gateway = (*Gateway)(nil)

func (g *Gateway) CreateOrder(_ context.Context, _ string, req order.Request) (*order.Created, error) {
	if g.BeforeCreate != nil {
		g.BeforeCreate()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}
	g.NextID++
	g.Requests = append(g.Requests, req)
	return &order.Created{ID: g.NextID, Status: "pending"}, nil
}

// Last returns the last submitted request.
func (g *Gateway) Last() (order.Request, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.Requests) == 0 {
		return order.Request{}, false
	}
	return g.Requests[len(g.Requests)-1], true
}

// Carts is an in-memory cart.Repository.
type Carts struct {
	mu      sync.Mutex
	carts   map[string]cart.Cart
	SaveErr error
}

var _ cart.Repository = (*Carts)(nil)

// NewCarts returns an empty repository.
func NewCarts() *Carts {
	return &Carts{carts: map[string]cart.Cart{}}
}

func (r *Carts) Get(_ context.Context, sessionID string) (*cart.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[sessionID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	c.Items = slices.Clone(c.Items)
	return &c, nil
}

// Update holds the repository lock across fn, like a row lock.
func (r *Carts) Update(_ context.Context, sessionID string, fn cart.UpdateFunc) (*cart.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.carts[sessionID]
	if !ok {
		current = cart.Cart{SessionID: sessionID}
	}
	current.Items = slices.Clone(current.Items)

	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if r.SaveErr != nil {
		return nil, r.SaveErr
	}
	next.SessionID = sessionID
	stored := next
	stored.Items = slices.Clone(next.Items)
	r.carts[sessionID] = stored
	return &next, nil
}

func (r *Carts) Take(_ context.Context, sessionID string) (*cart.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[sessionID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	delete(r.carts, sessionID)
	return &c, nil
}

func (r *Carts) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, sessionID)
	return nil
}

// Preferences is an in-memory preference.Repository.
type Preferences struct {
	mu    sync.Mutex
	prefs map[string]preference.Preferences
}

var _ preference.Repository = (*Preferences)(nil)

// NewPreferences returns an empty repository.
func NewPreferences() *Preferences {
	return &Preferences{prefs: map[string]preference.Preferences{}}
}

func (r *Preferences) Get(_ context.Context, sessionID string) (*preference.Preferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prefs[sessionID]
	if !ok {
		return &preference.Preferences{SessionID: sessionID}, nil
	}
	return &p, nil
}

func (r *Preferences) Save(_ context.Context, p *preference.Preferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefs[p.SessionID] = *p
	return nil
}

// History is an in-memory order.History.
type History struct {
	mu   sync.Mutex
	subs []order.Submission
}

var _ order.History = (*History)(nil)

func (h *History) Record(_ context.Context, s *order.Submission) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = append(h.subs, *s)
	return nil
}

func (h *History) List(_ context.Context, sessionID string, limit int) ([]order.Submission, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := []order.Submission{}
	for i := len(h.subs) - 1; i >= 0 && len(out) < limit; i-- {
		if h.subs[i].SessionID == sessionID {
			out = append(out, h.subs[i])
		}
	}
	return out, nil
}

// Publisher records published events.
type Publisher struct {
	mu     sync.Mutex
	Events []order.Submission
	Err    error
}

var _ events.Publisher = (*Publisher)(nil)

func (p *Publisher) OrderSubmitted(_ context.Context, s order.Submission) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Events = append(p.Events, s)
	return nil
}

func (p *Publisher) Close() error { return nil }

// PriceCache is an in-memory catalog.PriceCache.
type PriceCache struct {
	mu      sync.Mutex
	book    catalog.PriceBook
	LoadErr error
}

var _ catalog.PriceCache = (*PriceCache)(nil)

func (c *PriceCache) Load(context.Context) (catalog.PriceBook, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.LoadErr != nil {
		return nil, c.LoadErr
	}
	if c.book == nil {
		return nil, catalog.ErrCacheMiss
	}
	return c.book, nil
}

func (c *PriceCache) Store(_ context.Context, book catalog.PriceBook) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.book = book
	return nil
}

// ErrUnavailable is a stand-in transport failure.
var ErrUnavailable = errors.New("unavailable")
