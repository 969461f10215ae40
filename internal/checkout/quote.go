package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/cash"
	"github.com/xenking/kart-checkout/internal/domain/catalog"
	"github.com/xenking/kart-checkout/internal/domain/loyalty"
	"github.com/xenking/kart-checkout/internal/domain/order"
	"github.com/xenking/kart-checkout/internal/domain/preference"
	"github.com/xenking/kart-checkout/internal/domain/pricing"
)

// Data sources a quote may be computed without.
const (
	SourceSettings = "settings"
	SourceLoyalty  = "loyalty"
)

// QuoteRequest holds the review screen state.
type QuoteRequest struct {
	// Token authenticates the loyalty lookup. Without it the balance is zero.
	Token      string
	UsePoints  bool
	CashDigits string
}

// CashQuote is the change-due view of a tendered amount.
type CashQuote struct {
	Digits   string
	Tendered decimal.Decimal
	Display  string
	Valid    bool
	Change   decimal.Decimal
}

// Quote is the settled review of a session cart.
type Quote struct {
	SessionID string
	Items     []pricing.LineItem
	Summary   loyalty.Summary
	Balance   int64
	Rates     loyalty.Rates
	// Cash is set when cash digits were supplied.
	Cash *CashQuote
	// Degraded lists the sources that could not be loaded and were
	// treated as zero.
	Degraded []string
}

// Quote settles the session cart: delivery fee, loyalty discount, final
// total, points and, when digits are given, the change due.
func (s *Service) Quote(ctx context.Context, sessionID string, req QuoteRequest) (*Quote, error) {
	c, err := s.Cart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.quote(ctx, c, req)
}

func (s *Service) quote(ctx context.Context, c *cart.Cart, req QuoteRequest) (*Quote, error) {
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	lg := zctx.From(ctx)
	var (
		settings = catalog.Settings{
			DeliveryFee:    decimal.Zero,
			GainRate:       decimal.Zero,
			RedemptionRate: decimal.Zero,
		}
		balance                       int64
		settingsFailed, loyaltyFailed bool
	)

	var g errgroup.Group
	g.Go(func() error {
		st, err := s.catalog.Settings(ctx)
		if err != nil {
			lg.Warn("Settings unavailable, quoting without fee and rates", zap.Error(err))
			settingsFailed = true
			return nil
		}
		settings = *st
		return nil
	})
	if req.Token != "" && s.loyalty != nil {
		g.Go(func() error {
			b, err := s.loyalty.LoyaltyBalance(ctx, req.Token)
			if err != nil {
				lg.Warn("Loyalty balance unavailable, treating as zero", zap.Error(err))
				loyaltyFailed = true
				return nil
			}
			balance = b
			return nil
		})
	}
	_ = g.Wait()

	q := &Quote{
		SessionID: c.SessionID,
		Items:     c.Items,
		Balance:   balance,
		Rates: loyalty.Rates{
			Gain:       settings.GainRate,
			Redemption: settings.RedemptionRate,
		},
	}
	if settingsFailed {
		q.Degraded = append(q.Degraded, SourceSettings)
	}
	if loyaltyFailed {
		q.Degraded = append(q.Degraded, SourceLoyalty)
	}
	for _, source := range q.Degraded {
		s.degraded.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
	}

	q.Summary = loyalty.Summarize(loyalty.Input{
		Subtotal:    c.Subtotal(),
		DeliveryFee: settings.DeliveryFee,
		Account:     loyalty.Account{Balance: balance, Rates: q.Rates},
		UsePoints:   req.UsePoints,
	})

	if req.CashDigits != "" {
		q.Cash = quoteCash(req.CashDigits, q.Summary.Total)
	}
	return q, nil
}

func quoteCash(digits string, total decimal.Decimal) *CashQuote {
	digits = cash.Canonical(digits)
	tendered, _ := cash.ParseDigits(digits)
	change, valid := cash.Change(digits, total)
	return &CashQuote{
		Digits:   digits,
		Tendered: tendered,
		Display:  cash.Display(digits),
		Valid:    valid,
		Change:   change,
	}
}

// SubmitRequest holds the checkout form.
type SubmitRequest struct {
	Token         string
	AddressID     int64
	PaymentMethod string
	CashDigits    string
	UsePoints     bool
	Notes         string
}

// Receipt is the result of a successful submission.
type Receipt struct {
	Order *order.Created
	Quote *Quote
	// Change is set for cash payments.
	Change decimal.NullDecimal
}

// Submit gates the checkout form, assembles the order and sends it to the
// backend. On success the cart is cleared, the address and payment method
// are remembered and an order.submitted event is published; failures of
// those follow-ups are logged only.
func (s *Service) Submit(ctx context.Context, sessionID string, req SubmitRequest) (*Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Submit",
		trace.WithAttributes(attribute.String("checkout.payment_method", req.PaymentMethod)),
	)
	defer span.End()

	rcpt, err := s.submit(ctx, sessionID, req)
	if err != nil {
		reason := rejectReason(err)
		s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		return nil, err
	}
	span.SetAttributes(attribute.Int64("checkout.order_id", rcpt.Order.ID))
	return rcpt, nil
}

// submit claims the cart before calling the backend so that a session's
// cart becomes at most one order. The claimed cart is put back when the
// submission fails.
func (s *Service) submit(ctx context.Context, sessionID string, req SubmitRequest) (*Receipt, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	if req.AddressID <= 0 {
		return nil, ErrAddressRequired
	}
	method, ok := order.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		return nil, ErrPaymentMethodRequired
	}

	taken, err := s.carts.Take(ctx, sessionID)
	if errors.Is(err, cart.ErrNotFound) {
		return nil, ErrEmptyCart
	}
	if err != nil {
		return nil, errors.Wrap(err, "claim cart")
	}

	rcpt, err := s.submitCart(ctx, taken, method, req)
	if err != nil {
		s.restoreCart(ctx, taken)
		return nil, err
	}
	return rcpt, nil
}

func (s *Service) submitCart(ctx context.Context, c *cart.Cart, method order.PaymentMethod, req SubmitRequest) (*Receipt, error) {
	sessionID := c.SessionID
	q, err := s.quote(ctx, c, QuoteRequest{
		Token:      req.Token,
		UsePoints:  req.UsePoints,
		CashDigits: req.CashDigits,
	})
	if err != nil {
		return nil, err
	}

	draft := order.Draft{
		Items:          q.Items,
		AddressID:      req.AddressID,
		PaymentMethod:  method,
		PointsToRedeem: q.Summary.PointsToRedeem,
		Notes:          req.Notes,
		Subtotal:       q.Summary.Subtotal,
		DeliveryFee:    q.Summary.DeliveryFee,
		Discount:       q.Summary.Discount,
		Total:          q.Summary.Total,
	}
	var change decimal.NullDecimal
	if method == order.PaymentCash {
		if q.Cash == nil || !q.Cash.Valid {
			return nil, ErrInvalidCashAmount
		}
		draft.CashTendered = decimal.NewNullDecimal(q.Cash.Tendered)
		change = decimal.NewNullDecimal(q.Cash.Change)
	}

	lg := zctx.From(ctx).With(zap.String("session_id", sessionID))
	created, err := s.orders.CreateOrder(ctx, req.Token, order.BuildOrderRequest(draft))
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	lg.Info("Order submitted",
		zap.Int64("order_id", created.ID),
		zap.String("payment_method", string(method)),
		zap.Stringer("total", draft.Total),
		zap.Int64("points_to_redeem", draft.PointsToRedeem),
	)

	s.submitted.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_method", string(method))))

	s.afterSubmit(ctx, lg, sessionID, draft, created)

	return &Receipt{Order: created, Quote: q, Change: change}, nil
}

// restoreCart puts the lines of a claimed cart back in front of anything
// added since the claim.
func (s *Service) restoreCart(ctx context.Context, taken *cart.Cart) {
	if len(taken.Items) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if _, err := s.carts.Update(ctx, taken.SessionID, func(c cart.Cart) (cart.Cart, error) {
		return c.Restore(*taken), nil
	}); err != nil {
		zctx.From(ctx).Error("Restore cart after failed submit",
			zap.String("session_id", taken.SessionID),
			zap.Int("items", len(taken.Items)),
			zap.Error(err),
		)
	}
}

func (s *Service) afterSubmit(ctx context.Context, lg *zap.Logger, sessionID string, draft order.Draft, created *order.Created) {
	now := s.now().UTC()
	if err := s.prefs.Save(ctx, &preference.Preferences{
		SessionID:     sessionID,
		AddressID:     draft.AddressID,
		PaymentMethod: draft.PaymentMethod,
		UpdatedAt:     now,
	}); err != nil {
		lg.Warn("Remember checkout preferences", zap.Error(err))
	}

	sub := order.Submission{
		OrderID:        created.ID,
		SessionID:      sessionID,
		Total:          draft.Total.Round(2),
		PointsToRedeem: draft.PointsToRedeem,
		PaymentMethod:  draft.PaymentMethod,
		SubmittedAt:    now,
	}
	if s.history != nil {
		if err := s.history.Record(ctx, &sub); err != nil {
			lg.Warn("Record submission", zap.Error(err))
		}
	}
	if err := s.events.OrderSubmitted(ctx, sub); err != nil {
		lg.Warn("Publish order submitted", zap.Error(err))
	}
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 50
)

// History returns the latest submissions of a session, at most 50.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]order.Submission, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	if s.history == nil {
		return []order.Submission{}, nil
	}
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	out, err := s.history.List(ctx, sessionID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list history")
	}
	return out, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrAddressRequired):
		return "address"
	case errors.Is(err, ErrPaymentMethodRequired):
		return "payment_method"
	case errors.Is(err, ErrInvalidCashAmount):
		return "cash_amount"
	case errors.Is(err, ErrInvalidSession):
		return "session"
	default:
		return "backend"
	}
}
