package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/checkout"
	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/catalog"
	"github.com/xenking/kart-checkout/internal/domain/order"
	"github.com/xenking/kart-checkout/internal/domain/preference"
	"github.com/xenking/kart-checkout/internal/domain/pricing"
)

// money renders an amount with two decimals, rounding half away from zero.
func money(v decimal.Decimal) string {
	return v.StringFixed(2)
}

// --- Requests ---

// IngredientQuantityDTO is the chosen quantity of one ingredient.
type IngredientQuantityDTO struct {
	IngredientID int64 `json:"ingredient_id"`
	Quantity     int   `json:"quantity"`
}

// LineRequestDTO describes a customized product line.
type LineRequestDTO struct {
	ProductID   int64                   `json:"product_id"`
	Quantity    int                     `json:"quantity"`
	Ingredients []IngredientQuantityDTO `json:"ingredients"`
	Note        string                  `json:"note"`
}

func (d LineRequestDTO) toDomain() checkout.LineRequest {
	req := checkout.LineRequest{
		ProductID: d.ProductID,
		Quantity:  d.Quantity,
		Note:      d.Note,
	}
	for _, iq := range d.Ingredients {
		req.Ingredients = append(req.Ingredients, checkout.IngredientQuantity{
			IngredientID: iq.IngredientID,
			Quantity:     iq.Quantity,
		})
	}
	return req
}

// KeypadRequestDTO is one key press on the cash keypad. Key is a digit,
// "backspace" or "clear". Total, when set, validates the buffer against it.
type KeypadRequestDTO struct {
	Digits string `json:"digits"`
	Key    string `json:"key"`
	Total  string `json:"total,omitempty"`
}

// PreferencesDTO is the remembered checkout choices of a session.
type PreferencesDTO struct {
	AddressID     int64  `json:"address_id"`
	PaymentMethod string `json:"payment_method"`
}

// QuoteRequestDTO is the review screen state.
type QuoteRequestDTO struct {
	UsePoints  bool   `json:"use_points"`
	CashDigits string `json:"cash_digits"`
}

// SubmitRequestDTO is the checkout form.
type SubmitRequestDTO struct {
	AddressID     int64  `json:"address_id"`
	PaymentMethod string `json:"payment_method"`
	CashDigits    string `json:"cash_digits"`
	UsePoints     bool   `json:"use_points"`
	Notes         string `json:"notes"`
}

// --- Responses ---

// ProductDTO is a product as shown on the customization screen.
type ProductDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	BasePrice   string `json:"base_price"`
	Image       string `json:"image,omitempty"`
}

// IngredientDTO is one adjustable ingredient of a customization.
type IngredientDTO struct {
	IngredientID int64  `json:"ingredient_id"`
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Quantity     int    `json:"quantity"`
	Default      int    `json:"default"`
	Min          int    `json:"min"`
	Max          *int   `json:"max"`
	Billable     int    `json:"billable"`
	UnitPrice    string `json:"unit_price"`
	Cost         string `json:"cost"`
}

// ModificationDTO is a recipe ingredient delta.
type ModificationDTO struct {
	IngredientID int64 `json:"ingredient_id"`
	Delta        int   `json:"delta"`
}

// ExtraDTO is an extra ingredient selection.
type ExtraDTO struct {
	IngredientID int64 `json:"ingredient_id"`
	Quantity     int   `json:"quantity"`
	MinQuantity  int   `json:"min_quantity"`
}

// LineItemDTO is a committed cart line.
type LineItemDTO struct {
	ProductID     int64             `json:"product_id"`
	ProductName   string            `json:"product_name"`
	UnitPrice     string            `json:"unit_price"`
	Quantity      int               `json:"quantity"`
	Modifications []ModificationDTO `json:"modifications"`
	Extras        []ExtraDTO        `json:"extras"`
	Note          string            `json:"note,omitempty"`
	Additional    string            `json:"additional"`
	Total         string            `json:"total"`
}

// LinePriceDTO is the priced customization of a product.
type LinePriceDTO struct {
	Product         ProductDTO      `json:"product"`
	Quantity        int             `json:"quantity"`
	Note            string          `json:"note,omitempty"`
	BaseIngredients []IngredientDTO `json:"base_ingredients"`
	Extras          []IngredientDTO `json:"extras"`
	BaseTotal       string          `json:"base_total"`
	Additional      string          `json:"additional"`
	Total           string          `json:"total"`
	Item            LineItemDTO     `json:"item"`
}

// CartDTO is a session cart.
type CartDTO struct {
	SessionID string        `json:"session_id"`
	Items     []LineItemDTO `json:"items"`
	Subtotal  string        `json:"subtotal"`
	UpdatedAt *time.Time    `json:"updated_at,omitempty"`
}

// KeypadDTO is the keypad buffer after a key press.
type KeypadDTO struct {
	Digits   string  `json:"digits"`
	Display  string  `json:"display"`
	Amount   string  `json:"amount"`
	Accepted bool    `json:"accepted"`
	Valid    *bool   `json:"valid,omitempty"`
	Change   *string `json:"change,omitempty"`
}

// CashDTO is the change-due view of a tendered amount.
type CashDTO struct {
	Digits   string `json:"digits"`
	Tendered string `json:"tendered"`
	Display  string `json:"display"`
	Valid    bool   `json:"valid"`
	Change   string `json:"change"`
}

// QuoteDTO is the settled review of a cart.
type QuoteDTO struct {
	SessionID      string        `json:"session_id"`
	Items          []LineItemDTO `json:"items"`
	Subtotal       string        `json:"subtotal"`
	DeliveryFee    string        `json:"delivery_fee"`
	Discount       string        `json:"discount"`
	Total          string        `json:"total"`
	PointsBalance  int64         `json:"points_balance"`
	PointsToRedeem int64         `json:"points_to_redeem"`
	PointsEarned   int64         `json:"points_earned"`
	GainRate       string        `json:"gain_rate"`
	RedemptionRate string        `json:"redemption_rate"`
	Cash           *CashDTO      `json:"cash,omitempty"`
	Degraded       []string      `json:"degraded,omitempty"`
}

// ReceiptDTO is the result of a successful submission.
type ReceiptDTO struct {
	OrderID        int64    `json:"order_id"`
	Status         string   `json:"status"`
	Total          string   `json:"total"`
	Change         *string  `json:"change,omitempty"`
	PointsToRedeem int64    `json:"points_to_redeem"`
	PointsEarned   int64    `json:"points_earned"`
	Quote          QuoteDTO `json:"quote"`
}

// SubmissionDTO is one entry of a session's order history.
type SubmissionDTO struct {
	OrderID        int64     `json:"order_id"`
	Total          string    `json:"total"`
	PointsToRedeem int64     `json:"points_to_redeem"`
	PaymentMethod  string    `json:"payment_method"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// --- Conversions ---

func (h *Handler) productDTO(p catalog.Product) ProductDTO {
	return ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		BasePrice:   money(p.BasePrice),
		Image:       h.imageURL(p.Image),
	}
}

func (h *Handler) linePriceDTO(lp *checkout.LinePrice) LinePriceDTO {
	c := lp.Customization
	costs := make(map[int64]pricing.AdditionalLine, len(lp.Breakdown.Lines))
	for _, l := range lp.Breakdown.Lines {
		costs[l.IngredientID] = l
	}
	ingredients := func(rules []catalog.IngredientRule) []IngredientDTO {
		out := make([]IngredientDTO, 0, len(rules))
		for _, r := range rules {
			l := costs[r.IngredientID]
			out = append(out, IngredientDTO{
				IngredientID: r.IngredientID,
				Name:         r.Name,
				Kind:         r.Kind().String(),
				Quantity:     c.Current(r.IngredientID),
				Default:      r.Initial(),
				Min:          r.MinQuantity,
				Max:          r.MaxQuantity,
				Billable:     l.Billable,
				UnitPrice:    money(l.UnitPrice),
				Cost:         money(l.Cost),
			})
		}
		return out
	}

	return LinePriceDTO{
		Product:         h.productDTO(c.Product()),
		Quantity:        c.Quantity(),
		Note:            c.Note(),
		BaseIngredients: ingredients(c.BaseIngredients()),
		Extras:          ingredients(c.ExtraIngredients()),
		BaseTotal:       money(lp.Breakdown.Base),
		Additional:      money(lp.Breakdown.Additional),
		Total:           money(lp.Breakdown.Total),
		Item:            lineItemDTO(lp.Item),
	}
}

func lineItemDTO(it pricing.LineItem) LineItemDTO {
	dto := LineItemDTO{
		ProductID:     it.ProductID,
		ProductName:   it.ProductName,
		UnitPrice:     money(it.UnitPrice),
		Quantity:      it.Quantity,
		Modifications: make([]ModificationDTO, 0, len(it.Modifications)),
		Extras:        make([]ExtraDTO, 0, len(it.Extras)),
		Note:          it.Note,
		Additional:    money(it.Additional),
		Total:         money(it.Total),
	}
	for _, m := range it.Modifications {
		dto.Modifications = append(dto.Modifications, ModificationDTO{IngredientID: m.IngredientID, Delta: m.Delta})
	}
	for _, e := range it.Extras {
		dto.Extras = append(dto.Extras, ExtraDTO{IngredientID: e.IngredientID, Quantity: e.Quantity, MinQuantity: e.MinQuantity})
	}
	return dto
}

func lineItemsDTO(items []pricing.LineItem) []LineItemDTO {
	out := make([]LineItemDTO, 0, len(items))
	for _, it := range items {
		out = append(out, lineItemDTO(it))
	}
	return out
}

func cartDTO(c *cart.Cart) CartDTO {
	dto := CartDTO{
		SessionID: c.SessionID,
		Items:     lineItemsDTO(c.Items),
		Subtotal:  money(c.Subtotal()),
	}
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		dto.UpdatedAt = &t
	}
	return dto
}

func preferencesDTO(p *preference.Preferences) PreferencesDTO {
	return PreferencesDTO{
		AddressID:     p.AddressID,
		PaymentMethod: string(p.PaymentMethod),
	}
}

func quoteDTO(q *checkout.Quote) QuoteDTO {
	s := q.Summary
	dto := QuoteDTO{
		SessionID:      q.SessionID,
		Items:          lineItemsDTO(q.Items),
		Subtotal:       money(s.Subtotal),
		DeliveryFee:    money(s.DeliveryFee),
		Discount:       money(s.Discount),
		Total:          money(s.Total),
		PointsBalance:  q.Balance,
		PointsToRedeem: s.PointsToRedeem,
		PointsEarned:   s.PointsEarned,
		GainRate:       q.Rates.Gain.String(),
		RedemptionRate: q.Rates.Redemption.String(),
		Degraded:       q.Degraded,
	}
	if q.Cash != nil {
		dto.Cash = &CashDTO{
			Digits:   q.Cash.Digits,
			Tendered: money(q.Cash.Tendered),
			Display:  q.Cash.Display,
			Valid:    q.Cash.Valid,
			Change:   money(q.Cash.Change),
		}
	}
	return dto
}

func receiptDTO(r *checkout.Receipt) ReceiptDTO {
	dto := ReceiptDTO{
		OrderID:        r.Order.ID,
		Status:         r.Order.Status,
		Total:          money(r.Quote.Summary.Total),
		PointsToRedeem: r.Quote.Summary.PointsToRedeem,
		PointsEarned:   r.Quote.Summary.PointsEarned,
		Quote:          quoteDTO(r.Quote),
	}
	if r.Change.Valid {
		change := money(r.Change.Decimal)
		dto.Change = &change
	}
	return dto
}

func submissionsDTO(subs []order.Submission) []SubmissionDTO {
	out := make([]SubmissionDTO, 0, len(subs))
	for _, s := range subs {
		out = append(out, SubmissionDTO{
			OrderID:        s.OrderID,
			Total:          money(s.Total),
			PointsToRedeem: s.PointsToRedeem,
			PaymentMethod:  string(s.PaymentMethod),
			SubmittedAt:    s.SubmittedAt,
		})
	}
	return out
}
