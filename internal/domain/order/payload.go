package order

import (
	"github.com/xenking/kart-checkout/internal/domain/pricing"
)

// ExtraRequest is one extra ingredient on the wire. Quantity is the full
// quantity to prepare, minimum included.
type ExtraRequest struct {
	IngredientID int64 `json:"ingredient_id"`
	Quantity     int   `json:"quantity"`
}

// ModificationRequest is one recipe ingredient change on the wire.
type ModificationRequest struct {
	IngredientID int64 `json:"ingredient_id"`
	Delta        int   `json:"delta"`
}

// ItemRequest is one order line on the wire.
type ItemRequest struct {
	ProductID         int64                 `json:"product_id"`
	Quantity          int                   `json:"quantity"`
	Notes             string                `json:"notes,omitempty"`
	Extras            []ExtraRequest        `json:"extras"`
	BaseModifications []ModificationRequest `json:"base_modifications"`
}

// Request is the body of the order creation endpoint.
type Request struct {
	UseCart        bool          `json:"use_cart"`
	Items          []ItemRequest `json:"items"`
	AddressID      int64         `json:"address_id"`
	PaymentMethod  string        `json:"payment_method"`
	OrderType      string        `json:"order_type"`
	PointsToRedeem int64         `json:"points_to_redeem"`
	Notes          string        `json:"notes"`
	AmountPaid     *float64      `json:"amount_paid,omitempty"`
}

// BuildOrderItems converts cart lines into wire items. Extras are sent when
// their quantity is positive, with the full quantity; modifications are sent
// when their delta is not zero.
func BuildOrderItems(items []pricing.LineItem) []ItemRequest {
	out := make([]ItemRequest, 0, len(items))
	for _, it := range items {
		req := ItemRequest{
			ProductID:         it.ProductID,
			Quantity:          it.Quantity,
			Notes:             it.Note,
			Extras:            []ExtraRequest{},
			BaseModifications: []ModificationRequest{},
		}
		for _, e := range it.Extras {
			if e.Quantity > 0 {
				req.Extras = append(req.Extras, ExtraRequest{IngredientID: e.IngredientID, Quantity: e.Quantity})
			}
		}
		for _, m := range it.Modifications {
			if m.Delta != 0 {
				req.BaseModifications = append(req.BaseModifications, ModificationRequest{IngredientID: m.IngredientID, Delta: m.Delta})
			}
		}
		out = append(out, req)
	}
	return out
}

// BuildOrderRequest assembles the order creation body from a draft. It does
// not validate the draft: callers gate on address, payment method and cash
// tender before calling it.
func BuildOrderRequest(draft Draft) Request {
	req := Request{
		UseCart:        false,
		Items:          BuildOrderItems(draft.Items),
		AddressID:      draft.AddressID,
		PaymentMethod:  draft.PaymentMethod.APIValue(),
		OrderType:      OrderTypeDelivery,
		PointsToRedeem: max(0, draft.PointsToRedeem),
		Notes:          draft.Notes,
	}
	if draft.PaymentMethod == PaymentCash && draft.CashTendered.Valid && draft.CashTendered.Decimal.IsPositive() {
		paid := draft.CashTendered.Decimal.Round(2).InexactFloat64()
		req.AmountPaid = &paid
	}
	return req
}
