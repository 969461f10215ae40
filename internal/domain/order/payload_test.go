package order

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-checkout/internal/domain/pricing"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestBuildOrderItems(t *testing.T) {
	items := []pricing.LineItem{
		{
			ProductID: 1,
			Quantity:  2,
			Note:      "sem cebola",
			Modifications: []pricing.IngredientModification{
				{IngredientID: 10, Delta: 1},
				{IngredientID: 11, Delta: 0},
				{IngredientID: 12, Delta: -1},
			},
			Extras: []pricing.ExtraSelection{
				{IngredientID: 20, Quantity: 3, MinQuantity: 1},
				{IngredientID: 21, Quantity: 0, MinQuantity: 0},
			},
		},
		{ProductID: 2, Quantity: 1},
	}

	got := BuildOrderItems(items)
	require.Len(t, got, 2)

	assert.Equal(t, int64(1), got[0].ProductID)
	assert.Equal(t, 2, got[0].Quantity)
	assert.Equal(t, "sem cebola", got[0].Notes)
	assert.Equal(t, []ExtraRequest{{IngredientID: 20, Quantity: 3}}, got[0].Extras, "full quantity, not the billable part")
	assert.Equal(t, []ModificationRequest{
		{IngredientID: 10, Delta: 1},
		{IngredientID: 12, Delta: -1},
	}, got[0].BaseModifications)

	assert.Empty(t, got[1].Extras)
	assert.NotNil(t, got[1].Extras)
	assert.NotNil(t, got[1].BaseModifications)
}

func TestBuildOrderRequest(t *testing.T) {
	base := Draft{
		Items:          []pricing.LineItem{{ProductID: 1, Quantity: 1}},
		AddressID:      7,
		PointsToRedeem: 100,
		Notes:          "portão azul",
	}

	tests := []struct {
		name       string
		method     PaymentMethod
		tendered   decimal.NullDecimal
		wantMethod string
		wantPaid   *float64
	}{
		{name: "pix", method: PaymentPix, wantMethod: "pix"},
		{name: "credit", method: PaymentCredit, wantMethod: "credit_card"},
		{name: "cash with tender", method: PaymentCash, tendered: decimal.NewNullDecimal(d("30.00")), wantMethod: "money", wantPaid: ptr(30.0)},
		{name: "cash without tender", method: PaymentCash, wantMethod: "money"},
		{name: "tender ignored for pix", method: PaymentPix, tendered: decimal.NewNullDecimal(d("30.00")), wantMethod: "pix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := base
			draft.PaymentMethod = tt.method
			draft.CashTendered = tt.tendered

			req := BuildOrderRequest(draft)
			assert.False(t, req.UseCart)
			assert.Equal(t, OrderTypeDelivery, req.OrderType)
			assert.Equal(t, tt.wantMethod, req.PaymentMethod)
			assert.Equal(t, int64(7), req.AddressID)
			assert.Equal(t, int64(100), req.PointsToRedeem)
			assert.Equal(t, "portão azul", req.Notes)
			assert.Equal(t, tt.wantPaid, req.AmountPaid)
		})
	}
}

func TestBuildOrderRequest_MissingPrerequisites(t *testing.T) {
	req := BuildOrderRequest(Draft{})
	assert.Equal(t, int64(0), req.AddressID)
	assert.Equal(t, "", req.PaymentMethod)
	assert.Empty(t, req.Items)
}

func TestRequest_JSON(t *testing.T) {
	req := BuildOrderRequest(Draft{
		Items: []pricing.LineItem{{
			ProductID: 3,
			Quantity:  1,
			Extras:    []pricing.ExtraSelection{{IngredientID: 5, Quantity: 3, MinQuantity: 1}},
		}},
		AddressID:     9,
		PaymentMethod: PaymentCash,
		CashTendered:  decimal.NewNullDecimal(d("50")),
	})

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"use_cart": false,
		"items": [{"product_id": 3, "quantity": 1, "extras": [{"ingredient_id": 5, "quantity": 3}], "base_modifications": []}],
		"address_id": 9,
		"payment_method": "money",
		"order_type": "delivery",
		"points_to_redeem": 0,
		"notes": "",
		"amount_paid": 50
	}`, string(data))
}

func TestParsePaymentMethod(t *testing.T) {
	for in, want := range map[string]PaymentMethod{
		"pix": PaymentPix, "PIX": PaymentPix, "credit": PaymentCredit,
		"credit_card": PaymentCredit, "cash": PaymentCash, "money": PaymentCash,
	} {
		got, ok := ParsePaymentMethod(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParsePaymentMethod("boleto")
	assert.False(t, ok)
}

func ptr(v float64) *float64 { return &v }
