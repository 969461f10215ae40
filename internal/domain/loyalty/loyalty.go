// Package loyalty computes point redemption discounts and point accrual.
//
// Every input is treated defensively: negative balances and non-positive
// rates degrade to "no benefit" instead of failing the checkout.
package loyalty

import (
	"context"

	"github.com/shopspring/decimal"
)

// Rates are the store's loyalty conversion rates.
type Rates struct {
	// Gain is the amount that must be spent to earn one point.
	Gain decimal.Decimal
	// Redemption is the currency value of one point when spent.
	Redemption decimal.Decimal
}

// Account is a customer's loyalty position.
type Account struct {
	Balance int64
	Rates   Rates
}

// BalanceSource fetches the point balance of the authenticated customer.
type BalanceSource interface {
	LoyaltyBalance(ctx context.Context, token string) (int64, error)
}

// ComputeDiscount returns the currency value of all available points when
// usePoints is set.
func ComputeDiscount(pointsAvailable int64, redemptionRate decimal.Decimal, usePoints bool) decimal.Decimal {
	if !usePoints || pointsAvailable <= 0 || !redemptionRate.IsPositive() {
		return decimal.Zero
	}
	return decimal.NewFromInt(pointsAvailable).Mul(redemptionRate)
}

// CapDiscount limits discount to subtotal + deliveryFee and floors it at zero.
func CapDiscount(discount, subtotal, deliveryFee decimal.Decimal) decimal.Decimal {
	ceiling := floorAtZero(subtotal).Add(floorAtZero(deliveryFee))
	return decimal.Min(floorAtZero(discount), ceiling)
}

// ComputeFinalTotal returns subtotal + deliveryFee − discount, with the
// discount capped so the result is never negative.
func ComputeFinalTotal(subtotal, deliveryFee, discount decimal.Decimal) decimal.Decimal {
	gross := floorAtZero(subtotal).Add(floorAtZero(deliveryFee))
	return gross.Sub(CapDiscount(discount, subtotal, deliveryFee))
}

// ComputeEarnedPoints returns floor(finalTotal / gainRate), or zero when the
// rate is not positive.
func ComputeEarnedPoints(finalTotal, gainRate decimal.Decimal) int64 {
	return floorDiv(finalTotal, gainRate)
}

// ComputePointsToRedeem recovers the whole number of points behind an
// applied discount: floor(appliedDiscount / redemptionRate).
func ComputePointsToRedeem(appliedDiscount, redemptionRate decimal.Decimal) int64 {
	return floorDiv(appliedDiscount, redemptionRate)
}

// Input is everything the checkout review needs to settle loyalty.
type Input struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Account     Account
	UsePoints   bool
}

// Summary is the settled loyalty view of an order.
type Summary struct {
	Subtotal       decimal.Decimal
	DeliveryFee    decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
	PointsToRedeem int64
	PointsEarned   int64
}

// Summarize applies the discount, computes the payable total and both point
// counts.
func Summarize(in Input) Summary {
	subtotal := floorAtZero(in.Subtotal)
	fee := floorAtZero(in.DeliveryFee)

	requested := ComputeDiscount(in.Account.Balance, in.Account.Rates.Redemption, in.UsePoints)
	discount := CapDiscount(requested, subtotal, fee)
	total := ComputeFinalTotal(subtotal, fee, discount)

	return Summary{
		Subtotal:       subtotal,
		DeliveryFee:    fee,
		Discount:       discount,
		Total:          total,
		PointsToRedeem: ComputePointsToRedeem(discount, in.Account.Rates.Redemption),
		PointsEarned:   ComputeEarnedPoints(total, in.Account.Rates.Gain),
	}
}

func floorDiv(amount, rate decimal.Decimal) int64 {
	if !rate.IsPositive() || !amount.IsPositive() {
		return 0
	}
	// Exact quotients must floor to themselves.
	return amount.DivRound(rate, 32).Floor().IntPart()
}

func floorAtZero(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
