package loyalty

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestComputeDiscount(t *testing.T) {
	tests := []struct {
		name      string
		points    int64
		rate      decimal.Decimal
		usePoints bool
		want      decimal.Decimal
	}{
		{name: "points used", points: 100, rate: d("0.01"), usePoints: true, want: d("1.00")},
		{name: "points not used", points: 100, rate: d("0.01"), usePoints: false, want: decimal.Zero},
		{name: "zero rate", points: 100, rate: decimal.Zero, usePoints: true, want: decimal.Zero},
		{name: "negative rate", points: 100, rate: d("-0.5"), usePoints: true, want: decimal.Zero},
		{name: "negative balance", points: -20, rate: d("0.01"), usePoints: true, want: decimal.Zero},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDiscount(tt.points, tt.rate, tt.usePoints)
			assert.True(t, tt.want.Equal(got), "expected %s, got %s", tt.want, got)
		})
	}
}

func TestComputeFinalTotal(t *testing.T) {
	tests := []struct {
		name     string
		subtotal string
		fee      string
		discount string
		want     string
	}{
		{name: "discount below ceiling", subtotal: "20", fee: "5", discount: "1", want: "24"},
		{name: "discount equal to ceiling", subtotal: "20", fee: "5", discount: "25", want: "0"},
		{name: "discount above ceiling is capped", subtotal: "20", fee: "5", discount: "900", want: "0"},
		{name: "negative discount ignored", subtotal: "20", fee: "5", discount: "-3", want: "25"},
		{name: "negative inputs degrade to zero", subtotal: "-10", fee: "-5", discount: "1", want: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeFinalTotal(d(tt.subtotal), d(tt.fee), d(tt.discount))
			assert.True(t, d(tt.want).Equal(got), "expected %s, got %s", tt.want, got)
			assert.False(t, got.IsNegative())
		})
	}
}

func TestComputeEarnedPoints(t *testing.T) {
	assert.Equal(t, int64(240), ComputeEarnedPoints(d("24.00"), d("0.10")))
	assert.Equal(t, int64(2), ComputeEarnedPoints(d("24.99"), d("10")), "floors instead of rounding")
	assert.Equal(t, int64(0), ComputeEarnedPoints(d("24.00"), decimal.Zero))
	assert.Equal(t, int64(0), ComputeEarnedPoints(d("-5"), d("1")))
}

func TestComputeEarnedPoints_Monotonic(t *testing.T) {
	rate := d("0.37")
	prev := int64(0)
	for cents := int64(0); cents <= 5000; cents += 7 {
		got := ComputeEarnedPoints(decimal.New(cents, -2), rate)
		assert.GreaterOrEqual(t, got, prev, "at %d cents", cents)
		prev = got
	}
}

func TestComputePointsToRedeem(t *testing.T) {
	assert.Equal(t, int64(100), ComputePointsToRedeem(d("1.00"), d("0.01")))
	assert.Equal(t, int64(0), ComputePointsToRedeem(d("1.00"), decimal.Zero))

	// Round trip with no cap applied is exact.
	for _, points := range []int64{1, 7, 100, 1234, 99999} {
		discount := ComputeDiscount(points, d("0.03"), true)
		assert.Equal(t, points, ComputePointsToRedeem(discount, d("0.03")))
	}

	// A capped discount recovers fewer points than the balance.
	capped := CapDiscount(ComputeDiscount(5000, d("0.03"), true), d("20"), d("5.05"))
	assert.Equal(t, int64(835), ComputePointsToRedeem(capped, d("0.03")))
}

func TestSummarize(t *testing.T) {
	s := Summarize(Input{
		Subtotal:    d("20.00"),
		DeliveryFee: d("5.00"),
		Account:     Account{Balance: 100, Rates: Rates{Gain: d("0.10"), Redemption: d("0.01")}},
		UsePoints:   true,
	})

	assert.True(t, d("1.00").Equal(s.Discount))
	assert.True(t, d("24.00").Equal(s.Total))
	assert.Equal(t, int64(100), s.PointsToRedeem)
	assert.Equal(t, int64(240), s.PointsEarned)
}

func TestSummarize_Capped(t *testing.T) {
	s := Summarize(Input{
		Subtotal:    d("10.00"),
		DeliveryFee: d("2.00"),
		Account:     Account{Balance: 5000, Rates: Rates{Gain: d("1"), Redemption: d("0.01")}},
		UsePoints:   true,
	})

	assert.True(t, d("12.00").Equal(s.Discount))
	assert.True(t, s.Total.IsZero())
	assert.Equal(t, int64(1200), s.PointsToRedeem)
	assert.Equal(t, int64(0), s.PointsEarned)
}

func TestSummarize_NotLoaded(t *testing.T) {
	s := Summarize(Input{Subtotal: d("15.00"), UsePoints: true})

	assert.True(t, s.Discount.IsZero())
	assert.True(t, d("15.00").Equal(s.Total))
	assert.Equal(t, int64(0), s.PointsEarned)
	assert.Equal(t, int64(0), s.PointsToRedeem)
}
