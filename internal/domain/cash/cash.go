// Package cash validates the cash amount a customer tenders on delivery.
//
// Amounts are typed on a numeric keypad into a digit buffer read as a fixed
// point value with two implied decimals: "5" is 0,05, "550" is 5,50.
package cash

import (
	"strings"

	"github.com/shopspring/decimal"
)

// UpperBound is the smallest rejected amount (R$ 1.000,01).
var UpperBound = decimal.New(100001, -2)

// ParseDigits converts a digit buffer to an amount. It reports false for an
// empty buffer or one containing anything but ASCII digits.
func ParseDigits(digits string) (decimal.Decimal, bool) {
	if digits == "" {
		return decimal.Zero, false
	}
	for i := range len(digits) {
		if digits[i] < '0' || digits[i] > '9' {
			return decimal.Zero, false
		}
	}
	v, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Zero, false
	}
	return v.Shift(-2), true
}

// IsValid reports whether the buffer covers finalTotal and stays below
// UpperBound.
func IsValid(digits string, finalTotal decimal.Decimal) bool {
	amount, ok := ParseDigits(digits)
	if !ok {
		return false
	}
	return amount.GreaterThanOrEqual(finalTotal) && amount.LessThan(UpperBound)
}

// Change returns amount tendered minus finalTotal, or false when the
// buffer is not a valid tender for the total.
func Change(digits string, finalTotal decimal.Decimal) (decimal.Decimal, bool) {
	if !IsValid(digits, finalTotal) {
		return decimal.Zero, false
	}
	amount, _ := ParseDigits(digits)
	return amount.Sub(finalTotal), true
}

// Display renders a digit buffer in pt-BR currency notation: "." groups
// thousands, "," separates exactly two decimals. Invalid buffers render
// as "0,00".
func Display(digits string) string {
	amount, ok := ParseDigits(digits)
	if !ok {
		amount = decimal.Zero
	}
	return FormatBRL(amount)
}

// FormatBRL renders an amount with two decimals in pt-BR notation, without
// the currency symbol. This is the only place amounts get rounded.
func FormatBRL(amount decimal.Decimal) string {
	neg := amount.IsNegative()
	s := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i := range len(whole) {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteByte(whole[i])
	}
	b.WriteByte(',')
	b.WriteString(frac)
	return b.String()
}

// ParseDisplay reads back a string produced by Display or FormatBRL. Only
// the digits are kept, so separators and a currency prefix are ignored.
func ParseDisplay(s string) (decimal.Decimal, bool) {
	return ParseDigits(onlyDigits(s))
}

// DigitsOf returns the canonical digit buffer for s: ASCII digits only,
// without leading zeros.
func DigitsOf(s string) string {
	return Canonical(onlyDigits(s))
}

func onlyDigits(s string) string {
	var b strings.Builder
	for i := range len(s) {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Canonical strips leading zeros from a digit buffer. A buffer of only zeros
// becomes empty.
func Canonical(digits string) string {
	return strings.TrimLeft(digits, "0")
}
