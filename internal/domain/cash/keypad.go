package cash

import "github.com/shopspring/decimal"

// Keypad is the digit buffer behind the "change for" input. Its zero value is
// an empty buffer.
type Keypad struct {
	digits string
}

// NewKeypad starts a keypad from an existing buffer, canonicalized. A buffer
// at or above UpperBound starts empty.
func NewKeypad(digits string) Keypad {
	k := Keypad{}
	if next, ok := k.accept(DigitsOf(digits)); ok {
		return next
	}
	return k
}

// Digits returns the canonical buffer.
func (k Keypad) Digits() string { return k.digits }

// Amount returns the buffer's value; an empty buffer is zero.
func (k Keypad) Amount() decimal.Decimal {
	v, ok := ParseDigits(k.digits)
	if !ok {
		return decimal.Zero
	}
	return v
}

// Display renders the buffer in pt-BR notation.
func (k Keypad) Display() string { return Display(k.digits) }

// Press appends a digit. Keys other than '0'..'9' and keystrokes that would
// reach UpperBound are ignored; accepted reports which happened.
func (k Keypad) Press(key byte) (next Keypad, accepted bool) {
	if key < '0' || key > '9' {
		return k, false
	}
	return k.accept(Canonical(k.digits + string(key)))
}

// Backspace drops the last digit.
func (k Keypad) Backspace() Keypad {
	if k.digits == "" {
		return k
	}
	return Keypad{digits: Canonical(k.digits[:len(k.digits)-1])}
}

// Clear empties the buffer.
func (k Keypad) Clear() Keypad { return Keypad{} }

func (k Keypad) accept(digits string) (Keypad, bool) {
	if v, ok := ParseDigits(digits); ok && v.GreaterThanOrEqual(UpperBound) {
		return k, false
	}
	return Keypad{digits: digits}, true
}
