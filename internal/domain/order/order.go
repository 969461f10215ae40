// Package order assembles the order submission payload from a checkout draft.
package order

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/domain/pricing"
)

// PaymentMethod is the payment vocabulary used by the app.
type PaymentMethod string

const (
	PaymentPix    PaymentMethod = "pix"
	PaymentCredit PaymentMethod = "credit"
	PaymentCash   PaymentMethod = "cash"
)

// ParsePaymentMethod normalizes a user-supplied payment method. The API
// spellings ("credit_card", "money") are accepted too.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pix":
		return PaymentPix, true
	case "credit", "credit_card":
		return PaymentCredit, true
	case "cash", "money":
		return PaymentCash, true
	default:
		return "", false
	}
}

// APIValue maps the method to the ordering backend's vocabulary.
func (m PaymentMethod) APIValue() string {
	switch m {
	case PaymentPix:
		return "pix"
	case PaymentCredit:
		return "credit_card"
	case PaymentCash:
		return "money"
	default:
		return string(m)
	}
}

// OrderTypeDelivery is the only order type the app places.
const OrderTypeDelivery = "delivery"

// Draft is an order assembled at review time and consumed once by submission.
type Draft struct {
	Items         []pricing.LineItem
	AddressID     int64
	PaymentMethod PaymentMethod
	// CashTendered is set only for cash payments with a valid tender.
	CashTendered   decimal.NullDecimal
	PointsToRedeem int64
	Notes          string

	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
}

// Created is the backend's acknowledgement of a submitted order.
type Created struct {
	ID        int64
	Status    string
	Total     decimal.Decimal
	CreatedAt time.Time
}

// Gateway submits orders to the ordering backend.
type Gateway interface {
	CreateOrder(ctx context.Context, token string, req Request) (*Created, error)
}

// Submission records an order accepted by the backend.
type Submission struct {
	OrderID        int64           `json:"order_id"`
	SessionID      string          `json:"session_id"`
	Total          decimal.Decimal `json:"total"`
	PointsToRedeem int64           `json:"points_to_redeem"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	SubmittedAt    time.Time       `json:"submitted_at"`
}

// History persists submissions per session.
type History interface {
	Record(ctx context.Context, s *Submission) error
	// List returns the latest submissions of a session, newest first.
	List(ctx context.Context, sessionID string, limit int) ([]Submission, error)
}
