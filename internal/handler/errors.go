package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/backend"
	"github.com/xenking/kart-checkout/internal/checkout"
	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/catalog"
)

// respondServiceError maps service and backend errors to HTTP responses.
// The 409, 422 and 400 codes mirror the ordering backend so clients can key
// their alerts off them.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, checkout.ErrInvalidSession),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrAddressRequired),
		errors.Is(err, checkout.ErrPaymentMethodRequired),
		errors.Is(err, checkout.ErrInvalidCashAmount):
		respondError(w, r, http.StatusBadRequest, rootMessage(err))
		return
	case errors.Is(err, catalog.ErrProductNotFound):
		respondError(w, r, http.StatusNotFound, "product not found")
		return
	case errors.Is(err, cart.ErrItemNotFound):
		respondError(w, r, http.StatusNotFound, "cart item not found")
		return
	case errors.Is(err, backend.ErrUnavailable):
		respondError(w, r, http.StatusServiceUnavailable, "ordering backend unavailable, try again shortly")
		return
	}

	var (
		closed     *backend.StoreClosedError
		stock      *backend.OutOfStockError
		validation *backend.ValidationError
		status     *backend.StatusError
	)
	switch {
	case errors.As(err, &closed):
		respondError(w, r, http.StatusConflict, messageOr(closed.Message, "store is closed"))
	case errors.As(err, &stock):
		respondError(w, r, http.StatusUnprocessableEntity, messageOr(stock.Message, "product out of stock"))
	case errors.As(err, &validation):
		respondError(w, r, http.StatusBadRequest, messageOr(validation.Message, "order rejected"))
	case errors.As(err, &status) && (status.Status == http.StatusUnauthorized || status.Status == http.StatusForbidden):
		respondError(w, r, status.Status, messageOr(status.Message, "not authorized"))
	case errors.As(err, &status):
		zctx.From(r.Context()).Error("Ordering backend error", zap.Error(err))
		respondError(w, r, http.StatusBadGateway, "ordering backend error")
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

func messageOr(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}

// rootMessage returns the message of the innermost error.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
