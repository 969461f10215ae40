package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/domain/cash"
)

// PriceLine prices a customization without committing it.
func (h *Handler) PriceLine(w http.ResponseWriter, r *http.Request) {
	var req LineRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ProductID <= 0 {
		respondError(w, r, http.StatusBadRequest, "product_id must be positive")
		return
	}

	lp, err := h.checkout.PriceLine(r.Context(), req.toDomain())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, h.linePriceDTO(lp))
}

// GetCustomization returns the initial customization of a product.
func (h *Handler) GetCustomization(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, r, http.StatusBadRequest, "invalid product id")
		return
	}

	lp, err := h.checkout.Customization(r.Context(), productID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, h.linePriceDTO(lp))
}

// PressKey applies one key press to a cash keypad buffer.
func (h *Handler) PressKey(w http.ResponseWriter, r *http.Request) {
	var req KeypadRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	k := cash.NewKeypad(req.Digits)
	accepted := true
	switch req.Key {
	case "backspace":
		k = k.Backspace()
	case "clear":
		k = k.Clear()
	case "":
	default:
		if len(req.Key) != 1 {
			respondError(w, r, http.StatusBadRequest, "key must be a digit, backspace or clear")
			return
		}
		k, accepted = k.Press(req.Key[0])
	}

	dto := KeypadDTO{
		Digits:   k.Digits(),
		Display:  k.Display(),
		Amount:   money(k.Amount()),
		Accepted: accepted,
	}
	if req.Total != "" {
		total, err := decimal.NewFromString(req.Total)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "invalid total")
			return
		}
		change, valid := cash.Change(k.Digits(), total)
		dto.Valid = &valid
		if valid {
			s := money(change)
			dto.Change = &s
		}
	}
	respondJSON(w, r, http.StatusOK, dto)
}
