package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/kart-checkout/internal/domain/order"
	"github.com/xenking/kart-checkout/internal/domain/preference"
)

// GetCart returns the session cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.checkout.Cart(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, cartDTO(c))
}

// AddItem prices a customization and commits it to the session cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req LineRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ProductID <= 0 {
		respondError(w, r, http.StatusBadRequest, "product_id must be positive")
		return
	}

	c, err := h.checkout.AddToCart(r.Context(), chi.URLParam(r, "sessionID"), req.toDomain())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, cartDTO(c))
}

// RemoveItem drops a line from the session cart.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid item index")
		return
	}

	c, err := h.checkout.RemoveItem(r.Context(), chi.URLParam(r, "sessionID"), index)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, cartDTO(c))
}

// ClearCart empties the session cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.checkout.ClearCart(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPreferences returns the remembered checkout choices of a session.
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := h.checkout.Preferences(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, preferencesDTO(p))
}

// PutPreferences stores the checkout choices of a session.
func (h *Handler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	var req PreferencesDTO
	if !decodeBody(w, r, &req) {
		return
	}
	p := &preference.Preferences{
		SessionID: chi.URLParam(r, "sessionID"),
		AddressID: max(0, req.AddressID),
	}
	if req.PaymentMethod != "" {
		m, ok := order.ParsePaymentMethod(req.PaymentMethod)
		if !ok {
			respondError(w, r, http.StatusBadRequest, "payment_method must be pix, credit or cash")
			return
		}
		p.PaymentMethod = m
	}

	if err := h.checkout.SavePreferences(r.Context(), p); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, preferencesDTO(p))
}
