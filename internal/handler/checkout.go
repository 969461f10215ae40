package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/kart-checkout/internal/checkout"
)

// Quote settles the session cart for the review screen.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	q, err := h.checkout.Quote(r.Context(), chi.URLParam(r, "sessionID"), checkout.QuoteRequest{
		Token:      bearerToken(r),
		UsePoints:  req.UsePoints,
		CashDigits: req.CashDigits,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, quoteDTO(q))
}

// Submit places the order of the session cart.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	token := bearerToken(r)
	if token == "" {
		respondError(w, r, http.StatusUnauthorized, "bearer token required")
		return
	}

	rcpt, err := h.checkout.Submit(r.Context(), chi.URLParam(r, "sessionID"), checkout.SubmitRequest{
		Token:         token,
		AddressID:     req.AddressID,
		PaymentMethod: req.PaymentMethod,
		CashDigits:    req.CashDigits,
		UsePoints:     req.UsePoints,
		Notes:         req.Notes,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, receiptDTO(rcpt))
}

// ListOrders returns the latest submissions of a session.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, r, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	subs, err := h.checkout.History(r.Context(), chi.URLParam(r, "sessionID"), limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, submissionsDTO(subs))
}
