// Package handler exposes the checkout service over HTTP.
package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/checkout"
)

const maxBodySize = 1 << 20

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative product image paths. When empty,
	// image paths are returned as the backend sends them.
	ImageBaseURL string
}

// Handler serves the checkout API, delegating to the checkout service.
type Handler struct {
	checkout     *checkout.Service
	imageBaseURL string
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig, svc *checkout.Service) *Handler {
	return &Handler{
		checkout:     svc,
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
	}
}

// Routes mounts the API under r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/pricing/line", h.PriceLine)
		r.Get("/products/{productID}/customization", h.GetCustomization)

		r.Post("/cash/keypad", h.PressKey)

		r.Route("/carts/{sessionID}", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddItem)
			r.Delete("/items/{index}", h.RemoveItem)
		})

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/preferences", h.GetPreferences)
			r.Put("/preferences", h.PutPreferences)
			r.Get("/orders", h.ListOrders)
		})

		r.Route("/checkout/{sessionID}", func(r chi.Router) {
			r.Post("/quote", h.Quote)
			r.Post("/submit", h.Submit)
		})
	})
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zctx.From(r.Context()).Warn("Encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	respondJSON(w, r, status, ErrorResponse{Code: status, Message: message})
}

// decodeBody decodes a JSON request body into dst. An empty body leaves dst
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, r, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// bearerToken returns the caller's token for the ordering backend, or "".
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func (h *Handler) imageURL(path string) string {
	if path == "" || h.imageBaseURL == "" || strings.Contains(path, "://") {
		return path
	}
	return h.imageBaseURL + "/" + strings.TrimLeft(path, "/")
}
