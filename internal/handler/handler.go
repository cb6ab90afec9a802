// Package handler exposes the storefront domain over HTTP. Routing is chi;
// request and response bodies are plain JSON. Tenancy comes from the
// authenticated API key: every authenticated route operates on the key's site.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/merchkit/storefront/internal/domain/order"
	"github.com/merchkit/storefront/internal/domain/product"
)

// Handler holds the domain dependencies for all HTTP endpoints.
type Handler struct {
	products     product.Repository
	orderService *order.Service
	orders       order.Repository
	security     *SecurityHandler
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	orderService *order.Service,
	orders order.Repository,
	security *SecurityHandler,
) *Handler {
	return &Handler{
		products:     products,
		orderService: orderService,
		orders:       orders,
		security:     security,
	}
}

// Routes returns the API router. All routes require an API key; the key
// scopes requests to its site.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.security.Middleware)

	r.Get("/products", h.ListProducts)
	r.Get("/products/{productID}", h.GetProduct)
	r.Post("/checkout", h.Checkout)
	r.Get("/orders/{orderID}", h.GetOrder)
	r.Post("/orders/{orderID}/status", h.ChangeOrderStatus)
	r.Post("/coupons/preview", h.PreviewCoupon)

	return r
}

// errorResponse is the JSON body for all error replies.
type errorResponse struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Reasons []string `json:"reasons,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Best effort: the status code is already written.
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Code: status, Message: message})
}
