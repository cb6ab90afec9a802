package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/merchkit/storefront/internal/domain/product"
)

type productResponse struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Category string  `json:"category,omitempty"`
}

// ListProducts returns the site's active catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFromContext(r.Context())

	items, err := h.products.List(r.Context(), ident.SiteID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := make([]productResponse, len(items))
	for i, p := range items {
		resp[i] = toProductResponse(&p)
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetProduct returns a single product by ID.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFromContext(r.Context())

	p, err := h.products.GetByID(r.Context(), ident.SiteID, chi.URLParam(r, "productID"))
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			respondError(w, http.StatusNotFound, "product not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, toProductResponse(p))
}

func toProductResponse(p *product.Product) productResponse {
	return productResponse{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price.InexactFloat64(),
		Category: p.Category,
	}
}
