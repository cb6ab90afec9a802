package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/merchkit/storefront/internal/domain/order"
)

type changeStatusRequest struct {
	Status    string `json:"status"`
	Actor     string `json:"actor"`
	ActorType string `json:"actorType"`
	Reason    string `json:"reason,omitempty"`
}

// GetOrder returns a single order with its status history. Orders are
// addressable by ID or by their human-readable reference.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFromContext(r.Context())
	key := chi.URLParam(r, "orderID")

	o, err := h.orders.GetByID(r.Context(), ident.SiteID, key)
	if errors.Is(err, order.ErrNotFound) {
		o, err = h.orders.GetByReference(r.Context(), ident.SiteID, key)
	}
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			respondError(w, http.StatusNotFound, "order not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, toOrderResponse(o))
}

// ChangeOrderStatus applies a guarded status transition. Illegal transitions
// return 409 without mutating the order.
func (h *Handler) ChangeOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		respondError(w, http.StatusBadRequest, "status required")
		return
	}

	actorType := order.ActorType(req.ActorType)
	if actorType == "" {
		actorType = order.ActorStaff
	}

	ident := IdentityFromContext(r.Context())

	o, err := h.orderService.ChangeStatus(r.Context(), order.ChangeStatusRequest{
		SiteID:    ident.SiteID,
		OrderID:   chi.URLParam(r, "orderID"),
		Target:    order.Status(req.Status),
		Actor:     req.Actor,
		ActorType: actorType,
		Reason:    req.Reason,
	})
	if err != nil {
		h.mapOrderError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toOrderResponse(o))
}
