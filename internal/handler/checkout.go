package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/merchkit/storefront/internal/domain/coupon"
	"github.com/merchkit/storefront/internal/domain/order"
	"github.com/merchkit/storefront/internal/domain/site"
	"github.com/merchkit/storefront/internal/domain/user"
)

type checkoutRequest struct {
	UserID     string            `json:"userId"`
	Items      []itemRequest     `json:"items"`
	CouponCode string            `json:"couponCode,omitempty"`
}

type itemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type orderResponse struct {
	ID         string          `json:"id"`
	Reference  string          `json:"reference"`
	Status     string          `json:"status"`
	Items      []itemResponse  `json:"items"`
	Subtotal   float64         `json:"subtotal"`
	Tax        float64         `json:"tax"`
	Shipping   float64         `json:"shipping"`
	Discount   float64         `json:"discount"`
	GrandTotal float64         `json:"grandTotal"`
	Coupon     *couponResponse `json:"coupon,omitempty"`
	History    []historyEntry  `json:"history,omitempty"`
}

type itemResponse struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
}

type couponResponse struct {
	Code         string  `json:"code"`
	Type         string  `json:"type"`
	Amount       float64 `json:"amount"`
	FreeShipping bool    `json:"freeShipping,omitempty"`
}

type historyEntry struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Actor      string `json:"actor"`
	ActorType  string `json:"actorType"`
	Reason     string `json:"reason,omitempty"`
	OccurredAt string `json:"occurredAt"`
}

// Checkout places a new order from the posted cart. The order starts in
// pending status; coupon rejections come back as 422 with every failing
// reason listed.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ident := IdentityFromContext(r.Context())

	items := make([]order.ItemRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = order.ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	o, err := h.orderService.Checkout(r.Context(), order.CheckoutRequest{
		SiteID:     ident.SiteID,
		UserID:     req.UserID,
		Items:      items,
		CouponCode: req.CouponCode,
	})
	if err != nil {
		h.mapOrderError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toOrderResponse(o))
}

// mapOrderError converts domain errors to HTTP error responses. Unmapped
// errors fall through to 500.
func (h *Handler) mapOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, order.ErrEmptyItems):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, site.ErrNotFound):
		respondError(w, http.StatusNotFound, "site not found")
	case errors.Is(err, user.ErrNotFound):
		respondError(w, http.StatusUnprocessableEntity, "user not found")
	case errors.Is(err, order.ErrNotFound):
		respondError(w, http.StatusNotFound, "order not found")
	default:
		var (
			iqErr  *order.InvalidQuantityError
			pnfErr *order.ProductNotFoundError
			itErr  *order.InvalidTransitionError
			usErr  *order.UnknownStatusError
			rej    *coupon.Rejection
		)
		switch {
		case errors.As(err, &iqErr):
			respondError(w, http.StatusUnprocessableEntity, iqErr.Error())
		case errors.As(err, &pnfErr):
			respondError(w, http.StatusUnprocessableEntity, pnfErr.Error())
		case errors.As(err, &usErr):
			respondError(w, http.StatusBadRequest, usErr.Error())
		case errors.As(err, &itErr):
			respondError(w, http.StatusConflict, itErr.Error())
		case errors.As(err, &rej):
			respondRejection(w, rej)
		default:
			respondError(w, http.StatusInternalServerError, "internal error")
		}
	}
}

func respondRejection(w http.ResponseWriter, rej *coupon.Rejection) {
	reasons := make([]string, len(rej.Reasons))
	for i, reason := range rej.Reasons {
		reasons[i] = string(reason)
	}
	respondJSON(w, http.StatusUnprocessableEntity, errorResponse{
		Code:    http.StatusUnprocessableEntity,
		Message: "coupon rejected",
		Reasons: reasons,
	})
}

func toOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:         o.ID,
		Reference:  o.Reference,
		Status:     string(o.Status),
		Items:      make([]itemResponse, len(o.Items)),
		Subtotal:   o.Subtotal.InexactFloat64(),
		Tax:        o.Tax.InexactFloat64(),
		Shipping:   o.Shipping.InexactFloat64(),
		Discount:   o.Discount.InexactFloat64(),
		GrandTotal: o.GrandTotal.InexactFloat64(),
	}
	for i, item := range o.Items {
		resp.Items[i] = itemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice.InexactFloat64(),
			Quantity:  item.Quantity,
		}
	}
	if o.Coupon != nil {
		resp.Coupon = &couponResponse{
			Code:         o.Coupon.Code,
			Type:         string(o.Coupon.Type),
			Amount:       o.Coupon.Amount.InexactFloat64(),
			FreeShipping: o.Coupon.FreeShipping,
		}
	}
	for _, rec := range o.History {
		resp.History = append(resp.History, historyEntry{
			From:       string(rec.From),
			To:         string(rec.To),
			Actor:      rec.Actor,
			ActorType:  string(rec.ActorType),
			Reason:     rec.Reason,
			OccurredAt: rec.OccurredAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return resp
}
