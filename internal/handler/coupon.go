package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/merchkit/storefront/internal/domain/coupon"
	"github.com/merchkit/storefront/internal/domain/order"
)

type previewResponse struct {
	Code         string  `json:"code"`
	Type         string  `json:"type"`
	Discount     float64 `json:"discount"`
	FreeShipping bool    `json:"freeShipping,omitempty"`
}

// PreviewCoupon evaluates a coupon against a cart without placing an order
// or consuming a usage. Rejections come back as 422 with every failing
// reason listed.
func (h *Handler) PreviewCoupon(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CouponCode == "" {
		respondError(w, http.StatusBadRequest, "couponCode required")
		return
	}

	ident := IdentityFromContext(r.Context())

	items := make([]order.ItemRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = order.ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	res, err := h.orderService.Preview(r.Context(), order.CheckoutRequest{
		SiteID:     ident.SiteID,
		UserID:     req.UserID,
		Items:      items,
		CouponCode: req.CouponCode,
	})
	if err != nil {
		var rej *coupon.Rejection
		if errors.As(err, &rej) {
			respondRejection(w, rej)
			return
		}
		h.mapOrderError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, previewResponse{
		Code:         res.Coupon.Code,
		Type:         string(res.Coupon.Type),
		Discount:     res.Discount.InexactFloat64(),
		FreeShipping: res.FreeShipping,
	})
}
