package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/merchkit/storefront/internal/domain/cart"
	"github.com/merchkit/storefront/internal/domain/coupon"
	"github.com/merchkit/storefront/internal/domain/product"
	"github.com/merchkit/storefront/internal/domain/site"
	"github.com/merchkit/storefront/internal/domain/user"
)

// Sentinel errors for checkout validation.
var ErrEmptyItems = fmt.Errorf("items required")

// ProductNotFoundError indicates a requested product does not exist on the site.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// ItemRequest is a single requested line in a checkout.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// CheckoutRequest holds the input for placing an order.
type CheckoutRequest struct {
	SiteID     string
	UserID     string
	Items      []ItemRequest
	CouponCode string
}

// ChangeStatusRequest holds the input for a guarded status change.
type ChangeStatusRequest struct {
	SiteID    string
	OrderID   string
	Target    Status
	Actor     string
	ActorType ActorType
	Reason    string
}

// Service encapsulates checkout and order lifecycle business logic.
type Service struct {
	sites    site.Repository
	products product.Repository
	users    user.Repository
	coupons  *coupon.Evaluator
	orders   Repository
	now      func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	sites site.Repository,
	products product.Repository,
	users user.Repository,
	coupons *coupon.Evaluator,
	orders Repository,
) *Service {
	return &Service{
		sites:    sites,
		products: products,
		users:    users,
		coupons:  coupons,
		orders:   orders,
		now:      time.Now,
	}
}

// Checkout validates the requested items, snapshots current catalog prices
// into a cart, applies an optional coupon (consuming one usage atomically),
// and persists a new order in pending status.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	st, err := s.sites.GetByID(ctx, req.SiteID)
	if err != nil {
		return nil, fmt.Errorf("get site: %w", err)
	}

	u, err := s.users.GetByID(ctx, req.SiteID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	crt, err := s.buildCart(ctx, st, req)
	if err != nil {
		return nil, err
	}

	// Evaluate and redeem the coupon when a code is provided. Redeem spends
	// the usage before the order insert; if the order then fails to persist,
	// the usage is released so the customer can retry with the same code.
	discount := decimal.Zero
	var snapshot *coupon.Snapshot
	var redeemed *coupon.Result
	if req.CouponCode != "" {
		res, err := s.coupons.Evaluate(ctx, crt, req.CouponCode, u)
		if err != nil {
			return nil, err
		}
		if err := s.coupons.Redeem(ctx, res, req.UserID); err != nil {
			return nil, err
		}
		redeemed = res
		discount = res.Discount
		snap := res.Snapshot
		snapshot = &snap
	}

	o, err := s.persistOrder(ctx, crt, st, u, discount, snapshot)
	if err != nil {
		if redeemed != nil {
			// Best effort: the floored decrement makes a failed release
			// harmless, so the checkout error wins.
			_ = s.coupons.Release(ctx, redeemed, req.UserID)
		}
		return nil, err
	}
	return o, nil
}

func (s *Service) persistOrder(ctx context.Context, crt cart.Cart, st *site.Site, u *user.User, discount decimal.Decimal, snapshot *coupon.Snapshot) (*Order, error) {
	now := s.now()
	seq, err := s.orders.NextReference(ctx, crt.SiteID, now)
	if err != nil {
		return nil, fmt.Errorf("next order reference: %w", err)
	}

	o := buildOrder(crt, st, u, discount, snapshot, now)
	o.Reference = FormatReference(now, seq)

	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("order invariant: %w", err)
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return o, nil
}

// buildOrder assembles a pending order from the cart snapshot and pricing
// decisions. All monetary fields are rounded to 2 decimal places.
func buildOrder(crt cart.Cart, st *site.Site, u *user.User, discount decimal.Decimal, snapshot *coupon.Snapshot, now time.Time) *Order {
	subtotal := crt.Subtotal().Round(2)
	tax := crt.Tax()
	shipping := crt.ShippingFee.Round(2)
	discount = discount.Round(2)

	grand := subtotal.Add(tax).Add(shipping).Sub(discount)
	if grand.IsNegative() {
		// Discounts are clamped upstream; floor anyway so a misconfigured
		// coupon can never produce a negative invoice.
		discount = subtotal.Add(tax).Add(shipping)
		grand = decimal.Zero
	}

	return &Order{
		ID:              uuid.New().String(),
		SiteID:          st.ID,
		UserID:          u.ID,
		Status:          StatusPending,
		Items:           orderItems(crt.Items),
		Subtotal:        subtotal,
		Tax:             tax,
		Shipping:        shipping,
		Discount:        discount,
		GrandTotal:      grand,
		Coupon:          snapshot,
		CreatedAt:       now,
		StatusChangedAt: now,
	}
}

func orderItems(items []cart.Item) []Item {
	out := make([]Item, len(items))
	for i, item := range items {
		out[i] = Item{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		}
	}
	return out
}

// ChangeStatus loads the order, applies the guarded transition, and persists
// the new status together with its history record. Illegal transitions
// surface as *InvalidTransitionError without any write.
func (s *Service) ChangeStatus(ctx context.Context, req ChangeStatusRequest) (*Order, error) {
	o, err := s.orders.GetByID(ctx, req.SiteID, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	rec, err := o.Transition(req.Target, req.Actor, req.ActorType, req.Reason, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.orders.UpdateStatus(ctx, o, rec); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	return o, nil
}

// Preview evaluates a coupon against the requested items without consuming a
// usage. Serves the coupon preview endpoint.
func (s *Service) Preview(ctx context.Context, req CheckoutRequest) (*coupon.Result, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	st, err := s.sites.GetByID(ctx, req.SiteID)
	if err != nil {
		return nil, fmt.Errorf("get site: %w", err)
	}

	var u *user.User
	if req.UserID != "" {
		u, err = s.users.GetByID(ctx, req.SiteID, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("get user: %w", err)
		}
	}

	crt, err := s.buildCart(ctx, st, req)
	if err != nil {
		return nil, err
	}

	return s.coupons.Evaluate(ctx, crt, req.CouponCode, u)
}

// buildCart validates the requested items and snapshots current catalog
// prices plus the site's tax and shipping terms into a cart. Products are
// fetched in a single batch query.
func (s *Service) buildCart(ctx context.Context, st *site.Site, req CheckoutRequest) (cart.Cart, error) {
	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return cart.Cart{}, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, req.SiteID, ids)
	if err != nil {
		return cart.Cart{}, fmt.Errorf("get products: %w", err)
	}
	productMap := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	crt := cart.Cart{
		SiteID:      req.SiteID,
		UserID:      req.UserID,
		Items:       make([]cart.Item, len(req.Items)),
		TaxRate:     st.TaxRate,
		ShippingFee: st.ShippingFee,
	}
	for i, item := range req.Items {
		p, ok := productMap[item.ProductID]
		if !ok {
			return cart.Cart{}, &ProductNotFoundError{ProductID: item.ProductID}
		}
		crt.Items[i] = cart.Item{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  item.Quantity,
		}
	}
	return crt, nil
}
