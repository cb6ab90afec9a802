package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/merchkit/storefront/internal/domain/cart"
	"github.com/merchkit/storefront/internal/domain/user"
)

// Result holds the outcome of a successful evaluation: the coupon, the
// computed discount, and the snapshot to store on the order.
type Result struct {
	Coupon       *Coupon
	Discount     decimal.Decimal
	FreeShipping bool
	Snapshot     Snapshot
}

// Evaluator decides whether a coupon may be applied to a cart and computes
// the resulting discount. Evaluate is read-only; Redeem consumes a usage.
type Evaluator struct {
	repo Repository
	now  func() time.Time
}

// NewEvaluator creates an Evaluator backed by the given Repository.
func NewEvaluator(repo Repository) *Evaluator {
	return &Evaluator{repo: repo, now: time.Now}
}

// Evaluate checks every eligibility rule for the coupon code against the cart
// and user, and returns either the computed discount or a *Rejection listing
// all failing rules.
//
// Checks run independently of one another: a coupon that is both expired and
// below the minimum amount reports both reasons. The two exceptions are
// cart_empty and not_found, which leave nothing to evaluate against and so
// stand alone. A nil user means an anonymous cart; user-scoped rules then
// fail only when the coupon actually restricts by user.
func (e *Evaluator) Evaluate(ctx context.Context, crt cart.Cart, code string, u *user.User) (*Result, error) {
	if crt.IsEmpty() {
		return nil, &Rejection{Code: code, Reasons: []Reason{ReasonCartEmpty}}
	}

	c, err := e.repo.FindByCode(ctx, crt.SiteID, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &Rejection{Code: code, Reasons: []Reason{ReasonNotFound}}
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	reasons, err := e.checkEligibility(ctx, c, crt, u)
	if err != nil {
		return nil, err
	}
	if len(reasons) > 0 {
		return nil, &Rejection{Code: c.Code, Reasons: reasons}
	}

	amount, freeShipping, err := Compute(c, crt)
	if err != nil {
		return nil, err
	}

	return &Result{
		Coupon:       c,
		Discount:     amount,
		FreeShipping: freeShipping,
		Snapshot: Snapshot{
			CouponID:     c.ID,
			Code:         c.Code,
			Type:         c.Type,
			Value:        c.Value,
			Amount:       amount,
			FreeShipping: freeShipping,
			AppliedAt:    e.now(),
		},
	}, nil
}

// checkEligibility runs every rule and collects the failures. The slice order
// matches the declaration order of the rules, but no rule is skipped because
// an earlier one failed.
func (e *Evaluator) checkEligibility(ctx context.Context, c *Coupon, crt cart.Cart, u *user.User) ([]Reason, error) {
	var reasons []Reason
	now := e.now()

	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		reasons = append(reasons, ReasonExpired)
	} else if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		reasons = append(reasons, ReasonExpired)
	}

	if c.MaxUsages > 0 && c.UsageCount >= c.MaxUsages {
		reasons = append(reasons, ReasonExhausted)
	}

	if c.MinimumAmount.IsPositive() && crt.Subtotal().LessThan(c.MinimumAmount) {
		reasons = append(reasons, ReasonMinimumAmountNotMet)
	}

	if len(c.AllowedCustomerTypes) > 0 && !customerTypeAllowed(c.AllowedCustomerTypes, u) {
		reasons = append(reasons, ReasonCustomerTypeNotAllowed)
	}

	limited, err := e.userLimitReached(ctx, c, u)
	if err != nil {
		return nil, err
	}
	if limited {
		reasons = append(reasons, ReasonUserLimitReached)
	}

	return reasons, nil
}

// userLimitReached checks the per-user usage cap and the first-order-only
// flag. A violated first-order rule is a per-user limit of one lifetime
// order, so it reports under the same reason.
func (e *Evaluator) userLimitReached(ctx context.Context, c *Coupon, u *user.User) (bool, error) {
	if u == nil {
		return false, nil
	}
	if c.FirstOrderOnly && u.CompletedOrders > 0 {
		return true, nil
	}
	if c.MaxUsagesPerUser <= 0 {
		return false, nil
	}
	used, err := e.repo.UserUsageCount(ctx, c.ID, u.ID)
	if err != nil {
		return false, errors.Wrap(err, "user usage count")
	}
	return used >= c.MaxUsagesPerUser, nil
}

// Redeem consumes one usage of the evaluated coupon for the given user. The
// storage layer guards the global cap with a conditional update; losing that
// race surfaces as a *Rejection with the exhausted reason.
func (e *Evaluator) Redeem(ctx context.Context, res *Result, userID string) error {
	err := e.repo.ConsumeUsage(ctx, res.Coupon.ID, userID)
	if err != nil {
		if errors.Is(err, ErrExhausted) {
			return &Rejection{Code: res.Coupon.Code, Reasons: []Reason{ReasonExhausted}}
		}
		return errors.Wrap(err, "consume coupon usage")
	}
	return nil
}

// Release returns a previously redeemed usage, compensating a checkout whose
// order could not be persisted after Redeem succeeded.
func (e *Evaluator) Release(ctx context.Context, res *Result, userID string) error {
	if err := e.repo.ReleaseUsage(ctx, res.Coupon.ID, userID); err != nil {
		return errors.Wrap(err, "release coupon usage")
	}
	return nil
}

func customerTypeAllowed(allowed []user.CustomerType, u *user.User) bool {
	if u == nil {
		return false
	}
	for _, t := range allowed {
		if t == u.CustomerType {
			return true
		}
	}
	return false
}
