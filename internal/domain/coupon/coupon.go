// Package coupon implements coupon eligibility evaluation and discount
// calculation for the storefront.
package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/merchkit/storefront/internal/domain/user"
)

// Type enumerates the supported coupon discount strategies.
type Type string

const (
	// TypePercentage applies a percentage-based discount to the cart subtotal.
	TypePercentage Type = "percentage"
	// TypeFixedAmount applies a flat discount capped at the subtotal.
	TypeFixedAmount Type = "fixed_amount"
	// TypeFreeShipping waives the shipping charge.
	TypeFreeShipping Type = "free_shipping"
)

var (
	// ErrNotFound is returned by repositories when no active coupon matches
	// the requested code on the site.
	ErrNotFound = errors.New("coupon not found")
	// ErrExhausted is returned by ConsumeUsage when the usage cap guard
	// rejects the increment. Surfaces a lost race under concurrent checkouts.
	ErrExhausted = errors.New("coupon usage limit exhausted")
)

// Coupon defines a discount code's terms and eligibility constraints.
// Codes are unique per site; UsageCount moves only through ConsumeUsage
// and its ReleaseUsage compensation.
type Coupon struct {
	ID                   string
	SiteID               string
	Code                 string
	Type                 Type
	Value                decimal.Decimal
	MinimumAmount        decimal.Decimal
	MaximumDiscount      decimal.Decimal // zero means no cap
	StartsAt             *time.Time
	ExpiresAt            *time.Time
	MaxUsages            int // zero means unlimited
	MaxUsagesPerUser     int
	AllowedCustomerTypes []user.CustomerType // empty means all types
	FirstOrderOnly       bool
	UsageCount           int
	Description          string
}

// Snapshot is an immutable copy of a coupon's terms at the moment it was
// applied to an order. Coupons can change or be deleted later; the snapshot
// preserves what the customer actually received.
type Snapshot struct {
	CouponID     string          `json:"coupon_id"`
	Code         string          `json:"code"`
	Type         Type            `json:"type"`
	Value        decimal.Decimal `json:"value"`
	Amount       decimal.Decimal `json:"amount"`
	FreeShipping bool            `json:"free_shipping,omitempty"`
	AppliedAt    time.Time       `json:"applied_at"`
}

// Reason identifies why a coupon was rejected. The set is fixed; HTTP and
// storage layers rely on these exact strings.
type Reason string

const (
	ReasonNotFound               Reason = "not_found"
	ReasonExpired                Reason = "expired"
	ReasonExhausted              Reason = "exhausted"
	ReasonMinimumAmountNotMet    Reason = "minimum_amount_not_met"
	ReasonCustomerTypeNotAllowed Reason = "customer_type_not_allowed"
	ReasonUserLimitReached       Reason = "user_limit_reached"
	ReasonCartEmpty              Reason = "cart_empty"
)

// Rejection is the error returned when a coupon cannot be applied. It carries
// every failing check, not just the first one encountered.
type Rejection struct {
	Code    string
	Reasons []Reason
}

func (r *Rejection) Error() string {
	parts := make([]string, len(r.Reasons))
	for i, reason := range r.Reasons {
		parts[i] = string(reason)
	}
	return "coupon " + r.Code + " rejected: " + strings.Join(parts, ", ")
}

// Has reports whether the rejection includes the given reason.
func (r *Rejection) Has(reason Reason) bool {
	for _, got := range r.Reasons {
		if got == reason {
			return true
		}
	}
	return false
}

// Repository provides lookup and usage accounting for coupons.
//
// ConsumeUsage must be atomic with respect to the coupon's usage caps: the
// global increment is guarded by a row-level conditional update so that two
// concurrent checkouts cannot both spend the final usage. It returns
// ErrExhausted when the guard rejects the increment.
//
// ReleaseUsage undoes a prior ConsumeUsage when the checkout that consumed
// it could not be persisted. It must never drive a counter below zero.
type Repository interface {
	FindByCode(ctx context.Context, siteID, code string) (*Coupon, error)
	UserUsageCount(ctx context.Context, couponID, userID string) (int, error)
	ConsumeUsage(ctx context.Context, couponID, userID string) error
	ReleaseUsage(ctx context.Context, couponID, userID string) error
}
