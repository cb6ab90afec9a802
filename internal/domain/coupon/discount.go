package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/merchkit/storefront/internal/domain/cart"
)

var hundred = decimal.NewFromInt(100)

// Compute calculates the discount a coupon yields against a cart. It assumes
// eligibility has already been checked. The returned amount is rounded to
// 2 decimal places and never negative; freeShipping is true only for
// free-shipping coupons.
func Compute(c *Coupon, crt cart.Cart) (amount decimal.Decimal, freeShipping bool, err error) {
	switch c.Type {
	case TypePercentage:
		return computePercentage(c, crt.Subtotal()), false, nil
	case TypeFixedAmount:
		return computeFixed(c, crt.Subtotal()), false, nil
	case TypeFreeShipping:
		// The shipping charge stays on the order ledger; the discount lifts
		// it back off so the grand-total identity keeps holding.
		return floorAtZero(crt.ShippingFee).Round(2), true, nil
	default:
		return decimal.Zero, false, errors.Errorf("unsupported coupon type: %q", c.Type)
	}
}

// computePercentage multiplies the subtotal by the coupon rate and clamps the
// result to MaximumDiscount when a cap is set.
func computePercentage(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	amount := subtotal.Mul(c.Value).Div(hundred)
	if c.MaximumDiscount.IsPositive() {
		amount = decimal.Min(amount, c.MaximumDiscount)
	}
	return floorAtZero(amount).Round(2)
}

// computeFixed subtracts a flat value, clamped so the discount never exceeds
// the subtotal.
func computeFixed(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	amount := decimal.Min(c.Value, subtotal)
	return floorAtZero(amount).Round(2)
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
