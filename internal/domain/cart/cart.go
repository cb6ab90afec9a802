// Package cart defines the cart snapshot consumed by checkout and coupon
// evaluation. A Cart is a value: repositories hand one out, but pricing and
// eligibility logic never mutate it.
package cart

import "github.com/shopspring/decimal"

// Item is a single cart line with the unit price captured at snapshot time.
type Item struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Cart is an immutable snapshot of a customer's cart plus the site-level
// charges that apply to it.
type Cart struct {
	SiteID      string
	UserID      string
	Items       []Item
	TaxRate     decimal.Decimal
	ShippingFee decimal.Decimal
}

// IsEmpty reports whether the cart contains no purchasable quantity.
func (c Cart) IsEmpty() bool {
	for _, item := range c.Items {
		if item.Quantity > 0 {
			return false
		}
	}
	return true
}

// Subtotal returns the sum of unit price times quantity across all items.
func (c Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range c.Items {
		line := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		sum = sum.Add(line)
	}
	return sum
}

// Tax returns the tax charge for the cart, rounded to 2 decimal places.
func (c Cart) Tax() decimal.Decimal {
	return c.Subtotal().Mul(c.TaxRate).Round(2)
}
