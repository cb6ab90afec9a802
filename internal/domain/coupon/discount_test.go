package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merchkit/storefront/internal/domain/cart"
)

func newTestCart(price string, qty int) cart.Cart {
	return cart.Cart{
		SiteID: "site-1",
		Items: []cart.Item{
			{ProductID: "p1", Name: "Widget", UnitPrice: decimal.RequireFromString(price), Quantity: qty},
		},
		ShippingFee: decimal.RequireFromString("5.00"),
	}
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name             string
		coupon           *Coupon
		cart             cart.Cart
		wantAmount       string
		wantFreeShipping bool
	}{
		{
			name: "percentage of subtotal",
			coupon: &Coupon{
				Type:  TypePercentage,
				Value: decimal.NewFromInt(10),
			},
			cart:       newTestCart("50.00", 2),
			wantAmount: "10.00",
		},
		{
			name: "percentage clamped to maximum discount",
			coupon: &Coupon{
				Type:            TypePercentage,
				Value:           decimal.NewFromInt(50),
				MaximumDiscount: decimal.RequireFromString("15.00"),
			},
			cart:       newTestCart("100.00", 1),
			wantAmount: "15.00",
		},
		{
			name: "percentage rounds to cents",
			coupon: &Coupon{
				Type:  TypePercentage,
				Value: decimal.NewFromInt(15),
			},
			cart:       newTestCart("9.99", 1),
			wantAmount: "1.50",
		},
		{
			name: "fixed amount",
			coupon: &Coupon{
				Type:  TypeFixedAmount,
				Value: decimal.RequireFromString("5.00"),
			},
			cart:       newTestCart("30.00", 1),
			wantAmount: "5.00",
		},
		{
			name: "fixed amount clamped to subtotal",
			coupon: &Coupon{
				Type:  TypeFixedAmount,
				Value: decimal.RequireFromString("50.00"),
			},
			cart:       newTestCart("12.00", 1),
			wantAmount: "12.00",
		},
		{
			name: "free shipping lifts the shipping fee",
			coupon: &Coupon{
				Type: TypeFreeShipping,
			},
			cart:             newTestCart("30.00", 1),
			wantAmount:       "5.00",
			wantFreeShipping: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, freeShipping, err := Compute(tt.coupon, tt.cart)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.wantAmount).Equal(amount),
				"want %s, got %s", tt.wantAmount, amount)
			assert.Equal(t, tt.wantFreeShipping, freeShipping)
		})
	}
}

func TestCompute_UnknownType(t *testing.T) {
	_, _, err := Compute(&Coupon{Type: "bogus"}, newTestCart("10.00", 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported coupon type")
}
