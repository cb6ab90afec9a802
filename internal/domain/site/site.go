package site

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested site does not exist or is inactive.
var ErrNotFound = errors.New("site not found")

// Site is an isolated storefront tenant. All catalog, coupon, and order data
// is scoped to a site; two sites never share codes or references.
type Site struct {
	ID          string
	Slug        string
	Name        string
	Currency    string
	TaxRate     decimal.Decimal
	ShippingFee decimal.Decimal
	Active      bool
	CreatedAt   time.Time
}

// Repository defines read operations for sites.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Site, error)
}
