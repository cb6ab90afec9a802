package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase on a site.
type Product struct {
	ID       string
	SiteID   string
	Name     string
	Price    decimal.Decimal
	Category string
	Active   bool
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context, siteID string) ([]Product, error)
	GetByID(ctx context.Context, siteID, id string) (*Product, error)
	GetByIDs(ctx context.Context, siteID string, ids []string) ([]Product, error)
}
