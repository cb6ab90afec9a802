package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = errors.New("user not found")

// CustomerType distinguishes customer segments for coupon targeting.
type CustomerType string

const (
	CustomerIndividual CustomerType = "individual"
	CustomerBusiness   CustomerType = "business"
)

// User is a storefront customer account, scoped to a single site.
type User struct {
	ID           string
	SiteID       string
	Email        string
	Name         string
	CustomerType CustomerType
	// CompletedOrders counts orders that reached the completed status.
	// Consulted by first-order-only coupon rules.
	CompletedOrders int
	CreatedAt       time.Time
}

// Repository defines read operations for users.
type Repository interface {
	GetByID(ctx context.Context, siteID, id string) (*User, error)
}
