package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchkit/storefront/internal/domain/user"
)

const getUserByIDSQL = `SELECT id, site_id, email, name, customer_type, completed_orders, created_at
	FROM users WHERE site_id = $1 AND id = $2`

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID returns a single user scoped to the given site.
// Returns user.ErrNotFound when no matching user exists.
func (r *UserRepository) GetByID(ctx context.Context, siteID, id string) (*user.User, error) {
	var (
		u            user.User
		customerType string
	)
	err := r.pool.QueryRow(ctx, getUserByIDSQL, siteID, id).Scan(
		&u.ID, &u.SiteID, &u.Email, &u.Name, &customerType, &u.CompletedOrders, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user %q: %w", id, err)
	}
	u.CustomerType = user.CustomerType(customerType)
	return &u, nil
}
