package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchkit/storefront/internal/domain/site"
)

const getSiteByIDSQL = `SELECT id, slug, name, currency, tax_rate, shipping_fee, active, created_at
	FROM sites WHERE id = $1 AND active = TRUE`

var _ site.Repository = (*SiteRepository)(nil)

// SiteRepository implements site.Repository backed by PostgreSQL.
type SiteRepository struct {
	pool *pgxpool.Pool
}

// NewSiteRepository returns a SiteRepository that uses the given pool.
func NewSiteRepository(pool *pgxpool.Pool) *SiteRepository {
	return &SiteRepository{pool: pool}
}

// GetByID returns a single active site by its identifier.
// Returns site.ErrNotFound when no matching active site exists.
func (r *SiteRepository) GetByID(ctx context.Context, id string) (*site.Site, error) {
	var s site.Site
	err := r.pool.QueryRow(ctx, getSiteByIDSQL, id).Scan(
		&s.ID, &s.Slug, &s.Name, &s.Currency, &s.TaxRate, &s.ShippingFee, &s.Active, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, site.ErrNotFound
		}
		return nil, fmt.Errorf("getting site %q: %w", id, err)
	}
	return &s, nil
}
