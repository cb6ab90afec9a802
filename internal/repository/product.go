package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchkit/storefront/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, site_id, name, price, category, active
		FROM products WHERE site_id = $1 AND active = TRUE ORDER BY id`

	getProductByIDSQL = `SELECT id, site_id, name, price, category, active
		FROM products WHERE site_id = $1 AND id = $2 AND active = TRUE`

	getProductsByIDsSQL = `SELECT id, site_id, name, price, category, active
		FROM products WHERE site_id = $1 AND id = ANY($2) AND active = TRUE`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all active products on the site ordered by ID.
func (r *ProductRepository) List(ctx context.Context, siteID string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL, siteID)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, siteID, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, siteID, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, siteID string, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, siteID, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.SiteID, &p.Name, &p.Price, &p.Category, &p.Active)
	return p, err
}
