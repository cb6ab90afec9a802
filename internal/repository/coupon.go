package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchkit/storefront/internal/domain/coupon"
	"github.com/merchkit/storefront/internal/domain/user"
)

const (
	getCouponByCodeSQL = `SELECT id, site_id, code, type, value, minimum_amount, maximum_discount,
		starts_at, expires_at, max_usages, max_usages_per_user, allowed_customer_types,
		first_order_only, usage_count, description
		FROM coupons WHERE site_id = $1 AND UPPER(code) = UPPER($2) AND active = TRUE`

	getUserUsageSQL = `SELECT used_count FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2`

	// The WHERE clause is the usage-cap guard: two concurrent checkouts
	// racing for the last usage serialize on the row lock and the loser
	// matches zero rows.
	consumeGlobalUsageSQL = `UPDATE coupons SET usage_count = usage_count + 1
		WHERE id = $1 AND active = TRUE AND (max_usages = 0 OR usage_count < max_usages)`

	consumeUserUsageSQL = `INSERT INTO coupon_usages (coupon_id, user_id, used_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (coupon_id, user_id)
		DO UPDATE SET used_count = coupon_usages.used_count + 1`

	releaseGlobalUsageSQL = `UPDATE coupons SET usage_count = usage_count - 1
		WHERE id = $1 AND usage_count > 0`

	releaseUserUsageSQL = `UPDATE coupon_usages SET used_count = used_count - 1
		WHERE coupon_id = $1 AND user_id = $2 AND used_count > 0`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up an active coupon by its code (case-insensitive) on the
// given site. Returns coupon.ErrNotFound when no matching coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, siteID, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, siteID, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// UserUsageCount returns how many times the user has redeemed the coupon.
func (r *CouponRepository) UserUsageCount(ctx context.Context, couponID, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, getUserUsageSQL, couponID, userID).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("getting usage for coupon %q: %w", couponID, err)
	}
	return count, nil
}

// ConsumeUsage spends one usage of the coupon for the user. The global
// counter increment is conditional on the usage cap, closing the
// double-spend race at the storage layer; a lost race returns
// coupon.ErrExhausted and nothing is written.
func (r *CouponRepository) ConsumeUsage(ctx context.Context, couponID, userID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("consuming usage for coupon %q: %w", couponID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, consumeGlobalUsageSQL, couponID)
	if err != nil {
		return fmt.Errorf("incrementing usage for coupon %q: %w", couponID, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrExhausted
	}

	if _, err := tx.Exec(ctx, consumeUserUsageSQL, couponID, userID); err != nil {
		return fmt.Errorf("recording user usage for coupon %q: %w", couponID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("consuming usage for coupon %q: %w", couponID, err)
	}
	return nil
}

// ReleaseUsage returns a usage consumed by a checkout that failed to persist
// its order. Both counters are floored at zero so a stray release can never
// corrupt the cap accounting.
func (r *CouponRepository) ReleaseUsage(ctx context.Context, couponID, userID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("releasing usage for coupon %q: %w", couponID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, releaseGlobalUsageSQL, couponID); err != nil {
		return fmt.Errorf("decrementing usage for coupon %q: %w", couponID, err)
	}
	if _, err := tx.Exec(ctx, releaseUserUsageSQL, couponID, userID); err != nil {
		return fmt.Errorf("decrementing user usage for coupon %q: %w", couponID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("releasing usage for coupon %q: %w", couponID, err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		couponType   string
		allowedTypes []string
	)
	err := row.Scan(
		&c.ID, &c.SiteID, &c.Code, &couponType, &c.Value, &c.MinimumAmount, &c.MaximumDiscount,
		&c.StartsAt, &c.ExpiresAt, &c.MaxUsages, &c.MaxUsagesPerUser, &allowedTypes,
		&c.FirstOrderOnly, &c.UsageCount, &c.Description,
	)
	c.Type = coupon.Type(couponType)
	c.AllowedCustomerTypes = make([]user.CustomerType, len(allowedTypes))
	for i, t := range allowedTypes {
		c.AllowedCustomerTypes[i] = user.CustomerType(t)
	}
	return c, err
}
