package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchkit/storefront/internal/domain/coupon"
	"github.com/merchkit/storefront/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, site_id, user_id, reference, status, items,
		subtotal, tax, shipping, discount, grand_total, coupon_snapshot,
		created_at, validated_at, status_changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	getOrderByIDSQL = `SELECT id, site_id, user_id, reference, status, items,
		subtotal, tax, shipping, discount, grand_total, coupon_snapshot,
		created_at, validated_at, status_changed_at
		FROM orders WHERE site_id = $1 AND id = $2`

	getOrderByReferenceSQL = `SELECT id, site_id, user_id, reference, status, items,
		subtotal, tax, shipping, discount, grand_total, coupon_snapshot,
		created_at, validated_at, status_changed_at
		FROM orders WHERE site_id = $1 AND reference = $2`

	getOrderHistorySQL = `SELECT from_status, to_status, actor, actor_type, reason, occurred_at
		FROM order_status_history WHERE order_id = $1 ORDER BY id`

	updateOrderStatusSQL = `UPDATE orders SET status = $3, validated_at = $4, status_changed_at = $5
		WHERE site_id = $1 AND id = $2`

	insertHistorySQL = `INSERT INTO order_status_history
		(order_id, from_status, to_status, actor, actor_type, reason, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	nextReferenceSQL = `INSERT INTO order_reference_seq (site_id, period, last_seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (site_id, period)
		DO UPDATE SET last_seq = order_reference_seq.last_seq + 1
		RETURNING last_seq`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Items and the coupon snapshot are serialized
// to JSON for storage in JSONB columns.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	var snapshotJSON []byte
	if o.Coupon != nil {
		snapshotJSON, err = json.Marshal(o.Coupon)
		if err != nil {
			return fmt.Errorf("marshaling coupon snapshot: %w", err)
		}
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.SiteID, o.UserID, o.Reference, string(o.Status), itemsJSON,
		o.Subtotal, o.Tax, o.Shipping, o.Discount, o.GrandTotal, snapshotJSON,
		o.CreatedAt, o.ValidatedAt, o.StatusChangedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns an order with its full status history.
func (r *OrderRepository) GetByID(ctx context.Context, siteID, id string) (*order.Order, error) {
	return r.getOrder(ctx, getOrderByIDSQL, siteID, id)
}

// GetByReference returns an order by its human-readable reference.
func (r *OrderRepository) GetByReference(ctx context.Context, siteID, reference string) (*order.Order, error) {
	return r.getOrder(ctx, getOrderByReferenceSQL, siteID, reference)
}

func (r *OrderRepository) getOrder(ctx context.Context, query, siteID, key string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, query, siteID, key)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", key, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", key, err)
	}

	history, err := r.getHistory(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.History = history

	return &o, nil
}

func (r *OrderRepository) getHistory(ctx context.Context, orderID string) ([]order.HistoryRecord, error) {
	rows, err := r.pool.Query(ctx, getOrderHistorySQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting history for order %q: %w", orderID, err)
	}
	return pgx.CollectRows(rows, scanHistoryRecord)
}

// UpdateStatus persists the order's status fields and appends the history
// record in one transaction, so a partial write can never leave the audit
// trail out of step with the order row.
func (r *OrderRepository) UpdateStatus(ctx context.Context, o *order.Order, rec order.HistoryRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("updating status for order %q: %w", o.ID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, updateOrderStatusSQL,
		o.SiteID, o.ID, string(o.Status), o.ValidatedAt, o.StatusChangedAt,
	); err != nil {
		return fmt.Errorf("updating status for order %q: %w", o.ID, err)
	}

	if _, err := tx.Exec(ctx, insertHistorySQL,
		o.ID, string(rec.From), string(rec.To), rec.Actor, string(rec.ActorType), rec.Reason, rec.OccurredAt,
	); err != nil {
		return fmt.Errorf("inserting history for order %q: %w", o.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("updating status for order %q: %w", o.ID, err)
	}
	return nil
}

// NextReference returns the next sequence number for the site's monthly
// reference counter. The upsert is atomic, so concurrent checkouts on one
// site never observe the same value.
func (r *OrderRepository) NextReference(ctx context.Context, siteID string, t time.Time) (int64, error) {
	period := fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))

	var seq int64
	err := r.pool.QueryRow(ctx, nextReferenceSQL, siteID, period).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next reference for site %q: %w", siteID, err)
	}
	return seq, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o            order.Order
		status       string
		itemsJSON    []byte
		snapshotJSON []byte
	)
	err := row.Scan(
		&o.ID, &o.SiteID, &o.UserID, &o.Reference, &status, &itemsJSON,
		&o.Subtotal, &o.Tax, &o.Shipping, &o.Discount, &o.GrandTotal, &snapshotJSON,
		&o.CreatedAt, &o.ValidatedAt, &o.StatusChangedAt,
	)
	if err != nil {
		return o, err
	}

	o.Status = order.Status(status)
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if len(snapshotJSON) > 0 {
		var snap coupon.Snapshot
		if err := json.Unmarshal(snapshotJSON, &snap); err != nil {
			return o, fmt.Errorf("unmarshaling coupon snapshot: %w", err)
		}
		o.Coupon = &snap
	}
	return o, nil
}

func scanHistoryRecord(row pgx.CollectableRow) (order.HistoryRecord, error) {
	var (
		rec       order.HistoryRecord
		from, to  string
		actorType string
	)
	err := row.Scan(&from, &to, &rec.Actor, &actorType, &rec.Reason, &rec.OccurredAt)
	rec.From = order.Status(from)
	rec.To = order.Status(to)
	rec.ActorType = order.ActorType(actorType)
	return rec, err
}
