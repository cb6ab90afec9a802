// Package order implements the order aggregate, its status state machine,
// and the checkout service that builds orders from cart snapshots.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/merchkit/storefront/internal/domain/coupon"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// ErrTotalsMismatch is returned by Validate when the grand total does not
// equal subtotal + tax + shipping - discount.
var ErrTotalsMismatch = errors.New("order totals do not balance")

// ActorType classifies who performed a status change.
type ActorType string

const (
	ActorCustomer ActorType = "customer"
	ActorStaff    ActorType = "staff"
	ActorSystem   ActorType = "system"
)

// HistoryRecord is an immutable audit entry appended on every accepted
// status transition.
type HistoryRecord struct {
	From       Status
	To         Status
	Actor      string
	ActorType  ActorType
	Reason     string
	OccurredAt time.Time
}

// Item is a single order line with the unit price captured at checkout.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Order is a customer order. It is created in pending status from a cart
// snapshot, mutated only through guarded status transitions, and never
// physically deleted.
type Order struct {
	ID        string
	SiteID    string
	UserID    string
	Reference string
	Status    Status
	Items     []Item

	Subtotal   decimal.Decimal
	Tax        decimal.Decimal
	Shipping   decimal.Decimal
	Discount   decimal.Decimal
	GrandTotal decimal.Decimal

	// Coupon is the immutable snapshot of the applied coupon's terms at
	// checkout time, nil when no coupon was used.
	Coupon *coupon.Snapshot

	History []HistoryRecord

	CreatedAt       time.Time
	ValidatedAt     *time.Time
	StatusChangedAt time.Time
}

// Validate checks the grand-total identity:
// grand_total = subtotal + tax + shipping - discount, and grand_total >= 0.
func (o *Order) Validate() error {
	want := o.Subtotal.Add(o.Tax).Add(o.Shipping).Sub(o.Discount)
	if !o.GrandTotal.Equal(want) {
		return errors.Wrapf(ErrTotalsMismatch, "grand total %s, components sum to %s", o.GrandTotal, want)
	}
	if o.GrandTotal.IsNegative() {
		return errors.Wrap(ErrTotalsMismatch, "grand total is negative")
	}
	return nil
}

// Transition moves the order to target if the state machine allows it.
// Illegal transitions return *InvalidTransitionError and leave the order
// untouched. On success the order's status and StatusChangedAt are updated,
// an immutable history record is appended and returned, and ValidatedAt is
// stamped when the order leaves pending for confirmed.
func (o *Order) Transition(target Status, actor string, actorType ActorType, reason string, now time.Time) (HistoryRecord, error) {
	if !target.Valid() {
		return HistoryRecord{}, &UnknownStatusError{Status: target}
	}
	if !o.Status.CanTransitionTo(target) {
		return HistoryRecord{}, &InvalidTransitionError{From: o.Status, To: target}
	}

	rec := HistoryRecord{
		From:       o.Status,
		To:         target,
		Actor:      actor,
		ActorType:  actorType,
		Reason:     reason,
		OccurredAt: now,
	}

	if o.Status == StatusPending && target == StatusConfirmed {
		t := now
		o.ValidatedAt = &t
	}
	o.Status = target
	o.StatusChangedAt = now
	o.History = append(o.History, rec)

	return rec, nil
}

// FormatReference renders an order reference in the YYYY-MM-NNNNN form for
// the given creation time and per-site monthly sequence number.
func FormatReference(t time.Time, seq int64) string {
	return fmt.Sprintf("%04d-%02d-%05d", t.Year(), int(t.Month()), seq)
}

// Repository defines persistence operations for orders. There is no delete:
// orders are retained for audit and leave circulation only through terminal
// statuses.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, siteID, id string) (*Order, error)
	GetByReference(ctx context.Context, siteID, reference string) (*Order, error)
	// UpdateStatus persists the order's current status fields and appends
	// the history record in a single transaction.
	UpdateStatus(ctx context.Context, o *Order, rec HistoryRecord) error
	// NextReference returns the next per-site sequence number for the month
	// containing t.
	NextReference(ctx context.Context, siteID string, t time.Time) (int64, error)
}
