package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingOrder() *Order {
	return &Order{
		ID:        "o1",
		SiteID:    "site-1",
		UserID:    "u1",
		Reference: "2026-03-00042",
		Status:    StatusPending,
		Items: []Item{
			{ProductID: "p1", Name: "Widget", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 2},
		},
		Subtotal:   decimal.RequireFromString("20.00"),
		Tax:        decimal.RequireFromString("1.65"),
		Shipping:   decimal.RequireFromString("5.00"),
		Discount:   decimal.Zero,
		GrandTotal: decimal.RequireFromString("26.65"),
	}
}

func TestTransition(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	t.Run("accepted transition mutates status and appends history", func(t *testing.T) {
		o := newPendingOrder()

		rec, err := o.Transition(StatusConfirmed, "staff-7", ActorStaff, "payment captured", now)
		require.NoError(t, err)

		assert.Equal(t, StatusConfirmed, o.Status)
		assert.Equal(t, now, o.StatusChangedAt)
		require.Len(t, o.History, 1)
		assert.Equal(t, rec, o.History[0])
		assert.Equal(t, StatusPending, rec.From)
		assert.Equal(t, StatusConfirmed, rec.To)
		assert.Equal(t, "staff-7", rec.Actor)
		assert.Equal(t, ActorStaff, rec.ActorType)
		assert.Equal(t, "payment captured", rec.Reason)
		assert.Equal(t, now, rec.OccurredAt)
	})

	t.Run("confirming stamps ValidatedAt", func(t *testing.T) {
		o := newPendingOrder()

		_, err := o.Transition(StatusConfirmed, "system", ActorSystem, "", now)
		require.NoError(t, err)
		require.NotNil(t, o.ValidatedAt)
		assert.Equal(t, now, *o.ValidatedAt)
	})

	t.Run("cancelling does not stamp ValidatedAt", func(t *testing.T) {
		o := newPendingOrder()

		_, err := o.Transition(StatusCancelled, "u1", ActorCustomer, "changed my mind", now)
		require.NoError(t, err)
		assert.Nil(t, o.ValidatedAt)
	})

	t.Run("illegal transition leaves order untouched", func(t *testing.T) {
		o := newPendingOrder()

		_, err := o.Transition(StatusShipped, "staff-7", ActorStaff, "", now)

		var itErr *InvalidTransitionError
		require.ErrorAs(t, err, &itErr)
		assert.Equal(t, StatusPending, itErr.From)
		assert.Equal(t, StatusShipped, itErr.To)

		assert.Equal(t, StatusPending, o.Status)
		assert.Empty(t, o.History)
		assert.True(t, o.StatusChangedAt.IsZero())
		assert.Nil(t, o.ValidatedAt)
	})

	t.Run("unknown target status", func(t *testing.T) {
		o := newPendingOrder()

		_, err := o.Transition(Status("archived"), "staff-7", ActorStaff, "", now)

		var usErr *UnknownStatusError
		require.ErrorAs(t, err, &usErr)
		assert.Equal(t, Status("archived"), usErr.Status)
		assert.Equal(t, StatusPending, o.Status)
	})

	t.Run("terminal status rejects all moves", func(t *testing.T) {
		o := newPendingOrder()
		o.Status = StatusCompleted

		for _, target := range []Status{StatusPending, StatusRefunded, StatusCancelled} {
			_, err := o.Transition(target, "staff-7", ActorStaff, "", now)

			var itErr *InvalidTransitionError
			require.ErrorAs(t, err, &itErr, "target %s", target)
		}
	})

	t.Run("full lifecycle accumulates history", func(t *testing.T) {
		o := newPendingOrder()
		steps := []Status{
			StatusConfirmed, StatusProcessing, StatusShipped,
			StatusDelivered, StatusCompleted,
		}

		for i, target := range steps {
			_, err := o.Transition(target, "system", ActorSystem, "", now.Add(time.Duration(i)*time.Hour))
			require.NoError(t, err, "step %s", target)
		}

		require.Len(t, o.History, len(steps))
		for i, rec := range o.History {
			assert.Equal(t, steps[i], rec.To)
			if i > 0 {
				assert.Equal(t, steps[i-1], rec.From)
			}
		}
		assert.True(t, o.Status.IsTerminal())
	})

	t.Run("hold and resume", func(t *testing.T) {
		o := newPendingOrder()
		o.Status = StatusProcessing

		_, err := o.Transition(StatusOnHold, "staff-7", ActorStaff, "stock check", now)
		require.NoError(t, err)

		_, err = o.Transition(StatusProcessing, "staff-7", ActorStaff, "stock confirmed", now.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, StatusProcessing, o.Status)
	})
}

func TestValidate(t *testing.T) {
	t.Run("balanced totals", func(t *testing.T) {
		o := newPendingOrder()
		require.NoError(t, o.Validate())
	})

	t.Run("mismatched totals", func(t *testing.T) {
		o := newPendingOrder()
		o.GrandTotal = decimal.RequireFromString("99.99")

		err := o.Validate()
		require.ErrorIs(t, err, ErrTotalsMismatch)
	})

	t.Run("discount participates in the identity", func(t *testing.T) {
		o := newPendingOrder()
		o.Discount = decimal.RequireFromString("5.00")
		o.GrandTotal = decimal.RequireFromString("21.65")
		require.NoError(t, o.Validate())
	})
}

func TestFormatReference(t *testing.T) {
	tests := []struct {
		t    time.Time
		seq  int64
		want string
	}{
		{time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), 42, "2026-03-00042"},
		{time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), 1, "2026-11-00001"},
		{time.Date(2027, 1, 31, 23, 59, 0, 0, time.UTC), 99999, "2027-01-99999"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatReference(tt.t, tt.seq))
	}
}
